package usecase

import (
	"context"

	chat "collabhub-realtime/internal/pkg/chat/application/domain"
	repository "collabhub-realtime/internal/pkg/chat/persistence/repository/port"
)

// SendMessageInput carries the data needed to send a new message
type SendMessageInput struct {
	SenderID       string
	ReceiverID     string
	Content        string
	AttachmentURL  string
	AttachmentType string
}

// SendMessageUseCase validates a message and appends it to the canonical conversation
// of the sender/receiver pair. The append and the receiver's unread increment are one
// store transaction.
type SendMessageUseCase struct {
	Repo      repository.ChatRepository
	MaxLength int
}

func NewSendMessageUseCase(repo repository.ChatRepository, maxLength int) *SendMessageUseCase {
	return &SendMessageUseCase{Repo: repo, MaxLength: maxLength}
}

// Execute sends/persists a new message
func (uc *SendMessageUseCase) Execute(ctx context.Context, in SendMessageInput) (*chat.Message, error) {
	draft, err := chat.NewDraft(in.SenderID, in.ReceiverID, in.Content, uc.MaxLength)
	if err != nil {
		return nil, err
	}
	draft, err = draft.WithAttachment(in.AttachmentURL, in.AttachmentType)
	if err != nil {
		return nil, err
	}
	return withRetry(ctx, func(ctx context.Context) (*chat.Message, error) {
		return uc.Repo.AppendMessage(ctx, draft)
	})
}
