package usecase

import (
	"context"

	chat "collabhub-realtime/internal/pkg/chat/application/domain"
	repository "collabhub-realtime/internal/pkg/chat/persistence/repository/port"
)

// MarkConversationReadInput selects the conversation whose incoming messages the reader has seen.
type MarkConversationReadInput struct {
	ConversationID string
	ReaderID       string
}

// MarkConversationReadUseCase flips the reader's unread messages in a conversation to read.
type MarkConversationReadUseCase struct {
	Repo repository.ChatRepository
}

func NewMarkConversationReadUseCase(repo repository.ChatRepository) *MarkConversationReadUseCase {
	return &MarkConversationReadUseCase{Repo: repo}
}

// Execute returns the reader's remaining unread count for the conversation.
func (uc *MarkConversationReadUseCase) Execute(ctx context.Context, in MarkConversationReadInput) (int, error) {
	a, b, ok := chat.ParticipantsOf(in.ConversationID)
	if !ok {
		return 0, chat.Invalid("conversationId", "is malformed")
	}
	if in.ReaderID != a && in.ReaderID != b {
		return 0, chat.ErrNotParticipant
	}
	return withRetry(ctx, func(ctx context.Context) (int, error) {
		return uc.Repo.MarkMessagesRead(ctx, in.ConversationID, in.ReaderID)
	})
}
