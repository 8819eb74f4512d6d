package usecase

import (
	"context"

	chat "collabhub-realtime/internal/pkg/chat/application/domain"
	repository "collabhub-realtime/internal/pkg/chat/persistence/repository/port"
)

// MarkNotificationsReadInput selects notifications by id, or all of them.
type MarkNotificationsReadInput struct {
	RecipientID string
	IDs         []string
	All         bool
}

// MarkNotificationsReadUseCase marks notifications read. Already-read entries are untouched.
type MarkNotificationsReadUseCase struct {
	Repo repository.ChatRepository
}

func NewMarkNotificationsReadUseCase(repo repository.ChatRepository) *MarkNotificationsReadUseCase {
	return &MarkNotificationsReadUseCase{Repo: repo}
}

// Execute returns the recipient's new unread total.
func (uc *MarkNotificationsReadUseCase) Execute(ctx context.Context, in MarkNotificationsReadInput) (int, error) {
	if err := chat.ValidateUserID("recipientId", in.RecipientID); err != nil {
		return 0, err
	}
	req := chat.MarkReadRequest{IDs: in.IDs, All: in.All}
	if err := req.Validate(); err != nil {
		return 0, err
	}
	return withRetry(ctx, func(ctx context.Context) (int, error) {
		return uc.Repo.MarkNotificationsRead(ctx, in.RecipientID, req)
	})
}
