package usecase

import (
	"context"
	"errors"
	"fmt"

	chat "collabhub-realtime/internal/pkg/chat/application/domain"
)

// ErrPersistence indicates an infrastructure/repository failure inside a use case
var ErrPersistence = fmt.Errorf("chat use case persistence error")

// isDomainError reports errors that are final answers from the store, not failures.
func isDomainError(err error) bool {
	return chat.IsValidation(err) ||
		errors.Is(err, chat.ErrNotParticipant) ||
		errors.Is(err, chat.ErrConversationAbsent)
}

// withRetry runs a store call and retries it once when it fails for an infrastructure
// reason. Store writes are transactional and appends are keyed by the draft id, so a
// retry of an attempt that did commit stores nothing new. Infrastructure errors are
// returned wrapped in ErrPersistence.
func withRetry[T any](ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	out, err := fn(ctx)
	if err == nil || isDomainError(err) {
		return out, err
	}
	if ctx.Err() == nil {
		out, err = fn(ctx)
		if err == nil || isDomainError(err) {
			return out, err
		}
	}
	var zero T
	return zero, fmt.Errorf("%w: %w", ErrPersistence, err)
}
