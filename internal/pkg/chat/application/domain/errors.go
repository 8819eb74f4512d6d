package chat

import (
	"errors"
	"fmt"
)

// Domain-level errors for chat behaviors
var (
	ErrNotParticipant     = errors.New("chat: user is not a participant in the conversation")
	ErrSelfConversation   = errors.New("chat: cannot start a conversation with yourself")
	ErrEmptyMessage       = errors.New("chat: empty message")
	ErrConversationAbsent = errors.New("chat: conversation not found")
)

// ValidationError reports a rejected client input. It never carries store state,
// so callers can return it verbatim to the originating connection.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error on %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Err }

// Invalid builds a ValidationError for field.
func Invalid(field, message string) *ValidationError {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation tells whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
