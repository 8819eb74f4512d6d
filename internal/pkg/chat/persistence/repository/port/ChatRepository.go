package repository

import (
	"context"

	chat "collabhub-realtime/internal/pkg/chat/application/domain"
)

// ChatRepository is the durable conversation/notification store consumed by the engine.
// It is the single source of truth; every write is atomic.
type ChatRepository interface {
	// FindOrCreateConversation returns the canonical conversation of the pair, creating it lazily.
	FindOrCreateConversation(ctx context.Context, userA, userB string) (*chat.Conversation, error)
	// GetConversation returns chat.ErrConversationAbsent when the id is unknown.
	GetConversation(ctx context.Context, conversationID string) (*chat.Conversation, error)
	// AppendMessage persists the message, updates lastMessage/lastMessageAt and increments the
	// receiver's unread counter in one transaction. Concurrent appends into the same
	// conversation are serialized.
	AppendMessage(ctx context.Context, d chat.Draft) (*chat.Message, error)
	ListConversations(ctx context.Context, userID string) ([]chat.ConversationSummary, error)
	// ListMessages returns messages ordered by created_at then seq.
	ListMessages(ctx context.Context, conversationID string, limit int, offset int) ([]chat.Message, error)
	// MarkMessagesRead flips recipient's messages to read and returns the new unread count.
	MarkMessagesRead(ctx context.Context, conversationID string, recipientID string) (int, error)
	UnreadMessageCount(ctx context.Context, userID string) (int, error)

	CreateNotification(ctx context.Context, d chat.NotificationDraft) (*chat.Notification, error)
	// MarkNotificationsRead is idempotent and returns the recipient's new unread total.
	MarkNotificationsRead(ctx context.Context, recipientID string, req chat.MarkReadRequest) (int, error)
	// ListRecentNotifications returns at most limit notifications, newest first.
	ListRecentNotifications(ctx context.Context, recipientID string, limit int) ([]chat.Notification, error)
	UnreadNotificationCount(ctx context.Context, recipientID string) (int, error)

	Ping(ctx context.Context) error
}
