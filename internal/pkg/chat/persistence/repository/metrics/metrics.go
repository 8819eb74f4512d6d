package metrics

import (
	"context"
	"time"

	"collabhub-realtime/internal/infrastructure/metrics"
	chat "collabhub-realtime/internal/pkg/chat/application/domain"
	repository "collabhub-realtime/internal/pkg/chat/persistence/repository/port"
)

// Wrap returns a ChatRepository that records StoreLatency for every operation.
func Wrap(inner repository.ChatRepository) repository.ChatRepository {
	return &metricsRepository{inner: inner}
}

type metricsRepository struct {
	inner repository.ChatRepository
}

func observe(op string, start time.Time) {
	metrics.ObserveStore(op, start)
}

func (m *metricsRepository) FindOrCreateConversation(ctx context.Context, userA, userB string) (*chat.Conversation, error) {
	defer observe("find_or_create_conversation", time.Now())
	return m.inner.FindOrCreateConversation(ctx, userA, userB)
}

func (m *metricsRepository) GetConversation(ctx context.Context, conversationID string) (*chat.Conversation, error) {
	defer observe("get_conversation", time.Now())
	return m.inner.GetConversation(ctx, conversationID)
}

func (m *metricsRepository) AppendMessage(ctx context.Context, d chat.Draft) (*chat.Message, error) {
	defer observe("append_message", time.Now())
	return m.inner.AppendMessage(ctx, d)
}

func (m *metricsRepository) ListConversations(ctx context.Context, userID string) ([]chat.ConversationSummary, error) {
	defer observe("list_conversations", time.Now())
	return m.inner.ListConversations(ctx, userID)
}

func (m *metricsRepository) ListMessages(ctx context.Context, conversationID string, limit int, offset int) ([]chat.Message, error) {
	defer observe("list_messages", time.Now())
	return m.inner.ListMessages(ctx, conversationID, limit, offset)
}

func (m *metricsRepository) MarkMessagesRead(ctx context.Context, conversationID string, recipientID string) (int, error) {
	defer observe("mark_messages_read", time.Now())
	return m.inner.MarkMessagesRead(ctx, conversationID, recipientID)
}

func (m *metricsRepository) UnreadMessageCount(ctx context.Context, userID string) (int, error) {
	defer observe("unread_message_count", time.Now())
	return m.inner.UnreadMessageCount(ctx, userID)
}

func (m *metricsRepository) CreateNotification(ctx context.Context, d chat.NotificationDraft) (*chat.Notification, error) {
	defer observe("create_notification", time.Now())
	return m.inner.CreateNotification(ctx, d)
}

func (m *metricsRepository) MarkNotificationsRead(ctx context.Context, recipientID string, req chat.MarkReadRequest) (int, error) {
	defer observe("mark_notifications_read", time.Now())
	return m.inner.MarkNotificationsRead(ctx, recipientID, req)
}

func (m *metricsRepository) ListRecentNotifications(ctx context.Context, recipientID string, limit int) ([]chat.Notification, error) {
	defer observe("list_recent_notifications", time.Now())
	return m.inner.ListRecentNotifications(ctx, recipientID, limit)
}

func (m *metricsRepository) UnreadNotificationCount(ctx context.Context, recipientID string) (int, error) {
	defer observe("unread_notification_count", time.Now())
	return m.inner.UnreadNotificationCount(ctx, recipientID)
}

func (m *metricsRepository) Ping(ctx context.Context) error {
	return m.inner.Ping(ctx)
}
