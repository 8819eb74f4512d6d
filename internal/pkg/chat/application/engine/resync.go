package engine

import (
	"context"
	"fmt"

	"collabhub-realtime/internal/infrastructure/realtime"
	chat "collabhub-realtime/internal/pkg/chat/application/domain"
	"collabhub-realtime/internal/pkg/chat/application/event"
	"collabhub-realtime/internal/pkg/chat/application/usecase"
	repository "collabhub-realtime/internal/pkg/chat/persistence/repository/port"
)

// Snapshot is the state a freshly connected client needs to catch up.
type Snapshot struct {
	RecentNotifications     []chat.Notification
	UnreadNotificationCount int
	UnreadMessageCount      int
	Conversations           []chat.ConversationSummary
}

// Resync builds catch-up snapshots straight from the store; nothing is buffered in
// memory for offline users.
type Resync struct {
	notifications *usecase.ListNotificationsUseCase
	conversations *usecase.ListConversationsUseCase
	unread        *usecase.UnreadCountUseCase
	limit         int
}

func NewResync(repo repository.ChatRepository, limit int) *Resync {
	if limit <= 0 || limit > DefaultRecentLimit {
		limit = DefaultRecentLimit
	}
	return &Resync{
		notifications: usecase.NewListNotificationsUseCase(repo),
		conversations: usecase.NewListConversationsUseCase(repo),
		unread:        usecase.NewUnreadCountUseCase(repo),
		limit:         limit,
	}
}

// OnConnect loads the snapshot for userID.
func (s *Resync) OnConnect(ctx context.Context, userID string) (Snapshot, error) {
	var snap Snapshot
	var err error
	if snap.RecentNotifications, err = s.notifications.Execute(ctx, userID, s.limit); err != nil {
		return Snapshot{}, fmt.Errorf("resync notifications: %w", err)
	}
	counts, err := s.unread.Execute(ctx, userID)
	if err != nil {
		return Snapshot{}, fmt.Errorf("resync unread counts: %w", err)
	}
	snap.UnreadNotificationCount = counts.Notifications
	snap.UnreadMessageCount = counts.Messages
	if snap.Conversations, err = s.conversations.Execute(ctx, userID); err != nil {
		return Snapshot{}, fmt.Errorf("resync conversations: %w", err)
	}
	if snap.RecentNotifications == nil {
		snap.RecentNotifications = []chat.Notification{}
	}
	if snap.Conversations == nil {
		snap.Conversations = []chat.ConversationSummary{}
	}
	return snap, nil
}

// Events renders the snapshot as the events pushed to the new connection.
func (s Snapshot) Events() []event.Outbound {
	return []event.Outbound{
		event.NotificationsRecent{Notifications: s.RecentNotifications},
		event.UnreadCount{Count: s.UnreadNotificationCount},
		event.ConversationsSummary{Conversations: s.Conversations, UnreadCount: s.UnreadMessageCount},
	}
}

// Push writes the snapshot to h only.
func (s Snapshot) Push(h realtime.Handle) {
	for _, ev := range s.Events() {
		reply(h, ev)
	}
}

// Connect runs OnConnect for a newly registered connection and pushes the result to it.
func (r *Router) Connect(ctx context.Context, h realtime.Handle) error {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	snap, err := r.Resync.OnConnect(ctx, h.UserID())
	if err != nil {
		return err
	}
	snap.Push(h)
	return nil
}
