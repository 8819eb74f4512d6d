package adapter

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	chat "collabhub-realtime/internal/pkg/chat/application/domain"
	repository "collabhub-realtime/internal/pkg/chat/persistence/repository/port"
)

// runContract exercises a ChatRepository implementation. newRepo must return an
// empty store.
func runContract(t *testing.T, newRepo func(t *testing.T) repository.ChatRepository) {
	ctx := context.Background()

	draft := func(t *testing.T, from, to, content string) chat.Draft {
		t.Helper()
		d, err := chat.NewDraft(from, to, content, 0)
		require.NoError(t, err)
		return d
	}

	t.Run("conversation is canonical per pair", func(t *testing.T) {
		repo := newRepo(t)
		c1, err := repo.FindOrCreateConversation(ctx, "bob", "alice")
		require.NoError(t, err)
		c2, err := repo.FindOrCreateConversation(ctx, "alice", "bob")
		require.NoError(t, err)

		assert.Equal(t, "alice:bob", c1.ID)
		assert.Equal(t, c1.ID, c2.ID)
		assert.Equal(t, "alice", c1.ParticipantA)
		assert.Equal(t, "bob", c1.ParticipantB)

		_, err = repo.GetConversation(ctx, "nobody:else")
		assert.ErrorIs(t, err, chat.ErrConversationAbsent)
	})

	t.Run("append updates counters and preview", func(t *testing.T) {
		repo := newRepo(t)
		m1, err := repo.AppendMessage(ctx, draft(t, "alice", "bob", "hello"))
		require.NoError(t, err)
		m2, err := repo.AppendMessage(ctx, draft(t, "alice", "bob", "are you there?"))
		require.NoError(t, err)
		_, err = repo.AppendMessage(ctx, draft(t, "bob", "alice", "yes"))
		require.NoError(t, err)

		assert.Equal(t, "alice:bob", m1.ConversationID)
		assert.Less(t, m1.Seq, m2.Seq)
		assert.False(t, m1.Read)

		conv, err := repo.GetConversation(ctx, "alice:bob")
		require.NoError(t, err)
		assert.Equal(t, 1, conv.UnreadFor("alice"))
		assert.Equal(t, 2, conv.UnreadFor("bob"))
		assert.Equal(t, "yes", conv.LastMessage)
		require.NotNil(t, conv.LastMessageAt)

		bobUnread, err := repo.UnreadMessageCount(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, 2, bobUnread)
	})

	t.Run("attachments round trip", func(t *testing.T) {
		repo := newRepo(t)
		d, err := draft(t, "alice", "bob", "see file").WithAttachment("https://cdn.example/pitch.pdf", "file")
		require.NoError(t, err)
		m, err := repo.AppendMessage(ctx, d)
		require.NoError(t, err)

		msgs, err := repo.ListMessages(ctx, m.ConversationID, 10, 0)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		require.NotNil(t, msgs[0].AttachmentURL)
		require.NotNil(t, msgs[0].AttachmentType)
		assert.Equal(t, "https://cdn.example/pitch.pdf", *msgs[0].AttachmentURL)
		assert.Equal(t, chat.AttachmentFile, *msgs[0].AttachmentType)
	})

	t.Run("messages list oldest first with paging", func(t *testing.T) {
		repo := newRepo(t)
		for i := 0; i < 5; i++ {
			_, err := repo.AppendMessage(ctx, draft(t, "alice", "bob", fmt.Sprintf("m%d", i)))
			require.NoError(t, err)
		}
		msgs, err := repo.ListMessages(ctx, "alice:bob", 3, 1)
		require.NoError(t, err)
		require.Len(t, msgs, 3)
		assert.Equal(t, []string{"m1", "m2", "m3"}, []string{msgs[0].Content, msgs[1].Content, msgs[2].Content})
	})

	t.Run("conversations ordered by activity", func(t *testing.T) {
		repo := newRepo(t)
		_, err := repo.AppendMessage(ctx, draft(t, "alice", "bob", "first"))
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
		_, err = repo.AppendMessage(ctx, draft(t, "carol", "alice", "second"))
		require.NoError(t, err)

		convs, err := repo.ListConversations(ctx, "alice")
		require.NoError(t, err)
		require.Len(t, convs, 2)
		assert.Equal(t, "carol", convs[0].OtherUserID)
		assert.Equal(t, 1, convs[0].UnreadCount)
		assert.Equal(t, "bob", convs[1].OtherUserID)
		assert.Equal(t, 0, convs[1].UnreadCount)
	})

	t.Run("mark messages read", func(t *testing.T) {
		repo := newRepo(t)
		for i := 0; i < 3; i++ {
			_, err := repo.AppendMessage(ctx, draft(t, "alice", "bob", "ping"))
			require.NoError(t, err)
		}
		_, err := repo.AppendMessage(ctx, draft(t, "bob", "alice", "pong"))
		require.NoError(t, err)

		n, err := repo.MarkMessagesRead(ctx, "alice:bob", "bob")
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		n, err = repo.MarkMessagesRead(ctx, "alice:bob", "bob")
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		conv, err := repo.GetConversation(ctx, "alice:bob")
		require.NoError(t, err)
		assert.Equal(t, 0, conv.UnreadFor("bob"))
		assert.Equal(t, 1, conv.UnreadFor("alice"))

		msgs, err := repo.ListMessages(ctx, "alice:bob", 10, 0)
		require.NoError(t, err)
		for _, m := range msgs {
			if m.ReceiverID == "bob" {
				assert.True(t, m.Read)
				assert.NotNil(t, m.ReadAt)
			} else {
				assert.False(t, m.Read)
			}
		}

		_, err = repo.MarkMessagesRead(ctx, "alice:bob", "mallory")
		assert.ErrorIs(t, err, chat.ErrNotParticipant)
		_, err = repo.MarkMessagesRead(ctx, "x:y", "x")
		assert.ErrorIs(t, err, chat.ErrConversationAbsent)
	})

	t.Run("concurrent appends never lose an increment", func(t *testing.T) {
		repo := newRepo(t)
		const senders, each = 4, 10
		var wg sync.WaitGroup
		errs := make(chan error, senders*each)
		for s := 0; s < senders; s++ {
			drafts := make([]chat.Draft, each)
			for i := range drafts {
				drafts[i] = draft(t, "alice", "bob", "hi")
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				for _, d := range drafts {
					_, err := repo.AppendMessage(ctx, d)
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		conv, err := repo.GetConversation(ctx, "alice:bob")
		require.NoError(t, err)
		assert.Equal(t, senders*each, conv.UnreadFor("bob"))

		msgs, err := repo.ListMessages(ctx, "alice:bob", 100, 0)
		require.NoError(t, err)
		require.Len(t, msgs, senders*each)
		for i := 1; i < len(msgs); i++ {
			assert.Less(t, msgs[i-1].Seq, msgs[i].Seq, "list order follows durable order")
		}
	})

	t.Run("unread counter matches rows under interleaved sends and reads", func(t *testing.T) {
		repo := newRepo(t)
		const workers, each = 4, 25
		var wg sync.WaitGroup
		errs := make(chan error, 2*workers*each)
		for w := 0; w < workers; w++ {
			drafts := make([]chat.Draft, each)
			for i := range drafts {
				drafts[i] = draft(t, "alice", "bob", fmt.Sprintf("w%d-%d", w, i))
			}
			wg.Add(2)
			go func() {
				defer wg.Done()
				for _, d := range drafts {
					_, err := repo.AppendMessage(ctx, d)
					errs <- err
				}
			}()
			go func() {
				defer wg.Done()
				for i := 0; i < each; i++ {
					_, err := repo.MarkMessagesRead(ctx, "alice:bob", "bob")
					// the first reads can run before any append created the conversation
					if errors.Is(err, chat.ErrConversationAbsent) {
						err = nil
					}
					errs <- err
				}
			}()
		}
		wg.Wait()
		close(errs)
		for err := range errs {
			require.NoError(t, err)
		}

		msgs, err := repo.ListMessages(ctx, "alice:bob", 1000, 0)
		require.NoError(t, err)
		require.Len(t, msgs, workers*each)
		unread := 0
		for _, m := range msgs {
			if m.ReceiverID == "bob" && !m.Read {
				unread++
			}
		}

		conv, err := repo.GetConversation(ctx, "alice:bob")
		require.NoError(t, err)
		assert.Equal(t, unread, conv.UnreadFor("bob"))

		total, err := repo.UnreadMessageCount(ctx, "bob")
		require.NoError(t, err)
		assert.Equal(t, unread, total)
	})

	t.Run("appending the same draft twice stores one message", func(t *testing.T) {
		repo := newRepo(t)
		d := draft(t, "alice", "bob", "once")
		first, err := repo.AppendMessage(ctx, d)
		require.NoError(t, err)
		again, err := repo.AppendMessage(ctx, d)
		require.NoError(t, err)

		assert.Equal(t, d.ID, first.ID)
		assert.Equal(t, first.ID, again.ID)
		assert.Equal(t, first.Seq, again.Seq)
		assert.Equal(t, "once", again.Content)

		msgs, err := repo.ListMessages(ctx, "alice:bob", 10, 0)
		require.NoError(t, err)
		assert.Len(t, msgs, 1)

		conv, err := repo.GetConversation(ctx, "alice:bob")
		require.NoError(t, err)
		assert.Equal(t, 1, conv.UnreadFor("bob"))
	})

	t.Run("notifications", func(t *testing.T) {
		repo := newRepo(t)
		ref := "/agreements/7"
		var ids []string
		for i := 0; i < 3; i++ {
			d, err := chat.NewNotificationDraft("bob", chat.NotificationAgreement, fmt.Sprintf("n%d", i), "body", &ref)
			require.NoError(t, err)
			n, err := repo.CreateNotification(ctx, d)
			require.NoError(t, err)
			ids = append(ids, n.ID)
			time.Sleep(2 * time.Millisecond)
		}
		other, err := chat.NewNotificationDraft("carol", chat.NotificationPayment, "paid", "", nil)
		require.NoError(t, err)
		_, err = repo.CreateNotification(ctx, other)
		require.NoError(t, err)

		recent, err := repo.ListRecentNotifications(ctx, "bob", 2)
		require.NoError(t, err)
		require.Len(t, recent, 2)
		assert.Equal(t, "n2", recent[0].Title)
		assert.Equal(t, "n1", recent[1].Title)
		require.NotNil(t, recent[0].ActionRef)
		assert.Equal(t, ref, *recent[0].ActionRef)

		n, err := repo.MarkNotificationsRead(ctx, "bob", chat.MarkReadRequest{IDs: []string{ids[0], uuid.NewString()}})
		require.NoError(t, err)
		assert.Equal(t, 2, n)

		// ids of another recipient are ignored
		n, err = repo.MarkNotificationsRead(ctx, "carol", chat.MarkReadRequest{IDs: []string{ids[1]}})
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		n, err = repo.MarkNotificationsRead(ctx, "bob", chat.MarkReadRequest{All: true})
		require.NoError(t, err)
		assert.Equal(t, 0, n)
		n, err = repo.MarkNotificationsRead(ctx, "bob", chat.MarkReadRequest{All: true})
		require.NoError(t, err)
		assert.Equal(t, 0, n)

		unread, err := repo.UnreadNotificationCount(ctx, "carol")
		require.NoError(t, err)
		assert.Equal(t, 1, unread)
	})

	t.Run("ping", func(t *testing.T) {
		require.NoError(t, newRepo(t).Ping(ctx))
	})
}
