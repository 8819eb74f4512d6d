package engine

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"collabhub-realtime/internal/infrastructure/realtime"
	chat "collabhub-realtime/internal/pkg/chat/application/domain"
	"collabhub-realtime/internal/pkg/chat/application/event"
	"collabhub-realtime/internal/pkg/chat/application/usecase"
	"collabhub-realtime/internal/pkg/chat/persistence/repository/adapter"
	repository "collabhub-realtime/internal/pkg/chat/persistence/repository/port"
)

// recorder is a live connection that keeps every envelope it receives.
type recorder struct {
	id     string
	userID string

	mu     sync.Mutex
	events []event.Envelope
}

func newRecorder(userID string) *recorder {
	return &recorder{id: uuid.NewString(), userID: userID}
}

func (r *recorder) ID() string     { return r.id }
func (r *recorder) UserID() string { return r.userID }

func (r *recorder) Send(payload []byte) error {
	var env event.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return err
	}
	r.mu.Lock()
	r.events = append(r.events, env)
	r.mu.Unlock()
	return nil
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		out = append(out, e.Type)
	}
	return out
}

func (r *recorder) last(t *testing.T, typ string) map[string]any {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := len(r.events) - 1; i >= 0; i-- {
		if r.events[i].Type == typ {
			var data map[string]any
			require.NoError(t, json.Unmarshal(r.events[i].Data, &data))
			return data
		}
	}
	t.Fatalf("no %s event among %d", typ, len(r.events))
	return nil
}

func (r *recorder) reset() {
	r.mu.Lock()
	r.events = nil
	r.mu.Unlock()
}

// failingRepo fails appends until healthy is set.
type failingRepo struct {
	repository.ChatRepository
	fail  atomic.Int32
	calls atomic.Int32
}

func (f *failingRepo) AppendMessage(ctx context.Context, d chat.Draft) (*chat.Message, error) {
	f.calls.Add(1)
	if f.fail.Add(-1) >= 0 {
		return nil, errors.New("store unavailable")
	}
	return f.ChatRepository.AppendMessage(ctx, d)
}

type harness struct {
	repo     *failingRepo
	registry *realtime.Registry
	router   *Router
}

func newHarness(t *testing.T, opts Options) *harness {
	t.Helper()
	store, err := adapter.OpenSQLite(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	repo := &failingRepo{ChatRepository: store}
	registry := realtime.NewRegistry()
	presence := realtime.NewPresence(registry)
	return &harness{repo: repo, registry: registry, router: NewRouter(repo, registry, presence, opts)}
}

func (h *harness) connect(userID string) *recorder {
	rec := newRecorder(userID)
	h.registry.Register(rec)
	return rec
}

func TestSendMessageFansOutToEveryDevice(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{NotifyOnMessage: true})
	alicePhone, aliceLaptop := h.connect("alice"), h.connect("alice")
	bob := h.connect("bob")
	carol := h.connect("carol")

	msg, err := h.router.SendMessage(ctx, alicePhone, "alice", event.SendMessage{ReceiverID: "bob", Content: "hi bob"})
	require.NoError(t, err)
	assert.Equal(t, "alice:bob", msg.ConversationID)

	for _, rec := range []*recorder{alicePhone, aliceLaptop} {
		sent := rec.last(t, event.TypeMessageSent)
		assert.Equal(t, true, sent["isMine"])
		assert.Equal(t, "hi bob", sent["content"])
		assert.Equal(t, msg.ID, sent["id"])
		assert.NotContains(t, rec.types(), event.TypeMessageNew)
	}

	got := bob.last(t, event.TypeMessageNew)
	assert.Equal(t, false, got["isMine"])
	assert.Equal(t, "alice", got["senderId"])
	assert.Contains(t, bob.types(), event.TypeNotificationNew)
	assert.Equal(t, float64(1), bob.last(t, event.TypeNotificationUnreadCount)["count"])

	assert.Empty(t, carol.types())
}

func TestSendMessageToOfflineUserIsDurable(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{NotifyOnMessage: true})
	alice := h.connect("alice")

	for _, text := range []string{"first", "second"} {
		_, err := h.router.SendMessage(ctx, alice, "alice", event.SendMessage{ReceiverID: "bob", Content: text})
		require.NoError(t, err)
	}

	snap, err := h.router.Resync.OnConnect(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, 2, snap.UnreadMessageCount)
	assert.Equal(t, 2, snap.UnreadNotificationCount)
	require.Len(t, snap.Conversations, 1)
	assert.Equal(t, "second", snap.Conversations[0].LastMessage)
	require.Len(t, snap.RecentNotifications, 2)
	assert.Equal(t, chat.NotificationMessage, snap.RecentNotifications[0].Type)

	bob := h.connect("bob")
	require.NoError(t, h.router.Connect(ctx, bob))
	assert.Equal(t, []string{event.TypeNotificationsRecent, event.TypeNotificationUnreadCount, event.TypeConversationsSummary}, bob.types())
	assert.Equal(t, float64(2), bob.last(t, event.TypeConversationsSummary)["unreadCount"])
}

func TestResyncOfUnknownUserIsEmpty(t *testing.T) {
	h := newHarness(t, Options{})
	snap, err := h.router.Resync.OnConnect(context.Background(), "nobody")
	require.NoError(t, err)
	assert.NotNil(t, snap.RecentNotifications)
	assert.NotNil(t, snap.Conversations)
	assert.Zero(t, snap.UnreadMessageCount)

	payload, err := event.Encode(snap.Events()[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"notifications:recent","data":{"notifications":[]}}`, string(payload))
}

func TestSendMessageValidationGoesToOriginOnly(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})
	phone, laptop := h.connect("alice"), h.connect("alice")
	bob := h.connect("bob")

	_, err := h.router.SendMessage(ctx, phone, "alice", event.SendMessage{ReceiverID: "bob", Content: "   "})
	require.Error(t, err)
	assert.ErrorIs(t, err, chat.ErrEmptyMessage)

	assert.Equal(t, []string{event.TypeMessageError}, phone.types())
	assert.Equal(t, "content", phone.last(t, event.TypeMessageError)["field"])
	assert.Empty(t, laptop.types())
	assert.Empty(t, bob.types())
	assert.Zero(t, h.repo.calls.Load())
}

func TestSendMessageRetriesStoreOnce(t *testing.T) {
	ctx := context.Background()

	t.Run("transient", func(t *testing.T) {
		h := newHarness(t, Options{})
		alice, bob := h.connect("alice"), h.connect("bob")
		h.repo.fail.Store(1)

		_, err := h.router.SendMessage(ctx, alice, "alice", event.SendMessage{ReceiverID: "bob", Content: "retry me"})
		require.NoError(t, err)
		assert.Equal(t, int32(2), h.repo.calls.Load())
		assert.Contains(t, bob.types(), event.TypeMessageNew)
	})

	t.Run("persistent", func(t *testing.T) {
		h := newHarness(t, Options{})
		alice, bob := h.connect("alice"), h.connect("bob")
		h.repo.fail.Store(2)

		_, err := h.router.SendMessage(ctx, alice, "alice", event.SendMessage{ReceiverID: "bob", Content: "lost"})
		assert.ErrorIs(t, err, usecase.ErrPersistence)
		assert.Equal(t, "failed to send message", alice.last(t, event.TypeMessageError)["error"])
		assert.Empty(t, bob.types())

		msgs, err := h.repo.ListMessages(ctx, "alice:bob", 10, 0)
		require.NoError(t, err)
		assert.Empty(t, msgs)
	})
}

func TestConcurrentSendsKeepDurableOrder(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})
	alice, bob := h.connect("alice"), h.connect("bob")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			from, to := "alice", "bob"
			if i%2 == 1 {
				from, to = "bob", "alice"
			}
			_, err := h.router.SendMessage(ctx, nil, from, event.SendMessage{ReceiverID: to, Content: "ping"})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	stored, err := h.repo.ListMessages(ctx, "alice:bob", 100, 0)
	require.NoError(t, err)
	require.Len(t, stored, 20)

	seen := func(rec *recorder) []string {
		rec.mu.Lock()
		defer rec.mu.Unlock()
		var ids []string
		for _, e := range rec.events {
			if e.Type != event.TypeMessageNew && e.Type != event.TypeMessageSent {
				continue
			}
			var m struct {
				ID string `json:"id"`
			}
			require.NoError(t, json.Unmarshal(e.Data, &m))
			ids = append(ids, m.ID)
		}
		return ids
	}
	var want []string
	for _, m := range stored {
		want = append(want, m.ID)
	}
	assert.Equal(t, want, seen(alice))
	assert.Equal(t, want, seen(bob))
}

func TestTyping(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})
	alice := h.connect("alice")

	// offline target: dropped, nothing replayed once the target connects
	require.NoError(t, h.router.Typing(ctx, "alice", "bob"))

	bob := h.connect("bob")
	assert.NotContains(t, bob.types(), event.TypeMessageTyping)
	require.NoError(t, h.router.Typing(ctx, "alice", "bob"))
	assert.Equal(t, "alice", bob.last(t, event.TypeMessageTyping)["fromUserId"])
	assert.Empty(t, alice.types())

	assert.True(t, chat.IsValidation(h.router.Typing(ctx, "alice", "alice")))
	assert.True(t, chat.IsValidation(h.router.Typing(ctx, "alice", "")))
}

func TestMarkNotificationsRead(t *testing.T) {
	ctx := context.Background()

	seed := func(t *testing.T, h *harness) []string {
		var ids []string
		for _, title := range []string{"Application received", "Agreement signed"} {
			n, err := h.router.Notify(ctx, usecase.CreateNotificationInput{RecipientID: "bob", Type: chat.NotificationApplication, Title: title})
			require.NoError(t, err)
			ids = append(ids, n.ID)
		}
		return ids
	}

	t.Run("replies to origin by default", func(t *testing.T) {
		h := newHarness(t, Options{})
		phone, laptop := h.connect("bob"), h.connect("bob")
		ids := seed(t, h)
		phone.reset()
		laptop.reset()

		count, err := h.router.MarkNotificationsRead(ctx, phone, "bob", event.MarkNotificationsRead{IDs: ids[:1]})
		require.NoError(t, err)
		assert.Equal(t, 1, count)
		assert.Equal(t, float64(1), phone.last(t, event.TypeNotificationUnreadCount)["count"])
		assert.Empty(t, laptop.types())

		for i := 0; i < 2; i++ {
			count, err = h.router.MarkNotificationsRead(ctx, phone, "bob", event.MarkNotificationsRead{All: true})
			require.NoError(t, err)
			assert.Zero(t, count)
		}
	})

	t.Run("self fanout reaches every device", func(t *testing.T) {
		h := newHarness(t, Options{MarkReadSelfFanout: true})
		phone, laptop := h.connect("bob"), h.connect("bob")
		seed(t, h)
		laptop.reset()

		_, err := h.router.MarkNotificationsRead(ctx, phone, "bob", event.MarkNotificationsRead{All: true})
		require.NoError(t, err)
		assert.Equal(t, float64(0), laptop.last(t, event.TypeNotificationUnreadCount)["count"])
	})

	t.Run("invalid selector", func(t *testing.T) {
		h := newHarness(t, Options{})
		phone := h.connect("bob")
		_, err := h.router.MarkNotificationsRead(ctx, phone, "bob", event.MarkNotificationsRead{IDs: []string{"nope"}})
		assert.True(t, chat.IsValidation(err))
		assert.Equal(t, "ids", phone.last(t, event.TypeMessageError)["field"])
	})
}

func TestMarkConversationRead(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})
	bob := h.connect("bob")

	for i := 0; i < 3; i++ {
		_, err := h.router.SendMessage(ctx, nil, "alice", event.SendMessage{ReceiverID: "bob", Content: "hey"})
		require.NoError(t, err)
	}
	bob.reset()

	left, err := h.router.MarkConversationRead(ctx, bob, "bob", event.ReadConversation{ConversationID: "alice:bob"})
	require.NoError(t, err)
	assert.Zero(t, left)
	summary := bob.last(t, event.TypeConversationsSummary)
	assert.Equal(t, float64(0), summary["unreadCount"])

	_, err = h.router.MarkConversationRead(ctx, bob, "bob", event.ReadConversation{ConversationID: "alice:carol"})
	assert.ErrorIs(t, err, chat.ErrNotParticipant)
	assert.Equal(t, "not a participant in this conversation", bob.last(t, event.TypeMessageError)["error"])
}

func TestNotifyPushesNewAndCount(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, Options{})
	phone, laptop := h.connect("bob"), h.connect("bob")
	ref := "/agreements/42"

	n, err := h.router.Notify(ctx, usecase.CreateNotificationInput{
		RecipientID: "bob",
		Type:        chat.NotificationAgreement,
		Title:       "Agreement ready",
		Message:     "Please review",
		ActionRef:   &ref,
	})
	require.NoError(t, err)

	for _, rec := range []*recorder{phone, laptop} {
		assert.Equal(t, []string{event.TypeNotificationNew, event.TypeNotificationUnreadCount}, rec.types())
		got := rec.last(t, event.TypeNotificationNew)
		assert.Equal(t, n.ID, got["id"])
		assert.Equal(t, ref, got["actionRef"])
		assert.Equal(t, float64(1), rec.last(t, event.TypeNotificationUnreadCount)["count"])
	}

	_, err = h.router.Notify(ctx, usecase.CreateNotificationInput{RecipientID: "bob", Type: "spam", Title: "x"})
	assert.True(t, chat.IsValidation(err))
}

func TestErrorEvent(t *testing.T) {
	assert.Equal(t, event.MessageError{Error: "is too long", Field: "content"}, ErrorEvent(chat.Invalid("content", "is too long"), "x"))
	assert.Equal(t, event.MessageError{Error: "conversation not found"}, ErrorEvent(chat.ErrConversationAbsent, "x"))
	assert.Equal(t, event.MessageError{Error: "x: timed out"}, ErrorEvent(context.DeadlineExceeded, "x"))
	assert.Equal(t, event.MessageError{Error: "x"}, ErrorEvent(errors.New("pq: broken pipe"), "x"))
}
