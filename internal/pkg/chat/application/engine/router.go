// Package engine routes client and subsystem events to the store and then to the
// right set of live connections.
package engine

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"collabhub-realtime/internal/infrastructure/realtime"
	chat "collabhub-realtime/internal/pkg/chat/application/domain"
	"collabhub-realtime/internal/pkg/chat/application/event"
	"collabhub-realtime/internal/pkg/chat/application/usecase"
	repository "collabhub-realtime/internal/pkg/chat/persistence/repository/port"
)

const (
	DefaultOperationTimeout = 5 * time.Second
	DefaultRecentLimit      = 50

	conversationStripes = 256
)

// Options tunes the Router. Zero values take defaults, except the two booleans.
type Options struct {
	OperationTimeout        time.Duration
	MaxMessageLength        int
	RecentNotificationLimit int
	// NotifyOnMessage raises a "message" notification for the receiver of every message.
	NotifyOnMessage bool
	// MarkReadSelfFanout pushes unread updates to all of the reader's connections
	// instead of only the one that asked.
	MarkReadSelfFanout bool
}

func (o Options) withDefaults() Options {
	if o.OperationTimeout <= 0 {
		o.OperationTimeout = DefaultOperationTimeout
	}
	if o.MaxMessageLength <= 0 {
		o.MaxMessageLength = chat.DefaultMaxMessageLength
	}
	if o.RecentNotificationLimit <= 0 || o.RecentNotificationLimit > DefaultRecentLimit {
		o.RecentNotificationLimit = DefaultRecentLimit
	}
	return o
}

// Router is the event router. Appends and fanout of one conversation happen under
// that conversation's stripe so every live connection sees durable order.
type Router struct {
	opts     Options
	fanout   Fanout
	presence *realtime.Presence

	stripes [conversationStripes]sync.Mutex

	sendMessage      *usecase.SendMessageUseCase
	markConversation *usecase.MarkConversationReadUseCase
	listConvs        *usecase.ListConversationsUseCase
	createNotif      *usecase.CreateNotificationUseCase
	markNotifs       *usecase.MarkNotificationsReadUseCase
	unread           *usecase.UnreadCountUseCase

	Resync *Resync
}

func NewRouter(repo repository.ChatRepository, fanout Fanout, presence *realtime.Presence, opts Options) *Router {
	opts = opts.withDefaults()
	return &Router{
		opts:             opts,
		fanout:           fanout,
		presence:         presence,
		sendMessage:      usecase.NewSendMessageUseCase(repo, opts.MaxMessageLength),
		markConversation: usecase.NewMarkConversationReadUseCase(repo),
		listConvs:        usecase.NewListConversationsUseCase(repo),
		createNotif:      usecase.NewCreateNotificationUseCase(repo),
		markNotifs:       usecase.NewMarkNotificationsReadUseCase(repo),
		unread:           usecase.NewUnreadCountUseCase(repo),
		Resync:           NewResync(repo, opts.RecentNotificationLimit),
	}
}

// Options returns the effective options.
func (r *Router) Options() Options { return r.opts }

func (r *Router) lockConversation(conversationID string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(conversationID))
	mu := &r.stripes[h.Sum32()%conversationStripes]
	mu.Lock()
	return mu.Unlock
}

func (r *Router) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.opts.OperationTimeout)
}

// SendMessage stores a message from senderID and fans it out: message:sent to every
// connection of the sender, message:new to every connection of the receiver. On
// failure only origin receives message:error. origin may be nil for non-socket callers.
func (r *Router) SendMessage(ctx context.Context, origin realtime.Handle, senderID string, in event.SendMessage) (*chat.Message, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	unlock := r.lockConversation(chat.CanonicalConversationID(senderID, in.ReceiverID))
	msg, err := r.sendMessage.Execute(ctx, usecase.SendMessageInput{
		SenderID:       senderID,
		ReceiverID:     in.ReceiverID,
		Content:        in.Content,
		AttachmentURL:  in.AttachmentURL,
		AttachmentType: in.AttachmentType,
	})
	if err == nil {
		emit(r.fanout, msg.SenderID, event.NewMessage(*msg, msg.SenderID))
		emit(r.fanout, msg.ReceiverID, event.NewMessage(*msg, msg.ReceiverID))
	}
	unlock()

	if err != nil {
		r.replyError(origin, err, "failed to send message")
		log.Warn("send message failed", "sender", senderID, "receiver", in.ReceiverID, "err", err)
		return nil, err
	}

	if r.opts.NotifyOnMessage {
		if _, nerr := r.notify(ctx, chat.MessageNotification(*msg)); nerr != nil {
			log.Warn("message notification failed", "conversation", msg.ConversationID, "receiver", msg.ReceiverID, "err", nerr)
		}
	}
	return msg, nil
}

// Typing forwards a typing signal to the target's live connections. It is dropped
// silently when the target is offline and never echoed to the sender.
func (r *Router) Typing(ctx context.Context, fromUserID, towardUserID string) error {
	if err := chat.ValidateUserID("receiverId", towardUserID); err != nil {
		return err
	}
	if fromUserID == towardUserID {
		return &chat.ValidationError{Field: "receiverId", Message: "cannot signal yourself", Err: chat.ErrSelfConversation}
	}
	if !r.presence.IsOnline(towardUserID) {
		return nil
	}
	r.presence.SetTyping(fromUserID, towardUserID)
	emit(r.fanout, towardUserID, event.TypingIndicator{FromUserID: fromUserID})
	return nil
}

// MarkNotificationsRead marks the selected notifications read and returns the new
// unread total, which is pushed to origin (or every connection of the user when
// MarkReadSelfFanout is on).
func (r *Router) MarkNotificationsRead(ctx context.Context, origin realtime.Handle, userID string, in event.MarkNotificationsRead) (int, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	count, err := r.markNotifs.Execute(ctx, usecase.MarkNotificationsReadInput{RecipientID: userID, IDs: in.IDs, All: in.All})
	if err != nil {
		r.replyError(origin, err, "failed to mark notifications read")
		return 0, err
	}
	r.pushToReader(origin, userID, event.UnreadCount{Count: count})
	return count, nil
}

// MarkConversationRead marks every message of the conversation addressed to userID
// read. The refreshed conversation summary goes to the reader under the same policy
// as MarkNotificationsRead.
func (r *Router) MarkConversationRead(ctx context.Context, origin realtime.Handle, userID string, in event.ReadConversation) (int, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	unlock := r.lockConversation(in.ConversationID)
	count, err := r.markConversation.Execute(ctx, usecase.MarkConversationReadInput{ConversationID: in.ConversationID, ReaderID: userID})
	unlock()
	if err != nil {
		r.replyError(origin, err, "failed to mark conversation read")
		return 0, err
	}

	if origin != nil || r.opts.MarkReadSelfFanout {
		summary, err := r.summary(ctx, userID)
		if err != nil {
			log.Warn("conversation summary after read failed", "user", userID, "err", err)
			return count, nil
		}
		r.pushToReader(origin, userID, summary)
	}
	return count, nil
}

// Notify persists a notification, pushes notification:new to all the recipient's
// connections and then the recomputed notification:unread_count.
func (r *Router) Notify(ctx context.Context, in usecase.CreateNotificationInput) (*chat.Notification, error) {
	ctx, cancel := r.bound(ctx)
	defer cancel()

	draft, err := chat.NewNotificationDraft(in.RecipientID, in.Type, in.Title, in.Message, in.ActionRef)
	if err != nil {
		return nil, err
	}
	return r.notify(ctx, draft)
}

func (r *Router) notify(ctx context.Context, draft chat.NotificationDraft) (*chat.Notification, error) {
	n, err := r.createNotif.ExecuteDraft(ctx, draft)
	if err != nil {
		return nil, err
	}
	emit(r.fanout, n.RecipientID, event.NotificationNew{Notification: *n})

	count, err := r.unread.Notifications(ctx, n.RecipientID)
	if err != nil {
		log.Warn("recount unread notifications", "recipient", n.RecipientID, "err", err)
		return n, nil
	}
	emit(r.fanout, n.RecipientID, event.UnreadCount{Count: count})
	return n, nil
}

func (r *Router) summary(ctx context.Context, userID string) (event.ConversationsSummary, error) {
	convs, err := r.listConvs.Execute(ctx, userID)
	if err != nil {
		return event.ConversationsSummary{}, err
	}
	total := 0
	for _, c := range convs {
		total += c.UnreadCount
	}
	return event.ConversationsSummary{Conversations: convs, UnreadCount: total}, nil
}

func (r *Router) pushToReader(origin realtime.Handle, userID string, ev event.Outbound) {
	if r.opts.MarkReadSelfFanout {
		emit(r.fanout, userID, ev)
		return
	}
	reply(origin, ev)
}

// replyError sends message:error to origin. Store failures are reported with the
// generic text; validation problems carry their own message.
func (r *Router) replyError(origin realtime.Handle, err error, generic string) {
	if origin == nil {
		return
	}
	reply(origin, ErrorEvent(err, generic))
}

// ErrorEvent maps err to the message:error payload shown to clients.
func ErrorEvent(err error, generic string) event.MessageError {
	var ve *chat.ValidationError
	switch {
	case errors.As(err, &ve):
		return event.MessageError{Error: ve.Message, Field: ve.Field}
	case errors.Is(err, chat.ErrNotParticipant):
		return event.MessageError{Error: "not a participant in this conversation"}
	case errors.Is(err, chat.ErrConversationAbsent):
		return event.MessageError{Error: "conversation not found"}
	case errors.Is(err, context.DeadlineExceeded):
		return event.MessageError{Error: generic + ": timed out"}
	default:
		return event.MessageError{Error: generic}
	}
}
