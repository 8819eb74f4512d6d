// Package event defines the client wire protocol: a JSON envelope {"type", "data"}
// carrying one of a closed set of inbound or outbound variants.
package event

import (
	"encoding/json"
	"errors"
	"fmt"

	chat "collabhub-realtime/internal/pkg/chat/application/domain"
)

// Inbound event types.
const (
	TypeMessageSend          = "message:send"
	TypeMessageTyping        = "message:typing"
	TypeMessageRead          = "message:read"
	TypeNotificationMarkRead = "notification:mark_read"
)

// Outbound event types. message:typing is shared with the inbound set.
const (
	TypeMessageNew              = "message:new"
	TypeMessageSent             = "message:sent"
	TypeMessageError            = "message:error"
	TypeNotificationNew         = "notification:new"
	TypeNotificationUnreadCount = "notification:unread_count"
	TypeNotificationsRecent     = "notifications:recent"
	TypeConversationsSummary    = "conversations:summary"
	TypeConnected               = "connected"
)

var (
	ErrMalformed   = errors.New("event: malformed frame")
	ErrUnknownType = errors.New("event: unknown event type")
)

// Envelope is the frame exchanged on the websocket.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Inbound is a client -> server event.
type Inbound interface {
	Type() string
	inbound()
}

type SendMessage struct {
	ReceiverID     string `json:"receiverId"`
	Content        string `json:"content"`
	AttachmentURL  string `json:"attachmentUrl,omitempty"`
	AttachmentType string `json:"attachmentType,omitempty"`
}

type Typing struct {
	ReceiverID string `json:"receiverId"`
}

// ReadConversation marks every message of a conversation addressed to the caller read.
type ReadConversation struct {
	ConversationID string `json:"conversationId"`
}

type MarkNotificationsRead struct {
	IDs []string `json:"ids,omitempty"`
	All bool     `json:"all,omitempty"`
}

func (SendMessage) Type() string           { return TypeMessageSend }
func (Typing) Type() string                { return TypeMessageTyping }
func (ReadConversation) Type() string      { return TypeMessageRead }
func (MarkNotificationsRead) Type() string { return TypeNotificationMarkRead }

func (SendMessage) inbound()           {}
func (Typing) inbound()                {}
func (ReadConversation) inbound()      {}
func (MarkNotificationsRead) inbound() {}

// Decode parses one client frame into its variant.
func Decode(raw []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var in Inbound
	var err error
	switch env.Type {
	case TypeMessageSend:
		in, err = decodeData[SendMessage](env.Data)
	case TypeMessageTyping:
		in, err = decodeData[Typing](env.Data)
	case TypeMessageRead:
		in, err = decodeData[ReadConversation](env.Data)
	case TypeNotificationMarkRead:
		in, err = decodeData[MarkNotificationsRead](env.Data)
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, env.Type)
	}
	if err != nil {
		return nil, err
	}
	return in, nil
}

func decodeData[T any](data json.RawMessage) (T, error) {
	var v T
	if len(data) == 0 || string(data) == "null" {
		return v, nil
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return v, nil
}

// Outbound is a server -> client event.
type Outbound interface {
	Type() string
	outbound()
}

// MessagePayload is a message as seen by one specific connection.
type MessagePayload struct {
	chat.Message
	IsMine bool `json:"isMine"`
}

// MessageNew goes to the receiver's connections.
type MessageNew struct{ MessagePayload }

// MessageSent echoes a stored message to every connection of its sender.
type MessageSent struct{ MessagePayload }

type MessageError struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

type TypingIndicator struct {
	FromUserID string `json:"fromUserId"`
}

type NotificationNew struct {
	chat.Notification
}

type UnreadCount struct {
	Count int `json:"count"`
}

type NotificationsRecent struct {
	Notifications []chat.Notification `json:"notifications"`
}

type ConversationsSummary struct {
	Conversations []chat.ConversationSummary `json:"conversations"`
	UnreadCount   int                        `json:"unreadCount"`
}

type Connected struct {
	UserID       string `json:"userId"`
	ConnectionID string `json:"connectionId"`
}

func (MessageNew) Type() string           { return TypeMessageNew }
func (MessageSent) Type() string          { return TypeMessageSent }
func (MessageError) Type() string         { return TypeMessageError }
func (TypingIndicator) Type() string      { return TypeMessageTyping }
func (NotificationNew) Type() string      { return TypeNotificationNew }
func (UnreadCount) Type() string          { return TypeNotificationUnreadCount }
func (NotificationsRecent) Type() string  { return TypeNotificationsRecent }
func (ConversationsSummary) Type() string { return TypeConversationsSummary }
func (Connected) Type() string            { return TypeConnected }

func (MessageNew) outbound()           {}
func (MessageSent) outbound()          {}
func (MessageError) outbound()         {}
func (TypingIndicator) outbound()      {}
func (NotificationNew) outbound()      {}
func (UnreadCount) outbound()          {}
func (NotificationsRecent) outbound()  {}
func (ConversationsSummary) outbound() {}
func (Connected) outbound()            {}

// Encode wraps ev in its envelope.
func Encode(ev Outbound) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", ev.Type(), err)
	}
	return json.Marshal(Envelope{Type: ev.Type(), Data: data})
}

// NewMessage builds the per-viewer message events: message:sent for the sender's
// connections and message:new for the receiver's.
func NewMessage(msg chat.Message, viewer string) Outbound {
	p := MessagePayload{Message: msg, IsMine: msg.SenderID == viewer}
	if p.IsMine {
		return MessageSent{p}
	}
	return MessageNew{p}
}
