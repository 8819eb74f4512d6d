package chat

import (
	"strings"
	"time"
)

// conversationIDSeparator joins the two participant ids of a canonical conversation id.
// User ids containing it are rejected by ValidateUserID.
const conversationIDSeparator = ":"

const maxUserIDLength = 128

// Conversation is the 1:1 thread between two users. It is keyed by the canonical
// id of its participant pair and is never deleted.
type Conversation struct {
	ID            string     `db:"id"`
	ParticipantA  string     `db:"participant_a"` // lexicographically smaller id
	ParticipantB  string     `db:"participant_b"`
	LastMessage   string     `db:"last_message"`
	LastMessageAt *time.Time `db:"last_message_at"`
	UnreadA       int        `db:"unread_a"` // unread messages addressed to ParticipantA
	UnreadB       int        `db:"unread_b"`
	CreatedAt     time.Time  `db:"created_at"`
}

// ConversationSummary is a Conversation projected for one of its participants.
type ConversationSummary struct {
	ID            string     `json:"id"`
	OtherUserID   string     `json:"otherUserId"`
	LastMessage   string     `json:"lastMessage"`
	LastMessageAt *time.Time `json:"lastMessageAt,omitempty"`
	UnreadCount   int        `json:"unreadCount"`
	CreatedAt     time.Time  `json:"createdAt"`
}

// CanonicalConversationID derives the conversation id for an unordered pair:
// CanonicalConversationID(a, b) == CanonicalConversationID(b, a).
func CanonicalConversationID(a, b string) string {
	lo, hi := OrderedPair(a, b)
	return lo + conversationIDSeparator + hi
}

// OrderedPair returns the two ids sorted.
func OrderedPair(a, b string) (string, string) {
	if b < a {
		return b, a
	}
	return a, b
}

// ParticipantsOf splits a canonical conversation id back into its pair.
func ParticipantsOf(conversationID string) (string, string, bool) {
	a, b, ok := strings.Cut(conversationID, conversationIDSeparator)
	if !ok || a == "" || b == "" || strings.Contains(b, conversationIDSeparator) {
		return "", "", false
	}
	return a, b, true
}

// ValidateUserID checks that id can take part in a canonical conversation id.
func ValidateUserID(field, id string) error {
	switch {
	case strings.TrimSpace(id) == "":
		return Invalid(field, "is required")
	case len(id) > maxUserIDLength:
		return Invalid(field, "is too long")
	case strings.Contains(id, conversationIDSeparator):
		return Invalid(field, "contains an invalid character")
	}
	return nil
}

// HasParticipant tells whether userID is part of this conversation.
func (c *Conversation) HasParticipant(userID string) bool {
	return c != nil && (c.ParticipantA == userID || c.ParticipantB == userID)
}

// OtherParticipant returns the participant that is not userID.
func (c *Conversation) OtherParticipant(userID string) string {
	if c.ParticipantA == userID {
		return c.ParticipantB
	}
	return c.ParticipantA
}

// UnreadFor returns the unread counter of userID.
func (c *Conversation) UnreadFor(userID string) int {
	switch userID {
	case c.ParticipantA:
		return c.UnreadA
	case c.ParticipantB:
		return c.UnreadB
	}
	return 0
}

// SummaryFor projects the conversation for viewer.
func (c *Conversation) SummaryFor(viewer string) ConversationSummary {
	return ConversationSummary{
		ID:            c.ID,
		OtherUserID:   c.OtherParticipant(viewer),
		LastMessage:   c.LastMessage,
		LastMessageAt: c.LastMessageAt,
		UnreadCount:   c.UnreadFor(viewer),
		CreatedAt:     c.CreatedAt,
	}
}
