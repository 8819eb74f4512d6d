package chat

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// DefaultMaxMessageLength bounds message content, counted in runes.
const DefaultMaxMessageLength = 5000

// previewLength is the size of the lastMessage / notification preview.
const previewLength = 100

// AttachmentType classifies an optional message attachment.
type AttachmentType string

const (
	AttachmentImage AttachmentType = "image"
	AttachmentFile  AttachmentType = "file"
	AttachmentLink  AttachmentType = "link"
)

// Message is an entry in a conversation. Read only ever moves false -> true.
type Message struct {
	ID             string          `db:"id" json:"id"`
	ConversationID string          `db:"conversation_id" json:"conversationId"`
	Seq            int64           `db:"seq" json:"seq"`
	SenderID       string          `db:"sender_id" json:"senderId"`
	ReceiverID     string          `db:"receiver_id" json:"receiverId"`
	Content        string          `db:"content" json:"content"`
	AttachmentURL  *string         `db:"attachment_url" json:"attachmentUrl,omitempty"`
	AttachmentType *AttachmentType `db:"attachment_type" json:"attachmentType,omitempty"`
	Read           bool            `db:"read" json:"read"`
	ReadAt         *time.Time      `db:"read_at" json:"readAt,omitempty"`
	CreatedAt      time.Time       `db:"created_at" json:"createdAt"`
}

// Draft is a message that passed validation and is ready to append. ID is fixed
// when the draft is built, so appending the same draft twice stores one message.
type Draft struct {
	ID             string
	SenderID       string
	ReceiverID     string
	Content        string
	AttachmentURL  *string
	AttachmentType *AttachmentType
}

// ConversationID returns the canonical conversation of the draft's pair.
func (d Draft) ConversationID() string {
	return CanonicalConversationID(d.SenderID, d.ReceiverID)
}

// NewDraft validates a send request. Content is trimmed; maxLen <= 0 means
// DefaultMaxMessageLength.
func NewDraft(senderID, receiverID, content string, maxLen int) (Draft, error) {
	if maxLen <= 0 {
		maxLen = DefaultMaxMessageLength
	}
	if err := ValidateUserID("senderId", senderID); err != nil {
		return Draft{}, err
	}
	if err := ValidateUserID("receiverId", receiverID); err != nil {
		return Draft{}, err
	}
	if senderID == receiverID {
		return Draft{}, &ValidationError{Field: "receiverId", Message: "cannot message yourself", Err: ErrSelfConversation}
	}

	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return Draft{}, &ValidationError{Field: "content", Message: "must not be empty", Err: ErrEmptyMessage}
	}
	if utf8.RuneCountInString(trimmed) > maxLen {
		return Draft{}, Invalid("content", "is too long")
	}

	return Draft{ID: uuid.NewString(), SenderID: senderID, ReceiverID: receiverID, Content: trimmed}, nil
}

// WithAttachment sets an optional attachment. Empty url leaves the draft unchanged.
func (d Draft) WithAttachment(url string, kind string) (Draft, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return d, nil
	}
	t := AttachmentType(kind)
	switch t {
	case AttachmentImage, AttachmentFile, AttachmentLink:
	case "":
		t = AttachmentLink
	default:
		return d, Invalid("attachmentType", "must be one of image, file, link")
	}
	d.AttachmentURL = &url
	d.AttachmentType = &t
	return d, nil
}

// Preview truncates s to n runes.
func Preview(s string, n int) string {
	if n <= 0 {
		n = previewLength
	}
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
