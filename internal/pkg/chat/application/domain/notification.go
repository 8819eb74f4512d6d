package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// NotificationType enumerates the subsystems that raise notifications.
type NotificationType string

const (
	NotificationApplication  NotificationType = "application"
	NotificationAgreement    NotificationType = "agreement"
	NotificationMilestone    NotificationType = "milestone"
	NotificationPayment      NotificationType = "payment"
	NotificationFunding      NotificationType = "funding"
	NotificationTrust        NotificationType = "trust"
	NotificationVerification NotificationType = "verification"
	NotificationSubscription NotificationType = "subscription"
	NotificationAlliance     NotificationType = "alliance"
	NotificationMessage      NotificationType = "message"
)

const (
	maxNotificationTitle = 200
	maxNotificationBody  = 1000
	maxActionRef         = 500
)

// Valid reports whether t is a known notification type.
func (t NotificationType) Valid() bool {
	switch t {
	case NotificationApplication, NotificationAgreement, NotificationMilestone, NotificationPayment,
		NotificationFunding, NotificationTrust, NotificationVerification, NotificationSubscription,
		NotificationAlliance, NotificationMessage:
		return true
	}
	return false
}

// Notification is a recipient-scoped alert. Read only ever moves false -> true.
type Notification struct {
	ID          string           `db:"id" json:"id"`
	RecipientID string           `db:"recipient_id" json:"recipientId"`
	Type        NotificationType `db:"type" json:"type"`
	Title       string           `db:"title" json:"title"`
	Message     string           `db:"message" json:"message"`
	Read        bool             `db:"read" json:"read"`
	ActionRef   *string          `db:"action_ref" json:"actionRef,omitempty"`
	CreatedAt   time.Time        `db:"created_at" json:"createdAt"`
}

// NotificationDraft is a validated notify request.
type NotificationDraft struct {
	RecipientID string
	Type        NotificationType
	Title       string
	Message     string
	ActionRef   *string
}

// NewNotificationDraft validates a notify request.
func NewNotificationDraft(recipientID string, t NotificationType, title, message string, actionRef *string) (NotificationDraft, error) {
	if err := ValidateUserID("recipientId", recipientID); err != nil {
		return NotificationDraft{}, err
	}
	if !t.Valid() {
		return NotificationDraft{}, Invalid("type", "unknown notification type")
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return NotificationDraft{}, Invalid("title", "is required")
	}
	if len(title) > maxNotificationTitle {
		return NotificationDraft{}, Invalid("title", "is too long")
	}
	if len(message) > maxNotificationBody {
		return NotificationDraft{}, Invalid("message", "is too long")
	}
	if actionRef != nil {
		ref := strings.TrimSpace(*actionRef)
		switch {
		case ref == "":
			actionRef = nil
		case len(ref) > maxActionRef:
			return NotificationDraft{}, Invalid("actionRef", "is too long")
		default:
			actionRef = &ref
		}
	}
	return NotificationDraft{RecipientID: recipientID, Type: t, Title: title, Message: message, ActionRef: actionRef}, nil
}

// MarkReadRequest selects notifications to mark read: either explicit ids or all.
type MarkReadRequest struct {
	IDs []string
	All bool
}

// Validate enforces that exactly one selector is present and ids are uuids.
func (r MarkReadRequest) Validate() error {
	if r.All && len(r.IDs) > 0 {
		return Invalid("ids", "cannot be combined with all")
	}
	if !r.All && len(r.IDs) == 0 {
		return Invalid("ids", "either ids or all is required")
	}
	for _, id := range r.IDs {
		if _, err := uuid.Parse(id); err != nil {
			return Invalid("ids", "malformed notification id "+id)
		}
	}
	return nil
}

// MessageNotification builds the notification raised for a new message.
func MessageNotification(msg Message) NotificationDraft {
	ref := "/messages/" + msg.ConversationID
	return NotificationDraft{
		RecipientID: msg.ReceiverID,
		Type:        NotificationMessage,
		Title:       "New Message",
		Message:     Preview(msg.Content, 50),
		ActionRef:   &ref,
	}
}
