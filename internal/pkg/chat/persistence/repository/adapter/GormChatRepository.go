package adapter

import (
	"context"
	"fmt"
	"time"

	chat "collabhub-realtime/internal/pkg/chat/application/domain"
	repository "collabhub-realtime/internal/pkg/chat/persistence/repository/port"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

type conversationRecord struct {
	ID            string `gorm:"primaryKey"`
	ParticipantA  string `gorm:"not null;index"`
	ParticipantB  string `gorm:"not null;index"`
	LastMessage   string `gorm:"not null;default:''"`
	LastMessageAt *time.Time
	UnreadA       int       `gorm:"not null;default:0"`
	UnreadB       int       `gorm:"not null;default:0"`
	CreatedAt     time.Time `gorm:"not null"`
}

func (conversationRecord) TableName() string { return "conversations" }

func (r conversationRecord) toDomain() *chat.Conversation {
	return &chat.Conversation{
		ID:            r.ID,
		ParticipantA:  r.ParticipantA,
		ParticipantB:  r.ParticipantB,
		LastMessage:   r.LastMessage,
		LastMessageAt: r.LastMessageAt,
		UnreadA:       r.UnreadA,
		UnreadB:       r.UnreadB,
		CreatedAt:     r.CreatedAt,
	}
}

type messageRecord struct {
	Seq            int64  `gorm:"primaryKey;autoIncrement"`
	ID             string `gorm:"uniqueIndex;not null"`
	ConversationID string `gorm:"not null;index:idx_message_order,priority:1"`
	SenderID       string `gorm:"not null"`
	ReceiverID     string `gorm:"not null;index"`
	Content        string `gorm:"not null"`
	AttachmentURL  *string
	AttachmentType *string
	Read           bool `gorm:"not null;default:false"`
	ReadAt         *time.Time
	CreatedAt      time.Time `gorm:"not null;index:idx_message_order,priority:2"`
}

func (messageRecord) TableName() string { return "messages" }

func (r messageRecord) toDomain() chat.Message {
	m := chat.Message{
		ID:             r.ID,
		ConversationID: r.ConversationID,
		Seq:            r.Seq,
		SenderID:       r.SenderID,
		ReceiverID:     r.ReceiverID,
		Content:        r.Content,
		AttachmentURL:  r.AttachmentURL,
		Read:           r.Read,
		ReadAt:         r.ReadAt,
		CreatedAt:      r.CreatedAt,
	}
	if r.AttachmentType != nil {
		t := chat.AttachmentType(*r.AttachmentType)
		m.AttachmentType = &t
	}
	return m
}

type notificationRecord struct {
	ID          string    `gorm:"primaryKey"`
	RecipientID string    `gorm:"not null;index:idx_notification_recipient,priority:1"`
	Type        string    `gorm:"not null"`
	Title       string    `gorm:"not null"`
	Message     string    `gorm:"not null;default:''"`
	Read        bool      `gorm:"not null;default:false"`
	ActionRef   *string
	CreatedAt   time.Time `gorm:"not null;index:idx_notification_recipient,priority:2"`
}

func (notificationRecord) TableName() string { return "notifications" }

func (r notificationRecord) toDomain() chat.Notification {
	return chat.Notification{
		ID:          r.ID,
		RecipientID: r.RecipientID,
		Type:        chat.NotificationType(r.Type),
		Title:       r.Title,
		Message:     r.Message,
		Read:        r.Read,
		ActionRef:   r.ActionRef,
		CreatedAt:   r.CreatedAt,
	}
}

// GormChatRepository implements ChatRepository on GORM. It backs the single-node
// SQLite deployment and the package tests.
type GormChatRepository struct {
	db *gorm.DB
}

var _ repository.ChatRepository = (*GormChatRepository)(nil)

func NewGormChatRepository(db *gorm.DB) *GormChatRepository {
	return &GormChatRepository{db: db}
}

// OpenSQLite opens (and migrates) a SQLite database at path. Use ":memory:" for a
// private in-memory database. Writes are funneled through a single connection,
// which is what serializes transactions on SQLite.
func OpenSQLite(path string) (*GormChatRepository, error) {
	dsn := path
	if path == ":memory:" || path == "" {
		dsn = "file::memory:"
	}
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("sqlite: underlying db: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)

	repo := NewGormChatRepository(db)
	if err := repo.Migrate(context.Background()); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return repo, nil
}

// Migrate creates or updates the tables.
func (r *GormChatRepository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&conversationRecord{}, &messageRecord{}, &notificationRecord{}); err != nil {
		return fmt.Errorf("gorm: migrate: %w", err)
	}
	return nil
}

// Close releases the underlying connection pool.
func (r *GormChatRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r *GormChatRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func ensureConversation(tx *gorm.DB, a, b string, now time.Time) (string, error) {
	lo, hi := chat.OrderedPair(a, b)
	id := chat.CanonicalConversationID(lo, hi)
	rec := conversationRecord{ID: id, ParticipantA: lo, ParticipantB: hi, CreatedAt: now}
	if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rec).Error; err != nil {
		return "", err
	}
	return id, nil
}

func lockConversation(tx *gorm.DB, id string) (*conversationRecord, error) {
	var rec conversationRecord
	res := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).Limit(1).Find(&rec)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, chat.ErrConversationAbsent
	}
	return &rec, nil
}

func (r *GormChatRepository) FindOrCreateConversation(ctx context.Context, userA, userB string) (*chat.Conversation, error) {
	var out *chat.Conversation
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := ensureConversation(tx, userA, userB, time.Now().UTC())
		if err != nil {
			return err
		}
		rec, err := lockConversation(tx, id)
		if err != nil {
			return err
		}
		out = rec.toDomain()
		return nil
	})
	return out, err
}

func (r *GormChatRepository) GetConversation(ctx context.Context, conversationID string) (*chat.Conversation, error) {
	var rec conversationRecord
	res := r.db.WithContext(ctx).Where("id = ?", conversationID).Limit(1).Find(&rec)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, chat.ErrConversationAbsent
	}
	return rec.toDomain(), nil
}

func (r *GormChatRepository) AppendMessage(ctx context.Context, d chat.Draft) (*chat.Message, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	rec := messageRecord{
		ID:            d.ID,
		SenderID:      d.SenderID,
		ReceiverID:    d.ReceiverID,
		Content:       d.Content,
		AttachmentURL: d.AttachmentURL,
	}
	if d.AttachmentType != nil {
		s := string(*d.AttachmentType)
		rec.AttachmentType = &s
	}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		id, err := ensureConversation(tx, d.SenderID, d.ReceiverID, time.Now().UTC())
		if err != nil {
			return fmt.Errorf("ensure conversation: %w", err)
		}
		conv, err := lockConversation(tx, id)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		rec.ConversationID = id
		rec.CreatedAt = now
		res := tx.Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).Create(&rec)
		if res.Error != nil {
			return fmt.Errorf("insert message: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			// Replay of an append that already committed: return the stored row, counters untouched.
			var stored messageRecord
			if err := tx.Where("id = ?", rec.ID).Take(&stored).Error; err != nil {
				return fmt.Errorf("load replayed message: %w", err)
			}
			rec = stored
			return nil
		}

		updates := map[string]any{
			"last_message":    chat.Preview(rec.Content, 0),
			"last_message_at": now,
		}
		if conv.ParticipantA == d.ReceiverID {
			updates["unread_a"] = gorm.Expr("unread_a + 1")
		} else {
			updates["unread_b"] = gorm.Expr("unread_b + 1")
		}
		return tx.Model(&conversationRecord{}).Where("id = ?", id).Updates(updates).Error
	})
	if err != nil {
		return nil, err
	}
	msg := rec.toDomain()
	return &msg, nil
}

func (r *GormChatRepository) ListConversations(ctx context.Context, userID string) ([]chat.ConversationSummary, error) {
	var recs []conversationRecord
	err := r.db.WithContext(ctx).
		Where("participant_a = ? OR participant_b = ?", userID, userID).
		Order("COALESCE(last_message_at, created_at) DESC").
		Order("id").
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make([]chat.ConversationSummary, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toDomain().SummaryFor(userID))
	}
	return out, nil
}

func (r *GormChatRepository) ListMessages(ctx context.Context, conversationID string, limit int, offset int) ([]chat.Message, error) {
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	var recs []messageRecord
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Order("seq ASC").
		Limit(limit).Offset(offset).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make([]chat.Message, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toDomain())
	}
	return out, nil
}

func (r *GormChatRepository) MarkMessagesRead(ctx context.Context, conversationID string, recipientID string) (int, error) {
	var unread int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		conv, err := lockConversation(tx, conversationID)
		if err != nil {
			return err
		}
		if !conv.toDomain().HasParticipant(recipientID) {
			return chat.ErrNotParticipant
		}
		if err := tx.Model(&messageRecord{}).
			Where("conversation_id = ? AND receiver_id = ? AND read = ?", conversationID, recipientID, false).
			Updates(map[string]any{"read": true, "read_at": time.Now().UTC()}).Error; err != nil {
			return fmt.Errorf("mark messages: %w", err)
		}
		if err := tx.Model(&messageRecord{}).
			Where("conversation_id = ? AND receiver_id = ? AND read = ?", conversationID, recipientID, false).
			Count(&unread).Error; err != nil {
			return err
		}
		column := "unread_b"
		if conv.ParticipantA == recipientID {
			column = "unread_a"
		}
		return tx.Model(&conversationRecord{}).Where("id = ?", conversationID).Update(column, unread).Error
	})
	if err != nil {
		return 0, err
	}
	return int(unread), nil
}

func (r *GormChatRepository) UnreadMessageCount(ctx context.Context, userID string) (int, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&conversationRecord{}).
		Select("COALESCE(SUM(CASE WHEN participant_a = ? THEN unread_a ELSE unread_b END), 0)", userID).
		Where("participant_a = ? OR participant_b = ?", userID, userID).
		Scan(&total).Error
	return int(total), err
}

func (r *GormChatRepository) CreateNotification(ctx context.Context, d chat.NotificationDraft) (*chat.Notification, error) {
	rec := notificationRecord{
		ID:          uuid.NewString(),
		RecipientID: d.RecipientID,
		Type:        string(d.Type),
		Title:       d.Title,
		Message:     d.Message,
		ActionRef:   d.ActionRef,
		CreatedAt:   time.Now().UTC(),
	}
	if err := r.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return nil, err
	}
	n := rec.toDomain()
	return &n, nil
}

func (r *GormChatRepository) MarkNotificationsRead(ctx context.Context, recipientID string, req chat.MarkReadRequest) (int, error) {
	var unread int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		q := tx.Model(&notificationRecord{}).Where("recipient_id = ? AND read = ?", recipientID, false)
		if !req.All {
			q = q.Where("id IN ?", req.IDs)
		}
		if err := q.Update("read", true).Error; err != nil {
			return fmt.Errorf("mark notifications: %w", err)
		}
		return tx.Model(&notificationRecord{}).
			Where("recipient_id = ? AND read = ?", recipientID, false).
			Count(&unread).Error
	})
	if err != nil {
		return 0, err
	}
	return int(unread), nil
}

func (r *GormChatRepository) ListRecentNotifications(ctx context.Context, recipientID string, limit int) ([]chat.Notification, error) {
	if limit <= 0 {
		limit = 50
	}
	var recs []notificationRecord
	err := r.db.WithContext(ctx).
		Where("recipient_id = ?", recipientID).
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&recs).Error
	if err != nil {
		return nil, err
	}
	out := make([]chat.Notification, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.toDomain())
	}
	return out, nil
}

func (r *GormChatRepository) UnreadNotificationCount(ctx context.Context, recipientID string) (int, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&notificationRecord{}).
		Where("recipient_id = ? AND read = ?", recipientID, false).
		Count(&n).Error
	return int(n), err
}
