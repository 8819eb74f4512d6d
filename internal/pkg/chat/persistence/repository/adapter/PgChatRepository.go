package adapter

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	chat "collabhub-realtime/internal/pkg/chat/application/domain"
	repository "collabhub-realtime/internal/pkg/chat/persistence/repository/port"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed db/schema.sql
var schemaSQL string

type PgChatRepository struct {
	pool *pgxpool.Pool
}

func NewPgChatRepository(pool *pgxpool.Pool) *PgChatRepository {
	return &PgChatRepository{pool: pool}
}

var _ repository.ChatRepository = (*PgChatRepository)(nil)

var errNilPool = errors.New("PgChatRepository: nil pool")

const messageColumns = `id::text, conversation_id, seq, sender_id, receiver_id, content, attachment_url, attachment_type, read, read_at, created_at`

const messageByIDSQL = `SELECT ` + messageColumns + ` FROM chat.message WHERE id = $1::uuid`

func scanMessage(row pgx.Row) (chat.Message, error) {
	var (
		msg     chat.Message
		attType *string
	)
	if err := row.Scan(&msg.ID, &msg.ConversationID, &msg.Seq, &msg.SenderID, &msg.ReceiverID, &msg.Content,
		&msg.AttachmentURL, &attType, &msg.Read, &msg.ReadAt, &msg.CreatedAt); err != nil {
		return chat.Message{}, err
	}
	if attType != nil {
		t := chat.AttachmentType(*attType)
		msg.AttachmentType = &t
	}
	return msg, nil
}

// Migrate applies the embedded schema. Statements are idempotent.
func (r *PgChatRepository) Migrate(ctx context.Context) error {
	if r == nil || r.pool == nil {
		return errNilPool
	}
	if _, err := r.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("postgres: apply schema: %w", err)
	}
	return nil
}

func (r *PgChatRepository) Ping(ctx context.Context) error {
	if r == nil || r.pool == nil {
		return errNilPool
	}
	return r.pool.Ping(ctx)
}

const conversationColumns = `id, participant_a, participant_b, last_message, last_message_at, unread_a, unread_b, created_at`

func scanConversation(row pgx.Row) (*chat.Conversation, error) {
	var c chat.Conversation
	if err := row.Scan(&c.ID, &c.ParticipantA, &c.ParticipantB, &c.LastMessage, &c.LastMessageAt, &c.UnreadA, &c.UnreadB, &c.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, chat.ErrConversationAbsent
		}
		return nil, err
	}
	return &c, nil
}

func (r *PgChatRepository) FindOrCreateConversation(ctx context.Context, userA, userB string) (*chat.Conversation, error) {
	if r == nil || r.pool == nil {
		return nil, errNilPool
	}
	lo, hi := chat.OrderedPair(userA, userB)
	id := chat.CanonicalConversationID(lo, hi)
	_, err := r.pool.Exec(ctx, `
		INSERT INTO chat.conversation (id, participant_a, participant_b, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO NOTHING
	`, id, lo, hi, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return r.GetConversation(ctx, id)
}

func (r *PgChatRepository) GetConversation(ctx context.Context, conversationID string) (*chat.Conversation, error) {
	if r == nil || r.pool == nil {
		return nil, errNilPool
	}
	return scanConversation(r.pool.QueryRow(ctx,
		`SELECT `+conversationColumns+` FROM chat.conversation WHERE id = $1`, conversationID))
}

func (r *PgChatRepository) AppendMessage(ctx context.Context, d chat.Draft) (*chat.Message, error) {
	if r == nil || r.pool == nil {
		return nil, errNilPool
	}
	lo, hi := chat.OrderedPair(d.SenderID, d.ReceiverID)
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	msg := chat.Message{
		ID:             d.ID,
		ConversationID: chat.CanonicalConversationID(lo, hi),
		SenderID:       d.SenderID,
		ReceiverID:     d.ReceiverID,
		Content:        d.Content,
		AttachmentURL:  d.AttachmentURL,
		AttachmentType: d.AttachmentType,
	}
	var attachmentType *string
	if d.AttachmentType != nil {
		s := string(*d.AttachmentType)
		attachmentType = &s
	}

	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO chat.conversation (id, participant_a, participant_b, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO NOTHING
		`, msg.ConversationID, lo, hi, time.Now().UTC()); err != nil {
			return fmt.Errorf("ensure conversation: %w", err)
		}

		// Row lock serializes appends (and their counter increments) per conversation.
		if _, err := tx.Exec(ctx, `SELECT 1 FROM chat.conversation WHERE id = $1 FOR UPDATE`, msg.ConversationID); err != nil {
			return fmt.Errorf("lock conversation: %w", err)
		}
		// Stamped under the lock so created_at order matches seq order.
		msg.CreatedAt = time.Now().UTC()

		err := tx.QueryRow(ctx, `
			INSERT INTO chat.message (id, conversation_id, sender_id, receiver_id, content, attachment_url, attachment_type, created_at)
			VALUES ($1::uuid, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO NOTHING
			RETURNING seq
		`, msg.ID, msg.ConversationID, msg.SenderID, msg.ReceiverID, msg.Content, msg.AttachmentURL, attachmentType, msg.CreatedAt).Scan(&msg.Seq)
		if errors.Is(err, pgx.ErrNoRows) {
			// Replay of an append that already committed: return the stored row, counters untouched.
			stored, err := scanMessage(tx.QueryRow(ctx, messageByIDSQL, msg.ID))
			if err != nil {
				return fmt.Errorf("load replayed message: %w", err)
			}
			msg = stored
			return nil
		}
		if err != nil {
			return fmt.Errorf("insert message: %w", err)
		}

		ct, err := tx.Exec(ctx, `
			UPDATE chat.conversation
			SET last_message = $2,
			    last_message_at = $3,
			    unread_a = unread_a + CASE WHEN participant_a = $4 THEN 1 ELSE 0 END,
			    unread_b = unread_b + CASE WHEN participant_b = $4 THEN 1 ELSE 0 END
			WHERE id = $1
		`, msg.ConversationID, chat.Preview(msg.Content, 0), msg.CreatedAt, msg.ReceiverID)
		if err != nil {
			return fmt.Errorf("update conversation: %w", err)
		}
		if ct.RowsAffected() == 0 {
			return chat.ErrConversationAbsent
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

func (r *PgChatRepository) ListConversations(ctx context.Context, userID string) ([]chat.ConversationSummary, error) {
	if r == nil || r.pool == nil {
		return nil, errNilPool
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+conversationColumns+`
		FROM chat.conversation
		WHERE participant_a = $1 OR participant_b = $1
		ORDER BY COALESCE(last_message_at, created_at) DESC, id
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summaries := []chat.ConversationSummary{}
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, c.SummaryFor(userID))
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return summaries, nil
}

func (r *PgChatRepository) ListMessages(ctx context.Context, conversationID string, limit int, offset int) ([]chat.Message, error) {
	if r == nil || r.pool == nil {
		return nil, errNilPool
	}
	if limit <= 0 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM chat.message
		WHERE conversation_id = $1
		ORDER BY created_at ASC, seq ASC
		LIMIT $2 OFFSET $3
	`, conversationID, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []chat.Message{}
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, msg)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return msgs, nil
}

func (r *PgChatRepository) MarkMessagesRead(ctx context.Context, conversationID string, recipientID string) (int, error) {
	if r == nil || r.pool == nil {
		return 0, errNilPool
	}
	var unread int
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		c, err := scanConversation(tx.QueryRow(ctx,
			`SELECT `+conversationColumns+` FROM chat.conversation WHERE id = $1 FOR UPDATE`, conversationID))
		if err != nil {
			return err
		}
		if !c.HasParticipant(recipientID) {
			return chat.ErrNotParticipant
		}
		if _, err := tx.Exec(ctx, `
			UPDATE chat.message
			SET read = TRUE, read_at = $3
			WHERE conversation_id = $1 AND receiver_id = $2 AND NOT read
		`, conversationID, recipientID, time.Now().UTC()); err != nil {
			return fmt.Errorf("mark messages: %w", err)
		}
		// Recount instead of zeroing so the counter always mirrors the message rows.
		return tx.QueryRow(ctx, `
			UPDATE chat.conversation
			SET unread_a = CASE WHEN participant_a = $2 THEN sub.n ELSE unread_a END,
			    unread_b = CASE WHEN participant_b = $2 THEN sub.n ELSE unread_b END
			FROM (SELECT count(*)::int AS n FROM chat.message WHERE conversation_id = $1 AND receiver_id = $2 AND NOT read) sub
			WHERE id = $1
			RETURNING sub.n
		`, conversationID, recipientID).Scan(&unread)
	})
	if err != nil {
		return 0, err
	}
	return unread, nil
}

func (r *PgChatRepository) UnreadMessageCount(ctx context.Context, userID string) (int, error) {
	if r == nil || r.pool == nil {
		return 0, errNilPool
	}
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(CASE WHEN participant_a = $1 THEN unread_a ELSE unread_b END), 0)::int
		FROM chat.conversation
		WHERE participant_a = $1 OR participant_b = $1
	`, userID).Scan(&n)
	return n, err
}

func (r *PgChatRepository) CreateNotification(ctx context.Context, d chat.NotificationDraft) (*chat.Notification, error) {
	if r == nil || r.pool == nil {
		return nil, errNilPool
	}
	n := chat.Notification{
		ID:          uuid.NewString(),
		RecipientID: d.RecipientID,
		Type:        d.Type,
		Title:       d.Title,
		Message:     d.Message,
		ActionRef:   d.ActionRef,
		CreatedAt:   time.Now().UTC(),
	}
	_, err := r.pool.Exec(ctx, `
		INSERT INTO chat.notification (id, recipient_id, type, title, message, action_ref, created_at)
		VALUES ($1::uuid, $2, $3, $4, $5, $6, $7)
	`, n.ID, n.RecipientID, string(n.Type), n.Title, n.Message, n.ActionRef, n.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &n, nil
}

func (r *PgChatRepository) MarkNotificationsRead(ctx context.Context, recipientID string, req chat.MarkReadRequest) (int, error) {
	if r == nil || r.pool == nil {
		return 0, errNilPool
	}
	var unread int
	err := pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		var err error
		if req.All {
			_, err = tx.Exec(ctx, `UPDATE chat.notification SET read = TRUE WHERE recipient_id = $1 AND NOT read`, recipientID)
		} else {
			_, err = tx.Exec(ctx, `
				UPDATE chat.notification SET read = TRUE
				WHERE recipient_id = $1 AND NOT read AND id::text = ANY($2::text[])
			`, recipientID, req.IDs)
		}
		if err != nil {
			return fmt.Errorf("mark notifications: %w", err)
		}
		return tx.QueryRow(ctx,
			`SELECT count(*)::int FROM chat.notification WHERE recipient_id = $1 AND NOT read`, recipientID).Scan(&unread)
	})
	if err != nil {
		return 0, err
	}
	return unread, nil
}

func (r *PgChatRepository) ListRecentNotifications(ctx context.Context, recipientID string, limit int) ([]chat.Notification, error) {
	if r == nil || r.pool == nil {
		return nil, errNilPool
	}
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, recipient_id, type, title, message, read, action_ref, created_at
		FROM chat.notification
		WHERE recipient_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, recipientID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []chat.Notification{}
	for rows.Next() {
		var (
			n     chat.Notification
			nType string
		)
		if err := rows.Scan(&n.ID, &n.RecipientID, &nType, &n.Title, &n.Message, &n.Read, &n.ActionRef, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Type = chat.NotificationType(nType)
		out = append(out, n)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *PgChatRepository) UnreadNotificationCount(ctx context.Context, recipientID string) (int, error) {
	if r == nil || r.pool == nil {
		return 0, errNilPool
	}
	var n int
	err := r.pool.QueryRow(ctx,
		`SELECT count(*)::int FROM chat.notification WHERE recipient_id = $1 AND NOT read`, recipientID).Scan(&n)
	return n, err
}
