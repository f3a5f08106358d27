package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/capitalize-ai/care-messaging/internal/model"
	"github.com/capitalize-ai/care-messaging/pkg/apperror"
)

const messageColumns = `id, conversation_id, sender_id, content, created_at, updated_at,
	read_at, deleted_at, attachment_url, attachment_type`

// InsertMessage persists a message and advances the conversation's
// last_message_at in the same transaction. created_at comes from the
// database clock.
func (s *Store) InsertMessage(ctx context.Context, msg *model.NewMessage) (*model.Message, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var attachmentURL, attachmentType *string
	if msg.Attachment != nil {
		attachmentURL = &msg.Attachment.URL
		attachmentType = &msg.Attachment.Type
	}

	var out *model.Message
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		exists, member, err := membership(ctx, tx, msg.ConversationID, msg.SenderID)
		if err != nil {
			return err
		}
		if !exists {
			return apperror.New(apperror.KindNotFound, "conversation not found")
		}
		if !member {
			return apperror.New(apperror.KindUnauthorized, "sender is not a participant of the conversation")
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO messages (id, conversation_id, sender_id, content, attachment_url, attachment_type)
			VALUES ($1, $2, $3, $4, $5, $6)
			RETURNING `+messageColumns,
			uuid.Must(uuid.NewV7()).String(), msg.ConversationID, msg.SenderID, msg.Content, attachmentURL, attachmentType,
		)
		out, err = scanMessage(row)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE conversations
			SET last_message_at = GREATEST(last_message_at, $2),
			    updated_at = GREATEST(updated_at, $2)
			WHERE id = $1
		`, msg.ConversationID, out.CreatedAt)
		return err
	})
	if err != nil {
		return nil, classify("failed to insert message", err)
	}

	return out, nil
}

// ListMessages returns non-deleted messages in (created_at, id) order.
func (s *Store) ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]model.Message, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM messages
		WHERE conversation_id = $1 AND deleted_at IS NULL
		ORDER BY created_at ASC, id ASC
		LIMIT $2 OFFSET $3
	`, conversationID, limit, offset)
	if err != nil {
		return nil, classify("failed to list messages", err)
	}
	defer rows.Close()

	messages := make([]model.Message, 0)
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, classify("failed to scan message", err)
		}
		messages = append(messages, *msg)
	}

	if err := rows.Err(); err != nil {
		return nil, classify("failed to iterate messages", err)
	}

	return messages, nil
}

// SoftDeleteMessage marks a message deleted. Only its sender may do so and
// repeating the call keeps the original deleted_at.
func (s *Store) SoftDeleteMessage(ctx context.Context, conversationID, messageID, userID string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var senderID string
	err := s.pool.QueryRow(ctx, `
		SELECT sender_id FROM messages WHERE id = $1 AND conversation_id = $2
	`, messageID, conversationID).Scan(&senderID)
	if errors.Is(err, pgx.ErrNoRows) {
		return apperror.New(apperror.KindNotFound, "message not found")
	}
	if err != nil {
		return classify("failed to load message", err)
	}
	if senderID != userID {
		return apperror.New(apperror.KindUnauthorized, "only the sender can delete a message")
	}

	_, err = s.pool.Exec(ctx, `
		UPDATE messages
		SET deleted_at = COALESCE(deleted_at, clock_timestamp()),
		    updated_at = clock_timestamp()
		WHERE id = $1 AND deleted_at IS NULL
	`, messageID)
	if err != nil {
		return classify("failed to delete message", err)
	}
	return nil
}

func scanMessage(row pgx.Row) (*model.Message, error) {
	var msg model.Message
	var attachmentURL, attachmentType *string

	if err := row.Scan(
		&msg.ID,
		&msg.ConversationID,
		&msg.SenderID,
		&msg.Content,
		&msg.CreatedAt,
		&msg.UpdatedAt,
		&msg.ReadAt,
		&msg.DeletedAt,
		&attachmentURL,
		&attachmentType,
	); err != nil {
		return nil, err
	}

	msg.CreatedAt = msg.CreatedAt.UTC()
	msg.UpdatedAt = msg.UpdatedAt.UTC()
	msg.ReadAt = utcPtr(msg.ReadAt)
	msg.DeletedAt = utcPtr(msg.DeletedAt)
	if attachmentURL != nil {
		msg.Attachment = &model.Attachment{URL: *attachmentURL}
		if attachmentType != nil {
			msg.Attachment.Type = *attachmentType
		}
	}

	return &msg, nil
}

func utcPtr(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	u := t.UTC()
	return &u
}
