package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"

	"github.com/capitalize-ai/care-messaging/internal/model"
	"github.com/capitalize-ai/care-messaging/pkg/apperror"
)

// InsertMessage persists a message and advances the conversation's
// last_message_at in the same transaction.
func (s *Store) InsertMessage(ctx context.Context, msg *model.NewMessage) (*model.Message, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var attachmentURL, attachmentType *string
	if msg.Attachment != nil {
		attachmentURL = &msg.Attachment.URL
		attachmentType = &msg.Attachment.Type
	}

	out := &model.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		Content:        msg.Content,
	}
	if msg.Attachment != nil {
		a := *msg.Attachment
		out.Attachment = &a
	}

	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
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

		now := s.now()
		_, err = tx.ExecContext(ctx, `
			INSERT INTO messages (id, conversation_id, sender_id, content, created_at, updated_at, attachment_url, attachment_type)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, out.ID, msg.ConversationID, msg.SenderID, msg.Content, now, now, attachmentURL, attachmentType)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE conversations
			SET last_message_at = MAX(COALESCE(last_message_at, 0), ?),
			    updated_at = MAX(updated_at, ?)
			WHERE id = ?
		`, now, now, msg.ConversationID)
		if err != nil {
			return err
		}

		out.CreatedAt = fromNanos(now)
		out.UpdatedAt = out.CreatedAt
		return nil
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

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, conversation_id, sender_id, content, created_at, updated_at,
		       read_at, deleted_at, attachment_url, attachment_type
		FROM messages
		WHERE conversation_id = ? AND deleted_at IS NULL
		ORDER BY created_at ASC, id ASC
		LIMIT ? OFFSET ?
	`, conversationID, limit, offset)
	if err != nil {
		return nil, classify("failed to list messages", err)
	}
	defer rows.Close()

	messages := make([]model.Message, 0)
	for rows.Next() {
		var (
			msg                  model.Message
			createdAt, updatedAt int64
			readAt, deletedAt    sql.NullInt64
			url, kind            sql.NullString
		)
		if err := rows.Scan(
			&msg.ID,
			&msg.ConversationID,
			&msg.SenderID,
			&msg.Content,
			&createdAt,
			&updatedAt,
			&readAt,
			&deletedAt,
			&url,
			&kind,
		); err != nil {
			return nil, classify("failed to scan message", err)
		}

		msg.CreatedAt = fromNanos(createdAt)
		msg.UpdatedAt = fromNanos(updatedAt)
		msg.ReadAt = nullTime(readAt)
		msg.DeletedAt = nullTime(deletedAt)
		if url.Valid {
			msg.Attachment = &model.Attachment{URL: url.String, Type: kind.String}
		}

		messages = append(messages, msg)
	}

	if err := rows.Err(); err != nil {
		return nil, classify("failed to iterate messages", err)
	}

	return messages, nil
}

// SoftDeleteMessage marks a message deleted. Only its sender may do so.
func (s *Store) SoftDeleteMessage(ctx context.Context, conversationID, messageID, userID string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		var senderID string
		err := tx.QueryRowContext(ctx,
			"SELECT sender_id FROM messages WHERE id = ? AND conversation_id = ?",
			messageID, conversationID,
		).Scan(&senderID)
		if errors.Is(err, sql.ErrNoRows) {
			return apperror.New(apperror.KindNotFound, "message not found")
		}
		if err != nil {
			return err
		}
		if senderID != userID {
			return apperror.New(apperror.KindUnauthorized, "only the sender can delete a message")
		}

		now := s.now()
		_, err = tx.ExecContext(ctx, `
			UPDATE messages
			SET deleted_at = ?, updated_at = ?
			WHERE id = ? AND deleted_at IS NULL
		`, now, now, messageID)
		return err
	})
	if err != nil {
		return classify("failed to delete message", err)
	}
	return nil
}
