package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/capitalize-ai/care-messaging/internal/model"
	"github.com/capitalize-ai/care-messaging/internal/store"
	"github.com/capitalize-ai/care-messaging/pkg/apperror"
)

// GetOrCreateConversation upserts the conversation row on the ordered pair
// key and inserts both participants in one transaction.
func (s *Store) GetOrCreateConversation(ctx context.Context, userA, userB string, appointmentID *string) (string, bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	low, high := store.OrderedPair(userA, userB)
	newID := uuid.Must(uuid.NewV7()).String()

	var id string
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		now := s.now()
		err := tx.QueryRowContext(ctx, `
			INSERT INTO conversations (id, appointment_id, user_low, user_high, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?)
			ON CONFLICT (user_low, user_high)
			DO UPDATE SET updated_at = conversations.updated_at
			RETURNING id
		`, newID, appointmentID, low, high, now, now).Scan(&id)
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO conversation_participants (conversation_id, user_id, joined_at)
			VALUES (?, ?, ?), (?, ?, ?)
			ON CONFLICT (conversation_id, user_id) DO NOTHING
		`, id, low, now, id, high, now)
		return err
	})
	if err != nil {
		return "", false, classify("failed to get or create conversation", err)
	}

	return id, id == newID, nil
}

// IsParticipant reports whether userID belongs to the conversation.
func (s *Store) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	exists, member, err := membership(ctx, s.db, conversationID, userID)
	if err != nil {
		return false, classify("failed to check participant", err)
	}
	if !exists {
		return false, apperror.New(apperror.KindNotFound, "conversation not found")
	}
	return member, nil
}

// MarkRead advances the read cursor with MAX so it never regresses, then
// stamps read_at on incoming messages covered by the cursor.
func (s *Store) MarkRead(ctx context.Context, conversationID, userID string) (time.Time, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var cursor int64
	err := withTx(ctx, s.db, func(tx *sql.Tx) error {
		err := tx.QueryRowContext(ctx, `
			UPDATE conversation_participants
			SET last_read_at = MAX(COALESCE(last_read_at, 0), ?)
			WHERE conversation_id = ? AND user_id = ?
			RETURNING last_read_at
		`, s.now(), conversationID, userID).Scan(&cursor)
		if errors.Is(err, sql.ErrNoRows) {
			return notMember(ctx, tx, conversationID, userID)
		}
		if err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE messages
			SET read_at = ?
			WHERE conversation_id = ?
			  AND sender_id <> ?
			  AND read_at IS NULL
			  AND deleted_at IS NULL
			  AND created_at <= ?
		`, cursor, conversationID, userID, cursor)
		return err
	})
	if err != nil {
		return time.Time{}, classify("failed to mark messages read", err)
	}

	return fromNanos(cursor), nil
}

// UpsertProfile stores the public profile fields of a user.
func (s *Store) UpsertProfile(ctx context.Context, profile model.Profile) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO profiles (user_id, display_name, email, avatar_url, role, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = excluded.display_name,
			email = excluded.email,
			avatar_url = excluded.avatar_url,
			role = excluded.role,
			updated_at = excluded.updated_at
	`, profile.UserID, profile.DisplayName, profile.Email, profile.AvatarURL, string(profile.Role), s.now())
	if err != nil {
		return classify("failed to upsert profile", err)
	}
	return nil
}

// ListSummaries reads the conversation_summaries view for userID joined with
// the counterpart's profile.
func (s *Store) ListSummaries(ctx context.Context, userID string) ([]model.ConversationSummary, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT
			v.conversation_id,
			v.appointment_id,
			v.last_message_at,
			v.last_message_id,
			v.last_message_sender_id,
			v.last_message_content,
			v.last_message_created_at,
			v.unread_count,
			v.other_user_id,
			COALESCE(pr.display_name, ''),
			COALESCE(pr.email, ''),
			pr.avatar_url,
			COALESCE(pr.role, '')
		FROM conversation_summaries v
		LEFT JOIN profiles pr ON pr.user_id = v.other_user_id
		WHERE v.user_id = ?
	`, userID)
	if err != nil {
		return nil, classify("failed to list conversation summaries", err)
	}
	defer rows.Close()

	summaries := make([]model.ConversationSummary, 0)
	for rows.Next() {
		var (
			summary                         model.ConversationSummary
			appointmentID, avatarURL        sql.NullString
			lastID, lastSender, lastContent sql.NullString
			lastMessageAt, lastCreatedAt    sql.NullInt64
			unread                          int64
			role                            string
		)

		if err := rows.Scan(
			&summary.ConversationID,
			&appointmentID,
			&lastMessageAt,
			&lastID,
			&lastSender,
			&lastContent,
			&lastCreatedAt,
			&unread,
			&summary.OtherParticipant.UserID,
			&summary.OtherParticipant.DisplayName,
			&summary.OtherParticipant.Email,
			&avatarURL,
			&role,
		); err != nil {
			return nil, classify("failed to scan conversation summary", err)
		}

		summary.AppointmentID = nullString(appointmentID)
		summary.LastMessageAt = nullTime(lastMessageAt)
		summary.UnreadCount = int(unread)
		summary.HasUnread = unread > 0
		summary.OtherParticipant.AvatarURL = nullString(avatarURL)
		summary.OtherParticipant.Role = model.Role(role)
		if lastID.Valid && lastCreatedAt.Valid {
			summary.LastMessage = &model.MessagePreview{
				ID:        lastID.String,
				SenderID:  lastSender.String,
				Content:   lastContent.String,
				CreatedAt: fromNanos(lastCreatedAt.Int64),
			}
		}

		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, classify("failed to iterate conversation summaries", err)
	}

	return summaries, nil
}

func membership(ctx context.Context, db TxQuerier, conversationID, userID string) (exists, member bool, err error) {
	err = db.QueryRowContext(ctx, `
		SELECT
			EXISTS (SELECT 1 FROM conversations WHERE id = ?),
			EXISTS (SELECT 1 FROM conversation_participants WHERE conversation_id = ? AND user_id = ?)
	`, conversationID, conversationID, userID).Scan(&exists, &member)
	return exists, member, err
}

func notMember(ctx context.Context, db TxQuerier, conversationID, userID string) error {
	exists, _, err := membership(ctx, db, conversationID, userID)
	if err != nil {
		return err
	}
	if !exists {
		return apperror.New(apperror.KindNotFound, "conversation not found")
	}
	return apperror.New(apperror.KindUnauthorized, "user is not a participant of the conversation")
}
