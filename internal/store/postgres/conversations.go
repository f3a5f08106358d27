package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

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
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO conversations (id, appointment_id, user_low, user_high)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (user_low, user_high)
			DO UPDATE SET updated_at = conversations.updated_at
			RETURNING id
		`, newID, appointmentID, low, high).Scan(&id)
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO conversation_participants (conversation_id, user_id)
			VALUES ($1, $2), ($1, $3)
			ON CONFLICT (conversation_id, user_id) DO NOTHING
		`, id, low, high)
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

	exists, member, err := membership(ctx, s.pool, conversationID, userID)
	if err != nil {
		return false, classify("failed to check participant", err)
	}
	if !exists {
		return false, apperror.New(apperror.KindNotFound, "conversation not found")
	}
	return member, nil
}

// MarkRead advances the read cursor with GREATEST so it never regresses,
// then stamps read_at on incoming messages covered by the cursor.
func (s *Store) MarkRead(ctx context.Context, conversationID, userID string) (time.Time, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	var cursor time.Time
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			UPDATE conversation_participants
			SET last_read_at = GREATEST(last_read_at, clock_timestamp())
			WHERE conversation_id = $1 AND user_id = $2
			RETURNING last_read_at
		`, conversationID, userID).Scan(&cursor)
		if errors.Is(err, pgx.ErrNoRows) {
			return notMember(ctx, tx, conversationID, userID)
		}
		if err != nil {
			return err
		}

		_, err = tx.Exec(ctx, `
			UPDATE messages
			SET read_at = $3
			WHERE conversation_id = $1
			  AND sender_id <> $2
			  AND read_at IS NULL
			  AND deleted_at IS NULL
			  AND created_at <= $3
		`, conversationID, userID, cursor)
		return err
	})
	if err != nil {
		return time.Time{}, classify("failed to mark messages read", err)
	}

	return cursor.UTC(), nil
}

// UpsertProfile stores the public profile fields of a user.
func (s *Store) UpsertProfile(ctx context.Context, profile model.Profile) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.pool.Exec(ctx, `
		INSERT INTO profiles (user_id, display_name, email, avatar_url, role)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			email = EXCLUDED.email,
			avatar_url = EXCLUDED.avatar_url,
			role = EXCLUDED.role,
			updated_at = clock_timestamp()
	`, profile.UserID, profile.DisplayName, profile.Email, profile.AvatarURL, string(profile.Role))
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

	rows, err := s.pool.Query(ctx, `
		SELECT
			v.conversation_id,
			v.appointment_id,
			v.last_message_at,
			v.last_message_id,
			v.last_message_sender_id,
			v.last_message_content,
			v.last_message_created_at,
			v.unread_count,
			v.has_unread,
			v.other_user_id,
			COALESCE(pr.display_name, ''),
			COALESCE(pr.email, ''),
			pr.avatar_url,
			COALESCE(pr.role, '')
		FROM conversation_summaries v
		LEFT JOIN profiles pr ON pr.user_id = v.other_user_id
		WHERE v.user_id = $1
	`, userID)
	if err != nil {
		return nil, classify("failed to list conversation summaries", err)
	}
	defer rows.Close()

	summaries := make([]model.ConversationSummary, 0)
	for rows.Next() {
		var summary model.ConversationSummary
		var lastID, lastSender, lastContent *string
		var lastCreatedAt *time.Time
		var unread int64
		var role string

		if err := rows.Scan(
			&summary.ConversationID,
			&summary.AppointmentID,
			&summary.LastMessageAt,
			&lastID,
			&lastSender,
			&lastContent,
			&lastCreatedAt,
			&unread,
			&summary.HasUnread,
			&summary.OtherParticipant.UserID,
			&summary.OtherParticipant.DisplayName,
			&summary.OtherParticipant.Email,
			&summary.OtherParticipant.AvatarURL,
			&role,
		); err != nil {
			return nil, classify("failed to scan conversation summary", err)
		}

		summary.UnreadCount = int(unread)
		summary.OtherParticipant.Role = model.Role(role)
		if summary.LastMessageAt != nil {
			t := summary.LastMessageAt.UTC()
			summary.LastMessageAt = &t
		}
		if lastID != nil && lastSender != nil && lastContent != nil && lastCreatedAt != nil {
			summary.LastMessage = &model.MessagePreview{
				ID:        *lastID,
				SenderID:  *lastSender,
				Content:   *lastContent,
				CreatedAt: lastCreatedAt.UTC(),
			}
		}

		summaries = append(summaries, summary)
	}

	if err := rows.Err(); err != nil {
		return nil, classify("failed to iterate conversation summaries", err)
	}

	return summaries, nil
}

// membership reports whether the conversation exists and whether userID is
// one of its participants.
func membership(ctx context.Context, db DBTX, conversationID, userID string) (exists, member bool, err error) {
	err = db.QueryRow(ctx, `
		SELECT
			EXISTS (SELECT 1 FROM conversations WHERE id = $1),
			EXISTS (SELECT 1 FROM conversation_participants WHERE conversation_id = $1 AND user_id = $2)
	`, conversationID, userID).Scan(&exists, &member)
	return exists, member, err
}

// notMember returns the typed error explaining why userID could not act on
// the conversation.
func notMember(ctx context.Context, db DBTX, conversationID, userID string) error {
	exists, _, err := membership(ctx, db, conversationID, userID)
	if err != nil {
		return err
	}
	if !exists {
		return apperror.New(apperror.KindNotFound, "conversation not found")
	}
	return apperror.New(apperror.KindUnauthorized, "user is not a participant of the conversation")
}
