// Package store defines the persistent store contract for conversations,
// participants, messages, and the derived conversation summary view.
//
// Adapters return *apperror.Error values. In particular a missing table,
// column, or view is reported as apperror.KindSchemaMissing so callers can
// decide to repair the schema without inspecting driver error text, and
// transient connectivity failures are reported as KindStorageUnavailable.
package store

import (
	"context"
	"time"

	"github.com/capitalize-ai/care-messaging/internal/model"
)

// Store is the conversation repository.
type Store interface {
	// GetOrCreateConversation returns the conversation shared by the unordered
	// pair (userA, userB), creating it together with both participant rows in
	// a single transaction if it does not exist. created reports whether this
	// call created it.
	GetOrCreateConversation(ctx context.Context, userA, userB string, appointmentID *string) (id string, created bool, err error)

	// IsParticipant reports whether userID participates in the conversation.
	// It returns a KindNotFound error if the conversation does not exist.
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)

	// InsertMessage persists msg, assigning ID and CreatedAt, and advances the
	// conversation's LastMessageAt in the same transaction. It returns
	// KindUnauthorized if the sender is not a participant.
	InsertMessage(ctx context.Context, msg *model.NewMessage) (*model.Message, error)

	// ListMessages returns non-deleted messages ordered by (created_at, id).
	ListMessages(ctx context.Context, conversationID string, limit, offset int) ([]model.Message, error)

	// MarkRead advances the participant's read cursor to now without ever
	// moving it backwards, stamps read_at on other senders' messages up to the
	// cursor, and returns the resulting cursor.
	MarkRead(ctx context.Context, conversationID, userID string) (time.Time, error)

	// ListSummaries returns one summary per conversation userID participates in.
	// Ordering is left to the caller.
	ListSummaries(ctx context.Context, userID string) ([]model.ConversationSummary, error)

	// SoftDeleteMessage sets deleted_at on a message authored by userID.
	SoftDeleteMessage(ctx context.Context, conversationID, messageID, userID string) error

	// UpsertProfile stores the public profile of a user.
	UpsertProfile(ctx context.Context, profile model.Profile) error

	// EnsureSchema creates any missing tables, indices, and views.
	EnsureSchema(ctx context.Context) error

	// CheckSchema returns a KindSchemaMissing error if any required object is absent.
	CheckSchema(ctx context.Context) error

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close releases the underlying connections.
	Close()
}

// OrderedPair returns a and b sorted so that the same two users always map
// to the same (low, high) key regardless of argument order.
func OrderedPair(a, b string) (low, high string) {
	if a <= b {
		return a, b
	}
	return b, a
}

// SchemaObjects lists the storage objects every adapter must provide.
var SchemaObjects = []string{
	"conversations",
	"conversation_participants",
	"messages",
	"profiles",
	"conversation_summaries",
}
