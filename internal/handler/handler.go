// Package handler provides HTTP handlers for the API.
package handler

import (
	"context"
	"time"

	"github.com/capitalize-ai/care-messaging/internal/model"
	"github.com/capitalize-ai/care-messaging/internal/realtime"
)

// Messaging is the messaging core as seen by the HTTP layer.
// *service.MessagingService implements it.
type Messaging interface {
	GetOrCreateConversation(ctx context.Context, userA, userB string, appointmentID *string) (string, error)
	Authorize(ctx context.Context, conversationID, userID string) error
	SendMessage(ctx context.Context, conversationID, senderID string, req *model.SendMessageRequest) (*model.Message, error)
	ClampLimit(limit int) int
	GetConversationMessages(ctx context.Context, conversationID string, limit, offset int) ([]model.Message, error)
	MarkMessagesAsRead(ctx context.Context, conversationID, userID string) (*time.Time, error)
	GetUserConversations(ctx context.Context, userID string) ([]model.ConversationSummary, error)
	DeleteMessage(ctx context.Context, conversationID, messageID, userID string) error
	SyncProfile(ctx context.Context, profile model.Profile) error
	Subscribe(ctx context.Context, conversationID, userID string) (realtime.Subscription, error)
	Ready(ctx context.Context) error
	RealtimeReady(ctx context.Context) error
}
