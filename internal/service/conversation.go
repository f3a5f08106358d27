package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/care-messaging/internal/model"
	"github.com/capitalize-ai/care-messaging/internal/realtime"
	"github.com/capitalize-ai/care-messaging/internal/store"
	"github.com/capitalize-ai/care-messaging/pkg/apperror"
	"github.com/capitalize-ai/care-messaging/pkg/metrics"
	"github.com/capitalize-ai/care-messaging/pkg/tracing"
)

// GetOrCreateConversation returns the id of the conversation between userA
// and userB, creating it on first use. Argument order does not matter and
// concurrent callers always observe the same id. appointmentID is recorded
// only when the conversation is created.
func (s *MessagingService) GetOrCreateConversation(ctx context.Context, userA, userB string, appointmentID *string) (id string, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "MessagingService.GetOrCreateConversation")
	defer func() {
		tracing.End(span, err)
		s.observe("get_or_create_conversation", start, err)
	}()

	ctx = context.WithoutCancel(ctx)

	id, created, err := s.store.GetOrCreateConversation(ctx, userA, userB, appointmentID)
	if err != nil {
		metrics.ConversationsTotal.WithLabelValues("failed").Inc()
		return "", translate(err, apperror.KindConversationCreateFailed, "failed to create conversation")
	}

	span.SetAttributes(attribute.String("conversation_id", id), attribute.Bool("created", created))
	if created {
		metrics.ConversationsTotal.WithLabelValues("created").Inc()
		s.logger.Info("conversation created", zap.String("conversation_id", id))
	} else {
		metrics.ConversationsTotal.WithLabelValues("existing").Inc()
	}

	return id, nil
}

// Authorize returns nil if userID participates in the conversation,
// KindUnauthorized if not, and KindNotFound if the conversation is unknown.
func (s *MessagingService) Authorize(ctx context.Context, conversationID, userID string) error {
	ok, err := s.store.IsParticipant(ctx, conversationID, userID)
	if err != nil {
		return translate(err, apperror.KindInternal, "failed to check conversation membership")
	}
	if !ok {
		return apperror.New(apperror.KindUnauthorized, "user is not a participant of the conversation")
	}
	return nil
}

// MarkMessagesAsRead advances the caller's read cursor to now and returns
// it. The cursor never moves backwards and the caller's own messages are
// never marked.
func (s *MessagingService) MarkMessagesAsRead(ctx context.Context, conversationID, userID string) (cursor *time.Time, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "MessagingService.MarkMessagesAsRead",
		trace.WithAttributes(attribute.String("conversation_id", conversationID)))
	defer func() {
		tracing.End(span, err)
		s.observe("mark_messages_read", start, err, zap.String("conversation_id", conversationID))
	}()

	at, err := s.store.MarkRead(context.WithoutCancel(ctx), conversationID, userID)
	if err != nil {
		return nil, translate(err, apperror.KindInternal, "failed to mark messages read")
	}
	return &at, nil
}

// GetUserConversations returns the inbox of userID in display order.
func (s *MessagingService) GetUserConversations(ctx context.Context, userID string) (summaries []model.ConversationSummary, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "MessagingService.GetUserConversations")
	defer func() {
		tracing.End(span, err)
		s.observe("get_user_conversations", start, err)
	}()

	summaries, err = s.store.ListSummaries(ctx, userID)
	if err != nil {
		return nil, translate(err, apperror.KindInternal, "failed to list conversations")
	}

	store.SortSummaries(summaries)
	span.SetAttributes(attribute.Int("conversations", len(summaries)))
	return summaries, nil
}

// SyncProfile stores the public profile of an authenticated user so the
// counterpart's inbox can render it.
func (s *MessagingService) SyncProfile(ctx context.Context, profile model.Profile) (err error) {
	start := time.Now()
	defer func() { s.observe("sync_profile", start, err) }()

	if profile.UserID == "" {
		return apperror.New(apperror.KindInvalidInput, "profile user id is required")
	}
	if err := s.store.UpsertProfile(context.WithoutCancel(ctx), profile); err != nil {
		return translate(err, apperror.KindInternal, "failed to sync profile")
	}
	return nil
}

// Subscribe opens a live feed of messages persisted in the conversation
// after the call returns. The caller must Close the subscription.
func (s *MessagingService) Subscribe(ctx context.Context, conversationID, userID string) (realtime.Subscription, error) {
	if err := s.Authorize(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	if s.broker == nil {
		return nil, apperror.New(apperror.KindMessagingNotConfigured, "realtime delivery is not configured")
	}

	sub, err := s.broker.Subscribe(ctx, conversationID)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindStorageUnavailable, "failed to subscribe to conversation", err)
	}
	return sub, nil
}
