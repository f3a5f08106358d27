package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/capitalize-ai/care-messaging/internal/model"
	"github.com/capitalize-ai/care-messaging/pkg/apperror"
	"github.com/capitalize-ai/care-messaging/pkg/metrics"
	"github.com/capitalize-ai/care-messaging/pkg/tracing"
)

// SendMessage persists a message and fans it out to live subscribers.
//
// Content validation belongs to the caller; only a nil request is rejected
// here. If storage reports a missing schema, the schema is repaired and the
// insert retried exactly once. A failed repair surfaces the original error
// as KindMessagingNotConfigured.
func (s *MessagingService) SendMessage(ctx context.Context, conversationID, senderID string, req *model.SendMessageRequest) (msg *model.Message, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "MessagingService.SendMessage",
		trace.WithAttributes(attribute.String("conversation_id", conversationID)))
	defer func() {
		tracing.End(span, err)
		metrics.MessagesSentTotal.WithLabelValues(outcome(err)).Inc()
		s.observe("send_message", start, err, zap.String("conversation_id", conversationID))
	}()

	if req == nil {
		return nil, apperror.New(apperror.KindInvalidInput, "message request is required")
	}

	// a send runs to completion once issued
	ctx = context.WithoutCancel(ctx)

	newMsg := &model.NewMessage{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        req.Content,
		Attachment:     req.Attachment,
	}

	msg, err = s.store.InsertMessage(ctx, newMsg)
	if apperror.Is(err, apperror.KindSchemaMissing) {
		if repairErr := s.repairSchema(ctx); repairErr != nil {
			s.logger.Error("schema repair failed",
				zap.NamedError("original", err),
				zap.Error(repairErr),
			)
			return nil, apperror.Wrap(apperror.KindMessagingNotConfigured, "messaging storage is not configured", err)
		}
		span.AddEvent("schema repaired")
		msg, err = s.store.InsertMessage(ctx, newMsg)
	}
	if err != nil {
		return nil, translate(err, apperror.KindMessageSendFailed, "failed to send message")
	}

	span.SetAttributes(attribute.String("message_id", msg.ID))
	s.publish(ctx, msg)

	return msg, nil
}

// publish fans msg out. Failures are logged and counted; subscribers
// recover by refetching.
func (s *MessagingService) publish(ctx context.Context, msg *model.Message) {
	if s.broker == nil {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	if err := s.broker.Publish(ctx, msg); err != nil {
		metrics.RealtimePublishFailures.WithLabelValues(s.cfg.RealtimeDriver).Inc()
		s.logger.Warn("failed to publish message to realtime channel",
			zap.String("conversation_id", msg.ConversationID),
			zap.String("message_id", msg.ID),
			zap.Error(err),
		)
	}
}

// ClampLimit returns the effective page size for a requested limit:
// non-positive means "as many as allowed" and larger values are capped.
func (s *MessagingService) ClampLimit(limit int) int {
	if limit <= 0 || limit > s.cfg.PageCap {
		return s.cfg.PageCap
	}
	return limit
}

// GetConversationMessages returns non-deleted messages in (CreatedAt, ID)
// order. It has no read-state side effects.
func (s *MessagingService) GetConversationMessages(ctx context.Context, conversationID string, limit, offset int) (messages []model.Message, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "MessagingService.GetConversationMessages",
		trace.WithAttributes(attribute.String("conversation_id", conversationID)))
	defer func() {
		tracing.End(span, err)
		s.observe("get_conversation_messages", start, err, zap.String("conversation_id", conversationID))
	}()

	if offset < 0 {
		offset = 0
	}

	messages, err = s.store.ListMessages(ctx, conversationID, s.ClampLimit(limit), offset)
	if err != nil {
		return nil, translate(err, apperror.KindInternal, "failed to list messages")
	}
	return messages, nil
}

// DeleteMessage soft-deletes a message. Only its sender may delete it and
// repeating the call is a no-op.
func (s *MessagingService) DeleteMessage(ctx context.Context, conversationID, messageID, userID string) (err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "MessagingService.DeleteMessage",
		trace.WithAttributes(
			attribute.String("conversation_id", conversationID),
			attribute.String("message_id", messageID),
		))
	defer func() {
		tracing.End(span, err)
		s.observe("delete_message", start, err, zap.String("message_id", messageID))
	}()

	if err := s.store.SoftDeleteMessage(context.WithoutCancel(ctx), conversationID, messageID, userID); err != nil {
		return translate(err, apperror.KindInternal, "failed to delete message")
	}
	return nil
}
