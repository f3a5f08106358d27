// Package service provides business logic for the messaging core.
package service

import (
	"context"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/capitalize-ai/care-messaging/internal/realtime"
	"github.com/capitalize-ai/care-messaging/internal/store"
	"github.com/capitalize-ai/care-messaging/pkg/apperror"
	"github.com/capitalize-ai/care-messaging/pkg/logger"
	"github.com/capitalize-ai/care-messaging/pkg/metrics"
	"github.com/capitalize-ai/care-messaging/pkg/tracing"
)

// DefaultPageCap bounds a single message fetch.
const DefaultPageCap = 200

const publishTimeout = 5 * time.Second

// Config tunes the messaging service.
type Config struct {
	// PageCap bounds GetConversationMessages. Zero selects DefaultPageCap.
	PageCap int
	// RealtimeDriver labels realtime metrics.
	RealtimeDriver string
}

// MessagingService orchestrates conversation lookup and creation, message
// send with schema self-repair, read-state updates, and live fan-out.
type MessagingService struct {
	store   store.Store
	broker  realtime.Broker
	cfg     Config
	logger  *logger.Logger
	tracer  trace.Tracer
	repairs singleflight.Group
}

// NewMessagingService creates a messaging service. broker may be nil, in
// which case messages are persisted but not fanned out and Subscribe fails.
func NewMessagingService(st store.Store, broker realtime.Broker, cfg Config, log *logger.Logger) *MessagingService {
	if cfg.PageCap <= 0 {
		cfg.PageCap = DefaultPageCap
	}
	if cfg.RealtimeDriver == "" {
		cfg.RealtimeDriver = "memory"
	}
	return &MessagingService{
		store:  st,
		broker: broker,
		cfg:    cfg,
		logger: log,
		tracer: tracing.Tracer("care-messaging/service"),
	}
}

// Ready reports whether storage is reachable and provisioned.
func (s *MessagingService) Ready(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return err
	}
	return s.store.CheckSchema(ctx)
}

// RealtimeReady reports whether live delivery is available.
func (s *MessagingService) RealtimeReady(ctx context.Context) error {
	if s.broker == nil {
		return apperror.New(apperror.KindMessagingNotConfigured, "realtime delivery is not configured")
	}
	return s.broker.Ping(ctx)
}

// repairSchema runs EnsureSchema once for all concurrent callers.
func (s *MessagingService) repairSchema(ctx context.Context) error {
	_, err, shared := s.repairs.Do("schema", func() (any, error) {
		s.logger.Warn("messaging schema missing, attempting repair")
		if err := s.store.EnsureSchema(ctx); err != nil {
			metrics.SchemaRepairsTotal.WithLabelValues("failure").Inc()
			return nil, err
		}
		metrics.SchemaRepairsTotal.WithLabelValues("success").Inc()
		return nil, nil
	})
	if shared {
		s.logger.Debug("joined in-flight schema repair")
	}
	return err
}

// translate maps a store error into the service taxonomy. Domain-level kinds
// pass through; anything else becomes fallback.
func translate(err error, fallback apperror.Kind, message string) error {
	switch apperror.KindOf(err) {
	case "":
		return nil
	case apperror.KindNotFound,
		apperror.KindUnauthorized,
		apperror.KindInvalidInput,
		apperror.KindInvalidParticipants,
		apperror.KindStorageUnavailable,
		apperror.KindMessagingNotConfigured:
		return err
	case apperror.KindSchemaMissing:
		if fallback == apperror.KindInternal {
			return apperror.Wrap(apperror.KindMessagingNotConfigured, "messaging storage is not configured", err)
		}
	}
	return apperror.Wrap(fallback, message, err)
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return strings.ToLower(string(apperror.KindOf(err)))
}

// observe records latency and logs failures that are not caller mistakes.
func (s *MessagingService) observe(op string, start time.Time, err error, fields ...zap.Field) {
	metrics.OperationDuration.WithLabelValues(op, outcome(err)).Observe(time.Since(start).Seconds())
	if err == nil {
		return
	}

	fields = append(fields, zap.String("operation", op), zap.Error(err))
	switch apperror.KindOf(err) {
	case apperror.KindNotFound, apperror.KindUnauthorized, apperror.KindInvalidInput, apperror.KindInvalidParticipants:
		s.logger.Debug("messaging operation rejected", fields...)
	default:
		s.logger.Error("messaging operation failed", fields...)
	}
}
