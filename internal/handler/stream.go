package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/capitalize-ai/care-messaging/internal/middleware"
	"github.com/capitalize-ai/care-messaging/internal/model"
	"github.com/capitalize-ai/care-messaging/internal/realtime"
	"github.com/capitalize-ai/care-messaging/pkg/apperror"
	"github.com/capitalize-ai/care-messaging/pkg/logger"
	"github.com/capitalize-ai/care-messaging/pkg/metrics"
)

// DefaultHeartbeatInterval is the SSE keep-alive period.
const DefaultHeartbeatInterval = 30 * time.Second

// StreamHandler handles SSE streaming endpoints.
type StreamHandler struct {
	service   Messaging
	heartbeat time.Duration
}

// NewStreamHandler creates a new stream handler. A non-positive heartbeat
// selects DefaultHeartbeatInterval.
func NewStreamHandler(svc Messaging, heartbeat time.Duration) *StreamHandler {
	if heartbeat <= 0 {
		heartbeat = DefaultHeartbeatInterval
	}
	return &StreamHandler{service: svc, heartbeat: heartbeat}
}

// Stream handles GET /api/v1/conversations/:id/stream
//
// Only messages persisted after the stream opens are delivered. Clients
// fetch history with the message list endpoint and reconcile by id. When
// realtime delivery is unavailable the connected event carries
// degraded=true and only heartbeats follow.
func (h *StreamHandler) Stream(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	conversationID := chi.URLParam(r, "id")
	log := logger.FromContext(ctx).With(zap.String("conversation_id", conversationID))

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeAppError(w, err)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	sub, degraded, err := openFeed(ctx, h.service, conversationID, userID, log)
	if err != nil {
		writeAppError(w, err)
		return
	}
	if sub != nil {
		defer sub.Close()
	}

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no") // Disable nginx buffering

	// Track active connection
	metrics.LiveConnectionsActive.WithLabelValues("sse").Inc()
	defer metrics.LiveConnectionsActive.WithLabelValues("sse").Dec()

	if err := sendSSEEvent(w, flusher, model.EventTypeConnected, &model.ConnectedEvent{
		ConversationID: conversationID,
		Degraded:       degraded,
	}); err != nil {
		return
	}

	var feed <-chan model.Message
	if sub != nil {
		feed = sub.Messages()
	}

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Debug("SSE client disconnected")
			return

		case msg, ok := <-feed:
			if !ok {
				_ = sendSSEEvent(w, flusher, model.EventTypeError, &model.ErrorEvent{
					Code:    "stream_closed",
					Message: "live delivery ended, refetch and reconnect",
				})
				return
			}
			if err := sendSSEEvent(w, flusher, model.EventTypeMessage, &msg); err != nil {
				log.Debug("SSE write failed", zap.Error(err))
				return
			}

		case <-heartbeat.C:
			if err := sendSSEEvent(w, flusher, model.EventTypeHeartbeat, &model.HeartbeatEvent{
				Timestamp: time.Now().UTC(),
			}); err != nil {
				return
			}
		}
	}
}

// openFeed authorizes the caller and subscribes to the conversation. An
// unavailable realtime backend yields degraded=true instead of an error so
// the client can fall back to polling.
func openFeed(ctx context.Context, svc Messaging, conversationID, userID string, log *logger.Logger) (realtime.Subscription, bool, error) {
	if err := svc.Authorize(ctx, conversationID, userID); err != nil {
		return nil, false, err
	}

	sub, err := svc.Subscribe(ctx, conversationID, userID)
	switch apperror.KindOf(err) {
	case "":
		return sub, false, nil
	case apperror.KindMessagingNotConfigured, apperror.KindStorageUnavailable:
		log.Warn("realtime unavailable, serving degraded stream", zap.Error(err))
		return nil, true, nil
	default:
		return nil, false, err
	}
}

func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event model.EventType, data interface{}) error {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return err
	}

	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, jsonData); err != nil {
		return err
	}
	flusher.Flush()

	return nil
}
