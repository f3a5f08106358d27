package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/capitalize-ai/care-messaging/internal/middleware"
	"github.com/capitalize-ai/care-messaging/internal/model"
	"github.com/capitalize-ai/care-messaging/internal/realtime"
	"github.com/capitalize-ai/care-messaging/pkg/logger"
	"github.com/capitalize-ai/care-messaging/pkg/metrics"
)

const (
	// writeWait is the time allowed to write a frame to the peer.
	writeWait = 10 * time.Second

	// pongWait is the time allowed to read the next pong from the peer.
	pongWait = 60 * time.Second

	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Clients send over REST; inbound frames are control traffic only.
	maxInboundSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// origins are enforced by the CORS policy and the bearer token
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// WebSocketHandler serves live conversation updates over a websocket.
type WebSocketHandler struct {
	service Messaging
}

// NewWebSocketHandler creates a new websocket handler.
func NewWebSocketHandler(svc Messaging) *WebSocketHandler {
	return &WebSocketHandler{service: svc}
}

// Connect handles GET /api/v1/conversations/:id/ws
//
// Authorization happens before the upgrade so failures are ordinary HTTP
// errors. Each frame is a model.StreamEvent.
func (h *WebSocketHandler) Connect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := middleware.GetUserID(ctx)
	conversationID := chi.URLParam(r, "id")
	log := logger.FromContext(ctx).With(zap.String("conversation_id", conversationID))

	if err := middleware.ValidateConversationID(conversationID); err != nil {
		writeAppError(w, err)
		return
	}

	sub, degraded, err := openFeed(ctx, h.service, conversationID, userID, log)
	if err != nil {
		writeAppError(w, err)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written an HTTP error
		log.Debug("websocket upgrade failed", zap.Error(err))
		if sub != nil {
			sub.Close()
		}
		return
	}

	metrics.LiveConnectionsActive.WithLabelValues("websocket").Inc()
	defer metrics.LiveConnectionsActive.WithLabelValues("websocket").Dec()

	done := make(chan struct{})
	go readPump(conn, done, log)
	writePump(conn, sub, &model.ConnectedEvent{ConversationID: conversationID, Degraded: degraded}, done, log)
}

// readPump consumes control frames until the peer goes away, then closes done.
func readPump(conn *websocket.Conn, done chan<- struct{}, log *logger.Logger) {
	defer close(done)

	conn.SetReadLimit(maxInboundSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Debug("websocket closed unexpectedly", zap.Error(err))
			}
			return
		}
	}
}

// writePump is the only writer on conn.
func writePump(conn *websocket.Conn, sub realtime.Subscription, connected *model.ConnectedEvent, done <-chan struct{}, log *logger.Logger) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		if sub != nil {
			sub.Close()
		}
		conn.Close()
	}()

	if err := writeEvent(conn, &model.StreamEvent{Type: model.EventTypeConnected, Connected: connected}); err != nil {
		return
	}

	var feed <-chan model.Message
	if sub != nil {
		feed = sub.Messages()
	}

	for {
		select {
		case <-done:
			return

		case msg, ok := <-feed:
			if !ok {
				_ = writeEvent(conn, &model.StreamEvent{
					Type:  model.EventTypeError,
					Error: &model.ErrorEvent{Code: "stream_closed", Message: "live delivery ended, refetch and reconnect"},
				})
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "stream closed"),
					time.Now().Add(writeWait))
				return
			}
			if err := writeEvent(conn, &model.StreamEvent{Type: model.EventTypeMessage, Message: &msg}); err != nil {
				log.Debug("websocket write failed", zap.Error(err))
				return
			}

		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func writeEvent(conn *websocket.Conn, event *model.StreamEvent) error {
	if err := conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
		return err
	}
	return conn.WriteJSON(event)
}
