package realtime

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/capitalize-ai/care-messaging/internal/model"
	"github.com/capitalize-ai/care-messaging/pkg/logger"
	"github.com/capitalize-ai/care-messaging/pkg/metrics"
)

const hubDriver = "memory"

// DefaultBuffer is the per-subscriber buffer used when none is configured.
const DefaultBuffer = 64

// ErrClosed is returned when subscribing to a closed broker.
var ErrClosed = errors.New("realtime: broker closed")

// Hub is an in-process Broker. Publish never blocks on a slow subscriber:
// when a subscriber's buffer is full the event is dropped for that
// subscriber only.
type Hub struct {
	mu     sync.RWMutex
	subs   map[string]map[*hubSubscription]struct{}
	buffer int
	closed bool
	logger *logger.Logger
}

var _ Broker = (*Hub)(nil)

// NewHub creates an in-process broker. buffer <= 0 selects DefaultBuffer.
func NewHub(buffer int, log *logger.Logger) *Hub {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Hub{
		subs:   make(map[string]map[*hubSubscription]struct{}),
		buffer: buffer,
		logger: log,
	}
}

// Publish delivers msg to every current subscriber of its conversation.
func (h *Hub) Publish(_ context.Context, msg *model.Message) error {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.closed {
		return ErrClosed
	}

	for sub := range h.subs[msg.ConversationID] {
		if !sub.deliver(*msg) {
			metrics.RealtimeDroppedEvents.WithLabelValues(hubDriver).Inc()
			h.logger.Warn("dropped realtime event for slow subscriber",
				zap.String("conversation_id", msg.ConversationID),
				zap.String("message_id", msg.ID),
			)
		}
	}
	return nil
}

// Subscribe registers a subscription for conversationID.
func (h *Hub) Subscribe(_ context.Context, conversationID string) (Subscription, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrClosed
	}

	sub := &hubSubscription{
		hub:            h,
		conversationID: conversationID,
		ch:             make(chan model.Message, h.buffer),
	}
	if h.subs[conversationID] == nil {
		h.subs[conversationID] = make(map[*hubSubscription]struct{})
	}
	h.subs[conversationID][sub] = struct{}{}
	metrics.RealtimeSubscriptionsActive.WithLabelValues(hubDriver).Inc()

	return sub, nil
}

// Ping always succeeds while the hub is open.
func (h *Hub) Ping(context.Context) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return ErrClosed
	}
	return nil
}

// Close ends every open subscription.
func (h *Hub) Close() error {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil
	}
	h.closed = true
	var open []*hubSubscription
	for _, set := range h.subs {
		for sub := range set {
			open = append(open, sub)
		}
	}
	h.mu.Unlock()

	for _, sub := range open {
		sub.Close()
	}
	return nil
}

// Subscribers returns the number of open subscriptions for conversationID.
func (h *Hub) Subscribers(conversationID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[conversationID])
}

func (h *Hub) remove(sub *hubSubscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.subs[sub.conversationID]
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	if len(set) == 0 {
		delete(h.subs, sub.conversationID)
	}
	metrics.RealtimeSubscriptionsActive.WithLabelValues(hubDriver).Dec()
}

type hubSubscription struct {
	hub            *Hub
	conversationID string

	mu     sync.Mutex
	ch     chan model.Message
	closed bool
	once   sync.Once
}

func (s *hubSubscription) Messages() <-chan model.Message {
	return s.ch
}

// deliver performs a non-blocking send and reports whether it succeeded.
// A closed subscription silently accepts.
func (s *hubSubscription) deliver(msg model.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return true
	}
	select {
	case s.ch <- msg:
		return true
	default:
		return false
	}
}

func (s *hubSubscription) Close() error {
	s.once.Do(func() {
		s.hub.remove(s)

		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
	return nil
}
