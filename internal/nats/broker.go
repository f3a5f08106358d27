package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/nats-io/nats.go/jetstream"
	"go.uber.org/zap"

	"github.com/capitalize-ai/care-messaging/internal/model"
	"github.com/capitalize-ai/care-messaging/internal/realtime"
	"github.com/capitalize-ai/care-messaging/pkg/logger"
	"github.com/capitalize-ai/care-messaging/pkg/metrics"
)

const brokerDriver = "nats"

// ErrDisconnected is returned by Ping while the connection is down.
var ErrDisconnected = errors.New("nats: not connected")

// Broker is a realtime.Broker backed by JetStream.
//
// Publishing sets Nats-Msg-Id to the message id so the server suppresses
// duplicates inside DuplicateWindow. Each subscription is an ordered
// consumer that only delivers messages stored after it was created.
type Broker struct {
	client  *Client
	streams *StreamManager
	buffer  int
	logger  *logger.Logger

	mu     sync.Mutex
	subs   map[*subscription]struct{}
	closed bool
}

var _ realtime.Broker = (*Broker)(nil)

// NewBroker ensures the stream exists and returns a broker. buffer is the
// per-subscription channel size.
func NewBroker(ctx context.Context, client *Client, buffer int, log *logger.Logger) (*Broker, error) {
	if buffer <= 0 {
		buffer = realtime.DefaultBuffer
	}

	streams := NewStreamManager(client)
	if err := streams.EnsureStream(ctx); err != nil {
		return nil, err
	}

	return &Broker{
		client:  client,
		streams: streams,
		buffer:  buffer,
		logger:  log,
		subs:    make(map[*subscription]struct{}),
	}, nil
}

// Publish stores msg on the conversation subject.
func (b *Broker) Publish(ctx context.Context, msg *model.Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	_, err = b.client.JetStream().Publish(ctx, MessageSubject(msg.ConversationID), data, jetstream.WithMsgID(msg.ID))
	if err != nil {
		return fmt.Errorf("failed to publish message: %w", err)
	}
	return nil
}

// Subscribe creates an ordered consumer filtered to the conversation.
func (b *Broker) Subscribe(ctx context.Context, conversationID string) (realtime.Subscription, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, realtime.ErrClosed
	}
	b.mu.Unlock()

	consumer, err := b.client.JetStream().OrderedConsumer(ctx, StreamName, jetstream.OrderedConsumerConfig{
		FilterSubjects: []string{MessageSubject(conversationID)},
		DeliverPolicy:  jetstream.DeliverNewPolicy,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer: %w", err)
	}

	sub := &subscription{
		broker:         b,
		conversationID: conversationID,
		ch:             make(chan model.Message, b.buffer),
	}

	cc, err := consumer.Consume(sub.handle, jetstream.ConsumeErrHandler(func(_ jetstream.ConsumeContext, err error) {
		b.logger.Warn("realtime consumer error",
			zap.String("conversation_id", conversationID),
			zap.Error(err),
		)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to start consumer: %w", err)
	}
	sub.cc = cc

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		cc.Stop()
		return nil, realtime.ErrClosed
	}
	b.subs[sub] = struct{}{}
	b.mu.Unlock()
	metrics.RealtimeSubscriptionsActive.WithLabelValues(brokerDriver).Inc()

	return sub, nil
}

// Ping checks the connection and refreshes the stream gauges.
func (b *Broker) Ping(ctx context.Context) error {
	if !b.client.IsConnected() {
		return ErrDisconnected
	}
	return b.streams.RecordStats(ctx)
}

// Close stops every open subscription. The underlying client is closed by
// its owner.
func (b *Broker) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	open := make([]*subscription, 0, len(b.subs))
	for sub := range b.subs {
		open = append(open, sub)
	}
	b.mu.Unlock()

	for _, sub := range open {
		sub.Close()
	}
	return nil
}

func (b *Broker) remove(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.subs[sub]; !ok {
		return
	}
	delete(b.subs, sub)
	metrics.RealtimeSubscriptionsActive.WithLabelValues(brokerDriver).Dec()
}

type subscription struct {
	broker         *Broker
	conversationID string
	cc             jetstream.ConsumeContext

	mu     sync.Mutex
	ch     chan model.Message
	closed bool
	once   sync.Once
}

func (s *subscription) Messages() <-chan model.Message {
	return s.ch
}

func (s *subscription) handle(msg jetstream.Msg) {
	var m model.Message
	if err := json.Unmarshal(msg.Data(), &m); err != nil {
		s.broker.logger.Warn("dropping undecodable realtime event",
			zap.String("subject", msg.Subject()),
			zap.Error(err),
		)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	select {
	case s.ch <- m:
	default:
		metrics.RealtimeDroppedEvents.WithLabelValues(brokerDriver).Inc()
		s.broker.logger.Warn("dropped realtime event for slow subscriber",
			zap.String("conversation_id", s.conversationID),
			zap.String("message_id", m.ID),
		)
	}
}

func (s *subscription) Close() error {
	s.once.Do(func() {
		if s.cc != nil {
			s.cc.Stop()
		}
		s.broker.remove(s)

		s.mu.Lock()
		s.closed = true
		close(s.ch)
		s.mu.Unlock()
	})
	return nil
}
