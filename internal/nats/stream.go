package nats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/capitalize-ai/care-messaging/pkg/metrics"
)

const (
	// StreamName is the name of the conversation messages stream.
	StreamName = "CONVERSATION_MESSAGES"

	// SubjectPrefix is the prefix for all message subjects.
	SubjectPrefix = "msg"

	// DuplicateWindow is how long the server remembers Nats-Msg-Id values.
	DuplicateWindow = 2 * time.Minute
)

// StreamManager handles JetStream stream operations.
type StreamManager struct {
	client *Client
}

// NewStreamManager creates a new stream manager.
func NewStreamManager(client *Client) *StreamManager {
	return &StreamManager{client: client}
}

// EnsureStream creates the messages stream if it does not exist. The stream
// is a short-lived fan-out buffer; the database remains the source of truth.
func (m *StreamManager) EnsureStream(ctx context.Context) error {
	js := m.client.JetStream()

	_, err := js.Stream(ctx, StreamName)
	if err == nil {
		return nil
	}
	if !errors.Is(err, jetstream.ErrStreamNotFound) {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	_, err = js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Subjects:    []string{fmt.Sprintf("%s.>", SubjectPrefix)},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      24 * time.Hour,
		MaxBytes:    1024 * 1024 * 1024, // 1GB
		Storage:     jetstream.FileStorage,
		Replicas:    1,
		Duplicates:  DuplicateWindow,
		Discard:     jetstream.DiscardOld,
		Description: "Live fan-out of persisted conversation messages",
	})
	if err != nil && !errors.Is(err, jetstream.ErrStreamNameAlreadyInUse) {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	return nil
}

// RecordStats exports stream size gauges.
func (m *StreamManager) RecordStats(ctx context.Context) error {
	stream, err := m.client.JetStream().Stream(ctx, StreamName)
	if err != nil {
		return fmt.Errorf("failed to look up stream: %w", err)
	}

	info, err := stream.Info(ctx)
	if err != nil {
		return fmt.Errorf("failed to get stream info: %w", err)
	}

	metrics.NATSStreamMessages.WithLabelValues(StreamName).Set(float64(info.State.Msgs))
	metrics.NATSStreamBytes.WithLabelValues(StreamName).Set(float64(info.State.Bytes))
	return nil
}

// MessageSubject returns the subject carrying messages of a conversation.
func MessageSubject(conversationID string) string {
	return fmt.Sprintf("%s.%s", SubjectPrefix, conversationID)
}
