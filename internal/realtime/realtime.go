// Package realtime defines the live message channel: a publish/subscribe
// transport that pushes newly persisted messages to the subscribers of a
// conversation.
//
// Delivery is at least once and best-effort ordered. A subscription is never
// the only path to data: refetching the message list reproduces the same end
// state even if every event was dropped. Consumers de-duplicate by message id,
// see Deduper.
package realtime

import (
	"context"

	"github.com/capitalize-ai/care-messaging/internal/model"
)

// Publisher fans a persisted message out to live subscribers.
type Publisher interface {
	Publish(ctx context.Context, msg *model.Message) error
}

// Broker is a realtime transport.
type Broker interface {
	Publisher

	// Subscribe returns a subscription that receives every message published
	// for conversationID after Subscribe returns.
	Subscribe(ctx context.Context, conversationID string) (Subscription, error)

	// Ping reports whether the transport can currently deliver events.
	Ping(ctx context.Context) error

	// Close releases the broker and every open subscription.
	Close() error
}

// Subscription is a live feed of messages for one conversation.
type Subscription interface {
	// Messages is closed once the subscription ends.
	Messages() <-chan model.Message

	// Close is idempotent. After it returns no further values are delivered.
	Close() error
}
