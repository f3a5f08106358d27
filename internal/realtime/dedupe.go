package realtime

import (
	"sort"
	"sync"

	"github.com/capitalize-ai/care-messaging/internal/model"
)

// DefaultDedupeWindow is the number of recent message ids a Deduper remembers.
const DefaultDedupeWindow = 1024

// Deduper remembers recently seen message ids so a consumer can drop
// redelivered events. A message echoed locally from a send response and the
// same message arriving over the live channel share an id and are treated as
// one event.
type Deduper struct {
	mu     sync.Mutex
	seen   map[string]struct{}
	ring   []string
	next   int
	window int
}

// NewDeduper creates a Deduper remembering up to window ids. window <= 0
// selects DefaultDedupeWindow.
func NewDeduper(window int) *Deduper {
	if window <= 0 {
		window = DefaultDedupeWindow
	}
	return &Deduper{
		seen:   make(map[string]struct{}, window),
		ring:   make([]string, window),
		window: window,
	}
}

// Observe records id and reports whether it was new. The oldest id is
// forgotten once the window is full.
func (d *Deduper) Observe(id string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.seen[id]; ok {
		return false
	}

	if old := d.ring[d.next]; old != "" {
		delete(d.seen, old)
	}
	d.ring[d.next] = id
	d.next = (d.next + 1) % d.window
	d.seen[id] = struct{}{}
	return true
}

// Seed marks every message in msgs as seen, typically the page fetched when
// a view opens.
func (d *Deduper) Seed(msgs []model.Message) {
	for i := range msgs {
		d.Observe(msgs[i].ID)
	}
}

// Reconcile merges msg into timeline, which must already be in conversation
// order. A message whose id was already observed is discarded and timeline is
// returned unchanged with added=false.
func (d *Deduper) Reconcile(timeline []model.Message, msg model.Message) (out []model.Message, added bool) {
	if !d.Observe(msg.ID) {
		return timeline, false
	}
	for i := range timeline {
		if timeline[i].ID == msg.ID {
			return timeline, false
		}
	}

	i := sort.Search(len(timeline), func(i int) bool {
		return msg.Before(&timeline[i])
	})
	timeline = append(timeline, model.Message{})
	copy(timeline[i+1:], timeline[i:])
	timeline[i] = msg
	return timeline, true
}
