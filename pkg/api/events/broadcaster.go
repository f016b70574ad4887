// Package events is the in-process fan-out feeding the websocket
// stream. Delivery is best-effort: a subscriber that stops draining
// its channel loses events rather than stalling the producer.
package events

import (
	"sync"
	"time"
)

// Event types emitted by the daemon.
const (
	EventTypeOccurrence     = "signal.occurrence"
	EventTypeConfigReloaded = "config.reloaded"
)

const defaultSubscriberBuffer = 16

// Event is the envelope every stream consumer receives.
type Event struct {
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// BroadcastMetrics counts broadcast events per type.
type BroadcastMetrics interface {
	RecordEventBroadcast(eventType string)
}

// Broadcaster fans events out to subscriber channels. Channels are
// closed exactly once, by Unsubscribe or Close, never by the sender
// racing them: sends hold the read lock while close requires the
// write lock.
type Broadcaster struct {
	mu      sync.RWMutex
	subs    map[chan Event]struct{}
	metrics BroadcastMetrics
	closed  bool
}

func NewBroadcaster() *Broadcaster {
	return &Broadcaster{subs: make(map[chan Event]struct{})}
}

// SetMetrics installs an optional broadcast counter.
func (b *Broadcaster) SetMetrics(m BroadcastMetrics) {
	b.mu.Lock()
	b.metrics = m
	b.mu.Unlock()
}

// Subscribe registers a consumer with the given channel buffer; a
// non-positive buffer gets a small default. After Close the returned
// channel is already closed.
func (b *Broadcaster) Subscribe(buffer int) chan Event {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	ch := make(chan Event, buffer)

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return ch
	}
	b.subs[ch] = struct{}{}
	return ch
}

// Unsubscribe drops the channel and closes it. Unknown channels are
// ignored, so unsubscribing twice is safe.
func (b *Broadcaster) Unsubscribe(ch chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[ch]; !ok {
		return
	}
	delete(b.subs, ch)
	close(ch)
}

// Broadcast hands event to every subscriber with buffer space left;
// the rest miss it. A zero timestamp is stamped with the current time.
func (b *Broadcaster) Broadcast(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return
	}

	if b.metrics != nil {
		b.metrics.RecordEventBroadcast(event.Type)
	}

	for ch := range b.subs {
		select {
		case ch <- event:
		default:
		}
	}
}

// BroadcastOccurrence emits a signal occurrence event.
func (b *Broadcaster) BroadcastOccurrence(kind string, observedAt time.Time) {
	b.Broadcast(Event{
		Type: EventTypeOccurrence,
		Payload: map[string]any{
			"kind":        kind,
			"observed_at": observedAt.UTC().Format(time.RFC3339Nano),
		},
	})
}

// BroadcastConfigReloaded emits a configuration reload event.
func (b *Broadcaster) BroadcastConfigReloaded(watchedKinds []string, logLevel string) {
	b.Broadcast(Event{
		Type: EventTypeConfigReloaded,
		Payload: map[string]any{
			"watched_kinds": watchedKinds,
			"log_level":     logLevel,
		},
	})
}

// Close closes every subscriber channel and marks the broadcaster
// finished. Further Broadcast calls are no-ops.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
	}
	clear(b.subs)
}
