package bus

import (
	"log/slog"
	"sync"
)

// DefaultBuffer is the per-subscriber channel depth. Event rates are bounded
// by human-speed switch actuation, so a small buffer is plenty.
const DefaultBuffer = 64

// Bus is a broadcast channel: every subscriber receives every published
// event, in publish order. Publishing never blocks — a subscriber whose
// buffer is full misses that event (counted and logged, never retried).
type Bus struct {
	mu     sync.Mutex
	subs   []*Subscription
	closed bool
	log    *slog.Logger
}

// Subscription is one subscriber's view of the bus. Receive from C; events
// arrive in the order they were published.
type Subscription struct {
	C <-chan Event

	name    string
	ch      chan Event
	bus     *Bus
	dropped int
}

// New creates an empty bus.
func New(log *slog.Logger) *Bus {
	if log == nil {
		log = slog.Default()
	}
	return &Bus{log: log}
}

// Subscribe registers a named subscriber with the default buffer depth.
func (b *Bus) Subscribe(name string) *Subscription {
	return b.SubscribeBuffer(name, DefaultBuffer)
}

// SubscribeBuffer registers a named subscriber with an explicit buffer depth.
func (b *Bus) SubscribeBuffer(name string, depth int) *Subscription {
	if depth < 1 {
		depth = 1
	}
	ch := make(chan Event, depth)
	s := &Subscription{C: ch, name: name, ch: ch, bus: b}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		close(ch)
		return s
	}
	b.subs = append(b.subs, s)
	return s
}

// Publish delivers the event to every current subscriber. A slow subscriber
// cannot block the publisher or other subscribers.
func (b *Bus) Publish(e Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	for _, s := range b.subs {
		select {
		case s.ch <- e:
		default:
			s.dropped++
			b.log.Warn("bus: subscriber buffer full, dropping event",
				"subscriber", s.name, "type", string(e.Type), "dropped", s.dropped)
		}
	}
}

// Close unregisters every subscriber and closes their channels. Publish
// becomes a no-op afterwards.
func (b *Bus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for _, s := range b.subs {
		close(s.ch)
	}
	b.subs = nil
}

// Name returns the subscriber name given at registration.
func (s *Subscription) Name() string { return s.name }

// Dropped returns how many events this subscriber has missed to overflow.
func (s *Subscription) Dropped() int {
	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()
	return s.dropped
}

// Close unregisters the subscription and closes its channel.
func (s *Subscription) Close() {
	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, sub := range b.subs {
		if sub == s {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(s.ch)
			return
		}
	}
}
