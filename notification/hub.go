package notification

import (
	"errors"
	"log/slog"
	"sync"
)

const (
	EventConnected = "connected"
	EventNewEmail  = "new_email"
)

var (
	ErrSubscriberClosed = errors.New("subscriber closed")
	ErrSubscriberFull   = errors.New("subscriber buffer full")
)

// Subscriber is one open stream. Deliver must not block; a returned error
// drops the subscriber from the hub.
type Subscriber interface {
	Deliver(Event) error
}

// Closer is implemented by subscribers that must be told when the hub drops
// them, so the stream they feed can end and its client reconnect.
type Closer interface {
	Close()
}

// Hub fans mailbox change events out to every open stream. The zero value is
// not usable; use NewHub.
type Hub struct {
	mu          sync.Mutex
	subscribers map[Subscriber]struct{}
	// pending holds handles whose acknowledgement is being delivered.
	pending map[Subscriber]struct{}
}

func NewHub() *Hub {
	return &Hub{
		subscribers: make(map[Subscriber]struct{}),
		pending:     make(map[Subscriber]struct{}),
	}
}

// Register sends sub the connected event and then adds it to the hub, so
// the acknowledgement always precedes any broadcast. Registering a handle
// twice is a no-op; a handle whose acknowledgement fails is not added.
func (h *Hub) Register(sub Subscriber) {
	h.mu.Lock()
	_, registered := h.subscribers[sub]
	_, acking := h.pending[sub]
	if registered || acking {
		h.mu.Unlock()
		return
	}
	h.pending[sub] = struct{}{}
	h.mu.Unlock()

	err := sub.Deliver(Event{Type: EventConnected})

	h.mu.Lock()
	delete(h.pending, sub)
	if err == nil {
		h.subscribers[sub] = struct{}{}
	}
	count := len(h.subscribers)
	h.mu.Unlock()

	if err != nil {
		slog.Warn("Failed to acknowledge stream subscriber", "error", err)
		closeSubscriber(sub)
		return
	}
	slog.Debug("Stream subscriber registered", "subscribers", count)
}

func (h *Hub) Unregister(sub Subscriber) {
	h.mu.Lock()
	delete(h.subscribers, sub)
	count := len(h.subscribers)
	h.mu.Unlock()
	slog.Debug("Stream subscriber unregistered", "subscribers", count)
}

// Broadcast delivers event once to each subscriber registered at call time
// and returns how many deliveries succeeded. Subscribers whose delivery fails
// are removed.
func (h *Hub) Broadcast(event Event) int {
	h.mu.Lock()
	snapshot := make([]Subscriber, 0, len(h.subscribers))
	for sub := range h.subscribers {
		snapshot = append(snapshot, sub)
	}
	h.mu.Unlock()

	delivered := 0
	var failed []Subscriber
	for _, sub := range snapshot {
		if err := sub.Deliver(event); err != nil {
			slog.Warn("Dropping stream subscriber", "event_type", event.Type, "error", err)
			failed = append(failed, sub)
			continue
		}
		delivered++
	}

	if len(failed) > 0 {
		h.mu.Lock()
		for _, sub := range failed {
			delete(h.subscribers, sub)
		}
		h.mu.Unlock()
		for _, sub := range failed {
			closeSubscriber(sub)
		}
	}
	return delivered
}

func closeSubscriber(sub Subscriber) {
	if c, ok := sub.(Closer); ok {
		c.Close()
	}
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// ChannelSubscriber buffers events for a stream handler to drain.
type ChannelSubscriber struct {
	mu     sync.Mutex
	events chan Event
	closed bool
}

func NewChannelSubscriber(buffer int) *ChannelSubscriber {
	if buffer < 1 {
		buffer = 1
	}
	return &ChannelSubscriber{events: make(chan Event, buffer)}
}

func (s *ChannelSubscriber) Deliver(event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrSubscriberClosed
	}
	select {
	case s.events <- event:
		return nil
	default:
		return ErrSubscriberFull
	}
}

func (s *ChannelSubscriber) Events() <-chan Event {
	return s.events
}

func (s *ChannelSubscriber) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		s.closed = true
		close(s.events)
	}
}
