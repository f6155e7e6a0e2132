package notification

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSubscriber struct {
	mu     sync.Mutex
	events []Event
	fail   bool
}

func (r *recordingSubscriber) Deliver(e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fail {
		return errors.New("stream closed")
	}
	r.events = append(r.events, e)
	return nil
}

func (r *recordingSubscriber) received() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

func TestRegisterAcknowledges(t *testing.T) {
	hub := NewHub()
	sub := &recordingSubscriber{}

	hub.Register(sub)
	hub.Register(sub)

	assert.Equal(t, 1, hub.Count())
	assert.Equal(t, []Event{{Type: EventConnected}}, sub.received())
}

func TestRegisterDropsFailedAck(t *testing.T) {
	hub := NewHub()
	hub.Register(&recordingSubscriber{fail: true})
	assert.Equal(t, 0, hub.Count())
}

func TestBroadcastRemovesFailingSubscriber(t *testing.T) {
	hub := NewHub()
	first := &recordingSubscriber{}
	second := &recordingSubscriber{}
	third := &recordingSubscriber{}
	hub.Register(first)
	hub.Register(second)
	hub.Register(third)

	second.mu.Lock()
	second.fail = true
	second.mu.Unlock()

	event := Event{Type: EventNewEmail, EmailAddress: "me@example.com", HistoryId: "12345"}
	assert.Equal(t, 2, hub.Broadcast(event))
	assert.Equal(t, 2, hub.Count())

	assert.Equal(t, 2, hub.Broadcast(event))
	assert.Equal(t, []Event{{Type: EventConnected}, event, event}, first.received())
	assert.Equal(t, []Event{{Type: EventConnected}}, second.received())
	assert.Len(t, third.received(), 3)
}

func TestUnregisterIsIdempotent(t *testing.T) {
	hub := NewHub()
	sub := &recordingSubscriber{}
	hub.Register(sub)
	hub.Unregister(sub)
	hub.Unregister(sub)

	assert.Equal(t, 0, hub.Count())
	assert.Equal(t, 0, hub.Broadcast(Event{Type: EventNewEmail}))
}

func TestChannelSubscriber(t *testing.T) {
	sub := NewChannelSubscriber(1)
	require.NoError(t, sub.Deliver(Event{Type: EventConnected}))
	assert.ErrorIs(t, sub.Deliver(Event{Type: EventNewEmail}), ErrSubscriberFull)

	assert.Equal(t, Event{Type: EventConnected}, <-sub.Events())

	sub.Close()
	sub.Close()
	assert.ErrorIs(t, sub.Deliver(Event{Type: EventNewEmail}), ErrSubscriberClosed)
	_, open := <-sub.Events()
	assert.False(t, open)
}

func TestConcurrentBroadcast(t *testing.T) {
	hub := NewHub()
	subs := make([]*ChannelSubscriber, 10)
	for i := range subs {
		subs[i] = NewChannelSubscriber(64)
		hub.Register(subs[i])
	}

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			hub.Broadcast(Event{Type: EventNewEmail})
		}()
	}
	wg.Wait()

	for _, sub := range subs {
		assert.Len(t, sub.Events(), 21)
	}
}

func TestBroadcastClosesDroppedChannelSubscriber(t *testing.T) {
	hub := NewHub()
	sub := NewChannelSubscriber(1)
	hub.Register(sub)

	assert.Equal(t, 0, hub.Broadcast(Event{Type: EventNewEmail}))
	assert.Equal(t, 0, hub.Count())

	ack, ok := <-sub.Events()
	require.True(t, ok)
	assert.Equal(t, EventConnected, ack.Type)

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok, "dropped subscriber must be closed")
	case <-time.After(time.Second):
		t.Fatal("dropped subscriber was left open")
	}
	assert.ErrorIs(t, sub.Deliver(Event{Type: EventNewEmail}), ErrSubscriberClosed)
}

// slowAckSubscriber blocks its first delivery until released.
type slowAckSubscriber struct {
	acks    atomic.Int32
	started chan struct{}
	release chan struct{}
}

func (s *slowAckSubscriber) Deliver(e Event) error {
	if e.Type == EventConnected && s.acks.Add(1) == 1 {
		close(s.started)
		<-s.release
	}
	return nil
}

func TestConcurrentRegisterAcknowledgesOnce(t *testing.T) {
	hub := NewHub()
	sub := &slowAckSubscriber{started: make(chan struct{}), release: make(chan struct{})}

	done := make(chan struct{})
	go func() {
		hub.Register(sub)
		close(done)
	}()
	<-sub.started

	hub.Register(sub)
	close(sub.release)
	<-done

	assert.Equal(t, int32(1), sub.acks.Load())
	assert.Equal(t, 1, hub.Count())
}
