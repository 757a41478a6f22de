package events

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recvEvent(t *testing.T, sub *Subscriber) *FeedEvent {
	t.Helper()
	select {
	case evt := <-sub.Events():
		return evt
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
		return nil
	}
}

func TestPublishFanOut(t *testing.T) {
	em := NewEventManager(nil)
	go em.Run()
	defer em.Shutdown()

	all := em.Subscribe(nil)
	threadOnly := em.Subscribe(ThreadFilter(7))

	em.Publish(&FeedEvent{Kind: EvtPostCreated, PostID: 1, SubthreadID: 7})
	em.Publish(&FeedEvent{Kind: EvtVoteCast, PostID: 2, SubthreadID: 9})

	first := recvEvent(t, all)
	assert.Equal(t, EvtPostCreated, first.Kind)
	second := recvEvent(t, all)
	assert.Equal(t, EvtVoteCast, second.Kind)

	filtered := recvEvent(t, threadOnly)
	assert.Equal(t, uint(1), filtered.PostID)
	select {
	case evt := <-threadOnly.Events():
		t.Fatalf("thread filter leaked event %+v", evt)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestPublishStampsTime(t *testing.T) {
	em := NewEventManager(nil)
	go em.Run()
	defer em.Shutdown()

	sub := em.Subscribe(nil)
	em.Publish(&FeedEvent{Kind: EvtBoostStarted, PostID: 3})

	evt := recvEvent(t, sub)
	assert.False(t, evt.Time.IsZero())
}

func TestUnsubscribeClosesChannel(t *testing.T) {
	em := NewEventManager(nil)
	go em.Run()
	defer em.Shutdown()

	sub := em.Subscribe(nil)
	em.Unsubscribe(sub)

	// Channel close is observed as a nil receive once drained.
	select {
	case _, ok := <-sub.Events():
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscriber channel never closed")
	}

	// Publishing after unsubscribe must not panic or deliver.
	em.Publish(&FeedEvent{Kind: EvtPostDeleted, PostID: 4})
}

func TestShutdownStopsDelivery(t *testing.T) {
	em := NewEventManager(nil)
	go em.Run()

	sub := em.Subscribe(nil)
	em.Shutdown()

	// Publish after shutdown returns without blocking.
	done := make(chan struct{})
	go func() {
		em.Publish(&FeedEvent{Kind: EvtPostCreated, PostID: 5})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked after shutdown")
	}

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("subscriber channel never closed on shutdown")
	}
}
