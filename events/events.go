// Package events fans feed activity out to connected realtime clients.
// A single goroutine serializes subscribe, unsubscribe and publish
// operations, so subscriber bookkeeping needs no locking.
package events

import (
	"log/slog"
	"time"
)

type EventKind string

const (
	EvtPostCreated  EventKind = "post_created"
	EvtPostDeleted  EventKind = "post_deleted"
	EvtVoteCast     EventKind = "vote_cast"
	EvtBoostStarted EventKind = "boost_started"
)

// FeedEvent is one unit of realtime feed activity.
type FeedEvent struct {
	Kind        EventKind `json:"kind"`
	PostID      uint      `json:"post_id"`
	SubthreadID uint      `json:"subthread_id,omitempty"`
	AuthorID    uint      `json:"author_id,omitempty"`
	Karma       int64     `json:"karma,omitempty"`
	Time        time.Time `json:"time"`
}

type EventManager struct {
	subs []*Subscriber

	ops      chan *operation
	shutdown chan struct{}

	bufferSize int

	log *slog.Logger
}

func NewEventManager(log *slog.Logger) *EventManager {
	if log == nil {
		log = slog.Default()
	}
	return &EventManager{
		ops:        make(chan *operation),
		shutdown:   make(chan struct{}),
		bufferSize: 256,
		log:        log.With("system", "events"),
	}
}

const (
	opSubscribe = iota
	opUnsubscribe
	opSend
)

type operation struct {
	op  int
	sub *Subscriber
	evt *FeedEvent
}

type Subscriber struct {
	outgoing chan *FeedEvent

	filter func(*FeedEvent) bool
}

// Events is the subscriber's receive channel. It is closed on
// Unsubscribe and on manager shutdown.
func (s *Subscriber) Events() <-chan *FeedEvent {
	return s.outgoing
}

// Run processes operations until Shutdown. Call it once, in its own
// goroutine.
func (em *EventManager) Run() {
	for {
		select {
		case op := <-em.ops:
			switch op.op {
			case opSubscribe:
				em.subs = append(em.subs, op.sub)
			case opUnsubscribe:
				for i, s := range em.subs {
					if s == op.sub {
						em.subs[i] = em.subs[len(em.subs)-1]
						em.subs = em.subs[:len(em.subs)-1]
						close(s.outgoing)
						break
					}
				}
			case opSend:
				for _, s := range em.subs {
					if !s.filter(op.evt) {
						continue
					}
					select {
					case s.outgoing <- op.evt:
					default:
						// slow consumer; drop rather than stall the fan-out
						em.log.Error("feed event overflow, dropping", "kind", op.evt.Kind)
					}
				}
			}
		case <-em.shutdown:
			for _, s := range em.subs {
				close(s.outgoing)
			}
			em.subs = nil
			return
		}
	}
}

// Shutdown stops the fan-out loop and closes every subscriber channel.
func (em *EventManager) Shutdown() {
	close(em.shutdown)
}

// Publish delivers the event to every subscriber whose filter accepts
// it. Safe to call from any goroutine; a no-op after Shutdown.
func (em *EventManager) Publish(evt *FeedEvent) {
	if evt.Time.IsZero() {
		evt.Time = time.Now()
	}
	select {
	case em.ops <- &operation{op: opSend, evt: evt}:
	case <-em.shutdown:
	}
}

// Subscribe registers a consumer. A nil filter receives everything.
func (em *EventManager) Subscribe(filter func(*FeedEvent) bool) *Subscriber {
	if filter == nil {
		filter = func(*FeedEvent) bool { return true }
	}
	sub := &Subscriber{
		outgoing: make(chan *FeedEvent, em.bufferSize),
		filter:   filter,
	}
	select {
	case em.ops <- &operation{op: opSubscribe, sub: sub}:
	case <-em.shutdown:
		close(sub.outgoing)
	}
	return sub
}

func (em *EventManager) Unsubscribe(sub *Subscriber) {
	select {
	case em.ops <- &operation{op: opUnsubscribe, sub: sub}:
	case <-em.shutdown:
	}
}

// ThreadFilter keeps only events for one subthread.
func ThreadFilter(threadID uint) func(*FeedEvent) bool {
	return func(evt *FeedEvent) bool {
		return evt.SubthreadID == threadID
	}
}
