package events

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/maristed/tether/pkg/logger"
)

// Event is a notification delivered to subscribers
type Event struct {
	Type      string
	Payload   any
	Source    string
	Timestamp time.Time
}

// Handler is a function that handles events
type Handler func(event Event)

// Disposer detaches a subscription. Safe to call multiple times and
// from within a handler; once called, the subscription receives no
// further events, including the remainder of a dispatch in flight.
type Disposer func()

type subscription struct {
	id       string
	handler  Handler
	disposed atomic.Bool
}

// Bus provides decoupled communication between components. Dispatch is
// synchronous on the publisher's goroutine: Publish returns only after
// every live subscriber has run, so a caller that publishes frame N's
// notifications before frame N+1 guarantees its subscribers never see
// the two interleaved.
type Bus struct {
	mu            sync.RWMutex
	subscriptions map[string][]*subscription
	log           *logger.Logger
}

// NewBus creates a new event bus
func NewBus() *Bus {
	return &Bus{
		subscriptions: make(map[string][]*subscription),
		log:           logger.WithComponent("event_bus"),
	}
}

// Subscribe registers a handler for an event type and returns its disposer
func (b *Bus) Subscribe(eventType string, handler Handler) Disposer {
	sub := &subscription{
		id:      uuid.NewString(),
		handler: handler,
	}

	b.mu.Lock()
	b.subscriptions[eventType] = append(b.subscriptions[eventType], sub)
	b.mu.Unlock()

	b.log.Debug("Handler subscribed", "eventType", eventType, "id", sub.id)

	return func() {
		if sub.disposed.Swap(true) {
			return
		}
		b.remove(eventType, sub.id)
		b.log.Debug("Handler unsubscribed", "eventType", eventType, "id", sub.id)
	}
}

// remove deletes a subscription from the registry
func (b *Bus) remove(eventType, id string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscriptions[eventType]
	for i, s := range subs {
		if s.id == id {
			b.subscriptions[eventType] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Publish delivers an event synchronously to every subscriber of its
// type, in subscription order. Handler panics are recovered and logged
// so one consumer cannot break the dispatch for the rest.
func (b *Bus) Publish(eventType string, payload any, source string) {
	event := Event{
		Type:      eventType,
		Payload:   payload,
		Source:    source,
		Timestamp: time.Now(),
	}

	b.mu.RLock()
	subs := make([]*subscription, len(b.subscriptions[eventType]))
	copy(subs, b.subscriptions[eventType])
	b.mu.RUnlock()

	for _, sub := range subs {
		// A disposer may have run after the snapshot was taken, including
		// from an earlier handler in this same dispatch
		if sub.disposed.Load() {
			continue
		}
		b.deliver(sub, event)
	}
}

func (b *Bus) deliver(sub *subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Error("Event handler panicked", "type", event.Type, "error", r)
		}
	}()
	sub.handler(event)
}

// SubscriberCount returns the number of live subscriptions for an event type
func (b *Bus) SubscriberCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscriptions[eventType])
}
