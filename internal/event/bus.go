// Package event provides the in-memory implementation of plugin.EventBus
// plus the process heartbeat ticker.
package event

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/plainview-io/plainview/pkg/plugin"
)

// Compile-time interface guard.
var _ plugin.EventBus = (*Bus)(nil)

// Bus is an in-memory event bus implementing plugin.EventBus.
//
// Publish is serialized: a single event's fan-out is never interleaved
// with another event's fan-out, regardless of how many goroutines
// publish concurrently. Publishes issued from inside a handler
// (re-entrant publishes) are queued and dispatched after the current
// fan-out completes, preserving per-producer order. For any single
// producer, subscribers observe events in publication order.
type Bus struct {
	mu       sync.Mutex
	handlers map[string][]handlerEntry // topic -> handlers
	allSubs  []handlerEntry            // handlers subscribed to all topics
	nextID   uint64

	dispatching bool
	pending     []queuedEvent

	logger *zap.Logger
}

type handlerEntry struct {
	id      uint64
	handler plugin.EventHandler
}

type queuedEvent struct {
	ctx   context.Context
	event plugin.Event
}

// NewBus creates a new in-memory event bus.
func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		handlers: make(map[string][]handlerEntry),
		logger:   logger,
	}
}

// Publish dispatches an event to all matching handlers. If no dispatch is
// in progress the calling goroutine performs the fan-out, draining any
// events queued by re-entrant publishes before returning. If another
// dispatch is already running, the event is queued and delivered by the
// dispatching goroutine; ordering relative to that goroutine's own events
// is unspecified, matching the cross-producer contract.
func (b *Bus) Publish(ctx context.Context, event plugin.Event) error {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	b.mu.Lock()
	if b.dispatching {
		b.pending = append(b.pending, queuedEvent{ctx: ctx, event: event})
		b.mu.Unlock()
		return nil
	}
	b.dispatching = true
	b.mu.Unlock()

	b.dispatch(ctx, event)

	// Drain events published while dispatching (re-entrant or concurrent).
	for {
		b.mu.Lock()
		if len(b.pending) == 0 {
			b.dispatching = false
			b.mu.Unlock()
			return nil
		}
		next := b.pending[0]
		b.pending = b.pending[1:]
		b.mu.Unlock()

		b.dispatch(next.ctx, next.event)
	}
}

// PublishAsync dispatches an event from a separate goroutine, returning
// immediately. Delivery still goes through the serialized dispatch path.
func (b *Bus) PublishAsync(ctx context.Context, event plugin.Event) {
	go func() { _ = b.Publish(ctx, event) }()
}

// dispatch fans one event out to its topic handlers then wildcard
// handlers, in registration order.
func (b *Bus) dispatch(ctx context.Context, event plugin.Event) {
	b.mu.Lock()
	topicHandlers := make([]handlerEntry, len(b.handlers[event.Topic]))
	copy(topicHandlers, b.handlers[event.Topic])
	allHandlers := make([]handlerEntry, len(b.allSubs))
	copy(allHandlers, b.allSubs)
	b.mu.Unlock()

	for _, h := range topicHandlers {
		b.safeCall(ctx, h.handler, event)
	}
	for _, h := range allHandlers {
		b.safeCall(ctx, h.handler, event)
	}
}

// Subscribe registers a handler for a specific topic. Returns an unsubscribe function.
func (b *Bus) Subscribe(topic string, handler plugin.EventHandler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handlers[topic] = append(b.handlers[topic], handlerEntry{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		entries := b.handlers[topic]
		for i, e := range entries {
			if e.id == id {
				b.handlers[topic] = append(entries[:i], entries[i+1:]...)
				return
			}
		}
	}
}

// SubscribeAll registers a handler for all topics. Returns an unsubscribe function.
func (b *Bus) SubscribeAll(handler plugin.EventHandler) (unsubscribe func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.allSubs = append(b.allSubs, handlerEntry{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, e := range b.allSubs {
			if e.id == id {
				b.allSubs = append(b.allSubs[:i], b.allSubs[i+1:]...)
				return
			}
		}
	}
}

// safeCall isolates handler panics so one failing subscriber cannot
// prevent delivery to the rest.
func (b *Bus) safeCall(ctx context.Context, handler plugin.EventHandler, event plugin.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				zap.String("topic", event.Topic),
				zap.String("source", event.Source),
				zap.Any("panic", r),
			)
		}
	}()
	handler(ctx, event)
}
