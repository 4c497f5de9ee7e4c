package events

import (
	"context"
	"sync"

	"parcel-sorter/internal/common/logging"
)

// Bus is the in-process Publisher: events fan out synchronously to every
// subscriber registered for their type. A failing subscriber is logged and
// does not affect the others or the publisher; delivery is at-least-once
// from the subscriber's point of view.
type Bus struct {
	mu       sync.RWMutex
	handlers map[Type][]Handler
	logger   logging.Logger
}

// NewBus creates an empty in-process bus.
func NewBus() *Bus {
	return &Bus{
		handlers: make(map[Type][]Handler),
		logger:   logging.WithFields(logging.String("component", "event-bus")),
	}
}

// Subscribe registers a handler for one event type. Safe for concurrent use.
func (b *Bus) Subscribe(eventType Type, handler Handler) {
	if handler == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.handlers[eventType] = append(b.handlers[eventType], handler)
}

// Publish delivers the event to every subscriber of its type.
func (b *Bus) Publish(ctx context.Context, event Event) error {
	b.mu.RLock()
	handlers := b.handlers[event.Type]
	b.mu.RUnlock()

	for _, handler := range handlers {
		if err := handler(ctx, event); err != nil {
			b.logger.Error("event handler failed", err,
				logging.String("event_type", string(event.Type)),
				logging.String("event_id", event.ID),
				logging.String("parcel_id", event.ParcelID),
			)
		}
	}
	return nil
}

// Close is a no-op; the bus holds no external resources.
func (b *Bus) Close() error { return nil }
