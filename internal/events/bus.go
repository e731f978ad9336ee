package events

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Handler receives published events. Handlers run synchronously on the
// publisher's goroutine and must not block.
type Handler func(ctx context.Context, event interface{})

// Bus fans events out to any number of subscribers
type Bus struct {
	mu          sync.RWMutex
	subscribers map[int]Handler
	nextID      int
	logger      *zap.Logger
}

func NewBus(logger *zap.Logger) *Bus {
	return &Bus{
		subscribers: make(map[int]Handler),
		logger:      logger,
	}
}

// Subscribe registers h and returns a function that removes it
func (b *Bus) Subscribe(h Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.subscribers[id] = h

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subscribers, id)
	}
}

// Publish delivers event to every subscriber in subscription order.
// A panicking subscriber is logged and skipped.
func (b *Bus) Publish(ctx context.Context, event interface{}) error {
	b.mu.RLock()
	ids := make([]int, 0, len(b.subscribers))
	for id := range b.subscribers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	handlers := make([]Handler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, b.subscribers[id])
	}
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(ctx, h, event)
	}
	b.logger.Debug("Event published", logFields(event)...)
	return nil
}

func (b *Bus) deliver(ctx context.Context, h Handler, event interface{}) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Event subscriber panicked",
				append(logFields(event), zap.String("panic", fmt.Sprint(r)))...)
		}
	}()
	h(ctx, event)
}

// Subscribers returns the number of registered handlers
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}
