package events

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestBus_FansOutInSubscriptionOrder(t *testing.T) {
	bus := NewBus(zap.NewNop())
	var calls []string

	bus.Subscribe(func(ctx context.Context, event interface{}) { calls = append(calls, "ui") })
	bus.Subscribe(func(ctx context.Context, event interface{}) { calls = append(calls, "log") })

	err := bus.Publish(context.Background(), SyncCompleted{Successful: 1})

	assert.NoError(t, err)
	assert.Equal(t, []string{"ui", "log"}, calls)
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus(zap.NewNop())
	count := 0
	unsubscribe := bus.Subscribe(func(ctx context.Context, event interface{}) { count++ })

	_ = bus.Publish(context.Background(), CartChanged{})
	unsubscribe()
	_ = bus.Publish(context.Background(), CartChanged{})

	assert.Equal(t, 1, count)
	assert.Equal(t, 0, bus.Subscribers())
}

func TestBus_PanickingSubscriberDoesNotStopOthers(t *testing.T) {
	bus := NewBus(zap.NewNop())
	delivered := false
	bus.Subscribe(func(ctx context.Context, event interface{}) { panic("boom") })
	bus.Subscribe(func(ctx context.Context, event interface{}) { delivered = true })

	assert.NotPanics(t, func() {
		_ = bus.Publish(context.Background(), ConnectivityChanged{Online: true})
	})
	assert.True(t, delivered)
}

func TestEventType(t *testing.T) {
	assert.Equal(t, "CartChanged", EventType(CartChanged{}))
	assert.Equal(t, "SyncCompleted", EventType(SyncCompleted{}))
	assert.Equal(t, "ConnectivityChanged", EventType(ConnectivityChanged{}))
	assert.Equal(t, "SaleCompleted", EventType(SaleCompleted{}))
	assert.Equal(t, "Unknown", EventType("something"))
}

func TestRecorder_OfType(t *testing.T) {
	rec := NewRecorder()
	_ = rec.Publish(context.Background(), CartChanged{ItemCount: 1})
	_ = rec.Publish(context.Background(), SyncCompleted{Failed: 1})

	assert.Len(t, rec.Events(), 2)
	assert.Len(t, rec.OfType("SyncCompleted"), 1)
}
