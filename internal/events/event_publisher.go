package events

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	Publish(ctx context.Context, event interface{}) error
}

// Point of sale events delivered to the UI layer

type CartChanged struct {
	ItemCount       int             `json:"itemCount"`
	UniqueLineCount int             `json:"uniqueLineCount"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	OccurredAt      time.Time       `json:"occurredAt"`
}

type SyncCompleted struct {
	Successful int       `json:"successful"`
	Failed     int       `json:"failed"`
	OccurredAt time.Time `json:"occurredAt"`
}

type ConnectivityChanged struct {
	Online     bool      `json:"online"`
	OccurredAt time.Time `json:"occurredAt"`
}

type SaleCompleted struct {
	SaleID        string          `json:"saleId"`
	ReceiptNumber string          `json:"receiptNumber"`
	Total         decimal.Decimal `json:"total"`
	CustomerID    string          `json:"customerId,omitempty"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

// EventType returns the wire name of an event
func EventType(event interface{}) string {
	switch event.(type) {
	case CartChanged:
		return "CartChanged"
	case SyncCompleted:
		return "SyncCompleted"
	case ConnectivityChanged:
		return "ConnectivityChanged"
	case SaleCompleted:
		return "SaleCompleted"
	default:
		return "Unknown"
	}
}

// Recorder is an EventPublisher that keeps every event, for tests and debugging
type Recorder struct {
	mu     sync.Mutex
	events []interface{}
}

func NewRecorder() *Recorder {
	return &Recorder{events: make([]interface{}, 0)}
}

func (r *Recorder) Publish(ctx context.Context, event interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns a copy of the recorded events
func (r *Recorder) Events() []interface{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]interface{}(nil), r.events...)
}

// OfType returns the recorded events with the given EventType name
func (r *Recorder) OfType(eventType string) []interface{} {
	var out []interface{}
	for _, event := range r.Events() {
		if EventType(event) == eventType {
			out = append(out, event)
		}
	}
	return out
}

// Nop discards events
type Nop struct{}

func (Nop) Publish(ctx context.Context, event interface{}) error { return nil }

// logFields is shared by publishers that log what they deliver
func logFields(event interface{}) []zap.Field {
	return []zap.Field{zap.String("event-type", EventType(event))}
}
