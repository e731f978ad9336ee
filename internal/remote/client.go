package remote

import (
	"context"

	"pos-service/internal/domain"
)

// Result is the backend's acknowledgement of a delivered record
type Result struct {
	Success bool   `json:"success"`
	ID      string `json:"id"`
}

// Client delivers records to the store's backend. Every call may fail
// transiently and must be safe to repeat; the backend deduplicates by record id.
type Client interface {
	UploadSale(ctx context.Context, sale *domain.Sale) (Result, error)
	SyncCustomer(ctx context.Context, customer *domain.Customer) (Result, error)
	SyncProduct(ctx context.Context, product *domain.Product) (Result, error)
	UploadReport(ctx context.Context, report *domain.DailyReport) (Result, error)
	// Ping reports whether the backend is reachable
	Ping(ctx context.Context) error
}
