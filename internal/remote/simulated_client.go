package remote

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"pos-service/internal/domain"
	apperrors "pos-service/pkg/errors"

	"go.uber.org/zap"
)

var errSimulatedNetwork = errors.New("simulated network failure")

// SimulatedClient stands in for the backend during development: every call
// waits a little and fails at a configured rate
type SimulatedClient struct {
	latency     time.Duration
	failureRate float64
	roll        func() float64
	logger      *zap.Logger
}

func NewSimulatedClient(latency time.Duration, failureRate float64, logger *zap.Logger) *SimulatedClient {
	return &SimulatedClient{
		latency:     latency,
		failureRate: failureRate,
		roll:        rand.Float64,
		logger:      logger,
	}
}

func (c *SimulatedClient) UploadSale(ctx context.Context, sale *domain.Sale) (Result, error) {
	return c.call(ctx, domain.ActionUploadSale, sale.ID)
}

func (c *SimulatedClient) SyncCustomer(ctx context.Context, customer *domain.Customer) (Result, error) {
	return c.call(ctx, domain.ActionSyncCustomer, customer.ID)
}

func (c *SimulatedClient) SyncProduct(ctx context.Context, product *domain.Product) (Result, error) {
	return c.call(ctx, domain.ActionSyncProduct, product.ID)
}

func (c *SimulatedClient) UploadReport(ctx context.Context, report *domain.DailyReport) (Result, error) {
	return c.call(ctx, domain.ActionUploadReport, "report-"+report.Date)
}

func (c *SimulatedClient) Ping(ctx context.Context) error {
	return ctx.Err()
}

func (c *SimulatedClient) call(ctx context.Context, kind domain.ActionKind, id string) (Result, error) {
	if c.latency > 0 {
		select {
		case <-ctx.Done():
			return Result{}, apperrors.NewRetryableSync(string(kind), ctx.Err())
		case <-time.After(c.latency):
		}
	}
	if c.roll() < c.failureRate {
		return Result{}, apperrors.NewRetryableSync(string(kind), errSimulatedNetwork)
	}
	c.logger.Debug("Simulated remote call succeeded", zap.String("action", string(kind)), zap.String("id", id))
	return Result{Success: true, ID: id}, nil
}
