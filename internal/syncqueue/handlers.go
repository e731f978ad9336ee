package syncqueue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"pos-service/internal/domain"
	"pos-service/internal/remote"
	apperrors "pos-service/pkg/errors"
)

var errRejected = errors.New("backend did not acknowledge the record")

// HandlersFor builds the dispatch table that delivers each action kind through client
func HandlersFor(client remote.Client) map[domain.ActionKind]Handler {
	return map[domain.ActionKind]Handler{
		domain.ActionUploadSale: func(ctx context.Context, payload json.RawMessage) error {
			var sale domain.Sale
			if err := decode(domain.ActionUploadSale, payload, &sale); err != nil {
				return err
			}
			return acknowledged(domain.ActionUploadSale, func() (remote.Result, error) { return client.UploadSale(ctx, &sale) })
		},
		domain.ActionSyncCustomer: func(ctx context.Context, payload json.RawMessage) error {
			var customer domain.Customer
			if err := decode(domain.ActionSyncCustomer, payload, &customer); err != nil {
				return err
			}
			return acknowledged(domain.ActionSyncCustomer, func() (remote.Result, error) { return client.SyncCustomer(ctx, &customer) })
		},
		domain.ActionSyncProduct: func(ctx context.Context, payload json.RawMessage) error {
			var product domain.Product
			if err := decode(domain.ActionSyncProduct, payload, &product); err != nil {
				return err
			}
			return acknowledged(domain.ActionSyncProduct, func() (remote.Result, error) { return client.SyncProduct(ctx, &product) })
		},
		domain.ActionUploadReport: func(ctx context.Context, payload json.RawMessage) error {
			var report domain.DailyReport
			if err := decode(domain.ActionUploadReport, payload, &report); err != nil {
				return err
			}
			return acknowledged(domain.ActionUploadReport, func() (remote.Result, error) { return client.UploadReport(ctx, &report) })
		},
	}
}

// decode fails permanently: a payload that cannot be read never will be
func decode(kind domain.ActionKind, payload json.RawMessage, dest interface{}) error {
	if err := json.Unmarshal(payload, dest); err != nil {
		return apperrors.NewPermanentSync(string(kind), fmt.Errorf("invalid payload: %w", err))
	}
	return nil
}

func acknowledged(kind domain.ActionKind, call func() (remote.Result, error)) error {
	result, err := call()
	if err != nil {
		return err
	}
	if !result.Success {
		return apperrors.NewRetryableSync(string(kind), errRejected)
	}
	return nil
}
