package checkout

import (
	"context"
	"encoding/json"

	"pos-service/internal/domain"
	"pos-service/internal/repository"
	"pos-service/internal/syncqueue"

	"go.uber.org/zap"
)

// SyncStatusHook marks uploaded sales synced, and failed when the queue
// gives up on them
func SyncStatusHook(sales repository.SaleRepository, logger *zap.Logger) syncqueue.OutcomeHook {
	return func(ctx context.Context, action domain.PendingAction, delivered bool) {
		if action.Kind != domain.ActionUploadSale {
			return
		}
		var ref struct {
			ID string `json:"id"`
		}
		if err := json.Unmarshal(action.Payload, &ref); err != nil || ref.ID == "" {
			logger.Warn("Uploaded action has no sale id", zap.String("action_id", action.ID))
			return
		}

		status := domain.SyncSynced
		if !delivered {
			status = domain.SyncFailed
		}
		if err := sales.UpdateSaleSyncStatus(ctx, ref.ID, status); err != nil {
			logger.Error("Failed to update sale sync status",
				zap.String("sale_id", ref.ID),
				zap.String("status", string(status)),
				zap.Error(err),
			)
		}
	}
}
