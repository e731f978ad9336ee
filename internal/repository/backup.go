package repository

import (
	"context"
	"fmt"
	"time"

	"pos-service/internal/domain"
	apperrors "pos-service/pkg/errors"
)

// Snapshot is a full copy of the record store in its JSON backup form
type Snapshot struct {
	ExportedAt     time.Time               `json:"exportedAt"`
	Products       []*domain.Product       `json:"products"`
	Customers      []*domain.Customer      `json:"customers"`
	Sales          []*domain.Sale          `json:"sales"`
	StockMovements []*domain.StockMovement `json:"stockMovements"`
}

// BackupRepository exports and restores every record
type BackupRepository interface {
	Export(ctx context.Context) (*Snapshot, error)
	// Import replaces every record with the snapshot's contents. Nothing changes
	// when any record is rejected.
	Import(ctx context.Context, snapshot *Snapshot) error
}

// ValidateSnapshot checks records and the cross-record rules the stores enforce
func ValidateSnapshot(snapshot *Snapshot) error {
	if snapshot == nil {
		return apperrors.NewValidationError("backup is empty", "body")
	}

	barcodes := make(map[string]string)
	productIDs := make(map[string]bool)
	for _, p := range snapshot.Products {
		if p == nil {
			return apperrors.NewValidationError("backup contains an empty product", "products")
		}
		if err := p.Validate(); err != nil {
			return err
		}
		if productIDs[p.ID] {
			return apperrors.NewValidationError("duplicate product id "+p.ID, "products")
		}
		productIDs[p.ID] = true
		if p.Barcode == "" {
			continue
		}
		if other, taken := barcodes[p.Barcode]; taken {
			return apperrors.NewConflict("duplicate barcode in backup", fmt.Sprintf("%s: %s, %s", p.Barcode, other, p.ID))
		}
		barcodes[p.Barcode] = p.ID
	}

	phones := make(map[string]bool)
	customerIDs := make(map[string]bool)
	for _, c := range snapshot.Customers {
		if c == nil {
			return apperrors.NewValidationError("backup contains an empty customer", "customers")
		}
		if err := c.Validate(); err != nil {
			return err
		}
		if customerIDs[c.ID] {
			return apperrors.NewValidationError("duplicate customer id "+c.ID, "customers")
		}
		customerIDs[c.ID] = true
		if phones[c.Phone] {
			return apperrors.NewConflict("duplicate phone in backup", c.Phone)
		}
		phones[c.Phone] = true
	}

	saleIDs := make(map[string]bool)
	for _, s := range snapshot.Sales {
		if s == nil {
			return apperrors.NewValidationError("backup contains an empty sale", "sales")
		}
		if err := ValidateSale(s); err != nil {
			return apperrors.NewValidationError(err.Error(), "sales")
		}
		switch s.SyncStatus {
		case domain.SyncPending, domain.SyncSynced, domain.SyncFailed:
		default:
			return apperrors.NewValidationError("sale "+s.ID+" has an unknown sync status", "sales")
		}
		if saleIDs[s.ID] {
			return apperrors.NewValidationError("duplicate sale id "+s.ID, "sales")
		}
		saleIDs[s.ID] = true
	}

	for _, m := range snapshot.StockMovements {
		if m == nil || m.ID == "" {
			return apperrors.NewValidationError("backup contains a stock movement without id", "stockMovements")
		}
		if !productIDs[m.ProductID] {
			return apperrors.NewValidationError("stock movement "+m.ID+" references unknown product "+m.ProductID, "stockMovements")
		}
		if m.Direction != domain.MovementIn && m.Direction != domain.MovementOut {
			return apperrors.NewValidationError("stock movement "+m.ID+" has an unknown type", "stockMovements")
		}
		if m.Quantity <= 0 {
			return apperrors.NewValidationError("stock movement "+m.ID+" has no quantity", "stockMovements")
		}
	}
	return nil
}
