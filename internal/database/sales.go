package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"pos-service/internal/domain"
	"pos-service/internal/repository"
)

const saleColumns = `id, receipt_number, items, subtotal, tax, discount_percent, discount_amount, total, amount_paid, change_amount, payment_method, customer_id, cashier_id, sync_status, created_at`

// SaveSale inserts a completed sale (Single Writer)
func (swdb *SingleWriterDB) SaveSale(ctx context.Context, sale *domain.Sale) error {
	if err := repository.ValidateSale(sale); err != nil {
		return err
	}
	swdb.mu.Lock()
	defer swdb.mu.Unlock()

	if err := insertSale(ctx, swdb.db, sale); err != nil {
		return fmt.Errorf("failed to save sale: %w", err)
	}
	return nil
}

// GetSale retrieves a sale by ID (read-only, no lock needed)
func (swdb *SingleWriterDB) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	sale, err := scanSale(swdb.db.QueryRowContext(ctx, `SELECT `+saleColumns+` FROM sales WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrSaleNotFound
		}
		return nil, fmt.Errorf("failed to get sale: %w", err)
	}
	return sale, nil
}

// ListSales returns sales created in [from, to)
func (swdb *SingleWriterDB) ListSales(ctx context.Context, from, to time.Time) ([]*domain.Sale, error) {
	lower, upper := rangeArgs(from, to)
	return swdb.listSales(ctx,
		`SELECT `+saleColumns+` FROM sales WHERE created_at >= ? AND created_at < ? ORDER BY created_at`,
		lower, upper)
}

// ListSalesByCustomer returns a customer's purchase history
func (swdb *SingleWriterDB) ListSalesByCustomer(ctx context.Context, customerID string) ([]*domain.Sale, error) {
	return swdb.listSales(ctx,
		`SELECT `+saleColumns+` FROM sales WHERE customer_id = ? ORDER BY created_at`,
		customerID)
}

// UpdateSaleSyncStatus is the only mutation a stored sale accepts (Single Writer)
func (swdb *SingleWriterDB) UpdateSaleSyncStatus(ctx context.Context, id string, status domain.SyncStatus) error {
	swdb.mu.Lock()
	defer swdb.mu.Unlock()

	result, err := swdb.db.ExecContext(ctx, `UPDATE sales SET sync_status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("failed to update sale sync status: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return repository.ErrSaleNotFound
	}
	return nil
}

func (swdb *SingleWriterDB) listSales(ctx context.Context, query string, args ...interface{}) ([]*domain.Sale, error) {
	rows, err := swdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sales: %w", err)
	}
	defer rows.Close()

	sales := make([]*domain.Sale, 0)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sale: %w", err)
		}
		sales = append(sales, sale)
	}
	return sales, rows.Err()
}

func scanSale(row rowScanner) (*domain.Sale, error) {
	var s domain.Sale
	var items, paymentMethod, syncStatus, createdAt string

	err := row.Scan(&s.ID, &s.ReceiptNumber, &items,
		&s.Subtotal, &s.Tax, &s.DiscountPercent, &s.DiscountAmount,
		&s.Total, &s.AmountPaid, &s.Change,
		&paymentMethod, &s.CustomerID, &s.CashierID, &syncStatus, &createdAt)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(items), &s.Items); err != nil {
		return nil, fmt.Errorf("failed to decode sale items: %w", err)
	}
	s.PaymentMethod = domain.PaymentMethod(paymentMethod)
	s.SyncStatus = domain.SyncStatus(syncStatus)
	s.CreatedAt = parseTime(createdAt)
	return &s, nil
}
