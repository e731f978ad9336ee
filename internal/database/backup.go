package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"pos-service/internal/domain"
	"pos-service/internal/repository"

	"go.uber.org/zap"
)

// Export reads every table into a snapshot inside one read transaction
func (swdb *SingleWriterDB) Export(ctx context.Context) (*repository.Snapshot, error) {
	tx, err := swdb.db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("failed to begin export: %w", err)
	}
	defer tx.Rollback()

	snapshot := &repository.Snapshot{ExportedAt: time.Now()}
	if snapshot.Products, err = exportRows(ctx, tx, `SELECT `+productColumns+` FROM products ORDER BY id`, scanProduct); err != nil {
		return nil, fmt.Errorf("failed to export products: %w", err)
	}
	if snapshot.Customers, err = exportRows(ctx, tx, `SELECT `+customerColumns+` FROM customers ORDER BY id`, scanCustomer); err != nil {
		return nil, fmt.Errorf("failed to export customers: %w", err)
	}
	if snapshot.Sales, err = exportRows(ctx, tx, `SELECT `+saleColumns+` FROM sales ORDER BY id`, scanSale); err != nil {
		return nil, fmt.Errorf("failed to export sales: %w", err)
	}
	if snapshot.StockMovements, err = exportRows(ctx, tx, `SELECT `+movementColumns+` FROM stock_movements ORDER BY created_at, rowid`, scanMovement); err != nil {
		return nil, fmt.Errorf("failed to export stock movements: %w", err)
	}
	return snapshot, nil
}

// Import replaces every table with the snapshot in one transaction (Single Writer)
func (swdb *SingleWriterDB) Import(ctx context.Context, snapshot *repository.Snapshot) error {
	if err := repository.ValidateSnapshot(snapshot); err != nil {
		return err
	}
	swdb.mu.Lock()
	defer swdb.mu.Unlock()

	err := swdb.inTx(ctx, func(tx *sql.Tx) error {
		// children first for the stock_movements foreign key
		for _, table := range []string{"stock_movements", "sales", "customers", "products"} {
			if _, err := tx.ExecContext(ctx, `DELETE FROM `+table); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		for _, p := range snapshot.Products {
			if err := restoreProduct(ctx, tx, p); err != nil {
				return fmt.Errorf("failed to restore product %s: %w", p.ID, err)
			}
		}
		for _, c := range snapshot.Customers {
			if err := restoreCustomer(ctx, tx, c); err != nil {
				return fmt.Errorf("failed to restore customer %s: %w", c.ID, err)
			}
		}
		for _, s := range snapshot.Sales {
			if err := insertSale(ctx, tx, s); err != nil {
				return fmt.Errorf("failed to restore sale %s: %w", s.ID, err)
			}
		}
		for _, m := range snapshot.StockMovements {
			if err := insertMovement(ctx, tx, m); err != nil {
				return fmt.Errorf("failed to restore stock movement %s: %w", m.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	swdb.logger.Info("Record store restored from backup",
		zap.Int("products", len(snapshot.Products)),
		zap.Int("customers", len(snapshot.Customers)),
		zap.Int("sales", len(snapshot.Sales)),
		zap.Int("stock_movements", len(snapshot.StockMovements)),
	)
	return nil
}

func exportRows[T any](ctx context.Context, q queryer, query string, scan func(rowScanner) (T, error)) ([]T, error) {
	rows, err := q.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// restoreProduct keeps the backup's timestamps
func restoreProduct(ctx context.Context, e execer, p *domain.Product) error {
	_, err := e.ExecContext(ctx, `
		INSERT INTO products (`+productColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, nullableString(p.Barcode),
		p.Price.String(), p.Cost.String(), p.Quantity,
		p.Category, p.Unit, p.MinStock,
		nullableTime(p.ExpiryDate), boolToInt(p.Active),
		formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	return err
}

func restoreCustomer(ctx context.Context, e execer, c *domain.Customer) error {
	_, err := e.ExecContext(ctx, `
		INSERT INTO customers (`+customerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		c.ID, c.Name, c.Phone, c.Email,
		c.LoyaltyPoints, c.TotalPurchases.String(), c.PurchaseCount,
		nullableTime(c.LastPurchaseAt), formatTime(c.CreatedAt), formatTime(c.UpdatedAt),
	)
	return err
}

func insertSale(ctx context.Context, e execer, sale *domain.Sale) error {
	items, err := json.Marshal(sale.Items)
	if err != nil {
		return fmt.Errorf("failed to marshal sale items: %w", err)
	}
	_, err = e.ExecContext(ctx,
		`INSERT INTO sales (`+saleColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sale.ID, sale.ReceiptNumber, string(items),
		sale.Subtotal.String(), sale.Tax.String(), sale.DiscountPercent.String(), sale.DiscountAmount.String(),
		sale.Total.String(), sale.AmountPaid.String(), sale.Change.String(),
		string(sale.PaymentMethod), sale.CustomerID, sale.CashierID, string(sale.SyncStatus),
		formatTime(sale.CreatedAt),
	)
	return err
}

func insertMovement(ctx context.Context, e execer, m *domain.StockMovement) error {
	_, err := e.ExecContext(ctx,
		`INSERT INTO stock_movements (`+movementColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		m.ID, m.ProductID, string(m.Direction), m.Quantity, m.Reason,
		m.PreviousQuantity, m.NewQuantity, formatTime(m.CreatedAt),
	)
	return err
}
