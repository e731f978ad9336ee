package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"pos-service/internal/domain"
	"pos-service/internal/repository"
)

const productColumns = `id, name, barcode, price, cost, quantity, category, unit, min_stock, expiry_date, active, created_at, updated_at`

const movementColumns = `id, product_id, direction, quantity, reason, previous_quantity, new_quantity, created_at`

// SaveProduct inserts or replaces a product (Single Writer)
func (swdb *SingleWriterDB) SaveProduct(ctx context.Context, product *domain.Product) error {
	if err := product.Validate(); err != nil {
		return err
	}
	swdb.mu.Lock()
	defer swdb.mu.Unlock()

	query := `
		INSERT INTO products (` + productColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			barcode = excluded.barcode,
			price = excluded.price,
			cost = excluded.cost,
			quantity = excluded.quantity,
			category = excluded.category,
			unit = excluded.unit,
			min_stock = excluded.min_stock,
			expiry_date = excluded.expiry_date,
			active = excluded.active,
			updated_at = excluded.updated_at
	`

	createdAt := product.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := swdb.db.ExecContext(ctx, query,
		product.ID, product.Name, nullableString(product.Barcode),
		product.Price.String(), product.Cost.String(), product.Quantity,
		product.Category, product.Unit, product.MinStock,
		nullableTime(product.ExpiryDate), boolToInt(product.Active),
		formatTime(createdAt), formatTime(time.Now()),
	)
	if err != nil {
		if isUniqueViolation(err, "products.barcode") {
			return fmt.Errorf("%w: %s", repository.ErrDuplicateBarcode, product.Barcode)
		}
		return fmt.Errorf("failed to save product: %w", err)
	}
	return nil
}

// GetProduct retrieves a product by ID (read-only, no lock needed)
func (swdb *SingleWriterDB) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	return getProduct(ctx, swdb.db, `SELECT `+productColumns+` FROM products WHERE id = ?`, id)
}

// GetProductByBarcode retrieves a product through the barcode index
func (swdb *SingleWriterDB) GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	if barcode == "" {
		return nil, repository.ErrProductNotFound
	}
	return getProduct(ctx, swdb.db, `SELECT `+productColumns+` FROM products WHERE barcode = ?`, barcode)
}

// ListProducts returns products ordered by name
func (swdb *SingleWriterDB) ListProducts(ctx context.Context, filter repository.ProductFilter) ([]*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products WHERE (? = 1 OR active = 1) AND (? = '' OR category = ?) ORDER BY name`

	rows, err := swdb.db.QueryContext(ctx, query, boolToInt(filter.IncludeInactive), filter.Category, filter.Category)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	products := make([]*domain.Product, 0)
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

// UpdateStock applies a stock mutation and records its movement in one transaction (Single Writer)
func (swdb *SingleWriterDB) UpdateStock(ctx context.Context, productID string, fn repository.StockMutation) (*domain.StockMovement, error) {
	swdb.mu.Lock()
	defer swdb.mu.Unlock()

	var movement *domain.StockMovement
	err := swdb.inTx(ctx, func(tx *sql.Tx) error {
		product, err := getProduct(ctx, tx, `SELECT `+productColumns+` FROM products WHERE id = ?`, productID)
		if err != nil {
			return err
		}
		movement, err = fn(product)
		if err != nil {
			return err
		}
		if err := product.Validate(); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx,
			`UPDATE products SET quantity = ?, updated_at = ? WHERE id = ?`,
			product.Quantity, formatTime(product.UpdatedAt), product.ID,
		)
		if err != nil {
			return fmt.Errorf("failed to update stock: %w", err)
		}

		if movement == nil {
			return nil
		}
		if err := insertMovement(ctx, tx, movement); err != nil {
			return fmt.Errorf("failed to record stock movement: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return movement, nil
}

// ListMovements returns stock movements ordered by time (read-only, no lock needed)
func (swdb *SingleWriterDB) ListMovements(ctx context.Context, productID string, from, to time.Time) ([]*domain.StockMovement, error) {
	lower, upper := rangeArgs(from, to)
	query := `
		SELECT ` + movementColumns + `
		FROM stock_movements
		WHERE (? = '' OR product_id = ?) AND created_at >= ? AND created_at < ?
		ORDER BY created_at, rowid
	`

	rows, err := swdb.db.QueryContext(ctx, query, productID, productID, lower, upper)
	if err != nil {
		return nil, fmt.Errorf("failed to list stock movements: %w", err)
	}
	defer rows.Close()

	movements := make([]*domain.StockMovement, 0)
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stock movement: %w", err)
		}
		movements = append(movements, m)
	}
	return movements, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func getProduct(ctx context.Context, q queryer, query string, arg string) (*domain.Product, error) {
	product, err := scanProduct(q.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrProductNotFound
		}
		return nil, fmt.Errorf("failed to get product: %w", err)
	}
	return product, nil
}

func scanProduct(row rowScanner) (*domain.Product, error) {
	var p domain.Product
	var barcode, expiry sql.NullString
	var active int
	var createdAt, updatedAt string

	err := row.Scan(&p.ID, &p.Name, &barcode, &p.Price, &p.Cost, &p.Quantity,
		&p.Category, &p.Unit, &p.MinStock, &expiry, &active, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	p.Barcode = barcode.String
	p.ExpiryDate = timePtr(expiry)
	p.Active = active == 1
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)
	return &p, nil
}

func scanMovement(row rowScanner) (*domain.StockMovement, error) {
	var m domain.StockMovement
	var direction, createdAt string
	if err := row.Scan(&m.ID, &m.ProductID, &direction, &m.Quantity, &m.Reason,
		&m.PreviousQuantity, &m.NewQuantity, &createdAt); err != nil {
		return nil, err
	}
	m.Direction = domain.MovementDirection(direction)
	m.CreatedAt = parseTime(createdAt)
	return &m, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
