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

const customerColumns = `id, name, phone, email, loyalty_points, total_purchases, purchase_count, last_purchase_at, created_at, updated_at`

// SaveCustomer inserts or replaces a customer (Single Writer)
func (swdb *SingleWriterDB) SaveCustomer(ctx context.Context, customer *domain.Customer) error {
	if err := customer.Validate(); err != nil {
		return err
	}
	swdb.mu.Lock()
	defer swdb.mu.Unlock()

	if err := saveCustomer(ctx, swdb.db, customer); err != nil {
		if isUniqueViolation(err, "customers.phone") {
			return fmt.Errorf("%w: %s", repository.ErrDuplicatePhone, customer.Phone)
		}
		return fmt.Errorf("failed to save customer: %w", err)
	}
	return nil
}

// GetCustomer retrieves a customer by ID (read-only, no lock needed)
func (swdb *SingleWriterDB) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	return getCustomer(ctx, swdb.db, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id)
}

// GetCustomerByPhone retrieves a customer through the phone index
func (swdb *SingleWriterDB) GetCustomerByPhone(ctx context.Context, phone string) (*domain.Customer, error) {
	return getCustomer(ctx, swdb.db, `SELECT `+customerColumns+` FROM customers WHERE phone = ?`, phone)
}

// UpdateCustomer applies fn to the stored customer in one transaction (Single Writer)
func (swdb *SingleWriterDB) UpdateCustomer(ctx context.Context, id string, fn func(customer *domain.Customer) error) (*domain.Customer, error) {
	swdb.mu.Lock()
	defer swdb.mu.Unlock()

	var updated *domain.Customer
	err := swdb.inTx(ctx, func(tx *sql.Tx) error {
		customer, err := getCustomer(ctx, tx, `SELECT `+customerColumns+` FROM customers WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if err := fn(customer); err != nil {
			return err
		}
		if err := customer.Validate(); err != nil {
			return err
		}
		if err := saveCustomer(ctx, tx, customer); err != nil {
			return fmt.Errorf("failed to update customer: %w", err)
		}
		updated = customer
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// ListCustomers returns every customer ordered by name
func (swdb *SingleWriterDB) ListCustomers(ctx context.Context) ([]*domain.Customer, error) {
	rows, err := swdb.db.QueryContext(ctx, `SELECT `+customerColumns+` FROM customers ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	defer rows.Close()

	customers := make([]*domain.Customer, 0)
	for rows.Next() {
		customer, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan customer: %w", err)
		}
		customers = append(customers, customer)
	}
	return customers, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func saveCustomer(ctx context.Context, e execer, c *domain.Customer) error {
	query := `
		INSERT INTO customers (` + customerColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			phone = excluded.phone,
			email = excluded.email,
			loyalty_points = excluded.loyalty_points,
			total_purchases = excluded.total_purchases,
			purchase_count = excluded.purchase_count,
			last_purchase_at = excluded.last_purchase_at,
			updated_at = excluded.updated_at
	`
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := e.ExecContext(ctx, query,
		c.ID, c.Name, c.Phone, c.Email,
		c.LoyaltyPoints, c.TotalPurchases.String(), c.PurchaseCount,
		nullableTime(c.LastPurchaseAt), formatTime(createdAt), formatTime(time.Now()),
	)
	return err
}

func getCustomer(ctx context.Context, q queryer, query string, arg string) (*domain.Customer, error) {
	customer, err := scanCustomer(q.QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, repository.ErrCustomerNotFound
		}
		return nil, fmt.Errorf("failed to get customer: %w", err)
	}
	return customer, nil
}

func scanCustomer(row rowScanner) (*domain.Customer, error) {
	var c domain.Customer
	var lastPurchase sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(&c.ID, &c.Name, &c.Phone, &c.Email, &c.LoyaltyPoints, &c.TotalPurchases,
		&c.PurchaseCount, &lastPurchase, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	c.LastPurchaseAt = timePtr(lastPurchase)
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}
