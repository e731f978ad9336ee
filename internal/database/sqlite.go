package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"pos-service/internal/config"
	"pos-service/internal/storage"

	sqlite3 "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"
)

// SingleWriterDB implements Single Writer Principle for SQLite
// Only one writer can access the database at a time
type SingleWriterDB struct {
	db     *sql.DB
	logger *zap.Logger
	mu     sync.Mutex // Mutex to ensure single writer
}

// timeLayout is fixed width so text comparison orders timestamps
const timeLayout = "2006-01-02T15:04:05.000000Z"

// queryer is satisfied by *sql.DB and *sql.Tx
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
}

// NewSingleWriterDB creates a new database connection with single writer principle
func NewSingleWriterDB(cfg *config.Config, logger *zap.Logger) (*SingleWriterDB, error) {
	db, err := sql.Open("sqlite3", cfg.SQLitePath+"?_journal_mode=WAL&_foreign_keys=1&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(1) // Single writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	swdb := &SingleWriterDB{
		db:     db,
		logger: logger,
	}

	if err := swdb.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return swdb, nil
}

// initSchema creates the database schema
func (swdb *SingleWriterDB) initSchema() error {
	schema := `
	-- Catalog and on-hand quantities
	CREATE TABLE IF NOT EXISTS products (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		barcode TEXT UNIQUE,
		price TEXT NOT NULL,
		cost TEXT NOT NULL DEFAULT '0',
		quantity INTEGER NOT NULL DEFAULT 0,
		category TEXT NOT NULL DEFAULT '',
		unit TEXT NOT NULL DEFAULT 'piece',
		min_stock INTEGER NOT NULL DEFAULT 0,
		expiry_date TEXT,
		active INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK(quantity >= 0),
		CHECK(min_stock >= 0),
		CHECK(active IN (0, 1))
	);

	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		phone TEXT UNIQUE NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		loyalty_points INTEGER NOT NULL DEFAULT 0,
		total_purchases TEXT NOT NULL DEFAULT '0',
		purchase_count INTEGER NOT NULL DEFAULT 0,
		last_purchase_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		CHECK(loyalty_points >= 0)
	);

	-- Sales keep their lines as a JSON snapshot
	CREATE TABLE IF NOT EXISTS sales (
		id TEXT PRIMARY KEY,
		receipt_number TEXT NOT NULL,
		items TEXT NOT NULL,
		subtotal TEXT NOT NULL,
		tax TEXT NOT NULL,
		discount_percent TEXT NOT NULL,
		discount_amount TEXT NOT NULL,
		total TEXT NOT NULL,
		amount_paid TEXT NOT NULL,
		change_amount TEXT NOT NULL,
		payment_method TEXT NOT NULL,
		customer_id TEXT NOT NULL DEFAULT '',
		cashier_id TEXT NOT NULL DEFAULT '',
		sync_status TEXT NOT NULL DEFAULT 'pending',
		created_at TEXT NOT NULL,
		CHECK(payment_method IN ('cash', 'card', 'transfer', 'points')),
		CHECK(sync_status IN ('pending', 'synced', 'failed'))
	);

	-- Append-only stock audit log
	CREATE TABLE IF NOT EXISTS stock_movements (
		id TEXT PRIMARY KEY,
		product_id TEXT NOT NULL,
		direction TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		reason TEXT NOT NULL,
		previous_quantity INTEGER NOT NULL,
		new_quantity INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		FOREIGN KEY (product_id) REFERENCES products(id),
		CHECK(direction IN ('in', 'out')),
		CHECK(quantity > 0)
	);

	-- Small named documents (pendingActions, lastSyncTime)
	CREATE TABLE IF NOT EXISTS kv_store (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Indexes for performance
	CREATE INDEX IF NOT EXISTS idx_products_category ON products(category);
	CREATE INDEX IF NOT EXISTS idx_sales_created_at ON sales(created_at);
	CREATE INDEX IF NOT EXISTS idx_sales_customer_id ON sales(customer_id);
	CREATE INDEX IF NOT EXISTS idx_stock_movements_product_id ON stock_movements(product_id);
	CREATE INDEX IF NOT EXISTS idx_stock_movements_created_at ON stock_movements(created_at);
	`

	_, err := swdb.db.Exec(schema)
	return err
}

// Ping checks the database connection
func (swdb *SingleWriterDB) Ping(ctx context.Context) error {
	return swdb.db.PingContext(ctx)
}

// Close closes the database connection
func (swdb *SingleWriterDB) Close() error {
	return swdb.db.Close()
}

// Get reads a key-value document (read-only, no lock needed)
func (swdb *SingleWriterDB) Get(ctx context.Context, key string) ([]byte, error) {
	var value string
	err := swdb.db.QueryRowContext(ctx, `SELECT value FROM kv_store WHERE key = ?`, key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrKeyNotFound
		}
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return []byte(value), nil
}

// Set replaces a key-value document (Single Writer)
func (swdb *SingleWriterDB) Set(ctx context.Context, key string, value []byte) error {
	swdb.mu.Lock()
	defer swdb.mu.Unlock()

	query := `
		INSERT INTO kv_store (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`
	if _, err := swdb.db.ExecContext(ctx, query, key, string(value), formatTime(time.Now())); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Delete removes a key-value document (Single Writer)
func (swdb *SingleWriterDB) Delete(ctx context.Context, key string) error {
	swdb.mu.Lock()
	defer swdb.mu.Unlock()

	if _, err := swdb.db.ExecContext(ctx, `DELETE FROM kv_store WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// inTx runs fn inside a transaction; the caller must hold the writer lock
func (swdb *SingleWriterDB) inTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := swdb.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			swdb.logger.Warn("Failed to roll back transaction", zap.Error(rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) time.Time {
	t, err := time.Parse(timeLayout, value)
	if err != nil {
		t, _ = time.Parse(time.RFC3339, value)
	}
	return t
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func timePtr(value sql.NullString) *time.Time {
	if !value.Valid || value.String == "" {
		return nil
	}
	t := parseTime(value.String)
	return &t
}

func nullableString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

// rangeArgs turns an optional [from, to) window into SQL bounds
func rangeArgs(from, to time.Time) (string, string) {
	lower := ""
	upper := "9999"
	if !from.IsZero() {
		lower = formatTime(from)
	}
	if !to.IsZero() {
		upper = formatTime(to)
	}
	return lower, upper
}

// isUniqueViolation reports whether err is a UNIQUE constraint failure on column
func isUniqueViolation(err error, column string) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return strings.Contains(sqliteErr.Error(), column)
	}
	return false
}
