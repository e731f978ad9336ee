// Package storetest holds behavior checks shared by every repository.Store implementation
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"pos-service/internal/domain"
	"pos-service/internal/repository"
	apperrors "pos-service/pkg/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty store for one subtest
type Factory func(t *testing.T) repository.Store

// Run exercises a Store implementation
func Run(t *testing.T, newStore Factory) {
	t.Run("product round trip", func(t *testing.T) { productRoundTrip(t, newStore(t)) })
	t.Run("duplicate barcode", func(t *testing.T) { duplicateBarcode(t, newStore(t)) })
	t.Run("invalid product rejected", func(t *testing.T) { invalidProduct(t, newStore(t)) })
	t.Run("update stock writes movement", func(t *testing.T) { updateStock(t, newStore(t)) })
	t.Run("failed stock mutation writes nothing", func(t *testing.T) { failedStockMutation(t, newStore(t)) })
	t.Run("customer loyalty update", func(t *testing.T) { customerUpdate(t, newStore(t)) })
	t.Run("duplicate phone", func(t *testing.T) { duplicatePhone(t, newStore(t)) })
	t.Run("sale round trip", func(t *testing.T) { saleRoundTrip(t, newStore(t)) })
	t.Run("list filters", func(t *testing.T) { listFilters(t, newStore(t)) })
	t.Run("backup restores into another store", func(t *testing.T) { backupRoundTrip(t, newStore(t), newStore(t)) })
	t.Run("rejected backup changes nothing", func(t *testing.T) { rejectedBackup(t, newStore(t)) })
}

// NewProduct builds a valid product for tests
func NewProduct(name string, price float64, quantity int) *domain.Product {
	return domain.NewProduct(name, "", "general", "", domain.Money(price), decimal.Zero, quantity, 0)
}

func productRoundTrip(t *testing.T, store repository.Store) {
	ctx := context.Background()
	p := domain.NewProduct("Milk", "7501", "dairy", "l", domain.Money(25.50), domain.Money(18), 10, 3)
	expiry := time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC)
	p.ExpiryDate = &expiry

	require.NoError(t, store.SaveProduct(ctx, p))

	got, err := store.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Milk", got.Name)
	assert.True(t, p.Price.Equal(got.Price))
	assert.Equal(t, 10, got.Quantity)
	require.NotNil(t, got.ExpiryDate)
	assert.True(t, expiry.Equal(*got.ExpiryDate))

	byBarcode, err := store.GetProductByBarcode(ctx, "7501")
	require.NoError(t, err)
	assert.Equal(t, p.ID, byBarcode.ID)

	_, err = store.GetProduct(ctx, uuid.New().String())
	assert.True(t, errors.Is(err, repository.ErrProductNotFound))
}

func duplicateBarcode(t *testing.T, store repository.Store) {
	ctx := context.Background()
	first := domain.NewProduct("Milk", "7501", "dairy", "", domain.Money(1), decimal.Zero, 1, 0)
	second := domain.NewProduct("Cream", "7501", "dairy", "", domain.Money(1), decimal.Zero, 1, 0)

	require.NoError(t, store.SaveProduct(ctx, first))
	err := store.SaveProduct(ctx, second)

	assert.True(t, errors.Is(err, repository.ErrDuplicateBarcode))

	// products without a barcode never collide
	require.NoError(t, store.SaveProduct(ctx, NewProduct("Apples", 1, 1)))
	require.NoError(t, store.SaveProduct(ctx, NewProduct("Pears", 1, 1)))
}

func invalidProduct(t *testing.T, store repository.Store) {
	p := NewProduct("", 1, 1)

	err := store.SaveProduct(context.Background(), p)

	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func updateStock(t *testing.T, store repository.Store) {
	ctx := context.Background()
	p := NewProduct("Bread", 2.5, 10)
	require.NoError(t, store.SaveProduct(ctx, p))

	movement, err := store.UpdateStock(ctx, p.ID, func(product *domain.Product) (*domain.StockMovement, error) {
		previous, err := product.RemoveStock(4)
		if err != nil {
			return nil, err
		}
		return domain.NewStockMovement(product.ID, domain.MovementOut, 4, domain.SaleReason("1"), previous), nil
	})
	require.NoError(t, err)
	assert.Equal(t, 6, movement.NewQuantity)

	got, err := store.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Quantity)

	movements, err := store.ListMovements(ctx, p.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, domain.MovementOut, movements[0].Direction)
	assert.Equal(t, 10, movements[0].PreviousQuantity)

	_, err = store.UpdateStock(ctx, "missing", func(*domain.Product) (*domain.StockMovement, error) { return nil, nil })
	assert.True(t, errors.Is(err, repository.ErrProductNotFound))
}

func failedStockMutation(t *testing.T, store repository.Store) {
	ctx := context.Background()
	p := NewProduct("Bread", 2.5, 1)
	require.NoError(t, store.SaveProduct(ctx, p))

	_, err := store.UpdateStock(ctx, p.ID, func(product *domain.Product) (*domain.StockMovement, error) {
		_, err := product.RemoveStock(5)
		return nil, err
	})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInsufficientStock))

	got, err := store.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Quantity)

	movements, err := store.ListMovements(ctx, "", time.Time{}, time.Time{})
	require.NoError(t, err)
	assert.Empty(t, movements)
}

func customerUpdate(t *testing.T, store repository.Store) {
	ctx := context.Background()
	c := domain.NewCustomer("Ana", "555-0101", "ana@example.com")
	require.NoError(t, store.SaveCustomer(ctx, c))

	updated, err := store.UpdateCustomer(ctx, c.ID, func(customer *domain.Customer) error {
		customer.ApplyPurchase(domain.Money(58.65), time.Now().UTC())
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 5, updated.LoyaltyPoints)

	got, err := store.GetCustomerByPhone(ctx, "555-0101")
	require.NoError(t, err)
	assert.Equal(t, 5, got.LoyaltyPoints)
	assert.Equal(t, 1, got.PurchaseCount)
	assert.True(t, domain.Money(58.65).Equal(got.TotalPurchases))
	assert.NotNil(t, got.LastPurchaseAt)

	_, err = store.UpdateCustomer(ctx, "missing", func(*domain.Customer) error { return nil })
	assert.True(t, errors.Is(err, repository.ErrCustomerNotFound))
}

func duplicatePhone(t *testing.T, store repository.Store) {
	ctx := context.Background()
	require.NoError(t, store.SaveCustomer(ctx, domain.NewCustomer("Ana", "555-0101", "")))

	err := store.SaveCustomer(ctx, domain.NewCustomer("Luis", "555-0101", ""))

	assert.True(t, errors.Is(err, repository.ErrDuplicatePhone))
}

func saleRoundTrip(t *testing.T, store repository.Store) {
	ctx := context.Background()
	createdAt := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	sale := &domain.Sale{
		ID:            uuid.New().String(),
		ReceiptNumber: "240301120000123",
		Items: []domain.CartLine{
			{ProductID: "p1", Name: "Milk", Price: domain.Money(25.50), Quantity: 2, Total: domain.Money(51), AddedAt: createdAt},
		},
		Subtotal:        domain.Money(51),
		Tax:             domain.Money(7.65),
		DiscountPercent: decimal.Zero,
		DiscountAmount:  decimal.Zero,
		Total:           domain.Money(58.65),
		AmountPaid:      domain.Money(60),
		Change:          domain.Money(1.35),
		PaymentMethod:   domain.PaymentCash,
		CustomerID:      "c1",
		SyncStatus:      domain.SyncPending,
		CreatedAt:       createdAt,
	}
	require.NoError(t, store.SaveSale(ctx, sale))

	got, err := store.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, sale.ReceiptNumber, got.ReceiptNumber)
	require.Len(t, got.Items, 1)
	assert.Equal(t, 2, got.Items[0].Quantity)
	assert.True(t, domain.Money(1.35).Equal(got.Change))
	assert.Equal(t, domain.SyncPending, got.SyncStatus)

	require.NoError(t, store.UpdateSaleSyncStatus(ctx, sale.ID, domain.SyncSynced))
	got, err = store.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncSynced, got.SyncStatus)

	byCustomer, err := store.ListSalesByCustomer(ctx, "c1")
	require.NoError(t, err)
	assert.Len(t, byCustomer, 1)

	inDay, err := store.ListSales(ctx, createdAt.Truncate(24*time.Hour), createdAt.Truncate(24*time.Hour).Add(24*time.Hour))
	require.NoError(t, err)
	assert.Len(t, inDay, 1)

	nextDay, err := store.ListSales(ctx, createdAt.Add(24*time.Hour), time.Time{})
	require.NoError(t, err)
	assert.Empty(t, nextDay)

	assert.True(t, errors.Is(store.UpdateSaleSyncStatus(ctx, "missing", domain.SyncFailed), repository.ErrSaleNotFound))

	empty := *sale
	empty.ID = uuid.New().String()
	empty.Items = nil
	assert.Error(t, store.SaveSale(ctx, &empty))
}

func listFilters(t *testing.T, store repository.Store) {
	ctx := context.Background()
	milk := domain.NewProduct("Milk", "", "dairy", "", domain.Money(1), decimal.Zero, 1, 0)
	bread := domain.NewProduct("Bread", "", "bakery", "", domain.Money(1), decimal.Zero, 1, 0)
	old := domain.NewProduct("Old Cheese", "", "dairy", "", domain.Money(1), decimal.Zero, 1, 0)
	old.Active = false
	for _, p := range []*domain.Product{milk, bread, old} {
		require.NoError(t, store.SaveProduct(ctx, p))
	}

	active, err := store.ListProducts(ctx, repository.ProductFilter{})
	require.NoError(t, err)
	assert.Len(t, active, 2)

	dairy, err := store.ListProducts(ctx, repository.ProductFilter{Category: "dairy", IncludeInactive: true})
	require.NoError(t, err)
	assert.Len(t, dairy, 2)
}

func backupStore(t *testing.T, store repository.Store) repository.BackupRepository {
	t.Helper()
	backup, ok := store.(repository.BackupRepository)
	if !ok {
		t.Skip("store has no backup support")
	}
	return backup
}

func backupRoundTrip(t *testing.T, source, target repository.Store) {
	ctx := context.Background()

	// Setup
	milk := domain.NewProduct("Milk", "7501000111", "dairy", "", domain.Money(25.50), domain.Money(18), 10, 2)
	require.NoError(t, source.SaveProduct(ctx, milk))
	_, err := source.UpdateStock(ctx, milk.ID, func(product *domain.Product) (*domain.StockMovement, error) {
		previous, err := product.AddStock(5)
		if err != nil {
			return nil, err
		}
		return domain.NewStockMovement(product.ID, domain.MovementIn, 5, "delivery", previous), nil
	})
	require.NoError(t, err)
	ana := domain.NewCustomer("Ana", "555-0101", "ana@example.com")
	ana.LoyaltyPoints = 12
	require.NoError(t, source.SaveCustomer(ctx, ana))
	sale := &domain.Sale{
		ID:            uuid.New().String(),
		ReceiptNumber: "240301120000123",
		Items: []domain.CartLine{
			{ProductID: milk.ID, Name: "Milk", Price: domain.Money(25.50), Quantity: 1, Total: domain.Money(25.50)},
		},
		Subtotal:        domain.Money(25.50),
		Tax:             domain.Money(3.83),
		DiscountPercent: decimal.Zero,
		DiscountAmount:  decimal.Zero,
		Total:           domain.Money(29.33),
		AmountPaid:      domain.Money(30),
		Change:          domain.Money(0.67),
		PaymentMethod:   domain.PaymentCash,
		CustomerID:      ana.ID,
		SyncStatus:      domain.SyncSynced,
		CreatedAt:       time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	require.NoError(t, source.SaveSale(ctx, sale))
	stale := NewProduct("Stale", 1, 1)
	require.NoError(t, target.SaveProduct(ctx, stale))

	// Execute
	snapshot, err := backupStore(t, source).Export(ctx)
	require.NoError(t, err)
	require.NoError(t, backupStore(t, target).Import(ctx, snapshot))

	// Assert
	assert.Len(t, snapshot.Products, 1)
	assert.Len(t, snapshot.Customers, 1)
	assert.Len(t, snapshot.Sales, 1)
	assert.Len(t, snapshot.StockMovements, 1)

	got, err := target.GetProductByBarcode(ctx, "7501000111")
	require.NoError(t, err)
	assert.Equal(t, milk.ID, got.ID)
	assert.Equal(t, 15, got.Quantity)
	assert.True(t, domain.Money(18).Equal(got.Cost))

	_, err = target.GetProduct(ctx, stale.ID)
	assert.True(t, errors.Is(err, repository.ErrProductNotFound))

	customer, err := target.GetCustomerByPhone(ctx, "555-0101")
	require.NoError(t, err)
	assert.Equal(t, 12, customer.LoyaltyPoints)

	restored, err := target.GetSale(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.SyncSynced, restored.SyncStatus)
	require.Len(t, restored.Items, 1)
	assert.True(t, domain.Money(29.33).Equal(restored.Total))

	movements, err := target.ListMovements(ctx, milk.ID, time.Time{}, time.Time{})
	require.NoError(t, err)
	require.Len(t, movements, 1)
	assert.Equal(t, 10, movements[0].PreviousQuantity)
	assert.Equal(t, 15, movements[0].NewQuantity)
}

func rejectedBackup(t *testing.T, store repository.Store) {
	ctx := context.Background()
	kept := NewProduct("Bread", 2.5, 10)
	require.NoError(t, store.SaveProduct(ctx, kept))

	first := NewProduct("Milk", 1, 1)
	first.Barcode = "123"
	second := NewProduct("Juice", 1, 1)
	second.Barcode = "123"
	orphan := domain.NewStockMovement("missing", domain.MovementIn, 1, "delivery", 0)

	tests := []struct {
		name     string
		snapshot *repository.Snapshot
		code     string
	}{
		{"nil snapshot", nil, apperrors.CodeValidation},
		{"duplicate barcode", &repository.Snapshot{Products: []*domain.Product{first, second}}, apperrors.CodeConflict},
		{"movement for unknown product", &repository.Snapshot{StockMovements: []*domain.StockMovement{orphan}}, apperrors.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := backupStore(t, store).Import(ctx, tt.snapshot)

			assert.True(t, apperrors.HasCode(err, tt.code), "got %v", err)
			got, err := store.GetProduct(ctx, kept.ID)
			require.NoError(t, err)
			assert.Equal(t, "Bread", got.Name)
		})
	}
}
