package cart

import (
	"context"
	"testing"

	"pos-service/internal/domain"
	"pos-service/internal/events"
	"pos-service/internal/storage"
	apperrors "pos-service/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestEngine() (*Engine, *events.Recorder) {
	rec := events.NewRecorder()
	return NewEngine(DefaultOptions(), rec, storage.NewMemoryStore(), zap.NewNop()), rec
}

func product(name string, price float64, quantity int) *domain.Product {
	return domain.NewProduct(name, "", "grocery", "", domain.Money(price), decimal.Zero, quantity, 0)
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestAddItem_MergesLines(t *testing.T) {
	engine, rec := newTestEngine()
	milk := product("Milk", 25.50, 10)

	require.NoError(t, engine.AddItem(context.Background(), milk, 2))
	require.NoError(t, engine.AddItem(context.Background(), milk, 3))

	lines := engine.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 5, lines[0].Quantity)
	assert.True(t, dec("127.50").Equal(lines[0].Total))
	assert.Len(t, rec.OfType("CartChanged"), 2)
}

func TestAddItem_InsufficientStockLeavesCartUnchanged(t *testing.T) {
	engine, rec := newTestEngine()
	eggs := product("Eggs", 3, 4)
	require.NoError(t, engine.AddItem(context.Background(), eggs, 3))

	err := engine.AddItem(context.Background(), eggs, 2)

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInsufficientStock))
	assert.Contains(t, err.Error(), "Eggs")
	assert.Equal(t, 3, engine.Lines()[0].Quantity)
	assert.Len(t, rec.Events(), 1)
}

func TestAddItem_PerLineCap(t *testing.T) {
	engine, _ := newTestEngine()
	rice := product("Rice", 1, 5000)
	require.NoError(t, engine.AddItem(context.Background(), rice, 999))

	err := engine.AddItem(context.Background(), rice, 1)

	assert.True(t, apperrors.HasCode(err, apperrors.CodeInsufficientStock))
}

func TestAddItem_Validation(t *testing.T) {
	engine, _ := newTestEngine()

	tests := []struct {
		name     string
		product  *domain.Product
		quantity int
	}{
		{"nil product", nil, 1},
		{"missing name", product("", 1, 5), 1},
		{"negative price", product("Bread", -1, 5), 1},
		{"zero quantity", product("Bread", 1, 5), 0},
		{"quantity above cap", product("Bread", 1, 5000), 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := engine.AddItem(context.Background(), tt.product, tt.quantity)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation), "got %v", err)
		})
	}
	assert.True(t, engine.IsEmpty())
}

func TestRemoveItem(t *testing.T) {
	engine, _ := newTestEngine()
	milk := product("Milk", 2, 10)
	require.NoError(t, engine.AddItem(context.Background(), milk, 1))

	require.NoError(t, engine.RemoveItem(context.Background(), milk.ID))
	assert.True(t, engine.IsEmpty())

	err := engine.RemoveItem(context.Background(), milk.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestSetQuantity(t *testing.T) {
	engine, _ := newTestEngine()
	milk := product("Milk", 2, 10)
	bread := product("Bread", 1.25, 10)
	require.NoError(t, engine.AddItem(context.Background(), milk, 1))
	require.NoError(t, engine.AddItem(context.Background(), bread, 1))

	require.NoError(t, engine.SetQuantity(context.Background(), milk.ID, 4))
	assert.True(t, dec("8").Equal(engine.Lines()[0].Total))

	assert.True(t, apperrors.HasCode(engine.SetQuantity(context.Background(), milk.ID, 1000), apperrors.CodeValidation))
	assert.True(t, apperrors.HasCode(engine.SetQuantity(context.Background(), milk.ID, -1), apperrors.CodeValidation))
	assert.True(t, apperrors.HasCode(engine.SetQuantity(context.Background(), "missing", 2), apperrors.CodeNotFound))

	require.NoError(t, engine.SetQuantity(context.Background(), milk.ID, 0))
	lines := engine.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, bread.ID, lines[0].ProductID)
}

func TestTotals_Rounding(t *testing.T) {
	tests := []struct {
		name     string
		price    float64
		quantity int
		subtotal string
		tax      string
		total    string
	}{
		{"ten", 10, 1, "10", "1.5", "11.5"},
		{"half cent rounds up", 36.50, 1, "36.5", "5.48", "41.98"},
		{"two lines of 25.50", 25.50, 2, "51", "7.65", "58.65"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine, _ := newTestEngine()
			require.NoError(t, engine.AddItem(context.Background(), product("Item", tt.price, 100), tt.quantity))

			totals := engine.Totals()

			assert.True(t, dec(tt.subtotal).Equal(totals.Subtotal), "subtotal %s", totals.Subtotal)
			assert.True(t, dec(tt.tax).Equal(totals.Tax), "tax %s", totals.Tax)
			assert.True(t, dec(tt.total).Equal(totals.Total), "total %s", totals.Total)
		})
	}
}

func TestTotals_Counts(t *testing.T) {
	engine, _ := newTestEngine()
	require.NoError(t, engine.AddItem(context.Background(), product("Milk", 2, 10), 3))
	require.NoError(t, engine.AddItem(context.Background(), product("Bread", 4, 10), 1))

	totals := engine.Totals()

	assert.Equal(t, 4, totals.ItemCount)
	assert.Equal(t, 2, totals.UniqueLineCount)
	assert.True(t, dec("2.5").Equal(totals.AverageItemPrice))
}

func TestApplyDiscount(t *testing.T) {
	engine, _ := newTestEngine()
	require.NoError(t, engine.AddItem(context.Background(), product("Milk", 25.50, 10), 2))

	_, err := engine.ApplyDiscount(dec("150"), "too much")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	_, err = engine.ApplyDiscount(dec("-1"), "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	none, err := engine.ApplyDiscount(decimal.Zero, "")
	require.NoError(t, err)
	assert.True(t, none.DiscountAmount.IsZero())
	assert.True(t, none.Total.Equal(none.FinalTotal))

	ten, err := engine.ApplyDiscount(dec("10"), " <b>loyal</b> ")
	require.NoError(t, err)
	assert.True(t, dec("5.1").Equal(ten.DiscountAmount))
	assert.True(t, dec("53.55").Equal(ten.FinalTotal))
	assert.Equal(t, "bloyal/b", ten.DiscountReason)

	// preview only
	assert.Equal(t, 2, engine.Lines()[0].Quantity)
}

func TestStats(t *testing.T) {
	engine, _ := newTestEngine()
	milk := domain.NewProduct("Milk", "", "dairy", "", domain.Money(2), decimal.Zero, 10, 0)
	cheese := domain.NewProduct("Cheese", "", "dairy", "", domain.Money(5), decimal.Zero, 10, 0)
	bread := domain.NewProduct("Bread", "", "", "", domain.Money(1), decimal.Zero, 10, 0)
	for _, p := range []*domain.Product{milk, cheese, bread} {
		require.NoError(t, engine.AddItem(context.Background(), p, 2))
	}

	stats := engine.Stats()

	assert.Equal(t, 4, stats.Categories["dairy"])
	assert.Equal(t, 2, stats.Categories["uncategorized"])
	require.NotNil(t, stats.OldestItem)
	require.NotNil(t, stats.NewestItem)
	assert.False(t, stats.NewestItem.Before(*stats.OldestItem))
}

func TestHoldAndRestore(t *testing.T) {
	engine, _ := newTestEngine()
	ctx := context.Background()
	milk := product("Milk", 2, 10)
	require.NoError(t, engine.AddItem(ctx, milk, 3))

	require.NoError(t, engine.Hold(ctx))
	assert.True(t, engine.IsEmpty())

	require.NoError(t, engine.Restore(ctx))
	lines := engine.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Quantity)

	err := engine.Restore(ctx)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotFound))
}

func TestHold_EmptyCart(t *testing.T) {
	engine, _ := newTestEngine()

	err := engine.Hold(context.Background())

	assert.True(t, apperrors.HasCode(err, apperrors.CodeEmptyCart))
}

func TestClear(t *testing.T) {
	engine, rec := newTestEngine()
	require.NoError(t, engine.AddItem(context.Background(), product("Milk", 2, 10), 1))

	engine.Clear(context.Background())

	assert.True(t, engine.IsEmpty())
	last := rec.Events()[len(rec.Events())-1].(events.CartChanged)
	assert.Equal(t, 0, last.ItemCount)
}

func TestNewEngine_TaxRates(t *testing.T) {
	tests := []struct {
		name    string
		rate    float64
		wantTax string
	}{
		{"tax exempt till", 0, "0"},
		{"configured rate", 0.08, "8"},
		{"negative falls back to default", -0.1, "15"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Setup
			opts := DefaultOptions()
			opts.TaxRate = tt.rate
			engine := NewEngine(opts, nil, storage.NewMemoryStore(), zap.NewNop())
			require.NoError(t, engine.AddItem(context.Background(), product("Rice", 50, 10), 2))

			// Execute
			totals := engine.Totals()

			// Assert
			assert.True(t, dec("100").Equal(totals.Subtotal))
			assert.True(t, dec(tt.wantTax).Equal(totals.Tax), totals.Tax.String())
			assert.True(t, dec("100").Add(dec(tt.wantTax)).Equal(totals.Total))
		})
	}
}

func TestNewEngine_ZeroDiscountCapDisallowsDiscounts(t *testing.T) {
	opts := DefaultOptions()
	opts.MaxDiscountPercent = 0
	engine := NewEngine(opts, nil, storage.NewMemoryStore(), zap.NewNop())
	require.NoError(t, engine.AddItem(context.Background(), product("Rice", 50, 10), 1))

	_, err := engine.ApplyDiscount(dec("5"), "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))

	preview, err := engine.ApplyDiscount(decimal.Zero, "")
	require.NoError(t, err)
	assert.True(t, preview.FinalTotal.Equal(preview.Total))
}

func TestClearSold(t *testing.T) {
	// Setup
	engine, rec := newTestEngine()
	ctx := context.Background()
	milk := product("Milk", 10, 20)
	bread := product("Bread", 2, 20)
	require.NoError(t, engine.AddItem(ctx, milk, 3))
	require.NoError(t, engine.AddItem(ctx, bread, 1))
	sold := engine.Lines()
	require.NoError(t, engine.AddItem(ctx, milk, 2))
	eggs := product("Eggs", 3, 20)
	require.NoError(t, engine.AddItem(ctx, eggs, 4))

	// Execute
	engine.ClearSold(ctx, sold)

	// Assert
	lines := engine.Lines()
	require.Len(t, lines, 2)
	assert.Equal(t, milk.ID, lines[0].ProductID)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.True(t, dec("20").Equal(lines[0].Total))
	assert.Equal(t, eggs.ID, lines[1].ProductID)
	assert.Len(t, rec.OfType("CartChanged"), 5)
}
