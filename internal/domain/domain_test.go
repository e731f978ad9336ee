package domain

import (
	"regexp"
	"testing"
	"time"

	apperrors "pos-service/pkg/errors"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRound2_HalfUp(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"5.475", "5.48"},
		{"1.5", "1.5"},
		{"7.649999", "7.65"},
		{"0.004", "0"},
		{"0.005", "0.01"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := Round2(decimal.RequireFromString(tt.in))
			assert.True(t, decimal.RequireFromString(tt.want).Equal(got), "got %s", got)
		})
	}
}

func TestNewProduct(t *testing.T) {
	p := NewProduct(" Milk ", "7501", "dairy", "", Money(25.50), Money(18), 10, 3)

	assert.NotEmpty(t, p.ID)
	assert.Equal(t, "Milk", p.Name)
	assert.Equal(t, DefaultUnit, p.Unit)
	assert.True(t, p.Active)
	assert.NoError(t, p.Validate())
}

func TestProductValidate(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(p *Product)
		field string
	}{
		{"missing name", func(p *Product) { p.Name = "" }, "name"},
		{"missing id", func(p *Product) { p.ID = "" }, "id"},
		{"negative price", func(p *Product) { p.Price = Money(-1) }, "price"},
		{"negative quantity", func(p *Product) { p.Quantity = -2 }, "quantity"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewProduct("Bread", "", "bakery", "", Money(2), decimal.Zero, 5, 0)
			tt.edit(p)

			err := p.Validate()

			require.Error(t, err)
			assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestRemoveStock_Insufficient(t *testing.T) {
	p := NewProduct("Eggs", "", "dairy", "", Money(3), decimal.Zero, 2, 0)

	previous, err := p.RemoveStock(5)

	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInsufficientStock))
	assert.Contains(t, err.Error(), "Eggs")
	assert.Equal(t, 2, previous)
	assert.Equal(t, 2, p.Quantity)
}

func TestAddAndRemoveStock(t *testing.T) {
	p := NewProduct("Rice", "", "grains", "kg", Money(1.2), decimal.Zero, 4, 0)

	previous, err := p.AddStock(6)
	require.NoError(t, err)
	assert.Equal(t, 4, previous)
	assert.Equal(t, 10, p.Quantity)

	previous, err = p.RemoveStock(3)
	require.NoError(t, err)
	assert.Equal(t, 10, previous)
	assert.Equal(t, 7, p.Quantity)

	_, err = p.AddStock(0)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestRecount(t *testing.T) {
	p := NewProduct("Rice", "", "grains", "kg", Money(1.2), decimal.Zero, 4, 0)

	diff, err := p.Recount(9)
	require.NoError(t, err)
	assert.Equal(t, 5, diff)
	assert.Equal(t, 9, p.Quantity)

	diff, err = p.Recount(1)
	require.NoError(t, err)
	assert.Equal(t, -8, diff)

	_, err = p.Recount(-1)
	assert.Error(t, err)
}

func TestIsLowStock(t *testing.T) {
	p := NewProduct("Salt", "", "pantry", "", Money(1), decimal.Zero, 10, 0)
	assert.True(t, p.IsLowStock(10))

	p.Quantity = 11
	assert.False(t, p.IsLowStock(10))

	p.MinStock = 12
	assert.True(t, p.IsLowStock(10))
}

func TestLoyaltyPoints(t *testing.T) {
	tests := []struct {
		total string
		want  int
	}{
		{"9.99", 0},
		{"58.65", 5},
		{"100", 20},
		{"199.99", 29},
		{"200", 40},
		{"500", 100},
		{"612.40", 111},
	}
	for _, tt := range tests {
		t.Run(tt.total, func(t *testing.T) {
			assert.Equal(t, tt.want, LoyaltyPoints(decimal.RequireFromString(tt.total)))
		})
	}
}

func TestCustomerApplyPurchase(t *testing.T) {
	c := NewCustomer("Ana", "555-0101", "")
	at := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

	earned := c.ApplyPurchase(Money(150), at)

	assert.Equal(t, 25, earned)
	assert.Equal(t, 25, c.LoyaltyPoints)
	assert.Equal(t, 1, c.PurchaseCount)
	assert.True(t, Money(150).Equal(c.TotalPurchases))
	require.NotNil(t, c.LastPurchaseAt)
	assert.Equal(t, at, *c.LastPurchaseAt)
}

func TestGenerateReceiptNumber(t *testing.T) {
	at := time.Date(2024, 1, 5, 9, 7, 3, 0, time.UTC)

	receipt := GenerateReceiptNumber(at)

	assert.Regexp(t, regexp.MustCompile(`^240105090703\d{3}$`), receipt)
}

func TestCartLineRecompute(t *testing.T) {
	line := CartLine{Price: Money(25.50), Quantity: 2}
	line.Recompute()
	assert.True(t, Money(51).Equal(line.Total))
}

func TestPaymentMethodValid(t *testing.T) {
	assert.True(t, PaymentCash.Valid())
	assert.True(t, PaymentPoints.Valid())
	assert.False(t, PaymentMethod("cheque").Valid())
}

func TestNewStockMovement(t *testing.T) {
	out := NewStockMovement("p1", MovementOut, 2, SaleReason("123"), 10)
	assert.Equal(t, 8, out.NewQuantity)
	assert.Equal(t, "sale 123", out.Reason)

	in := NewStockMovement("p1", MovementIn, 5, ReasonRestock, 8)
	assert.Equal(t, 13, in.NewQuantity)
}

func TestPendingActionExhausted(t *testing.T) {
	a := NewPendingAction(ActionUploadSale, []byte(`{}`), 3)
	assert.False(t, a.Exhausted())
	a.Attempts = 3
	assert.True(t, a.Exhausted())
}
