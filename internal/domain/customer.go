package domain

import (
	"strings"
	"time"

	apperrors "pos-service/pkg/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Customer is a registered shopper collecting loyalty points
type Customer struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Phone          string          `json:"phone"`
	Email          string          `json:"email,omitempty"`
	LoyaltyPoints  int             `json:"loyaltyPoints"`
	TotalPurchases decimal.Decimal `json:"totalPurchases"`
	PurchaseCount  int             `json:"purchaseCount"`
	LastPurchaseAt *time.Time      `json:"lastPurchaseAt,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// NewCustomer creates a customer with an empty purchase history
func NewCustomer(name, phone, email string) *Customer {
	now := time.Now().UTC()
	return &Customer{
		ID:             uuid.New().String(),
		Name:           strings.TrimSpace(name),
		Phone:          strings.TrimSpace(phone),
		Email:          strings.TrimSpace(email),
		TotalPurchases: decimal.Zero,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Validate checks the fields every stored customer must satisfy
func (c *Customer) Validate() error {
	if c == nil {
		return apperrors.NewValidationError("customer is required", "customer")
	}
	if strings.TrimSpace(c.ID) == "" {
		return apperrors.NewValidationError("customer id is required", "id")
	}
	if strings.TrimSpace(c.Name) == "" {
		return apperrors.NewValidationError("customer name is required", "name")
	}
	if strings.TrimSpace(c.Phone) == "" {
		return apperrors.NewValidationError("customer phone is required", "phone")
	}
	if c.LoyaltyPoints < 0 {
		return apperrors.NewValidationError("loyalty points must be >= 0", "loyaltyPoints")
	}
	return nil
}

// ApplyPurchase credits loyalty points for a completed sale and returns the points earned
func (c *Customer) ApplyPurchase(total decimal.Decimal, at time.Time) int {
	earned := LoyaltyPoints(total)
	c.LoyaltyPoints += earned
	c.TotalPurchases = c.TotalPurchases.Add(total)
	c.PurchaseCount++
	c.LastPurchaseAt = &at
	c.UpdatedAt = at
	return earned
}

// LoyaltyPoints is one point per 10 currency units plus the tier bonus
func LoyaltyPoints(total decimal.Decimal) int {
	if total.IsNegative() {
		return 0
	}
	base := total.Div(decimal.NewFromInt(10)).Floor().IntPart()
	return int(base) + BonusPoints(total)
}

// BonusPoints returns the tiered bonus for large purchases
func BonusPoints(total decimal.Decimal) int {
	switch {
	case total.GreaterThanOrEqual(decimal.NewFromInt(500)):
		return 50
	case total.GreaterThanOrEqual(decimal.NewFromInt(200)):
		return 20
	case total.GreaterThanOrEqual(decimal.NewFromInt(100)):
		return 10
	default:
		return 0
	}
}
