package domain

import (
	"strings"
	"time"

	apperrors "pos-service/pkg/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product is a catalog entry together with its on-hand quantity
type Product struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Barcode    string          `json:"barcode,omitempty"`
	Price      decimal.Decimal `json:"price"`
	Cost       decimal.Decimal `json:"cost"`
	Quantity   int             `json:"quantity"`
	Category   string          `json:"category"`
	Unit       string          `json:"unit"`
	MinStock   int             `json:"minStock"`
	ExpiryDate *time.Time      `json:"expiryDate,omitempty"`
	Active     bool            `json:"active"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// DefaultUnit is used when a product is registered without a unit label
const DefaultUnit = "piece"

// NewProduct creates a new active product
func NewProduct(name, barcode, category, unit string, price, cost decimal.Decimal, quantity, minStock int) *Product {
	if unit == "" {
		unit = DefaultUnit
	}
	now := time.Now().UTC()
	return &Product{
		ID:        uuid.New().String(),
		Name:      strings.TrimSpace(name),
		Barcode:   strings.TrimSpace(barcode),
		Price:     price,
		Cost:      cost,
		Quantity:  quantity,
		Category:  strings.TrimSpace(category),
		Unit:      unit,
		MinStock:  minStock,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Validate checks the fields every stored product must satisfy
func (p *Product) Validate() error {
	if p == nil {
		return apperrors.NewValidationError("product is required", "product")
	}
	if strings.TrimSpace(p.ID) == "" {
		return apperrors.NewValidationError("product id is required", "id")
	}
	if strings.TrimSpace(p.Name) == "" {
		return apperrors.NewValidationError("product name is required", "name")
	}
	if p.Price.IsNegative() {
		return apperrors.NewValidationError("price must be >= 0", "price")
	}
	if p.Cost.IsNegative() {
		return apperrors.NewValidationError("cost must be >= 0", "cost")
	}
	if p.Quantity < 0 {
		return apperrors.NewValidationError("quantity must be >= 0", "quantity")
	}
	if p.MinStock < 0 {
		return apperrors.NewValidationError("minimum stock must be >= 0", "minStock")
	}
	return nil
}

// AddStock increases the on-hand quantity and returns the previous quantity
func (p *Product) AddStock(quantity int) (int, error) {
	if quantity <= 0 {
		return p.Quantity, apperrors.NewValidationError("quantity must be a positive integer", "quantity")
	}
	previous := p.Quantity
	p.Quantity += quantity
	p.UpdatedAt = time.Now().UTC()
	return previous, nil
}

// RemoveStock decreases the on-hand quantity and returns the previous quantity.
// The product is left untouched when there is not enough stock.
func (p *Product) RemoveStock(quantity int) (int, error) {
	if quantity <= 0 {
		return p.Quantity, apperrors.NewValidationError("quantity must be a positive integer", "quantity")
	}
	if p.Quantity < quantity {
		return p.Quantity, apperrors.NewInsufficientStock(p.Name, p.Quantity, quantity)
	}
	previous := p.Quantity
	p.Quantity -= quantity
	p.UpdatedAt = time.Now().UTC()
	return previous, nil
}

// Recount sets the quantity to a counted value and returns counted - previous
func (p *Product) Recount(actual int) (int, error) {
	if actual < 0 {
		return 0, apperrors.NewValidationError("counted quantity must be >= 0", "actualQuantity")
	}
	difference := actual - p.Quantity
	if difference != 0 {
		p.Quantity = actual
		p.UpdatedAt = time.Now().UTC()
	}
	return difference, nil
}

// IsLowStock reports whether the quantity is at or below the product's
// threshold, falling back to defaultThreshold when none is set
func (p *Product) IsLowStock(defaultThreshold int) bool {
	threshold := p.MinStock
	if threshold == 0 {
		threshold = defaultThreshold
	}
	return p.Quantity <= threshold
}

// ExpiresBefore reports whether the product has an expiry date at or before t
func (p *Product) ExpiresBefore(t time.Time) bool {
	return p.ExpiryDate != nil && !p.ExpiryDate.After(t)
}
