package commands

import (
	"time"

	"github.com/shopspring/decimal"
)

// CreateProductCommand represents a command to add a product to the catalog
type CreateProductCommand struct {
	Name       string
	Barcode    string
	Category   string
	Unit       string
	Price      decimal.Decimal
	Cost       decimal.Decimal
	Quantity   int
	MinStock   int
	ExpiryDate *time.Time
}

// UpdateProductCommand represents a partial product update; nil fields are left unchanged
type UpdateProductCommand struct {
	ID         string
	Name       *string
	Barcode    *string
	Category   *string
	Unit       *string
	Price      *decimal.Decimal
	Cost       *decimal.Decimal
	MinStock   *int
	ExpiryDate *time.Time
}

// AdjustStockCommand represents a stock-in or stock-out of a product
type AdjustStockCommand struct {
	ProductID string
	Quantity  int
	Reason    string
}

// StockCountCommand is one counted line of a stock take
type StockCountCommand struct {
	ProductID string
	Barcode   string
	Actual    int
}

// PriceUpdateCommand represents a price change; a nil Cost keeps the current cost
type PriceUpdateCommand struct {
	ProductID string
	Price     decimal.Decimal
	Cost      *decimal.Decimal
}

// RegisterCustomerCommand represents a command to register a loyalty customer
type RegisterCustomerCommand struct {
	Name  string
	Phone string
	Email string
}
