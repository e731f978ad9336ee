package handlers

import (
	"time"

	"pos-service/internal/cart"
	"pos-service/internal/domain"

	"github.com/shopspring/decimal"
)

// ErrorResponse represents an error response
// @Description Error response rendered by the error handler middleware
type ErrorResponse struct {
	// Error code
	Error string `json:"error" example:"InsufficientStock"`
	// Human readable message
	Message string `json:"message" example:"insufficient stock for Milk 1L"`
	// Additional details
	Details string `json:"details" example:"available: 2, requested: 5"`
}

// SuccessResponse represents a success response
// @Description Success response with message
type SuccessResponse struct {
	Message string `json:"message" example:"cart cleared"`
}

// AddCartItemRequest adds a product to the cart by id or by scanned barcode
// @Description Exactly one of productId or barcode is required
type AddCartItemRequest struct {
	ProductID string `json:"productId" example:"0b6f1c1e-8a0c-4e53-9d5c-3f1f6b7f9d10"`
	Barcode   string `json:"barcode" example:"7501031311309"`
	// Units to add, defaults to 1
	Quantity int `json:"quantity" binding:"omitempty,min=1" example:"2"`
}

// SetQuantityRequest replaces the quantity of a cart line; 0 removes it
type SetQuantityRequest struct {
	Quantity *int `json:"quantity" binding:"required,min=0" example:"3"`
}

// DiscountRequest previews a percentage discount on the cart
type DiscountRequest struct {
	Percent decimal.Decimal `json:"percent" swaggertype:"number" example:"10"`
	Reason  string          `json:"reason" example:"damaged packaging"`
}

// CartResponse is the current cart with its totals
// @Description Cart lines in the order they were added plus computed totals
type CartResponse struct {
	Items  []domain.CartLine `json:"items"`
	Totals cart.Totals       `json:"totals"`
}

// CheckoutRequest pays for the current cart
// @Description Payment for the current cart. amountPaid must cover the total after discount.
type CheckoutRequest struct {
	PaymentMethod   domain.PaymentMethod `json:"paymentMethod" binding:"required" enums:"cash,card,transfer,points" example:"cash"`
	AmountPaid      decimal.Decimal      `json:"amountPaid" swaggertype:"number" example:"60"`
	CustomerID      string               `json:"customerId" example:""`
	DiscountPercent decimal.Decimal      `json:"discountPercent" swaggertype:"number" example:"0"`
}

// CreateProductRequest represents the request body for registering a product
type CreateProductRequest struct {
	Name       string          `json:"name" binding:"required" example:"Milk 1L"`
	Barcode    string          `json:"barcode" example:"7501031311309"`
	Category   string          `json:"category" example:"dairy"`
	Unit       string          `json:"unit" example:"piece"`
	Price      decimal.Decimal `json:"price" swaggertype:"number" example:"25.50"`
	Cost       decimal.Decimal `json:"cost" swaggertype:"number" example:"18.00"`
	Quantity   int             `json:"quantity" binding:"min=0" example:"40"`
	MinStock   int             `json:"minStock" binding:"min=0" example:"10"`
	ExpiryDate *time.Time      `json:"expiryDate" example:"2024-12-31T00:00:00Z"`
}

// UpdateProductRequest is a partial product update; omitted fields keep their value
type UpdateProductRequest struct {
	Name       *string          `json:"name" example:"Milk 1L"`
	Barcode    *string          `json:"barcode" example:"7501031311309"`
	Category   *string          `json:"category" example:"dairy"`
	Unit       *string          `json:"unit" example:"piece"`
	Price      *decimal.Decimal `json:"price" swaggertype:"number" example:"26.00"`
	Cost       *decimal.Decimal `json:"cost" swaggertype:"number" example:"18.50"`
	MinStock   *int             `json:"minStock" binding:"omitempty,min=0" example:"12"`
	ExpiryDate *time.Time       `json:"expiryDate" example:"2024-12-31T00:00:00Z"`
}

// StockAdjustmentRequest represents a stock-in or stock-out
type StockAdjustmentRequest struct {
	Quantity int    `json:"quantity" binding:"required,min=1" example:"12"`
	Reason   string `json:"reason" example:"supplier delivery"`
}

// PriceUpdate is one line of a bulk price change
type PriceUpdate struct {
	ProductID string           `json:"productId" binding:"required" example:"0b6f1c1e-8a0c-4e53-9d5c-3f1f6b7f9d10"`
	Price     decimal.Decimal  `json:"price" swaggertype:"number" example:"27.00"`
	Cost      *decimal.Decimal `json:"cost" swaggertype:"number" example:"19.00"`
}

// BulkPriceRequest changes several prices at once
type BulkPriceRequest struct {
	Updates []PriceUpdate `json:"updates" binding:"required,min=1,dive"`
}

// StockCount is one counted line of a JSON stock take
type StockCount struct {
	ProductID string `json:"productId" example:""`
	Barcode   string `json:"barcode" example:"7501031311309"`
	Actual    int    `json:"actualQuantity" binding:"min=0" example:"38"`
}

// StockTakeRequest is a stock take sent as JSON instead of a workbook
type StockTakeRequest struct {
	Counts []StockCount `json:"counts" binding:"required,min=1,dive"`
}

// RegisterCustomerRequest represents the request body for registering a loyalty customer
type RegisterCustomerRequest struct {
	Name  string `json:"name" binding:"required" example:"Ana López"`
	Phone string `json:"phone" binding:"required" example:"5512345678"`
	Email string `json:"email" binding:"omitempty,email" example:"ana@example.com"`
}

// SetConnectivityRequest forces the till online or offline
type SetConnectivityRequest struct {
	Online *bool `json:"online" binding:"required" example:"true"`
}

// ConnectivityResponse reports the connection after a change or probe
type ConnectivityResponse struct {
	Online  bool `json:"online" example:"true"`
	Changed bool `json:"changed" example:"true"`
}

// SyncStatusResponse describes the pending sync queue
// @Description Pending actions per kind, the last successful sync and the connection state
type SyncStatusResponse struct {
	Online       bool                      `json:"online" example:"false"`
	Pending      int                       `json:"pending" example:"3"`
	ByKind       map[domain.ActionKind]int `json:"byKind"`
	Draining     bool                      `json:"draining" example:"false"`
	LastSyncTime *time.Time                `json:"lastSyncTime,omitempty"`
	Actions      []domain.PendingAction    `json:"actions,omitempty"`
}

// CleanupResponse reports how many old records were purged
type CleanupResponse struct {
	Removed int `json:"removed" example:"4"`
}

// HealthResponse is returned by the health check
type HealthResponse struct {
	Status   string `json:"status" example:"ok"`
	Service  string `json:"service" example:"pos-service"`
	Database string `json:"database" example:"ok"`
	Online   bool   `json:"online" example:"true"`
}

// RestoreBackupResponse counts the records a restore wrote
type RestoreBackupResponse struct {
	Products       int       `json:"products" example:"120"`
	Customers      int       `json:"customers" example:"35"`
	Sales          int       `json:"sales" example:"890"`
	StockMovements int       `json:"stockMovements" example:"1400"`
	RestoredAt     time.Time `json:"restoredAt"`
}
