package domain

import (
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentMethod is how a sale was settled
type PaymentMethod string

const (
	PaymentCash     PaymentMethod = "cash"
	PaymentCard     PaymentMethod = "card"
	PaymentTransfer PaymentMethod = "transfer"
	PaymentPoints   PaymentMethod = "points"
)

// Valid reports whether m is a recognized payment method
func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentCash, PaymentCard, PaymentTransfer, PaymentPoints:
		return true
	}
	return false
}

// SyncStatus tracks delivery of a sale to the remote backend
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
	SyncFailed  SyncStatus = "failed"
)

// CartLine is one product in the cart, priced at the moment it was added
type CartLine struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Barcode   string          `json:"barcode,omitempty"`
	Category  string          `json:"category,omitempty"`
	Unit      string          `json:"unit,omitempty"`
	Price     decimal.Decimal `json:"price"`
	Quantity  int             `json:"quantity"`
	Total     decimal.Decimal `json:"total"`
	AddedAt   time.Time       `json:"addedAt"`
}

// Recompute refreshes the line total from price and quantity
func (l *CartLine) Recompute() {
	l.Total = l.Price.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Sale is the immutable record of a completed checkout.
// Only SyncStatus changes after creation.
type Sale struct {
	ID              string          `json:"id"`
	ReceiptNumber   string          `json:"receiptNumber"`
	Items           []CartLine      `json:"items"`
	Subtotal        decimal.Decimal `json:"subtotal"`
	Tax             decimal.Decimal `json:"tax"`
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	DiscountAmount  decimal.Decimal `json:"discountAmount"`
	Total           decimal.Decimal `json:"total"`
	AmountPaid      decimal.Decimal `json:"amountPaid"`
	Change          decimal.Decimal `json:"change"`
	PaymentMethod   PaymentMethod   `json:"paymentMethod"`
	CustomerID      string          `json:"customerId,omitempty"`
	CashierID       string          `json:"cashierId,omitempty"`
	SyncStatus      SyncStatus      `json:"syncStatus"`
	CreatedAt       time.Time       `json:"date"`
}

// ItemCount is the number of units sold
func (s *Sale) ItemCount() int {
	count := 0
	for _, item := range s.Items {
		count += item.Quantity
	}
	return count
}

// GenerateReceiptNumber formats t as YYMMDDhhmmss followed by three random digits
func GenerateReceiptNumber(t time.Time) string {
	return fmt.Sprintf("%02d%02d%02d%02d%02d%02d%03d",
		t.Year()%100, int(t.Month()), t.Day(),
		t.Hour(), t.Minute(), t.Second(),
		rand.Intn(1000))
}
