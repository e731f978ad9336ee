package domain

import (
	"time"

	"github.com/google/uuid"
)

// MovementDirection is the sign of a stock change
type MovementDirection string

const (
	MovementIn  MovementDirection = "in"
	MovementOut MovementDirection = "out"
)

// StockMovement is an append-only audit entry for one quantity change
type StockMovement struct {
	ID               string            `json:"id"`
	ProductID        string            `json:"productId"`
	Direction        MovementDirection `json:"type"`
	Quantity         int               `json:"quantity"`
	Reason           string            `json:"reason"`
	PreviousQuantity int               `json:"previousQuantity"`
	NewQuantity      int               `json:"newQuantity"`
	CreatedAt        time.Time         `json:"date"`
}

// NewStockMovement records a change from previous to previous +/- quantity
func NewStockMovement(productID string, direction MovementDirection, quantity int, reason string, previous int) *StockMovement {
	newQuantity := previous + quantity
	if direction == MovementOut {
		newQuantity = previous - quantity
	}
	return &StockMovement{
		ID:               uuid.New().String(),
		ProductID:        productID,
		Direction:        direction,
		Quantity:         quantity,
		Reason:           reason,
		PreviousQuantity: previous,
		NewQuantity:      newQuantity,
		CreatedAt:        time.Now().UTC(),
	}
}

// Common movement reasons
const (
	ReasonRestock   = "restock"
	ReasonStockTake = "stock take"
	ReasonAdjust    = "manual adjustment"
)

// SaleReason is the movement reason recorded for a checkout line
func SaleReason(receiptNumber string) string {
	return "sale " + receiptNumber
}
