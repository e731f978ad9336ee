package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// DailyReport summarizes the sales of one calendar day
type DailyReport struct {
	Date            string                            `json:"date"`
	SaleCount       int                               `json:"saleCount"`
	ItemsSold       int                               `json:"itemsSold"`
	Revenue         decimal.Decimal                   `json:"revenue"`
	Tax             decimal.Decimal                   `json:"tax"`
	Discounts       decimal.Decimal                   `json:"discounts"`
	AverageTicket   decimal.Decimal                   `json:"averageTicket"`
	ByPaymentMethod map[PaymentMethod]decimal.Decimal `json:"byPaymentMethod"`
	TopProducts     []BestSeller                      `json:"topProducts"`
	GeneratedAt     time.Time                         `json:"generatedAt"`
}

// BestSeller aggregates the units and revenue of one product over a period
type BestSeller struct {
	ProductID string          `json:"productId"`
	Name      string          `json:"name"`
	Quantity  int             `json:"quantity"`
	Revenue   decimal.Decimal `json:"revenue"`
}
