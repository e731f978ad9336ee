package cart

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"pos-service/internal/domain"
	"pos-service/internal/events"
	"pos-service/internal/storage"
	apperrors "pos-service/pkg/errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Defaults used by DefaultOptions and in place of out-of-range values
const (
	DefaultTaxRate            = 0.15
	DefaultMaxQuantityPerLine = 999
	DefaultMaxDiscountPercent = 50
)

// savedCartKey is the key-value document holding a held cart
const savedCartKey = "savedCart"

// Options configures the engine. A zero TaxRate means a tax-exempt till and
// a zero MaxDiscountPercent disallows discounts.
type Options struct {
	TaxRate            float64
	MaxQuantityPerLine int
	MaxDiscountPercent float64
}

// DefaultOptions returns the standard till rules
func DefaultOptions() Options {
	return Options{
		TaxRate:            DefaultTaxRate,
		MaxQuantityPerLine: DefaultMaxQuantityPerLine,
		MaxDiscountPercent: DefaultMaxDiscountPercent,
	}
}

// Totals is the arithmetic summary of the cart
type Totals struct {
	Subtotal         decimal.Decimal `json:"subtotal"`
	Tax              decimal.Decimal `json:"tax"`
	Total            decimal.Decimal `json:"total"`
	ItemCount        int             `json:"itemCount"`
	UniqueLineCount  int             `json:"uniqueLineCount"`
	AverageItemPrice decimal.Decimal `json:"averageItemPrice"`
}

// DiscountedTotals extends Totals with a discount preview
type DiscountedTotals struct {
	Totals
	DiscountPercent decimal.Decimal `json:"discountPercent"`
	DiscountAmount  decimal.Decimal `json:"discountAmount"`
	DiscountReason  string          `json:"discountReason,omitempty"`
	FinalTotal      decimal.Decimal `json:"finalTotal"`
}

// Stats breaks the cart down by category
type Stats struct {
	Totals
	Categories map[string]int `json:"categories"`
	OldestItem *time.Time     `json:"oldestItem,omitempty"`
	NewestItem *time.Time     `json:"newestItem,omitempty"`
}

// Engine is the in-memory cart of one till. All methods are safe for
// concurrent use; change events are published after the lock is released.
type Engine struct {
	mu          sync.Mutex
	lines       map[string]*domain.CartLine
	order       []string
	taxRate     decimal.Decimal
	maxQuantity int
	maxDiscount decimal.Decimal
	publisher   events.EventPublisher
	store       storage.KeyValueStore
	logger      *zap.Logger
}

func NewEngine(opts Options, publisher events.EventPublisher, store storage.KeyValueStore, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.TaxRate < 0 {
		logger.Warn("Negative tax rate, using default", zap.Float64("tax_rate", opts.TaxRate))
		opts.TaxRate = DefaultTaxRate
	}
	if opts.MaxQuantityPerLine <= 0 {
		opts.MaxQuantityPerLine = DefaultMaxQuantityPerLine
	}
	if opts.MaxDiscountPercent < 0 || opts.MaxDiscountPercent > 100 {
		logger.Warn("Discount cap out of range, using default", zap.Float64("max_discount_percent", opts.MaxDiscountPercent))
		opts.MaxDiscountPercent = DefaultMaxDiscountPercent
	}
	if publisher == nil {
		publisher = events.Nop{}
	}
	return &Engine{
		lines:       make(map[string]*domain.CartLine),
		taxRate:     decimal.NewFromFloat(opts.TaxRate),
		maxQuantity: opts.MaxQuantityPerLine,
		maxDiscount: decimal.NewFromFloat(opts.MaxDiscountPercent),
		publisher:   publisher,
		store:       store,
		logger:      logger,
	}
}

// AddItem adds quantity units of product, merging with an existing line
func (e *Engine) AddItem(ctx context.Context, product *domain.Product, quantity int) error {
	if product == nil {
		return apperrors.NewValidationError("product is required", "product")
	}
	if err := product.Validate(); err != nil {
		return err
	}
	if !product.Active {
		return apperrors.NewValidationError(fmt.Sprintf("%s is not available for sale", product.Name), "product")
	}
	if err := e.validateQuantity(quantity); err != nil {
		return err
	}

	e.mu.Lock()
	line, exists := e.lines[product.ID]
	requested := quantity
	if exists {
		requested += line.Quantity
	}
	if requested > product.Quantity || requested > e.maxQuantity {
		e.mu.Unlock()
		available := product.Quantity
		if available > e.maxQuantity {
			available = e.maxQuantity
		}
		return apperrors.NewInsufficientStock(product.Name, available, requested)
	}

	if exists {
		line.Quantity = requested
	} else {
		line = &domain.CartLine{
			ProductID: product.ID,
			Name:      product.Name,
			Barcode:   product.Barcode,
			Category:  product.Category,
			Unit:      product.Unit,
			Price:     product.Price,
			Quantity:  quantity,
			AddedAt:   time.Now().UTC(),
		}
		e.lines[product.ID] = line
		e.order = append(e.order, product.ID)
	}
	line.Recompute()
	event := e.changedLocked()
	e.mu.Unlock()

	e.publish(ctx, event)
	return nil
}

// RemoveItem drops the line for productID
func (e *Engine) RemoveItem(ctx context.Context, productID string) error {
	e.mu.Lock()
	if _, exists := e.lines[productID]; !exists {
		e.mu.Unlock()
		return apperrors.NewNotFound("cart line", productID)
	}
	e.removeLocked(productID)
	event := e.changedLocked()
	e.mu.Unlock()

	e.publish(ctx, event)
	return nil
}

// SetQuantity replaces a line's quantity; zero removes the line
func (e *Engine) SetQuantity(ctx context.Context, productID string, quantity int) error {
	if quantity < 0 {
		return apperrors.NewValidationError("quantity must be a non-negative integer", "quantity")
	}
	if quantity > e.maxQuantity {
		return apperrors.NewValidationError(fmt.Sprintf("quantity must not exceed %d", e.maxQuantity), "quantity")
	}

	e.mu.Lock()
	line, exists := e.lines[productID]
	if !exists {
		e.mu.Unlock()
		return apperrors.NewNotFound("cart line", productID)
	}
	if quantity == 0 {
		e.removeLocked(productID)
	} else {
		line.Quantity = quantity
		line.Recompute()
	}
	event := e.changedLocked()
	e.mu.Unlock()

	e.publish(ctx, event)
	return nil
}

// Totals computes subtotal, tax and total
func (e *Engine) Totals() Totals {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.totalsLocked()
}

// ApplyDiscount previews a percentage discount without changing the cart
func (e *Engine) ApplyDiscount(percent decimal.Decimal, reason string) (DiscountedTotals, error) {
	if err := e.ValidateDiscount(percent); err != nil {
		return DiscountedTotals{}, err
	}
	totals := e.Totals()
	return Discount(totals, percent, SanitizeReason(reason)), nil
}

// Discount applies percent to totals; the caller has validated the range
func Discount(totals Totals, percent decimal.Decimal, reason string) DiscountedTotals {
	amount := domain.Round2(totals.Subtotal.Mul(percent).Div(decimal.NewFromInt(100)))
	return DiscountedTotals{
		Totals:          totals,
		DiscountPercent: percent,
		DiscountAmount:  amount,
		DiscountReason:  reason,
		FinalTotal:      domain.Round2(totals.Total.Sub(amount)),
	}
}

// ValidateDiscount checks percent against the configured range
func (e *Engine) ValidateDiscount(percent decimal.Decimal) error {
	if percent.IsNegative() || percent.GreaterThan(e.maxDiscount) {
		return apperrors.NewValidationError(
			fmt.Sprintf("discount must be between 0 and %s percent", e.maxDiscount.String()), "percent")
	}
	return nil
}

// Lines returns a copy of the lines in the order they were added
func (e *Engine) Lines() []domain.CartLine {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.linesLocked()
}

// Snapshot returns the lines and their totals taken under one lock
func (e *Engine) Snapshot() ([]domain.CartLine, Totals) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.linesLocked(), e.totalsLocked()
}

// IsEmpty reports whether the cart has no lines
func (e *Engine) IsEmpty() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.order) == 0
}

// Clear empties the cart
func (e *Engine) Clear(ctx context.Context) {
	e.mu.Lock()
	e.lines = make(map[string]*domain.CartLine)
	e.order = nil
	event := e.changedLocked()
	e.mu.Unlock()

	e.publish(ctx, event)
}

// ClearSold takes the sold quantities out of the cart. Lines added or raised
// after the sale's snapshot keep whatever the sale did not cover.
func (e *Engine) ClearSold(ctx context.Context, sold []domain.CartLine) {
	e.mu.Lock()
	for _, item := range sold {
		line, exists := e.lines[item.ProductID]
		if !exists {
			continue
		}
		if line.Quantity <= item.Quantity {
			e.removeLocked(item.ProductID)
			continue
		}
		line.Quantity -= item.Quantity
		line.Recompute()
	}
	event := e.changedLocked()
	e.mu.Unlock()

	e.publish(ctx, event)
}

// Stats returns totals plus per-category quantities and the line age range
func (e *Engine) Stats() Stats {
	e.mu.Lock()
	defer e.mu.Unlock()

	stats := Stats{
		Totals:     e.totalsLocked(),
		Categories: make(map[string]int),
	}
	for _, id := range e.order {
		line := e.lines[id]
		category := line.Category
		if category == "" {
			category = "uncategorized"
		}
		stats.Categories[category] += line.Quantity

		addedAt := line.AddedAt
		if stats.OldestItem == nil || addedAt.Before(*stats.OldestItem) {
			stats.OldestItem = &addedAt
		}
		if stats.NewestItem == nil || addedAt.After(*stats.NewestItem) {
			stats.NewestItem = &addedAt
		}
	}
	return stats
}

type savedCart struct {
	Items   []domain.CartLine `json:"items"`
	SavedAt time.Time         `json:"timestamp"`
}

// Hold parks the current cart in the key-value store and empties it
func (e *Engine) Hold(ctx context.Context) error {
	if e.store == nil {
		return apperrors.NewInternalError("no store configured for held carts", nil)
	}
	lines := e.Lines()
	if len(lines) == 0 {
		return apperrors.NewEmptyCart()
	}
	if err := storage.SetJSON(ctx, e.store, savedCartKey, savedCart{Items: lines, SavedAt: time.Now().UTC()}); err != nil {
		return apperrors.NewDatabaseError("hold cart", err)
	}
	e.Clear(ctx)
	return nil
}

// Restore brings back a held cart, replacing the current lines
func (e *Engine) Restore(ctx context.Context) error {
	if e.store == nil {
		return apperrors.NewInternalError("no store configured for held carts", nil)
	}
	var saved savedCart
	if err := storage.GetJSON(ctx, e.store, savedCartKey, &saved); err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return apperrors.NewNotFound("held cart", savedCartKey)
		}
		return apperrors.NewDatabaseError("restore cart", err)
	}

	e.mu.Lock()
	e.lines = make(map[string]*domain.CartLine, len(saved.Items))
	e.order = nil
	for i := range saved.Items {
		line := saved.Items[i]
		e.lines[line.ProductID] = &line
		e.order = append(e.order, line.ProductID)
	}
	event := e.changedLocked()
	e.mu.Unlock()

	if err := e.store.Delete(ctx, savedCartKey); err != nil {
		e.logger.Warn("Failed to delete held cart", zap.Error(err))
	}
	e.publish(ctx, event)
	return nil
}

func (e *Engine) validateQuantity(quantity int) error {
	if quantity < 1 || quantity > e.maxQuantity {
		return apperrors.NewValidationError(
			fmt.Sprintf("quantity must be an integer between 1 and %d", e.maxQuantity), "quantity")
	}
	return nil
}

func (e *Engine) removeLocked(productID string) {
	delete(e.lines, productID)
	for i, id := range e.order {
		if id == productID {
			e.order = append(e.order[:i], e.order[i+1:]...)
			break
		}
	}
}

func (e *Engine) linesLocked() []domain.CartLine {
	lines := make([]domain.CartLine, 0, len(e.order))
	for _, id := range e.order {
		lines = append(lines, *e.lines[id])
	}
	return lines
}

func (e *Engine) totalsLocked() Totals {
	subtotal := decimal.Zero
	items := 0
	for _, id := range e.order {
		line := e.lines[id]
		subtotal = subtotal.Add(line.Total)
		items += line.Quantity
	}
	subtotal = domain.Round2(subtotal)
	tax := domain.Round2(subtotal.Mul(e.taxRate))

	average := decimal.Zero
	if items > 0 {
		average = domain.Round2(subtotal.Div(decimal.NewFromInt(int64(items))))
	}
	return Totals{
		Subtotal:         subtotal,
		Tax:              tax,
		Total:            domain.Round2(subtotal.Add(tax)),
		ItemCount:        items,
		UniqueLineCount:  len(e.order),
		AverageItemPrice: average,
	}
}

func (e *Engine) changedLocked() events.CartChanged {
	totals := e.totalsLocked()
	return events.CartChanged{
		ItemCount:       totals.ItemCount,
		UniqueLineCount: totals.UniqueLineCount,
		Subtotal:        totals.Subtotal,
		OccurredAt:      time.Now().UTC(),
	}
}

func (e *Engine) publish(ctx context.Context, event events.CartChanged) {
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.Warn("Failed to publish cart event", zap.Error(err))
	}
}

// SanitizeReason trims free text and strips angle brackets
func SanitizeReason(reason string) string {
	return strings.TrimSpace(strings.NewReplacer("<", "", ">", "").Replace(reason))
}
