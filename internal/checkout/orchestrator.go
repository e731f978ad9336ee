package checkout

import (
	"context"
	"errors"
	"sync"
	"time"

	"pos-service/internal/cart"
	"pos-service/internal/domain"
	"pos-service/internal/events"
	"pos-service/internal/repository"
	apperrors "pos-service/pkg/errors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Cart is the part of the cart engine a checkout consumes
type Cart interface {
	Snapshot() ([]domain.CartLine, cart.Totals)
	ValidateDiscount(percent decimal.Decimal) error
	ClearSold(ctx context.Context, sold []domain.CartLine)
}

// Enqueuer hands records to the offline sync queue
type Enqueuer interface {
	Enqueue(ctx context.Context, kind domain.ActionKind, payload interface{}) (domain.PendingAction, error)
}

// ReceiptHook receives every completed sale, e.g. to print a receipt
type ReceiptHook interface {
	SaleCompleted(ctx context.Context, sale *domain.Sale) error
}

// ReceiptHookFunc adapts a function to ReceiptHook
type ReceiptHookFunc func(ctx context.Context, sale *domain.Sale) error

func (f ReceiptHookFunc) SaleCompleted(ctx context.Context, sale *domain.Sale) error {
	return f(ctx, sale)
}

// Request is one payment for the current cart
type Request struct {
	PaymentMethod   domain.PaymentMethod
	AmountPaid      decimal.Decimal
	CustomerID      string
	DiscountPercent decimal.Decimal
	CashierID       string
}

// Orchestrator turns the cart into a sale. Pre-conditions are checked before
// anything is written; once the sale is stored the remaining steps are best
// effort and a failure in one of them is logged, not rolled back.
type Orchestrator struct {
	busy sync.Mutex

	cart      Cart
	store     repository.Store
	queue     Enqueuer
	publisher events.EventPublisher
	hooks     []ReceiptHook
	logger    *zap.Logger
	now       func() time.Time
}

func NewOrchestrator(c Cart, store repository.Store, queue Enqueuer, publisher events.EventPublisher, logger *zap.Logger) *Orchestrator {
	if publisher == nil {
		publisher = events.Nop{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{
		cart:      c,
		store:     store,
		queue:     queue,
		publisher: publisher,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// AddReceiptHook registers a hook; call it before serving checkouts
func (o *Orchestrator) AddReceiptHook(hook ReceiptHook) {
	o.hooks = append(o.hooks, hook)
}

// Checkout completes the sale of the current cart. A second call while one
// is running fails at once with CheckoutInProgress.
func (o *Orchestrator) Checkout(ctx context.Context, req Request) (*domain.Sale, error) {
	if !o.busy.TryLock() {
		return nil, apperrors.NewCheckoutInProgress()
	}
	defer o.busy.Unlock()

	lines, totals := o.cart.Snapshot()
	if len(lines) == 0 {
		return nil, apperrors.NewEmptyCart()
	}
	if !req.PaymentMethod.Valid() {
		return nil, apperrors.NewValidationError("unknown payment method: "+string(req.PaymentMethod), "paymentMethod")
	}
	if !req.AmountPaid.IsPositive() {
		return nil, apperrors.NewValidationError("amount paid must be a positive number", "amountPaid")
	}

	if err := o.cart.ValidateDiscount(req.DiscountPercent); err != nil {
		return nil, err
	}
	priced := cart.Discount(totals, req.DiscountPercent, "")
	if req.AmountPaid.LessThan(priced.FinalTotal) {
		return nil, apperrors.NewInsufficientPayment(priced.FinalTotal.StringFixed(2), req.AmountPaid.StringFixed(2))
	}

	if err := o.checkStock(ctx, lines); err != nil {
		return nil, err
	}
	if req.CustomerID != "" {
		if _, err := o.store.GetCustomer(ctx, req.CustomerID); err != nil {
			if errors.Is(err, repository.ErrCustomerNotFound) {
				return nil, apperrors.NewNotFound("customer", req.CustomerID)
			}
			return nil, apperrors.NewDatabaseError("load customer", err)
		}
	}

	now := o.now()
	sale := &domain.Sale{
		ID:              uuid.New().String(),
		ReceiptNumber:   domain.GenerateReceiptNumber(now),
		Items:           lines,
		Subtotal:        priced.Subtotal,
		Tax:             priced.Tax,
		DiscountPercent: priced.DiscountPercent,
		DiscountAmount:  priced.DiscountAmount,
		Total:           priced.FinalTotal,
		AmountPaid:      req.AmountPaid,
		Change:          domain.Round2(req.AmountPaid.Sub(priced.FinalTotal)),
		PaymentMethod:   req.PaymentMethod,
		CustomerID:      req.CustomerID,
		CashierID:       req.CashierID,
		SyncStatus:      domain.SyncPending,
		CreatedAt:       now,
	}
	if err := o.store.SaveSale(ctx, sale); err != nil {
		o.logger.Error("Failed to save sale", zap.String("receipt", sale.ReceiptNumber), zap.Error(err))
		return nil, apperrors.NewDatabaseError("save sale", err)
	}

	o.decrementStock(ctx, sale)
	o.creditLoyalty(ctx, sale)

	if _, err := o.queue.Enqueue(ctx, domain.ActionUploadSale, sale); err != nil {
		o.logger.Error("Failed to queue sale for upload",
			zap.String("sale_id", sale.ID),
			zap.Error(err),
		)
	}

	o.cart.ClearSold(ctx, sale.Items)

	o.logger.Info("Sale completed",
		zap.String("sale_id", sale.ID),
		zap.String("receipt", sale.ReceiptNumber),
		zap.String("total", sale.Total.StringFixed(2)),
		zap.String("payment_method", string(sale.PaymentMethod)),
		zap.Int("items", sale.ItemCount()),
	)

	o.completed(ctx, sale)
	return repository.CloneSale(sale), nil
}

// checkStock re-reads every product; the cart only knew the stock at add time
func (o *Orchestrator) checkStock(ctx context.Context, lines []domain.CartLine) error {
	for _, line := range lines {
		product, err := o.store.GetProduct(ctx, line.ProductID)
		if err != nil {
			if errors.Is(err, repository.ErrProductNotFound) {
				return apperrors.NewNotFound("product", line.Name)
			}
			return apperrors.NewDatabaseError("load product", err)
		}
		if !product.Active {
			return apperrors.NewValidationError(product.Name+" is no longer available for sale", "items")
		}
		if product.Quantity < line.Quantity {
			return apperrors.NewInsufficientStock(product.Name, product.Quantity, line.Quantity)
		}
	}
	return nil
}

func (o *Orchestrator) decrementStock(ctx context.Context, sale *domain.Sale) {
	reason := domain.SaleReason(sale.ReceiptNumber)
	for _, line := range sale.Items {
		quantity := line.Quantity
		_, err := o.store.UpdateStock(ctx, line.ProductID, func(p *domain.Product) (*domain.StockMovement, error) {
			previous, err := p.RemoveStock(quantity)
			if err != nil {
				return nil, err
			}
			return domain.NewStockMovement(p.ID, domain.MovementOut, quantity, reason, previous), nil
		})
		if err != nil {
			o.logger.Error("Failed to decrement stock for sale line",
				zap.String("receipt", sale.ReceiptNumber),
				zap.String("product_id", line.ProductID),
				zap.Int("quantity", quantity),
				zap.Error(err),
			)
		}
	}
}

func (o *Orchestrator) creditLoyalty(ctx context.Context, sale *domain.Sale) {
	if sale.CustomerID == "" {
		return
	}
	earned := 0
	_, err := o.store.UpdateCustomer(ctx, sale.CustomerID, func(c *domain.Customer) error {
		earned = c.ApplyPurchase(sale.Total, sale.CreatedAt)
		return nil
	})
	if err != nil {
		o.logger.Error("Failed to update loyalty points",
			zap.String("customer_id", sale.CustomerID),
			zap.String("sale_id", sale.ID),
			zap.Error(err),
		)
		return
	}
	o.logger.Debug("Loyalty points credited",
		zap.String("customer_id", sale.CustomerID),
		zap.Int("points", earned),
	)
}

func (o *Orchestrator) completed(ctx context.Context, sale *domain.Sale) {
	for _, hook := range o.hooks {
		if err := hook.SaleCompleted(ctx, repository.CloneSale(sale)); err != nil {
			o.logger.Warn("Receipt hook failed", zap.String("sale_id", sale.ID), zap.Error(err))
		}
	}
	event := events.SaleCompleted{
		SaleID:        sale.ID,
		ReceiptNumber: sale.ReceiptNumber,
		Total:         sale.Total,
		CustomerID:    sale.CustomerID,
		OccurredAt:    sale.CreatedAt,
	}
	if err := o.publisher.Publish(ctx, event); err != nil {
		o.logger.Warn("Failed to publish sale event", zap.Error(err))
	}
}
