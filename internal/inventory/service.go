package inventory

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"pos-service/internal/commands"
	"pos-service/internal/domain"
	"pos-service/internal/repository"
	apperrors "pos-service/pkg/errors"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DefaultLowStockThreshold applies to products without their own minimum
const DefaultLowStockThreshold = 10

// Enqueuer hands records to the offline sync queue
type Enqueuer interface {
	Enqueue(ctx context.Context, kind domain.ActionKind, payload interface{}) (domain.PendingAction, error)
}

// StockTakeResult is the outcome of one counted line
type StockTakeResult struct {
	Success    bool            `json:"success"`
	ProductID  string          `json:"productId,omitempty"`
	Barcode    string          `json:"barcode,omitempty"`
	Difference int             `json:"difference"`
	Product    *domain.Product `json:"product,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// PriceUpdateResult is the outcome of one price change
type PriceUpdateResult struct {
	Success   bool            `json:"success"`
	ProductID string          `json:"productId"`
	Product   *domain.Product `json:"product,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// Valuation sums the stock on hand at cost and at retail price
type Valuation struct {
	TotalCostValue   decimal.Decimal `json:"totalCostValue"`
	TotalRetailValue decimal.Decimal `json:"totalRetailValue"`
	TotalItems       int             `json:"totalItems"`
	ProductsCount    int             `json:"productsCount"`
}

// Service manages the catalog, stock levels and customers. Every change to
// a product or customer is queued for the backend.
type Service struct {
	store             repository.Store
	queue             Enqueuer
	lowStockThreshold int
	logger            *zap.Logger
	now               func() time.Time
}

func NewService(store repository.Store, queue Enqueuer, lowStockThreshold int, logger *zap.Logger) *Service {
	if lowStockThreshold <= 0 {
		lowStockThreshold = DefaultLowStockThreshold
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:             store,
		queue:             queue,
		lowStockThreshold: lowStockThreshold,
		logger:            logger,
		now:               func() time.Time { return time.Now().UTC() },
	}
}

// AddProduct registers a new product. A barcode already in use is a conflict.
func (s *Service) AddProduct(ctx context.Context, cmd commands.CreateProductCommand) (*domain.Product, error) {
	product := domain.NewProduct(cmd.Name, cmd.Barcode, cmd.Category, cmd.Unit, cmd.Price, cmd.Cost, cmd.Quantity, cmd.MinStock)
	product.ExpiryDate = cmd.ExpiryDate
	if err := product.Validate(); err != nil {
		return nil, err
	}
	if err := s.ensureBarcodeFree(ctx, product.Barcode, ""); err != nil {
		return nil, err
	}
	if err := s.save(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info("Product created",
		zap.String("product_id", product.ID),
		zap.String("barcode", product.Barcode),
	)
	s.enqueue(ctx, domain.ActionSyncProduct, product)
	return product, nil
}

// UpdateProduct applies the non-nil fields of cmd
func (s *Service) UpdateProduct(ctx context.Context, cmd commands.UpdateProductCommand) (*domain.Product, error) {
	product, err := s.GetProduct(ctx, cmd.ID)
	if err != nil {
		return nil, err
	}

	if cmd.Name != nil {
		product.Name = strings.TrimSpace(*cmd.Name)
	}
	if cmd.Barcode != nil {
		barcode := strings.TrimSpace(*cmd.Barcode)
		if err := s.ensureBarcodeFree(ctx, barcode, product.ID); err != nil {
			return nil, err
		}
		product.Barcode = barcode
	}
	if cmd.Category != nil {
		product.Category = strings.TrimSpace(*cmd.Category)
	}
	if cmd.Unit != nil {
		product.Unit = strings.TrimSpace(*cmd.Unit)
	}
	if cmd.Price != nil {
		product.Price = *cmd.Price
	}
	if cmd.Cost != nil {
		product.Cost = *cmd.Cost
	}
	if cmd.MinStock != nil {
		product.MinStock = *cmd.MinStock
	}
	if cmd.ExpiryDate != nil {
		expiry := *cmd.ExpiryDate
		product.ExpiryDate = &expiry
	}
	product.UpdatedAt = s.now()

	if err := product.Validate(); err != nil {
		return nil, err
	}
	if err := s.save(ctx, product); err != nil {
		return nil, err
	}

	s.logger.Info("Product updated", zap.String("product_id", product.ID))
	s.enqueue(ctx, domain.ActionSyncProduct, product)
	return product, nil
}

// DeleteProduct deactivates a product; sales and movements keep referring to it
func (s *Service) DeleteProduct(ctx context.Context, id string) error {
	product, err := s.GetProduct(ctx, id)
	if err != nil {
		return err
	}
	if !product.Active {
		return nil
	}
	product.Active = false
	product.UpdatedAt = s.now()
	if err := s.save(ctx, product); err != nil {
		return err
	}

	s.logger.Info("Product deactivated", zap.String("product_id", id))
	s.enqueue(ctx, domain.ActionSyncProduct, product)
	return nil
}

func (s *Service) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	product, err := s.store.GetProduct(ctx, id)
	if err != nil {
		return nil, mapProductErr(err, id)
	}
	return product, nil
}

// LookupByBarcode finds an active product by its scanned code
func (s *Service) LookupByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, apperrors.NewValidationError("barcode is required", "barcode")
	}
	product, err := s.store.GetProductByBarcode(ctx, barcode)
	if err != nil {
		return nil, mapProductErr(err, barcode)
	}
	if !product.Active {
		return nil, apperrors.NewNotFound("product", barcode)
	}
	return product, nil
}

// ListProducts lists active products, optionally of one category
func (s *Service) ListProducts(ctx context.Context, category string) ([]*domain.Product, error) {
	products, err := s.store.ListProducts(ctx, repository.ProductFilter{Category: category})
	if err != nil {
		return nil, apperrors.NewDatabaseError("list products", err)
	}
	return products, nil
}

// AddStock receives quantity units of a product
func (s *Service) AddStock(ctx context.Context, cmd commands.AdjustStockCommand) (*domain.StockMovement, error) {
	reason := reasonOr(cmd.Reason, domain.ReasonRestock)
	return s.adjust(ctx, cmd.ProductID, func(p *domain.Product) (*domain.StockMovement, error) {
		previous, err := p.AddStock(cmd.Quantity)
		if err != nil {
			return nil, err
		}
		return domain.NewStockMovement(p.ID, domain.MovementIn, cmd.Quantity, reason, previous), nil
	})
}

// RemoveStock takes quantity units out of stock, e.g. for breakage or expiry
func (s *Service) RemoveStock(ctx context.Context, cmd commands.AdjustStockCommand) (*domain.StockMovement, error) {
	reason := reasonOr(cmd.Reason, domain.ReasonAdjust)
	return s.adjust(ctx, cmd.ProductID, func(p *domain.Product) (*domain.StockMovement, error) {
		previous, err := p.RemoveStock(cmd.Quantity)
		if err != nil {
			return nil, err
		}
		return domain.NewStockMovement(p.ID, domain.MovementOut, cmd.Quantity, reason, previous), nil
	})
}

// PerformStockTake sets each counted product to its counted quantity. Lines
// are independent: a bad line is reported and the rest are still applied.
func (s *Service) PerformStockTake(ctx context.Context, counts []commands.StockCountCommand) []StockTakeResult {
	results := make([]StockTakeResult, 0, len(counts))
	adjusted := 0

	for _, count := range counts {
		result := StockTakeResult{ProductID: count.ProductID, Barcode: count.Barcode}

		productID, err := s.resolveProductID(ctx, count)
		if err != nil {
			result.Error = err.Error()
			results = append(results, result)
			continue
		}
		result.ProductID = productID

		difference := 0
		_, err = s.store.UpdateStock(ctx, productID, func(p *domain.Product) (*domain.StockMovement, error) {
			previous := p.Quantity
			diff, err := p.Recount(count.Actual)
			if err != nil {
				return nil, err
			}
			difference = diff
			switch {
			case diff > 0:
				return domain.NewStockMovement(p.ID, domain.MovementIn, diff, domain.ReasonStockTake, previous), nil
			case diff < 0:
				return domain.NewStockMovement(p.ID, domain.MovementOut, -diff, domain.ReasonStockTake, previous), nil
			}
			return nil, nil
		})
		if err != nil {
			result.Error = mapProductErr(err, productID).Error()
			results = append(results, result)
			continue
		}

		product, err := s.store.GetProduct(ctx, productID)
		if err == nil {
			result.Product = product
		}
		result.Success = true
		result.Difference = difference
		results = append(results, result)

		if difference != 0 {
			adjusted++
			if product != nil {
				s.enqueue(ctx, domain.ActionSyncProduct, product)
			}
		}
	}

	s.logger.Info("Stock take applied",
		zap.Int("lines", len(counts)),
		zap.Int("adjusted", adjusted),
	)
	return results
}

// BulkUpdatePrices changes several prices; each update succeeds or fails on its own
func (s *Service) BulkUpdatePrices(ctx context.Context, updates []commands.PriceUpdateCommand) []PriceUpdateResult {
	results := make([]PriceUpdateResult, 0, len(updates))
	for _, update := range updates {
		price := update.Price
		product, err := s.UpdateProduct(ctx, commands.UpdateProductCommand{
			ID:    update.ProductID,
			Price: &price,
			Cost:  update.Cost,
		})
		if err != nil {
			results = append(results, PriceUpdateResult{ProductID: update.ProductID, Error: err.Error()})
			continue
		}
		results = append(results, PriceUpdateResult{Success: true, ProductID: update.ProductID, Product: product})
	}
	return results
}

// LowStock lists active products at or below their minimum stock
func (s *Service) LowStock(ctx context.Context) ([]*domain.Product, error) {
	products, err := s.ListProducts(ctx, "")
	if err != nil {
		return nil, err
	}
	low := make([]*domain.Product, 0)
	for _, p := range products {
		if p.IsLowStock(s.lowStockThreshold) {
			low = append(low, p)
		}
	}
	sort.SliceStable(low, func(i, j int) bool { return low[i].Quantity < low[j].Quantity })
	return low, nil
}

// ExpiringProducts lists products expiring within daysAhead days, soonest first
func (s *Service) ExpiringProducts(ctx context.Context, daysAhead int) ([]*domain.Product, error) {
	if daysAhead < 0 {
		return nil, apperrors.NewValidationError("days must be >= 0", "days")
	}
	products, err := s.ListProducts(ctx, "")
	if err != nil {
		return nil, err
	}
	limit := s.now().AddDate(0, 0, daysAhead)
	expiring := make([]*domain.Product, 0)
	for _, p := range products {
		if p.ExpiresBefore(limit) {
			expiring = append(expiring, p)
		}
	}
	sort.SliceStable(expiring, func(i, j int) bool { return expiring[i].ExpiryDate.Before(*expiring[j].ExpiryDate) })
	return expiring, nil
}

// InventoryValue values the active catalog
func (s *Service) InventoryValue(ctx context.Context) (Valuation, error) {
	products, err := s.ListProducts(ctx, "")
	if err != nil {
		return Valuation{}, err
	}
	value := Valuation{TotalCostValue: decimal.Zero, TotalRetailValue: decimal.Zero, ProductsCount: len(products)}
	for _, p := range products {
		quantity := decimal.NewFromInt(int64(p.Quantity))
		value.TotalCostValue = value.TotalCostValue.Add(p.Cost.Mul(quantity))
		value.TotalRetailValue = value.TotalRetailValue.Add(p.Price.Mul(quantity))
		value.TotalItems += p.Quantity
	}
	value.TotalCostValue = domain.Round2(value.TotalCostValue)
	value.TotalRetailValue = domain.Round2(value.TotalRetailValue)
	return value, nil
}

// Movements returns the movements of productID, or of every product when it
// is empty, within [from, to]; zero bounds are open
func (s *Service) Movements(ctx context.Context, productID string, from, to time.Time) ([]*domain.StockMovement, error) {
	movements, err := s.store.ListMovements(ctx, productID, from, to)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list stock movements", err)
	}
	return movements, nil
}

// RegisterCustomer adds a loyalty customer. A phone already in use is a conflict.
func (s *Service) RegisterCustomer(ctx context.Context, cmd commands.RegisterCustomerCommand) (*domain.Customer, error) {
	customer := domain.NewCustomer(cmd.Name, cmd.Phone, cmd.Email)
	if err := customer.Validate(); err != nil {
		return nil, err
	}
	if err := s.store.SaveCustomer(ctx, customer); err != nil {
		if errors.Is(err, repository.ErrDuplicatePhone) {
			return nil, apperrors.NewConflict("a customer with this phone already exists", customer.Phone)
		}
		return nil, apperrors.NewDatabaseError("save customer", err)
	}

	s.logger.Info("Customer registered", zap.String("customer_id", customer.ID))
	s.enqueue(ctx, domain.ActionSyncCustomer, customer)
	return customer, nil
}

func (s *Service) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	customer, err := s.store.GetCustomer(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrCustomerNotFound) {
			return nil, apperrors.NewNotFound("customer", id)
		}
		return nil, apperrors.NewDatabaseError("load customer", err)
	}
	return customer, nil
}

func (s *Service) ListCustomers(ctx context.Context) ([]*domain.Customer, error) {
	customers, err := s.store.ListCustomers(ctx)
	if err != nil {
		return nil, apperrors.NewDatabaseError("list customers", err)
	}
	return customers, nil
}

func (s *Service) adjust(ctx context.Context, productID string, fn repository.StockMutation) (*domain.StockMovement, error) {
	movement, err := s.store.UpdateStock(ctx, productID, fn)
	if err != nil {
		return nil, mapProductErr(err, productID)
	}

	s.logger.Info("Stock adjusted",
		zap.String("product_id", productID),
		zap.String("direction", string(movement.Direction)),
		zap.Int("quantity", movement.Quantity),
		zap.Int("new_quantity", movement.NewQuantity),
	)
	if product, err := s.store.GetProduct(ctx, productID); err == nil {
		s.enqueue(ctx, domain.ActionSyncProduct, product)
	}
	return movement, nil
}

func (s *Service) resolveProductID(ctx context.Context, count commands.StockCountCommand) (string, error) {
	if count.ProductID != "" {
		return count.ProductID, nil
	}
	if strings.TrimSpace(count.Barcode) == "" {
		return "", apperrors.NewValidationError("product id or barcode is required", "productId")
	}
	product, err := s.store.GetProductByBarcode(ctx, strings.TrimSpace(count.Barcode))
	if err != nil {
		return "", mapProductErr(err, count.Barcode)
	}
	return product.ID, nil
}

func (s *Service) ensureBarcodeFree(ctx context.Context, barcode, ownerID string) error {
	if barcode == "" {
		return nil
	}
	existing, err := s.store.GetProductByBarcode(ctx, barcode)
	switch {
	case errors.Is(err, repository.ErrProductNotFound):
		return nil
	case err != nil:
		return apperrors.NewDatabaseError("look up barcode", err)
	case existing.ID != ownerID:
		return apperrors.NewConflict("a product with this barcode already exists", barcode)
	}
	return nil
}

func (s *Service) save(ctx context.Context, product *domain.Product) error {
	if err := s.store.SaveProduct(ctx, product); err != nil {
		if errors.Is(err, repository.ErrDuplicateBarcode) {
			return apperrors.NewConflict("a product with this barcode already exists", product.Barcode)
		}
		var stdErr *apperrors.StandardError
		if errors.As(err, &stdErr) {
			return stdErr
		}
		return apperrors.NewDatabaseError("save product", err)
	}
	return nil
}

func (s *Service) enqueue(ctx context.Context, kind domain.ActionKind, payload interface{}) {
	if s.queue == nil {
		return
	}
	if _, err := s.queue.Enqueue(ctx, kind, payload); err != nil {
		s.logger.Error("Failed to queue record for sync", zap.String("action", string(kind)), zap.Error(err))
	}
}

func mapProductErr(err error, ref string) error {
	if errors.Is(err, repository.ErrProductNotFound) {
		return apperrors.NewNotFound("product", ref)
	}
	var stdErr *apperrors.StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return apperrors.NewDatabaseError("product store", err)
}

func reasonOr(reason, fallback string) string {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return fallback
	}
	return reason
}
