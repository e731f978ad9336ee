package repository

import (
	"context"
	"errors"
	"time"

	"pos-service/internal/domain"
)

// ProductRepository persists the catalog
type ProductRepository interface {
	// SaveProduct inserts or replaces a product (last write wins)
	SaveProduct(ctx context.Context, product *domain.Product) error
	GetProduct(ctx context.Context, id string) (*domain.Product, error)
	GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]*domain.Product, error)
}

// ProductFilter narrows ListProducts. Zero value lists active products.
type ProductFilter struct {
	Category        string
	IncludeInactive bool
}

// StockMutation changes a product loaded inside the stock transaction and
// returns the movement to record, or nil when nothing changed
type StockMutation func(product *domain.Product) (*domain.StockMovement, error)

// StockRepository applies quantity changes together with their audit entry
type StockRepository interface {
	// UpdateStock loads the product, applies fn, and stores the product and the
	// returned movement atomically. Nothing is written when fn fails.
	UpdateStock(ctx context.Context, productID string, fn StockMutation) (*domain.StockMovement, error)
	// ListMovements returns movements ordered by time; an empty productID matches every product
	ListMovements(ctx context.Context, productID string, from, to time.Time) ([]*domain.StockMovement, error)
}

// CustomerRepository persists customers
type CustomerRepository interface {
	SaveCustomer(ctx context.Context, customer *domain.Customer) error
	GetCustomer(ctx context.Context, id string) (*domain.Customer, error)
	GetCustomerByPhone(ctx context.Context, phone string) (*domain.Customer, error)
	// UpdateCustomer loads the customer, applies fn and stores the result
	UpdateCustomer(ctx context.Context, id string, fn func(customer *domain.Customer) error) (*domain.Customer, error)
	ListCustomers(ctx context.Context) ([]*domain.Customer, error)
}

// SaleRepository persists completed sales
type SaleRepository interface {
	SaveSale(ctx context.Context, sale *domain.Sale) error
	GetSale(ctx context.Context, id string) (*domain.Sale, error)
	// ListSales returns sales created in [from, to) ordered by creation time
	ListSales(ctx context.Context, from, to time.Time) ([]*domain.Sale, error)
	ListSalesByCustomer(ctx context.Context, customerID string) ([]*domain.Sale, error)
	UpdateSaleSyncStatus(ctx context.Context, id string, status domain.SyncStatus) error
}

// Store is the record store shared by the cart, checkout, inventory and reports
type Store interface {
	ProductRepository
	StockRepository
	CustomerRepository
	SaleRepository
}

// Repository errors
var (
	ErrProductNotFound  = errors.New("product not found")
	ErrCustomerNotFound = errors.New("customer not found")
	ErrSaleNotFound     = errors.New("sale not found")
	ErrDuplicateBarcode = errors.New("barcode already registered")
	ErrDuplicatePhone   = errors.New("phone already registered")
)

// ValidateSale checks the fields every stored sale must satisfy
func ValidateSale(sale *domain.Sale) error {
	switch {
	case sale == nil:
		return errors.New("sale is required")
	case sale.ID == "":
		return errors.New("sale id is required")
	case len(sale.Items) == 0:
		return errors.New("sale has no items")
	case !sale.PaymentMethod.Valid():
		return errors.New("sale has an unknown payment method")
	}
	return nil
}

// CloneProduct returns a copy that shares no pointers with p
func CloneProduct(p *domain.Product) *domain.Product {
	c := *p
	if p.ExpiryDate != nil {
		expiry := *p.ExpiryDate
		c.ExpiryDate = &expiry
	}
	return &c
}

// CloneCustomer returns a copy that shares no pointers with c
func CloneCustomer(c *domain.Customer) *domain.Customer {
	out := *c
	if c.LastPurchaseAt != nil {
		last := *c.LastPurchaseAt
		out.LastPurchaseAt = &last
	}
	return &out
}

// CloneSale returns a deep copy of s
func CloneSale(s *domain.Sale) *domain.Sale {
	out := *s
	out.Items = append([]domain.CartLine(nil), s.Items...)
	return &out
}
