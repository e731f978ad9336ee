package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"pos-service/internal/domain"
)

// InMemoryStore keeps every record in maps; records are copied in and out
type InMemoryStore struct {
	mu        sync.RWMutex
	products  map[string]*domain.Product
	customers map[string]*domain.Customer
	sales     map[string]*domain.Sale
	movements []*domain.StockMovement
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		products:  make(map[string]*domain.Product),
		customers: make(map[string]*domain.Customer),
		sales:     make(map[string]*domain.Sale),
	}
}

func (s *InMemoryStore) SaveProduct(ctx context.Context, product *domain.Product) error {
	if err := product.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Barcode != "" {
		for id, existing := range s.products {
			if id != product.ID && existing.Barcode == product.Barcode {
				return fmt.Errorf("%w: %s", ErrDuplicateBarcode, product.Barcode)
			}
		}
	}
	s.products[product.ID] = CloneProduct(product)
	return nil
}

func (s *InMemoryStore) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, ErrProductNotFound
	}
	return CloneProduct(product), nil
}

func (s *InMemoryStore) GetProductByBarcode(ctx context.Context, barcode string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, product := range s.products {
		if barcode != "" && product.Barcode == barcode {
			return CloneProduct(product), nil
		}
	}
	return nil, ErrProductNotFound
}

func (s *InMemoryStore) ListProducts(ctx context.Context, filter ProductFilter) ([]*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]*domain.Product, 0, len(s.products))
	for _, product := range s.products {
		if !product.Active && !filter.IncludeInactive {
			continue
		}
		if filter.Category != "" && product.Category != filter.Category {
			continue
		}
		products = append(products, CloneProduct(product))
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Name < products[j].Name })
	return products, nil
}

func (s *InMemoryStore) UpdateStock(ctx context.Context, productID string, fn StockMutation) (*domain.StockMovement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.products[productID]
	if !exists {
		return nil, ErrProductNotFound
	}
	working := CloneProduct(stored)
	movement, err := fn(working)
	if err != nil {
		return nil, err
	}
	if err := working.Validate(); err != nil {
		return nil, err
	}
	s.products[productID] = working
	if movement != nil {
		m := *movement
		s.movements = append(s.movements, &m)
	}
	return movement, nil
}

func (s *InMemoryStore) ListMovements(ctx context.Context, productID string, from, to time.Time) ([]*domain.StockMovement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var movements []*domain.StockMovement
	for _, m := range s.movements {
		if productID != "" && m.ProductID != productID {
			continue
		}
		if !inRange(m.CreatedAt, from, to) {
			continue
		}
		copied := *m
		movements = append(movements, &copied)
	}
	return movements, nil
}

func (s *InMemoryStore) SaveCustomer(ctx context.Context, customer *domain.Customer) error {
	if err := customer.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, existing := range s.customers {
		if id != customer.ID && existing.Phone == customer.Phone {
			return fmt.Errorf("%w: %s", ErrDuplicatePhone, customer.Phone)
		}
	}
	s.customers[customer.ID] = CloneCustomer(customer)
	return nil
}

func (s *InMemoryStore) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customer, exists := s.customers[id]
	if !exists {
		return nil, ErrCustomerNotFound
	}
	return CloneCustomer(customer), nil
}

func (s *InMemoryStore) GetCustomerByPhone(ctx context.Context, phone string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, customer := range s.customers {
		if customer.Phone == phone {
			return CloneCustomer(customer), nil
		}
	}
	return nil, ErrCustomerNotFound
}

func (s *InMemoryStore) UpdateCustomer(ctx context.Context, id string, fn func(customer *domain.Customer) error) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, exists := s.customers[id]
	if !exists {
		return nil, ErrCustomerNotFound
	}
	working := CloneCustomer(stored)
	if err := fn(working); err != nil {
		return nil, err
	}
	if err := working.Validate(); err != nil {
		return nil, err
	}
	s.customers[id] = working
	return CloneCustomer(working), nil
}

func (s *InMemoryStore) ListCustomers(ctx context.Context) ([]*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	customers := make([]*domain.Customer, 0, len(s.customers))
	for _, customer := range s.customers {
		customers = append(customers, CloneCustomer(customer))
	}
	sort.Slice(customers, func(i, j int) bool { return customers[i].Name < customers[j].Name })
	return customers, nil
}

func (s *InMemoryStore) SaveSale(ctx context.Context, sale *domain.Sale) error {
	if err := ValidateSale(sale); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sales[sale.ID] = CloneSale(sale)
	return nil
}

func (s *InMemoryStore) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.sales[id]
	if !exists {
		return nil, ErrSaleNotFound
	}
	return CloneSale(sale), nil
}

func (s *InMemoryStore) ListSales(ctx context.Context, from, to time.Time) ([]*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sales []*domain.Sale
	for _, sale := range s.sales {
		if inRange(sale.CreatedAt, from, to) {
			sales = append(sales, CloneSale(sale))
		}
	}
	sortSales(sales)
	return sales, nil
}

func (s *InMemoryStore) ListSalesByCustomer(ctx context.Context, customerID string) ([]*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var sales []*domain.Sale
	for _, sale := range s.sales {
		if sale.CustomerID == customerID {
			sales = append(sales, CloneSale(sale))
		}
	}
	sortSales(sales)
	return sales, nil
}

func (s *InMemoryStore) UpdateSaleSyncStatus(ctx context.Context, id string, status domain.SyncStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.sales[id]
	if !exists {
		return ErrSaleNotFound
	}
	sale.SyncStatus = status
	return nil
}

// Export copies every record; products, customers and sales come out sorted by id
func (s *InMemoryStore) Export(ctx context.Context) (*Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := &Snapshot{
		ExportedAt:     time.Now(),
		Products:       make([]*domain.Product, 0, len(s.products)),
		Customers:      make([]*domain.Customer, 0, len(s.customers)),
		Sales:          make([]*domain.Sale, 0, len(s.sales)),
		StockMovements: make([]*domain.StockMovement, 0, len(s.movements)),
	}
	for _, p := range s.products {
		snapshot.Products = append(snapshot.Products, CloneProduct(p))
	}
	for _, c := range s.customers {
		snapshot.Customers = append(snapshot.Customers, CloneCustomer(c))
	}
	for _, sale := range s.sales {
		snapshot.Sales = append(snapshot.Sales, CloneSale(sale))
	}
	for _, m := range s.movements {
		copied := *m
		snapshot.StockMovements = append(snapshot.StockMovements, &copied)
	}
	sort.Slice(snapshot.Products, func(i, j int) bool { return snapshot.Products[i].ID < snapshot.Products[j].ID })
	sort.Slice(snapshot.Customers, func(i, j int) bool { return snapshot.Customers[i].ID < snapshot.Customers[j].ID })
	sort.Slice(snapshot.Sales, func(i, j int) bool { return snapshot.Sales[i].ID < snapshot.Sales[j].ID })
	return snapshot, nil
}

func (s *InMemoryStore) Import(ctx context.Context, snapshot *Snapshot) error {
	if err := ValidateSnapshot(snapshot); err != nil {
		return err
	}

	products := make(map[string]*domain.Product, len(snapshot.Products))
	for _, p := range snapshot.Products {
		products[p.ID] = CloneProduct(p)
	}
	customers := make(map[string]*domain.Customer, len(snapshot.Customers))
	for _, c := range snapshot.Customers {
		customers[c.ID] = CloneCustomer(c)
	}
	sales := make(map[string]*domain.Sale, len(snapshot.Sales))
	for _, sale := range snapshot.Sales {
		sales[sale.ID] = CloneSale(sale)
	}
	movements := make([]*domain.StockMovement, 0, len(snapshot.StockMovements))
	for _, m := range snapshot.StockMovements {
		copied := *m
		movements = append(movements, &copied)
	}
	sort.SliceStable(movements, func(i, j int) bool { return movements[i].CreatedAt.Before(movements[j].CreatedAt) })

	s.mu.Lock()
	defer s.mu.Unlock()
	s.products = products
	s.customers = customers
	s.sales = sales
	s.movements = movements
	return nil
}

// Sales counts stored sales
func (s *InMemoryStore) Sales() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sales)
}

// Movements counts stored stock movements
func (s *InMemoryStore) Movements() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.movements)
}

func inRange(t, from, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

func sortSales(sales []*domain.Sale) {
	sort.Slice(sales, func(i, j int) bool { return sales[i].CreatedAt.Before(sales[j].CreatedAt) })
}
