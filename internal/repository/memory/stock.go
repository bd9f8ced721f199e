// Package memory holds map-backed repositories with the same semantics as
// the postgres ones. Tests use them, and they can inject query failures.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/andresuchdata/stockrecon/internal/domain"
)

// StockRepository is an in-memory stock store. It implements both
// repository.StockRepository and repository.ProductRepository.
type StockRepository struct {
	mu       sync.RWMutex
	products map[string]*domain.Product

	// FailInsensitive makes case-insensitive single lookups of the given
	// SKUs fail with the mapped error.
	FailInsensitive map[string]error
	// FailBatch makes every FindBySKUs call fail.
	FailBatch error

	SingleCalls atomic.Int64
	BatchCalls  atomic.Int64
}

func NewStockRepository(products ...domain.Product) *StockRepository {
	r := &StockRepository{products: make(map[string]*domain.Product)}
	for _, p := range products {
		p := p
		r.products[p.SKU] = &p
	}
	return r
}

func (r *StockRepository) FindBySKU(ctx context.Context, sku string, caseSensitive bool) (*domain.StockRecord, error) {
	r.SingleCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if !caseSensitive {
		if err, ok := r.FailInsensitive[sku]; ok {
			return nil, err
		}
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.products[sku]; ok {
		return &domain.StockRecord{SKU: p.SKU, StockOnHand: p.StockOnHand}, nil
	}
	if caseSensitive {
		return nil, domain.ErrNotFound
	}

	for _, key := range r.sortedKeys() {
		if strings.EqualFold(key, sku) {
			p := r.products[key]
			return &domain.StockRecord{SKU: p.SKU, StockOnHand: p.StockOnHand}, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *StockRepository) FindBySKUs(ctx context.Context, skus []string, caseSensitive bool) ([]domain.StockRecord, error) {
	r.BatchCalls.Add(1)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if r.FailBatch != nil {
		return nil, r.FailBatch
	}

	wanted := make(map[string]bool, len(skus))
	for _, s := range skus {
		if !caseSensitive {
			s = strings.ToLower(s)
		}
		wanted[s] = true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	records := []domain.StockRecord{}
	for _, key := range r.sortedKeys() {
		k := key
		if !caseSensitive {
			k = strings.ToLower(k)
		}
		if wanted[k] {
			p := r.products[key]
			records = append(records, domain.StockRecord{SKU: p.SKU, StockOnHand: p.StockOnHand})
		}
	}
	return records, nil
}

func (r *StockRepository) IncrementStock(ctx context.Context, sku string, delta int) (*domain.StockRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[sku]
	if !ok {
		return nil, domain.ErrNotFound
	}
	p.StockOnHand += delta
	if p.StockOnHand < 0 {
		p.StockOnHand = 0
	}
	p.UpdatedAt = time.Now()
	return &domain.StockRecord{SKU: p.SKU, StockOnHand: p.StockOnHand}, nil
}

func (r *StockRepository) SetStock(ctx context.Context, sku string, stockOnHand int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.products[sku]
	if !ok {
		return domain.ErrNotFound
	}
	if stockOnHand < 0 {
		stockOnHand = 0
	}
	p.StockOnHand = stockOnHand
	p.UpdatedAt = time.Now()
	return nil
}

func (r *StockRepository) GetProduct(ctx context.Context, sku string) (*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.productFold(sku)
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *StockRepository) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	products := make([]*domain.Product, 0, len(r.products))
	for _, key := range r.sortedKeys() {
		cp := *r.products[key]
		products = append(products, &cp)
	}
	return products, nil
}

func (r *StockRepository) UpdatePlanningParams(ctx context.Context, sku string, params domain.PlanningParams) (*domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.productFold(sku)
	if !ok {
		return nil, domain.ErrNotFound
	}
	if params.SalesPerDay != nil {
		p.SalesPerDay = *params.SalesPerDay
	}
	if params.LeadTimeDays != nil {
		p.LeadTimeDays = *params.LeadTimeDays
	}
	if params.MinimumOrderQuantity != nil {
		p.MinimumOrderQuantity = *params.MinimumOrderQuantity
	}
	if params.MaximumStock != nil {
		v := *params.MaximumStock
		p.MaximumStock = &v
	}
	if params.CustomSafetyStock != nil {
		v := *params.CustomSafetyStock
		p.CustomSafetyStock = &v
	}
	p.UpdatedAt = time.Now()

	cp := *p
	return &cp, nil
}

// Stock returns the stored stock for an exact SKU, or -1 when absent.
func (r *StockRepository) Stock(sku string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if p, ok := r.products[sku]; ok {
		return p.StockOnHand
	}
	return -1
}

// productFold prefers the exact SKU and falls back to a case-insensitive
// match. It must be called with mu held.
func (r *StockRepository) productFold(sku string) (*domain.Product, bool) {
	if p, ok := r.products[sku]; ok {
		return p, true
	}
	for _, key := range r.sortedKeys() {
		if strings.EqualFold(key, sku) {
			return r.products[key], true
		}
	}
	return nil, false
}

// sortedKeys must be called with mu held.
func (r *StockRepository) sortedKeys() []string {
	keys := make([]string, 0, len(r.products))
	for k := range r.products {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
