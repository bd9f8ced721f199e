package memory

import (
	"context"
	"sync"
	"time"

	"github.com/andresuchdata/stockrecon/internal/domain"
)

// OrderRepository is an in-memory purchase order store. Orders are deep
// copied on the way in and out so callers never share state.
type OrderRepository struct {
	mu     sync.RWMutex
	orders map[string]*domain.PurchaseOrder
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{orders: make(map[string]*domain.PurchaseOrder)}
}

func (r *OrderRepository) CreateOrder(ctx context.Context, order *domain.PurchaseOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cp := cloneOrder(order)
	cp.UpdatedAt = time.Now()
	r.orders[order.ID] = cp
	return nil
}

func (r *OrderRepository) GetOrder(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return cloneOrder(o), nil
}

func (r *OrderRepository) SaveOrder(ctx context.Context, order *domain.PurchaseOrder) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.orders[order.ID]; !ok {
		return domain.ErrNotFound
	}
	cp := cloneOrder(order)
	cp.UpdatedAt = time.Now()
	r.orders[order.ID] = cp
	return nil
}

func cloneOrder(o *domain.PurchaseOrder) *domain.PurchaseOrder {
	cp := *o
	cp.LineItems = make([]domain.OrderLineItem, len(o.LineItems))
	for i, li := range o.LineItems {
		if li.ReceivedQuantity != nil {
			v := *li.ReceivedQuantity
			li.ReceivedQuantity = &v
		}
		cp.LineItems[i] = li
	}
	cp.MissingBySku = cloneBucket(o.MissingBySku)
	cp.DamagedBySku = cloneBucket(o.DamagedBySku)
	cp.ReplacedBySku = cloneBucket(o.ReplacedBySku)
	return &cp
}

func cloneBucket(m map[string]int) map[string]int {
	if m == nil {
		return nil
	}
	cp := make(map[string]int, len(m))
	for k, v := range m {
		cp[k] = v
	}
	return cp
}
