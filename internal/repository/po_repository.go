// internal/repository/po_repository.go
package repository

import (
	"context"

	"github.com/andresuchdata/stockrecon/internal/domain"
)

// OrderRepository persists purchase orders with their line items and
// reconciliation buckets. Orders are never hard-deleted.
type OrderRepository interface {
	CreateOrder(ctx context.Context, order *domain.PurchaseOrder) error
	GetOrder(ctx context.Context, id string) (*domain.PurchaseOrder, error)
	SaveOrder(ctx context.Context, order *domain.PurchaseOrder) error
}
