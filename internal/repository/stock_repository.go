// internal/repository/stock_repository.go
package repository

import (
	"context"

	"github.com/andresuchdata/stockrecon/internal/domain"
)

// StockRepository is the stock store query contract the resolver and the
// reconciliation flow depend on. Single-row lookups return domain.ErrNotFound
// when nothing matches; any other error is a query failure.
type StockRepository interface {
	// FindBySKU selects one row by SKU. With caseSensitive=false it is a
	// case-insensitive pattern match that prefers an exact-case row.
	FindBySKU(ctx context.Context, sku string, caseSensitive bool) (*domain.StockRecord, error)

	// FindBySKUs is the multi-value "in" select. Missing SKUs are simply
	// absent from the result.
	FindBySKUs(ctx context.Context, skus []string, caseSensitive bool) ([]domain.StockRecord, error)

	// IncrementStock adds delta to the stored SKU's stock, never going below
	// zero, and returns the updated row.
	IncrementStock(ctx context.Context, sku string, delta int) (*domain.StockRecord, error)

	// SetStock overwrites the stored SKU's stock.
	SetStock(ctx context.Context, sku string, stockOnHand int) error
}

// ProductRepository serves planning flows.
type ProductRepository interface {
	GetProduct(ctx context.Context, sku string) (*domain.Product, error)
	ListProducts(ctx context.Context) ([]*domain.Product, error)
	UpdatePlanningParams(ctx context.Context, sku string, params domain.PlanningParams) (*domain.Product, error)
}
