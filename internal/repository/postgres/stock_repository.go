package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/andresuchdata/stockrecon/internal/domain"
	"github.com/lib/pq"
)

type stockRepository struct {
	db *DB
}

func NewStockRepository(db *DB) *stockRepository {
	return &stockRepository{db: db}
}

// escapeLike escapes LIKE metacharacters so ILIKE behaves as a
// case-insensitive equality.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func (r *stockRepository) FindBySKU(ctx context.Context, sku string, caseSensitive bool) (*domain.StockRecord, error) {
	var (
		rec   domain.StockRecord
		query string
		args  []interface{}
	)

	if caseSensitive {
		query = `SELECT sku, stock_on_hand FROM products WHERE sku = $1`
		args = []interface{}{sku}
	} else {
		query = `
			SELECT sku, stock_on_hand
			FROM products
			WHERE sku ILIKE $1 ESCAPE '\'
			ORDER BY (sku = $2) DESC, sku ASC
			LIMIT 1
		`
		args = []interface{}{escapeLike(sku), sku}
	}

	if err := r.db.GetContext(ctx, &rec, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to find sku %q: %w", sku, err)
	}

	return &rec, nil
}

func (r *stockRepository) FindBySKUs(ctx context.Context, skus []string, caseSensitive bool) ([]domain.StockRecord, error) {
	if len(skus) == 0 {
		return []domain.StockRecord{}, nil
	}

	query := `SELECT sku, stock_on_hand FROM products WHERE sku = ANY($1::text[]) ORDER BY sku`
	values := skus
	if !caseSensitive {
		query = `SELECT sku, stock_on_hand FROM products WHERE lower(sku) = ANY($1::text[]) ORDER BY sku`
		values = make([]string, len(skus))
		for i, s := range skus {
			values[i] = strings.ToLower(s)
		}
	}

	var records []domain.StockRecord
	if err := r.db.SelectContext(ctx, &records, query, pq.Array(values)); err != nil {
		return nil, fmt.Errorf("failed to find skus: %w", err)
	}

	return records, nil
}

func (r *stockRepository) IncrementStock(ctx context.Context, sku string, delta int) (*domain.StockRecord, error) {
	query := `
		UPDATE products
		SET stock_on_hand = GREATEST(stock_on_hand + $2, 0),
			updated_at = NOW()
		WHERE sku = $1
		RETURNING sku, stock_on_hand
	`

	var rec domain.StockRecord
	if err := r.db.GetContext(ctx, &rec, query, sku, delta); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to increment stock for %q: %w", sku, err)
	}

	return &rec, nil
}

func (r *stockRepository) SetStock(ctx context.Context, sku string, stockOnHand int) error {
	if stockOnHand < 0 {
		stockOnHand = 0
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE products SET stock_on_hand = $2, updated_at = NOW() WHERE sku = $1`,
		sku, stockOnHand)
	if err != nil {
		return fmt.Errorf("failed to set stock for %q: %w", sku, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}

	return nil
}

// GetProduct and UpdatePlanningParams match the SKU case-insensitively;
// idx_products_sku_lower keeps that match unique.
func (r *stockRepository) GetProduct(ctx context.Context, sku string) (*domain.Product, error) {
	query := `
		SELECT sku, name, stock_on_hand, sales_per_day, lead_time_days,
			minimum_order_quantity, maximum_stock, custom_safety_stock, updated_at
		FROM products
		WHERE lower(sku) = lower($1)
	`

	var p domain.Product
	if err := r.db.GetContext(ctx, &p, query, sku); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get product %q: %w", sku, err)
	}

	return &p, nil
}

func (r *stockRepository) ListProducts(ctx context.Context) ([]*domain.Product, error) {
	query := `
		SELECT sku, name, stock_on_hand, sales_per_day, lead_time_days,
			minimum_order_quantity, maximum_stock, custom_safety_stock, updated_at
		FROM products
		ORDER BY sku ASC
	`

	var products []*domain.Product
	if err := r.db.SelectContext(ctx, &products, query); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}

	return products, nil
}

func (r *stockRepository) UpdatePlanningParams(ctx context.Context, sku string, params domain.PlanningParams) (*domain.Product, error) {
	query := `
		UPDATE products SET
			sales_per_day = COALESCE($2, sales_per_day),
			lead_time_days = COALESCE($3, lead_time_days),
			minimum_order_quantity = COALESCE($4, minimum_order_quantity),
			maximum_stock = COALESCE($5, maximum_stock),
			custom_safety_stock = COALESCE($6, custom_safety_stock),
			updated_at = NOW()
		WHERE lower(sku) = lower($1)
		RETURNING sku, name, stock_on_hand, sales_per_day, lead_time_days,
			minimum_order_quantity, maximum_stock, custom_safety_stock, updated_at
	`

	var p domain.Product
	err := r.db.GetContext(ctx, &p, query, sku,
		params.SalesPerDay,
		params.LeadTimeDays,
		params.MinimumOrderQuantity,
		params.MaximumStock,
		params.CustomSafetyStock,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to update planning params for %q: %w", sku, err)
	}

	return &p, nil
}
