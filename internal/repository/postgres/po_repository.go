// internal/repository/postgres/po_repository.go
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/andresuchdata/stockrecon/internal/domain"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

type poRepository struct {
	db *DB
}

func NewPORepository(db *DB) *poRepository {
	return &poRepository{db: db}
}

// orderRow mirrors purchase_orders; the reconciliation buckets are JSONB.
type orderRow struct {
	ID            string       `db:"id"`
	SupplierID    string       `db:"supplier_id"`
	Status        string       `db:"status"`
	MissingBySku  []byte       `db:"missing_by_sku"`
	DamagedBySku  []byte       `db:"damaged_by_sku"`
	ReplacedBySku []byte       `db:"replaced_by_sku"`
	CreatedAt     time.Time    `db:"created_at"`
	ConfirmedAt   sql.NullTime `db:"confirmed_at"`
	ShippedAt     sql.NullTime `db:"shipped_at"`
	ReceivedAt    sql.NullTime `db:"received_at"`
	CompletedAt   sql.NullTime `db:"completed_at"`
	UpdatedAt     time.Time    `db:"updated_at"`
}

func (r *poRepository) CreateOrder(ctx context.Context, order *domain.PurchaseOrder) error {
	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			INSERT INTO purchase_orders (id, supplier_id, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $4)
		`
		if _, err := tx.ExecContext(ctx, query, order.ID, order.SupplierID, string(order.Status), order.CreatedAt); err != nil {
			return fmt.Errorf("failed to insert purchase order: %w", err)
		}

		return r.replaceItems(ctx, tx, order)
	})
}

func (r *poRepository) GetOrder(ctx context.Context, id string) (*domain.PurchaseOrder, error) {
	if !validOrderID(id) {
		return nil, domain.ErrNotFound
	}

	query := `
		SELECT id, supplier_id, status, missing_by_sku, damaged_by_sku, replaced_by_sku,
			created_at, confirmed_at, shipped_at, received_at, completed_at, updated_at
		FROM purchase_orders
		WHERE id = $1
	`

	var row orderRow
	if err := r.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get purchase order %s: %w", id, err)
	}

	order, err := row.toDomain()
	if err != nil {
		return nil, err
	}

	itemsQuery := `
		SELECT sku, ordered_quantity, unit_price, received_quantity
		FROM purchase_order_items
		WHERE order_id = $1
		ORDER BY line_no ASC
	`
	if err := r.db.SelectContext(ctx, &order.LineItems, itemsQuery, id); err != nil {
		return nil, fmt.Errorf("failed to get items for purchase order %s: %w", id, err)
	}

	return order, nil
}

func (r *poRepository) SaveOrder(ctx context.Context, order *domain.PurchaseOrder) error {
	if !validOrderID(order.ID) {
		return domain.ErrNotFound
	}
	missing, err := encodeBucket(order.MissingBySku)
	if err != nil {
		return err
	}
	damaged, err := encodeBucket(order.DamagedBySku)
	if err != nil {
		return err
	}
	replaced, err := encodeBucket(order.ReplacedBySku)
	if err != nil {
		return err
	}

	return r.db.WithTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			UPDATE purchase_orders SET
				status = $2,
				missing_by_sku = $3,
				damaged_by_sku = $4,
				replaced_by_sku = $5,
				confirmed_at = $6,
				shipped_at = $7,
				received_at = $8,
				completed_at = $9,
				updated_at = NOW()
			WHERE id = $1
		`
		res, err := tx.ExecContext(ctx, query,
			order.ID,
			string(order.Status),
			missing,
			damaged,
			replaced,
			order.ConfirmedAt,
			order.ShippedAt,
			order.ReceivedAt,
			order.CompletedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to update purchase order %s: %w", order.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil && n == 0 {
			return domain.ErrNotFound
		}

		return r.replaceItems(ctx, tx, order)
	})
}

func (r *poRepository) replaceItems(ctx context.Context, tx *sqlx.Tx, order *domain.PurchaseOrder) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM purchase_order_items WHERE order_id = $1`, order.ID); err != nil {
		return fmt.Errorf("failed to clear items for purchase order %s: %w", order.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO purchase_order_items (order_id, line_no, sku, ordered_quantity, unit_price, received_quantity)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for i, item := range order.LineItems {
		if _, err := stmt.ExecContext(ctx,
			order.ID,
			i+1,
			item.SKU,
			item.OrderedQuantity,
			item.UnitPrice,
			item.ReceivedQuantity,
		); err != nil {
			return fmt.Errorf("failed to insert item %s: %w", item.SKU, err)
		}
	}

	return nil
}

// validOrderID reports whether id can match a purchase_orders key at all.
func validOrderID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func (row orderRow) toDomain() (*domain.PurchaseOrder, error) {
	status, ok := domain.ParseOrderStatus(row.Status)
	if !ok {
		return nil, fmt.Errorf("purchase order %s has unknown status %q", row.ID, row.Status)
	}

	order := &domain.PurchaseOrder{
		ID:          row.ID,
		SupplierID:  row.SupplierID,
		Status:      status,
		CreatedAt:   row.CreatedAt,
		ConfirmedAt: nullTime(row.ConfirmedAt),
		ShippedAt:   nullTime(row.ShippedAt),
		ReceivedAt:  nullTime(row.ReceivedAt),
		CompletedAt: nullTime(row.CompletedAt),
		UpdatedAt:   row.UpdatedAt,
	}

	var err error
	if order.MissingBySku, err = decodeBucket(row.MissingBySku); err != nil {
		return nil, err
	}
	if order.DamagedBySku, err = decodeBucket(row.DamagedBySku); err != nil {
		return nil, err
	}
	if order.ReplacedBySku, err = decodeBucket(row.ReplacedBySku); err != nil {
		return nil, err
	}

	return order, nil
}

// encodeBucket keeps nil distinct from an empty map: nil means "not recorded".
func encodeBucket(m map[string]int) (interface{}, error) {
	if m == nil {
		return nil, nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode reconciliation bucket: %w", err)
	}
	return string(b), nil
}

func decodeBucket(b []byte) (map[string]int, error) {
	if len(b) == 0 {
		return nil, nil
	}
	m := map[string]int{}
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decode reconciliation bucket: %w", err)
	}
	return m, nil
}

func nullTime(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}
