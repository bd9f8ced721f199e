// internal/domain/models.go
package domain

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product is the authoritative local stock record for a SKU together with
// its planning parameters.
type Product struct {
	SKU                  string    `json:"sku" db:"sku" validate:"required"`
	Name                 string    `json:"name" db:"name"`
	StockOnHand          int       `json:"stock_on_hand" db:"stock_on_hand" validate:"gte=0"`
	SalesPerDay          float64   `json:"sales_per_day" db:"sales_per_day" validate:"gte=0"`
	LeadTimeDays         int       `json:"lead_time_days" db:"lead_time_days" validate:"gt=0"`
	MinimumOrderQuantity int       `json:"minimum_order_quantity" db:"minimum_order_quantity" validate:"gte=1"`
	MaximumStock         *int      `json:"maximum_stock,omitempty" db:"maximum_stock" validate:"omitempty,gte=0"`
	CustomSafetyStock    *int      `json:"custom_safety_stock,omitempty" db:"custom_safety_stock" validate:"omitempty,gte=0"`
	UpdatedAt            time.Time `json:"updated_at" db:"updated_at"`
}

// StockRecord is the subset of a product row the resolver binds SKUs to.
type StockRecord struct {
	SKU         string `json:"sku" db:"sku"`
	StockOnHand int    `json:"stock_on_hand" db:"stock_on_hand"`
}

// PlanningParams carries a planning-flow edit of a product. Nil fields are
// left untouched.
type PlanningParams struct {
	SalesPerDay          *float64 `json:"sales_per_day" validate:"omitempty,gte=0"`
	LeadTimeDays         *int     `json:"lead_time_days" validate:"omitempty,gt=0"`
	MinimumOrderQuantity *int     `json:"minimum_order_quantity" validate:"omitempty,gte=1"`
	MaximumStock         *int     `json:"maximum_stock" validate:"omitempty,gte=0"`
	CustomSafetyStock    *int     `json:"custom_safety_stock" validate:"omitempty,gte=0"`
}

// PurchaseOrder tracks an order from placement through reconciliation.
type PurchaseOrder struct {
	ID            string          `json:"id" db:"id"`
	SupplierID    string          `json:"supplier_id" db:"supplier_id"`
	Status        OrderStatus     `json:"status" db:"status"`
	LineItems     []OrderLineItem `json:"line_items" db:"-"`
	MissingBySku  map[string]int  `json:"missing_by_sku,omitempty" db:"-"`
	DamagedBySku  map[string]int  `json:"damaged_by_sku,omitempty" db:"-"`
	ReplacedBySku map[string]int  `json:"replaced_by_sku,omitempty" db:"-"`
	CreatedAt     time.Time       `json:"created_at" db:"created_at"`
	ConfirmedAt   *time.Time      `json:"confirmed_at,omitempty" db:"confirmed_at"`
	ShippedAt     *time.Time      `json:"shipped_at,omitempty" db:"shipped_at"`
	ReceivedAt    *time.Time      `json:"received_at,omitempty" db:"received_at"`
	CompletedAt   *time.Time      `json:"completed_at,omitempty" db:"completed_at"`
	UpdatedAt     time.Time       `json:"updated_at" db:"updated_at"`
}

// OrderLineItem is a single SKU line on a purchase order.
type OrderLineItem struct {
	SKU              string          `json:"sku" db:"sku"`
	OrderedQuantity  int             `json:"ordered_quantity" db:"ordered_quantity"`
	UnitPrice        decimal.Decimal `json:"unit_price" db:"unit_price"`
	ReceivedQuantity *int            `json:"received_quantity,omitempty" db:"received_quantity"`
}

// LineTotal returns ordered quantity times unit price, rounded to cents.
func (li OrderLineItem) LineTotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.OrderedQuantity))).Round(2)
}

// Total sums the line totals of the order.
func (o *PurchaseOrder) Total() decimal.Decimal {
	total := decimal.Zero
	for _, li := range o.LineItems {
		total = total.Add(li.LineTotal())
	}
	return total
}

// Line returns the line item for sku, matching case-insensitively.
func (o *PurchaseOrder) Line(sku string) (*OrderLineItem, bool) {
	for i := range o.LineItems {
		if strings.EqualFold(o.LineItems[i].SKU, sku) {
			return &o.LineItems[i], true
		}
	}
	return nil, false
}

// HasDiscrepancyData reports whether missing/damaged data has been captured.
func (o *PurchaseOrder) HasDiscrepancyData() bool {
	return o.MissingBySku != nil || o.DamagedBySku != nil
}

// Outstanding returns missing plus damaged units still owed for sku.
func (o *PurchaseOrder) Outstanding(sku string) int {
	return lookupFold(o.MissingBySku, sku) + lookupFold(o.DamagedBySku, sku)
}

// Missing returns the missing units recorded for sku.
func (o *PurchaseOrder) Missing(sku string) int {
	return lookupFold(o.MissingBySku, sku)
}

// Damaged returns the damaged units recorded for sku.
func (o *PurchaseOrder) Damaged(sku string) int {
	return lookupFold(o.DamagedBySku, sku)
}

// Replaced returns the replacement units received so far for sku.
func (o *PurchaseOrder) Replaced(sku string) int {
	return lookupFold(o.ReplacedBySku, sku)
}

// ReceivedFor returns the units received on li: the explicit quantity when
// one was captured, otherwise ordered - missing - damaged floored at 0.
func (o *PurchaseOrder) ReceivedFor(li OrderLineItem) int {
	if li.ReceivedQuantity != nil {
		return *li.ReceivedQuantity
	}
	received := li.OrderedQuantity - o.Missing(li.SKU) - o.Damaged(li.SKU)
	if received < 0 {
		return 0
	}
	return received
}

// FullyReceived reports whether every line received its ordered quantity.
func (o *PurchaseOrder) FullyReceived() bool {
	for _, li := range o.LineItems {
		if o.ReceivedFor(li) != li.OrderedQuantity {
			return false
		}
	}
	return true
}

// TouchedSKUs lists line SKUs with a reconciliation component: missing,
// damaged or replaced units.
func (o *PurchaseOrder) TouchedSKUs() []string {
	var skus []string
	for _, li := range o.LineItems {
		if o.Missing(li.SKU) > 0 || o.Damaged(li.SKU) > 0 || o.Replaced(li.SKU) > 0 {
			skus = append(skus, li.SKU)
		}
	}
	return skus
}

// FoldKey returns the key of m equal to sku ignoring case, or sku itself.
func FoldKey(m map[string]int, sku string) string {
	if _, ok := m[sku]; ok {
		return sku
	}
	for k := range m {
		if strings.EqualFold(k, sku) {
			return k
		}
	}
	return sku
}

// lookupFold reads m[sku] tolerating casing drift between the line item and
// the discrepancy map keys.
func lookupFold(m map[string]int, sku string) int {
	if m == nil {
		return 0
	}
	if v, ok := m[sku]; ok {
		return v
	}
	for k, v := range m {
		if strings.EqualFold(k, sku) {
			return v
		}
	}
	return 0
}

// StockSyncRecord is one entry of an outbound inventory update. Ephemeral.
type StockSyncRecord struct {
	SKU               string `json:"sku"`
	TargetStockOnHand int    `json:"stockOnHand"`
}

// ResolutionResult binds a requested SKU to the stored row it resolved to.
type ResolutionResult struct {
	SKU         string `json:"sku"`
	MatchedSKU  string `json:"matched_sku"`
	StockOnHand int    `json:"stock_on_hand"`
	Tier        string `json:"tier"`
}

// ReorderSuggestion is one row of a planning run.
type ReorderSuggestion struct {
	SKU             string  `json:"sku"`
	Name            string  `json:"name"`
	StockOnHand     int     `json:"stock_on_hand"`
	SalesPerDay     float64 `json:"sales_per_day"`
	SafetyStock     int     `json:"safety_stock"`
	ReorderPoint    int     `json:"reorder_point"`
	QuantityToOrder int     `json:"quantity_to_order"`
	DaysOfStock     float64 `json:"days_of_stock"`
}
