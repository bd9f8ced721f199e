package reorder

import "github.com/andresuchdata/stockrecon/internal/domain"

// InfiniteDaysOfStock is reported when a product does not sell, so its stock
// never runs out.
const InfiniteDaysOfStock = 9999.0

// safetyStockLeadTimeFactor is the share of lead time held as buffer when no
// custom safety stock is configured.
const safetyStockLeadTimeFactor = 0.2

// Metrics bundles every planning figure for a product.
type Metrics struct {
	SafetyStock     int
	ReorderPoint    int
	QuantityToOrder int
	DaysOfStock     float64
}

// Calculate computes all reorder metrics for p.
func Calculate(p domain.Product) Metrics {
	return Metrics{
		SafetyStock:     SafetyStock(p),
		ReorderPoint:    ReorderPoint(p),
		QuantityToOrder: QuantityToOrder(p),
		DaysOfStock:     DaysOfStock(p),
	}
}

// SafetyStock returns the custom override when positive, otherwise
// max(1, round(leadTime * 0.2)).
func SafetyStock(p domain.Product) int {
	if p.CustomSafetyStock != nil && *p.CustomSafetyStock > 0 {
		return *p.CustomSafetyStock
	}

	ss := RoundUnits(float64(leadTimeDays(p)) * safetyStockLeadTimeFactor)
	if ss < 1 {
		return 1
	}
	return ss
}

// ReorderPoint is the stock level at or below which a new order is raised.
func ReorderPoint(p domain.Product) int {
	moq := minimumOrderQuantity(p)
	spd := salesPerDay(p)
	if spd <= 0 {
		return moq
	}

	rp := RoundUnits(spd*float64(leadTimeDays(p)) + spd*float64(SafetyStock(p)))
	if rp < moq {
		return moq
	}
	return rp
}

// QuantityToOrder returns 0 or a multiple of the minimum order quantity,
// clamped so stock never exceeds MaximumStock when one is set.
func QuantityToOrder(p domain.Product) int {
	stock := stockOnHand(p)
	rp := ReorderPoint(p)
	if stock > rp {
		return 0
	}

	moq := minimumOrderQuantity(p)
	raw := RoundUnits(float64(rp-stock) + float64(SafetyStock(p))*salesPerDay(p))
	if raw <= 0 {
		return 0
	}

	rounded := ceilToMultiple(raw, moq)
	if p.MaximumStock != nil && stock+rounded > *p.MaximumStock {
		rounded = floorToMultiple(*p.MaximumStock-stock, moq)
	}

	if rounded <= 0 {
		return 0
	}
	if rounded < moq {
		rounded = moq
	}
	return rounded
}

// DaysOfStock returns how many days current stock lasts at the current sales
// rate, to one decimal.
func DaysOfStock(p domain.Product) float64 {
	spd := salesPerDay(p)
	if spd <= 0 {
		return InfiniteDaysOfStock
	}
	return RoundRate(float64(stockOnHand(p)) / spd)
}

// Input sanitizers: invalid values degrade instead of erroring.

func salesPerDay(p domain.Product) float64 {
	v := finite(p.SalesPerDay)
	if v < 0 {
		return 0
	}
	return v
}

func stockOnHand(p domain.Product) int {
	if p.StockOnHand < 0 {
		return 0
	}
	return p.StockOnHand
}

func leadTimeDays(p domain.Product) int {
	if p.LeadTimeDays < 0 {
		return 0
	}
	return p.LeadTimeDays
}

func minimumOrderQuantity(p domain.Product) int {
	if p.MinimumOrderQuantity < 1 {
		return 1
	}
	return p.MinimumOrderQuantity
}
