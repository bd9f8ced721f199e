package reorder

import (
	"math"
	"testing"

	"github.com/andresuchdata/stockrecon/internal/domain"
	"github.com/stretchr/testify/assert"
)

func intPtr(v int) *int { return &v }

func TestRound_CorrectsFloatingPointDrift(t *testing.T) {
	cases := []struct {
		in       float64
		decimals int
		expected float64
	}{
		{85.80000000000001, 0, 86},
		{46.80000000000001, 0, 47},
		{10.456, 2, 10.46},
		{1.005, 2, 1.01},
		{2.45, 1, 2.5},
		{-2.5, 0, -3},
		{math.NaN(), 2, 0},
		{math.Inf(1), 0, 0},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.expected, Round(tc.in, tc.decimals), "Round(%v, %d)", tc.in, tc.decimals)
	}
}

func TestSafetyStock(t *testing.T) {
	assert.Equal(t, 6, SafetyStock(domain.Product{LeadTimeDays: 30}))
	assert.Equal(t, 1, SafetyStock(domain.Product{LeadTimeDays: 2}))
	assert.Equal(t, 1, SafetyStock(domain.Product{LeadTimeDays: 0}))
	assert.Equal(t, 15, SafetyStock(domain.Product{LeadTimeDays: 30, CustomSafetyStock: intPtr(15)}))
	assert.Equal(t, 6, SafetyStock(domain.Product{LeadTimeDays: 30, CustomSafetyStock: intPtr(0)}))
}

func TestReorderPoint_NoSales(t *testing.T) {
	assert.Equal(t, 12, ReorderPoint(domain.Product{LeadTimeDays: 10, MinimumOrderQuantity: 12}))
	assert.Equal(t, 1, ReorderPoint(domain.Product{LeadTimeDays: 10, MinimumOrderQuantity: 0}))
	assert.Equal(t, 1, ReorderPoint(domain.Product{LeadTimeDays: 10, MinimumOrderQuantity: 1, SalesPerDay: math.NaN()}))
}

func TestScenario_MOQFifty(t *testing.T) {
	p := domain.Product{
		SKU:                  "SKU-1",
		StockOnHand:          10,
		SalesPerDay:          2,
		LeadTimeDays:         30,
		MinimumOrderQuantity: 50,
	}

	m := Calculate(p)
	assert.Equal(t, 6, m.SafetyStock)
	assert.Equal(t, 72, m.ReorderPoint)
	// raw = 72 - 10 + 6*2 = 74, rounded up to the next multiple of 50
	assert.Equal(t, 100, m.QuantityToOrder)
	assert.Equal(t, 5.0, m.DaysOfStock)
}

func TestQuantityToOrder_ClampsToMaximumStock(t *testing.T) {
	p := domain.Product{
		StockOnHand:          10,
		SalesPerDay:          2,
		LeadTimeDays:         30,
		MinimumOrderQuantity: 50,
		MaximumStock:         intPtr(80),
	}
	// 10 + 100 > 80 -> clamp to 70, round down to 50
	assert.Equal(t, 50, QuantityToOrder(p))

	p.MaximumStock = intPtr(40)
	// 40 - 10 = 30 rounds down to 0
	assert.Equal(t, 0, QuantityToOrder(p))
}

func TestQuantityToOrder_AboveReorderPointIsZero(t *testing.T) {
	p := domain.Product{SalesPerDay: 3.7, LeadTimeDays: 14, MinimumOrderQuantity: 6}
	p.StockOnHand = ReorderPoint(p) + 1
	assert.Equal(t, 0, QuantityToOrder(p))
}

func TestQuantityToOrder_MultipleOfMOQ(t *testing.T) {
	for moq := 1; moq <= 60; moq += 7 {
		for _, spd := range []float64{0.1, 0.5, 1.3, 2, 4.29, 17.8} {
			for _, lead := range []int{1, 5, 14, 30, 45} {
				for stock := 0; stock <= 200; stock += 23 {
					for _, maxStock := range []*int{nil, intPtr(150), intPtr(500)} {
						p := domain.Product{
							StockOnHand:          stock,
							SalesPerDay:          spd,
							LeadTimeDays:         lead,
							MinimumOrderQuantity: moq,
							MaximumStock:         maxStock,
						}
						q := QuantityToOrder(p)
						if q < 0 || q%moq != 0 {
							t.Fatalf("QuantityToOrder(%+v) = %d, want 0 or a multiple of %d", p, q, moq)
						}
						if maxStock != nil && q > 0 && stock+q > *maxStock {
							t.Fatalf("QuantityToOrder(%+v) = %d exceeds maximum stock %d", p, q, *maxStock)
						}
					}
				}
			}
		}
	}
}

func TestDaysOfStock(t *testing.T) {
	assert.Equal(t, InfiniteDaysOfStock, DaysOfStock(domain.Product{StockOnHand: 10}))
	assert.Equal(t, 3.3, DaysOfStock(domain.Product{StockOnHand: 10, SalesPerDay: 3}))
	assert.Equal(t, 0.0, DaysOfStock(domain.Product{StockOnHand: -4, SalesPerDay: 3}))
}
