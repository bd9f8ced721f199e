package inventorysync

import (
	"math"

	"github.com/andresuchdata/stockrecon/internal/domain"
)

// Item outcome statuses reported by the platform.
const (
	ItemProcessed = "processed"
	ItemError     = "error"
	ItemSkipped   = "skipped"
)

// Result is the per-call outcome of an inventory push.
type Result struct {
	ProcessedCount int          `json:"processed"`
	ErrorCount     int          `json:"errors"`
	SkippedCount   int          `json:"skipped"`
	Items          []ItemResult `json:"results,omitempty"`
}

// ItemResult is the platform's verdict for one SKU. Skipped items are those
// whose inventory is not tracked on the platform.
type ItemResult struct {
	SKU     string `json:"sku"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type updateRequest struct {
	TenantID string                   `json:"tenantId"`
	Updates  []domain.StockSyncRecord `json:"updates"`
}

// NewRecord builds a sync record, flooring fractional targets and degrading
// negative or non-numeric input to 0.
func NewRecord(sku string, target float64) domain.StockSyncRecord {
	return domain.StockSyncRecord{SKU: sku, TargetStockOnHand: floorTarget(target)}
}

func floorTarget(v float64) int {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0
	}
	return int(math.Floor(v))
}
