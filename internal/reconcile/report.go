package reconcile

import (
	"github.com/andresuchdata/stockrecon/internal/inventorysync"
	"github.com/rs/zerolog/log"
)

// StockChange is one local stock increment.
type StockChange struct {
	SKU         string `json:"sku"`
	Delta       int    `json:"delta"`
	StockOnHand int    `json:"stock_on_hand"`
}

// Report summarizes one orchestrator run.
type Report struct {
	Applied    []StockChange              `json:"applied,omitempty"`
	Unresolved []string                   `json:"unresolved,omitempty"`
	Failed     []string                   `json:"failed,omitempty"`
	Pushed     int                        `json:"pushed"`
	Processed  int                        `json:"processed"`
	Errors     int                        `json:"errors"`
	Skipped    int                        `json:"skipped"`
	Items      []inventorysync.ItemResult `json:"items,omitempty"`
}

func (r *Report) unresolved(ref, sku string, err error) {
	log.Warn().Err(err).Str("ref", ref).Str("sku", sku).Msg("reconcile: sku unresolved; excluded")
	r.Unresolved = append(r.Unresolved, sku)
}

func (r *Report) failed(ref, sku string, err error) {
	log.Error().Err(err).Str("ref", ref).Str("sku", sku).Msg("reconcile: stock update failed")
	r.Failed = append(r.Failed, sku)
}
