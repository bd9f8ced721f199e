// Package reconcile applies purchase order receipts to local stock and
// pushes the resulting stock of affected SKUs to the commerce platform.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/andresuchdata/stockrecon/internal/domain"
	"github.com/andresuchdata/stockrecon/internal/inventorysync"
	"github.com/andresuchdata/stockrecon/internal/repository"
	"github.com/andresuchdata/stockrecon/internal/resolver"
	"github.com/rs/zerolog/log"
)

// Syncer pushes absolute stock targets to the external platform.
type Syncer interface {
	PushInventory(ctx context.Context, tenantID string, records []domain.StockSyncRecord) (*inventorysync.Result, error)
}

// Resolver binds requested SKUs to stored rows.
type Resolver interface {
	Resolve(ctx context.Context, skus []string) (*resolver.Resolution, error)
}

type Options struct {
	TenantID string
	// SyncTimeout bounds one platform call. Zero leaves ctx untouched.
	SyncTimeout time.Duration
}

// Orchestrator is the only writer of stock for order events. Local
// increments are authoritative and are never rolled back when a push fails.
type Orchestrator struct {
	resolver Resolver
	stock    repository.StockRepository
	sync     Syncer
	opts     Options
}

func NewOrchestrator(res Resolver, stock repository.StockRepository, syncer Syncer, opts Options) *Orchestrator {
	return &Orchestrator{
		resolver: res,
		stock:    stock,
		sync:     syncer,
		opts:     opts,
	}
}

// OnReceived increments local stock by each line's received quantity.
// Nothing is pushed here; the platform only sees SKUs touched by
// reconciliation. SKUs that cannot be resolved or updated are logged and
// skipped, and a context cancelled before the first increment is the only
// error returned.
func (o *Orchestrator) OnReceived(ctx context.Context, order *domain.PurchaseOrder) (*Report, error) {
	quantities := make(map[string]int, len(order.LineItems))
	skus := make([]string, 0, len(order.LineItems))
	for _, li := range order.LineItems {
		qty := order.ReceivedFor(li)
		if qty <= 0 {
			continue
		}
		if _, ok := quantities[li.SKU]; !ok {
			skus = append(skus, li.SKU)
		}
		quantities[li.SKU] += qty
	}

	report := &Report{}
	if len(skus) == 0 {
		return report, nil
	}

	resolution, err := o.resolver.Resolve(ctx, skus)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// once the first increment lands the rest must follow, or a retried
	// receipt would count the applied lines twice
	writeCtx := context.WithoutCancel(ctx)
	for _, sku := range skus {
		res, err := resolution.Lookup(sku)
		if err != nil {
			report.unresolved(order.ID, sku, err)
			continue
		}

		updated, err := o.stock.IncrementStock(writeCtx, res.MatchedSKU, quantities[sku])
		if err != nil {
			report.failed(order.ID, sku, err)
			continue
		}
		report.Applied = append(report.Applied, StockChange{SKU: updated.SKU, Delta: quantities[sku], StockOnHand: updated.StockOnHand})
	}

	log.Info().
		Str("order_id", order.ID).
		Int("applied", len(report.Applied)).
		Int("unresolved", len(report.Unresolved)).
		Msg("reconcile: receipt applied to local stock")

	return report, nil
}

// OnReplacementReceived increments local stock for a replacement delivery.
// Unlike receipts it fails as a whole, so the caller can leave the order
// untouched.
func (o *Orchestrator) OnReplacementReceived(ctx context.Context, order *domain.PurchaseOrder, sku string, qty int) (*StockChange, error) {
	resolution, err := o.resolver.Resolve(ctx, []string{sku})
	if err != nil {
		return nil, err
	}
	res, err := resolution.Lookup(sku)
	if err != nil {
		return nil, err
	}

	updated, err := o.stock.IncrementStock(ctx, res.MatchedSKU, qty)
	if err != nil {
		return nil, fmt.Errorf("increment stock for %s: %w", res.MatchedSKU, err)
	}

	log.Info().
		Str("order_id", order.ID).
		Str("sku", updated.SKU).
		Int("quantity", qty).
		Int("stock_on_hand", updated.StockOnHand).
		Msg("reconcile: replacement applied to local stock")

	return &StockChange{SKU: updated.SKU, Delta: qty, StockOnHand: updated.StockOnHand}, nil
}

// OnReconciliationCompleted pushes the already-updated stock of every SKU
// the reconciliation touched. Untouched SKUs are never pushed.
func (o *Orchestrator) OnReconciliationCompleted(ctx context.Context, order *domain.PurchaseOrder) (*Report, error) {
	skus := order.TouchedSKUs()
	if len(skus) == 0 {
		log.Info().Str("order_id", order.ID).Msg("reconcile: nothing to sync")
		return &Report{}, nil
	}
	return o.Resync(ctx, order.ID, skus)
}

// Resync resolves skus, reads their current local stock and pushes it in a
// single batch. ref tags log lines (an order id or an operator label).
func (o *Orchestrator) Resync(ctx context.Context, ref string, skus []string) (*Report, error) {
	report := &Report{}

	resolution, err := o.resolver.Resolve(ctx, skus)
	if err != nil {
		return nil, err
	}
	for _, f := range resolution.FailureList() {
		report.unresolved(ref, f.SKU, f)
	}

	// resolution reads stock after the increments, so targets are final
	rows := resolution.Records()
	records := make([]domain.StockSyncRecord, 0, len(rows))
	for _, row := range rows {
		records = append(records, inventorysync.NewRecord(row.MatchedSKU, float64(row.StockOnHand)))
	}
	if len(records) == 0 {
		return report, nil
	}

	if err := o.push(ctx, ref, records, report); err != nil {
		return report, err
	}
	return report, nil
}

func (o *Orchestrator) push(ctx context.Context, ref string, records []domain.StockSyncRecord, report *Report) error {
	if o.opts.SyncTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.opts.SyncTimeout)
		defer cancel()
	}

	report.Pushed = len(records)
	result, err := o.sync.PushInventory(ctx, o.opts.TenantID, records)
	if err != nil {
		var failure *domain.SyncFailure
		if errors.As(err, &failure) {
			report.Processed = failure.Processed
			report.Errors = failure.Errors
			report.Skipped = failure.Skipped
		}
		log.Error().
			Err(err).
			Str("ref", ref).
			Int("records", len(records)).
			Msg("reconcile: inventory sync failed; local stock kept")
		return err
	}

	report.Processed = result.ProcessedCount
	report.Errors = result.ErrorCount
	report.Skipped = result.SkippedCount
	report.Items = result.Items

	for _, item := range result.Items {
		if item.Status == inventorysync.ItemError {
			log.Warn().Str("ref", ref).Str("sku", item.SKU).Str("message", item.Message).Msg("reconcile: platform rejected sku")
		}
	}
	return nil
}
