// Package lifecycle drives purchase orders through confirmation, shipment,
// receipt and reconciliation. Every transition runs under the order lock.
package lifecycle

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/andresuchdata/stockrecon/internal/cache"
	"github.com/andresuchdata/stockrecon/internal/domain"
	"github.com/andresuchdata/stockrecon/internal/reconcile"
	"github.com/andresuchdata/stockrecon/internal/repository"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// StockHooks is what the lifecycle asks of the reconciliation orchestrator.
type StockHooks interface {
	OnReceived(ctx context.Context, order *domain.PurchaseOrder) (*reconcile.Report, error)
	OnReplacementReceived(ctx context.Context, order *domain.PurchaseOrder, sku string, qty int) (*reconcile.StockChange, error)
	OnReconciliationCompleted(ctx context.Context, order *domain.PurchaseOrder) (*reconcile.Report, error)
}

// CreateOrderInput places a new purchase order.
type CreateOrderInput struct {
	SupplierID string      `json:"supplier_id" validate:"required"`
	LineItems  []LineInput `json:"line_items" validate:"required,min=1,dive"`
}

type LineInput struct {
	SKU             string          `json:"sku" validate:"required"`
	OrderedQuantity int             `json:"ordered_quantity" validate:"gt=0"`
	UnitPrice       decimal.Decimal `json:"unit_price"`
}

type Service struct {
	orders   repository.OrderRepository
	locker   cache.OrderLocker
	hooks    StockHooks
	validate *validator.Validate
	now      func() time.Time
}

func NewService(orders repository.OrderRepository, locker cache.OrderLocker, hooks StockHooks) *Service {
	return &Service{
		orders:   orders,
		locker:   locker,
		hooks:    hooks,
		validate: validator.New(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a new order in pending_confirmation.
func (s *Service) Create(ctx context.Context, in CreateOrderInput) (*domain.PurchaseOrder, error) {
	if err := s.validate.Struct(in); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	seen := make(map[string]bool, len(in.LineItems))
	lines := make([]domain.OrderLineItem, 0, len(in.LineItems))
	for _, li := range in.LineItems {
		sku := strings.TrimSpace(li.SKU)
		key := strings.ToLower(sku)
		if seen[key] {
			return nil, fmt.Errorf("%w: duplicate line for sku %s", domain.ErrInvalidInput, sku)
		}
		if li.UnitPrice.IsNegative() {
			return nil, fmt.Errorf("%w: negative unit price for sku %s", domain.ErrInvalidInput, sku)
		}
		seen[key] = true
		lines = append(lines, domain.OrderLineItem{
			SKU:             sku,
			OrderedQuantity: li.OrderedQuantity,
			UnitPrice:       li.UnitPrice,
		})
	}

	now := s.now()
	order := &domain.PurchaseOrder{
		ID:         uuid.NewString(),
		SupplierID: strings.TrimSpace(in.SupplierID),
		Status:     domain.StatusPendingConfirmation,
		LineItems:  lines,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.orders.CreateOrder(ctx, order); err != nil {
		return nil, fmt.Errorf("failed to create order: %w", err)
	}

	log.Info().Str("order_id", order.ID).Str("supplier_id", order.SupplierID).Int("lines", len(lines)).Msg("lifecycle: order created")
	return order, nil
}

func (s *Service) Get(ctx context.Context, orderID string) (*domain.PurchaseOrder, error) {
	return s.orders.GetOrder(ctx, orderID)
}

// Confirm moves pending_confirmation to preparing.
func (s *Service) Confirm(ctx context.Context, orderID string) (*domain.PurchaseOrder, error) {
	return s.transition(ctx, orderID, "confirm", domain.StatusPendingConfirmation, func(o *domain.PurchaseOrder) error {
		now := s.now()
		o.Status = domain.StatusPreparing
		o.ConfirmedAt = &now
		return nil
	})
}

// Ship moves preparing to in_transit.
func (s *Service) Ship(ctx context.Context, orderID string) (*domain.PurchaseOrder, error) {
	return s.transition(ctx, orderID, "ship", domain.StatusPreparing, func(o *domain.PurchaseOrder) error {
		now := s.now()
		o.Status = domain.StatusInTransit
		o.ShippedAt = &now
		return nil
	})
}

// Receive records received quantities and applies them to local stock.
// A nil map means every line arrived in full; a line absent from a non-nil
// map also counts as fully received. The order lands in completed when
// nothing is short, otherwise in reconciliation. The order is saved once,
// after stock has moved, so a failed receipt leaves it in in_transit.
func (s *Service) Receive(ctx context.Context, orderID string, received map[string]int) (*domain.PurchaseOrder, *reconcile.Report, error) {
	var report *reconcile.Report

	order, err := s.transition(ctx, orderID, "receive", domain.StatusInTransit, func(o *domain.PurchaseOrder) error {
		if err := applyReceived(o, received); err != nil {
			return err
		}

		applied, err := s.hooks.OnReceived(ctx, o)
		if err != nil {
			return err
		}
		report = applied

		now := s.now()
		o.ReceivedAt = &now
		if o.FullyReceived() {
			o.Status = domain.StatusCompleted
			o.CompletedAt = &now
		} else {
			o.Status = domain.StatusReconciliation
		}
		return nil
	})
	if err != nil {
		if report != nil {
			log.Error().Err(err).Str("order_id", orderID).Interface("applied", report.Applied).
				Msg("lifecycle: receipt stock applied but order not saved")
		}
		return nil, nil, err
	}
	return order, report, nil
}

// RecordDiscrepancy captures missing and damaged units. For every line the
// shortfall must equal missing + damaged.
func (s *Service) RecordDiscrepancy(ctx context.Context, orderID string, missing, damaged map[string]int) (*domain.PurchaseOrder, error) {
	return s.transition(ctx, orderID, "record discrepancy for", domain.StatusReconciliation, func(o *domain.PurchaseOrder) error {
		missingBySku, err := canonicalBucket(o, missing)
		if err != nil {
			return err
		}
		damagedBySku, err := canonicalBucket(o, damaged)
		if err != nil {
			return err
		}

		for _, li := range o.LineItems {
			m, d := missingBySku[li.SKU], damagedBySku[li.SKU]
			received := o.ReceivedFor(li)
			if li.OrderedQuantity != received+m+d {
				return &domain.ConsistencyViolation{
					OrderID:  o.ID,
					SKU:      li.SKU,
					Ordered:  li.OrderedQuantity,
					Received: received,
					Missing:  m,
					Damaged:  d,
				}
			}
		}

		o.MissingBySku = missingBySku
		o.DamagedBySku = damagedBySku
		return nil
	})
}

// ReceiveReplacement books a replacement delivery against the outstanding
// missing units of sku first, then its damaged units. Stock is incremented
// before the order is saved.
func (s *Service) ReceiveReplacement(ctx context.Context, orderID, sku string, qty int) (*domain.PurchaseOrder, error) {
	var change *reconcile.StockChange

	order, err := s.transition(ctx, orderID, "receive replacement for", domain.StatusReconciliation, func(o *domain.PurchaseOrder) error {
		if qty <= 0 {
			return fmt.Errorf("%w: replacement quantity must be positive", domain.ErrInvalidInput)
		}
		line, ok := o.Line(strings.TrimSpace(sku))
		if !ok {
			return fmt.Errorf("%w: sku %s is not on order %s", domain.ErrInvalidInput, sku, o.ID)
		}
		if !o.HasDiscrepancyData() {
			return domain.ErrReconciliationDataMissing
		}
		outstanding := o.Outstanding(line.SKU)
		if outstanding <= 0 {
			return fmt.Errorf("%w: sku %s has nothing outstanding", domain.ErrInvalidInput, line.SKU)
		}
		if qty > outstanding {
			return fmt.Errorf("%w: replacement of %d exceeds outstanding %d for sku %s", domain.ErrInvalidInput, qty, outstanding, line.SKU)
		}

		applied, err := s.hooks.OnReplacementReceived(ctx, o, line.SKU, qty)
		if err != nil {
			return err
		}
		change = applied

		received := o.ReceivedFor(*line) + qty
		line.ReceivedQuantity = &received

		remaining := drain(o.MissingBySku, line.SKU, qty)
		drain(o.DamagedBySku, line.SKU, remaining)

		if o.ReplacedBySku == nil {
			o.ReplacedBySku = make(map[string]int)
		}
		o.ReplacedBySku[domain.FoldKey(o.ReplacedBySku, line.SKU)] += qty
		return nil
	})
	if err != nil {
		// a retry would increment stock again; the change has to be booked by hand
		if change != nil {
			log.Error().Err(err).
				Str("order_id", orderID).
				Str("sku", change.SKU).
				Int("delta", change.Delta).
				Int("stock_on_hand", change.StockOnHand).
				Msg("lifecycle: replacement stock applied but order not saved")
		}
		return nil, err
	}
	return order, nil
}

// CompleteReconciliation closes the order and pushes the stock of every
// touched SKU. A sync failure is returned alongside the completed order;
// the completion itself stands.
func (s *Service) CompleteReconciliation(ctx context.Context, orderID string) (*domain.PurchaseOrder, *reconcile.Report, error) {
	order, err := s.transition(ctx, orderID, "complete reconciliation for", domain.StatusReconciliation, func(o *domain.PurchaseOrder) error {
		if !o.HasDiscrepancyData() {
			return domain.ErrReconciliationDataMissing
		}
		if err := checkConsistency(o); err != nil {
			return err
		}
		now := s.now()
		o.Status = domain.StatusCompleted
		o.CompletedAt = &now
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	// the lock is released; a completed order accepts no further writers
	report, err := s.hooks.OnReconciliationCompleted(ctx, order)
	return order, report, err
}

// transition loads the order under its lock, checks the source state, runs
// apply and saves the result.
func (s *Service) transition(ctx context.Context, orderID, action string, from domain.OrderStatus, apply func(*domain.PurchaseOrder) error) (*domain.PurchaseOrder, error) {
	unlock, err := s.locker.Lock(ctx, orderID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	order, err := s.orders.GetOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.Status.IsTerminal() {
		return nil, domain.ErrOrderCompleted
	}
	if order.Status != from {
		return nil, &domain.TransitionError{OrderID: orderID, Action: action, From: order.Status}
	}

	if err := apply(order); err != nil {
		return nil, err
	}

	// apply may already have moved stock, so the save outlives cancellation
	order.UpdatedAt = s.now()
	if err := s.orders.SaveOrder(context.WithoutCancel(ctx), order); err != nil {
		return nil, fmt.Errorf("failed to save order: %w", err)
	}

	log.Info().Str("order_id", order.ID).Str("action", action).Str("status", string(order.Status)).Msg("lifecycle: transition applied")
	return order, nil
}

func applyReceived(o *domain.PurchaseOrder, received map[string]int) error {
	for sku, qty := range received {
		line, ok := o.Line(strings.TrimSpace(sku))
		if !ok {
			return fmt.Errorf("%w: sku %s is not on order %s", domain.ErrInvalidInput, sku, o.ID)
		}
		if qty < 0 || qty > line.OrderedQuantity {
			return fmt.Errorf("%w: received %d for sku %s must be between 0 and %d", domain.ErrInvalidInput, qty, line.SKU, line.OrderedQuantity)
		}
	}

	for i := range o.LineItems {
		li := &o.LineItems[i]
		qty := li.OrderedQuantity
		if received != nil {
			key := domain.FoldKey(received, li.SKU)
			if v, ok := received[key]; ok {
				qty = v
			}
		}
		li.ReceivedQuantity = &qty
	}
	return nil
}

// canonicalBucket rekeys in by the order's line SKUs and drops zeros. The
// result is never nil so an all-zero capture still counts as recorded.
func canonicalBucket(o *domain.PurchaseOrder, in map[string]int) (map[string]int, error) {
	out := make(map[string]int, len(in))
	for sku, qty := range in {
		line, ok := o.Line(strings.TrimSpace(sku))
		if !ok {
			return nil, fmt.Errorf("%w: sku %s is not on order %s", domain.ErrInvalidInput, sku, o.ID)
		}
		if qty < 0 {
			return nil, fmt.Errorf("%w: negative quantity for sku %s", domain.ErrInvalidInput, line.SKU)
		}
		if qty > 0 {
			out[line.SKU] += qty
		}
	}
	return out, nil
}

func checkConsistency(o *domain.PurchaseOrder) error {
	for _, li := range o.LineItems {
		received := o.ReceivedFor(li)
		m, d := o.Missing(li.SKU), o.Damaged(li.SKU)
		if li.OrderedQuantity != received+m+d {
			return &domain.ConsistencyViolation{
				OrderID:  o.ID,
				SKU:      li.SKU,
				Ordered:  li.OrderedQuantity,
				Received: received,
				Missing:  m,
				Damaged:  d,
			}
		}
	}
	return nil
}

// drain takes up to qty from bucket[sku] and returns what is left of qty.
func drain(bucket map[string]int, sku string, qty int) int {
	if bucket == nil || qty <= 0 {
		return qty
	}
	key := domain.FoldKey(bucket, sku)
	have := bucket[key]
	take := min(have, qty)
	bucket[key] = have - take
	return qty - take
}
