package lifecycle

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/andresuchdata/stockrecon/internal/cache"
	"github.com/andresuchdata/stockrecon/internal/config"
	"github.com/andresuchdata/stockrecon/internal/domain"
	"github.com/andresuchdata/stockrecon/internal/inventorysync"
	"github.com/andresuchdata/stockrecon/internal/reconcile"
	"github.com/andresuchdata/stockrecon/internal/repository/memory"
	"github.com/andresuchdata/stockrecon/internal/resolver"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSyncer struct {
	mu    sync.Mutex
	calls [][]domain.StockSyncRecord
	err   error
}

func (r *recordingSyncer) PushInventory(ctx context.Context, tenantID string, records []domain.StockSyncRecord) (*inventorysync.Result, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, records)
	if r.err != nil {
		return nil, r.err
	}
	return &inventorysync.Result{ProcessedCount: len(records)}, nil
}

// failingReceipt refuses every receipt before touching stock.
type failingReceipt struct {
	StockHooks
	err error
}

func (f failingReceipt) OnReceived(ctx context.Context, order *domain.PurchaseOrder) (*reconcile.Report, error) {
	return nil, f.err
}

// failingSave loses every order write.
type failingSave struct {
	*memory.OrderRepository
	err error
}

func (f failingSave) SaveOrder(ctx context.Context, order *domain.PurchaseOrder) error {
	return f.err
}

type fixture struct {
	svc    *Service
	stock  *memory.StockRepository
	orders *memory.OrderRepository
	syncer *recordingSyncer
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	stock := memory.NewStockRepository(
		domain.Product{SKU: "TSHIRT-RED", StockOnHand: 10},
		domain.Product{SKU: "MUG-01", StockOnHand: 4},
	)
	orders := memory.NewOrderRepository()
	syncer := &recordingSyncer{}
	orch := reconcile.NewOrchestrator(resolver.New(stock), stock, syncer, reconcile.Options{TenantID: "t-1"})

	return &fixture{
		svc:    NewService(orders, cache.NewLocalOrderLocker(50*time.Millisecond), orch),
		stock:  stock,
		orders: orders,
		syncer: syncer,
	}
}

func (f *fixture) inTransit(t *testing.T) *domain.PurchaseOrder {
	t.Helper()
	ctx := context.Background()

	order, err := f.svc.Create(ctx, CreateOrderInput{
		SupplierID: "sup-1",
		LineItems: []LineInput{
			{SKU: "tshirt-red", OrderedQuantity: 20, UnitPrice: decimal.RequireFromString("4.50")},
			{SKU: "MUG-01", OrderedQuantity: 6, UnitPrice: decimal.RequireFromString("2.25")},
		},
	})
	require.NoError(t, err)
	require.Equal(t, domain.StatusPendingConfirmation, order.Status)

	_, err = f.svc.Confirm(ctx, order.ID)
	require.NoError(t, err)
	order, err = f.svc.Ship(ctx, order.ID)
	require.NoError(t, err)
	require.Equal(t, domain.StatusInTransit, order.Status)
	return order
}

func TestCreate_Validates(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Create(context.Background(), CreateOrderInput{SupplierID: "sup-1"})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.svc.Create(context.Background(), CreateOrderInput{
		SupplierID: "sup-1",
		LineItems:  []LineInput{{SKU: "A", OrderedQuantity: 1}, {SKU: "a", OrderedQuantity: 2}},
	})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	order, err := f.svc.Create(context.Background(), CreateOrderInput{
		SupplierID: "sup-1",
		LineItems:  []LineInput{{SKU: "A", OrderedQuantity: 3, UnitPrice: decimal.RequireFromString("1.10")}},
	})
	require.NoError(t, err)
	assert.Equal(t, "3.3", order.Total().String())
}

func TestTransitions_RejectWrongState(t *testing.T) {
	f := newFixture(t)
	order := f.inTransit(t)

	_, err := f.svc.Confirm(context.Background(), order.ID)
	var te *domain.TransitionError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, domain.StatusInTransit, te.From)

	_, err = f.svc.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReceive_FullReceiptCompletesDirectly(t *testing.T) {
	f := newFixture(t)
	order := f.inTransit(t)

	order, report, err := f.svc.Receive(context.Background(), order.ID, nil)
	require.NoError(t, err)

	assert.Equal(t, domain.StatusCompleted, order.Status)
	assert.NotNil(t, order.CompletedAt)
	assert.Len(t, report.Applied, 2)
	assert.Equal(t, 30, f.stock.Stock("TSHIRT-RED"))
	assert.Equal(t, 10, f.stock.Stock("MUG-01"))

	_, _, err = f.svc.CompleteReconciliation(context.Background(), order.ID)
	assert.ErrorIs(t, err, domain.ErrOrderCompleted)
}

func TestCompleteReconciliation_RequiresDiscrepancyData(t *testing.T) {
	f := newFixture(t)
	order := f.inTransit(t)

	order, _, err := f.svc.Receive(context.Background(), order.ID, map[string]int{"TSHIRT-RED": 15})
	require.NoError(t, err)
	require.Equal(t, domain.StatusReconciliation, order.Status)

	_, _, err = f.svc.CompleteReconciliation(context.Background(), order.ID)
	assert.ErrorIs(t, err, domain.ErrReconciliationDataMissing)

	stored, err := f.svc.Get(context.Background(), order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReconciliation, stored.Status)
}

func TestRecordDiscrepancy_EnforcesConsistency(t *testing.T) {
	f := newFixture(t)
	order := f.inTransit(t)

	_, _, err := f.svc.Receive(context.Background(), order.ID, map[string]int{"TSHIRT-RED": 15})
	require.NoError(t, err)

	_, err = f.svc.RecordDiscrepancy(context.Background(), order.ID, map[string]int{"TSHIRT-RED": 3}, nil)
	var cv *domain.ConsistencyViolation
	require.ErrorAs(t, err, &cv)
	assert.Equal(t, 20, cv.Ordered)
	assert.Equal(t, 15, cv.Received)

	_, err = f.svc.RecordDiscrepancy(context.Background(), order.ID, map[string]int{"UNKNOWN": 1}, nil)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestReconciliation_ReplacementZeroesBucketsAndSyncsOnce(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.inTransit(t)

	order, _, err := f.svc.Receive(ctx, order.ID, map[string]int{"TSHIRT-RED": 15})
	require.NoError(t, err)
	line, _ := order.Line("TSHIRT-RED")
	assert.Equal(t, 15, *line.ReceivedQuantity)
	assert.Equal(t, 25, f.stock.Stock("TSHIRT-RED"))

	order, err = f.svc.RecordDiscrepancy(ctx, order.ID, map[string]int{"tshirt-red": 3}, map[string]int{"TSHIRT-RED": 2})
	require.NoError(t, err)
	assert.Equal(t, 5, order.Outstanding("TSHIRT-RED"))

	_, err = f.svc.ReceiveReplacement(ctx, order.ID, "TSHIRT-RED", 6)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, 25, f.stock.Stock("TSHIRT-RED"))

	order, err = f.svc.ReceiveReplacement(ctx, order.ID, "TSHIRT-RED", 5)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"tshirt-red": 0}, order.MissingBySku)
	assert.Equal(t, map[string]int{"tshirt-red": 0}, order.DamagedBySku)
	assert.Equal(t, 30, f.stock.Stock("TSHIRT-RED"))

	_, err = f.svc.ReceiveReplacement(ctx, order.ID, "TSHIRT-RED", 1)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Equal(t, 30, f.stock.Stock("TSHIRT-RED"))

	order, report, err := f.svc.CompleteReconciliation(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, order.Status)
	assert.Equal(t, 1, report.Processed)

	require.Len(t, f.syncer.calls, 1)
	assert.Equal(t, []domain.StockSyncRecord{{SKU: "TSHIRT-RED", TargetStockOnHand: 30}}, f.syncer.calls[0])
}

func TestReceiveReplacement_DrainsMissingBeforeDamaged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.inTransit(t)

	_, _, err := f.svc.Receive(ctx, order.ID, map[string]int{"TSHIRT-RED": 15})
	require.NoError(t, err)
	_, err = f.svc.RecordDiscrepancy(ctx, order.ID, map[string]int{"TSHIRT-RED": 3}, map[string]int{"TSHIRT-RED": 2})
	require.NoError(t, err)

	order, err = f.svc.ReceiveReplacement(ctx, order.ID, "tshirt-red", 4)
	require.NoError(t, err)
	assert.Equal(t, 0, order.Missing("TSHIRT-RED"))
	assert.Equal(t, 1, order.Damaged("TSHIRT-RED"))
	assert.Equal(t, 4, order.Replaced("TSHIRT-RED"))
}

func TestCompleteReconciliation_SyncFailureKeepsCompletion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.inTransit(t)

	_, _, err := f.svc.Receive(ctx, order.ID, map[string]int{"MUG-01": 5})
	require.NoError(t, err)
	_, err = f.svc.RecordDiscrepancy(ctx, order.ID, map[string]int{"MUG-01": 1}, nil)
	require.NoError(t, err)

	f.syncer.err = &domain.SyncFailure{StatusCode: 502, Body: "bad gateway"}
	order, _, err = f.svc.CompleteReconciliation(ctx, order.ID)

	var failure *domain.SyncFailure
	require.ErrorAs(t, err, &failure)
	require.NotNil(t, order)
	assert.Equal(t, domain.StatusCompleted, order.Status)
	assert.Equal(t, 9, f.stock.Stock("MUG-01"))

	stored, err := f.svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusCompleted, stored.Status)
}

func TestTransitions_BusyOrder(t *testing.T) {
	f := newFixture(t)
	order := f.inTransit(t)

	locker := f.svc.locker
	unlock, err := locker.Lock(context.Background(), order.ID)
	require.NoError(t, err)
	defer unlock()

	_, _, err = f.svc.Receive(context.Background(), order.ID, nil)
	assert.ErrorIs(t, err, domain.ErrOrderBusy)
}

func TestLifecycle_DefaultConfigPushesEachAffectedSkuOnce(t *testing.T) {
	cfg := config.Read(viper.New())

	stock := memory.NewStockRepository(
		domain.Product{SKU: "TSHIRT-RED", StockOnHand: 10},
		domain.Product{SKU: "MUG-01", StockOnHand: 4},
	)
	syncer := &recordingSyncer{}
	orch := reconcile.NewOrchestrator(
		resolver.New(stock, resolver.WithMaxParallel(cfg.Reconcile.ResolverMaxParallel)),
		stock,
		syncer,
		reconcile.Options{TenantID: "t-1", SyncTimeout: cfg.Sync.Timeout()},
	)
	f := &fixture{
		svc:    NewService(memory.NewOrderRepository(), cache.NewLocalOrderLocker(cfg.Reconcile.LockTTL()), orch),
		stock:  stock,
		syncer: syncer,
	}
	ctx := context.Background()
	order := f.inTransit(t)

	_, _, err := f.svc.Receive(ctx, order.ID, map[string]int{"TSHIRT-RED": 15})
	require.NoError(t, err)
	assert.Empty(t, syncer.calls, "receipt does not push")

	_, err = f.svc.RecordDiscrepancy(ctx, order.ID, map[string]int{"TSHIRT-RED": 5}, nil)
	require.NoError(t, err)
	_, _, err = f.svc.CompleteReconciliation(ctx, order.ID)
	require.NoError(t, err)

	require.Len(t, syncer.calls, 1)
	assert.Equal(t, []domain.StockSyncRecord{{SKU: "TSHIRT-RED", TargetStockOnHand: 25}}, syncer.calls[0])
}

func TestReceive_FailedStockHookLeavesOrderInTransit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.inTransit(t)

	broken := NewService(f.orders, f.svc.locker, failingReceipt{StockHooks: f.svc.hooks, err: context.Canceled})
	_, _, err := broken.Receive(ctx, order.ID, map[string]int{"TSHIRT-RED": 15})
	require.ErrorIs(t, err, context.Canceled)

	stored, err := f.svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInTransit, stored.Status)
	assert.Nil(t, stored.ReceivedAt)
	assert.Equal(t, 10, f.stock.Stock("TSHIRT-RED"))

	order, _, err = f.svc.Receive(ctx, order.ID, map[string]int{"TSHIRT-RED": 15})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReconciliation, order.Status)
	assert.NotNil(t, order.ReceivedAt)
	assert.Equal(t, 25, f.stock.Stock("TSHIRT-RED"))
}

func TestCompleteReconciliation_RejectsInconsistentOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	received := 15
	require.NoError(t, f.orders.CreateOrder(ctx, &domain.PurchaseOrder{
		ID:         "po-inconsistent",
		SupplierID: "sup-1",
		Status:     domain.StatusReconciliation,
		LineItems: []domain.OrderLineItem{
			{SKU: "TSHIRT-RED", OrderedQuantity: 20, UnitPrice: decimal.RequireFromString("4.50"), ReceivedQuantity: &received},
		},
		MissingBySku: map[string]int{"TSHIRT-RED": 3},
		DamagedBySku: map[string]int{},
	}))

	order, report, err := f.svc.CompleteReconciliation(ctx, "po-inconsistent")
	var cv *domain.ConsistencyViolation
	require.ErrorAs(t, err, &cv)
	assert.Nil(t, order)
	assert.Nil(t, report)
	assert.Empty(t, f.syncer.calls)

	stored, err := f.svc.Get(ctx, "po-inconsistent")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusReconciliation, stored.Status)
}

func TestReceiveReplacement_SaveFailureLogsAppliedStock(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	order := f.inTransit(t)

	_, _, err := f.svc.Receive(ctx, order.ID, map[string]int{"TSHIRT-RED": 15})
	require.NoError(t, err)
	_, err = f.svc.RecordDiscrepancy(ctx, order.ID, map[string]int{"TSHIRT-RED": 5}, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	saveErr := errors.New("connection reset")
	broken := NewService(failingSave{OrderRepository: f.orders, err: saveErr}, f.svc.locker, f.svc.hooks)
	_, err = broken.ReceiveReplacement(ctx, order.ID, "TSHIRT-RED", 2)
	require.ErrorIs(t, err, saveErr)

	assert.Equal(t, 27, f.stock.Stock("TSHIRT-RED"))
	assert.Contains(t, buf.String(), `"level":"error"`)
	assert.Contains(t, buf.String(), "replacement stock applied but order not saved")
	assert.Contains(t, buf.String(), `"delta":2`)
	assert.Contains(t, buf.String(), `"stock_on_hand":27`)

	stored, err := f.svc.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Missing("TSHIRT-RED"))
	assert.Zero(t, stored.Replaced("TSHIRT-RED"))
}
