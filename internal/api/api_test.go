package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/andresuchdata/stockrecon/internal/cache"
	"github.com/andresuchdata/stockrecon/internal/domain"
	"github.com/andresuchdata/stockrecon/internal/inventorysync"
	"github.com/andresuchdata/stockrecon/internal/lifecycle"
	"github.com/andresuchdata/stockrecon/internal/reconcile"
	"github.com/andresuchdata/stockrecon/internal/repository/memory"
	"github.com/andresuchdata/stockrecon/internal/resolver"
	"github.com/andresuchdata/stockrecon/internal/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type okSyncer struct{}

func (okSyncer) PushInventory(ctx context.Context, tenantID string, records []domain.StockSyncRecord) (*inventorysync.Result, error) {
	return &inventorysync.Result{ProcessedCount: len(records)}, nil
}

func newTestRouter(t *testing.T) (*gin.Engine, *memory.StockRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	stock := memory.NewStockRepository(
		domain.Product{SKU: "TSHIRT-RED", StockOnHand: 10, SalesPerDay: 2, LeadTimeDays: 30, MinimumOrderQuantity: 50},
	)
	orch := reconcile.NewOrchestrator(resolver.New(stock), stock, okSyncer{}, reconcile.Options{TenantID: "t-1"})

	services := &Services{
		Lifecycle: lifecycle.NewService(memory.NewOrderRepository(), cache.NewLocalOrderLocker(50*time.Millisecond), orch),
		Planning:  service.NewPlanningService(stock),
	}
	return NewRouter(services, []string{"*"}), stock
}

func do(t *testing.T, r http.Handler, method, path string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	out := map[string]interface{}{}
	if w.Header().Get("Content-Type") != "" && bytes.HasPrefix(w.Body.Bytes(), []byte("{")) {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func TestOrderFlow_OverHTTP(t *testing.T) {
	router, stock := newTestRouter(t)

	w, body := do(t, router, http.MethodPost, "/api/v1/orders", map[string]interface{}{
		"supplier_id": "sup-1",
		"line_items":  []map[string]interface{}{{"sku": "tshirt-red", "ordered_quantity": 20, "unit_price": "4.50"}},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
	created := body["data"].(map[string]interface{})
	id := created["id"].(string)
	assert.Equal(t, "Pending Confirmation", created["status_label"])
	assert.Equal(t, "90", created["total"])

	w, _ = do(t, router, http.MethodPost, "/api/v1/orders/"+id+"/confirm", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, router, http.MethodPost, "/api/v1/orders/"+id+"/confirm", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	w, _ = do(t, router, http.MethodPost, "/api/v1/orders/"+id+"/ship", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, _ = do(t, router, http.MethodPost, "/api/v1/orders/"+id+"/receive", map[string]interface{}{
		"received": map[string]int{"TSHIRT-RED": 15},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 25, stock.Stock("TSHIRT-RED"))

	w, _ = do(t, router, http.MethodPost, "/api/v1/orders/"+id+"/complete", nil)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w, _ = do(t, router, http.MethodPost, "/api/v1/orders/"+id+"/discrepancy", map[string]interface{}{
		"missing": map[string]int{"TSHIRT-RED": 3},
		"damaged": map[string]int{"TSHIRT-RED": 2},
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w, _ = do(t, router, http.MethodPost, "/api/v1/orders/"+id+"/replacements", map[string]interface{}{"sku": "TSHIRT-RED", "quantity": 9})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = do(t, router, http.MethodPost, "/api/v1/orders/"+id+"/replacements", map[string]interface{}{"sku": "TSHIRT-RED", "quantity": 5})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, 30, stock.Stock("TSHIRT-RED"))

	w, body = do(t, router, http.MethodPost, "/api/v1/orders/"+id+"/complete", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "completed", body["data"].(map[string]interface{})["status"])
	assert.Equal(t, "Completed", body["data"].(map[string]interface{})["status_label"])
	assert.EqualValues(t, 1, body["sync"].(map[string]interface{})["processed"])
}

func TestGetOrder_NotFound(t *testing.T) {
	router, _ := newTestRouter(t)

	w, body := do(t, router, http.MethodGet, "/api/v1/orders/nope", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, body["error"], "not found")
}

func TestPlanningRoutes(t *testing.T) {
	router, _ := newTestRouter(t)

	w, body := do(t, router, http.MethodGet, "/api/v1/planning/reorder?due=true", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, body["count"])

	w, _ = do(t, router, http.MethodPut, "/api/v1/planning/products/TSHIRT-RED", map[string]interface{}{"lead_time_days": 0})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = do(t, router, http.MethodPut, "/api/v1/planning/products/TSHIRT-RED", map[string]interface{}{"maximum_stock": 80})
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 80, body["data"].(map[string]interface{})["maximum_stock"])

	w, body = do(t, router, http.MethodGet, "/api/v1/planning/products/TSHIRT-RED", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 50, body["data"].(map[string]interface{})["quantity_to_order"])

	w, _ = do(t, router, http.MethodGet, "/api/v1/planning/reorder/export", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", w.Header().Get("Content-Type"))
}

func TestNormalizeAllowedOrigins(t *testing.T) {
	origins, all := normalizeAllowedOrigins([]string{"https://a.example, https://b.example", " "})
	assert.False(t, all)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, origins)

	_, all = normalizeAllowedOrigins([]string{"*"})
	assert.True(t, all)
}
