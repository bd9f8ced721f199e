package inventorysync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andresuchdata/stockrecon/internal/config"
	"github.com/andresuchdata/stockrecon/internal/domain"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const updatePath = "/inventory/updates"

// Client pushes absolute stock targets to the external commerce platform.
// It holds no local state beyond the circuit breaker; one call is one
// blocking request and the caller owns the timeout via ctx.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	breaker *breaker
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sets the base client the bearer transport wraps.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

func NewClient(cfg config.SyncConfig, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		token:   strings.TrimSpace(cfg.APIToken),
		http:    &http.Client{},
		breaker: newBreaker(cfg.FailureThreshold, time.Duration(cfg.OpenTimeoutSecs)*time.Second),
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.token != "" {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.http)
		c.http = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
			AccessToken: c.token,
			TokenType:   "Bearer",
		}))
	}

	return c
}

// PushInventory sends the records for tenantID and reports per-item
// outcome. Missing configuration fails before any network activity. An
// empty batch is a no-op.
func (c *Client) PushInventory(ctx context.Context, tenantID string, records []domain.StockSyncRecord) (*Result, error) {
	if c.token == "" {
		return nil, &domain.ConfigurationError{Field: "sync api token"}
	}
	if strings.TrimSpace(tenantID) == "" {
		return nil, &domain.ConfigurationError{Field: "tenant id"}
	}
	if c.baseURL == "" {
		return nil, &domain.ConfigurationError{Field: "sync base url"}
	}

	updates := normalizeRecords(records)
	if len(updates) == 0 {
		return &Result{}, nil
	}

	if !c.breaker.allow() {
		return nil, &domain.SyncFailure{Err: ErrCircuitOpen}
	}

	result, err := c.send(ctx, tenantID, updates)
	c.breaker.record(isPlatformFailure(err))
	if err != nil {
		return nil, err
	}

	log.Info().
		Str("tenant_id", tenantID).
		Int("processed", result.ProcessedCount).
		Int("errors", result.ErrorCount).
		Int("skipped", result.SkippedCount).
		Msg("inventory sync: push completed")

	return result, nil
}

func (c *Client) send(ctx context.Context, tenantID string, updates []domain.StockSyncRecord) (*Result, error) {
	payload, err := json.Marshal(updateRequest{TenantID: tenantID, Updates: updates})
	if err != nil {
		return nil, fmt.Errorf("encode inventory update: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+updatePath, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build inventory update request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &domain.SyncFailure{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.SyncFailure{StatusCode: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	var parsed Result
	decodeErr := json.Unmarshal(body, &parsed)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		failure := &domain.SyncFailure{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
		if decodeErr == nil {
			failure.Processed = parsed.ProcessedCount
			failure.Errors = parsed.ErrorCount
			failure.Skipped = parsed.SkippedCount
		}
		return nil, failure
	}

	if decodeErr != nil {
		return nil, &domain.SyncFailure{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
			Err:        fmt.Errorf("decode inventory update response: %w", decodeErr),
		}
	}

	reconcileCounts(&parsed)
	return &parsed, nil
}

// normalizeRecords clamps targets at zero and keeps the last target per SKU
// (case-insensitive), preserving first-seen order.
func normalizeRecords(records []domain.StockSyncRecord) []domain.StockSyncRecord {
	index := make(map[string]int, len(records))
	out := make([]domain.StockSyncRecord, 0, len(records))
	for _, rec := range records {
		sku := strings.TrimSpace(rec.SKU)
		if sku == "" {
			continue
		}
		if rec.TargetStockOnHand < 0 {
			rec.TargetStockOnHand = 0
		}
		rec.SKU = sku

		key := strings.ToLower(sku)
		if i, ok := index[key]; ok {
			out[i] = rec
			continue
		}
		index[key] = len(out)
		out = append(out, rec)
	}
	return out
}

// reconcileCounts fills counts from per-item detail when the platform only
// returned the item list.
func reconcileCounts(r *Result) {
	if r.ProcessedCount+r.ErrorCount+r.SkippedCount > 0 || len(r.Items) == 0 {
		return
	}
	for _, item := range r.Items {
		switch item.Status {
		case ItemProcessed:
			r.ProcessedCount++
		case ItemSkipped:
			r.SkippedCount++
		default:
			r.ErrorCount++
		}
	}
}

func isPlatformFailure(err error) bool {
	if err == nil {
		return false
	}
	var failure *domain.SyncFailure
	if !errors.As(err, &failure) {
		return false
	}
	return failure.StatusCode == 0 || failure.StatusCode >= 500
}
