package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned by repositories when no row matches.
	ErrNotFound = errors.New("not found")

	// ErrOrderCompleted is returned for any transition on a completed order.
	ErrOrderCompleted = errors.New("order is completed; no further transitions apply")

	// ErrReconciliationDataMissing rejects completing a reconciliation
	// before missing/damaged quantities were captured.
	ErrReconciliationDataMissing = errors.New("reconciliation data has not been recorded; capture missing and damaged quantities first")

	// ErrOrderBusy is returned when another writer holds the order.
	ErrOrderBusy = errors.New("order is being modified by another request")

	// ErrInvalidInput marks caller errors in trigger payloads.
	ErrInvalidInput = errors.New("invalid input")
)

// TransitionError reports a lifecycle action attempted from the wrong state.
type TransitionError struct {
	OrderID string
	Action  string
	From    OrderStatus
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("cannot %s order %s in status %s", e.Action, e.OrderID, e.From)
}

// ResolutionFailure marks a SKU that no resolution tier could bind to a
// stock row. It must never be treated as stock = 0.
type ResolutionFailure struct {
	SKU    string
	Reason string
}

func (e *ResolutionFailure) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("sku %q could not be resolved", e.SKU)
	}
	return fmt.Sprintf("sku %q could not be resolved: %s", e.SKU, e.Reason)
}

// SyncFailure reports a non-success response or transport error from the
// external platform. Counts carry whatever partial outcome was reported.
type SyncFailure struct {
	StatusCode int
	Body       string
	Processed  int
	Errors     int
	Skipped    int
	Err        error
}

func (e *SyncFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("inventory sync failed: %v", e.Err)
	}
	return fmt.Sprintf("inventory sync failed with status %d: %s", e.StatusCode, e.Body)
}

func (e *SyncFailure) Unwrap() error {
	return e.Err
}

// ConfigurationError is returned before any network call when a required
// credential or identifier is missing.
type ConfigurationError struct {
	Field string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s is required", e.Field)
}

// ConsistencyViolation reports a line where ordered != received + missing +
// damaged. It blocks completing a reconciliation.
type ConsistencyViolation struct {
	OrderID  string
	SKU      string
	Ordered  int
	Received int
	Missing  int
	Damaged  int
}

func (e *ConsistencyViolation) Error() string {
	return fmt.Sprintf("order %s sku %s: ordered %d != received %d + missing %d + damaged %d",
		e.OrderID, e.SKU, e.Ordered, e.Received, e.Missing, e.Damaged)
}
