package resolver

import (
	"errors"
	"strings"

	"github.com/andresuchdata/stockrecon/internal/domain"
)

// Resolution is the outcome of one Resolve call. Every requested SKU is
// present either in Results or in Failures.
type Resolution struct {
	Results  map[string]domain.ResolutionResult
	Failures map[string]*domain.ResolutionFailure

	requested []string
}

func newResolution(requested []string) *Resolution {
	return &Resolution{
		Results:   make(map[string]domain.ResolutionResult, len(requested)),
		Failures:  make(map[string]*domain.ResolutionFailure),
		requested: requested,
	}
}

// Lookup returns the result for a requested SKU or its failure.
func (r *Resolution) Lookup(sku string) (domain.ResolutionResult, error) {
	sku = normalize(sku)
	if res, ok := r.Results[sku]; ok {
		return res, nil
	}
	if f, ok := r.Failures[sku]; ok {
		return domain.ResolutionResult{}, f
	}
	return domain.ResolutionResult{}, &domain.ResolutionFailure{SKU: sku, Reason: "not requested"}
}

// Records returns resolved rows deduplicated by lowercased stored SKU, in
// request order. Several requested variants of one stored row collapse into
// the first of them.
func (r *Resolution) Records() []domain.ResolutionResult {
	seen := make(map[string]bool, len(r.Results))
	records := make([]domain.ResolutionResult, 0, len(r.Results))
	for _, sku := range r.requested {
		res, ok := r.Results[sku]
		if !ok {
			continue
		}
		key := strings.ToLower(res.MatchedSKU)
		if seen[key] {
			continue
		}
		seen[key] = true
		records = append(records, res)
	}
	return records
}

// FailureList returns failures in request order.
func (r *Resolution) FailureList() []*domain.ResolutionFailure {
	failures := make([]*domain.ResolutionFailure, 0, len(r.Failures))
	for _, sku := range r.requested {
		if f, ok := r.Failures[sku]; ok {
			failures = append(failures, f)
		}
	}
	return failures
}

// Err joins all failures, or returns nil when everything resolved.
func (r *Resolution) Err() error {
	failures := r.FailureList()
	if len(failures) == 0 {
		return nil
	}
	errs := make([]error, len(failures))
	for i, f := range failures {
		errs[i] = f
	}
	return errors.Join(errs...)
}
