package resolver

import (
	"context"
	"strings"

	"github.com/andresuchdata/stockrecon/internal/domain"
	"github.com/andresuchdata/stockrecon/internal/repository"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultSingleQueryThreshold is the largest batch resolved with one
	// query per SKU; larger batches use a grouped query.
	DefaultSingleQueryThreshold = 10
	// DefaultMaxParallel bounds concurrent per-SKU lookups.
	DefaultMaxParallel = 10
)

// Resolver binds loosely formatted SKUs to stored stock rows through an
// ordered list of strategies; the first strategy that binds a SKU wins.
type Resolver struct {
	strategies []strategy
}

type options struct {
	maxParallel int
	threshold   int
}

// Option configures a Resolver.
type Option func(*options)

// WithMaxParallel bounds concurrent per-SKU lookups.
func WithMaxParallel(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.maxParallel = n
		}
	}
}

// WithSingleQueryThreshold sets the batch size up to which every SKU gets
// its own first-tier query.
func WithSingleQueryThreshold(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.threshold = n
		}
	}
}

func New(repo repository.StockRepository, opts ...Option) *Resolver {
	o := options{
		maxParallel: DefaultMaxParallel,
		threshold:   DefaultSingleQueryThreshold,
	}
	for _, opt := range opts {
		opt(&o)
	}

	return &Resolver{
		strategies: []strategy{
			&exactStrategy{repo: repo, maxParallel: o.maxParallel, threshold: o.threshold},
			&casingVariantsStrategy{repo: repo},
			&sequentialCasingStrategy{repo: repo, maxParallel: o.maxParallel},
		},
	}
}

// Resolve binds every requested SKU or reports it as a ResolutionFailure.
// Requested SKUs are trimmed and exact duplicates collapsed. The only error
// returned is context cancellation.
func (r *Resolver) Resolve(ctx context.Context, skus []string) (*Resolution, error) {
	requested := make([]string, 0, len(skus))
	seen := make(map[string]bool, len(skus))
	for _, sku := range skus {
		sku = normalize(sku)
		if seen[sku] {
			continue
		}
		seen[sku] = true
		requested = append(requested, sku)
	}

	res := newResolution(requested)

	pending := make([]string, 0, len(requested))
	for _, sku := range requested {
		if sku == "" {
			res.Failures[sku] = &domain.ResolutionFailure{SKU: sku, Reason: "empty sku"}
			continue
		}
		pending = append(pending, sku)
	}

	for _, s := range r.strategies {
		if len(pending) == 0 {
			break
		}

		found, err := s.resolve(ctx, pending)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			log.Warn().Err(err).Str("tier", s.name()).Int("pending", len(pending)).Msg("resolver: tier failed")
			continue
		}

		next := pending[:0:0]
		for _, sku := range pending {
			m, ok := found[sku]
			if !ok {
				next = append(next, sku)
				continue
			}
			res.Results[sku] = domain.ResolutionResult{
				SKU:         sku,
				MatchedSKU:  m.record.SKU,
				StockOnHand: m.record.StockOnHand,
				Tier:        m.tier,
			}
		}
		pending = next
	}

	for _, sku := range pending {
		res.Failures[sku] = &domain.ResolutionFailure{SKU: sku, Reason: "no matching stock record"}
	}

	if len(res.Failures) > 0 {
		log.Warn().
			Int("requested", len(requested)).
			Int("unresolved", len(res.Failures)).
			Msg("resolver: some skus could not be resolved")
	}

	return res, nil
}

func normalize(sku string) string {
	return strings.TrimSpace(sku)
}
