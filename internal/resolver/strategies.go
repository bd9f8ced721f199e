package resolver

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/andresuchdata/stockrecon/internal/domain"
	"github.com/andresuchdata/stockrecon/internal/repository"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Tier names reported on each ResolutionResult.
const (
	TierExactInsensitive = "exact_insensitive"
	TierExactSensitive   = "exact_sensitive"
	TierCasingVariants   = "casing_variants"
	TierSequentialCasing = "sequential_casing"
)

// match is a stored row found for one requested SKU by a given tier.
type match struct {
	record domain.StockRecord
	tier   string
}

// strategy is one resolution tier. It receives the SKUs still pending and
// returns the ones it bound. An error means the whole tier failed; the
// resolver then moves on to the next tier.
type strategy interface {
	name() string
	resolve(ctx context.Context, pending []string) (map[string]match, error)
}

// exactStrategy covers the first two tiers: case-insensitive exact match,
// with a case-sensitive retry for SKUs whose lookup errored.
type exactStrategy struct {
	repo        repository.StockRepository
	maxParallel int
	threshold   int
}

func (s *exactStrategy) name() string { return TierExactInsensitive }

func (s *exactStrategy) resolve(ctx context.Context, pending []string) (map[string]match, error) {
	if len(pending) <= s.threshold {
		return resolveEach(ctx, pending, s.maxParallel, s.lookup)
	}

	grouped, individual := partitionReserved(pending)
	found := make(map[string]match, len(pending))

	if len(grouped) > 0 {
		records, err := s.repo.FindBySKUs(ctx, grouped, false)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			log.Warn().Err(err).Int("skus", len(grouped)).Msg("resolver: grouped lookup failed, falling back to single lookups")
			individual = append(individual, grouped...)
		} else {
			for sku, rec := range bindFold(grouped, records) {
				found[sku] = match{record: rec, tier: TierExactInsensitive}
			}
		}
	}

	each, err := resolveEach(ctx, individual, s.maxParallel, s.lookup)
	if err != nil {
		return nil, err
	}
	for sku, m := range each {
		found[sku] = m
	}
	return found, nil
}

func (s *exactStrategy) lookup(ctx context.Context, sku string) (*match, error) {
	rec, err := s.repo.FindBySKU(ctx, sku, false)
	if err == nil {
		return &match{record: *rec, tier: TierExactInsensitive}, nil
	}
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}

	log.Warn().Err(err).Str("sku", sku).Msg("resolver: case-insensitive lookup failed, retrying case-sensitive")
	rec, err = s.repo.FindBySKU(ctx, sku, true)
	if err == nil {
		return &match{record: *rec, tier: TierExactSensitive}, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		log.Warn().Err(err).Str("sku", sku).Msg("resolver: case-sensitive retry failed")
	}
	return nil, ctx.Err()
}

// casingVariantsStrategy probes original/upper/lower/title variants of every
// pending SKU in one grouped case-sensitive query and filters client-side.
type casingVariantsStrategy struct {
	repo repository.StockRepository
}

func (s *casingVariantsStrategy) name() string { return TierCasingVariants }

func (s *casingVariantsStrategy) resolve(ctx context.Context, pending []string) (map[string]match, error) {
	grouped, _ := partitionReserved(pending)
	if len(grouped) == 0 {
		return map[string]match{}, nil
	}

	seen := make(map[string]bool)
	var probes []string
	for _, sku := range grouped {
		for _, v := range casingVariants(sku, true) {
			if !seen[v] {
				seen[v] = true
				probes = append(probes, v)
			}
		}
	}

	records, err := s.repo.FindBySKUs(ctx, probes, true)
	if err != nil {
		return nil, err
	}

	found := make(map[string]match)
	for sku, rec := range bindFold(grouped, records) {
		found[sku] = match{record: rec, tier: TierCasingVariants}
	}
	return found, nil
}

// sequentialCasingStrategy is the last resort: individual case-sensitive
// queries for original, upper, then lower case.
type sequentialCasingStrategy struct {
	repo        repository.StockRepository
	maxParallel int
}

func (s *sequentialCasingStrategy) name() string { return TierSequentialCasing }

func (s *sequentialCasingStrategy) resolve(ctx context.Context, pending []string) (map[string]match, error) {
	return resolveEach(ctx, pending, s.maxParallel, func(ctx context.Context, sku string) (*match, error) {
		for _, v := range casingVariants(sku, false) {
			rec, err := s.repo.FindBySKU(ctx, v, true)
			if err == nil {
				return &match{record: *rec, tier: TierSequentialCasing}, nil
			}
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			if !errors.Is(err, domain.ErrNotFound) {
				log.Warn().Err(err).Str("sku", sku).Str("variant", v).Msg("resolver: sequential lookup failed")
			}
		}
		return nil, nil
	})
}

// resolveEach runs lookup for every SKU with bounded parallelism. Lookups
// only return an error on context cancellation.
func resolveEach(ctx context.Context, skus []string, maxParallel int, lookup func(context.Context, string) (*match, error)) (map[string]match, error) {
	found := make(map[string]match, len(skus))
	if len(skus) == 0 {
		return found, nil
	}

	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallel)

	for _, sku := range skus {
		sku := sku
		g.Go(func() error {
			m, err := lookup(gctx, sku)
			if err != nil {
				return err
			}
			if m != nil {
				mu.Lock()
				found[sku] = *m
				mu.Unlock()
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return found, nil
}

// bindFold maps each requested SKU to the record equal to it ignoring case,
// preferring an exact-case record when the store holds several.
func bindFold(requested []string, records []domain.StockRecord) map[string]domain.StockRecord {
	bound := make(map[string]domain.StockRecord, len(requested))
	for _, sku := range requested {
		for _, rec := range records {
			if rec.SKU == sku {
				bound[sku] = rec
				break
			}
			if _, ok := bound[sku]; !ok && strings.EqualFold(rec.SKU, sku) {
				bound[sku] = rec
			}
		}
	}
	return bound
}

// reservedListChars break the store's list ("in") syntax.
const reservedListChars = `,()"`

// partitionReserved splits SKUs that are safe for a grouped query from those
// that must be looked up individually.
func partitionReserved(skus []string) (grouped, individual []string) {
	for _, sku := range skus {
		if strings.ContainsAny(sku, reservedListChars) {
			individual = append(individual, sku)
		} else {
			grouped = append(grouped, sku)
		}
	}
	return grouped, individual
}

// casingVariants returns original, upper, lower and optionally title-case
// forms of sku without duplicates, in that order.
func casingVariants(sku string, withTitle bool) []string {
	candidates := []string{sku, strings.ToUpper(sku), strings.ToLower(sku)}
	if withTitle {
		candidates = append(candidates, cases.Title(language.Und).String(sku))
	}

	variants := make([]string, 0, len(candidates))
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if !seen[c] {
			seen[c] = true
			variants = append(variants, c)
		}
	}
	return variants
}
