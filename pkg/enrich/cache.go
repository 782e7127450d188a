// pkg/enrich/cache.go
package enrich

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/open-data-pipeline/catalog-ingress/pkg/fetch"
	"github.com/open-data-pipeline/catalog-ingress/pkg/model"
)

// DefaultAddressLimit bounds how many unique addresses get resolved per run.
// This is backpressure on external call volume, not a guarantee about which
// addresses receive coordinates.
const DefaultAddressLimit = 100

// minAddressLen filters out tokens too short to be a real store name.
const minAddressLen = 2

// GeocodeCache maps an address string to its single resolution for this run.
type GeocodeCache map[string]model.GeocodingResult

// SuccessRate returns the fraction of cached results that are valid, 0 for
// an empty cache.
func (c GeocodeCache) SuccessRate() float64 {
	if len(c) == 0 {
		return 0
	}
	valid := 0
	for _, r := range c {
		if r.IsValid {
			valid++
		}
	}
	return float64(valid) / float64(len(c))
}

// ExtractAddresses collects the unique candidate address strings from the
// records' stores field: comma-split, trimmed, tokens longer than two
// characters, in first-seen order.
func ExtractAddresses(records []model.Record) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, rec := range records {
		if strings.TrimSpace(rec.Stores) == "" {
			continue
		}
		for _, part := range strings.Split(rec.Stores, ",") {
			cleaned := strings.TrimSpace(part)
			if len(cleaned) <= minAddressLen {
				continue
			}
			if _, ok := seen[cleaned]; ok {
				continue
			}
			seen[cleaned] = struct{}{}
			out = append(out, cleaned)
		}
	}
	return out
}

// CacheBuilder resolves a bounded set of unique addresses through the
// geocoding collaborator, exactly once per address.
type CacheBuilder struct {
	geocoder fetch.GeocodingService
	logger   *zap.Logger
	limit    int
	workers  int
}

// NewCacheBuilder creates a cache builder with the default address limit and
// sequential resolution.
func NewCacheBuilder(geocoder fetch.GeocodingService, logger *zap.Logger) (*CacheBuilder, error) {
	if geocoder == nil {
		return nil, errors.New("geocoder cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &CacheBuilder{
		geocoder: geocoder,
		logger:   logger,
		limit:    DefaultAddressLimit,
		workers:  1,
	}, nil
}

// WithLimit sets the maximum number of addresses resolved per run.
func (b *CacheBuilder) WithLimit(n int) *CacheBuilder {
	if n > 0 {
		b.limit = n
	}
	return b
}

// WithWorkers sets the number of concurrent resolution workers. Uniqueness of
// the bounded address list keeps resolution at one call per address even when
// lookups run in parallel.
func (b *CacheBuilder) WithWorkers(n int) *CacheBuilder {
	if n > 0 {
		b.workers = n
	}
	return b
}

// Build resolves up to the configured limit of addresses and returns the
// completed cache. Failed lookups are cached as invalid results so the run
// never re-queries them.
func (b *CacheBuilder) Build(ctx context.Context, addresses []string) GeocodeCache {
	unique := dedupe(addresses)
	if len(unique) > b.limit {
		b.logger.Info("Capping geocoding candidates",
			zap.Int("candidates", len(unique)),
			zap.Int("limit", b.limit))
		unique = unique[:b.limit]
	}

	cache := make(GeocodeCache, len(unique))
	if len(unique) == 0 {
		return cache
	}

	if b.workers <= 1 {
		for _, addr := range unique {
			cache[addr] = b.geocoder.Resolve(ctx, addr)
		}
	} else {
		b.buildParallel(ctx, unique, cache)
	}

	b.logger.Info("Geocoding cache built",
		zap.Int("addresses", len(cache)),
		zap.Float64("success_rate", cache.SuccessRate()))

	return cache
}

// buildParallel fans the address list across a small worker pool and merges
// all results into the cache before returning.
func (b *CacheBuilder) buildParallel(ctx context.Context, addresses []string, cache GeocodeCache) {
	jobs := make(chan string)
	results := make(chan model.GeocodingResult, len(addresses))

	var wg sync.WaitGroup
	for i := 0; i < b.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for addr := range jobs {
				results <- b.geocoder.Resolve(ctx, addr)
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, addr := range addresses {
			select {
			case jobs <- addr:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		cache[r.OriginalAddress] = r
	}
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
