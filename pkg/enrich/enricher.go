// pkg/enrich/enricher.go
package enrich

import (
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/open-data-pipeline/catalog-ingress/pkg/model"
)

// Stats tracks enrichment outcomes across one batch.
type Stats struct {
	TotalProcessed       int
	SuccessfullyEnriched int
	FailedEnrichment     int
}

// SuccessRate returns successfully enriched over total processed, 0 when no
// records have been processed.
func (s Stats) SuccessRate() float64 {
	if s.TotalProcessed == 0 {
		return 0
	}
	return float64(s.SuccessfullyEnriched) / float64(s.TotalProcessed)
}

// Enricher merges cached geocoding results into records. Counters are scoped
// to the instance; create one Enricher per run.
type Enricher struct {
	cache  GeocodeCache
	logger *zap.Logger
	stats  Stats
}

// NewEnricher creates an enricher over a completed cache.
func NewEnricher(cache GeocodeCache, logger *zap.Logger) (*Enricher, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &Enricher{cache: cache, logger: logger}, nil
}

// EnrichAll enriches a batch, returning cloned records; inputs are never
// mutated. The stores field is scanned in order and the first cache hit wins
// regardless of hit quality. An invalid hit still copies its data onto the
// record but counts as a failed enrichment.
func (e *Enricher) EnrichAll(records []model.Record) []model.Record {
	out := make([]model.Record, 0, len(records))
	for _, rec := range records {
		out = append(out, e.enrichOne(rec))
	}

	e.logger.Info("Enrichment completed",
		zap.Int("total", e.stats.TotalProcessed),
		zap.Int("enriched", e.stats.SuccessfullyEnriched),
		zap.Int("failed", e.stats.FailedEnrichment),
		zap.Float64("success_rate", e.stats.SuccessRate()))

	return out
}

func (e *Enricher) enrichOne(rec model.Record) model.Record {
	e.stats.TotalProcessed++
	enriched := rec.Clone()

	found := false
	if rec.Stores != "" {
		for _, part := range strings.Split(rec.Stores, ",") {
			geo, ok := e.cache[strings.TrimSpace(part)]
			if !ok {
				continue
			}

			applyResult(enriched.Extra, geo)
			if geo.IsValid {
				found = true
			}
			break // first match wins
		}
	}

	if found {
		e.stats.SuccessfullyEnriched++
	} else {
		e.stats.FailedEnrichment++
	}
	return enriched
}

// Stats returns the running totals for this enricher instance.
func (e *Enricher) Stats() Stats { return e.stats }

// applyResult copies the geocoding fields onto a record's extension map.
// Absent values stay missing rather than becoming empty strings.
func applyResult(extra map[string]any, geo model.GeocodingResult) {
	setString(extra, model.FieldStoreAddress, geo.Label)
	setFloat(extra, model.FieldLatitude, geo.Latitude)
	setFloat(extra, model.FieldLongitude, geo.Longitude)
	setString(extra, model.FieldCity, geo.City)
	setString(extra, model.FieldPostalCode, geo.PostalCode)
	extra[model.FieldGeocodingScore] = geo.Score
}

func setString(extra map[string]any, key, v string) {
	if v == "" {
		extra[key] = nil
		return
	}
	extra[key] = v
}

func setFloat(extra map[string]any, key string, v *float64) {
	if v == nil {
		extra[key] = nil
		return
	}
	extra[key] = *v
}
