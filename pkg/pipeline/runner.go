// pkg/pipeline/runner.go
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/open-data-pipeline/catalog-ingress/pkg/config"
	"github.com/open-data-pipeline/catalog-ingress/pkg/dataset"
	"github.com/open-data-pipeline/catalog-ingress/pkg/enrich"
	"github.com/open-data-pipeline/catalog-ingress/pkg/fetch"
	"github.com/open-data-pipeline/catalog-ingress/pkg/ingest"
	"github.com/open-data-pipeline/catalog-ingress/pkg/model"
	"github.com/open-data-pipeline/catalog-ingress/pkg/quality"
	"github.com/open-data-pipeline/catalog-ingress/pkg/store"
	"github.com/open-data-pipeline/catalog-ingress/pkg/transform"
)

// ErrNoData means the catalog returned zero records: a hard stop, reported,
// not retried here.
var ErrNoData = errors.New("no records fetched from catalog")

// ErrNoNewRecords means incremental filtering left nothing to process. This
// is a "nothing to do" success, not a failure; callers exit cleanly on it.
var ErrNoNewRecords = errors.New("no new records to process")

// Storage is the persistence collaborator: known identifiers in, cleaned
// dataset out.
type Storage interface {
	LoadKnownIDs(ctx context.Context, category string) (ingest.IdentitySet, error)
	WriteDataset(ctx context.Context, ds *dataset.Dataset, category, runID string) (string, error)
}

// Options selects what one run does.
type Options struct {
	Category       string
	MaxItems       int
	SkipEnrichment bool
	Incremental    bool
}

// Runner orchestrates one stage-sequential pipeline run: ingest, enrich,
// transform, score, persist. Each stage fully consumes its input before the
// next begins.
type Runner struct {
	catalog     fetch.CatalogSource
	geocoder    fetch.GeocodingService
	storage     Storage
	recommender quality.Recommender // optional
	cfg         *config.Config
	logger      *zap.Logger
}

// NewRunner creates a pipeline runner. The recommender may be nil; every
// other collaborator is required.
func NewRunner(
	catalog fetch.CatalogSource,
	geocoder fetch.GeocodingService,
	storage Storage,
	recommender quality.Recommender,
	cfg *config.Config,
	logger *zap.Logger,
) (*Runner, error) {
	if catalog == nil {
		return nil, errors.New("catalog source cannot be nil")
	}
	if geocoder == nil {
		return nil, errors.New("geocoding service cannot be nil")
	}
	if storage == nil {
		return nil, errors.New("storage cannot be nil")
	}
	if cfg == nil {
		return nil, errors.New("config cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}

	return &Runner{
		catalog:     catalog,
		geocoder:    geocoder,
		storage:     storage,
		recommender: recommender,
		cfg:         cfg,
		logger:      logger,
	}, nil
}

// Run executes the whole pipeline for one category and returns its stats.
// On ErrNoNewRecords the returned stats are still valid up to the gate.
func (r *Runner) Run(ctx context.Context, opts Options) (*RunStats, error) {
	stats := NewRunStats(opts.Category)
	r.logger.Info("Pipeline run starting",
		zap.String("run_id", stats.RunID),
		zap.String("category", opts.Category),
		zap.Int("max_items", opts.MaxItems),
		zap.Bool("incremental", opts.Incremental))

	// Stage 0: known identifiers (incremental mode only)
	known := ingest.NewIdentitySet()
	if opts.Incremental {
		loaded, err := r.storage.LoadKnownIDs(ctx, opts.Category)
		if err != nil {
			return stats, fmt.Errorf("failed to load known identifiers: %w", err)
		}
		known = loaded
		stats.Known = known.Len()
	}

	// Stage 1: acquisition
	fetchStart := time.Now()
	records, err := r.catalog.Fetch(ctx, opts.Category, opts.MaxItems)
	if err != nil {
		return stats, fmt.Errorf("catalog fetch failed: %w", err)
	}
	stats.RecordStage("fetch", fetchStart)
	stats.Fetched = len(records)
	if len(records) == 0 {
		return stats, ErrNoData
	}

	// Incremental gate
	fresh := ingest.FilterNew(records, known)
	stats.Skipped = len(records) - len(fresh)
	stats.New = len(fresh)
	if stats.Skipped > 0 {
		r.logger.Info("Skipping already known records", zap.Int("skipped", stats.Skipped))
	}
	if len(fresh) == 0 {
		r.logger.Info("No new records to process, run complete")
		stats.Complete()
		return stats, ErrNoNewRecords
	}

	rawPath, err := store.SaveRawJSON(fresh, r.cfg.DataDir, opts.Category+"_raw")
	if err != nil {
		return stats, fmt.Errorf("failed to save raw snapshot: %w", err)
	}
	stats.RawSnapshotPath = rawPath

	if err := ctx.Err(); err != nil {
		return stats, err
	}

	// Stage 2: enrichment
	if opts.SkipEnrichment {
		r.logger.Info("Enrichment skipped by request")
	} else {
		fresh = r.enrichStage(ctx, fresh, stats)
	}

	if err := ctx.Err(); err != nil {
		return stats, err
	}

	// Stage 3: transformation
	transformStart := time.Now()
	chain, err := transform.New(dataset.FromRecords(fresh), r.logger)
	if err != nil {
		return stats, fmt.Errorf("failed to start transform chain: %w", err)
	}
	clean := chain.
		RemoveDuplicates(model.FieldCode).
		HandleMissingValues(transform.StrategyMedian, "unknown").
		NormalizeTextColumns(model.FieldBrands, model.FieldCategories, model.FieldStores).
		AddDerivedColumns().
		Result()
	stats.Transformations = chain.Log()
	stats.RecordStage("transform", transformStart)
	r.logger.Info("Transformation completed",
		zap.Int("rows", clean.Len()),
		zap.Int("operations", len(stats.Transformations)))

	// Stage 4: quality
	qualityStart := time.Now()
	scorer, err := quality.NewScorer(clean, r.logger)
	if err != nil {
		return stats, fmt.Errorf("failed to create quality scorer: %w", err)
	}
	stats.Metrics = scorer.Analyze()
	reportPath, err := scorer.WriteReport(ctx, stats.Metrics, r.recommender, r.cfg.ReportsDir, opts.Category+"_quality")
	if err != nil {
		return stats, fmt.Errorf("failed to write quality report: %w", err)
	}
	stats.ReportPath = reportPath
	stats.RecordStage("quality", qualityStart)

	if err := ctx.Err(); err != nil {
		return stats, err
	}

	// Stage 5: persistence
	persistStart := time.Now()
	location, err := r.storage.WriteDataset(ctx, clean, opts.Category, stats.RunID)
	if err != nil {
		return stats, fmt.Errorf("failed to persist dataset: %w", err)
	}
	stats.OutputLocation = location
	stats.RecordStage("persist", persistStart)

	stats.Complete()
	r.logger.Info("Pipeline run completed",
		zap.String("run_id", stats.RunID),
		zap.Int("new_records", clean.Len()),
		zap.String("grade", string(stats.Metrics.QualityGrade)),
		zap.String("output", location),
		zap.Duration("duration", stats.Duration()))

	return stats, nil
}

// enrichStage builds the geocoding cache and merges it into the batch. An
// empty address set skips enrichment with a warning; the pipeline continues.
func (r *Runner) enrichStage(ctx context.Context, records []model.Record, stats *RunStats) []model.Record {
	start := time.Now()
	defer func() { stats.RecordStage("enrich", start) }()

	addresses := enrich.ExtractAddresses(records)
	if len(addresses) == 0 {
		r.logger.Warn("No addresses found in stores field, skipping enrichment")
		return records
	}

	builder, err := enrich.NewCacheBuilder(r.geocoder, r.logger)
	if err != nil {
		r.logger.Warn("Failed to create cache builder, skipping enrichment", zap.Error(err))
		return records
	}
	cache := builder.
		WithLimit(r.cfg.GeocodeLimit).
		WithWorkers(r.cfg.GeocodeWorkers).
		Build(ctx, addresses)
	stats.CacheSize = len(cache)
	stats.GeocodeSuccessRate = cache.SuccessRate()

	enricher, err := enrich.NewEnricher(cache, r.logger)
	if err != nil {
		r.logger.Warn("Failed to create enricher, skipping enrichment", zap.Error(err))
		return records
	}
	enriched := enricher.EnrichAll(records)
	stats.Enrichment = enricher.Stats()
	return enriched
}
