package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/open-data-pipeline/catalog-ingress/pkg/config"
	"github.com/open-data-pipeline/catalog-ingress/pkg/fetch"
	"github.com/open-data-pipeline/catalog-ingress/pkg/logging"
	"github.com/open-data-pipeline/catalog-ingress/pkg/pipeline"
	"github.com/open-data-pipeline/catalog-ingress/pkg/quality"
	"github.com/open-data-pipeline/catalog-ingress/pkg/recommend"
	"github.com/open-data-pipeline/catalog-ingress/pkg/store"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		category       string
		maxItems       int
		skipEnrichment bool
		incremental    bool
		verbose        bool
	)

	cmd := &cobra.Command{
		Use:           "pipeline",
		Short:         "Incremental product catalog ETL pipeline",
		Long:          "Fetches product records, enriches store names with geocoded locations,\ncleans the dataset through a transformation chain, and grades its quality.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(category, maxItems, skipEnrichment, incremental, verbose)
		},
	}

	cmd.Flags().StringVarP(&category, "category", "c", "chocolats", "catalog category to fetch")
	cmd.Flags().IntVarP(&maxItems, "max-items", "m", 50, "maximum records to fetch")
	cmd.Flags().BoolVarP(&skipEnrichment, "skip-enrichment", "s", false, "skip the geocoding enrichment stage")
	cmd.Flags().BoolVarP(&incremental, "incremental", "i", false, "process only records not seen in prior runs")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	return cmd
}

func run(category string, maxItems int, skipEnrichment, incremental, verbose bool) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(ctx, cfg.StoreDriver, cfg.StoreDSN, logger)
	if err != nil {
		logger.Error("Failed to open store", zap.Error(err))
		return err
	}
	defer st.Close()

	catalog, err := fetch.NewOpenFoodFacts(fetch.OpenFoodFactsConfig{
		BaseURL:   cfg.CatalogBaseURL,
		PageSize:  cfg.CatalogPageSize,
		UserAgent: cfg.UserAgent,
	}, logger)
	if err != nil {
		return err
	}

	geocoder, err := fetch.NewAdresse(fetch.AdresseConfig{
		BaseURL:   cfg.GeocodeBaseURL,
		RateLimit: cfg.GeocodeRateLimit,
	}, logger)
	if err != nil {
		return err
	}

	// Recommendations are optional: no key, no recommender, static fallback.
	var recommender quality.Recommender
	if cfg.GeminiAPIKey != "" {
		gem, err := recommend.NewGemini(ctx, recommend.GeminiConfig{
			APIKey: cfg.GeminiAPIKey,
			Model:  cfg.GeminiModel,
		}, logger)
		if err != nil {
			logger.Warn("Recommendation service unavailable", zap.Error(err))
		} else {
			recommender = gem
		}
	}

	runner, err := pipeline.NewRunner(catalog, geocoder, st, recommender, cfg, logger)
	if err != nil {
		return err
	}

	_, err = runner.Run(ctx, pipeline.Options{
		Category:       category,
		MaxItems:       maxItems,
		SkipEnrichment: skipEnrichment,
		Incremental:    incremental,
	})
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pipeline.ErrNoNewRecords):
		logger.Info("Nothing to do: all fetched records were already processed")
		return nil
	case errors.Is(err, context.Canceled):
		logger.Warn("Pipeline interrupted by user")
		return nil
	default:
		logger.Error("Pipeline failed", zap.Error(err))
		return err
	}
}
