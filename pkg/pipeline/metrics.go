// pkg/pipeline/metrics.go
package pipeline

import (
	"time"

	"github.com/google/uuid"

	"github.com/open-data-pipeline/catalog-ingress/pkg/enrich"
	"github.com/open-data-pipeline/catalog-ingress/pkg/model"
)

// StageTiming records how long one pipeline stage took.
type StageTiming struct {
	Name     string
	Duration time.Duration
}

// RunStats accumulates everything observable about a single pipeline run.
// Scoped to the run and discarded afterwards.
type RunStats struct {
	RunID     string
	Category  string
	StartTime time.Time
	EndTime   time.Time

	Fetched int // records returned by the catalog
	Known   int // identifiers loaded for incremental filtering
	Skipped int // records dropped as already known
	New     int // records that entered the pipeline

	CacheSize          int
	GeocodeSuccessRate float64
	Enrichment         enrich.Stats

	Transformations []string
	Metrics         model.QualityMetrics

	RawSnapshotPath string
	ReportPath      string
	OutputLocation  string

	Stages []StageTiming
}

// NewRunStats starts tracking a run.
func NewRunStats(category string) *RunStats {
	return &RunStats{
		RunID:     uuid.New().String(),
		Category:  category,
		StartTime: time.Now(),
	}
}

// RecordStage appends a stage timing measured from its start time.
func (s *RunStats) RecordStage(name string, started time.Time) {
	s.Stages = append(s.Stages, StageTiming{Name: name, Duration: time.Since(started)})
}

// Complete marks the run finished.
func (s *RunStats) Complete() {
	s.EndTime = time.Now()
}

// Duration returns the total run time.
func (s *RunStats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}
