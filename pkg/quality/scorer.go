// pkg/quality/scorer.go
package quality

import (
	"errors"
	"math"

	"go.uber.org/zap"

	"github.com/open-data-pipeline/catalog-ingress/pkg/dataset"
	"github.com/open-data-pipeline/catalog-ingress/pkg/model"
)

// Scorer computes quality metrics over a finalized tabular dataset.
type Scorer struct {
	ds     *dataset.Dataset
	logger *zap.Logger
}

// NewScorer creates a scorer.
func NewScorer(ds *dataset.Dataset, logger *zap.Logger) (*Scorer, error) {
	if ds == nil {
		return nil, errors.New("dataset cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &Scorer{ds: ds, logger: logger}, nil
}

// Analyze computes the full metrics set. The returned value is complete and
// never partially updated afterwards.
func (s *Scorer) Analyze() model.QualityMetrics {
	completeness := s.completeness()
	duplicates, duplicatesPct := s.countDuplicates()
	geoRate, geoAvg := s.geocodingStats()

	metrics := model.QualityMetrics{
		TotalRecords:         s.ds.Len(),
		ValidRecords:         s.ds.Len() - duplicates,
		CompletenessScore:    round(completeness, 3),
		DuplicatesCount:      duplicates,
		DuplicatesPct:        round(duplicatesPct, 2),
		GeocodingSuccessRate: round(geoRate, 2),
		AvgGeocodingScore:    round(geoAvg, 3),
		NullCounts:           s.nullCounts(),
		QualityGrade:         DetermineGrade(completeness, duplicatesPct, geoRate, s.ds.HasColumn(model.FieldGeocodingScore)),
	}

	s.logger.Info("Quality analysis completed",
		zap.Int("total_records", metrics.TotalRecords),
		zap.Float64("completeness", metrics.CompletenessScore),
		zap.Float64("duplicates_pct", metrics.DuplicatesPct),
		zap.String("grade", string(metrics.QualityGrade)))

	return metrics
}

// completeness is non-null cells over total cells, 0 for an empty dataset.
func (s *Scorer) completeness() float64 {
	total := s.ds.CellCount()
	if total == 0 {
		return 0
	}
	return float64(s.ds.NonNullCells()) / float64(total)
}

// countDuplicates counts rows beyond the first occurrence of each identifier
// value, keyed on "code" or the first column as fallback.
func (s *Scorer) countDuplicates() (int, float64) {
	cols := s.ds.Columns()
	if len(cols) == 0 || s.ds.Len() == 0 {
		return 0, 0
	}
	idCol := cols[0]
	if s.ds.HasColumn(model.FieldCode) {
		idCol = model.FieldCode
	}

	seen := make(map[string]struct{}, s.ds.Len())
	duplicates := 0
	for i := 0; i < s.ds.Len(); i++ {
		key := dataset.ToString(s.ds.At(i, idCol))
		if _, dup := seen[key]; dup {
			duplicates++
			continue
		}
		seen[key] = struct{}{}
	}

	return duplicates, float64(duplicates) / float64(s.ds.Len()) * 100
}

// geocodingStats returns the percentage of rows with a present, positive
// geocoding score and the average score over those rows. Both are 0 when the
// column is absent or nothing geocoded.
func (s *Scorer) geocodingStats() (float64, float64) {
	if !s.ds.HasColumn(model.FieldGeocodingScore) || s.ds.Len() == 0 {
		return 0, 0
	}

	valid := 0
	sum := 0.0
	for i := 0; i < s.ds.Len(); i++ {
		v, ok := dataset.AsFloat(s.ds.At(i, model.FieldGeocodingScore))
		if ok && v > 0 {
			valid++
			sum += v
		}
	}

	rate := float64(valid) / float64(s.ds.Len()) * 100
	avg := 0.0
	if valid > 0 {
		avg = sum / float64(valid)
	}
	return rate, avg
}

func (s *Scorer) nullCounts() map[string]int {
	counts := make(map[string]int, len(s.ds.Columns()))
	for _, col := range s.ds.Columns() {
		counts[col] = s.ds.NullCount(col)
	}
	return counts
}

// DetermineGrade maps the weighted 0-100 quality score to a letter grade.
// Pure function: identical inputs always yield the identical grade.
//
//   - completeness in [0,1] contributes up to 40 points
//   - duplicate percentage contributes a banded 30/20/10/0
//   - geocoding success rate (percent) contributes up to 30 points when a
//     geocoding column exists, else a flat 30 so non-geo datasets are not
//     penalized
func DetermineGrade(completeness, duplicatesPct, geoRate float64, hasGeocoding bool) model.Grade {
	score := math.Min(completeness*40, 40)

	switch {
	case duplicatesPct <= 1:
		score += 30
	case duplicatesPct <= 5:
		score += 20
	case duplicatesPct <= 10:
		score += 10
	}

	if hasGeocoding {
		score += math.Min(geoRate/100*30, 30)
	} else {
		score += 30
	}

	switch {
	case score >= 90:
		return model.GradeA
	case score >= 75:
		return model.GradeB
	case score >= 60:
		return model.GradeC
	case score >= 40:
		return model.GradeD
	default:
		return model.GradeF
	}
}

func round(v float64, places int) float64 {
	factor := math.Pow(10, float64(places))
	return math.Round(v*factor) / factor
}
