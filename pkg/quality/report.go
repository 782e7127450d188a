// pkg/quality/report.go
package quality

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/open-data-pipeline/catalog-ingress/pkg/model"
)

// Recommender produces narrative recommendations from a metrics summary.
// Implementations may call out to an LLM; failures must stay local to the
// report and never fail the scoring.
type Recommender interface {
	Generate(ctx context.Context, summary string) (string, error)
}

// fallbackRecommendations replaces the narrative section whenever the
// recommendation collaborator is unavailable or errors out.
const fallbackRecommendations = "Recommendations unavailable: the recommendation service could not be reached. " +
	"Review the null counts and duplicate percentage above manually."

// WriteReport renders a markdown quality report into dir and returns the
// file path. A nil or failing recommender degrades to a static message.
func (s *Scorer) WriteReport(ctx context.Context, metrics model.QualityMetrics, rec Recommender, dir, name string) (string, error) {
	recommendations := fallbackRecommendations
	if rec != nil {
		text, err := rec.Generate(ctx, summarize(metrics))
		if err != nil {
			s.logger.Warn("Recommendation generation failed, using fallback", zap.Error(err))
		} else if strings.TrimSpace(text) != "" {
			recommendations = text
		}
	}

	report := renderReport(metrics, recommendations)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create reports directory: %w", err)
	}
	filename := fmt.Sprintf("%s_%s.md", name, time.Now().Format("20060102_150405"))
	path := filepath.Join(dir, filename)
	if err := os.WriteFile(path, []byte(report), 0o644); err != nil {
		return "", fmt.Errorf("failed to write quality report: %w", err)
	}

	s.logger.Info("Quality report written", zap.String("path", path))
	return path, nil
}

func summarize(m model.QualityMetrics) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Dataset quality analysis:\n")
	fmt.Fprintf(&b, "- total records: %d\n", m.TotalRecords)
	fmt.Fprintf(&b, "- completeness: %.1f%%\n", m.CompletenessScore*100)
	fmt.Fprintf(&b, "- duplicates: %.1f%%\n", m.DuplicatesPct)
	fmt.Fprintf(&b, "- geocoding success: %.1f%%\n", m.GeocodingSuccessRate)
	fmt.Fprintf(&b, "- grade: %s\n", m.QualityGrade)
	fmt.Fprintf(&b, "Null counts per column: %v\n", m.NullCounts)
	return b.String()
}

func renderReport(m model.QualityMetrics, recommendations string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# Data Quality Report\n\n")
	fmt.Fprintf(&b, "**Generated**: %s\n\n", time.Now().Format("2006-01-02 15:04:05"))
	fmt.Fprintf(&b, "## Metrics\n\n")
	fmt.Fprintf(&b, "| Metric | Value | Target |\n")
	fmt.Fprintf(&b, "|--------|-------|--------|\n")
	fmt.Fprintf(&b, "| **Grade** | **%s** | A or B |\n", m.QualityGrade)
	fmt.Fprintf(&b, "| Total records | %d | - |\n", m.TotalRecords)
	fmt.Fprintf(&b, "| Duplicates | %.1f%% | <= 5%% |\n", m.DuplicatesPct)
	fmt.Fprintf(&b, "| Completeness | %.1f%% | >= 70%% |\n", m.CompletenessScore*100)
	fmt.Fprintf(&b, "| Geocoding success | %.1f%% | >= 50%% |\n", m.GeocodingSuccessRate)

	fmt.Fprintf(&b, "\n## Missing Values\n\n")
	fmt.Fprintf(&b, "| Column | Nulls | %% Missing |\n")
	fmt.Fprintf(&b, "|--------|-------|-----------|\n")
	for _, nc := range sortedNullCounts(m.NullCounts) {
		pct := 0.0
		if m.TotalRecords > 0 {
			pct = float64(nc.count) / float64(m.TotalRecords) * 100
		}
		if pct > 0 {
			fmt.Fprintf(&b, "| %s | %d | %.1f%% |\n", nc.column, nc.count, pct)
		}
	}

	fmt.Fprintf(&b, "\n## Recommendations\n\n%s\n", recommendations)
	return b.String()
}

type nullCount struct {
	column string
	count  int
}

func sortedNullCounts(counts map[string]int) []nullCount {
	out := make([]nullCount, 0, len(counts))
	for col, n := range counts {
		out = append(out, nullCount{col, n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].column < out[j].column
	})
	return out
}
