// pkg/model/quality.go
package model

// Grade is the letter summarizing dataset quality.
type Grade string

const (
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// QualityMetrics is computed once per pipeline run over the final cleaned
// table and never partially updated afterwards.
type QualityMetrics struct {
	TotalRecords         int
	ValidRecords         int
	CompletenessScore    float64 // in [0,1]
	DuplicatesCount      int
	DuplicatesPct        float64 // percentage of rows
	GeocodingSuccessRate float64 // percentage of rows
	AvgGeocodingScore    float64
	NullCounts           map[string]int
	QualityGrade         Grade
}
