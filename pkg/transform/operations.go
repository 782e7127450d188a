// pkg/transform/operations.go
package transform

import (
	"fmt"
	"math"
	"strings"

	"github.com/open-data-pipeline/catalog-ingress/pkg/dataset"
	"github.com/open-data-pipeline/catalog-ingress/pkg/model"
)

// numericTargets are the columns coerced to numeric before imputation. The
// catalog returns them in mixed string/number representations; coercion must
// precede imputation or numeric strategies silently no-op on string cells.
var numericTargets = []string{
	model.FieldEnergy,
	model.FieldSugars,
	model.FieldFat,
	model.FieldSalt,
	model.FieldNovaGroup,
	model.FieldGeocodingScore,
}

// RemoveDuplicates drops rows sharing the same values in keyColumns, keeping
// the first occurrence in original order. With no columns given it keys on
// "code" when present, else the first column. Re-running is a no-op.
func (c *Chain) RemoveDuplicates(keyColumns ...string) *Chain {
	if len(keyColumns) == 0 {
		cols := c.ds.Columns()
		if len(cols) == 0 {
			return c
		}
		if c.ds.HasColumn(model.FieldCode) {
			keyColumns = []string{model.FieldCode}
		} else {
			keyColumns = []string{cols[0]}
		}
	}

	seen := make(map[string]struct{}, c.ds.Len())
	removed := c.ds.Filter(func(row dataset.Row) bool {
		parts := make([]string, len(keyColumns))
		for i, col := range keyColumns {
			parts[i] = dataset.ToString(row[col])
		}
		key := strings.Join(parts, "\x1f")
		if _, dup := seen[key]; dup {
			return false
		}
		seen[key] = struct{}{}
		return true
	})

	if removed > 0 {
		c.record(fmt.Sprintf("duplicates removed: %d", removed))
	}
	return c
}

// HandleMissingValues coerces the known-numeric columns first, then fills
// missing cells: numeric columns by strategy (median, mean, zero; anything
// else leaves them untouched), text columns with the placeholder string.
func (c *Chain) HandleMissingValues(numericStrategy, textStrategy string) *Chain {
	for _, col := range numericTargets {
		if c.ds.HasColumn(col) {
			c.coerceNumeric(col)
		}
	}

	for _, col := range c.ds.NumericColumns() {
		values := c.ds.FloatColumn(col)
		if len(values) == 0 {
			continue
		}

		var fill float64
		switch numericStrategy {
		case StrategyMedian:
			fill = dataset.Median(values)
		case StrategyMean:
			fill = dataset.Mean(values)
		case StrategyZero:
			fill = 0
		default:
			continue
		}

		filled := 0
		for i := 0; i < c.ds.Len(); i++ {
			if c.ds.At(i, col) == nil {
				c.ds.Set(i, col, fill)
				filled++
			}
		}
		if filled > 0 {
			c.record(fmt.Sprintf("%s: %d nulls -> %.2f", col, filled, fill))
		}
	}

	for _, col := range c.ds.TextColumns() {
		filled := 0
		for i := 0; i < c.ds.Len(); i++ {
			if c.ds.At(i, col) == nil {
				c.ds.Set(i, col, textStrategy)
				filled++
			}
		}
		if filled > 0 {
			c.record(fmt.Sprintf("%s: %d nulls -> %q", col, filled, textStrategy))
		}
	}

	return c
}

// NormalizeTextColumns trims surrounding whitespace and lowercases string
// cells. With no columns given it covers every text column. Run it after
// HandleMissingValues so placeholder fills are normalized too; the chain
// does not enforce that ordering.
func (c *Chain) NormalizeTextColumns(columns ...string) *Chain {
	if len(columns) == 0 {
		columns = c.ds.TextColumns()
	}

	normalized := make([]string, 0, len(columns))
	for _, col := range columns {
		if !c.ds.HasColumn(col) {
			continue
		}
		for i := 0; i < c.ds.Len(); i++ {
			if s, ok := dataset.AsString(c.ds.At(i, col)); ok {
				c.ds.Set(i, col, strings.ToLower(strings.TrimSpace(s)))
			}
		}
		normalized = append(normalized, col)
	}

	c.record(fmt.Sprintf("text normalized: %s", strings.Join(normalized, ", ")))
	return c
}

// FilterOutliers removes rows whose value in each given column falls outside
// the interquartile fence [Q1-t*IQR, Q3+t*IQR] or beyond t standard
// deviations from the mean, per method. Rows with a missing value in a probed
// column are removed as well.
func (c *Chain) FilterOutliers(columns []string, method string, threshold float64) *Chain {
	removed := 0
	for _, col := range columns {
		if !c.ds.HasColumn(col) {
			continue
		}
		values := c.ds.FloatColumn(col)
		if len(values) == 0 {
			continue
		}

		switch method {
		case MethodIQR:
			q1 := dataset.Quantile(values, 0.25)
			q3 := dataset.Quantile(values, 0.75)
			iqr := q3 - q1
			lower, upper := q1-threshold*iqr, q3+threshold*iqr
			removed += c.ds.Filter(func(row dataset.Row) bool {
				v, ok := dataset.AsFloat(row[col])
				return ok && v >= lower && v <= upper
			})
		case MethodZScore:
			mean := dataset.Mean(values)
			std := dataset.Std(values)
			if math.IsNaN(std) || std <= 0 {
				continue
			}
			removed += c.ds.Filter(func(row dataset.Row) bool {
				v, ok := dataset.AsFloat(row[col])
				return ok && math.Abs((v-mean)/std) < threshold
			})
		}
	}

	if removed > 0 {
		c.record(fmt.Sprintf("outliers filtered (%s): %d", method, removed))
	}
	return c
}

// AddDerivedColumns adds a bucketed sugar category and an is_geocoded flag,
// each only when its source column exists.
func (c *Chain) AddDerivedColumns() *Chain {
	if c.ds.HasColumn(model.FieldSugars) {
		c.coerceNumeric(model.FieldSugars)
		c.ds.AddColumn("sugar_category")
		for i := 0; i < c.ds.Len(); i++ {
			v, ok := dataset.AsFloat(c.ds.At(i, model.FieldSugars))
			if !ok {
				c.ds.Set(i, "sugar_category", nil)
				continue
			}
			c.ds.Set(i, "sugar_category", sugarCategory(v))
		}
		c.record("added column: sugar_category")
	}

	if c.ds.HasColumn(model.FieldGeocodingScore) {
		c.ds.AddColumn("is_geocoded")
		for i := 0; i < c.ds.Len(); i++ {
			v, ok := dataset.AsFloat(c.ds.At(i, model.FieldGeocodingScore))
			c.ds.Set(i, "is_geocoded", ok && v >= 0.5)
		}
		c.record("added column: is_geocoded")
	}

	return c
}

// sugarCategory buckets grams of sugar per 100g against fixed bin edges.
func sugarCategory(v float64) string {
	switch {
	case v <= 5:
		return "low"
	case v <= 15:
		return "moderate"
	case v <= 30:
		return "high"
	default:
		return "very_high"
	}
}

// coerceNumeric rewrites a column's cells as float64, turning unparseable
// values into missing cells.
func (c *Chain) coerceNumeric(col string) {
	for i := 0; i < c.ds.Len(); i++ {
		v := c.ds.At(i, col)
		if v == nil {
			continue
		}
		if f, ok := dataset.CoerceFloat(v); ok {
			c.ds.Set(i, col, f)
		} else {
			c.ds.Set(i, col, nil)
		}
	}
}
