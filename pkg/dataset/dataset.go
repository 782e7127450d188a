// pkg/dataset/dataset.go
package dataset

import (
	"sort"

	"github.com/open-data-pipeline/catalog-ingress/pkg/model"
)

// Row is a single tabular row. A missing cell is a nil value or an absent key;
// both read back as nil through At.
type Row map[string]any

// Dataset is an ordered-column table. Column order is stable across
// operations so downstream consumers see predictable output.
type Dataset struct {
	columns []string
	index   map[string]struct{}
	rows    []Row
}

// New creates an empty dataset with the given column order.
func New(columns []string) *Dataset {
	d := &Dataset{
		columns: make([]string, 0, len(columns)),
		index:   make(map[string]struct{}, len(columns)),
	}
	for _, c := range columns {
		d.AddColumn(c)
	}
	return d
}

// FromRecords builds a dataset from a record batch. Well-known fields keep
// their preferred order; unknown passthrough fields follow, sorted by name
// so the layout is deterministic regardless of map iteration order.
func FromRecords(records []model.Record) *Dataset {
	present := make(map[string]struct{})
	rows := make([]Row, 0, len(records))
	for _, rec := range records {
		row := Row(rec.Row())
		for k := range row {
			present[k] = struct{}{}
		}
		rows = append(rows, row)
	}

	d := New(nil)
	for _, c := range model.PreferredColumnOrder {
		if _, ok := present[c]; ok {
			d.AddColumn(c)
			delete(present, c)
		}
	}
	extras := make([]string, 0, len(present))
	for c := range present {
		extras = append(extras, c)
	}
	sort.Strings(extras)
	for _, c := range extras {
		d.AddColumn(c)
	}

	d.rows = rows
	return d
}

// Len returns the number of rows.
func (d *Dataset) Len() int { return len(d.rows) }

// Columns returns a copy of the column order.
func (d *Dataset) Columns() []string {
	out := make([]string, len(d.columns))
	copy(out, d.columns)
	return out
}

// HasColumn reports whether the column exists.
func (d *Dataset) HasColumn(name string) bool {
	_, ok := d.index[name]
	return ok
}

// AddColumn appends a column to the ordering. No-op if already present.
func (d *Dataset) AddColumn(name string) {
	if _, ok := d.index[name]; ok {
		return
	}
	d.columns = append(d.columns, name)
	d.index[name] = struct{}{}
}

// Append adds a row. Keys not yet in the column order are appended to it in
// sorted order.
func (d *Dataset) Append(row Row) {
	missing := make([]string, 0)
	for k := range row {
		if !d.HasColumn(k) {
			missing = append(missing, k)
		}
	}
	sort.Strings(missing)
	for _, k := range missing {
		d.AddColumn(k)
	}
	d.rows = append(d.rows, row)
}

// At returns the cell value at row i, or nil when missing.
func (d *Dataset) At(i int, col string) any {
	return d.rows[i][col]
}

// Set writes a cell value, registering the column if needed.
func (d *Dataset) Set(i int, col string, v any) {
	d.AddColumn(col)
	if d.rows[i] == nil {
		d.rows[i] = make(Row)
	}
	d.rows[i][col] = v
}

// Row returns the i-th row map. Callers must not retain it across mutations.
func (d *Dataset) Row(i int) Row { return d.rows[i] }

// Filter keeps only rows for which keep returns true, preserving order, and
// returns the number of rows removed.
func (d *Dataset) Filter(keep func(Row) bool) int {
	kept := d.rows[:0]
	for _, row := range d.rows {
		if keep(row) {
			kept = append(kept, row)
		}
	}
	removed := len(d.rows) - len(kept)
	d.rows = kept
	return removed
}

// Clone returns a deep copy; mutations on the copy never alias the original.
func (d *Dataset) Clone() *Dataset {
	out := New(d.columns)
	out.rows = make([]Row, len(d.rows))
	for i, row := range d.rows {
		cp := make(Row, len(row))
		for k, v := range row {
			cp[k] = v
		}
		out.rows[i] = cp
	}
	return out
}

// NullCount returns the number of missing cells in a column.
func (d *Dataset) NullCount(col string) int {
	n := 0
	for _, row := range d.rows {
		if row[col] == nil {
			n++
		}
	}
	return n
}

// NonNullCells returns the count of present cells across all columns.
func (d *Dataset) NonNullCells() int {
	n := 0
	for _, row := range d.rows {
		for _, col := range d.columns {
			if row[col] != nil {
				n++
			}
		}
	}
	return n
}

// CellCount returns rows x columns.
func (d *Dataset) CellCount() int {
	return len(d.rows) * len(d.columns)
}

// NumericColumns returns columns whose non-missing values are all numeric.
// Columns with no values at all are not considered numeric.
func (d *Dataset) NumericColumns() []string {
	out := make([]string, 0, len(d.columns))
	for _, col := range d.columns {
		if d.isNumeric(col) {
			out = append(out, col)
		}
	}
	return out
}

// TextColumns returns columns with at least one value that are not numeric.
func (d *Dataset) TextColumns() []string {
	out := make([]string, 0, len(d.columns))
	for _, col := range d.columns {
		if !d.isNumeric(col) && d.NullCount(col) < d.Len() {
			out = append(out, col)
		}
	}
	return out
}

func (d *Dataset) isNumeric(col string) bool {
	seen := false
	for _, row := range d.rows {
		v := row[col]
		if v == nil {
			continue
		}
		if _, ok := AsFloat(v); !ok {
			return false
		}
		seen = true
	}
	return seen
}

// FloatColumn collects the non-missing numeric values of a column in row
// order. Non-numeric cells are skipped.
func (d *Dataset) FloatColumn(col string) []float64 {
	out := make([]float64, 0, len(d.rows))
	for _, row := range d.rows {
		if f, ok := AsFloat(row[col]); ok {
			out = append(out, f)
		}
	}
	return out
}
