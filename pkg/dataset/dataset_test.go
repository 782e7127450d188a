package dataset

import (
	"math"
	"testing"

	"github.com/open-data-pipeline/catalog-ingress/pkg/model"
)

func TestFromRecordsColumnOrder(t *testing.T) {
	recs := []model.Record{
		{Code: "001", Stores: "Carrefour", Extra: map[string]any{
			"sugars_100g": 12.0,
			"zeta_field":  "x",
			"alpha_field": "y",
		}},
		{Code: "002", Extra: map[string]any{"brands": "acme"}},
	}
	ds := FromRecords(recs)

	cols := ds.Columns()
	want := []string{"code", "brands", "stores", "sugars_100g", "alpha_field", "zeta_field"}
	if len(cols) != len(want) {
		t.Fatalf("expected %d columns, got %v", len(want), cols)
	}
	for i, c := range want {
		if cols[i] != c {
			t.Fatalf("column %d: expected %q, got %q (all: %v)", i, c, cols[i], cols)
		}
	}

	if ds.At(1, "stores") != nil {
		t.Errorf("missing stores should read as nil")
	}
}

func TestCloneDoesNotAlias(t *testing.T) {
	ds := New([]string{"code", "value"})
	ds.Append(Row{"code": "001", "value": 1.0})

	cp := ds.Clone()
	cp.Set(0, "value", 99.0)

	if got, _ := AsFloat(ds.At(0, "value")); got != 1.0 {
		t.Fatalf("clone mutation leaked into original: %v", got)
	}
}

func TestNumericAndTextColumnInference(t *testing.T) {
	ds := New([]string{"code", "value", "mixed", "empty"})
	ds.Append(Row{"code": "001", "value": 1.0, "mixed": "12", "empty": nil})
	ds.Append(Row{"code": "002", "value": nil, "mixed": 3.0, "empty": nil})

	num := ds.NumericColumns()
	if len(num) != 1 || num[0] != "value" {
		t.Fatalf("expected [value], got %v", num)
	}

	text := ds.TextColumns()
	if len(text) != 2 || text[0] != "code" || text[1] != "mixed" {
		t.Fatalf("expected [code mixed], got %v", text)
	}
}

func TestFilterRemovesAndPreservesOrder(t *testing.T) {
	ds := New([]string{"v"})
	for _, v := range []float64{1, 2, 3, 4} {
		ds.Append(Row{"v": v})
	}
	removed := ds.Filter(func(r Row) bool {
		f, _ := AsFloat(r["v"])
		return f != 2
	})
	if removed != 1 || ds.Len() != 3 {
		t.Fatalf("expected 1 removed / 3 left, got %d / %d", removed, ds.Len())
	}
	if f, _ := AsFloat(ds.At(1, "v")); f != 3 {
		t.Fatalf("order not preserved: %v", f)
	}
}

func TestCoerceFloat(t *testing.T) {
	cases := []struct {
		in   any
		want float64
		ok   bool
	}{
		{"12.5", 12.5, true},
		{" 7 ", 7, true},
		{3, 3, true},
		{4.5, 4.5, true},
		{"not a number", 0, false},
		{"", 0, false},
		{nil, 0, false},
		{true, 0, false},
	}
	for _, tc := range cases {
		got, ok := CoerceFloat(tc.in)
		if ok != tc.ok || (ok && got != tc.want) {
			t.Errorf("CoerceFloat(%v) = %v,%v; want %v,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestQuantileLinearInterpolation(t *testing.T) {
	values := []float64{1, 2, 3, 4}
	if q := Quantile(values, 0.25); q != 1.75 {
		t.Errorf("Q1 = %v, want 1.75", q)
	}
	if q := Quantile(values, 0.75); q != 3.25 {
		t.Errorf("Q3 = %v, want 3.25", q)
	}
	if m := Median([]float64{10, 10, 100}); m != 10 {
		t.Errorf("median = %v, want 10", m)
	}
	if !math.IsNaN(Quantile(nil, 0.5)) {
		t.Error("empty quantile should be NaN")
	}
}

func TestStdSampleDeviation(t *testing.T) {
	got := Std([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	want := 2.138089935299395 // n-1 denominator
	if math.Abs(got-want) > 1e-12 {
		t.Fatalf("std = %v, want %v", got, want)
	}
	if !math.IsNaN(Std([]float64{1})) {
		t.Error("std of one value should be NaN")
	}
}
