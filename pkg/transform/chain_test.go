package transform

import (
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/open-data-pipeline/catalog-ingress/pkg/dataset"
)

func buildDataset(t *testing.T, columns []string, rows ...[]any) *dataset.Dataset {
	t.Helper()
	ds := dataset.New(columns)
	for _, vals := range rows {
		row := make(dataset.Row, len(columns))
		for i, col := range columns {
			row[col] = vals[i]
		}
		ds.Append(row)
	}
	return ds
}

func newChain(t *testing.T, ds *dataset.Dataset) *Chain {
	t.Helper()
	c, err := New(ds, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestRemoveDuplicatesKeepsFirst(t *testing.T) {
	ds := buildDataset(t, []string{"code", "brands"},
		[]any{"001", "first"},
		[]any{"002", "second"},
		[]any{"001", "shadowed"},
		[]any{"003", "third"},
	)

	chain := newChain(t, ds).RemoveDuplicates("code")
	out := chain.Result()
	if out.Len() != 3 {
		t.Fatalf("expected 3 rows, got %d", out.Len())
	}
	if out.At(0, "brands") != "first" {
		t.Errorf("expected first occurrence kept, got %v", out.At(0, "brands"))
	}
	if out.At(2, "code") != "003" {
		t.Errorf("expected original order preserved, got %v", out.At(2, "code"))
	}

	// Re-running over the already-deduplicated data changes nothing.
	again := newChain(t, out).RemoveDuplicates("code").Result()
	if again.Len() != 3 {
		t.Fatalf("expected idempotent dedup, got %d rows", again.Len())
	}

	if ds.Len() != 4 {
		t.Fatal("input dataset was mutated")
	}
}

func TestRemoveDuplicatesDefaultsToCode(t *testing.T) {
	ds := buildDataset(t, []string{"brands", "code"},
		[]any{"a", "001"},
		[]any{"b", "001"},
	)
	out := newChain(t, ds).RemoveDuplicates().Result()
	if out.Len() != 1 {
		t.Fatalf("expected dedup on code column, got %d rows", out.Len())
	}
}

func TestHandleMissingValuesMedianAndText(t *testing.T) {
	ds := buildDataset(t, []string{"code", "sugars_100g", "brands"},
		[]any{"001", 10.0, "Brand"},
		[]any{"002", nil, nil},
		[]any{"003", "10", "Other"},
		[]any{"004", 100.0, nil},
	)

	chain := newChain(t, ds).HandleMissingValues(StrategyMedian, "unknown")
	out := chain.Result()

	// Median of [10, 10, 100] is 10; the string "10" must be coerced first.
	if got := out.At(1, "sugars_100g"); got != 10.0 {
		t.Errorf("expected median fill 10, got %v", got)
	}
	if got := out.At(2, "sugars_100g"); got != 10.0 {
		t.Errorf("expected coerced value 10, got %v", got)
	}
	if got := out.At(1, "brands"); got != "unknown" {
		t.Errorf("expected text fill, got %v", got)
	}
	if got := out.At(0, "brands"); got != "Brand" {
		t.Errorf("present text value changed: %v", got)
	}

	log := chain.Log()
	if len(log) != 2 {
		t.Fatalf("expected 2 log entries, got %v", log)
	}
	if !strings.Contains(log[0], "sugars_100g: 1 nulls -> 10.00") {
		t.Errorf("unexpected numeric log entry: %q", log[0])
	}
	if !strings.Contains(log[1], `brands: 2 nulls -> "unknown"`) {
		t.Errorf("unexpected text log entry: %q", log[1])
	}
}

func TestHandleMissingValuesZeroStrategy(t *testing.T) {
	ds := buildDataset(t, []string{"fat_100g"},
		[]any{3.5},
		[]any{nil},
	)
	out := newChain(t, ds).HandleMissingValues(StrategyZero, "unknown").Result()
	if got := out.At(1, "fat_100g"); got != 0.0 {
		t.Fatalf("expected zero fill, got %v", got)
	}
}

func TestNormalizeTextColumns(t *testing.T) {
	ds := buildDataset(t, []string{"code", "brands", "stores"},
		[]any{"001", "  Carrefour BIO ", "AUCHAN"},
		[]any{"002", "Lindt", nil},
	)

	chain := newChain(t, ds).NormalizeTextColumns("brands", "stores", "absent")
	out := chain.Result()
	if got := out.At(0, "brands"); got != "carrefour bio" {
		t.Errorf("expected trimmed lowercase, got %v", got)
	}
	if got := out.At(0, "stores"); got != "auchan" {
		t.Errorf("expected lowercase, got %v", got)
	}
	if out.At(1, "stores") != nil {
		t.Error("nil cell should stay nil")
	}
	if got := chain.Log()[0]; !strings.Contains(got, "brands, stores") || strings.Contains(got, "absent") {
		t.Errorf("unexpected log entry: %q", got)
	}
}

func TestFilterOutliersIQR(t *testing.T) {
	ds := buildDataset(t, []string{"code", "energy_100g"},
		[]any{"001", 10.0},
		[]any{"002", 12.0},
		[]any{"003", 11.0},
		[]any{"004", 13.0},
		[]any{"005", 500.0},
		[]any{"006", nil},
	)

	chain := newChain(t, ds).FilterOutliers([]string{"energy_100g"}, MethodIQR, 1.5)
	out := chain.Result()
	if out.Len() != 4 {
		t.Fatalf("expected 4 rows after filtering, got %d", out.Len())
	}
	for i := 0; i < out.Len(); i++ {
		if out.At(i, "code") == "005" {
			t.Fatal("outlier row survived")
		}
		// Rows missing the probed value are removed too.
		if out.At(i, "code") == "006" {
			t.Fatal("row with missing value survived")
		}
	}
	if got := chain.Log()[0]; !strings.Contains(got, "outliers filtered (iqr): 2") {
		t.Errorf("unexpected log entry: %q", got)
	}
}

func TestFilterOutliersZScore(t *testing.T) {
	ds := buildDataset(t, []string{"salt_100g"},
		[]any{1.0}, []any{1.1}, []any{0.9}, []any{1.0}, []any{50.0},
	)
	out := newChain(t, ds).FilterOutliers([]string{"salt_100g"}, MethodZScore, 1.5).Result()
	if out.Len() != 4 {
		t.Fatalf("expected 4 rows, got %d", out.Len())
	}
}

func TestFilterOutliersMissingColumnIsNoOp(t *testing.T) {
	ds := buildDataset(t, []string{"code"}, []any{"001"})
	chain := newChain(t, ds).FilterOutliers([]string{"energy_100g"}, MethodIQR, 1.5)
	if chain.Result().Len() != 1 || len(chain.Log()) != 0 {
		t.Fatal("filtering an absent column should change nothing")
	}
}

func TestAddDerivedColumns(t *testing.T) {
	ds := buildDataset(t, []string{"code", "sugars_100g", "geocoding_score"},
		[]any{"001", 3.0, 0.92},
		[]any{"002", 12.0, 0.3},
		[]any{"003", 25.0, nil},
		[]any{"004", 60.0, 0.5},
		[]any{"005", nil, 0.0},
	)

	chain := newChain(t, ds).AddDerivedColumns()
	out := chain.Result()

	wantSugar := []any{"low", "moderate", "high", "very_high", nil}
	for i, want := range wantSugar {
		if got := out.At(i, "sugar_category"); got != want {
			t.Errorf("row %d sugar_category = %v, want %v", i, got, want)
		}
	}
	wantGeo := []any{true, false, false, true, false}
	for i, want := range wantGeo {
		if got := out.At(i, "is_geocoded"); got != want {
			t.Errorf("row %d is_geocoded = %v, want %v", i, got, want)
		}
	}

	log := chain.Log()
	if len(log) != 2 || !strings.Contains(log[0], "sugar_category") || !strings.Contains(log[1], "is_geocoded") {
		t.Fatalf("unexpected log: %v", log)
	}
}

func TestAddDerivedColumnsWithoutSources(t *testing.T) {
	ds := buildDataset(t, []string{"code"}, []any{"001"})
	out := newChain(t, ds).AddDerivedColumns().Result()
	if out.HasColumn("sugar_category") || out.HasColumn("is_geocoded") {
		t.Fatal("derived columns added without their source columns")
	}
}

func TestChainedRecipeOrderAndLog(t *testing.T) {
	ds := buildDataset(t, []string{"code", "sugars_100g", "brands"},
		[]any{"001", 4.0, " Lindt "},
		[]any{"001", 4.0, "dup"},
		[]any{"002", nil, nil},
	)

	chain := newChain(t, ds).
		RemoveDuplicates("code").
		HandleMissingValues(StrategyMedian, "unknown").
		NormalizeTextColumns("brands").
		AddDerivedColumns()

	out := chain.Result()
	if out.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", out.Len())
	}
	if got := out.At(0, "brands"); got != "lindt" {
		t.Errorf("expected normalized brand, got %v", got)
	}
	if got := out.At(1, "sugars_100g"); got != 4.0 {
		t.Errorf("expected median fill 4, got %v", got)
	}
	if got := out.At(1, "sugar_category"); got != "low" {
		t.Errorf("expected derived category over filled value, got %v", got)
	}

	log := chain.Log()
	if len(log) == 0 || !strings.Contains(log[0], "duplicates removed") {
		t.Fatalf("expected dedup logged first, got %v", log)
	}
}
