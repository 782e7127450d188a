package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/open-data-pipeline/catalog-ingress/pkg/dataset"
	"github.com/open-data-pipeline/catalog-ingress/pkg/model"
)

// openTestStore uses a file-backed SQLite database. An in-memory DSN would
// give every pooled connection its own empty database.
func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "store.db")
	s, err := Open(context.Background(), "sqlite", dsn, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleDataset(t *testing.T) *dataset.Dataset {
	t.Helper()
	ds := dataset.New([]string{
		"code", "product_name", "brands", "sugars_100g",
		"geocoding_score", "is_geocoded", "custom_field",
	})
	ds.Append(dataset.Row{
		"code": "001", "product_name": "noir 70%", "brands": "lindt",
		"sugars_100g": 22.5, "geocoding_score": 0.9, "is_geocoded": true,
		"custom_field": "kept",
	})
	ds.Append(dataset.Row{
		"code": "002", "product_name": nil, "brands": "milka",
		"sugars_100g": nil, "geocoding_score": nil, "is_geocoded": false,
		"custom_field": nil,
	})
	return ds
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := Open(context.Background(), "mysql", "dsn", zap.NewNop()); err == nil {
		t.Fatal("expected error for unsupported driver")
	}
}

func TestWriteDatasetAndLoadKnownIDs(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	known, err := s.LoadKnownIDs(ctx, "chocolats")
	if err != nil {
		t.Fatal(err)
	}
	if known.Len() != 0 {
		t.Fatalf("expected empty set on fresh store, got %d", known.Len())
	}

	location, err := s.WriteDataset(ctx, sampleDataset(t), "chocolats", "run-1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(location, "run=run-1") || !strings.HasPrefix(location, "sqlite://") {
		t.Errorf("unexpected location: %s", location)
	}

	known, err = s.LoadKnownIDs(ctx, "chocolats")
	if err != nil {
		t.Fatal(err)
	}
	if known.Len() != 2 || !known.Contains("001") || !known.Contains("002") {
		t.Fatalf("unexpected known set after write: %v", known)
	}

	// A different category sees none of them.
	other, err := s.LoadKnownIDs(ctx, "biscuits")
	if err != nil {
		t.Fatal(err)
	}
	if other.Len() != 0 {
		t.Fatalf("category isolation broken: %v", other)
	}
}

func TestWriteDatasetPersistsValuesAndExtras(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.WriteDataset(ctx, sampleDataset(t), "chocolats", "run-1"); err != nil {
		t.Fatal(err)
	}

	var row struct {
		ProductName    *string  `db:"product_name"`
		Sugars         *float64 `db:"sugars_100g"`
		GeocodingScore *float64 `db:"geocoding_score"`
		IsGeocoded     *bool    `db:"is_geocoded"`
		Extras         *string  `db:"extras"`
	}
	query := s.db.Rebind(`
		SELECT product_name, sugars_100g, geocoding_score, is_geocoded, extras
		FROM products WHERE code = ?`)

	if err := s.db.GetContext(ctx, &row, query, "001"); err != nil {
		t.Fatal(err)
	}
	if row.ProductName == nil || *row.ProductName != "noir 70%" {
		t.Errorf("product_name = %v", row.ProductName)
	}
	if row.Sugars == nil || *row.Sugars != 22.5 {
		t.Errorf("sugars_100g = %v", row.Sugars)
	}
	if row.IsGeocoded == nil || !*row.IsGeocoded {
		t.Errorf("is_geocoded = %v", row.IsGeocoded)
	}
	if row.Extras == nil {
		t.Fatal("expected extras JSON")
	}
	var extras map[string]any
	if err := json.Unmarshal([]byte(*row.Extras), &extras); err != nil {
		t.Fatal(err)
	}
	if extras["custom_field"] != "kept" {
		t.Errorf("extras = %v", extras)
	}

	if err := s.db.GetContext(ctx, &row, query, "002"); err != nil {
		t.Fatal(err)
	}
	if row.ProductName != nil || row.Sugars != nil || row.GeocodingScore != nil {
		t.Errorf("missing cells should persist as NULL: %+v", row)
	}
	if row.Extras != nil {
		t.Errorf("row without extra values should have NULL extras, got %v", *row.Extras)
	}
}

func TestWriteDatasetNil(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.WriteDataset(context.Background(), nil, "chocolats", "run-1"); err == nil {
		t.Fatal("expected error for nil dataset")
	}
}

func TestSaveRawJSON(t *testing.T) {
	records := []model.Record{
		{Code: "001", Stores: "Carrefour", Extra: map[string]any{"brands": "lindt"}},
		{Code: "002", Extra: map[string]any{}},
	}

	dir := t.TempDir()
	path, err := SaveRawJSON(records, dir, "raw_chocolats")
	if err != nil {
		t.Fatal(err)
	}

	body, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	var rows []map[string]any
	if err := json.Unmarshal(body, &rows); err != nil {
		t.Fatal(err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0]["code"] != "001" || rows[0]["stores"] != "Carrefour" || rows[0]["brands"] != "lindt" {
		t.Errorf("unexpected first row: %v", rows[0])
	}
	if _, ok := rows[1]["stores"]; ok {
		t.Error("empty stores field should be omitted from the snapshot")
	}
}
