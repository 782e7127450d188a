// pkg/store/store.go
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/open-data-pipeline/catalog-ingress/pkg/dataset"
	"github.com/open-data-pipeline/catalog-ingress/pkg/ingest"
	"github.com/open-data-pipeline/catalog-ingress/pkg/model"
)

// Store persists cleaned product tables and serves known identifiers for
// incremental runs. The default backend is an embedded SQLite file; a
// Postgres DSN works unchanged through sqlx rebinding.
type Store struct {
	db     *sqlx.DB
	driver string
	logger *zap.Logger
}

// textColumns and floatColumns are the stable dashboard-facing columns of
// the products table. Anything else a record carries lands in extras JSON.
var textColumns = []string{
	model.FieldProductName,
	model.FieldBrands,
	model.FieldCategories,
	model.FieldStores,
	model.FieldNutriscoreGrade,
	"sugar_category",
	model.FieldStoreAddress,
	model.FieldCity,
	model.FieldPostalCode,
}

var floatColumns = []string{
	model.FieldNovaGroup,
	model.FieldEnergy,
	model.FieldSugars,
	model.FieldFat,
	model.FieldSalt,
	model.FieldLatitude,
	model.FieldLongitude,
	model.FieldGeocodingScore,
}

const schema = `
CREATE TABLE IF NOT EXISTS products (
	category         TEXT NOT NULL,
	run_id           TEXT NOT NULL,
	code             TEXT NOT NULL,
	product_name     TEXT,
	brands           TEXT,
	categories       TEXT,
	stores           TEXT,
	nutriscore_grade TEXT,
	nova_group       REAL,
	energy_100g      REAL,
	sugars_100g      REAL,
	fat_100g         REAL,
	salt_100g        REAL,
	sugar_category   TEXT,
	store_address    TEXT,
	latitude         REAL,
	longitude        REAL,
	city             TEXT,
	postal_code      TEXT,
	geocoding_score  REAL,
	is_geocoded      BOOLEAN,
	extras           TEXT,
	created_at       TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)
`

// Open connects to the backing database and ensures the products table
// exists. Supported drivers: "sqlite" and "postgres".
func Open(ctx context.Context, driver, dsn string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if driver != "sqlite" && driver != "postgres" {
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", driver, err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s store: %w", driver, err)
	}

	s := &Store{db: db, driver: driver, logger: logger}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ensure products table: %w", err)
	}

	logger.Info("Store opened", zap.String("driver", driver))
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error { return s.db.Close() }

// LoadKnownIDs returns the set of codes already persisted for a category.
func (s *Store) LoadKnownIDs(ctx context.Context, category string) (ingest.IdentitySet, error) {
	query := s.db.Rebind(`SELECT DISTINCT code FROM products WHERE category = ?`)
	rows, err := s.db.QueryxContext(ctx, query, category)
	if err != nil {
		return nil, fmt.Errorf("failed to load known ids: %w", err)
	}
	defer rows.Close()

	known := ingest.NewIdentitySet()
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("failed to scan code: %w", err)
		}
		known.Add(code)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating known ids: %w", err)
	}

	s.logger.Info("Loaded known identifiers",
		zap.String("category", category),
		zap.Int("count", known.Len()))
	return known, nil
}

// WriteDataset persists the cleaned table for one run inside a single
// transaction and verifies the written row count afterwards, so a failed run
// never leaves a partial dataset behind. Returns a location string.
func (s *Store) WriteDataset(ctx context.Context, ds *dataset.Dataset, category, runID string) (string, error) {
	if ds == nil {
		return "", errors.New("dataset cannot be nil")
	}

	insert := s.db.Rebind(`
		INSERT INTO products
		(category, run_id, code, product_name, brands, categories, stores,
		 nutriscore_grade, nova_group, energy_100g, sugars_100g, fat_100g,
		 salt_100g, sugar_category, store_address, latitude, longitude, city,
		 postal_code, geocoding_score, is_geocoded, extras)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PreparexContext(ctx, insert)
	if err != nil {
		return "", fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for i := 0; i < ds.Len(); i++ {
		args, err := rowArgs(ds, i, category, runID)
		if err != nil {
			return "", fmt.Errorf("failed to encode row %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return "", fmt.Errorf("failed to insert row %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("failed to commit dataset: %w", err)
	}

	if err := s.verifyWrite(ctx, runID, ds.Len()); err != nil {
		return "", err
	}

	location := fmt.Sprintf("%s://products?category=%s&run=%s", s.driver, category, runID)
	s.logger.Info("Dataset persisted",
		zap.String("category", category),
		zap.String("run_id", runID),
		zap.Int("rows", ds.Len()))
	return location, nil
}

// verifyWrite checks that the persisted row count matches the dataset.
func (s *Store) verifyWrite(ctx context.Context, runID string, want int) error {
	query := s.db.Rebind(`SELECT COUNT(*) FROM products WHERE run_id = ?`)
	var got int
	if err := s.db.GetContext(ctx, &got, query, runID); err != nil {
		return fmt.Errorf("failed to verify write: %w", err)
	}
	if got != want {
		return fmt.Errorf("write verification failed: wrote %d rows, found %d", want, got)
	}
	return nil
}

// rowArgs flattens one dataset row into insert arguments matching the insert
// column order. Missing cells become SQL NULLs; columns outside the fixed
// dashboard set are packed into extras JSON.
func rowArgs(ds *dataset.Dataset, i int, category, runID string) ([]any, error) {
	row := ds.Row(i)

	text := func(col string) any {
		if v := row[col]; v != nil {
			return dataset.ToString(v)
		}
		return nil
	}
	num := func(col string) any {
		if f, ok := dataset.AsFloat(row[col]); ok {
			return f
		}
		return nil
	}

	var isGeocoded any
	if b, ok := row["is_geocoded"].(bool); ok {
		isGeocoded = b
	}

	fixed := map[string]struct{}{model.FieldCode: {}, "is_geocoded": {}}
	for _, col := range textColumns {
		fixed[col] = struct{}{}
	}
	for _, col := range floatColumns {
		fixed[col] = struct{}{}
	}

	extras := make(map[string]any)
	for _, col := range ds.Columns() {
		if _, ok := fixed[col]; ok {
			continue
		}
		if v := row[col]; v != nil {
			extras[col] = v
		}
	}
	var extrasJSON any
	if len(extras) > 0 {
		encoded, err := json.Marshal(extras)
		if err != nil {
			return nil, err
		}
		extrasJSON = string(encoded)
	}

	return []any{
		category,
		runID,
		dataset.ToString(row[model.FieldCode]),
		text(model.FieldProductName),
		text(model.FieldBrands),
		text(model.FieldCategories),
		text(model.FieldStores),
		text(model.FieldNutriscoreGrade),
		num(model.FieldNovaGroup),
		num(model.FieldEnergy),
		num(model.FieldSugars),
		num(model.FieldFat),
		num(model.FieldSalt),
		text("sugar_category"),
		text(model.FieldStoreAddress),
		num(model.FieldLatitude),
		num(model.FieldLongitude),
		text(model.FieldCity),
		text(model.FieldPostalCode),
		num(model.FieldGeocodingScore),
		isGeocoded,
		extrasJSON,
	}, nil
}

// SaveRawJSON writes a safety snapshot of the raw record batch before any
// transformation touches it. Returns the file path.
func SaveRawJSON(records []model.Record, dir, name string) (string, error) {
	rows := make([]map[string]any, 0, len(records))
	for _, rec := range records {
		rows = append(rows, rec.Row())
	}
	encoded, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode raw snapshot: %w", err)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.json", name, time.Now().Format("20060102_150405")))
	if err := os.WriteFile(path, encoded, 0o644); err != nil {
		return "", fmt.Errorf("failed to write raw snapshot: %w", err)
	}
	return path, nil
}
