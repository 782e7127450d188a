// pkg/fetch/catalog.go
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/open-data-pipeline/catalog-ingress/pkg/dataset"
	"github.com/open-data-pipeline/catalog-ingress/pkg/model"
)

// CatalogSource provides raw product records for a category. Implementations
// may return fewer records than requested; the pipeline never assumes
// per-code filtering support upstream.
type CatalogSource interface {
	Fetch(ctx context.Context, category string, maxItems int) ([]model.Record, error)
}

// CatalogStats counts the requests issued during a fetch.
type CatalogStats struct {
	Requests int
	Fetched  int
	Skipped  int // products without a usable code
}

// projectedFields is the column set requested from the catalog API.
var projectedFields = []string{
	model.FieldCode,
	model.FieldProductName,
	model.FieldBrands,
	model.FieldCategories,
	model.FieldStores,
	model.FieldNutriscoreGrade,
	model.FieldNovaGroup,
	model.FieldEnergy,
	model.FieldSugars,
	model.FieldFat,
	model.FieldSalt,
}

// OpenFoodFactsConfig holds settings for the catalog client.
type OpenFoodFactsConfig struct {
	BaseURL   string // default https://world.openfoodfacts.org
	PageSize  int    // default 50
	UserAgent string
	Timeout   time.Duration // per-request timeout, default 30s
}

// OpenFoodFacts fetches product records from the OpenFoodFacts search API.
type OpenFoodFacts struct {
	client    *http.Client
	baseURL   string
	pageSize  int
	userAgent string
	logger    *zap.Logger
	stats     CatalogStats
}

// NewOpenFoodFacts creates a catalog client.
func NewOpenFoodFacts(cfg OpenFoodFactsConfig, logger *zap.Logger) (*OpenFoodFacts, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://world.openfoodfacts.org"
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "catalog-ingress/1.0"
	}

	return &OpenFoodFacts{
		client:    &http.Client{Timeout: cfg.Timeout},
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		pageSize:  cfg.PageSize,
		userAgent: cfg.UserAgent,
		logger:    logger,
	}, nil
}

type searchResponse struct {
	Products []map[string]any `json:"products"`
	Count    int              `json:"count"`
}

// Fetch retrieves up to maxItems records for a category, paging through the
// search endpoint until the API runs dry or the bound is reached.
func (o *OpenFoodFacts) Fetch(ctx context.Context, category string, maxItems int) ([]model.Record, error) {
	if maxItems <= 0 {
		return nil, nil
	}

	records := make([]model.Record, 0, maxItems)
	for page := 1; len(records) < maxItems; page++ {
		batch, err := o.fetchPage(ctx, category, page)
		if err != nil {
			return nil, fmt.Errorf("failed to fetch page %d: %w", page, err)
		}
		if len(batch) == 0 {
			break
		}

		for _, raw := range batch {
			rec, ok := recordFromProduct(raw)
			if !ok {
				o.stats.Skipped++
				continue
			}
			records = append(records, rec)
			if len(records) >= maxItems {
				break
			}
		}
	}

	o.stats.Fetched = len(records)
	o.logger.Info("Catalog fetch completed",
		zap.String("category", category),
		zap.Int("records", len(records)),
		zap.Int("requests", o.stats.Requests),
		zap.Int("skipped", o.stats.Skipped))

	return records, nil
}

func (o *OpenFoodFacts) fetchPage(ctx context.Context, category string, page int) ([]map[string]any, error) {
	q := url.Values{}
	q.Set("search_terms", category)
	q.Set("search_simple", "1")
	q.Set("action", "process")
	q.Set("json", "1")
	q.Set("page", fmt.Sprintf("%d", page))
	q.Set("page_size", fmt.Sprintf("%d", o.pageSize))
	q.Set("fields", strings.Join(projectedFields, ","))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+"/cgi/search.pl?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", o.userAgent)

	o.stats.Requests++
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("catalog API returned status %d", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}
	return parsed.Products, nil
}

// Stats returns the request counters for the last fetch.
func (o *OpenFoodFacts) Stats() CatalogStats { return o.stats }

// recordFromProduct converts a raw API product into a Record. Products
// without a code are unusable downstream and are dropped.
func recordFromProduct(raw map[string]any) (model.Record, bool) {
	code := dataset.ToString(raw[model.FieldCode])
	if code == "" {
		return model.Record{}, false
	}

	rec := model.Record{
		Code:  code,
		Extra: make(map[string]any, len(raw)),
	}
	for k, v := range raw {
		switch k {
		case model.FieldCode:
			// already captured
		case model.FieldStores:
			if s, ok := dataset.AsString(v); ok {
				rec.Stores = strings.TrimSpace(s)
			}
		default:
			rec.Extra[k] = v
		}
	}
	return rec, true
}
