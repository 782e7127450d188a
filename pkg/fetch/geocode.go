// pkg/fetch/geocode.go
package fetch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/open-data-pipeline/catalog-ingress/pkg/model"
)

// GeocodingService resolves a free-text address or store name. Resolve never
// returns an error: a failed lookup is a zero-score invalid result, degraded
// data rather than an aborted run.
type GeocodingService interface {
	Resolve(ctx context.Context, address string) model.GeocodingResult
}

// GeocodeStats counts lookups issued by the client.
type GeocodeStats struct {
	Requests int
	Failures int
}

// AdresseConfig holds settings for the geocoding client.
type AdresseConfig struct {
	BaseURL   string        // default https://api-adresse.data.gouv.fr
	RateLimit float64       // requests per second, default 10
	Timeout   time.Duration // per-request timeout, default 10s
}

// Adresse geocodes against the French national address API. Lookups are
// gated by a rate limiter so a large unique-address set stays polite.
type Adresse struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter
	logger  *zap.Logger

	mu    sync.Mutex
	stats GeocodeStats
}

// NewAdresse creates a geocoding client.
func NewAdresse(cfg AdresseConfig, logger *zap.Logger) (*Adresse, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api-adresse.data.gouv.fr"
	}
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 10
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &Adresse{
		client:  &http.Client{Timeout: cfg.Timeout},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		limiter: rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		logger:  logger,
	}, nil
}

type adresseResponse struct {
	Features []struct {
		Properties struct {
			Label    string  `json:"label"`
			Score    float64 `json:"score"`
			City     string  `json:"city"`
			Postcode string  `json:"postcode"`
		} `json:"properties"`
		Geometry struct {
			Coordinates []float64 `json:"coordinates"` // [lon, lat]
		} `json:"geometry"`
	} `json:"features"`
}

// Resolve geocodes one address. The first feature wins.
func (a *Adresse) Resolve(ctx context.Context, address string) model.GeocodingResult {
	result := model.GeocodingResult{OriginalAddress: address}

	trimmed := strings.TrimSpace(address)
	if trimmed == "" {
		return result
	}

	if err := a.limiter.Wait(ctx); err != nil {
		a.recordFailure()
		return result
	}

	q := url.Values{}
	q.Set("q", trimmed)
	q.Set("limit", "1")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+"/search/?"+q.Encode(), nil)
	if err != nil {
		a.recordFailure()
		return result
	}

	a.mu.Lock()
	a.stats.Requests++
	a.mu.Unlock()

	resp, err := a.client.Do(req)
	if err != nil {
		a.logger.Debug("Geocoding request failed",
			zap.String("address", trimmed),
			zap.Error(err))
		a.recordFailure()
		return result
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		a.recordFailure()
		return result
	}

	var parsed adresseResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		a.recordFailure()
		return result
	}
	if len(parsed.Features) == 0 {
		a.recordFailure()
		return result
	}

	f := parsed.Features[0]
	result.Label = f.Properties.Label
	result.Score = f.Properties.Score
	result.City = f.Properties.City
	result.PostalCode = f.Properties.Postcode
	if len(f.Geometry.Coordinates) == 2 {
		lon, lat := f.Geometry.Coordinates[0], f.Geometry.Coordinates[1]
		result.Longitude = &lon
		result.Latitude = &lat
	}
	result.IsValid = result.Latitude != nil && result.Score > 0

	if !result.IsValid {
		a.recordFailure()
	}
	return result
}

// Stats returns the lookup counters.
func (a *Adresse) Stats() GeocodeStats {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stats
}

func (a *Adresse) recordFailure() {
	a.mu.Lock()
	a.stats.Failures++
	a.mu.Unlock()
}
