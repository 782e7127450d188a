// pkg/model/geocoding.go
package model

// GeocodingResult is the outcome of resolving one free-text store name or
// address. A failed or low-confidence lookup still produces a result with
// IsValid=false so the cache never re-queries the same string within a run.
type GeocodingResult struct {
	OriginalAddress string
	Label           string
	Latitude        *float64
	Longitude       *float64
	City            string
	PostalCode      string
	Score           float64 // confidence in [0,1]; 0 on failure
	IsValid         bool    // a usable coordinate was returned
}
