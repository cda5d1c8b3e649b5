// README: Shared Google Maps client construction for routing and places.
package maps

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"googlemaps.github.io/maps"
)

type ClientConfig struct {
	APIKey string
	// BaseURL overrides the Google endpoint host; used by tests.
	BaseURL   string
	RateLimit int
	Timeout   time.Duration
	Language  string
	Region    string
}

// NewClient builds a maps client. The client applies its own per-second rate limit.
func NewClient(cfg ClientConfig) (*maps.Client, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("maps api key is required")
	}
	opts := []maps.ClientOption{maps.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, maps.WithBaseURL(cfg.BaseURL))
	}
	if cfg.RateLimit > 0 {
		opts = append(opts, maps.WithRateLimit(cfg.RateLimit))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, maps.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	client, err := maps.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return client, nil
}

func latLng(lat, lng float64) *maps.LatLng {
	return &maps.LatLng{Lat: lat, Lng: lng}
}
