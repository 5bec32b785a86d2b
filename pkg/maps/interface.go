package maps

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

var ErrNoResults = errors.New("maps: no results")

// Geocoder resolves a free-form address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*GeocodeResponse, error)
}

// DirectionsProvider computes a driving route between two points.
type DirectionsProvider interface {
	GetDirections(ctx context.Context, request *DirectionsRequest) (*DirectionsResponse, error)
}

type MapsProvider interface {
	Geocoder
	DirectionsProvider
}

type GeocodeResponse struct {
	Results []GeocodeResult `json:"results"`
}

// First returns the best match or ErrNoResults.
func (r *GeocodeResponse) First() (GeocodeResult, error) {
	if r == nil || len(r.Results) == 0 {
		return GeocodeResult{}, ErrNoResults
	}
	return r.Results[0], nil
}

type GeocodeResult struct {
	PlaceID     string   `json:"place_id"`
	Address     string   `json:"formatted_address"`
	Coordinates Location `json:"geometry"`
	Types       []string `json:"types"`
}

type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type DirectionsRequest struct {
	Origin      Location `json:"origin"`
	Destination Location `json:"destination"`
	Mode        string   `json:"mode"` // driving, walking, bicycling
}

type DirectionsResponse struct {
	Routes []Route `json:"routes"`
}

// Best returns the first route or ErrNoResults.
func (r *DirectionsResponse) Best() (Route, error) {
	if r == nil || len(r.Routes) == 0 {
		return Route{}, ErrNoResults
	}
	return r.Routes[0], nil
}

type Route struct {
	Summary  string   `json:"summary"`
	Distance Distance `json:"distance"`
	Duration Duration `json:"duration"`
	Polyline string   `json:"overview_polyline"`
	Bounds   *Bounds  `json:"bounds,omitempty"`
}

type Distance struct {
	Text  string  `json:"text"`
	Value float64 `json:"value"` // in meters
}

type Duration struct {
	Text  string `json:"text"`
	Value int    `json:"value"` // in seconds
}

type Bounds struct {
	Northeast Location `json:"northeast"`
	Southwest Location `json:"southwest"`
}

type ProviderConfig struct {
	Provider    string
	APIKey      string
	BaseURL     string
	Mode        string
	Region      string
	Language    string
	TimeoutSecs int
}

// NewProvider builds the provider named in cfg. "google" and "mapbox" are supported.
func NewProvider(cfg ProviderConfig) (MapsProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("maps provider %q: api key is required", cfg.Provider)
	}
	switch strings.ToLower(cfg.Provider) {
	case "", "google":
		return NewGoogleMapsProvider(cfg.APIKey, cfg.Region, cfg.Language)
	case "mapbox":
		p := NewMapboxProvider(cfg.APIKey)
		if cfg.BaseURL != "" {
			p.baseURL = strings.TrimRight(cfg.BaseURL, "/")
		}
		return p, nil
	default:
		return nil, fmt.Errorf("unsupported maps provider: %s", cfg.Provider)
	}
}

func formatKM(meters float64) string {
	if meters < 1000 {
		return fmt.Sprintf("%.0f m", meters)
	}
	return fmt.Sprintf("%.1f km", meters/1000)
}

func formatMinutes(seconds float64) string {
	mins := int(seconds/60 + 0.5)
	if mins < 1 {
		mins = 1
	}
	if mins < 60 {
		return fmt.Sprintf("%d mins", mins)
	}
	return fmt.Sprintf("%d hours %d mins", mins/60, mins%60)
}
