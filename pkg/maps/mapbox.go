package maps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

type MapboxProvider struct {
	accessToken string
	httpClient  *http.Client
	baseURL     string
}

func NewMapboxProvider(accessToken string) *MapboxProvider {
	return &MapboxProvider{
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		baseURL:     "https://api.mapbox.com",
	}
}

func (m *MapboxProvider) Geocode(ctx context.Context, address string) (*GeocodeResponse, error) {
	apiURL := fmt.Sprintf("%s/geocoding/v5/mapbox.places/%s.json?access_token=%s&limit=1",
		m.baseURL, url.PathEscape(address), url.QueryEscape(m.accessToken))

	var mapboxResp struct {
		Features []struct {
			ID        string    `json:"id"`
			PlaceName string    `json:"place_name"`
			PlaceType []string  `json:"place_type"`
			Center    []float64 `json:"center"`
		} `json:"features"`
	}
	if err := m.get(ctx, apiURL, &mapboxResp); err != nil {
		return nil, err
	}

	results := make([]GeocodeResult, 0, len(mapboxResp.Features))
	for _, feature := range mapboxResp.Features {
		if len(feature.Center) < 2 {
			continue
		}
		results = append(results, GeocodeResult{
			PlaceID: feature.ID,
			Address: feature.PlaceName,
			Coordinates: Location{
				Latitude:  feature.Center[1],
				Longitude: feature.Center[0],
			},
			Types: feature.PlaceType,
		})
	}

	return &GeocodeResponse{Results: results}, nil
}

func (m *MapboxProvider) GetDirections(ctx context.Context, request *DirectionsRequest) (*DirectionsResponse, error) {
	coordinates := fmt.Sprintf("%f,%f;%f,%f",
		request.Origin.Longitude, request.Origin.Latitude,
		request.Destination.Longitude, request.Destination.Latitude)

	profile := "driving"
	if request.Mode != "" {
		profile = request.Mode
	}

	apiURL := fmt.Sprintf("%s/directions/v5/mapbox/%s/%s?access_token=%s&overview=full&geometries=polyline",
		m.baseURL, profile, coordinates, url.QueryEscape(m.accessToken))

	var mapboxResp struct {
		Routes []struct {
			Distance float64 `json:"distance"`
			Duration float64 `json:"duration"`
			Geometry string  `json:"geometry"`
			Legs     []struct {
				Summary string `json:"summary"`
			} `json:"legs"`
		} `json:"routes"`
	}
	if err := m.get(ctx, apiURL, &mapboxResp); err != nil {
		return nil, err
	}

	routes := make([]Route, len(mapboxResp.Routes))
	for i, route := range mapboxResp.Routes {
		var summary string
		if len(route.Legs) > 0 {
			summary = route.Legs[0].Summary
		}
		routes[i] = Route{
			Summary: summary,
			Distance: Distance{
				Value: route.Distance,
				Text:  formatKM(route.Distance),
			},
			Duration: Duration{
				Value: int(route.Duration),
				Text:  formatMinutes(route.Duration),
			},
			Polyline: route.Geometry,
		}
	}

	return &DirectionsResponse{Routes: routes}, nil
}

func (m *MapboxProvider) get(ctx context.Context, apiURL string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("mapbox API error (%d): %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return nil
}
