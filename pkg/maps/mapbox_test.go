package maps

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestMapbox(t *testing.T, handler http.HandlerFunc) *MapboxProvider {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	p := NewMapboxProvider("test-token")
	p.baseURL = server.URL
	return p
}

func TestMapboxGeocode(t *testing.T) {
	t.Parallel()

	p := newTestMapbox(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/geocoding/v5/mapbox.places/") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if got := r.URL.Query().Get("access_token"); got != "test-token" {
			t.Errorf("access_token = %q, want test-token", got)
		}
		w.Write([]byte(`{"features":[{"id":"place.1","place_name":"Connaught Place, New Delhi","place_type":["locality"],"center":[77.2167,28.6315]}]}`))
	})

	resp, err := p.Geocode(context.Background(), "Connaught Place")
	if err != nil {
		t.Fatalf("Geocode: %v", err)
	}
	first, err := resp.First()
	if err != nil {
		t.Fatalf("First: %v", err)
	}
	if first.Coordinates.Latitude != 28.6315 || first.Coordinates.Longitude != 77.2167 {
		t.Errorf("coordinates = %+v, want lat 28.6315 lng 77.2167", first.Coordinates)
	}
}

func TestMapboxGeocodeNoResults(t *testing.T) {
	t.Parallel()

	p := newTestMapbox(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"features":[]}`))
	})

	resp, err := p.Geocode(context.Background(), "nowhere")
	if err != nil {
		t.Fatalf("Geocode: %v", err)
	}
	if _, err := resp.First(); !errors.Is(err, ErrNoResults) {
		t.Errorf("First error = %v, want ErrNoResults", err)
	}
}

func TestMapboxDirections(t *testing.T) {
	t.Parallel()

	p := newTestMapbox(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/directions/v5/mapbox/driving/") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Write([]byte(`{"routes":[{"distance":5400,"duration":960,"geometry":"abc~def","legs":[{"summary":"Ring Road"}]}]}`))
	})

	resp, err := p.GetDirections(context.Background(), &DirectionsRequest{
		Origin:      Location{Latitude: 28.61, Longitude: 77.20},
		Destination: Location{Latitude: 28.65, Longitude: 77.25},
	})
	if err != nil {
		t.Fatalf("GetDirections: %v", err)
	}
	route, err := resp.Best()
	if err != nil {
		t.Fatalf("Best: %v", err)
	}
	if route.Polyline != "abc~def" {
		t.Errorf("polyline = %q, want abc~def", route.Polyline)
	}
	if route.Distance.Text != "5.4 km" {
		t.Errorf("distance text = %q, want 5.4 km", route.Distance.Text)
	}
	if route.Duration.Text != "16 mins" {
		t.Errorf("duration text = %q, want 16 mins", route.Duration.Text)
	}
	if route.Summary != "Ring Road" {
		t.Errorf("summary = %q, want Ring Road", route.Summary)
	}
}

func TestMapboxErrorStatus(t *testing.T) {
	t.Parallel()

	p := newTestMapbox(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"Not Authorized"}`, http.StatusUnauthorized)
	})

	if _, err := p.GetDirections(context.Background(), &DirectionsRequest{}); err == nil {
		t.Fatal("expected error for 401 response")
	}
}

func TestNewProvider(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		cfg     ProviderConfig
		wantErr bool
	}{
		{name: "missing key", cfg: ProviderConfig{Provider: "google"}, wantErr: true},
		{name: "unknown provider", cfg: ProviderConfig{Provider: "here", APIKey: "k"}, wantErr: true},
		{name: "mapbox", cfg: ProviderConfig{Provider: "mapbox", APIKey: "k"}},
		{name: "google", cfg: ProviderConfig{Provider: "google", APIKey: "AIza-test"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, err := NewProvider(tt.cfg)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewProvider error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && p == nil {
				t.Fatal("NewProvider returned nil provider")
			}
		})
	}
}
