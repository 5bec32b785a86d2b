package maps

import (
	"context"
	"fmt"

	"googlemaps.github.io/maps"
)

type GoogleMapsProvider struct {
	client   *maps.Client
	region   string
	language string
}

func NewGoogleMapsProvider(apiKey, region, language string) (*GoogleMapsProvider, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Google Maps client: %w", err)
	}

	return &GoogleMapsProvider{
		client:   client,
		region:   region,
		language: language,
	}, nil
}

func (g *GoogleMapsProvider) Geocode(ctx context.Context, address string) (*GeocodeResponse, error) {
	req := &maps.GeocodingRequest{
		Address:  address,
		Region:   g.region,
		Language: g.language,
	}

	resp, err := g.client.Geocode(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("geocoding failed: %w", err)
	}

	results := make([]GeocodeResult, len(resp))
	for i, result := range resp {
		results[i] = GeocodeResult{
			PlaceID: result.PlaceID,
			Address: result.FormattedAddress,
			Coordinates: Location{
				Latitude:  result.Geometry.Location.Lat,
				Longitude: result.Geometry.Location.Lng,
			},
			Types: result.Types,
		}
	}

	return &GeocodeResponse{Results: results}, nil
}

func (g *GoogleMapsProvider) GetDirections(ctx context.Context, request *DirectionsRequest) (*DirectionsResponse, error) {
	mode := maps.TravelModeDriving
	if request.Mode != "" {
		mode = maps.Mode(request.Mode)
	}
	req := &maps.DirectionsRequest{
		Origin:      fmt.Sprintf("%f,%f", request.Origin.Latitude, request.Origin.Longitude),
		Destination: fmt.Sprintf("%f,%f", request.Destination.Latitude, request.Destination.Longitude),
		Mode:        mode,
		Region:      g.region,
		Language:    g.language,
	}

	resp, _, err := g.client.Directions(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("directions request failed: %w", err)
	}

	routes := make([]Route, 0, len(resp))
	for _, route := range resp {
		if len(route.Legs) == 0 {
			continue
		}
		leg := route.Legs[0]
		routes = append(routes, Route{
			Summary: route.Summary,
			Distance: Distance{
				Text:  leg.Distance.HumanReadable,
				Value: float64(leg.Distance.Meters),
			},
			Duration: Duration{
				Text:  formatMinutes(leg.Duration.Seconds()),
				Value: int(leg.Duration.Seconds()),
			},
			Polyline: route.OverviewPolyline.Points,
			Bounds: &Bounds{
				Northeast: Location{
					Latitude:  route.Bounds.NorthEast.Lat,
					Longitude: route.Bounds.NorthEast.Lng,
				},
				Southwest: Location{
					Latitude:  route.Bounds.SouthWest.Lat,
					Longitude: route.Bounds.SouthWest.Lng,
				},
			},
		})
	}

	return &DirectionsResponse{Routes: routes}, nil
}
