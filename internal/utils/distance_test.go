package utils

import (
	"math"
	"testing"
)

func TestCalculateBearing(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		from, to         Point
		wantMin, wantMax float64
	}{
		{"north", Point{0, 0}, Point{1, 0}, 0, 1e-9},
		{"east", Point{0, 0}, Point{0, 1}, 89.999, 90.001},
		{"south", Point{1, 0}, Point{0, 0}, 179.999, 180.001},
		{"west", Point{0, 1}, Point{0, 0}, 269.999, 270.001},
		{"northeast delhi", Point{28.61, 77.20}, Point{28.62, 77.21}, 40, 50},
		{"northwest wraps below 360", Point{0, 0}, Point{1, -1}, 314, 316},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := BearingBetween(tt.from, tt.to)
			if got < tt.wantMin || got > tt.wantMax {
				t.Errorf("BearingBetween(%v, %v) = %f, want in [%f, %f]", tt.from, tt.to, got, tt.wantMin, tt.wantMax)
			}
			if got < 0 || got >= 360 {
				t.Errorf("BearingBetween(%v, %v) = %f, outside [0, 360)", tt.from, tt.to, got)
			}
		})
	}
}

func TestCalculateBearingIdenticalPoints(t *testing.T) {
	t.Parallel()

	for _, p := range []Point{{0, 0}, {28.61, 77.20}, {90, 0}, {-45.5, 179.9}} {
		got := BearingBetween(p, p)
		if got != 0 || math.IsNaN(got) {
			t.Errorf("BearingBetween(%v, %v) = %f, want 0", p, p, got)
		}
	}
}

func TestCalculateDistance(t *testing.T) {
	t.Parallel()

	// One degree of latitude is ~111.19 km on a 6371 km sphere.
	got := CalculateDistance(0, 0, 1, 0)
	if math.Abs(got-111.19) > 0.05 {
		t.Errorf("CalculateDistance(0,0 -> 1,0) = %f km, want ~111.19", got)
	}

	if got := DistanceBetween(Point{28.61, 77.20}, Point{28.61, 77.20}); got != 0 {
		t.Errorf("distance between identical points = %f, want 0", got)
	}
}

func TestEstimateETAMinutes(t *testing.T) {
	t.Parallel()

	if got := EstimateETAMinutes(15, 30); got != 30 {
		t.Errorf("EstimateETAMinutes(15, 30) = %d, want 30", got)
	}
	if got := EstimateETAMinutes(15, 0); got != 30 {
		t.Errorf("EstimateETAMinutes with zero speed = %d, want default 30", got)
	}
}
