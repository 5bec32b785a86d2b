package utils

import (
	"fmt"
	"math"
)

type Point struct {
	Lat float64 `json:"lat" bson:"lat"`
	Lng float64 `json:"lng" bson:"lng"`
}

type Bounds struct {
	Northeast Point `json:"northeast" bson:"northeast"`
	Southwest Point `json:"southwest" bson:"southwest"`
}

func (p Point) String() string {
	return fmt.Sprintf("%.6f,%.6f", p.Lat, p.Lng)
}

// Equal reports whether both coordinates match exactly.
func (p Point) Equal(o Point) bool {
	return p.Lat == o.Lat && p.Lng == o.Lng
}

func IsValidCoordinates(lat, lng float64) bool {
	if math.IsNaN(lat) || math.IsNaN(lng) {
		return false
	}
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// Interpolate returns from + (to - from) * progress on each axis. Progress is
// clamped to [0, 1]; at 1 the result is exactly to.
func Interpolate(from, to Point, progress float64) Point {
	if progress <= 0 {
		return from
	}
	if progress >= 1 {
		return to
	}
	return Point{
		Lat: from.Lat + (to.Lat-from.Lat)*progress,
		Lng: from.Lng + (to.Lng-from.Lng)*progress,
	}
}

func CalculateBounds(points []Point) *Bounds {
	if len(points) == 0 {
		return nil
	}

	minLat, maxLat := points[0].Lat, points[0].Lat
	minLng, maxLng := points[0].Lng, points[0].Lng

	for _, point := range points {
		if point.Lat < minLat {
			minLat = point.Lat
		}
		if point.Lat > maxLat {
			maxLat = point.Lat
		}
		if point.Lng < minLng {
			minLng = point.Lng
		}
		if point.Lng > maxLng {
			maxLng = point.Lng
		}
	}

	return &Bounds{
		Northeast: Point{Lat: maxLat, Lng: maxLng},
		Southwest: Point{Lat: minLat, Lng: minLng},
	}
}

// Extend returns bounds grown to also contain the given points. A nil
// receiver is treated as empty.
func (b *Bounds) Extend(points ...Point) *Bounds {
	all := make([]Point, 0, len(points)+2)
	if b != nil {
		all = append(all, b.Northeast, b.Southwest)
	}
	all = append(all, points...)
	return CalculateBounds(all)
}

func (b *Bounds) Contains(p Point) bool {
	if b == nil {
		return false
	}
	return p.Lat >= b.Southwest.Lat && p.Lat <= b.Northeast.Lat &&
		p.Lng >= b.Southwest.Lng && p.Lng <= b.Northeast.Lng
}
