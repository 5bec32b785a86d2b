package models

import (
	"time"

	"github.com/diintechteam9/cab-tracker/internal/utils"
)

// Location is a GeoJSON point with an optional human address. Coordinates
// are stored [lng, lat] so the field can carry a 2dsphere index.
type Location struct {
	Type        string    `json:"type" bson:"type"`
	Coordinates []float64 `json:"coordinates" bson:"coordinates"`
	Address     string    `json:"address,omitempty" bson:"address,omitempty"`
}

func NewLocation(lat, lng float64, address string) Location {
	return Location{
		Type:        "Point",
		Coordinates: []float64{lng, lat},
		Address:     address,
	}
}

func (l Location) Latitude() float64 {
	if len(l.Coordinates) >= 2 {
		return l.Coordinates[1]
	}
	return 0
}

func (l Location) Longitude() float64 {
	if len(l.Coordinates) >= 1 {
		return l.Coordinates[0]
	}
	return 0
}

func (l Location) HasCoordinates() bool {
	return len(l.Coordinates) == 2
}

func (l Location) Point() utils.Point {
	return utils.Point{Lat: l.Latitude(), Lng: l.Longitude()}
}

func (l Location) Clone() Location {
	cp := l
	if l.Coordinates != nil {
		cp.Coordinates = append([]float64(nil), l.Coordinates...)
	}
	return cp
}

type GPSStatus string

const (
	GPSStatusOn  GPSStatus = "ON"
	GPSStatusOff GPSStatus = "OFF"
)

// LocationSample is one position report from a driver device. It is never
// persisted; each sample supersedes the previous one for its token.
type LocationSample struct {
	Token      string    `json:"token" validate:"required"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	SpeedKmh   float64   `json:"speed"`
	GPSStatus  GPSStatus `json:"gpsStatus"`
	ReceivedAt time.Time `json:"receivedAt"`
}

func (s LocationSample) Point() utils.Point {
	return utils.Point{Lat: s.Lat, Lng: s.Lng}
}

// IsOn treats a missing status as ON, matching older driver builds that
// only set the field when GPS dropped.
func (s LocationSample) IsOn() bool {
	return s.GPSStatus != GPSStatusOff
}

// Validate checks the fields an ON sample must carry. OFF samples may omit
// coordinates.
func (s LocationSample) Validate() error {
	if s.Token == "" {
		return ErrInvalidSample
	}
	if s.GPSStatus != "" && s.GPSStatus != GPSStatusOn && s.GPSStatus != GPSStatusOff {
		return ErrInvalidSample
	}
	if !s.IsOn() {
		return nil
	}
	if !utils.IsValidCoordinates(s.Lat, s.Lng) || s.SpeedKmh < 0 {
		return ErrInvalidSample
	}
	return nil
}
