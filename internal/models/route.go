package models

import (
	"time"

	"github.com/diintechteam9/cab-tracker/internal/utils"
)

// Route is the memoized directions result for one trip token. It is reused
// until the requested source or destination changes.
type Route struct {
	Token           string        `json:"token"`
	Source          utils.Point   `json:"source"`
	Destination     utils.Point   `json:"destination"`
	Polyline        string        `json:"polyline"`
	Summary         string        `json:"summary,omitempty"`
	DistanceText    string        `json:"distance_text"`
	DurationText    string        `json:"duration_text"`
	DistanceMeters  int           `json:"distance_meters"`
	DurationSeconds int           `json:"duration_seconds"`
	Bounds          *utils.Bounds `json:"bounds,omitempty"`
	ComputedAt      time.Time     `json:"computed_at"`
	Stale           bool          `json:"stale,omitempty"`
}

// Matches reports whether the route was computed for this endpoint pair.
func (r *Route) Matches(src, dst utils.Point) bool {
	return r != nil && r.Source.Equal(src) && r.Destination.Equal(dst)
}
