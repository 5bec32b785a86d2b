package models

import "time"

type Role string

const (
	RoleDriver     Role = "driver"
	RolePassenger  Role = "passenger"
	RoleDispatcher Role = "dispatcher"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleDriver, RolePassenger, RoleDispatcher:
		return true
	}
	return false
}

// Channel event names as they appear on the wire.
const (
	EventJoin           = "join"
	EventLeave          = "leave"
	EventJoinFleet      = "join-fleet"
	EventSendLocation   = "send-location"
	EventJoined         = "joined"
	EventLocationUpdate = "location-update"
	EventRideStarted    = "ride-started"
	EventRideCompleted  = "ride-completed"
	EventError          = "error"
)

// LocationUpdate is the payload fanned out for every admitted sample.
type LocationUpdate struct {
	Token      string    `json:"token"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Speed      float64   `json:"speed"`
	GPSStatus  GPSStatus `json:"gpsStatus"`
	ReceivedAt int64     `json:"receivedAt"`
}

func NewLocationUpdate(s LocationSample) LocationUpdate {
	return LocationUpdate{
		Token:      s.Token,
		Lat:        s.Lat,
		Lng:        s.Lng,
		Speed:      s.SpeedKmh,
		GPSStatus:  s.GPSStatus,
		ReceivedAt: s.ReceivedAt.UnixMilli(),
	}
}

// Sample converts a received update back into a sample, e.g. to feed a
// viewer-side reconciler.
func (u LocationUpdate) Sample() LocationSample {
	s := LocationSample{
		Token:     u.Token,
		Lat:       u.Lat,
		Lng:       u.Lng,
		SpeedKmh:  u.Speed,
		GPSStatus: u.GPSStatus,
	}
	if u.ReceivedAt > 0 {
		s.ReceivedAt = time.UnixMilli(u.ReceivedAt)
	}
	return s
}

type LifecycleEvent struct {
	Token string `json:"token"`
}

type ChannelError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Token   string `json:"token,omitempty"`
}

// Snapshot is what a subscriber receives on join.
type Snapshot struct {
	Trip       *Trip           `json:"trip"`
	LastSample *LocationUpdate `json:"lastSample,omitempty"`
	GPSStatus  GPSStatus       `json:"gpsStatus"`
}
