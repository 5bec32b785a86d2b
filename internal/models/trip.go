package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type TripStatus string

const (
	TripStatusPending   TripStatus = "PENDING"
	TripStatusActive    TripStatus = "ACTIVE"
	TripStatusStarted   TripStatus = "STARTED"
	TripStatusCompleted TripStatus = "COMPLETED"
)

func (s TripStatus) IsValid() bool {
	switch s {
	case TripStatusPending, TripStatusActive, TripStatusStarted, TripStatusCompleted:
		return true
	}
	return false
}

// AcceptsSamples reports whether live positions may be published for a trip
// in this status. PENDING is handled separately: its first ON sample moves it
// to ACTIVE.
func (s TripStatus) AcceptsSamples() bool {
	return s == TripStatusActive || s == TripStatusStarted
}

func (s TripStatus) IsTerminal() bool {
	return s == TripStatusCompleted
}

type Trip struct {
	ID            primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Token         string             `json:"token" bson:"token" validate:"required"`
	Status        TripStatus         `json:"status" bson:"status"`
	Source        Location           `json:"source" bson:"source"`
	Destination   Location           `json:"destination" bson:"destination"`
	OTP           string             `json:"otp,omitempty" bson:"otp"`
	Passenger     Contact            `json:"passenger" bson:"passenger"`
	Driver        DriverInfo         `json:"driver" bson:"driver"`
	StartLocation *Location          `json:"start_location,omitempty" bson:"start_location,omitempty"`
	EndLocation   *Location          `json:"end_location,omitempty" bson:"end_location,omitempty"`
	TravelledKm   float64            `json:"travelled_km,omitempty" bson:"travelled_km,omitempty"`
	OnlineAt      *time.Time         `json:"online_at,omitempty" bson:"online_at,omitempty"`
	OTPVerifiedAt *time.Time         `json:"otp_verified_at,omitempty" bson:"otp_verified_at,omitempty"`
	StartedAt     *time.Time         `json:"started_at,omitempty" bson:"started_at,omitempty"`
	CompletedAt   *time.Time         `json:"completed_at,omitempty" bson:"completed_at,omitempty"`
	CreatedAt     time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at" bson:"updated_at"`
}

type Contact struct {
	Name  string `json:"name" bson:"name"`
	Phone string `json:"phone" bson:"phone"`
}

type DriverInfo struct {
	Name          string `json:"name" bson:"name"`
	Phone         string `json:"phone" bson:"phone"`
	VehicleNumber string `json:"vehicle_number" bson:"vehicle_number"`
}

// Public returns a copy safe to hand to viewers who must not see the start
// code.
func (t *Trip) Public() *Trip {
	if t == nil {
		return nil
	}
	cp := *t
	cp.OTP = ""
	return &cp
}

// Clone returns a copy that shares no pointers with the receiver.
func (t *Trip) Clone() *Trip {
	if t == nil {
		return nil
	}
	cp := *t
	cp.Source = t.Source.Clone()
	cp.Destination = t.Destination.Clone()
	if t.StartLocation != nil {
		l := t.StartLocation.Clone()
		cp.StartLocation = &l
	}
	if t.EndLocation != nil {
		l := t.EndLocation.Clone()
		cp.EndLocation = &l
	}
	cp.OnlineAt = cloneTime(t.OnlineAt)
	cp.OTPVerifiedAt = cloneTime(t.OTPVerifiedAt)
	cp.StartedAt = cloneTime(t.StartedAt)
	cp.CompletedAt = cloneTime(t.CompletedAt)
	return &cp
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// TripUpdate carries the metadata written alongside a status transition.
// Nil fields are left untouched.
type TripUpdate struct {
	StartLocation *Location
	EndLocation   *Location
	TravelledKm   *float64
	OnlineAt      *time.Time
	OTPVerifiedAt *time.Time
	StartedAt     *time.Time
	CompletedAt   *time.Time
}

// Apply writes the update and the new status onto t.
func (u TripUpdate) Apply(t *Trip, status TripStatus, now time.Time) {
	t.Status = status
	t.UpdatedAt = now
	if u.StartLocation != nil {
		l := u.StartLocation.Clone()
		t.StartLocation = &l
	}
	if u.EndLocation != nil {
		l := u.EndLocation.Clone()
		t.EndLocation = &l
	}
	if u.TravelledKm != nil {
		t.TravelledKm = *u.TravelledKm
	}
	if u.OnlineAt != nil {
		t.OnlineAt = cloneTime(u.OnlineAt)
	}
	if u.OTPVerifiedAt != nil {
		t.OTPVerifiedAt = cloneTime(u.OTPVerifiedAt)
	}
	if u.StartedAt != nil {
		t.StartedAt = cloneTime(u.StartedAt)
	}
	if u.CompletedAt != nil {
		t.CompletedAt = cloneTime(u.CompletedAt)
	}
}

type TripFilter struct {
	Status TripStatus
	Limit  int64
}
