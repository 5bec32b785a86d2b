package utils

import "time"

const (
	AppName    = "CabTracker"
	AppVersion = "1.0.0"

	TripTokenLength = 32
	OTPLength       = 4

	// Reconciler
	DefaultInterpolationDuration = 1000 * time.Millisecond

	// Tracking links
	DefaultLinkTTL = 24 * time.Hour

	// Used for ETAs when the directions provider reports no duration
	DefaultCitySpeedKMH = 30.0
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

const (
	ErrInvalidToken     = "invalid token"
	ErrInvalidInput     = "invalid input"
	ErrInternalServer   = "internal server error"
	ErrUnauthorized     = "unauthorized"
	ErrForbidden        = "forbidden"
	ErrNotFound         = "not found"
	ErrValidationFailed = "validation failed"
	ErrTripNotFound     = "trip not found"
)

// Cache Keys
const (
	CacheTripPrefix   = "trip:"
	CacheSamplePrefix = "sample:"
	CacheRoutePrefix  = "route:"
)

const (
	EventTripCreated      = "trip_created"
	EventTripOnline       = "trip_online"
	EventRideStarted      = "ride_started"
	EventRideCompleted    = "ride_completed"
	EventOTPRejected      = "otp_rejected"
	EventSampleRejected   = "sample_rejected"
	EventSubscriberJoined = "subscriber_joined"
	EventSubscriberLeft   = "subscriber_left"
)

const (
	EarthRadiusKM = 6371.0
)
