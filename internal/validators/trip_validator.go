package validators

import (
	"github.com/diintechteam9/cab-tracker/internal/models"
	"github.com/diintechteam9/cab-tracker/internal/services"
)

// PlaceRequest is either a coordinate pair or a free-text address to be
// geocoded. When both are given the coordinates win.
type PlaceRequest struct {
	Lat     *float64 `json:"lat" validate:"required_with=Lng,omitempty,latitude"`
	Lng     *float64 `json:"lng" validate:"required_with=Lat,omitempty,longitude"`
	Address string   `json:"address" validate:"required_without=Lat,max=255"`
}

type ContactRequest struct {
	Name  string `json:"name" validate:"required,min=2,max=100"`
	Phone string `json:"phone" validate:"required,phone"`
}

type DriverRequest struct {
	Name          string `json:"name" validate:"required,min=2,max=100"`
	Phone         string `json:"phone" validate:"required,phone"`
	VehicleNumber string `json:"vehicle_number" validate:"required,min=2,max=20"`
}

type CreateTripRequest struct {
	Source      PlaceRequest   `json:"source"`
	Destination PlaceRequest   `json:"destination"`
	Passenger   ContactRequest `json:"passenger"`
	Driver      DriverRequest  `json:"driver"`
}

// VerifyOTPRequest carries the start code and where it was entered. The
// coordinate is mandatory; pointers keep a missing field apart from 0.
type VerifyOTPRequest struct {
	Token string   `json:"token" validate:"required,max=64"`
	OTP   string   `json:"otp" validate:"required,otp"`
	Lat   *float64 `json:"lat" validate:"required,latitude"`
	Lng   *float64 `json:"lng" validate:"required,longitude"`
}

type CompleteTripRequest struct {
	Lat *float64 `json:"lat" validate:"required,latitude"`
	Lng *float64 `json:"lng" validate:"required,longitude"`
}

type ListTripsQuery struct {
	Status string `form:"status" validate:"omitempty,oneof=PENDING ACTIVE STARTED COMPLETED"`
	Limit  int64  `form:"limit" validate:"omitempty,min=1,max=500"`
}

func ValidateCreateTrip(req *CreateTripRequest) ValidationErrors {
	errs := ValidateStruct(req)

	if samePlace(req.Source, req.Destination) {
		errs = append(errs, ValidationError{
			Field:   "destination",
			Message: "Source and destination must be different",
		})
	}
	return errs
}

func ValidateVerifyOTP(req *VerifyOTPRequest) ValidationErrors {
	return ValidateStruct(req)
}

func ValidateCompleteTrip(req *CompleteTripRequest) ValidationErrors {
	return ValidateStruct(req)
}

func ValidateListTrips(q *ListTripsQuery) ValidationErrors {
	return ValidateStruct(q)
}

func (r *CreateTripRequest) ToInput() *services.CreateTripInput {
	return &services.CreateTripInput{
		Source:      r.Source.toInput(),
		Destination: r.Destination.toInput(),
		Passenger:   models.Contact{Name: r.Passenger.Name, Phone: r.Passenger.Phone},
		Driver: models.DriverInfo{
			Name:          r.Driver.Name,
			Phone:         r.Driver.Phone,
			VehicleNumber: r.Driver.VehicleNumber,
		},
	}
}

func (q *ListTripsQuery) ToFilter() models.TripFilter {
	return models.TripFilter{Status: models.TripStatus(q.Status), Limit: q.Limit}
}

func (p PlaceRequest) toInput() services.PlaceInput {
	return services.PlaceInput{Lat: p.Lat, Lng: p.Lng, Address: p.Address}
}

func samePlace(a, b PlaceRequest) bool {
	if a.Lat != nil && a.Lng != nil && b.Lat != nil && b.Lng != nil {
		return *a.Lat == *b.Lat && *a.Lng == *b.Lng
	}
	return a.Lat == nil && b.Lat == nil && a.Address != "" && a.Address == b.Address
}
