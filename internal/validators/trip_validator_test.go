package validators

import (
	"testing"
)

func ptr(f float64) *float64 { return &f }

func validCreate() *CreateTripRequest {
	return &CreateTripRequest{
		Source:      PlaceRequest{Lat: ptr(28.61), Lng: ptr(77.20), Address: "Connaught Place"},
		Destination: PlaceRequest{Address: "India Gate, New Delhi"},
		Passenger:   ContactRequest{Name: "Asha", Phone: "9876543210"},
		Driver:      DriverRequest{Name: "Ravi", Phone: "+919123456780", VehicleNumber: "DL01AB1234"},
	}
}

func TestValidateCreateTrip(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		mutate    func(*CreateTripRequest)
		wantField string
	}{
		{name: "valid", mutate: func(*CreateTripRequest) {}},
		{
			name:      "latitude out of range",
			mutate:    func(r *CreateTripRequest) { r.Source.Lat = ptr(91) },
			wantField: "source.lat",
		},
		{
			name:      "lng without lat",
			mutate:    func(r *CreateTripRequest) { r.Source.Lat = nil },
			wantField: "source.lat",
		},
		{
			name:      "no coordinates and no address",
			mutate:    func(r *CreateTripRequest) { r.Destination.Address = "" },
			wantField: "destination.address",
		},
		{
			name:      "bad passenger phone",
			mutate:    func(r *CreateTripRequest) { r.Passenger.Phone = "call me" },
			wantField: "passenger.phone",
		},
		{
			name:      "missing vehicle",
			mutate:    func(r *CreateTripRequest) { r.Driver.VehicleNumber = "" },
			wantField: "driver.vehiclenumber",
		},
		{
			name: "same coordinates",
			mutate: func(r *CreateTripRequest) {
				r.Destination = PlaceRequest{Lat: ptr(28.61), Lng: ptr(77.20)}
			},
			wantField: "destination",
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req := validCreate()
			tt.mutate(req)

			errs := ValidateCreateTrip(req)
			if tt.wantField == "" {
				if len(errs) != 0 {
					t.Fatalf("ValidateCreateTrip() = %v, want no errors", errs)
				}
				return
			}
			if _, ok := errs.Details()[tt.wantField]; !ok {
				t.Fatalf("ValidateCreateTrip() = %v, want error on %q", errs, tt.wantField)
			}
		})
	}
}

func TestValidateVerifyOTP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		req  VerifyOTPRequest
		ok   bool
	}{
		{"valid", VerifyOTPRequest{Token: "abc123", OTP: "4821", Lat: ptr(28.61), Lng: ptr(77.20)}, true},
		{"equator and meridian", VerifyOTPRequest{Token: "abc123", OTP: "4821", Lat: ptr(0), Lng: ptr(0)}, true},
		{"short otp", VerifyOTPRequest{Token: "abc123", OTP: "482", Lat: ptr(28.61), Lng: ptr(77.20)}, false},
		{"letters", VerifyOTPRequest{Token: "abc123", OTP: "48a1", Lat: ptr(28.61), Lng: ptr(77.20)}, false},
		{"missing token", VerifyOTPRequest{OTP: "4821", Lat: ptr(28.61), Lng: ptr(77.20)}, false},
		{"missing position", VerifyOTPRequest{Token: "abc123", OTP: "4821"}, false},
		{"missing longitude", VerifyOTPRequest{Token: "abc123", OTP: "4821", Lat: ptr(28.61)}, false},
		{"bad longitude", VerifyOTPRequest{Token: "abc123", OTP: "4821", Lat: ptr(28.61), Lng: ptr(181)}, false},
	}

	for _, tt := range tests {
		errs := ValidateVerifyOTP(&tt.req)
		if got := len(errs) == 0; got != tt.ok {
			t.Errorf("%s: valid = %v, want %v (%v)", tt.name, got, tt.ok, errs)
		}
	}
}

func TestCreateTripToInput(t *testing.T) {
	t.Parallel()
	in := validCreate().ToInput()

	if in.Source.Lat == nil || *in.Source.Lat != 28.61 {
		t.Errorf("Source.Lat = %v, want 28.61", in.Source.Lat)
	}
	if in.Destination.Lat != nil || in.Destination.Address != "India Gate, New Delhi" {
		t.Errorf("Destination = %+v, want address only", in.Destination)
	}
	if in.Driver.VehicleNumber != "DL01AB1234" {
		t.Errorf("Driver.VehicleNumber = %q", in.Driver.VehicleNumber)
	}
}

func TestListTripsQuery(t *testing.T) {
	t.Parallel()
	if errs := ValidateListTrips(&ListTripsQuery{Status: "FINISHED"}); len(errs) == 0 {
		t.Error("unknown status accepted")
	}
	q := &ListTripsQuery{Status: "ACTIVE", Limit: 10}
	if errs := ValidateListTrips(q); len(errs) != 0 {
		t.Fatalf("ValidateListTrips() = %v", errs)
	}
	if f := q.ToFilter(); f.Status != "ACTIVE" || f.Limit != 10 {
		t.Errorf("ToFilter() = %+v", f)
	}
}
