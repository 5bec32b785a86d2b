package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/diintechteam9/cab-tracker/internal/handlers"
	"github.com/diintechteam9/cab-tracker/internal/models"
	"github.com/diintechteam9/cab-tracker/internal/repositories/memory"
	"github.com/diintechteam9/cab-tracker/internal/services"
	"github.com/diintechteam9/cab-tracker/internal/utils"
	"github.com/diintechteam9/cab-tracker/pkg/logger"
	"github.com/diintechteam9/cab-tracker/pkg/maps"
	"github.com/diintechteam9/cab-tracker/routes"

	"github.com/gin-gonic/gin"
)

const linkSecret = "handler-link-secret"

type stubDirections struct{}

func (stubDirections) GetDirections(ctx context.Context, req *maps.DirectionsRequest) (*maps.DirectionsResponse, error) {
	return &maps.DirectionsResponse{Routes: []maps.Route{{
		Summary:  "Rajpath",
		Distance: maps.Distance{Text: "5.4 km", Value: 5400},
		Duration: maps.Duration{Text: "16 mins", Value: 960},
		Polyline: "encoded",
	}}}, nil
}

type apiResponse struct {
	Status string          `json:"status"`
	Data   json.RawMessage `json:"data"`
	Error  *utils.APIError `json:"error"`
}

type fixture struct {
	router *gin.Engine
	trips  services.TripService
}

func newFixture(t *testing.T, enforce bool) *fixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logger.NewNop()
	trips := services.NewTripService(memory.NewTripRepository(), nil, nil, nil, log, services.TripServiceConfig{
		Links: services.LinkConfig{Secret: linkSecret, BaseURL: "https://track.example"},
	})
	routeSvc := services.NewRouteService(stubDirections{}, nil, nil, log, nil)

	r := gin.New()
	routes.SetupTripRoutes(r.Group("/api/v1"), handlers.NewTripHandler(trips, routeSvc, enforce, log), linkSecret)
	return &fixture{router: r, trips: trips}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) (int, apiResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var resp apiResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("%s %s: decode %q: %v", method, path, w.Body.String(), err)
	}
	return w.Code, resp
}

// createTrip registers a trip through the API and returns the stored record.
func (f *fixture) createTrip(t *testing.T) *models.Trip {
	t.Helper()
	code, resp := f.do(t, http.MethodPost, "/api/v1/trips", createBody())
	if code != http.StatusCreated {
		t.Fatalf("create status = %d, error = %+v", code, resp.Error)
	}
	var created struct {
		Trip  models.Trip        `json:"trip"`
		Links services.TripLinks `json:"links"`
	}
	if err := json.Unmarshal(resp.Data, &created); err != nil {
		t.Fatal(err)
	}
	trip, err := f.trips.GetTrip(context.Background(), created.Trip.Token)
	if err != nil {
		t.Fatalf("GetTrip: %v", err)
	}
	return trip
}

func (f *fixture) goOnline(t *testing.T, token string) {
	t.Helper()
	_, err := f.trips.AdmitSample(context.Background(), models.LocationSample{
		Token: token, Lat: 28.61, Lng: 77.20, GPSStatus: models.GPSStatusOn, ReceivedAt: time.Now(),
	})
	if err != nil {
		t.Fatalf("AdmitSample: %v", err)
	}
}

func createBody() map[string]interface{} {
	return map[string]interface{}{
		"source":      map[string]interface{}{"lat": 28.61, "lng": 77.20, "address": "Connaught Place"},
		"destination": map[string]interface{}{"lat": 28.62, "lng": 77.21, "address": "India Gate"},
		"passenger":   map[string]interface{}{"name": "Asha", "phone": "9876543210"},
		"driver":      map[string]interface{}{"name": "Ravi", "phone": "9123456780", "vehicle_number": "DL01AB1234"},
	}
}

func TestCreateTrip(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)

	code, resp := f.do(t, http.MethodPost, "/api/v1/trips", createBody())
	if code != http.StatusCreated {
		t.Fatalf("status = %d, want 201 (%+v)", code, resp.Error)
	}

	var created struct {
		Trip  models.Trip        `json:"trip"`
		Links services.TripLinks `json:"links"`
	}
	if err := json.Unmarshal(resp.Data, &created); err != nil {
		t.Fatal(err)
	}
	if created.Trip.Status != models.TripStatusPending {
		t.Errorf("status = %s, want PENDING", created.Trip.Status)
	}
	if created.Trip.OTP != "" {
		t.Error("create response leaked the start code")
	}
	if created.Links.Passenger == "" || created.Links.Driver == "" {
		t.Errorf("links = %+v, want both", created.Links)
	}
}

func TestCreateTripRejections(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)

	invalid := createBody()
	invalid["passenger"] = map[string]interface{}{"name": "Asha", "phone": "nope"}

	addressOnly := createBody()
	addressOnly["destination"] = map[string]interface{}{"address": "Somewhere unknown"}

	tests := []struct {
		name     string
		body     interface{}
		wantCode int
		wantErr  string
	}{
		{"validation", invalid, http.StatusBadRequest, "VALIDATION_ERROR"},
		{"unresolvable address", addressOnly, http.StatusUnprocessableEntity, models.CodeLocationUnresolved},
		{"not json", "plain", http.StatusBadRequest, "BAD_REQUEST"},
	}

	for _, tt := range tests {
		code, resp := f.do(t, http.MethodPost, "/api/v1/trips", tt.body)
		if code != tt.wantCode {
			t.Errorf("%s: status = %d, want %d", tt.name, code, tt.wantCode)
			continue
		}
		if resp.Error == nil || resp.Error.Code != tt.wantErr {
			t.Errorf("%s: error = %+v, want %s", tt.name, resp.Error, tt.wantErr)
		}
	}
}

func TestGetTripStartCodeVisibility(t *testing.T) {
	t.Parallel()

	open := newFixture(t, false)
	trip := open.createTrip(t)

	enforced := newFixture(t, true)
	etrip := enforced.createTrip(t)
	link, err := utils.GenerateLinkToken(etrip.Token, string(models.RolePassenger), linkSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	driverLink, err := utils.GenerateLinkToken(etrip.Token, string(models.RoleDriver), linkSecret, time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	openPath := "/api/v1/trips/" + trip.Token
	enforcedPath := "/api/v1/trips/" + etrip.Token

	tests := []struct {
		name    string
		f       *fixture
		path    string
		wantOTP bool
	}{
		{"anonymous", open, openPath, false},
		{"driver", open, openPath + "?role=driver", false},
		{"passenger", open, openPath + "?role=passenger", true},
		{"enforced passenger without link", enforced, enforcedPath + "?role=passenger", false},
		{"enforced passenger with link", enforced, enforcedPath + "?role=passenger&access=" + link, true},
		{"enforced driver link claiming passenger", enforced, enforcedPath + "?role=passenger&access=" + driverLink, false},
	}

	for _, tt := range tests {
		code, resp := tt.f.do(t, http.MethodGet, tt.path, nil)
		if code != http.StatusOK {
			t.Errorf("%s: status = %d, want 200", tt.name, code)
			continue
		}
		var got models.Trip
		if err := json.Unmarshal(resp.Data, &got); err != nil {
			t.Fatal(err)
		}
		if (got.OTP != "") != tt.wantOTP {
			t.Errorf("%s: otp present = %v, want %v", tt.name, got.OTP != "", tt.wantOTP)
		}
	}

	if code, _ := open.do(t, http.MethodGet, "/api/v1/trips/missing", nil); code != http.StatusNotFound {
		t.Errorf("unknown token status = %d, want 404", code)
	}
}

func TestVerifyOTPFlow(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	trip := f.createTrip(t)

	verify := func(otp string) (int, apiResponse) {
		return f.do(t, http.MethodPost, "/api/v1/trips/verify-otp", map[string]interface{}{
			"token": trip.Token, "otp": otp, "lat": 28.611, "lng": 77.201,
		})
	}

	if code, resp := verify(trip.OTP); code != http.StatusConflict || resp.Error.Code != models.CodeInvalidState {
		t.Fatalf("verify while PENDING = %d %+v, want 409 INVALID_STATE", code, resp.Error)
	}

	f.goOnline(t, trip.Token)

	wrong := "0000"
	if trip.OTP == wrong {
		wrong = "1111"
	}
	if code, resp := verify(wrong); code != http.StatusBadRequest || resp.Error.Code != models.CodeInvalidOTP {
		t.Fatalf("wrong otp = %d %+v, want 400 INVALID_OTP", code, resp.Error)
	}

	noPosition := map[string]interface{}{"token": trip.Token, "otp": trip.OTP}
	if code, resp := f.do(t, http.MethodPost, "/api/v1/trips/verify-otp", noPosition); code != http.StatusBadRequest || resp.Error.Code != "VALIDATION_ERROR" {
		t.Fatalf("verify without a position = %d %+v, want 400 VALIDATION_ERROR", code, resp.Error)
	}
	if current, err := f.trips.GetTrip(context.Background(), trip.Token); err != nil || current.Status != models.TripStatusActive {
		t.Fatalf("trip after verify without a position = %v (%v), want ACTIVE", current, err)
	}

	code, resp := verify(trip.OTP)
	if code != http.StatusOK {
		t.Fatalf("correct otp = %d %+v, want 200", code, resp.Error)
	}
	var started models.Trip
	if err := json.Unmarshal(resp.Data, &started); err != nil {
		t.Fatal(err)
	}
	if started.Status != models.TripStatusStarted || started.StartLocation == nil {
		t.Errorf("trip = %s start %v, want STARTED with start location", started.Status, started.StartLocation)
	}

	if code, _ := verify(trip.OTP); code != http.StatusConflict {
		t.Errorf("second verify = %d, want 409", code)
	}
}

func TestCompleteTrip(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	trip := f.createTrip(t)
	f.goOnline(t, trip.Token)

	path := "/api/v1/trips/" + trip.ID.Hex() + "/complete"
	end := map[string]interface{}{"lat": 28.62, "lng": 77.21}

	code, resp := f.do(t, http.MethodPut, path, end)
	if code != http.StatusOK {
		t.Fatalf("complete = %d %+v, want 200", code, resp.Error)
	}
	var done models.Trip
	if err := json.Unmarshal(resp.Data, &done); err != nil {
		t.Fatal(err)
	}
	if done.Status != models.TripStatusCompleted || done.EndLocation == nil {
		t.Errorf("trip = %s end %v, want COMPLETED with end location", done.Status, done.EndLocation)
	}

	if code, _ := f.do(t, http.MethodPut, path, end); code != http.StatusConflict {
		t.Errorf("completing twice = %d, want 409", code)
	}
	if code, _ := f.do(t, http.MethodPut, "/api/v1/trips/not-an-id/complete", end); code != http.StatusNotFound {
		t.Errorf("bad id = %d, want 404", code)
	}
	if code, _ := f.do(t, http.MethodPut, path, map[string]interface{}{"lat": 95, "lng": 0}); code != http.StatusBadRequest {
		t.Errorf("bad end position = %d, want 400", code)
	}
	if code, _ := f.do(t, http.MethodPut, path, map[string]interface{}{}); code != http.StatusBadRequest {
		t.Errorf("missing end position = %d, want 400", code)
	}
}

func TestRouteEndpoints(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	trip := f.createTrip(t)
	base := "/api/v1/trips/" + trip.Token

	if code, _ := f.do(t, http.MethodGet, base+"/route/frame", nil); code != http.StatusServiceUnavailable {
		t.Errorf("frame before route = %d, want 503", code)
	}

	code, resp := f.do(t, http.MethodGet, base+"/route", nil)
	if code != http.StatusOK {
		t.Fatalf("route = %d %+v, want 200", code, resp.Error)
	}
	var route models.Route
	if err := json.Unmarshal(resp.Data, &route); err != nil {
		t.Fatal(err)
	}
	if route.DistanceText != "5.4 km" || route.DurationText != "16 mins" {
		t.Errorf("route texts = %q/%q", route.DistanceText, route.DurationText)
	}

	code, resp = f.do(t, http.MethodGet, base+"/route/frame?lat=28.70&lng=77.10", nil)
	if code != http.StatusOK {
		t.Fatalf("frame = %d %+v, want 200", code, resp.Error)
	}
	var bounds utils.Bounds
	if err := json.Unmarshal(resp.Data, &bounds); err != nil {
		t.Fatal(err)
	}
	if !bounds.Contains(utils.Point{Lat: 28.70, Lng: 77.10}) || !bounds.Contains(utils.Point{Lat: 28.62, Lng: 77.21}) {
		t.Errorf("bounds %+v do not cover viewer and destination", bounds)
	}

	if code, _ := f.do(t, http.MethodGet, base+"/route/frame?lat=abc&lng=1", nil); code != http.StatusBadRequest {
		t.Errorf("bad frame query = %d, want 400", code)
	}
}

func TestListTrips(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	first := f.createTrip(t)
	f.createTrip(t)
	f.goOnline(t, first.Token)

	code, resp := f.do(t, http.MethodGet, "/api/v1/trips?status=ACTIVE", nil)
	if code != http.StatusOK {
		t.Fatalf("list = %d %+v", code, resp.Error)
	}
	var trips []models.Trip
	if err := json.Unmarshal(resp.Data, &trips); err != nil {
		t.Fatal(err)
	}
	if len(trips) != 1 || trips[0].Token != first.Token {
		t.Fatalf("ACTIVE trips = %d, want only %s", len(trips), first.Token)
	}
	if trips[0].OTP != "" {
		t.Error("list leaked the start code")
	}

	if code, _ := f.do(t, http.MethodGet, "/api/v1/trips?status=LOST", nil); code != http.StatusBadRequest {
		t.Errorf("unknown status = %d, want 400", code)
	}
}
