package trackclient

import (
	"context"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/diintechteam9/cab-tracker/internal/models"
	"github.com/diintechteam9/cab-tracker/internal/repositories/memory"
	"github.com/diintechteam9/cab-tracker/internal/services"
	"github.com/diintechteam9/cab-tracker/pkg/clock"
	"github.com/diintechteam9/cab-tracker/pkg/logger"
	hubws "github.com/diintechteam9/cab-tracker/pkg/websocket"

	"github.com/gin-gonic/gin"
)

type testServer struct {
	url   string
	trips services.TripService
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := logger.NewNop()

	trips := services.NewTripService(memory.NewTripRepository(), nil, nil, nil, log, services.TripServiceConfig{})
	hub := hubws.NewHub(hubws.HubConfig{Gatekeeper: trips, Logger: log})
	trips.AddListener(hub)

	router := gin.New()
	router.GET("/ws", hubws.NewHandler(hub, hubws.HandlerConfig{}, log).HandleWebSocket)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testServer{
		url:   "ws" + strings.TrimPrefix(server.URL, "http") + "/ws",
		trips: trips,
	}
}

func (s *testServer) createTrip(t *testing.T) *models.Trip {
	t.Helper()
	lat1, lng1, lat2, lng2 := 28.61, 77.20, 28.62, 77.21
	created, err := s.trips.CreateTrip(context.Background(), &services.CreateTripInput{
		Source:      services.PlaceInput{Lat: &lat1, Lng: &lng1},
		Destination: services.PlaceInput{Lat: &lat2, Lng: &lng2},
		Passenger:   models.Contact{Name: "Asha", Phone: "9876543210"},
		Driver:      models.DriverInfo{Name: "Ravi", Phone: "9123456780", VehicleNumber: "DL01AB1234"},
	})
	if err != nil {
		t.Fatalf("CreateTrip: %v", err)
	}
	return created.Trip
}

func waitFor(t *testing.T, events <-chan Event, kind EventKind) Event {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for {
		select {
		case e := <-events:
			if e.Kind == kind {
				return e
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", kind)
		}
	}
}

func TestViewerFollowsDriverUntilCompletion(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	trip := srv.createTrip(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	viewer := NewViewer(Config{ServerURL: srv.url, Token: trip.Token}, models.RolePassenger, 50*time.Millisecond)
	viewerEvents := make(chan Event, 64)
	viewerDone := make(chan error, 1)
	go func() { viewerDone <- viewer.Watch(ctx, func(e Event) { viewerEvents <- e }) }()

	joined := waitFor(t, viewerEvents, EventJoined)
	if joined.Trip == nil || joined.Trip.OTP == "" {
		t.Errorf("passenger snapshot = %+v, want trip with start code", joined.Trip)
	}

	driver := NewDriver(Config{ServerURL: srv.url, Token: trip.Token})
	samples := make(chan models.LocationSample)
	driverDone := make(chan error, 1)
	go func() { driverDone <- driver.Run(ctx, samples, nil) }()

	samples <- models.LocationSample{Lat: 28.61, Lng: 77.20, SpeedKmh: 20, GPSStatus: models.GPSStatusOn}
	first := waitFor(t, viewerEvents, EventMoved)
	if first.Sample.Lat != 28.61 {
		t.Errorf("first moved lat = %v, want 28.61", first.Sample.Lat)
	}

	samples <- models.LocationSample{Lat: 28.62, Lng: 77.21, SpeedKmh: 30, GPSStatus: models.GPSStatusOn}
	waitFor(t, viewerEvents, EventMoved)

	deadline := time.Now().Add(2 * time.Second)
	for {
		st, ok := viewer.State()
		if ok && !st.Animating && st.Position.Equal(st.Target) && st.Target.Lat == 28.62 {
			if st.HeadingDegrees < 20 || st.HeadingDegrees > 60 {
				t.Errorf("heading = %v, want north-east", st.HeadingDegrees)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("marker never settled on the second sample: %+v", st)
		}
		time.Sleep(10 * time.Millisecond)
	}

	if _, err := srv.trips.CompleteTrip(ctx, trip.ID.Hex(), 28.62, 77.21); err != nil {
		t.Fatalf("CompleteTrip: %v", err)
	}

	for name, done := range map[string]chan error{"viewer": viewerDone, "driver": driverDone} {
		select {
		case err := <-done:
			if err != nil {
				t.Errorf("%s returned %v, want nil after completion", name, err)
			}
		case <-time.After(5 * time.Second):
			t.Fatalf("%s did not stop after completion", name)
		}
	}
}

func TestViewerRejectedForUnknownTrip(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	viewer := NewViewer(Config{ServerURL: srv.url, Token: "missing"}, models.RolePassenger, 0)
	err := viewer.Watch(ctx, nil)
	if !errors.Is(err, ErrRejected) {
		t.Fatalf("Watch() = %v, want ErrRejected", err)
	}
}

func TestViewerResyncKeepsHeading(t *testing.T) {
	t.Parallel()
	clk := clock.Fake(time.Unix(1_700_000_000, 0))
	v := NewViewer(Config{Token: "abc123", Clock: clk}, models.RolePassenger, time.Second)

	v.rec.Apply(models.LocationSample{Token: "abc123", Lat: 28.61, Lng: 77.20, GPSStatus: models.GPSStatusOn})
	v.rec.Apply(models.LocationSample{Token: "abc123", Lat: 28.62, Lng: 77.21, GPSStatus: models.GPSStatusOn})
	clk.Advance(time.Second)
	before, _ := v.State()

	v.resync(models.Snapshot{
		LastSample: &models.LocationUpdate{Token: "abc123", Lat: 28.62, Lng: 77.21, GPSStatus: models.GPSStatusOn},
		GPSStatus:  models.GPSStatusOn,
	})
	after, _ := v.State()
	if after.HeadingDegrees != before.HeadingDegrees {
		t.Errorf("heading after resync = %v, want %v", after.HeadingDegrees, before.HeadingDegrees)
	}

	v.resync(models.Snapshot{GPSStatus: models.GPSStatusOff})
	if st, _ := v.State(); st.GPSStatus != models.GPSStatusOff || !st.Position.Equal(after.Position) {
		t.Errorf("state after OFF resync = %+v, want same position with GPS off", st)
	}
}

func TestBackoff(t *testing.T) {
	t.Parallel()
	clk := clock.Fake(time.Unix(0, 0))
	b := newBackoff(100*time.Millisecond, 300*time.Millisecond)

	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond}
	for i, d := range want {
		done := make(chan error, 1)
		go func() { done <- b.wait(context.Background(), clk) }()
		for clk.PendingCount() == 0 {
			time.Sleep(time.Millisecond)
		}
		clk.Advance(d - time.Millisecond)
		select {
		case <-done:
			t.Fatalf("wait %d returned before %v", i, d)
		default:
		}
		clk.Advance(time.Millisecond)
		if err := <-done; err != nil {
			t.Fatalf("wait %d: %v", i, err)
		}
	}

	b.reset()
	if b.next != 100*time.Millisecond {
		t.Errorf("after reset next = %v, want 100ms", b.next)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := b.wait(ctx, clk); !errors.Is(err, context.Canceled) {
		t.Errorf("wait on cancelled ctx = %v", err)
	}
}
