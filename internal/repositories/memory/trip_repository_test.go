package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/diintechteam9/cab-tracker/internal/models"
	"github.com/diintechteam9/cab-tracker/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newTrip(token string) *models.Trip {
	return &models.Trip{
		Token:       token,
		Status:      models.TripStatusPending,
		OTP:         "4821",
		Source:      models.NewLocation(28.61, 77.20, ""),
		Destination: models.NewLocation(28.65, 77.25, ""),
	}
}

func TestCreateAndGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewTripRepository()

	trip := newTrip("abc123")
	if err := repo.Create(ctx, trip); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if trip.ID.IsZero() {
		t.Fatal("Create did not assign an ID")
	}

	byToken, err := repo.GetByToken(ctx, "abc123")
	if err != nil {
		t.Fatalf("GetByToken: %v", err)
	}
	byID, err := repo.GetByID(ctx, trip.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if byToken.ID != byID.ID || byID.Token != "abc123" {
		t.Errorf("GetByToken and GetByID disagree: %v vs %v", byToken.ID, byID.ID)
	}

	if err := repo.Create(ctx, newTrip("abc123")); !errors.Is(err, interfaces.ErrDuplicateToken) {
		t.Errorf("duplicate Create = %v, want ErrDuplicateToken", err)
	}
	if _, err := repo.GetByToken(ctx, "missing"); !errors.Is(err, models.ErrTripNotFound) {
		t.Errorf("GetByToken(missing) = %v, want ErrTripNotFound", err)
	}
	if _, err := repo.GetByID(ctx, primitive.NewObjectID()); !errors.Is(err, models.ErrTripNotFound) {
		t.Errorf("GetByID(missing) = %v, want ErrTripNotFound", err)
	}
}

func TestReturnedTripsAreCopies(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewTripRepository()
	repo.Create(ctx, newTrip("abc123"))

	got, _ := repo.GetByToken(ctx, "abc123")
	got.Status = models.TripStatusCompleted
	got.Source.Coordinates[0] = 0

	again, _ := repo.GetByToken(ctx, "abc123")
	if again.Status != models.TripStatusPending || again.Source.Longitude() != 77.20 {
		t.Errorf("caller mutation leaked into the store: %+v", again)
	}
}

func TestUpdateStatusCompareAndSet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewTripRepository()
	repo.Create(ctx, newTrip("abc123"))

	now := time.Now()
	trip, err := repo.UpdateStatus(ctx, "abc123",
		[]models.TripStatus{models.TripStatusPending}, models.TripStatusActive,
		models.TripUpdate{OnlineAt: &now})
	if err != nil {
		t.Fatalf("UpdateStatus PENDING->ACTIVE: %v", err)
	}
	if trip.Status != models.TripStatusActive || trip.OnlineAt == nil {
		t.Errorf("trip = %+v, want ACTIVE with OnlineAt", trip)
	}

	_, err = repo.UpdateStatus(ctx, "abc123",
		[]models.TripStatus{models.TripStatusPending}, models.TripStatusActive, models.TripUpdate{})
	if !errors.Is(err, models.ErrInvalidState) {
		t.Errorf("stale CAS = %v, want ErrInvalidState", err)
	}

	_, err = repo.UpdateStatus(ctx, "missing",
		[]models.TripStatus{models.TripStatusPending}, models.TripStatusActive, models.TripUpdate{})
	if !errors.Is(err, models.ErrTripNotFound) {
		t.Errorf("UpdateStatus(missing) = %v, want ErrTripNotFound", err)
	}
}

func TestUpdateStatusConcurrentSingleWinner(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewTripRepository()
	trip := newTrip("abc123")
	trip.Status = models.TripStatusActive
	repo.Create(ctx, trip)

	const workers = 16
	var wg sync.WaitGroup
	results := make(chan error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := repo.UpdateStatus(ctx, "abc123",
				[]models.TripStatus{models.TripStatusActive}, models.TripStatusStarted, models.TripUpdate{})
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	wins := 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case !errors.Is(err, models.ErrInvalidState):
			t.Errorf("unexpected error %v", err)
		}
	}
	if wins != 1 {
		t.Errorf("wins = %d, want exactly 1", wins)
	}
}

func TestListFiltersAndOrders(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := NewTripRepository()

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, token := range []string{"a", "b", "c"} {
		trip := newTrip(token)
		trip.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		if token == "b" {
			trip.Status = models.TripStatusActive
		}
		repo.Create(ctx, trip)
	}

	all, _ := repo.List(ctx, models.TripFilter{})
	if len(all) != 3 || all[0].Token != "c" || all[2].Token != "a" {
		t.Errorf("List() order = %v, want newest first", tokens(all))
	}

	pending, _ := repo.List(ctx, models.TripFilter{Status: models.TripStatusPending, Limit: 1})
	if len(pending) != 1 || pending[0].Token != "c" {
		t.Errorf("List(PENDING, limit 1) = %v, want [c]", tokens(pending))
	}
}

func tokens(trips []*models.Trip) []string {
	out := make([]string, len(trips))
	for i, t := range trips {
		out[i] = t.Token
	}
	return out
}
