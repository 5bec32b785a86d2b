// Package memory keeps trips in process memory. It backs tests and
// single-instance deployments started with DB_DRIVER=memory.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/diintechteam9/cab-tracker/internal/models"
	"github.com/diintechteam9/cab-tracker/internal/repositories/interfaces"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type tripRepository struct {
	mu      sync.RWMutex
	byToken map[string]*models.Trip
	byID    map[primitive.ObjectID]string
	now     func() time.Time
}

func NewTripRepository() interfaces.TripRepository {
	return &tripRepository{
		byToken: make(map[string]*models.Trip),
		byID:    make(map[primitive.ObjectID]string),
		now:     time.Now,
	}
}

func (r *tripRepository) Create(ctx context.Context, trip *models.Trip) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byToken[trip.Token]; exists {
		return interfaces.ErrDuplicateToken
	}

	if trip.ID.IsZero() {
		trip.ID = primitive.NewObjectID()
	}
	now := r.now()
	if trip.CreatedAt.IsZero() {
		trip.CreatedAt = now
	}
	trip.UpdatedAt = now

	r.byToken[trip.Token] = trip.Clone()
	r.byID[trip.ID] = trip.Token
	return nil
}

func (r *tripRepository) GetByToken(ctx context.Context, token string) (*models.Trip, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	trip, ok := r.byToken[token]
	if !ok {
		return nil, models.ErrTripNotFound
	}
	return trip.Clone(), nil
}

func (r *tripRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Trip, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	token, ok := r.byID[id]
	if !ok {
		return nil, models.ErrTripNotFound
	}
	return r.byToken[token].Clone(), nil
}

func (r *tripRepository) List(ctx context.Context, filter models.TripFilter) ([]*models.Trip, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	trips := make([]*models.Trip, 0, len(r.byToken))
	for _, trip := range r.byToken {
		if filter.Status != "" && trip.Status != filter.Status {
			continue
		}
		trips = append(trips, trip.Clone())
	}

	sort.Slice(trips, func(i, j int) bool {
		return trips[i].CreatedAt.After(trips[j].CreatedAt)
	})
	if filter.Limit > 0 && int64(len(trips)) > filter.Limit {
		trips = trips[:filter.Limit]
	}
	return trips, nil
}

func (r *tripRepository) UpdateStatus(ctx context.Context, token string, from []models.TripStatus, to models.TripStatus, update models.TripUpdate) (*models.Trip, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	trip, ok := r.byToken[token]
	if !ok {
		return nil, models.ErrTripNotFound
	}
	if !statusIn(trip.Status, from) {
		return nil, models.ErrInvalidState
	}

	update.Apply(trip, to, r.now())
	return trip.Clone(), nil
}

func statusIn(status models.TripStatus, set []models.TripStatus) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}
