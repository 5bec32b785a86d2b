package interfaces

import (
	"context"
	"errors"

	"github.com/diintechteam9/cab-tracker/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

var ErrDuplicateToken = errors.New("trip token already exists")

type TripRepository interface {
	Create(ctx context.Context, trip *models.Trip) error
	GetByToken(ctx context.Context, token string) (*models.Trip, error)
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Trip, error)
	List(ctx context.Context, filter models.TripFilter) ([]*models.Trip, error)

	// UpdateStatus moves the trip to status `to` only if its stored status is
	// one of `from`, writing update alongside. It returns the trip as stored
	// after the write, models.ErrTripNotFound for an unknown token, and
	// models.ErrInvalidState when the stored status did not match.
	UpdateStatus(ctx context.Context, token string, from []models.TripStatus, to models.TripStatus, update models.TripUpdate) (*models.Trip, error)
}
