package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diintechteam9/cab-tracker/internal/models"
	"github.com/diintechteam9/cab-tracker/internal/repositories/interfaces"
	"github.com/diintechteam9/cab-tracker/internal/services"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const TripsCollection = "trips"

type tripRepository struct {
	collection *mongo.Collection
	cache      services.CacheService
}

// NewTripRepository returns a Mongo-backed trip store. cache may be nil, in
// which case every read goes to the database.
func NewTripRepository(db *mongo.Database, cache services.CacheService) interfaces.TripRepository {
	return &tripRepository{
		collection: db.Collection(TripsCollection),
		cache:      cache,
	}
}

func (r *tripRepository) Create(ctx context.Context, trip *models.Trip) error {
	if trip.ID.IsZero() {
		trip.ID = primitive.NewObjectID()
	}
	now := time.Now()
	if trip.CreatedAt.IsZero() {
		trip.CreatedAt = now
	}
	trip.UpdatedAt = now

	_, err := r.collection.InsertOne(ctx, trip)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return interfaces.ErrDuplicateToken
		}
		return fmt.Errorf("failed to create trip: %w", err)
	}

	r.cacheTrip(ctx, trip)
	return nil
}

func (r *tripRepository) GetByToken(ctx context.Context, token string) (*models.Trip, error) {
	if trip := r.getTripFromCache(ctx, token); trip != nil {
		return trip, nil
	}

	var trip models.Trip
	err := r.collection.FindOne(ctx, bson.M{"token": token}).Decode(&trip)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrTripNotFound
		}
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}

	r.cacheTrip(ctx, &trip)
	return &trip, nil
}

func (r *tripRepository) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Trip, error) {
	var trip models.Trip
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&trip)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, models.ErrTripNotFound
		}
		return nil, fmt.Errorf("failed to get trip by id: %w", err)
	}

	return &trip, nil
}

func (r *tripRepository) List(ctx context.Context, filter models.TripFilter) ([]*models.Trip, error) {
	query := bson.M{}
	if filter.Status != "" {
		query["status"] = filter.Status
	}

	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if filter.Limit > 0 {
		opts.SetLimit(filter.Limit)
	}

	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}
	defer cursor.Close(ctx)

	var trips []*models.Trip
	if err := cursor.All(ctx, &trips); err != nil {
		return nil, fmt.Errorf("failed to decode trips: %w", err)
	}

	return trips, nil
}

func (r *tripRepository) UpdateStatus(ctx context.Context, token string, from []models.TripStatus, to models.TripStatus, update models.TripUpdate) (*models.Trip, error) {
	set := bson.M{
		"status":     to,
		"updated_at": time.Now(),
	}
	if update.StartLocation != nil {
		set["start_location"] = update.StartLocation
	}
	if update.EndLocation != nil {
		set["end_location"] = update.EndLocation
	}
	if update.TravelledKm != nil {
		set["travelled_km"] = *update.TravelledKm
	}
	if update.OnlineAt != nil {
		set["online_at"] = *update.OnlineAt
	}
	if update.OTPVerifiedAt != nil {
		set["otp_verified_at"] = *update.OTPVerifiedAt
	}
	if update.StartedAt != nil {
		set["started_at"] = *update.StartedAt
	}
	if update.CompletedAt != nil {
		set["completed_at"] = *update.CompletedAt
	}

	filter := bson.M{
		"token":  token,
		"status": bson.M{"$in": from},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var trip models.Trip
	err := r.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&trip)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("failed to update trip status: %w", err)
		}
		count, cerr := r.collection.CountDocuments(ctx, bson.M{"token": token})
		if cerr != nil {
			return nil, fmt.Errorf("failed to check trip: %w", cerr)
		}
		if count == 0 {
			return nil, models.ErrTripNotFound
		}
		return nil, models.ErrInvalidState
	}

	r.invalidateTripCache(ctx, token)
	return &trip, nil
}

func (r *tripRepository) cacheTrip(ctx context.Context, trip *models.Trip) {
	if r.cache == nil {
		return
	}
	r.cache.CacheTrip(ctx, trip)
}

func (r *tripRepository) getTripFromCache(ctx context.Context, token string) *models.Trip {
	if r.cache == nil {
		return nil
	}
	trip, err := r.cache.GetCachedTrip(ctx, token)
	if err != nil {
		return nil
	}
	return trip
}

func (r *tripRepository) invalidateTripCache(ctx context.Context, token string) {
	if r.cache == nil {
		return
	}
	r.cache.InvalidateTrip(ctx, token)
}
