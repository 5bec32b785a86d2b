package services

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/diintechteam9/cab-tracker/internal/models"
	"github.com/diintechteam9/cab-tracker/internal/repositories/interfaces"
	"github.com/diintechteam9/cab-tracker/internal/utils"
	"github.com/diintechteam9/cab-tracker/pkg/clock"
	"github.com/diintechteam9/cab-tracker/pkg/logger"
	"github.com/diintechteam9/cab-tracker/pkg/maps"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Lifecycle events passed to listeners.
const (
	TripEventOnline    = "trip-online"
	TripEventStarted   = models.EventRideStarted
	TripEventCompleted = models.EventRideCompleted
)

type TripService interface {
	CreateTrip(ctx context.Context, input *CreateTripInput) (*TripCreation, error)
	GetTrip(ctx context.Context, token string) (*models.Trip, error)
	GetTripByID(ctx context.Context, id string) (*models.Trip, error)
	ListTrips(ctx context.Context, filter models.TripFilter) ([]*models.Trip, error)

	// AdmitSample decides whether a driver sample may be published. The
	// first ON sample for a PENDING trip moves it to ACTIVE.
	AdmitSample(ctx context.Context, sample models.LocationSample) (*models.Trip, error)
	VerifyStart(ctx context.Context, token, otp string, lat, lng float64) (*models.Trip, error)
	CompleteTrip(ctx context.Context, id string, lat, lng float64) (*models.Trip, error)

	AddListener(l TransitionListener)
}

// TransitionListener is told about every committed status change. It is
// called after the per-token lock has been released.
type TransitionListener interface {
	TripTransitioned(ctx context.Context, trip *models.Trip, event string)
}

// LifecycleMetrics is satisfied by *metrics.Collector.
type LifecycleMetrics interface {
	TripCreated()
	TripTransition(status string)
	OTPRejected()
}

type PlaceInput struct {
	Lat     *float64
	Lng     *float64
	Address string
}

type CreateTripInput struct {
	Source      PlaceInput
	Destination PlaceInput
	Passenger   models.Contact
	Driver      models.DriverInfo
}

type TripLinks struct {
	Driver    string `json:"driver"`
	Passenger string `json:"passenger"`
}

type TripCreation struct {
	Trip  *models.Trip `json:"trip"`
	Links TripLinks    `json:"links"`
}

type LinkConfig struct {
	Secret  string
	TTL     time.Duration
	BaseURL string
}

type TripServiceConfig struct {
	Links   LinkConfig
	Metrics LifecycleMetrics
}

type tripService struct {
	repo     interfaces.TripRepository
	geocoder maps.Geocoder
	notifier NotificationService
	clock    clock.Clock
	logger   *logger.Logger
	metrics  LifecycleMetrics
	links    LinkConfig
	locks    *keyedMutex

	listenersMu sync.RWMutex
	listeners   []TransitionListener
}

func NewTripService(
	repo interfaces.TripRepository,
	geocoder maps.Geocoder,
	notifier NotificationService,
	clk clock.Clock,
	log *logger.Logger,
	cfg TripServiceConfig,
) TripService {
	if clk == nil {
		clk = clock.Real()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopLifecycleMetrics{}
	}
	if cfg.Links.TTL <= 0 {
		cfg.Links.TTL = utils.DefaultLinkTTL
	}
	return &tripService{
		repo:     repo,
		geocoder: geocoder,
		notifier: notifier,
		clock:    clk,
		logger:   log.WithComponent("trips"),
		metrics:  cfg.Metrics,
		links:    cfg.Links,
		locks:    newKeyedMutex(),
	}
}

func (s *tripService) AddListener(l TransitionListener) {
	s.listenersMu.Lock()
	defer s.listenersMu.Unlock()
	s.listeners = append(s.listeners, l)
}

func (s *tripService) CreateTrip(ctx context.Context, input *CreateTripInput) (*TripCreation, error) {
	source, err := s.resolvePlace(ctx, input.Source)
	if err != nil {
		return nil, fmt.Errorf("source: %w", err)
	}
	destination, err := s.resolvePlace(ctx, input.Destination)
	if err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}

	now := s.clock.Now()
	trip := &models.Trip{
		ID:          primitive.NewObjectID(),
		Status:      models.TripStatusPending,
		Source:      source,
		Destination: destination,
		OTP:         utils.GenerateOTP(utils.OTPLength),
		Passenger:   input.Passenger,
		Driver:      input.Driver,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	// Retry on the unique-index collision, at most twice.
	for attempt := 0; ; attempt++ {
		trip.Token = utils.GenerateTripToken()
		err = s.repo.Create(ctx, trip)
		if err == nil {
			break
		}
		if !errors.Is(err, interfaces.ErrDuplicateToken) || attempt >= 2 {
			return nil, fmt.Errorf("failed to create trip: %w", err)
		}
	}

	links, err := s.buildLinks(trip.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to sign tracking links: %w", err)
	}

	s.metrics.TripCreated()
	s.logger.LogTripEvent(trip.Token, utils.EventTripCreated, map[string]interface{}{
		"trip_id":     trip.ID.Hex(),
		"source":      source.Point().String(),
		"destination": destination.Point().String(),
	})

	if s.notifier != nil {
		if err := s.notifier.NotifyTripCreated(ctx, trip, links); err != nil {
			s.logger.WithTripToken(trip.Token).WithError(err).Warn("Trip created but notification failed")
		}
	}

	return &TripCreation{Trip: trip, Links: links}, nil
}

func (s *tripService) GetTrip(ctx context.Context, token string) (*models.Trip, error) {
	trip, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	return trip, nil
}

func (s *tripService) GetTripByID(ctx context.Context, id string) (*models.Trip, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, models.ErrTripNotFound
	}
	trip, err := s.repo.GetByID(ctx, oid)
	if err != nil {
		return nil, fmt.Errorf("failed to get trip: %w", err)
	}
	return trip, nil
}

func (s *tripService) ListTrips(ctx context.Context, filter models.TripFilter) ([]*models.Trip, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, fmt.Errorf("unknown status %q: %w", filter.Status, models.ErrInvalidState)
	}
	trips, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list trips: %w", err)
	}
	return trips, nil
}

func (s *tripService) AdmitSample(ctx context.Context, sample models.LocationSample) (*models.Trip, error) {
	if err := sample.Validate(); err != nil {
		return nil, err
	}

	trip, err := s.repo.GetByToken(ctx, sample.Token)
	if err != nil {
		return nil, err
	}

	switch {
	case trip.Status.AcceptsSamples():
		return trip, nil
	case trip.Status.IsTerminal():
		return nil, fmt.Errorf("trip is %s: %w", trip.Status, models.ErrInvalidState)
	case !sample.IsOn():
		return nil, fmt.Errorf("trip is %s and GPS is off: %w", trip.Status, models.ErrInvalidState)
	}

	unlock := s.locks.Lock(sample.Token)
	now := s.clock.Now()
	updated, err := s.repo.UpdateStatus(ctx, sample.Token,
		[]models.TripStatus{models.TripStatusPending},
		models.TripStatusActive,
		models.TripUpdate{OnlineAt: &now},
	)
	unlock()

	if errors.Is(err, models.ErrInvalidState) {
		// Another sample or instance took it online first.
		current, getErr := s.repo.GetByToken(ctx, sample.Token)
		if getErr != nil {
			return nil, getErr
		}
		if current.Status.AcceptsSamples() {
			return current, nil
		}
		return nil, fmt.Errorf("trip is %s: %w", current.Status, models.ErrInvalidState)
	}
	if err != nil {
		return nil, err
	}

	s.logger.LogTripEvent(updated.Token, utils.EventTripOnline, nil)
	s.notify(ctx, updated, TripEventOnline)
	return updated, nil
}

// VerifyStart moves an ACTIVE trip to STARTED when the start code matches.
// The verifier's coordinate is part of the proof and becomes the start
// location.
func (s *tripService) VerifyStart(ctx context.Context, token, otp string, lat, lng float64) (*models.Trip, error) {
	if !utils.IsValidCoordinates(lat, lng) {
		return nil, fmt.Errorf("start location: %w", models.ErrInvalidSample)
	}

	unlock := s.locks.Lock(token)

	trip, err := s.repo.GetByToken(ctx, token)
	if err != nil {
		unlock()
		return nil, err
	}
	if trip.Status != models.TripStatusActive {
		unlock()
		return nil, fmt.Errorf("cannot verify start code while %s: %w", trip.Status, models.ErrInvalidState)
	}
	if subtle.ConstantTimeCompare([]byte(strings.TrimSpace(otp)), []byte(trip.OTP)) != 1 {
		unlock()
		s.metrics.OTPRejected()
		s.logger.WithTripToken(token).LogSecurityEvent(utils.EventOTPRejected, "low", map[string]interface{}{
			"trip_token": token,
		})
		return nil, models.ErrInvalidOTP
	}

	now := s.clock.Now()
	start := models.NewLocation(lat, lng, "")
	update := models.TripUpdate{
		StartedAt:     &now,
		OTPVerifiedAt: &now,
		StartLocation: &start,
	}

	updated, err := s.repo.UpdateStatus(ctx, token,
		[]models.TripStatus{models.TripStatusActive},
		models.TripStatusStarted,
		update,
	)
	unlock()
	if err != nil {
		return nil, err
	}

	s.logger.LogTripEvent(token, utils.EventRideStarted, map[string]interface{}{
		"start": locationString(updated.StartLocation),
	})
	s.notify(ctx, updated, TripEventStarted)
	return updated, nil
}

func (s *tripService) CompleteTrip(ctx context.Context, id string, lat, lng float64) (*models.Trip, error) {
	if !utils.IsValidCoordinates(lat, lng) {
		return nil, fmt.Errorf("end location: %w", models.ErrInvalidSample)
	}

	trip, err := s.GetTripByID(ctx, id)
	if err != nil {
		return nil, err
	}

	unlock := s.locks.Lock(trip.Token)

	// Re-read under the lock; the copy above may predate a transition.
	trip, err = s.repo.GetByToken(ctx, trip.Token)
	if err != nil {
		unlock()
		return nil, err
	}
	if trip.Status.IsTerminal() {
		unlock()
		return nil, fmt.Errorf("trip already %s: %w", trip.Status, models.ErrInvalidState)
	}

	now := s.clock.Now()
	end := models.NewLocation(lat, lng, "")
	origin := trip.Source.Point()
	if trip.StartLocation != nil && trip.StartLocation.HasCoordinates() {
		origin = trip.StartLocation.Point()
	}
	travelled := utils.DistanceBetween(origin, end.Point())

	updated, err := s.repo.UpdateStatus(ctx, trip.Token,
		[]models.TripStatus{models.TripStatusPending, models.TripStatusActive, models.TripStatusStarted},
		models.TripStatusCompleted,
		models.TripUpdate{
			EndLocation: &end,
			TravelledKm: &travelled,
			CompletedAt: &now,
		},
	)
	unlock()
	if err != nil {
		return nil, err
	}

	s.logger.LogTripEvent(updated.Token, utils.EventRideCompleted, map[string]interface{}{
		"travelled_km": fmt.Sprintf("%.2f", travelled),
		"from_status":  string(trip.Status),
	})
	s.notify(ctx, updated, TripEventCompleted)
	return updated, nil
}

func (s *tripService) notify(ctx context.Context, trip *models.Trip, event string) {
	s.metrics.TripTransition(string(trip.Status))

	s.listenersMu.RLock()
	listeners := make([]TransitionListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.listenersMu.RUnlock()

	for _, l := range listeners {
		l.TripTransitioned(ctx, trip.Clone(), event)
	}
}

func (s *tripService) resolvePlace(ctx context.Context, in PlaceInput) (models.Location, error) {
	if in.Lat != nil && in.Lng != nil {
		if !utils.IsValidCoordinates(*in.Lat, *in.Lng) {
			return models.Location{}, models.ErrInvalidSample
		}
		return models.NewLocation(*in.Lat, *in.Lng, in.Address), nil
	}
	if in.Address == "" || s.geocoder == nil {
		return models.Location{}, models.ErrLocationUnresolved
	}

	resp, err := s.geocoder.Geocode(ctx, in.Address)
	if err != nil {
		return models.Location{}, fmt.Errorf("%w: %v", models.ErrLocationUnresolved, err)
	}
	result, err := resp.First()
	if err != nil {
		return models.Location{}, fmt.Errorf("%w: %q", models.ErrLocationUnresolved, in.Address)
	}

	return models.NewLocation(result.Coordinates.Latitude, result.Coordinates.Longitude, in.Address), nil
}

func (s *tripService) buildLinks(token string) (TripLinks, error) {
	driver, err := s.link(token, models.RoleDriver)
	if err != nil {
		return TripLinks{}, err
	}
	passenger, err := s.link(token, models.RolePassenger)
	if err != nil {
		return TripLinks{}, err
	}
	return TripLinks{Driver: driver, Passenger: passenger}, nil
}

func (s *tripService) link(token string, role models.Role) (string, error) {
	q := url.Values{}
	q.Set("token", token)
	q.Set("role", string(role))
	if s.links.Secret != "" {
		access, err := utils.GenerateLinkToken(token, string(role), s.links.Secret, s.links.TTL)
		if err != nil {
			return "", err
		}
		q.Set("access", access)
	}
	return strings.TrimRight(s.links.BaseURL, "/") + "/track?" + q.Encode(), nil
}

func locationString(l *models.Location) string {
	if l == nil {
		return ""
	}
	return l.Point().String()
}

type nopLifecycleMetrics struct{}

func (nopLifecycleMetrics) TripCreated()          {}
func (nopLifecycleMetrics) TripTransition(string) {}
func (nopLifecycleMetrics) OTPRejected()          {}
