package services

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/diintechteam9/cab-tracker/internal/models"
	"github.com/diintechteam9/cab-tracker/internal/utils"
	"github.com/diintechteam9/cab-tracker/pkg/clock"
	"github.com/diintechteam9/cab-tracker/pkg/logger"
	"github.com/diintechteam9/cab-tracker/pkg/maps"

	"golang.org/x/sync/singleflight"
)

// Route lookup outcomes reported to RouteMetrics.
const (
	RouteResultHit         = "hit"
	RouteResultSharedHit   = "shared_hit"
	RouteResultMiss        = "miss"
	RouteResultStale       = "stale"
	RouteResultUnavailable = "unavailable"
)

type RouteService interface {
	// GetRoute returns the route for token between src and dst, calling the
	// directions provider only when the endpoints changed.
	GetRoute(ctx context.Context, token string, src, dst utils.Point) (*models.Route, error)

	// Frame returns bounds covering the cached route and the extra points.
	// It is for display only and never touches the cache.
	Frame(token string, extra ...utils.Point) *utils.Bounds

	Evict(token string)
	TripTransitioned(ctx context.Context, trip *models.Trip, event string)
}

// RouteStore is the shared second-level cache. CacheService satisfies it.
type RouteStore interface {
	SaveRoute(ctx context.Context, route *models.Route) error
	LoadRoute(ctx context.Context, token string) (*models.Route, error)
	DeleteRoute(ctx context.Context, token string) error
}

type RouteMetrics interface {
	RouteLookup(result string)
}

type routeService struct {
	provider maps.DirectionsProvider
	store    RouteStore
	clock    clock.Clock
	logger   *logger.Logger
	metrics  RouteMetrics
	mode     string

	group singleflight.Group

	mu     sync.RWMutex
	routes map[string]*models.Route
}

func NewRouteService(provider maps.DirectionsProvider, store RouteStore, clk clock.Clock, log *logger.Logger, metrics RouteMetrics) RouteService {
	if clk == nil {
		clk = clock.Real()
	}
	if metrics == nil {
		metrics = nopRouteMetrics{}
	}
	return &routeService{
		provider: provider,
		store:    store,
		clock:    clk,
		logger:   log.WithComponent("routes"),
		metrics:  metrics,
		mode:     "driving",
		routes:   make(map[string]*models.Route),
	}
}

func (s *routeService) GetRoute(ctx context.Context, token string, src, dst utils.Point) (*models.Route, error) {
	if cached := s.cached(token); cached.Matches(src, dst) && !cached.Stale {
		s.metrics.RouteLookup(RouteResultHit)
		return copyRoute(cached), nil
	}

	key := fmt.Sprintf("%s|%s|%s", token, src, dst)
	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		return s.load(ctx, token, src, dst)
	})
	if err != nil {
		s.metrics.RouteLookup(RouteResultUnavailable)
		return nil, err
	}

	route := v.(*models.Route)
	switch {
	case route.Stale:
		s.metrics.RouteLookup(RouteResultStale)
	case shared:
		s.metrics.RouteLookup(RouteResultSharedHit)
	default:
		s.metrics.RouteLookup(RouteResultMiss)
	}
	return copyRoute(route), nil
}

func (s *routeService) load(ctx context.Context, token string, src, dst utils.Point) (*models.Route, error) {
	log := s.logger.WithTripToken(token)

	if s.store != nil {
		stored, err := s.store.LoadRoute(ctx, token)
		switch {
		case err == nil && stored.Matches(src, dst) && !stored.Stale:
			s.put(stored)
			return stored, nil
		case err != nil && !errors.Is(err, ErrCacheMiss):
			log.WithError(err).Warn("Route store lookup failed")
		}
	}

	route, err := s.fetch(ctx, token, src, dst)
	if err != nil {
		log.WithError(err).Warn("Directions provider failed")
		if prev := s.cached(token); prev != nil {
			stale := copyRoute(prev)
			stale.Stale = true
			return stale, nil
		}
		return nil, fmt.Errorf("%w: %v", models.ErrRouteUnavailable, err)
	}

	s.put(route)
	if s.store != nil {
		if err := s.store.SaveRoute(ctx, route); err != nil {
			log.WithError(err).Warn("Failed to save route to store")
		}
	}
	log.WithField("distance", route.DistanceText).Debug("Route computed")
	return route, nil
}

func (s *routeService) fetch(ctx context.Context, token string, src, dst utils.Point) (*models.Route, error) {
	if s.provider == nil {
		return nil, errors.New("no directions provider configured")
	}
	resp, err := s.provider.GetDirections(ctx, &maps.DirectionsRequest{
		Origin:      maps.Location{Latitude: src.Lat, Longitude: src.Lng},
		Destination: maps.Location{Latitude: dst.Lat, Longitude: dst.Lng},
		Mode:        s.mode,
	})
	if err != nil {
		return nil, err
	}
	best, err := resp.Best()
	if err != nil {
		return nil, err
	}

	route := &models.Route{
		Token:           token,
		Source:          src,
		Destination:     dst,
		Polyline:        best.Polyline,
		Summary:         best.Summary,
		DistanceText:    best.Distance.Text,
		DurationText:    best.Duration.Text,
		DistanceMeters:  int(best.Distance.Value),
		DurationSeconds: best.Duration.Value,
		ComputedAt:      s.clock.Now(),
	}
	if route.DurationSeconds == 0 && route.DistanceMeters > 0 {
		estimateDuration(route)
	}
	if best.Bounds != nil {
		route.Bounds = &utils.Bounds{
			Northeast: utils.Point{Lat: best.Bounds.Northeast.Latitude, Lng: best.Bounds.Northeast.Longitude},
			Southwest: utils.Point{Lat: best.Bounds.Southwest.Latitude, Lng: best.Bounds.Southwest.Longitude},
		}
	} else {
		route.Bounds = utils.CalculateBounds([]utils.Point{src, dst})
	}
	return route, nil
}

// estimateDuration fills the duration of a route whose provider reported
// only a distance.
func estimateDuration(route *models.Route) {
	minutes := utils.EstimateETAMinutes(float64(route.DistanceMeters)/1000, utils.DefaultCitySpeedKMH)
	route.DurationSeconds = minutes * 60
	route.DurationText = fmt.Sprintf("%d mins", minutes)
	if minutes == 1 {
		route.DurationText = "1 min"
	}
}

func (s *routeService) Frame(token string, extra ...utils.Point) *utils.Bounds {
	var base *utils.Bounds
	if route := s.cached(token); route != nil {
		base = route.Bounds
		if base == nil {
			base = utils.CalculateBounds([]utils.Point{route.Source, route.Destination})
		}
	}
	valid := make([]utils.Point, 0, len(extra))
	for _, p := range extra {
		if utils.IsValidCoordinates(p.Lat, p.Lng) {
			valid = append(valid, p)
		}
	}
	if base == nil && len(valid) == 0 {
		return nil
	}
	return base.Extend(valid...)
}

func (s *routeService) Evict(token string) {
	s.mu.Lock()
	delete(s.routes, token)
	s.mu.Unlock()

	if s.store != nil {
		if err := s.store.DeleteRoute(context.Background(), token); err != nil && !errors.Is(err, ErrCacheMiss) {
			s.logger.WithTripToken(token).WithError(err).Warn("Failed to delete route from store")
		}
	}
}

func (s *routeService) TripTransitioned(ctx context.Context, trip *models.Trip, event string) {
	if trip.Status == models.TripStatusCompleted {
		s.Evict(trip.Token)
	}
}

func (s *routeService) cached(token string) *models.Route {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.routes[token]
}

func (s *routeService) put(route *models.Route) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes[route.Token] = route
}

func copyRoute(r *models.Route) *models.Route {
	cp := *r
	if r.Bounds != nil {
		b := *r.Bounds
		cp.Bounds = &b
	}
	return &cp
}

type nopRouteMetrics struct{}

func (nopRouteMetrics) RouteLookup(string) {}
