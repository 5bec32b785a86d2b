package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/diintechteam9/cab-tracker/internal/models"
	"github.com/diintechteam9/cab-tracker/internal/utils"
	"github.com/diintechteam9/cab-tracker/pkg/cache"
	"github.com/diintechteam9/cab-tracker/pkg/logger"
)

// RedisClient is the subset of cache.RedisCache the cache service needs.
type RedisClient interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
}

type CacheService interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error

	// Trip read-through cache used by the Mongo repository
	CacheTrip(ctx context.Context, trip *models.Trip) error
	GetCachedTrip(ctx context.Context, token string) (*models.Trip, error)
	InvalidateTrip(ctx context.Context, token string) error

	// Last admitted sample per token, for late joiners on any instance
	SaveLastSample(ctx context.Context, sample models.LocationSample) error
	LastSample(ctx context.Context, token string) (*models.LocationSample, error)
	DeleteLastSample(ctx context.Context, token string) error

	// Second-level route cache shared between instances
	SaveRoute(ctx context.Context, route *models.Route) error
	LoadRoute(ctx context.Context, token string) (*models.Route, error)
	DeleteRoute(ctx context.Context, token string) error
}

type cacheService struct {
	redisClient RedisClient
	logger      *logger.Logger
	keyPrefix   string
	defaultTTL  time.Duration
	tripTTL     time.Duration
	sampleTTL   time.Duration
	routeTTL    time.Duration
}

type CacheTTLs struct {
	Default time.Duration
	Trip    time.Duration
	Sample  time.Duration
	Route   time.Duration
}

func NewCacheService(redisClient RedisClient, logger *logger.Logger, keyPrefix string, ttls CacheTTLs) CacheService {
	if ttls.Default <= 0 {
		ttls.Default = time.Hour
	}
	if ttls.Trip <= 0 {
		ttls.Trip = ttls.Default
	}
	if ttls.Sample <= 0 {
		ttls.Sample = ttls.Default
	}
	if ttls.Route <= 0 {
		ttls.Route = ttls.Default
	}
	return &cacheService{
		redisClient: redisClient,
		logger:      logger.WithComponent("cache"),
		keyPrefix:   keyPrefix,
		defaultTTL:  ttls.Default,
		tripTTL:     ttls.Trip,
		sampleTTL:   ttls.Sample,
		routeTTL:    ttls.Route,
	}
}

// ErrCacheMiss is returned by every lookup whose key is absent.
var ErrCacheMiss = cache.ErrCacheMiss

func (s *cacheService) Get(ctx context.Context, key string, dest interface{}) error {
	fullKey := s.buildKey(key)

	if err := s.redisClient.Get(ctx, fullKey, dest); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return ErrCacheMiss
		}
		return fmt.Errorf("failed to get cache key %s: %w", key, err)
	}

	s.logger.WithField("cache_key", key).Debug("Cache hit")
	return nil
}

func (s *cacheService) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	fullKey := s.buildKey(key)

	if expiration == 0 {
		expiration = s.defaultTTL
	}

	if err := s.redisClient.Set(ctx, fullKey, value, expiration); err != nil {
		return fmt.Errorf("failed to set cache key %s: %w", key, err)
	}

	s.logger.WithField("cache_key", key).
		WithField("expiration", expiration).
		Debug("Cache set")

	return nil
}

func (s *cacheService) Delete(ctx context.Context, keys ...string) error {
	fullKeys := make([]string, len(keys))
	for i, key := range keys {
		fullKeys[i] = s.buildKey(key)
	}

	if err := s.redisClient.Delete(ctx, fullKeys...); err != nil {
		return fmt.Errorf("failed to delete cache keys: %w", err)
	}

	s.logger.WithField("cache_keys", keys).Debug("Cache keys deleted")
	return nil
}

func (s *cacheService) Ping(ctx context.Context) error {
	return s.redisClient.Ping(ctx)
}

func (s *cacheService) CacheTrip(ctx context.Context, trip *models.Trip) error {
	return s.Set(ctx, utils.CacheTripPrefix+trip.Token, trip, s.tripTTL)
}

func (s *cacheService) GetCachedTrip(ctx context.Context, token string) (*models.Trip, error) {
	var trip models.Trip
	if err := s.Get(ctx, utils.CacheTripPrefix+token, &trip); err != nil {
		return nil, err
	}
	return &trip, nil
}

func (s *cacheService) InvalidateTrip(ctx context.Context, token string) error {
	return s.Delete(ctx, utils.CacheTripPrefix+token)
}

func (s *cacheService) SaveLastSample(ctx context.Context, sample models.LocationSample) error {
	return s.Set(ctx, utils.CacheSamplePrefix+sample.Token, sample, s.sampleTTL)
}

func (s *cacheService) LastSample(ctx context.Context, token string) (*models.LocationSample, error) {
	var sample models.LocationSample
	if err := s.Get(ctx, utils.CacheSamplePrefix+token, &sample); err != nil {
		return nil, err
	}
	return &sample, nil
}

func (s *cacheService) DeleteLastSample(ctx context.Context, token string) error {
	return s.Delete(ctx, utils.CacheSamplePrefix+token)
}

func (s *cacheService) SaveRoute(ctx context.Context, route *models.Route) error {
	return s.Set(ctx, utils.CacheRoutePrefix+route.Token, route, s.routeTTL)
}

func (s *cacheService) LoadRoute(ctx context.Context, token string) (*models.Route, error) {
	var route models.Route
	if err := s.Get(ctx, utils.CacheRoutePrefix+token, &route); err != nil {
		return nil, err
	}
	return &route, nil
}

func (s *cacheService) DeleteRoute(ctx context.Context, token string) error {
	return s.Delete(ctx, utils.CacheRoutePrefix+token)
}

func (s *cacheService) buildKey(key string) string {
	if s.keyPrefix != "" {
		return fmt.Sprintf("%s:%s", s.keyPrefix, key)
	}
	return key
}
