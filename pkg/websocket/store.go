package websocket

import (
	"context"
	"errors"
	"sync"

	"github.com/diintechteam9/cab-tracker/internal/models"
	"github.com/diintechteam9/cab-tracker/pkg/cache"
)

// memorySampleStore is the single-instance SampleStore used when Redis is
// not configured.
type memorySampleStore struct {
	mu      sync.RWMutex
	samples map[string]models.LocationSample
}

func newMemorySampleStore() *memorySampleStore {
	return &memorySampleStore{samples: make(map[string]models.LocationSample)}
}

func (s *memorySampleStore) SaveLastSample(ctx context.Context, sample models.LocationSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.samples[sample.Token] = sample
	return nil
}

func (s *memorySampleStore) LastSample(ctx context.Context, token string) (*models.LocationSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sample, ok := s.samples[token]
	if !ok {
		return nil, cache.ErrCacheMiss
	}
	return &sample, nil
}

func (s *memorySampleStore) DeleteLastSample(ctx context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.samples, token)
	return nil
}

func isCacheMiss(err error) bool {
	return errors.Is(err, cache.ErrCacheMiss)
}
