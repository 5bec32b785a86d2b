// Package broker relays channel traffic between server instances so a
// viewer connected to one instance sees samples admitted on another.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/diintechteam9/cab-tracker/pkg/cache"
	"github.com/diintechteam9/cab-tracker/pkg/logger"
)

// Envelope is one relayed channel message. Origin is the publishing
// instance; receivers drop their own messages.
type Envelope struct {
	Origin  string          `json:"origin"`
	Token   string          `json:"token"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

type Handler func(Envelope)

type Broker interface {
	Publish(ctx context.Context, env Envelope) error
	// Subscribe delivers every relayed message to h until ctx is cancelled.
	Subscribe(ctx context.Context, h Handler) error
	Close() error
}

// Metrics is satisfied by *metrics.Collector.
type Metrics interface {
	SetBrokerConnected(connected bool)
	IncBrokerPublished()
	IncBrokerPublishErrors()
	IncBrokerReceived()
}

type Config struct {
	Driver  string `yaml:"driver"` // none, redis, nats
	NATSURL string `yaml:"nats_url"`
	Prefix  string `yaml:"prefix"`
}

// New returns nil, nil when cfg.Driver is "none" or empty.
func New(cfg Config, redis *cache.RedisCache, m Metrics, log *logger.Logger) (Broker, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = "cabtracker"
	}
	switch strings.ToLower(cfg.Driver) {
	case "", "none":
		return nil, nil
	case "redis":
		if redis == nil {
			return nil, fmt.Errorf("redis broker requires redis to be enabled")
		}
		return NewRedisBroker(redis, cfg.Prefix, m, log), nil
	case "nats":
		b, err := NewNATSBroker(cfg.NATSURL, cfg.Prefix, m, log)
		if err != nil {
			return nil, err
		}
		return b, nil
	default:
		return nil, fmt.Errorf("unsupported broker driver: %s", cfg.Driver)
	}
}

type nopMetrics struct{}

func (nopMetrics) SetBrokerConnected(bool) {}
func (nopMetrics) IncBrokerPublished()     {}
func (nopMetrics) IncBrokerPublishErrors() {}
func (nopMetrics) IncBrokerReceived()      {}
