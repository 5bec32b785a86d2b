package broker

import (
	"context"
	"encoding/json"

	"github.com/diintechteam9/cab-tracker/pkg/cache"
	"github.com/diintechteam9/cab-tracker/pkg/logger"
)

// RedisBroker relays envelopes over Redis Pub/Sub, one channel per trip
// token under a shared prefix.
type RedisBroker struct {
	cache   *cache.RedisCache
	prefix  string
	metrics Metrics
	logger  *logger.Logger
}

func NewRedisBroker(c *cache.RedisCache, prefix string, m Metrics, log *logger.Logger) *RedisBroker {
	if m == nil {
		m = nopMetrics{}
	}
	return &RedisBroker{
		cache:   c,
		prefix:  prefix,
		metrics: m,
		logger:  log.WithComponent("broker.redis"),
	}
}

func (b *RedisBroker) channel(token string) string {
	return b.prefix + ":trip:" + token
}

func (b *RedisBroker) Publish(ctx context.Context, env Envelope) error {
	if err := b.cache.Publish(ctx, b.channel(env.Token), env); err != nil {
		b.metrics.IncBrokerPublishErrors()
		return err
	}
	b.metrics.IncBrokerPublished()
	return nil
}

func (b *RedisBroker) Subscribe(ctx context.Context, h Handler) error {
	pubsub := b.cache.PSubscribe(ctx, b.channel("*"))
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		b.metrics.SetBrokerConnected(false)
		return err
	}
	b.metrics.SetBrokerConnected(true)
	defer b.metrics.SetBrokerConnected(false)
	b.logger.WithField("pattern", b.channel("*")).Info("Subscribed to trip channels")

	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var env Envelope
			if err := json.Unmarshal([]byte(msg.Payload), &env); err != nil {
				b.logger.WithError(err).WithField("channel", msg.Channel).Warn("Dropping malformed broker message")
				continue
			}
			b.metrics.IncBrokerReceived()
			h(env)
		}
	}
}

// Close is a no-op; the Redis client is owned by the caller.
func (b *RedisBroker) Close() error { return nil }
