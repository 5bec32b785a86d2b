package broker

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/diintechteam9/cab-tracker/pkg/logger"

	"github.com/nats-io/nats.go"
)

type NATSBroker struct {
	nc      *nats.Conn
	prefix  string
	metrics Metrics
	logger  *logger.Logger
}

func NewNATSBroker(url, prefix string, m Metrics, log *logger.Logger) (*NATSBroker, error) {
	if m == nil {
		m = nopMetrics{}
	}
	log = log.WithComponent("broker.nats")

	nc, err := nats.Connect(url,
		nats.Name("cab-tracker"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			m.SetBrokerConnected(false)
			log.WithError(err).Warn("NATS disconnected")
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			m.SetBrokerConnected(true)
			log.Info("NATS reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			m.SetBrokerConnected(false)
			log.Info("NATS connection closed")
		}),
	)
	if err != nil {
		return nil, err
	}
	m.SetBrokerConnected(true)

	return &NATSBroker{nc: nc, prefix: subjectToken(prefix), metrics: m, logger: log}, nil
}

func (b *NATSBroker) subject(token string) string {
	return b.prefix + ".trip." + subjectToken(token)
}

func (b *NATSBroker) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	if err := b.nc.Publish(b.subject(env.Token), data); err != nil {
		b.metrics.IncBrokerPublishErrors()
		return err
	}
	b.metrics.IncBrokerPublished()
	return nil
}

func (b *NATSBroker) Subscribe(ctx context.Context, h Handler) error {
	sub, err := b.nc.Subscribe(b.prefix+".trip.>", func(msg *nats.Msg) {
		var env Envelope
		if err := json.Unmarshal(msg.Data, &env); err != nil {
			b.logger.WithError(err).WithField("subject", msg.Subject).Warn("Dropping malformed broker message")
			return
		}
		b.metrics.IncBrokerReceived()
		h(env)
	})
	if err != nil {
		return err
	}
	b.logger.WithField("subject", sub.Subject).Info("Subscribed to trip subjects")

	<-ctx.Done()
	return sub.Unsubscribe()
}

func (b *NATSBroker) Close() error {
	if b.nc == nil {
		return nil
	}
	err := b.nc.Drain()
	b.nc.Close()
	return err
}

func subjectToken(s string) string {
	s = strings.TrimSpace(s)
	// NATS tokens cannot contain spaces, '>', '*' or '.'
	repl := strings.NewReplacer(" ", "_", ".", "_", ">", "_", "*", "_", "/", "_", "\t", "_")
	s = repl.Replace(s)
	if s == "" {
		s = "_"
	}
	return s
}
