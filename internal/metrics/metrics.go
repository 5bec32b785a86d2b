package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector owns a private registry and implements the metric hooks of the
// channel hub, the trip and route services and the broker.
type Collector struct {
	reg *prometheus.Registry

	Rooms       prometheus.Gauge
	Subscribers *prometheus.GaugeVec // role

	SamplesPublished   *prometheus.CounterVec // gps_status
	SamplesRejected    *prometheus.CounterVec // code
	SubscribersDropped prometheus.Counter
	PublishDuration    prometheus.Histogram

	TripsCreated    prometheus.Counter
	TripTransitions *prometheus.CounterVec // status
	OTPRejections   prometheus.Counter

	RouteLookups *prometheus.CounterVec // result: hit|miss|stale|error

	BrokerConnected     prometheus.Gauge
	BrokerPublished     prometheus.Counter
	BrokerPublishErrors prometheus.Counter
	BrokerReceived      prometheus.Counter
}

func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		reg: reg,
		Rooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_rooms",
			Help: "Number of trip tokens with at least one local subscriber.",
		}),
		Subscribers: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tracker_subscribers",
			Help: "Current subscribers by role.",
		}, []string{"role"}),
		SamplesPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_samples_published_total",
			Help: "Location samples admitted and fanned out.",
		}, []string{"gps_status"}),
		SamplesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_samples_rejected_total",
			Help: "Location samples rejected, by error code.",
		}, []string{"code"}),
		SubscribersDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_subscribers_dropped_total",
			Help: "Subscribers disconnected because their send queue was full.",
		}),
		PublishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "tracker_publish_duration_seconds",
			Help:    "Time to admit and fan out one sample.",
			Buckets: prometheus.ExponentialBuckets(0.0001, 2, 15),
		}),
		TripsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_trips_created_total",
			Help: "Trips created.",
		}),
		TripTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_trip_transitions_total",
			Help: "Trip lifecycle transitions by target status.",
		}, []string{"status"}),
		OTPRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_otp_rejections_total",
			Help: "Start code verifications that failed on a wrong code.",
		}),
		RouteLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tracker_route_lookups_total",
			Help: "Route cache lookups by result.",
		}, []string{"result"}),
		BrokerConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tracker_broker_connected",
			Help: "1 if the fan-out backplane is connected, 0 otherwise.",
		}),
		BrokerPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_broker_published_total",
			Help: "Envelopes published to the backplane.",
		}),
		BrokerPublishErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_broker_publish_errors_total",
			Help: "Backplane publish errors.",
		}),
		BrokerReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tracker_broker_received_total",
			Help: "Envelopes received from other instances.",
		}),
	}

	reg.MustRegister(
		c.Rooms, c.Subscribers,
		c.SamplesPublished, c.SamplesRejected, c.SubscribersDropped, c.PublishDuration,
		c.TripsCreated, c.TripTransitions, c.OTPRejections,
		c.RouteLookups,
		c.BrokerConnected, c.BrokerPublished, c.BrokerPublishErrors, c.BrokerReceived,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return c
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.reg, promhttp.HandlerOpts{})
}

func (c *Collector) Registry() *prometheus.Registry { return c.reg }

// Channel hooks

func (c *Collector) RoomOpened()                  { c.Rooms.Inc() }
func (c *Collector) RoomClosed()                  { c.Rooms.Dec() }
func (c *Collector) SubscriberJoined(role string) { c.Subscribers.WithLabelValues(role).Inc() }
func (c *Collector) SubscriberLeft(role string)   { c.Subscribers.WithLabelValues(role).Dec() }
func (c *Collector) SubscriberDropped()           { c.SubscribersDropped.Inc() }
func (c *Collector) SampleRejected(code string)   { c.SamplesRejected.WithLabelValues(code).Inc() }

func (c *Collector) SamplePublished(gps string, d time.Duration) {
	c.SamplesPublished.WithLabelValues(gps).Inc()
	c.PublishDuration.Observe(d.Seconds())
}

// Lifecycle hooks

func (c *Collector) TripCreated()                 { c.TripsCreated.Inc() }
func (c *Collector) TripTransition(status string) { c.TripTransitions.WithLabelValues(status).Inc() }
func (c *Collector) OTPRejected()                 { c.OTPRejections.Inc() }

// Route cache hooks

func (c *Collector) RouteLookup(result string) { c.RouteLookups.WithLabelValues(result).Inc() }

// Broker hooks

func (c *Collector) SetBrokerConnected(connected bool) {
	if connected {
		c.BrokerConnected.Set(1)
	} else {
		c.BrokerConnected.Set(0)
	}
}

func (c *Collector) IncBrokerPublished()     { c.BrokerPublished.Inc() }
func (c *Collector) IncBrokerPublishErrors() { c.BrokerPublishErrors.Inc() }
func (c *Collector) IncBrokerReceived()      { c.BrokerReceived.Inc() }
