package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/diintechteam9/cab-tracker/internal/models"
	"github.com/diintechteam9/cab-tracker/pkg/broker"
	"github.com/diintechteam9/cab-tracker/pkg/clock"
	"github.com/diintechteam9/cab-tracker/pkg/logger"

	"github.com/google/uuid"
)

var ErrHubClosed = errors.New("hub is shutting down")

// Subscriber is one connected party. Send must not block; it reports false
// when the subscriber cannot take more messages.
type Subscriber interface {
	ID() string
	Role() models.Role
	Send(msg []byte) bool
	Close()
}

// Gatekeeper owns trip state. The lifecycle service satisfies it.
type Gatekeeper interface {
	GetTrip(ctx context.Context, token string) (*models.Trip, error)
	AdmitSample(ctx context.Context, sample models.LocationSample) (*models.Trip, error)
}

// SampleStore keeps the last ON sample per token outside the process.
type SampleStore interface {
	SaveLastSample(ctx context.Context, sample models.LocationSample) error
	LastSample(ctx context.Context, token string) (*models.LocationSample, error)
	DeleteLastSample(ctx context.Context, token string) error
}

type Metrics interface {
	RoomOpened()
	RoomClosed()
	SubscriberJoined(role string)
	SubscriberLeft(role string)
	SubscriberDropped()
	SampleRejected(code string)
	SamplePublished(gps string, d time.Duration)
}

// Envelope is the wire frame in both directions.
type Envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type HubConfig struct {
	Gatekeeper Gatekeeper
	Store      SampleStore
	Broker     broker.Broker
	Metrics    Metrics
	Clock      clock.Clock
	Logger     *logger.Logger
	InstanceID string
	// RetryDelay is the pause before resubscribing after a broker error.
	RetryDelay time.Duration
}

type HubStats struct {
	Rooms       int    `json:"rooms"`
	Subscribers int    `json:"subscribers"`
	Fleet       int    `json:"fleet"`
	InstanceID  string `json:"instance_id"`
}

// Hub routes samples and lifecycle events to per-token rooms. Locks are
// always taken hub.mu, then room.mu, then fleetMu.
type Hub struct {
	gate       Gatekeeper
	store      SampleStore
	broker     broker.Broker
	metrics    Metrics
	clock      clock.Clock
	logger     *logger.Logger
	instanceID string
	retryDelay time.Duration

	mu          sync.Mutex
	rooms       map[string]*room
	memberships map[string]map[string]struct{}
	subscribers map[string]Subscriber
	closed      bool

	fleetMu sync.Mutex
	fleet   map[string]Subscriber
}

type room struct {
	token string

	mu         sync.Mutex
	members    map[string]Subscriber
	driverID   string
	lastSample *models.LocationSample
	gps        models.GPSStatus
}

func NewHub(cfg HubConfig) *Hub {
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Store == nil {
		cfg.Store = newMemorySampleStore()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = nopMetrics{}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.NewNop()
	}
	if cfg.InstanceID == "" {
		cfg.InstanceID = uuid.NewString()
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 2 * time.Second
	}
	return &Hub{
		gate:        cfg.Gatekeeper,
		store:       cfg.Store,
		broker:      cfg.Broker,
		metrics:     cfg.Metrics,
		clock:       cfg.Clock,
		logger:      cfg.Logger.WithComponent("hub"),
		instanceID:  cfg.InstanceID,
		retryDelay:  cfg.RetryDelay,
		rooms:       make(map[string]*room),
		memberships: make(map[string]map[string]struct{}),
		subscribers: make(map[string]Subscriber),
		fleet:       make(map[string]Subscriber),
	}
}

func (h *Hub) InstanceID() string { return h.instanceID }

// Join adds sub to the token's room and returns what a late joiner needs to
// render the trip. The same snapshot is queued to sub as a "joined" event
// before any later update.
func (h *Hub) Join(ctx context.Context, token string, sub Subscriber) (*models.Snapshot, error) {
	trip, err := h.gate.GetTrip(ctx, token)
	if err != nil {
		return nil, err
	}

	stored, err := h.store.LastSample(ctx, token)
	if err != nil {
		stored = nil
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	r, ok := h.rooms[token]
	if !ok {
		r = &room{token: token, members: make(map[string]Subscriber)}
		h.rooms[token] = r
		h.metrics.RoomOpened()
	}
	if h.memberships[sub.ID()] == nil {
		h.memberships[sub.ID()] = make(map[string]struct{})
	}
	h.memberships[sub.ID()][token] = struct{}{}
	h.subscribers[sub.ID()] = sub

	r.mu.Lock()
	h.mu.Unlock()

	if _, exists := r.members[sub.ID()]; !exists {
		r.members[sub.ID()] = sub
		h.metrics.SubscriberJoined(string(sub.Role()))
	}
	if sub.Role() == models.RoleDriver && r.driverID == "" {
		r.driverID = sub.ID()
	}
	if r.lastSample == nil && stored != nil && stored.Token == token {
		r.lastSample = stored
	}

	snap := &models.Snapshot{Trip: trip.Public(), GPSStatus: r.gpsStatus()}
	if sub.Role() == models.RolePassenger {
		snap.Trip = trip
	}
	if r.lastSample != nil {
		update := models.NewLocationUpdate(*r.lastSample)
		snap.LastSample = &update
	}

	sent := sub.Send(encode(models.EventJoined, snap))
	r.mu.Unlock()

	if !sent {
		h.dropAll([]Subscriber{sub})
		return snap, nil
	}
	h.logger.LogChannelEvent(token, models.EventJoin, string(sub.Role()), sub.ID())
	return snap, nil
}

// Leave removes sub from the token's room. A departing driver frees the
// driver slot.
func (h *Hub) Leave(token string, sub Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(token, sub)
}

// Disconnect removes sub from every room and the fleet.
func (h *Hub) Disconnect(sub Subscriber) {
	h.mu.Lock()
	for token := range h.memberships[sub.ID()] {
		h.leaveLocked(token, sub)
	}
	delete(h.memberships, sub.ID())
	delete(h.subscribers, sub.ID())
	h.mu.Unlock()

	h.LeaveFleet(sub)
}

func (h *Hub) leaveLocked(token string, sub Subscriber) {
	if m := h.memberships[sub.ID()]; m != nil {
		delete(m, token)
	}
	r, ok := h.rooms[token]
	if !ok {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, member := r.members[sub.ID()]; !member {
		return
	}
	delete(r.members, sub.ID())
	if r.driverID == sub.ID() {
		r.driverID = ""
	}
	h.metrics.SubscriberLeft(string(sub.Role()))
	h.logger.LogChannelEvent(token, models.EventLeave, string(sub.Role()), sub.ID())

	if len(r.members) == 0 {
		delete(h.rooms, token)
		h.metrics.RoomClosed()
	}
}

// JoinFleet subscribes a dispatcher to every token's traffic.
func (h *Hub) JoinFleet(sub Subscriber) error {
	if sub.Role() != models.RoleDispatcher {
		return models.ErrNotAuthorized
	}

	h.mu.Lock()
	closed := h.closed
	if !closed {
		h.subscribers[sub.ID()] = sub
	}
	h.mu.Unlock()
	if closed {
		return ErrHubClosed
	}

	h.fleetMu.Lock()
	defer h.fleetMu.Unlock()
	if _, ok := h.fleet[sub.ID()]; !ok {
		h.fleet[sub.ID()] = sub
		h.metrics.SubscriberJoined("fleet")
	}
	return nil
}

func (h *Hub) LeaveFleet(sub Subscriber) {
	h.fleetMu.Lock()
	defer h.fleetMu.Unlock()
	if _, ok := h.fleet[sub.ID()]; ok {
		delete(h.fleet, sub.ID())
		h.metrics.SubscriberLeft("fleet")
	}
}

// Publish admits a driver sample and fans it out to the token's room and
// the fleet. Errors concern the publisher only.
func (h *Hub) Publish(ctx context.Context, sub Subscriber, sample models.LocationSample) error {
	start := h.clock.Now()
	if sample.ReceivedAt.IsZero() {
		sample.ReceivedAt = start
	}
	if sample.GPSStatus == "" {
		sample.GPSStatus = models.GPSStatusOn
	}

	r, err := h.lockDriverRoom(sample.Token, sub)
	if err != nil {
		return h.reject(err)
	}
	r.mu.Unlock()

	// Admission reads the store; no hub or room lock is held across it.
	if _, err := h.gate.AdmitSample(ctx, sample); err != nil {
		return h.reject(err)
	}

	r, err = h.lockDriverRoom(sample.Token, sub)
	if err != nil {
		return h.reject(err)
	}

	r.driverID = sub.ID()
	r.gps = sample.GPSStatus
	if sample.IsOn() {
		s := sample
		r.lastSample = &s
	}

	update := models.NewLocationUpdate(sample)
	payload, _ := json.Marshal(update)
	msg := encodeRaw(models.EventLocationUpdate, payload)
	dropped := h.fanoutLocked(r, msg, sub.ID())
	r.mu.Unlock()

	h.dropAll(dropped)

	if sample.IsOn() {
		if err := h.store.SaveLastSample(ctx, sample); err != nil {
			h.logger.WithTripToken(sample.Token).WithError(err).Warn("Failed to mirror last sample")
		}
	}
	h.relay(ctx, sample.Token, models.EventLocationUpdate, payload)
	h.metrics.SamplePublished(string(sample.GPSStatus), h.clock.Now().Sub(start))
	return nil
}

// lockDriverRoom returns the token's room locked, provided sub is a member
// driver that holds or may take the driver slot.
func (h *Hub) lockDriverRoom(token string, sub Subscriber) (*room, error) {
	h.mu.Lock()
	r, ok := h.rooms[token]
	if !ok {
		h.mu.Unlock()
		return nil, models.ErrNotAuthorized
	}
	r.mu.Lock()
	h.mu.Unlock()

	if _, member := r.members[sub.ID()]; !member || sub.Role() != models.RoleDriver {
		r.mu.Unlock()
		return nil, models.ErrNotAuthorized
	}
	if r.driverID != "" && r.driverID != sub.ID() {
		r.mu.Unlock()
		return nil, models.ErrNotAuthorized
	}
	return r, nil
}

// TripTransitioned broadcasts lifecycle changes to the trip's viewers.
func (h *Hub) TripTransitioned(ctx context.Context, trip *models.Trip, event string) {
	if event != models.EventRideStarted && event != models.EventRideCompleted {
		return
	}
	payload, _ := json.Marshal(models.LifecycleEvent{Token: trip.Token})
	h.deliver(trip.Token, event, payload)
	h.relay(ctx, trip.Token, event, payload)

	if event == models.EventRideCompleted {
		if err := h.store.DeleteLastSample(ctx, trip.Token); err != nil && !isCacheMiss(err) {
			h.logger.WithTripToken(trip.Token).WithError(err).Warn("Failed to clear last sample")
		}
	}
}

// Run relays broker traffic into local rooms until ctx is cancelled, then
// closes every subscriber.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()

	if h.broker == nil {
		<-ctx.Done()
		return
	}

	for {
		err := h.broker.Subscribe(ctx, h.receive)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			h.logger.WithError(err).Warn("Broker subscription failed, retrying")
		}
		select {
		case <-ctx.Done():
			return
		case <-h.clock.After(h.retryDelay):
		}
	}
}

func (h *Hub) Stats() HubStats {
	h.mu.Lock()
	stats := HubStats{
		Rooms:       len(h.rooms),
		Subscribers: len(h.subscribers),
		InstanceID:  h.instanceID,
	}
	h.mu.Unlock()

	h.fleetMu.Lock()
	stats.Fleet = len(h.fleet)
	h.fleetMu.Unlock()
	return stats
}

func (h *Hub) receive(env broker.Envelope) {
	if env.Origin == h.instanceID {
		return
	}
	h.deliver(env.Token, env.Event, env.Payload)
}

// deliver fans a message out locally without admission. Remote location
// updates also refresh the room's view of the driver.
func (h *Hub) deliver(token, event string, payload json.RawMessage) {
	msg := encodeRaw(event, payload)

	h.mu.Lock()
	r, ok := h.rooms[token]
	if !ok {
		h.mu.Unlock()
		h.dropAll(h.fanoutFleet(msg, ""))
		return
	}
	r.mu.Lock()
	h.mu.Unlock()

	if event == models.EventLocationUpdate {
		var update models.LocationUpdate
		if err := json.Unmarshal(payload, &update); err == nil {
			r.gps = update.GPSStatus
			if update.GPSStatus != models.GPSStatusOff {
				s := models.LocationSample{
					Token:      token,
					Lat:        update.Lat,
					Lng:        update.Lng,
					SpeedKmh:   update.Speed,
					GPSStatus:  update.GPSStatus,
					ReceivedAt: time.UnixMilli(update.ReceivedAt),
				}
				r.lastSample = &s
			}
		}
	}
	dropped := h.fanoutLocked(r, msg, "")
	r.mu.Unlock()

	h.dropAll(dropped)
}

func (h *Hub) relay(ctx context.Context, token, event string, payload json.RawMessage) {
	if h.broker == nil {
		return
	}
	err := h.broker.Publish(ctx, broker.Envelope{
		Origin:  h.instanceID,
		Token:   token,
		Event:   event,
		Payload: payload,
	})
	if err != nil {
		h.logger.WithTripToken(token).WithError(err).Warn("Failed to relay message to broker")
	}
}

// fanoutLocked queues msg for every room member except skipID and for the
// fleet. It returns subscribers whose queues were full.
func (h *Hub) fanoutLocked(r *room, msg []byte, skipID string) []Subscriber {
	var dropped []Subscriber
	for id, member := range r.members {
		if id == skipID {
			continue
		}
		if !member.Send(msg) {
			dropped = append(dropped, member)
		}
	}
	return append(dropped, h.fanoutFleet(msg, skipID)...)
}

func (h *Hub) fanoutFleet(msg []byte, skipID string) []Subscriber {
	h.fleetMu.Lock()
	defer h.fleetMu.Unlock()

	var dropped []Subscriber
	for id, sub := range h.fleet {
		if id == skipID {
			continue
		}
		if !sub.Send(msg) {
			dropped = append(dropped, sub)
		}
	}
	return dropped
}

func (h *Hub) dropAll(subs []Subscriber) {
	for _, sub := range subs {
		h.metrics.SubscriberDropped()
		h.logger.WithField("subscriber_id", sub.ID()).Warn("Dropping slow subscriber")
		sub.Close()
		h.Disconnect(sub)
	}
}

func (h *Hub) reject(err error) error {
	h.metrics.SampleRejected(models.ErrorCode(err))
	return err
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	h.closed = true
	subs := make([]Subscriber, 0, len(h.subscribers))
	for _, sub := range h.subscribers {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		sub.Close()
		h.Disconnect(sub)
	}
	h.logger.WithField("subscribers", len(subs)).Info("Hub stopped")
}

func (r *room) gpsStatus() models.GPSStatus {
	if r.gps != "" {
		return r.gps
	}
	if r.lastSample != nil {
		return models.GPSStatusOn
	}
	return models.GPSStatusOff
}

func encode(event string, payload interface{}) []byte {
	raw, _ := json.Marshal(payload)
	return encodeRaw(event, raw)
}

func encodeRaw(event string, payload json.RawMessage) []byte {
	msg, _ := json.Marshal(Envelope{Event: event, Payload: payload})
	return msg
}

// ChannelErrorMessage builds the "error" frame sent to the offending client.
func ChannelErrorMessage(token string, err error) []byte {
	return encode(models.EventError, models.ChannelError{
		Code:    models.ErrorCode(err),
		Message: err.Error(),
		Token:   token,
	})
}

type nopMetrics struct{}

func (nopMetrics) RoomOpened()                           {}
func (nopMetrics) RoomClosed()                           {}
func (nopMetrics) SubscriberJoined(string)               {}
func (nopMetrics) SubscriberLeft(string)                 {}
func (nopMetrics) SubscriberDropped()                    {}
func (nopMetrics) SampleRejected(string)                 {}
func (nopMetrics) SamplePublished(string, time.Duration) {}
