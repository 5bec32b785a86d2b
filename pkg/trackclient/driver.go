package trackclient

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/diintechteam9/cab-tracker/internal/models"
)

type sendLocation struct {
	Token     string           `json:"token"`
	Lat       float64          `json:"lat"`
	Lng       float64          `json:"lng"`
	Speed     float64          `json:"speed"`
	GPSStatus models.GPSStatus `json:"gpsStatus"`
}

// Driver publishes samples for one trip over a single driver connection.
type Driver struct {
	cfg Config
}

func NewDriver(cfg Config) *Driver {
	cfg.defaults()
	return &Driver{cfg: cfg}
}

// Run sends every sample received on samples until the trip completes (nil),
// the join is rejected (ErrRejected), samples is closed (nil) or ctx ends.
// The sample in flight when a connection drops is resent after rejoining.
func (d *Driver) Run(ctx context.Context, samples <-chan models.LocationSample, handle func(Event)) error {
	if handle == nil {
		handle = func(Event) {}
	}

	var pending *models.LocationSample
	b := newBackoff(d.cfg.MinBackoff, d.cfg.MaxBackoff)
	for {
		done, joined, err := d.session(ctx, samples, &pending, handle)
		if done {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, ErrRejected) {
			return err
		}
		if joined {
			b.reset()
		}

		d.cfg.Logger.WithTripToken(d.cfg.Token).WithError(err).Warn("Driver disconnected, reconnecting")
		handle(Event{Kind: EventReconnecting, Err: err})
		if err := b.wait(ctx, d.cfg.Clock); err != nil {
			return err
		}
	}
}

func (d *Driver) session(ctx context.Context, samples <-chan models.LocationSample, pending **models.LocationSample, handle func(Event)) (done, joined bool, err error) {
	c, err := dial(ctx, &d.cfg, models.RoleDriver)
	if err != nil {
		return false, false, err
	}
	defer c.close()

	// Wait for the join to be acknowledged before publishing.
	for !joined {
		env, ok := <-c.incoming
		if !ok {
			return false, false, c.err()
		}
		switch env.Event {
		case models.EventJoined:
			var snap models.Snapshot
			if err := json.Unmarshal(env.Payload, &snap); err != nil {
				return false, false, err
			}
			joined = true
			handle(Event{Kind: EventJoined, Trip: snap.Trip})
			if snap.Trip != nil && snap.Trip.Status.IsTerminal() {
				handle(Event{Kind: EventCompleted, Trip: snap.Trip})
				return true, true, nil
			}
		case models.EventError:
			return false, false, rejection(env.Payload)
		}
	}

	if *pending != nil {
		if err := d.publish(c, **pending); err != nil {
			return false, true, err
		}
		*pending = nil
	}

	for {
		select {
		case <-ctx.Done():
			return false, true, ctx.Err()

		case sample, ok := <-samples:
			if !ok {
				return true, true, nil
			}
			if err := d.publish(c, sample); err != nil {
				*pending = &sample
				return false, true, err
			}

		case env, ok := <-c.incoming:
			if !ok {
				return false, true, c.err()
			}
			switch env.Event {
			case models.EventRideStarted:
				handle(Event{Kind: EventStarted})
			case models.EventRideCompleted:
				handle(Event{Kind: EventCompleted})
				return true, true, nil
			case models.EventError:
				handle(Event{Kind: EventServerError, Err: rejection(env.Payload)})
			}
		}
	}
}

func (d *Driver) publish(c *conn, s models.LocationSample) error {
	return c.send(models.EventSendLocation, sendLocation{
		Token:     d.cfg.Token,
		Lat:       s.Lat,
		Lng:       s.Lng,
		Speed:     s.SpeedKmh,
		GPSStatus: s.GPSStatus,
	})
}
