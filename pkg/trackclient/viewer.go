package trackclient

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/diintechteam9/cab-tracker/internal/models"
	"github.com/diintechteam9/cab-tracker/pkg/reconciler"
)

// Viewer follows one trip as a passenger (or dispatcher) and feeds every
// update into a reconciler, so State can be polled at any frame rate.
type Viewer struct {
	cfg  Config
	role models.Role
	rec  *reconciler.Reconciler
}

// NewViewer returns a viewer. interpolation is the reconciler duration; zero
// means the default.
func NewViewer(cfg Config, role models.Role, interpolation time.Duration) *Viewer {
	cfg.defaults()
	return &Viewer{
		cfg:  cfg,
		role: role,
		rec:  reconciler.New(reconciler.Config{Duration: interpolation, Clock: cfg.Clock}),
	}
}

// State is the marker position at this instant.
func (v *Viewer) State() (reconciler.RenderState, bool) {
	return v.rec.State(v.cfg.Token)
}

// Watch follows the trip until it completes (nil), the join is rejected
// (ErrRejected) or ctx ends. handle is called from Watch's goroutine.
func (v *Viewer) Watch(ctx context.Context, handle func(Event)) error {
	defer v.rec.Close()
	if handle == nil {
		handle = func(Event) {}
	}

	b := newBackoff(v.cfg.MinBackoff, v.cfg.MaxBackoff)
	for {
		completed, joined, err := v.session(ctx, handle)
		if completed {
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

		v.cfg.Logger.WithTripToken(v.cfg.Token).WithError(err).Warn("Viewer disconnected, reconnecting")
		handle(Event{Kind: EventReconnecting, Err: err})
		if err := b.wait(ctx, v.cfg.Clock); err != nil {
			return err
		}
	}
}

func (v *Viewer) session(ctx context.Context, handle func(Event)) (completed, joined bool, err error) {
	c, err := dial(ctx, &v.cfg, v.role)
	if err != nil {
		return false, false, err
	}
	defer c.close()

	for env := range c.incoming {
		switch env.Event {
		case models.EventJoined:
			var snap models.Snapshot
			if err := json.Unmarshal(env.Payload, &snap); err != nil {
				return false, joined, err
			}
			joined = true
			v.resync(snap)
			handle(Event{Kind: EventJoined, Trip: snap.Trip})
			if snap.Trip != nil && snap.Trip.Status.IsTerminal() {
				v.rec.Complete(v.cfg.Token)
				handle(Event{Kind: EventCompleted, Trip: snap.Trip})
				return true, joined, nil
			}

		case models.EventLocationUpdate:
			var u models.LocationUpdate
			if err := json.Unmarshal(env.Payload, &u); err != nil || u.Token != v.cfg.Token {
				continue
			}
			sample := u.Sample()
			v.rec.Apply(sample)
			handle(Event{Kind: EventMoved, Sample: &sample})

		case models.EventRideStarted:
			handle(Event{Kind: EventStarted})

		case models.EventRideCompleted:
			v.rec.Complete(v.cfg.Token)
			handle(Event{Kind: EventCompleted})
			return true, joined, nil

		case models.EventError:
			err := rejection(env.Payload)
			if !joined {
				return false, false, err
			}
			handle(Event{Kind: EventServerError, Err: err})
		}
	}
	return false, joined, c.err()
}

// resync applies the snapshot's last sample unless the marker is already
// heading there, so a reconnect does not reset the heading.
func (v *Viewer) resync(snap models.Snapshot) {
	if snap.LastSample != nil {
		sample := snap.LastSample.Sample()
		if st, ok := v.rec.State(v.cfg.Token); !ok || !st.Target.Equal(sample.Point()) {
			v.rec.Apply(sample)
		}
	}
	if snap.GPSStatus == models.GPSStatusOff {
		v.rec.Apply(models.LocationSample{Token: v.cfg.Token, GPSStatus: models.GPSStatusOff})
	}
}
