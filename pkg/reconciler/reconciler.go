// Package reconciler turns the discrete location samples of each trip into
// a continuously moving marker position with a heading.
//
// Every token owns one entry. The first ON sample places the marker
// directly. Each later ON sample starts a fixed-duration linear
// interpolation from the position reached so far, cancelling any
// interpolation still in flight. OFF samples only flip the GPS flag.
package reconciler

import (
	"sync"
	"time"

	"github.com/diintechteam9/cab-tracker/internal/models"
	"github.com/diintechteam9/cab-tracker/internal/utils"
	"github.com/diintechteam9/cab-tracker/pkg/clock"
)

type RenderState struct {
	Token          string           `json:"token"`
	LastConfirmed  utils.Point      `json:"last_confirmed"`
	Target         utils.Point      `json:"target"`
	Position       utils.Point      `json:"position"`
	AnimationStart time.Time        `json:"animation_start"`
	HeadingDegrees float64          `json:"heading"`
	IsFirstSample  bool             `json:"is_first_sample"`
	Animating      bool             `json:"animating"`
	HasPosition    bool             `json:"has_position"`
	GPSStatus      models.GPSStatus `json:"gps_status"`
	SpeedKmh       float64          `json:"speed"`
}

type Config struct {
	// Duration of each interpolation. Defaults to one second.
	Duration time.Duration
	Clock    clock.Clock
	// OnChange is called after every applied sample and when an
	// interpolation settles. It runs with the reconciler locked, so it
	// must not call back into the Reconciler.
	OnChange func(RenderState)
}

type Reconciler struct {
	mu       sync.Mutex
	clock    clock.Clock
	duration time.Duration
	onChange func(RenderState)
	entries  map[string]*entry
	closed   bool
}

type entry struct {
	token       string
	origin      utils.Point
	target      utils.Point
	start       time.Time
	heading     float64
	first       bool
	hasPosition bool
	gps         models.GPSStatus
	speed       float64

	timer      *clock.Timer
	generation uint64
}

func New(cfg Config) *Reconciler {
	if cfg.Duration <= 0 {
		cfg.Duration = utils.DefaultInterpolationDuration
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	return &Reconciler{
		clock:    cfg.Clock,
		duration: cfg.Duration,
		onChange: cfg.OnChange,
		entries:  make(map[string]*entry),
	}
}

// Apply feeds one sample into the token's entry and returns the state right
// after it was applied.
func (r *Reconciler) Apply(sample models.LocationSample) RenderState {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return RenderState{Token: sample.Token}
	}

	e, ok := r.entries[sample.Token]
	if !ok {
		e = &entry{token: sample.Token, gps: models.GPSStatusOn}
		r.entries[sample.Token] = e
	}

	now := r.clock.Now()

	if !sample.IsOn() {
		e.gps = models.GPSStatusOff
		state := r.stateLocked(e, now)
		r.notifyLocked(state)
		return state
	}

	e.gps = models.GPSStatusOn
	e.speed = sample.SpeedKmh
	next := sample.Point()

	if !e.hasPosition {
		e.origin, e.target = next, next
		e.start = now
		e.heading = 0
		e.first = true
		e.hasPosition = true
	} else {
		reached := r.positionLocked(e, now)
		r.cancelLocked(e)

		e.origin = reached
		e.target = next
		e.start = now
		e.heading = utils.BearingBetween(reached, next)
		e.first = false

		if !reached.Equal(next) {
			e.generation++
			gen := e.generation
			token := e.token
			e.timer = r.clock.AfterFunc(r.duration, func() { r.settle(token, gen) })
		}
	}

	state := r.stateLocked(e, now)
	r.notifyLocked(state)
	return state
}

// State returns the token's interpolated state at the current clock time.
func (r *Reconciler) State(token string) (RenderState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[token]
	if !ok {
		return RenderState{}, false
	}
	return r.stateLocked(e, r.clock.Now()), true
}

// Remove discards the token's entry and cancels its pending timer. Called
// when the viewer unsubscribes or the trip completes.
func (r *Reconciler) Remove(token string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.entries[token]; ok {
		r.cancelLocked(e)
		delete(r.entries, token)
	}
}

// Complete drops the token once its trip has finished.
func (r *Reconciler) Complete(token string) { r.Remove(token) }

func (r *Reconciler) Tokens() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	tokens := make([]string, 0, len(r.entries))
	for token := range r.entries {
		tokens = append(tokens, token)
	}
	return tokens
}

// Close cancels every timer. Apply is a no-op afterwards.
func (r *Reconciler) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for token, e := range r.entries {
		r.cancelLocked(e)
		delete(r.entries, token)
	}
	r.closed = true
}

func (r *Reconciler) settle(token string, gen uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[token]
	if !ok || e.generation != gen || e.timer == nil {
		return
	}
	e.timer = nil
	e.origin = e.target

	r.notifyLocked(r.stateLocked(e, r.clock.Now()))
}

func (r *Reconciler) cancelLocked(e *entry) {
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.generation++
}

func (r *Reconciler) progressLocked(e *entry, now time.Time) float64 {
	if e.timer == nil {
		return 1
	}
	elapsed := now.Sub(e.start)
	if elapsed <= 0 {
		return 0
	}
	if elapsed >= r.duration {
		return 1
	}
	return float64(elapsed) / float64(r.duration)
}

func (r *Reconciler) positionLocked(e *entry, now time.Time) utils.Point {
	return utils.Interpolate(e.origin, e.target, r.progressLocked(e, now))
}

func (r *Reconciler) stateLocked(e *entry, now time.Time) RenderState {
	p := r.progressLocked(e, now)
	return RenderState{
		Token:          e.token,
		LastConfirmed:  e.origin,
		Target:         e.target,
		Position:       utils.Interpolate(e.origin, e.target, p),
		AnimationStart: e.start,
		HeadingDegrees: e.heading,
		IsFirstSample:  e.first,
		Animating:      p < 1,
		HasPosition:    e.hasPosition,
		GPSStatus:      e.gps,
		SpeedKmh:       e.speed,
	}
}

func (r *Reconciler) notifyLocked(state RenderState) {
	if r.onChange != nil {
		r.onChange(state)
	}
}
