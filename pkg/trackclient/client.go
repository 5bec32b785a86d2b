// Package trackclient speaks the trip channel protocol from the other side:
// a Viewer follows one trip and keeps a reconciled marker, a Driver streams
// samples for one trip. Both reconnect with backoff and rejoin the trip.
package trackclient

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/diintechteam9/cab-tracker/internal/models"
	"github.com/diintechteam9/cab-tracker/pkg/clock"
	"github.com/diintechteam9/cab-tracker/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	// readWait exceeds the server ping period so an idle but healthy
	// connection never times out.
	readWait = 70 * time.Second
)

// ErrRejected is returned when the server refuses the join outright, e.g. an
// unknown token or a link for another trip. Retrying cannot help.
var ErrRejected = errors.New("join rejected")

type Config struct {
	// ServerURL is the websocket endpoint, e.g. ws://localhost:8080/ws.
	ServerURL string
	Token     string
	// Access is the signed link token, when the server enforces links.
	Access string

	MinBackoff time.Duration
	MaxBackoff time.Duration

	Dialer *websocket.Dialer
	Clock  clock.Clock
	Logger *logger.Logger
}

func (c *Config) defaults() {
	if c.MinBackoff <= 0 {
		c.MinBackoff = 500 * time.Millisecond
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = 15 * time.Second
	}
	if c.Dialer == nil {
		c.Dialer = websocket.DefaultDialer
	}
	if c.Clock == nil {
		c.Clock = clock.Real()
	}
	if c.Logger == nil {
		c.Logger = logger.NewNop()
	}
}

type EventKind string

const (
	EventJoined       EventKind = "joined"
	EventMoved        EventKind = "moved"
	EventStarted      EventKind = "started"
	EventCompleted    EventKind = "completed"
	EventServerError  EventKind = "server-error"
	EventReconnecting EventKind = "reconnecting"
)

type Event struct {
	Kind EventKind
	Trip *models.Trip
	// Sample is set for EventMoved.
	Sample *models.LocationSample
	Err    error
}

type envelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// conn is one live connection. Reads happen on a dedicated goroutine and
// arrive on incoming, which is closed when the connection ends.
type conn struct {
	ws       *websocket.Conn
	incoming chan envelope
	done     chan struct{}
	once     sync.Once
	readErr  error
}

func dial(ctx context.Context, cfg *Config, role models.Role) (*conn, error) {
	u, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server url: %w", err)
	}
	q := u.Query()
	q.Set("role", string(role))
	if cfg.Access != "" {
		q.Set("access", cfg.Access)
	}
	u.RawQuery = q.Encode()

	ws, _, err := cfg.Dialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", u.Host, err)
	}

	c := &conn{ws: ws, incoming: make(chan envelope, 16), done: make(chan struct{})}
	go c.readLoop()
	go func() {
		select {
		case <-ctx.Done():
			ws.Close()
		case <-c.done:
		}
	}()

	if err := c.send(models.EventJoin, map[string]string{"token": cfg.Token, "role": string(role)}); err != nil {
		c.close()
		return nil, err
	}
	return c, nil
}

func (c *conn) readLoop() {
	defer close(c.incoming)
	for {
		c.ws.SetReadDeadline(time.Now().Add(readWait))
		var env envelope
		if err := c.ws.ReadJSON(&env); err != nil {
			c.readErr = err
			return
		}
		select {
		case c.incoming <- env:
		case <-c.done:
			return
		}
	}
}

func (c *conn) send(event string, payload interface{}) error {
	raw, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	return c.ws.WriteJSON(envelope{Event: event, Payload: raw})
}

func (c *conn) close() {
	c.once.Do(func() {
		close(c.done)
		c.ws.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(time.Second))
		c.ws.Close()
	})
}

// err reports why incoming was closed. Only valid after it was closed.
func (c *conn) err() error {
	if c.readErr == nil {
		return errors.New("connection closed")
	}
	return c.readErr
}

// rejection turns an error frame received before "joined" into ErrRejected.
func rejection(payload json.RawMessage) error {
	var cerr models.ChannelError
	if err := json.Unmarshal(payload, &cerr); err != nil {
		return fmt.Errorf("undecodable error frame: %w", err)
	}
	switch cerr.Code {
	case models.CodeTripNotFound, models.CodeNotAuthorized:
		return fmt.Errorf("%w: %s: %s", ErrRejected, cerr.Code, cerr.Message)
	}
	return fmt.Errorf("%s: %s", cerr.Code, cerr.Message)
}

// backoff doubles from min to max.
type backoff struct {
	min, max, next time.Duration
}

func newBackoff(min, max time.Duration) *backoff {
	return &backoff{min: min, max: max, next: min}
}

func (b *backoff) reset() { b.next = b.min }

func (b *backoff) wait(ctx context.Context, clk clock.Clock) error {
	d := b.next
	b.next *= 2
	if b.next > b.max {
		b.next = b.max
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clk.After(d):
		return nil
	}
}
