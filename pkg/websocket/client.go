package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/diintechteam9/cab-tracker/internal/models"
	"github.com/diintechteam9/cab-tracker/internal/utils"
	"github.com/diintechteam9/cab-tracker/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 1024
	opTimeout      = 5 * time.Second
)

var errBadMessage = errors.New("malformed message")

const codeBadMessage = "BAD_MESSAGE"

type joinPayload struct {
	Token string      `json:"token"`
	Role  models.Role `json:"role,omitempty"`
}

type leavePayload struct {
	Token string `json:"token"`
}

type sendLocationPayload struct {
	Token     string           `json:"token"`
	Lat       float64          `json:"lat"`
	Lng       float64          `json:"lng"`
	Speed     float64          `json:"speed"`
	GPSStatus models.GPSStatus `json:"gpsStatus"`
}

// Client is a gorilla/websocket connection acting as a hub Subscriber.
type Client struct {
	id      string
	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	done    chan struct{}
	once    sync.Once
	logger  *logger.Logger
	enforce bool

	mu   sync.Mutex
	role models.Role
	link *utils.LinkClaims
}

func NewClient(hub *Hub, conn *websocket.Conn, role models.Role, link *utils.LinkClaims, enforce bool, sendBuffer int, log *logger.Logger) *Client {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	id := uuid.NewString()
	return &Client{
		id:      id,
		hub:     hub,
		conn:    conn,
		send:    make(chan []byte, sendBuffer),
		done:    make(chan struct{}),
		logger:  log.WithField("subscriber_id", id),
		enforce: enforce,
		role:    role,
		link:    link,
	}
}

func (c *Client) ID() string { return c.id }

func (c *Client) Role() models.Role {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.role
}

func (c *Client) Send(msg []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) Close() {
	c.once.Do(func() { close(c.done) })
}

// Serve runs the pumps until the connection ends.
func (c *Client) Serve() {
	go c.writePump()
	c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Disconnect(c)
		c.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logger.WithError(err).Warn("WebSocket read error")
			}
			return
		}
		c.handleMessage(message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Client) handleMessage(message []byte) {
	var env Envelope
	if err := json.Unmarshal(message, &env); err != nil {
		c.fail("", codeBadMessage, errBadMessage)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	switch env.Event {
	case models.EventJoin:
		var p joinPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.Token == "" {
			c.fail(p.Token, codeBadMessage, errBadMessage)
			return
		}
		if err := c.authorizeJoin(p); err != nil {
			c.fail(p.Token, "", err)
			return
		}
		if _, err := c.hub.Join(ctx, p.Token, c); err != nil {
			c.fail(p.Token, "", err)
		}

	case models.EventLeave:
		var p leavePayload
		if err := json.Unmarshal(env.Payload, &p); err != nil || p.Token == "" {
			c.fail(p.Token, codeBadMessage, errBadMessage)
			return
		}
		c.hub.Leave(p.Token, c)

	case models.EventJoinFleet:
		if err := c.hub.JoinFleet(c); err != nil {
			c.fail("", "", err)
		}

	case models.EventSendLocation:
		var p sendLocationPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			c.fail("", codeBadMessage, errBadMessage)
			return
		}
		sample := models.LocationSample{
			Token:     p.Token,
			Lat:       p.Lat,
			Lng:       p.Lng,
			SpeedKmh:  p.Speed,
			GPSStatus: p.GPSStatus,
		}
		if err := c.hub.Publish(ctx, c, sample); err != nil {
			c.fail(p.Token, "", err)
		}

	default:
		c.fail("", codeBadMessage, errBadMessage)
	}
}

// authorizeJoin fixes the connection role on first join and, when links are
// enforced, checks the signed link against the requested token.
func (c *Client) authorizeJoin(p joinPayload) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.role == "" {
		if !p.Role.IsValid() {
			return models.ErrNotAuthorized
		}
		c.role = p.Role
	} else if p.Role != "" && p.Role != c.role {
		return models.ErrNotAuthorized
	}

	if !c.enforce || c.role == models.RoleDispatcher {
		return nil
	}
	if c.link == nil || c.link.TripToken != p.Token || models.Role(c.link.Role) != c.role {
		return models.ErrNotAuthorized
	}
	return nil
}

func (c *Client) fail(token, code string, err error) {
	msg := ChannelErrorMessage(token, err)
	if code != "" {
		msg = encode(models.EventError, models.ChannelError{Code: code, Message: err.Error(), Token: token})
	}
	c.logger.WithTripToken(token).WithError(err).Debug("Channel request rejected")
	c.Send(msg)
}
