package ws

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"time"

	"pinkchat/backend/pkg/errors"
	"pinkchat/backend/pkg/logger"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait
	pingPeriod = (pongWait * 9) / 10
)

// Identity is who a connection acts as. An empty UserID means the
// connection has not identified itself.
type Identity struct {
	UserID    string
	Anonymous bool
}

// Client is one websocket connection owned by the hub
type Client struct {
	ID        string
	UserID    string
	Anonymous bool

	hub     *Hub
	conn    *websocket.Conn
	send    chan []byte
	limiter *rate.Limiter
	log     *logger.Logger
}

// NewClient creates a client for conn. conn may be nil for in-process use;
// such a client has no pumps and is fed through HandleEvent.
func NewClient(hub *Hub, conn *websocket.Conn, id Identity) *Client {
	connID := uuid.NewString()
	return &Client{
		ID:        connID,
		UserID:    id.UserID,
		Anonymous: id.Anonymous,
		hub:       hub,
		conn:      conn,
		send:      make(chan []byte, hub.opts.SendBuffer),
		limiter:   rate.NewLimiter(hub.opts.EventRate, hub.opts.EventBurst),
		log:       hub.log.WithConnID(connID).WithUserID(id.UserID),
	}
}

// Send returns the outbound queue. It is closed when the hub drops the client.
func (c *Client) Send() <-chan []byte {
	return c.send
}

// readPump handles inbound frames one at a time, so events from a single
// connection are processed in the order they arrived.
func (c *Client) readPump(ctx context.Context) {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.opts.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}

		if !c.limiter.Allow() {
			c.hub.reject(ctx, c, "", errors.NewTooManyRequestsError("too many events, slow down"))
			continue
		}

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.hub.reject(ctx, c, "", errors.NewValidationError("malformed event"))
			continue
		}
		c.hub.HandleEvent(ctx, c, env)
	}
}

func (c *Client) logReadError(err error) {
	switch {
	case stderrors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("frame exceeded maximum size", "limit", c.hub.opts.MaxMessageSize)
	case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure):
		c.log.LogError(err, "unexpected websocket close")
	default:
		c.log.Debug("connection closed", "error", err.Error())
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
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// the hub closed the channel
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

			// flush whatever queued up meanwhile, one frame per event
			n := len(c.send)
			for i := 0; i < n; i++ {
				extra, ok := <-c.send
				if !ok {
					c.conn.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.conn.WriteMessage(websocket.TextMessage, extra); err != nil {
					return
				}
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
