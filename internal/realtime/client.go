package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"
)

const (
	sendBufferSize    = 32
	keepaliveInterval = 30 * time.Second
)

// Router receives decoded client events. The chat engine implements it; the
// hub itself never makes authorization decisions.
type Router interface {
	OnAuthenticate(ctx context.Context, client *Client, payload AuthenticatePayload)
	OnSendMessage(ctx context.Context, client *Client, payload SendMessagePayload)
	OnMessageRead(ctx context.Context, client *Client, payload MessageReadPayload)
	OnJoinRoom(ctx context.Context, client *Client, payload RoomChannelPayload)
	OnLeaveRoom(ctx context.Context, client *Client, payload RoomChannelPayload)
}

// Client is one live websocket connection bound to an authenticated user.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan Event
	userID string
	closed chan struct{}
	once   sync.Once
	log    zerolog.Logger
}

// NewClient wraps an upgraded connection. The user identity comes from the
// upgrade-time token, never from client frames.
func NewClient(hub *Hub, conn *websocket.Conn, userID string, logger zerolog.Logger) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		send:   make(chan Event, sendBufferSize),
		userID: userID,
		closed: make(chan struct{}),
		log:    logger.With().Str("component", "realtime_client").Str("user_id", userID).Logger(),
	}
}

// UserID returns the authenticated user bound to this connection.
func (c *Client) UserID() string {
	return c.userID
}

// Send queues an event for this connection only, dropping it if the consumer
// is too slow to keep up.
func (c *Client) Send(event Event) {
	if !c.enqueue(event) {
		c.log.Warn().Str("event", string(event.Type)).Msg("dropping direct event for slow consumer")
	}
}

// Serve pumps the connection until it drops: a writer goroutine drains the
// send queue while the calling goroutine reads and routes inbound frames.
func (c *Client) Serve(ctx context.Context, router Router) {
	go c.writer()
	c.reader(ctx, router)
}

func (c *Client) reader(ctx context.Context, router Router) {
	defer c.close()

	for {
		var frame Inbound
		if err := c.conn.ReadJSON(&frame); err != nil {
			c.log.Debug().Err(err).Msg("read loop ended")
			return
		}

		switch frame.Type {
		case EventAuthenticate:
			var payload AuthenticatePayload
			if c.decode(frame, &payload) {
				router.OnAuthenticate(ctx, c, payload)
			}
		case EventSendMessage:
			var payload SendMessagePayload
			if c.decode(frame, &payload) {
				router.OnSendMessage(ctx, c, payload)
			}
		case EventMessageRead:
			var payload MessageReadPayload
			if c.decode(frame, &payload) {
				router.OnMessageRead(ctx, c, payload)
			}
		case EventJoinRoom:
			var payload RoomChannelPayload
			if c.decode(frame, &payload) {
				router.OnJoinRoom(ctx, c, payload)
			}
		case EventLeaveRoom:
			var payload RoomChannelPayload
			if c.decode(frame, &payload) {
				router.OnLeaveRoom(ctx, c, payload)
			}
		default:
			c.Send(NewEvent(EventMessageError, ErrorPayload{
				Code:    "unknown_event",
				Message: "unsupported event type",
			}))
		}
	}
}

func (c *Client) decode(frame Inbound, out interface{}) bool {
	if err := json.Unmarshal(frame.Payload, out); err != nil {
		c.Send(NewEvent(EventMessageError, ErrorPayload{
			Code:    "invalid_payload",
			Message: "malformed event payload",
		}))
		return false
	}
	return true
}

func (c *Client) writer() {
	defer c.close()

	for {
		select {
		case event, ok := <-c.send:
			if !ok {
				return
			}
			if err := c.conn.WriteJSON(event); err != nil {
				c.log.Debug().Err(err).Msg("write loop terminated")
				return
			}
		case <-time.After(keepaliveInterval):
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.log.Debug().Err(err).Msg("ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *Client) enqueue(event Event) bool {
	select {
	case <-c.closed:
		return false
	default:
	}

	select {
	case c.send <- event:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.once.Do(func() {
		close(c.closed)
		c.hub.Disconnect(c)
		_ = c.conn.Close()
	})
}
