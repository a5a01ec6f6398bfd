package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/eblago/backend/internal/middleware"
	"github.com/eblago/backend/pkg/response"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30 * time.Second
	PongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
	maxFrameSize = 64 * 1024
	sendBuffer   = 256
)

// Client events.
const (
	EventJoin       = "join_event"
	EventLeave      = "leave_event"
	EventTyping     = "typing"
	EventStopTyping = "stop_typing"
)

// Server events.
const (
	EventUserTyping     = "user_typing"
	EventUserStopTyping = "user_stop_typing"
	EventError          = "error"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // handshake token authenticates; origin is not checked
	},
}

// WSMessage is the WebSocket message envelope.
type WSMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Identity is the authenticated user behind a connection.
type Identity struct {
	UserID uuid.UUID
	Name   string
	Role   string
}

// AuthFunc resolves a handshake token to an identity.
type AuthFunc func(ctx context.Context, token string) (Identity, error)

// Client represents a single WebSocket connection. rooms is guarded by the hub's lock.
type Client struct {
	ID     string
	User   Identity
	hub    *Hub
	conn   *websocket.Conn
	send   chan WSMessage
	done   chan struct{}
	rooms  map[uuid.UUID]struct{}
	logger *zap.Logger
}

func newClient(hub *Hub, conn *websocket.Conn, user Identity, logger *zap.Logger) *Client {
	return &Client{
		ID:     uuid.New().String(),
		User:   user,
		hub:    hub,
		conn:   conn,
		send:   make(chan WSMessage, sendBuffer),
		done:   make(chan struct{}),
		rooms:  make(map[uuid.UUID]struct{}),
		logger: logger,
	}
}

// enqueue queues msg without blocking; a full buffer drops it.
func (c *Client) enqueue(msg WSMessage) {
	select {
	case c.send <- msg:
	default:
		c.logger.Debug("send buffer full, dropping message", zap.String("client_id", c.ID), zap.String("event", msg.Event))
	}
}

func (c *Client) sendError(message string) {
	data, _ := json.Marshal(map[string]string{"message": message})
	c.enqueue(WSMessage{Event: EventError, Data: data})
}

func handshakeToken(c *gin.Context) string {
	if t := c.Query("token"); t != "" {
		return t
	}
	if t, ok := middleware.BearerToken(c.GetHeader("Authorization")); ok {
		return t
	}
	return ""
}

// ServeWs authenticates the handshake, upgrades the connection and runs the client loop.
// Missing or rejected credentials get 401 and no upgrade.
func ServeWs(hub *Hub, logger *zap.Logger, authenticate AuthFunc) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := handshakeToken(c)
		if token == "" {
			response.Unauthorized(c, "authentication token required")
			return
		}
		user, err := authenticate(c.Request.Context(), token)
		if err != nil {
			logger.Debug("websocket handshake rejected", zap.Error(err))
			response.Unauthorized(c, "invalid token")
			return
		}

		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logger.Warn("websocket upgrade failed", zap.Error(err))
			return
		}

		client := newClient(hub, conn, user, logger)
		logger.Debug("websocket connected", zap.String("client_id", client.ID), zap.String("user_id", user.UserID.String()))
		go client.writePump()
		client.readPump()
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Detach(c)
		close(c.done)
		_ = c.conn.Close()
		c.logger.Debug("websocket disconnected", zap.String("client_id", c.ID))
	}()

	c.conn.SetReadLimit(maxFrameSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(PongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(PongWait))
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Debug("websocket read error", zap.String("client_id", c.ID), zap.Error(err))
			}
			if malformed(err) {
				c.sendError("malformed message")
				continue
			}
			return
		}
		_ = c.conn.SetReadDeadline(time.Now().Add(PongWait))
		c.handle(msg)
	}
}

// malformed reports whether err came from decoding a frame that was read in full.
func malformed(err error) bool {
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	return errors.As(err, &syntaxErr) || errors.As(err, &typeErr)
}

// handle applies one client event.
func (c *Client) handle(msg WSMessage) {
	switch msg.Event {
	case EventJoin, EventLeave, EventTyping, EventStopTyping:
	default:
		c.sendError("unknown event " + msg.Event)
		return
	}
	eventID, err := parseEventID(msg.Data)
	if err != nil {
		c.sendError("invalid event id")
		return
	}

	switch msg.Event {
	case EventJoin:
		c.hub.Join(c, eventID)
	case EventLeave:
		c.hub.Leave(c, eventID)
	case EventTyping:
		if !c.hub.IsMember(c, eventID) {
			c.sendError("join the event room first")
			return
		}
		c.hub.RelayFrom(c, eventID, EventUserTyping, map[string]string{
			"event_id": eventID.String(),
			"user_id":  c.User.UserID.String(),
			"name":     c.User.Name,
		})
	case EventStopTyping:
		if !c.hub.IsMember(c, eventID) {
			c.sendError("join the event room first")
			return
		}
		c.hub.RelayFrom(c, eventID, EventUserStopTyping, map[string]string{
			"event_id": eventID.String(),
			"user_id":  c.User.UserID.String(),
		})
	}
}

// parseEventID accepts either a bare id string or {"event_id": "..."}.
func parseEventID(data json.RawMessage) (uuid.UUID, error) {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		var obj struct {
			EventID string `json:"event_id"`
		}
		if err := json.Unmarshal(data, &obj); err != nil {
			return uuid.Nil, err
		}
		s = obj.EventID
	}
	return uuid.Parse(s)
}

func (c *Client) writePump() {
	ticker := time.NewTicker(PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		case msg := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
