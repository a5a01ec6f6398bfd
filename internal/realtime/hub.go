package realtime

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Envelope is an event addressed to one room. Origin is the id of the client that caused it;
// that client does not receive it.
type Envelope struct {
	Event  string          `json:"event"`
	Data   json.RawMessage `json:"data"`
	Origin string          `json:"origin,omitempty"`
	At     int64           `json:"at"`
}

// Publisher publishes room events for every instance, this one included.
type Publisher interface {
	PublishEvent(eventID uuid.UUID, env Envelope) error
}

// Subscriber subscribes to a room's channel and invokes handler for each envelope.
type Subscriber interface {
	SubscribeEvent(eventID uuid.UUID, handler func(Envelope)) (cancel func(), err error)
}

// Hub maintains event_id -> set of connections. A connection may be in many rooms.
// With a Publisher and Subscriber set, delivery goes through Redis so every instance fans
// out to its own local members exactly once.
type Hub struct {
	rooms  map[uuid.UUID]map[*Client]struct{}
	subs   map[uuid.UUID]func()
	mu     sync.RWMutex
	logger *zap.Logger
	pub    Publisher
	sub    Subscriber
}

// NewHub creates a new WebSocket hub. pub and sub may be nil for single-instance delivery.
func NewHub(logger *zap.Logger, pub Publisher, sub Subscriber) *Hub {
	return &Hub{
		rooms:  make(map[uuid.UUID]map[*Client]struct{}),
		subs:   make(map[uuid.UUID]func()),
		logger: logger,
		pub:    pub,
		sub:    sub,
	}
}

// Join subscribes c to an event room. Joining twice is a no-op.
func (h *Hub) Join(c *Client, eventID uuid.UUID) {
	h.mu.Lock()
	room := h.rooms[eventID]
	created := room == nil
	if created {
		room = make(map[*Client]struct{})
		h.rooms[eventID] = room
	}
	if _, ok := room[c]; !ok {
		room[c] = struct{}{}
		c.rooms[eventID] = struct{}{}
		h.logger.Debug("client joined event room", zap.String("client_id", c.ID), zap.String("event_id", eventID.String()))
	}
	h.mu.Unlock()

	if created {
		h.subscribe(eventID)
	}
}

// Leave removes c from an event room. Leaving a room not joined is a no-op.
func (h *Hub) Leave(c *Client, eventID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, eventID)
}

// Detach removes c from every room it joined.
func (h *Hub) Detach(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for eventID := range c.rooms {
		h.leaveLocked(c, eventID)
	}
}

func (h *Hub) leaveLocked(c *Client, eventID uuid.UUID) {
	room, ok := h.rooms[eventID]
	if !ok {
		return
	}
	if _, ok := room[c]; !ok {
		return
	}
	delete(room, c)
	delete(c.rooms, eventID)
	if len(room) == 0 {
		delete(h.rooms, eventID)
		if cancel, ok := h.subs[eventID]; ok {
			cancel()
			delete(h.subs, eventID)
		}
	}
	h.logger.Debug("client left event room", zap.String("client_id", c.ID), zap.String("event_id", eventID.String()))
}

// subscribe opens the room's channel without holding the hub lock. The subscription is kept
// only while the room still exists and has none yet.
func (h *Hub) subscribe(eventID uuid.UUID) {
	if h.sub == nil {
		return
	}
	cancel, err := h.sub.SubscribeEvent(eventID, func(env Envelope) {
		h.deliver(eventID, env)
	})
	if err != nil {
		h.logger.Warn("room subscription failed, delivering locally", zap.String("event_id", eventID.String()), zap.Error(err))
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	_, active := h.rooms[eventID]
	_, taken := h.subs[eventID]
	if !active || taken {
		cancel()
		return
	}
	h.subs[eventID] = cancel
}

// IsMember reports whether c has joined the event room.
func (h *Hub) IsMember(c *Client, eventID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.rooms[eventID][c]
	return ok
}

// RoomSize returns the number of local connections in an event room.
func (h *Hub) RoomSize(eventID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[eventID])
}

// BroadcastToEvent sends an event to every member of the room, on every instance.
func (h *Hub) BroadcastToEvent(eventID uuid.UUID, event string, payload interface{}) {
	h.emit(eventID, event, payload, "")
}

// RelayFrom sends an event to every member of the room except the sending connection.
func (h *Hub) RelayFrom(sender *Client, eventID uuid.UUID, event string, payload interface{}) {
	h.emit(eventID, event, payload, sender.ID)
}

func (h *Hub) emit(eventID uuid.UUID, event string, payload interface{}, origin string) {
	data, err := encode(payload)
	if err != nil {
		h.logger.Error("encode room event", zap.String("event", event), zap.Error(err))
		return
	}
	env := Envelope{Event: event, Data: data, Origin: origin}

	if h.pub != nil {
		if err := h.pub.PublishEvent(eventID, env); err != nil {
			h.logger.Warn("publish room event failed, delivering locally", zap.String("event", event), zap.Error(err))
		} else {
			h.mu.RLock()
			_, subscribed := h.subs[eventID]
			h.mu.RUnlock()
			if subscribed {
				// local members get their copy back from the subscription
				return
			}
		}
	}
	h.deliver(eventID, env)
}

func (h *Hub) deliver(eventID uuid.UUID, env Envelope) {
	msg := WSMessage{Event: env.Event, Data: env.Data}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[eventID] {
		if env.Origin != "" && c.ID == env.Origin {
			continue
		}
		c.enqueue(msg)
	}
}

func encode(payload interface{}) (json.RawMessage, error) {
	switch v := payload.(type) {
	case nil:
		return nil, nil
	case json.RawMessage:
		return v, nil
	case []byte:
		return v, nil
	default:
		return json.Marshal(payload)
	}
}
