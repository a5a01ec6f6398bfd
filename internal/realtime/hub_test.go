package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memoryBus is an in-process stand-in for Redis pub/sub shared by several hubs.
type memoryBus struct {
	mu   sync.Mutex
	next int
	subs map[uuid.UUID]map[int]func(Envelope)
	fail bool
}

func newMemoryBus() *memoryBus {
	return &memoryBus{subs: make(map[uuid.UUID]map[int]func(Envelope))}
}

func (b *memoryBus) PublishEvent(eventID uuid.UUID, env Envelope) error {
	b.mu.Lock()
	if b.fail {
		b.mu.Unlock()
		return errors.New("bus down")
	}
	handlers := make([]func(Envelope), 0, len(b.subs[eventID]))
	for _, h := range b.subs[eventID] {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()
	for _, h := range handlers {
		h(env)
	}
	return nil
}

func (b *memoryBus) SubscribeEvent(eventID uuid.UUID, handler func(Envelope)) (func(), error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.subs[eventID] == nil {
		b.subs[eventID] = make(map[int]func(Envelope))
	}
	id := b.next
	b.next++
	b.subs[eventID][id] = handler
	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		delete(b.subs[eventID], id)
	}, nil
}

func (b *memoryBus) subscriptions(eventID uuid.UUID) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs[eventID])
}

func testClient(h *Hub, name string) *Client {
	return newClient(h, nil, Identity{UserID: uuid.New(), Name: name}, zap.NewNop())
}

func drain(c *Client) []WSMessage {
	var out []WSMessage
	for {
		select {
		case m := <-c.send:
			out = append(out, m)
		default:
			return out
		}
	}
}

func TestJoinLeaveIdempotent(t *testing.T) {
	h := NewHub(zap.NewNop(), nil, nil)
	c := testClient(h, "ann")
	room := uuid.New()

	h.Join(c, room)
	h.Join(c, room)
	assert.Equal(t, 1, h.RoomSize(room))
	assert.True(t, h.IsMember(c, room))

	h.Leave(c, room)
	h.Leave(c, room)
	assert.Zero(t, h.RoomSize(room))
	assert.False(t, h.IsMember(c, room))
}

func TestDetachDropsAllRooms(t *testing.T) {
	h := NewHub(zap.NewNop(), nil, nil)
	c := testClient(h, "ann")
	r1, r2 := uuid.New(), uuid.New()
	h.Join(c, r1)
	h.Join(c, r2)

	h.Detach(c)

	assert.Zero(t, h.RoomSize(r1))
	assert.Zero(t, h.RoomSize(r2))
	assert.Empty(t, c.rooms)
}

func TestBroadcastReachesRoomMembersOnly(t *testing.T) {
	h := NewHub(zap.NewNop(), nil, nil)
	room, other := uuid.New(), uuid.New()
	a, b, outsider := testClient(h, "a"), testClient(h, "b"), testClient(h, "c")
	h.Join(a, room)
	h.Join(b, room)
	h.Join(outsider, other)

	h.BroadcastToEvent(room, "new_message", map[string]string{"content": "hi"})

	for _, c := range []*Client{a, b} {
		msgs := drain(c)
		require.Len(t, msgs, 1)
		assert.Equal(t, "new_message", msgs[0].Event)
		assert.JSONEq(t, `{"content":"hi"}`, string(msgs[0].Data))
	}
	assert.Empty(t, drain(outsider))
}

func TestRelayExcludesSender(t *testing.T) {
	h := NewHub(zap.NewNop(), nil, nil)
	room := uuid.New()
	a, b := testClient(h, "a"), testClient(h, "b")
	h.Join(a, room)
	h.Join(b, room)

	h.RelayFrom(a, room, EventUserTyping, map[string]string{"user_id": a.User.UserID.String()})

	assert.Empty(t, drain(a))
	require.Len(t, drain(b), 1)
}

func TestBroadcastAcrossInstances(t *testing.T) {
	bus := newMemoryBus()
	h1 := NewHub(zap.NewNop(), bus, bus)
	h2 := NewHub(zap.NewNop(), bus, bus)
	room := uuid.New()
	a := testClient(h1, "a")
	b := testClient(h2, "b")
	h1.Join(a, room)
	h2.Join(b, room)

	h1.BroadcastToEvent(room, "message_deleted", map[string]string{"id": "m1"})
	assert.Len(t, drain(a), 1, "sender instance delivers exactly once")
	assert.Len(t, drain(b), 1)

	h2.RelayFrom(b, room, EventUserStopTyping, map[string]string{"user_id": "b"})
	assert.Len(t, drain(a), 1)
	assert.Empty(t, drain(b))
}

func TestSubscriptionReleasedWhenRoomEmpties(t *testing.T) {
	bus := newMemoryBus()
	h := NewHub(zap.NewNop(), bus, bus)
	room := uuid.New()
	a, b := testClient(h, "a"), testClient(h, "b")

	h.Join(a, room)
	h.Join(b, room)
	assert.Equal(t, 1, bus.subscriptions(room))

	h.Leave(a, room)
	assert.Equal(t, 1, bus.subscriptions(room))
	h.Detach(b)
	assert.Zero(t, bus.subscriptions(room))
}

// gatedBus holds every SubscribeEvent call until release is closed.
type gatedBus struct {
	*memoryBus
	started chan struct{}
	release chan struct{}
}

func newGatedBus() *gatedBus {
	return &gatedBus{memoryBus: newMemoryBus(), started: make(chan struct{}, 1), release: make(chan struct{})}
}

func (b *gatedBus) SubscribeEvent(eventID uuid.UUID, handler func(Envelope)) (func(), error) {
	b.started <- struct{}{}
	<-b.release
	return b.memoryBus.SubscribeEvent(eventID, handler)
}

func TestSlowSubscribeDoesNotBlockOtherRooms(t *testing.T) {
	bus := newGatedBus()
	h := NewHub(zap.NewNop(), bus, bus)
	room, other := uuid.New(), uuid.New()
	a := testClient(h, "a")

	joined := make(chan struct{})
	go func() {
		h.Join(a, room)
		close(joined)
	}()
	<-bus.started

	done := make(chan struct{})
	go func() {
		_ = h.RoomSize(other)
		h.BroadcastToEvent(other, "new_message", json.RawMessage(`{}`))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("hub lock held during subscribe")
	}
	assert.Equal(t, 1, h.RoomSize(room))

	close(bus.release)
	<-joined
	assert.Equal(t, 1, bus.subscriptions(room))
}

func TestSubscribeAfterRoomEmptiedIsCancelled(t *testing.T) {
	bus := newGatedBus()
	h := NewHub(zap.NewNop(), bus, bus)
	room := uuid.New()
	a := testClient(h, "a")

	joined := make(chan struct{})
	go func() {
		h.Join(a, room)
		close(joined)
	}()
	<-bus.started
	h.Leave(a, room)

	close(bus.release)
	<-joined
	assert.Zero(t, bus.subscriptions(room))
	assert.Zero(t, h.RoomSize(room))
}

func TestPublishFailureFallsBackToLocal(t *testing.T) {
	bus := newMemoryBus()
	h := NewHub(zap.NewNop(), bus, bus)
	room := uuid.New()
	a := testClient(h, "a")
	h.Join(a, room)
	bus.fail = true

	h.BroadcastToEvent(room, "new_message", json.RawMessage(`{"id":"1"}`))

	require.Len(t, drain(a), 1)
}

func TestParseEventID(t *testing.T) {
	id := uuid.New()

	got, err := parseEventID(json.RawMessage(`"` + id.String() + `"`))
	require.NoError(t, err)
	assert.Equal(t, id, got)

	got, err = parseEventID(json.RawMessage(`{"event_id":"` + id.String() + `"}`))
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, err = parseEventID(json.RawMessage(`"not-an-id"`))
	assert.Error(t, err)
	_, err = parseEventID(nil)
	assert.Error(t, err)
}
