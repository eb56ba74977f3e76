package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30 * time.Second
	PongWait     = 60 * time.Second
	writeWait    = 10 * time.Second
	sendBuffer   = 64

	resubscribeMin = time.Second
	resubscribeMax = 30 * time.Second
)

// RoomHandler receives a message relayed for an event room.
type RoomHandler func(eventID uuid.UUID, event string, payload []byte)

// RedisPublisher publishes to Redis for cross-instance broadcast.
type RedisPublisher interface {
	PublishEventMessage(eventID uuid.UUID, event string, payload []byte) error
}

// RedisSubscriber delivers messages for every event room.
type RedisSubscriber interface {
	SubscribeRooms(ctx context.Context, handler RoomHandler) (<-chan struct{}, error)
}

// Hub maintains event_id -> set of connections and broadcasts messages.
// While a Redis relay is active, publishes go through the channel so every
// instance delivers once, including this one; otherwise they stay local.
type Hub struct {
	rooms    map[uuid.UUID]map[string]*Client
	mu       sync.RWMutex
	logger   *zap.Logger
	redis    RedisPublisher
	redisSub RedisSubscriber
	relaying atomic.Bool
}

// NewHub creates a new WebSocket hub. Both Redis arguments may be nil for a single instance.
func NewHub(logger *zap.Logger, redisPub RedisPublisher, redisSub RedisSubscriber) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:    make(map[uuid.UUID]map[string]*Client),
		logger:   logger,
		redis:    redisPub,
		redisSub: redisSub,
	}
}

// Listen keeps the Redis relay subscribed until ctx is done, resubscribing
// with backoff after failures. It returns at once when no subscriber is set.
func (h *Hub) Listen(ctx context.Context) {
	if h.redisSub == nil || h.redis == nil {
		return
	}
	backoff := resubscribeMin
	for {
		done, err := h.redisSub.SubscribeRooms(ctx, h.Broadcast)
		if err == nil {
			h.relaying.Store(true)
			h.logger.Info("realtime relay subscribed")
			backoff = resubscribeMin
			select {
			case <-done:
			case <-ctx.Done():
			}
			h.relaying.Store(false)
		} else {
			h.logger.Warn("realtime relay subscribe failed", zap.Error(err), zap.Duration("retry_in", backoff))
		}
		if ctx.Err() != nil {
			return
		}
		t := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			t.Stop()
			return
		case <-t.C:
		}
		if backoff *= 2; backoff > resubscribeMax {
			backoff = resubscribeMax
		}
	}
}

// Register adds a client to an event room and returns the room size.
func (h *Hub) Register(c *Client) int {
	h.mu.Lock()
	room := h.rooms[c.EventID]
	if room == nil {
		room = make(map[string]*Client)
		h.rooms[c.EventID] = room
	}
	room[c.ID] = c
	n := len(room)
	h.mu.Unlock()
	h.logger.Debug("viewer joined", zap.String("client_id", c.ID), zap.String("event_id", c.EventID.String()), zap.Int("viewers", n))
	return n
}

// Unregister removes a client from its room, closes its send channel and
// returns the remaining room size.
func (h *Hub) Unregister(c *Client) int {
	h.mu.Lock()
	n := 0
	if room, ok := h.rooms[c.EventID]; ok {
		if _, present := room[c.ID]; present {
			delete(room, c.ID)
			close(c.send)
		}
		n = len(room)
		if n == 0 {
			delete(h.rooms, c.EventID)
		}
	}
	h.mu.Unlock()
	h.logger.Debug("viewer left", zap.String("client_id", c.ID), zap.String("event_id", c.EventID.String()), zap.Int("viewers", n))
	return n
}

// Broadcast sends a message to all local clients viewing an event.
func (h *Hub) Broadcast(eventID uuid.UUID, event string, payload []byte) {
	h.broadcast(eventID, WSMessage{Event: event, Data: payload})
}

func (h *Hub) broadcast(eventID uuid.UUID, msg WSMessage) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.rooms[eventID] {
		select {
		case c.send <- msg:
		default:
			// slow viewer, drop
		}
	}
}

// PublishToEvent delivers to every viewer of the event. With an active relay
// the subscriber callback performs the broadcast, otherwise it is local only.
func (h *Hub) PublishToEvent(eventID uuid.UUID, event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		h.logger.Warn("encode publish", zap.String("event", event), zap.Error(err))
		return
	}
	if h.redis == nil || !h.relaying.Load() {
		h.Broadcast(eventID, event, data)
		return
	}
	if err := h.redis.PublishEventMessage(eventID, event, data); err != nil {
		h.logger.Warn("redis publish failed, broadcasting locally", zap.Error(err))
		h.Broadcast(eventID, event, data)
	}
}

// viewers returns the number of connected clients for an event on this instance.
func (h *Hub) viewers(eventID uuid.UUID) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[eventID])
}
