package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix  = "event:"
	publishTimeout = 5 * time.Second
)

// redisPayload is the message published to Redis for cross-instance broadcast.
type redisPayload struct {
	EventID uuid.UUID       `json:"event_id"`
	Event   string          `json:"event"`
	Data    json.RawMessage `json:"data"`
	At      int64           `json:"at"`
}

// RedisPubSub relays room messages between instances over Redis pub/sub.
// Every instance holds one pattern subscription covering all event rooms.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPubSub creates a Redis pub/sub bridge for event rooms.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPubSub{client: client, logger: logger}
}

// Channel returns the Redis channel for an event room.
func Channel(eventID uuid.UUID) string {
	return channelPrefix + eventID.String()
}

// EventFromChannel extracts the event id from a room channel name.
func EventFromChannel(channel string) (uuid.UUID, bool) {
	if !strings.HasPrefix(channel, channelPrefix) {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimPrefix(channel, channelPrefix))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// PublishEventMessage publishes a message to the event's room channel.
func (r *RedisPubSub) PublishEventMessage(eventID uuid.UUID, event string, payload []byte) error {
	body, err := json.Marshal(redisPayload{EventID: eventID, Event: event, Data: payload, At: time.Now().Unix()})
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
	defer cancel()
	return r.client.Publish(ctx, Channel(eventID), body).Err()
}

// SubscribeRooms subscribes to every event room and calls handler for each
// message until ctx is done or the connection drops. It returns once the
// subscription is confirmed; the returned channel closes when delivery stops.
func (r *RedisPubSub) SubscribeRooms(ctx context.Context, handler RoomHandler) (<-chan struct{}, error) {
	pubsub := r.client.PSubscribe(ctx, channelPrefix+"*")
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("psubscribe: %w", err)
	}
	done := make(chan struct{})
	ch := pubsub.Channel()
	go func() {
		defer close(done)
		defer pubsub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				eventID, payload, ok := decodeRoomMessage(msg.Channel, msg.Payload)
				if !ok {
					r.logger.Debug("drop malformed room message", zap.String("channel", msg.Channel))
					continue
				}
				handler(eventID, payload.Event, payload.Data)
			}
		}
	}()
	return done, nil
}

// decodeRoomMessage parses a published message and checks it belongs to the
// room it arrived on.
func decodeRoomMessage(channel, body string) (uuid.UUID, redisPayload, bool) {
	var p redisPayload
	eventID, ok := EventFromChannel(channel)
	if !ok {
		return uuid.Nil, p, false
	}
	if err := json.Unmarshal([]byte(body), &p); err != nil || p.Event == "" {
		return uuid.Nil, p, false
	}
	if p.EventID != eventID {
		return uuid.Nil, p, false
	}
	return eventID, p, true
}
