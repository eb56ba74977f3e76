package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type relayRedis struct {
	mu         sync.Mutex
	failures   int
	calls      int
	publishErr error
	published  []string
	handler    RoomHandler
}

func (r *relayRedis) PublishEventMessage(eventID uuid.UUID, event string, payload []byte) error {
	r.mu.Lock()
	if r.publishErr != nil {
		r.mu.Unlock()
		return r.publishErr
	}
	r.published = append(r.published, event)
	handler := r.handler
	r.mu.Unlock()
	if handler != nil {
		handler(eventID, event, payload)
	}
	return nil
}

func (r *relayRedis) SubscribeRooms(_ context.Context, handler RoomHandler) (<-chan struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failures > 0 {
		r.failures--
		return nil, errors.New("connection refused")
	}
	r.handler = handler
	return make(chan struct{}), nil
}

func (r *relayRedis) subscribeCalls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func (r *relayRedis) publishedEvents() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.published...)
}

func listen(t *testing.T, hub *Hub) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Listen(ctx)
		close(stopped)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-stopped:
		case <-time.After(time.Second):
			t.Error("relay did not stop")
		}
	})
	return cancel
}

func receive(t *testing.T, c *Client) WSMessage {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message delivered")
	}
	return WSMessage{}
}

func TestBroadcastOnlyReachesRoom(t *testing.T) {
	hub := NewHub(zap.NewNop(), nil, nil)
	picnic, cleanup := uuid.New(), uuid.New()
	a := NewClient(hub, picnic, uuid.Nil, zap.NewNop())
	b := NewClient(hub, cleanup, uuid.Nil, zap.NewNop())
	hub.Register(a)
	hub.Register(b)

	hub.PublishToEvent(picnic, "upvotes", map[string]int{"count": 2})

	msg := receive(t, a)
	assert.Equal(t, "upvotes", msg.Event)
	assert.JSONEq(t, `{"count":2}`, string(msg.Data))
	assert.Empty(t, b.send)
}

func TestUnregisterRemovesRoom(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	eventID := uuid.New()
	c := NewClient(hub, eventID, uuid.Nil, zap.NewNop())
	hub.Register(c)
	require.Equal(t, 1, hub.viewers(eventID))

	hub.Unregister(c)
	hub.Unregister(c)

	assert.Equal(t, 0, hub.viewers(eventID))
	_, open := <-c.send
	assert.False(t, open)
}

func TestRelayRetriesAndDeliversOnce(t *testing.T) {
	relay := &relayRedis{failures: 1}
	hub := NewHub(zap.NewNop(), relay, relay)
	eventID := uuid.New()
	c := NewClient(hub, eventID, uuid.Nil, zap.NewNop())
	hub.Register(c)
	listen(t, hub)

	require.Eventually(t, func() bool { return relay.subscribeCalls() == 1 }, time.Second, 5*time.Millisecond)
	hub.PublishToEvent(eventID, "upvotes", map[string]int{"count": 1})
	msg := receive(t, c)
	assert.JSONEq(t, `{"count":1}`, string(msg.Data))
	assert.Empty(t, relay.publishedEvents(), "local broadcast while the relay is down")

	require.Eventually(t, hub.relaying.Load, 3*time.Second, 10*time.Millisecond)
	assert.Equal(t, 2, relay.subscribeCalls())

	hub.PublishToEvent(eventID, "upvotes", map[string]string{"label": "2 Up Votes"})
	msg = receive(t, c)
	assert.JSONEq(t, `{"label":"2 Up Votes"}`, string(msg.Data))
	assert.Empty(t, c.send, "exactly one delivery")
	assert.Equal(t, []string{"upvotes"}, relay.publishedEvents())
}

func TestRelayPublishFailureFallsBackToLocal(t *testing.T) {
	relay := &relayRedis{}
	hub := NewHub(zap.NewNop(), relay, relay)
	eventID := uuid.New()
	c := NewClient(hub, eventID, uuid.Nil, zap.NewNop())
	hub.Register(c)
	listen(t, hub)
	require.Eventually(t, hub.relaying.Load, time.Second, 5*time.Millisecond)

	relay.mu.Lock()
	relay.publishErr = errors.New("broken pipe")
	relay.mu.Unlock()
	hub.PublishToEvent(eventID, "upvotes", map[string]int{"count": 5})

	msg := receive(t, c)
	assert.JSONEq(t, `{"count":5}`, string(msg.Data))
	assert.Empty(t, c.send)
}

func TestRelayStopsWithContext(t *testing.T) {
	relay := &relayRedis{}
	hub := NewHub(zap.NewNop(), relay, relay)
	cancel := listen(t, hub)
	require.Eventually(t, hub.relaying.Load, time.Second, 5*time.Millisecond)

	cancel()

	require.Eventually(t, func() bool { return !hub.relaying.Load() }, time.Second, 5*time.Millisecond)
}

func TestListenWithoutRedisReturns(t *testing.T) {
	hub := NewHub(nil, nil, nil)
	done := make(chan struct{})
	go func() {
		hub.Listen(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Listen blocked without a subscriber")
	}
}

func TestChannelName(t *testing.T) {
	id := uuid.MustParse("6f1c1d6e-3b57-4d7a-9a55-14a37d6a1c01")
	assert.Equal(t, "event:6f1c1d6e-3b57-4d7a-9a55-14a37d6a1c01", Channel(id))
}

func TestServeWsDeliversUpdates(t *testing.T) {
	gin.SetMode(gin.TestMode)
	hub := NewHub(zap.NewNop(), nil, nil)
	r := gin.New()
	r.GET("/ws", ServeWs(hub, zap.NewNop()))
	srv := httptest.NewServer(r)
	defer srv.Close()

	eventID := uuid.New()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?event_id=" + eventID.String()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.viewers(eventID) == 1 }, time.Second, 10*time.Millisecond)
	hub.PublishToEvent(eventID, "upvotes", map[string]int{"count": 4})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "upvotes", msg.Event)
	var data map[string]int
	require.NoError(t, json.Unmarshal(msg.Data, &data))
	assert.Equal(t, 4, data["count"])
}

func TestServeWsRequiresEventID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/ws", ServeWs(NewHub(nil, nil, nil), zap.NewNop()))

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/ws?event_id=nope", nil))

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSameOrigin(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "http://example.test/ws", nil)
	assert.True(t, sameOrigin(req))
	req.Header.Set("Origin", "http://example.test")
	assert.True(t, sameOrigin(req))
	req.Header.Set("Origin", "http://evil.test")
	assert.False(t, sameOrigin(req))
}
