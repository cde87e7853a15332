package broadcast

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func decode(t *testing.T, raw []byte) Message {
	t.Helper()
	var m Message
	require.NoError(t, json.Unmarshal(raw, &m))
	return m
}

func TestHub_InitialMessagesPrecedeBroadcasts(t *testing.T) {
	hub := NewHub(4, zap.NewNop())

	status, err := NewMessage(EventDeviceStatus, map[string]bool{"connected": false})
	require.NoError(t, err)
	sub := hub.Add(status)
	hub.Broadcast(EventReadingUpdate, map[string]int{"heart_rate": 72})

	first := decode(t, <-sub.Messages())
	assert.Equal(t, EventDeviceStatus, first.Event)
	assert.JSONEq(t, `{"connected": false}`, string(first.Data))

	second := decode(t, <-sub.Messages())
	assert.Equal(t, EventReadingUpdate, second.Event)
}

func TestHub_BroadcastReachesEverySubscriber(t *testing.T) {
	hub := NewHub(4, zap.NewNop())
	a := hub.Add()
	b := hub.Add()

	hub.Broadcast(EventDeviceStatus, map[string]bool{"connected": true})

	assert.Equal(t, EventDeviceStatus, decode(t, <-a.Messages()).Event)
	assert.Equal(t, EventDeviceStatus, decode(t, <-b.Messages()).Event)
	assert.Equal(t, 2, hub.Len())
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub(1, zap.NewNop())
	slow := hub.Add()
	fast := hub.Add()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 10; i++ {
			hub.Broadcast(EventReadingUpdate, i)
			<-fast.Messages()
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a slow subscriber")
	}
	assert.Len(t, slow.Messages(), 1, "slow subscriber keeps only what fits")
}

func TestHub_MissedWhileAbsent(t *testing.T) {
	hub := NewHub(4, zap.NewNop())
	hub.Broadcast(EventReadingUpdate, 1)

	sub := hub.Add()
	assert.Len(t, sub.Messages(), 0)
}

func TestHub_RemoveIsIdempotent(t *testing.T) {
	hub := NewHub(4, zap.NewNop())
	sub := hub.Add()

	hub.Remove(sub)
	hub.Remove(sub)
	hub.Broadcast(EventReadingUpdate, 1)

	_, ok := <-sub.Messages()
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Len())
}

func TestHub_ServeOverWebsocket(t *testing.T) {
	hub := NewHub(4, zap.NewNop())
	upgrader := NewUpgrader(true)
	received := make(chan Message, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		status, _ := NewMessage(EventDeviceStatus, map[string]bool{"connected": false})
		sub := hub.Add(status)
		hub.Serve(conn, sub, func(m Message) { received <- m })
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, EventDeviceStatus, decode(t, raw).Event)

	require.NoError(t, conn.WriteMessage(websocket.TextMessage,
		[]byte(`{"event":"location_captured","data":{"latitude":12.97,"longitude":77.59}}`)))

	select {
	case m := <-received:
		assert.Equal(t, EventLocationCaptured, m.Event)
	case <-time.After(2 * time.Second):
		t.Fatal("inbound message not delivered")
	}

	require.Eventually(t, func() bool { return hub.Len() == 1 }, time.Second, 10*time.Millisecond)
	conn.Close()
	assert.Eventually(t, func() bool { return hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}
