package events

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub()
	done := make(chan struct{})
	go func() {
		_ = h.Run(ctx)
		close(done)
	}()

	srv := httptest.NewServer(h.Handler())
	t.Cleanup(func() {
		cancel()
		<-done
		srv.Close()
	})
	return h, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestHubDeliversToEveryClient(t *testing.T) {
	h, url := startHub(t)
	a := dial(t, url)
	b := dial(t, url)
	require.Eventually(t, func() bool { return h.Clients() == 2 }, 2*time.Second, 5*time.Millisecond)

	h.Publish(NewRecordingSaved("s1", "Audio_x.wav", 1044, 500*time.Millisecond, 500, 1000))

	for _, c := range []*websocket.Conn{a, b} {
		require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, msg, err := c.ReadMessage()
		require.NoError(t, err)

		var got RecordingSaved
		require.NoError(t, json.Unmarshal(msg, &got))
		assert.Equal(t, TypeSaved, got.Type)
		assert.Equal(t, "Audio_x.wav", got.Name)
		assert.Equal(t, 1044, got.Bytes)
		assert.InDelta(t, 0.5, got.DurationSeconds, 1e-9)
		assert.NotEmpty(t, got.TS)
	}
}

func TestHubForgetsClosedClients(t *testing.T) {
	h, url := startHub(t)
	c := dial(t, url)
	require.Eventually(t, func() bool { return h.Clients() == 1 }, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, c.Close())
	require.Eventually(t, func() bool { return h.Clients() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestStoppedHubClosesNewClients(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub()
	cancel()
	require.NoError(t, h.Run(ctx))

	srv := httptest.NewServer(h.Handler())
	t.Cleanup(srv.Close)
	url := "ws" + strings.TrimPrefix(srv.URL, "http")

	// More clients than the registration queue holds.
	for range 20 {
		c := dial(t, url)
		require.NoError(t, c.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, _, err := c.ReadMessage()
		require.Error(t, err)
		var ne net.Error
		if errors.As(err, &ne) {
			assert.False(t, ne.Timeout(), "server left the connection open")
		}
	}
	assert.Zero(t, h.Clients())
}

func TestPublishNeverBlocks(t *testing.T) {
	h := NewHub() // not running, so nothing drains the queue
	for range 300 {
		h.Publish(NewLog("test", "info", "hello"))
	}
	assert.Equal(t, int64(300-256), h.Dropped())
}

func TestEventConstructors(t *testing.T) {
	st := NewStateTransition("abc", "CAPTURING", "TRIMMING")
	assert.Equal(t, TypeState, st.Type)
	assert.Equal(t, "session", st.Component)

	hb := NewHeartbeat("IDLE", 90*time.Second, false)
	assert.Equal(t, int64(90), hb.UptimeSeconds)

	b, err := json.Marshal(NewProgress("abc", "recording", 42, "12s of 30s"))
	require.NoError(t, err)
	assert.Contains(t, string(b), `"type":"progress"`)
	assert.Contains(t, string(b), `"percent":42`)

	_, err = time.Parse(time.RFC3339Nano, NewRecordingDeleted("a.wav").TS)
	assert.NoError(t, err)
}
