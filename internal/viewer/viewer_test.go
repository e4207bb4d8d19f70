package viewer

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/l1jgo/hashbounds/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func startTestServer(t *testing.T) (*Hub, string, context.CancelFunc) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub(zap.NewNop())
	go hub.Run(ctx)

	srv := httptest.NewServer(Routes(hub, config.ViewerConfig{SendQueueSize: 4, WriteTimeout: time.Second}))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http"), cancel
}

func dialWS(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestFrameRoundTrip(t *testing.T) {
	f := &Frame{
		Tick:     9,
		Bounds:   [4]float64{-1, -2, 3, 4},
		Bodies:   []BodyView{{ID: 1, Kind: "rock", X: 1, Y: 2, W: 3, H: 4, Level: 2}},
		Contacts: [][2]uint64{{1, 2}},
		Buckets:  []int{10, 3, 1},
	}
	data, err := EncodeFrame(f)
	require.NoError(t, err)
	got, err := DecodeFrame(data)
	require.NoError(t, err)
	assert.Equal(t, f, got)
}

func TestHubBroadcast(t *testing.T) {
	hub, url, _ := startTestServer(t)
	a := dialWS(t, url)
	b := dialWS(t, url)
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.Broadcast(&Frame{Tick: 42, Buckets: []int{1}}))

	for _, conn := range []*websocket.Conn{a, b} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		typ, raw, err := conn.ReadMessage()
		require.NoError(t, err)
		assert.Equal(t, websocket.BinaryMessage, typ)
		f, err := DecodeFrame(raw)
		require.NoError(t, err)
		assert.Equal(t, uint64(42), f.Tick)
	}
}

func TestHubUnregisterOnClose(t *testing.T) {
	hub, url, _ := startTestServer(t)
	conn := dialWS(t, url)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	conn.Close()
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubShutdownClosesClients(t *testing.T) {
	hub, url, cancel := startTestServer(t)
	conn := dialWS(t, url)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNoStatusReceived, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure),
		"unexpected error %v", err)
	assert.Zero(t, hub.ClientCount())
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	Routes(NewHub(zap.NewNop()), config.ViewerConfig{}).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
