package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/posekit/posestream/internal/domain/payload"
	"github.com/posekit/posestream/internal/domain/pose"
	"github.com/posekit/posestream/internal/infrastructure/logging"
	"github.com/posekit/posestream/internal/infrastructure/monitoring"
	"github.com/posekit/posestream/internal/shared/id"
)

func newTestBroadcaster(t *testing.T) *Broadcaster {
	t.Helper()
	return NewBroadcaster(
		Config{Hz: 100, WriteTimeout: time.Second},
		payload.New(),
		logging.NewNop(),
		monitoring.NewMetrics(),
	)
}

// dialTestClient connects a websocket client through the broadcaster's own
// connection handler.
func dialTestClient(t *testing.T, b *Broadcaster) (*websocket.Conn, func()) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/stream", b.HandleConnection)
	srv := httptest.NewServer(router)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)

	return conn, func() {
		conn.Close()
		srv.Close()
	}
}

// registerConn inserts a raw server-side connection into the client set,
// bypassing the HTTP handler, so tests can break it at will.
func registerConn(b *Broadcaster, conn *websocket.Conn) *client {
	cl := &client{id: id.NewClientID(), conn: conn}
	b.mu.Lock()
	b.clients[cl] = struct{}{}
	b.mu.Unlock()
	return cl
}

// serverSidePair upgrades one connection and hands back both ends.
func serverSidePair(t *testing.T) (server *websocket.Conn, remote *websocket.Conn, cleanup func()) {
	t.Helper()
	upgraded := make(chan *websocket.Conn, 1)
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		up := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		upgraded <- conn
		// Keep the handler alive; the test owns both conns.
		<-done
	}))

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	remote, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	server = <-upgraded

	return server, remote, func() {
		remote.Close()
		server.Close()
		close(done)
		srv.Close()
	}
}

func stateWithX(x float64) pose.State {
	s := pose.EmptyState()
	s[0] = pose.Landmark{Pos: r3.Vec{X: x, Y: x, Z: x}, Visibility: 0.9}
	return s
}

func readText(t *testing.T, conn *websocket.Conn, timeout time.Duration) (string, error) {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(timeout))
	_, data, err := conn.ReadMessage()
	return string(data), err
}

func TestBroadcasterLifecycle(t *testing.T) {
	b := newTestBroadcaster(t)
	assert.Equal(t, StateIdle, b.State())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	assert.Eventually(t, func() bool { return b.State() == StateRunning }, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, StateStopped, b.State())

	// A stopped broadcaster cannot run again.
	assert.ErrorIs(t, b.Run(context.Background()), ErrNotIdle)
}

func TestBroadcasterEmptyTickIsNoOp(t *testing.T) {
	b := newTestBroadcaster(t)

	// No payload, no clients.
	assert.NotPanics(t, func() { b.tick() })

	// Payload but no clients.
	b.OnState(stateWithX(1))
	assert.NotPanics(t, func() { b.tick() })

	// Client but no payload.
	b2 := newTestBroadcaster(t)
	conn, cleanup := dialTestClient(t, b2)
	defer cleanup()
	require.Eventually(t, func() bool { return b2.ClientCount() == 1 }, time.Second, time.Millisecond)
	b2.tick()

	_, err := readText(t, conn, 50*time.Millisecond)
	assert.Error(t, err, "a tick with no payload must send nothing")
}

func TestBroadcasterLoadShedding(t *testing.T) {
	b := newTestBroadcaster(t)
	conn, cleanup := dialTestClient(t, b)
	defer cleanup()
	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, time.Second, time.Millisecond)

	// Five states land within one broadcast period; only the last survives.
	for i := 1; i <= 5; i++ {
		b.OnState(stateWithX(float64(i)))
	}
	b.tick()

	text, err := readText(t, conn, time.Second)
	require.NoError(t, err)
	assert.Contains(t, text, `"x":5`, "the slot must hold the most recent state")
	assert.NotContains(t, text, `"x":4`)

	// Exactly one send for the period.
	_, err = readText(t, conn, 50*time.Millisecond)
	assert.Error(t, err, "intermediate states must be dropped, not queued")
}

func TestBroadcasterClientIsolation(t *testing.T) {
	b := newTestBroadcaster(t)

	healthyServer, healthyRemote, cleanupHealthy := serverSidePair(t)
	defer cleanupHealthy()
	brokenServer, _, cleanupBroken := serverSidePair(t)
	defer cleanupBroken()

	registerConn(b, healthyServer)
	broken := registerConn(b, brokenServer)

	// Break one connection under the broadcaster.
	require.NoError(t, brokenServer.Close())

	b.OnState(stateWithX(7))
	b.tick()

	text, err := readText(t, healthyRemote, time.Second)
	require.NoError(t, err)
	assert.Contains(t, text, `"x":7`, "the healthy client must still receive the tick")

	b.mu.Lock()
	_, stillThere := b.clients[broken]
	count := len(b.clients)
	b.mu.Unlock()
	assert.False(t, stillThere, "the failing client must be removed from the active set")
	assert.Equal(t, 1, count)
}

func TestBroadcasterSameness(t *testing.T) {
	// Every connected client receives the same payload text on one tick.
	b := newTestBroadcaster(t)

	s1, r1, c1 := serverSidePair(t)
	defer c1()
	s2, r2, c2 := serverSidePair(t)
	defer c2()
	registerConn(b, s1)
	registerConn(b, s2)

	b.OnState(stateWithX(3))
	b.tick()

	t1, err := readText(t, r1, time.Second)
	require.NoError(t, err)
	t2, err := readText(t, r2, time.Second)
	require.NoError(t, err)
	assert.Equal(t, t1, t2)
}

func TestBroadcasterShutdownClosesClients(t *testing.T) {
	b := newTestBroadcaster(t)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()

	conn, cleanup := dialTestClient(t, b)
	defer cleanup()
	require.Eventually(t, func() bool { return b.ClientCount() == 1 }, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, 0, b.ClientCount())

	_, err := readText(t, conn, time.Second)
	assert.Error(t, err, "clients must be disconnected on shutdown")
}

func TestBroadcasterRejectsAfterShutdown(t *testing.T) {
	b := newTestBroadcaster(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- b.Run(ctx) }()
	cancel()
	require.NoError(t, <-done)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/stream", b.HandleConnection)
	srv := httptest.NewServer(router)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/stream"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	assert.Error(t, err)
	if resp != nil {
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	}
}
