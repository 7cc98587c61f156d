package ws

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/posekit/posestream/internal/domain/payload"
	"github.com/posekit/posestream/internal/domain/pose"
	"github.com/posekit/posestream/internal/infrastructure/logging"
	"github.com/posekit/posestream/internal/infrastructure/monitoring"
	"github.com/posekit/posestream/internal/shared/id"
)

// State is the broadcaster lifecycle state.
type State int32

const (
	StateIdle State = iota
	StateRunning
	StateStopping
	StateStopped
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// ErrNotIdle is returned when Run is called on a broadcaster that has
// already run.
var ErrNotIdle = errors.New("broadcaster has already run")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // consumers connect from arbitrary origins (e.g. game engines)
	},
}

// Config defines broadcaster behavior.
type Config struct {
	// Hz is the broadcast tick rate, independent of the producer rate.
	Hz float64
	// WriteTimeout bounds each per-client send within a tick.
	WriteTimeout time.Duration
}

// DefaultConfig returns production-ready broadcaster configuration.
func DefaultConfig() Config {
	return Config{
		Hz:           30,
		WriteTimeout: time.Second,
	}
}

type client struct {
	id   id.ClientID
	conn *websocket.Conn
}

// Broadcaster pushes the latest serialized pose payload to every connected
// websocket client on a fixed period.
//
// It is an in-process observer of the pose store: every notification
// overwrites a single latest-payload slot. The slot is never queued, so when
// merged states arrive faster than the broadcast period, intermediate values
// are dropped and clients receive only the most recent one.
type Broadcaster struct {
	adapter *payload.Adapter
	logger  *logging.Logger
	metrics *monitoring.Metrics
	period  time.Duration
	timeout time.Duration

	state atomic.Int32

	mu      sync.Mutex
	latest  string
	clients map[*client]struct{}
}

// NewBroadcaster creates a broadcaster in the Idle state.
func NewBroadcaster(cfg Config, adapter *payload.Adapter, logger *logging.Logger, metrics *monitoring.Metrics) *Broadcaster {
	if cfg.Hz <= 0 {
		cfg.Hz = DefaultConfig().Hz
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = DefaultConfig().WriteTimeout
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Broadcaster{
		adapter: adapter,
		logger:  logger,
		metrics: metrics,
		period:  time.Duration(float64(time.Second) / cfg.Hz),
		timeout: cfg.WriteTimeout,
		clients: make(map[*client]struct{}),
	}
}

// OnState implements pose.Observer: it serializes the state and overwrites
// the latest-payload slot. Called on the producer's goroutine, so it does no
// network I/O.
func (b *Broadcaster) OnState(state pose.State) {
	text, err := b.adapter.ToText(state)
	if err != nil {
		b.logger.Error("failed to serialize pose state", zap.Error(err))
		return
	}
	b.mu.Lock()
	b.latest = text
	b.mu.Unlock()
}

// State returns the current lifecycle state.
func (b *Broadcaster) State() State {
	return State(b.state.Load())
}

// ClientCount returns the number of currently connected clients.
func (b *Broadcaster) ClientCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// HandleConnection upgrades an HTTP request to a websocket connection and
// registers it with the broadcaster. It blocks until the client disconnects.
func (b *Broadcaster) HandleConnection(c *gin.Context) {
	if s := b.State(); s == StateStopping || s == StateStopped {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "broadcaster is shut down"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		b.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	cl := &client{id: id.NewClientID(), conn: conn}
	b.mu.Lock()
	b.clients[cl] = struct{}{}
	b.mu.Unlock()
	if b.metrics != nil {
		b.metrics.WSConnections.Inc()
	}
	b.logger.Info("client connected",
		zap.String("client_id", string(cl.id)),
		zap.String("remote", conn.RemoteAddr().String()),
	)

	// Drain inbound messages. Clients have nothing to say on this channel;
	// reading keeps close/ping handling alive and detects disconnects.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
	b.drop(cl, "client disconnected")
}

// Run starts the broadcast loop and blocks until ctx is cancelled. On
// cancellation it closes every connected client and releases its resources.
func (b *Broadcaster) Run(ctx context.Context) error {
	if !b.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return ErrNotIdle
	}
	b.logger.Info("broadcaster started", zap.Duration("period", b.period))

	ticker := time.NewTicker(b.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			b.state.Store(int32(StateStopping))
			b.closeAll()
			b.state.Store(int32(StateStopped))
			b.logger.Info("broadcaster stopped")
			return nil
		case <-ticker.C:
			b.tick()
		}
	}
}

// tick sends the latest payload to every connected client concurrently. An
// empty slot or an empty client set is a silent no-op.
func (b *Broadcaster) tick() {
	if b.metrics != nil {
		b.metrics.BroadcastTicks.Inc()
	}

	b.mu.Lock()
	text := b.latest
	targets := make([]*client, 0, len(b.clients))
	for cl := range b.clients {
		targets = append(targets, cl)
	}
	b.mu.Unlock()

	if text == "" || len(targets) == 0 {
		return
	}

	data := []byte(text)
	var wg sync.WaitGroup
	for _, cl := range targets {
		wg.Add(1)
		go func(cl *client) {
			defer wg.Done()
			b.send(cl, data)
		}(cl)
	}
	wg.Wait()
}

// send delivers one payload to one client. A failed send removes the client;
// the next tick naturally resends the latest state if it reconnects.
func (b *Broadcaster) send(cl *client, data []byte) {
	cl.conn.SetWriteDeadline(time.Now().Add(b.timeout))
	if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		if b.metrics != nil {
			b.metrics.BroadcastErrors.Inc()
		}
		b.drop(cl, "send failed")
		return
	}
	if b.metrics != nil {
		b.metrics.BroadcastSends.Inc()
	}
}

// drop removes a client from the active set and closes its connection.
// Safe to call from both the drain loop and a failed send; only the first
// call takes effect.
func (b *Broadcaster) drop(cl *client, reason string) {
	b.mu.Lock()
	_, present := b.clients[cl]
	delete(b.clients, cl)
	b.mu.Unlock()
	if !present {
		return
	}

	cl.conn.Close()
	if b.metrics != nil {
		b.metrics.WSConnections.Dec()
	}
	b.logger.Info("client removed",
		zap.String("client_id", string(cl.id)),
		zap.String("reason", reason),
	)
}

// closeAll disconnects every client during shutdown.
func (b *Broadcaster) closeAll() {
	b.mu.Lock()
	targets := make([]*client, 0, len(b.clients))
	for cl := range b.clients {
		targets = append(targets, cl)
	}
	b.mu.Unlock()

	deadline := time.Now().Add(b.timeout)
	for _, cl := range targets {
		cl.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			deadline,
		)
		b.drop(cl, "server shutdown")
	}
}
