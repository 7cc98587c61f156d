package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	nethttp "net/http"
	"sync/atomic"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	apihttp "github.com/posekit/posestream/internal/api/http"
	"github.com/posekit/posestream/internal/api/middleware"
	"github.com/posekit/posestream/internal/api/ws"
	"github.com/posekit/posestream/internal/domain/payload"
	"github.com/posekit/posestream/internal/domain/pose"
	"github.com/posekit/posestream/internal/infrastructure/config"
	"github.com/posekit/posestream/internal/infrastructure/logging"
	"github.com/posekit/posestream/internal/infrastructure/monitoring"
	"github.com/posekit/posestream/internal/ingest"
)

const (
	httpShutdownTimeout = 5 * time.Second
	producerJoinTimeout = 2 * time.Second
)

// Server wires the full pipeline: merge engine, observable store, payload
// adapter, websocket broadcaster, and the HTTP surface around them.
type Server struct {
	config      *config.Config
	logger      *logging.Logger
	metrics     *monitoring.Metrics
	engine      *pose.Engine
	store       *pose.Store
	broadcaster *ws.Broadcaster
	runner      *ingest.Runner
	router      *gin.Engine
	http        *nethttp.Server

	ready chan struct{}
	addr  atomic.Value // string, set once listening
}

// Option customizes server construction.
type Option func(*options)

type options struct {
	source ingest.Source
}

// WithSource attaches an embedded perception source; the server then runs a
// producer loop pulling frames from it alongside the HTTP ingest endpoint.
func WithSource(src ingest.Source) Option {
	return func(o *options) { o.source = src }
}

// New creates a server from validated configuration.
func New(cfg *config.Config, opts ...Option) (*Server, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var logger *logging.Logger
	if cfg.Logging.Development {
		logger = logging.NewDevelopment()
	} else {
		var err error
		logger, err = logging.New(logging.Config{
			Level:       cfg.Logging.Level,
			OutputPaths: []string{"stdout"},
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build logger: %w", err)
		}
	}

	logger.Info("initializing posestream server",
		zap.String("addr", cfg.Server.Host+":"+cfg.Server.Port),
		zap.Float64("vis_thresh", cfg.Pose.VisibilityThreshold),
		zap.String("smoothing", cfg.Pose.Smoothing),
		zap.Float64("broadcast_hz", cfg.Broadcast.Hz),
	)

	metrics := monitoring.NewMetrics()

	var smoother pose.Smoother
	switch cfg.Pose.Smoothing {
	case config.SmoothingEMA:
		smoother = pose.EMA(cfg.Pose.Alpha)
	default:
		smoother = pose.Passthrough()
	}

	engine := pose.NewEngine(cfg.Pose.VisibilityThreshold, smoother).WithMetrics(metrics)
	store := pose.NewStore(logger.Logger).WithMetrics(metrics)

	adapter := payload.New(
		payload.WithNaNToZero(cfg.Payload.NaNToZero),
		payload.WithRounding(cfg.Payload.RoundDigits),
	)

	broadcaster := ws.NewBroadcaster(ws.Config{Hz: cfg.Broadcast.Hz}, adapter, logger, metrics)
	store.Attach(broadcaster)

	if cfg.Ingest.LogPoses {
		store.Attach(pose.ObserverFunc(func(st pose.State) {
			logger.Debug("pose updated", zap.Int("known_landmarks", st.KnownCount()))
		}))
	}

	var runner *ingest.Runner
	if o.source != nil {
		runner = ingest.NewRunner(o.source, engine, store, logger, cfg.Ingest.MaxFailures)
	}

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(monitoring.Middleware(metrics))
	corsCfg := middleware.DefaultCORSConfig()
	if len(cfg.Server.CORSOrigins) > 0 {
		corsCfg.AllowOrigins = cfg.Server.CORSOrigins
	}
	router.Use(middleware.CORS(corsCfg))
	if cfg.RateLimit.Enabled {
		router.Use(middleware.RateLimit(middleware.RateLimitConfig{
			RequestsPerSecond: cfg.RateLimit.RequestsPerSecond,
			Burst:             cfg.RateLimit.Burst,
		}))
	}

	handlers := apihttp.NewHandlers(engine, store, broadcaster, logger, metrics)

	router.GET("/", handlers.Root)
	router.GET("/health", handlers.Health)
	router.GET("/pose", handlers.GetPose)
	router.POST("/frames", handlers.IngestFrame)
	router.GET("/stream", broadcaster.HandleConnection)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	return &Server{
		config:      cfg,
		logger:      logger,
		metrics:     metrics,
		engine:      engine,
		store:       store,
		broadcaster: broadcaster,
		runner:      runner,
		router:      router,
		http: &nethttp.Server{
			Addr:    cfg.Server.Host + ":" + cfg.Server.Port,
			Handler: router,
		},
		ready: make(chan struct{}),
	}, nil
}

// Engine exposes the merge engine, mainly for embedding and tests.
func (s *Server) Engine() *pose.Engine { return s.engine }

// Store exposes the observable pose store for additional local observers.
func (s *Server) Store() *pose.Store { return s.store }

// Ready returns a channel closed once the HTTP listener is bound.
func (s *Server) Ready() <-chan struct{} { return s.ready }

// Addr returns the bound listen address, or "" before Ready.
func (s *Server) Addr() string {
	addr, _ := s.addr.Load().(string)
	return addr
}

// Run starts the broadcast loop, the optional producer loop, and the HTTP
// server, and blocks until ctx is cancelled or the HTTP server fails.
// Shutdown is coordinated top-down: no side keeps running once the other
// has been told to stop.
func (s *Server) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	broadcastDone := make(chan error, 1)
	go func() { broadcastDone <- s.broadcaster.Run(runCtx) }()

	if s.runner != nil {
		s.runner.Start(runCtx)
	}

	ln, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		cancel()
		<-broadcastDone
		return fmt.Errorf("failed to listen on %s: %w", s.http.Addr, err)
	}
	s.addr.Store(ln.Addr().String())
	close(s.ready)

	httpErr := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", ln.Addr().String()))
		if err := s.http.Serve(ln); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			httpErr <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		s.logger.Info("shutdown requested")
	case runErr = <-httpErr:
		s.logger.Error("http server failed", zap.Error(runErr))
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), httpShutdownTimeout)
	defer shutdownCancel()
	if err := s.http.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("http shutdown incomplete", zap.Error(err))
	}

	if s.runner != nil {
		if err := s.runner.Stop(producerJoinTimeout); err != nil && !errors.Is(err, ingest.ErrStopTimeout) {
			s.logger.Warn("producer loop ended with error", zap.Error(err))
		} else if errors.Is(err, ingest.ErrStopTimeout) {
			s.logger.Warn("producer loop still blocked in frame acquisition at shutdown")
		}
	}

	<-broadcastDone
	s.logger.Sync()
	return runErr
}
