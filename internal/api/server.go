package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/palmgrid/orvibo-core/internal/bridges/orvibo"
	"github.com/palmgrid/orvibo-core/internal/infrastructure/config"
	"github.com/palmgrid/orvibo-core/internal/infrastructure/database"
	"github.com/palmgrid/orvibo-core/internal/infrastructure/logging"
	"github.com/palmgrid/orvibo-core/internal/infrastructure/mqtt"
	"github.com/palmgrid/orvibo-core/internal/signal"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// EventRecorder persists signal activity for later analysis. The InfluxDB
// client satisfies this; writes are asynchronous and must not block.
type EventRecorder interface {
	WriteSignalEvent(event, label, deviceAddr string)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config     config.APIConfig
	WS         config.WebSocketConfig
	Security   config.SecurityConfig
	Logger     *logging.Logger
	Signals    signal.Repository
	Controller Controller
	MQTT       *mqtt.Client  // optional: event publication disabled when nil
	DB         *database.DB  // optional: pool stats omitted from metrics when nil
	Events     EventRecorder // optional: signal events dropped when nil
	Stats      *orvibo.Stats
	Version    string
}

// Server is the HTTP API server for Orvibo Core.
//
// It manages the HTTP listener, routes, middleware, and WebSocket hub.
// The server is created with New() and started with Start().
type Server struct {
	cfg        config.APIConfig
	wsCfg      config.WebSocketConfig
	secCfg     config.SecurityConfig
	logger     *logging.Logger
	signals    signal.Repository
	controller Controller
	mqtt       *mqtt.Client
	db         *database.DB
	events     EventRecorder
	stats      *orvibo.Stats
	version    string
	startTime  time.Time
	server     *http.Server
	hub        *Hub
	cancel     context.CancelFunc // cancels background goroutines on Close()
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Signals == nil {
		return nil, fmt.Errorf("signal repository is required")
	}
	if deps.Controller == nil {
		return nil, fmt.Errorf("controller is required")
	}
	// MQTT is optional: REST and WebSocket still function without a broker.

	return &Server{
		cfg:        deps.Config,
		wsCfg:      deps.WS,
		secCfg:     deps.Security,
		logger:     deps.Logger,
		signals:    deps.Signals,
		controller: deps.Controller,
		mqtt:       deps.MQTT,
		db:         deps.DB,
		events:     deps.Events,
		stats:      deps.Stats,
		version:    deps.Version,
		startTime:  time.Now(),
	}, nil
}

// Start begins listening for HTTP connections.
//
// It builds the router, starts the WebSocket hub, subscribes to the MQTT
// command topic when a broker is connected, and launches the HTTP listener
// in a background goroutine. The server is stopped with Close().
func (s *Server) Start(ctx context.Context) error {
	// Internal context so Close() can stop background goroutines
	// independently of the parent context.
	var srvCtx context.Context
	srvCtx, s.cancel = context.WithCancel(ctx)

	s.hub = NewHub(s.wsCfg, s.logger)
	go s.hub.Run(srvCtx)

	if err := s.bindCommands(); err != nil {
		return fmt.Errorf("binding command topics: %w", err)
	}

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		s.logger.Info("API server starting", "address", s.server.Addr)
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	// Stop background goroutines (hub).
	if s.cancel != nil {
		s.cancel()
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}

// HealthCheck verifies the API server is running.
func (s *Server) HealthCheck(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("api health check: %w", ctx.Err())
	default:
	}

	if s.server == nil {
		return fmt.Errorf("api server not started")
	}

	return nil
}
