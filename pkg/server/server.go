// Package server exposes the mirror over HTTP: a WebSocket per UI channel
// plus the launcher API used to create sessions.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/odvcencio/respview/pkg/bus"
	"github.com/odvcencio/respview/pkg/devices"
	"github.com/odvcencio/respview/pkg/mirror"
	"github.com/odvcencio/respview/pkg/observability"
	"github.com/odvcencio/respview/pkg/storage"
)

const (
	maxMirrorClients           = 64
	maxMirrorClientsPerSession = 1
)

// Config configures the HTTP surface.
type Config struct {
	BindAddress    string
	ChannelPrefix  string
	AllowedOrigins []string
	PingInterval   time.Duration
	PingTimeout    time.Duration
	InputRate      rate.Limit
	InputBurst     int
	SubjectPrefix  string
	MaxClients     int
	// MaxSessionClients caps channels per session id; negative is unlimited.
	MaxSessionClients int
}

// Deps are the services the handlers use. Store, Ephemeral and Bus are
// optional.
type Deps struct {
	Registry  *mirror.Registry
	Catalog   *devices.Catalog
	Store     *storage.Store
	Ephemeral *storage.Ephemeral
	Bus       bus.MessageBus
	Logger    *observability.Logger
	Now       func() time.Time
}

// Server serves the mirror channels and the launcher API.
type Server struct {
	cfg        Config
	registry   *mirror.Registry
	catalog    *devices.Catalog
	store      *storage.Store
	ephemeral  *storage.Ephemeral
	bus        bus.MessageBus
	log        *observability.Logger
	now        func() time.Time
	conns      *connLimiter
	httpServer *http.Server
}

// New validates deps and builds a server.
func New(cfg Config, deps Deps) (*Server, error) {
	if deps.Registry == nil {
		return nil, errors.New("server requires a mirror registry")
	}
	if deps.Catalog == nil {
		return nil, errors.New("server requires a device catalog")
	}
	if strings.TrimSpace(cfg.ChannelPrefix) == "" {
		cfg.ChannelPrefix = mirror.DefaultChannelPrefix
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = wsPingInterval
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = wsPingTimeout
	}
	if cfg.MaxClients == 0 {
		cfg.MaxClients = maxMirrorClients
	}
	if cfg.MaxSessionClients == 0 {
		cfg.MaxSessionClients = maxMirrorClientsPerSession
	}
	log := deps.Logger
	if log == nil {
		log = observability.NewNop()
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	ephemeral := deps.Ephemeral
	if ephemeral == nil {
		ephemeral = storage.NewEphemeral(0)
	}
	return &Server{
		cfg:       cfg,
		registry:  deps.Registry,
		catalog:   deps.Catalog,
		store:     deps.Store,
		ephemeral: ephemeral,
		bus:       deps.Bus,
		log:       log.Component("server"),
		now:       now,
		conns:     newConnLimiter(cfg.MaxClients, cfg.MaxSessionClients),
	}, nil
}

// Handler builds the route tree.
func (s *Server) Handler() http.Handler {
	router := chi.NewRouter()
	router.Use(s.corsMiddleware)
	router.Use(s.securityHeadersMiddleware)

	router.Get("/healthz", s.handleHealthz)
	router.Get("/metrics", s.handleMetrics)
	router.Get("/ws/mirror/{channel}", s.handleMirror)

	router.Route("/api/v1", func(r chi.Router) {
		r.Get("/devices", s.handleListDevices)
		r.Get("/preferences", s.handlePreferences)
		r.Post("/sessions", s.handleCreateSession)
		r.Get("/sessions/{sessionID}", s.handleGetSession)
		r.Get("/mirror/sessions", s.handleMirrorSessions)
		r.Get("/canvas-target", s.handleGetCanvasTarget)
		r.Put("/canvas-target", s.handlePutCanvasTarget)
	})
	return router
}

// Start runs the HTTP server until the context is cancelled, then stops
// every live session.
func (s *Server) Start(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:              s.cfg.BindAddress,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       2 * time.Minute,
		MaxHeaderBytes:    1 << 20,
	}

	serverErr := make(chan error, 1)
	go func() {
		s.log.Info("serving mirror", "addr", s.cfg.BindAddress)
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := s.httpServer.Shutdown(shutdownCtx)
		if cerr := s.registry.Close(shutdownCtx); cerr != nil {
			err = errors.Join(err, fmt.Errorf("stop sessions: %w", cerr))
		}
		return err
	case err := <-serverErr:
		return err
	}
}
