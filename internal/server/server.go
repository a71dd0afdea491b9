package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/docgate/docgate/internal/config"
	apperrors "github.com/docgate/docgate/internal/errors"
	"github.com/docgate/docgate/internal/observability"
	"github.com/docgate/docgate/internal/server/handlers"
	servermw "github.com/docgate/docgate/internal/server/middleware"
)

// Options configures the relay server.
type Options struct {
	Server  config.ServerConfig
	Inbound config.InboundConfig

	// Submitter handles POST /v1/documents. Nil answers 503.
	Submitter handlers.DocumentSubmitter

	// Health defaults to the global manager.
	Health *handlers.HealthManager

	// AdminToken enables POST /admin/signal when non-empty.
	AdminToken string
}

// Server is the document relay HTTP server.
type Server struct {
	router  *chi.Mux
	mu      sync.Mutex
	server  *http.Server
	opts    Options
	inbound *servermw.InboundLimiter
	cancel  context.CancelFunc
}

// New builds the router and registers every route.
func New(opts Options) *Server {
	r := chi.NewRouter()

	r.Use(middleware.RealIP)
	r.Use(servermw.RequestID)
	r.Use(servermw.RequestMetrics)
	r.Use(servermw.Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewNotFoundError("The requested resource was not found"))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		HandleError(w, req, apperrors.NewMethodNotAllowedError("The requested method is not allowed for this resource"))
	})

	s := &Server{router: r, opts: opts}
	if opts.Inbound.Enabled {
		s.inbound = servermw.NewInboundLimiter(opts.Inbound.Rate, opts.Inbound.Burst)
	}

	handlers.SetHTTPErrorResponder(HandleError)
	s.registerRoutes()
	return s
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.opts.Server.Host, s.opts.Server.Port)
}

// Start listens on the configured address and serves until Shutdown.
func (s *Server) Start() error {
	listener, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return err
	}
	return s.Serve(listener)
}

// Serve accepts connections on l until Shutdown.
func (s *Server) Serve(l net.Listener) error {
	cfg := s.opts.Server
	httpServer := &http.Server{
		Handler:           s.router,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: 10 * time.Second,
		// Zero by default: a relay request can legitimately wait many
		// periods for quota.
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	janitorCtx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	s.server = httpServer
	s.cancel = cancel
	s.mu.Unlock()
	if s.inbound != nil {
		s.inbound.StartJanitor(janitorCtx, 2*time.Minute)
	}

	if logger := observability.ServerLogger; logger != nil {
		logger.Info("Starting HTTP server",
			zap.String("addr", l.Addr().String()),
			zap.Bool("inbound_limit", s.inbound != nil))
	}

	err := httpServer.Serve(l)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops accepting requests and waits for in-flight ones.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	httpServer, cancel := s.server, s.cancel
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if httpServer == nil {
		return nil
	}
	if logger := observability.ServerLogger; logger != nil {
		logger.Info("Shutting down HTTP server")
	}
	return httpServer.Shutdown(ctx)
}

// Handler exposes the underlying router for testing and instrumentation
func (s *Server) Handler() http.Handler {
	return s.router
}
