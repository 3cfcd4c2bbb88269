// Package api wires the HTTP surface: the webhook endpoint, message and
// stats queries, health checks, metrics and the live activity stream.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/mattjoyce/hookbox/internal/auth"
	"github.com/mattjoyce/hookbox/internal/events"
	hlog "github.com/mattjoyce/hookbox/internal/log"
	"github.com/mattjoyce/hookbox/internal/message"
	"github.com/mattjoyce/hookbox/internal/metrics"
)

// ErrNotReady is reported by the readiness check when the webhook secret is
// missing or the store does not answer.
var ErrNotReady = errors.New("not ready")

// QueryStore is the read side of the message store.
type QueryStore interface {
	List(ctx context.Context, f message.ListFilter) (message.Page, error)
	Stats(ctx context.Context) (message.Stats, error)
	HealthCheck(ctx context.Context) bool
}

// Config holds API server configuration
type Config struct {
	Listen string
	// SecretConfigured gates readiness; webhooks cannot be verified without it.
	SecretConfigured bool
	ShutdownTimeout  time.Duration
}

// Server represents the HTTP API server
type Server struct {
	config    Config
	store     QueryStore
	webhook   http.Handler
	metrics   *metrics.Collector
	events    *events.Hub
	auth      *auth.Authenticator
	logger    *slog.Logger
	server    *http.Server
	startedAt time.Time

	// streamsDone is closed when shutdown begins so long-lived SSE
	// handlers return; Shutdown does not cancel request contexts.
	streamsDone chan struct{}
	stopStreams func()

	mu   sync.Mutex
	addr net.Addr
}

// New creates a new API server instance. events and authn may be nil.
func New(config Config, store QueryStore, webhook http.Handler, collector *metrics.Collector, hub *events.Hub, authn *auth.Authenticator, logger *slog.Logger) *Server {
	if config.ShutdownTimeout <= 0 {
		config.ShutdownTimeout = 5 * time.Second
	}
	if collector == nil {
		collector = metrics.New()
	}
	if hub == nil {
		hub = events.NewHub(100)
	}
	if logger == nil {
		logger = slog.Default()
	}
	done := make(chan struct{})
	var once sync.Once
	return &Server{
		config:      config,
		store:       store,
		webhook:     webhook,
		metrics:     collector,
		events:      hub,
		auth:        authn,
		logger:      logger,
		startedAt:   time.Now(),
		streamsDone: done,
		stopStreams: func() { once.Do(func() { close(done) }) },
	}
}

// Start starts the HTTP server (blocking)
func (s *Server) Start(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              s.config.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	s.server.RegisterOnShutdown(s.stopStreams)

	ln, err := net.Listen("tcp", s.config.Listen)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", s.config.Listen, err)
	}
	s.mu.Lock()
	s.addr = ln.Addr()
	s.mu.Unlock()

	s.logger.Info("API server starting", "listen", ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("API server shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return ctx.Err()
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}
}

// Addr reports the bound listen address once Start is serving, or "".
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.addr == nil {
		return ""
	}
	return s.addr.String()
}

// Handler returns the fully wired router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(requestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Recoverer)

	r.Get("/", s.handleRoot)
	r.Get("/health/live", s.handleLive)
	r.Get("/health/ready", s.handleReady)
	r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	r.Get("/openapi.json", s.handleOpenAPI)
	r.Get("/docs/*", httpSwagger.Handler(httpSwagger.URL("/openapi.json")))

	if s.webhook != nil {
		r.Method(http.MethodPost, "/webhook", s.webhook)
	}

	r.Group(func(r chi.Router) {
		r.Use(s.auth.Require(auth.ScopeMessagesRead))
		r.Get("/messages", s.handleMessages)
		r.Get("/stats", s.handleStats)
		r.Get("/events", s.handleEvents)
	})

	return r
}

// requestID honours an inbound X-Request-ID and otherwise mints a UUID. The
// id is stored under chi's key so middleware.GetReqID works downstream.
func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(middleware.RequestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(middleware.RequestIDHeader, id)
		ctx := context.WithValue(r.Context(), middleware.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// loggingMiddleware emits exactly one line per request, enriched with
// whatever the handler annotated, and records the request metrics.
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ctx, ann := hlog.WithAnnotations(r.Context())
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		defer func() {
			elapsed := time.Since(start)
			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			path := routePattern(r)
			s.metrics.ObserveHTTP(path, status, elapsed)

			level := slog.LevelInfo
			switch {
			case status >= http.StatusInternalServerError:
				level = slog.LevelError
			case ann.Warn():
				level = slog.LevelWarn
			}

			attrs := []any{
				"request_id", middleware.GetReqID(ctx),
				"method", r.Method,
				"path", r.URL.Path,
				"route", path,
				"status", status,
				"latency_ms", float64(elapsed.Microseconds()) / 1000,
			}
			attrs = append(attrs, ann.Attrs()...)
			s.logger.Log(ctx, level, "http request", attrs...)
		}()

		next.ServeHTTP(ww, r.WithContext(ctx))
	})
}

// routePattern returns the matched chi pattern; raw paths would make the
// metrics label unbounded.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return "unmatched"
}
