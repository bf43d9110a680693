// Package httpapi is the service's HTTP surface: query staging, the SSE
// stream, cancellation, and the operational endpoints.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ansari-project/qiyas/internal/observability"
	"github.com/ansari-project/qiyas/internal/orchestrator"
	"github.com/ansari-project/qiyas/internal/sessions"
	"github.com/ansari-project/qiyas/internal/sse"
)

// Config wires a Server.
type Config struct {
	// Addr is the listen address, host:port.
	Addr string

	// AuthUsername and AuthPassword are the shared Basic credential. An
	// empty password disables auth entirely (dev only).
	AuthUsername string
	AuthPassword string

	// MaxMessageBytes caps a query message after trimming. Defaults to
	// 16 KiB.
	MaxMessageBytes int

	// ShutdownGrace bounds how long shutdown waits for cancelled
	// generations to commit. Defaults to 5 s.
	ShutdownGrace time.Duration

	Store        *sessions.Store
	Orchestrator *orchestrator.Orchestrator
	Emitter      *sse.Emitter

	// Logger receives structured diagnostics. If nil, slog.Default() is used.
	Logger *slog.Logger

	// Metrics may be nil; recording is then skipped.
	Metrics *observability.Metrics
}

// Server serves the comparison API over one http.Server.
type Server struct {
	cfg     Config
	store   *sessions.Store
	orch    *orchestrator.Orchestrator
	emitter *sse.Emitter
	logger  *slog.Logger
	metrics *observability.Metrics

	httpServer *http.Server

	// draining flips during shutdown; new queries and streams get 503.
	draining atomic.Bool
}

func NewServer(cfg Config) *Server {
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = 16 * 1024
	}
	if cfg.ShutdownGrace <= 0 {
		cfg.ShutdownGrace = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	s := &Server{
		cfg:     cfg,
		store:   cfg.Store,
		orch:    cfg.Orchestrator,
		emitter: cfg.Emitter,
		logger:  cfg.Logger,
		metrics: cfg.Metrics,
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/query", s.handleQuery)
	mux.HandleFunc("/api/stream/", s.handleStream)
	mux.HandleFunc("/api/cancel/", s.handleCancel)
	mux.HandleFunc("/api/models", s.handleModels)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/debug/memory", s.handleMemory)
	mux.Handle("/metrics", promhttp.Handler())
	return s.logging(s.auth(mux))
}

// Handler returns the fully assembled handler chain.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// Run serves until ctx is cancelled, then shuts down gracefully: new work
// is refused, active generations are cancelled and given ShutdownGrace to
// commit, then the listener closes.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("http listen: %w", err)
	}
	s.logger.Info("http server listening", "addr", ln.Addr().String())

	serveErr := make(chan error, 1)
	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}
	return s.shutdown()
}

func (s *Server) shutdown() error {
	s.draining.Store(true)
	if n := s.store.CancelGenerations(); n > 0 {
		s.logger.Info("cancelled active generations for shutdown", "count", n)
	}

	// Give the cancelled generations a window to commit their partial
	// turns before the connections are torn down.
	deadline := time.Now().Add(s.cfg.ShutdownGrace)
	for s.store.BusyCount() > 0 && time.Now().Before(deadline) {
		time.Sleep(50 * time.Millisecond)
	}
	if left := s.store.BusyCount(); left > 0 {
		s.logger.Warn("generations still streaming at shutdown", "count", left)
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownGrace)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	s.logger.Info("http server stopped")
	return nil
}
