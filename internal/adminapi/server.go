package adminapi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/mentionflow/harness/internal/adminapi/keystore"
	"github.com/mentionflow/harness/internal/adminapi/middleware"
	"github.com/mentionflow/harness/internal/worker"
)

// QueueStore is the subset of the Queue Store the admin API depends on:
// worker.Store for the sweep endpoint, plus Depth/HealthCheck for stats and
// readiness. *queue.PostgresStore satisfies this directly.
type QueueStore interface {
	worker.Store
	Depth(ctx context.Context) (int, error)
	HealthCheck(ctx context.Context) error
}

// Server is the operator-facing admin HTTP server: health checks, queue
// depth/sweep stats, and an out-of-band sweep trigger. It runs as one
// sibling of the harness's errgroup, not as a standalone process, so
// lifecycle is Start(ctx), which shuts the server down itself once ctx is
// cancelled, rather than the teacher's signal-handling Start.
type Server struct {
	httpServer  *http.Server
	logger      *slog.Logger
	config      *ServerConfig
	startTime   time.Time
	queueStore  QueueStore
	keyStore    keystore.Store
	maxAttempts int
	maxAge      time.Duration
}

// NewServer creates the admin HTTP server instance with structured logging
// and the middleware stack applied.
//
// Parameters:
//   - cfg: pure server configuration (host, port, timeouts, CORS)
//   - queueStore: the queue store the stats/sweep endpoints report on and
//     act on (required)
//   - keyStore: operator API key store (nil disables authentication, for
//     local development only)
//   - limiter: rate limiter (nil disables rate limiting)
//   - maxAttempts, maxAge: sweep tunables used by POST /admin/sweep
func NewServer(
	cfg *ServerConfig,
	queueStore QueueStore,
	keyStore keystore.Store,
	limiter middleware.RateLimiter,
	maxAttempts int,
	maxAge time.Duration,
) *Server {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))

	if queueStore == nil {
		logger.Error("queue store is required - cannot start admin server without it")
		panic("adminapi: queueStore cannot be nil - this indicates a configuration error")
	}

	mux := http.NewServeMux()

	server := &Server{
		logger:      logger,
		config:      cfg,
		queueStore:  queueStore,
		keyStore:    keyStore,
		maxAttempts: maxAttempts,
		maxAge:      maxAge,
	}

	server.setupRoutes(mux)

	if keyStore != nil {
		logger.Info("operator key authentication enabled")
	} else {
		logger.Warn("keystore not configured - admin endpoints are unauthenticated")
	}

	if limiter != nil {
		logger.Info("admin rate limiting enabled")
	} else {
		logger.Warn("rate limiter not configured - admin rate limiting disabled")
	}

	handler := middleware.Apply(mux,
		middleware.WithCorrelationID(),
		middleware.WithRecovery(logger),
		middleware.WithAuth(keyStore, logger),
		middleware.WithRateLimit(limiter, logger),
		middleware.WithRequestLogger(logger),
		middleware.WithCORS(cfg.ToCORSConfig(), logger),
	)

	server.httpServer = &http.Server{
		Addr:         cfg.Address(),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return server
}

// Start validates configuration and serves until ctx is cancelled, at which
// point it shuts down gracefully within config.ShutdownTimeout and returns
// nil. Callers run it as one sibling of an errgroup alongside the worker
// cohort and ingress adapters.
func (s *Server) Start(ctx context.Context) error {
	if err := s.config.Validate(); err != nil {
		return fmt.Errorf("invalid admin server configuration: %w", err)
	}

	s.startTime = time.Now()

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("starting admin API server",
			slog.String("address", s.config.Address()),
			slog.Duration("read_timeout", s.config.ReadTimeout),
			slog.Duration("write_timeout", s.config.WriteTimeout),
		)

		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- fmt.Errorf("admin server failed to start: %w", err)
		}
	}()

	select {
	case err := <-serverErrors:
		return err
	case <-ctx.Done():
		return s.shutdown()
	}
}

// shutdown gracefully shuts down the HTTP server within ShutdownTimeout.
func (s *Server) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
	defer cancel()

	s.logger.Info("shutting down admin API server", slog.Duration("shutdown_timeout", s.config.ShutdownTimeout))

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("admin server shutdown failed: %w", err)
	}

	s.logger.Info("admin API server shutdown completed")

	return nil
}
