package middleware

import (
	"log/slog"
	"net/http"

	"github.com/mentionflow/harness/internal/adminapi/keystore"
)

// Option is a function that applies middleware to a handler.
type Option func(http.Handler) http.Handler

// Apply applies a chain of middleware options to a base handler. Options
// run on a request in the order provided: the last option wraps the handler
// first and the first option wraps last, so it is the outermost layer.
//
// Example:
//
//	handler := middleware.Apply(mux,
//	    middleware.WithCorrelationID(),
//	    middleware.WithRecovery(logger),
//	    middleware.WithAuth(store, logger),
//	    middleware.WithRateLimit(limiter, logger),
//	    middleware.WithRequestLogger(logger),
//	    middleware.WithCORS(corsConfig, logger),
//	)
func Apply(handler http.Handler, options ...Option) http.Handler {
	for i := len(options) - 1; i >= 0; i-- {
		handler = options[i](handler)
	}

	return handler
}

// WithCorrelationID returns an option that adds correlation ID middleware.
func WithCorrelationID() Option {
	return func(next http.Handler) http.Handler {
		return CorrelationID()(next)
	}
}

// WithRecovery returns an option that adds panic recovery middleware.
func WithRecovery(logger *slog.Logger) Option {
	return func(next http.Handler) http.Handler {
		return Recovery(logger)(next)
	}
}

// WithAuth returns an option that adds operator key authentication
// middleware. If store is nil, this option is skipped (no-op), which is only
// appropriate for local development.
func WithAuth(store keystore.Store, logger *slog.Logger) Option {
	if store == nil {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return func(next http.Handler) http.Handler {
		return Authenticate(store, logger)(next)
	}
}

// WithRateLimit returns an option that adds rate limiting middleware. If
// limiter is nil, this option is skipped (no-op).
func WithRateLimit(limiter RateLimiter, logger *slog.Logger) Option {
	if limiter == nil {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	return func(next http.Handler) http.Handler {
		return RateLimit(limiter, logger)(next)
	}
}

// WithRequestLogger returns an option that adds request logging middleware.
func WithRequestLogger(logger *slog.Logger) Option {
	return func(next http.Handler) http.Handler {
		return RequestLogger(logger)(next)
	}
}

// WithCORS returns an option that adds CORS middleware, logging any Origin
// outside the allow-list via logger.
func WithCORS(config CORSConfig, logger *slog.Logger) Option {
	return func(next http.Handler) http.Handler {
		return CORS(config, logger)(next)
	}
}
