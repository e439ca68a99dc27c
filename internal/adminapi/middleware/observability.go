package middleware

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"time"
	"unsafe"
)

// An operator hitting /admin/sweep or /admin/stats needs to be able to find
// the matching log lines for one request across both the correlation-ID and
// request-logging concerns, so the two live together here rather than in
// separate files the way the teacher splits them.

const (
	correlationIDSize   = 8
	correlationIDLength = 16 // hex-encoded length of correlationIDSize bytes
)

type correlationIDKey struct{}

// CorrelationID stamps every admin request with an X-Correlation-ID, reusing
// the caller's header value if one was supplied so an operator's own
// request-tracing tool can thread its ID straight through.
func CorrelationID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			correlationID := r.Header.Get("X-Correlation-ID")
			if correlationID == "" {
				correlationID = generateCorrelationID()
			}

			w.Header().Set("X-Correlation-ID", correlationID)

			ctx := context.WithValue(r.Context(), correlationIDKey{}, correlationID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetCorrelationID extracts the correlation ID stamped by CorrelationID, or
// "unknown" if the middleware never ran.
func GetCorrelationID(ctx context.Context) string {
	if correlationID, ok := ctx.Value(correlationIDKey{}).(string); ok {
		return correlationID
	}

	return "unknown"
}

func generateCorrelationID() string {
	bytes := make([]byte, correlationIDSize)
	if _, err := rand.Read(bytes); err != nil {
		timestamp := time.Now().UnixNano()
		ptr := &timestamp
		//nolint:gosec // G103: pointer address used for entropy only on the crypto/rand failure path
		entropy := uintptr(unsafe.Pointer(ptr))

		combined := fmt.Sprintf("%x%x", timestamp, entropy)
		if len(combined) > correlationIDLength {
			return combined[:correlationIDLength]
		}

		return fmt.Sprintf("%-*s", correlationIDLength, combined)
	}

	return hex.EncodeToString(bytes)
}

// RequestLogger logs one pair of structured lines per admin request, tagged
// with the correlation ID CorrelationID stamped on the context, and the
// operator key label when Authenticate ran before it in the chain.
func RequestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			correlationID := GetCorrelationID(r.Context())

			attrs := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr),
				slog.String("correlation_id", correlationID),
			}
			if opCtx, ok := GetOperatorContext(r.Context()); ok {
				attrs = append(attrs, slog.String("operator", opCtx.Label))
			}

			logger.Info("admin HTTP request started", attrs...)

			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(rw, r)

			logger.Info("admin HTTP request completed",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status_code", rw.statusCode),
				slog.Duration("duration", time.Since(start)),
				slog.String("correlation_id", correlationID),
			)
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code a
// handler wrote, for RequestLogger's completion line.
type responseWriter struct {
	http.ResponseWriter

	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}
