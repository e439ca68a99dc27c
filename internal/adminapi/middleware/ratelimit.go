package middleware

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/mentionflow/harness/internal/ingress/admission"
)

// RateLimiter is the admin API's rate limiting contract. It is satisfied
// directly by admission.Limiter, so the same token-bucket limiter guarding
// mention ingress can also guard the admin surface.
type RateLimiter = admission.Limiter

// RateLimit returns a middleware that enforces rate limits on incoming admin
// requests. Authenticated requests are keyed by operator key ID; requests
// with no operator context pass an empty source ID, which the limiter
// routes to its unauthenticated tier.
//
// When a request exceeds the rate limit, the middleware returns a 429 (Too
// Many Requests) response in RFC 7807 format.
func RateLimit(limiter RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sourceID := ""
			if opCtx, ok := GetOperatorContext(r.Context()); ok {
				sourceID = strconv.FormatInt(opCtx.KeyID, 10)
			}

			if !limiter.Allow(sourceID) {
				correlationID := GetCorrelationID(r.Context())
				detail := "rate limit exceeded, retry after some time"

				if err := writeProblemDetail(w, r, http.StatusTooManyRequests,
					"Too Many Requests", detail, correlationID); err != nil {
					logger.Error("failed to write rate limit response",
						slog.String("correlation_id", correlationID),
						slog.String("path", r.URL.Path),
						slog.String("error", err.Error()),
					)

					http.Error(w, detail, http.StatusTooManyRequests)
				}

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
