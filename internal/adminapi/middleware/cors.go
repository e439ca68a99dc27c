package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig is implemented by adminapi.CORSConfig to avoid a dependency from
// this package back onto the adminapi package.
type CORSConfig interface {
	GetAllowedOrigins() []string
	GetAllowedMethods() []string
	GetAllowedHeaders() []string
	GetMaxAge() int
}

// CORS handles cross-origin requests against the admin surface. Unlike a
// public API, the admin surface has no anonymous browser clients: an Origin
// outside the configured allow-list is logged rather than silently dropped,
// since it usually means an operator dashboard's origin was never added to
// MENTIONFLOW_ADMIN_CORS_ALLOWED_ORIGINS.
func CORS(config CORSConfig, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			allowed := setCORSOriginHeader(w, origin, config.GetAllowedOrigins())
			if origin != "" && !allowed && logger != nil {
				logger.Warn("admin CORS origin not allow-listed",
					slog.String("origin", origin),
					slog.String("path", r.URL.Path),
				)
			}

			setCORSMethodsHeader(w, config.GetAllowedMethods())
			setCORSHeadersHeader(w, config.GetAllowedHeaders())
			setCORSMaxAgeHeader(w, config.GetMaxAge())

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// setCORSOriginHeader sets Access-Control-Allow-Origin when origin is
// allowed, and reports whether it was.
func setCORSOriginHeader(w http.ResponseWriter, origin string, allowedOrigins []string) bool {
	if len(allowedOrigins) == 0 {
		return false
	}

	if len(allowedOrigins) == 1 && allowedOrigins[0] == "*" {
		w.Header().Set("Access-Control-Allow-Origin", "*")

		return true
	}

	for _, allowedOrigin := range allowedOrigins {
		if origin == allowedOrigin {
			w.Header().Set("Access-Control-Allow-Origin", origin)

			return true
		}
	}

	return false
}

func setCORSMethodsHeader(w http.ResponseWriter, allowedMethods []string) {
	if len(allowedMethods) > 0 {
		w.Header().Set("Access-Control-Allow-Methods", strings.Join(allowedMethods, ", "))
	}
}

func setCORSHeadersHeader(w http.ResponseWriter, allowedHeaders []string) {
	if len(allowedHeaders) > 0 {
		w.Header().Set("Access-Control-Allow-Headers", strings.Join(allowedHeaders, ", "))
	}
}

func setCORSMaxAgeHeader(w http.ResponseWriter, maxAge int) {
	if maxAge > 0 {
		w.Header().Set("Access-Control-Max-Age", strconv.Itoa(maxAge))
	}
}
