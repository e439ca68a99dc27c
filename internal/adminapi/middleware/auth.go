package middleware

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mentionflow/harness/internal/adminapi/keystore"
)

// AuthError represents an authentication error with a specific type.
type AuthError struct {
	Type    error
	Message string
}

// Authentication error types for granular error handling.
var (
	// ErrMissingAPIKey is returned when no operator key is provided in headers.
	ErrMissingAPIKey = errors.New("missing operator key")
	// ErrInvalidAPIKey is returned for invalid key format or not found.
	// Generic error prevents enumeration attacks.
	ErrInvalidAPIKey = errors.New("invalid operator key")
	// ErrAPIKeyRevoked is returned when the operator key has been revoked.
	ErrAPIKeyRevoked = errors.New("operator key revoked")
)

// extractAPIKey extracts the operator key from request headers. It checks
// X-Api-Key first (primary), then falls back to Authorization: Bearer.
func extractAPIKey(r *http.Request) (string, bool) {
	if apiKey := r.Header.Get("X-Api-Key"); apiKey != "" {
		return validateAPIKey(apiKey)
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return validateAPIKey(strings.TrimPrefix(authHeader, "Bearer "))
	}

	return "", false
}

// validateAPIKey rejects header-injection attempts and trims whitespace.
func validateAPIKey(key string) (string, bool) {
	if strings.ContainsAny(key, "\r\n") {
		return "", false
	}

	key = strings.TrimSpace(key)
	if key == "" {
		return "", false
	}

	return key, true
}

// Error implements the error interface for AuthError.
func (e *AuthError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("authentication failed: %s: %s", e.Type.Error(), e.Message)
	}

	return "authentication failed: " + e.Type.Error()
}

// Unwrap returns the wrapped error type, enabling errors.Is()/errors.As().
func (e *AuthError) Unwrap() error {
	return e.Type
}

// dummyBcryptHash is a well-formed bcrypt hash at the default cost, so the
// dummy comparison below does the same work as a real one.
var dummyBcryptHash, _ = bcrypt.GenerateFromPassword([]byte("dummy"), bcrypt.DefaultCost)

// performDummyBcryptComparison maintains constant time when the key format
// is invalid, so malformed and valid-but-wrong keys take the same latency.
func performDummyBcryptComparison() {
	_ = bcrypt.CompareHashAndPassword(dummyBcryptHash, []byte("dummy"))
}

// authenticateRequest validates an operator key against the store.
func authenticateRequest(ctx context.Context, store keystore.Store, apiKey string) (*keystore.OperatorKey, error) {
	parsedKey, err := keystore.ParseKey(apiKey)
	if err != nil {
		performDummyBcryptComparison()

		return nil, &AuthError{Type: ErrInvalidAPIKey, Message: "invalid or missing operator key"}
	}

	foundKey, exists := store.FindByKey(ctx, parsedKey)
	if !exists {
		performDummyBcryptComparison()

		return nil, &AuthError{Type: ErrInvalidAPIKey, Message: "invalid or missing operator key"}
	}

	if !foundKey.Active() {
		return nil, &AuthError{Type: ErrAPIKeyRevoked, Message: "operator key has been revoked"}
	}

	return foundKey, nil
}

// Authenticate creates an authentication middleware that validates operator
// keys and enriches the request context with OperatorContext.
func Authenticate(store keystore.Store, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authStart := time.Now()

			apiKey, found := extractAPIKey(r)
			if !found {
				writeAuthError(w, r, logger, &AuthError{Type: ErrMissingAPIKey, Message: "missing operator key"})

				return
			}

			authenticated, err := authenticateRequest(r.Context(), store, apiKey)
			if err != nil {
				writeAuthError(w, r, logger, err)

				return
			}

			opCtx := OperatorContext{
				KeyID:    authenticated.ID,
				Label:    authenticated.Label,
				AuthTime: time.Now(),
			}
			ctx := SetOperatorContext(r.Context(), opCtx)

			logger.Info("operator key authenticated",
				slog.Int64("key_id", opCtx.KeyID),
				slog.String("label", opCtx.Label),
				slog.Duration("auth_latency", time.Since(authStart)),
				slog.String("correlation_id", GetCorrelationID(r.Context())),
				slog.String("endpoint", r.URL.Path),
			)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// writeAuthError writes an RFC 7807 compliant error response for
// authentication failures and logs the failure.
func writeAuthError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	correlationID := GetCorrelationID(r.Context())

	statusCode := http.StatusUnauthorized

	var authErr *AuthError
	if errors.As(err, &authErr) && errors.Is(authErr.Type, ErrAPIKeyRevoked) {
		statusCode = http.StatusForbidden
	}

	logger.Warn("admin authentication failed",
		slog.String("reason", err.Error()),
		slog.String("correlation_id", correlationID),
		slog.String("endpoint", r.URL.Path),
		slog.String("remote_addr", r.RemoteAddr),
	)

	title := "Unauthorized"
	if statusCode == http.StatusForbidden {
		title = "Forbidden"
	}

	if werr := writeProblemDetail(w, r, statusCode, title, err.Error(), correlationID); werr != nil {
		logger.Error("failed to encode authentication error response",
			slog.String("correlation_id", correlationID),
			slog.String("path", r.URL.Path),
			slog.Any("encode_error", werr),
		)
	}
}
