package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mentionflow/harness/internal/adminapi/keystore"
)

func TestExtractAPIKey_XAPIKeyHeaderTakesPrecedence(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	req.Header.Set("X-Api-Key", "primary")
	req.Header.Set("Authorization", "Bearer secondary")

	key, found := extractAPIKey(req)
	if !found || key != "primary" {
		t.Fatalf("extractAPIKey() = (%q, %v), want (%q, true)", key, found, "primary")
	}
}

func TestExtractAPIKey_BearerFallback(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	req.Header.Set("Authorization", "Bearer fallback-key")

	key, found := extractAPIKey(req)
	if !found || key != "fallback-key" {
		t.Fatalf("extractAPIKey() = (%q, %v), want (%q, true)", key, found, "fallback-key")
	}
}

func TestExtractAPIKey_RejectsHeaderInjection(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	req.Header.Set("X-Api-Key", "evil\r\nX-Injected: true")

	if _, found := extractAPIKey(req); found {
		t.Fatal("extractAPIKey should reject keys containing CR/LF")
	}
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAuthenticate_MissingKeyReturns401(t *testing.T) {
	store := keystore.NewMemoryStore()
	handler := Authenticate(store, newTestLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
}

func TestAuthenticate_ValidKeyEnrichesContext(t *testing.T) {
	store := keystore.NewMemoryStore()

	plaintext, err := keystore.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	if _, err := store.Add(context.Background(), "ci-bot", plaintext); err != nil {
		t.Fatalf("Add: %v", err)
	}

	var captured OperatorContext

	var ok bool

	handler := Authenticate(store, newTestLogger())(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		captured, ok = GetOperatorContext(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	req.Header.Set("X-Api-Key", plaintext)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !ok {
		t.Fatal("expected OperatorContext to be set after successful authentication")
	}

	if captured.Label != "ci-bot" {
		t.Errorf("OperatorContext.Label = %q, want %q", captured.Label, "ci-bot")
	}
}

func TestAuthenticate_RevokedKeyReturns403(t *testing.T) {
	store := keystore.NewMemoryStore()

	plaintext, err := keystore.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	added, err := store.Add(context.Background(), "ci-bot", plaintext)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}

	if err := store.Revoke(context.Background(), added.ID); err != nil {
		t.Fatalf("Revoke: %v", err)
	}

	handler := Authenticate(store, newTestLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	req.Header.Set("X-Api-Key", plaintext)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusForbidden)
	}
}
