package adminapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mentionflow/harness/internal/queue"
)

type fakeQueueStore struct {
	depth        int
	depthErr     error
	healthErr    error
	sweepCalls   int
	sweepArchive int
	sweepErr     error
}

func (f *fakeQueueStore) Claim(context.Context, int, time.Duration) (*queue.Event, error) {
	return nil, nil
}

func (f *fakeQueueStore) Complete(context.Context, queue.EventID, bool) error { return nil }

func (f *fakeQueueStore) Sweep(context.Context, int, time.Duration) (int, error) {
	f.sweepCalls++

	return f.sweepArchive, f.sweepErr
}

func (f *fakeQueueStore) Depth(context.Context) (int, error) { return f.depth, f.depthErr }

func (f *fakeQueueStore) HealthCheck(context.Context) error { return f.healthErr }

func newTestServer(store *fakeQueueStore) *Server {
	cfg := LoadServerConfig()

	return NewServer(&cfg, store, nil, nil, 3, 60*time.Minute)
}

func TestHandleHealthz_AlwaysOK(t *testing.T) {
	srv := newTestServer(&fakeQueueStore{})

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestHandleReadyz_ReportsStoreHealth(t *testing.T) {
	srv := newTestServer(&fakeQueueStore{healthErr: errors.New("db down")})

	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestHandleStats_ReportsQueueDepth(t *testing.T) {
	srv := newTestServer(&fakeQueueStore{depth: 42})

	req := httptest.NewRequest(http.MethodGet, "/admin/stats", nil)
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var body statsResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if body.QueueDepth != 42 {
		t.Errorf("QueueDepth = %d, want 42", body.QueueDepth)
	}
}

func TestHandleSweep_TriggersStoreSweep(t *testing.T) {
	store := &fakeQueueStore{sweepArchive: 7}
	srv := newTestServer(store)

	req := httptest.NewRequest(http.MethodPost, "/admin/sweep", nil)
	rec := httptest.NewRecorder()
	srv.httpServer.Handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	if store.sweepCalls != 1 {
		t.Fatalf("sweepCalls = %d, want 1", store.sweepCalls)
	}

	var body sweepResponse
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if body.Archived != 7 {
		t.Errorf("Archived = %d, want 7", body.Archived)
	}
}
