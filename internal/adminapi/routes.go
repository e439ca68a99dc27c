package adminapi

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/mentionflow/harness/internal/adminapi/middleware"
	"github.com/mentionflow/harness/internal/worker"
)

func (s *Server) setupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /readyz", s.handleReadyz)
	mux.HandleFunc("GET /admin/stats", s.handleStats)
	mux.HandleFunc("POST /admin/sweep", s.handleSweep)
}

// handleHealthz reports liveness unconditionally: if the process can answer,
// it is alive. It does not touch the database.
func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleReadyz reports readiness: the queue store must answer a health check
// within a short timeout.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := s.queueStore.HealthCheck(ctx); err != nil {
		s.logger.Warn("readiness check failed", slog.Any("error", err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})

		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type statsResponse struct {
	QueueDepth   int    `json:"queueDepth"`
	UptimeSecond int64  `json:"uptimeSeconds"`
	MaxAttempts  int    `json:"maxAttempts"`
	MaxAgeHuman  string `json:"maxAge"`
}

// handleStats reports queue depth and the sweep tunables in effect. It is
// authenticated the same as every other admin route.
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	depth, err := s.queueStore.Depth(r.Context())
	if err != nil {
		s.logger.Error("stats: queue depth query failed", slog.Any("error", err))
		s.writeError(w, r, http.StatusInternalServerError, "failed to read queue depth")

		return
	}

	writeJSON(w, http.StatusOK, statsResponse{
		QueueDepth:   depth,
		UptimeSecond: int64(time.Since(s.startTime).Seconds()),
		MaxAttempts:  s.maxAttempts,
		MaxAgeHuman:  s.maxAge.String(),
	})
}

type sweepResponse struct {
	Archived int `json:"archived"`
}

// handleSweep triggers an out-of-band sweep, the same operation a worker
// runs on its own timeout wakeup, without waiting for one.
func (s *Server) handleSweep(w http.ResponseWriter, r *http.Request) {
	archived, err := worker.Sweep(r.Context(), s.queueStore, s.maxAttempts, s.maxAge)
	if err != nil {
		s.logger.Error("admin sweep failed", slog.Any("error", err))
		s.writeError(w, r, http.StatusInternalServerError, "sweep failed")

		return
	}

	s.logger.Info("admin-triggered sweep completed", slog.Int("archived", archived))

	writeJSON(w, http.StatusOK, sweepResponse{Archived: archived})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, detail string) {
	correlationID := middleware.GetCorrelationID(r.Context())

	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":          "https://mentionflow.dev/problems/" + http.StatusText(status),
		"title":         http.StatusText(status),
		"status":        status,
		"detail":        detail,
		"instance":      r.URL.Path,
		"correlationId": correlationID,
	})
}
