// Package server exposes the health endpoint for the job runner.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/videditor/jobrunner/errors"
)

// WorkerStats reports queue worker state for the health payload.
type WorkerStats struct {
	Concurrency int `json:"concurrency"`
	ActiveJobs  int `json:"activeJobs"`
}

// StatsFunc supplies current worker stats. Called per request.
type StatsFunc func() WorkerStats

type healthResponse struct {
	Status    string      `json:"status"`
	Timestamp string      `json:"timestamp"`
	Worker    WorkerStats `json:"worker"`
}

// Server is the HTTP health server. It carries no job-processing routes;
// orchestrators probe GET /healthz for liveness.
type Server struct {
	httpServer *http.Server
	logger     *zap.SugaredLogger
	stats      StatsFunc
}

// New builds a server listening on the given port.
func New(port int, stats StatsFunc, logger *zap.SugaredLogger) *Server {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	s := &Server{
		logger: logger,
		stats:  stats,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      mux,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s
}

// Start begins serving in the calling goroutine and blocks until shutdown.
// A clean shutdown returns nil.
func (s *Server) Start() error {
	s.logger.Infow("Health server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "health server failed")
	}
	return nil
}

// Shutdown stops the server, waiting for in-flight requests up to the
// context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	resp := healthResponse{
		Status:    "ok",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if s.stats != nil {
		resp.Worker = s.stats()
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Warnw("Failed to write health response", "error", err)
	}
}
