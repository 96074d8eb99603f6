package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rj-04/mimotune/internal/config"
	"github.com/rj-04/mimotune/internal/fuzzy"
	"github.com/rj-04/mimotune/internal/store"
)

// maxIterations bounds the sweep length a single request may ask for.
const maxIterations = 1000

// Server runs sweep jobs against synthetic sessions over HTTP.
type Server struct {
	jobManager *JobManager
	cfg        *config.Config
	store      *store.FSStore // nil disables run persistence
	engine     *fuzzy.Engine
	metrics    *Metrics
	server     *http.Server
	workers    sync.WaitGroup
}

// NewServer creates a server using cfg for defaults and the synthetic model.
// st may be nil.
func NewServer(cfg *config.Config, st *store.FSStore) (*Server, error) {
	engine, err := fuzzy.NewEngine(fuzzy.AntennaConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to build inference engine: %w", err)
	}
	return &Server{
		jobManager: NewJobManager(),
		cfg:        cfg,
		store:      st,
		engine:     engine,
		metrics:    NewMetrics(),
	}, nil
}

// Handler returns the HTTP handler with all routes and middleware.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/api/v1/sweeps", s.handleJobs)
	mux.HandleFunc("/api/v1/sweeps/", s.handleJobsWithID)
	mux.HandleFunc("/api/v1/runs", s.handleListRuns)
	mux.HandleFunc("/api/v1/runs/", s.handleGetRun)
	mux.Handle("/metrics", s.metrics.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})

	return s.loggingMiddleware(s.corsMiddleware(mux))
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:              s.cfg.Server.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	slog.Info("Starting HTTP server", "addr", s.cfg.Server.Addr)
	return s.server.ListenAndServe()
}

// Shutdown stops accepting requests, cancels running sweeps and waits for
// their workers to return.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("Shutting down HTTP server")

	var err error
	if s.server != nil {
		err = s.server.Shutdown(ctx)
	}

	for _, job := range s.jobManager.ListJobs() {
		if !job.State.Terminal() {
			s.jobManager.CancelJob(job.ID)
		}
	}

	done := make(chan struct{})
	go func() {
		s.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}

// handleJobs handles /api/v1/sweeps
func (s *Server) handleJobs(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleCreateJob(w, r)
	case http.MethodGet:
		s.handleListJobs(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

// handleJobsWithID handles /api/v1/sweeps/:id/*
func (s *Server) handleJobsWithID(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/v1/sweeps/")
	parts := strings.Split(path, "/")
	if len(parts) == 0 || parts[0] == "" {
		http.Error(w, "Job ID required", http.StatusBadRequest)
		return
	}

	jobID := parts[0]
	sub := ""
	if len(parts) > 1 {
		sub = parts[1]
	}

	switch sub {
	case "":
		s.handleGetJob(w, r, jobID)
	case "status":
		s.handleGetJobStatus(w, r, jobID)
	case "stream":
		s.handleJobStream(w, r, jobID)
	case "cancel":
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		s.handleCancelJob(w, r, jobID)
	default:
		http.Error(w, "Not found", http.StatusNotFound)
	}
}

// applyDefaults resolves a request against the server configuration.
func (s *Server) applyDefaults(req JobRequest) JobConfig {
	d := s.cfg.Sweep
	jc := JobConfig{
		Parameter:       d.Parameter,
		Start:           d.Start,
		Step:            d.Step,
		Iterations:      d.Iterations,
		ExclusionRadius: d.ExclusionRadius,
		SolveTimeoutMs:  int(d.SolveTimeout / time.Millisecond),
		SolveDelayMs:    req.SolveDelayMs,
	}
	if req.Parameter != "" {
		jc.Parameter = req.Parameter
	}
	if req.Start != nil {
		jc.Start = *req.Start
	}
	if req.Step != nil {
		jc.Step = *req.Step
	}
	if req.Iterations != nil {
		jc.Iterations = *req.Iterations
	}
	if req.ExclusionRadius != nil {
		jc.ExclusionRadius = *req.ExclusionRadius
	}
	if req.SolveTimeoutMs != nil {
		jc.SolveTimeoutMs = *req.SolveTimeoutMs
	}
	return jc
}

// handleCreateJob handles POST /api/v1/sweeps
func (s *Server) handleCreateJob(w http.ResponseWriter, r *http.Request) {
	var req JobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("Invalid JSON: %v", err), http.StatusBadRequest)
		return
	}

	jc := s.applyDefaults(req)
	if jc.Iterations > maxIterations {
		http.Error(w, fmt.Sprintf("iterations must be at most %d", maxIterations), http.StatusBadRequest)
		return
	}
	if jc.SolveTimeoutMs < 0 || jc.SolveDelayMs < 0 {
		http.Error(w, "solveTimeoutMs and solveDelayMs cannot be negative", http.StatusBadRequest)
		return
	}
	if err := s.sweepConfig(jc).Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	job := s.jobManager.CreateJob(jc)

	ctx, cancel := context.WithCancel(context.Background())
	s.jobManager.setCancel(job.ID, cancel)

	s.workers.Add(1)
	go func() {
		defer s.workers.Done()
		defer s.jobManager.release(job.ID)
		s.runJob(ctx, job.ID)
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(job)
}

// handleListJobs handles GET /api/v1/sweeps
func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	jobs := s.jobManager.ListJobs()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(jobs)
}

// handleGetJob handles GET /api/v1/sweeps/:id with the full iteration list
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job)
}

// handleGetJobStatus handles GET /api/v1/sweeps/:id/status
func (s *Server) handleGetJobStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}

	var elapsed time.Duration
	if job.EndTime != nil {
		elapsed = job.EndTime.Sub(job.StartTime)
	} else {
		elapsed = time.Since(job.StartTime)
	}

	progress := 1.0
	if job.Config.Iterations > 0 {
		progress = float64(len(job.Iterations)) / float64(job.Config.Iterations)
	}

	response := map[string]interface{}{
		"id":          job.ID,
		"state":       job.State,
		"config":      job.Config,
		"completed":   len(job.Iterations),
		"progress":    progress,
		"bestValue":   job.BestValue,
		"bestFitness": job.BestFitness,
		"bestIndex":   job.BestIndex,
		"elapsed":     elapsed.Seconds(),
		"startTime":   job.StartTime,
		"endTime":     job.EndTime,
		"error":       job.Error,
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// handleCancelJob handles POST /api/v1/sweeps/:id/cancel
func (s *Server) handleCancelJob(w http.ResponseWriter, r *http.Request, jobID string) {
	if _, exists := s.jobManager.GetJob(jobID); !exists {
		http.Error(w, "Job not found", http.StatusNotFound)
		return
	}
	if err := s.jobManager.CancelJob(jobID); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// handleListRuns handles GET /api/v1/runs
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "Run persistence disabled", http.StatusNotFound)
		return
	}
	infos, err := s.store.ListRuns()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(infos)
}

// handleGetRun handles GET /api/v1/runs/:id
func (s *Server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	if s.store == nil {
		http.Error(w, "Run persistence disabled", http.StatusNotFound)
		return
	}
	runID := strings.TrimPrefix(r.URL.Path, "/api/v1/runs/")
	if runID == "" || strings.Contains(runID, "/") {
		http.Error(w, "Run ID required", http.StatusBadRequest)
		return
	}

	run, err := s.store.LoadRun(runID)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	} else if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(run)
}

// corsMiddleware adds CORS headers
func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// loggingMiddleware logs HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		slog.Debug("HTTP request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}
