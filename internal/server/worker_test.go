package server

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/rj-04/mimotune/internal/config"
	"github.com/rj-04/mimotune/internal/store"
	"github.com/rj-04/mimotune/internal/sweep"
)

// newTestServer builds a server over the default configuration with run
// persistence in a temp directory.
func newTestServer(t *testing.T) (*Server, *store.FSStore) {
	t.Helper()

	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	st, err := store.NewFSStore(cfg.DataDir)
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	s, err := NewServer(cfg, st)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	return s, st
}

func ptr[T any](v T) *T { return &v }

func TestRunJob_Success(t *testing.T) {
	s, st := newTestServer(t)
	job := s.jobManager.CreateJob(s.applyDefaults(JobRequest{}))

	if err := s.runJob(context.Background(), job.ID); err != nil {
		t.Fatalf("runJob should succeed: %v", err)
	}

	updated, _ := s.jobManager.GetJob(job.ID)
	if updated.State != StateCompleted {
		t.Fatalf("Job should be completed, got %s", updated.State)
	}
	if len(updated.Iterations) != 5 {
		t.Errorf("Expected 5 iterations, got %d", len(updated.Iterations))
	}
	if math.Abs(updated.BestValue-10.9) > 1e-9 || updated.BestIndex != 2 {
		t.Errorf("Expected best 10.9 at index 2, got %g at %d", updated.BestValue, updated.BestIndex)
	}
	if updated.EndTime == nil {
		t.Error("EndTime should be set")
	}

	run, err := st.LoadRun(job.ID)
	if err != nil {
		t.Fatalf("Run should be persisted: %v", err)
	}
	if run.Status != store.StatusCompleted || run.BestIndex != 2 {
		t.Errorf("Unexpected persisted run: %+v", run.ToInfo())
	}

	reader, err := store.NewTraceReader(st.BaseDir(), job.ID)
	if err != nil {
		t.Fatalf("Trace should exist: %v", err)
	}
	defer reader.Close()
	entries, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(entries) != 5 {
		t.Errorf("Expected 5 trace entries, got %d", len(entries))
	}
}

func TestRunJob_UnknownParameter(t *testing.T) {
	s, st := newTestServer(t)
	jc := s.applyDefaults(JobRequest{Parameter: "substrate_height"})
	job := s.jobManager.CreateJob(jc)

	err := s.runJob(context.Background(), job.ID)
	var pe *sweep.ParameterError
	if !errors.As(err, &pe) {
		t.Fatalf("Expected ParameterError, got %v", err)
	}

	updated, _ := s.jobManager.GetJob(job.ID)
	if updated.State != StateFailed || updated.Error == "" {
		t.Errorf("Expected failed job with error, got %s %q", updated.State, updated.Error)
	}

	run, err := st.LoadRun(job.ID)
	if err != nil {
		t.Fatalf("Failed run should be persisted: %v", err)
	}
	if run.Status != store.StatusFailed || len(run.Iterations) != 0 {
		t.Errorf("Unexpected failed run: %+v", run.ToInfo())
	}
}

func TestRunJob_CancelledBeforeStart(t *testing.T) {
	s, _ := newTestServer(t)
	job := s.jobManager.CreateJob(s.applyDefaults(JobRequest{}))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := s.runJob(ctx, job.ID); !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	updated, _ := s.jobManager.GetJob(job.ID)
	if updated.State != StateCancelled {
		t.Errorf("Expected cancelled, got %s", updated.State)
	}
}

func TestRunJob_CancelledMidSweep(t *testing.T) {
	s, st := newTestServer(t)
	job := s.jobManager.CreateJob(s.applyDefaults(JobRequest{Iterations: ptr(50), SolveDelayMs: 20}))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(70 * time.Millisecond)
		cancel()
	}()

	err := s.runJob(ctx, job.ID)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}

	updated, _ := s.jobManager.GetJob(job.ID)
	if updated.State != StateCancelled {
		t.Errorf("Expected cancelled, got %s", updated.State)
	}
	if len(updated.Iterations) >= 50 {
		t.Errorf("Expected the sweep to stop early, got %d iterations", len(updated.Iterations))
	}

	run, err := st.LoadRun(job.ID)
	if err != nil {
		t.Fatalf("Cancelled run should be persisted: %v", err)
	}
	if run.Status != store.StatusFailed {
		t.Errorf("Expected cancelled sweep recorded as failed, got %s", run.Status)
	}
}

func TestRunJob_NotFound(t *testing.T) {
	s, _ := newTestServer(t)
	if err := s.runJob(context.Background(), "nonexistent"); err == nil {
		t.Error("Expected error for unknown job")
	}
}
