package main

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rj-04/mimotune/internal/config"
	"github.com/rj-04/mimotune/internal/store"
	"github.com/rj-04/mimotune/internal/sweep"
)

func TestExecuteSweep_SavesRunAndTrace(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()

	var out bytes.Buffer
	res, err := executeSweep(context.Background(), cfg, "cli-run", true, &out)
	if err != nil {
		t.Fatalf("executeSweep failed: %v", err)
	}
	if math.Abs(res.BestValue-10.9) > 1e-9 || res.BestIndex != 2 {
		t.Errorf("Expected best 10.9 at index 2, got %g at %d", res.BestValue, res.BestIndex)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2+cfg.Sweep.Iterations {
		t.Errorf("Expected header plus %d rows, got %d lines:\n%s", cfg.Sweep.Iterations, len(lines), out.String())
	}
	if !strings.Contains(lines[0], "SCORE") {
		t.Errorf("Missing table header: %q", lines[0])
	}

	st, err := store.NewFSStore(cfg.DataDir)
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	run, err := st.LoadRun("cli-run")
	if err != nil {
		t.Fatalf("Run should be saved: %v", err)
	}
	if run.Status != store.StatusCompleted || run.Config.Session != "synthetic" {
		t.Errorf("Unexpected run: %+v", run.ToInfo())
	}

	reader, err := store.NewTraceReader(cfg.DataDir, "cli-run")
	if err != nil {
		t.Fatalf("Trace should exist: %v", err)
	}
	defer reader.Close()
	entries, err := reader.ReadAll()
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if len(entries) != cfg.Sweep.Iterations {
		t.Errorf("Expected %d trace entries, got %d", cfg.Sweep.Iterations, len(entries))
	}
}

func TestExecuteSweep_NoSave(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()

	var out bytes.Buffer
	if _, err := executeSweep(context.Background(), cfg, "unsaved", false, &out); err != nil {
		t.Fatalf("executeSweep failed: %v", err)
	}

	st, err := store.NewFSStore(cfg.DataDir)
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	infos, err := st.ListRuns()
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(infos) != 0 {
		t.Errorf("Expected no saved runs, got %d", len(infos))
	}
}

func TestExecuteSweep_FailureIsRecorded(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Sweep.Parameter = "substrate_height"

	var out bytes.Buffer
	_, err := executeSweep(context.Background(), cfg, "bad-param", true, &out)
	var pe *sweep.ParameterError
	if !errors.As(err, &pe) {
		t.Fatalf("Expected ParameterError, got %v", err)
	}

	st, err := store.NewFSStore(cfg.DataDir)
	if err != nil {
		t.Fatalf("NewFSStore failed: %v", err)
	}
	run, err := st.LoadRun("bad-param")
	if err != nil {
		t.Fatalf("Failed run should be saved: %v", err)
	}
	if run.Status != store.StatusFailed || run.Error == "" {
		t.Errorf("Expected failed run with error, got %+v", run.ToInfo())
	}
}

func TestExecuteSweep_SolveTimeout(t *testing.T) {
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.Synthetic.SolveDelay = 200 * time.Millisecond
	cfg.Sweep.SolveTimeout = 10 * time.Millisecond

	var out bytes.Buffer
	_, err := executeSweep(context.Background(), cfg, "timeout", false, &out)
	var se *sweep.StageError
	if !errors.As(err, &se) || se.Stage != sweep.StageSolve {
		t.Fatalf("Expected solve StageError, got %v", err)
	}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("Expected deadline exceeded in chain, got %v", err)
	}
}
