package store

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rj-04/mimotune/internal/sweep"
)

func TestRun_JSONFieldNames(t *testing.T) {
	data, err := json.Marshal(createTestRun("json-run"))
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	s := string(data)
	for _, field := range []string{`"runId"`, `"bestValue"`, `"bestFitness"`, `"bestIndex"`, `"startedAt"`, `"reflectionDb"`} {
		if !strings.Contains(s, field) {
			t.Errorf("Expected %s in JSON output", field)
		}
	}
	if strings.Contains(s, `"error"`) {
		t.Error("Expected error field to be omitted for completed runs")
	}
}

func TestRun_Validate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(r *Run)
		field  string
	}{
		{"valid", func(r *Run) {}, ""},
		{"empty run id", func(r *Run) { r.RunID = "" }, "RunID"},
		{"unknown status", func(r *Run) { r.Status = "paused" }, "Status"},
		{"empty parameter", func(r *Run) { r.Config.Parameter = "" }, "Config.Parameter"},
		{"negative iterations", func(r *Run) { r.Config.Iterations = -1 }, "Config.Iterations"},
		{"too many iterations", func(r *Run) { r.Config.Iterations = 1 }, "Iterations"},
		{"fitness above one", func(r *Run) { r.BestFitness = 1.5 }, "BestFitness"},
		{"best index out of range", func(r *Run) { r.BestIndex = 2 }, "BestIndex"},
		{"best index below -1", func(r *Run) { r.BestIndex = -2 }, "BestIndex"},
		{"failed without error", func(r *Run) { r.Status = StatusFailed }, "Error"},
		{"zero finish time", func(r *Run) { r.FinishedAt = time.Time{} }, "FinishedAt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := createTestRun("run")
			tt.mutate(r)
			err := r.Validate()
			if tt.field == "" {
				if err != nil {
					t.Fatalf("Expected valid run, got %v", err)
				}
				return
			}
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if ve.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, ve.Field)
			}
		})
	}
}

func TestNewRun(t *testing.T) {
	started := time.Now().Add(-time.Second)
	cfg := NewRunConfig(sweep.Config{
		Parameter:       "patch_length",
		Start:           10.7,
		Step:            0.1,
		Iterations:      2,
		ExclusionRadius: 2,
		Paths:           sweep.DefaultResultPaths(),
	}, "synthetic")
	res := &sweep.Result{
		Parameter:   "patch_length",
		BestValue:   10.8,
		BestFitness: 0.89,
		BestIndex:   1,
		Iterations:  testIterations(),
	}

	run := NewRun("new-run", cfg, res, started)
	if err := run.Validate(); err != nil {
		t.Fatalf("NewRun produced invalid run: %v", err)
	}
	if run.Status != StatusCompleted || run.BestValue != 10.8 || run.Config.Session != "synthetic" {
		t.Errorf("Unexpected run: %+v", run)
	}
	if run.FinishedAt.Before(started) {
		t.Error("FinishedAt should not precede StartedAt")
	}
}

func TestNewFailedRun(t *testing.T) {
	cfg := RunConfig{Parameter: "patch_length", Iterations: 5}
	runErr := &sweep.StageError{Stage: sweep.StageSolve, Iteration: 2, Value: 10.9, Err: errors.New("license lost")}

	run := NewFailedRun("failed-run", cfg, testIterations(), runErr, time.Now())
	if err := run.Validate(); err != nil {
		t.Fatalf("NewFailedRun produced invalid run: %v", err)
	}
	if run.BestIndex != -1 || run.BestFitness != 0 {
		t.Errorf("Failed run must not carry a best value: %+v", run)
	}
	if !strings.Contains(run.Error, "solve") {
		t.Errorf("Expected stage in error, got %q", run.Error)
	}
}

func TestRun_ToInfo(t *testing.T) {
	r := createTestRun("info-run")
	info := r.ToInfo()

	if info.RunID != "info-run" || info.Status != StatusCompleted {
		t.Errorf("Unexpected identity: %+v", info)
	}
	if info.Parameter != "patch_length" || info.Iterations != 2 {
		t.Errorf("Unexpected summary: %+v", info)
	}
	if info.BestFitness != r.BestFitness || !info.FinishedAt.Equal(r.FinishedAt) {
		t.Errorf("Unexpected best/time: %+v", info)
	}
}
