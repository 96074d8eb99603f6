package store

import (
	"fmt"
	"time"

	"github.com/rj-04/mimotune/internal/sweep"
)

// Run status values.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// RunConfig is the sweep configuration recorded with a run.
type RunConfig struct {
	Parameter       string  `json:"parameter"`
	Start           float64 `json:"start"`
	Step            float64 `json:"step"`
	Iterations      int     `json:"iterations"`
	ExclusionRadius float64 `json:"exclusionRadius"`
	Session         string  `json:"session"` // session backend, e.g. "synthetic"
}

// NewRunConfig copies the persisted fields of a sweep configuration.
func NewRunConfig(cfg sweep.Config, session string) RunConfig {
	return RunConfig{
		Parameter:       cfg.Parameter,
		Start:           cfg.Start,
		Step:            cfg.Step,
		Iterations:      cfg.Iterations,
		ExclusionRadius: cfg.ExclusionRadius,
		Session:         session,
	}
}

// Run is the persisted record of one sweep. A failed sweep keeps the
// iterations it completed before aborting but never a best value, since
// nothing was committed.
type Run struct {
	RunID       string            `json:"runId"`
	Status      string            `json:"status"`
	Config      RunConfig         `json:"config"`
	BestValue   float64           `json:"bestValue"`
	BestFitness float64           `json:"bestFitness"`
	BestIndex   int               `json:"bestIndex"`
	Iterations  []sweep.Iteration `json:"iterations"`
	Error       string            `json:"error,omitempty"`
	StartedAt   time.Time         `json:"startedAt"`
	FinishedAt  time.Time         `json:"finishedAt"`
}

// RunInfo is the listing view of a run, without per-iteration data.
type RunInfo struct {
	RunID       string    `json:"runId"`
	Status      string    `json:"status"`
	Parameter   string    `json:"parameter"`
	BestValue   float64   `json:"bestValue"`
	BestFitness float64   `json:"bestFitness"`
	Iterations  int       `json:"iterations"`
	FinishedAt  time.Time `json:"finishedAt"`
}

// NewRun builds a completed run from a sweep result.
func NewRun(runID string, cfg RunConfig, res *sweep.Result, startedAt time.Time) *Run {
	return &Run{
		RunID:       runID,
		Status:      StatusCompleted,
		Config:      cfg,
		BestValue:   res.BestValue,
		BestFitness: res.BestFitness,
		BestIndex:   res.BestIndex,
		Iterations:  res.Iterations,
		StartedAt:   startedAt,
		FinishedAt:  time.Now(),
	}
}

// NewFailedRun records an aborted sweep with the iterations observed so far.
func NewFailedRun(runID string, cfg RunConfig, iterations []sweep.Iteration, runErr error, startedAt time.Time) *Run {
	return &Run{
		RunID:      runID,
		Status:     StatusFailed,
		Config:     cfg,
		BestIndex:  -1,
		Iterations: iterations,
		Error:      runErr.Error(),
		StartedAt:  startedAt,
		FinishedAt: time.Now(),
	}
}

// ToInfo converts a full Run to RunInfo.
func (r *Run) ToInfo() RunInfo {
	return RunInfo{
		RunID:       r.RunID,
		Status:      r.Status,
		Parameter:   r.Config.Parameter,
		BestValue:   r.BestValue,
		BestFitness: r.BestFitness,
		Iterations:  len(r.Iterations),
		FinishedAt:  r.FinishedAt,
	}
}

// Validate checks that the run record is internally consistent.
func (r *Run) Validate() error {
	if r.RunID == "" {
		return &ValidationError{Field: "RunID", Reason: "cannot be empty"}
	}
	if r.Status != StatusCompleted && r.Status != StatusFailed {
		return &ValidationError{Field: "Status", Reason: fmt.Sprintf("unknown status %q", r.Status)}
	}
	if r.Config.Parameter == "" {
		return &ValidationError{Field: "Config.Parameter", Reason: "cannot be empty"}
	}
	if r.Config.Iterations < 0 {
		return &ValidationError{Field: "Config.Iterations", Reason: "cannot be negative"}
	}
	if len(r.Iterations) > r.Config.Iterations {
		return &ValidationError{
			Field:  "Iterations",
			Reason: fmt.Sprintf("has %d entries for a %d-step sweep", len(r.Iterations), r.Config.Iterations),
		}
	}
	if r.BestFitness < 0 || r.BestFitness > 1 {
		return &ValidationError{Field: "BestFitness", Reason: "must be in [0, 1]"}
	}
	if r.BestIndex < -1 || r.BestIndex >= len(r.Iterations) {
		return &ValidationError{Field: "BestIndex", Reason: fmt.Sprintf("out of range: %d", r.BestIndex)}
	}
	if r.Status == StatusFailed && r.Error == "" {
		return &ValidationError{Field: "Error", Reason: "required for failed runs"}
	}
	if r.FinishedAt.IsZero() {
		return &ValidationError{Field: "FinishedAt", Reason: "cannot be zero"}
	}
	return nil
}

// ValidationError represents a run validation error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation error: " + e.Field + " " + e.Reason
}
