package server

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rj-04/mimotune/internal/sweep"
)

// JobState represents the current state of a job
type JobState string

const (
	StatePending   JobState = "pending"
	StateRunning   JobState = "running"
	StateCompleted JobState = "completed"
	StateFailed    JobState = "failed"
	StateCancelled JobState = "cancelled"
)

// Terminal reports whether no further transitions can happen.
func (s JobState) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// JobRequest is the request body of POST /api/v1/sweeps. Omitted fields take
// the server defaults; explicit zeros are kept.
type JobRequest struct {
	Parameter       string   `json:"parameter,omitempty"`
	Start           *float64 `json:"start,omitempty"`
	Step            *float64 `json:"step,omitempty"`
	Iterations      *int     `json:"iterations,omitempty"`
	ExclusionRadius *float64 `json:"exclusionRadius,omitempty"`
	SolveTimeoutMs  *int     `json:"solveTimeoutMs,omitempty"`
	SolveDelayMs    int      `json:"solveDelayMs,omitempty"` // synthetic solver latency
}

// JobConfig is the resolved configuration of a sweep job.
type JobConfig struct {
	Parameter       string  `json:"parameter"`
	Start           float64 `json:"start"`
	Step            float64 `json:"step"`
	Iterations      int     `json:"iterations"`
	ExclusionRadius float64 `json:"exclusionRadius"`
	SolveTimeoutMs  int     `json:"solveTimeoutMs,omitempty"`
	SolveDelayMs    int     `json:"solveDelayMs,omitempty"` // synthetic solver latency
}

// Job represents a sweep job
type Job struct {
	ID          string            `json:"id"`
	State       JobState          `json:"state"`
	Config      JobConfig         `json:"config"`
	Iterations  []sweep.Iteration `json:"iterations"`
	BestValue   float64           `json:"bestValue"`
	BestFitness float64           `json:"bestFitness"`
	BestIndex   int               `json:"bestIndex"`
	StartTime   time.Time         `json:"startTime"`
	EndTime     *time.Time        `json:"endTime,omitempty"`
	Error       string            `json:"error,omitempty"`
}

func (j *Job) clone() *Job {
	c := *j
	c.Iterations = append([]sweep.Iteration(nil), j.Iterations...)
	if j.EndTime != nil {
		t := *j.EndTime
		c.EndTime = &t
	}
	return &c
}

// JobManager manages the lifecycle of jobs. Accessors return snapshots, so
// callers never share state with a running worker.
type JobManager struct {
	mu          sync.RWMutex
	jobs        map[string]*Job
	cancels     map[string]context.CancelFunc
	broadcaster *EventBroadcaster
}

// NewJobManager creates a new JobManager
func NewJobManager() *JobManager {
	return &JobManager{
		jobs:        make(map[string]*Job),
		cancels:     make(map[string]context.CancelFunc),
		broadcaster: NewEventBroadcaster(),
	}
}

// CreateJob creates a new pending job with the given configuration
func (jm *JobManager) CreateJob(config JobConfig) *Job {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job := &Job{
		ID:        uuid.New().String(),
		State:     StatePending,
		Config:    config,
		BestValue: config.Start,
		BestIndex: -1,
		StartTime: time.Now(),
	}

	jm.jobs[job.ID] = job
	return job.clone()
}

// GetJob retrieves a snapshot of a job by ID
func (jm *JobManager) GetJob(id string) (*Job, bool) {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	job, exists := jm.jobs[id]
	if !exists {
		return nil, false
	}
	return job.clone(), true
}

// ListJobs returns snapshots of all jobs, oldest first
func (jm *JobManager) ListJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	jobs := make([]*Job, 0, len(jm.jobs))
	for _, job := range jm.jobs {
		jobs = append(jobs, job.clone())
	}
	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].StartTime.Before(jobs[k].StartTime)
	})
	return jobs
}

// UpdateJob atomically updates a job using the provided function
func (jm *JobManager) UpdateJob(id string, updateFn func(*Job)) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}

	updateFn(job)
	return nil
}

// GetRunningJobs returns all jobs currently in the running state
func (jm *JobManager) GetRunningJobs() []*Job {
	jm.mu.RLock()
	defer jm.mu.RUnlock()

	runningJobs := make([]*Job, 0)
	for _, job := range jm.jobs {
		if job.State == StateRunning {
			runningJobs = append(runningJobs, job.clone())
		}
	}
	return runningJobs
}

// setCancel registers the cancel function of a job's worker context.
func (jm *JobManager) setCancel(id string, cancel context.CancelFunc) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	jm.cancels[id] = cancel
}

// release drops the cancel function once the worker has returned.
func (jm *JobManager) release(id string) {
	jm.mu.Lock()
	defer jm.mu.Unlock()
	if cancel, ok := jm.cancels[id]; ok {
		cancel()
		delete(jm.cancels, id)
	}
}

// CancelJob requests cancellation of a pending or running job. The worker
// observes the cancelled context at its next stage boundary.
func (jm *JobManager) CancelJob(id string) error {
	jm.mu.Lock()
	defer jm.mu.Unlock()

	job, exists := jm.jobs[id]
	if !exists {
		return fmt.Errorf("job not found: %s", id)
	}
	if job.State.Terminal() {
		return fmt.Errorf("job %s already %s", id, job.State)
	}
	if cancel, ok := jm.cancels[id]; ok {
		cancel()
	}
	return nil
}
