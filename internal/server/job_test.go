package server

import (
	"context"
	"testing"
	"time"

	"github.com/rj-04/mimotune/internal/sweep"
)

func TestJobManager_CreateJob(t *testing.T) {
	jm := NewJobManager()

	job := jm.CreateJob(JobConfig{Parameter: "patch_length", Start: 10.7, Step: 0.1, Iterations: 5})

	if job.ID == "" {
		t.Error("Job ID should not be empty")
	}
	if job.State != StatePending {
		t.Errorf("Initial state should be pending, got %s", job.State)
	}
	if job.BestIndex != -1 || job.BestValue != 10.7 {
		t.Errorf("Expected best to start at the scan start, got %g at %d", job.BestValue, job.BestIndex)
	}
}

func TestJobManager_GetJob(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(JobConfig{Parameter: "patch_length"})

	retrieved, exists := jm.GetJob(job.ID)
	if !exists {
		t.Fatal("Job should exist")
	}
	if retrieved.ID != job.ID {
		t.Error("Retrieved wrong job")
	}

	if _, exists := jm.GetJob("nonexistent"); exists {
		t.Error("Should not find nonexistent job")
	}
}

func TestJobManager_GetJobReturnsSnapshot(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(JobConfig{Parameter: "patch_length"})

	jm.UpdateJob(job.ID, func(j *Job) {
		j.Iterations = append(j.Iterations, sweep.Iteration{Index: 0, Fitness: 0.5})
	})

	snap, _ := jm.GetJob(job.ID)
	snap.Iterations[0].Fitness = 0.99
	snap.State = StateFailed

	again, _ := jm.GetJob(job.ID)
	if again.Iterations[0].Fitness != 0.5 || again.State != StatePending {
		t.Error("Mutating a snapshot must not change the managed job")
	}
}

func TestJobManager_ListJobs(t *testing.T) {
	jm := NewJobManager()

	if len(jm.ListJobs()) != 0 {
		t.Error("Should start with no jobs")
	}

	first := jm.CreateJob(JobConfig{Parameter: "a"})
	time.Sleep(time.Millisecond)
	jm.CreateJob(JobConfig{Parameter: "b"})

	jobs := jm.ListJobs()
	if len(jobs) != 2 {
		t.Fatalf("Expected 2 jobs, got %d", len(jobs))
	}
	if jobs[0].ID != first.ID {
		t.Error("Expected jobs ordered by start time")
	}
}

func TestJobManager_UpdateJob(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(JobConfig{Parameter: "patch_length"})

	err := jm.UpdateJob(job.ID, func(j *Job) {
		j.State = StateRunning
		j.BestFitness = 0.87
	})
	if err != nil {
		t.Errorf("Update should succeed: %v", err)
	}

	updated, _ := jm.GetJob(job.ID)
	if updated.State != StateRunning {
		t.Error("State should be updated")
	}
	if updated.BestFitness != 0.87 {
		t.Error("BestFitness should be updated")
	}
	if len(jm.GetRunningJobs()) != 1 {
		t.Error("Expected one running job")
	}

	if err := jm.UpdateJob("nonexistent", func(j *Job) {}); err == nil {
		t.Error("Update of nonexistent job should fail")
	}
}

func TestJobManager_CancelJob(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(JobConfig{Parameter: "patch_length"})

	ctx, cancel := context.WithCancel(context.Background())
	jm.setCancel(job.ID, cancel)

	if err := jm.CancelJob(job.ID); err != nil {
		t.Fatalf("CancelJob failed: %v", err)
	}
	if ctx.Err() != context.Canceled {
		t.Error("Expected job context to be cancelled")
	}

	jm.UpdateJob(job.ID, func(j *Job) { j.State = StateCompleted })
	if err := jm.CancelJob(job.ID); err == nil {
		t.Error("Cancelling a finished job should fail")
	}
	if err := jm.CancelJob("nonexistent"); err == nil {
		t.Error("Cancelling a nonexistent job should fail")
	}

	jm.release(job.ID)
	if _, ok := jm.cancels[job.ID]; ok {
		t.Error("release should drop the cancel function")
	}
}

func TestJobManager_ThreadSafety(t *testing.T) {
	jm := NewJobManager()
	job := jm.CreateJob(JobConfig{Parameter: "patch_length"})

	done := make(chan bool)
	for i := 0; i < 10; i++ {
		go func(n int) {
			jm.UpdateJob(job.ID, func(j *Job) {
				j.Iterations = append(j.Iterations, sweep.Iteration{Index: n})
			})
			jm.GetJob(job.ID)
			done <- true
		}(i)
	}
	for i := 0; i < 10; i++ {
		<-done
	}

	got, _ := jm.GetJob(job.ID)
	if len(got.Iterations) != 10 {
		t.Errorf("Expected 10 iterations after concurrent updates, got %d", len(got.Iterations))
	}
}

func TestJobState_Terminal(t *testing.T) {
	for state, want := range map[JobState]bool{
		StatePending:   false,
		StateRunning:   false,
		StateCompleted: true,
		StateFailed:    true,
		StateCancelled: true,
	} {
		if got := state.Terminal(); got != want {
			t.Errorf("%s.Terminal() = %v, want %v", state, got, want)
		}
	}
}
