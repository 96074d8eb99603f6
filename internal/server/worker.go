package server

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rj-04/mimotune/internal/session"
	"github.com/rj-04/mimotune/internal/store"
	"github.com/rj-04/mimotune/internal/sweep"
)

// sweepConfig converts a job request into a sweep configuration.
func (s *Server) sweepConfig(jc JobConfig) sweep.Config {
	return sweep.Config{
		Parameter:       jc.Parameter,
		Start:           jc.Start,
		Step:            jc.Step,
		Iterations:      jc.Iterations,
		ExclusionRadius: jc.ExclusionRadius,
		SolveTimeout:    time.Duration(jc.SolveTimeoutMs) * time.Millisecond,
		Paths:           s.cfg.Results,
	}
}

// runJob executes a sweep job against a fresh synthetic session. Every
// iteration updates the job, feeds the SSE stream and metrics, and is
// appended to the run trace when persistence is enabled.
func (s *Server) runJob(ctx context.Context, jobID string) error {
	job, exists := s.jobManager.GetJob(jobID)
	if !exists {
		return fmt.Errorf("job not found: %s", jobID)
	}

	if ctx.Err() != nil {
		s.markJobCancelled(jobID)
		return ctx.Err()
	}

	if err := s.jobManager.UpdateJob(jobID, func(j *Job) {
		j.State = StateRunning
	}); err != nil {
		return err
	}
	s.broadcast(jobID)

	s.metrics.RunningSweeps.Inc()
	defer s.metrics.RunningSweeps.Dec()

	slog.Info("Starting job", "job_id", jobID, "parameter", job.Config.Parameter, "iterations", job.Config.Iterations)

	synth := s.cfg.Synthetic
	if job.Config.SolveDelayMs > 0 {
		synth.SolveDelay = time.Duration(job.Config.SolveDelayMs) * time.Millisecond
	}
	sess, err := session.NewSynthetic(synth, s.cfg.Results)
	if err != nil {
		s.markJobFailed(jobID, err)
		return err
	}

	cfg := s.sweepConfig(job.Config)
	sw, err := sweep.New(sess, s.engine, cfg)
	if err != nil {
		s.markJobFailed(jobID, err)
		return err
	}

	sw.AddObserver(sweep.ObserverFunc(func(it sweep.Iteration) {
		s.jobManager.UpdateJob(jobID, func(j *Job) {
			j.Iterations = append(j.Iterations, it)
			if it.Fitness > j.BestFitness {
				j.BestFitness = it.Fitness
				j.BestValue = it.Value
				j.BestIndex = it.Index
			}
		})
		s.broadcast(jobID)
	}))
	sw.AddObserver(s.metrics.Observer(jobID, cfg.Parameter))

	if s.store != nil {
		tw, err := store.NewTraceWriter(s.store.BaseDir(), jobID, false)
		if err != nil {
			slog.Warn("Trace disabled for job", "job_id", jobID, "error", err)
		} else {
			sw.AddObserver(tw)
			defer tw.Close()
		}
	}

	start := time.Now()
	res, err := sw.Run(ctx)
	runCfg := store.NewRunConfig(cfg, "synthetic")

	if err != nil {
		if ctx.Err() != nil {
			s.markJobCancelled(jobID)
		} else {
			s.markJobFailed(jobID, err)
		}
		if done, ok := s.jobManager.GetJob(jobID); ok {
			s.saveRun(jobID, store.NewFailedRun(jobID, runCfg, done.Iterations, err, start))
		}
		return err
	}

	s.metrics.RecordSweep(jobID, StateCompleted)
	endTime := time.Now()
	if err := s.jobManager.UpdateJob(jobID, func(j *Job) {
		j.State = StateCompleted
		j.BestValue = res.BestValue
		j.BestFitness = res.BestFitness
		j.BestIndex = res.BestIndex
		j.EndTime = &endTime
	}); err != nil {
		return err
	}
	s.saveRun(jobID, store.NewRun(jobID, runCfg, res, start))

	slog.Info("Job completed",
		"job_id", jobID,
		"elapsed", time.Since(start),
		"best_value", res.BestValue,
		"best_fitness", res.BestFitness,
	)

	s.broadcast(jobID)
	return nil
}

func (s *Server) broadcast(jobID string) {
	if job, ok := s.jobManager.GetJob(jobID); ok {
		s.jobManager.broadcaster.Broadcast(eventFromJob(job))
	}
}

func (s *Server) saveRun(jobID string, run *store.Run) {
	if s.store == nil {
		return
	}
	if err := s.store.SaveRun(jobID, run); err != nil {
		slog.Error("Failed to save run", "job_id", jobID, "error", err)
	}
}

// markJobFailed marks a job as failed with an error message
func (s *Server) markJobFailed(jobID string, err error) {
	s.metrics.RecordSweep(jobID, StateFailed)
	endTime := time.Now()
	s.jobManager.UpdateJob(jobID, func(j *Job) {
		j.State = StateFailed
		j.Error = err.Error()
		j.EndTime = &endTime
	})
	s.broadcast(jobID)
	slog.Error("Job failed", "job_id", jobID, "error", err)
}

// markJobCancelled marks a job as cancelled
func (s *Server) markJobCancelled(jobID string) {
	s.metrics.RecordSweep(jobID, StateCancelled)
	endTime := time.Now()
	s.jobManager.UpdateJob(jobID, func(j *Job) {
		j.State = StateCancelled
		j.Error = context.Canceled.Error()
		j.EndTime = &endTime
	})
	s.broadcast(jobID)
	slog.Info("Job cancelled", "job_id", jobID)
}
