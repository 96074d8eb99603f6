package sweep

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/rj-04/mimotune/internal/band"
	"github.com/rj-04/mimotune/internal/fuzzy"
	"github.com/rj-04/mimotune/internal/opt"
)

// Config describes a single-parameter sweep.
type Config struct {
	Parameter       string
	Start           float64
	Step            float64
	Iterations      int
	ExclusionRadius float64
	SolveTimeout    time.Duration // 0 disables the per-solve deadline
	Paths           ResultPaths
}

// Validate checks the sweep settings.
func (c Config) Validate() error {
	if c.Parameter == "" {
		return fmt.Errorf("sweep parameter name cannot be empty")
	}
	if c.Iterations < 0 {
		return fmt.Errorf("sweep iterations cannot be negative: %d", c.Iterations)
	}
	if math.IsNaN(c.Start) || math.IsNaN(c.Step) {
		return fmt.Errorf("sweep start and step must be numbers")
	}
	if c.ExclusionRadius < 0 {
		return fmt.Errorf("exclusion radius cannot be negative: %g", c.ExclusionRadius)
	}
	if c.SolveTimeout < 0 {
		return fmt.Errorf("solve timeout cannot be negative: %s", c.SolveTimeout)
	}
	if c.Paths.S11 == "" || c.Paths.S21 == "" || c.Paths.Efficiency == "" || c.Paths.Gain == "" {
		return fmt.Errorf("all result paths must be set")
	}
	return nil
}

// Iteration is the immutable record of one scored parameter value.
type Iteration struct {
	Index       int           `json:"index"`
	Value       float64       `json:"value"`
	Band1       band.Band     `json:"band1"`
	Band2       band.Band     `json:"band2"`
	Efficiency1 float64       `json:"efficiency1"`
	Efficiency2 float64       `json:"efficiency2"`
	Gain1       float64       `json:"gain1"`
	Gain2       float64       `json:"gain2"`
	Strength    float64       `json:"strength"`
	Fitness     float64       `json:"fitness"`
	Clamped     []string      `json:"clamped,omitempty"`
	SolveTime   time.Duration `json:"solveTime"`
}

// Result is the outcome of a completed, committed sweep.
type Result struct {
	Parameter   string      `json:"parameter"`
	BestValue   float64     `json:"bestValue"`
	BestFitness float64     `json:"bestFitness"`
	BestIndex   int         `json:"bestIndex"` // -1 when no iteration scored above zero
	Iterations  []Iteration `json:"iterations"`
}

// Observer is notified after every completed iteration.
type Observer interface {
	OnIteration(it Iteration)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(it Iteration)

// OnIteration calls f.
func (f ObserverFunc) OnIteration(it Iteration) { f(it) }

// Sweeper scans one design parameter, scores every solved design and commits
// the best value back to the session.
type Sweeper struct {
	session   Session
	engine    *fuzzy.Engine
	cfg       Config
	scan      *opt.LinearScan
	selector  band.Selector
	observers []Observer
}

// New creates a sweeper over session scored by engine.
func New(session Session, engine *fuzzy.Engine, cfg Config) (*Sweeper, error) {
	if session == nil {
		return nil, fmt.Errorf("session cannot be nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Sweeper{
		session:  session,
		engine:   engine,
		cfg:      cfg,
		scan:     opt.NewLinearScan(cfg.Start, cfg.Step, cfg.Iterations),
		selector: band.NewSelector(cfg.ExclusionRadius),
	}, nil
}

// AddObserver registers an iteration observer. Not safe to call during Run.
func (s *Sweeper) AddObserver(o Observer) {
	s.observers = append(s.observers, o)
}

// Run performs the full sweep and commits the best value. Any failure aborts
// the sweep without committing; the error is a *StageError.
func (s *Sweeper) Run(ctx context.Context) (*Result, error) {
	slog.Info("Starting sweep",
		"parameter", s.cfg.Parameter,
		"start", s.cfg.Start,
		"step", s.cfg.Step,
		"iterations", s.cfg.Iterations,
	)

	iterations := make([]Iteration, 0, s.cfg.Iterations)
	best, err := s.scan.Run(ctx, func(ctx context.Context, i int, v float64) (float64, error) {
		it, err := s.Evaluate(ctx, i, v)
		if err != nil {
			return 0, err
		}
		iterations = append(iterations, it)
		for _, o := range s.observers {
			o.OnIteration(it)
		}
		return it.Fitness, nil
	})
	if err != nil {
		var se *StageError
		if !errors.As(err, &se) {
			// cancellation between iterations
			err = &StageError{Stage: StageSetParameter, Iteration: len(iterations), Value: s.scan.ValueAt(len(iterations)), Err: err}
		}
		slog.Error("Sweep aborted", "error", err)
		return nil, err
	}

	if err := s.Commit(ctx, best.Value); err != nil {
		return nil, err
	}

	slog.Info("Sweep complete",
		"parameter", s.cfg.Parameter,
		"best_value", best.Value,
		"best_fitness", best.Fitness,
		"best_index", best.Index,
	)

	return &Result{
		Parameter:   s.cfg.Parameter,
		BestValue:   best.Value,
		BestFitness: best.Fitness,
		BestIndex:   best.Index,
		Iterations:  iterations,
	}, nil
}

// Evaluate applies value to the design, solves it and scores the result.
func (s *Sweeper) Evaluate(ctx context.Context, i int, value float64) (Iteration, error) {
	fail := func(stage Stage, err error) (Iteration, error) {
		return Iteration{}, &StageError{Stage: stage, Iteration: i, Value: value, Err: err}
	}

	if err := s.session.SetParameter(ctx, s.cfg.Parameter, value); err != nil {
		return fail(StageSetParameter, err)
	}
	if err := s.session.Rebuild(ctx); err != nil {
		return fail(StageRebuild, err)
	}
	if err := s.session.Save(ctx); err != nil {
		return fail(StageSave, err)
	}

	start := time.Now()
	if err := s.solve(ctx); err != nil {
		return fail(StageSolve, err)
	}
	solveTime := time.Since(start)

	it, obs, err := s.extract(ctx)
	if err != nil {
		return fail(StageExtract, err)
	}
	it.Index = i
	it.Value = value
	it.SolveTime = solveTime

	ev, err := s.engine.Evaluate(obs)
	if err != nil {
		return fail(StageScore, err)
	}
	it.Fitness = ev.Score
	if len(ev.Strengths) > 0 {
		it.Strength = ev.Strengths[0]
		for _, a := range ev.Strengths[1:] {
			it.Strength = math.Max(it.Strength, a)
		}
	}
	it.Clamped = ev.Clamped

	slog.Info("Iteration scored",
		"iteration", i+1,
		"value", value,
		"freq", []float64{it.Band1.Frequency, it.Band2.Frequency},
		"s11_db", []float64{it.Band1.ReflectionDB, it.Band2.ReflectionDB},
		"s21_db", []float64{it.Band1.IsolationDB, it.Band2.IsolationDB},
		"efficiency", []float64{it.Efficiency1, it.Efficiency2},
		"gain_db", []float64{it.Gain1, it.Gain2},
		"score", it.Fitness,
	)
	return it, nil
}

// sameGrid reports ErrGridMismatch unless b samples the same frequencies as
// a, to within a millionth of a step.
func sameGrid(a, b []float64) error {
	if len(a) != len(b) {
		return fmt.Errorf("%w: %d vs %d points", ErrGridMismatch, len(a), len(b))
	}
	if len(a) < 2 {
		return nil
	}
	tol := math.Abs(a[len(a)-1]-a[0]) / float64(len(a)-1) * 1e-6
	for i := range a {
		if math.Abs(a[i]-b[i]) > tol {
			return fmt.Errorf("%w: point %d at %g vs %g", ErrGridMismatch, i, a[i], b[i])
		}
	}
	return nil
}

func (s *Sweeper) solve(ctx context.Context) error {
	if s.cfg.SolveTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.SolveTimeout)
		defer cancel()
	}
	return s.session.Solve(ctx)
}

// extract reads the four result curves, picks both bands and builds the ten
// crisp observations.
func (s *Sweeper) extract(ctx context.Context) (Iteration, fuzzy.Observations, error) {
	s11c, err := s.session.FetchCurve(ctx, s.cfg.Paths.S11)
	if err != nil {
		return Iteration{}, nil, err
	}
	s21c, err := s.session.FetchCurve(ctx, s.cfg.Paths.S21)
	if err != nil {
		return Iteration{}, nil, err
	}
	eff, err := s.session.FetchSeries(ctx, s.cfg.Paths.Efficiency)
	if err != nil {
		return Iteration{}, nil, err
	}
	gain, err := s.session.FetchSeries(ctx, s.cfg.Paths.Gain)
	if err != nil {
		return Iteration{}, nil, err
	}

	s11, err := s11c.DB()
	if err != nil {
		return Iteration{}, nil, fmt.Errorf("S11: %w", err)
	}
	s21, err := s21c.DB()
	if err != nil {
		return Iteration{}, nil, fmt.Errorf("S21: %w", err)
	}

	freq := s11c.Freq
	if err := sameGrid(freq, s21c.Freq); err != nil {
		return Iteration{}, nil, err
	}
	b1, b2, err := s.selector.Select(freq, s11, s21)
	if err != nil {
		return Iteration{}, nil, err
	}

	lo, hi := freq[0], freq[len(freq)-1]
	effAt, err := band.Regrid(lo, hi, eff)
	if err != nil {
		return Iteration{}, nil, fmt.Errorf("efficiency: %w", err)
	}
	gainAt, err := band.Regrid(lo, hi, gain)
	if err != nil {
		return Iteration{}, nil, fmt.Errorf("gain: %w", err)
	}

	it := Iteration{
		Band1:       b1,
		Band2:       b2,
		Efficiency1: effAt.At(b1.Frequency),
		Efficiency2: effAt.At(b2.Frequency),
		Gain1:       gainAt.At(b1.Frequency),
		Gain2:       gainAt.At(b2.Frequency),
	}
	obs := fuzzy.AntennaObservations(
		fuzzy.BandObservation{
			Frequency:    b1.Frequency,
			ReflectionDB: b1.ReflectionDB,
			IsolationDB:  b1.IsolationDB,
			Efficiency:   it.Efficiency1,
			GainDB:       it.Gain1,
		},
		fuzzy.BandObservation{
			Frequency:    b2.Frequency,
			ReflectionDB: b2.ReflectionDB,
			IsolationDB:  b2.IsolationDB,
			Efficiency:   it.Efficiency2,
			GainDB:       it.Gain2,
		},
	)
	return it, obs, nil
}

// Commit writes value to the design, rebuilds and saves it. Committing the
// same value twice leaves the design in the same state as committing once.
func (s *Sweeper) Commit(ctx context.Context, value float64) error {
	fail := func(stage Stage, err error) error {
		return &StageError{Stage: stage, Iteration: -1, Value: value, Err: err}
	}

	if err := s.session.SetParameter(ctx, s.cfg.Parameter, value); err != nil {
		return fail(StageCommit, err)
	}
	if err := s.session.Rebuild(ctx); err != nil {
		return fail(StageCommit, err)
	}
	if err := s.session.Save(ctx); err != nil {
		return fail(StageCommit, err)
	}

	slog.Info("Design committed", "parameter", s.cfg.Parameter, "value", value)
	return nil
}
