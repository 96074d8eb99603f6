package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/rj-04/mimotune/internal/band"
	"github.com/rj-04/mimotune/internal/sweep"
)

// Resonance describes one reflection dip of the synthetic antenna at its
// reference length.
type Resonance struct {
	CenterGHz float64 `json:"centerGhz" yaml:"center_ghz"`
	DepthDB   float64 `json:"depthDb" yaml:"depth_db"`
	WidthGHz  float64 `json:"widthGhz" yaml:"width_ghz"`
}

// SyntheticConfig parameterizes the analytic antenna model.
type SyntheticConfig struct {
	Parameter       string        `json:"parameter" yaml:"parameter"`
	Initial         float64       `json:"initial" yaml:"initial"`
	ReferenceLength float64       `json:"referenceLength" yaml:"reference_length"` // length at which the bands sit on their centers
	MatchWidth      float64       `json:"matchWidth" yaml:"match_width"`           // detuning scale of dip depth and radiation
	Bands           [2]Resonance  `json:"bands" yaml:"bands"`
	BaselineDB      float64       `json:"baselineDb" yaml:"baseline_db"`
	IsolationDB     float64       `json:"isolationDb" yaml:"isolation_db"`
	StartGHz        float64       `json:"startGhz" yaml:"start_ghz"`
	StopGHz         float64       `json:"stopGhz" yaml:"stop_ghz"`
	Points          int           `json:"points" yaml:"points"`
	EfficiencyN     int           `json:"efficiencyPoints" yaml:"efficiency_points"`
	GainN           int           `json:"gainPoints" yaml:"gain_points"`
	SolveDelay      time.Duration `json:"solveDelay" yaml:"solve_delay"`
}

// DefaultSyntheticConfig returns a 28/38 GHz patch that is best matched at a
// patch length of 10.9 mm.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		Parameter:       "patch_length",
		Initial:         10.7,
		ReferenceLength: 10.9,
		MatchWidth:      0.25,
		Bands: [2]Resonance{
			{CenterGHz: 27.5, DepthDB: -32, WidthGHz: 0.6},
			{CenterGHz: 38, DepthDB: -27, WidthGHz: 0.5},
		},
		BaselineDB:  -2,
		IsolationDB: -24,
		StartGHz:    20,
		StopGHz:     40,
		Points:      1001,
		EfficiencyN: 11,
		GainN:       21,
	}
}

// Validate checks the model parameters.
func (c SyntheticConfig) Validate() error {
	if c.Parameter == "" {
		return fmt.Errorf("synthetic parameter name cannot be empty")
	}
	if !(c.ReferenceLength > 0) || !(c.MatchWidth > 0) {
		return fmt.Errorf("reference length and match width must be positive")
	}
	if !(c.StopGHz > c.StartGHz) {
		return fmt.Errorf("invalid frequency span [%g, %g]", c.StartGHz, c.StopGHz)
	}
	if c.Points < 2 || c.EfficiencyN < 2 || c.GainN < 2 {
		return fmt.Errorf("curves need at least two points")
	}
	for i, b := range c.Bands {
		if !(b.WidthGHz > 0) {
			return fmt.Errorf("band %d width must be positive", i+1)
		}
	}
	return nil
}

var errNotSolved = errors.New("no results: design changed since last solve")

// Synthetic is an in-process sweep.Session backed by a closed-form dual-band
// antenna. Resonances scale inversely with the swept length; dip depth,
// efficiency and gain peak at the reference length.
type Synthetic struct {
	cfg   SyntheticConfig
	paths sweep.ResultPaths

	mu      sync.Mutex
	params  map[string]float64
	built   float64
	dirty   bool
	solved  bool
	saved   float64
	saves   int
	solves  int
	results *results
}

type results struct {
	freq       []float64
	s11, s21   [2][]float64 // re, im
	efficiency [2][]float64 // complex radiation efficiency, re, im
	gain       []float64
}

// NewSynthetic creates a synthetic session serving results under paths.
func NewSynthetic(cfg SyntheticConfig, paths sweep.ResultPaths) (*Synthetic, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Synthetic{
		cfg:    cfg,
		paths:  paths,
		params: map[string]float64{cfg.Parameter: cfg.Initial},
		built:  cfg.Initial,
		saved:  cfg.Initial,
	}, nil
}

// SetParameter implements sweep.Session.
func (s *Synthetic) SetParameter(_ context.Context, name string, value float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.params[name]; !ok {
		return &sweep.ParameterError{Name: name}
	}
	if !(value > 0) {
		return &sweep.ExternalToolError{Op: "store parameter", Err: fmt.Errorf("%s must be positive, got %g", name, value)}
	}
	s.params[name] = value
	s.dirty = true
	s.solved = false
	return nil
}

// Rebuild implements sweep.Session.
func (s *Synthetic) Rebuild(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.built = s.params[s.cfg.Parameter]
	s.dirty = false
	return nil
}

// Save implements sweep.Session.
func (s *Synthetic) Save(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.saved = s.built
	s.saves++
	return nil
}

// Solve implements sweep.Session. It honors ctx while the optional solve
// delay elapses.
func (s *Synthetic) Solve(ctx context.Context) error {
	s.mu.Lock()
	if s.dirty {
		s.mu.Unlock()
		return &sweep.ExternalToolError{Op: "solve", Err: errors.New("geometry not rebuilt after parameter change")}
	}
	length := s.built
	delay := s.cfg.SolveDelay
	s.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return &sweep.ExternalToolError{Op: "solve", Err: ctx.Err()}
		}
	}

	r := s.simulate(length)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.results = r
	s.solved = true
	s.solves++
	slog.Debug("Synthetic solve complete", "parameter", s.cfg.Parameter, "value", length)
	return nil
}

// FetchCurve implements sweep.Session.
func (s *Synthetic) FetchCurve(_ context.Context, path string) (band.ComplexCurve, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.solved {
		return band.ComplexCurve{}, &sweep.ExternalToolError{Op: "fetch " + path, Err: errNotSolved}
	}
	var c [2][]float64
	switch path {
	case s.paths.S11:
		c = s.results.s11
	case s.paths.S21:
		c = s.results.s21
	default:
		return band.ComplexCurve{}, &sweep.ExternalToolError{Op: "fetch " + path, Err: errors.New("no such result")}
	}
	return band.ComplexCurve{
		Freq: append([]float64(nil), s.results.freq...),
		Re:   append([]float64(nil), c[0]...),
		Im:   append([]float64(nil), c[1]...),
	}, nil
}

// FetchSeries implements sweep.Session.
func (s *Synthetic) FetchSeries(_ context.Context, path string) ([]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.solved {
		return nil, &sweep.ExternalToolError{Op: "fetch " + path, Err: errNotSolved}
	}
	switch path {
	case s.paths.Efficiency:
		mag, err := band.Magnitude(s.results.efficiency[0], s.results.efficiency[1])
		if err != nil {
			return nil, &sweep.ExternalToolError{Op: "fetch " + path, Err: err}
		}
		return mag, nil
	case s.paths.Gain:
		return append([]float64(nil), s.results.gain...), nil
	}
	return nil, &sweep.ExternalToolError{Op: "fetch " + path, Err: errors.New("no such result")}
}

// State reports the saved parameter value and how often the design was saved
// and solved.
func (s *Synthetic) State() (saved float64, saves, solves int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saved, s.saves, s.solves
}

// match is 1 at the reference length and decays with detuning.
func (s *Synthetic) match(length float64) float64 {
	d := (length - s.cfg.ReferenceLength) / s.cfg.MatchWidth
	return math.Exp(-d * d)
}

func (s *Synthetic) simulate(length float64) *results {
	cfg := s.cfg
	q := s.match(length)
	scale := cfg.ReferenceLength / length

	freq := band.Linspace(cfg.StartGHz, cfg.StopGHz, cfg.Points)
	r := &results{freq: freq}
	for k := range r.s11 {
		r.s11[k] = make([]float64, len(freq))
		r.s21[k] = make([]float64, len(freq))
	}

	span := cfg.StopGHz - cfg.StartGHz
	for i, f := range freq {
		s11 := cfg.BaselineDB
		for _, b := range cfg.Bands {
			fc := b.CenterGHz * scale
			depth := cfg.BaselineDB + (b.DepthDB-cfg.BaselineDB)*(0.35+0.65*q)
			x := (f - fc) / b.WidthGHz
			s11 = math.Min(s11, cfg.BaselineDB+(depth-cfg.BaselineDB)/(1+x*x))
		}
		s21 := cfg.IsolationDB + 3*math.Sin(2*math.Pi*(f-cfg.StartGHz)/span)

		phase := -2 * math.Pi * (f - cfg.StartGHz) / 4
		setPolar(r.s11, i, s11, phase)
		setPolar(r.s21, i, s21, phase/2)
	}

	eff := sampleSeries(cfg, cfg.EfficiencyN, func(f float64) float64 {
		return 0.74 + 0.16*q - 0.002*math.Abs(f-30)
	})
	r.efficiency = [2][]float64{make([]float64, len(eff)), make([]float64, len(eff))}
	for i, e := range eff {
		phi := math.Pi * float64(i) / float64(len(eff))
		r.efficiency[0][i] = e * math.Cos(phi)
		r.efficiency[1][i] = e * math.Sin(phi)
	}
	r.gain = sampleSeries(cfg, cfg.GainN, func(f float64) float64 {
		return 8.5 + 0.9*q + 0.02*(f-30)
	})
	return r
}

func setPolar(dst [2][]float64, i int, db, phase float64) {
	mag := math.Pow(10, db/20)
	dst[0][i] = mag * math.Cos(phase)
	dst[1][i] = mag * math.Sin(phase)
}

func sampleSeries(cfg SyntheticConfig, n int, fn func(f float64) float64) []float64 {
	grid := band.Linspace(cfg.StartGHz, cfg.StopGHz, n)
	out := make([]float64, n)
	for i, f := range grid {
		out[i] = fn(f)
	}
	return out
}
