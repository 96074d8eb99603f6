package fuzzy

import (
	"errors"
	"fmt"
	"log/slog"
	"math"

	vecmath "github.com/cwbudde/algo-vecmath"
)

// ErrMissingObservation is returned when a rule references a variable that
// has no crisp value in the observations.
var ErrMissingObservation = errors.New("fuzzy: missing observation")

// Observations holds crisp measurements keyed by input variable name, in the
// physical units documented on each variable.
type Observations map[string]float64

// Evaluation is the full outcome of one inference pass.
type Evaluation struct {
	Score     float64            // defuzzified output in [0,1]
	Strengths []float64          // firing strength per rule
	Degrees   map[string]float64 // antecedent membership per "variable[term]"
	Clamped   []string           // variables whose value fell outside the universe
}

// Engine evaluates a rule base with min conjunction, max aggregation and
// centroid defuzzification. The rule base is copied at construction; later changes to the Config do
// not reach the engine.
type Engine struct {
	cfg      *Config
	inputs   map[string]*Variable
	rules    []Rule
	collapse float64
	xs       []float64   // output universe
	heads    [][]float64 // consequent membership per rule
}

// NewEngine validates cfg and precomputes the consequent curves.
func NewEngine(cfg *Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	e := &Engine{
		cfg:      cfg,
		inputs:   make(map[string]*Variable, len(cfg.Inputs)),
		rules:    make([]Rule, len(cfg.Rules)),
		collapse: cfg.CollapseThreshold,
		xs:       cfg.Output.Universe().Values(),
		heads:    make([][]float64, len(cfg.Rules)),
	}
	for _, v := range cfg.Inputs {
		e.inputs[v.Name()] = v
	}
	for i, r := range cfg.Rules {
		e.rules[i] = Rule{
			Antecedents: append([]TermRef(nil), r.Antecedents...),
			Consequent:  r.Consequent,
		}
		mu, err := cfg.Output.Membership(r.Consequent.Term)
		if err != nil {
			return nil, err
		}
		e.heads[i] = mu
	}
	return e, nil
}

// Config returns the configuration the engine was built from. Mutating it has
// no effect on the engine.
func (e *Engine) Config() *Config { return e.cfg }

// Score is Evaluate reduced to the scalar fitness.
func (e *Engine) Score(obs Observations) (float64, error) {
	ev, err := e.Evaluate(obs)
	if err != nil {
		return 0, err
	}
	return ev.Score, nil
}

// Evaluate fires every rule against obs and defuzzifies the aggregate.
// Out-of-universe values are clamped and reported in Evaluation.Clamped.
func (e *Engine) Evaluate(obs Observations) (*Evaluation, error) {
	ev := &Evaluation{
		Strengths: make([]float64, len(e.rules)),
		Degrees:   make(map[string]float64),
	}
	clamped := make(map[string]bool)

	aggregate := make([]float64, len(e.xs))
	for i, r := range e.rules {
		alpha := 1.0
		for _, a := range r.Antecedents {
			x, ok := obs[a.Variable]
			if !ok {
				return nil, fmt.Errorf("%w: %s", ErrMissingObservation, a.Variable)
			}
			deg, err := e.inputs[a.Variable].MembershipAt(a.Term, x)
			if err != nil {
				var de *DomainError
				if !errors.As(err, &de) {
					return nil, err
				}
				if !clamped[a.Variable] {
					clamped[a.Variable] = true
					ev.Clamped = append(ev.Clamped, a.Variable)
					slog.Warn("Observation clamped to universe", "variable", de.Variable, "value", de.Value, "min", de.Min, "max", de.Max)
				}
			}
			ev.Degrees[a.String()] = deg
			alpha = math.Min(alpha, deg)
		}
		if alpha < e.collapse {
			alpha = 0
		}
		ev.Strengths[i] = alpha

		for j, mu := range e.heads[i] {
			if c := math.Min(mu, alpha); c > aggregate[j] {
				aggregate[j] = c
			}
		}
	}

	ev.Score = centroid(e.xs, aggregate)
	return ev, nil
}

// centroid returns sum(x*mu)/sum(mu), or 0 when the set has no area.
func centroid(xs, mu []float64) float64 {
	moments := make([]float64, len(xs))
	vecmath.MulBlock(moments, xs, mu)

	var num, den float64
	for i := range mu {
		num += moments[i]
		den += mu[i]
	}
	if den == 0 {
		return 0
	}
	return clamp01(num / den)
}
