package fuzzy

import "fmt"

// Variable and term names used by the dual-band antenna rule.
const (
	VarFrequency  = "frequency"
	VarReflection = "reflection"
	VarIsolation  = "isolation"
	VarEfficiency = "efficiency"
	VarGain       = "gain"
	VarScore      = "score"

	TermTargeted = "targeted"
	TermGood     = "good"
	TermHigh     = "high"
	TermOptimal  = "optimal"
)

// DefaultCollapseThreshold is the firing strength below which a rule is
// treated as not firing at all.
const DefaultCollapseThreshold = 1e-6

// BandVar returns the per-band variable name, e.g. BandVar(VarGain, 2) = "gain_2".
func BandVar(metric string, band int) string {
	return fmt.Sprintf("%s_%d", metric, band)
}

// AntennaConfig builds the scoring setup for a 28/38 GHz dual-band design:
// both bands must sit on a target frequency with good return loss, high
// isolation, efficiency above 0.8 and gain above 9 dBi.
func AntennaConfig() *Config {
	score, err := NewVariable(VarScore, "fraction", Identity, MustUniverse(0, 1, 0.1),
		Term{Name: TermOptimal, Func: Sigmoid{Midpoint: 0.8, Steepness: 25}},
	)
	if err != nil {
		panic(err)
	}

	cfg := &Config{
		Output:            score,
		CollapseThreshold: DefaultCollapseThreshold,
	}

	var rule Rule
	for band := 1; band <= 2; band++ {
		for _, spec := range antennaInputs() {
			v, err := NewVariable(BandVar(spec.metric, band), spec.unit, spec.transform, spec.universe,
				Term{Name: spec.term, Func: spec.fn},
			)
			if err != nil {
				panic(err)
			}
			cfg.Inputs = append(cfg.Inputs, v)
			rule.Antecedents = append(rule.Antecedents, TermRef{Variable: v.Name(), Term: spec.term})
		}
	}
	rule.Consequent = TermRef{Variable: VarScore, Term: TermOptimal}
	cfg.Rules = []Rule{rule}
	return cfg
}

type inputSpec struct {
	metric    string
	unit      string
	transform Transform
	universe  Universe
	term      string
	fn        MembershipFunc
}

func antennaInputs() []inputSpec {
	return []inputSpec{
		{
			metric:   VarFrequency,
			unit:     "GHz",
			universe: MustUniverse(20, 39, 1),
			term:     TermTargeted,
			fn:       Max(Gaussian{Center: 27.5, Width: 1}, Gaussian{Center: 38, Width: 0.75}),
		},
		{
			// S11 in dB, negated to return loss
			metric:    VarReflection,
			unit:      "dB",
			transform: Negate,
			universe:  MustUniverse(0, 70, 1),
			term:      TermGood,
			fn:        Sigmoid{Midpoint: 18.75, Steepness: 3},
		},
		{
			// S21 in dB, negated to isolation
			metric:    VarIsolation,
			unit:      "dB",
			transform: Negate,
			universe:  MustUniverse(0, 60, 1),
			term:      TermHigh,
			fn:        Sigmoid{Midpoint: 18.75, Steepness: 3},
		},
		{
			metric:   VarEfficiency,
			unit:     "fraction",
			universe: MustUniverse(0.5, 0.95, 0.05),
			term:     TermHigh,
			fn:       Sigmoid{Midpoint: 0.8, Steepness: 50},
		},
		{
			metric:   VarGain,
			unit:     "dBi",
			universe: MustUniverse(4, 9.9, 0.1),
			term:     TermHigh,
			fn:       Sigmoid{Midpoint: 9, Steepness: 50},
		},
	}
}

// BandObservation is the set of five crisp metrics measured for one band.
type BandObservation struct {
	Frequency    float64 // GHz
	ReflectionDB float64 // S11, dB (negative is good)
	IsolationDB  float64 // S21, dB (negative is good)
	Efficiency   float64 // total efficiency, fraction
	GainDB       float64 // max gain, dBi
}

// AntennaObservations lays out two band observations under the variable
// names used by AntennaConfig.
func AntennaObservations(b1, b2 BandObservation) Observations {
	obs := make(Observations, 10)
	for i, b := range []BandObservation{b1, b2} {
		band := i + 1
		obs[BandVar(VarFrequency, band)] = b.Frequency
		obs[BandVar(VarReflection, band)] = b.ReflectionDB
		obs[BandVar(VarIsolation, band)] = b.IsolationDB
		obs[BandVar(VarEfficiency, band)] = b.Efficiency
		obs[BandVar(VarGain, band)] = b.GainDB
	}
	return obs
}
