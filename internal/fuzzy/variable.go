package fuzzy

import (
	"fmt"
	"math"
	"sort"
)

// Transform converts a physical measurement into the variable's axis.
// After the transform, larger values are always more desirable.
type Transform int

const (
	// Identity feeds the measurement unchanged (efficiency, gain, frequency).
	Identity Transform = iota
	// Negate flips the sign, turning a dB loss into a positive margin.
	Negate
)

func (t Transform) apply(x float64) float64 {
	if t == Negate {
		return -x
	}
	return x
}

func (t Transform) String() string {
	if t == Negate {
		return "negate"
	}
	return "identity"
}

// Term names a membership function on a variable.
type Term struct {
	Name string
	Func MembershipFunc
}

// Variable is a linguistic variable: a named axis with precomputed terms.
// It is immutable once built.
type Variable struct {
	name      string
	unit      string
	transform Transform
	universe  Universe
	terms     map[string][]float64
}

// NewVariable samples every term over the universe. Term names must be unique.
func NewVariable(name, unit string, transform Transform, u Universe, terms ...Term) (*Variable, error) {
	if name == "" {
		return nil, fmt.Errorf("variable name cannot be empty")
	}
	if u.Len() < 1 {
		return nil, fmt.Errorf("variable %s: empty universe", name)
	}
	if len(terms) == 0 {
		return nil, fmt.Errorf("variable %s: at least one term required", name)
	}

	v := &Variable{
		name:      name,
		unit:      unit,
		transform: transform,
		universe:  u,
		terms:     make(map[string][]float64, len(terms)),
	}
	for _, t := range terms {
		if t.Name == "" {
			return nil, fmt.Errorf("variable %s: term name cannot be empty", name)
		}
		if _, dup := v.terms[t.Name]; dup {
			return nil, fmt.Errorf("variable %s: duplicate term %q", name, t.Name)
		}
		if err := validateFunc(t.Func); err != nil {
			return nil, fmt.Errorf("variable %s term %s: %w", name, t.Name, err)
		}
		v.terms[t.Name] = Sample(t.Func, u)
	}
	return v, nil
}

// Name returns the variable name.
func (v *Variable) Name() string { return v.name }

// Unit describes the physical unit expected by MembershipAt.
func (v *Variable) Unit() string { return v.unit }

// Transform returns the conversion applied before lookup.
func (v *Variable) Transform() Transform { return v.transform }

// Universe returns the sampling grid.
func (v *Variable) Universe() Universe { return v.universe }

// Terms lists term names in sorted order.
func (v *Variable) Terms() []string {
	names := make([]string, 0, len(v.terms))
	for name := range v.terms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Membership returns a copy of the sampled membership array of a term.
func (v *Variable) Membership(term string) ([]float64, error) {
	mu, ok := v.terms[term]
	if !ok {
		return nil, fmt.Errorf("variable %s has no term %q", v.name, term)
	}
	return append([]float64(nil), mu...), nil
}

// MembershipAt returns the degree to which a measurement belongs to term.
// The measurement is transformed first, then interpolated between the two
// bracketing universe samples.
//
// Values up to one step past the universe edge are clamped silently. Values
// further out are clamped as well, but a *DomainError is returned together
// with the clamped degree so callers can report it.
func (v *Variable) MembershipAt(term string, measured float64) (float64, error) {
	mu, ok := v.terms[term]
	if !ok {
		return 0, fmt.Errorf("variable %s has no term %q", v.name, term)
	}
	if math.IsNaN(measured) {
		return 0, fmt.Errorf("variable %s: measurement is NaN", v.name)
	}

	x := v.transform.apply(measured)
	u := v.universe

	var domainErr error
	lo, hi := u.Min(), u.Max()
	if x < lo-u.Step() || x > hi+u.Step() {
		domainErr = &DomainError{Variable: v.name, Value: x, Min: lo, Max: hi}
	}

	switch {
	case x <= lo:
		return mu[0], domainErr
	case x >= hi:
		return mu[len(mu)-1], domainErr
	}

	pos := (x - lo) / u.Step()
	i := int(math.Floor(pos))
	if i >= len(mu)-1 {
		return mu[len(mu)-1], nil
	}
	frac := pos - float64(i)
	return mu[i] + frac*(mu[i+1]-mu[i]), nil
}

// DomainError reports a transformed value outside a variable's universe by
// more than one step. It is recoverable: the membership was clamped to the edge.
type DomainError struct {
	Variable string
	Value    float64
	Min, Max float64
}

func (e *DomainError) Error() string {
	return fmt.Sprintf("fuzzy: %s value %g outside universe [%g, %g], clamped", e.Variable, e.Value, e.Min, e.Max)
}
