package band

import (
	"fmt"
	"math"
)

// DefaultExclusionRadius is the minimum separation between the two selected
// bands, in the curve's frequency unit.
const DefaultExclusionRadius = 2.0

// Band is one resonance picked from a reflection curve.
type Band struct {
	Index        int     `json:"index"`
	Frequency    float64 `json:"frequency"`
	ReflectionDB float64 `json:"reflectionDb"`
	IsolationDB  float64 `json:"isolationDb"`
}

// Selector picks two distinct resonant bands from an S11 curve.
type Selector struct {
	ExclusionRadius float64
}

// NewSelector returns a selector with the given exclusion radius.
func NewSelector(radius float64) Selector {
	return Selector{ExclusionRadius: radius}
}

// Select returns the global S11 minimum as the primary band and the best
// minimum outside the exclusion window as the secondary band. S21 is read at
// the same indices; it is not minimized on its own.
func (s Selector) Select(freq, s11, s21 []float64) (Band, Band, error) {
	if len(freq) == 0 {
		return Band{}, Band{}, &SelectionError{Primary: -1, Reason: "empty curve"}
	}
	if len(s11) != len(freq) || len(s21) != len(freq) {
		return Band{}, Band{}, &SelectionError{
			Primary: -1,
			Reason:  fmt.Sprintf("length mismatch: freq=%d s11=%d s21=%d", len(freq), len(s11), len(s21)),
		}
	}
	if s.ExclusionRadius < 0 {
		return Band{}, Band{}, &SelectionError{Primary: -1, Reason: "negative exclusion radius"}
	}

	p := argmin(s11, func(int) bool { return true })
	if p < 0 {
		return Band{}, Band{}, &SelectionError{Primary: -1, Reason: "no finite reflection sample"}
	}

	fp := freq[p]
	q := argmin(s11, func(j int) bool { return math.Abs(freq[j]-fp) > s.ExclusionRadius })
	if q < 0 {
		return Band{}, Band{}, &SelectionError{
			Primary: p,
			Reason:  fmt.Sprintf("every sample lies within %g of the primary band at %g", s.ExclusionRadius, fp),
		}
	}

	return s.band(freq, s11, s21, p), s.band(freq, s11, s21, q), nil
}

func (s Selector) band(freq, s11, s21 []float64, i int) Band {
	return Band{Index: i, Frequency: freq[i], ReflectionDB: s11[i], IsolationDB: s21[i]}
}

// argmin returns the first index of the smallest eligible value below +Inf,
// or -1 when nothing qualifies.
func argmin(vals []float64, eligible func(int) bool) int {
	best := -1
	min := math.Inf(1)
	for j, v := range vals {
		if !eligible(j) || math.IsNaN(v) {
			continue
		}
		if v < min {
			min = v
			best = j
		}
	}
	return best
}

// SelectionError reports a reflection curve from which two distinct bands
// cannot be extracted.
type SelectionError struct {
	Primary int // index of the primary band, -1 if none was found
	Reason  string
}

func (e *SelectionError) Error() string {
	return "band selection: " + e.Reason
}
