package fuzzy

import (
	"fmt"
	"math"
)

// MaxUniverseLen bounds the number of samples in a Universe.
const MaxUniverseLen = 1 << 20

// Universe is an evenly spaced, strictly increasing sampling of a domain.
type Universe struct {
	start float64
	step  float64
	n     int
}

// NewUniverse samples [start, stop] with the given step. The stop value is
// included when it lies on the grid.
func NewUniverse(start, stop, step float64) (Universe, error) {
	if !(step > 0) || math.IsInf(step, 0) {
		return Universe{}, fmt.Errorf("universe step must be positive, got %g", step)
	}
	if math.IsNaN(start) || math.IsNaN(stop) || stop < start {
		return Universe{}, fmt.Errorf("invalid universe bounds [%g, %g]", start, stop)
	}
	span := math.Round((stop - start) / step)
	if math.IsNaN(span) || math.IsInf(span, 0) || span >= MaxUniverseLen {
		return Universe{}, fmt.Errorf("universe [%g, %g] step %g exceeds %d samples", start, stop, step, MaxUniverseLen)
	}
	n := int(span) + 1
	return Universe{start: start, step: step, n: n}, nil
}

// MustUniverse is NewUniverse for static configuration; it panics on error.
func MustUniverse(start, stop, step float64) Universe {
	u, err := NewUniverse(start, stop, step)
	if err != nil {
		panic(err)
	}
	return u
}

// Len returns the number of samples.
func (u Universe) Len() int { return u.n }

// Step returns the sample spacing.
func (u Universe) Step() float64 { return u.step }

// At returns the i-th sample.
func (u Universe) At(i int) float64 { return u.start + float64(i)*u.step }

// Min returns the first sample.
func (u Universe) Min() float64 { return u.start }

// Max returns the last sample.
func (u Universe) Max() float64 { return u.At(u.n - 1) }

// Values returns all samples as a new slice.
func (u Universe) Values() []float64 {
	out := make([]float64, u.n)
	for i := range out {
		out[i] = u.At(i)
	}
	return out
}
