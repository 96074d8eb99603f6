package band

import (
	"errors"
	"fmt"
	"sort"
)

// ErrTooFewSamples is returned when a series cannot define a line.
var ErrTooFewSamples = errors.New("band: at least two samples required for interpolation")

// Interpolator is a piecewise-linear estimator that extrapolates linearly
// past both ends instead of clamping.
type Interpolator struct {
	xs []float64
	ys []float64
}

// NewInterpolator builds an interpolator over strictly increasing xs.
func NewInterpolator(xs, ys []float64) (*Interpolator, error) {
	if len(xs) != len(ys) {
		return nil, fmt.Errorf("band: x/y length mismatch: %d != %d", len(xs), len(ys))
	}
	if len(xs) < 2 {
		return nil, ErrTooFewSamples
	}
	for i := 1; i < len(xs); i++ {
		if !(xs[i] > xs[i-1]) {
			return nil, fmt.Errorf("band: x not strictly increasing at index %d", i)
		}
	}
	return &Interpolator{
		xs: append([]float64(nil), xs...),
		ys: append([]float64(nil), ys...),
	}, nil
}

// Regrid spreads an unlabeled sparse series evenly over [start, end], the span
// of the dense reference curve, and returns its interpolator.
func Regrid(start, end float64, values []float64) (*Interpolator, error) {
	if len(values) < 2 {
		return nil, ErrTooFewSamples
	}
	if !(end > start) {
		return nil, fmt.Errorf("band: reference span [%g, %g] is empty", start, end)
	}
	return NewInterpolator(Linspace(start, end, len(values)), values)
}

// At evaluates the estimator at x.
func (ip *Interpolator) At(x float64) float64 {
	n := len(ip.xs)

	// segment index: first sample strictly greater than x, bounded to the
	// first and last segment so outside values extrapolate along them
	i := sort.SearchFloat64s(ip.xs, x)
	if i < n && ip.xs[i] == x {
		return ip.ys[i]
	}
	switch {
	case i <= 0:
		i = 1
	case i >= n:
		i = n - 1
	}

	x0, x1 := ip.xs[i-1], ip.xs[i]
	y0, y1 := ip.ys[i-1], ip.ys[i]
	return y0 + (x-x0)*(y1-y0)/(x1-x0)
}

// Linspace returns n evenly spaced values from start to end inclusive.
func Linspace(start, end float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	out := make([]float64, n)
	if n == 1 {
		out[0] = start
		return out
	}
	step := (end - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = end
	return out
}
