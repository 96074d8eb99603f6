package fuzzy

import (
	"fmt"
	"math"
)

// MembershipFunc maps a crisp value to a membership degree in [0,1].
type MembershipFunc interface {
	Eval(x float64) float64
}

// Gaussian is a symmetric bump centered on Center.
type Gaussian struct {
	Center float64
	Width  float64 // standard deviation, must be > 0
}

// Eval returns exp(-(x-c)^2 / (2w^2)).
func (g Gaussian) Eval(x float64) float64 {
	d := x - g.Center
	return math.Exp(-(d * d) / (2 * g.Width * g.Width))
}

// Sigmoid is a monotonic step with a soft transition around Midpoint.
// Positive steepness rises with x, negative steepness falls.
type Sigmoid struct {
	Midpoint  float64
	Steepness float64 // must be nonzero
}

// Eval returns 1 / (1 + exp(-s(x-m))).
func (s Sigmoid) Eval(x float64) float64 {
	return 1 / (1 + math.Exp(-s.Steepness*(x-s.Midpoint)))
}

// maxOf is the point-wise maximum of several membership functions.
type maxOf []MembershipFunc

// Max combines membership functions with a point-wise maximum (fuzzy OR).
func Max(fs ...MembershipFunc) MembershipFunc {
	return maxOf(fs)
}

func (m maxOf) Eval(x float64) float64 {
	var out float64
	for _, f := range m {
		if v := f.Eval(x); v > out {
			out = v
		}
	}
	return out
}

// Sample evaluates f over every point of u.
func Sample(f MembershipFunc, u Universe) []float64 {
	out := make([]float64, u.Len())
	for i := range out {
		out[i] = clamp01(f.Eval(u.At(i)))
	}
	return out
}

// validateFunc rejects parameterizations that cannot produce a proper degree.
func validateFunc(f MembershipFunc) error {
	switch fn := f.(type) {
	case Gaussian:
		if !(fn.Width > 0) {
			return fmt.Errorf("gaussian width must be positive, got %g", fn.Width)
		}
	case Sigmoid:
		if fn.Steepness == 0 || math.IsNaN(fn.Steepness) {
			return fmt.Errorf("sigmoid steepness must be nonzero")
		}
	case maxOf:
		if len(fn) == 0 {
			return fmt.Errorf("max combinator needs at least one function")
		}
		for _, sub := range fn {
			if err := validateFunc(sub); err != nil {
				return err
			}
		}
	case nil:
		return fmt.Errorf("membership function is nil")
	}
	return nil
}

func clamp01(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
