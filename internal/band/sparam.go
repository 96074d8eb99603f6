package band

import (
	"fmt"
	"math"

	vecmath "github.com/cwbudde/algo-vecmath"
)

// ComplexCurve is a dense, frequency-aligned complex result such as an
// S-parameter trace.
type ComplexCurve struct {
	Freq []float64
	Re   []float64
	Im   []float64
}

// Validate checks that all three columns line up and are non-empty.
func (c ComplexCurve) Validate() error {
	if len(c.Freq) == 0 {
		return fmt.Errorf("curve is empty")
	}
	if len(c.Re) != len(c.Freq) || len(c.Im) != len(c.Freq) {
		return fmt.Errorf("curve column length mismatch: freq=%d re=%d im=%d", len(c.Freq), len(c.Re), len(c.Im))
	}
	return nil
}

// DB returns the curve magnitude in decibels.
func (c ComplexCurve) DB() ([]float64, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return ToDB(c.Re, c.Im)
}

// Magnitude computes |re + j*im| element-wise.
func Magnitude(re, im []float64) ([]float64, error) {
	if len(re) != len(im) {
		return nil, fmt.Errorf("real/imaginary length mismatch: %d != %d", len(re), len(im))
	}
	out := make([]float64, len(re))
	vecmath.Magnitude(out, re, im)
	return out, nil
}

// ToDB converts complex samples to 20*log10(|re + j*im|). A zero magnitude
// maps to -Inf.
func ToDB(re, im []float64) ([]float64, error) {
	mag, err := Magnitude(re, im)
	if err != nil {
		return nil, err
	}
	for i, m := range mag {
		mag[i] = 20 * math.Log10(m)
	}
	return mag, nil
}
