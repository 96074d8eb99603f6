package sweep

import (
	"context"
	"fmt"

	"github.com/rj-04/mimotune/internal/band"
)

// Session is the narrow view of an electromagnetic design tool that a sweep
// needs. A session holds one mutable design, so calls must not overlap.
//
// Error conventions:
//   - SetParameter returns *ParameterError for an unknown parameter name
//   - Rebuild, Save and Solve return *ExternalToolError on tool failures
//   - Fetch methods return *ExternalToolError when a result is unavailable
type Session interface {
	// SetParameter stores a named design parameter.
	SetParameter(ctx context.Context, name string, value float64) error

	// Rebuild regenerates the geometry from the current parameters.
	Rebuild(ctx context.Context) error

	// Save persists the design.
	Save(ctx context.Context) error

	// Solve runs the simulation and blocks until results are available or
	// ctx is done.
	Solve(ctx context.Context) error

	// FetchCurve returns a dense, frequency-aligned complex result.
	FetchCurve(ctx context.Context, path string) (band.ComplexCurve, error)

	// FetchSeries returns a sparse real-valued result without frequency labels.
	FetchSeries(ctx context.Context, path string) ([]float64, error)
}

// ParameterError reports an unknown design parameter.
type ParameterError struct {
	Name string
}

func (e *ParameterError) Error() string {
	return "unknown design parameter: " + e.Name
}

// ExternalToolError wraps a failure inside the simulation tool.
type ExternalToolError struct {
	Op  string
	Err error
}

func (e *ExternalToolError) Error() string {
	if e.Err == nil {
		return "external tool: " + e.Op + " failed"
	}
	return fmt.Sprintf("external tool: %s failed: %v", e.Op, e.Err)
}

func (e *ExternalToolError) Unwrap() error {
	return e.Err
}

// ResultPaths names the result tree entries a sweep reads after each solve.
type ResultPaths struct {
	S11        string `json:"s11" yaml:"s11"`
	S21        string `json:"s21" yaml:"s21"`
	Efficiency string `json:"efficiency" yaml:"efficiency"`
	Gain       string `json:"gain" yaml:"gain"`
}

// DefaultResultPaths returns the result tree locations of a two-port MIMO
// project.
func DefaultResultPaths() ResultPaths {
	return ResultPaths{
		S11:        `1D Results\S-Parameters\S1,1`,
		S21:        `1D Results\S-Parameters\S2,1`,
		Efficiency: `1D Results\Efficiencies\Tot. Efficiency [1]`,
		Gain:       `Tables\1D Results\Max Gain over Frequency`,
	}
}
