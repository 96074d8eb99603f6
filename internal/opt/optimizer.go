package opt

import "context"

// EvalFunc scores the candidate value at position i of the search.
// Higher fitness is better. A non-nil error aborts the search.
type EvalFunc func(ctx context.Context, i int, value float64) (float64, error)

// Best is the outcome of a search.
type Best struct {
	Value     float64 // best parameter value
	Fitness   float64 // fitness of Value
	Index     int     // evaluation index that produced Value, -1 if none improved
	Evaluated int     // number of completed evaluations
}

// Optimizer defines a search over a single scalar parameter
type Optimizer interface {
	// Run evaluates candidates and returns the best one.
	// The returned error is the first evaluation error; Best is then undefined.
	Run(ctx context.Context, eval EvalFunc) (Best, error)
}
