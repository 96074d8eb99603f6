package opt

import (
	"context"
	"fmt"
	"log/slog"
)

// LinearScan evaluates Count values Start, Start+Step, ... in order and keeps
// the first value whose fitness strictly exceeds every earlier one. Fitness
// starts at zero and the best value at Start, so a scan in which nothing
// scores above zero returns Start.
type LinearScan struct {
	Start float64
	Step  float64
	Count int
}

// NewLinearScan creates a linear scan optimizer
func NewLinearScan(start, step float64, count int) *LinearScan {
	return &LinearScan{Start: start, Step: step, Count: count}
}

// ValueAt returns the i-th candidate value.
func (s *LinearScan) ValueAt(i int) float64 {
	return s.Start + float64(i)*s.Step
}

// Run executes the scan.
func (s *LinearScan) Run(ctx context.Context, eval EvalFunc) (Best, error) {
	if s.Count < 0 {
		return Best{}, fmt.Errorf("scan count cannot be negative: %d", s.Count)
	}

	best := Best{Value: s.Start, Fitness: 0, Index: -1}

	for i := 0; i < s.Count; i++ {
		if err := ctx.Err(); err != nil {
			return Best{}, err
		}

		v := s.ValueAt(i)
		fitness, err := eval(ctx, i, v)
		if err != nil {
			return Best{}, err
		}
		best.Evaluated++

		if fitness > best.Fitness {
			slog.Debug("Scan improvement", "index", i, "value", v, "fitness", fitness, "previous", best.Fitness)
			best.Value = v
			best.Fitness = fitness
			best.Index = i
		}
	}

	return best, nil
}
