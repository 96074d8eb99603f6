package sweep

import (
	"errors"
	"fmt"
)

// ErrGridMismatch is returned when S11 and S21 are sampled on different
// frequency grids.
var ErrGridMismatch = errors.New("sweep: S11 and S21 frequency grids differ")

// Stage identifies where in an iteration a sweep failed.
type Stage string

const (
	StageSetParameter Stage = "set-parameter"
	StageRebuild      Stage = "rebuild"
	StageSave         Stage = "save"
	StageSolve        Stage = "solve"
	StageExtract      Stage = "extract"
	StageScore        Stage = "score"
	StageCommit       Stage = "commit"
)

// StageError is the error returned by a failed sweep. Iteration is -1 for
// failures outside the scan loop (commit).
type StageError struct {
	Stage     Stage
	Iteration int
	Value     float64
	Err       error
}

func (e *StageError) Error() string {
	if e.Iteration < 0 {
		return fmt.Sprintf("sweep %s failed (value %g): %v", e.Stage, e.Value, e.Err)
	}
	return fmt.Sprintf("sweep %s failed at iteration %d (value %g): %v", e.Stage, e.Iteration, e.Value, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
