package deleter

import (
	"errors"
	"fmt"

	"github.com/xkilldash9x/nr-bulk-delete/internal/nerdgraph"
)

// Status is the terminal state of one entity within a run.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
	StatusDryRun  Status = "DRY_RUN"
)

// Process exit codes.
const (
	ExitOK = 0
	// ExitError covers usage, configuration and search failures, and interruption.
	ExitError = 1
	// ExitDeletionFailures means the run finished but at least one deletion failed.
	ExitDeletionFailures = 2
)

// ErrPartialFailure is returned when one or more deletions failed.
var ErrPartialFailure = errors.New("one or more deletions failed")

// Outcome records what happened to one entity.
type Outcome struct {
	Entity nerdgraph.Entity
	Status Status
	Err    error
}

// Result is the tally of a run.
type Result struct {
	Found    int
	Deleted  int
	Failed   int
	DryRun   bool
	Outcomes []Outcome
	// Interrupted is set when the context was cancelled before every entity was handled.
	Interrupted bool
}

// Attempted is the number of entities a delete call was issued for.
func (r *Result) Attempted() int {
	return r.Deleted + r.Failed
}

// Err maps the tally onto the run's error contract.
func (r *Result) Err() error {
	if r.Failed > 0 {
		return fmt.Errorf("%w: %d of %d", ErrPartialFailure, r.Failed, r.Found)
	}
	return nil
}

// ExitCode returns the process exit code for err as produced by Executor.Run.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrPartialFailure):
		return ExitDeletionFailures
	default:
		return ExitError
	}
}
