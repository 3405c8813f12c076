// Package core holds the committed scheduling state: agents, jobs, and the
// Schedule lock manager that registers and folds in speculative Alternatives.
package core

import "errors"

var (
	// ErrInvalidArgument signals a caller bug such as a malformed job or agent spec.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrIllegalState signals an operation on an object in the wrong state,
	// for example mutating a sealed Alternative.
	ErrIllegalState = errors.New("illegal state")

	// ErrInconsistentAlternative is returned when an Alternative conflicts with
	// the committed state or with another registered Alternative.
	ErrInconsistentAlternative = errors.New("inconsistent alternative")

	// ErrUnknownAgent is returned for agent ids not in the schedule.
	ErrUnknownAgent = errors.New("unknown agent")

	// ErrUnknownJob is returned for job ids not committed to the schedule.
	ErrUnknownJob = errors.New("unknown job")

	// ErrNoFeasiblePlacement is the expected outcome when planning finds no
	// placement. The schedule is left untouched.
	ErrNoFeasiblePlacement = errors.New("no feasible placement")
)
