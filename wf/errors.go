package wf

import (
	"errors"
	"fmt"
)

// ErrDone is returned by Engine.Next after the top-level machine has
// terminated (normally or by halting). Further Next calls keep
// returning it.
var ErrDone = errors.New("workflow terminated")

// ErrMaxStepsExceeded names the condition of reaching the configured
// transition limit. The engine reports it in the message of an error
// instruction and halts the run; Next then returns ErrDone. It guards
// against runaway cycles when a conditional exit is missing or
// misconfigured.
var ErrMaxStepsExceeded = errors.New("execution exceeded maximum transition limit")

// ErrProtocolViolation is returned when the host breaks the Next/Reply
// contract: calling Reply with no pending request_input, or calling
// Next while a request_input is still unanswered.
var ErrProtocolViolation = errors.New("next/reply protocol violation")

// ErrRoutineStopped is returned from Yield methods after the engine has
// abandoned the routine's coroutine (its state transitioned or its
// frame was popped). Cancellation of the routine's context surfaces as
// the context's error instead. Routines should return it unchanged.
var ErrRoutineStopped = errors.New("routine stopped")

// GraphError reports a structural invariant violation found while
// compiling a Machine: missing reserved states, duplicate names,
// dangling transition endpoints. The engine is never constructed over
// an invalid machine.
type GraphError struct {
	// State is the offending state name, when one is identifiable.
	State string

	// Reason describes the violated invariant.
	Reason string
}

// Error implements the error interface.
func (e *GraphError) Error() string {
	if e.State != "" {
		return fmt.Sprintf("invalid graph: %s: %q", e.Reason, e.State)
	}
	return "invalid graph: " + e.Reason
}

// RoutineError wraps a failure raised by a state routine during an
// advance. The engine reports it to the host as an error instruction
// identifying the state, then pops the machine the state belongs to.
type RoutineError struct {
	// State is the state whose routine failed.
	State string

	// Cause is the routine's error.
	Cause error
}

// Error implements the error interface.
func (e *RoutineError) Error() string {
	return fmt.Sprintf("routine %q: %v", e.State, e.Cause)
}

// Unwrap returns the routine's underlying error.
func (e *RoutineError) Unwrap() error {
	return e.Cause
}

// Transition-resolution failure reasons, used in the error instructions
// the engine synthesizes when it cannot commit a requested transition.
const (
	reasonInvalidTransition   = "invalid transition"
	reasonAmbiguousTransition = "ambiguous transition"
	reasonNoMatchingEdge      = "no matching transition"
)
