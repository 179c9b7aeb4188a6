package wf

import (
	"context"
)

// Input is the structured value a routine receives when its state is
// entered. A fresh Input is built for every entry, including self-loop
// re-entries.
type Input struct {
	// State is the name of the state being entered.
	State string

	// Payload is the carry value attached to the transition that
	// entered this state, or nil. It is the only channel for data to
	// cross a transition; routines must not share mutable state any
	// other way.
	Payload any
}

// Routine is the resumable unit of work bound to a state.
//
// A routine runs as its own goroutine and communicates with the engine
// exclusively through the Yield it receives: every externally visible
// action is an instruction emitted through y, and user input comes back
// as the return value of y.RequestInput. The routine ends by returning.
//
// Transitions are terminal from the routine's point of view: the engine
// applies them the moment they are yielded and abandons the rest of the
// routine, so the idiomatic form is
//
//	return y.Transition("next", payload)
//
// A routine that returns nil without yielding a transition ends its
// machine (equivalent to transitioning to StateEnd). A routine that
// returns a non-nil error (other than ErrRoutineStopped) is reported to
// the host as an error instruction and its machine is popped.
//
// Re-entering a state always instantiates the routine fresh; no
// coroutine is ever reused across entries.
type Routine func(ctx context.Context, in Input, y *Yield) error

// Yield is a routine's side of the instruction protocol. All methods
// suspend the routine until the engine has consumed the instruction;
// RequestInput additionally suspends until the host's reply arrives.
//
// After the engine abandons the routine (its state transitioned or its
// frame was popped), every method returns ErrRoutineStopped; routines
// should propagate it unchanged.
type Yield struct {
	co  *coroutine
	ctx context.Context
}

// Emit yields a host-directed instruction. Engine-internal tags are
// accepted too; prefer the typed methods.
func (y *Yield) Emit(ins Instruction) error {
	return y.co.send(y.ctx, ins)
}

// Notify yields an informational message for the host.
func (y *Yield) Notify(level, message string, payload any) error {
	return y.Emit(Notify(level, message, payload))
}

// Warning yields a non-fatal anomaly report.
func (y *Yield) Warning(message string, payload any) error {
	return y.Emit(Warning(message, payload))
}

// Error yields a routine-level failure report. It does not terminate
// the routine.
func (y *Yield) Error(message string, payload any) error {
	return y.Emit(Error(message, payload))
}

// Debug yields a diagnostic trace. Hosts suppress it when debug mode is
// off.
func (y *Yield) Debug(level, message string, payload any) error {
	return y.Emit(Debug(level, message, payload))
}

// Custom yields a named host side effect.
func (y *Yield) Custom(name string, payload any) error {
	return y.Emit(Custom(name, payload))
}

// RequestInput asks the host for a value and suspends until the reply
// arrives. The reply is the string the host passed to Engine.Reply.
func (y *Yield) RequestInput(query string) (string, error) {
	if err := y.co.send(y.ctx, RequestInput(query)); err != nil {
		return "", err
	}
	return y.co.awaitReply(y.ctx)
}

// Transition requests a transition to target within the current
// machine, carrying payload to the target routine. The engine applies
// it immediately and abandons this routine, so Transition never returns
// nil; return its result.
func (y *Yield) Transition(target string, payload any) error {
	if err := y.co.send(y.ctx, Transition(target, payload)); err != nil {
		return err
	}
	return ErrRoutineStopped
}

// TransitionLabel yields a guard label for graph-driven dispatch; the
// engine picks the outgoing edge whose guard matches. Terminal, like
// Transition.
func (y *Yield) TransitionLabel(label string) error {
	if err := y.co.send(y.ctx, TransitionLabel(label)); err != nil {
		return err
	}
	return ErrRoutineStopped
}

// ParentTransition pops the current sub-machine and continues in the
// parent at target. Terminal, like Transition.
func (y *Yield) ParentTransition(target string) error {
	if err := y.co.send(y.ctx, ParentTransition(target)); err != nil {
		return err
	}
	return ErrRoutineStopped
}
