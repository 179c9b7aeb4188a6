// Package wf implements the workflow state-machine runtime: the graph
// model (Machine), the state-routine protocol, and the cooperative
// execution engine that multiplexes routines and mediates every side
// effect through a typed instruction stream.
package wf

// Op is the tag of an Instruction. The set is closed: every value a
// routine can yield is enumerated here, so dispatch switches can be
// checked for exhaustiveness.
type Op string

// Instruction tags.
//
// The first two are engine-internal: they mutate engine state and are
// never delivered to the host. The rest are host-directed and appear on
// the host's instruction stream in the exact order routines produced
// them.
const (
	// OpTransition requests a transition to a named target state within
	// the current machine, optionally carrying a payload for the target
	// routine. In graph-driven mode the target may be left empty, and
	// the Label field then selects an outgoing edge instead.
	OpTransition Op = "transition"

	// OpParentTransition pops the current sub-machine and continues in
	// the parent at the named target state.
	OpParentTransition Op = "parent_transition"

	// OpRequestInput asks the host to solicit a value. The host must
	// answer with Engine.Reply before the next Engine.Next call; the
	// value resumes the requesting routine.
	OpRequestInput Op = "request_input"

	// OpNotify is an informational message for the host.
	OpNotify Op = "notify"

	// OpWarning reports a non-fatal anomaly.
	OpWarning Op = "warning"

	// OpError reports a routine-level failure. It does not by itself
	// terminate the routine; the engine also emits one when a routine
	// panics or returns an error, or when a transition cannot be
	// resolved.
	OpError Op = "error"

	// OpDebug is a diagnostic trace. Hosts suppress it unless debug
	// mode is on.
	OpDebug Op = "debug"

	// OpCustom names an arbitrary host side effect.
	OpCustom Op = "custom"
)

// HostDirected reports whether instructions with this tag are delivered
// to the host. Transition and parent-transition instructions are
// consumed by the engine and never appear on the host stream.
func (op Op) HostDirected() bool {
	switch op {
	case OpTransition, OpParentTransition:
		return false
	default:
		return true
	}
}

// Instruction is the tagged record exchanged between routines, the
// engine, and the host. Op selects which of the remaining fields are
// meaningful; unused fields are zero. The JSON field names form the
// wire format; consumers must tolerate unknown fields and must not rely
// on field order.
type Instruction struct {
	// Op is the instruction tag.
	Op Op `json:"instruction"`

	// Target is the destination state of a transition.
	Target string `json:"next_state,omitempty"`

	// ParentTarget is the destination state, in the parent machine, of
	// a parent transition.
	ParentTarget string `json:"next_state_for_parent,omitempty"`

	// Label is the guard label produced in graph-driven mode. Matched
	// against edge guards by trimmed string equality.
	Label string `json:"label,omitempty"`

	// Query is the prompt of a request_input instruction.
	Query string `json:"query,omitempty"`

	// Message is the text of notify, warning, error, and debug
	// instructions.
	Message string `json:"message,omitempty"`

	// Level qualifies notify and debug instructions ("info",
	// "progress", "state_enter", ...). Free-form.
	Level string `json:"level,omitempty"`

	// Name identifies a custom action.
	Name string `json:"name,omitempty"`

	// State is the state the instruction originated from. Filled by the
	// engine on error instructions it synthesizes; otherwise empty.
	State string `json:"state,omitempty"`

	// Payload is an opaque value attached to the instruction. For
	// transitions it is the carry delivered to the target routine.
	Payload any `json:"payload,omitempty"`
}

// Transition builds a transition instruction to target with an optional
// carry payload.
func Transition(target string, payload any) Instruction {
	return Instruction{Op: OpTransition, Target: target, Payload: payload}
}

// TransitionLabel builds a graph-driven transition instruction carrying
// only a guard label; the engine resolves the target from the machine's
// outgoing edges.
func TransitionLabel(label string) Instruction {
	return Instruction{Op: OpTransition, Label: label}
}

// ParentTransition builds a parent-transition instruction targeting a
// state of the parent machine.
func ParentTransition(target string) Instruction {
	return Instruction{Op: OpParentTransition, ParentTarget: target}
}

// RequestInput builds a request_input instruction with the given prompt.
func RequestInput(query string) Instruction {
	return Instruction{Op: OpRequestInput, Query: query}
}

// Notify builds a notify instruction.
func Notify(level, message string, payload any) Instruction {
	return Instruction{Op: OpNotify, Level: level, Message: message, Payload: payload}
}

// Warning builds a warning instruction.
func Warning(message string, payload any) Instruction {
	return Instruction{Op: OpWarning, Message: message, Payload: payload}
}

// Error builds an error instruction reporting a routine-level failure.
func Error(message string, payload any) Instruction {
	return Instruction{Op: OpError, Message: message, Payload: payload}
}

// Debug builds a debug instruction.
func Debug(level, message string, payload any) Instruction {
	return Instruction{Op: OpDebug, Level: level, Message: message, Payload: payload}
}

// Custom builds a custom action instruction.
func Custom(name string, payload any) Instruction {
	return Instruction{Op: OpCustom, Name: name, Payload: payload}
}
