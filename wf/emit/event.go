// Package emit provides the observability event stream for workflow
// execution: a small Event record, an Emitter interface, and backends
// for logging, buffering, and OpenTelemetry tracing.
package emit

// Standard event messages produced by the engine. Backends may receive
// other messages too; the set is open.
const (
	// MsgRunStart marks the first advance of a run.
	MsgRunStart = "run_start"

	// MsgStateEnter marks the instantiation of a state routine.
	MsgStateEnter = "state_enter"

	// MsgTransition marks a committed transition within a machine.
	// Meta carries "from" and "to".
	MsgTransition = "transition"

	// MsgFramePush marks entry into a sub-machine.
	MsgFramePush = "frame_push"

	// MsgFramePop marks a machine leaving the stack, normally or not.
	MsgFramePop = "frame_pop"

	// MsgInstruction marks a host-directed instruction delivery. Meta
	// carries "op".
	MsgInstruction = "instruction"

	// MsgRoutineError marks a routine failure. Meta carries "error".
	MsgRoutineError = "routine_error"

	// MsgRunComplete marks normal termination of the top-level machine.
	MsgRunComplete = "run_complete"

	// MsgRunHalted marks termination without reaching the end state.
	MsgRunHalted = "run_halted"

	// MsgJournalError marks a failed journal append. The run continues;
	// the transcript has a gap. Meta carries "error".
	MsgJournalError = "journal_error"
)

// Event is one observability record from workflow execution. Events are
// a diagnostic side channel: they describe what the engine did (frames
// pushed, transitions committed, instructions delivered) and are
// distinct from the instruction stream the host consumes.
type Event struct {
	// RunID identifies the run that produced this event.
	RunID string

	// Seq is the engine's delivery sequence number at the time of the
	// event. Zero for run-level events emitted before any delivery.
	Seq int

	// State is the state the event concerns. Empty for run-level
	// events.
	State string

	// Depth is the frame-stack depth when the event was produced.
	Depth int

	// Msg names the event (see the Msg constants).
	Msg string

	// Meta carries event-specific structured data. Common keys:
	// "from"/"to" on transitions, "op" on instruction deliveries,
	// "error" on failures.
	Meta map[string]any
}
