package emit

import "context"

// Emitter receives observability events from workflow execution.
//
// Implementations must be safe for concurrent use, must not panic, and
// should not block the engine: buffer, drop, or hand off asynchronously
// when the backend is slow. Failures are the emitter's problem — log
// them internally, never crash the run.
type Emitter interface {
	// Emit sends one event to the backend.
	Emit(event Event)

	// EmitBatch sends multiple events in order. Implementations should
	// preserve ordering and handle partial failures gracefully; the
	// returned error is reserved for catastrophic misconfiguration.
	EmitBatch(ctx context.Context, events []Event) error

	// Flush blocks until buffered events are delivered or ctx expires.
	// Call before shutdown to avoid losing the tail of a run. Safe to
	// call repeatedly.
	Flush(ctx context.Context) error
}
