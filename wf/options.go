package wf

import (
	"github.com/petarkabashki/workflow-automator/wf/emit"
	"github.com/petarkabashki/workflow-automator/wf/journal"
)

// Mode selects who chooses the next state.
type Mode int

const (
	// ModeRoutine (default): routines yield explicit transition
	// targets; the graph's edges are advisory and only the target's
	// existence is validated.
	ModeRoutine Mode = iota

	// ModeGraph: routines yield guard labels; the engine resolves the
	// target from the machine's outgoing edges by trimmed string
	// equality, first match wins.
	ModeGraph
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeRoutine:
		return "routine-driven"
	case ModeGraph:
		return "graph-driven"
	default:
		return "unknown"
	}
}

// Options configures an Engine. Zero values are valid defaults.
type Options struct {
	// Mode selects routine-driven (default) or graph-driven dispatch.
	Mode Mode

	// MaxSteps caps the number of committed transitions. 0 means no
	// limit. Cycles are legal and expected in interactive workflows;
	// use MaxSteps as a guard against retry loops that never exit.
	MaxSteps int

	// RunID identifies the run on events, metrics, and journal
	// records. Generated when empty.
	RunID string

	// Emitter receives observability events. Nil disables emission.
	Emitter emit.Emitter

	// Metrics collects Prometheus metrics. Nil disables collection.
	Metrics *PrometheusMetrics

	// Journal records the run transcript. Nil disables recording.
	Journal journal.Store
}

// Option is a functional option for configuring an Engine. Options can
// be mixed with an Options struct in New; later options override
// earlier ones.
type Option func(*Options)

// WithMode selects the dispatch mode.
func WithMode(m Mode) Option {
	return func(o *Options) { o.Mode = m }
}

// WithMaxSteps caps committed transitions; 0 disables the cap.
func WithMaxSteps(n int) Option {
	return func(o *Options) { o.MaxSteps = n }
}

// WithRunID fixes the run identifier instead of generating one.
func WithRunID(id string) Option {
	return func(o *Options) { o.RunID = id }
}

// WithEmitter installs an observability emitter.
func WithEmitter(e emit.Emitter) Option {
	return func(o *Options) { o.Emitter = e }
}

// WithMetrics installs a Prometheus metrics collector.
func WithMetrics(m *PrometheusMetrics) Option {
	return func(o *Options) { o.Metrics = m }
}

// WithJournal installs a transcript store.
func WithJournal(j journal.Store) Option {
	return func(o *Options) { o.Journal = j }
}
