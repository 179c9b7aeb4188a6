package wf

import (
	"fmt"
	"strings"
)

// Reserved state names. Every machine must declare both: execution
// starts at StateStart and a machine is finished when its current state
// becomes StateEnd.
const (
	StateStart = "__start__"
	StateEnd   = "__end__"
)

// StateKind classifies what a state name resolves to within a Machine.
type StateKind int

const (
	// KindRoutine marks a state bound to a state routine.
	KindRoutine StateKind = iota

	// KindSub marks a state bound to a nested sub-machine. Entering it
	// pushes a new frame starting at the sub-machine's StateStart.
	KindSub

	// KindTerminal marks StateEnd.
	KindTerminal
)

// String returns the classification name.
func (k StateKind) String() string {
	switch k {
	case KindRoutine:
		return "routine"
	case KindSub:
		return "sub-machine"
	case KindTerminal:
		return "terminal"
	default:
		return fmt.Sprintf("StateKind(%d)", int(k))
	}
}

// Edge is one outgoing transition of a state: a target and an optional
// guard label. The empty guard is unconditional. Edges keep declaration
// order; in graph-driven dispatch the first match wins.
type Edge struct {
	// Target is the destination state name.
	Target string

	// Guard is the label matched (after trimming) against the label a
	// routine produces. Empty means unconditional.
	Guard string
}

// stateDef is the definition a state name resolves to: at most one of
// routine or sub is set; a state added with a nil routine has neither
// (StateEnd may have a routine bound; it is inert).
type stateDef struct {
	routine Routine
	sub     *Machine
	data    string
}

// Machine is an immutable mapping from state names to routines or
// nested sub-machines, plus an ordered transition table. Build one with
// NewMachine, declare states with Add/AddSub and edges with Connect,
// then Compile. A compiled Machine never fails at query time for names
// it classified during compilation.
//
// Machines may contain cycles; they are legal and expected for
// interactive retry loops.
type Machine struct {
	states   map[string]*stateDef
	order    []string
	edges    map[string][]Edge
	compiled bool
}

// NewMachine returns an empty, uncompiled machine definition.
func NewMachine() *Machine {
	return &Machine{
		states: make(map[string]*stateDef),
		edges:  make(map[string][]Edge),
	}
}

// Add binds a routine to a state name. Names must be unique within the
// machine; duplicate or empty names are reported at Compile.
func (m *Machine) Add(name string, r Routine) *Machine {
	m.declare(name, &stateDef{routine: r})
	return m
}

// AddSub binds a nested sub-machine to a state name. The sub-machine
// must itself compile; entering the state pushes it onto the engine's
// frame stack at its StateStart.
func (m *Machine) AddSub(name string, sub *Machine) *Machine {
	m.declare(name, &stateDef{sub: sub})
	return m
}

// Connect declares a transition from source to target with an optional
// guard label. Declaration order is preserved per source.
func (m *Machine) Connect(source, target, guard string) *Machine {
	m.edges[source] = append(m.edges[source], Edge{Target: target, Guard: guard})
	return m
}

// SetData attaches an opaque data string to a state (the DOT "data"
// node attribute). Unknown states are reported at Compile time via the
// usual dangling checks only if referenced by edges; data on undeclared
// states is dropped.
func (m *Machine) SetData(name, data string) *Machine {
	if def, ok := m.states[name]; ok {
		def.data = data
	}
	return m
}

func (m *Machine) declare(name string, def *stateDef) {
	if _, dup := m.states[name]; dup {
		// Remember the duplicate; Compile reports it.
		m.order = append(m.order, name)
		return
	}
	m.states[name] = def
	m.order = append(m.order, name)
}

// Compile validates the machine against the structural invariants:
// StateStart and StateEnd are declared, names are unique and non-empty,
// and every edge endpoint refers to a declared state. Nested
// sub-machines are compiled recursively. Returns a GraphError on the
// first violation found.
func (m *Machine) Compile() error {
	seen := make(map[string]bool, len(m.order))
	for _, name := range m.order {
		if strings.TrimSpace(name) == "" {
			return &GraphError{Reason: "empty state name"}
		}
		if seen[name] {
			return &GraphError{State: name, Reason: "duplicate state name"}
		}
		seen[name] = true
	}
	if _, ok := m.states[StateStart]; !ok {
		return &GraphError{State: StateStart, Reason: "missing required state"}
	}
	if _, ok := m.states[StateEnd]; !ok {
		return &GraphError{State: StateEnd, Reason: "missing required state"}
	}
	for source, edges := range m.edges {
		if _, ok := m.states[source]; !ok {
			return &GraphError{State: source, Reason: "transition from undeclared state"}
		}
		for _, e := range edges {
			if _, ok := m.states[e.Target]; !ok {
				return &GraphError{State: e.Target, Reason: fmt.Sprintf("transition target not declared (from %q)", source)}
			}
		}
	}
	for _, name := range m.order {
		def := m.states[name]
		if def.sub != nil && !def.sub.compiled {
			if err := def.sub.Compile(); err != nil {
				return fmt.Errorf("sub-machine %q: %w", name, err)
			}
		}
	}
	m.compiled = true
	return nil
}

// Classify reports what a state name resolves to. StateEnd is always
// terminal, even when a routine is bound to it; the engine never
// advances StateEnd.
func (m *Machine) Classify(name string) (StateKind, bool) {
	if name == StateEnd {
		_, ok := m.states[name]
		return KindTerminal, ok
	}
	def, ok := m.states[name]
	if !ok {
		return 0, false
	}
	if def.sub != nil {
		return KindSub, true
	}
	return KindRoutine, true
}

// Successors returns the outgoing edges of a state in declaration
// order. The returned slice is shared; callers must not modify it. A
// state with no outgoing transitions yields an empty result.
func (m *Machine) Successors(name string) []Edge {
	return m.edges[name]
}

// Sub returns the sub-machine bound to a state, or nil.
func (m *Machine) Sub(name string) *Machine {
	if def, ok := m.states[name]; ok {
		return def.sub
	}
	return nil
}

// Data returns the opaque data string attached to a state, if any.
func (m *Machine) Data(name string) string {
	if def, ok := m.states[name]; ok {
		return def.data
	}
	return ""
}

// States returns the declared state names in declaration order.
func (m *Machine) States() []string {
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out
}

func (m *Machine) routineFor(name string) Routine {
	if def, ok := m.states[name]; ok {
		return def.routine
	}
	return nil
}
