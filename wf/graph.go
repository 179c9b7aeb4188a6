package wf

import (
	"github.com/petarkabashki/workflow-automator/dot"
)

// Registry maps state names to routines. It is built once, alongside
// the machine, and validated against the graph; there is no dynamic
// lookup at run time.
type Registry map[string]Routine

// FromGraph builds a Machine from a parsed graph description and a
// routine registry. Every graph node becomes a state; edges become
// transitions with their labels as guards; node data attributes are
// carried onto the states.
//
// States without a registry entry are legal — in graph-driven mode
// they auto-advance along a sole unconditional edge — except for
// StateStart, which must be bound (or rely on graph-driven
// auto-advance) for the machine to do anything. Structural invariants
// are checked by Compile; the returned machine is compiled.
func FromGraph(g *dot.Graph, routines Registry) (*Machine, error) {
	m := NewMachine()
	for _, n := range g.Nodes {
		m.Add(n.ID, routines[n.ID])
		if n.Data != "" {
			m.SetData(n.ID, n.Data)
		}
	}
	for _, e := range g.Edges {
		m.Connect(e.From, e.To, e.Label)
	}
	if err := m.Compile(); err != nil {
		return nil, err
	}
	return m, nil
}
