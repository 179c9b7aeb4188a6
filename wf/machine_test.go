package wf

import (
	"context"
	"errors"
	"testing"
)

func noopRoutine(ctx context.Context, in Input, y *Yield) error {
	return y.Transition(StateEnd, nil)
}

func TestMachine_Compile(t *testing.T) {
	t.Run("valid machine", func(t *testing.T) {
		m := NewMachine()
		m.Add(StateStart, noopRoutine)
		m.Add("work", noopRoutine)
		m.Add(StateEnd, nil)
		m.Connect(StateStart, "work", "")
		m.Connect("work", StateEnd, "done")

		if err := m.Compile(); err != nil {
			t.Fatalf("Compile: %v", err)
		}
	})

	t.Run("missing start state", func(t *testing.T) {
		m := NewMachine()
		m.Add("work", noopRoutine)
		m.Add(StateEnd, nil)

		err := m.Compile()
		var gerr *GraphError
		if !errors.As(err, &gerr) {
			t.Fatalf("Compile = %v, want GraphError", err)
		}
		if gerr.State != StateStart {
			t.Errorf("GraphError state = %q, want %q", gerr.State, StateStart)
		}
	})

	t.Run("missing end state", func(t *testing.T) {
		m := NewMachine()
		m.Add(StateStart, noopRoutine)

		err := m.Compile()
		var gerr *GraphError
		if !errors.As(err, &gerr) {
			t.Fatalf("Compile = %v, want GraphError", err)
		}
		if gerr.State != StateEnd {
			t.Errorf("GraphError state = %q, want %q", gerr.State, StateEnd)
		}
	})

	t.Run("dangling transition target", func(t *testing.T) {
		m := NewMachine()
		m.Add(StateStart, noopRoutine)
		m.Add(StateEnd, nil)
		m.Connect(StateStart, "ghost", "")

		var gerr *GraphError
		if err := m.Compile(); !errors.As(err, &gerr) {
			t.Fatalf("Compile = %v, want GraphError", err)
		}
	})

	t.Run("transition from undeclared state", func(t *testing.T) {
		m := NewMachine()
		m.Add(StateStart, noopRoutine)
		m.Add(StateEnd, nil)
		m.Connect("ghost", StateEnd, "")

		var gerr *GraphError
		if err := m.Compile(); !errors.As(err, &gerr) {
			t.Fatalf("Compile = %v, want GraphError", err)
		}
	})

	t.Run("duplicate state name", func(t *testing.T) {
		m := NewMachine()
		m.Add(StateStart, noopRoutine)
		m.Add("work", noopRoutine)
		m.Add("work", noopRoutine)
		m.Add(StateEnd, nil)

		var gerr *GraphError
		if err := m.Compile(); !errors.As(err, &gerr) {
			t.Fatalf("Compile = %v, want GraphError", err)
		}
	})

	t.Run("invalid sub-machine is rejected", func(t *testing.T) {
		sub := NewMachine()
		sub.Add(StateStart, noopRoutine)
		// No end state.

		m := NewMachine()
		m.Add(StateStart, noopRoutine)
		m.AddSub("child", sub)
		m.Add(StateEnd, nil)

		if err := m.Compile(); err == nil {
			t.Fatal("Compile accepted machine with invalid sub-machine")
		}
	})

	t.Run("cycles are legal", func(t *testing.T) {
		m := NewMachine()
		m.Add(StateStart, noopRoutine)
		m.Add("a", noopRoutine)
		m.Add("b", noopRoutine)
		m.Add(StateEnd, nil)
		m.Connect(StateStart, "a", "")
		m.Connect("a", "b", "")
		m.Connect("b", "a", "retry")
		m.Connect("b", StateEnd, "done")

		if err := m.Compile(); err != nil {
			t.Fatalf("Compile rejected cyclic graph: %v", err)
		}
	})
}

func TestMachine_Classify(t *testing.T) {
	sub := NewMachine()
	sub.Add(StateStart, noopRoutine)
	sub.Add(StateEnd, nil)

	m := NewMachine()
	m.Add(StateStart, noopRoutine)
	m.AddSub("nested", sub)
	m.Add(StateEnd, nil)
	if err := m.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}

	cases := []struct {
		name string
		want StateKind
		ok   bool
	}{
		{StateStart, KindRoutine, true},
		{"nested", KindSub, true},
		{StateEnd, KindTerminal, true},
		{"missing", 0, false},
	}
	for _, tc := range cases {
		kind, ok := m.Classify(tc.name)
		if ok != tc.ok {
			t.Errorf("Classify(%q) ok = %v, want %v", tc.name, ok, tc.ok)
			continue
		}
		if ok && kind != tc.want {
			t.Errorf("Classify(%q) = %v, want %v", tc.name, kind, tc.want)
		}
	}
}

func TestMachine_SuccessorsKeepDeclarationOrder(t *testing.T) {
	m := NewMachine()
	m.Add(StateStart, noopRoutine)
	m.Add("a", noopRoutine)
	m.Add("b", noopRoutine)
	m.Add("c", noopRoutine)
	m.Add(StateEnd, nil)
	m.Connect(StateStart, "b", "second")
	m.Connect(StateStart, "a", "first")
	m.Connect(StateStart, "c", "")
	if err := m.Compile(); err != nil {
		t.Fatalf("Compile: %v", err)
	}

	succ := m.Successors(StateStart)
	want := []Edge{{"b", "second"}, {"a", "first"}, {"c", ""}}
	if len(succ) != len(want) {
		t.Fatalf("successors = %v, want %v", succ, want)
	}
	for i := range want {
		if succ[i] != want[i] {
			t.Errorf("successors[%d] = %v, want %v", i, succ[i], want[i])
		}
	}

	if got := m.Successors("a"); len(got) != 0 {
		t.Errorf("Successors(a) = %v, want empty", got)
	}
}

func TestMachine_Data(t *testing.T) {
	m := NewMachine()
	m.Add(StateStart, noopRoutine)
	m.Add(StateEnd, nil)
	m.SetData(StateStart, `{"kind":"entry"}`)

	if got := m.Data(StateStart); got != `{"kind":"entry"}` {
		t.Errorf("Data = %q", got)
	}
	if got := m.Data(StateEnd); got != "" {
		t.Errorf("Data on plain state = %q, want empty", got)
	}
}
