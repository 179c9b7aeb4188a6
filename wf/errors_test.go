package wf

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestGraphError_Message(t *testing.T) {
	err := &GraphError{State: "__start__", Reason: "missing required state"}
	if !strings.Contains(err.Error(), "invalid graph") || !strings.Contains(err.Error(), "__start__") {
		t.Errorf("Error() = %q", err.Error())
	}

	bare := &GraphError{Reason: "nil machine"}
	if bare.Error() != "invalid graph: nil machine" {
		t.Errorf("Error() = %q", bare.Error())
	}
}

func TestRoutineError_Unwrap(t *testing.T) {
	cause := fmt.Errorf("disk full")
	err := &RoutineError{State: "save", Cause: cause}

	if !errors.Is(err, cause) {
		t.Error("RoutineError does not unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "save") || !strings.Contains(err.Error(), "disk full") {
		t.Errorf("Error() = %q", err.Error())
	}
}

func TestStateKind_String(t *testing.T) {
	cases := map[StateKind]string{
		KindRoutine:  "routine",
		KindSub:      "sub-machine",
		KindTerminal: "terminal",
	}
	for kind, want := range cases {
		if kind.String() != want {
			t.Errorf("%d.String() = %q, want %q", kind, kind.String(), want)
		}
	}
}

func TestMode_String(t *testing.T) {
	if ModeRoutine.String() != "routine-driven" || ModeGraph.String() != "graph-driven" {
		t.Errorf("mode names = %q, %q", ModeRoutine.String(), ModeGraph.String())
	}
}
