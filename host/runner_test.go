package host

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/petarkabashki/workflow-automator/wf"
)

func quietLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

// askMachine is __start__ -> ask -> done -> __end__ with a request,
// a notify, a debug, and a custom action along the way.
func askMachine() *wf.Machine {
	m := wf.NewMachine()
	m.Add(wf.StateStart, func(ctx context.Context, in wf.Input, y *wf.Yield) error {
		if err := y.Debug("state_enter", "starting up", nil); err != nil {
			return err
		}
		return y.Transition("ask", nil)
	})
	m.Add("ask", func(ctx context.Context, in wf.Input, y *wf.Yield) error {
		name, err := y.RequestInput("name?")
		if err != nil {
			return err
		}
		if err := y.Notify("info", "Hello "+name, nil); err != nil {
			return err
		}
		return y.Transition("done", nil)
	})
	m.Add("done", func(ctx context.Context, in wf.Input, y *wf.Yield) error {
		if err := y.Custom("farewell", map[string]any{"who": "tester"}); err != nil {
			return err
		}
		return y.Transition(wf.StateEnd, nil)
	})
	m.Add(wf.StateEnd, nil)
	return m
}

func TestRunner_FullFlow(t *testing.T) {
	eng, err := wf.New(askMachine())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var out bytes.Buffer
	var customRan bool
	r := NewRunner(eng,
		WithInput(strings.NewReader("Ada\n")),
		WithOutput(&out),
		WithLogger(quietLogger()),
		WithCustomAction("farewell", func(name string, payload any) error {
			customRan = true
			return nil
		}),
	)

	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	text := out.String()
	for _, want := range []string{
		"State Machine Execution Started",
		"[INPUT REQUEST] name?",
		"[INFO] Notification: Hello Ada",
		"[CUSTOM ACTION] Performing 'farewell'",
		"State Machine Execution Finished",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("output missing %q:\n%s", want, text)
		}
	}
	if !customRan {
		t.Error("custom action callback did not run")
	}
	if strings.Contains(text, "starting up") {
		t.Error("debug instruction surfaced with debug mode off")
	}
	if !strings.Contains(text, "State Transition #1") {
		t.Errorf("transition brackets missing:\n%s", text)
	}
}

func TestRunner_DebugMode(t *testing.T) {
	eng, err := wf.New(askMachine())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var out bytes.Buffer
	r := NewRunner(eng,
		WithInput(strings.NewReader("Ada\n")),
		WithOutput(&out),
		WithLogger(quietLogger()),
		WithDebug(true),
	)
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "[DEBUG - STATE_ENTER] starting up") {
		t.Errorf("debug line missing:\n%s", out.String())
	}
}

func TestRunner_ErrorInstructionFormatting(t *testing.T) {
	m := wf.NewMachine()
	m.Add(wf.StateStart, func(ctx context.Context, in wf.Input, y *wf.Yield) error {
		return fmt.Errorf("bad day")
	})
	m.Add(wf.StateEnd, nil)

	eng, err := wf.New(m)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var out bytes.Buffer
	r := NewRunner(eng, WithOutput(&out), WithLogger(quietLogger()))
	if err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !strings.Contains(out.String(), "[ERROR]") || !strings.Contains(out.String(), "bad day") {
		t.Errorf("error banner missing:\n%s", out.String())
	}
}

func TestRunner_InputExhaustionAborts(t *testing.T) {
	eng, err := wf.New(askMachine())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var out bytes.Buffer
	r := NewRunner(eng,
		WithInput(strings.NewReader("")), // closes before the request
		WithOutput(&out),
		WithLogger(quietLogger()),
	)
	if err := r.Run(context.Background()); err == nil {
		t.Fatal("Run succeeded with exhausted input")
	}
	if !strings.Contains(out.String(), "State Machine Execution Aborted due to Runner Error") {
		t.Errorf("abort banner missing:\n%s", out.String())
	}
}

func TestRunner_BrokenCustomActionAborts(t *testing.T) {
	eng, err := wf.New(askMachine())
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	var out bytes.Buffer
	r := NewRunner(eng,
		WithInput(strings.NewReader("Ada\n")),
		WithOutput(&out),
		WithLogger(quietLogger()),
		WithCustomAction("farewell", func(string, any) error {
			return fmt.Errorf("side effect failed")
		}),
	)
	err = r.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "side effect failed") {
		t.Errorf("Run = %v, want custom action failure", err)
	}
}

func TestPayloadSuffix(t *testing.T) {
	if got := payloadSuffix(nil); got != "" {
		t.Errorf("nil payload suffix = %q", got)
	}
	if got := payloadSuffix(map[string]any{}); got != "" {
		t.Errorf("empty map suffix = %q", got)
	}
	if got := payloadSuffix(map[string]any{"k": "v"}); !strings.Contains(got, "Payload:") {
		t.Errorf("suffix = %q", got)
	}
}
