// Package host implements the driver loop outside the engine: it pulls
// instructions, performs their side effects (console output, user
// input, custom callbacks), and feeds replies back.
package host

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/petarkabashki/workflow-automator/wf"
)

// CustomAction is a host-side callback bound to a custom instruction
// name. The returned error aborts the driver loop, not the engine.
type CustomAction func(name string, payload any) error

// Runner drives an engine to completion over a console-style
// transport. Product output (notifications, prompts, banners) goes to
// the configured writer in the classic runner format; diagnostics go
// to the logrus logger.
type Runner struct {
	eng   *wf.Engine
	in    *bufio.Scanner
	out   io.Writer
	log   *logrus.Logger
	debug bool

	actions     map[string]CustomAction
	transitions int
}

// Option configures a Runner.
type Option func(*Runner)

// WithInput sets the reader user input is solicited from. Default
// os.Stdin.
func WithInput(r io.Reader) Option {
	return func(run *Runner) { run.in = bufio.NewScanner(r) }
}

// WithOutput sets the writer product output goes to. Default
// os.Stdout.
func WithOutput(w io.Writer) Option {
	return func(run *Runner) { run.out = w }
}

// WithDebug turns on delivery of debug instructions; they are
// suppressed otherwise.
func WithDebug(debug bool) Option {
	return func(run *Runner) { run.debug = debug }
}

// WithLogger sets the diagnostics logger. Default: logrus standard
// logger.
func WithLogger(log *logrus.Logger) Option {
	return func(run *Runner) { run.log = log }
}

// WithCustomAction binds a callback to a custom instruction name.
// Unbound customs are announced on the output and otherwise ignored.
func WithCustomAction(name string, fn CustomAction) Option {
	return func(run *Runner) { run.actions[name] = fn }
}

// NewRunner builds a Runner over eng.
func NewRunner(eng *wf.Engine, options ...Option) *Runner {
	r := &Runner{
		eng:     eng,
		in:      bufio.NewScanner(os.Stdin),
		out:     os.Stdout,
		log:     logrus.StandardLogger(),
		actions: make(map[string]CustomAction),
	}
	for _, opt := range options {
		opt(r)
	}
	return r
}

const delimiter = "--------------------------------------------------"

// Run pulls instructions until the engine terminates. It returns nil
// on normal termination (including engine-reported routine errors,
// which are printed, not returned) and an error when the driver itself
// fails: input exhaustion, an engine error other than ErrDone, or a
// broken custom action. Errors writing to the output are not checked
// and do not stop the loop.
func (r *Runner) Run(ctx context.Context) error {
	fmt.Fprintln(r.out, delimiter+" State Machine Execution Started "+delimiter)

	for {
		ins, err := r.eng.Next(ctx)
		if errors.Is(err, wf.ErrDone) {
			fmt.Fprintln(r.out, delimiter+" State Machine Execution Finished "+delimiter)
			return nil
		}
		if err != nil {
			r.abort(err)
			return err
		}

		r.printTransitionBrackets()

		if err := r.perform(ins); err != nil {
			r.abort(err)
			return err
		}
	}
}

// printTransitionBrackets prints a visual separator for every
// transition committed since the last delivered instruction. The
// engine never exposes transitions as instructions; the count is read
// off the engine.
func (r *Runner) printTransitionBrackets() {
	for r.transitions < r.eng.Transitions() {
		r.transitions++
		fmt.Fprintf(r.out, "\n%s  State Transition #%d  %s\n\n",
			strings.Repeat("=", 30), r.transitions, strings.Repeat("=", 30))
	}
}

// perform executes one host-directed instruction.
func (r *Runner) perform(ins wf.Instruction) error {
	switch ins.Op {
	case wf.OpNotify:
		level := strings.ToUpper(defaultLevel(ins.Level, "info"))
		fmt.Fprintf(r.out, "[%s] Notification: %s%s\n", level, ins.Message, payloadSuffix(ins.Payload))

	case wf.OpWarning:
		fmt.Fprintf(r.out, "[WARNING] %s%s\n", ins.Message, payloadSuffix(ins.Payload))

	case wf.OpError:
		fmt.Fprintf(r.out, "[ERROR] %s%s\n", ins.Message, payloadSuffix(ins.Payload))
		r.log.WithField("state", ins.State).Error(ins.Message)

	case wf.OpDebug:
		if r.debug {
			level := strings.ToUpper(defaultLevel(ins.Level, "debug"))
			fmt.Fprintf(r.out, "[DEBUG - %s] %s%s\n", level, ins.Message, payloadSuffix(ins.Payload))
		}

	case wf.OpRequestInput:
		fmt.Fprintf(r.out, "[INPUT REQUEST] %s ", ins.Query)
		if !r.in.Scan() {
			if err := r.in.Err(); err != nil {
				return fmt.Errorf("reading input: %w", err)
			}
			return fmt.Errorf("input stream closed during request %q", ins.Query)
		}
		return r.eng.Reply(r.in.Text())

	case wf.OpCustom:
		fmt.Fprintf(r.out, "[CUSTOM ACTION] Performing '%s'%s\n", ins.Name, payloadSuffix(ins.Payload))
		if fn, ok := r.actions[ins.Name]; ok {
			if err := fn(ins.Name, ins.Payload); err != nil {
				return fmt.Errorf("custom action %q: %w", ins.Name, err)
			}
		} else {
			r.log.WithField("action", ins.Name).Debug("no callback bound for custom action")
		}

	default:
		// Unknown tags are tolerated for forward compatibility.
		fmt.Fprintf(r.out, "[RUNNER] Received instruction: %s%s\n", ins.Op, payloadSuffix(ins.Payload))
	}
	return nil
}

// abort prints the abort banner after a driver-level failure. The
// engine is not resumed.
func (r *Runner) abort(err error) {
	r.log.WithError(err).Error("runner loop failed")
	fmt.Fprintf(r.out, "[RUNNER ERROR] An error occurred in the runner loop: %v\n", err)
	fmt.Fprintln(r.out, delimiter+" State Machine Execution Aborted due to Runner Error "+delimiter)
}

func defaultLevel(level, fallback string) string {
	if level == "" {
		return fallback
	}
	return level
}

// payloadSuffix renders the two-space payload suffix of the classic
// runner format, or nothing when the payload is absent.
func payloadSuffix(payload any) string {
	if payload == nil {
		return ""
	}
	if m, ok := payload.(map[string]any); ok && len(m) == 0 {
		return ""
	}
	return fmt.Sprintf("  Payload:%v", payload)
}
