package wf

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/petarkabashki/workflow-automator/wf/emit"
	"github.com/petarkabashki/workflow-automator/wf/journal"
)

// frame is one entry on the engine's machine stack: a machine, its
// current state, the suspended coroutine handle (created lazily on
// first entry), and the carry value handed to the next routine on
// entry.
type frame struct {
	machine *Machine
	current string
	co      *coroutine
	carry   any

	// subActive is set while a child frame pushed for the current
	// sub-machine state is (or was) on the stack. When control comes
	// back to this frame with current unchanged — the child never
	// redirected the parent — the engine advances past the sub state
	// instead of re-entering it. Any committed transition clears it.
	subActive bool
}

// discard abandons the frame's coroutine, if any. The routine unwinds
// on its next yield; re-entering the state creates a fresh coroutine.
func (f *frame) discard() {
	if f.co != nil {
		f.co.abandon()
		f.co = nil
	}
}

// Engine is the cooperative scheduler at the center of the runtime. It
// owns the machine stack, drives the current state's coroutine,
// consumes transition instructions, and re-emits everything else to the
// host.
//
// The host drives it with the bidirectional Next/Reply protocol:
//
//	eng, err := wf.New(machine)
//	for {
//	    ins, err := eng.Next(ctx)
//	    if errors.Is(err, wf.ErrDone) {
//	        break
//	    }
//	    // perform ins; after a request_input:
//	    // eng.Reply(value)
//	}
//
// Guarantees:
//   - Only host-directed instructions are returned from Next, in the
//     exact order routines produced them.
//   - Transition and parent-transition instructions never reach the
//     host; they mutate engine state and are consumed.
//   - After a request_input the engine suspends until Reply; the value
//     resumes the requesting coroutine.
//   - On normal termination a final notify is delivered, then Next
//     returns ErrDone.
//
// The engine serializes all calls internally, but the protocol is
// inherently single-threaded: one logical host loop per engine.
type Engine struct {
	mu sync.Mutex

	machine *Machine
	opts    Options

	stack       []*frame
	seq         int
	transitions int

	pendingInput bool
	started      bool
	done         bool
	halted       bool
}

// New creates an Engine over machine. The machine is compiled (and
// validated) if it has not been already; structural violations surface
// as a GraphError and no engine is created.
//
// Configuration accepts an Options struct, functional Option values, or
// a mix:
//
//	eng, err := wf.New(machine,
//	    wf.WithMode(wf.ModeGraph),
//	    wf.WithEmitter(emit.NewLogEmitter(os.Stderr, false)),
//	)
func New(machine *Machine, options ...any) (*Engine, error) {
	if machine == nil {
		return nil, &GraphError{Reason: "nil machine"}
	}
	if !machine.compiled {
		if err := machine.Compile(); err != nil {
			return nil, err
		}
	}

	var opts Options
	for _, opt := range options {
		switch v := opt.(type) {
		case Options:
			opts = v
		case Option:
			v(&opts)
		}
	}
	if opts.RunID == "" {
		opts.RunID = newRunID()
	}

	e := &Engine{
		machine: machine,
		opts:    opts,
	}
	e.stack = []*frame{{machine: machine, current: StateStart}}
	return e, nil
}

// newRunID generates a short random run identifier.
func newRunID() string {
	var b [6]byte
	if _, err := rand.Read(b[:]); err != nil {
		return fmt.Sprintf("run-%d", time.Now().UnixNano())
	}
	return "run-" + hex.EncodeToString(b[:])
}

// RunID returns the run identifier stamped on events, metrics, and
// journal records.
func (e *Engine) RunID() string { return e.opts.RunID }

// Machine returns the top-level machine the engine runs.
func (e *Engine) Machine() *Machine { return e.machine }

// Transitions returns the number of transitions committed so far,
// including parent transitions. Hosts use it for transition-bracketed
// output; transitions are not exposed as instructions.
func (e *Engine) Transitions() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.transitions
}

// Depth returns the current machine-stack depth.
func (e *Engine) Depth() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.stack)
}

// Done reports whether the engine has terminated.
func (e *Engine) Done() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.done
}

// Halted reports whether termination happened without the top-level
// machine reaching its end state (routine failure or unresolvable
// transition at depth 0, the step cap, or a top-level parent
// transition). A routine returning without a transition ends its
// machine normally and does not count as a halt.
func (e *Engine) Halted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.halted
}

// Reply supplies the value requested by the last delivered
// request_input instruction and resumes the requesting coroutine. It
// must be called exactly once after each request_input, before the next
// Next; calling it at any other time is a protocol violation.
func (e *Engine) Reply(value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.pendingInput {
		return fmt.Errorf("%w: Reply without pending request_input", ErrProtocolViolation)
	}
	f := e.top()
	if f == nil || f.co == nil {
		return fmt.Errorf("%w: no routine awaiting input", ErrProtocolViolation)
	}
	e.pendingInput = false
	f.co.resume(value)
	return nil
}

// Next advances execution until there is an instruction for the host,
// and returns it. When the top-level machine has terminated, Next
// returns ErrDone (after the terminal notify on normal completion).
// Calling Next while a request_input is unanswered is a protocol
// violation.
func (e *Engine) Next(ctx context.Context) (Instruction, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pendingInput {
		return Instruction{}, fmt.Errorf("%w: Next with unanswered request_input", ErrProtocolViolation)
	}
	if !e.started {
		e.started = true
		e.emit(emit.MsgRunStart, "", nil)
	}

	for {
		if e.done {
			return Instruction{}, ErrDone
		}
		if len(e.stack) == 0 {
			// Halted without reaching the end state: no terminal
			// notify.
			e.done = true
			e.halted = true
			e.emit(emit.MsgRunHalted, "", nil)
			return Instruction{}, ErrDone
		}

		f := e.top()

		if f.current == StateEnd {
			e.pop(f)
			if len(e.stack) == 0 {
				e.done = true
				e.emit(emit.MsgRunComplete, "", nil)
				terminal := Notify("info", "State machine reached '__end__' state.", nil)
				e.deliver(StateEnd, terminal)
				return terminal, nil
			}
			continue
		}

		kind, ok := f.machine.Classify(f.current)
		if !ok {
			// Unreachable for compiled machines; treat as an invalid
			// transition so a misbuilt machine fails loudly instead of
			// spinning.
			ins := e.resolveFailure(f, reasonInvalidTransition, f.current)
			return ins, nil
		}

		switch kind {
		case KindSub:
			if !f.subActive {
				sub := f.machine.Sub(f.current)
				child := &frame{machine: sub, current: StateStart, carry: f.carry}
				f.carry = nil
				f.subActive = true
				e.stack = append(e.stack, child)
				e.emit(emit.MsgFramePush, f.current, nil)
				e.opts.Metrics.setFrameDepth(e.opts.RunID, len(e.stack))
				continue
			}
			// The child left the stack without redirecting this frame
			// (it reached its end state, or was popped on error).
			// Advance past the sub-machine state as if its routine
			// produced no label: follow a sole unconditional edge, end
			// this machine when there is none, refuse to guess among
			// several.
			f.subActive = false
			resolved, errIns, ended := e.resolveByLabel(f, "")
			if errIns != nil {
				return *errIns, nil
			}
			if ended {
				f.current = StateEnd
				continue
			}
			if out, deliverNow := e.commit(f, resolved, nil); deliverNow {
				return out, nil
			}
			continue

		case KindRoutine:
			if f.co == nil {
				r := f.machine.routineFor(f.current)
				if r == nil {
					// In graph-driven mode a state without a routine
					// auto-advances as if its routine produced no
					// label: a sole unconditional edge is followed, no
					// edges ends the machine, anything else is
					// ambiguous.
					if e.opts.Mode == ModeGraph {
						out, deliverNow := e.apply(f, TransitionLabel(""))
						if deliverNow {
							return out, nil
						}
						continue
					}
					ins := e.routineFailure(f, fmt.Errorf("no routine bound to state %q", f.current))
					return ins, nil
				}
				in := Input{State: f.current, Payload: f.carry}
				f.carry = nil
				f.co = startRoutine(ctx, r, in)
				e.emit(emit.MsgStateEnter, f.current, nil)
			}

			started := time.Now()
			ins, finished, err := f.co.advance()
			e.opts.Metrics.observeAdvance(f.current, time.Since(started))

			if finished {
				if err != nil && !stopped(err) {
					out := e.routineFailure(f, err)
					return out, nil
				}
				// A routine returning without a transition ends its
				// machine.
				f.co = nil
				f.current = StateEnd
				continue
			}

			out, deliverNow := e.apply(f, ins)
			if deliverNow {
				return out, nil
			}
			continue

		default:
			// KindTerminal is handled before classification; keep the
			// loop converging regardless.
			f.current = StateEnd
			continue
		}
	}
}

// apply interprets one yielded instruction on frame f. It returns the
// instruction to hand to the host and deliverNow=true, or consumes the
// yield internally and returns deliverNow=false.
func (e *Engine) apply(f *frame, ins Instruction) (Instruction, bool) {
	switch ins.Op {
	case OpTransition:
		f.discard()
		return e.applyTransition(f, ins)

	case OpParentTransition:
		f.discard()
		return e.applyParentTransition(f, ins)

	case OpRequestInput:
		e.pendingInput = true
		e.deliver(f.current, ins)
		return ins, true

	case OpNotify, OpWarning, OpError, OpDebug, OpCustom:
		e.deliver(f.current, ins)
		return ins, true

	default:
		// Unknown tag from a hand-built Instruction: surface as a
		// warning rather than guessing.
		warn := Warning(fmt.Sprintf("state %q yielded unknown instruction tag %q", f.current, ins.Op), nil)
		e.deliver(f.current, warn)
		return warn, true
	}
}

// applyTransition resolves and commits a transition instruction on the
// top frame.
func (e *Engine) applyTransition(f *frame, ins Instruction) (Instruction, bool) {
	var target string

	switch {
	case ins.Target != "":
		// Explicit target. In graph-driven mode this is the override
		// form; in both modes the target only needs to exist.
		if _, ok := f.machine.Classify(ins.Target); !ok {
			return e.resolveFailure(f, reasonInvalidTransition, ins.Target), true
		}
		target = ins.Target

	case e.opts.Mode == ModeGraph:
		resolved, errIns, ended := e.resolveByLabel(f, ins.Label)
		if errIns != nil {
			return *errIns, true
		}
		if ended {
			f.current = StateEnd
			return Instruction{}, false
		}
		target = resolved

	default:
		// Routine-driven transition with no target.
		return e.resolveFailure(f, reasonInvalidTransition, ""), true
	}

	return e.commit(f, target, ins.Payload)
}

// resolveByLabel picks the outgoing edge of f.current whose guard
// matches label. An empty guard is unconditional and matches any
// label; a produced label is matched against guards by trimmed string
// equality, first declared match wins. With no label at all the engine
// only follows a sole unconditional edge — with several candidates it
// refuses to guess — and a state with no outgoing edges simply ends the
// machine.
func (e *Engine) resolveByLabel(f *frame, label string) (target string, errIns *Instruction, ended bool) {
	label = strings.TrimSpace(label)
	succ := f.machine.Successors(f.current)

	if label == "" {
		switch {
		case len(succ) == 0:
			return "", nil, true
		case len(succ) == 1 && strings.TrimSpace(succ[0].Guard) == "":
			return succ[0].Target, nil, false
		default:
			ins := e.resolveFailure(f, reasonAmbiguousTransition, "")
			return "", &ins, false
		}
	}

	for _, edge := range succ {
		guard := strings.TrimSpace(edge.Guard)
		if guard == "" || guard == label {
			return edge.Target, nil, false
		}
	}
	ins := e.resolveFailure(f, reasonNoMatchingEdge, label)
	return "", &ins, false
}

// applyParentTransition pops the current machine and redirects the
// parent.
func (e *Engine) applyParentTransition(f *frame, ins Instruction) (Instruction, bool) {
	e.pop(f)

	if len(e.stack) == 0 {
		// Top-level parent transition: halt with no terminal notify.
		e.done = true
		e.halted = true
		e.emit(emit.MsgRunHalted, f.current, nil)
		return Instruction{}, false
	}

	parent := e.top()
	target := ins.ParentTarget
	if _, ok := parent.machine.Classify(target); !ok {
		// The parent cannot stay pointed at the sub-machine state or
		// it would immediately re-enter the child; halt the parent
		// machine too.
		out := e.resolveFailure(parent, reasonInvalidTransition, target)
		return out, true
	}
	return e.commit(parent, target, nil)
}

// commit finalizes a transition on frame f: counts it, records it, and
// redirects the frame. The max-step guard turns the run into a halt
// when the cap is hit.
func (e *Engine) commit(f *frame, target string, payload any) (Instruction, bool) {
	from := f.current
	f.discard()
	f.current = target
	f.carry = payload
	f.subActive = false
	e.transitions++

	e.seq++
	e.opts.Metrics.incTransition(e.opts.RunID)
	e.emit(emit.MsgTransition, from, map[string]any{"from": from, "to": target})
	e.record(journal.Record{
		Kind:  journal.KindTransition,
		State: from,
		Detail: mustJSON(journal.TransitionDetail{
			From: from,
			To:   target,
		}),
	})

	if e.opts.MaxSteps > 0 && e.transitions >= e.opts.MaxSteps {
		ins := Instruction{
			Op:      OpError,
			State:   target,
			Message: fmt.Sprintf("halting: %v (%d)", ErrMaxStepsExceeded, e.opts.MaxSteps),
		}
		e.deliver(target, ins)
		e.stack = nil
		e.done = true
		e.halted = true
		e.emit(emit.MsgRunHalted, target, map[string]any{"error": ErrMaxStepsExceeded.Error()})
		return ins, true
	}
	return Instruction{}, false
}

// routineFailure reports a routine error to the host and pops the
// failing machine. Errors do not propagate to parent machines; the
// parent resumes at whatever state it held when the child was pushed.
func (e *Engine) routineFailure(f *frame, cause error) Instruction {
	rerr := &RoutineError{State: f.current, Cause: cause}
	ins := Instruction{
		Op:      OpError,
		State:   f.current,
		Message: fmt.Sprintf("error in state %q: %v", f.current, cause),
		Payload: map[string]any{"exception": cause.Error()},
	}
	e.opts.Metrics.incRoutineFailure(e.opts.RunID, f.current)
	e.emit(emit.MsgRoutineError, f.current, map[string]any{"error": rerr.Error()})
	e.deliver(f.current, ins)
	e.pop(f)
	return ins
}

// resolveFailure reports a transition-resolution failure (invalid
// target, ambiguous or unmatched label) and pops the machine.
func (e *Engine) resolveFailure(f *frame, reason, detail string) Instruction {
	msg := fmt.Sprintf("%s in state %q", reason, f.current)
	if detail != "" {
		msg = fmt.Sprintf("%s in state %q: %q", reason, f.current, detail)
	}
	ins := Instruction{Op: OpError, State: f.current, Message: msg}
	e.emit(emit.MsgRoutineError, f.current, map[string]any{"error": msg})
	e.deliver(f.current, ins)
	e.pop(f)
	return ins
}

// top returns the active frame, or nil.
func (e *Engine) top() *frame {
	if len(e.stack) == 0 {
		return nil
	}
	return e.stack[len(e.stack)-1]
}

// pop removes frame f (expected on top) and abandons its coroutine.
func (e *Engine) pop(f *frame) {
	f.discard()
	if n := len(e.stack); n > 0 && e.stack[n-1] == f {
		e.stack = e.stack[:n-1]
	}
	e.emit(emit.MsgFramePop, f.current, nil)
	e.opts.Metrics.setFrameDepth(e.opts.RunID, len(e.stack))
}

// deliver stamps a host-directed instruction into the sequence,
// metrics, and journal.
func (e *Engine) deliver(state string, ins Instruction) {
	e.seq++
	e.opts.Metrics.incInstruction(e.opts.RunID, ins.Op)
	e.emit(emit.MsgInstruction, state, map[string]any{"op": string(ins.Op)})
	e.record(journal.Record{
		Kind:   journal.KindInstruction,
		State:  state,
		Op:     string(ins.Op),
		Detail: mustJSON(ins),
	})
}

// record appends to the journal, if one is configured. The caller has
// already claimed a sequence number by bumping e.seq; instruction
// deliveries and transitions share the one sequence. Append failures
// surface as events; the run continues with a transcript gap.
func (e *Engine) record(rec journal.Record) {
	if e.opts.Journal == nil {
		return
	}
	rec.Seq = e.seq
	rec.At = time.Now()
	if err := e.opts.Journal.Append(context.Background(), e.opts.RunID, rec); err != nil {
		e.emit(emit.MsgJournalError, rec.State, map[string]any{"error": err.Error()})
	}
}

// emit sends an observability event, if an emitter is configured.
func (e *Engine) emit(msg, state string, meta map[string]any) {
	if e.opts.Emitter == nil {
		return
	}
	e.opts.Emitter.Emit(emit.Event{
		RunID: e.opts.RunID,
		Seq:   e.seq,
		State: state,
		Depth: len(e.stack),
		Msg:   msg,
		Meta:  meta,
	})
}

// mustJSON marshals v, falling back to a quoted error string; journal
// detail is diagnostic data and must never fail a run.
func mustJSON(v any) json.RawMessage {
	data, err := json.Marshal(v)
	if err != nil {
		quoted, _ := json.Marshal(fmt.Sprintf("unserializable: %v", err))
		return quoted
	}
	return data
}
