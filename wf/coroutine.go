package wf

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// coroutine is the engine's handle on one running routine goroutine.
//
// The channel discipline preserves generator semantics: instr is
// unbuffered, so the routine blocks at each yield until the engine
// performs its next advance, and the engine observes instructions in
// exactly the order the routine produced them. reply carries the host's
// answer to a request_input back into the routine. done (buffered)
// carries the routine's return value so an abandoned goroutine can
// always finish.
type coroutine struct {
	instr chan Instruction
	reply chan string
	done  chan error

	stop     chan struct{}
	stopOnce sync.Once
}

// startRoutine launches r in its own goroutine and returns the handle.
// Panics inside the routine are recovered and surface as errors on the
// done channel, never crossing into the engine's goroutine.
func startRoutine(ctx context.Context, r Routine, in Input) *coroutine {
	c := &coroutine{
		instr: make(chan Instruction),
		reply: make(chan string),
		done:  make(chan error, 1),
		stop:  make(chan struct{}),
	}
	y := &Yield{co: c, ctx: ctx}
	go func() {
		var err error
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("routine panic: %v", p)
			}
			c.done <- err
		}()
		err = r(ctx, in, y)
	}()
	return c
}

// advance blocks until the routine yields its next instruction or
// returns. finished is true when the routine returned; err is its
// return value (nil for a clean return, ErrRoutineStopped when it
// unwound after being abandoned).
func (c *coroutine) advance() (ins Instruction, finished bool, err error) {
	select {
	case ins = <-c.instr:
		return ins, false, nil
	case err = <-c.done:
		return Instruction{}, true, err
	}
}

// resume delivers the host's reply to a routine suspended in
// RequestInput. The routine is guaranteed to be blocked on the reply
// channel when the engine calls this; the done case covers a routine
// that unwound in between (for example on context cancellation).
func (c *coroutine) resume(value string) {
	select {
	case c.reply <- value:
	case err := <-c.done:
		// Preserve the return value for the next advance.
		c.done <- err
	}
}

// abandon detaches the engine from the coroutine. The routine's next
// (or current) blocking operation returns ErrRoutineStopped and the
// goroutine unwinds; its buffered done send can never block.
func (c *coroutine) abandon() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// send hands an instruction to the engine, blocking until it is
// consumed.
func (c *coroutine) send(ctx context.Context, ins Instruction) error {
	select {
	case c.instr <- ins:
		return nil
	case <-c.stop:
		return ErrRoutineStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// awaitReply blocks until the host's reply is delivered via resume.
func (c *coroutine) awaitReply(ctx context.Context) (string, error) {
	select {
	case v := <-c.reply:
		return v, nil
	case <-c.stop:
		return "", ErrRoutineStopped
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// stopped reports whether err is the unwind sentinel of an abandoned
// routine rather than a real failure.
func stopped(err error) bool {
	return errors.Is(err, ErrRoutineStopped)
}
