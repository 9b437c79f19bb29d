package preprocessor

import (
	"context"
	"fmt"

	"github.com/vk/classkit/internal/class"
)

type outcome int

const (
	outcomeContinue outcome = iota
	outcomeSuspend
	outcomeFail
)

// Result is what a step returns: advance, park, or abort.
type Result struct {
	outcome outcome
	pending *Pending
	err     error
}

// Continue advances the chain immediately.
func Continue() Result {
	return Result{outcome: outcomeContinue}
}

// Suspend parks the chain until p is resolved.
func Suspend(p *Pending) Result {
	return Result{outcome: outcomeSuspend, pending: p}
}

// Fail aborts construction.
func Fail(err error) Result {
	return Result{outcome: outcomeFail, err: err}
}

// Suspended returns the pending value and true when the step parked.
func (r Result) Suspended() (*Pending, bool) {
	return r.pending, r.outcome == outcomeSuspend
}

// Err returns the failure, if any.
func (r Result) Err() error {
	if r.outcome == outcomeFail {
		return r.err
	}
	return nil
}

// String implements fmt.Stringer for log output.
func (r Result) String() string {
	switch r.outcome {
	case outcomeSuspend:
		return "suspend"
	case outcomeFail:
		return fmt.Sprintf("fail(%v)", r.err)
	default:
		return "continue"
	}
}

// Pending is an explicit suspension point. Exactly one Resolve settles it;
// the continuation attached with Wait runs once, immediately if the pending
// was already resolved.
type Pending struct {
	settled bool
	err     error
	wait    func(error)
}

// NewPending returns an unresolved pending value.
func NewPending() *Pending {
	return &Pending{}
}

// Resolve settles the pending value. Later calls are ignored.
func (p *Pending) Resolve(err error) {
	if p.settled {
		return
	}
	p.settled = true
	p.err = err
	if w := p.wait; w != nil {
		p.wait = nil
		w(err)
	}
}

// Wait attaches the continuation. Only one continuation may be attached.
func (p *Pending) Wait(fn func(error)) {
	if p.wait != nil {
		panic("preprocessor: continuation attached twice")
	}
	if p.settled {
		fn(p.err)
		return
	}
	p.wait = fn
}

// Settled reports whether Resolve has been called.
func (p *Pending) Settled() bool {
	return p.settled
}

// Hooks lets a step defer work until every step has run.
type Hooks struct {
	finalizers []func(ctx context.Context, b *class.Builder) error
}

// Finalize registers fn to run after the last step, before the class is
// frozen. Finalizers run in registration order.
func (h *Hooks) Finalize(fn func(ctx context.Context, b *class.Builder) error) {
	h.finalizers = append(h.finalizers, fn)
}

// RunFinalizers runs the registered finalizers, stopping at the first error.
func (h *Hooks) RunFinalizers(ctx context.Context, b *class.Builder) error {
	for _, fn := range h.finalizers {
		if err := fn(ctx, b); err != nil {
			return err
		}
	}
	return nil
}
