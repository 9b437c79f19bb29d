// Package preprocessor provides the ordered, pluggable list of named steps a
// class spec is threaded through before the class is usable.
//
// A step either finishes synchronously (Continue), fails (Fail), or parks
// the chain on an explicit Pending value (Suspend) that some later event
// resolves. The chain itself never blocks.
package preprocessor

import (
	"context"
	"slices"

	"github.com/vk/classkit/internal/class"
	"github.com/vk/classkit/internal/classerr"
	"github.com/vk/classkit/internal/model"
)

// Step transforms the class under construction. It may read and delete
// spec keys; a key it deletes is never seen by a later step.
type Step func(ctx context.Context, b *class.Builder, spec *model.Spec, hooks *Hooks) Result

// Preprocessor is a registered step.
type Preprocessor struct {
	Name     string
	Triggers []string
	Always   bool
	Fn       Step
}

// Applies reports whether the step runs for a spec holding the given keys.
func (p *Preprocessor) Applies(spec *model.Spec) bool {
	if p.Always {
		return true
	}
	for _, t := range p.Triggers {
		if spec.Has(t) {
			return true
		}
	}
	return false
}

type position int

const (
	posLast position = iota
	posFirst
	posBefore
	posAfter
)

type registration struct {
	triggers   []string
	always     bool
	pos        position
	relativeTo string
}

// Option customizes a registration.
type Option func(*registration)

// Triggers sets the spec keys that activate the step. The default is the
// step's own name.
func Triggers(keys ...string) Option {
	return func(r *registration) { r.triggers = keys }
}

// Always makes the step run for every spec.
func Always() Option {
	return func(r *registration) { r.always = true }
}

// First inserts the step at the front of the default order.
func First() Option {
	return func(r *registration) { r.pos = posFirst }
}

// Last appends the step to the default order.
func Last() Option {
	return func(r *registration) { r.pos = posLast }
}

// Before inserts the step immediately before another registered step.
func Before(name string) Option {
	return func(r *registration) { r.pos, r.relativeTo = posBefore, name }
}

// After inserts the step immediately after another registered step.
func After(name string) Option {
	return func(r *registration) { r.pos, r.relativeTo = posAfter, name }
}

// Chain holds the registered steps and their default order.
type Chain struct {
	steps map[string]*Preprocessor
	order []string
}

// NewChain returns an empty chain.
func NewChain() *Chain {
	return &Chain{steps: make(map[string]*Preprocessor)}
}

// Register adds a named step and inserts it into the default order.
func (c *Chain) Register(name string, fn Step, opts ...Option) error {
	if _, exists := c.steps[name]; exists {
		return classerr.Configuration("preprocessor %q is already registered", name)
	}
	r := registration{triggers: []string{name}}
	for _, opt := range opts {
		opt(&r)
	}

	idx := len(c.order)
	switch r.pos {
	case posFirst:
		idx = 0
	case posBefore, posAfter:
		at := slices.Index(c.order, r.relativeTo)
		if at < 0 {
			return classerr.Configuration("cannot place preprocessor %q relative to unknown preprocessor %q", name, r.relativeTo)
		}
		idx = at
		if r.pos == posAfter {
			idx++
		}
	}

	c.steps[name] = &Preprocessor{Name: name, Triggers: r.triggers, Always: r.always, Fn: fn}
	c.order = slices.Insert(c.order, idx, name)
	return nil
}

// Names returns the default order.
func (c *Chain) Names() []string {
	return slices.Clone(c.order)
}

// Get returns a registered step.
func (c *Chain) Get(name string) (*Preprocessor, bool) {
	p, ok := c.steps[name]
	return p, ok
}

// Order returns the steps effective for a spec. A non-empty override
// replaces the default order and must name registered steps only.
func (c *Chain) Order(override []string) ([]*Preprocessor, error) {
	names := c.order
	if len(override) > 0 {
		names = override
	}
	out := make([]*Preprocessor, 0, len(names))
	for _, n := range names {
		p, ok := c.steps[n]
		if !ok {
			return nil, classerr.Configuration("unknown preprocessor %q", n)
		}
		out = append(out, p)
	}
	return out, nil
}
