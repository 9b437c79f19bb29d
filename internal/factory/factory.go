// Package factory turns class specs into finished classes by threading them
// through a preprocessor chain.
package factory

import (
	"context"
	"fmt"
	"time"

	"github.com/vk/classkit/internal/class"
	"github.com/vk/classkit/internal/ctxlog"
	"github.com/vk/classkit/internal/model"
	"github.com/vk/classkit/internal/preprocessor"
	"github.com/zclconf/go-cty/cty"
)

// Done receives the outcome of a construction: the finished class, or the
// error that aborted it.
type Done func(c *class.Class, err error)

// Factory drives specs through a chain.
type Factory struct {
	chain *preprocessor.Chain
}

// New returns a factory bound to chain.
func New(chain *preprocessor.Chain) *Factory {
	return &Factory{chain: chain}
}

// Chain returns the chain the factory runs.
func (f *Factory) Chain() *preprocessor.Chain {
	return f.chain
}

// construction is the resumable state of one Create call.
type construction struct {
	name    string
	spec    *model.Spec
	builder *class.Builder
	hooks   *preprocessor.Hooks
	steps   []*preprocessor.Preprocessor
	next    int
	started time.Time
	done    Done
}

// Create builds the class described by spec. done is called exactly once,
// synchronously when no step suspends, otherwise when the last suspension
// is resolved.
func (f *Factory) Create(ctx context.Context, name string, spec *model.Spec, done Done) {
	logger := ctxlog.FromContext(ctx)

	override, err := spec.StringList(model.KeyPreprocessors)
	if err != nil {
		done(nil, fmt.Errorf("class %q: %w", name, err))
		return
	}
	spec.Delete(model.KeyPreprocessors)

	steps, err := f.chain.Order(override)
	if err != nil {
		done(nil, fmt.Errorf("class %q: %w", name, err))
		return
	}
	logger.Debug("Creating class.", "class", name, "steps", len(steps), "keys", spec.Keys())

	c := &construction{
		name:    name,
		spec:    spec,
		builder: class.NewBuilder(name),
		hooks:   &preprocessor.Hooks{},
		steps:   steps,
		started: time.Now(),
		done:    done,
	}
	c.advance(ctx)
}

func (c *construction) advance(ctx context.Context) {
	logger := ctxlog.FromContext(ctx).With("class", c.name)
	for c.next < len(c.steps) {
		p := c.steps[c.next]
		c.next++
		if !p.Applies(c.spec) {
			continue
		}

		res := p.Fn(ctx, c.builder, c.spec, c.hooks)
		logger.Debug("Preprocessor ran.", "preprocessor", p.Name, "result", res.String())
		if err := res.Err(); err != nil {
			c.done(nil, fmt.Errorf("class %q: preprocessor %q: %w", c.name, p.Name, err))
			return
		}
		if pending, ok := res.Suspended(); ok {
			pending.Wait(func(err error) {
				if err != nil {
					c.done(nil, fmt.Errorf("class %q: %w", c.name, err))
					return
				}
				c.advance(ctx)
			})
			return
		}
	}
	c.finish(ctx)
}

// finish installs the remaining spec keys as own members, runs the
// finalizers and freezes the class.
func (c *construction) finish(ctx context.Context) {
	if c.builder.Parent() == nil {
		c.builder.SetParent(class.Base)
	}

	for _, key := range c.spec.Keys() {
		v, _ := c.spec.Get(key)
		if reserved(key) {
			ctxlog.FromContext(ctx).Debug("Reserved property left unconsumed.", "class", c.name, "property", key)
			continue
		}
		m, err := toMember(v)
		if err != nil {
			c.done(nil, fmt.Errorf("class %q: member %q: %w", c.name, key, err))
			return
		}
		c.builder.SetMember(key, m)
	}

	if err := c.hooks.RunFinalizers(ctx, c.builder); err != nil {
		c.done(nil, fmt.Errorf("class %q: %w", c.name, err))
		return
	}

	cls := c.builder.Freeze()
	ctxlog.FromContext(ctx).Debug("Class created.", "class", c.name, "duration", time.Since(c.started))
	c.done(cls, nil)
}

func reserved(key string) bool {
	switch key {
	case model.KeyExtend, model.KeyMixins, model.KeyStatics, model.KeyInheritableStatics,
		model.KeyConfig, model.KeyRequires, model.KeyUses, model.KeyPreprocessors, model.KeyOnClassExtended:
		return true
	}
	return false
}

func toMember(v any) (class.Member, error) {
	switch t := v.(type) {
	case class.Member:
		return t, nil
	case class.Method:
		return class.MethodMember(t), nil
	case func(context.Context, *class.Instance, ...cty.Value) (cty.Value, error):
		return class.MethodMember(t), nil
	case cty.Value:
		return class.ValueMember(t), nil
	default:
		return class.Member{}, fmt.Errorf("unsupported member value of type %T", v)
	}
}
