package loader

import (
	"context"

	"github.com/vk/classkit/internal/class"
	"github.com/vk/classkit/internal/classerr"
	"github.com/vk/classkit/internal/ctxlog"
	"github.com/vk/classkit/internal/model"
	"github.com/vk/classkit/internal/preprocessor"
)

// StepName is the name the loader step is registered under.
const StepName = "loader"

// Register installs the loader step at the front of chain.
func (l *Loader) Register(chain *preprocessor.Chain) error {
	return chain.Register(StepName, l.step,
		preprocessor.Triggers(model.KeyRequires, model.KeyUses, model.KeyExtend, model.KeyMixins),
		preprocessor.First(),
	)
}

// step records the class's dependencies, checks them for cycles and parks
// the construction until the parent, the mixins and the required classes
// are all defined. Soft dependencies are only collected.
func (l *Loader) step(ctx context.Context, b *class.Builder, spec *model.Spec, hooks *preprocessor.Hooks) preprocessor.Result {
	requires, err := spec.StringList(model.KeyRequires)
	if err != nil {
		return preprocessor.Fail(err)
	}
	uses, err := spec.StringList(model.KeyUses)
	if err != nil {
		return preprocessor.Fail(err)
	}
	spec.Delete(model.KeyRequires)
	spec.Delete(model.KeyUses)
	b.SetRequires(requires)
	b.SetUses(uses)

	var deps []string
	parent, _, err := spec.String(model.KeyExtend)
	if err != nil {
		return preprocessor.Fail(err)
	}
	if parent != "" && parent != "Object" && parent != class.BaseName {
		deps = append(deps, parent)
	}
	mixins, err := model.MixinNames(spec)
	if err != nil {
		return preprocessor.Fail(err)
	}
	deps = append(deps, mixins...)

	expanded, err := l.expand(requires, nil)
	if err != nil {
		return preprocessor.Fail(err)
	}
	deps = append(deps, expanded...)

	name := b.Name()
	l.requires.Declare(name, deps...)
	if path := l.requires.Cycle(name); path != nil {
		l.metrics.CycleDetected()
		return preprocessor.Fail(&classerr.CyclicDependencyError{Path: path})
	}
	l.AddUses(uses...)

	missing := false
	for _, d := range deps {
		if !l.classes.Has(d) {
			missing = true
			break
		}
	}
	if !missing {
		return preprocessor.Continue()
	}

	ctxlog.FromContext(ctx).Debug("Waiting for dependencies.", "class", name, "deps", deps)
	p := preprocessor.NewPending()
	if err := l.Require(ctx, deps, func() { p.Resolve(nil) }); err != nil {
		return preprocessor.Fail(err)
	}
	return preprocessor.Suspend(p)
}
