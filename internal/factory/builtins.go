package factory

import (
	"context"
	"fmt"

	"github.com/vk/classkit/internal/class"
	"github.com/vk/classkit/internal/classerr"
	"github.com/vk/classkit/internal/ctxlog"
	"github.com/vk/classkit/internal/model"
	"github.com/vk/classkit/internal/preprocessor"
	"github.com/zclconf/go-cty/cty"
)

// Resolver looks up finished classes by name.
type Resolver interface {
	Get(name string) (*class.Class, bool)
}

// Built-in preprocessor names.
const (
	StepExtend             = "extend"
	StepStatics            = "statics"
	StepInheritableStatics = "inheritableStatics"
	StepConfig             = "config"
	StepMixins             = "mixins"
)

// MixinIDStatic is the static a mixin may define to choose its slot name.
const MixinIDStatic = "mixinId"

// RegisterBuiltins registers the built-in steps in their conceptual order.
func RegisterBuiltins(chain *preprocessor.Chain, classes Resolver) error {
	steps := []struct {
		name string
		fn   preprocessor.Step
		opts []preprocessor.Option
	}{
		{StepExtend, extendStep(classes), []preprocessor.Option{preprocessor.Always()}},
		{StepStatics, staticsStep, nil},
		{StepInheritableStatics, inheritableStaticsStep, nil},
		{StepConfig, configStep, nil},
		{StepMixins, mixinsStep(classes), nil},
	}
	for _, s := range steps {
		if err := chain.Register(s.name, s.fn, s.opts...); err != nil {
			return err
		}
	}
	return nil
}

func extendStep(classes Resolver) preprocessor.Step {
	return func(ctx context.Context, b *class.Builder, spec *model.Spec, hooks *preprocessor.Hooks) preprocessor.Result {
		parentName, _, err := spec.String(model.KeyExtend)
		if err != nil {
			return preprocessor.Fail(err)
		}
		spec.Delete(model.KeyExtend)

		parent := class.Base
		if parentName != "" && parentName != "Object" && parentName != class.BaseName {
			p, ok := classes.Get(parentName)
			if !ok {
				return preprocessor.Fail(classerr.Configuration("class %q extends undefined class %q", b.Name(), parentName))
			}
			parent = p
		}
		b.SetParent(parent)

		if parent.Foreign() {
			for _, name := range class.Base.OwnMemberNames() {
				if _, ok := parent.Member(name); ok {
					continue
				}
				m, _ := class.Base.OwnMember(name)
				b.SetMember(name, m)
			}
			ctxlog.FromContext(ctx).Debug("Back-filled base members from foreign parent.", "class", b.Name(), "parent", parent.Name())
		}

		// Notify from the root down so more general hooks run first.
		var chain []*class.Class
		for k := parent; k != nil; k = k.Parent() {
			chain = append(chain, k)
		}
		for i := len(chain) - 1; i >= 0; i-- {
			for _, h := range chain[i].ExtendHooks() {
				h(ctx, parent, b)
			}
		}

		if v, ok := spec.Get(model.KeyOnClassExtended); ok {
			switch t := v.(type) {
			case class.ExtendHook:
				b.AddExtendHook(t)
			case []class.ExtendHook:
				for _, h := range t {
					b.AddExtendHook(h)
				}
			default:
				return preprocessor.Fail(fmt.Errorf("property %q: unsupported value of type %T", model.KeyOnClassExtended, v))
			}
			spec.Delete(model.KeyOnClassExtended)
		}
		return preprocessor.Continue()
	}
}

func staticsStep(ctx context.Context, b *class.Builder, spec *model.Spec, hooks *preprocessor.Hooks) preprocessor.Result {
	values, keys, err := spec.ValueMap(model.KeyStatics)
	if err != nil {
		return preprocessor.Fail(err)
	}
	spec.Delete(model.KeyStatics)
	for _, k := range keys {
		b.SetStatic(k, values[k])
	}
	return preprocessor.Continue()
}

func inheritableStaticsStep(ctx context.Context, b *class.Builder, spec *model.Spec, hooks *preprocessor.Hooks) preprocessor.Result {
	values, keys, err := spec.ValueMap(model.KeyInheritableStatics)
	if err != nil {
		return preprocessor.Fail(err)
	}
	spec.Delete(model.KeyInheritableStatics)
	for _, k := range keys {
		b.SetInheritableStatic(k, values[k])
	}
	return preprocessor.Continue()
}

// configStep records defaults and synthesizes get<Key>/set<Key> unless the
// class already resolves them or the spec defines them itself.
func configStep(ctx context.Context, b *class.Builder, spec *model.Spec, hooks *preprocessor.Hooks) preprocessor.Result {
	values, keys, err := spec.ValueMap(model.KeyConfig)
	if err != nil {
		return preprocessor.Fail(err)
	}
	spec.Delete(model.KeyConfig)

	for _, key := range keys {
		b.SetConfigDefault(key, values[key])

		getter, setter := class.Accessor("get", key), class.Accessor("set", key)
		if !spec.Has(getter) && !b.Resolves(getter) {
			b.SetMember(getter, class.MethodMember(getterFor(key)))
		}
		if !spec.Has(setter) && !b.Resolves(setter) {
			b.SetMember(setter, class.MethodMember(setterFor(key)))
		}
	}
	return preprocessor.Continue()
}

func getterFor(key string) class.Method {
	return func(ctx context.Context, self *class.Instance, args ...cty.Value) (cty.Value, error) {
		return self.Get(ctx, key)
	}
}

func setterFor(key string) class.Method {
	return func(ctx context.Context, self *class.Instance, args ...cty.Value) (cty.Value, error) {
		if len(args) != 1 {
			return cty.NilVal, fmt.Errorf("%s expects exactly one argument, got %d", class.Accessor("set", key), len(args))
		}
		return cty.NilVal, self.Set(ctx, key, args[0])
	}
}

// mixinsStep resolves the mixins now and applies them once the class is
// otherwise complete, so own members are known when deciding what to copy.
func mixinsStep(classes Resolver) preprocessor.Step {
	return func(ctx context.Context, b *class.Builder, spec *model.Spec, hooks *preprocessor.Hooks) preprocessor.Result {
		refs, err := model.Mixins(spec)
		if err != nil {
			return preprocessor.Fail(err)
		}
		spec.Delete(model.KeyMixins)

		type resolved struct {
			slot  string
			class *class.Class
		}
		mixins := make([]resolved, 0, len(refs))
		for _, ref := range refs {
			m, ok := classes.Get(ref.Name)
			if !ok {
				return preprocessor.Fail(classerr.Configuration("class %q mixes in undefined class %q", b.Name(), ref.Name))
			}
			slot := ref.Slot
			if slot == "" {
				slot = ref.Name
				if id, ok := m.Static(MixinIDStatic); ok && !id.IsNull() && id.Type() == cty.String {
					slot = id.AsString()
				}
			}
			mixins = append(mixins, resolved{slot: slot, class: m})
		}

		hooks.Finalize(func(ctx context.Context, b *class.Builder) error {
			logger := ctxlog.FromContext(ctx)
			for _, m := range mixins {
				if err := b.AddMixin(m.slot, m.class); err != nil {
					return err
				}
				copied := 0
				for _, name := range m.class.MemberNames() {
					if b.Resolves(name) {
						continue
					}
					member, _ := m.class.Member(name)
					b.SetMember(name, member)
					copied++
				}
				for _, key := range m.class.ConfigKeys() {
					if b.HasConfig(key) {
						continue
					}
					def, _ := m.class.ConfigDefault(key)
					b.SetConfigDefault(key, def)
				}
				logger.Debug("Mixin applied.", "class", b.Name(), "slot", m.slot, "mixin", m.class.Name(), "copied", copied)
			}
			return nil
		})
		return preprocessor.Continue()
	}
}
