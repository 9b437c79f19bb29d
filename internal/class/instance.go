package class

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/vk/classkit/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

// Accessor builds the conventional name of a config accessor, for example
// Accessor("apply", "value") == "applyValue".
func Accessor(prefix, key string) string {
	r, size := utf8.DecodeRuneInString(key)
	if r == utf8.RuneError {
		return prefix
	}
	return prefix + string(unicode.ToUpper(r)) + key[size:]
}

// Instance is a runtime object of a class. It owns the config slots.
type Instance struct {
	class       *Class
	values      map[string]cty.Value
	initialized map[string]bool
}

// New creates an instance of c. Config slots start uninitialized and are
// filled from their defaults on first Get.
func New(c *Class) *Instance {
	return &Instance{
		class:       c,
		values:      make(map[string]cty.Value),
		initialized: make(map[string]bool),
	}
}

// Class returns the class of the instance.
func (i *Instance) Class() *Class {
	return i.class
}

// Get returns the current value of a config key, initializing it from the
// class default on first access.
func (i *Instance) Get(ctx context.Context, key string) (cty.Value, error) {
	def, ok := i.class.ConfigDefault(key)
	if !ok {
		return cty.NilVal, fmt.Errorf("class %q has no config %q", i.class.name, key)
	}
	if !i.initialized[key] {
		// Flag first: an apply method reading the key must not re-enter.
		i.initialized[key] = true
		ctxlog.FromContext(ctx).Debug("Initializing config slot from default.", "class", i.class.name, "key", key)
		if err := i.assign(ctx, key, def); err != nil {
			return cty.NilVal, err
		}
	}
	v, ok := i.values[key]
	if !ok {
		return cty.NullVal(cty.DynamicPseudoType), nil
	}
	return v, nil
}

// Set assigns a config key. An apply<Key> member may transform the value or
// reject it by returning cty.NilVal. update<Key> runs with (new, old) only
// when the stored value actually changed.
func (i *Instance) Set(ctx context.Context, key string, v cty.Value) error {
	if _, ok := i.class.ConfigDefault(key); !ok {
		return fmt.Errorf("class %q has no config %q", i.class.name, key)
	}
	if v == cty.NilVal {
		v = cty.NullVal(cty.DynamicPseudoType)
	}
	i.initialized[key] = true
	return i.assign(ctx, key, v)
}

func (i *Instance) assign(ctx context.Context, key string, v cty.Value) error {
	old, had := i.values[key]
	if !had {
		old = cty.NullVal(cty.DynamicPseudoType)
	}

	if apply, ok := i.class.Member(Accessor("apply", key)); ok && apply.IsMethod() {
		out, err := apply.Method(ctx, i, v, old)
		if err != nil {
			return fmt.Errorf("%s.%s: %w", i.class.name, Accessor("apply", key), err)
		}
		if out == cty.NilVal {
			ctxlog.FromContext(ctx).Debug("Config assignment rejected by apply.", "class", i.class.name, "key", key)
			if !had {
				// Nothing stored yet: the default stays the slot's value.
				def, _ := i.class.ConfigDefault(key)
				i.values[key] = def
			}
			return nil
		}
		v = out
	}

	i.values[key] = v
	if had && v.RawEquals(old) {
		return nil
	}
	if update, ok := i.class.Member(Accessor("update", key)); ok && update.IsMethod() {
		if _, err := update.Method(ctx, i, v, old); err != nil {
			return fmt.Errorf("%s.%s: %w", i.class.name, Accessor("update", key), err)
		}
	}
	return nil
}

// Call invokes a method member resolved through the class chain.
func (i *Instance) Call(ctx context.Context, name string, args ...cty.Value) (cty.Value, error) {
	m, ok := i.class.Member(name)
	if !ok {
		return cty.NilVal, fmt.Errorf("class %q has no member %q", i.class.name, name)
	}
	if !m.IsMethod() {
		return cty.NilVal, fmt.Errorf("member %s.%s is not a method", i.class.name, name)
	}
	return m.Method(ctx, i, args...)
}

// Property returns a data member resolved through the class chain.
func (i *Instance) Property(name string) (cty.Value, bool) {
	m, ok := i.class.Member(name)
	if !ok || m.IsMethod() {
		return cty.NilVal, false
	}
	return m.Value, true
}

// CallMixin invokes a method through a qualified mixin slot, bypassing any
// member of the same name on the class itself.
func (i *Instance) CallMixin(ctx context.Context, slot, name string, args ...cty.Value) (cty.Value, error) {
	mixin, ok := i.class.Mixin(slot)
	if !ok {
		return cty.NilVal, fmt.Errorf("class %q has no mixin slot %q (slots: %s)",
			i.class.name, slot, strings.Join(i.class.MixinSlots(), ", "))
	}
	m, ok := mixin.Member(name)
	if !ok || !m.IsMethod() {
		return cty.NilVal, fmt.Errorf("mixin %q of class %q has no method %q", slot, i.class.name, name)
	}
	return m.Method(ctx, i, args...)
}
