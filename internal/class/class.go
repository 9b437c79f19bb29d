// Package class holds the runtime class descriptors produced by the factory.
//
// A Class is immutable once built. The factory assembles it through a
// Builder, which is the only mutable view of a class and is frozen exactly
// once. Inheritance is single (Parent), and composed-in classes are kept in
// named mixin slots that are only reachable through qualified access.
package class

import (
	"context"
	"sort"

	"github.com/zclconf/go-cty/cty"
)

// Method is a function member. A nil-valued cty.NilVal result means
// "undefined", which config apply methods use to reject an assignment.
type Method func(ctx context.Context, self *Instance, args ...cty.Value) (cty.Value, error)

// Member is either a data value or a method. Exactly one of the two is set.
type Member struct {
	Value  cty.Value
	Method Method
}

// ValueMember wraps a data value.
func ValueMember(v cty.Value) Member {
	return Member{Value: v}
}

// MethodMember wraps a method.
func MethodMember(m Method) Member {
	return Member{Method: m}
}

// IsMethod reports whether the member is callable.
func (m Member) IsMethod() bool {
	return m.Method != nil
}

// ExtendHook is notified whenever a class is extended. parent is the class
// being extended and child the subclass under construction.
type ExtendHook func(ctx context.Context, parent *Class, child *Builder)

// Class is the immutable descriptor of a constructed class.
type Class struct {
	name    string
	parent  *Class
	foreign bool

	members     map[string]Member
	memberOrder []string

	statics            map[string]cty.Value
	inheritableStatics map[string]cty.Value

	mixins     map[string]*Class
	mixinOrder []string

	configDefaults map[string]cty.Value
	configOrder    []string

	extendHooks []ExtendHook

	requires []string
	uses     []string
}

func newClass(name string) *Class {
	return &Class{
		name:               name,
		members:            make(map[string]Member),
		statics:            make(map[string]cty.Value),
		inheritableStatics: make(map[string]cty.Value),
		mixins:             make(map[string]*Class),
		configDefaults:     make(map[string]cty.Value),
	}
}

// NewForeign creates a class that did not go through the factory. Foreign
// classes have no parent and lack the universal base members, which the
// extend step back-fills into their subclasses.
func NewForeign(name string, members map[string]Member) *Class {
	c := newClass(name)
	c.foreign = true
	names := make([]string, 0, len(members))
	for n := range members {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		c.members[n] = members[n]
		c.memberOrder = append(c.memberOrder, n)
	}
	return c
}

// Name returns the class name.
func (c *Class) Name() string {
	return c.name
}

// Parent returns the superclass, or nil for Base and foreign classes.
func (c *Class) Parent() *Class {
	return c.parent
}

// Foreign reports whether the class was created outside the factory.
func (c *Class) Foreign() bool {
	return c.foreign
}

// IsSubclassOf reports whether name appears in the parent chain.
func (c *Class) IsSubclassOf(name string) bool {
	for p := c.parent; p != nil; p = p.parent {
		if p.name == name {
			return true
		}
	}
	return false
}

// OwnMember returns a member defined directly on the class.
func (c *Class) OwnMember(name string) (Member, bool) {
	m, ok := c.members[name]
	return m, ok
}

// OwnMemberNames returns the names of the members defined directly on the
// class, in definition order.
func (c *Class) OwnMemberNames() []string {
	return append([]string(nil), c.memberOrder...)
}

// Member resolves a member through the parent chain, nearest first.
func (c *Class) Member(name string) (Member, bool) {
	for k := c; k != nil; k = k.parent {
		if m, ok := k.members[name]; ok {
			return m, true
		}
	}
	return Member{}, false
}

// MemberNames returns every resolvable member name, sorted.
func (c *Class) MemberNames() []string {
	seen := make(map[string]struct{})
	for k := c; k != nil; k = k.parent {
		for n := range k.members {
			seen[n] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Static returns an own static. Statics are not inherited.
func (c *Class) Static(name string) (cty.Value, bool) {
	v, ok := c.statics[name]
	return v, ok
}

// StaticNames returns the own static names, sorted.
func (c *Class) StaticNames() []string {
	return sortedKeys(c.statics)
}

// InheritableStatic resolves an inheritable static through the parent chain.
func (c *Class) InheritableStatic(name string) (cty.Value, bool) {
	for k := c; k != nil; k = k.parent {
		if v, ok := k.inheritableStatics[name]; ok {
			return v, true
		}
	}
	return cty.NilVal, false
}

// Mixin returns the class held in the named mixin slot.
func (c *Class) Mixin(slot string) (*Class, bool) {
	m, ok := c.mixins[slot]
	return m, ok
}

// MixinSlots returns the slot names in the order the mixins were applied.
func (c *Class) MixinSlots() []string {
	return append([]string(nil), c.mixinOrder...)
}

// ConfigDefault resolves the default value of a config key through the
// parent chain.
func (c *Class) ConfigDefault(key string) (cty.Value, bool) {
	for k := c; k != nil; k = k.parent {
		if v, ok := k.configDefaults[key]; ok {
			return v, true
		}
	}
	return cty.NilVal, false
}

// ConfigKeys returns every config key visible on the class, sorted.
func (c *Class) ConfigKeys() []string {
	seen := make(map[string]struct{})
	for k := c; k != nil; k = k.parent {
		for key := range k.configDefaults {
			seen[key] = struct{}{}
		}
	}
	keys := make([]string, 0, len(seen))
	for key := range seen {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// ExtendHooks returns the hooks declared directly on this class.
func (c *Class) ExtendHooks() []ExtendHook {
	return append([]ExtendHook(nil), c.extendHooks...)
}

// Requires returns the hard dependency names recorded for the class.
func (c *Class) Requires() []string {
	return append([]string(nil), c.requires...)
}

// Uses returns the soft dependency names recorded for the class.
func (c *Class) Uses() []string {
	return append([]string(nil), c.uses...)
}

func sortedKeys(m map[string]cty.Value) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
