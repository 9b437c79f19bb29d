package class

import (
	"fmt"

	"github.com/zclconf/go-cty/cty"
)

// Builder is the mutable view of a class under construction. Preprocessor
// steps write into it; Freeze turns it into the immutable Class.
type Builder struct {
	c      *Class
	frozen bool
}

// NewBuilder starts the construction of the named class.
func NewBuilder(name string) *Builder {
	return &Builder{c: newClass(name)}
}

// Name returns the name of the class under construction.
func (b *Builder) Name() string {
	return b.c.name
}

// SetParent links the class to its superclass.
func (b *Builder) SetParent(p *Class) {
	b.mustBeOpen()
	b.c.parent = p
}

// Parent returns the superclass linked so far, if any.
func (b *Builder) Parent() *Class {
	return b.c.parent
}

// SetMember defines an own member, replacing any previous own definition.
func (b *Builder) SetMember(name string, m Member) {
	b.mustBeOpen()
	if _, exists := b.c.members[name]; !exists {
		b.c.memberOrder = append(b.c.memberOrder, name)
	}
	b.c.members[name] = m
}

// HasOwnMember reports whether the class defines name itself.
func (b *Builder) HasOwnMember(name string) bool {
	_, ok := b.c.members[name]
	return ok
}

// Resolves reports whether name resolves on the class, own or inherited.
func (b *Builder) Resolves(name string) bool {
	_, ok := b.c.Member(name)
	return ok
}

// SetStatic sets an own static.
func (b *Builder) SetStatic(name string, v cty.Value) {
	b.mustBeOpen()
	b.c.statics[name] = v
}

// SetInheritableStatic sets a static that subclasses resolve through the
// parent chain.
func (b *Builder) SetInheritableStatic(name string, v cty.Value) {
	b.mustBeOpen()
	b.c.inheritableStatics[name] = v
}

// SetConfigDefault declares a config key with its default value.
func (b *Builder) SetConfigDefault(key string, v cty.Value) {
	b.mustBeOpen()
	if _, exists := b.c.configDefaults[key]; !exists {
		b.c.configOrder = append(b.c.configOrder, key)
	}
	b.c.configDefaults[key] = v
}

// HasConfig reports whether key is a config key of the class, own or
// inherited.
func (b *Builder) HasConfig(key string) bool {
	_, ok := b.c.ConfigDefault(key)
	return ok
}

// AddMixin stores a composed-in class under a slot name.
func (b *Builder) AddMixin(slot string, m *Class) error {
	b.mustBeOpen()
	if _, exists := b.c.mixins[slot]; exists {
		return fmt.Errorf("class %q: mixin slot %q used twice", b.c.name, slot)
	}
	b.c.mixins[slot] = m
	b.c.mixinOrder = append(b.c.mixinOrder, slot)
	return nil
}

// AddExtendHook registers a hook notified when this class is extended.
func (b *Builder) AddExtendHook(h ExtendHook) {
	b.mustBeOpen()
	b.c.extendHooks = append(b.c.extendHooks, h)
}

// SetRequires records the hard dependency names of the class.
func (b *Builder) SetRequires(names []string) {
	b.mustBeOpen()
	b.c.requires = append([]string(nil), names...)
}

// SetUses records the soft dependency names of the class.
func (b *Builder) SetUses(names []string) {
	b.mustBeOpen()
	b.c.uses = append([]string(nil), names...)
}

// Freeze finishes construction. The builder cannot be used afterwards.
func (b *Builder) Freeze() *Class {
	b.mustBeOpen()
	b.frozen = true
	return b.c
}

func (b *Builder) mustBeOpen() {
	if b.frozen {
		panic(fmt.Sprintf("class %q: builder used after Freeze", b.c.name))
	}
}
