// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file normalizes the two accepted shapes of the `mixins` property.
//
// Why two shapes?
//
// A list of names lets the mixin choose its own slot name (its mixinId
// static, falling back to the class name). A named map lets the consuming
// class pick the slot explicitly, which is the only way to compose two
// mixins that would otherwise claim the same slot.
package model

import (
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"
)

// MixinRef is one entry of the mixins property. Slot is empty when the
// consumer used the list form.
type MixinRef struct {
	Slot string
	Name string
}

// Mixins returns the normalized mixin references of a spec. Map-form entries
// are ordered by slot name.
func Mixins(s *Spec) ([]MixinRef, error) {
	v, ok := s.Get(KeyMixins)
	if !ok || v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case []MixinRef:
		return append([]MixinRef(nil), t...), nil
	case map[string]string:
		return refsFromMap(t), nil
	case cty.Value:
		if !t.IsNull() && (t.Type().IsObjectType() || t.Type().IsMapType()) {
			m := make(map[string]string)
			for slot, name := range t.AsValueMap() {
				if name.IsNull() || name.Type() != cty.String {
					return nil, fmt.Errorf("property %q: slot %q must name a class", KeyMixins, slot)
				}
				m[slot] = name.AsString()
			}
			return refsFromMap(m), nil
		}
	}
	names, err := s.StringList(KeyMixins)
	if err != nil {
		return nil, err
	}
	refs := make([]MixinRef, 0, len(names))
	for _, n := range names {
		refs = append(refs, MixinRef{Name: n})
	}
	return refs, nil
}

// MixinNames returns the class names referenced by the mixins property.
func MixinNames(s *Spec) ([]string, error) {
	refs, err := Mixins(s)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(refs))
	for _, r := range refs {
		names = append(names, r.Name)
	}
	return names, nil
}

func refsFromMap(m map[string]string) []MixinRef {
	slots := make([]string, 0, len(m))
	for slot := range m {
		slots = append(slots, slot)
	}
	sort.Strings(slots)
	refs := make([]MixinRef, 0, len(slots))
	for _, slot := range slots {
		refs = append(refs, MixinRef{Slot: slot, Name: m[slot]})
	}
	return refs
}
