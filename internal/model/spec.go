// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file defines Spec, the ordered property mapping a class is built from.
//
// Why ordered?
//
// Own members are installed in the order they were declared, and the
// preprocessor chain must be deterministic for a given spec. A Go map would
// make both depend on iteration order, so Spec keeps its keys in a slice
// alongside the value map.
//
// Values are untyped on purpose: data members are cty.Value, function
// members are class.Method, and reserved keys hold their structural form
// (string for extend, []string for requires, map[string]cty.Value for
// statics, and so on). The accessors below normalize the accepted shapes.
package model

import (
	"fmt"
	"sort"

	"github.com/zclconf/go-cty/cty"
)

// Reserved spec keys recognized by the built-in preprocessors.
const (
	KeyExtend             = "extend"
	KeyMixins             = "mixins"
	KeyStatics            = "statics"
	KeyInheritableStatics = "inheritableStatics"
	KeyConfig             = "config"
	KeyRequires           = "requires"
	KeyUses               = "uses"
	KeyPreprocessors      = "preprocessors"
	KeyOnClassExtended    = "onClassExtended"
)

// Spec is an ordered mapping of property names to values.
type Spec struct {
	keys   []string
	values map[string]any
}

// NewSpec returns an empty spec.
func NewSpec() *Spec {
	return &Spec{values: make(map[string]any)}
}

// Set assigns a property, keeping its original position when it already
// exists. It returns the spec so literals can be chained.
func (s *Spec) Set(key string, v any) *Spec {
	if _, exists := s.values[key]; !exists {
		s.keys = append(s.keys, key)
	}
	s.values[key] = v
	return s
}

// Get returns the value of a property.
func (s *Spec) Get(key string) (any, bool) {
	v, ok := s.values[key]
	return v, ok
}

// Has reports whether the property is present.
func (s *Spec) Has(key string) bool {
	_, ok := s.values[key]
	return ok
}

// Delete removes a property. Deleting a missing key is a no-op.
func (s *Spec) Delete(key string) {
	if _, ok := s.values[key]; !ok {
		return
	}
	delete(s.values, key)
	for i, k := range s.keys {
		if k == key {
			s.keys = append(s.keys[:i], s.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the property names in insertion order.
func (s *Spec) Keys() []string {
	return append([]string(nil), s.keys...)
}

// Len returns the number of properties.
func (s *Spec) Len() int {
	return len(s.keys)
}

// Clone returns a shallow copy of the spec.
func (s *Spec) Clone() *Spec {
	c := NewSpec()
	for _, k := range s.keys {
		c.Set(k, s.values[k])
	}
	return c
}

// StringList normalizes a name-or-name-list property. Accepted shapes are
// string, []string and a cty string, list or tuple of strings. A missing key
// yields an empty list.
func (s *Spec) StringList(key string) ([]string, error) {
	v, ok := s.values[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch t := v.(type) {
	case string:
		return []string{t}, nil
	case []string:
		return append([]string(nil), t...), nil
	case cty.Value:
		return ctyStrings(key, t)
	default:
		return nil, fmt.Errorf("property %q: expected a name or a list of names, got %T", key, v)
	}
}

// String returns a string property.
func (s *Spec) String(key string) (string, bool, error) {
	v, ok := s.values[key]
	if !ok || v == nil {
		return "", false, nil
	}
	switch t := v.(type) {
	case string:
		return t, true, nil
	case cty.Value:
		if t.IsNull() || t.Type() != cty.String {
			return "", false, fmt.Errorf("property %q: expected a string, got %s", key, t.Type().FriendlyName())
		}
		return t.AsString(), true, nil
	default:
		return "", false, fmt.Errorf("property %q: expected a string, got %T", key, v)
	}
}

// ValueMap returns a mapping property such as statics or config, along with
// its keys in a deterministic order.
func (s *Spec) ValueMap(key string) (map[string]cty.Value, []string, error) {
	v, ok := s.values[key]
	if !ok || v == nil {
		return nil, nil, nil
	}
	var m map[string]cty.Value
	switch t := v.(type) {
	case map[string]cty.Value:
		m = t
	case cty.Value:
		if t.IsNull() {
			return nil, nil, nil
		}
		if !t.Type().IsObjectType() && !t.Type().IsMapType() {
			return nil, nil, fmt.Errorf("property %q: expected an object, got %s", key, t.Type().FriendlyName())
		}
		m = t.AsValueMap()
	default:
		return nil, nil, fmt.Errorf("property %q: expected a mapping, got %T", key, v)
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return m, keys, nil
}

func ctyStrings(key string, v cty.Value) ([]string, error) {
	if v.IsNull() {
		return nil, nil
	}
	ty := v.Type()
	if ty == cty.String {
		return []string{v.AsString()}, nil
	}
	if !ty.IsListType() && !ty.IsTupleType() && !ty.IsSetType() {
		return nil, fmt.Errorf("property %q: expected a list of names, got %s", key, ty.FriendlyName())
	}
	out := make([]string, 0, v.LengthInt())
	for it := v.ElementIterator(); it.Next(); {
		_, elem := it.Element()
		if elem.IsNull() || elem.Type() != cty.String {
			return nil, fmt.Errorf("property %q: list elements must be strings", key)
		}
		out = append(out, elem.AsString())
	}
	return out, nil
}
