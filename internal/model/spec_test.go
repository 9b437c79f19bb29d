package model

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zclconf/go-cty/cty"
)

func TestSpec_KeepsInsertionOrder(t *testing.T) {
	s := NewSpec().
		Set("b", cty.True).
		Set(KeyExtend, "Base").
		Set("a", cty.False)
	s.Set("b", cty.False)

	assert.Equal(t, []string{"b", KeyExtend, "a"}, s.Keys())
	assert.Equal(t, 3, s.Len())

	s.Delete(KeyExtend)
	s.Delete("missing")
	assert.Equal(t, []string{"b", "a"}, s.Keys())
	assert.False(t, s.Has(KeyExtend))
}

func TestSpec_CloneIsIndependent(t *testing.T) {
	s := NewSpec().Set("a", cty.True)
	c := s.Clone()
	c.Delete("a")
	assert.True(t, s.Has("a"))
	assert.False(t, c.Has("a"))
}

func TestSpec_StringList(t *testing.T) {
	testCases := []struct {
		name    string
		value   any
		want    []string
		wantErr bool
	}{
		{name: "single name", value: "A", want: []string{"A"}},
		{name: "go slice", value: []string{"A", "B"}, want: []string{"A", "B"}},
		{name: "cty string", value: cty.StringVal("A"), want: []string{"A"}},
		{name: "cty tuple", value: cty.TupleVal([]cty.Value{cty.StringVal("A"), cty.StringVal("B")}), want: []string{"A", "B"}},
		{name: "cty list", value: cty.ListVal([]cty.Value{cty.StringVal("C")}), want: []string{"C"}},
		{name: "cty null", value: cty.NullVal(cty.String), want: nil},
		{name: "number", value: cty.NumberIntVal(1), wantErr: true},
		{name: "mixed tuple", value: cty.TupleVal([]cty.Value{cty.StringVal("A"), cty.True}), wantErr: true},
		{name: "wrong go type", value: 42, wantErr: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			s := NewSpec().Set(KeyRequires, tc.value)
			got, err := s.StringList(KeyRequires)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("StringList() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSpec_ValueMap(t *testing.T) {
	s := NewSpec().Set(KeyConfig, cty.ObjectVal(map[string]cty.Value{
		"width": cty.NumberIntVal(10),
		"title": cty.StringVal("x"),
	}))
	m, keys, err := s.ValueMap(KeyConfig)
	require.NoError(t, err)
	assert.Equal(t, []string{"title", "width"}, keys)
	assert.True(t, m["width"].RawEquals(cty.NumberIntVal(10)))

	s.Set(KeyStatics, cty.StringVal("nope"))
	_, _, err = s.ValueMap(KeyStatics)
	assert.Error(t, err)
}

func TestMixins(t *testing.T) {
	testCases := []struct {
		name  string
		value any
		want  []MixinRef
	}{
		{
			name:  "list form",
			value: []string{"HasSing", "HasDance"},
			want:  []MixinRef{{Name: "HasSing"}, {Name: "HasDance"}},
		},
		{
			name:  "go map form",
			value: map[string]string{"singer": "HasSing", "dancer": "HasDance"},
			want:  []MixinRef{{Slot: "dancer", Name: "HasDance"}, {Slot: "singer", Name: "HasSing"}},
		},
		{
			name:  "cty object form",
			value: cty.ObjectVal(map[string]cty.Value{"singer": cty.StringVal("HasSing")}),
			want:  []MixinRef{{Slot: "singer", Name: "HasSing"}},
		},
		{
			name:  "cty tuple form",
			value: cty.TupleVal([]cty.Value{cty.StringVal("HasSing")}),
			want:  []MixinRef{{Name: "HasSing"}},
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Mixins(NewSpec().Set(KeyMixins, tc.value))
			require.NoError(t, err)
			if diff := cmp.Diff(tc.want, got); diff != "" {
				t.Errorf("Mixins() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
