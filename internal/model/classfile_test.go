package model

import (
	"context"
	"testing"

	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/classkit/internal/class"
	"github.com/vk/classkit/internal/testutil"
	"github.com/zclconf/go-cty/cty"
)

type fakeLibrary map[string]class.Method

func (l fakeLibrary) Method(name string) (class.Method, bool) {
	m, ok := l[name]
	return m, ok
}

func noop(ctx context.Context, self *class.Instance, args ...cty.Value) (cty.Value, error) {
	return cty.NilVal, nil
}

func parse(t *testing.T, src string, lib MethodLookup) ([]*Definition, error) {
	t.Helper()
	ctx, _ := testutil.Context(t)
	f, diags := hclparse.NewParser().ParseHCL([]byte(src), "test.hcl")
	require.False(t, diags.HasErrors(), diags.Error())
	defs, diags := ParseClassFile(ctx, f, "test.hcl", lib)
	if diags.HasErrors() {
		return nil, diags
	}
	return defs, nil
}

func TestParseClassFile_FullClass(t *testing.T) {
	src := `
class "App.view.Singer" {
  extend   = "App.view.Base"
  requires = ["App.util.Tune"]
  uses     = "App.util.Log"
  mixins   = { singer = "App.mixin.HasSing" }

  statics {
    instances = 0
  }
  inheritable_statics {
    kind = "view"
  }
  config {
    volume = 3
  }
  members {
    title = "singer"
    loud  = true
  }
  method "sing" {
    impl = "print.Log"
  }
}

class "App.util.Tune" {}
`
	defs, err := parse(t, src, fakeLibrary{"print.Log": noop})
	require.NoError(t, err)
	require.Len(t, defs, 2)

	d := defs[0]
	assert.Equal(t, "App.view.Singer", d.Name)
	assert.Equal(t, "test.hcl", d.FSInformation.FilePath)
	assert.Equal(t, []string{
		KeyExtend, KeyRequires, KeyUses, KeyMixins,
		KeyStatics, KeyInheritableStatics, KeyConfig,
		"title", "loud", "sing",
	}, d.Spec.Keys())

	extend, ok, err := d.Spec.String(KeyExtend)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "App.view.Base", extend)

	uses, err := d.Spec.StringList(KeyUses)
	require.NoError(t, err)
	assert.Equal(t, []string{"App.util.Log"}, uses)

	refs, err := Mixins(d.Spec)
	require.NoError(t, err)
	assert.Equal(t, []MixinRef{{Slot: "singer", Name: "App.mixin.HasSing"}}, refs)

	cfg, keys, err := d.Spec.ValueMap(KeyConfig)
	require.NoError(t, err)
	assert.Equal(t, []string{"volume"}, keys)
	assert.True(t, cfg["volume"].RawEquals(cty.NumberIntVal(3)))

	sing, _ := d.Spec.Get("sing")
	assert.IsType(t, class.Method(nil), sing)

	assert.Equal(t, "App.util.Tune", defs[1].Name)
	assert.Equal(t, 0, defs[1].Spec.Len())
}

func TestParseClassFile_Errors(t *testing.T) {
	testCases := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "unknown method implementation",
			src: `class "A" {
  method "run" {
    impl = "nope.Run"
  }
}`,
			want: "Unknown method implementation; Method 'run' refers to 'nope.Run', which is not registered",
		},
		{
			name: "duplicate member",
			src: `class "A" {
  members { run = 1 }
  method "run" { impl = "print.Log" }
}`,
			want: "Duplicate member definition",
		},
		{
			name: "duplicate config block",
			src: `class "A" {
  config { a = 1 }
  config { b = 2 }
}`,
			want: "Duplicate config block",
		},
		{
			name: "unsupported attribute",
			src:  `class "A" { colour = "red" }`,
			want: "Unsupported argument",
		},
		{
			name: "missing label",
			src:  `class { }`,
			want: "Missing name for class",
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := parse(t, tc.src, fakeLibrary{"print.Log": noop})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}
