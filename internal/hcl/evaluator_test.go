package hcl

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/classkit/internal/class"
	"github.com/vk/classkit/internal/model"
	"github.com/vk/classkit/internal/registry"
	"github.com/vk/classkit/internal/testutil"
	"github.com/zclconf/go-cty/cty"
)

type recordingDefiner struct {
	names []string
	specs map[string]*model.Spec
	err   error
}

func (d *recordingDefiner) Define(ctx context.Context, name string, spec *model.Spec, onCreated func(*class.Class)) error {
	if d.err != nil {
		return d.err
	}
	if d.specs == nil {
		d.specs = make(map[string]*model.Spec)
	}
	d.names = append(d.names, name)
	d.specs[name] = spec
	return nil
}

func newLibrary() *registry.Library {
	lib := registry.NewLibrary()
	lib.RegisterMethod("test.Echo", func(ctx context.Context, self *class.Instance, args ...cty.Value) (cty.Value, error) {
		return cty.StringVal("echo"), nil
	})
	return lib
}

func TestEvaluate_DefinesClassesInSourceOrder(t *testing.T) {
	ctx, _ := testutil.Context(t)
	d := &recordingDefiner{}
	e := NewEvaluator(d, newLibrary())

	src := `
class "App.Second" {
  extend   = "App.First"
  requires = ["App.util.*"]
  method "speak" {
    impl = "test.Echo"
  }
}

class "App.First" {
  config {
    size = 2
  }
}
`
	require.NoError(t, e.Evaluate(ctx, "app.hcl", []byte(src)))
	if diff := cmp.Diff([]string{"App.Second", "App.First"}, d.names); diff != "" {
		t.Errorf("defined classes mismatch (-want +got):\n%s", diff)
	}

	second := d.specs["App.Second"]
	parent, ok, err := second.String(model.KeyExtend)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "App.First", parent)
	reqs, err := second.StringList(model.KeyRequires)
	require.NoError(t, err)
	assert.Equal(t, []string{"App.util.*"}, reqs)
	assert.True(t, second.Has("speak"))

	values, keys, err := d.specs["App.First"].ValueMap(model.KeyConfig)
	require.NoError(t, err)
	assert.Equal(t, []string{"size"}, keys)
	assert.True(t, values["size"].RawEquals(cty.NumberIntVal(2)))
}

func TestEvaluate_Errors(t *testing.T) {
	testCases := []struct {
		name   string
		src    string
		defErr error
		errMsg string
	}{
		{name: "syntax error", src: `class "A" {`, errMsg: "failed to parse"},
		{name: "unknown method", src: "class \"A\" {\n  method \"m\" {\n    impl = \"nope.Missing\"\n  }\n}\n", errMsg: "Method 'm' refers to 'nope.Missing', which is not registered"},
		{name: "unexpected block", src: `widget "A" {}`, errMsg: "failed to decode"},
		{name: "define fails", src: `class "A" {}`, defErr: errors.New("boom"), errMsg: `class "A" in bad.hcl: boom`},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ctx, _ := testutil.Context(t)
			e := NewEvaluator(&recordingDefiner{err: tc.defErr}, newLibrary())
			err := e.Evaluate(ctx, "bad.hcl", []byte(tc.src))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.errMsg)
		})
	}
}

func TestPreload_WalksDirectories(t *testing.T) {
	ctx, _ := testutil.Context(t)
	root := testutil.WriteFiles(t, map[string]string{
		"app/Main.hcl":       `class "App.Main" {}`,
		"app/view/Panel.hcl": `class "App.view.Panel" {}`,
		"app/README.md":      "not a class",
	})
	d := &recordingDefiner{}
	e := NewEvaluator(d, newLibrary())

	n, err := e.Preload(ctx, ".hcl", filepath.Join(root, "app"), filepath.Join(root, "missing"))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.ElementsMatch(t, []string{"App.Main", "App.view.Panel"}, d.names)
}
