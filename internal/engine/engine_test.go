package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/classkit/internal/class"
	"github.com/vk/classkit/internal/classerr"
	"github.com/vk/classkit/internal/fetch"
	"github.com/vk/classkit/internal/loader"
	"github.com/vk/classkit/internal/model"
	"github.com/vk/classkit/internal/preprocessor"
	"github.com/vk/classkit/internal/registry"
	"github.com/vk/classkit/internal/testutil"
	"github.com/zclconf/go-cty/cty"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// countingFetcher reads resources from a directory and counts fetches per
// path.
type countingFetcher struct {
	inner fetch.Fetcher
	mu    sync.Mutex
	calls map[string]int
}

func (f *countingFetcher) Fetch(ctx context.Context, path string) ([]byte, error) {
	f.mu.Lock()
	f.calls[path]++
	f.mu.Unlock()
	return f.inner.Fetch(ctx, path)
}

func (f *countingFetcher) count(path string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[path]
}

func (f *countingFetcher) total() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

// testModule provides the methods the HCL fixtures bind.
type testModule struct{}

func returns(s string) class.Method {
	return func(ctx context.Context, self *class.Instance, args ...cty.Value) (cty.Value, error) {
		return cty.StringVal(s), nil
	}
}

func (testModule) Register(l *registry.Library) {
	l.RegisterMethod("test.SingOwn", returns("own"))
	l.RegisterMethod("test.SingMixin", returns("mixin"))
}

type fixture struct {
	ctx     context.Context
	engine  *Engine
	fetcher *countingFetcher
}

func newFixture(t *testing.T, cfg *loader.Config, files map[string]string) *fixture {
	t.Helper()
	ctx, _ := testutil.Context(t)
	root := testutil.WriteFiles(t, files)
	f := &countingFetcher{inner: &fetch.File{Root: root}, calls: make(map[string]int)}
	e, err := New(Options{
		Loader:  cfg,
		Fetcher: f,
		Modules: []registry.Module{testModule{}},
	})
	require.NoError(t, err)
	t.Cleanup(e.Close)
	return &fixture{ctx: ctx, engine: e, fetcher: f}
}

func (f *fixture) run(t *testing.T) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(f.ctx, 5*time.Second)
	defer cancel()
	return f.engine.Run(ctx)
}

func TestRequire_SingleFetchThenCallback(t *testing.T) {
	f := newFixture(t, nil, map[string]string{"X.hcl": `class "X" {}`})

	calls := 0
	require.NoError(t, f.engine.Require(f.ctx, []string{"X"}, func() { calls++ }))
	require.NoError(t, f.run(t))

	assert.Equal(t, 1, f.fetcher.count("X.hcl"))
	assert.Equal(t, 1, f.fetcher.total())
	assert.Equal(t, 1, calls)
	_, ok := f.engine.Class("X")
	assert.True(t, ok)
}

func TestRequire_AlreadyDefinedIsSynchronous(t *testing.T) {
	f := newFixture(t, nil, nil)
	require.NoError(t, f.engine.Define(f.ctx, "A", nil, nil))

	called := false
	require.NoError(t, f.engine.Require(f.ctx, []string{"A"}, func() { called = true }))
	assert.True(t, called)
	require.NoError(t, f.run(t))
	assert.Equal(t, 0, f.fetcher.total())
}

func TestRequire_DeclarationMismatch(t *testing.T) {
	f := newFixture(t, nil, map[string]string{"Y.hcl": `class "NotY" {}`})

	require.NoError(t, f.engine.Require(f.ctx, []string{"Y"}, nil))
	err := f.run(t)

	var mm *classerr.DeclarationMismatchError
	require.ErrorAs(t, err, &mm)
	assert.Equal(t, []classerr.Mismatch{{ClassName: "Y", Path: "Y.hcl"}}, mm.Mismatches)
}

func TestRequire_ManifestCycleIssuesNoFetch(t *testing.T) {
	cfg := loader.DefaultConfig()
	cfg.Manifest = map[string][]string{"A": {"B"}, "B": {"A"}}
	f := newFixture(t, &cfg, map[string]string{
		"A.hcl": `class "A" { requires = ["B"] }`,
		"B.hcl": `class "B" { requires = ["A"] }`,
	})

	err := f.engine.Require(f.ctx, []string{"A"}, nil)
	var cyc *classerr.CyclicDependencyError
	require.ErrorAs(t, err, &cyc)
	assert.True(t, cyc.Involves("A"))
	assert.True(t, cyc.Involves("B"))
	assert.Equal(t, 0, f.fetcher.total())
}

func TestRequire_CycleDiscoveredWhileLoading(t *testing.T) {
	f := newFixture(t, nil, map[string]string{
		"A.hcl": `class "A" { requires = ["B"] }`,
		"B.hcl": `class "B" { extend = "C" }`,
		"C.hcl": `class "C" { requires = ["A"] }`,
	})

	require.NoError(t, f.engine.Require(f.ctx, []string{"A"}, nil))
	err := f.run(t)

	var cyc *classerr.CyclicDependencyError
	require.ErrorAs(t, err, &cyc)
	for _, n := range []string{"A", "B", "C"} {
		assert.True(t, cyc.Involves(n), n)
		assert.LessOrEqual(t, f.fetcher.count(n+".hcl"), 1, n)
	}
}

func TestRequire_FetchErrorIsFatal(t *testing.T) {
	f := newFixture(t, nil, map[string]string{
		"A.hcl": `class "A" { requires = ["Gone"] }`,
	})

	called := false
	require.NoError(t, f.engine.Require(f.ctx, []string{"A"}, func() { called = true }))
	err := f.run(t)

	var fe *classerr.FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "Gone", fe.ClassName)
	assert.False(t, called)
	_, ok := f.engine.Class("A")
	assert.False(t, ok)
}

func TestRequire_DefinesInDependencyOrder(t *testing.T) {
	cfg := loader.DefaultConfig()
	cfg.Paths = map[string]string{"App": "lib"}
	f := newFixture(t, &cfg, map[string]string{
		"lib/view/Main.hcl": `
class "App.view.Main" {
  extend   = "App.view.Base"
  requires = ["App.model.*"]
  mixins   = ["App.mixin.Observable"]
}`,
		"lib/view/Base.hcl":        `class "App.view.Base" { requires = ["App.model.User"] }`,
		"lib/model/User.hcl":       `class "App.model.User" {}`,
		"lib/mixin/Observable.hcl": `class "App.mixin.Observable" {}`,
	})

	require.NoError(t, f.engine.Require(f.ctx, []string{"App.view.Main"}, nil))
	require.NoError(t, f.run(t))

	history := f.engine.History()
	pos := make(map[string]int, len(history))
	for i, n := range history {
		pos[n] = i
	}
	require.Len(t, history, 4)
	assert.Less(t, pos["App.model.User"], pos["App.view.Base"])
	assert.Less(t, pos["App.view.Base"], pos["App.view.Main"])
	assert.Less(t, pos["App.mixin.Observable"], pos["App.view.Main"])

	main, ok := f.engine.Class("App.view.Main")
	require.True(t, ok)
	assert.True(t, main.IsSubclassOf("App.view.Base"))
	assert.Equal(t, []string{"App.model.*"}, main.Requires())
	for path, want := range map[string]int{"lib/view/Main.hcl": 1, "lib/view/Base.hcl": 1, "lib/model/User.hcl": 1} {
		assert.Equal(t, want, f.fetcher.count(path), path)
	}
}

func TestReady_SoftDependenciesDoNotBlockOwner(t *testing.T) {
	f := newFixture(t, nil, map[string]string{
		"Main.hcl":  `class "Main" { uses = ["Extra"] }`,
		"Extra.hcl": `class "Extra" { uses = ["More"] }`,
		"More.hcl":  `class "More" {}`,
	})

	var readyHistory []string
	f.engine.OnReady(func() { readyHistory = f.engine.History() })
	require.NoError(t, f.engine.Require(f.ctx, []string{"Main"}, nil))
	require.NoError(t, f.run(t))

	if diff := cmp.Diff([]string{"Main", "Extra", "More"}, readyHistory); diff != "" {
		t.Errorf("ready fired with unexpected history (-want +got):\n%s", diff)
	}
	main, _ := f.engine.Class("Main")
	assert.Equal(t, []string{"Extra"}, main.Uses())
}

func TestRun_DisabledLoaderReportsUnresolved(t *testing.T) {
	cfg := loader.DefaultConfig()
	cfg.Enabled = false
	f := newFixture(t, &cfg, map[string]string{"A.hcl": `class "A" {}`})

	require.NoError(t, f.engine.Require(f.ctx, []string{"A", "B"}, nil))
	err := f.run(t)

	var ce *classerr.ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Message, "A, B")
	assert.Equal(t, 0, f.fetcher.total())
}

func TestDefine_RejectsRedefinition(t *testing.T) {
	f := newFixture(t, nil, nil)

	require.NoError(t, f.engine.Define(f.ctx, "A", nil, nil))
	var ce *classerr.ConfigurationError
	assert.ErrorAs(t, f.engine.Define(f.ctx, "A", nil, nil), &ce)

	// A class still waiting for its parent cannot be redefined either.
	cfg := loader.DefaultConfig()
	cfg.Enabled = false
	g := newFixture(t, &cfg, nil)
	require.NoError(t, g.engine.Define(g.ctx, "B", model.NewSpec().Set(model.KeyExtend, "Later"), nil))
	err := g.engine.Define(g.ctx, "B", nil, nil)
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Message, "under construction")
}

func TestDefine_OnCreatedRunsWhenDependenciesArrive(t *testing.T) {
	f := newFixture(t, nil, map[string]string{"Parent.hcl": `class "Parent" {}`})

	var created *class.Class
	spec := model.NewSpec().Set(model.KeyExtend, "Parent")
	require.NoError(t, f.engine.Define(f.ctx, "Child", spec, func(c *class.Class) { created = c }))
	assert.Nil(t, created)

	require.NoError(t, f.run(t))
	require.NotNil(t, created)
	assert.Equal(t, "Parent", created.Parent().Name())
}

func TestInstance_ConfigAccessors(t *testing.T) {
	f := newFixture(t, nil, nil)
	src := `
class "Gauge" {
  config {
    value = 1
  }
}`
	require.NoError(t, f.engine.Evaluate(f.ctx, "gauge.hcl", []byte(src)))

	inst, err := f.engine.NewInstance(f.ctx, "Gauge", nil)
	require.NoError(t, err)
	v, err := inst.Call(f.ctx, "getValue")
	require.NoError(t, err)
	assert.True(t, v.RawEquals(cty.NumberIntVal(1)))

	_, err = inst.Call(f.ctx, "setValue", cty.NumberIntVal(5))
	require.NoError(t, err)
	v, err = inst.Call(f.ctx, "getValue")
	require.NoError(t, err)
	assert.True(t, v.RawEquals(cty.NumberIntVal(5)))

	t.Run("apply returning nothing keeps the default", func(t *testing.T) {
		reject := func(ctx context.Context, self *class.Instance, args ...cty.Value) (cty.Value, error) {
			return cty.NilVal, nil
		}
		spec := model.NewSpec().
			Set(model.KeyConfig, map[string]cty.Value{"value": cty.NumberIntVal(1)}).
			Set("applyValue", class.Method(reject))
		require.NoError(t, f.engine.Define(f.ctx, "Locked", spec, nil))

		inst, err := f.engine.NewInstance(f.ctx, "Locked", map[string]cty.Value{"value": cty.NumberIntVal(9)})
		require.NoError(t, err)
		v, err := inst.Get(f.ctx, "value")
		require.NoError(t, err)
		assert.True(t, v.RawEquals(cty.NumberIntVal(1)), "a rejected assignment keeps the default, got %#v", v)
	})

	_, err = f.engine.NewInstance(f.ctx, "Missing", nil)
	assert.Error(t, err)
}

func TestMixins_DoNotOverrideOwnMembers(t *testing.T) {
	f := newFixture(t, nil, map[string]string{
		"HasSing.hcl": `
class "HasSing" {
  method "sing" {
    impl = "test.SingMixin"
  }
  members {
    pitch = "high"
  }
}`,
		"Singer.hcl": `
class "Singer" {
  mixins = { singer = "HasSing" }
  method "sing" {
    impl = "test.SingOwn"
  }
}`,
	})

	require.NoError(t, f.engine.Require(f.ctx, []string{"Singer"}, nil))
	require.NoError(t, f.run(t))

	inst, err := f.engine.NewInstance(f.ctx, "Singer", nil)
	require.NoError(t, err)

	own, err := inst.Call(f.ctx, "sing")
	require.NoError(t, err)
	assert.Equal(t, "own", own.AsString())

	mixed, err := inst.CallMixin(f.ctx, "singer", "sing")
	require.NoError(t, err)
	assert.Equal(t, "mixin", mixed.AsString())

	pitch, ok := inst.Property("pitch")
	require.True(t, ok)
	assert.Equal(t, "high", pitch.AsString())
}

func TestRegisterPreprocessor_SeesOnlyUnconsumedKeys(t *testing.T) {
	f := newFixture(t, nil, nil)

	var seen [][]string
	step := func(ctx context.Context, b *class.Builder, spec *model.Spec, hooks *preprocessor.Hooks) preprocessor.Result {
		seen = append(seen, spec.Keys())
		return preprocessor.Continue()
	}
	require.NoError(t, f.engine.RegisterPreprocessor("audit", step, preprocessor.Always(), preprocessor.After("statics")))

	var ce *classerr.ConfigurationError
	assert.ErrorAs(t, f.engine.RegisterPreprocessor("broken", step, preprocessor.Before("nope")), &ce)

	spec := model.NewSpec().
		Set(model.KeyStatics, map[string]cty.Value{"n": cty.NumberIntVal(1)}).
		Set(model.KeyConfig, map[string]cty.Value{"v": cty.True}).
		Set("title", cty.StringVal("t"))
	require.NoError(t, f.engine.Define(f.ctx, "Audited", spec, nil))

	require.Len(t, seen, 1)
	assert.Equal(t, []string{model.KeyConfig, "title"}, seen[0])
}

func TestRequireSync_DefinesBeforeReturning(t *testing.T) {
	f := newFixture(t, nil, map[string]string{
		"A.hcl": `class "A" { extend = "B" }`,
		"B.hcl": `class "B" {}`,
	})

	called := false
	require.NoError(t, f.engine.RequireSync(f.ctx, []string{"A"}, func() { called = true }))
	assert.True(t, called)
	assert.Equal(t, []string{"B", "A"}, f.engine.History())
}

func TestReset_StartsFresh(t *testing.T) {
	f := newFixture(t, nil, map[string]string{"A.hcl": `class "A" {}`})
	require.NoError(t, f.engine.Require(f.ctx, []string{"A"}, nil))
	require.NoError(t, f.run(t))
	require.Equal(t, []string{"A"}, f.engine.Classes())

	f.engine.Reset()
	assert.Empty(t, f.engine.Classes())
	assert.Empty(t, f.engine.History())

	require.NoError(t, f.engine.Require(f.ctx, []string{"A"}, nil))
	require.NoError(t, f.run(t))
	assert.Equal(t, 2, f.fetcher.count("A.hcl"))
}

func TestEngines_AreIndependent(t *testing.T) {
	a := newFixture(t, nil, nil)
	b := newFixture(t, nil, nil)
	require.NoError(t, a.engine.Define(a.ctx, "Shared", nil, nil))
	require.NoError(t, b.engine.Define(b.ctx, "Shared", nil, nil))
	assert.Equal(t, []string{"Shared"}, a.engine.Classes())
	assert.Equal(t, []string{"Shared"}, b.engine.Classes())
}

func TestPreload_DefinesWithoutFetching(t *testing.T) {
	root := testutil.WriteFiles(t, map[string]string{
		"pre/A.hcl": `class "A" {}`,
		"pre/B.hcl": `class "B" { extend = "A" }`,
	})
	f := newFixture(t, nil, nil)

	n, err := f.engine.Preload(f.ctx, root+"/pre")
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.NoError(t, f.run(t))
	assert.ElementsMatch(t, []string{"A", "B"}, f.engine.Classes())
	assert.Equal(t, 0, f.fetcher.total())

	err = f.engine.Evaluate(f.ctx, "dup.hcl", []byte(`class "A" {}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already defined")
}
