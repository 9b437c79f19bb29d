package preprocessor

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/classkit/internal/class"
	"github.com/vk/classkit/internal/classerr"
	"github.com/vk/classkit/internal/model"
	"github.com/zclconf/go-cty/cty"
)

func nop(ctx context.Context, b *class.Builder, spec *model.Spec, hooks *Hooks) Result {
	return Continue()
}

func TestChain_RegisterPositions(t *testing.T) {
	c := NewChain()
	require.NoError(t, c.Register("extend", nop))
	require.NoError(t, c.Register("config", nop))
	require.NoError(t, c.Register("statics", nop, Before("config")))
	require.NoError(t, c.Register("mixins", nop, After("config")))
	require.NoError(t, c.Register("loader", nop, First()))
	require.NoError(t, c.Register("tail", nop, Last()))

	want := []string{"loader", "extend", "statics", "config", "mixins", "tail"}
	if diff := cmp.Diff(want, c.Names()); diff != "" {
		t.Errorf("Names() mismatch (-want +got):\n%s", diff)
	}
}

func TestChain_RegisterErrors(t *testing.T) {
	c := NewChain()
	require.NoError(t, c.Register("extend", nop))

	testCases := []struct {
		name string
		step string
		opts []Option
	}{
		{name: "before unknown", step: "a", opts: []Option{Before("missing")}},
		{name: "after unknown", step: "b", opts: []Option{After("missing")}},
		{name: "duplicate", step: "extend"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			err := c.Register(tc.step, nop, tc.opts...)
			var cfgErr *classerr.ConfigurationError
			require.ErrorAs(t, err, &cfgErr)
		})
	}
	assert.Equal(t, []string{"extend"}, c.Names(), "failed registrations must not change the order")
}

func TestChain_OrderOverride(t *testing.T) {
	c := NewChain()
	require.NoError(t, c.Register("a", nop))
	require.NoError(t, c.Register("b", nop))

	steps, err := c.Order(nil)
	require.NoError(t, err)
	require.Len(t, steps, 2)
	assert.Equal(t, "a", steps[0].Name)

	steps, err = c.Order([]string{"b"})
	require.NoError(t, err)
	require.Len(t, steps, 1)
	assert.Equal(t, "b", steps[0].Name)

	_, err = c.Order([]string{"zzz"})
	var cfgErr *classerr.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestPreprocessor_Applies(t *testing.T) {
	c := NewChain()
	require.NoError(t, c.Register("config", nop))
	require.NoError(t, c.Register("loader", nop, Triggers("requires", "extend")))
	require.NoError(t, c.Register("extend", nop, Always()))

	spec := model.NewSpec().Set("requires", []string{"A"})
	cfg, _ := c.Get("config")
	loader, _ := c.Get("loader")
	extend, _ := c.Get("extend")
	assert.False(t, cfg.Applies(spec))
	assert.True(t, loader.Applies(spec))
	assert.True(t, extend.Applies(model.NewSpec()))

	spec.Set("config", cty.EmptyObjectVal)
	assert.True(t, cfg.Applies(spec))
}

func TestPending(t *testing.T) {
	t.Run("wait then resolve", func(t *testing.T) {
		p := NewPending()
		var got []error
		p.Wait(func(err error) { got = append(got, err) })
		assert.Empty(t, got)
		p.Resolve(nil)
		p.Resolve(errors.New("ignored"))
		assert.Equal(t, []error{nil}, got)
		assert.True(t, p.Settled())
	})

	t.Run("resolve then wait", func(t *testing.T) {
		p := NewPending()
		boom := errors.New("boom")
		p.Resolve(boom)
		var got error
		p.Wait(func(err error) { got = err })
		assert.Same(t, boom, got)
	})

	t.Run("second continuation panics", func(t *testing.T) {
		p := NewPending()
		p.Wait(func(error) {})
		assert.Panics(t, func() { p.Wait(func(error) {}) })
	})
}

func TestResult(t *testing.T) {
	assert.Equal(t, "continue", Continue().String())
	assert.NoError(t, Continue().Err())

	p := NewPending()
	got, ok := Suspend(p).Suspended()
	assert.True(t, ok)
	assert.Same(t, p, got)

	boom := errors.New("boom")
	assert.Same(t, boom, Fail(boom).Err())
	_, ok = Fail(boom).Suspended()
	assert.False(t, ok)
}
