package env_vars

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/vk/classkit/internal/class"
	"github.com/vk/classkit/internal/hcl"
	"github.com/vk/classkit/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// Module implements the registry.Module interface for this package.
type Module struct{}

// Get returns the environment variable named by the first argument. An
// unset variable yields the optional second argument, or null.
func Get(ctx context.Context, _ *class.Instance, args ...cty.Value) (cty.Value, error) {
	if len(args) == 0 || len(args) > 2 {
		return cty.NilVal, fmt.Errorf("env.Get takes a name and an optional default, got %d arguments", len(args))
	}
	var name string
	if err := hcl.Decode(ctx, args[0], &name); err != nil {
		return cty.NilVal, fmt.Errorf("env.Get: %w", err)
	}
	if v, ok := os.LookupEnv(name); ok {
		return cty.StringVal(v), nil
	}
	if len(args) == 2 {
		return args[1], nil
	}
	return cty.NullVal(cty.String), nil
}

// All returns the whole environment as a map of strings.
func All(ctx context.Context, _ *class.Instance, _ ...cty.Value) (cty.Value, error) {
	envMap := make(map[string]cty.Value)
	for _, e := range os.Environ() {
		pair := strings.SplitN(e, "=", 2)
		if len(pair) == 2 {
			envMap[pair[0]] = cty.StringVal(pair[1])
		}
	}
	if len(envMap) == 0 {
		return cty.MapValEmpty(cty.String), nil
	}
	return cty.MapVal(envMap), nil
}

// Register registers the environment methods with the library.
func (m *Module) Register(l *registry.Library) {
	l.RegisterMethod("env.Get", Get)
	l.RegisterMethod("env.All", All)
}
