// Package print provides a method that writes its arguments and the config
// of the receiving instance, for inspecting classes from a resource file.
package print

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/vk/classkit/internal/class"
	"github.com/vk/classkit/internal/ctxlog"
	"github.com/vk/classkit/internal/registry"
	"github.com/zclconf/go-cty/cty"
	ctyjson "github.com/zclconf/go-cty/cty/json"
)

// Module implements the registry.Module interface for this package.
type Module struct {
	// Out receives the printed lines. Defaults to os.Stdout.
	Out io.Writer
}

// Log prints every argument followed by the instance's config values in key
// order. It returns null.
func (m *Module) Log(ctx context.Context, self *class.Instance, args ...cty.Value) (cty.Value, error) {
	out := m.Out
	if out == nil {
		out = os.Stdout
	}
	ctxlog.FromContext(ctx).Info("Printing input", "class", self.Class().Name(), "args", len(args))

	for i, a := range args {
		fmt.Fprintf(out, "      [%d] = %s\n", i, render(a))
	}
	for _, k := range self.Class().ConfigKeys() {
		v, err := self.Get(ctx, k)
		if err != nil {
			return cty.NilVal, err
		}
		fmt.Fprintf(out, "      %s = %s\n", k, render(v))
	}
	return cty.NullVal(cty.DynamicPseudoType), nil
}

func render(v cty.Value) string {
	if v == cty.NilVal || v.IsNull() {
		return "(null)"
	}
	if !v.IsWhollyKnown() {
		return "(unknown)"
	}
	b, err := ctyjson.SimpleJSONValue{Value: v}.MarshalJSON()
	if err != nil {
		return v.GoString()
	}
	return string(b)
}

// Register registers the print methods with the library.
func (m *Module) Register(l *registry.Library) {
	l.RegisterMethod("print.Log", m.Log)
}
