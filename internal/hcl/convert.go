package hcl

import (
	"context"
	"fmt"
	"reflect"

	"github.com/vk/classkit/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
	"github.com/zclconf/go-cty/cty/gocty"
)

// Decode converts val to the cty type implied by target and stores it there.
// target must be a non-nil pointer. Structs are decoded through their `cty`
// field tags.
func Decode(ctx context.Context, val cty.Value, target any) error {
	logger := ctxlog.FromContext(ctx)
	ptr := reflect.ValueOf(target)
	if ptr.Kind() != reflect.Ptr || ptr.IsNil() {
		return fmt.Errorf("target for decoding must be a non-nil pointer, got %T", target)
	}
	if val.IsNull() || !val.IsKnown() {
		return nil
	}

	implied, err := gocty.ImpliedType(ptr.Elem().Interface())
	if err != nil {
		logger.Debug("Could not imply cty.Type from Go type, attempting direct decoding.", "go_type", ptr.Elem().Type().String(), "error", err)
		return gocty.FromCtyValue(val, target)
	}

	converted, err := convert.Convert(val, implied)
	if err != nil {
		return fmt.Errorf("cannot convert %s to required type %s: %w", val.Type().FriendlyName(), implied.FriendlyName(), err)
	}
	if !val.Type().Equals(converted.Type()) {
		logger.Debug("Implicitly converted value type.",
			"from", val.Type().FriendlyName(),
			"to", converted.Type().FriendlyName(),
		)
	}
	return gocty.FromCtyValue(converted, target)
}

// ToCtyValue converts a native Go value into its corresponding cty.Value. A
// nil value becomes a dynamic null.
func ToCtyValue(v any) (cty.Value, error) {
	if v == nil {
		return cty.NullVal(cty.DynamicPseudoType), nil
	}
	if cv, ok := v.(cty.Value); ok {
		return cv, nil
	}
	ty, err := gocty.ImpliedType(v)
	if err != nil {
		return cty.NilVal, fmt.Errorf("unable to infer cty.Type: %w", err)
	}
	return gocty.ToCtyValue(v, ty)
}
