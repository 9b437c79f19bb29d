package class

import (
	"context"

	"github.com/zclconf/go-cty/cty"
)

// BaseName is the name of the universal base class.
const BaseName = "Base"

// Base is the universal root every factory-built class descends from when
// its spec names no parent.
var Base = newBase()

func newBase() *Class {
	c := newClass(BaseName)
	c.members["getClassName"] = MethodMember(func(ctx context.Context, self *Instance, args ...cty.Value) (cty.Value, error) {
		return cty.StringVal(self.Class().Name()), nil
	})
	c.members["isInstanceOf"] = MethodMember(func(ctx context.Context, self *Instance, args ...cty.Value) (cty.Value, error) {
		if len(args) != 1 || args[0].IsNull() || args[0].Type() != cty.String {
			return cty.False, nil
		}
		name := args[0].AsString()
		k := self.Class()
		return cty.BoolVal(k.Name() == name || k.IsSubclassOf(name)), nil
	})
	c.memberOrder = []string{"getClassName", "isInstanceOf"}
	return c
}
