// SPDX-License-Identifier: MIT
// Copyright (c) 2025 Vladyslav Kazantsev
//
// This file parses class resources: HCL files holding one or more `class`
// blocks.
//
// Why HCL instead of executable source?
//
// A resource fetched for a class name must never be executed. It is parsed
// into a Spec, and any behavior it needs is bound by name to a method that
// was compiled into the binary (see registry.Library). A `method` block
// therefore names an implementation rather than containing one:
//
//	class "App.view.Singer" {
//	  extend   = "App.view.Base"
//	  requires = ["App.util.Tune"]
//	  mixins   = { singer = "App.mixin.HasSing" }
//
//	  config {
//	    volume = 3
//	  }
//
//	  method "sing" {
//	    impl = "print.Log"
//	  }
//	}
package model

import (
	"context"
	"fmt"
	"sort"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/vk/classkit/internal/class"
	"github.com/vk/classkit/internal/ctxlog"
	"github.com/zclconf/go-cty/cty"
)

// MethodLookup resolves a qualified implementation name to a compiled-in
// method.
type MethodLookup interface {
	Method(name string) (class.Method, bool)
}

// Definition is a class spec together with its name and origin.
type Definition struct {
	Name          string
	Spec          *Spec
	FSInformation *FSInfo
}

// classRootSchema defines the top-level structure of a class resource.
type classRootSchema struct {
	Classes []*hclClass `hcl:"class,block"`
}

type hclClass struct {
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

type hclMethod struct {
	Impl string `hcl:"impl"`
}

var classBodySchema = &hcl.BodySchema{
	Attributes: []hcl.AttributeSchema{
		{Name: KeyExtend},
		{Name: KeyRequires},
		{Name: KeyUses},
		{Name: KeyMixins},
		{Name: KeyPreprocessors},
	},
	Blocks: []hcl.BlockHeaderSchema{
		{Type: "statics"},
		{Type: "inheritable_statics"},
		{Type: "config"},
		{Type: "members"},
		{Type: "method", LabelNames: []string{"name"}},
	},
}

// mapBlocks ties each attribute-only block to the spec key it fills.
var mapBlocks = []struct {
	block string
	key   string
}{
	{"statics", KeyStatics},
	{"inheritable_statics", KeyInheritableStatics},
	{"config", KeyConfig},
}

// ParseClassFile decodes an HCL file that contains one or more `class`
// blocks into Definitions, binding `method` blocks through lib.
func ParseClassFile(ctx context.Context, hclFile *hcl.File, filePath string, lib MethodLookup) ([]*Definition, hcl.Diagnostics) {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Parsing class definitions from file", "file_path", filePath)

	var allDiags hcl.Diagnostics
	if hclFile == nil {
		allDiags = append(allDiags, &hcl.Diagnostic{
			Severity: hcl.DiagError,
			Summary:  "HCL file is nil",
		})
		return nil, allDiags
	}

	root := &classRootSchema{}
	diags := gohcl.DecodeBody(hclFile.Body, nil, root)
	allDiags = append(allDiags, diags...)
	if diags.HasErrors() {
		return nil, allDiags
	}

	defs := make([]*Definition, 0, len(root.Classes))
	for _, parsed := range root.Classes {
		spec, specDiags := parseClassBody(parsed.Body, lib)
		allDiags = append(allDiags, specDiags...)
		if specDiags.HasErrors() {
			continue // Skip this class but continue parsing others
		}
		defs = append(defs, &Definition{
			Name:          parsed.Name,
			Spec:          spec,
			FSInformation: NewFSInfo(filePath),
		})
	}

	if allDiags.HasErrors() {
		return nil, allDiags
	}
	logger.Debug("Parsed class definitions", "file_path", filePath, "count", len(defs))
	return defs, allDiags
}

func parseClassBody(body hcl.Body, lib MethodLookup) (*Spec, hcl.Diagnostics) {
	content, diags := body.Content(classBodySchema)
	if diags.HasErrors() {
		return nil, diags
	}
	spec := NewSpec()

	// Reserved attributes first, in schema order.
	for _, a := range classBodySchema.Attributes {
		attr, ok := content.Attributes[a.Name]
		if !ok {
			continue
		}
		v, valDiags := attr.Expr.Value(nil)
		diags = append(diags, valDiags...)
		if valDiags.HasErrors() {
			continue
		}
		spec.Set(a.Name, v)
	}

	for _, mb := range mapBlocks {
		blocks := content.Blocks.OfType(mb.block)
		if len(blocks) == 0 {
			continue
		}
		if len(blocks) > 1 {
			diags = append(diags, duplicateBlock(mb.block, blocks[1]))
			continue
		}
		values, _, valDiags := blockValues(blocks[0])
		diags = append(diags, valDiags...)
		spec.Set(mb.key, values)
	}

	for _, b := range content.Blocks.OfType("members") {
		values, order, valDiags := blockValues(b)
		diags = append(diags, valDiags...)
		for _, name := range order {
			if spec.Has(name) {
				diags = append(diags, &hcl.Diagnostic{
					Severity: hcl.DiagError,
					Summary:  "Duplicate member definition",
					Detail:   fmt.Sprintf("A member or reserved property named '%s' has already been defined.", name),
					Subject:  b.DefRange.Ptr(),
				})
				continue
			}
			spec.Set(name, values[name])
		}
	}

	for _, b := range content.Blocks.OfType("method") {
		name := b.Labels[0]
		var m hclMethod
		methodDiags := gohcl.DecodeBody(b.Body, nil, &m)
		diags = append(diags, methodDiags...)
		if methodDiags.HasErrors() {
			continue
		}
		if spec.Has(name) {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Duplicate member definition",
				Detail:   fmt.Sprintf("A member named '%s' has already been defined.", name),
				Subject:  b.DefRange.Ptr(),
			})
			continue
		}
		impl, ok := lib.Method(m.Impl)
		if !ok {
			diags = append(diags, &hcl.Diagnostic{
				Severity: hcl.DiagError,
				Summary:  "Unknown method implementation",
				Detail:   fmt.Sprintf("Method '%s' refers to '%s', which is not registered.", name, m.Impl),
				Subject:  b.DefRange.Ptr(),
			})
			continue
		}
		spec.Set(name, impl)
	}

	return spec, diags
}

// blockValues evaluates an attribute-only block and returns its values with
// the attribute names in source order.
func blockValues(b *hcl.Block) (map[string]cty.Value, []string, hcl.Diagnostics) {
	attrs, diags := b.Body.JustAttributes()
	if diags.HasErrors() {
		return nil, nil, diags
	}
	sorted := make([]*hcl.Attribute, 0, len(attrs))
	for _, a := range attrs {
		sorted = append(sorted, a)
	}
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Range.Start.Byte < sorted[j].Range.Start.Byte
	})

	values := make(map[string]cty.Value, len(sorted))
	order := make([]string, 0, len(sorted))
	for _, a := range sorted {
		v, valDiags := a.Expr.Value(nil)
		diags = append(diags, valDiags...)
		if valDiags.HasErrors() {
			continue
		}
		values[a.Name] = v
		order = append(order, a.Name)
	}
	return values, order, diags
}

func duplicateBlock(kind string, b *hcl.Block) *hcl.Diagnostic {
	return &hcl.Diagnostic{
		Severity: hcl.DiagError,
		Summary:  fmt.Sprintf("Duplicate %s block", kind),
		Detail:   fmt.Sprintf("Only one '%s' block is allowed per class.", kind),
		Subject:  b.DefRange.Ptr(),
	}
}
