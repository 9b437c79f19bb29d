// Package hcl evaluates class resources. A resource is parsed as HCL, its
// `class` blocks are decoded into specs and each spec is handed to the
// engine for definition. Nothing in a resource is executed.
//
// The package also carries the cty conversion helpers method modules use to
// decode their arguments into Go values.
package hcl
