// Package registry provides the two name tables of the class system.
//
// The Registry maps class names to fully constructed classes and expands
// wildcard expressions against them. It also tracks which names are under
// construction, so a second define of the same name is rejected instead of
// racing the first.
//
// The Library maps qualified method names (e.g., "print.Log") to the
// compiled Go functions that implement them. It is populated by Modules at
// start-up and is the only way a class resource can bind behavior: resources
// name methods, they never contain code.
package registry
