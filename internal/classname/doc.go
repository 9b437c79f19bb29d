// internal/classname/doc.go

/*
Package classname provides a structured representation for class names,
based on the canonical dotted format `Namespace.sub.ClassName`.

A name is a dot-separated sequence of identifier segments. Name expressions
used by require calls may additionally carry glob wildcards (`App.view.*`,
`App.**`), which are matched segment-wise after converting the dots to
slashes.

This package centralizes parsing, validation and the name-to-path
conversion used by the loader.
*/
package classname
