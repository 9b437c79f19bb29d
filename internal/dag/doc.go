// Package dag keeps the requires map: class name to direct dependency names,
// built incrementally as specs are processed.
//
// The map is used only for cycle detection. Nothing dispatches on it; the
// loader's queue decides when classes become constructible.
package dag
