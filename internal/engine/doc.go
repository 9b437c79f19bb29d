// Package engine assembles the class system: registry, method library,
// preprocessor chain, factory, loader and event loop. Each Engine is an
// independent context, so two engines never share classes.
package engine
