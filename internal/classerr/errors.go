// Package classerr defines the error taxonomy of the class system. Every error
// here describes a defect in the class or dependency graph itself and is
// fatal at the layer that detects it.
package classerr

import (
	"fmt"
	"strings"
)

// ConfigurationError reports an invalid registration or definition request,
// such as a preprocessor placed relative to a step that does not exist or a
// class defined twice.
type ConfigurationError struct {
	Message string
}

// Error implements the error interface for ConfigurationError.
func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Message
}

// Configuration builds a ConfigurationError from a format string.
func Configuration(format string, args ...any) error {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...)}
}

// CyclicDependencyError reports a dependency cycle. Path starts and ends with
// the same class name.
type CyclicDependencyError struct {
	Path []string
}

// Error implements the error interface for CyclicDependencyError.
func (e *CyclicDependencyError) Error() string {
	return "circular dependency detected: " + strings.Join(e.Path, " -> ")
}

// Involves reports whether name takes part in the cycle.
func (e *CyclicDependencyError) Involves(name string) bool {
	for _, p := range e.Path {
		if p == name {
			return true
		}
	}
	return false
}

// FetchError reports a resource that could not be loaded.
type FetchError struct {
	ClassName string
	Path      string
	Err       error
}

// Error implements the error interface for FetchError.
func (e *FetchError) Error() string {
	return fmt.Sprintf("failed to load %q for class %q: %v", e.Path, e.ClassName, e.Err)
}

// Unwrap returns the underlying transport error.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Mismatch names a class whose resource loaded without declaring it.
type Mismatch struct {
	ClassName string
	Path      string
}

// DeclarationMismatchError reports resources that loaded successfully but did
// not define the class expected of them.
type DeclarationMismatchError struct {
	Mismatches []Mismatch
}

// Error implements the error interface for DeclarationMismatchError.
func (e *DeclarationMismatchError) Error() string {
	parts := make([]string, 0, len(e.Mismatches))
	for _, m := range e.Mismatches {
		parts = append(parts, fmt.Sprintf("'%s' (%s)", m.ClassName, m.Path))
	}
	return "resources loaded but did not declare the expected classes, check the class names and paths: " +
		strings.Join(parts, ", ")
}
