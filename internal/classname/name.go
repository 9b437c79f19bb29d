// internal/classname/name.go
package classname

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// segmentRegex matches a single identifier segment, e.g. `view` or `$Base`.
var segmentRegex = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*$`)

// patternRegex matches a segment that may contain glob wildcards.
var patternRegex = regexp.MustCompile(`^[A-Za-z0-9_$*?\[\]{},!-]+$`)

// Name is the structured form of a dotted class name.
type Name struct {
	Segments []string
}

// Parse creates a Name from its canonical string representation.
func Parse(raw string) (*Name, error) {
	if raw == "" {
		return nil, fmt.Errorf("class name cannot be empty")
	}

	n := &Name{}
	for _, segment := range strings.Split(raw, ".") {
		if segment == "" {
			return nil, fmt.Errorf("class name %q contains an empty segment", raw)
		}
		if !segmentRegex.MatchString(segment) {
			return nil, fmt.Errorf("invalid segment %q in class name %q", segment, raw)
		}
		n.Segments = append(n.Segments, segment)
	}
	return n, nil
}

// Validate reports whether raw is a well-formed class name.
func Validate(raw string) error {
	_, err := Parse(raw)
	return err
}

// String serializes the Name back into its dotted form.
func (n *Name) String() string {
	if n == nil {
		return ""
	}
	return strings.Join(n.Segments, ".")
}

// Namespace returns every segment but the last, joined with dots.
func (n *Name) Namespace() string {
	if n == nil || len(n.Segments) < 2 {
		return ""
	}
	return strings.Join(n.Segments[:len(n.Segments)-1], ".")
}

// Short returns the last segment.
func (n *Name) Short() string {
	if n == nil || len(n.Segments) == 0 {
		return ""
	}
	return n.Segments[len(n.Segments)-1]
}

// IsPattern reports whether expr contains glob wildcards.
func IsPattern(expr string) bool {
	return strings.ContainsAny(expr, "*?[{")
}

// ValidatePattern checks the shape of a name expression with wildcards.
func ValidatePattern(expr string) error {
	if expr == "" {
		return fmt.Errorf("name expression cannot be empty")
	}
	for _, segment := range strings.Split(expr, ".") {
		if segment == "" {
			return fmt.Errorf("name expression %q contains an empty segment", expr)
		}
		if !patternRegex.MatchString(segment) {
			return fmt.Errorf("invalid segment %q in name expression %q", segment, expr)
		}
	}
	if !doublestar.ValidatePattern(ToPath(expr)) {
		return fmt.Errorf("malformed glob in name expression %q", expr)
	}
	return nil
}

// ToPath converts a dotted name or name expression into a slash separated path.
func ToPath(name string) string {
	return strings.ReplaceAll(name, ".", "/")
}
