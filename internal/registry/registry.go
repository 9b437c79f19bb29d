package registry

import (
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/vk/classkit/internal/class"
	"github.com/vk/classkit/internal/classerr"
	"github.com/vk/classkit/internal/classname"
)

// Registry holds the classes of a single engine instance.
type Registry struct {
	classes      map[string]*class.Class
	constructing map[string]struct{}
}

// New creates and initializes a new Registry instance.
func New() *Registry {
	return &Registry{
		classes:      make(map[string]*class.Class),
		constructing: make(map[string]struct{}),
	}
}

// Begin marks name as under construction. Defining a name that is already
// defined or still being constructed is a ConfigurationError.
func (r *Registry) Begin(name string) error {
	if _, ok := r.classes[name]; ok {
		return classerr.Configuration("class %q is already defined", name)
	}
	if _, ok := r.constructing[name]; ok {
		return classerr.Configuration("class %q is redefined while still under construction", name)
	}
	r.constructing[name] = struct{}{}
	return nil
}

// Abort releases a name whose construction failed.
func (r *Registry) Abort(name string) {
	delete(r.constructing, name)
}

// Constructing reports whether name is under construction.
func (r *Registry) Constructing(name string) bool {
	_, ok := r.constructing[name]
	return ok
}

// Set stores a finished class, ending its construction.
func (r *Registry) Set(c *class.Class) {
	delete(r.constructing, c.Name())
	r.classes[c.Name()] = c
}

// Get returns the class registered under name.
func (r *Registry) Get(name string) (*class.Class, bool) {
	c, ok := r.classes[name]
	return c, ok
}

// Has reports whether name is defined.
func (r *Registry) Has(name string) bool {
	_, ok := r.classes[name]
	return ok
}

// Names returns every defined class name, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.classes))
	for n := range r.classes {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of defined classes.
func (r *Registry) Len() int {
	return len(r.classes)
}

// Expand resolves a name expression. A plain name expands to itself whether
// or not it is defined. A wildcard expression (App.view.*, App.**) expands
// to the matching names among the defined classes and extra, sorted and
// without duplicates.
func (r *Registry) Expand(expr string, extra ...string) ([]string, error) {
	if !classname.IsPattern(expr) {
		if err := classname.Validate(expr); err != nil {
			return nil, err
		}
		return []string{expr}, nil
	}
	if err := classname.ValidatePattern(expr); err != nil {
		return nil, err
	}

	pattern := classname.ToPath(expr)
	seen := make(map[string]struct{})
	var out []string
	match := func(name string) {
		if _, dup := seen[name]; dup {
			return
		}
		if ok, _ := doublestar.Match(pattern, classname.ToPath(name)); ok {
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	for name := range r.classes {
		match(name)
	}
	for _, name := range extra {
		match(name)
	}
	sort.Strings(out)
	return out, nil
}

// Reset forgets every class and construction in progress.
func (r *Registry) Reset() {
	r.classes = make(map[string]*class.Class)
	r.constructing = make(map[string]struct{})
}
