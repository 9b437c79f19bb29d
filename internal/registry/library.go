package registry

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/vk/classkit/internal/class"
)

// Module is the interface that all method modules must implement to be
// registered.
type Module interface {
	Register(l *Library)
}

// Library holds the compiled method implementations that class resources
// may bind by name.
type Library struct {
	methods map[string]class.Method
}

// NewLibrary creates an empty Library.
func NewLibrary() *Library {
	return &Library{methods: make(map[string]class.Method)}
}

// RegisterMethod registers a Go function under a qualified name.
func (l *Library) RegisterMethod(name string, fn class.Method) {
	if _, exists := l.methods[name]; exists {
		panic(fmt.Sprintf("method with name '%s' already registered", name))
	}
	slog.Debug("Registering method.", "name", name)
	l.methods[name] = fn
}

// Method returns the implementation registered under name.
func (l *Library) Method(name string) (class.Method, bool) {
	fn, ok := l.methods[name]
	return fn, ok
}

// Names returns every registered method name, sorted.
func (l *Library) Names() []string {
	names := make([]string, 0, len(l.methods))
	for n := range l.methods {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Install registers every module into the library.
func (l *Library) Install(modules ...Module) {
	for _, m := range modules {
		m.Register(l)
	}
}
