package dag

import (
	"sort"

	"github.com/vk/classkit/internal/classerr"
)

// New creates and returns an initialized, empty RequiresMap.
func New() *RequiresMap {
	return &RequiresMap{
		nodes: make(map[string]*node),
	}
}

func (m *RequiresMap) ensure(id string) *node {
	n, ok := m.nodes[id]
	if !ok {
		n = &node{id: id, depSet: make(map[string]struct{})}
		m.nodes[id] = n
	}
	return n
}

// Declare records that name directly depends on deps. Declaring the same
// edge twice is a no-op, so Declare may be called again as more of a spec
// becomes known.
func (m *RequiresMap) Declare(name string, deps ...string) {
	n := m.ensure(name)
	for _, d := range deps {
		if _, ok := n.depSet[d]; ok {
			continue
		}
		n.depSet[d] = struct{}{}
		n.deps = append(n.deps, d)
		m.ensure(d)
	}
}

// Has reports whether name was declared or referenced.
func (m *RequiresMap) Has(name string) bool {
	_, ok := m.nodes[name]
	return ok
}

// Dependencies returns the direct dependencies of name in declaration order.
func (m *RequiresMap) Dependencies(name string) []string {
	n, ok := m.nodes[name]
	if !ok {
		return nil
	}
	return append([]string(nil), n.deps...)
}

// Len returns the number of known names.
func (m *RequiresMap) Len() int {
	return len(m.nodes)
}

// Cycle walks the transitive closure of from's dependencies and returns the
// first path leading back to from, for example [A B C A]. It returns nil
// when from is not part of a cycle. Cycles that do not pass through from are
// ignored here; DetectCycles reports those.
func (m *RequiresMap) Cycle(from string) []string {
	start, ok := m.nodes[from]
	if !ok {
		return nil
	}

	visited := make(map[string]bool)
	var path []string

	var visit func(n *node) bool
	visit = func(n *node) bool {
		path = append(path, n.id)
		for _, d := range n.deps {
			if d == from {
				path = append(path, d)
				return true
			}
			if visited[d] {
				continue
			}
			visited[d] = true
			if visit(m.nodes[d]) {
				return true
			}
		}
		path = path[:len(path)-1]
		return false
	}

	if visit(start) {
		return path
	}
	return nil
}

// DetectCycles checks the whole map. It returns a CyclicDependencyError for
// the first cycle found, visiting names in sorted order.
func (m *RequiresMap) DetectCycles() error {
	// Classic depth-first search with three sets of nodes:
	// permanent: fully visited and not part of a cycle.
	// temporary: on the current recursion stack.
	// unvisited: all other nodes.
	permanent := make(map[string]bool)
	temporary := make(map[string]bool)
	var stack []string

	var visit func(n *node) []string
	visit = func(n *node) []string {
		if permanent[n.id] {
			return nil
		}
		if temporary[n.id] {
			// Cut the stack at the first occurrence to get the cycle itself.
			for i, id := range stack {
				if id == n.id {
					return append(append([]string(nil), stack[i:]...), n.id)
				}
			}
		}

		temporary[n.id] = true
		stack = append(stack, n.id)
		for _, d := range n.deps {
			if cycle := visit(m.nodes[d]); cycle != nil {
				return cycle
			}
		}
		stack = stack[:len(stack)-1]
		delete(temporary, n.id)
		permanent[n.id] = true
		return nil
	}

	ids := make([]string, 0, len(m.nodes))
	for id := range m.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if cycle := visit(m.nodes[id]); cycle != nil {
			return &classerr.CyclicDependencyError{Path: cycle}
		}
	}
	return nil
}

// Reset forgets every declaration.
func (m *RequiresMap) Reset() {
	m.nodes = make(map[string]*node)
}
