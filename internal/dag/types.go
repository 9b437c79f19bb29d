package dag

// RequiresMap is a directed graph of class names and the names they depend
// on. It is not safe for concurrent use; the engine's event loop goroutine
// owns it.
type RequiresMap struct {
	// nodes stores every declared or referenced class, keyed by name.
	nodes map[string]*node
}

// node represents a single class name. deps keeps declaration order so
// reported cycle paths are deterministic.
type node struct {
	id     string
	deps   []string
	depSet map[string]struct{}
}
