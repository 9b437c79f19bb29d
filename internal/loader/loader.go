// Package loader resolves class names to resources, fetches the missing ones
// and releases waiting callbacks once their whole dependency set is defined.
//
// The loader runs on the engine's event loop. Require, RefreshQueue and the
// preprocessor step are only ever called from loop turns (or before the loop
// starts), which is what lets the queue and the state maps go unlocked.
package loader

import (
	"context"
	"fmt"
	"sort"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/vk/classkit/internal/classname"
	"github.com/vk/classkit/internal/ctxlog"
	"github.com/vk/classkit/internal/dag"
	"github.com/vk/classkit/internal/eventloop"
	"github.com/vk/classkit/internal/fetch"
	"github.com/vk/classkit/internal/metrics"
)

const pathCacheSize = 1024

// Classes is the view of the class registry the loader needs.
type Classes interface {
	Has(name string) bool
	Constructing(name string) bool
	Expand(expr string, extra ...string) ([]string, error)
}

// Evaluator turns a fetched resource into class definitions.
type Evaluator interface {
	Evaluate(ctx context.Context, path string, src []byte) error
}

// Deps are the collaborators of a Loader.
type Deps struct {
	Classes   Classes
	Loop      *eventloop.Loop
	Fetcher   fetch.Fetcher
	Evaluator Evaluator
	Requires  *dag.RequiresMap
	Metrics   *metrics.Collector
}

// Loader is the dependency loader of one engine.
type Loader struct {
	cfg  Config
	mode Mode

	classes  Classes
	loop     *eventloop.Loop
	fetcher  fetch.Fetcher
	eval     Evaluator
	requires *dag.RequiresMap
	metrics  *metrics.Collector

	pathCache *lru.Cache[string, string]

	queue       []*queueItem
	classStates map[string]LoadState
	pathStates  map[string]PathState
	classPaths  map[string]string
	expected    map[string][]string
	declared    map[string]bool
	outstanding int

	softDeps      []string
	softRequested map[string]bool

	readyListeners []func()
	ready          bool

	refreshing bool
	dirty      bool
	failed     bool

	history []string
	sources map[string][]byte
}

// New creates a loader. The manifest, if any, is declared into the
// requires map right away.
func New(cfg Config, deps Deps) (*Loader, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid loader config: %w", err)
	}
	if deps.Classes == nil || deps.Loop == nil {
		return nil, fmt.Errorf("loader requires a class registry and an event loop")
	}
	if deps.Requires == nil {
		deps.Requires = dag.New()
	}
	cache, err := lru.New[string, string](pathCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create path cache: %w", err)
	}

	l := &Loader{
		cfg:       cfg,
		mode:      cfg.Mode,
		classes:   deps.Classes,
		loop:      deps.Loop,
		fetcher:   deps.Fetcher,
		eval:      deps.Evaluator,
		requires:  deps.Requires,
		metrics:   deps.Metrics,
		pathCache: cache,
	}
	l.reset()
	l.declareManifest()
	return l, nil
}

func (l *Loader) declareManifest() {
	for _, name := range l.manifestNames() {
		l.requires.Declare(name, l.cfg.Manifest[name]...)
	}
}

func (l *Loader) reset() {
	l.queue = nil
	l.classStates = make(map[string]LoadState)
	l.pathStates = make(map[string]PathState)
	l.classPaths = make(map[string]string)
	l.expected = make(map[string][]string)
	l.declared = make(map[string]bool)
	l.outstanding = 0
	l.softDeps = nil
	l.softRequested = make(map[string]bool)
	l.readyListeners = nil
	l.ready = false
	l.refreshing, l.dirty, l.failed = false, false, false
	l.history = nil
	l.sources = make(map[string][]byte)
	l.pathCache.Purge()
}

// Reset forgets every request, queue item, listener and declared
// dependency. The manifest is declared again.
func (l *Loader) Reset() {
	l.reset()
	l.mode = l.cfg.Mode
	l.requires.Reset()
	l.declareManifest()
}

// Config returns the active configuration.
func (l *Loader) Config() Config {
	return l.cfg
}

// SetEvaluator installs the evaluator, for callers that can only build it
// once the loader exists.
func (l *Loader) SetEvaluator(e Evaluator) {
	l.eval = e
}

// SetPath maps a namespace prefix to a directory and invalidates cached
// resolutions.
func (l *Loader) SetPath(prefix, dir string) error {
	if err := classname.Validate(prefix); err != nil {
		return err
	}
	l.cfg.Paths[prefix] = dir
	l.pathCache.Purge()
	return nil
}

// GetPath resolves a class name to its resource location. A name that is
// itself a key of Paths maps to that value verbatim; otherwise the longest
// matching namespace prefix supplies the directory and the remaining
// segments become the file path.
func (l *Loader) GetPath(name string) string {
	if p, ok := l.pathCache.Get(name); ok {
		return p
	}
	p := l.resolvePath(name)
	l.pathCache.Add(name, p)
	return p
}

func (l *Loader) resolvePath(name string) string {
	if dir, ok := l.cfg.Paths[name]; ok {
		return dir
	}

	prefix := ""
	for p := range l.cfg.Paths {
		if strings.HasPrefix(name, p+".") && len(p) > len(prefix) {
			prefix = p
		}
	}

	rest := name
	base := ""
	if prefix != "" {
		base = l.cfg.Paths[prefix]
		rest = name[len(prefix)+1:]
	}
	if base != "" && !strings.HasSuffix(base, "/") {
		base += "/"
	}
	base = strings.ReplaceAll(base, "/./", "/")
	return base + classname.ToPath(rest) + l.cfg.Extension
}

// State returns the load state of a class name.
func (l *Loader) State(name string) LoadState {
	if l.classes.Has(name) {
		return StateDefined
	}
	return l.classStates[name]
}

// PathState returns the fetch state of a resource path.
func (l *Loader) PathState(path string) PathState {
	return l.pathStates[path]
}

// History returns the class names in the order they were defined.
func (l *Loader) History() []string {
	return append([]string(nil), l.history...)
}

// Source returns a fetched resource when PreserveScripts is on.
func (l *Loader) Source(path string) ([]byte, bool) {
	src, ok := l.sources[path]
	return src, ok
}

// Requires returns the requires map used for cycle detection.
func (l *Loader) Requires() *dag.RequiresMap {
	return l.requires
}

// Pending returns the remaining names of every queued callback.
func (l *Loader) Pending() [][]string {
	out := make([][]string, 0, len(l.queue))
	for _, q := range l.queue {
		out = append(out, append([]string(nil), q.remaining...))
	}
	return out
}

// Unresolved returns every name some queued callback still waits for.
func (l *Loader) Unresolved() []string {
	seen := make(map[string]struct{})
	for _, q := range l.queue {
		for _, n := range q.remaining {
			seen[n] = struct{}{}
		}
	}
	names := make([]string, 0, len(seen))
	for n := range seen {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Outstanding returns the number of resources requested but not yet
// delivered.
func (l *Loader) Outstanding() int {
	return l.outstanding
}

// Ready reports whether the ready signal has fired since the last request.
func (l *Loader) Ready() bool {
	return l.ready
}

// fail records a fatal error. The loader stops issuing fetches and the
// event loop stops at its next turn.
func (l *Loader) fail(ctx context.Context, err error) error {
	if !l.failed {
		l.failed = true
		ctxlog.FromContext(ctx).Error("Loader failed.", "error", err)
	}
	l.loop.Fail(err)
	return err
}

// Failed reports whether a fatal error has been recorded.
func (l *Loader) Failed() bool {
	return l.failed
}
