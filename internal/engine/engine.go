package engine

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/vk/classkit/internal/class"
	"github.com/vk/classkit/internal/classerr"
	"github.com/vk/classkit/internal/classname"
	"github.com/vk/classkit/internal/ctxlog"
	"github.com/vk/classkit/internal/dag"
	"github.com/vk/classkit/internal/eventloop"
	"github.com/vk/classkit/internal/factory"
	"github.com/vk/classkit/internal/fetch"
	"github.com/vk/classkit/internal/hcl"
	"github.com/vk/classkit/internal/loader"
	"github.com/vk/classkit/internal/metrics"
	"github.com/vk/classkit/internal/model"
	"github.com/vk/classkit/internal/preprocessor"
	"github.com/vk/classkit/internal/registry"
	"github.com/zclconf/go-cty/cty"
)

// DefaultFetchTimeout bounds a single remote fetch.
const DefaultFetchTimeout = 30 * time.Second

// Options configure an Engine.
type Options struct {
	// Loader is the loader configuration. The zero value is replaced by
	// loader.DefaultConfig.
	Loader *loader.Config
	// Root resolves relative resource paths. Empty means the working
	// directory.
	Root string
	// Fetcher overrides the default file and HTTP fetcher.
	Fetcher fetch.Fetcher
	// Modules are installed into the method library.
	Modules []registry.Module
	// Metrics receives loader metrics. Nil creates a private collector.
	Metrics *metrics.Collector
}

// Engine is one class system context.
type Engine struct {
	registry  *registry.Registry
	library   *registry.Library
	chain     *preprocessor.Chain
	factory   *factory.Factory
	loader    *loader.Loader
	loop      *eventloop.Loop
	requires  *dag.RequiresMap
	metrics   *metrics.Collector
	evaluator *hcl.Evaluator
	http      *fetch.HTTP
}

// New creates an engine with the built-in preprocessors and the loader step
// installed.
func New(opts Options) (*Engine, error) {
	cfg := loader.DefaultConfig()
	if opts.Loader != nil {
		cfg = *opts.Loader
	}

	e := &Engine{
		registry: registry.New(),
		library:  registry.NewLibrary(),
		chain:    preprocessor.NewChain(),
		loop:     eventloop.New(),
		requires: dag.New(),
		metrics:  opts.Metrics,
	}
	if e.metrics == nil {
		e.metrics = metrics.New()
	}
	e.library.Install(opts.Modules...)

	fetcher := opts.Fetcher
	if fetcher == nil {
		e.http = fetch.NewHTTP(DefaultFetchTimeout)
		fetcher = &fetch.Auto{Local: &fetch.File{Root: opts.Root}, Remote: e.http}
	}

	if err := factory.RegisterBuiltins(e.chain, e.registry); err != nil {
		return nil, err
	}
	e.factory = factory.New(e.chain)
	e.evaluator = hcl.NewEvaluator(e, e.library)

	l, err := loader.New(cfg, loader.Deps{
		Classes:   e.registry,
		Loop:      e.loop,
		Fetcher:   fetcher,
		Evaluator: e.evaluator,
		Requires:  e.requires,
		Metrics:   e.metrics,
	})
	if err != nil {
		return nil, err
	}
	if err := l.Register(e.chain); err != nil {
		return nil, err
	}
	e.loader = l
	return e, nil
}

// Define registers name and starts constructing it from spec. onCreated, if
// not nil, runs once the class is finished, which may be after Define
// returns when the class waits for dependencies. Errors detected before the
// construction suspends are returned; later ones stop Run.
func (e *Engine) Define(ctx context.Context, name string, spec *model.Spec, onCreated func(*class.Class)) error {
	logger := ctxlog.FromContext(ctx)
	if err := classname.Validate(name); err != nil {
		return classerr.Configuration("define: %v", err)
	}
	if spec == nil {
		spec = model.NewSpec()
	}
	if err := e.registry.Begin(name); err != nil {
		return err
	}
	e.loader.MarkDeclared(name)
	logger.Debug("Defining class.", "class", name)

	returned := false
	var syncErr error
	e.factory.Create(ctx, name, spec, func(c *class.Class, err error) {
		if err != nil {
			e.registry.Abort(name)
			if !returned {
				syncErr = err
			}
			e.loader.Fail(ctx, err)
			return
		}
		e.registry.Set(c)
		logger.Debug("Class defined.", "class", name)
		if onCreated != nil {
			onCreated(c)
		}
		e.loader.OnDefined(ctx, name)
	})
	returned = true
	return syncErr
}

// Require calls cb once every named class is defined. See loader.Require.
func (e *Engine) Require(ctx context.Context, names []string, cb func(), excludes ...string) error {
	return e.loader.Require(ctx, names, cb, excludes...)
}

// RequireSync is Require with fetches done inline.
func (e *Engine) RequireSync(ctx context.Context, names []string, cb func(), excludes ...string) error {
	return e.loader.RequireSync(ctx, names, cb, excludes...)
}

// OnReady runs fn once every requested class and soft dependency is
// defined.
func (e *Engine) OnReady(fn func()) {
	e.loader.OnReady(fn)
}

// Run drives the event loop until nothing is left to do. It returns the
// first fatal error. Callbacks still waiting when the loop goes idle are
// reported as a ConfigurationError.
func (e *Engine) Run(ctx context.Context) error {
	logger := ctxlog.FromContext(ctx)
	logger.Debug("Engine run started.")

	// Settles listeners registered after everything they wait for was
	// already defined.
	e.loop.Post(func() { e.loader.RefreshQueue(ctx) })
	if err := e.loop.Run(ctx); err != nil {
		return err
	}
	if pending := e.loader.Unresolved(); len(pending) > 0 {
		if !e.loader.Config().Enabled {
			return classerr.Configuration("the loader is disabled and these classes were never defined: %s", strings.Join(pending, ", "))
		}
		return classerr.Configuration("these classes could not be resolved: %s", strings.Join(pending, ", "))
	}
	logger.Debug("Engine run finished.", "classes", e.registry.Len())
	return nil
}

// Class returns a defined class.
func (e *Engine) Class(name string) (*class.Class, bool) {
	return e.registry.Get(name)
}

// Classes returns the names of every defined class, sorted.
func (e *Engine) Classes() []string {
	return e.registry.Names()
}

// NewInstance creates an instance of a defined class and assigns the given
// config values through the class's setters, in key order.
func (e *Engine) NewInstance(ctx context.Context, name string, config map[string]cty.Value) (*class.Instance, error) {
	c, ok := e.registry.Get(name)
	if !ok {
		return nil, fmt.Errorf("class %q is not defined", name)
	}
	inst := class.New(c)

	keys := make([]string, 0, len(config))
	for k := range config {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := inst.Set(ctx, k, config[k]); err != nil {
			return nil, fmt.Errorf("class %q: %w", name, err)
		}
	}
	return inst, nil
}

// Evaluate defines the classes of an in-memory resource.
func (e *Engine) Evaluate(ctx context.Context, path string, src []byte) error {
	return e.evaluator.Evaluate(ctx, path, src)
}

// Preload defines every class resource found under paths without going
// through the loader.
func (e *Engine) Preload(ctx context.Context, paths ...string) (int, error) {
	return e.evaluator.Preload(ctx, e.loader.Config().Extension, paths...)
}

// RegisterPreprocessor adds a custom step to the chain.
func (e *Engine) RegisterPreprocessor(name string, fn preprocessor.Step, opts ...preprocessor.Option) error {
	return e.chain.Register(name, fn, opts...)
}

// History returns class names in definition order.
func (e *Engine) History() []string {
	return e.loader.History()
}

// Loader returns the engine's loader.
func (e *Engine) Loader() *loader.Loader {
	return e.loader
}

// Library returns the method library.
func (e *Engine) Library() *registry.Library {
	return e.library
}

// Metrics returns the engine's metrics collector.
func (e *Engine) Metrics() *metrics.Collector {
	return e.metrics
}

// Reset forgets every class, request and listener. Registered
// preprocessors and methods are kept.
func (e *Engine) Reset() {
	e.registry.Reset()
	e.loop.Reset()
	e.loader.Reset()
}

// Close releases pooled connections.
func (e *Engine) Close() {
	if e.http != nil {
		e.http.Close()
	}
}
