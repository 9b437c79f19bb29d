package loader

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/vk/classkit/internal/classerr"
	"github.com/vk/classkit/internal/ctxlog"
	"github.com/vk/classkit/internal/fetch"
	"github.com/vk/classkit/internal/metrics"
)

// Require calls cb once every class named by names is defined. Names may be
// glob expressions; anything matched by excludes is dropped. When nothing is
// missing cb runs before Require returns. Otherwise cb is queued and every
// missing class that is neither requested nor under construction is
// requested.
func (l *Loader) Require(ctx context.Context, names []string, cb func(), excludes ...string) error {
	if cb == nil {
		cb = func() {}
	}
	wanted, err := l.expand(names, excludes)
	if err != nil {
		return err
	}

	var missing []string
	for _, n := range wanted {
		if !l.classes.Has(n) {
			missing = append(missing, n)
		}
	}
	if len(missing) == 0 {
		cb()
		return nil
	}

	l.ready = false
	l.queue = append(l.queue, &queueItem{remaining: missing, callback: cb})
	l.metrics.SetQueueDepth(len(l.queue))
	ctxlog.FromContext(ctx).Debug("Queued require.", "missing", missing)

	for _, n := range missing {
		if err := l.request(ctx, n); err != nil {
			return err
		}
	}
	return nil
}

// RequireSync is Require with every fetch it triggers done inline.
func (l *Loader) RequireSync(ctx context.Context, names []string, cb func(), excludes ...string) error {
	prev := l.mode
	l.mode = Sync
	defer func() { l.mode = prev }()
	return l.Require(ctx, names, cb, excludes...)
}

func (l *Loader) expand(names, excludes []string) ([]string, error) {
	manifest := l.manifestNames()

	drop := make(map[string]struct{})
	for _, expr := range excludes {
		matched, err := l.classes.Expand(expr, manifest...)
		if err != nil {
			return nil, fmt.Errorf("exclude %q: %w", expr, err)
		}
		for _, n := range matched {
			drop[n] = struct{}{}
		}
	}

	seen := make(map[string]struct{})
	var out []string
	for _, expr := range names {
		matched, err := l.classes.Expand(expr, manifest...)
		if err != nil {
			return nil, fmt.Errorf("require %q: %w", expr, err)
		}
		for _, n := range matched {
			if _, ok := drop[n]; ok {
				continue
			}
			if _, ok := seen[n]; ok {
				continue
			}
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	return out, nil
}

func (l *Loader) manifestNames() []string {
	if len(l.cfg.Manifest) == 0 {
		return nil
	}
	names := make([]string, 0, len(l.cfg.Manifest))
	for n := range l.cfg.Manifest {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// request moves name from unrequested to pending and, when the loader is
// enabled, starts fetching its resource.
func (l *Loader) request(ctx context.Context, name string) error {
	if l.failed {
		return l.loop.Err()
	}
	if l.classStates[name] != StateUnrequested || l.classes.Constructing(name) {
		return nil
	}

	if path := l.requires.Cycle(name); path != nil {
		l.metrics.CycleDetected()
		return l.fail(ctx, &classerr.CyclicDependencyError{Path: path})
	}

	l.classStates[name] = StatePending
	if !l.cfg.Enabled {
		ctxlog.FromContext(ctx).Debug("Loader disabled, not fetching.", "class", name)
		return nil
	}

	path := l.GetPath(name)
	l.classPaths[name] = path
	l.expected[path] = append(l.expected[path], name)

	switch l.pathStates[path] {
	case PathFetching, PathLoaded:
		return nil
	case PathErrored:
		return l.fail(ctx, &classerr.FetchError{ClassName: name, Path: path, Err: fmt.Errorf("resource failed earlier")})
	}
	l.pathStates[path] = PathFetching
	l.outstanding++

	if l.mode == Sync {
		return l.fetchInline(ctx, name, path)
	}
	l.loop.Post(func() { l.dispatch(ctx, name, path) })
	return nil
}

func (l *Loader) resourceURL(path string) string {
	if !l.cfg.DisableCaching || !fetch.IsRemote(path) {
		return path
	}
	busted, err := fetch.CacheBust(path, time.Now())
	if err != nil {
		return path
	}
	return busted
}

// dispatch issues the fetch for path on its own goroutine. The completion
// comes back as a later loop turn.
func (l *Loader) dispatch(ctx context.Context, name, path string) {
	if l.failed || l.classes.Has(name) || l.classes.Constructing(name) {
		l.outstanding--
		l.pathStates[path] = PathUnrequested
		l.RefreshQueue(ctx)
		return
	}

	id := uuid.NewString()
	url := l.resourceURL(path)
	logger := ctxlog.FromContext(ctx).With("fetch_id", id, "class", name, "path", url)
	logger.Debug("Fetching resource.")
	l.metrics.FetchStarted()

	fetcher := l.fetcher
	l.loop.Go(func() func() {
		start := time.Now()
		src, err := fetcher.Fetch(ctx, url)
		elapsed := time.Since(start)
		return func() {
			logger.Debug("Fetch finished.", "duration", elapsed, "error", err)
			l.onFetched(ctx, name, path, src, err, elapsed)
		}
	})
}

func (l *Loader) fetchInline(ctx context.Context, name, path string) error {
	id := uuid.NewString()
	url := l.resourceURL(path)
	ctxlog.FromContext(ctx).Debug("Fetching resource inline.", "fetch_id", id, "class", name, "path", url)
	l.metrics.FetchStarted()

	start := time.Now()
	src, err := l.fetcher.Fetch(ctx, url)
	if err := l.deliver(ctx, name, path, src, err, time.Since(start)); err != nil {
		return err
	}
	l.RefreshQueue(ctx)
	return l.loop.Err()
}

func (l *Loader) onFetched(ctx context.Context, name, path string, src []byte, fetchErr error, elapsed time.Duration) {
	if err := l.deliver(ctx, name, path, src, fetchErr, elapsed); err != nil {
		return
	}
	if l.cfg.ScriptChainDelay > 0 {
		l.loop.AfterFunc(l.cfg.ScriptChainDelay, func() { l.RefreshQueue(ctx) })
		return
	}
	l.RefreshQueue(ctx)
}

// deliver records a fetch completion and evaluates the resource.
func (l *Loader) deliver(ctx context.Context, name, path string, src []byte, fetchErr error, elapsed time.Duration) error {
	l.outstanding--

	if fetchErr != nil {
		l.pathStates[path] = PathErrored
		l.metrics.FetchFinished(metrics.OutcomeErrored, elapsed)
		return l.fail(ctx, &classerr.FetchError{ClassName: name, Path: path, Err: fetchErr})
	}
	l.metrics.FetchFinished(metrics.OutcomeLoaded, elapsed)

	decoded, err := fetch.Decode(src, l.cfg.ScriptCharset)
	if err != nil {
		l.pathStates[path] = PathErrored
		return l.fail(ctx, &classerr.FetchError{ClassName: name, Path: path, Err: err})
	}
	l.pathStates[path] = PathLoaded
	if l.cfg.PreserveScripts {
		l.sources[path] = decoded
	}
	for _, n := range l.expected[path] {
		if l.classStates[n] == StatePending {
			l.classStates[n] = StateFetched
		}
	}

	if l.eval == nil {
		return l.fail(ctx, fmt.Errorf("no evaluator configured for %s", path))
	}
	if err := l.eval.Evaluate(ctx, path, decoded); err != nil {
		return l.fail(ctx, fmt.Errorf("evaluate %s: %w", path, err))
	}
	return nil
}
