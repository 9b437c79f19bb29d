package loader

import (
	"context"
	"sort"

	"github.com/vk/classkit/internal/classerr"
	"github.com/vk/classkit/internal/ctxlog"
)

// RefreshQueue drops defined names from every queued callback and fires the
// callbacks left with nothing to wait for. The scan restarts after each fire
// because a callback may define classes or queue new work. A call made while
// a refresh is already running only marks the scan dirty.
//
// Once the queue and the in-flight fetches are both empty, resources that
// loaded without declaring their class are reported, and otherwise soft
// dependencies are required until a pass adds nothing new, at which point
// the ready listeners fire.
func (l *Loader) RefreshQueue(ctx context.Context) {
	if l.refreshing {
		l.dirty = true
		return
	}
	l.refreshing = true
	defer func() { l.refreshing = false }()

	for {
		l.dirty = false
		l.drain()
		l.metrics.SetQueueDepth(len(l.queue))
		if l.dirty {
			continue
		}
		if l.failed || l.outstanding > 0 {
			return
		}
		if err := l.checkDeclarations(); err != nil {
			l.metrics.Mismatch()
			l.fail(ctx, err)
			return
		}
		if len(l.queue) > 0 {
			return
		}
		added, err := l.requireSoftDeps(ctx)
		if err != nil {
			return
		}
		if added || l.dirty {
			continue
		}
		l.fireReady(ctx)
		return
	}
}

func (l *Loader) drain() {
	for i := 0; i < len(l.queue); {
		q := l.queue[i]
		q.shrink(l.classes.Has)
		if len(q.remaining) > 0 {
			i++
			continue
		}
		l.queue = append(l.queue[:i], l.queue[i+1:]...)
		q.fire()
		i = 0
	}
}

// checkDeclarations reports every requested class whose resource loaded but
// which was neither declared nor defined.
func (l *Loader) checkDeclarations() error {
	var mismatches []classerr.Mismatch
	for name, path := range l.classPaths {
		if l.pathStates[path] != PathLoaded {
			continue
		}
		if l.declared[name] || l.classes.Has(name) || l.classes.Constructing(name) {
			continue
		}
		mismatches = append(mismatches, classerr.Mismatch{ClassName: name, Path: path})
	}
	if len(mismatches) == 0 {
		return nil
	}
	sort.Slice(mismatches, func(i, j int) bool { return mismatches[i].ClassName < mismatches[j].ClassName })
	return &classerr.DeclarationMismatchError{Mismatches: mismatches}
}

func (l *Loader) requireSoftDeps(ctx context.Context) (bool, error) {
	var fresh []string
	for _, n := range l.softDeps {
		if l.softRequested[n] {
			continue
		}
		l.softRequested[n] = true
		fresh = append(fresh, n)
	}
	if len(fresh) == 0 {
		return false, nil
	}
	ctxlog.FromContext(ctx).Debug("Requiring soft dependencies.", "uses", fresh)
	if err := l.Require(ctx, fresh, nil); err != nil {
		return false, err
	}
	return true, nil
}

func (l *Loader) fireReady(ctx context.Context) {
	l.ready = true
	listeners := l.readyListeners
	l.readyListeners = nil
	if len(listeners) > 0 {
		ctxlog.FromContext(ctx).Debug("Loader ready.", "listeners", len(listeners))
	}
	for _, fn := range listeners {
		fn()
	}
}

// OnReady registers fn to run once every requested class and every soft
// dependency is defined. If that is already the case fn runs immediately.
func (l *Loader) OnReady(fn func()) {
	if l.ready && len(l.queue) == 0 && l.outstanding == 0 {
		fn()
		return
	}
	l.readyListeners = append(l.readyListeners, fn)
}

// MarkDeclared records that a resource announced name, which clears it from
// the declaration mismatch check even while its construction is suspended.
func (l *Loader) MarkDeclared(name string) {
	l.declared[name] = true
}

// OnDefined records a completed class and refreshes the queue.
func (l *Loader) OnDefined(ctx context.Context, name string) {
	l.declared[name] = true
	l.classStates[name] = StateDefined
	l.history = append(l.history, name)
	l.metrics.ClassDefined()
	l.RefreshQueue(ctx)
}

// AddUses collects soft dependencies. They are required only when
// everything hard has settled.
func (l *Loader) AddUses(names ...string) {
	for _, n := range names {
		if l.softRequested[n] {
			continue
		}
		dup := false
		for _, have := range l.softDeps {
			if have == n {
				dup = true
				break
			}
		}
		if !dup {
			l.softDeps = append(l.softDeps, n)
		}
	}
}

// Fail records a fatal error raised outside the loader, such as a failed
// class construction.
func (l *Loader) Fail(ctx context.Context, err error) error {
	return l.fail(ctx, err)
}
