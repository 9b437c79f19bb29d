// Package eventloop provides the single logical thread the class system runs
// on.
//
// Every mutation of the registry, the requires map and the loader queue
// happens inside a turn of the loop. Blocking work (resource fetches) runs on
// its own goroutine and only posts its completion back as a later turn, so
// the shared state needs no locks. Timers follow the same rule.
package eventloop

import (
	"context"
	"sync"
	"time"
)

// Loop is a cooperative run queue. The zero value is not usable; call New.
type Loop struct {
	mu       sync.Mutex
	queue    []func()
	inflight int
	err      error
	wake     chan struct{}
}

// New returns an idle loop.
func New() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post schedules fn as a later turn. It is safe to call from any goroutine.
func (l *Loop) Post(fn func()) {
	l.mu.Lock()
	l.queue = append(l.queue, fn)
	l.mu.Unlock()
	l.signal()
}

// Go runs work on its own goroutine. The function work returns, if not nil,
// runs as a later turn of the loop. The loop does not go idle while work is
// outstanding.
func (l *Loop) Go(work func() func()) {
	l.mu.Lock()
	l.inflight++
	l.mu.Unlock()

	go func() {
		done := work()
		l.mu.Lock()
		l.inflight--
		if done != nil {
			l.queue = append(l.queue, done)
		}
		l.mu.Unlock()
		l.signal()
	}()
}

// AfterFunc runs fn as a turn of the loop once d has elapsed. A pending timer
// keeps the loop from going idle.
func (l *Loop) AfterFunc(d time.Duration, fn func()) {
	l.mu.Lock()
	l.inflight++
	l.mu.Unlock()

	time.AfterFunc(d, func() {
		l.mu.Lock()
		l.inflight--
		l.queue = append(l.queue, fn)
		l.mu.Unlock()
		l.signal()
	})
}

// Fail records a fatal error. Only the first one is kept; Run returns it at
// the next turn boundary.
func (l *Loop) Fail(err error) {
	if err == nil {
		return
	}
	l.mu.Lock()
	if l.err == nil {
		l.err = err
	}
	l.mu.Unlock()
	l.signal()
}

// Err returns the recorded fatal error.
func (l *Loop) Err() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Inflight returns the number of outstanding goroutines and timers.
func (l *Loop) Inflight() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.inflight
}

// Run executes turns until the loop is idle (nothing queued, nothing in
// flight), a fatal error is recorded, or ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	for {
		l.mu.Lock()
		if l.err != nil {
			err := l.err
			l.mu.Unlock()
			return err
		}
		if len(l.queue) > 0 {
			fn := l.queue[0]
			l.queue[0] = nil
			l.queue = l.queue[1:]
			l.mu.Unlock()
			fn()
			continue
		}
		idle := l.inflight == 0
		l.mu.Unlock()
		if idle {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Reset drops queued turns and the recorded error. Outstanding goroutines
// still deliver their completions.
func (l *Loop) Reset() {
	l.mu.Lock()
	l.queue = nil
	l.err = nil
	l.mu.Unlock()
}

func (l *Loop) signal() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}
