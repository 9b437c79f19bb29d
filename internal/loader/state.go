package loader

// LoadState is the progress of one class name.
type LoadState int

const (
	StateUnrequested LoadState = iota
	StatePending
	StateFetched
	StateDefined
)

func (s LoadState) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateFetched:
		return "fetched"
	case StateDefined:
		return "defined"
	default:
		return "unrequested"
	}
}

// PathState is the progress of one resource path.
type PathState int

const (
	PathUnrequested PathState = iota
	PathFetching
	PathLoaded
	PathErrored
)

func (s PathState) String() string {
	switch s {
	case PathFetching:
		return "fetching"
	case PathLoaded:
		return "loaded"
	case PathErrored:
		return "errored"
	default:
		return "unrequested"
	}
}

// queueItem is a callback blocked on a shrinking set of class names.
type queueItem struct {
	remaining []string
	callback  func()
	fired     bool
}

// shrink drops every name that is now defined.
func (q *queueItem) shrink(defined func(string) bool) {
	kept := q.remaining[:0]
	for _, n := range q.remaining {
		if !defined(n) {
			kept = append(kept, n)
		}
	}
	q.remaining = kept
}

func (q *queueItem) fire() {
	if q.fired {
		return
	}
	q.fired = true
	q.callback()
}
