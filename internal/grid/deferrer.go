package grid

import "sync"

// Deferrer runs fn on the host's next idle turn, after the event handler
// that scheduled it has returned.
type Deferrer interface {
	Defer(fn func())
}

// DeferFunc adapts a function to Deferrer.
type DeferFunc func(fn func())

func (f DeferFunc) Defer(fn func()) { f(fn) }

// Queue is a Deferrer for hosts without an event loop. Deferred work runs
// when the host calls Flush.
type Queue struct {
	mu      sync.Mutex
	pending []func()
}

func (q *Queue) Defer(fn func()) {
	if fn == nil {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, fn)
	q.mu.Unlock()
}

// Flush runs queued work in order, including work queued while flushing,
// and returns how many functions ran.
func (q *Queue) Flush() int {
	ran := 0
	for {
		q.mu.Lock()
		if len(q.pending) == 0 {
			q.mu.Unlock()
			return ran
		}
		fn := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()
		fn()
		ran++
	}
}

// Len returns the number of queued functions.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}
