// Package cleanup runs shutdown hooks such as closing the store and
// flushing the log file.
package cleanup

import (
	"errors"
	"sync"
)

var (
	mu    sync.Mutex
	hooks []func() error
)

// Register adds a hook. Hooks run last-in first-out.
func Register(hook func() error) {
	if hook == nil {
		return
	}
	mu.Lock()
	defer mu.Unlock()
	hooks = append(hooks, hook)
}

// RunAll runs and forgets every hook, joining their errors.
func RunAll() error {
	mu.Lock()
	local := hooks
	hooks = nil
	mu.Unlock()

	var errs []error
	for i := len(local) - 1; i >= 0; i-- {
		if err := local[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
