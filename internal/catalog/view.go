package catalog

import "sync"

// view is the last collection the server returned. It is only ever
// replaced wholesale.
type view[T any] struct {
	mu    sync.RWMutex
	items []T
	stale bool
}

func (v *view[T]) replace(items []T) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.items = items
	v.stale = false
}

// markStale flags the view as possibly out of date after a failed refetch
func (v *view[T]) markStale() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.stale = true
}

func (v *view[T]) snapshot() []T {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]T, len(v.items))
	copy(out, v.items)
	return out
}

func (v *view[T]) isStale() bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.stale
}
