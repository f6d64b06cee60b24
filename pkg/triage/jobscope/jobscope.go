// Package jobscope provides a generic reference-counted registry for
// per-job shared resources. Many workers process files for the same job
// concurrently; the first worker to acquire a job id loads the shared
// resource, later workers reuse it, and the last worker to release tears
// it down. The registry is an explicit injectable object rather than
// process-global state, so tests can use isolated instances.
package jobscope

import (
	"errors"
	"sync"
)

// ErrNotInitialized is returned by Get when no resource is stored for the
// job id, either because Acquire was never called or because the reference
// count already returned to zero.
var ErrNotInitialized = errors.New("jobscope: resource not initialized for job")

// Loader builds the shared resource for a job. It runs exactly once per
// maximal span where the job's reference count is greater than zero.
type Loader[T any] func() (T, error)

// entry holds the per-job reference count and resource. Each entry has its
// own mutex so operations on different job ids never block each other; the
// loader runs under the entry mutex only, which makes the 0->1 transition
// and the store indivisible for same-job observers.
type entry[T any] struct {
	mu      sync.Mutex
	refs    int64
	res     T
	ready   bool
	removed bool
}

// Registry maps job ids to reference-counted shared resources. The resource
// value is treated as immutable once loaded; callers holding a value from an
// earlier Get may keep using it after their Release.
//
// The zero value is not usable; create instances with New.
type Registry[T any] struct {
	mu      sync.Mutex
	entries map[int64]*entry[T]
}

// New creates an empty registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{
		entries: make(map[int64]*entry[T]),
	}
}

// Acquire increments the reference count for jobID and returns the count
// after the increment. When the count transitions 0->1 the loader runs to
// build the shared resource; concurrent acquirers for the same job block
// until the load completes and then observe the stored resource. If the
// loader fails, the count rolls back to 0 and the error is returned.
//
// The registry lock is held only for the map lookup, never across the
// loader, so acquires for different job ids do not block each other.
func (r *Registry[T]) Acquire(jobID int64, loader Loader[T]) (int64, error) {
	for {
		r.mu.Lock()
		e, ok := r.entries[jobID]
		if !ok {
			e = &entry[T]{}
			r.entries[jobID] = e
		}
		r.mu.Unlock()

		e.mu.Lock()
		if e.removed {
			// Lost a race with a release that brought the count to zero
			// and unlinked this entry. Start over with a fresh entry.
			e.mu.Unlock()
			continue
		}

		e.refs++
		if e.refs == 1 && !e.ready {
			res, err := loader()
			if err != nil {
				e.refs--
				e.removed = true
				e.mu.Unlock()
				r.unlink(jobID, e)
				return 0, err
			}
			e.res = res
			e.ready = true
		}
		count := e.refs
		e.mu.Unlock()
		return count, nil
	}
}

// Get returns the resource stored for jobID. It returns ErrNotInitialized
// when no successful Acquire has happened, or after the count returned to
// zero. A Get racing a first Acquire for the same job blocks until the
// load completes.
func (r *Registry[T]) Get(jobID int64) (T, error) {
	var zero T

	r.mu.Lock()
	e, ok := r.entries[jobID]
	r.mu.Unlock()
	if !ok {
		return zero, ErrNotInitialized
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed || !e.ready {
		return zero, ErrNotInitialized
	}
	return e.res, nil
}

// Release decrements the reference count for jobID and returns the count
// after the decrement. When the count reaches zero the stored resource is
// removed. Releasing an unknown job id, or one already at zero, is a no-op
// returning 0, so shutdown paths can call Release unconditionally.
func (r *Registry[T]) Release(jobID int64) int64 {
	r.mu.Lock()
	e, ok := r.entries[jobID]
	r.mu.Unlock()
	if !ok {
		return 0
	}

	e.mu.Lock()
	if e.removed || e.refs == 0 {
		e.mu.Unlock()
		return 0
	}
	e.refs--
	count := e.refs
	if count == 0 {
		var zero T
		e.res = zero
		e.ready = false
		e.removed = true
	}
	e.mu.Unlock()

	if count == 0 {
		r.unlink(jobID, e)
	}
	return count
}

// Refs returns the current reference count for jobID, 0 if unknown.
func (r *Registry[T]) Refs(jobID int64) int64 {
	r.mu.Lock()
	e, ok := r.entries[jobID]
	r.mu.Unlock()
	if !ok {
		return 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.removed {
		return 0
	}
	return e.refs
}

// unlink removes the entry from the map if it is still the current one for
// the job id. A newer entry for the same id is left alone.
func (r *Registry[T]) unlink(jobID int64, e *entry[T]) {
	r.mu.Lock()
	if r.entries[jobID] == e {
		delete(r.entries, jobID)
	}
	r.mu.Unlock()
}
