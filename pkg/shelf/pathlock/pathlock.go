// Package pathlock serializes work on filesystem paths within one process.
//
// Each path has at most one holder. Further callers queue in FIFO order and
// are handed the lock directly when the holder releases it. Locks are
// advisory and do not coordinate with other processes. Callers that take
// several locks must take them in a consistent order; cycles are not
// detected.
package pathlock

import (
	"context"
	"path/filepath"
	"slices"
	"sync"
)

// Release gives a lock back. Calling it more than once is a no-op.
type Release func()

type entry struct {
	// waiters are signalled in order; a closed channel means the lock has
	// been handed to that waiter.
	waiters []chan struct{}
}

// Manager hands out per-path locks. The zero value is not usable; call New.
type Manager struct {
	mu    sync.Mutex
	paths map[string]*entry
}

// New creates a lock manager.
func New() *Manager {
	return &Manager{paths: make(map[string]*entry)}
}

// Key normalizes a filesystem path into a lock key.
func Key(path string) string {
	return filepath.Clean(path)
}

// Acquire blocks until the caller holds key or ctx is done.
func (m *Manager) Acquire(ctx context.Context, key string) (Release, error) {
	m.mu.Lock()
	e, held := m.paths[key]
	if !held {
		m.paths[key] = &entry{}
		m.mu.Unlock()
		return m.releaser(key), nil
	}
	ch := make(chan struct{})
	e.waiters = append(e.waiters, ch)
	m.mu.Unlock()

	select {
	case <-ch:
		return m.releaser(key), nil
	case <-ctx.Done():
		m.mu.Lock()
		select {
		case <-ch:
			// Handed over while cancelling; pass it on.
			m.mu.Unlock()
			m.release(key)
		default:
			e.waiters = slices.DeleteFunc(e.waiters, func(w chan struct{}) bool { return w == ch })
			m.mu.Unlock()
		}
		return nil, ctx.Err()
	}
}

// AcquireAll takes the locks for keys in the given order, skipping
// duplicates. On failure nothing stays held. The returned Release frees
// them in reverse order.
func (m *Manager) AcquireAll(ctx context.Context, keys ...string) (Release, error) {
	var releases []Release
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}

	seen := make(map[string]bool, len(keys))
	for _, key := range keys {
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		rel, err := m.Acquire(ctx, key)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, rel)
	}
	return once(releaseAll), nil
}

// Held reports whether key is currently held.
func (m *Manager) Held(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.paths[key]
	return ok
}

// Waiting returns the number of callers queued on key.
func (m *Manager) Waiting(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	if e, ok := m.paths[key]; ok {
		return len(e.waiters)
	}
	return 0
}

func (m *Manager) releaser(key string) Release {
	return once(func() { m.release(key) })
}

func (m *Manager) release(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.paths[key]
	if !ok {
		return
	}
	if len(e.waiters) == 0 {
		delete(m.paths, key)
		return
	}
	next := e.waiters[0]
	e.waiters = e.waiters[1:]
	close(next)
}

func once(fn func()) Release {
	var o sync.Once
	return func() { o.Do(fn) }
}
