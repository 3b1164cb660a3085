// Package lock provides the per-key locks that serialize work on one SKU,
// supplier, technician or job.
package lock

import (
	"context"
	"fmt"
	"sync"
	"time"

	"field-dispatch/internal/core"
)

// KeyedMutex is an in-process core.Locker. Each key is a one-slot semaphore, so
// waiting honours context cancellation and the configured wait budget.
type KeyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
	wait  time.Duration
}

type keyedEntry struct {
	slot chan struct{}
	refs int
}

// NewKeyedMutex returns a locker that gives up after wait. Zero waits on ctx alone.
func NewKeyedMutex(wait time.Duration) *KeyedMutex {
	return &KeyedMutex{locks: make(map[string]*keyedEntry), wait: wait}
}

func (m *KeyedMutex) Acquire(ctx context.Context, key string) (func(), error) {
	m.mu.Lock()
	e, ok := m.locks[key]
	if !ok {
		e = &keyedEntry{slot: make(chan struct{}, 1)}
		m.locks[key] = e
	}
	e.refs++
	m.mu.Unlock()

	if m.wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.wait)
		defer cancel()
	}

	select {
	case e.slot <- struct{}{}:
		var once sync.Once
		return func() {
			once.Do(func() {
				<-e.slot
				m.drop(key, e)
			})
		}, nil
	case <-ctx.Done():
		m.drop(key, e)
		return nil, fmt.Errorf("%w: %s: %v", core.ErrLockUnavailable, key, ctx.Err())
	}
}

// drop forgets the entry once nobody holds or waits on it.
func (m *KeyedMutex) drop(key string, e *keyedEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e.refs--
	if e.refs == 0 {
		delete(m.locks, key)
	}
}

var _ core.Locker = (*KeyedMutex)(nil)
