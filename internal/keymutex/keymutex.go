// Package keymutex provides an in-process mutex keyed by string with FIFO
// handoff, used to serialize concurrent purchase attempts that share an
// idempotency key. Lock nodes live only while a key is held or contended.
package keymutex

import (
	"context"
	"sync"
)

type lockState struct {
	held    bool
	waiters []chan struct{} // FIFO queue
}

// KeyMutex is a set of named mutexes. The zero value is not usable; call New.
type KeyMutex struct {
	mu    sync.Mutex
	locks map[string]*lockState
}

// New creates an empty KeyMutex.
func New() *KeyMutex {
	return &KeyMutex{locks: make(map[string]*lockState)}
}

// Acquire blocks until the mutex for key is held by the caller or ctx is
// done. Waiters are served in arrival order.
func (m *KeyMutex) Acquire(ctx context.Context, key string) error {
	m.mu.Lock()
	st, ok := m.locks[key]
	if !ok {
		m.locks[key] = &lockState{held: true}
		m.mu.Unlock()
		return nil
	}

	ch := make(chan struct{})
	st.waiters = append(st.waiters, ch)
	m.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		m.mu.Lock()
		// The handoff may have raced the cancellation. If we were already
		// signaled we own the lock and must pass it on.
		select {
		case <-ch:
			m.releaseLocked(key)
		default:
			m.removeWaiterLocked(key, ch)
		}
		m.mu.Unlock()
		return ctx.Err()
	}
}

// Release hands the mutex for key to the next waiter, or deletes the lock
// node when nobody is waiting. Releasing an unheld key is a no-op.
func (m *KeyMutex) Release(key string) {
	m.mu.Lock()
	m.releaseLocked(key)
	m.mu.Unlock()
}

func (m *KeyMutex) releaseLocked(key string) {
	st, ok := m.locks[key]
	if !ok {
		return
	}
	if len(st.waiters) == 0 {
		delete(m.locks, key)
		return
	}
	next := st.waiters[0]
	st.waiters = st.waiters[1:]
	close(next)
}

func (m *KeyMutex) removeWaiterLocked(key string, ch chan struct{}) {
	st, ok := m.locks[key]
	if !ok {
		return
	}
	for i, w := range st.waiters {
		if w == ch {
			st.waiters = append(st.waiters[:i], st.waiters[i+1:]...)
			return
		}
	}
}

// Len reports how many keys are currently held or contended. Used by tests
// to verify lock nodes are reclaimed.
func (m *KeyMutex) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}
