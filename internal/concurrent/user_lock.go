package concurrent

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
)

// fairMutex grants ownership to waiters strictly in the order they called
// lock. Release hands ownership directly to the oldest waiter, so a
// late-arriving goroutine can never barge ahead of a queued one.
type fairMutex struct {
	mu      sync.Mutex
	held    bool
	waiters list.List // of chan struct{}
}

func (m *fairMutex) lock(ctx context.Context) error {
	m.mu.Lock()
	if !m.held && m.waiters.Len() == 0 {
		m.held = true
		m.mu.Unlock()
		return nil
	}

	ready := make(chan struct{})
	elem := m.waiters.PushBack(ready)
	m.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
	}

	m.mu.Lock()
	select {
	case <-ready:
		// Ownership was handed over while we were giving up; pass it on.
		m.mu.Unlock()
		m.unlock()
	default:
		m.waiters.Remove(elem)
		m.mu.Unlock()
	}

	return ctx.Err()
}

func (m *fairMutex) unlock() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if front := m.waiters.Front(); front != nil {
		m.waiters.Remove(front)
		close(front.Value.(chan struct{}))
		return
	}

	m.held = false
}

func (m *fairMutex) queueLength() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.waiters.Len()
}

// UserLock is the handle returned by LockManager.Acquire.
type UserLock struct {
	userID   int64
	mutex    *fairMutex
	released atomic.Bool
}

func (l *UserLock) UserID() int64 {
	return l.userID
}

// Release gives the lock to the next waiter. Calls after the first are no-ops.
func (l *UserLock) Release() {
	if l.released.CompareAndSwap(false, true) {
		l.mutex.unlock()
	}
}

// LockManager hands out one fair mutex per user id. Locks are created lazily
// and live as long as the manager.
type LockManager struct {
	locks sync.Map // int64 -> *fairMutex
	count atomic.Int64
}

func NewLockManager() *LockManager {
	return &LockManager{}
}

func (lm *LockManager) mutexFor(userID int64) *fairMutex {
	if m, ok := lm.locks.Load(userID); ok {
		return m.(*fairMutex)
	}

	m, loaded := lm.locks.LoadOrStore(userID, &fairMutex{})
	if !loaded {
		lm.count.Add(1)
	}
	return m.(*fairMutex)
}

// Acquire blocks until the caller owns userID's lock or ctx is done. Waiters
// for the same user are served first-come-first-served.
func (lm *LockManager) Acquire(ctx context.Context, userID int64) (*UserLock, error) {
	m := lm.mutexFor(userID)
	if err := m.lock(ctx); err != nil {
		return nil, err
	}

	return &UserLock{userID: userID, mutex: m}, nil
}

// Len returns the number of users that have a registered lock.
func (lm *LockManager) Len() int {
	return int(lm.count.Load())
}

// Waiting returns the number of goroutines queued for userID's lock.
func (lm *LockManager) Waiting(userID int64) int {
	m, ok := lm.locks.Load(userID)
	if !ok {
		return 0
	}
	return m.(*fairMutex).queueLength()
}
