package concurrent

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sourcegraph/conc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitForQueue(t *testing.T, lm *LockManager, userID int64, n int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return lm.Waiting(userID) == n
	}, 2*time.Second, time.Millisecond)
}

func TestLockManager_MutualExclusion(t *testing.T) {
	lm := NewLockManager()
	ctx := context.Background()

	counter := 0
	active := 0
	maxActive := 0
	var statsMu sync.Mutex

	var wg conc.WaitGroup
	for i := 0; i < 200; i++ {
		wg.Go(func() {
			lock, err := lm.Acquire(ctx, 1)
			if !assert.NoError(t, err) {
				return
			}
			defer lock.Release()

			statsMu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			statsMu.Unlock()

			counter++

			statsMu.Lock()
			active--
			statsMu.Unlock()
		})
	}
	wg.Wait()

	assert.Equal(t, 200, counter)
	assert.Equal(t, 1, maxActive)
}

func TestLockManager_FIFOOrder(t *testing.T) {
	lm := NewLockManager()
	ctx := context.Background()
	const userID int64 = 7
	const waiters = 20

	holder, err := lm.Acquire(ctx, userID)
	require.NoError(t, err)

	var order []int
	var orderMu sync.Mutex
	var wg conc.WaitGroup

	for i := 0; i < waiters; i++ {
		idx := i
		wg.Go(func() {
			lock, err := lm.Acquire(ctx, userID)
			if !assert.NoError(t, err) {
				return
			}

			orderMu.Lock()
			order = append(order, idx)
			orderMu.Unlock()

			lock.Release()
		})
		waitForQueue(t, lm, userID, i+1)
	}

	holder.Release()
	wg.Wait()

	expected := make([]int, waiters)
	for i := range expected {
		expected[i] = i
	}
	assert.Equal(t, expected, order)
}

func TestLockManager_DistinctUsersDoNotBlock(t *testing.T) {
	lm := NewLockManager()

	held, err := lm.Acquire(context.Background(), 1)
	require.NoError(t, err)
	defer held.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	other, err := lm.Acquire(ctx, 2)
	require.NoError(t, err)
	other.Release()
}

func TestLockManager_AcquireTimeout(t *testing.T) {
	lm := NewLockManager()

	held, err := lm.Acquire(context.Background(), 1)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	lock, err := lm.Acquire(ctx, 1)
	assert.Nil(t, lock)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 0, lm.Waiting(1))

	held.Release()

	ctx2, cancel2 := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel2()
	lock, err = lm.Acquire(ctx2, 1)
	require.NoError(t, err)
	lock.Release()
}

func TestLockManager_CancelledWaiterKeepsOrder(t *testing.T) {
	lm := NewLockManager()
	const userID int64 = 3

	holder, err := lm.Acquire(context.Background(), userID)
	require.NoError(t, err)

	var order []string
	var orderMu sync.Mutex
	record := func(name string) {
		orderMu.Lock()
		order = append(order, name)
		orderMu.Unlock()
	}

	var wg conc.WaitGroup

	wg.Go(func() {
		lock, err := lm.Acquire(context.Background(), userID)
		if !assert.NoError(t, err) {
			return
		}
		record("a")
		lock.Release()
	})
	waitForQueue(t, lm, userID, 1)

	cancelCtx, cancel := context.WithCancel(context.Background())
	cancelled := make(chan error, 1)
	go func() {
		_, err := lm.Acquire(cancelCtx, userID)
		cancelled <- err
	}()
	waitForQueue(t, lm, userID, 2)

	wg.Go(func() {
		lock, err := lm.Acquire(context.Background(), userID)
		if !assert.NoError(t, err) {
			return
		}
		record("c")
		lock.Release()
	})
	waitForQueue(t, lm, userID, 3)

	cancel()
	assert.ErrorIs(t, <-cancelled, context.Canceled)
	waitForQueue(t, lm, userID, 2)

	holder.Release()
	wg.Wait()

	assert.Equal(t, []string{"a", "c"}, order)
}

func TestLockManager_LazyCreationIsSingle(t *testing.T) {
	lm := NewLockManager()

	var wg conc.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Go(func() {
			lock, err := lm.Acquire(context.Background(), 42)
			if !assert.NoError(t, err) {
				return
			}
			lock.Release()
		})
	}
	wg.Wait()

	assert.Equal(t, 1, lm.Len())

	lock, err := lm.Acquire(context.Background(), 43)
	require.NoError(t, err)
	lock.Release()
	assert.Equal(t, 2, lm.Len())
}

func TestUserLock_ReleaseTwiceIsNoop(t *testing.T) {
	lm := NewLockManager()

	first, err := lm.Acquire(context.Background(), 5)
	require.NoError(t, err)
	assert.Equal(t, int64(5), first.UserID())

	first.Release()
	first.Release()

	second, err := lm.Acquire(context.Background(), 5)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = lm.Acquire(ctx, 5)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "double release must not unlock a later holder")

	second.Release()
}
