package pathlock_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jamesainslie/shelf/pkg/shelf/pathlock"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, time.Millisecond)
}

func TestAcquireUncontended(t *testing.T) {
	t.Parallel()

	m := pathlock.New()
	rel, err := m.Acquire(context.Background(), "/a")
	require.NoError(t, err)
	assert.True(t, m.Held("/a"))

	rel()
	rel()
	assert.False(t, m.Held("/a"))
}

func TestIndependentPaths(t *testing.T) {
	t.Parallel()

	m := pathlock.New()
	relA, err := m.Acquire(context.Background(), "/a")
	require.NoError(t, err)
	defer relA()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	relB, err := m.Acquire(ctx, "/b")
	require.NoError(t, err)
	relB()
}

func TestFIFOOrder(t *testing.T) {
	t.Parallel()

	m := pathlock.New()
	ctx := context.Background()

	first, err := m.Acquire(ctx, "/p")
	require.NoError(t, err)

	var (
		mu    sync.Mutex
		order []int
		wg    sync.WaitGroup
	)
	for i := 1; i <= 5; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			rel, err := m.Acquire(ctx, "/p")
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			order = append(order, id)
			mu.Unlock()
			rel()
		}(i)
		// queue waiters one at a time so their arrival order is known
		waitFor(t, func() bool { return m.Waiting("/p") == i })
	}

	first()
	wg.Wait()

	assert.Equal(t, []int{1, 2, 3, 4, 5}, order)
	assert.False(t, m.Held("/p"))
}

func TestSerializesCriticalSection(t *testing.T) {
	t.Parallel()

	m := pathlock.New()
	var inside, maxInside atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rel, err := m.Acquire(context.Background(), "/shared")
			if !assert.NoError(t, err) {
				return
			}
			n := inside.Add(1)
			for {
				cur := maxInside.Load()
				if n <= cur || maxInside.CompareAndSwap(cur, n) {
					break
				}
			}
			time.Sleep(time.Millisecond)
			inside.Add(-1)
			rel()
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), maxInside.Load())
}

func TestAcquireCancelled(t *testing.T) {
	t.Parallel()

	m := pathlock.New()
	rel, err := m.Acquire(context.Background(), "/c")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := m.Acquire(ctx, "/c")
		done <- err
	}()
	waitFor(t, func() bool { return m.Waiting("/c") == 1 })

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
	assert.Equal(t, 0, m.Waiting("/c"))

	rel()
	assert.False(t, m.Held("/c"))
}

func TestAcquireAll(t *testing.T) {
	t.Parallel()

	m := pathlock.New()
	rel, err := m.AcquireAll(context.Background(), "/src", "/dst", "/src", "")
	require.NoError(t, err)
	assert.True(t, m.Held("/src"))
	assert.True(t, m.Held("/dst"))

	rel()
	assert.False(t, m.Held("/src"))
	assert.False(t, m.Held("/dst"))
}

func TestAcquireAllReleasesOnFailure(t *testing.T) {
	t.Parallel()

	m := pathlock.New()
	holdDst, err := m.Acquire(context.Background(), "/dst")
	require.NoError(t, err)
	defer holdDst()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err = m.AcquireAll(ctx, "/src", "/dst")
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, m.Held("/src"))
}

func TestKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t, pathlock.Key("/a/b"), pathlock.Key("/a/./b/"))
}
