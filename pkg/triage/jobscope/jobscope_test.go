package jobscope

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_AcquireLoadsOnce(t *testing.T) {
	r := New[string]()

	var loads atomic.Int64
	loader := func() (string, error) {
		loads.Add(1)
		return "snapshot", nil
	}

	count, err := r.Acquire(1, loader)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	count, err = r.Acquire(1, loader)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	assert.Equal(t, int64(1), loads.Load())

	res, err := r.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "snapshot", res)
}

func TestRegistry_GetBeforeAcquire(t *testing.T) {
	r := New[string]()

	_, err := r.Get(7)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestRegistry_LoaderFailureRollsBack(t *testing.T) {
	r := New[string]()
	boom := errors.New("definitions unreadable")

	_, err := r.Acquire(1, func() (string, error) {
		return "", boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, int64(0), r.Refs(1))

	_, err = r.Get(1)
	assert.ErrorIs(t, err, ErrNotInitialized)

	// A later acquire retries the loader.
	count, err := r.Acquire(1, func() (string, error) {
		return "second try", nil
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	res, err := r.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "second try", res)
}

func TestRegistry_ReleaseToZeroRemoves(t *testing.T) {
	r := New[string]()

	_, err := r.Acquire(1, func() (string, error) { return "snap", nil })
	require.NoError(t, err)
	_, err = r.Acquire(1, func() (string, error) { return "other", nil })
	require.NoError(t, err)

	assert.Equal(t, int64(1), r.Release(1))

	// Still readable while the count is above zero.
	res, err := r.Get(1)
	require.NoError(t, err)
	assert.Equal(t, "snap", res)

	assert.Equal(t, int64(0), r.Release(1))
	_, err = r.Get(1)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestRegistry_ReleaseUnknownJobIsNoop(t *testing.T) {
	r := New[string]()

	assert.Equal(t, int64(0), r.Release(42))

	// Releasing past zero is also a no-op.
	_, err := r.Acquire(42, func() (string, error) { return "snap", nil })
	require.NoError(t, err)
	assert.Equal(t, int64(0), r.Release(42))
	assert.Equal(t, int64(0), r.Release(42))
}

func TestRegistry_LoaderRunsOncePerSpan(t *testing.T) {
	r := New[int]()

	var loads atomic.Int64
	loader := func() (int, error) {
		return int(loads.Add(1)), nil
	}

	// First span: two acquirers.
	_, err := r.Acquire(1, loader)
	require.NoError(t, err)
	_, err = r.Acquire(1, loader)
	require.NoError(t, err)
	r.Release(1)
	r.Release(1)

	// Second span: loader runs again.
	_, err = r.Acquire(1, loader)
	require.NoError(t, err)
	res, err := r.Get(1)
	require.NoError(t, err)

	assert.Equal(t, int64(2), loads.Load())
	assert.Equal(t, 2, res)
}

func TestRegistry_ConcurrentAcquireSingleLoad(t *testing.T) {
	r := New[*[]string]()

	const workers = 32
	var loads atomic.Int64

	resource := []string{"docs", "media"}
	loader := func() (*[]string, error) {
		loads.Add(1)
		time.Sleep(5 * time.Millisecond) // Widen the race window.
		return &resource, nil
	}

	var wg sync.WaitGroup
	results := make([]*[]string, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := r.Acquire(1, loader)
			assert.NoError(t, err)
			res, err := r.Get(1)
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), loads.Load())
	assert.Equal(t, int64(workers), r.Refs(1))
	for _, res := range results {
		assert.Same(t, &resource, res)
	}

	for i := 0; i < workers; i++ {
		r.Release(1)
	}
	assert.Equal(t, int64(0), r.Refs(1))
}

func TestRegistry_JobsDoNotBlockEachOther(t *testing.T) {
	r := New[string]()

	slowEntered := make(chan struct{})
	slowRelease := make(chan struct{})

	go func() {
		_, _ = r.Acquire(1, func() (string, error) {
			close(slowEntered)
			<-slowRelease
			return "slow", nil
		})
	}()

	<-slowEntered

	// While job 1's loader is blocked, job 2 must proceed.
	done := make(chan struct{})
	go func() {
		_, err := r.Acquire(2, func() (string, error) { return "fast", nil })
		assert.NoError(t, err)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("acquire for a different job blocked on another job's loader")
	}

	close(slowRelease)
}

func TestRegistry_ConcurrentAcquireReleaseChurn(t *testing.T) {
	r := New[int]()

	var loads atomic.Int64
	loader := func() (int, error) {
		loads.Add(1)
		return 1, nil
	}

	const workers = 16
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for n := 0; n < 100; n++ {
				_, err := r.Acquire(9, loader)
				assert.NoError(t, err)
				r.Release(9)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(0), r.Refs(9))
	_, err := r.Get(9)
	assert.ErrorIs(t, err, ErrNotInitialized)
}
