package modelcache

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeModel struct {
	unloaded int32
}

func (f *fakeModel) Unload() error {
	atomic.AddInt32(&f.unloaded, 1)
	return nil
}

// TestSingleLoadUnderContention is spec §8 scenario 1: N=20 concurrent
// GetOrLoad callers for the same key, loader sleeps 200ms and counts
// invocations; expect exactly one load and ~200ms wall time.
func TestSingleLoadUnderContention(t *testing.T) {
	c := New()
	defer c.Close()

	var loadCount int32
	loader := func() (ModelRef, error) {
		atomic.AddInt32(&loadCount, 1)
		time.Sleep(200 * time.Millisecond)
		return &fakeModel{}, nil
	}

	const n = 20
	results := make([]ModelRef, n)
	var wg sync.WaitGroup
	start := time.Now()
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ref, err := c.GetOrLoad("lang:M", loader)
			require.NoError(t, err)
			results[i] = ref
		}(i)
	}
	wg.Wait()
	elapsed := time.Since(start)

	assert.Equal(t, int32(1), atomic.LoadInt32(&loadCount))
	for i := 1; i < n; i++ {
		assert.Same(t, results[0], results[i])
	}
	assert.Less(t, elapsed, 1*time.Second, "contended loads should not serialize")
}

// TestReaperEvictsIdleEntry is spec §8 scenario 2.
func TestReaperEvictsIdleEntry(t *testing.T) {
	origNow := nowMs
	defer func() { nowMs = origNow }()

	var clock int64
	nowMs = func() int64 { return atomic.LoadInt64(&clock) }

	c := New(WithUnloadTimeout(1*time.Second), WithCleanupInterval(10*time.Millisecond))
	defer c.Close()

	model := &fakeModel{}
	var loads int32
	loader := func() (ModelRef, error) {
		atomic.AddInt32(&loads, 1)
		return model, nil
	}

	_, err := c.GetOrLoad("lang:M", loader)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Len())

	// Advance the fake clock past the unload timeout and let a couple of
	// reaper ticks observe it.
	atomic.StoreInt64(&clock, 2000)
	time.Sleep(50 * time.Millisecond)

	assert.Equal(t, 0, c.Len())
	assert.Equal(t, int32(1), atomic.LoadInt32(&model.unloaded))

	// A subsequent GetOrLoad triggers a fresh load.
	_, err = c.GetOrLoad("lang:M", loader)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&loads))
}

func TestTouchUpdatesLastAccess(t *testing.T) {
	origNow := nowMs
	defer func() { nowMs = origNow }()
	var clock int64
	nowMs = func() int64 { return atomic.LoadInt64(&clock) }

	c := New(WithUnloadTimeout(1*time.Second), WithCleanupInterval(time.Hour))
	defer c.Close()

	_, err := c.GetOrLoad("k", func() (ModelRef, error) { return &fakeModel{}, nil })
	require.NoError(t, err)

	atomic.StoreInt64(&clock, 900)
	c.Touch("k")
	atomic.StoreInt64(&clock, 1800)
	c.reapOnce()
	assert.Equal(t, 1, c.Len(), "touch should have reset the idle clock")
}

func TestDropSurvivesUnloadPanic(t *testing.T) {
	c := New(WithCleanupInterval(time.Hour))
	defer c.Close()

	_, err := c.GetOrLoad("k", func() (ModelRef, error) { return panicModel{}, nil })
	require.NoError(t, err)

	assert.NotPanics(t, func() { c.Drop("k") })
	assert.Equal(t, 0, c.Len())
}

type panicModel struct{}

func (panicModel) Unload() error { panic("boom") }

func TestLoaderErrorLeavesNoEntry(t *testing.T) {
	c := New(WithCleanupInterval(time.Hour))
	defer c.Close()

	_, err := c.GetOrLoad("k", func() (ModelRef, error) { return nil, assert.AnError })
	require.Error(t, err)
	assert.Equal(t, 0, c.Len())
}
