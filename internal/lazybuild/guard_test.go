package lazybuild

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGuard_ConcurrentCallersShareOneBuild(t *testing.T) {
	// Given: a slow build and many concurrent first callers
	var g Guard[int]
	var calls atomic.Int32
	build := func(context.Context) (int, error) {
		calls.Add(1)
		time.Sleep(20 * time.Millisecond)
		return 42, nil
	}

	// When: they all ask for the value
	var wg sync.WaitGroup
	results := make([]int, 16)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := g.Get(context.Background(), build)
			assert.NoError(t, err)
			results[i] = v
		}(i)
	}
	wg.Wait()

	// Then: exactly one build ran and everyone saw its value
	assert.Equal(t, int32(1), calls.Load())
	for _, v := range results {
		assert.Equal(t, 42, v)
	}
	assert.Equal(t, Built, g.State())
	assert.Equal(t, 1, g.Builds())
}

func TestGuard_FailedBuildRetries(t *testing.T) {
	var g Guard[string]
	attempts := 0
	build := func(context.Context) (string, error) {
		attempts++
		if attempts == 1 {
			return "", errors.New("source offline")
		}
		return "ok", nil
	}

	_, err := g.Get(context.Background(), build)
	require.Error(t, err)
	assert.Equal(t, NotBuilt, g.State())

	v, err := g.Get(context.Background(), build)
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
}

func TestGuard_PanicDoesNotStrandWaiters(t *testing.T) {
	var g Guard[int]

	assert.Panics(t, func() {
		_, _ = g.Get(context.Background(), func(context.Context) (int, error) {
			panic("boom")
		})
	})
	assert.Equal(t, NotBuilt, g.State())

	v, err := g.Get(context.Background(), func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, v)
}

func TestGuard_Rebuild(t *testing.T) {
	var g Guard[int]
	n := 0
	build := func(context.Context) (int, error) {
		n++
		return n, nil
	}

	v, _ := g.Get(context.Background(), build)
	assert.Equal(t, 1, v)
	v, _ = g.Get(context.Background(), build)
	assert.Equal(t, 1, v)

	v, err := g.Rebuild(context.Background(), build)
	require.NoError(t, err)
	assert.Equal(t, 2, v)
	assert.Equal(t, 2, g.Builds())
	assert.Equal(t, "built", g.State().String())
}
