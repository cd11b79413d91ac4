// Package lazybuild guards an expensive, build-once value such as a BM25
// corpus or a TF-IDF vocabulary.
package lazybuild

import (
	"context"
	"sync"
)

// State is the build state of a Guard.
type State int

const (
	// NotBuilt means no value is available; the next Get builds it.
	NotBuilt State = iota
	// Building means a build is in flight; other callers wait for it.
	Building
	// Built means the value is available.
	Built
)

func (s State) String() string {
	switch s {
	case Building:
		return "building"
	case Built:
		return "built"
	default:
		return "not_built"
	}
}

// Guard holds a lazily built value. Concurrent first callers wait for a
// single build. A failed build leaves the guard NotBuilt so the next call
// retries. The zero value is ready to use.
type Guard[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	state  State
	value  T
	builds int
}

func (g *Guard[T]) init() {
	if g.cond == nil {
		g.cond = sync.NewCond(&g.mu)
	}
}

// Get returns the built value, building it first if needed.
func (g *Guard[T]) Get(ctx context.Context, build func(context.Context) (T, error)) (T, error) {
	g.mu.Lock()
	g.init()
	for g.state == Building {
		g.cond.Wait()
	}
	if g.state == Built {
		v := g.value
		g.mu.Unlock()
		return v, nil
	}
	g.state = Building
	g.mu.Unlock()

	return g.run(ctx, build)
}

func (g *Guard[T]) run(ctx context.Context, build func(context.Context) (T, error)) (v T, err error) {
	done := false
	defer func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		if !done || err != nil {
			// A panicking or failing build must not strand waiters.
			g.state = NotBuilt
		}
		g.cond.Broadcast()
	}()

	v, err = build(ctx)
	done = true
	if err != nil {
		var zero T
		return zero, err
	}

	g.mu.Lock()
	g.value = v
	g.state = Built
	g.builds++
	g.mu.Unlock()
	return v, nil
}

// Reset discards the built value, waiting for an in-flight build first.
func (g *Guard[T]) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.init()
	for g.state == Building {
		g.cond.Wait()
	}
	var zero T
	g.value = zero
	g.state = NotBuilt
}

// Rebuild discards the current value and builds a new one.
func (g *Guard[T]) Rebuild(ctx context.Context, build func(context.Context) (T, error)) (T, error) {
	g.Reset()
	return g.Get(ctx, build)
}

// State returns the current build state.
func (g *Guard[T]) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Builds returns how many builds have succeeded.
func (g *Guard[T]) Builds() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.builds
}
