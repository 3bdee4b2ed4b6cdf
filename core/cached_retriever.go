package core

import (
	"context"
	"errors"
	"sync"

	"github.com/nsoperations/depforge/version"
)

// CachedRetriever decorates another Retriever with per-key caching of
// version lists and git-reference resolutions.
//
// Concurrent lookups for the same key are coalesced: the first caller
// performs the underlying fetch while the rest wait for its outcome.
// The cache lifetime is the struct's lifetime; callers decide whether to
// scope one per resolution run or share it across runs.
type CachedRetriever struct {
	inner Retriever

	versions opCache[[]version.Pinned]
	refs     opCache[version.Pinned]
}

// NewCachedRetriever wraps inner with an empty cache.
func NewCachedRetriever(inner Retriever) *CachedRetriever {
	return &CachedRetriever{inner: inner}
}

// Versions implements Retriever.
func (c *CachedRetriever) Versions(ctx context.Context, d Dependency) ([]version.Pinned, error) {
	return c.versions.getOrStart(ctx, d.String(), func(ctx context.Context) ([]version.Pinned, error) {
		return c.inner.Versions(ctx, d)
	})
}

// Dependencies implements Retriever. Requirement lists are not cached:
// the resolver already consults each (dependency, version) pair at most
// once per pin attempt, and the underlying retrievers keep their own
// checkout state.
func (c *CachedRetriever) Dependencies(ctx context.Context, d Dependency, v version.Pinned) ([]Requirement, error) {
	return c.inner.Dependencies(ctx, d, v)
}

// ResolvedGitReference implements Retriever.
func (c *CachedRetriever) ResolvedGitReference(ctx context.Context, d Dependency, ref string) (version.Pinned, error) {
	return c.refs.getOrStart(ctx, d.String()+"@"+ref, func(ctx context.Context) (version.Pinned, error) {
		return c.inner.ResolvedGitReference(ctx, d, ref)
	})
}

// opCache coalesces concurrent operations per key and memoizes their
// results. The first caller for a key runs the operation; everyone else
// waits on its completion channel.
type opCache[T any] struct {
	operations sync.Map // key -> *opState[T]
}

type opState[T any] struct {
	once   sync.Once
	result T
	err    error
	done   chan struct{}
}

func (c *opCache[T]) getOrStart(ctx context.Context, key string, op func(context.Context) (T, error)) (T, error) {
	state := &opState[T]{done: make(chan struct{})}
	actual, loaded := c.operations.LoadOrStore(key, state)
	state = actual.(*opState[T])

	if !loaded {
		state.once.Do(func() {
			state.result, state.err = op(ctx)
			if errors.Is(state.err, context.Canceled) || errors.Is(state.err, context.DeadlineExceeded) {
				// The first caller's cancellation must not poison the
				// key for everyone arriving later.
				c.operations.Delete(key)
			}
			close(state.done)
		})
	}

	select {
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-state.done:
		return state.result, state.err
	}
}
