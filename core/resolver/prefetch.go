package resolver

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/nsoperations/depforge/core"
	"github.com/nsoperations/depforge/version"
)

// defaultFetchLimit bounds how many retriever lookups run concurrently.
const defaultFetchLimit = 4

// prefetchVersions looks up version lists for independent dependencies
// concurrently, bounded by the resolver's fetch limit. Completion order
// is irrelevant: results are folded into a map keyed by dependency, and
// the caller consumes them in its own deterministic order.
func (r *Resolver) prefetchVersions(ctx context.Context, deps []core.Dependency) (map[core.Dependency][]version.Pinned, error) {
	results := make(map[core.Dependency][]version.Pinned, len(deps))
	if len(deps) == 0 {
		return results, nil
	}

	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(r.fetchLimit)

	for _, dep := range deps {
		dep := dep
		g.Go(func() error {
			pins, err := r.retriever.Versions(ctx, dep)
			if err != nil {
				return err
			}
			mu.Lock()
			results[dep] = pins
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
