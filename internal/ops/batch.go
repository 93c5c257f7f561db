package ops

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"

	"fedigate/internal/core/model"
	perr "fedigate/internal/platform/errors"
)

const (
	batchMaxItems    = 20
	batchParallelism = 5
)

// BatchResult is one item's outcome. Exactly one of OK and Err is set
type BatchResult[T any] struct {
	Input string     `json:"input"`
	OK    *T         `json:"ok,omitempty"`
	Err   *perr.Wire `json:"err,omitempty"`
}

// runBatch fans inputs out over a bounded worker pool and collects
// per-item outcomes in input order. One item failing never aborts the
// rest; a cancelled context marks the unfinished items instead of
// dropping them
func runBatch[T any](ctx context.Context, inputs []string, fn func(context.Context, string) (T, error)) []BatchResult[T] {
	results := make([]BatchResult[T], len(inputs))
	sem := semaphore.NewWeighted(batchParallelism)
	var wg sync.WaitGroup

	for i, input := range inputs {
		results[i].Input = input
		if err := sem.Acquire(ctx, 1); err != nil {
			w := perr.WireFrom(perr.Cancelledf("batch cancelled before %s was fetched", input))
			results[i].Err = &w
			continue
		}
		wg.Add(1)
		go func(i int, input string) {
			defer wg.Done()
			defer sem.Release(1)
			v, err := fn(ctx, input)
			if err != nil {
				w := perr.WireFrom(err)
				results[i].Err = &w
				return
			}
			results[i].OK = &v
		}(i, input)
	}
	wg.Wait()
	return results
}

// BatchFetchActors resolves up to 20 handles in parallel
func (s *Service) BatchFetchActors(ctx context.Context, refs []string) ([]BatchResult[model.Actor], error) {
	if len(refs) == 0 || len(refs) > batchMaxItems {
		return nil, perr.InvalidInputf("between 1 and %d refs required, got %d", batchMaxItems, len(refs))
	}
	finish, err := s.begin(ctx, "batch_fetch_actors", map[string]any{"count": len(refs)})
	if err != nil {
		return nil, err
	}
	results := runBatch(ctx, refs, func(ctx context.Context, ref string) (model.Actor, error) {
		return s.resolver.Resolve(ctx, ref)
	})
	finish(nil)
	return results, nil
}

// BatchFetchPosts fetches up to 20 posts by URL in parallel
func (s *Service) BatchFetchPosts(ctx context.Context, urls []string) ([]BatchResult[model.Post], error) {
	if len(urls) == 0 || len(urls) > batchMaxItems {
		return nil, perr.InvalidInputf("between 1 and %d urls required, got %d", batchMaxItems, len(urls))
	}
	finish, err := s.begin(ctx, "batch_fetch_posts", map[string]any{"count": len(urls)})
	if err != nil {
		return nil, err
	}
	results := runBatch(ctx, urls, func(ctx context.Context, u string) (model.Post, error) {
		return s.apub.Post(ctx, u)
	})
	finish(nil)
	return results, nil
}
