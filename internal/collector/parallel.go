package collector

import (
	"context"
	"errors"
	"sync"
)

// parallelResult holds the result of one parallel fetch.
type parallelResult[R any] struct {
	Value R
	Err   error
}

// parallelCollect processes items with the given number of workers,
// collecting results. It cancels remaining work on the first error and
// returns the first non-context error.
func parallelCollect[T any, R any](
	ctx context.Context,
	items []T,
	workers int,
	process func(ctx context.Context, item T) (R, error),
) ([]parallelResult[R], error) {
	if len(items) == 0 {
		return nil, nil
	}

	workers = normalizeWorkers(workers, len(items))

	workerCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	jobs := make(chan T, len(items))
	results := make(chan parallelResult[R], len(items))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for item := range jobs {
				if workerCtx.Err() != nil {
					return
				}
				value, err := process(workerCtx, item)
				if err != nil {
					results <- parallelResult[R]{Err: err}
					cancel()
					continue
				}
				results <- parallelResult[R]{Value: value}
			}
		}()
	}

	for _, item := range items {
		jobs <- item
	}
	close(jobs)
	wg.Wait()
	close(results)

	out := make([]parallelResult[R], 0, len(items))
	var firstErr error
	var firstNonCancelErr error
	for res := range results {
		out = append(out, res)
		if res.Err != nil {
			if firstErr == nil {
				firstErr = res.Err
			}
			if firstNonCancelErr == nil && !errors.Is(res.Err, context.Canceled) {
				firstNonCancelErr = res.Err
			}
		}
	}

	// Prefer non-cancel errors for reporting
	if firstNonCancelErr != nil {
		return out, firstNonCancelErr
	}
	return out, firstErr
}

// normalizeWorkers ensures worker count is between 1 and item count.
func normalizeWorkers(workers, itemCount int) int {
	if workers < 1 {
		workers = 1
	}
	if workers > itemCount {
		workers = itemCount
	}
	return workers
}
