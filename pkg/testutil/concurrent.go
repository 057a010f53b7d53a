package testutil

import (
	"sync"
	"sync/atomic"

	dErrors "taxregistry/pkg/domain-errors"
)

// ConcurrentResult tracks outcomes of concurrent test operations.
type ConcurrentResult struct {
	Successes int32
	Errors    int32
	NotFounds int32
}

// Total returns the total number of operations executed.
func (r *ConcurrentResult) Total() int32 {
	return r.Successes + r.Errors + r.NotFounds
}

// RunConcurrent executes fn in parallel goroutines, released together, and
// buckets the results into success, not_found, or generic error.
func RunConcurrent(goroutines int, fn func(idx int) error) *ConcurrentResult {
	var wg sync.WaitGroup
	var successes, errs, notFounds atomic.Int32
	start := make(chan struct{})

	for i := range goroutines {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			err := fn(idx)
			switch {
			case err == nil:
				successes.Add(1)
			case dErrors.HasCode(err, dErrors.CodeNotFound):
				notFounds.Add(1)
			default:
				errs.Add(1)
			}
		}(i)
	}

	close(start)
	wg.Wait()

	return &ConcurrentResult{
		Successes: successes.Load(),
		Errors:    errs.Load(),
		NotFounds: notFounds.Load(),
	}
}

// RunConcurrentCollect executes fn in parallel and collects every value it returns.
// Use this when the test needs the results themselves, e.g. allocated tids.
func RunConcurrentCollect[T any](goroutines int, fn func(idx int) (T, error)) ([]T, []error) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	values := make([]T, 0, goroutines)
	errs := make([]error, 0)
	start := make(chan struct{})

	for i := range goroutines {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			<-start
			v, err := fn(idx)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, err)
				return
			}
			values = append(values, v)
		}(i)
	}

	close(start)
	wg.Wait()
	return values, errs
}
