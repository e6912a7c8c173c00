package utils

import (
	"context"
	"runtime"
	"sync"
)

// DefaultConcurrency is used when a non-positive concurrency is requested.
func DefaultConcurrency() int {
	return runtime.NumCPU()
}

// ConcurrentExecutor manages concurrent execution of functions with a semaphore
type ConcurrentExecutor struct {
	semaphore chan struct{}
}

// NewConcurrentExecutor creates a new concurrent executor with the specified max concurrency
func NewConcurrentExecutor(maxConcurrency int) *ConcurrentExecutor {
	if maxConcurrency <= 0 {
		maxConcurrency = DefaultConcurrency()
	}
	return &ConcurrentExecutor{
		semaphore: make(chan struct{}, maxConcurrency),
	}
}

// Execute runs functions concurrently with semaphore control and returns
// one error slot per function, in input order.
// Panics in goroutines are recovered and converted to PanicError.
func (e *ConcurrentExecutor) Execute(ctx context.Context, functions ...func() error) []error {
	if len(functions) == 0 {
		return nil
	}

	results := make([]error, len(functions))
	var wg sync.WaitGroup

	for i, fn := range functions {
		wg.Add(1)
		go func(index int, function func() error) {
			defer wg.Done()
			defer RecoverWithCallback(func(err error) {
				results[index] = err
			})

			select {
			case e.semaphore <- struct{}{}:
				defer func() { <-e.semaphore }()
			case <-ctx.Done():
				results[index] = ctx.Err()
				return
			}

			results[index] = function()
		}(i, fn)
	}

	wg.Wait()
	return results
}

// Worker processes one item of a WorkerPool.
type Worker[T any, R any] func(ctx context.Context, item T) (R, error)

// WorkerPool runs a fixed number of workers over a slice of items.
//
// Workers stop when the items are exhausted or the context is cancelled;
// items never picked up because of cancellation report ctx.Err().
//
//	pool := NewWorkerPool(4, func(ctx context.Context, path string) (string, error) {
//	    return ingestFile(ctx, path)
//	})
//	ids, errs := pool.ProcessItems(ctx, paths)
type WorkerPool[T any, R any] struct {
	numWorkers int
	worker     Worker[T, R]
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool[T any, R any](numWorkers int, worker Worker[T, R]) *WorkerPool[T, R] {
	if numWorkers <= 0 {
		numWorkers = DefaultConcurrency()
	}
	return &WorkerPool[T, R]{
		numWorkers: numWorkers,
		worker:     worker,
	}
}

// ProcessItems processes items and returns results and errors in input order.
func (wp *WorkerPool[T, R]) ProcessItems(ctx context.Context, items []T) ([]R, []error) {
	if len(items) == 0 {
		return nil, nil
	}

	indexes := make(chan int, len(items))
	for i := range items {
		indexes <- i
	}
	close(indexes)

	results := make([]R, len(items))
	errs := make([]error, len(items))
	done := make([]bool, len(items))
	var wg sync.WaitGroup

	for i := 0; i < wp.numWorkers && i < len(items); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case idx, ok := <-indexes:
					if !ok {
						return
					}
					func() {
						defer RecoverWithCallback(func(err error) {
							errs[idx] = err
						})
						results[idx], errs[idx] = wp.worker(ctx, items[idx])
					}()
					done[idx] = true
				}
			}
		}()
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		for i := range items {
			if !done[i] && errs[i] == nil {
				errs[i] = err
			}
		}
	}
	return results, errs
}
