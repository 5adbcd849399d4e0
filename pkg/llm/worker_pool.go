package llm

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// defaultMaxConcurrent caps in-flight collaborator calls when the
// configuration leaves the limit unset.
const defaultMaxConcurrent = 4

// WorkerPoolConfig configures the collaborator worker pool.
type WorkerPoolConfig struct {
	MaxConcurrent int
}

// WorkerPool bounds the number of collaborator calls in flight. Batch
// ingestion fans out through it so a large upload cannot saturate the
// semantic endpoint.
type WorkerPool struct {
	maxConcurrent int
	logger        *zap.Logger
}

// NewWorkerPool creates a worker pool with the configured concurrency limit.
func NewWorkerPool(config WorkerPoolConfig, logger *zap.Logger) *WorkerPool {
	limit := config.MaxConcurrent
	if limit < 1 {
		limit = defaultMaxConcurrent
	}
	return &WorkerPool{
		maxConcurrent: limit,
		logger:        logger.Named("semantic-pool"),
	}
}

// WorkItem is one unit of pooled work. ID labels the item in logs and in its
// WorkResult.
type WorkItem[T any] struct {
	ID      string
	Execute func(ctx context.Context) (T, error)
}

// WorkResult pairs a work item's ID with its outcome.
type WorkResult[T any] struct {
	ID     string
	Result T
	Err    error
}

// Process runs every item through the pool and returns results in completion
// order. Individual failures are reported per item, never aborting the batch;
// items still waiting on a slot when ctx is canceled fail with ctx.Err().
func Process[T any](
	ctx context.Context,
	pool *WorkerPool,
	items []WorkItem[T],
	onProgress func(completed, total int),
) []WorkResult[T] {
	if len(items) == 0 {
		return nil
	}

	outcomes := make(chan WorkResult[T], len(items))
	slots := make(chan struct{}, pool.maxConcurrent)

	var wg sync.WaitGroup
	for _, item := range items {
		wg.Add(1)
		go func(item WorkItem[T]) {
			defer wg.Done()

			select {
			case slots <- struct{}{}:
				defer func() { <-slots }()
			case <-ctx.Done():
				var zero T
				outcomes <- WorkResult[T]{ID: item.ID, Result: zero, Err: ctx.Err()}
				return
			}

			result, err := item.Execute(ctx)
			outcomes <- WorkResult[T]{ID: item.ID, Result: result, Err: err}
		}(item)
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	results := make([]WorkResult[T], 0, len(items))
	completed := 0
	for outcome := range outcomes {
		if outcome.Err != nil {
			pool.logger.Debug("Pooled work item failed",
				zap.String("item", outcome.ID),
				zap.Error(outcome.Err))
		}
		results = append(results, outcome)
		completed++
		if onProgress != nil {
			onProgress(completed, len(items))
		}
	}

	return results
}
