// Package workpool runs independent inference tasks with bounded
// parallelism.
package workpool

import (
	"context"
	"fmt"
	"runtime/debug"
	"sync"

	"go.uber.org/zap"
)

// DefaultMaxConcurrent bounds concurrently running tasks when the config
// leaves it unset.
const DefaultMaxConcurrent = 8

// Config configures the pool.
type Config struct {
	MaxConcurrent int
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{MaxConcurrent: DefaultMaxConcurrent}
}

// Pool executes work items with a semaphore bound. A pool holds no
// per-run state and may be shared by concurrent scans.
type Pool struct {
	config Config
	logger *zap.Logger
}

func New(config Config, logger *zap.Logger) *Pool {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = DefaultMaxConcurrent
	}
	return &Pool{
		config: config,
		logger: logger.Named("workpool"),
	}
}

// MaxConcurrent returns the configured bound.
func (p *Pool) MaxConcurrent() int {
	return p.config.MaxConcurrent
}

// Item is a unit of work.
type Item[T any] struct {
	ID      string
	Execute func(ctx context.Context) (T, error)
}

// Result is the outcome of one Item.
type Result[T any] struct {
	ID     string
	Value  T
	Err    error
	Ran    bool
	Failed bool
}

// PanicError wraps a panic recovered from a work item.
type PanicError struct {
	ID    string
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("work item %s panicked: %v", e.ID, e.Value)
}

// Process executes all items and returns their results in submission order,
// so callers that fold results get the same answer on every run. A failing
// or panicking item never affects the others. Once ctx is cancelled no new
// item starts; items that never ran report ctx.Err().
func Process[T any](ctx context.Context, pool *Pool, items []Item[T], onProgress func(completed, total int)) []Result[T] {
	if len(items) == 0 {
		return nil
	}

	results := make([]Result[T], len(items))
	sem := make(chan struct{}, pool.config.MaxConcurrent)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
	)
	done := func() {
		if onProgress == nil {
			return
		}
		mu.Lock()
		completed++
		n := completed
		mu.Unlock()
		onProgress(n, len(items))
	}

	for i, item := range items {
		results[i].ID = item.ID

		// Acquire before spawning so cancellation stops new work. The
		// semaphore is local, so a slot won in a cancelled round is simply
		// dropped.
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
		}
		if err := ctx.Err(); err != nil {
			for j := i; j < len(items); j++ {
				results[j] = Result[T]{ID: items[j].ID, Err: err, Failed: true}
			}
			break
		}

		wg.Add(1)
		go func(i int, item Item[T]) {
			defer wg.Done()
			defer func() { <-sem }()
			defer done()

			results[i] = execute(ctx, pool.logger, item)
		}(i, item)
	}

	wg.Wait()
	return results
}

func execute[T any](ctx context.Context, logger *zap.Logger, item Item[T]) (res Result[T]) {
	res.ID = item.ID
	res.Ran = true
	defer func() {
		if r := recover(); r != nil {
			err := &PanicError{ID: item.ID, Value: r, Stack: debug.Stack()}
			logger.Error("Work item panicked",
				zap.String("id", item.ID),
				zap.Any("panic", r))
			var zero T
			res.Value, res.Err, res.Failed = zero, err, true
		}
	}()

	v, err := item.Execute(ctx)
	res.Value, res.Err, res.Failed = v, err, err != nil
	return res
}
