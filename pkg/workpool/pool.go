// Package workpool runs independent units of work with bounded parallelism.
package workpool

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Config configures a Pool.
type Config struct {
	MaxConcurrent int // Maximum concurrent work items (default: 4)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{MaxConcurrent: 4}
}

// Pool limits how many work items run at once. It holds no goroutines
// between calls to Process.
type Pool struct {
	config Config
	logger *zap.Logger
}

// New creates a pool.
func New(config Config, logger *zap.Logger) *Pool {
	if config.MaxConcurrent < 1 {
		config.MaxConcurrent = DefaultConfig().MaxConcurrent
	}
	return &Pool{
		config: config,
		logger: logger.Named("workpool"),
	}
}

// MaxConcurrent returns the configured parallelism.
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
	ID    string
	Value T
	Err   error
}

// Process executes all items and returns their results in submission order.
// A failing item does not stop the others. Items that have not started when
// ctx is cancelled report ctx.Err().
func Process[T any](ctx context.Context, pool *Pool, items []Item[T]) []Result[T] {
	if len(items) == 0 {
		return nil
	}

	results := make([]Result[T], len(items))
	sem := make(chan struct{}, pool.config.MaxConcurrent)

	var wg sync.WaitGroup
	for i, item := range items {
		wg.Add(1)
		go func(i int, item Item[T]) {
			defer wg.Done()
			results[i].ID = item.ID

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[i].Err = ctx.Err()
				return
			}
			if err := ctx.Err(); err != nil {
				results[i].Err = err
				return
			}

			results[i].Value, results[i].Err = item.Execute(ctx)
			if results[i].Err != nil {
				pool.logger.Debug("Work item failed",
					zap.String("id", item.ID),
					zap.Error(results[i].Err))
			}
		}(i, item)
	}
	wg.Wait()

	return results
}
