// Package executor bounds how many gateway calls run at once.
package executor

import (
	"context"
	"fmt"

	"golang.org/x/sync/semaphore"
)

// Pool runs blocking calls with at most size of them in flight.
type Pool struct {
	sem  *semaphore.Weighted
	size int64
}

// NewPool creates a pool. A size below one is treated as one.
func NewPool(size int) *Pool {
	if size < 1 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), size: int64(size)}
}

// Do waits for a free slot and runs fn on the calling goroutine.
func (p *Pool) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("acquire gateway slot: %w", err)
	}
	defer p.sem.Release(1)
	return fn(ctx)
}

// Run is Do for calls that return a value.
func Run[T any](ctx context.Context, p *Pool, fn func(context.Context) (T, error)) (T, error) {
	var out T
	err := p.Do(ctx, func(ctx context.Context) error {
		var err error
		out, err = fn(ctx)
		return err
	})
	return out, err
}

// Size returns the configured concurrency.
func (p *Pool) Size() int {
	return int(p.size)
}
