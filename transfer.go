package largefiles

import (
	"context"

	"github.com/sourcegraph/conc/pool"
)

// Policy says what a transfer does when one item fails.
type Policy int

const (
	// AbortOnError cancels the remaining items and returns the first error.
	AbortOnError Policy = iota
	// ContinueOnError runs every item and returns all errors combined.
	ContinueOnError
)

func (p Policy) String() string {
	if p == ContinueOnError {
		return "continue"
	}
	return "abort"
}

// transfer runs fn over items with at most concurrency running at once.
func transfer[T any](ctx context.Context, items []T, concurrency int, policy Policy, fn func(context.Context, T) error) error {
	if len(items) == 0 {
		return ctx.Err()
	}
	if concurrency < 1 {
		concurrency = 1
	}

	p := pool.New().WithMaxGoroutines(concurrency).WithContext(ctx)
	if policy == AbortOnError {
		p = p.WithCancelOnError().WithFirstError()
	}
	for _, item := range items {
		item := item
		p.Go(func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			return fn(ctx, item)
		})
	}
	return p.Wait()
}
