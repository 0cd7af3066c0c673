package subdsp

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Caller is a compiled graph callable with named arguments; both Function
// and Pipe implement it.
type Caller interface {
	CallKw(ctx context.Context, kw map[string]any) ([]any, error)
}

// Batch calls c once per record, at most limit calls at a time (no limit
// when limit <= 0). Results are in record order. The first error cancels the
// calls still running and is returned with the record index.
func Batch(ctx context.Context, c Caller, records []map[string]any, limit int) ([][]any, error) {
	out := make([][]any, len(records))
	g, ctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, rec := range records {
		g.Go(func() error {
			res, err := c.CallKw(ctx, rec)
			if err != nil {
				return fmt.Errorf("record %d: %w", i, err)
			}
			out[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
