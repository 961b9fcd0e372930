package metadata

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// catalogResult is the outcome of one catalog call within a fan-out.
type catalogResult[T any] struct {
	catalog string
	value   T
	err     error
}

// fanOut calls fn on every catalog concurrently and waits for all of them.
// A failing catalog does not cancel its siblings. Results keep the order of
// catalogs, which is their priority order.
func fanOut[T any](ctx context.Context, catalogs []Catalog, fn func(context.Context, Catalog) (T, error)) []catalogResult[T] {
	results := make([]catalogResult[T], len(catalogs))

	var g errgroup.Group
	for i, c := range catalogs {
		g.Go(func() error {
			v, err := fn(ctx, c)
			results[i] = catalogResult[T]{catalog: c.Name(), value: v, err: err}
			return nil
		})
	}
	_ = g.Wait()

	return results
}
