package db

import (
	"context"

	"github.com/dekarrin/taffy/internal/sortby"
)

// Listing is a lazily-executed query over entities of type M. Building a
// Listing, including deriving new ones with Where, SortedBy, Skip, and
// Limit, performs no storage access; only the terminal methods All, Each,
// First, and Count execute it, and every execution runs against the data
// stored at that moment. A single Listing may be executed any number of
// times, and listings derived from it are independent of it and of each
// other.
//
// Repositories push their own filters down to the storage engine where they
// can; combinators applied through Listing methods are evaluated in memory
// on the fetched results.
type Listing[M any] struct {
	source func(ctx context.Context) ([]M, error)
}

// NewListing creates a Listing executed by calling source. Backends use this
// to expose their fetches; most callers will instead obtain a Listing from a
// repository's List method.
func NewListing[M any](source func(ctx context.Context) ([]M, error)) *Listing[M] {
	return &Listing[M]{source: source}
}

// Where derives a Listing containing only the entities for which keep
// returns true.
func (l *Listing[M]) Where(keep func(M) bool) *Listing[M] {
	return NewListing(func(ctx context.Context) ([]M, error) {
		items, err := l.source(ctx)
		if err != nil {
			return nil, err
		}

		var kept []M
		for _, item := range items {
			if keep(item) {
				kept = append(kept, item)
			}
		}
		return kept, nil
	})
}

// SortedBy derives a Listing whose results are ordered by the given
// less-than function.
func (l *Listing[M]) SortedBy(lt func(left, right M) bool) *Listing[M] {
	return NewListing(func(ctx context.Context) ([]M, error) {
		items, err := l.source(ctx)
		if err != nil {
			return nil, err
		}
		return sortby.Less(items, lt), nil
	})
}

// Skip derives a Listing whose results omit the first n entities.
func (l *Listing[M]) Skip(n int) *Listing[M] {
	return NewListing(func(ctx context.Context) ([]M, error) {
		items, err := l.source(ctx)
		if err != nil {
			return nil, err
		}
		if n >= len(items) {
			return nil, nil
		}
		if n > 0 {
			items = items[n:]
		}
		return items, nil
	})
}

// Limit derives a Listing whose results contain at most n entities.
func (l *Listing[M]) Limit(n int) *Listing[M] {
	return NewListing(func(ctx context.Context) ([]M, error) {
		items, err := l.source(ctx)
		if err != nil {
			return nil, err
		}
		if n < 0 {
			n = 0
		}
		if len(items) > n {
			items = items[:n]
		}
		return items, nil
	})
}

// All executes the Listing and returns every matching entity.
func (l *Listing[M]) All(ctx context.Context) ([]M, error) {
	return l.source(ctx)
}

// Each executes the Listing and calls fn once per matching entity, in
// result order. Iteration stops at the first error fn returns, and that
// error is returned.
func (l *Listing[M]) Each(ctx context.Context, fn func(M) error) error {
	items, err := l.source(ctx)
	if err != nil {
		return err
	}

	for _, item := range items {
		if err := fn(item); err != nil {
			return err
		}
	}
	return nil
}

// First executes the Listing and returns its first result. An empty result
// is not an error; ok is false and err is nil.
func (l *Listing[M]) First(ctx context.Context) (item M, ok bool, err error) {
	items, err := l.source(ctx)
	if err != nil {
		var zero M
		return zero, false, err
	}
	if len(items) == 0 {
		var zero M
		return zero, false, nil
	}
	return items[0], true, nil
}

// Count executes the Listing and returns the number of matching entities.
func (l *Listing[M]) Count(ctx context.Context) (int, error) {
	items, err := l.source(ctx)
	if err != nil {
		return 0, err
	}
	return len(items), nil
}
