package db

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

// countingSource returns a listing source over a live slice pointer along
// with a counter of executions, for checking laziness and restartability.
func countingSource(items *[]int) (func(ctx context.Context) ([]int, error), *int) {
	execs := 0
	return func(ctx context.Context) ([]int, error) {
		execs++
		out := make([]int, len(*items))
		copy(out, *items)
		return out, nil
	}, &execs
}

func Test_Listing_lazyUntilExecuted(t *testing.T) {
	assert := assert.New(t)

	items := []int{3, 1, 2}
	source, execs := countingSource(&items)

	l := NewListing(source).
		Where(func(n int) bool { return n > 1 }).
		SortedBy(func(a, b int) bool { return a < b }).
		Limit(5)

	assert.Equal(0, *execs, "building and composing must not execute the source")

	actual, err := l.All(context.Background())
	if !assert.NoError(err) {
		return
	}

	assert.Equal(1, *execs)
	assert.Equal([]int{2, 3}, actual)
}

func Test_Listing_restartable(t *testing.T) {
	assert := assert.New(t)

	items := []int{1, 2}
	source, execs := countingSource(&items)
	l := NewListing(source)

	first, err := l.All(context.Background())
	if !assert.NoError(err) {
		return
	}
	assert.Equal([]int{1, 2}, first)

	// data changes between executions; the second run must observe it
	items = append(items, 3)

	second, err := l.All(context.Background())
	if !assert.NoError(err) {
		return
	}
	assert.Equal([]int{1, 2, 3}, second)
	assert.Equal(2, *execs)
}

func Test_Listing_derivedAreIndependent(t *testing.T) {
	assert := assert.New(t)

	items := []int{1, 2, 3, 4}
	source, _ := countingSource(&items)
	base := NewListing(source)

	evens := base.Where(func(n int) bool { return n%2 == 0 })
	odds := base.Where(func(n int) bool { return n%2 == 1 })

	gotEvens, err := evens.All(context.Background())
	if !assert.NoError(err) {
		return
	}
	gotOdds, err := odds.All(context.Background())
	if !assert.NoError(err) {
		return
	}
	gotBase, err := base.All(context.Background())
	if !assert.NoError(err) {
		return
	}

	assert.Equal([]int{2, 4}, gotEvens)
	assert.Equal([]int{1, 3}, gotOdds)
	assert.Equal([]int{1, 2, 3, 4}, gotBase, "deriving must not modify the base listing")
}

func Test_Listing_SkipAndLimit(t *testing.T) {
	testCases := []struct {
		name   string
		skip   int
		limit  int
		expect []int
	}{
		{name: "skip none limit all", skip: 0, limit: 10, expect: []int{1, 2, 3, 4, 5}},
		{name: "skip some", skip: 2, limit: 10, expect: []int{3, 4, 5}},
		{name: "limit some", skip: 0, limit: 2, expect: []int{1, 2}},
		{name: "page in the middle", skip: 1, limit: 3, expect: []int{2, 3, 4}},
		{name: "skip past the end", skip: 9, limit: 3, expect: nil},
		{name: "limit zero", skip: 0, limit: 0, expect: []int{}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			items := []int{1, 2, 3, 4, 5}
			source, _ := countingSource(&items)

			actual, err := NewListing(source).Skip(tc.skip).Limit(tc.limit).All(context.Background())
			if !assert.NoError(err) {
				return
			}

			assert.Equal(tc.expect, actual)
		})
	}
}

func Test_Listing_First(t *testing.T) {
	assert := assert.New(t)

	items := []int{7, 8}
	source, _ := countingSource(&items)
	l := NewListing(source)

	first, ok, err := l.First(context.Background())
	if !assert.NoError(err) {
		return
	}
	assert.True(ok)
	assert.Equal(7, first)

	items = nil
	_, ok, err = l.First(context.Background())
	if !assert.NoError(err) {
		return
	}
	assert.False(ok, "empty result is ok=false, not an error")
}

func Test_Listing_Each_stopsOnError(t *testing.T) {
	assert := assert.New(t)

	items := []int{1, 2, 3}
	source, _ := countingSource(&items)

	stop := errors.New("done early")
	var visited []int

	err := NewListing(source).Each(context.Background(), func(n int) error {
		visited = append(visited, n)
		if n == 2 {
			return stop
		}
		return nil
	})

	assert.ErrorIs(err, stop)
	assert.Equal([]int{1, 2}, visited)
}

func Test_Listing_Count(t *testing.T) {
	assert := assert.New(t)

	items := []int{1, 2, 3}
	source, _ := countingSource(&items)

	count, err := NewListing(source).Where(func(n int) bool { return n != 2 }).Count(context.Background())
	if !assert.NoError(err) {
		return
	}

	assert.Equal(2, count)
}

func Test_Listing_sourceErrorPropagates(t *testing.T) {
	assert := assert.New(t)

	boom := errors.New("storage exploded")
	l := NewListing(func(ctx context.Context) ([]int, error) {
		return nil, boom
	})

	_, err := l.Where(func(int) bool { return true }).All(context.Background())
	assert.ErrorIs(err, boom)

	_, _, err = l.First(context.Background())
	assert.ErrorIs(err, boom)

	_, err = l.Count(context.Background())
	assert.ErrorIs(err, boom)
}
