// Package sortby sorts listing results by a caller-supplied ordering.
package sortby

import "sort"

// Less returns a sorted copy of items, ordered by lt. The function should
// return true if left comes before right. A nil lt or an empty items returns
// items unchanged.
//
// The sort is not guaranteed to be stable; listing orderings are expected to
// be total, so equal elements do not come up.
func Less[E any](items []E, lt func(left E, right E) bool) []E {
	if len(items) == 0 || lt == nil {
		return items
	}

	sorted := make([]E, len(items))
	copy(sorted, items)
	sort.Slice(sorted, func(i, j int) bool {
		return lt(sorted[i], sorted[j])
	})

	return sorted
}
