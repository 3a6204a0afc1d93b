package db

// Tag is a key-value label attached to a schema or client version, such as
// an issue tracker reference or a build channel. Within one version's tag
// set, Tags are compared by value: two Tags are the same tag exactly when
// both Key and Value are equal.
type Tag struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Equal returns whether other is the same tag as t.
func (t Tag) Equal(other Tag) bool {
	return t == other
}

// DedupTags returns tags with value-equal duplicates collapsed to a single
// element. The first occurrence of each tag is the one kept; callers must
// not rely on the order of the result beyond that.
//
// Inputs of one element or fewer are returned as-is without any comparison
// work, since they cannot contain a duplicate.
func DedupTags(tags []Tag) []Tag {
	if len(tags) <= 1 {
		return tags
	}

	seen := make(map[Tag]bool, len(tags))
	deduped := make([]Tag, 0, len(tags))

	for _, t := range tags {
		if seen[t] {
			continue
		}
		seen[t] = true
		deduped = append(deduped, t)
	}

	return deduped
}
