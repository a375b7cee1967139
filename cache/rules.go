package cache

import "slices"

// RuleTable maps mutation kinds to the tags they invalidate.
// The zero value is empty and usable; it is not safe to modify concurrently
// with reads.
type RuleTable map[string][]string

// TagsFor returns the tags invalidated by kind, or nil if none.
func (r RuleTable) TagsFor(kind string) []string {
	tags := r[kind]
	if len(tags) == 0 {
		return nil
	}
	return slices.Clone(tags)
}

// Kinds returns the registered mutation kinds in sorted order.
func (r RuleTable) Kinds() []string {
	kinds := make([]string, 0, len(r))
	for k := range r {
		kinds = append(kinds, k)
	}
	slices.Sort(kinds)
	return kinds
}
