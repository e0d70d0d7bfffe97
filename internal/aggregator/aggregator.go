// Package aggregator implements the merge-list aggregator (spec.md §4.5,
// C5): a binary tree reduction across per-worker merge-request sets that
// dedupes and combines them into the one set the merge executor consumes.
package aggregator

import "github.com/sib-swiss/dclust/internal/mergeset"

// Reduce combines per-worker merge sets (indexed by worker ordinal
// 1..len(sets)) via the binary tree reduction of spec.md §4.5: at step
// t with offset s = 2^t, worker w receives from w+s for w = 1, 1+2s,
// 1+4s, ... while w+s <= len(sets); s doubles until it reaches
// len(sets). The set surviving at index 0 (worker 1) is the result.
//
// sets is consumed: entries are merged into sets[0] in place and the
// peers are left drained. Passing nil or an empty slice returns nil.
func Reduce(sets []*mergeset.Set) *mergeset.Set {
	if len(sets) == 0 {
		return nil
	}
	n := len(sets)
	for s := 1; s < n; s *= 2 {
		for w := 0; w+s < n; w += 2 * s {
			sets[w].Merge(sets[w+s])
		}
	}
	return sets[0]
}
