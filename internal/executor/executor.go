// Package executor implements the merge executor and id canonicalizer
// (spec.md §4.6, C6): it collapses the global merge set into a
// forwarding table, rewrites every assigned point's cluster id through
// it, then renumbers surviving ids densely by size.
package executor

import (
	"sort"

	"github.com/sib-swiss/dclust/pkg/model"
)

// ForwardingTable maps a cluster id to the id it was ultimately merged
// into. Querying an id that was never merged returns it unchanged.
type ForwardingTable struct {
	table map[model.ClusterID]model.ClusterID
}

// BuildForwardingTable processes merge requests in strict descending-c2
// order (spec.md §4.6: "essential" for single-pass substitution) and
// returns a table mapping every named c2 to its final c1 survivor.
// reqs must already be in ascending (c2, c1) order, e.g. from
// mergeset.Set.IterSorted; BuildForwardingTable walks it in reverse.
func BuildForwardingTable(reqs []model.MergeRequest) *ForwardingTable {
	ft := &ForwardingTable{table: make(map[model.ClusterID]model.ClusterID, len(reqs))}
	for i := len(reqs) - 1; i >= 0; i-- {
		c1, c2 := reqs[i].C1, reqs[i].C2
		// Any id already forwarded to c2 must now forward to c1 too —
		// descending c2 order guarantees c2 is never itself rewritten by
		// an earlier (larger-c2) request, so one substitution pass
		// suffices (spec.md §4.6).
		for from, to := range ft.table {
			if to == c2 {
				ft.table[from] = c1
			}
		}
		ft.table[c2] = c1
	}
	return ft
}

// Resolve follows the table to an id's final survivor.
func (ft *ForwardingTable) Resolve(id model.ClusterID) model.ClusterID {
	if to, ok := ft.table[id]; ok {
		return to
	}
	return id
}

// Entries returns every collapsed id mapped to its final survivor. Since
// BuildForwardingTable already fully resolves chained merges before
// returning, this is just a defensive copy of the underlying table —
// callers (internal/genealogy) use it to detect when a previously
// retained cluster collapsed into another this pass.
func (ft *ForwardingTable) Entries() map[model.ClusterID]model.ClusterID {
	out := make(map[model.ClusterID]model.ClusterID, len(ft.table))
	for from, to := range ft.table {
		out[from] = to
	}
	return out
}

// ApplyMergeRequests rewrites every point's cluster id in place through
// the forwarding table built from reqs.
func ApplyMergeRequests(ids []model.ClusterID, reqs []model.MergeRequest) *ForwardingTable {
	ft := BuildForwardingTable(reqs)
	for i, id := range ids {
		if id.IsAssigned() {
			ids[i] = ft.Resolve(id)
		}
	}
	return ft
}

// RenumberResult is the outcome of dense renumbering (spec.md §4.6).
type RenumberResult struct {
	// Dense maps a surviving raw cluster id to its dense output id.
	Dense map[model.ClusterID]model.ClusterID
	// RetainedCount is the number of ids that met min_events.
	RetainedCount int
	// SmallCount is the number of ids below min_events.
	SmallCount int
	// Counts is the per-raw-id event count observed.
	Counts map[model.ClusterID]int64
}

// Renumber partitions surviving raw ids by size and assigns them dense
// output ids: large-enough ids get 1..K_retained in first-seen scan
// order, too-small ids get K_retained+1..K_retained+K_small (spec.md
// §4.6, §4.8's "stable scan order" requirement — callers must pass ids
// in the same deterministic order every pass).
func Renumber(ids []model.ClusterID, minEvents int64) RenumberResult {
	counts := make(map[model.ClusterID]int64)
	order := make([]model.ClusterID, 0)
	for _, id := range ids {
		if !id.IsAssigned() {
			continue
		}
		if _, seen := counts[id]; !seen {
			order = append(order, id)
		}
		counts[id]++
	}

	var large, small []model.ClusterID
	for _, id := range order {
		if counts[id] >= minEvents {
			large = append(large, id)
		} else {
			small = append(small, id)
		}
	}

	dense := make(map[model.ClusterID]model.ClusterID, len(order))
	next := model.ClusterID(1)
	for _, id := range large {
		dense[id] = next
		next++
	}
	retained := int(next) - 1
	for _, id := range small {
		dense[id] = next
		next++
	}

	return RenumberResult{
		Dense:         dense,
		RetainedCount: retained,
		SmallCount:    len(small),
		Counts:        counts,
	}
}

// ApplyDense rewrites ids in place through a RenumberResult's dense table;
// unassigned or eliminated-by-merge (never-surviving) slots are left at
// model.Unassigned.
func ApplyDense(ids []model.ClusterID, r RenumberResult) {
	for i, id := range ids {
		if !id.IsAssigned() {
			continue
		}
		if dense, ok := r.Dense[id]; ok {
			ids[i] = dense
		} else {
			ids[i] = model.Unassigned
		}
	}
}

// sortedKeys returns m's keys in ascending order, a deterministic
// ordering of a ClusterID set.
func sortedKeys(m map[model.ClusterID]model.ClusterID) []model.ClusterID {
	out := make([]model.ClusterID, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
