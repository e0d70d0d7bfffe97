// Package genealogy implements the in-memory genealogy tracker and
// retention selector (spec.md §4.8, C8): it appends one history row per
// raw (trimmed) cluster discovered each pass, links each to its
// discovery-order parent in the previous pass, records forward merges,
// and walks the resulting lineage to pick a non-overlapping retained
// set.
package genealogy

import (
	"github.com/sib-swiss/dclust/internal/executor"
	"github.com/sib-swiss/dclust/pkg/model"
)

// Tracker accumulates cluster history rows across passes of one run. It
// is not safe for concurrent use — the sweep controller drives it
// sequentially, one pass at a time.
type Tracker struct {
	runID string
	rows  []model.ClusterHistory
}

// NewTracker creates an empty tracker for the given run.
func NewTracker(runID string) *Tracker {
	return &Tracker{runID: runID}
}

// Rows returns every history row recorded so far, in pass/discovery
// order. The slice is owned by the tracker; callers must not mutate it.
func (t *Tracker) Rows() []model.ClusterHistory {
	return t.rows
}

// RecordPass appends pass passOrdinal's history rows and returns them.
// renum is the executor's dense renumbering for this pass; ft is the
// forwarding table the merge executor built for this pass (nil on pass
// 0, when there is no previous pass to collapse into). prevRetainedCount
// is the number of clusters the previous pass retained and therefore
// re-prefixed into worker ordinal 1's id space (spec.md §4.7) — the
// range this pass's forwarding table is checked against to detect a
// previously retained cluster merging forward.
// RecordPass only appends history rows for this pass's large-enough
// (retained) dense ids, 1..renum.RetainedCount — dclust.c's
// UpdateClusterHistory is called with the RemoveSmallClusters return
// value, not the raw (retained+small) count, so a too-small cluster
// never enters the genealogy at all and therefore can never be retained
// downstream (spec.md's S3: min-size trim leaves nothing retained).
func (t *Tracker) RecordPass(passOrdinal int, cutoff float64, renum executor.RenumberResult, ft *executor.ForwardingTable, prevRetainedCount int) []model.ClusterHistory {
	countByDense := make(map[model.ClusterID]int64, len(renum.Dense))
	for raw, dense := range renum.Dense {
		countByDense[dense] = renum.Counts[raw]
	}

	prevStart, prevEnd := t.passRange(passOrdinal - 1)
	prevRawCount := prevEnd - prevStart

	if passOrdinal > 0 && ft != nil {
		t.applyForwardMerges(ft, prevRetainedCount, prevStart, prevEnd)
	}

	newRows := make([]model.ClusterHistory, 0, renum.RetainedCount)
	cursor := uint32(1)
	for cluster := 1; cluster <= renum.RetainedCount; cluster++ {
		var parent model.ClusterID
		if passOrdinal > 0 {
			parent = t.nextParent(&cursor, prevRawCount, prevStart)
		}
		newRows = append(newRows, model.ClusterHistory{
			RunID:           t.runID,
			PassOrdinal:     passOrdinal,
			Cutoff:          cutoff,
			ClusterID:       model.ClusterID(cluster),
			ParentClusterID: parent,
			MergedIntoID:    model.Unassigned,
			EventCount:      countByDense[model.ClusterID(cluster)],
			Retain:          model.RetainUnknown,
		})
	}
	t.rows = append(t.rows, newRows...)
	return newRows
}

// applyForwardMerges marks, on the previous pass's rows, which of its
// clusters collapsed into a sibling this pass. Both ends of such a merge
// were previously retained clusters re-prefixed into worker ordinal 1's
// id space before this pass ran (spec.md §4.7), so their local counters
// are numerically identical to their previous-pass cluster ids — a
// merge request entirely within that range names two previous-pass
// siblings merging, and is recorded using the previous pass's own
// numbering (spec.md §4.8), not this pass's.
func (t *Tracker) applyForwardMerges(ft *executor.ForwardingTable, prevRetainedCount, prevStart, prevEnd int) {
	inRange := func(id model.ClusterID) (uint32, bool) {
		if id.WorkerOrdinal() != 1 {
			return 0, false
		}
		counter := id.LocalCounter()
		if counter == 0 || int(counter) > prevRetainedCount {
			return 0, false
		}
		return counter, true
	}

	for from, to := range ft.Entries() {
		fromCounter, ok := inRange(from)
		if !ok {
			continue
		}
		toCounter, ok := inRange(to)
		if !ok {
			continue
		}
		for i := prevStart; i < prevEnd; i++ {
			if t.rows[i].ClusterID == model.ClusterID(fromCounter) {
				t.rows[i].MergedIntoID = model.ClusterID(toCounter)
				break
			}
		}
	}
}

// nextParent advances cursor past any previous-pass cluster already
// marked merged_into (it won't survive standalone, so it cannot be
// anyone's parent) and returns the next available one, or Unassigned if
// the previous pass ran out of clusters to hand out as parents.
func (t *Tracker) nextParent(cursor *uint32, prevRawCount, prevStart int) model.ClusterID {
	for *cursor <= uint32(prevRawCount) {
		row := t.rows[prevStart+int(*cursor)-1]
		if row.MergedIntoID != model.Unassigned {
			*cursor++
			continue
		}
		break
	}
	if *cursor > uint32(prevRawCount) {
		return model.Unassigned
	}
	parent := model.ClusterID(*cursor)
	*cursor++
	return parent
}

// passRange returns the [start, end) row index range for a pass, or
// (0, 0) if that pass has no rows (including pass < 0).
func (t *Tracker) passRange(pass int) (int, int) {
	if pass < 0 {
		return 0, 0
	}
	start, end := -1, 0
	for i, r := range t.rows {
		if r.PassOrdinal == pass {
			if start == -1 {
				start = i
			}
			end = i + 1
		}
	}
	if start == -1 {
		return 0, 0
	}
	return start, end
}

// Select walks every row's ancestry to decide its retain flag (spec.md
// §4.8) and returns the final, fully decided row set. It mutates the
// tracker's internal rows in place, so it is meant to be called once,
// after the last pass has been recorded.
func (t *Tracker) Select() []model.ClusterHistory {
	for i := range t.rows {
		row := t.rows[i]
		if row.MergedIntoID == model.Unassigned {
			continue
		}
		t.rows[i].Retain = t.decide(i, row.ParentClusterID)
		t.markSurvivor(i, row.PassOrdinal, row.MergedIntoID)
	}

	if len(t.rows) > 0 {
		lastPass := t.rows[len(t.rows)-1].PassOrdinal
		for x := len(t.rows) - 1; x >= 0 && t.rows[x].PassOrdinal == lastPass; x-- {
			if t.rows[x].Retain == model.RetainUnknown {
				t.rows[x].Retain = t.decide(x, t.rows[x].ParentClusterID)
			}
		}
	}
	return t.rows
}

// markSurvivor decides the retain flag of the same-pass cluster that row
// idx merged into, if it hasn't already been decided.
func (t *Tracker) markSurvivor(idx, pass int, survivorID model.ClusterID) {
	for x := 0; x < idx; x++ {
		if t.rows[x].PassOrdinal == pass && t.rows[x].ClusterID == survivorID {
			if t.rows[x].Retain == model.RetainUnknown {
				t.rows[x].Retain = t.decide(x, t.rows[x].ParentClusterID)
			}
			return
		}
	}
}

// decide implements CheckClusterNotYetRetained's ancestry walk: a
// cluster with no parent retains by default; one whose parent's row is
// already decided yields to that decision (no); otherwise the question
// recurses to the parent's own parent.
func (t *Tracker) decide(idx int, parent model.ClusterID) model.RetainState {
	if parent == model.Unassigned {
		return model.RetainYes
	}
	for x := idx - 1; x >= 0; x-- {
		if t.rows[x].ClusterID == parent {
			if t.rows[x].Retain != model.RetainUnknown {
				return model.RetainNo
			}
			if t.rows[x].ParentClusterID == model.Unassigned {
				return model.RetainYes
			}
			return t.decide(x, t.rows[x].ParentClusterID)
		}
	}
	return model.RetainUnknown
}

// SidecarReader loads a pass's full dense id vector, e.g. via
// internal/ioformat.ReadSidecar against the path recorded in that pass's
// model.PassSummary.
type SidecarReader func(passOrdinal int) ([]model.ClusterID, error)

// BuildOutput re-reads each retained row's pass sidecar and copies its
// matching points into a freshly compacted 1..R output vector (spec.md
// §4.8's final step). totalEvents is the length of the original point
// array.
func BuildOutput(rows []model.ClusterHistory, totalEvents int, readSidecar SidecarReader) ([]model.ClusterID, error) {
	out := make([]model.ClusterID, totalEvents)
	cache := make(map[int][]model.ClusterID)
	next := model.ClusterID(1)

	for _, row := range rows {
		if row.Retain != model.RetainYes {
			continue
		}
		ids, ok := cache[row.PassOrdinal]
		if !ok {
			var err error
			ids, err = readSidecar(row.PassOrdinal)
			if err != nil {
				return nil, err
			}
			cache[row.PassOrdinal] = ids
		}
		assignedAny := false
		for i, id := range ids {
			if id == row.ClusterID {
				out[i] = next
				assignedAny = true
			}
		}
		if assignedAny {
			next++
		}
	}
	return out, nil
}
