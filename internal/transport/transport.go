// Package transport models the coordinator/worker message boundary
// (spec.md §9) as typed messages over an abstract, ordered, reliably
// delivering channel. The coordinator and every worker run as goroutines
// in this process; spec.md §9 explicitly allows "any transport with
// ordered, reliable per-pair delivery", and an in-process channel gives
// that guarantee for free while keeping worker state (local counters,
// merge sets) isolated behind message boundaries exactly as the spec's
// process model requires.
package transport

import "github.com/sib-swiss/dclust/pkg/model"

// Range is a half-open row range [Start, End) into the shared point array.
type Range struct {
	Start int
	End   int
}

// Len reports the number of rows in the range.
func (r Range) Len() int {
	return r.End - r.Start
}

// Assign tells a worker to compute one block pair.
type Assign struct {
	II, JJ Range
}

// Slice carries the cluster-id slice for one range, sent after an Assign
// so the worker has the current master K values for it.
type Slice struct {
	Range Range
	IDs   []model.ClusterID
}

// Done is the worker's reply to a completed Assign: the updated slices
// for II (and JJ if JJ != II) plus whether the worker's merge set has
// overflowed. Merge requests stay in the worker's own merge set until
// tree reduction.
type Done struct {
	Worker  int
	II      Range
	IIIDs   []model.ClusterID
	JJ      Range
	JJIDs   []model.ClusterID
	Overflow bool
}

// FinalCount requests (and returns) a worker's highest-minted local
// counter, sent once all block pairs are computing-finished (spec.md
// §4.4's termination step).
type FinalCount struct {
	Worker int
	Count  uint32
}

// JoinList instructs a worker to send its merge set to a peer during the
// binary-tree reduction (spec.md §4.5).
type JoinList struct {
	Peer      int
	SendNotRecv bool
}

// MergeSet carries one worker's accumulated merge requests to another
// during tree reduction, or from worker 1 to the coordinator at the end.
type MergeSet struct {
	From    int
	Entries []model.MergeRequest
}

// RepeatWithCutoff reseeds a worker for the next sweep pass: it should
// start its local counter above seedAbove and treat ids already at or
// above the worker-1 prefix as pre-assigned (spec.md §4.7's seeding).
type RepeatWithCutoff struct {
	Cutoff    float64
	SeedAbove uint32
}

// Sentinel is sent in place of a real Assign to tell a worker there is no
// more work (spec.md §4.4's "sentinel assignment").
type Sentinel struct{}
