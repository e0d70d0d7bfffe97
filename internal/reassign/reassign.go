// Package reassign implements nearest-cluster reassignment (spec.md
// §4.9, C9): sweeping over every flagged point, finding the nearest
// currently assigned point, and adopting its cluster id unless two
// equidistant assigned points disagree on cluster.
package reassign

import (
	"context"

	"github.com/sib-swiss/dclust/internal/distance"
	"github.com/sib-swiss/dclust/pkg/model"
	"github.com/sib-swiss/dclust/pkg/parallel"
)

// Stats summarizes one reassignment pass.
type Stats struct {
	Reassigned int
	Ambiguous  int
}

// decision is one query point's outcome, computed against a read-only
// snapshot of ids so that a point reassigned earlier in the same pass
// never influences another point's nearest-neighbor search (spec.md
// §4.9: "no reassignment uses another reassigned point as its own
// source").
type decision struct {
	index     int
	cluster   model.ClusterID
	ambiguous bool
}

// Params configures one Reassign call. `DistributeUnassignedToClosestCluster`
// and `DistributeLeftoverToClosestCluster` (dclust.c) are both instances
// of "nearest assigned point, flag ties", differing only in which points
// are queried and whether a distance cutoff gates acceptance; Params
// captures that one difference so both run through the same scan.
type Params struct {
	// Points is the point set being searched for an assignment (the
	// flagged points: unassigned-at-final-pass, or leftover).
	Points []model.Point
	// Assigned is the reference set to search against: all points
	// carrying a non-zero id. AssignedIDs is parallel to Assigned.
	Assigned    []model.Point
	AssignedIDs []model.ClusterID
	// SquaredCutoff gates acceptance (spec.md's T_ext for the leftover
	// pass); a zero value means no cutoff (the unassigned pass).
	SquaredCutoff uint64
	Workers       int
}

// Reassign runs the nearest-assigned-point scan described by p and
// returns one cluster id per entry of p.Points (Unassigned where no
// acceptable match was found, including ties). Parallelized by chunking
// p.Points across p.Workers (spec.md §4.9).
func Reassign(ctx context.Context, p Params) ([]model.ClusterID, Stats) {
	out := make([]model.ClusterID, len(p.Points))
	if len(p.Points) == 0 {
		return out, Stats{}
	}

	indices := make([]int, len(p.Points))
	for i := range indices {
		indices[i] = i
	}

	cfg := parallel.PoolConfig{MaxWorkers: p.Workers}
	proc := parallel.NewChunkProcessor[int, []decision](cfg)

	decisions := proc.ProcessChunks(ctx, indices,
		func(ctx context.Context, chunk []int, workerID int) []decision {
			chunkOut := make([]decision, 0, len(chunk))
			for _, idx := range chunk {
				cluster, dist, ambiguous := nearestAssigned(p.Points[idx], p.Assigned, p.AssignedIDs)
				if p.SquaredCutoff > 0 && dist > p.SquaredCutoff {
					ambiguous = true
				}
				chunkOut = append(chunkOut, decision{index: idx, cluster: cluster, ambiguous: ambiguous})
			}
			return chunkOut
		},
		func(results [][]decision) []decision {
			total := 0
			for _, r := range results {
				total += len(r)
			}
			merged := make([]decision, 0, total)
			for _, r := range results {
				merged = append(merged, r...)
			}
			return merged
		},
	)

	var stats Stats
	for _, d := range decisions {
		if d.ambiguous || d.cluster == model.Unassigned {
			stats.Ambiguous++
			continue
		}
		out[d.index] = d.cluster
		stats.Reassigned++
	}
	return out, stats
}

// Unassigned reassigns every point in points with ids[i] == Unassigned
// against the rest of the same array, in place. Every decision is made
// against a read-only snapshot of ids taken before the scan, so a point
// reassigned earlier in this call never affects later comparisons in the
// same call (spec.md §4.9); no max_cluster_id + 1 offset marker is used.
func Unassigned(ctx context.Context, points []model.Point, ids []model.ClusterID, workers int) Stats {
	flagged := make([]int, 0)
	for i, id := range ids {
		if !id.IsAssigned() {
			flagged = append(flagged, i)
		}
	}
	if len(flagged) == 0 {
		return Stats{}
	}

	queries := make([]model.Point, len(flagged))
	for i, idx := range flagged {
		queries[i] = points[idx]
	}
	snapshot := append([]model.ClusterID(nil), ids...)

	results, stats := Reassign(ctx, Params{
		Points:      queries,
		Assigned:    points,
		AssignedIDs: snapshot,
		Workers:     workers,
	})
	for i, idx := range flagged {
		if results[i].IsAssigned() {
			ids[idx] = results[i]
		}
	}
	return stats
}

// Leftover reassigns leftoverPoints (points set aside at ingest as not
// clusterable) against the already-assigned points and ids, accepting a
// match only within squaredCutoff = T_ext (spec.md §4.9). The returned
// slice is parallel to leftoverPoints.
func Leftover(ctx context.Context, assignedPoints []model.Point, assignedIDs []model.ClusterID, leftoverPoints []model.Point, squaredCutoff uint64, workers int) ([]model.ClusterID, Stats) {
	return Reassign(ctx, Params{
		Points:        leftoverPoints,
		Assigned:      assignedPoints,
		AssignedIDs:   assignedIDs,
		SquaredCutoff: squaredCutoff,
		Workers:       workers,
	})
}

// ExtendedCutoff computes T_ext = (d_last + step)^2 * C, the leftover
// pass's squared distance cutoff (spec.md §4.9).
func ExtendedCutoff(lastCutoff, step float64, columnCount int) uint64 {
	return model.SquaredCutoff(lastCutoff+step, columnCount)
}

// nearestAssigned scans every point with an assigned cluster id and
// returns the closest one's cluster id and squared distance. It reports
// ambiguous if a second point ties the running minimum distance with a
// different cluster id (spec.md §4.9: "If the two-closest are tied at
// equal distance with differing cluster ids, mark ambiguous"). A query
// point that is itself present (and unassigned) in ids is automatically
// skipped as its own candidate, since IsAssigned() excludes it.
func nearestAssigned(query model.Point, points []model.Point, ids []model.ClusterID) (cluster model.ClusterID, dist uint64, ambiguous bool) {
	dist = ^uint64(0)
	for j := range points {
		candidate := ids[j]
		if !candidate.IsAssigned() {
			continue
		}
		d := distance.Squared(query.Data, points[j].Data)
		switch {
		case d < dist:
			dist = d
			cluster = candidate
			ambiguous = false
		case d == dist && candidate != cluster:
			ambiguous = true
		}
	}
	return cluster, dist, ambiguous
}
