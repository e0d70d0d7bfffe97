// Package model defines the core data structures shared across the
// clustering engine: points, the point array, cluster ids, and cluster
// genealogy history.
package model

import (
	"fmt"
	"sort"
)

// MaxAllowedInputValue is the exclusive upper bound on any single
// quantized column value (megaclust's kMAX_ALLOWED_INPUT_VALUE).
const MaxAllowedInputValue = 16384

// MaxEvents is the largest point array this engine is specified to
// handle in one run (megaclust's kMAXEVENTS).
const MaxEvents = 15_000_000

// AllowedColumnCounts enumerates the column widths megaclust was built
// for (dclust.h's kMaxInputCol ladder, one per COLUMNS_n build). This Go
// rewrite checks the column count at load time instead of specializing a
// build per width.
var AllowedColumnCounts = [...]int{4, 8, 12, 16, 24, 32, 40, 48, 52, 64}

// ValidColumnCount reports whether n is one of the widths the engine was
// designed for.
func ValidColumnCount(n int) bool {
	for _, c := range AllowedColumnCounts {
		if c == n {
			return true
		}
	}
	return false
}

// NameIndex is the opaque, caller-assigned row identifier carried
// alongside every point (spec.md §3: "32-bit name_index").
type NameIndex uint32

// Point is one fixed-width, quantized row of the input dataset. It is
// immutable after load: every column value is in [0, MaxAllowedInputValue)
// and Data always has the same length as the PointArray's ColumnCount.
type Point struct {
	NameIndex NameIndex
	Data      []uint16
}

// PointArray is the full, sortkey-sorted set of points for one run.
// Sort order is load-bearing: SortKey must hold the column of maximum
// variance so that the distance-kernel fast-reject in internal/worker is
// correct (spec.md §3, §4.3).
type PointArray struct {
	Points      []Point
	ColumnCount int
	SortKey     int
}

// Len is the number of points.
func (p *PointArray) Len() int { return len(p.Points) }

// SortByKey sorts Points ascending by Data[SortKey], establishing the
// invariant the block worker's fast-reject test depends on.
func (p *PointArray) SortByKey() {
	key := p.SortKey
	sort.Slice(p.Points, func(i, j int) bool {
		return p.Points[i].Data[key] < p.Points[j].Data[key]
	})
}

// ColumnOfMaxVariance picks the sort key the way ingest-time tooling
// does: the column with the largest sample variance. It is exposed for
// callers that do not already know the sort key; the engine itself takes
// the sort key from the input file header and does not call it.
func ColumnOfMaxVariance(points []Point, columnCount int) (int, error) {
	if len(points) == 0 {
		return 0, fmt.Errorf("model: cannot pick sort key on empty point set")
	}
	if columnCount <= 0 {
		return 0, fmt.Errorf("model: invalid column count %d", columnCount)
	}

	best, bestVar := 0, -1.0
	n := float64(len(points))
	for col := 0; col < columnCount; col++ {
		var sum, sumSq float64
		for _, pt := range points {
			v := float64(pt.Data[col])
			sum += v
			sumSq += v * v
		}
		mean := sum / n
		variance := sumSq/n - mean*mean
		if variance > bestVar {
			bestVar = variance
			best = col
		}
	}
	return best, nil
}

// SquaredCutoff converts a Euclidean distance cutoff into the squared,
// column-scaled cutoff T the distance kernel and block worker operate on:
// T = d² · columnCount (spec.md §1, §4.1).
func SquaredCutoff(d float64, columnCount int) uint64 {
	scaled := d * d * float64(columnCount)
	if scaled < 0 {
		return 0
	}
	return uint64(scaled)
}
