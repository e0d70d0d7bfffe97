// Package distance implements the squared-Euclidean distance kernel used
// by the block worker (spec.md §4.1, C1).
package distance

import "github.com/sib-swiss/dclust/pkg/model"

// checkpointStride is the dimension count between early-exit checks
// (spec.md §4.1: "at multiples of 16 dimensions").
const checkpointStride = 16

// SquaredWithEarlyExit returns the squared Euclidean distance between a
// and b, or any value strictly greater than cutoff once the running sum
// is provably over cutoff. Accumulation is 64-bit: with up to 64
// dimensions and values below model.MaxAllowedInputValue, the worst-case
// sum (~6.9e10) overflows 32 bits, so the accumulator must be uint64
// (spec.md §4.1).
//
// a and b must have the same length; callers (internal/worker) guarantee
// this from the shared PointArray.ColumnCount.
func SquaredWithEarlyExit(a, b []uint16, cutoff uint64) uint64 {
	var sum uint64
	n := len(a)
	for i := 0; i < n; i++ {
		diff := int32(a[i]) - int32(b[i])
		sum += uint64(diff * diff)

		if (i+1)%checkpointStride == 0 && sum > cutoff {
			return sum
		}
	}
	return sum
}

// Squared is a convenience wrapper over SquaredWithEarlyExit using an
// effectively unbounded cutoff, for callers (e.g. C9 reassignment) that
// need the exact distance rather than an early-exit bound.
func Squared(a, b []uint16) uint64 {
	return SquaredWithEarlyExit(a, b, ^uint64(0))
}

// WithinCutoff reports whether the squared distance between a and b does
// not exceed cutoff, short-circuiting via SquaredWithEarlyExit.
func WithinCutoff(a, b []uint16, cutoff uint64) bool {
	return SquaredWithEarlyExit(a, b, cutoff) <= cutoff
}

// FastRejectBlockPair implements the sortkey monotone lower-bound test
// (spec.md §4.3): if the two blocks are disjoint along the sort key by
// more than sqrt(cutoff), no cross pair between them can be within the
// cutoff, and the whole block pair may be skipped.
//
// lastOfFirstBlock and firstOfSecondBlock are the Data[sortkey] values of
// the last point of the lower block and the first point of the upper
// block, respectively; the caller (internal/worker, internal/coordinator)
// is responsible for only calling this when ii != jj.
func FastRejectBlockPair(lastOfFirstBlock, firstOfSecondBlock uint16, cutoff uint64) bool {
	if firstOfSecondBlock <= lastOfFirstBlock {
		return false
	}
	gap := uint64(firstOfSecondBlock - lastOfFirstBlock)
	return gap*gap > cutoff
}

// SquaredCutoffFor is a thin re-export of model.SquaredCutoff kept in this
// package so callers that only import internal/distance don't also need
// to import pkg/model for the common case of deriving T from d.
func SquaredCutoffFor(d float64, columnCount int) uint64 {
	return model.SquaredCutoff(d, columnCount)
}
