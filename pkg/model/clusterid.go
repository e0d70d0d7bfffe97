package model

// ClusterID is the 32-bit id carried per point in the cluster-id vector K
// (spec.md §3). Zero means "unassigned at the current pass". Non-zero
// values are either worker-local (during a pass, encoded as
// worker·LocalIDBlock + counter) or canonical (after the merge executor
// (internal/executor) compacts them to a dense 1..K_pass range).
type ClusterID uint32

// Unassigned is the sentinel value meaning "no cluster yet".
const Unassigned ClusterID = 0

// LocalIDBlock is the per-worker id-space stride: local ids are
// worker_ordinal*LocalIDBlock + local_counter (spec.md §3's
// "worker_ordinal · 4_000_000 + local_counter").
const LocalIDBlock = 4_000_000

// MaxLocalIDsPerWorker is the hard cap on distinct local ids one worker
// may mint in a single pass (spec.md §5).
const MaxLocalIDsPerWorker = 4_000_000

// MaxCanonicalClustersPerPass bounds the number of canonical ids a single
// pass may produce (spec.md §3).
const MaxCanonicalClustersPerPass = 1_000_000

// MaxWorkerProcesses is the hard cap on coordinator + worker processes
// (spec.md §5).
const MaxWorkerProcesses = 129

// NewLocalClusterID builds a worker-local id from a 1-based worker
// ordinal and a 1-based local counter value.
func NewLocalClusterID(workerOrdinal, localCounter uint32) ClusterID {
	return ClusterID(uint64(workerOrdinal)*LocalIDBlock + uint64(localCounter))
}

// WorkerOrdinal extracts the worker ordinal that minted a local cluster id.
func (c ClusterID) WorkerOrdinal() uint32 {
	return uint32(c) / LocalIDBlock
}

// LocalCounter extracts the per-worker counter component of a local
// cluster id.
func (c ClusterID) LocalCounter() uint32 {
	return uint32(c) % LocalIDBlock
}

// IsAssigned reports whether the id is non-zero (assigned to some cluster,
// local or canonical).
func (c ClusterID) IsAssigned() bool {
	return c != Unassigned
}

// MergeRequest is an intent to unify two cluster ids, always stored with
// the smaller id first (spec.md §3, §4.2).
type MergeRequest struct {
	C1 ClusterID // smaller id, survives the merge
	C2 ClusterID // larger id, collapses into C1
}

// NormalizeMergeRequest returns a MergeRequest with C1 < C2 regardless of argument
// order, or ok=false if a and b name the same cluster (a no-op merge).
func NormalizeMergeRequest(a, b ClusterID) (MergeRequest, bool) {
	if a == b {
		return MergeRequest{}, false
	}
	if a < b {
		return MergeRequest{C1: a, C2: b}, true
	}
	return MergeRequest{C1: b, C2: a}, true
}
