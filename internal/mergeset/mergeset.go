// Package mergeset implements the sorted, deduplicated merge-request set
// (spec.md §3, §4.2, C2) that block workers use to accumulate transitive
// merge intents and that the coordinator/aggregator combine across
// workers.
package mergeset

import (
	"sort"
	"sync"

	"github.com/sib-swiss/dclust/pkg/model"
	"github.com/sib-swiss/dclust/pkg/utils"
)

// DefaultCapacity is the per-worker merge-request capacity from
// spec.md §5 ("Merge-request capacity per worker ≈ 786,432").
const DefaultCapacity = 786_432

// Set is a sorted slice of model.MergeRequest, ordered by C2 ascending
// then C1 ascending, with no duplicate C2 values and C1 < C2 always
// (spec.md §3). It is bounded: once Capacity requests are held, further
// inserts are logged once and dropped (spec.md §4.2, §7, §9 — a
// documented, intentionally lossy degrade to a conservative,
// over-clustered result rather than unbounded memory growth).
type Set struct {
	mu       sync.Mutex
	items    []model.MergeRequest
	capacity int
	overflow bool
	logger   utils.Logger
}

// New creates an empty merge-request set with the default capacity.
func New(logger utils.Logger) *Set {
	return NewWithCapacity(DefaultCapacity, logger)
}

// NewWithCapacity creates an empty merge-request set with an explicit
// capacity (tests use small capacities to exercise the overflow path).
func NewWithCapacity(capacity int, logger utils.Logger) *Set {
	if logger == nil {
		logger = utils.NewDefaultLogger(utils.LevelInfo, nil)
	}
	return &Set{capacity: capacity, logger: logger}
}

// Len returns the number of distinct merge requests currently held.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// Overflowed reports whether this set has ever dropped an insert due to
// capacity (spec.md §7's "logged once and swallowed").
func (s *Set) Overflowed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.overflow
}

// Insert adds a merge request between cluster ids a and b (in either
// order; a == b is a no-op). Insertion locates the position of the
// request's C2 by binary search; a collision with an existing entry that
// names the same C2 but a different C1 is resolved per spec.md §3 by
// recursively inserting the normalized pair (min, max) of the two C1
// candidates, keeping the smaller as survivor.
func (s *Set) Insert(a, b model.ClusterID) {
	req, ok := model.NormalizeMergeRequest(a, b)
	if !ok {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.insertLocked(req)
}

func (s *Set) insertLocked(req model.MergeRequest) {
	idx := sort.Search(len(s.items), func(i int) bool {
		return s.items[i].C2 >= req.C2
	})

	if idx < len(s.items) && s.items[idx].C2 == req.C2 {
		if s.items[idx].C1 == req.C1 {
			return // exact duplicate
		}
		// Same C2, differing C1: normalize and recurse (spec.md §3).
		existing := s.items[idx]
		normalized, ok := model.NormalizeMergeRequest(existing.C1, req.C1)
		if !ok {
			return
		}
		s.items[idx] = model.MergeRequest{C1: normalized.C1, C2: existing.C2}
		s.insertLocked(normalized)
		return
	}

	if s.capacity > 0 && len(s.items) >= s.capacity {
		if !s.overflow {
			s.overflow = true
			s.logger.Warn("merge-request set exceeded capacity %d, dropping further inserts for this pass (result will be conservative/over-clustered)", s.capacity)
		}
		return
	}

	s.items = append(s.items, model.MergeRequest{})
	copy(s.items[idx+1:], s.items[idx:])
	s.items[idx] = req
}

// Merge inserts every request from other into s (spec.md §4.2:
// "merge(other) O((n+m))"; the recursive-normalization path keeps this
// from being a literal linear merge when collisions occur, but the
// common case — disjoint C2 ranges — is linear).
func (s *Set) Merge(other *Set) {
	other.mu.Lock()
	items := make([]model.MergeRequest, len(other.items))
	copy(items, other.items)
	otherOverflowed := other.overflow
	other.mu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, req := range items {
		s.insertLocked(req)
	}
	if otherOverflowed && !s.overflow {
		s.overflow = true
		s.logger.Warn("merge-request set inherited overflow from a merged peer set")
	}
}

// IterSorted returns a snapshot slice of all requests in sorted order
// (C2 ascending, then C1 ascending) — the order the merge executor
// (internal/executor) requires to be processed in reverse (spec.md §4.6,
// §9 open question (a)).
func (s *Set) IterSorted() []model.MergeRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]model.MergeRequest, len(s.items))
	copy(out, s.items)
	return out
}
