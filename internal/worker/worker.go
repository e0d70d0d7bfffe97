// Package worker implements the block worker (spec.md §4.3, C3): given a
// block pair and the current cluster-id slices for its two row ranges, it
// enumerates the cross product, applies the union rule, and emits merge
// requests for colliding non-zero ids.
package worker

import (
	"sync"

	"github.com/sib-swiss/dclust/internal/distance"
	"github.com/sib-swiss/dclust/internal/mergeset"
	"github.com/sib-swiss/dclust/internal/transport"
	"github.com/sib-swiss/dclust/pkg/model"
	"github.com/sib-swiss/dclust/pkg/utils"
)

// Worker runs the block-worker message loop for one worker ordinal.
type Worker struct {
	Ordinal int
	Points  []model.Point
	Cutoff  uint64
	sortKey int

	counter  uint32
	mergeSet *mergeset.Set
	logger   utils.Logger

	// splitThreshold gates the optional two-way intra-worker thread split
	// (spec.md §4.3): block pairs with fewer combined rows than this run
	// single-threaded, since the mutex/merge overhead isn't worth it.
	splitThreshold int
}

// New creates a Worker bound to the shared, read-only point array. seed is
// the local counter's starting value (0 on a fresh pass, or the sweep
// controller's seedAbove on a reseeded pass — spec.md §4.7). sortKey is
// the column used to order Points, needed for the fast-reject test.
func New(ordinal int, points []model.Point, sortKey int, cutoff uint64, seed uint32, logger utils.Logger) *Worker {
	if logger == nil {
		logger = utils.NewDefaultLogger(utils.LevelInfo, nil)
	}
	return &Worker{
		Ordinal:        ordinal,
		Points:         points,
		Cutoff:         cutoff,
		sortKey:        sortKey,
		counter:        seed,
		mergeSet:       mergeset.New(logger),
		logger:         logger,
		splitThreshold: 4096,
	}
}

// Run drains link.ToWorker until a Sentinel arrives (or the channel is
// closed), processing Assign/Slice pairs and replying on link.FromWorker.
// RepeatWithCutoff messages are not handled. It returns when the
// coordinator ends the pass.
func (w *Worker) Run(link *transport.WorkerLink) {
	for msg := range link.ToWorker {
		switch m := msg.(type) {
		case transport.Sentinel:
			link.FromWorker <- transport.FinalCount{Worker: w.Ordinal, Count: w.counter}
			return
		case transport.Assign:
			iiSlice := w.recvSlice(link)
			var jjSlice transport.Slice
			if m.JJ != m.II {
				jjSlice = w.recvSlice(link)
			} else {
				jjSlice = iiSlice
			}
			done := w.processAssign(m, iiSlice, jjSlice)
			link.FromWorker <- done
		case transport.JoinList:
			link.FromWorker <- transport.MergeSet{From: w.Ordinal, Entries: w.mergeSet.IterSorted()}
		case transport.MergeSet:
			other := mergeset.New(w.logger)
			for _, e := range m.Entries {
				other.Insert(e.C1, e.C2)
			}
			w.mergeSet.Merge(other)
		}
	}
}

func (w *Worker) recvSlice(link *transport.WorkerLink) transport.Slice {
	msg := <-link.ToWorker
	return msg.(transport.Slice)
}

// processAssign implements §4.3's fast reject, enumeration, and union
// rule for one block pair.
func (w *Worker) processAssign(a transport.Assign, iiSlice, jjSlice transport.Slice) transport.Done {
	ii, jj := a.II, a.JJ
	iiIDs := append([]model.ClusterID(nil), iiSlice.IDs...)
	var jjIDs []model.ClusterID
	sameBlock := jj == ii
	if sameBlock {
		jjIDs = iiIDs
	} else {
		jjIDs = append([]model.ClusterID(nil), jjSlice.IDs...)
	}

	if !sameBlock {
		lastOfFirst := w.Points[ii.End-1].Data[w.sortKeyColumn()]
		firstOfSecond := w.Points[jj.Start].Data[w.sortKeyColumn()]
		if distance.FastRejectBlockPair(lastOfFirst, firstOfSecond, w.Cutoff) {
			return transport.Done{
				Worker: w.Ordinal,
				II:     ii, IIIDs: iiIDs,
				JJ: jj, JJIDs: jjIDs,
				Overflow: w.mergeSet.Overflowed(),
			}
		}
	}

	rows := ii.Len() + jj.Len()
	if rows >= w.splitThreshold && !sameBlock {
		w.enumerateSplit(ii, jj, iiIDs, jjIDs)
	} else {
		w.enumerateRange(ii, jj, iiIDs, jjIDs, sameBlock)
	}

	if sameBlock {
		jjIDs = iiIDs
	}

	return transport.Done{
		Worker: w.Ordinal,
		II:     ii, IIIDs: iiIDs,
		JJ: jj, JJIDs: jjIDs,
		Overflow: w.mergeSet.Overflowed(),
	}
}

// sortKeyColumn is fixed at construction time via the Points' shared
// layout; callers (internal/coordinator) guarantee every point uses the
// same column for the sort key.
func (w *Worker) sortKeyColumn() int {
	return w.sortKey
}

// enumerateRange walks i in [ii.Start, ii.End) and j in [max(jj.Start,
// i+1), jj.End), applying the union rule to iiIDs/jjIDs in place
// (spec.md §4.3's enumeration table).
func (w *Worker) enumerateRange(ii, jj transport.Range, iiIDs, jjIDs []model.ClusterID, sameBlock bool) {
	for i := ii.Start; i < ii.End; i++ {
		jStart := jj.Start
		if sameBlock || jStart <= i {
			jStart = i + 1
		}
		for j := jStart; j < jj.End; j++ {
			if distance.WithinCutoff(w.Points[i].Data, w.Points[j].Data, w.Cutoff) {
				w.unite(iiIDs, i-ii.Start, jjIDs, j-jj.Start)
			}
		}
	}
}

// enumerateSplit divides [ii]x[jj] into two halves along ii and runs them
// in separate goroutines, guarding the local counter and merge set with a
// mutex (spec.md §4.3's optional two-way thread split).
func (w *Worker) enumerateSplit(ii, jj transport.Range, iiIDs, jjIDs []model.ClusterID) {
	mid := ii.Start + ii.Len()/2
	upper := transport.Range{Start: ii.Start, End: mid}
	lower := transport.Range{Start: mid, End: ii.End}

	var mu sync.Mutex
	var wg sync.WaitGroup
	wg.Add(2)

	run := func(r transport.Range) {
		defer wg.Done()
		for i := r.Start; i < r.End; i++ {
			jStart := jj.Start
			if jStart <= i {
				jStart = i + 1
			}
			for j := jStart; j < jj.End; j++ {
				if distance.WithinCutoff(w.Points[i].Data, w.Points[j].Data, w.Cutoff) {
					mu.Lock()
					w.unite(iiIDs, i-ii.Start, jjIDs, j-jj.Start)
					mu.Unlock()
				}
			}
		}
	}

	go run(upper)
	run(lower)
	wg.Wait()
}

// unite applies the union rule at iiIDs[ri] <-> jjIDs[rj] (spec.md §4.3's
// table). Callers hold any mutex the caller's enumeration strategy needs.
func (w *Worker) unite(iiIDs []model.ClusterID, ri int, jjIDs []model.ClusterID, rj int) {
	a, b := iiIDs[ri], jjIDs[rj]
	switch {
	case !a.IsAssigned() && !b.IsAssigned():
		w.counter++
		id := model.NewLocalClusterID(uint32(w.Ordinal), w.counter)
		iiIDs[ri] = id
		jjIDs[rj] = id
	case !a.IsAssigned():
		iiIDs[ri] = b
	case !b.IsAssigned():
		jjIDs[rj] = a
	case a == b:
		// no-op
	default:
		w.mergeSet.Insert(a, b)
	}
}

// MergeSet exposes the worker's accumulated merge requests, used by the
// aggregator's tree reduction when it runs in-process rather than over
// JoinList messages.
func (w *Worker) MergeSet() *mergeset.Set {
	return w.mergeSet
}

// FinalCounter returns the highest local counter minted so far.
func (w *Worker) FinalCounter() uint32 {
	return w.counter
}
