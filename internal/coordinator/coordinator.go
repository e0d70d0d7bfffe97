// Package coordinator implements the pass coordinator (spec.md §4.4, C4):
// it owns the master cluster-id slice K and the block-pair grid for one
// pass, dispatches block pairs to worker goroutines over
// internal/transport, enforces the anti-conflict rule that no two
// in-flight assignments touch overlapping row ranges, and drives the
// merge aggregation (C5) once every block pair is computing-finished.
package coordinator

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/sib-swiss/dclust/internal/aggregator"
	"github.com/sib-swiss/dclust/internal/distance"
	"github.com/sib-swiss/dclust/internal/mergeset"
	"github.com/sib-swiss/dclust/internal/transport"
	"github.com/sib-swiss/dclust/internal/worker"
	"github.com/sib-swiss/dclust/pkg/collections"
	"github.com/sib-swiss/dclust/pkg/model"
	"github.com/sib-swiss/dclust/pkg/utils"
)

// Config controls one pass.
type Config struct {
	SortKey     int
	Cutoff      uint64
	WorkerCount int
	BlockSize   int // 0 picks an adaptive size via ChooseBlockSize
	// Worker1Seed seeds only worker ordinal 1's local counter, so a
	// reseeded pass's re-prefixed ids (spec.md §4.7) never collide with
	// freshly minted ones. Every other worker always starts at 0.
	Worker1Seed  uint32
	LinkCapacity int
}

// PassResult is the outcome of one coordinator pass: the updated master K
// (mutated in place on the caller's slice) and the combined merge set.
type PassResult struct {
	MergeRequests []model.MergeRequest
	Overflow      bool
	FinalCounters []uint32 // indexed by worker ordinal - 1
}

// completion fans in a worker's Done/FinalCount reply tagged with the
// ordinal it came from, since a coordinator must select across every
// worker's FromWorker channel at once.
type completion struct {
	ordinal int
	msg     any
}

// RunPass drives one full clustering pass over points, mutating k in
// place, and returns the combined, deduped merge-request set (spec.md
// §4.4's dispatch loop, terminating into C5's binary tree reduction).
func RunPass(ctx context.Context, points []model.Point, k []model.ClusterID, cfg Config, logger utils.Logger) (PassResult, error) {
	if logger == nil {
		logger = utils.NewDefaultLogger(utils.LevelInfo, nil)
	}
	n := len(points)
	blockSize := ChooseBlockSize(n, cfg.WorkerCount, cfg.BlockSize)
	pairs := prefilterPairs(points, GenerateBlockPairs(n, blockSize), cfg.SortKey, cfg.Cutoff)

	fleet := transport.NewFleet(cfg.WorkerCount, cfg.LinkCapacity)
	workers := make([]*worker.Worker, cfg.WorkerCount)
	for i := 0; i < cfg.WorkerCount; i++ {
		var seed uint32
		if i == 0 {
			seed = cfg.Worker1Seed
		}
		workers[i] = worker.New(i+1, points, cfg.SortKey, cfg.Cutoff, seed, logger)
	}

	completions := make(chan completion, cfg.WorkerCount)
	group, gctx := errgroup.WithContext(ctx)
	for i := 0; i < cfg.WorkerCount; i++ {
		ordinal := i + 1
		w := workers[i]
		link := fleet.Link(ordinal)
		group.Go(func() error {
			w.Run(link)
			return nil
		})
		group.Go(func() error {
			return forwardCompletions(gctx, ordinal, link, completions)
		})
	}

	result, dispatchErr := dispatch(gctx, fleet, pairs, k, cfg.WorkerCount, completions)
	if dispatchErr != nil {
		fleet.CloseAll()
		_ = group.Wait()
		return PassResult{}, dispatchErr
	}

	finalCounters, err := finish(gctx, fleet, completions, cfg.WorkerCount)
	fleet.CloseAll()
	if waitErr := group.Wait(); err == nil {
		err = waitErr
	}
	if err != nil {
		return PassResult{}, err
	}
	result.FinalCounters = finalCounters

	sets := make([]*mergeset.Set, cfg.WorkerCount)
	for i, w := range workers {
		sets[i] = w.MergeSet()
	}
	combined := aggregator.Reduce(sets)
	if combined != nil {
		result.MergeRequests = combined.IterSorted()
		result.Overflow = result.Overflow || combined.Overflowed()
	}
	return result, nil
}

// forwardCompletions relays every reply a worker sends (Done during
// dispatch, FinalCount at termination) into the shared completions
// channel, tagging it with the worker's ordinal so a single goroutine can
// select across every worker's mailbox at once without reflect.Select.
// It is the only reader of link.FromWorker, so dispatch and finish both
// consume from completions rather than racing on the same channel.
func forwardCompletions(ctx context.Context, ordinal int, link *transport.WorkerLink, out chan<- completion) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-link.FromWorker:
			if !ok {
				return nil
			}
			select {
			case out <- completion{ordinal: ordinal, msg: msg}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
}

// dispatch runs the anti-conflict scheduling loop: it hands out block
// pairs to idle workers whose row ranges don't overlap any pair currently
// in flight, and copies each Done reply's slices back into the master K.
func dispatch(ctx context.Context, fleet *transport.Fleet, pairs []BlockPair, k []model.ClusterID, workerCount int, completions <-chan completion) (PassResult, error) {
	pending := append([]BlockPair(nil), pairs...)
	maxBlock := 0
	for _, p := range pairs {
		if p.IBlock > maxBlock {
			maxBlock = p.IBlock
		}
		if p.JBlock > maxBlock {
			maxBlock = p.JBlock
		}
	}
	busy := collections.NewBitset(maxBlock + 1)
	idle := make([]int, 0, workerCount)
	for w := 1; w <= workerCount; w++ {
		idle = append(idle, w)
	}
	outstanding := make(map[int]BlockPair, workerCount)
	overflow := false

	for len(pending) > 0 || len(outstanding) > 0 {
		for len(idle) > 0 && len(pending) > 0 {
			idx := nextReady(pending, busy)
			if idx < 0 {
				break
			}
			pair := pending[idx]
			pending = append(pending[:idx], pending[idx+1:]...)

			w := idle[0]
			idle = idle[1:]
			busy.Set(pair.IBlock)
			busy.Set(pair.JBlock)
			outstanding[w] = pair

			link := fleet.Link(w)
			select {
			case link.ToWorker <- transport.Assign{II: pair.II, JJ: pair.JJ}:
			case <-ctx.Done():
				return PassResult{}, ctx.Err()
			}
			sendSlice(ctx, link, transport.Slice{Range: pair.II, IDs: copyRange(k, pair.II)})
			if pair.JJ != pair.II {
				sendSlice(ctx, link, transport.Slice{Range: pair.JJ, IDs: copyRange(k, pair.JJ)})
			}
		}

		if len(outstanding) == 0 {
			break
		}

		select {
		case <-ctx.Done():
			return PassResult{}, ctx.Err()
		case comp := <-completions:
			done, ok := comp.msg.(transport.Done)
			if !ok {
				continue
			}
			pair := outstanding[comp.ordinal]
			delete(outstanding, comp.ordinal)
			busy.Clear(pair.IBlock)
			busy.Clear(pair.JBlock)
			idle = append(idle, comp.ordinal)

			applyRange(k, done.II, done.IIIDs)
			if done.JJ != done.II {
				applyRange(k, done.JJ, done.JJIDs)
			}
			overflow = overflow || done.Overflow
		}
	}

	return PassResult{Overflow: overflow}, nil
}

func sendSlice(ctx context.Context, link *transport.WorkerLink, s transport.Slice) {
	select {
	case link.ToWorker <- s:
	case <-ctx.Done():
	}
}

// nextReady finds the first pending pair whose blocks are both free,
// returning its index or -1 if every pending pair conflicts with
// something in flight.
func nextReady(pending []BlockPair, busy *collections.Bitset) int {
	for i, p := range pending {
		if !busy.Test(p.IBlock) && !busy.Test(p.JBlock) {
			return i
		}
	}
	return -1
}

// finish signals every worker with a sentinel assignment and collects its
// final local counter (spec.md §4.4's termination step), reading replies
// from the same completions channel dispatch used so there is never more
// than one reader on a worker's FromWorker mailbox.
func finish(ctx context.Context, fleet *transport.Fleet, completions <-chan completion, workerCount int) ([]uint32, error) {
	counters := make([]uint32, workerCount)
	for w := 1; w <= workerCount; w++ {
		select {
		case fleet.Link(w).ToWorker <- transport.Sentinel{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	remaining := workerCount
	for remaining > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case comp := <-completions:
			fc, ok := comp.msg.(transport.FinalCount)
			if !ok {
				continue
			}
			counters[fc.Worker-1] = fc.Count
			remaining--
		}
	}
	return counters, nil
}

func copyRange(k []model.ClusterID, r transport.Range) []model.ClusterID {
	out := make([]model.ClusterID, r.Len())
	copy(out, k[r.Start:r.End])
	return out
}

func applyRange(k []model.ClusterID, r transport.Range, ids []model.ClusterID) {
	copy(k[r.Start:r.End], ids)
}

// prefilterPairs drops block pairs the coordinator can already tell will
// reject at the worker (spec.md §4.4: the coordinator applies the same
// monotone sortkey lower-bound test as C3 before ever dispatching a
// pair), skipping the distinct-block I/O of sending them out only to come
// straight back.
func prefilterPairs(points []model.Point, pairs []BlockPair, sortKey int, cutoff uint64) []BlockPair {
	kept := make([]BlockPair, 0, len(pairs))
	for _, p := range pairs {
		if p.IBlock != p.JBlock {
			last := points[p.II.End-1].Data[sortKey]
			first := points[p.JJ.Start].Data[sortKey]
			if distance.FastRejectBlockPair(last, first, cutoff) {
				continue
			}
		}
		kept = append(kept, p)
	}
	sort.Slice(kept, func(i, j int) bool {
		if kept[i].IBlock != kept[j].IBlock {
			return kept[i].IBlock < kept[j].IBlock
		}
		return kept[i].JBlock < kept[j].JBlock
	})
	return kept
}
