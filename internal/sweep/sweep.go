// Package sweep implements the cutoff sweep controller (spec.md §4.7,
// C7): it drives the coordinator/aggregator/executor pipeline over a
// monotonic sequence of cutoffs, adapts its step size, persists each
// pass's id vector to a sidecar, and seeds each pass from continuity
// with the last.
package sweep

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/sib-swiss/dclust/internal/coordinator"
	"github.com/sib-swiss/dclust/internal/executor"
	"github.com/sib-swiss/dclust/internal/genealogy"
	"github.com/sib-swiss/dclust/internal/ioformat"
	dclusterrors "github.com/sib-swiss/dclust/pkg/errors"
	"github.com/sib-swiss/dclust/pkg/model"
	"github.com/sib-swiss/dclust/pkg/utils"
)

var tracer = otel.Tracer("dclust")

// pctDeltaThreshold, pctMajorityThreshold, and pctSaturationThreshold are
// the step-doubling thresholds from spec.md §4.7, expressed as fractions
// of total events (0..1) to match ClusteringConfig.PctTarget's scale
// rather than the spec prose's 0..100 percentages.
const (
	pctDeltaThreshold      = 0.001
	pctMajorityThreshold   = 0.50
	pctSaturationThreshold = 0.99
)

// Config controls one sweep run.
type Config struct {
	SortKey            int
	ColumnCount        int
	FirstCutoff        float64
	LastCutoff         float64
	Step               float64
	PctTarget          float64
	MinEvents          int64
	BlockSize          int
	WorkerCount        int
	ContinueOnDecrease bool
	SidecarBasename    string
	RunID              string
}

// Validate checks the sweep bounds are sane before any pass runs
// (spec.md §7: configuration errors abort before worker dispatch).
func (c Config) Validate() error {
	if c.Step <= 0 {
		return dclusterrors.ErrInvalidCutoffRange
	}
	return nil
}

// PassOutcome is one completed pass's summary, raw (dense, per-pass)
// cluster ids aligned with the point array, and the sidecar it was
// persisted to — the genealogy tracker (C8) consumes this directly.
type PassOutcome struct {
	Summary     model.PassSummary
	RawIDs      []model.ClusterID
	SidecarPath string
}

// Run drives the full sweep and returns every pass's outcome in order,
// plus the genealogy tracker that recorded each pass's history rows
// (spec.md §4.8: "C7 records stats, C8 updates genealogy").
func Run(ctx context.Context, points []model.Point, cfg Config, logger utils.Logger) ([]PassOutcome, *genealogy.Tracker, error) {
	if logger == nil {
		logger = utils.NewDefaultLogger(utils.LevelInfo, nil)
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	tracker := genealogy.NewTracker(cfg.RunID)

	ascending := cfg.FirstCutoff <= cfg.LastCutoff
	direction := 1.0
	if !ascending {
		direction = -1.0
	}

	n := len(points)
	k := make([]model.ClusterID, n)

	var outcomes []PassOutcome
	var seedAbove uint32
	var historicalMax int
	var prevPct float64
	var prevRetained int
	step := cfg.Step
	cutoff := cfg.FirstCutoff

	for passOrdinal := 0; ; passOrdinal++ {
		if ascending && cutoff > cfg.LastCutoff {
			break
		}
		if !ascending && cutoff < cfg.LastCutoff {
			break
		}

		var renum executor.RenumberResult
		var rawClusterCount int
		var assignedCount int
		var pct float64

		passCtx, span := tracer.Start(ctx, "dclust.pass")
		err := func() error {
			defer span.End()

			squaredCutoff := model.SquaredCutoff(cutoff, cfg.ColumnCount)
			coordCfg := coordinator.Config{
				SortKey:     cfg.SortKey,
				Cutoff:      squaredCutoff,
				WorkerCount: cfg.WorkerCount,
				BlockSize:   cfg.BlockSize,
				Worker1Seed: seedAbove,
			}

			result, err := coordinator.RunPass(passCtx, points, k, coordCfg, logger)
			if err != nil {
				span.SetStatus(codes.Error, err.Error())
				return err
			}
			if result.Overflow {
				logger.Warn("pass %d at cutoff %g hit merge-request capacity; result is conservative", passOrdinal, cutoff)
			}

			ft := executor.ApplyMergeRequests(k, result.MergeRequests)
			renum = executor.Renumber(k, cfg.MinEvents)
			executor.ApplyDense(k, renum)
			tracker.RecordPass(passOrdinal, cutoff, renum, ft, int(seedAbove))

			assignedCount = countAssigned(k)
			pct = float64(assignedCount) / float64(n)
			rawClusterCount = renum.RetainedCount + renum.SmallCount

			span.SetAttributes(
				attribute.Float64("cutoff", cutoff),
				attribute.Int("pass_ordinal", passOrdinal),
				attribute.Int("retained_count", renum.RetainedCount),
				attribute.Float64("pct_assigned", pct),
			)
			return nil
		}()
		if err != nil {
			return outcomes, tracker, err
		}

		sidecarPath := fmt.Sprintf("%s-inprogress-%d", cfg.SidecarBasename, passOrdinal)
		rawIDs := append([]model.ClusterID(nil), k...)
		if err := ioformat.WriteSidecar(sidecarPath, rawIDs); err != nil {
			return outcomes, tracker, err
		}

		summary := model.PassSummary{
			PassOrdinal:   passOrdinal,
			Cutoff:        cutoff,
			RawClusterCnt: rawClusterCount,
			RetainedCnt:   renum.RetainedCount,
			AssignedCount: int64(assignedCount),
			TotalCount:    int64(n),
			PctAssigned:   pct,
			SidecarPath:   sidecarPath,
		}
		outcomes = append(outcomes, PassOutcome{Summary: summary, RawIDs: rawIDs, SidecarPath: sidecarPath})

		stop := shouldStop(ascending, passOrdinal, rawClusterCount, renum.RetainedCount, pct, cfg, historicalMax)
		if renum.RetainedCount > historicalMax {
			historicalMax = renum.RetainedCount
		}
		if stop {
			break
		}

		if ascending && passOrdinal > 0 {
			delta := pct - prevPct
			if delta < 0 {
				delta = -delta
			}
			saturating := (renum.RetainedCount == 1 && pct > pctMajorityThreshold) ||
				(renum.RetainedCount == prevRetained && pct >= pctSaturationThreshold)
			if delta <= pctDeltaThreshold && saturating {
				step *= 2
			}
		}
		prevPct = pct
		prevRetained = renum.RetainedCount

		seedAbove = uint32(renum.RetainedCount)
		reprefixToWorkerOne(k)
		cutoff += direction * step
	}

	if len(outcomes) > 0 {
		last := &outcomes[len(outcomes)-1]
		finalPath := fmt.Sprintf("%s-%g", cfg.SidecarBasename, last.Summary.Cutoff)
		if err := ioformat.RenameSidecar(last.SidecarPath, finalPath); err != nil {
			return outcomes, tracker, err
		}
		last.SidecarPath = finalPath
		last.Summary.SidecarPath = finalPath
	}

	return outcomes, tracker, nil
}

// shouldStop implements the three stop rules of spec.md §4.7.
func shouldStop(ascending bool, passOrdinal, rawClusterCount, retainedCount int, pct float64, cfg Config, historicalMax int) bool {
	if ascending {
		if passOrdinal > 0 && rawClusterCount == 1 && retainedCount >= 1 {
			return true
		}
		if pct >= cfg.PctTarget {
			return true
		}
		if passOrdinal > 0 && retainedCount < historicalMax && !cfg.ContinueOnDecrease {
			return true
		}
		return false
	}
	if retainedCount == 0 {
		return true
	}
	if passOrdinal > 0 && retainedCount < historicalMax && !cfg.ContinueOnDecrease {
		return true
	}
	return false
}

// reprefixToWorkerOne re-prefixes every assigned id with worker ordinal 1
// (spec.md §4.7's continuity seeding: "id += 4_000_000") so the next
// pass's worker 1 recognizes them as already-minted local ids rather than
// canonical ones from a different numbering space.
func reprefixToWorkerOne(k []model.ClusterID) {
	for i, id := range k {
		if id.IsAssigned() {
			k[i] = model.NewLocalClusterID(1, uint32(id))
		}
	}
}

func countAssigned(k []model.ClusterID) int {
	count := 0
	for _, id := range k {
		if id.IsAssigned() {
			count++
		}
	}
	return count
}
