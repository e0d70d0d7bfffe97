// Package service orchestrates one end-to-end dclust run: load input,
// drive the cutoff sweep, select retained clusters from the genealogy,
// reassign unassigned/leftover points, and write the output files
// (spec.md §1, §6).
package service

import (
	"context"
	"fmt"
	"os"

	"github.com/sib-swiss/dclust/internal/genealogy"
	"github.com/sib-swiss/dclust/internal/genealogy/repository"
	"github.com/sib-swiss/dclust/internal/ioformat"
	"github.com/sib-swiss/dclust/internal/reassign"
	"github.com/sib-swiss/dclust/internal/storage"
	"github.com/sib-swiss/dclust/internal/sweep"
	"github.com/sib-swiss/dclust/pkg/config"
	dclusterrors "github.com/sib-swiss/dclust/pkg/errors"
	"github.com/sib-swiss/dclust/pkg/model"
	"github.com/sib-swiss/dclust/pkg/utils"
	"github.com/sib-swiss/dclust/pkg/writer"
)

// Service wires together one run's dependencies: configuration, logger,
// genealogy persistence, and artifact storage.
type Service struct {
	config *config.Config
	logger utils.Logger

	repos   *repository.Repositories
	storage storage.Storage

	running bool
}

// New creates a new Service instance.
func New(cfg *config.Config, logger utils.Logger) (*Service, error) {
	if logger == nil {
		logger = utils.NewDefaultLogger(utils.LevelInfo, nil)
	}
	return &Service{config: cfg, logger: logger}, nil
}

// Initialize opens the genealogy database and artifact storage backend.
func (s *Service) Initialize(ctx context.Context) error {
	s.logger.Info("connecting to genealogy store (%s)...", s.config.Database.Type)
	gormDB, err := repository.NewGormDB(&s.config.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize genealogy store: %w", err)
	}
	s.repos = repository.NewRepositories(gormDB)

	s.logger.Info("initializing storage (%s)...", s.config.Storage.Type)
	store, err := storage.NewStorage(&s.config.Storage)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	s.storage = store

	return nil
}

// RunOptions controls one clustering run (spec.md §6's CLI surface, as
// resolved against dclust.c's actual getopt handling — see DESIGN.md).
type RunOptions struct {
	InputPath    string // -i
	LeftoverPath string // supplemental: a second .selected file of leftover points, not part of spec.md's original flag surface
	OutputPrefix string // -o

	RunID string

	EnableUnassignedPass bool // -U: off by default in dclust.c (assignUnassigned starts 0)
	EnableLeftoverPass   bool // -L: off by default in dclust.c (assignLeftover starts 0)
	PrintClusterStatus   bool // -M: dclust.c's printClusterStatus, logs each pass's retained-cluster summary
	KeepIntermediate     bool // supplemental: keep every pass's sidecar instead of deleting all but the final pass's

	UploadArtifacts bool
}

// RunStats summarizes one completed run for callers (CLI, tests) that
// want a machine-readable result without re-reading the output files.
type RunStats struct {
	Passes                   int
	RetainedClusters         int
	Assigned                 int64
	TotalPoints              int64
	ReassignedFromUnassigned int
	AmbiguousUnassigned      int
	ReassignedFromLeftover   int
	AmbiguousLeftover        int
}

// Run executes one full clustering pipeline: load, sweep, select,
// reassign, persist genealogy, write outputs.
func (s *Service) Run(ctx context.Context, opts RunOptions) (RunStats, error) {
	if opts.InputPath == "" {
		return RunStats{}, dclusterrors.ErrConfigError
	}

	f, err := os.Open(opts.InputPath)
	if err != nil {
		return RunStats{}, dclusterrors.Wrap(dclusterrors.CodeConfiguration, "opening input file", err)
	}
	header, points, err := ioformat.ReadSelected(f)
	f.Close()
	if err != nil {
		return RunStats{}, err
	}
	s.logger.Info("loaded %d points, %d columns, sort_key=%d", header.RowCount, header.ColCount, header.SortKey)

	cc := s.config.Clustering
	minEvents := cc.MinEvents
	if cc.MinEventsPct > 0 {
		minEvents = int64(float64(header.RowCount) / 100.0 * cc.MinEventsPct)
	}
	sweepCfg := sweep.Config{
		SortKey:            header.SortKey,
		ColumnCount:        header.ColCount,
		FirstCutoff:        cc.FirstCutoff,
		LastCutoff:         cc.LastCutoff,
		Step:               cc.Step,
		PctTarget:          cc.PctTarget,
		MinEvents:          minEvents,
		BlockSize:          cc.BlockSize,
		WorkerCount:        cc.WorkerCount,
		ContinueOnDecrease: cc.ContinueOnDecrease,
		SidecarBasename:    opts.OutputPrefix + ".sidecar",
		RunID:              opts.RunID,
	}

	outcomes, tracker, err := sweep.Run(ctx, points, sweepCfg, s.logger)
	if err != nil {
		return RunStats{}, fmt.Errorf("sweep failed: %w", err)
	}
	if len(outcomes) == 0 {
		return RunStats{}, dclusterrors.New(dclusterrors.CodeRuntime, "sweep produced no passes")
	}
	if opts.PrintClusterStatus {
		for _, o := range outcomes {
			s.logger.Info("pass %d: cutoff=%.3f raw_clusters=%d retained=%d assigned=%d/%d (%.1f%%)",
				o.Summary.PassOrdinal, o.Summary.Cutoff, o.Summary.RawClusterCnt, o.Summary.RetainedCnt,
				o.Summary.AssignedCount, o.Summary.TotalCount, o.Summary.PctAssigned*100)
		}
	}

	if s.repos != nil {
		for _, o := range outcomes {
			if err := s.repos.History.SavePassSummary(ctx, opts.RunID, o.Summary); err != nil {
				return RunStats{}, fmt.Errorf("persisting pass summary: %w", err)
			}
		}
	}

	rows := tracker.Select()
	if s.repos != nil {
		if err := s.repos.History.SaveHistory(ctx, rows); err != nil {
			return RunStats{}, fmt.Errorf("persisting genealogy: %w", err)
		}
	}

	sidecarByPass := make(map[int]string, len(outcomes))
	for _, o := range outcomes {
		sidecarByPass[o.Summary.PassOrdinal] = o.SidecarPath
	}
	readSidecar := func(pass int) ([]model.ClusterID, error) {
		return ioformat.ReadSidecar(sidecarByPass[pass], len(points))
	}

	finalIDs, err := genealogy.BuildOutput(rows, len(points), readSidecar)
	if err != nil {
		return RunStats{}, fmt.Errorf("compacting retained output: %w", err)
	}

	lastOutcome := outcomes[len(outcomes)-1]
	stats := RunStats{
		Passes:           len(outcomes),
		RetainedClusters: lastOutcome.Summary.RetainedCnt,
		TotalPoints:      int64(len(points)),
	}

	if opts.EnableUnassignedPass {
		r := reassign.Unassigned(ctx, points, finalIDs, cc.WorkerCount)
		stats.ReassignedFromUnassigned = r.Reassigned
		stats.AmbiguousUnassigned = r.Ambiguous
	}

	var assignedCount int64
	for _, id := range finalIDs {
		if id.IsAssigned() {
			assignedCount++
		}
	}
	stats.Assigned = assignedCount

	if opts.EnableLeftoverPass && opts.LeftoverPath != "" {
		if err := s.runLeftoverPass(ctx, opts, header, points, finalIDs, cc, &stats); err != nil {
			return stats, err
		}
	}

	maxClusterID := 0
	for _, id := range finalIDs {
		if int(id) > maxClusterID {
			maxClusterID = int(id)
		}
	}
	if err := ioformat.WriteAssigned(opts.OutputPrefix+".assigned", points, finalIDs, header.ColCount, maxClusterID, header.ColumnHeader); err != nil {
		return stats, fmt.Errorf("writing .assigned: %w", err)
	}
	if err := ioformat.WriteUnassigned(opts.OutputPrefix+".unassigned", points, finalIDs, header.ColCount, header.ColumnHeader); err != nil {
		return stats, fmt.Errorf("writing .unassigned: %w", err)
	}

	if !opts.KeepIntermediate {
		s.cleanupIntermediateSidecars(rows, sidecarByPass)
	}

	summaryWriter := writer.NewPrettyJSONWriter[RunStats]()
	if err := summaryWriter.WriteToFile(stats, opts.OutputPrefix+".summary.json"); err != nil {
		s.logger.Warn("writing run summary: %v", err)
	}

	if opts.UploadArtifacts && s.storage != nil {
		s.uploadArtifacts(ctx, opts)
	}

	return stats, nil
}

// runLeftoverPass reassigns a separately loaded leftover point set
// against the run's final assigned points, within T_ext, and writes the
// .leftover.clusters CSV (spec.md §4.9, §6).
func (s *Service) runLeftoverPass(ctx context.Context, opts RunOptions, header ioformat.SelectedHeader, points []model.Point, finalIDs []model.ClusterID, cc config.ClusteringConfig, stats *RunStats) error {
	lf, err := os.Open(opts.LeftoverPath)
	if err != nil {
		return dclusterrors.Wrap(dclusterrors.CodeConfiguration, "opening leftover file", err)
	}
	_, leftoverPoints, err := ioformat.ReadSelected(lf)
	lf.Close()
	if err != nil {
		return fmt.Errorf("reading leftover file: %w", err)
	}

	tExt := reassign.ExtendedCutoff(cc.LastCutoff, cc.Step, header.ColCount)
	leftoverIDs, r := reassign.Leftover(ctx, points, finalIDs, leftoverPoints, tExt, cc.WorkerCount)
	stats.ReassignedFromLeftover = r.Reassigned
	stats.AmbiguousLeftover = r.Ambiguous

	records := make([]ioformat.LeftoverRecord, len(leftoverPoints))
	for i, p := range leftoverPoints {
		records[i] = ioformat.LeftoverRecord{NameIndex: p.NameIndex, ClusterID: leftoverIDs[i]}
	}
	if err := ioformat.WriteLeftoverClusters(opts.OutputPrefix+".leftover.clusters", records); err != nil {
		return fmt.Errorf("writing .leftover.clusters: %w", err)
	}
	return nil
}

// cleanupIntermediateSidecars removes every pass's sidecar except the
// final pass's, which ioformat.RenameSidecar already moved to its
// cutoff-named path inside sweep.Run. Non-fatal: a stray sidecar left on
// disk doesn't affect correctness, only disk usage, so failures are
// logged and the run still succeeds.
func (s *Service) cleanupIntermediateSidecars(rows []model.ClusterHistory, sidecarByPass map[int]string) {
	lastPass := -1
	for pass := range sidecarByPass {
		if pass > lastPass {
			lastPass = pass
		}
	}
	for pass, path := range sidecarByPass {
		if pass == lastPass {
			continue
		}
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove intermediate sidecar %s: %v", path, err)
		}
	}
}

func (s *Service) uploadArtifacts(ctx context.Context, opts RunOptions) {
	suffixes := []string{".assigned", ".unassigned", ".leftover.clusters"}
	for _, suffix := range suffixes {
		path := opts.OutputPrefix + suffix
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := s.storage.UploadFile(ctx, opts.RunID+suffix, path); err != nil {
			s.logger.Warn("failed to upload %s: %v", path, err)
		}
	}
}

// Stop closes the genealogy database connection.
func (s *Service) Stop() error {
	if s.repos != nil {
		if err := s.repos.Close(); err != nil {
			s.logger.Error("failed to close genealogy store: %v", err)
		}
	}
	s.running = false
	s.logger.Info("service stopped")
	return nil
}

// IsRunning returns whether a run is currently in progress.
func (s *Service) IsRunning() bool {
	return s.running
}

// HealthCheck verifies the genealogy store connection is alive.
func (s *Service) HealthCheck(ctx context.Context) error {
	if s.repos != nil {
		if err := s.repos.HealthCheck(ctx); err != nil {
			return fmt.Errorf("genealogy store health check failed: %w", err)
		}
	}
	return nil
}
