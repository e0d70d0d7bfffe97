package cmd

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/sib-swiss/dclust/internal/service"
	"github.com/sib-swiss/dclust/pkg/config"
	"github.com/sib-swiss/dclust/pkg/telemetry"
)

var (
	runInput              string
	runLeftoverInput      string
	runOutputPrefix       string
	runFirstCutoff        float64
	runLastCutoff         float64
	runStep               float64
	runSortKey            int
	runMinEventsPct       float64
	runMinEventsCount     int64
	runPctTarget          float64
	runBlockSize          int
	runWorkers            int
	runContinueOnDecrease bool
	runEnableUnassigned   bool
	runEnableLeftover     bool
	runPrintStatus        bool
	runKeepIntermediate   bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a full cutoff sweep over a .selected input file",
	Long: `run loads a .selected point file, drives the cutoff sweep (C7) end to
end, selects the retained clusters from the resulting genealogy (C8),
optionally reassigns unassigned and leftover points (C9), and writes the
.assigned/.unassigned/.leftover.clusters outputs.`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	flags := runCmd.Flags()
	flags.StringVarP(&runInput, "input", "i", "", "Path to the .selected input file (required)")
	flags.StringVarP(&runOutputPrefix, "output", "o", "", "Output path prefix for .assigned/.unassigned/.leftover.clusters (required)")
	flags.Float64VarP(&runFirstCutoff, "first-cutoff", "f", 0, "First (or only) sweep cutoff distance d0 (required)")
	flags.Float64VarP(&runLastCutoff, "last-cutoff", "l", 0, "Last sweep cutoff distance; defaults to --first-cutoff for a single pass")
	flags.Float64VarP(&runStep, "step", "s", 0, "Cutoff step size between passes")
	flags.Float64VarP(&runMinEventsPct, "pct-keep", "k", 0, "Minimum cluster size as a percentage of total points; overrides --min-events when set")
	flags.Int64VarP(&runMinEventsCount, "min-events", "n", 1, "Minimum cluster size as an absolute point count")
	flags.Float64VarP(&runPctTarget, "pct-target", "p", 0.95, "Target fraction of points assigned before the sweep stops")
	flags.IntVarP(&runBlockSize, "block-size", "b", 2048, "Block size for block-pair dispatch across workers")
	flags.BoolVarP(&runContinueOnDecrease, "continue-on-decrease", "g", false, "Keep sweeping even if a pass's retained cluster count falls below the highest retained count of earlier passes")
	flags.BoolVarP(&runEnableUnassigned, "assign-unassigned", "U", false, "Run the final unassigned-reassignment pass")
	flags.BoolVarP(&runEnableLeftover, "assign-leftover", "L", false, "Run the leftover-reassignment pass (requires --leftover-input)")
	flags.BoolVarP(&runPrintStatus, "print-cluster-status", "M", false, "Log each pass's retained-cluster summary")
	flags.IntVar(&runWorkers, "workers", 4, "Number of parallel workers")
	flags.StringVar(&runLeftoverInput, "leftover-input", "", "Path to a leftover .selected file to reassign against the final clustering")
	flags.IntVar(&runSortKey, "sort-key", 0, "Stored in the run configuration only; the sweep uses the input file header's sort key and does not re-sort the points")
	flags.BoolVar(&runKeepIntermediate, "keep-intermediate", false, "Keep every pass's intermediate sidecar instead of deleting all but the final pass's")

	_ = runCmd.MarkFlagRequired("input")
	_ = runCmd.MarkFlagRequired("output")
	_ = runCmd.MarkFlagRequired("first-cutoff")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	cfg.Clustering.SortKey = runSortKey
	cfg.Clustering.FirstCutoff = runFirstCutoff
	cfg.Clustering.LastCutoff = runLastCutoff
	if cfg.Clustering.LastCutoff == 0 {
		cfg.Clustering.LastCutoff = runFirstCutoff
	}
	cfg.Clustering.Step = runStep
	cfg.Clustering.PctTarget = runPctTarget
	cfg.Clustering.MinEvents = runMinEventsCount
	cfg.Clustering.MinEventsPct = runMinEventsPct
	cfg.Clustering.BlockSize = runBlockSize
	cfg.Clustering.WorkerCount = runWorkers
	cfg.Clustering.ContinueOnDecrease = runContinueOnDecrease

	shutdownTelemetry, err := telemetry.Init(cmd.Context())
	if err != nil {
		GetLogger().Warn("telemetry init failed, continuing without tracing: %v", err)
	}
	defer shutdownTelemetry(cmd.Context())

	svc, err := service.New(cfg, GetLogger())
	if err != nil {
		return fmt.Errorf("creating service: %w", err)
	}
	if err := svc.Initialize(cmd.Context()); err != nil {
		return fmt.Errorf("initializing service: %w", err)
	}
	defer svc.Stop()

	stats, err := svc.Run(cmd.Context(), service.RunOptions{
		InputPath:            runInput,
		LeftoverPath:         runLeftoverInput,
		OutputPrefix:         runOutputPrefix,
		RunID:                uuid.NewString(),
		EnableUnassignedPass: runEnableUnassigned,
		EnableLeftoverPass:   runEnableLeftover,
		PrintClusterStatus:   runPrintStatus,
		KeepIntermediate:     runKeepIntermediate,
	})
	if err != nil {
		return fmt.Errorf("run failed: %w", err)
	}

	logger := GetLogger()
	logger.Info("passes=%d retained_clusters=%d assigned=%d/%d", stats.Passes, stats.RetainedClusters, stats.Assigned, stats.TotalPoints)
	if runEnableUnassigned {
		logger.Info("unassigned pass: reassigned=%d ambiguous=%d", stats.ReassignedFromUnassigned, stats.AmbiguousUnassigned)
	}
	if runEnableLeftover && runLeftoverInput != "" {
		logger.Info("leftover pass: reassigned=%d ambiguous=%d", stats.ReassignedFromLeftover, stats.AmbiguousLeftover)
	}
	return nil
}
