package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/sib-swiss/dclust/pkg/utils"
)

var (
	// Global flags
	verbose    bool
	configPath string
	logger     utils.Logger
)

// rootCmd represents the base command.
var rootCmd = &cobra.Command{
	Use:   "dclust",
	Short: "Unbiased hierarchical density-based clustering over large point sets",
	Long: `dclust clusters very large multi-dimensional integer-quantized point
sets by sweeping a distance cutoff across a distributed parallel
neighbor-joining engine, tracking each cluster's genealogy across passes,
and selecting a non-overlapping retained set from that history.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logLevel := utils.LevelInfo
		if verbose {
			logLevel = utils.LevelDebug
		}
		logger = utils.NewDefaultLogger(logLevel, os.Stdout)
		return nil
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a config file (default: ./config.yaml, ./configs/config.yaml, /etc/dclust/config.yaml)")

	binName := BinName()
	rootCmd.Example = `  # Cluster a .selected input file, sweeping d=2..20 in steps of 2
  ` + binName + ` run -i ./run1.selected -f 2 -l 20 -s 2 -o ./run1

  # Also reassign unassigned points at the end, and keep sweeping even if
  # a pass's retained cluster count dips below the best seen so far
  ` + binName + ` run -i ./run1.selected -f 2 -l 20 -s 2 -o ./run1 -U -g

  # Log a per-pass cluster-size summary while the sweep runs
  ` + binName + ` run -i ./run1.selected -f 2 -l 20 -s 2 -o ./run1 -M

  # Inspect a pass sidecar written during a run
  ` + binName + ` inspect-sidecar ./run1.sidecar-6 --rows 100000`
}

// GetLogger returns the configured logger.
func GetLogger() utils.Logger {
	return logger
}

// BinName returns the base name of the current executable.
func BinName() string {
	return filepath.Base(os.Args[0])
}
