package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/sib-swiss/dclust/internal/ioformat"
	"github.com/sib-swiss/dclust/pkg/model"
)

var inspectSidecarRows int

var inspectSidecarCmd = &cobra.Command{
	Use:   "inspect-sidecar <path>",
	Short: "Dump a per-pass cluster-id sidecar's cluster size histogram",
	Long: `inspect-sidecar reads back a raw per-pass id sidecar written during a
run (spec.md §6) and prints the point count per cluster id, largest
first, for debugging a pass without re-running the sweep.`,
	Args: cobra.ExactArgs(1),
	RunE: runInspectSidecar,
}

func init() {
	rootCmd.AddCommand(inspectSidecarCmd)
	inspectSidecarCmd.Flags().IntVar(&inspectSidecarRows, "rows", 0, "Number of rows the sidecar was written with (required)")
	_ = inspectSidecarCmd.MarkFlagRequired("rows")
}

func runInspectSidecar(cmd *cobra.Command, args []string) error {
	ids, err := ioformat.ReadSidecar(args[0], inspectSidecarRows)
	if err != nil {
		return fmt.Errorf("reading sidecar: %w", err)
	}

	counts := make(map[model.ClusterID]int)
	unassigned := 0
	for _, id := range ids {
		if !id.IsAssigned() {
			unassigned++
			continue
		}
		counts[id]++
	}

	clusters := make([]model.ClusterID, 0, len(counts))
	for id := range counts {
		clusters = append(clusters, id)
	}
	sort.Slice(clusters, func(i, j int) bool { return counts[clusters[i]] > counts[clusters[j]] })

	fmt.Printf("%s: %d rows, %d clusters, %d unassigned\n", args[0], len(ids), len(clusters), unassigned)
	for _, id := range clusters {
		fmt.Printf("  cluster %d (worker %d, local %d): %d points\n", id, id.WorkerOrdinal(), id.LocalCounter(), counts[id])
	}
	return nil
}
