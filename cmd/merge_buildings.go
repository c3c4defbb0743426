package cmd

import (
	"context"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/addrmerge/internal/logger"
	"github.com/wegman-software/addrmerge/internal/pipeline"
)

var mergeBuildingsCmd = &cobra.Command{
	Use:   "merge-buildings <data.osm>",
	Short: "Fold address points into the buildings containing them",
	Long: `Move the tags of freestanding address points onto the building that
contains them and delete the points. Buildings are searched with a growing
buffer (0, 2, 5, 10 m by default); points inside one building with
different addresses are left for review.`,
	Args: cobra.ExactArgs(1),
	Run:  runMergeBuildings,
}

func init() {
	rootCmd.AddCommand(mergeBuildingsCmd)

	mergeBuildingsCmd.Flags().StringVar(&cfg.BoundaryFile, "boundary", "", "Only merge points inside this boundary")
}

func runMergeBuildings(cmd *cobra.Command, args []string) {
	cfg.SnapshotFile = args[0]
	log := logger.Get()

	if cfg.Workers < 1 {
		exitWithError("workers must be at least 1", nil)
	}
	if err := cfg.Merge.Validate(); err != nil {
		exitWithError("invalid configuration", err)
	}

	coordinator, err := pipeline.NewCoordinator(cfg)
	if err != nil {
		exitWithError("failed to create pipeline", err)
	}
	defer coordinator.Close()

	res, err := coordinator.MergeBuildings(context.Background())
	if err != nil {
		exitWithError("building merge failed", err)
	}
	log.Info("Building merge finished",
		zap.String("output", cfg.OutputFile),
		zap.Int64("merged", res.Merge.Merged),
		zap.Int("entities", res.Document.Len()))
}
