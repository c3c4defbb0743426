package cmd

import (
	"context"
	"os"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/addrmerge/internal/logger"
	"github.com/wegman-software/addrmerge/internal/pipeline"
)

var shapesCmd = &cobra.Command{
	Use:   "shapes <snapshot.osm|snapshot.osm.pbf>",
	Short: "Dump reconstructed building shapes as GeoJSON",
	Long: `Reconstruct the shape of every candidate way and relation of a snapshot
and write them as a GeoJSON feature collection. Objects whose geometry
cannot be built are left out and reported in the log.`,
	Args: cobra.ExactArgs(1),
	Run:  runShapes,
}

func init() {
	rootCmd.AddCommand(shapesCmd)
}

func runShapes(cmd *cobra.Command, args []string) {
	cfg.SnapshotFile = args[0]
	log := logger.Get()

	fc, err := pipeline.Shapes(context.Background(), cfg)
	if err != nil {
		exitWithError("failed to build shapes", err)
	}

	data, err := fc.MarshalJSON()
	if err != nil {
		exitWithError("failed to encode GeoJSON", err)
	}
	if err := os.WriteFile(cfg.OutputFile, data, 0644); err != nil {
		exitWithError("failed to write output", err)
	}
	log.Info("Shapes written", zap.String("output", cfg.OutputFile), zap.Int("features", len(fc.Features)))
}
