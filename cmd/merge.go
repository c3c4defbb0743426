package cmd

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/addrmerge/internal/config"
	"github.com/wegman-software/addrmerge/internal/logger"
	"github.com/wegman-software/addrmerge/internal/pipeline"
)

var bboxStr string

var mergeCmd = &cobra.Command{
	Use:   "merge <snapshot.osm|snapshot.osm.pbf> <import.json>",
	Short: "Merge an address import into map data",
	Long: `Merge an address import batch into an OpenStreetMap snapshot:

  1. Normalize import street and city names
  2. Take street spellings from the map where the same address is close by
  3. Match every record: same address, containing building, same
     housenumber nearby, or create a new point
  4. Fold freestanding address points into their buildings
  5. With a boundary, flag mapped addresses missing from the import
  6. Write the changed objects and everything they reference`,
	Args: cobra.ExactArgs(2),
	Run:  runMerge,
}

func init() {
	rootCmd.AddCommand(mergeCmd)

	mergeCmd.Flags().StringVar(&cfg.BoundaryFile, "boundary", "", "Administrative boundary (GeoJSON or .osm)")
	mergeCmd.Flags().StringVarP(&bboxStr, "bbox", "b", "", "Only import records inside minlon,minlat,maxlon,maxlat")
	mergeCmd.Flags().BoolVar(&cfg.FullMode, "full", false, "Write every object, not only the changed ones")
	mergeCmd.Flags().StringVar(&cfg.MappingFile, "mapping", "", "YAML street/city mapping table")
	mergeCmd.Flags().StringVar(&cfg.LuaScript, "lua-normalizer", "", "Lua script defining map_street and map_city")
	mergeCmd.Flags().BoolVar(&cfg.NoMapping, "no-mapping", false, "Use import names as they are")
}

func runMerge(cmd *cobra.Command, args []string) {
	cfg.SnapshotFile = args[0]
	cfg.ImportFile = args[1]
	log := logger.Get()

	if bboxStr != "" {
		bbox, err := config.ParseBBox(bboxStr)
		if err != nil {
			exitWithError("invalid bbox", err)
		}
		cfg.BBox = bbox
	}

	if err := cfg.Validate(); err != nil {
		exitWithError("invalid configuration", err)
	}

	logFields := []zap.Field{
		zap.String("snapshot", cfg.SnapshotFile),
		zap.String("import", cfg.ImportFile),
		zap.String("output", cfg.OutputFile),
		zap.String("format", cfg.Format),
		zap.Int("workers", cfg.Workers),
	}
	if cfg.BoundaryFile != "" {
		logFields = append(logFields, zap.String("boundary", cfg.BoundaryFile))
	}
	if cfg.BBox != nil && cfg.BBox.IsSet {
		logFields = append(logFields, zap.String("bbox", cfg.BBox.String()))
	}
	if cfg.FullMode {
		logFields = append(logFields, zap.Bool("full", true))
	}
	log.Info("Starting address merge", logFields...)

	coordinator, err := pipeline.NewCoordinator(cfg)
	if err != nil {
		exitWithError("failed to create pipeline", err)
	}
	defer coordinator.Close()

	totalStart := time.Now()
	res, err := coordinator.Run(context.Background())
	if err != nil {
		exitWithError("merge failed", err)
	}

	s := res.Document.Stats()
	log.Info("Merge finished",
		zap.Duration("total_time", time.Since(totalStart).Round(time.Millisecond)),
		zap.Int("created", s.Created),
		zap.Int("modified", s.Modified),
		zap.Int("deleted", s.Deleted),
		zap.Int64("duplicates", res.Merge.Duplicates),
		zap.Int64("not_existing", res.Merge.NotExisting),
	)
}
