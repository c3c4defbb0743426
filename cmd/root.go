package cmd

import (
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/spf13/cobra"
	"github.com/wegman-software/addrmerge/internal/config"
	"github.com/wegman-software/addrmerge/internal/logger"
	"github.com/wegman-software/addrmerge/internal/style"
)

var (
	cfg             = config.DefaultConfig()
	verbose         bool
	logFile         string
	configFile      string
	filterFile      string
	workers         int
	metricsInterval time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "addrmerge",
	Short: "Merge address imports into OpenStreetMap data",
	Long: `addrmerge conflates a batch of official address points with the
addresses already mapped in OpenStreetMap and produces a changeset for
review in JOSM or upload as osmChange.

Features:
  - Exact, containment and proximity matching of import records
  - Multipolygon reconstruction for buildings mapped as relations
  - Folding of freestanding address points into their buildings
  - Self-contained output: every referenced node and way is included`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cfg.Verbose = verbose
		cfg.LogFile = logFile
		cfg.MetricsInterval = metricsInterval

		// Initialize logger with optional file output
		if logFile != "" {
			logger.InitWithFile(verbose, logFile)
		} else {
			logger.Init(verbose)
		}

		if configFile != "" {
			if err := cfg.LoadFile(configFile); err != nil {
				exitWithError("failed to load config", err)
			}
		}
		// explicit flags win over the config file
		if cmd.Flags().Changed("workers") || configFile == "" {
			cfg.Workers = workers
		}
		if filterFile != "" {
			f, err := style.LoadConfig(filterFile)
			if err != nil {
				exitWithError("failed to load filter", err)
			}
			cfg.Filter = f
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().IntVarP(&workers, "workers", "j", cfg.Workers, "Number of parallel workers")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "YAML config file (thresholds, filter, mapping)")
	rootCmd.PersistentFlags().StringVar(&filterFile, "filter", "", "YAML file selecting which map objects are candidates")
	rootCmd.PersistentFlags().StringVarP(&cfg.OutputFile, "output", "o", cfg.OutputFile, "Output file")
	rootCmd.PersistentFlags().StringVarP(&cfg.Format, "format", "f", cfg.Format, "Output format: josm or osc")

	// Logging and metrics flags
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Path to log file for persistent logging (JSON format)")
	rootCmd.PersistentFlags().DurationVar(&metricsInterval, "metrics-interval", 0, "Interval for system metrics logging (e.g., 10s, 1m); 0 disables")
}

func exitWithError(msg string, err error) {
	log := logger.Get()
	if err != nil {
		log.Error(msg, zap.Error(err))
	} else {
		log.Error(msg)
	}
	os.Exit(1)
}
