package commands

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/r-ford/enso-api/internal/adapter/store/catalog"
	"github.com/r-ford/enso-api/internal/adapter/store/cmip"
	"github.com/r-ford/enso-api/internal/config"
	"github.com/r-ford/enso-api/internal/logging"
	"github.com/r-ford/enso-api/internal/usecase"
)

var (
	// Version is set at build time via ldflags.
	Version = "dev"

	verbose     bool
	catalogPath string
	cfg         *config.Config
)

var rootCmd = &cobra.Command{
	Use:     "ensoctl",
	Short:   "ensoctl computes ENSO climate indices from CMIP model output",
	Version: Version,
	Long: `A command line companion to the ENSO index API server. It runs the same
index computation locally: pick a dataset from the catalog (or name the
NetCDF files directly), remove the monthly climatology over a region,
smooth, normalize, and print the annotated series.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := "warn"
		if verbose {
			level = "debug"
		}
		logging.Init(level, "")

		var err error
		cfg, err = config.Load()
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to load configuration")
		}
		if catalogPath != "" {
			cfg.CatalogPath = catalogPath
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&catalogPath, "catalog", "", "dataset catalog CSV (overrides CATALOG_PATH)")
}

// newUseCase builds an offline compute use case. The catalog is read
// once; a one-shot CLI run has no use for the file watcher.
func newUseCase() (*usecase.ComputeUseCase, error) {
	cat, err := catalog.OpenStatic(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}
	return usecase.NewComputeUseCase(cat, cmip.NewLoader(), cfg.Region, cfg.DefaultThreshold, nil), nil
}
