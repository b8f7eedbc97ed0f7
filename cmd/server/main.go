// Package main provides the ENSO index API HTTP server.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/r-ford/enso-api/internal/adapter/store/catalog"
	"github.com/r-ford/enso-api/internal/adapter/store/cmip"
	"github.com/r-ford/enso-api/internal/config"
	"github.com/r-ford/enso-api/internal/domain"
	httpHandler "github.com/r-ford/enso-api/internal/http"
	"github.com/r-ford/enso-api/internal/logging"
	"github.com/r-ford/enso-api/internal/observability"
	"github.com/r-ford/enso-api/internal/usecase"
)

const version = "0.1.0"

func main() {
	// Parse command-line flags.
	showHelp := flag.Bool("help", false, "Show usage information")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showHelp {
		printUsage()
		return
	}

	if *showVersion {
		fmt.Printf("enso-api version %s\n", version)
		return
	}

	// Load configuration from environment.
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	logging.Init(cfg.LogLevel, cfg.LogDir)

	log.Info().Msg("Starting ENSO index API server...")
	log.Info().Str("port", cfg.Port).Msg("Configuration loaded")
	log.Info().Str("catalog", cfg.CatalogPath).Msg("Dataset catalog")

	metrics := observability.NewMetrics()

	// Open the dataset catalog. The catalog watches its file and
	// reloads entries when it changes.
	cat, err := catalog.Open(cfg.CatalogPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.CatalogPath).Msg("Failed to open dataset catalog")
	}
	defer cat.Close()
	log.Info().Int("entries", cat.Len()).Msg("Catalog loaded")

	loader := cmip.NewLoader()

	// Initialize use case.
	computeUC := usecase.NewComputeUseCase(cat, loader, cfg.Region, cfg.DefaultThreshold, metrics)

	// Regions advertised by /v1/regions: built-in presets plus any
	// configured extras.
	regions := domain.AllRegions()
	for _, r := range cfg.ExtraRegions {
		regions = append(regions, r)
	}

	// Setup router.
	router := httpHandler.SetupRouter(computeUC, regions, cfg.CORSAllowedOrigins, metrics)

	// Start server.
	addr := fmt.Sprintf(":%s", cfg.Port)
	log.Info().Str("addr", addr).Msg("Server listening")
	log.Info().Msg("API endpoints:")
	log.Info().Msg("  - GET /v1/enso/index")
	log.Info().Msg("  - GET /v1/regions")
	log.Info().Msg("  - GET /v1/catalog")

	if err := router.Run(addr); err != nil {
		log.Fatal().Err(err).Msg("Failed to start server")
	}
}

// printUsage prints usage information.
func printUsage() {
	fmt.Printf("ENSO Index API Server v%s\n\n", version)
	fmt.Println("USAGE:")
	fmt.Println("  enso-api [flags]")
	fmt.Println()
	fmt.Println("FLAGS:")
	fmt.Println("  -help          Show this help message")
	fmt.Println("  -version       Show version information")
	fmt.Println()
	fmt.Println("ENVIRONMENT VARIABLES:")
	fmt.Println("  PORT                    Server port (default: 8080)")
	fmt.Println("  CATALOG_PATH            Dataset catalog CSV path (default: ./data/catalog.csv)")
	fmt.Println("  CORS_ALLOWED_ORIGINS    Comma-separated list of allowed origins (default: all origins)")
	fmt.Println("  DEFAULT_THRESHOLD       Default El Niño/La Niña threshold (default: 0.4)")
	fmt.Println("  REGIONS_FILE            YAML file with extra region presets (optional)")
	fmt.Println("  LOG_LEVEL               Log level: debug, info, warn, error (default: info)")
	fmt.Println("  LOG_DIR                 Directory for rotated log files (default: stderr only)")
	fmt.Println()
	fmt.Println("EXAMPLES:")
	fmt.Println("  # Start server with default settings")
	fmt.Println("  enso-api")
	fmt.Println()
	fmt.Println("  # Start server on custom port")
	fmt.Println("  PORT=3000 enso-api")
	fmt.Println()
	fmt.Println("API ENDPOINTS:")
	fmt.Println("  GET /health                Health check")
	fmt.Println("  GET /v1/enso/index         Compute an ENSO index series")
	fmt.Println("  GET /v1/regions            List region presets")
	fmt.Println("  GET /v1/catalog            Search the dataset catalog")
	fmt.Println("  GET /metrics               Prometheus metrics")
	fmt.Println()
}
