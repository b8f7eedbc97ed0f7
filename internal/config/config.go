// Package config loads service settings from environment variables and
// an optional YAML file of extra region presets.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/r-ford/enso-api/internal/domain"
)

// Config holds all service settings, populated from environment
// variables with defaults applied where unset.
type Config struct {
	Port               string
	CatalogPath        string
	LogLevel           string
	LogDir             string
	CORSAllowedOrigins []string
	DefaultThreshold   float64

	// ExtraRegions supplements the built-in Niño presets, keyed by name.
	ExtraRegions map[string]domain.Region
}

// Load reads configuration from a .env file (if present) and the
// environment.
func Load() (*Config, error) {
	// Best effort: absent .env just means plain environment variables.
	_ = godotenv.Load()

	threshold := domain.DefaultThreshold
	if s := os.Getenv("DEFAULT_THRESHOLD"); s != "" {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil || v <= 0 {
			return nil, errors.New("invalid DEFAULT_THRESHOLD: must be a positive number")
		}
		threshold = v
	}

	cfg := &Config{
		Port:             envOrDefault("PORT", "8080"),
		CatalogPath:      envOrDefault("CATALOG_PATH", "./data/catalog.csv"),
		LogLevel:         envOrDefault("LOG_LEVEL", "info"),
		LogDir:           os.Getenv("LOG_DIR"),
		DefaultThreshold: threshold,
		ExtraRegions:     map[string]domain.Region{},
	}

	if origins := os.Getenv("CORS_ALLOWED_ORIGINS"); origins != "" {
		cfg.CORSAllowedOrigins = strings.Split(origins, ",")
	}

	if path := os.Getenv("REGIONS_FILE"); path != "" {
		regions, err := loadRegionsFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load REGIONS_FILE: %w", err)
		}
		cfg.ExtraRegions = regions
	}

	if cfg.CatalogPath == "" {
		return nil, errors.New("CATALOG_PATH is required")
	}

	return cfg, nil
}

// Region looks up a region by name, checking the extra presets first and
// the built-in Niño regions second.
func (c *Config) Region(name string) (domain.Region, bool) {
	if r, ok := c.ExtraRegions[name]; ok {
		return r, true
	}
	return domain.RegionByName(name)
}

// regionsFile is the YAML layout of a region presets file.
type regionsFile struct {
	Regions []struct {
		Name   string  `yaml:"name"`
		LatMin float64 `yaml:"lat_min"`
		LatMax float64 `yaml:"lat_max"`
		LonMin float64 `yaml:"lon_min"`
		LonMax float64 `yaml:"lon_max"`
	} `yaml:"regions"`
}

func loadRegionsFile(path string) (map[string]domain.Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var file regionsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	regions := make(map[string]domain.Region, len(file.Regions))
	for _, r := range file.Regions {
		if r.Name == "" {
			return nil, errors.New("region preset missing a name")
		}
		region := domain.Region{Name: r.Name, LatMin: r.LatMin, LatMax: r.LatMax, LonMin: r.LonMin, LonMax: r.LonMax}
		if err := region.Validate(); err != nil {
			return nil, err
		}
		regions[r.Name] = region
	}
	return regions, nil
}

func envOrDefault(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}
