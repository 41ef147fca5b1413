package config

import (
	"os"
	"strings"
	"time"
)

// Settings are the engine and artifact knobs read once at startup.
type Settings struct {
	// CatalogPath points to a catalog JSON file; empty uses the built-in catalog.
	CatalogPath string

	// floor plan layout and rasterization
	MaxRowWidth    float64
	PixelsPerMetre int
	MaxImagePixels int

	PlanCacheTTL  time.Duration
	ExportLockTTL time.Duration

	SkipMigrations bool
	Production     bool
}

func LoadSettings() Settings {
	return Settings{
		CatalogPath:    strings.TrimSpace(os.Getenv("CATALOG_PATH")),
		MaxRowWidth:    floatFromEnv("FLOORPLAN_MAX_ROW_WIDTH", 12),
		PixelsPerMetre: intFromEnv("FLOORPLAN_PIXELS_PER_METRE", 50),
		MaxImagePixels: intFromEnv("FLOORPLAN_MAX_IMAGE_PIXELS", 16_000_000),
		PlanCacheTTL:   time.Duration(intFromEnv("PLAN_CACHE_TTL_MINUTES", 60)) * time.Minute,
		ExportLockTTL:  time.Duration(intFromEnv("EXPORT_LOCK_TTL_SECONDS", 30)) * time.Second,
		SkipMigrations: boolFromEnv("SKIP_MIGRATIONS"),
		Production:     strings.EqualFold(strings.TrimSpace(os.Getenv("GO_ENV")), "production"),
	}
}
