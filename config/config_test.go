package config

import (
	"testing"
	"time"
)

func TestLoadSettingsDefaults(t *testing.T) {
	for _, key := range []string{"CATALOG_PATH", "FLOORPLAN_MAX_ROW_WIDTH", "FLOORPLAN_PIXELS_PER_METRE", "PLAN_CACHE_TTL_MINUTES", "SKIP_MIGRATIONS", "GO_ENV"} {
		t.Setenv(key, "")
	}
	s := LoadSettings()
	if s.CatalogPath != "" || s.MaxRowWidth != 12 || s.PixelsPerMetre != 50 {
		t.Fatalf("defaults = %+v", s)
	}
	if s.PlanCacheTTL != time.Hour || s.ExportLockTTL != 30*time.Second {
		t.Fatalf("ttls = %s / %s", s.PlanCacheTTL, s.ExportLockTTL)
	}
	if s.SkipMigrations || s.Production {
		t.Fatalf("flags = %+v", s)
	}
}

func TestLoadSettingsOverrides(t *testing.T) {
	t.Setenv("FLOORPLAN_MAX_ROW_WIDTH", "9.5")
	t.Setenv("FLOORPLAN_PIXELS_PER_METRE", "oops")
	t.Setenv("SKIP_MIGRATIONS", "yes")
	t.Setenv("GO_ENV", "Production")
	s := LoadSettings()
	if s.MaxRowWidth != 9.5 {
		t.Fatalf("MaxRowWidth = %v", s.MaxRowWidth)
	}
	if s.PixelsPerMetre != 50 {
		t.Fatalf("unparsable int should fall back, got %d", s.PixelsPerMetre)
	}
	if !s.SkipMigrations || !s.Production {
		t.Fatalf("flags = %+v", s)
	}
}

func TestDatabaseDSN(t *testing.T) {
	t.Setenv("DB_USER", "u")
	t.Setenv("DB_PASSWORD", "p")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_PORT", "3306")
	t.Setenv("DB_NAME", "plans")
	if got := DatabaseDSN(); got != "u:p@tcp(db:3306)/plans?parseTime=true&charset=utf8mb4" {
		t.Fatalf("dsn = %s", got)
	}
	t.Setenv("DB_HOST", "/cloudsql/proj:region:inst")
	if got := DatabaseDSN(); got != "u:p@unix(/cloudsql/proj:region:inst)/plans?parseTime=true&charset=utf8mb4" {
		t.Fatalf("dsn = %s", got)
	}
}

func TestBackoffIsCapped(t *testing.T) {
	if backoff(1) != 2*time.Second {
		t.Fatalf("backoff(1) = %s", backoff(1))
	}
	if backoff(10) != 30*time.Second {
		t.Fatalf("backoff(10) = %s", backoff(10))
	}
}
