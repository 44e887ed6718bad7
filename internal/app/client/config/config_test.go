package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"healthsync/internal/domain/health"
)

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CONFIG_DIR", dir)
	t.Setenv("API_URL", "http://localhost:8080/")
	t.Setenv("TRACKED_TYPES", " HKQuantityTypeIdentifierStepCount , HKQuantityTypeIdentifierHeartRate,")
	t.Setenv("TIMEZONE", "UTC")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, dir, cfg.ConfigDir)
	assert.Equal(t, filepath.Join(dir, defaultDataFile), cfg.DataPath)
	assert.Equal(t, "http://localhost:8080", cfg.APIURL)
	assert.Equal(t, []health.DataType{health.StepCount, health.HeartRate}, cfg.DataTypes())
	assert.Equal(t, defaultBackfillDays, cfg.BackfillDays)
	assert.Equal(t, "UTC", cfg.Location().String())
}

func TestLoad_ChangeFeedTypesAccepted(t *testing.T) {
	t.Setenv("CONFIG_DIR", t.TempDir())
	t.Setenv("TRACKED_TYPES", "HKWorkout,HKQuantityTypeIdentifierStepCount,HKCategoryValueSleepAnalysis")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, []health.DataType{health.StepCount}, cfg.DataTypes())

	// Только лента изменений: статистические типы не сужаются
	t.Setenv("TRACKED_TYPES", "HKWorkout")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Empty(t, cfg.DataTypes())

	catalog, err := health.CatalogFor(cfg.DataTypes())
	require.NoError(t, err)
	assert.Equal(t, health.DefaultCatalog().ReadTypes(), catalog.ReadTypes())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "unsupported tracked type", key: "TRACKED_TYPES", val: "HKQuantityTypeIdentifierUnknown"},
		{name: "bad timezone", key: "TIMEZONE", val: "Mars/Olympus"},
		{name: "zero backfill", key: "BACKFILL_DAYS", val: "0"},
		{name: "negative interval", key: "SYNC_INTERVAL_SECONDS", val: "-5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("CONFIG_DIR", t.TempDir())
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestResolveAPIURL(t *testing.T) {
	assert.Equal(t, DefaultAPIURL, ResolveAPIURL("", false))
	assert.Equal(t, SandboxAPIURL, ResolveAPIURL("", true))
	assert.Equal(t, "http://example.test", ResolveAPIURL("http://example.test/", true))
}

func TestEnv(t *testing.T) {
	assert.True(t, (&Config{Env: "prod"}).IsProd())
	assert.True(t, (&Config{Env: "dev"}).IsDev())
	assert.True(t, (&Config{}).IsLocal())
}
