package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Setenv("DATABASE_URI", "postgres://localhost/healthsync")
	t.Setenv("RUN_ADDRESS", ":9090")
	t.Setenv("APP_ENV", EnvProd)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/healthsync", cfg.DB.DatabaseURI)
	assert.Equal(t, defaultMigrations, cfg.DB.Migrations)
	assert.Equal(t, ":9090", cfg.Server.RunAddress)
	assert.Equal(t, int64(defaultMaxBodyBytes), cfg.Server.MaxBodyBytes)
	assert.True(t, cfg.IsProd())
	assert.False(t, cfg.IsLocal())
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing database uri", env: map[string]string{"DATABASE_URI": ""}},
		{name: "zero body limit", env: map[string]string{"DATABASE_URI": "postgres://x", "MAX_BODY_BYTES": "0"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestEnv(t *testing.T) {
	assert.True(t, (&Config{}).IsLocal())
	assert.True(t, (&Config{Env: EnvDev}).IsDev())
	assert.False(t, (&Config{Env: EnvDev}).IsProd())
}
