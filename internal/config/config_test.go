package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Empty(t, cfg.DatabaseURL)
	assert.Zero(t, cfg.StoreMaxHistory)
	assert.Zero(t, cfg.StoreMaxAge)
	assert.Equal(t, time.Hour, cfg.RetentionInterval)
	assert.Equal(t, 15*time.Minute, cfg.FetchInterval)
	assert.Equal(t, uint32(5), cfg.BreakerMaxFailures)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, 100, cfg.Log.MaxSizeMB)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("STORE_MAX_HISTORY", "500")
	t.Setenv("STORE_MAX_AGE", "72h")
	t.Setenv("WEATHER_LOCATION_CITY", "  Berlin ")
	t.Setenv("BREAKER_MAX_FAILURES", "2")
	t.Setenv("LOG_FORMAT", "console")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "9090", cfg.Port)
	assert.Equal(t, 500, cfg.StoreMaxHistory)
	assert.Equal(t, 72*time.Hour, cfg.StoreMaxAge)
	assert.Equal(t, "Berlin", cfg.LocationCity)
	assert.Equal(t, uint32(2), cfg.BreakerMaxFailures)
	assert.Equal(t, "console", cfg.Log.Format)
}

func TestLoadFromEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("OPENWEATHER_API_KEY=abc123\nFETCH_INTERVAL=5m\n"), 0o600))
	t.Cleanup(func() {
		os.Unsetenv("OPENWEATHER_API_KEY")
		os.Unsetenv("FETCH_INTERVAL")
	})

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "abc123", cfg.OpenWeatherAPIKey)
	assert.Equal(t, 5*time.Minute, cfg.FetchInterval)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := map[string]string{
		"STORE_MAX_HISTORY":    "lots",
		"LOG_MAX_BACKUPS":      "-1",
		"FETCH_INTERVAL":       "soon",
		"STORE_MAX_AGE":        "-1h",
		"BREAKER_MAX_FAILURES": "1.5",
	}

	for key, value := range tests {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, value)
			_, err := Load("")
			if err == nil {
				t.Fatalf("expected error for %s=%q", key, value)
			}
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoadCoordinates(t *testing.T) {
	t.Setenv("WEATHER_LOCATION_LAT", "52.52")
	t.Setenv("WEATHER_LOCATION_LON", "13.405")

	cfg, err := Load("")
	require.NoError(t, err)
	require.NotNil(t, cfg.LocationLat)
	require.NotNil(t, cfg.LocationLon)
	assert.Equal(t, 52.52, *cfg.LocationLat)
	assert.Equal(t, 13.405, *cfg.LocationLon)
}

func TestLoadRejectsBadCoordinates(t *testing.T) {
	t.Setenv("WEATHER_LOCATION_LAT", "91")
	t.Setenv("WEATHER_LOCATION_LON", "0")
	_, err := Load("")
	assert.ErrorContains(t, err, "WEATHER_LOCATION_LAT")

	t.Setenv("WEATHER_LOCATION_LAT", "45")
	t.Setenv("WEATHER_LOCATION_LON", "")
	_, err = Load("")
	assert.Error(t, err)
}
