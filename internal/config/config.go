package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type AppConfig struct {
	Port string

	// DatabaseURL selects the Postgres store; empty means in-memory.
	DatabaseURL string

	// Store retention.
	StoreMaxHistory   int           // max number of measurements kept in memory (0 = unlimited)
	StoreMaxAge       time.Duration // max age of measurements (0 = keep forever)
	RetentionInterval time.Duration

	// Provider ingestion.
	OpenWeatherAPIKey string
	WeatherAPIKey     string
	LocationCity      string
	LocationCountry   string
	LocationLat       *float64
	LocationLon       *float64
	FetchInterval     time.Duration
	HTTPTimeout       time.Duration

	BreakerMaxFailures uint32
	BreakerTimeout     time.Duration

	Log LogConfig
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

var defaults = map[string]any{
	"PORT":                 "8080",
	"DATABASE_URL":         "",
	"STORE_MAX_HISTORY":    0,
	"STORE_MAX_AGE":        "0s",
	"RETENTION_INTERVAL":   "1h",
	"FETCH_INTERVAL":       "15m",
	"HTTP_TIMEOUT":         "10s",
	"BREAKER_MAX_FAILURES": 5,
	"BREAKER_TIMEOUT":      "30s",
	"LOG_LEVEL":            "info",
	"LOG_FORMAT":           "json",
	"LOG_FILE":             "",
	"LOG_MAX_SIZE_MB":      100,
	"LOG_MAX_BACKUPS":      3,
	"LOG_MAX_AGE_DAYS":     28,
}

// Load reads configuration from the environment (after loading envFile, if present)
// with sensible defaults.
func Load(envFile string) (*AppConfig, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				return nil, fmt.Errorf("load %s: %w", envFile, err)
			}
			log.Printf("INFO: no %s file found; using environment only", envFile)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	cfg := &AppConfig{
		Port:              v.GetString("PORT"),
		DatabaseURL:       v.GetString("DATABASE_URL"),
		OpenWeatherAPIKey: v.GetString("OPENWEATHER_API_KEY"),
		WeatherAPIKey:     v.GetString("WEATHERAPI_API_KEY"),
		LocationCity:      strings.TrimSpace(v.GetString("WEATHER_LOCATION_CITY")),
		LocationCountry:   strings.TrimSpace(v.GetString("WEATHER_LOCATION_COUNTRY")),
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
			File:   v.GetString("LOG_FILE"),
		},
	}

	var breakerMaxFailures int
	ints := []struct {
		key string
		dst *int
	}{
		{"STORE_MAX_HISTORY", &cfg.StoreMaxHistory},
		{"BREAKER_MAX_FAILURES", &breakerMaxFailures},
		{"LOG_MAX_SIZE_MB", &cfg.Log.MaxSizeMB},
		{"LOG_MAX_BACKUPS", &cfg.Log.MaxBackups},
		{"LOG_MAX_AGE_DAYS", &cfg.Log.MaxAgeDays},
	}
	for _, i := range ints {
		n, err := strconv.Atoi(strings.TrimSpace(v.GetString(i.key)))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", i.key, err)
		}
		if n < 0 {
			return nil, fmt.Errorf("invalid %s: must not be negative", i.key)
		}
		*i.dst = n
	}
	cfg.BreakerMaxFailures = uint32(breakerMaxFailures)

	durations := []struct {
		key string
		dst *time.Duration
	}{
		{"STORE_MAX_AGE", &cfg.StoreMaxAge},
		{"RETENTION_INTERVAL", &cfg.RetentionInterval},
		{"FETCH_INTERVAL", &cfg.FetchInterval},
		{"HTTP_TIMEOUT", &cfg.HTTPTimeout},
		{"BREAKER_TIMEOUT", &cfg.BreakerTimeout},
	}
	for _, d := range durations {
		parsed, err := time.ParseDuration(v.GetString(d.key))
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		if parsed < 0 {
			return nil, fmt.Errorf("invalid %s: must not be negative", d.key)
		}
		*d.dst = parsed
	}

	coords := []struct {
		key   string
		dst   **float64
		limit float64
	}{
		{"WEATHER_LOCATION_LAT", &cfg.LocationLat, 90},
		{"WEATHER_LOCATION_LON", &cfg.LocationLon, 180},
	}
	for _, c := range coords {
		raw := strings.TrimSpace(v.GetString(c.key))
		if raw == "" {
			continue
		}
		f, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid %s: %w", c.key, err)
		}
		if f < -c.limit || f > c.limit {
			return nil, fmt.Errorf("invalid %s: must be within ±%g", c.key, c.limit)
		}
		*c.dst = &f
	}
	if (cfg.LocationLat == nil) != (cfg.LocationLon == nil) {
		return nil, errors.New("WEATHER_LOCATION_LAT and WEATHER_LOCATION_LON must be set together")
	}

	return cfg, nil
}
