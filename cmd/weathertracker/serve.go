package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpapi "github.com/i474232898/weathertracker/internal/api/http"
	"github.com/i474232898/weathertracker/internal/config"
	"github.com/i474232898/weathertracker/internal/ingest"
	"github.com/i474232898/weathertracker/internal/ingest/providers"
	"github.com/i474232898/weathertracker/internal/logging"
	"github.com/i474232898/weathertracker/internal/metrics"
	"github.com/i474232898/weathertracker/internal/scheduler"
	"github.com/i474232898/weathertracker/internal/store"
	"github.com/i474232898/weathertracker/internal/weather"
)

func newServeCommand(envFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, provider ingestion and retention jobs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*envFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			return serve(cmd.Context(), cfg)
		},
	}
}

func serve(parent context.Context, cfg *config.AppConfig) error {
	logger := logging.New(cfg.Log)
	defer func() { _ = logger.Sync() }()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector, err := metrics.New(registry)
	if err != nil {
		return fmt.Errorf("register metrics: %w", err)
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	backend, closeStore, err := openStore(ctx, cfg, logger, collector)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Error("close store", zap.Error(err))
		}
	}()

	// Circuit breaker around whichever store was chosen.
	guarded := store.NewBreaker(backend, store.BreakerConfig{
		MaxFailures: cfg.BreakerMaxFailures,
		Timeout:     cfg.BreakerTimeout,
	}, logger)

	service := weather.NewService(guarded, logger, collector)

	// Shared HTTP client for outbound provider calls.
	httpClient := &http.Client{Timeout: cfg.HTTPTimeout}

	var provs []ingest.Provider
	if cfg.OpenWeatherAPIKey != "" {
		provs = append(provs, providers.NewOpenWeatherProvider(httpClient, cfg.OpenWeatherAPIKey))
	}
	if cfg.WeatherAPIKey != "" {
		provs = append(provs, providers.NewWeatherAPIProvider(httpClient, cfg.WeatherAPIKey))
	}
	if cfg.LocationLat != nil {
		provs = append(provs, providers.NewOpenMeteoProvider(httpClient))
	}

	schedCfg := scheduler.Config{
		Location: ingest.Location{
			City:    cfg.LocationCity,
			Country: cfg.LocationCountry,
			Lat:     cfg.LocationLat,
			Lon:     cfg.LocationLon,
		},
		FetchInterval:     cfg.FetchInterval,
		Pruner:            guarded,
		MaxAge:            cfg.StoreMaxAge,
		RetentionInterval: cfg.RetentionInterval,
	}
	if len(provs) > 0 {
		schedCfg.Collector = ingest.NewCollector(service, provs, logger, collector)
	}

	sched := scheduler.New(schedCfg, logger, collector)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	app := httpapi.NewApp(service, httpapi.ServerOptions{
		Gatherer:  registry,
		AccessLog: true,
	})

	listenErr := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("port", cfg.Port))
		listenErr <- app.Listen(":" + cfg.Port)
	}()

	select {
	case <-ctx.Done():
	case err := <-listenErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}
	logger.Info("shutdown complete")
	return nil
}
