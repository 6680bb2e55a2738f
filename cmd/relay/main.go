package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/weather-alert-relay/internal/adapter/geocode"
	httpadapter "github.com/couchcryptid/weather-alert-relay/internal/adapter/http"
	"github.com/couchcryptid/weather-alert-relay/internal/adapter/provider"
	"github.com/couchcryptid/weather-alert-relay/internal/adapter/webhook"
	"github.com/couchcryptid/weather-alert-relay/internal/config"
	"github.com/couchcryptid/weather-alert-relay/internal/domain"
	"github.com/couchcryptid/weather-alert-relay/internal/ledger"
	"github.com/couchcryptid/weather-alert-relay/internal/observability"
	"github.com/couchcryptid/weather-alert-relay/internal/pipeline"
	"github.com/couchcryptid/weather-alert-relay/internal/scheduler"
	"github.com/couchcryptid/weather-alert-relay/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFormat)
	metrics := observability.NewMetrics()

	kv, err := store.NewFileStore(cfg.DataDir)
	if err != nil {
		logger.Error("failed to open data dir", "error", err)
		os.Exit(1)
	}

	settings := store.NewSettingsStore(kv)
	locations := store.NewLocationStore(kv)
	alertTypes := store.NewAlertTypeStore(kv)
	condStates := store.NewConditionStateStore(kv)
	dedup := ledger.New(store.NewLedgerStore(kv))

	startup, err := settings.Get(context.Background())
	if err != nil {
		logger.Error("failed to read settings", "error", err)
		os.Exit(1)
	}
	logs := store.NewLogStore(kv, startup.MaxLogEntries)

	// Geocoder is feature-flagged on GEOCODER_TOKEN; without it, postal-code
	// locations only work on providers that accept postal codes natively.
	var geocoder domain.Geocoder
	if cfg.GeocoderToken != "" {
		client := geocode.NewClient(cfg.GeocoderToken, cfg.UserAgent, cfg.GeocoderTimeout, logger)
		geocoder = geocode.NewCachedGeocoder(client, cfg.GeocoderCacheSize)
		logger.Info("postal-code geocoding enabled", "cache_size", cfg.GeocoderCacheSize)
	} else {
		logger.Info("postal-code geocoding disabled")
	}

	orch := pipeline.New(pipeline.Deps{
		Settings:   settings,
		Locations:  locations,
		AlertCodes: alertTypes,
		Ledger:     dedup,
		States:     condStates,
		Logs:       logs,
		NewProvider: func(s store.Settings, codes []string) (provider.Client, error) {
			return provider.New(provider.Config{
				Provider:      s.Provider,
				APIKey:        s.APIKey,
				BaseURL:       s.BaseURL,
				AlertCodes:    codes,
				PostalCountry: cfg.PostalCountry,
				UserAgent:     cfg.UserAgent,
				Timeout:       cfg.ProviderTimeout,
			}, geocoder, logger)
		},
		NewRelay: func(s store.Settings) (pipeline.Deliverer, error) {
			return webhook.New(s.WebhookURL, cfg.WebhookTimeout, logger)
		},
		Logger:  logger,
		Metrics: metrics,
	})

	interval := scheduler.NewInterval("interval", func(ctx context.Context) {
		if _, err := orch.RunAlertCycle(ctx); err != nil && !errors.Is(err, pipeline.ErrCycleInFlight) {
			logger.Error("alert cycle failed", "error", err)
		}
		s, err := settings.Get(ctx)
		if err != nil {
			logger.Error("failed to read settings", "error", err)
			return
		}
		if s.ConditionsEnabled {
			if _, err := orch.RunConditionsCycle(ctx); err != nil && !errors.Is(err, pipeline.ErrCycleInFlight) {
				logger.Error("conditions cycle failed", "error", err)
			}
		}
	}, logger, nil)

	daily := scheduler.NewDaily("daily", func(ctx context.Context) {
		if _, err := orch.RunForecastCycle(ctx); err != nil && !errors.Is(err, pipeline.ErrCycleInFlight) {
			logger.Error("forecast cycle failed", "error", err)
		}
	}, logger, nil)

	manager := scheduler.NewManager(interval, daily, settings, logger, metrics)
	if err := manager.Apply(context.Background()); err != nil {
		logger.Error("failed to apply schedule", "error", err)
		os.Exit(1)
	}

	srv := httpadapter.NewServer(cfg.HTTPAddr, orch, orch, manager, dedup, httpadapter.Stores{
		Settings:   settings,
		Locations:  locations,
		AlertTypes: alertTypes,
		States:     condStates,
		Logs:       logs,
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	manager.StopAll()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}

	logger.Info("shutdown complete")
}
