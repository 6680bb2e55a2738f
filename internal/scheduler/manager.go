package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/weather-alert-relay/internal/observability"
	"github.com/couchcryptid/weather-alert-relay/internal/store"
)

// SettingsSource reads the runtime settings blob.
type SettingsSource interface {
	Get(ctx context.Context) (store.Settings, error)
}

// Manager maps the persisted settings onto the two scheduler instances: the
// recurring-interval one (alerts/conditions) and the time-of-day one
// (forecasts). Apply is called at startup and whenever settings change.
type Manager struct {
	interval *Scheduler
	daily    *Scheduler
	settings SettingsSource
	logger   *slog.Logger
	metrics  *observability.Metrics
}

func NewManager(interval, daily *Scheduler, settings SettingsSource, logger *slog.Logger, metrics *observability.Metrics) *Manager {
	return &Manager{
		interval: interval,
		daily:    daily,
		settings: settings,
		logger:   logger,
		metrics:  metrics,
	}
}

// Apply reads settings and reconfigures both schedulers. Identical
// configuration is a no-op inside Start; disabling clears the trigger.
func (m *Manager) Apply(ctx context.Context) error {
	settings, err := m.settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("apply schedule: %w", err)
	}

	if err := m.interval.Start(Config{
		Enabled:          settings.ScheduleEnabled,
		FrequencyMinutes: settings.ScheduleFrequencyMinutes,
	}); err != nil {
		return fmt.Errorf("interval scheduler: %w", err)
	}

	if err := m.daily.Start(Config{
		Enabled:   settings.ForecastEnabled,
		TimeOfDay: settings.ForecastTime,
	}); err != nil {
		return fmt.Errorf("daily scheduler: %w", err)
	}

	m.metrics.SchedulerRunning.WithLabelValues("interval").Set(boolToGauge(m.interval.Running()))
	m.metrics.SchedulerRunning.WithLabelValues("daily").Set(boolToGauge(m.daily.Running()))
	return nil
}

// StopAll clears both triggers; in-flight cycles run to completion.
func (m *Manager) StopAll() {
	m.interval.Stop()
	m.daily.Stop()
	m.metrics.SchedulerRunning.WithLabelValues("interval").Set(0)
	m.metrics.SchedulerRunning.WithLabelValues("daily").Set(0)
}

func boolToGauge(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
