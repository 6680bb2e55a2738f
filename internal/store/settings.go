package store

import (
	"context"
	"fmt"
	"time"
)

// Settings is the operator-editable configuration blob. It is distinct from
// the process environment config: settings change at runtime through the
// admin surface and are persisted across restarts.
type Settings struct {
	Provider   string `json:"provider"`
	APIKey     string `json:"api_key,omitempty"`
	BaseURL    string `json:"base_url,omitempty"`
	WebhookURL string `json:"webhook_url"`

	ScheduleEnabled          bool `json:"schedule_enabled"`
	ScheduleFrequencyMinutes int  `json:"schedule_frequency_minutes"`

	ConditionsEnabled          bool `json:"conditions_enabled"`
	AlwaysSendConditions       bool `json:"always_send_conditions"`
	GoodWeatherIntervalMinutes int  `json:"good_weather_interval_minutes"`

	ForecastEnabled bool   `json:"forecast_enabled"`
	ForecastTime    string `json:"forecast_time"` // "HH:MM"

	MaxLogEntries int `json:"max_log_entries"`

	LastAlertRun      *time.Time `json:"last_alert_run,omitempty"`
	LastConditionsRun *time.Time `json:"last_conditions_run,omitempty"`
	LastForecastRun   *time.Time `json:"last_forecast_run,omitempty"`
}

// DefaultSettings is the blob a fresh installation starts from.
func DefaultSettings() Settings {
	return Settings{
		Provider:                   "nws",
		ScheduleFrequencyMinutes:   30,
		GoodWeatherIntervalMinutes: 60,
		ForecastTime:               "07:00",
		MaxLogEntries:              200,
	}
}

// SettingsPatch is a partial update: nil fields leave the stored value alone.
// This is the merge-on-write contract of the settings collection.
type SettingsPatch struct {
	Provider   *string `json:"provider,omitempty"`
	APIKey     *string `json:"api_key,omitempty"`
	BaseURL    *string `json:"base_url,omitempty"`
	WebhookURL *string `json:"webhook_url,omitempty"`

	ScheduleEnabled          *bool `json:"schedule_enabled,omitempty"`
	ScheduleFrequencyMinutes *int  `json:"schedule_frequency_minutes,omitempty"`

	ConditionsEnabled          *bool `json:"conditions_enabled,omitempty"`
	AlwaysSendConditions       *bool `json:"always_send_conditions,omitempty"`
	GoodWeatherIntervalMinutes *int  `json:"good_weather_interval_minutes,omitempty"`

	ForecastEnabled *bool   `json:"forecast_enabled,omitempty"`
	ForecastTime    *string `json:"forecast_time,omitempty"`

	MaxLogEntries *int `json:"max_log_entries,omitempty"`
}

func (p SettingsPatch) apply(s Settings) Settings {
	if p.Provider != nil {
		s.Provider = *p.Provider
	}
	if p.APIKey != nil {
		s.APIKey = *p.APIKey
	}
	if p.BaseURL != nil {
		s.BaseURL = *p.BaseURL
	}
	if p.WebhookURL != nil {
		s.WebhookURL = *p.WebhookURL
	}
	if p.ScheduleEnabled != nil {
		s.ScheduleEnabled = *p.ScheduleEnabled
	}
	if p.ScheduleFrequencyMinutes != nil {
		s.ScheduleFrequencyMinutes = *p.ScheduleFrequencyMinutes
	}
	if p.ConditionsEnabled != nil {
		s.ConditionsEnabled = *p.ConditionsEnabled
	}
	if p.AlwaysSendConditions != nil {
		s.AlwaysSendConditions = *p.AlwaysSendConditions
	}
	if p.GoodWeatherIntervalMinutes != nil {
		s.GoodWeatherIntervalMinutes = *p.GoodWeatherIntervalMinutes
	}
	if p.ForecastEnabled != nil {
		s.ForecastEnabled = *p.ForecastEnabled
	}
	if p.ForecastTime != nil {
		s.ForecastTime = *p.ForecastTime
	}
	if p.MaxLogEntries != nil {
		s.MaxLogEntries = *p.MaxLogEntries
	}
	return s
}

// SettingsStore reads and merges the settings collection.
type SettingsStore struct {
	kv KeyValueStore
}

func NewSettingsStore(kv KeyValueStore) *SettingsStore {
	return &SettingsStore{kv: kv}
}

// Get returns the stored settings, or defaults when nothing was stored yet.
func (s *SettingsStore) Get(ctx context.Context) (Settings, error) {
	settings := DefaultSettings()
	if _, err := s.kv.Get(ctx, KeySettings, &settings); err != nil {
		return Settings{}, fmt.Errorf("settings: %w", err)
	}
	return settings, nil
}

// Update layers a partial patch over the stored settings and writes the
// merged result back, returning it.
func (s *SettingsStore) Update(ctx context.Context, patch SettingsPatch) (Settings, error) {
	current, err := s.Get(ctx)
	if err != nil {
		return Settings{}, err
	}
	merged := patch.apply(current)
	if err := s.kv.Set(ctx, KeySettings, merged); err != nil {
		return Settings{}, fmt.Errorf("settings: %w", err)
	}
	return merged, nil
}

// RecordLastRun stamps the last-run timestamp for one cycle kind.
func (s *SettingsStore) RecordLastRun(ctx context.Context, kind string, at time.Time) error {
	current, err := s.Get(ctx)
	if err != nil {
		return err
	}
	switch kind {
	case "alerts":
		current.LastAlertRun = &at
	case "conditions":
		current.LastConditionsRun = &at
	case "forecast":
		current.LastForecastRun = &at
	}
	if err := s.kv.Set(ctx, KeySettings, current); err != nil {
		return fmt.Errorf("settings: %w", err)
	}
	return nil
}
