package domain

import "time"

// ForecastPeriod is one normalized short-range forecast period.
type ForecastPeriod struct {
	Name          string  `json:"name"` // e.g. "Tonight", "Friday"
	HighTempF     float64 `json:"high_temp_f,omitempty"`
	LowTempF      float64 `json:"low_temp_f,omitempty"`
	Description   string  `json:"description"`
	PrecipChance  float64 `json:"precip_chance_pct,omitempty"`
	WindSpeedMPH  float64 `json:"wind_speed_mph,omitempty"`
	WindDirection string  `json:"wind_direction,omitempty"`
}

// ForecastRecord is the canonical daily forecast relayed to the webhook.
// ForecastID doubles as the dedup key: one record per location, provider,
// and calendar day, so a re-run on the same day is suppressed.
type ForecastRecord struct {
	ForecastID  string           `json:"forecast_id"`
	LocationID  string           `json:"location_id"`
	Source      string           `json:"source"`
	GeneratedAt time.Time        `json:"generated_at"`
	Periods     []ForecastPeriod `json:"periods"`
}

// NewForecastRecord assembles a forecast record with its deterministic ID.
func NewForecastRecord(locationID, source string, periods []ForecastPeriod) ForecastRecord {
	now := clock.Now().UTC()
	return ForecastRecord{
		ForecastID:  DeriveForecastID(locationID, source, now),
		LocationID:  locationID,
		Source:      source,
		GeneratedAt: now,
		Periods:     periods,
	}
}
