package domain

import (
	"fmt"
	"strings"
	"time"
)

// ConditionReading is a structured current-conditions snapshot for one
// location. Units are fixed: Fahrenheit, mph, inches, miles.
type ConditionReading struct {
	TemperatureF    float64   `json:"temperature_f"`
	FeelsLikeF      float64   `json:"feels_like_f"`
	HumidityPct     float64   `json:"humidity_pct"`
	WindSpeedMPH    float64   `json:"wind_speed_mph"`
	WindDirection   string    `json:"wind_direction,omitempty"`
	RainInches      float64   `json:"rain_in"`
	SnowInches      float64   `json:"snow_in"`
	VisibilityMiles float64   `json:"visibility_mi"`
	Description     string    `json:"description"`
	ObservedAt      time.Time `json:"observed_at"`
	LocationID      string    `json:"location_id"`
	Source          string    `json:"source"`
}

// ClassificationLevel is the four-step weather-goodness scale.
type ClassificationLevel string

const (
	LevelGood   ClassificationLevel = "good"
	LevelFair   ClassificationLevel = "fair"
	LevelBad    ClassificationLevel = "bad"
	LevelSevere ClassificationLevel = "severe"
)

// rank orders levels for "most severe triggered band wins".
func (l ClassificationLevel) rank() int {
	switch l {
	case LevelFair:
		return 1
	case LevelBad:
		return 2
	case LevelSevere:
		return 3
	default:
		return 0
	}
}

// Classification is the derived judgment with the human-readable reasons that
// produced it, in evaluation order.
type Classification struct {
	Level   ClassificationLevel `json:"level"`
	Reasons []string            `json:"reasons"`
	IsGood  bool                `json:"is_good"`
	IsBad   bool                `json:"is_bad"`
}

// severeKeywords in the free-text description force the severe level
// regardless of every other factor.
var severeKeywords = []string{"thunderstorm", "storm", "tornado", "hurricane"}

// reducedVisibilityKeywords only ever degrade to fair.
var reducedVisibilityKeywords = []string{"fog", "mist", "haze"}

// Classify derives a good/fair/bad/severe judgment from a conditions reading
// using fixed thresholds. It is a pure function: same reading, same result.
// The final level is the most severe band any rule triggered, except that a
// severe-keyword match in the description always wins outright.
func Classify(r ConditionReading) Classification {
	level := LevelGood
	var reasons []string

	raise := func(to ClassificationLevel, reason string) {
		reasons = append(reasons, reason)
		if to.rank() > level.rank() {
			level = to
		}
	}

	switch {
	case r.TemperatureF > 95:
		raise(LevelBad, fmt.Sprintf("extreme heat: %.0f°F", r.TemperatureF))
	case r.TemperatureF < 32:
		raise(LevelBad, fmt.Sprintf("freezing temperature: %.0f°F", r.TemperatureF))
	case r.TemperatureF > 90:
		raise(LevelFair, fmt.Sprintf("hot: %.0f°F", r.TemperatureF))
	case r.TemperatureF < 40:
		raise(LevelFair, fmt.Sprintf("cold: %.0f°F", r.TemperatureF))
	}

	feelsDelta := r.FeelsLikeF - r.TemperatureF
	if feelsDelta < 0 {
		feelsDelta = -feelsDelta
	}
	if feelsDelta > 10 && (r.FeelsLikeF > 100 || r.FeelsLikeF < 25) {
		raise(LevelBad, fmt.Sprintf("feels like %.0f°F", r.FeelsLikeF))
	}

	switch {
	case r.WindSpeedMPH > 25:
		raise(LevelBad, fmt.Sprintf("high wind: %.0f mph", r.WindSpeedMPH))
	case r.WindSpeedMPH > 15:
		raise(LevelFair, fmt.Sprintf("breezy: %.0f mph", r.WindSpeedMPH))
	}

	switch {
	case r.RainInches > 0.5:
		raise(LevelBad, fmt.Sprintf("heavy rain: %.2f in", r.RainInches))
	case r.RainInches > 0:
		raise(LevelFair, fmt.Sprintf("rain: %.2f in", r.RainInches))
	}

	if r.SnowInches > 0 {
		raise(LevelBad, fmt.Sprintf("snow: %.2f in", r.SnowInches))
	}

	// Humidity only degrades otherwise-tolerable weather.
	if r.HumidityPct > 85 && level != LevelBad {
		raise(LevelFair, fmt.Sprintf("high humidity: %.0f%%", r.HumidityPct))
	}

	if r.VisibilityMiles > 0 && r.VisibilityMiles < 1 {
		raise(LevelBad, fmt.Sprintf("low visibility: %.1f mi", r.VisibilityMiles))
	}

	desc := strings.ToLower(r.Description)
	for _, kw := range reducedVisibilityKeywords {
		if strings.Contains(desc, kw) {
			raise(LevelFair, "reduced visibility: "+kw)
			break
		}
	}
	for _, kw := range severeKeywords {
		if strings.Contains(desc, kw) {
			reasons = append(reasons, "severe weather: "+kw)
			level = LevelSevere
			break
		}
	}

	return Classification{
		Level:   level,
		Reasons: reasons,
		IsGood:  level == LevelGood,
		IsBad:   level == LevelBad || level == LevelSevere,
	}
}

// ConditionState records what was last delivered for a location, for the
// conditions decision gate.
type ConditionState struct {
	Level        ClassificationLevel `json:"level"`
	TemperatureF float64             `json:"temperature_f"`
	SentAt       time.Time           `json:"sent_at"`
}

// GateOptions tunes the conditions decision gate.
type GateOptions struct {
	AlwaysSend          bool
	GoodWeatherInterval time.Duration // resend interval while weather stays good
}

// ShouldDeliverConditions decides whether a classified reading is worth
// relaying, given what was last delivered for the location. Delivery happens
// when any of these hold: always-send is configured, nothing was ever sent,
// the good/bad boundary was crossed, the weather is currently bad or severe,
// enough time has passed since the last send for good weather, or the
// temperature moved at least five degrees.
func ShouldDeliverConditions(prev *ConditionState, cls Classification, reading ConditionReading, now time.Time, opts GateOptions) (bool, string) {
	if opts.AlwaysSend {
		return true, "always-send configured"
	}
	if prev == nil {
		return true, "first reading for location"
	}
	prevBad := prev.Level == LevelBad || prev.Level == LevelSevere
	if cls.IsBad != prevBad {
		return true, "good/bad boundary crossed"
	}
	if cls.IsBad {
		return true, "bad or severe conditions"
	}
	interval := opts.GoodWeatherInterval
	if interval <= 0 {
		interval = time.Hour
	}
	if now.Sub(prev.SentAt) >= interval {
		return true, "good-weather interval elapsed"
	}
	delta := reading.TemperatureF - prev.TemperatureF
	if delta < 0 {
		delta = -delta
	}
	if delta >= 5 {
		return true, fmt.Sprintf("temperature moved %.1f°", delta)
	}
	return false, "unchanged since last delivery"
}
