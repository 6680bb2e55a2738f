// Package provider fetches raw alerts, current conditions, and short-range
// forecasts from the supported upstream weather APIs. Each client tags its
// raw alerts with the provider shape so normalization never sniffs fields.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/weather-alert-relay/internal/domain"
)

// ErrNoData distinguishes "upstream has nothing for this location" (HTTP 404)
// from real failures; callers treat it as an empty result.
var errNoData = fmt.Errorf("no data")

// Client is one upstream weather source.
type Client interface {
	Name() string
	FetchAlerts(ctx context.Context, loc domain.Location) ([]domain.RawAlert, error)
	FetchConditions(ctx context.Context, loc domain.Location) (domain.ConditionReading, error)
	FetchForecast(ctx context.Context, loc domain.Location) ([]domain.ForecastPeriod, error)
}

// Config selects and configures a provider client.
type Config struct {
	Provider      string // "nws", "tomorrow", or "aeris"
	APIKey        string
	BaseURL       string   // override for tests; empty means the provider default
	AlertCodes    []string // server-side filter for providers that support it
	PostalCountry string   // country appended to postal codes for providers that geocode server-side; defaults to "US"
	UserAgent     string
	Timeout       time.Duration
}

// New builds the client named by cfg.Provider. Unknown provider names and
// missing credentials are configuration errors, never retried automatically.
func New(cfg Config, geocoder domain.Geocoder, logger *slog.Logger) (Client, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 20 * time.Second
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "weather-alert-relay/1.0"
	}
	if cfg.PostalCountry == "" {
		cfg.PostalCountry = "US"
	}
	switch cfg.Provider {
	case "nws":
		return newNWSClient(cfg, geocoder, logger), nil
	case "tomorrow":
		if cfg.APIKey == "" {
			return nil, domain.NewConfigurationError("provider", "tomorrow requires an API key")
		}
		return newTomorrowClient(cfg, logger), nil
	case "aeris":
		if cfg.APIKey == "" {
			return nil, domain.NewConfigurationError("provider", "aeris requires an API key")
		}
		return newAerisClient(cfg, logger), nil
	default:
		return nil, domain.NewConfigurationError("provider", fmt.Sprintf("unknown provider %q", cfg.Provider))
	}
}

// resolveCoordinates applies the location policy: prefer lat/lon, fall back
// to geocoding the postal code, fail with a configuration error when neither
// is usable.
func resolveCoordinates(ctx context.Context, loc domain.Location, geocoder domain.Geocoder) (domain.Coordinates, error) {
	if loc.HasCoordinates() {
		return domain.Coordinates{Lat: *loc.Lat, Lon: *loc.Lon}, nil
	}
	if loc.PostalCode == "" {
		return domain.Coordinates{}, domain.NewConfigurationError("resolve location",
			fmt.Sprintf("location %s has neither coordinates nor a postal code", loc.ID))
	}
	if geocoder == nil {
		return domain.Coordinates{}, domain.NewConfigurationError("resolve location",
			"no geocoder configured for postal-code lookup")
	}
	coords, err := geocoder.GeocodePostal(ctx, loc.PostalCode)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("geocode %s: %w", loc.PostalCode, err)
	}
	if coords.Lat == 0 && coords.Lon == 0 {
		return domain.Coordinates{}, domain.NewConfigurationError("resolve location",
			fmt.Sprintf("postal code %q could not be resolved", loc.PostalCode))
	}
	return coords, nil
}

// getJSON performs one upstream GET with the shared error policy:
// 404 → errNoData, 429 → RateLimited, other non-2xx → ProviderError carrying
// the upstream description when one is present in the body.
func getJSON(ctx context.Context, client *http.Client, userAgent, op, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return domain.NewNetworkError(op, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return errNoData
	case resp.StatusCode == http.StatusTooManyRequests:
		return domain.NewRateLimitedError(op)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return domain.NewProviderError(op, resp.StatusCode, upstreamDescription(resp.Body))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}

// upstreamDescription extracts an error description from a JSON error body,
// trying the field names the supported providers actually use.
func upstreamDescription(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var parsed struct {
		Detail  string `json:"detail"`
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return string(raw)
	}
	switch {
	case parsed.Detail != "":
		return parsed.Detail
	case parsed.Message != "":
		return parsed.Message
	case parsed.Error != "":
		return parsed.Error
	default:
		return string(raw)
	}
}
