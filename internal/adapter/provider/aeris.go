package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/couchcryptid/weather-alert-relay/internal/domain"
)

const defaultAerisBaseURL = "https://api.aerisapi.com"

// aerisClient talks to the vendor API: the vendor-coded shape with nested
// details/timestamps objects. It accepts postal codes natively in the "p"
// parameter, so no geocoding hop is needed.
type aerisClient struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	userAgent  string
	logger     *slog.Logger
}

func newAerisClient(cfg Config, logger *slog.Logger) *aerisClient {
	base := cfg.BaseURL
	if base == "" {
		base = defaultAerisBaseURL
	}
	return &aerisClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    base,
		apiKey:     cfg.APIKey,
		userAgent:  cfg.UserAgent,
		logger:     logger,
	}
}

func (c *aerisClient) Name() string { return "aeris" }

func (c *aerisClient) place(loc domain.Location) (string, error) {
	if loc.HasCoordinates() {
		return fmt.Sprintf("%.4f,%.4f", *loc.Lat, *loc.Lon), nil
	}
	if loc.PostalCode != "" {
		return loc.PostalCode, nil
	}
	return "", domain.NewConfigurationError("resolve location",
		fmt.Sprintf("location %s has neither coordinates nor a postal code", loc.ID))
}

func (c *aerisClient) endpoint(path, place string) string {
	params := url.Values{
		"p":          {place},
		"client_id":  {"weather-alert-relay"},
		"client_key": {c.apiKey},
	}
	return c.baseURL + path + "?" + params.Encode()
}

func (c *aerisClient) FetchAlerts(ctx context.Context, loc domain.Location) ([]domain.RawAlert, error) {
	place, err := c.place(loc)
	if err != nil {
		return nil, err
	}

	var resp aerisAlertResponse
	err = getJSON(ctx, c.httpClient, c.userAgent, "aeris alerts", c.endpoint("/alerts", place), &resp)
	if err == errNoData {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	// The vendor wraps soft failures in a 200 with success=false; an empty
	// result code is how "no alerts" comes back.
	if !resp.Success {
		if resp.Error.Code == "warn_no_data" {
			return nil, nil
		}
		return nil, domain.NewProviderError("aeris alerts", 0, resp.Error.Description)
	}

	alerts := make([]domain.RawAlert, 0, len(resp.Response))
	for _, r := range resp.Response {
		sigLetter := ""
		if parts := strings.SplitN(r.Details.Type, ".", 2); len(parts) == 2 {
			sigLetter = parts[1]
		}
		alerts = append(alerts, domain.RawAlert{
			Shape:  domain.ShapeVendorCoded,
			Source: c.Name(),
			Vendor: &domain.VendorCodedAlert{
				ID:   r.ID,
				Zone: strings.Join(r.Includes.Zipcodes, ","),
				Details: domain.VendorDetails{
					Type:     r.Details.Type,
					Name:     r.Details.Name,
					Body:     r.Details.Body,
					Severity: sigLetter,
					Priority: r.Details.Priority,
				},
				Timestamps: domain.VendorTimestamps{
					Issued:  r.Timestamps.Issued,
					Begins:  r.Timestamps.Begins,
					Expires: r.Timestamps.Expires,
				},
			},
		})
	}
	return alerts, nil
}

func (c *aerisClient) FetchConditions(ctx context.Context, loc domain.Location) (domain.ConditionReading, error) {
	place, err := c.place(loc)
	if err != nil {
		return domain.ConditionReading{}, err
	}

	var resp aerisObservationResponse
	err = getJSON(ctx, c.httpClient, c.userAgent, "aeris observation", c.endpoint("/observations", place), &resp)
	if err == errNoData {
		return domain.ConditionReading{}, domain.NewProviderError("aeris observation", 404, "no data for location")
	}
	if err != nil {
		return domain.ConditionReading{}, err
	}
	if !resp.Success {
		return domain.ConditionReading{}, domain.NewProviderError("aeris observation", 0, resp.Error.Description)
	}

	ob := resp.Response.Ob
	reading := domain.ConditionReading{
		TemperatureF:    ob.TempF,
		FeelsLikeF:      ob.FeelslikeF,
		HumidityPct:     ob.Humidity,
		WindSpeedMPH:    ob.WindSpeedMPH,
		WindDirection:   ob.WindDir,
		RainInches:      ob.PrecipIN,
		SnowInches:      ob.SnowDepthIN,
		VisibilityMiles: ob.VisibilityMI,
		Description:     ob.Weather,
		LocationID:      loc.ID,
		Source:          c.Name(),
	}
	if ts := domain.ParseTimestamp(ob.Timestamp); ts != nil {
		reading.ObservedAt = *ts
	}
	return reading, nil
}

func (c *aerisClient) FetchForecast(ctx context.Context, loc domain.Location) ([]domain.ForecastPeriod, error) {
	place, err := c.place(loc)
	if err != nil {
		return nil, err
	}

	var resp aerisForecastResponse
	err = getJSON(ctx, c.httpClient, c.userAgent, "aeris forecast", c.endpoint("/forecasts", place), &resp)
	if err == errNoData {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !resp.Success {
		if resp.Error.Code == "warn_no_data" {
			return nil, nil
		}
		return nil, domain.NewProviderError("aeris forecast", 0, resp.Error.Description)
	}

	var periods []domain.ForecastPeriod
	for _, r := range resp.Response {
		for _, p := range r.Periods {
			periods = append(periods, domain.ForecastPeriod{
				Name:          p.DateTimeISO,
				HighTempF:     p.MaxTempF,
				LowTempF:      p.MinTempF,
				Description:   p.Weather,
				PrecipChance:  p.PoP,
				WindSpeedMPH:  p.WindSpeedMPH,
				WindDirection: p.WindDir,
			})
		}
	}
	return periods, nil
}

// Vendor wire types. The API signals soft errors inside a 200 body.

type aerisError struct {
	Code        string `json:"code"`
	Description string `json:"description"`
}

type aerisAlertResponse struct {
	Success  bool       `json:"success"`
	Error    aerisError `json:"error"`
	Response []struct {
		ID      string `json:"id"`
		Details struct {
			Type     string `json:"type"`
			Name     string `json:"name"`
			Body     string `json:"body"`
			Priority any    `json:"priority"`
		} `json:"details"`
		Timestamps struct {
			Issued  any `json:"issued"`
			Begins  any `json:"begins"`
			Expires any `json:"expires"`
		} `json:"timestamps"`
		Includes struct {
			Zipcodes []string `json:"zipcodes"`
		} `json:"includes"`
	} `json:"response"`
}

type aerisObservationResponse struct {
	Success  bool       `json:"success"`
	Error    aerisError `json:"error"`
	Response struct {
		Ob struct {
			Timestamp    any     `json:"timestamp"`
			TempF        float64 `json:"tempF"`
			FeelslikeF   float64 `json:"feelslikeF"`
			Humidity     float64 `json:"humidity"`
			WindSpeedMPH float64 `json:"windSpeedMPH"`
			WindDir      string  `json:"windDir"`
			PrecipIN     float64 `json:"precipIN"`
			SnowDepthIN  float64 `json:"snowDepthIN"`
			VisibilityMI float64 `json:"visibilityMI"`
			Weather      string  `json:"weather"`
		} `json:"ob"`
	} `json:"response"`
}

type aerisForecastResponse struct {
	Success  bool       `json:"success"`
	Error    aerisError `json:"error"`
	Response []struct {
		Periods []struct {
			DateTimeISO  string  `json:"dateTimeISO"`
			MaxTempF     float64 `json:"maxTempF"`
			MinTempF     float64 `json:"minTempF"`
			Weather      string  `json:"weather"`
			PoP          float64 `json:"pop"`
			WindSpeedMPH float64 `json:"windSpeedMPH"`
			WindDir      string  `json:"windDir"`
		} `json:"periods"`
	} `json:"response"`
}
