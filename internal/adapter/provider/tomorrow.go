package provider

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/couchcryptid/weather-alert-relay/internal/domain"
)

const defaultTomorrowBaseURL = "https://api.tomorrow.io/v4"

// tomorrowClient talks to the commercial API: the commercial-tag shape.
// It carries its own geocoding endpoint, so postal codes are resolved through
// the provider rather than the shared geocoder.
type tomorrowClient struct {
	httpClient    *http.Client
	baseURL       string
	apiKey        string
	postalCountry string
	userAgent     string
	logger        *slog.Logger
}

func newTomorrowClient(cfg Config, logger *slog.Logger) *tomorrowClient {
	base := cfg.BaseURL
	if base == "" {
		base = defaultTomorrowBaseURL
	}
	return &tomorrowClient{
		httpClient:    &http.Client{Timeout: cfg.Timeout},
		baseURL:       base,
		apiKey:        cfg.APIKey,
		postalCountry: cfg.PostalCountry,
		userAgent:     cfg.UserAgent,
		logger:        logger,
	}
}

func (c *tomorrowClient) Name() string { return "tomorrow" }

// locationParam renders the location the way the API wants it: "lat,lon",
// or the postal code qualified with the configured country (the API geocodes
// those server-side and needs the country to disambiguate).
func (c *tomorrowClient) locationParam(loc domain.Location) (string, error) {
	if loc.HasCoordinates() {
		return fmt.Sprintf("%.4f,%.4f", *loc.Lat, *loc.Lon), nil
	}
	if loc.PostalCode != "" {
		return loc.PostalCode + " " + c.postalCountry, nil
	}
	return "", domain.NewConfigurationError("resolve location",
		fmt.Sprintf("location %s has neither coordinates nor a postal code", loc.ID))
}

func (c *tomorrowClient) query(loc string) url.Values {
	return url.Values{
		"location": {loc},
		"apikey":   {c.apiKey},
	}
}

func (c *tomorrowClient) FetchAlerts(ctx context.Context, loc domain.Location) ([]domain.RawAlert, error) {
	locParam, err := c.locationParam(loc)
	if err != nil {
		return nil, err
	}

	var resp tomorrowAlertResponse
	err = getJSON(ctx, c.httpClient, c.userAgent, "tomorrow alerts",
		c.baseURL+"/events?"+c.query(locParam).Encode(), &resp)
	if err == errNoData {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	alerts := make([]domain.RawAlert, 0, len(resp.Data.Events))
	for _, ev := range resp.Data.Events {
		alerts = append(alerts, domain.RawAlert{
			Shape:  domain.ShapeCommercialTag,
			Source: c.Name(),
			Commercial: &domain.CommercialTagAlert{
				ID:          ev.ID,
				Title:       ev.EventValues.Title,
				Description: ev.EventValues.Description,
				Tags:        ev.InsightTags,
				Area:        ev.EventValues.Location,
				Certainty:   ev.Certainty,
				Urgency:     ev.Urgency,
				StartsAt:    ev.StartTime,
				EndsAt:      ev.EndTime,
				IssuedAt:    ev.UpdateTime,
			},
		})
	}
	return alerts, nil
}

func (c *tomorrowClient) FetchConditions(ctx context.Context, loc domain.Location) (domain.ConditionReading, error) {
	locParam, err := c.locationParam(loc)
	if err != nil {
		return domain.ConditionReading{}, err
	}

	params := c.query(locParam)
	params.Set("units", "imperial")

	var resp tomorrowRealtimeResponse
	err = getJSON(ctx, c.httpClient, c.userAgent, "tomorrow realtime",
		c.baseURL+"/weather/realtime?"+params.Encode(), &resp)
	if err == errNoData {
		return domain.ConditionReading{}, domain.NewProviderError("tomorrow realtime", 404, "no data for location")
	}
	if err != nil {
		return domain.ConditionReading{}, err
	}

	v := resp.Data.Values
	reading := domain.ConditionReading{
		TemperatureF:    v.Temperature,
		FeelsLikeF:      v.TemperatureApparent,
		HumidityPct:     v.Humidity,
		WindSpeedMPH:    v.WindSpeed,
		WindDirection:   compassFromDegrees(&v.WindDirection),
		RainInches:      v.RainAccumulation,
		SnowInches:      v.SnowAccumulation,
		VisibilityMiles: v.Visibility,
		Description:     weatherCodeDescription(v.WeatherCode),
		LocationID:      loc.ID,
		Source:          c.Name(),
	}
	if ts := domain.ParseTimestamp(resp.Data.Time); ts != nil {
		reading.ObservedAt = *ts
	}
	return reading, nil
}

func (c *tomorrowClient) FetchForecast(ctx context.Context, loc domain.Location) ([]domain.ForecastPeriod, error) {
	locParam, err := c.locationParam(loc)
	if err != nil {
		return nil, err
	}

	params := c.query(locParam)
	params.Set("units", "imperial")
	params.Set("timesteps", "1d")

	var resp tomorrowForecastResponse
	err = getJSON(ctx, c.httpClient, c.userAgent, "tomorrow forecast",
		c.baseURL+"/weather/forecast?"+params.Encode(), &resp)
	if err == errNoData {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	periods := make([]domain.ForecastPeriod, 0, len(resp.Timelines.Daily))
	for _, d := range resp.Timelines.Daily {
		periods = append(periods, domain.ForecastPeriod{
			Name:         d.Time,
			HighTempF:    d.Values.TemperatureMax,
			LowTempF:     d.Values.TemperatureMin,
			Description:  weatherCodeDescription(d.Values.WeatherCodeMax),
			PrecipChance: d.Values.PrecipitationProbabilityAvg,
			WindSpeedMPH: d.Values.WindSpeedAvg,
		})
	}
	return periods, nil
}

// Commercial wire types.

type tomorrowAlertResponse struct {
	Data struct {
		Events []struct {
			ID          string   `json:"id"`
			InsightTags []string `json:"insightTags"`
			Certainty   string   `json:"certainty"`
			Urgency     string   `json:"urgency"`
			StartTime   any      `json:"startTime"`
			EndTime     any      `json:"endTime"`
			UpdateTime  any      `json:"updateTime"`
			EventValues struct {
				Title       string `json:"title"`
				Description string `json:"description"`
				Location    string `json:"location"`
			} `json:"eventValues"`
		} `json:"events"`
	} `json:"data"`
}

type tomorrowRealtimeResponse struct {
	Data struct {
		Time   string `json:"time"`
		Values struct {
			Temperature         float64 `json:"temperature"`
			TemperatureApparent float64 `json:"temperatureApparent"`
			Humidity            float64 `json:"humidity"`
			WindSpeed           float64 `json:"windSpeed"`
			WindDirection       float64 `json:"windDirection"`
			RainAccumulation    float64 `json:"rainAccumulation"`
			SnowAccumulation    float64 `json:"snowAccumulation"`
			Visibility          float64 `json:"visibility"`
			WeatherCode         int     `json:"weatherCode"`
		} `json:"values"`
	} `json:"data"`
}

type tomorrowForecastResponse struct {
	Timelines struct {
		Daily []struct {
			Time   string `json:"time"`
			Values struct {
				TemperatureMax              float64 `json:"temperatureMax"`
				TemperatureMin              float64 `json:"temperatureMin"`
				WeatherCodeMax              int     `json:"weatherCodeMax"`
				PrecipitationProbabilityAvg float64 `json:"precipitationProbabilityAvg"`
				WindSpeedAvg                float64 `json:"windSpeedAvg"`
			} `json:"values"`
		} `json:"daily"`
	} `json:"timelines"`
}

// weatherCodeDescription maps the commercial numeric weather codes to the
// free-text vocabulary the classifier keys on.
func weatherCodeDescription(code int) string {
	switch code {
	case 1000, 1100:
		return "clear"
	case 1101, 1102, 1001:
		return "cloudy"
	case 2000, 2100:
		return "fog"
	case 4000, 4001, 4200, 4201:
		return "rain"
	case 5000, 5001, 5100, 5101:
		return "snow"
	case 6000, 6001, 6200, 6201, 7000, 7101, 7102:
		return "freezing rain"
	case 8000:
		return "thunderstorm"
	default:
		return "unknown"
	}
}
