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

const defaultNWSBaseURL = "https://api.weather.gov"

// nwsClient talks to the National Weather Service API: the government shape.
// No API key; the API only asks for an identifying User-Agent. Conditions and
// forecasts need a gridpoint lookup first (/points/{lat},{lon}), which is
// cached per client since gridpoints never move.
type nwsClient struct {
	httpClient *http.Client
	baseURL    string
	userAgent  string
	alertCodes []string
	geocoder   domain.Geocoder
	logger     *slog.Logger

	points map[string]nwsPointProperties // keyed by "lat,lon"
}

func newNWSClient(cfg Config, geocoder domain.Geocoder, logger *slog.Logger) *nwsClient {
	base := cfg.BaseURL
	if base == "" {
		base = defaultNWSBaseURL
	}
	return &nwsClient{
		httpClient: &http.Client{Timeout: cfg.Timeout},
		baseURL:    base,
		userAgent:  cfg.UserAgent,
		alertCodes: cfg.AlertCodes,
		geocoder:   geocoder,
		logger:     logger,
		points:     make(map[string]nwsPointProperties),
	}
}

func (c *nwsClient) Name() string { return "nws" }

func (c *nwsClient) FetchAlerts(ctx context.Context, loc domain.Location) ([]domain.RawAlert, error) {
	coords, err := resolveCoordinates(ctx, loc, c.geocoder)
	if err != nil {
		return nil, err
	}

	params := url.Values{"point": {fmt.Sprintf("%.4f,%.4f", coords.Lat, coords.Lon)}}
	// NWS supports server-side event-code filtering; pass enabled codes through.
	if len(c.alertCodes) > 0 {
		params.Set("code", strings.Join(c.alertCodes, ","))
	}

	var resp nwsAlertResponse
	err = getJSON(ctx, c.httpClient, c.userAgent, "nws alerts", c.baseURL+"/alerts/active?"+params.Encode(), &resp)
	if err == errNoData {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	alerts := make([]domain.RawAlert, 0, len(resp.Features))
	for _, f := range resp.Features {
		props := f.Properties
		alerts = append(alerts, domain.RawAlert{
			Shape:  domain.ShapeGovernment,
			Source: c.Name(),
			Government: &domain.GovernmentAlert{
				ID:          props.ID,
				Event:       props.Event,
				Headline:    props.Headline,
				Description: props.Description,
				AreaDesc:    props.AreaDesc,
				Certainty:   props.Certainty,
				Urgency:     props.Urgency,
				Onset:       props.Onset,
				Ends:        props.Ends,
				Sent:        props.Sent,
			},
		})
	}
	return alerts, nil
}

func (c *nwsClient) FetchConditions(ctx context.Context, loc domain.Location) (domain.ConditionReading, error) {
	point, err := c.lookupPoint(ctx, loc)
	if err != nil {
		return domain.ConditionReading{}, err
	}

	var stations nwsStationsResponse
	err = getJSON(ctx, c.httpClient, c.userAgent, "nws stations", point.ObservationStations, &stations)
	if err == errNoData || (err == nil && len(stations.Features) == 0) {
		return domain.ConditionReading{}, domain.NewProviderError("nws stations", 0, "no observation stations for location")
	}
	if err != nil {
		return domain.ConditionReading{}, err
	}

	stationURL := stations.Features[0].ID
	var obs nwsObservationResponse
	err = getJSON(ctx, c.httpClient, c.userAgent, "nws observation", stationURL+"/observations/latest", &obs)
	if err == errNoData {
		return domain.ConditionReading{}, domain.NewProviderError("nws observation", 0, "no recent observation")
	}
	if err != nil {
		return domain.ConditionReading{}, err
	}

	p := obs.Properties
	reading := domain.ConditionReading{
		TemperatureF:    celsiusToF(p.Temperature.Value),
		FeelsLikeF:      celsiusToF(firstNonNil(p.HeatIndex.Value, p.WindChill.Value, p.Temperature.Value)),
		HumidityPct:     deref(p.RelativeHumidity.Value),
		WindSpeedMPH:    kmhToMPH(deref(p.WindSpeed.Value)),
		WindDirection:   compassFromDegrees(p.WindDirection.Value),
		RainInches:      metersToInches(deref(p.PrecipitationLastHour.Value)),
		VisibilityMiles: metersToMiles(deref(p.Visibility.Value)),
		Description:     p.TextDescription,
		LocationID:      loc.ID,
		Source:          c.Name(),
	}
	if ts := domain.ParseTimestamp(p.Timestamp); ts != nil {
		reading.ObservedAt = *ts
	}
	return reading, nil
}

func (c *nwsClient) FetchForecast(ctx context.Context, loc domain.Location) ([]domain.ForecastPeriod, error) {
	point, err := c.lookupPoint(ctx, loc)
	if err != nil {
		return nil, err
	}

	var resp nwsForecastResponse
	err = getJSON(ctx, c.httpClient, c.userAgent, "nws forecast", point.Forecast, &resp)
	if err == errNoData {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	periods := make([]domain.ForecastPeriod, 0, len(resp.Properties.Periods))
	for _, p := range resp.Properties.Periods {
		fp := domain.ForecastPeriod{
			Name:          p.Name,
			Description:   p.DetailedForecast,
			WindDirection: p.WindDirection,
			PrecipChance:  deref(p.ProbabilityOfPrecipitation.Value),
		}
		if p.IsDaytime {
			fp.HighTempF = float64(p.Temperature)
		} else {
			fp.LowTempF = float64(p.Temperature)
		}
		periods = append(periods, fp)
	}
	return periods, nil
}

// lookupPoint resolves a location's gridpoint metadata, caching per client.
func (c *nwsClient) lookupPoint(ctx context.Context, loc domain.Location) (nwsPointProperties, error) {
	coords, err := resolveCoordinates(ctx, loc, c.geocoder)
	if err != nil {
		return nwsPointProperties{}, err
	}
	key := fmt.Sprintf("%.4f,%.4f", coords.Lat, coords.Lon)
	if p, ok := c.points[key]; ok {
		return p, nil
	}

	var resp nwsPointResponse
	err = getJSON(ctx, c.httpClient, c.userAgent, "nws points", c.baseURL+"/points/"+key, &resp)
	if err == errNoData {
		return nwsPointProperties{}, domain.NewProviderError("nws points", 404, "location outside NWS coverage")
	}
	if err != nil {
		return nwsPointProperties{}, err
	}
	c.points[key] = resp.Properties
	return resp.Properties, nil
}

// NWS wire types. Values are SI units wrapped in quantity objects; nulls are
// common for sensors a station lacks.

type nwsAlertResponse struct {
	Features []struct {
		Properties struct {
			ID          string `json:"id"`
			Event       string `json:"event"`
			Headline    string `json:"headline"`
			Description string `json:"description"`
			AreaDesc    string `json:"areaDesc"`
			Certainty   string `json:"certainty"`
			Urgency     string `json:"urgency"`
			Onset       any    `json:"onset"`
			Ends        any    `json:"ends"`
			Sent        any    `json:"sent"`
		} `json:"properties"`
	} `json:"features"`
}

type nwsPointResponse struct {
	Properties nwsPointProperties `json:"properties"`
}

type nwsPointProperties struct {
	Forecast            string `json:"forecast"`
	ForecastHourly      string `json:"forecastHourly"`
	ObservationStations string `json:"observationStations"`
}

type nwsStationsResponse struct {
	Features []struct {
		ID string `json:"id"`
	} `json:"features"`
}

type nwsQuantity struct {
	Value *float64 `json:"value"`
}

type nwsObservationResponse struct {
	Properties struct {
		Timestamp             string      `json:"timestamp"`
		TextDescription       string      `json:"textDescription"`
		Temperature           nwsQuantity `json:"temperature"`
		HeatIndex             nwsQuantity `json:"heatIndex"`
		WindChill             nwsQuantity `json:"windChill"`
		RelativeHumidity      nwsQuantity `json:"relativeHumidity"`
		WindSpeed             nwsQuantity `json:"windSpeed"`
		WindDirection         nwsQuantity `json:"windDirection"`
		Visibility            nwsQuantity `json:"visibility"`
		PrecipitationLastHour nwsQuantity `json:"precipitationLastHour"`
	} `json:"properties"`
}

type nwsForecastResponse struct {
	Properties struct {
		Periods []struct {
			Name                       string      `json:"name"`
			Temperature                int         `json:"temperature"`
			IsDaytime                  bool        `json:"isDaytime"`
			WindSpeed                  string      `json:"windSpeed"`
			WindDirection              string      `json:"windDirection"`
			DetailedForecast           string      `json:"detailedForecast"`
			ProbabilityOfPrecipitation nwsQuantity `json:"probabilityOfPrecipitation"`
		} `json:"periods"`
	} `json:"properties"`
}

// Unit helpers. NWS observations are SI: °C, km/h, meters.

func celsiusToF(c *float64) float64 {
	if c == nil {
		return 0
	}
	return *c*9/5 + 32
}

func kmhToMPH(kmh float64) float64 { return kmh * 0.621371 }

func metersToMiles(m float64) float64 { return m / 1609.344 }

func metersToInches(m float64) float64 { return m * 39.3701 }

func deref(v *float64) float64 {
	if v == nil {
		return 0
	}
	return *v
}

func firstNonNil(vals ...*float64) *float64 {
	for _, v := range vals {
		if v != nil {
			return v
		}
	}
	return nil
}

var compassPoints = []string{"N", "NNE", "NE", "ENE", "E", "ESE", "SE", "SSE", "S", "SSW", "SW", "WSW", "W", "WNW", "NW", "NNW"}

func compassFromDegrees(deg *float64) string {
	if deg == nil {
		return ""
	}
	idx := int((*deg+11.25)/22.5) % len(compassPoints)
	if idx < 0 {
		idx += len(compassPoints)
	}
	return compassPoints[idx]
}
