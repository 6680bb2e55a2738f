// Package geocode resolves postal codes to coordinates for providers whose
// APIs only accept lat/lon pairs.
package geocode

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/weather-alert-relay/internal/domain"
)

// Client implements domain.Geocoder using the Mapbox Geocoding API with a
// postcode-restricted query.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	userAgent  string
	logger     *slog.Logger
}

// NewClient creates a geocoding client.
func NewClient(token, userAgent string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL:   "https://api.mapbox.com/geocoding/v5/mapbox.places",
		userAgent: userAgent,
		logger:    logger,
	}
}

// GeocodePostal resolves a postal code to coordinates. A postal code the API
// does not know yields zero coordinates and a nil error.
func (c *Client) GeocodePostal(ctx context.Context, postalCode string) (domain.Coordinates, error) {
	u := fmt.Sprintf("%s/%s.json", c.baseURL, url.PathEscape(postalCode))
	params := url.Values{
		"access_token": {c.token},
		"limit":        {"1"},
		"types":        {"postcode"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+"?"+params.Encode(), nil)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Coordinates{}, domain.NewNetworkError("geocode postal", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return domain.Coordinates{}, domain.NewRateLimitedError("geocode postal")
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return domain.Coordinates{}, domain.NewProviderError("geocode postal", resp.StatusCode, string(body))
	}

	var geoResp response
	if err := json.NewDecoder(resp.Body).Decode(&geoResp); err != nil {
		return domain.Coordinates{}, fmt.Errorf("decode response: %w", err)
	}

	if len(geoResp.Features) == 0 {
		c.logger.Warn("postal code not found", "postal_code", postalCode)
		return domain.Coordinates{}, nil
	}

	f := geoResp.Features[0]
	if len(f.Center) != 2 {
		return domain.Coordinates{}, nil
	}
	// Mapbox uses lon,lat order.
	return domain.Coordinates{Lat: f.Center[1], Lon: f.Center[0]}, nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center []float64 `json:"center"` // [lon, lat]
	Text   string    `json:"text"`
}
