package geocode

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-alert-relay/internal/domain"
)

const testToken = "test-token"

func testClient(baseURL string) *Client {
	return &Client{
		token:      testToken,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		userAgent:  "weather-alert-relay-test",
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestClient_GeocodePostal_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.URL.Path, "78701")
		assert.Equal(t, "1", r.URL.Query().Get("limit"))
		assert.Equal(t, "postcode", r.URL.Query().Get("types"))
		assert.Equal(t, testToken, r.URL.Query().Get("access_token"))

		resp := response{
			Features: []feature{
				{Center: []float64{-97.7431, 30.2672}, Text: "78701"},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	coords, err := c.GeocodePostal(context.Background(), "78701")
	require.NoError(t, err)

	// Response center is lon,lat; coordinates come back lat,lon.
	assert.Equal(t, 30.2672, coords.Lat)
	assert.Equal(t, -97.7431, coords.Lon)
}

func TestClient_GeocodePostal_NotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(response{}))
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	coords, err := c.GeocodePostal(context.Background(), "00000")
	require.NoError(t, err)
	assert.Zero(t, coords.Lat)
	assert.Zero(t, coords.Lon)
}

func TestClient_GeocodePostal_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.GeocodePostal(context.Background(), "78701")
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindRateLimited))
}

func TestClient_GeocodePostal_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := testClient(srv.URL)
	_, err := c.GeocodePostal(context.Background(), "78701")
	require.Error(t, err)
	assert.True(t, domain.IsKind(err, domain.KindProvider))
}
