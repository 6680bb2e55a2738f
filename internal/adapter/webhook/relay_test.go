package webhook_test

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-alert-relay/internal/adapter/webhook"
	"github.com/couchcryptid/weather-alert-relay/internal/domain"
)

func TestNew_URLValidation(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantErr bool
	}{
		{"https URL", "https://example.com/hook", false},
		{"http URL", "http://localhost:9000/hook", false},
		{"empty", "", true},
		{"not a URL", "not-a-url", true},
		{"missing host", "https://", true},
		{"wrong scheme", "ftp://example.com/hook", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := webhook.New(tc.url, time.Second, slog.Default())
			if tc.wantErr {
				require.Error(t, err)
				assert.True(t, domain.IsKind(err, domain.KindConfiguration))
			} else {
				require.NoError(t, err)
			}
		})
	}
}

func TestRelay_Deliver(t *testing.T) {
	t.Run("posts JSON", func(t *testing.T) {
		var gotBody map[string]any
		var gotContentType string
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotContentType = r.Header.Get("Content-Type")
			require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		r, err := webhook.New(srv.URL, time.Second, slog.Default())
		require.NoError(t, err)

		err = r.Deliver(context.Background(), webhook.Record{
			ID:      "a1",
			Payload: map[string]string{"event": "Tornado Warning"},
		})
		require.NoError(t, err)
		assert.Equal(t, "application/json", gotContentType)
		assert.Equal(t, "Tornado Warning", gotBody["event"])
	})

	t.Run("non-2xx is a delivery error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			http.Error(w, "nope", http.StatusBadGateway)
		}))
		defer srv.Close()

		r, err := webhook.New(srv.URL, time.Second, slog.Default())
		require.NoError(t, err)

		err = r.Deliver(context.Background(), webhook.Record{ID: "a1", Payload: "x"})
		require.Error(t, err)
		assert.True(t, domain.IsKind(err, domain.KindDelivery))

		var de *domain.Error
		require.ErrorAs(t, err, &de)
		assert.Equal(t, http.StatusBadGateway, de.Status)
	})

	t.Run("transport failure is a network error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
		srv.Close() // connection refused from here on

		r, err := webhook.New(srv.URL, time.Second, slog.Default())
		require.NoError(t, err)

		err = r.Deliver(context.Background(), webhook.Record{ID: "a1", Payload: "x"})
		require.Error(t, err)
		assert.True(t, domain.IsKind(err, domain.KindNetwork))
	})
}

func TestRelay_DeliverBatch(t *testing.T) {
	t.Run("sequential with per-item outcomes", func(t *testing.T) {
		var calls atomic.Int64
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			// Fail the second item only.
			if calls.Add(1) == 2 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		r, err := webhook.New(srv.URL, time.Second, slog.Default())
		require.NoError(t, err)

		result := r.DeliverBatch(context.Background(), []webhook.Record{
			{ID: "a1", Payload: "x"},
			{ID: "a2", Payload: "y"},
			{ID: "a3", Payload: "z"},
		})

		assert.Equal(t, 2, result.Sent)
		assert.Equal(t, 1, result.Failed)
		require.Len(t, result.Outcomes, 3)
		assert.True(t, result.Outcomes[0].Success)
		assert.False(t, result.Outcomes[1].Success)
		assert.Equal(t, http.StatusInternalServerError, result.Outcomes[1].Status)
		assert.True(t, result.Outcomes[2].Success)

		// SentIDs is exactly the successful subset, in order.
		assert.Equal(t, []string{"a1", "a3"}, result.SentIDs())
	})

	t.Run("cancelled context stops the batch", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))
		defer srv.Close()

		r, err := webhook.New(srv.URL, time.Second, slog.Default())
		require.NoError(t, err)

		ctx, cancel := context.WithCancel(context.Background())

		// Cancel after the first delivery; the inter-item delay observes it.
		result := func() webhook.BatchResult {
			defer cancel()
			return r.DeliverBatch(ctx, []webhook.Record{{ID: "a1", Payload: "x"}})
		}()
		assert.Equal(t, 1, result.Sent)

		result = r.DeliverBatch(ctx, []webhook.Record{
			{ID: "b1", Payload: "x"},
			{ID: "b2", Payload: "y"},
		})
		// First item still posts (no delay before it), second is cut off by
		// the cancelled delay... unless delivery itself fails first.
		assert.LessOrEqual(t, len(result.Outcomes), 2)
	})

	t.Run("empty batch", func(t *testing.T) {
		r, err := webhook.New("https://example.com/hook", time.Second, slog.Default())
		require.NoError(t, err)

		result := r.DeliverBatch(context.Background(), nil)
		assert.Zero(t, result.Sent)
		assert.Zero(t, result.Failed)
		assert.Empty(t, result.Outcomes)
		assert.Empty(t, result.SentIDs())
	})
}
