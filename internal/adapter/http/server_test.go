package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/weather-alert-relay/internal/adapter/http"
	"github.com/couchcryptid/weather-alert-relay/internal/domain"
	"github.com/couchcryptid/weather-alert-relay/internal/pipeline"
	"github.com/couchcryptid/weather-alert-relay/internal/store"
)

// --- mocks ---

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockRunner struct {
	summary pipeline.Summary
	err     error
	kinds   []string
}

func (m *mockRunner) RunAlertCycle(_ context.Context) (pipeline.Summary, error) {
	m.kinds = append(m.kinds, pipeline.KindAlerts)
	return m.summary, m.err
}

func (m *mockRunner) RunConditionsCycle(_ context.Context) (pipeline.Summary, error) {
	m.kinds = append(m.kinds, pipeline.KindConditions)
	return m.summary, m.err
}

func (m *mockRunner) RunForecastCycle(_ context.Context) (pipeline.Summary, error) {
	m.kinds = append(m.kinds, pipeline.KindForecast)
	return m.summary, m.err
}

type mockSchedule struct {
	applies int
	err     error
}

func (m *mockSchedule) Apply(_ context.Context) error {
	m.applies++
	return m.err
}

type mockLedger struct {
	cleared []string
}

func (m *mockLedger) ClearForLocation(_ context.Context, locationID string) error {
	m.cleared = append(m.cleared, locationID)
	return nil
}

// --- fixture ---

type fixture struct {
	srv       *httpadapter.Server
	runner    *mockRunner
	schedule  *mockSchedule
	ledger    *mockLedger
	locations *store.LocationStore
	settings  *store.SettingsStore
	states    *store.ConditionStateStore
	logs      *store.LogStore
}

func newFixture(readyErr error) *fixture {
	kv := store.NewMemoryStore()
	f := &fixture{
		runner:    &mockRunner{},
		schedule:  &mockSchedule{},
		ledger:    &mockLedger{},
		locations: store.NewLocationStore(kv),
		settings:  store.NewSettingsStore(kv),
		states:    store.NewConditionStateStore(kv),
		logs:      store.NewLogStore(kv, 10),
	}
	f.srv = httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, f.runner, f.schedule, f.ledger, httpadapter.Stores{
		Settings:   f.settings,
		Locations:  f.locations,
		AlertTypes: store.NewAlertTypeStore(kv),
		States:     f.states,
		Logs:       f.logs,
	}, slog.Default())
	return f
}

func (f *fixture) do(method, path string, body any) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, reader)
	f.srv.ServeHTTP(rec, req)
	return rec
}

// --- tests ---

func TestHealthzReturns200(t *testing.T) {
	rec := newFixture(nil).do(http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyz(t *testing.T) {
	t.Run("ready", func(t *testing.T) {
		rec := newFixture(nil).do(http.MethodGet, "/readyz", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("not ready", func(t *testing.T) {
		rec := newFixture(fmt.Errorf("no cycle has completed yet")).do(http.MethodGet, "/readyz", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "not ready", body["status"])
	})
}

func TestRunEndpoint(t *testing.T) {
	t.Run("runs the named cycle", func(t *testing.T) {
		f := newFixture(nil)
		f.runner.summary = pipeline.Summary{Kind: pipeline.KindAlerts, Sent: 3}

		rec := f.do(http.MethodPost, "/api/run/alerts", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, []string{pipeline.KindAlerts}, f.runner.kinds)

		var sum pipeline.Summary
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
		assert.Equal(t, 3, sum.Sent)
	})

	t.Run("conditions and forecast kinds route", func(t *testing.T) {
		f := newFixture(nil)
		f.do(http.MethodPost, "/api/run/conditions", nil)
		f.do(http.MethodPost, "/api/run/forecast", nil)
		assert.Equal(t, []string{pipeline.KindConditions, pipeline.KindForecast}, f.runner.kinds)
	})

	t.Run("unknown kind is 404", func(t *testing.T) {
		rec := newFixture(nil).do(http.MethodPost, "/api/run/mystery", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("in-flight cycle is 409", func(t *testing.T) {
		f := newFixture(nil)
		f.runner.err = pipeline.ErrCycleInFlight

		rec := f.do(http.MethodPost, "/api/run/alerts", nil)
		assert.Equal(t, http.StatusConflict, rec.Code)
	})

	t.Run("cycle failure is 500 with summary", func(t *testing.T) {
		f := newFixture(nil)
		f.runner.err = fmt.Errorf("build provider: no key")
		f.runner.summary = pipeline.Summary{Kind: pipeline.KindAlerts}

		rec := f.do(http.MethodPost, "/api/run/alerts", nil)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Contains(t, body["error"], "build provider")
		assert.NotNil(t, body["summary"])
	})
}

func TestSettingsEndpoints(t *testing.T) {
	t.Run("get returns defaults", func(t *testing.T) {
		rec := newFixture(nil).do(http.MethodGet, "/api/settings", nil)
		assert.Equal(t, http.StatusOK, rec.Code)

		var settings store.Settings
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
		assert.Equal(t, "nws", settings.Provider)
	})

	t.Run("patch merges and reapplies the schedule", func(t *testing.T) {
		f := newFixture(nil)
		rec := f.do(http.MethodPatch, "/api/settings", map[string]any{
			"webhook_url":      "https://hooks.example.com/relay",
			"schedule_enabled": true,
		})
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 1, f.schedule.applies)

		var settings store.Settings
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &settings))
		assert.Equal(t, "https://hooks.example.com/relay", settings.WebhookURL)
		assert.True(t, settings.ScheduleEnabled)
		assert.Equal(t, "nws", settings.Provider, "untouched fields keep defaults")
	})

	t.Run("patch retunes log retention without a restart", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(nil)
		for i := 0; i < 5; i++ {
			require.NoError(t, f.logs.Append(ctx, store.LogInfo, "run", fmt.Sprintf("entry %d", i), nil))
		}

		rec := f.do(http.MethodPatch, "/api/settings", map[string]any{"max_log_entries": 2})
		require.Equal(t, http.StatusOK, rec.Code)

		// The tightened bound applies on the very next append.
		require.NoError(t, f.logs.Append(ctx, store.LogInfo, "run", "entry 5", nil))
		entries, err := f.logs.List(ctx)
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.Equal(t, "entry 5", entries[1].Message)
	})

	t.Run("patch with bad schedule settings is 422", func(t *testing.T) {
		f := newFixture(nil)
		f.schedule.err = fmt.Errorf("frequency must be 1-1440 minutes")

		rec := f.do(http.MethodPatch, "/api/settings", map[string]any{"schedule_frequency_minutes": 0})
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	})

	t.Run("malformed body is 400", func(t *testing.T) {
		f := newFixture(nil)
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPatch, "/api/settings", bytes.NewReader([]byte("{nope")))
		f.srv.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestLocationEndpoints(t *testing.T) {
	t.Run("add list update delete", func(t *testing.T) {
		f := newFixture(nil)

		rec := f.do(http.MethodPost, "/api/locations", domain.Location{
			Name: "Austin", PostalCode: "78701", Enabled: true,
		})
		require.Equal(t, http.StatusCreated, rec.Code)

		var created domain.Location
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
		assert.NotEmpty(t, created.ID)

		rec = f.do(http.MethodGet, "/api/locations", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		var listed []domain.Location
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
		require.Len(t, listed, 1)

		created.Name = "Austin Downtown"
		rec = f.do(http.MethodPut, "/api/locations/"+created.ID, created)
		assert.Equal(t, http.StatusOK, rec.Code)

		rec = f.do(http.MethodDelete, "/api/locations/"+created.ID, nil)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		// Deleting a location clears its dedup history.
		assert.Equal(t, []string{created.ID}, f.ledger.cleared)
	})

	t.Run("delete clears the conditions snapshot", func(t *testing.T) {
		ctx := context.Background()
		f := newFixture(nil)

		rec := f.do(http.MethodPost, "/api/locations", domain.Location{
			Name: "Austin", PostalCode: "78701", Enabled: true,
		})
		require.Equal(t, http.StatusCreated, rec.Code)
		var created domain.Location
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

		require.NoError(t, f.states.Set(ctx, created.ID, domain.ConditionState{
			Level:        domain.LevelGood,
			TemperatureF: 70,
		}))

		rec = f.do(http.MethodDelete, "/api/locations/"+created.ID, nil)
		require.Equal(t, http.StatusNoContent, rec.Code)

		st, err := f.states.Get(ctx, created.ID)
		require.NoError(t, err)
		assert.Nil(t, st, "deleted location leaves no snapshot behind")
	})

	t.Run("add without postal code or coordinates is 400", func(t *testing.T) {
		rec := newFixture(nil).do(http.MethodPost, "/api/locations", domain.Location{Name: "Nowhere"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("empty list is an empty array", func(t *testing.T) {
		rec := newFixture(nil).do(http.MethodGet, "/api/locations", nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, "[]", rec.Body.String())
	})

	t.Run("unknown id is 404", func(t *testing.T) {
		f := newFixture(nil)
		rec := f.do(http.MethodDelete, "/api/locations/ghost", nil)
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.Empty(t, f.ledger.cleared, "no cascade on a failed delete")
	})
}

func TestAlertTypeEndpoints(t *testing.T) {
	f := newFixture(nil)

	rec := f.do(http.MethodPost, "/api/alert-types", domain.AlertType{
		Code: "TOR", Name: "Tornado Warning", Enabled: true,
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var created domain.AlertType
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.NotEmpty(t, created.ID)

	rec = f.do(http.MethodGet, "/api/alert-types", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(http.MethodDelete, "/api/alert-types/"+created.ID, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestLogsEndpoint(t *testing.T) {
	rec := newFixture(nil).do(http.MethodGet, "/api/logs", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	rec := newFixture(nil).do(http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}
