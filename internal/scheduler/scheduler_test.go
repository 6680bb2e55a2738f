package scheduler_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/weather-alert-relay/internal/scheduler"
)

func TestIntervalSpec(t *testing.T) {
	tests := []struct {
		name     string
		minutes  int
		expected string
		wantErr  bool
	}{
		{"every minute", 1, "* * * * *", false},
		{"every five minutes", 5, "*/5 * * * *", false},
		{"every thirty minutes", 30, "*/30 * * * *", false},
		{"hourly", 60, "0 * * * *", false},
		{"every two hours", 120, "0 */2 * * *", false},
		{"every six hours", 360, "0 */6 * * *", false},
		{"90 minutes falls back to daily", 90, "0 0 * * *", false},
		{"five hours falls back to daily", 300, "0 0 * * *", false},
		{"daily", 1440, "0 0 * * *", false},
		{"zero rejected", 0, "", true},
		{"negative rejected", -5, "", true},
		{"beyond a day rejected", 1441, "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			spec, err := scheduler.IntervalSpec(tc.minutes)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, spec)
		})
	}
}

func TestTimeOfDaySpec(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{"morning", "07:00", "0 7 * * *", false},
		{"midnight", "00:00", "0 0 * * *", false},
		{"last minute", "23:59", "59 23 * * *", false},
		{"afternoon", "14:30", "30 14 * * *", false},
		{"bad hour", "25:00", "", true},
		{"bad minute", "12:60", "", true},
		{"negative", "-1:30", "", true},
		{"not a time", "seven", "", true},
		{"empty", "", "", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			spec, err := scheduler.TimeOfDaySpec(tc.input)
			if tc.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.expected, spec)
		})
	}
}

func TestScheduler_Start(t *testing.T) {
	noop := func(context.Context) {}

	t.Run("disabled config keeps it stopped", func(t *testing.T) {
		s := scheduler.NewInterval("test", noop, slog.Default(), nil)
		require.NoError(t, s.Start(scheduler.Config{Enabled: false, FrequencyMinutes: 30}))
		assert.False(t, s.Running())
	})

	t.Run("enable then disable", func(t *testing.T) {
		s := scheduler.NewInterval("test", noop, slog.Default(), nil)
		require.NoError(t, s.Start(scheduler.Config{Enabled: true, FrequencyMinutes: 30}))
		assert.True(t, s.Running())
		assert.Equal(t, "*/30 * * * *", s.ActiveSpec())

		require.NoError(t, s.Start(scheduler.Config{Enabled: false}))
		assert.False(t, s.Running())
		assert.Empty(t, s.ActiveSpec())
	})

	t.Run("identical config is a no-op", func(t *testing.T) {
		s := scheduler.NewInterval("test", noop, slog.Default(), nil)
		cfg := scheduler.Config{Enabled: true, FrequencyMinutes: 15}
		require.NoError(t, s.Start(cfg))
		require.NoError(t, s.Start(cfg))
		assert.True(t, s.Running())
		assert.Equal(t, "*/15 * * * *", s.ActiveSpec())
	})

	t.Run("changed config restarts the trigger", func(t *testing.T) {
		s := scheduler.NewInterval("test", noop, slog.Default(), nil)
		require.NoError(t, s.Start(scheduler.Config{Enabled: true, FrequencyMinutes: 15}))
		require.NoError(t, s.Start(scheduler.Config{Enabled: true, FrequencyMinutes: 60}))
		assert.True(t, s.Running())
		assert.Equal(t, "0 * * * *", s.ActiveSpec())
	})

	t.Run("invalid config leaves previous trigger running", func(t *testing.T) {
		s := scheduler.NewInterval("test", noop, slog.Default(), nil)
		require.NoError(t, s.Start(scheduler.Config{Enabled: true, FrequencyMinutes: 15}))
		require.Error(t, s.Start(scheduler.Config{Enabled: true, FrequencyMinutes: 0}))
		assert.True(t, s.Running())
		assert.Equal(t, "*/15 * * * *", s.ActiveSpec())
	})

	t.Run("daily scheduler validates time of day", func(t *testing.T) {
		s := scheduler.NewDaily("forecast", noop, slog.Default(), nil)
		require.Error(t, s.Start(scheduler.Config{Enabled: true, TimeOfDay: "25:00"}))
		assert.False(t, s.Running())

		require.NoError(t, s.Start(scheduler.Config{Enabled: true, TimeOfDay: "07:00"}))
		assert.True(t, s.Running())
		assert.Equal(t, "0 7 * * *", s.ActiveSpec())
		s.Stop()
	})

	t.Run("stop is idempotent", func(t *testing.T) {
		s := scheduler.NewInterval("test", noop, slog.Default(), nil)
		s.Stop()
		require.NoError(t, s.Start(scheduler.Config{Enabled: true, FrequencyMinutes: 30}))
		s.Stop()
		s.Stop()
		assert.False(t, s.Running())
	})
}

func TestScheduler_LastRunStartsZero(t *testing.T) {
	s := scheduler.NewInterval("test", func(context.Context) {}, slog.Default(), nil)
	assert.True(t, s.LastRun().IsZero())
}
