// Package scheduler turns operator-facing schedule settings (a frequency in
// minutes, or a time of day) into recurring cron triggers with live
// reconfiguration.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
)

// Config describes one scheduler's desired state. Exactly one of
// FrequencyMinutes or TimeOfDay is used, depending on the constructor.
type Config struct {
	Enabled          bool
	FrequencyMinutes int    // interval mode: 1–1440
	TimeOfDay        string // daily mode: "HH:MM", 00:00–23:59
}

// Job is the work a trigger fires. It receives a background-derived context;
// stopping the scheduler does not cancel an in-flight run.
type Job func(ctx context.Context)

type mode int

const (
	modeInterval mode = iota
	modeDaily
)

// Scheduler owns one cron trigger and its active configuration. There is no
// hidden package-level state; callers hold the instance.
type Scheduler struct {
	name   string
	mode   mode
	job    Job
	logger *slog.Logger
	clock  clockwork.Clock

	mu      sync.Mutex
	cron    *cron.Cron
	entry   cron.EntryID
	active  *Config
	lastRun time.Time
}

// NewInterval creates a frequency-in-minutes scheduler (alerts/conditions).
func NewInterval(name string, job Job, logger *slog.Logger, clock clockwork.Clock) *Scheduler {
	return newScheduler(name, modeInterval, job, logger, clock)
}

// NewDaily creates a fixed-time-of-day scheduler (forecasts).
func NewDaily(name string, job Job, logger *slog.Logger, clock clockwork.Clock) *Scheduler {
	return newScheduler(name, modeDaily, job, logger, clock)
}

func newScheduler(name string, m mode, job Job, logger *slog.Logger, clock clockwork.Clock) *Scheduler {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Scheduler{name: name, mode: m, job: job, logger: logger, clock: clock}
}

// Start applies cfg. Starting while already running with identical
// configuration is a no-op; a changed configuration restarts the trigger
// (stop-then-start internally); a disabled configuration clears it.
func (s *Scheduler) Start(cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !cfg.Enabled {
		s.stopLocked()
		return nil
	}

	if s.active != nil && *s.active == cfg {
		return nil
	}

	spec, err := s.spec(cfg)
	if err != nil {
		return err
	}

	s.stopLocked()

	c := cron.New()
	entry, err := c.AddFunc(spec, s.runJob)
	if err != nil {
		return fmt.Errorf("schedule %s: %w", s.name, err)
	}
	c.Start()

	s.cron = c
	s.entry = entry
	s.active = &cfg
	s.logger.Info("scheduler started", "name", s.name, "spec", spec)
	return nil
}

// Stop clears the active trigger. An in-flight job runs to completion;
// stopping only prevents future triggers.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

func (s *Scheduler) stopLocked() {
	if s.cron == nil {
		return
	}
	s.cron.Stop()
	s.cron = nil
	s.active = nil
	s.logger.Info("scheduler stopped", "name", s.name)
}

// Running reports whether a trigger is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron != nil
}

// ActiveSpec returns the derived trigger expression, or "" when stopped.
func (s *Scheduler) ActiveSpec() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return ""
	}
	spec, err := s.spec(*s.active)
	if err != nil {
		return ""
	}
	return spec
}

// LastRun returns when the job last fired (zero until the first trigger).
func (s *Scheduler) LastRun() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastRun
}

func (s *Scheduler) spec(cfg Config) (string, error) {
	if s.mode == modeDaily {
		return TimeOfDaySpec(cfg.TimeOfDay)
	}
	return IntervalSpec(cfg.FrequencyMinutes)
}

// runJob is the trigger callback. Nothing may escape it: a panicking or
// failing job is logged and the scheduler keeps running.
func (s *Scheduler) runJob() {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("scheduled job panicked", "name", s.name, "panic", r)
		}
	}()

	s.mu.Lock()
	s.lastRun = s.clock.Now()
	s.mu.Unlock()

	s.job(context.Background())
}

// IntervalSpec maps a frequency in minutes onto minute/hour cron granularity:
// every minute, every N minutes below an hour, hourly, every N hours for
// divisors of a day, else daily.
func IntervalSpec(minutes int) (string, error) {
	if minutes < 1 || minutes > 1440 {
		return "", fmt.Errorf("frequency must be 1-1440 minutes, got %d", minutes)
	}
	switch {
	case minutes == 1:
		return "* * * * *", nil
	case minutes < 60:
		return fmt.Sprintf("*/%d * * * *", minutes), nil
	case minutes == 60:
		return "0 * * * *", nil
	case minutes%60 == 0 && 24%(minutes/60) == 0:
		return fmt.Sprintf("0 */%d * * *", minutes/60), nil
	default:
		return "0 0 * * *", nil
	}
}

// TimeOfDaySpec converts "HH:MM" into a once-daily cron expression,
// rejecting anything outside 00:00–23:59.
func TimeOfDaySpec(hhmm string) (string, error) {
	var hour, minute int
	if _, err := fmt.Sscanf(hhmm, "%d:%d", &hour, &minute); err != nil {
		return "", fmt.Errorf("invalid time of day %q: want HH:MM", hhmm)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return "", fmt.Errorf("invalid time of day %q: want 00:00-23:59", hhmm)
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}
