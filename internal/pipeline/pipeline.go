// Package pipeline orchestrates the relay cycles. Each cycle kind (alerts,
// conditions, forecast) runs the same shape: fetch → normalize → dedupe →
// deliver → commit, accumulating a Summary that is logged and persisted when
// the cycle returns to idle.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/weather-alert-relay/internal/adapter/provider"
	"github.com/couchcryptid/weather-alert-relay/internal/adapter/webhook"
	"github.com/couchcryptid/weather-alert-relay/internal/domain"
	"github.com/couchcryptid/weather-alert-relay/internal/observability"
	"github.com/couchcryptid/weather-alert-relay/internal/store"
)

// interLocationDelay is a deliberate throttle between upstream calls for
// consecutive locations, keeping a batch under provider rate limits.
const interLocationDelay = 250 * time.Millisecond

// ErrCycleInFlight is returned when a trigger fires while the same cycle kind
// is still running. Overlapping runs would race on the ledger's
// read-modify-write; rejecting the trigger closes that race. The
// at-least-once window between delivery and ledger commit remains: a crash
// between the two redelivers on the next cycle.
var ErrCycleInFlight = errors.New("cycle already in flight")

// Cycle kinds.
const (
	KindAlerts     = "alerts"
	KindConditions = "conditions"
	KindForecast   = "forecast"
)

// Summary is the per-cycle accounting relayed to the log sink and the
// manual-trigger API response.
type Summary struct {
	Kind               string    `json:"kind"`
	LocationsProcessed int       `json:"locations_processed"`
	Fetched            int       `json:"fetched"`
	New                int       `json:"new"`
	DuplicatesSkipped  int       `json:"duplicates_skipped"`
	Sent               int       `json:"sent"`
	Failed             int       `json:"failed"`
	Errors             []string  `json:"errors,omitempty"`
	StartedAt          time.Time `json:"started_at"`
	FinishedAt         time.Time `json:"finished_at"`
}

// SettingsSource reads and stamps the runtime settings blob.
type SettingsSource interface {
	Get(ctx context.Context) (store.Settings, error)
	RecordLastRun(ctx context.Context, kind string, at time.Time) error
}

// LocationSource lists the enabled locations.
type LocationSource interface {
	Enabled(ctx context.Context) ([]domain.Location, error)
}

// AlertCodeSource lists enabled alert-type codes for server-side filtering.
type AlertCodeSource interface {
	EnabledCodes(ctx context.Context) ([]string, error)
}

// Deduper is the duplicate-suppression ledger.
type Deduper interface {
	FilterNew(ctx context.Context, locationID string, alerts []domain.CanonicalAlert) ([]domain.CanonicalAlert, error)
	FilterNewIDs(ctx context.Context, locationID string, ids []string) ([]string, error)
	MarkSent(ctx context.Context, locationID string, ids []string) error
}

// ConditionStates persists the last-delivered conditions snapshot per location.
type ConditionStates interface {
	Get(ctx context.Context, locationID string) (*domain.ConditionState, error)
	Set(ctx context.Context, locationID string, st domain.ConditionState) error
}

// LogSink is the operator-visible append-only log.
type LogSink interface {
	Append(ctx context.Context, typ store.LogType, action, message string, details any) error
}

// Deliverer posts record batches to the outbound webhook.
type Deliverer interface {
	DeliverBatch(ctx context.Context, records []webhook.Record) webhook.BatchResult
}

// ProviderFactory builds an upstream client for the current settings.
type ProviderFactory func(settings store.Settings, alertCodes []string) (provider.Client, error)

// RelayFactory builds a webhook deliverer for the current settings.
type RelayFactory func(settings store.Settings) (Deliverer, error)

// Deps wires an Orchestrator.
type Deps struct {
	Settings    SettingsSource
	Locations   LocationSource
	AlertCodes  AlertCodeSource
	Ledger      Deduper
	States      ConditionStates
	Logs        LogSink
	NewProvider ProviderFactory
	NewRelay    RelayFactory
	Logger      *slog.Logger
	Metrics     *observability.Metrics
	Clock       clockwork.Clock
}

// Orchestrator runs the three cycle kinds. One instance serves both scheduler
// triggers and manual runs; a per-kind in-flight flag rejects overlap.
type Orchestrator struct {
	deps  Deps
	clock clockwork.Clock

	locationDelay time.Duration
	ready         atomic.Bool

	alertsBusy     atomic.Bool
	conditionsBusy atomic.Bool
	forecastBusy   atomic.Bool
}

// New creates an Orchestrator.
func New(deps Deps) *Orchestrator {
	clk := deps.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}
	return &Orchestrator{
		deps:          deps,
		clock:         clk,
		locationDelay: interLocationDelay,
	}
}

// CheckReadiness reports nil once any cycle has completed.
func (o *Orchestrator) CheckReadiness(_ context.Context) error {
	if !o.ready.Load() {
		return errors.New("no cycle has completed yet")
	}
	return nil
}

// RunAlertCycle executes one alerts cycle across all enabled locations.
func (o *Orchestrator) RunAlertCycle(ctx context.Context) (Summary, error) {
	return o.runCycle(ctx, KindAlerts, &o.alertsBusy, o.processAlertLocation)
}

// RunConditionsCycle executes one current-conditions cycle.
func (o *Orchestrator) RunConditionsCycle(ctx context.Context) (Summary, error) {
	return o.runCycle(ctx, KindConditions, &o.conditionsBusy, o.processConditionsLocation)
}

// RunForecastCycle executes one forecast cycle.
func (o *Orchestrator) RunForecastCycle(ctx context.Context) (Summary, error) {
	return o.runCycle(ctx, KindForecast, &o.forecastBusy, o.processForecastLocation)
}

// locationFunc processes one location within a cycle, accumulating into sum.
type locationFunc func(ctx context.Context, client provider.Client, relay Deliverer, settings store.Settings, loc domain.Location, sum *Summary) error

func (o *Orchestrator) runCycle(ctx context.Context, kind string, busy *atomic.Bool, process locationFunc) (Summary, error) {
	if !busy.CompareAndSwap(false, true) {
		o.deps.Metrics.CyclesRun.WithLabelValues(kind, "skipped").Inc()
		o.deps.Logger.Warn("cycle trigger skipped, previous run still in flight", "kind", kind)
		return Summary{Kind: kind}, ErrCycleInFlight
	}
	defer busy.Store(false)

	start := time.Now()
	sum := Summary{Kind: kind, StartedAt: o.clock.Now().UTC()}

	err := o.execute(ctx, kind, process, &sum)

	sum.FinishedAt = o.clock.Now().UTC()
	o.deps.Metrics.CycleDuration.WithLabelValues(kind).Observe(time.Since(start).Seconds())
	o.finalize(ctx, kind, &sum, err)

	if err != nil {
		return sum, err
	}
	o.ready.Store(true)
	return sum, nil
}

// execute runs the cycle body. A returned error is systemic: settings could
// not be read or the provider/webhook configuration is unusable. Per-location
// failures never surface here; they land in sum.Errors.
func (o *Orchestrator) execute(ctx context.Context, kind string, process locationFunc, sum *Summary) error {
	settings, err := o.deps.Settings.Get(ctx)
	if err != nil {
		return fmt.Errorf("read settings: %w", err)
	}

	var codes []string
	if kind == KindAlerts {
		if codes, err = o.deps.AlertCodes.EnabledCodes(ctx); err != nil {
			return fmt.Errorf("read alert types: %w", err)
		}
	}

	client, err := o.deps.NewProvider(settings, codes)
	if err != nil {
		return fmt.Errorf("build provider: %w", err)
	}
	relay, err := o.deps.NewRelay(settings)
	if err != nil {
		return fmt.Errorf("build relay: %w", err)
	}

	locations, err := o.deps.Locations.Enabled(ctx)
	if err != nil {
		return fmt.Errorf("read locations: %w", err)
	}

	for i, loc := range locations {
		if i > 0 && !sleepWithContext(ctx, o.locationDelay) {
			break
		}
		sum.LocationsProcessed++
		if err := process(ctx, client, relay, settings, loc, sum); err != nil {
			sum.Errors = append(sum.Errors, fmt.Sprintf("location %s: %v", loc.ID, err))
			o.deps.Metrics.LocationErrors.Inc()
			o.deps.Logger.Warn("location failed", "kind", kind, "location_id", loc.ID, "error", err)
		}
	}
	return nil
}

// finalize logs the summary, records the run timestamp, and bumps the cycle
// counter — for clean runs, runs with isolated failures, and aborts alike.
func (o *Orchestrator) finalize(ctx context.Context, kind string, sum *Summary, cycleErr error) {
	outcome := "ok"
	logType := store.LogSuccess
	message := fmt.Sprintf("%s cycle: %d locations, %d fetched, %d new, %d duplicates skipped, %d sent, %d failed",
		kind, sum.LocationsProcessed, sum.Fetched, sum.New, sum.DuplicatesSkipped, sum.Sent, sum.Failed)

	switch {
	case cycleErr != nil:
		outcome = "error"
		logType = store.LogError
		sum.Errors = append(sum.Errors, cycleErr.Error())
		message = fmt.Sprintf("%s cycle aborted: %v", kind, cycleErr)
	case sum.Failed > 0 || len(sum.Errors) > 0:
		logType = store.LogWarning
	}

	o.deps.Metrics.CyclesRun.WithLabelValues(kind, outcome).Inc()
	o.deps.Logger.Info("cycle finished",
		"kind", kind,
		"outcome", outcome,
		"locations", sum.LocationsProcessed,
		"fetched", sum.Fetched,
		"new", sum.New,
		"duplicates_skipped", sum.DuplicatesSkipped,
		"sent", sum.Sent,
		"failed", sum.Failed,
		"errors", len(sum.Errors),
	)

	if err := o.deps.Logs.Append(ctx, logType, kind+"_cycle", message, sum); err != nil {
		o.deps.Logger.Warn("log sink append failed", "error", err)
	}
	if err := o.deps.Settings.RecordLastRun(ctx, kind, o.clock.Now().UTC()); err != nil {
		o.deps.Logger.Warn("record last run failed", "kind", kind, "error", err)
	}
}

// processAlertLocation is one location's fetch→normalize→dedupe→deliver→commit.
func (o *Orchestrator) processAlertLocation(ctx context.Context, client provider.Client, relay Deliverer, _ store.Settings, loc domain.Location, sum *Summary) error {
	raws, err := client.FetchAlerts(ctx, loc)
	if err != nil {
		return err
	}
	sum.Fetched += len(raws)
	o.deps.Metrics.RecordsFetched.WithLabelValues(KindAlerts).Add(float64(len(raws)))

	alerts := make([]domain.CanonicalAlert, 0, len(raws))
	for _, raw := range raws {
		canon, err := domain.Normalize(raw, loc)
		if err != nil {
			o.deps.Logger.Warn("normalize failed, skipping record", "location_id", loc.ID, "error", err)
			continue
		}
		alerts = append(alerts, canon)
	}

	fresh, err := o.deps.Ledger.FilterNew(ctx, loc.ID, alerts)
	if err != nil {
		return err
	}
	sum.DuplicatesSkipped += len(alerts) - len(fresh)
	o.deps.Metrics.DuplicatesSkipped.Add(float64(len(alerts) - len(fresh)))
	sum.New += len(fresh)
	if len(fresh) == 0 {
		return nil
	}

	records := make([]webhook.Record, len(fresh))
	for i, a := range fresh {
		records[i] = webhook.Record{ID: a.AlertID, Payload: a}
	}

	result := relay.DeliverBatch(ctx, records)
	o.accountDelivery(KindAlerts, result, sum)

	// Commit only what was confirmed delivered; failures stay new for the
	// next cycle.
	if sent := result.SentIDs(); len(sent) > 0 {
		if err := o.deps.Ledger.MarkSent(ctx, loc.ID, sent); err != nil {
			return err
		}
	}
	return nil
}

// conditionsReport is the webhook payload for a conditions delivery.
type conditionsReport struct {
	Reading        domain.ConditionReading `json:"reading"`
	Classification domain.Classification   `json:"classification"`
}

func (o *Orchestrator) processConditionsLocation(ctx context.Context, client provider.Client, relay Deliverer, settings store.Settings, loc domain.Location, sum *Summary) error {
	reading, err := client.FetchConditions(ctx, loc)
	if err != nil {
		return err
	}
	sum.Fetched++
	o.deps.Metrics.RecordsFetched.WithLabelValues(KindConditions).Inc()

	cls := domain.Classify(reading)

	prev, err := o.deps.States.Get(ctx, loc.ID)
	if err != nil {
		return err
	}

	now := o.clock.Now().UTC()
	opts := domain.GateOptions{
		AlwaysSend:          settings.AlwaysSendConditions,
		GoodWeatherInterval: time.Duration(settings.GoodWeatherIntervalMinutes) * time.Minute,
	}
	send, reason := domain.ShouldDeliverConditions(prev, cls, reading, now, opts)
	if !send {
		sum.DuplicatesSkipped++
		o.deps.Logger.Debug("conditions delivery suppressed", "location_id", loc.ID, "reason", reason)
		return nil
	}
	sum.New++

	record := webhook.Record{
		ID:      fmt.Sprintf("conditions-%s-%d", loc.ID, now.Unix()),
		Payload: conditionsReport{Reading: reading, Classification: cls},
	}
	result := relay.DeliverBatch(ctx, []webhook.Record{record})
	o.accountDelivery(KindConditions, result, sum)

	if result.Sent > 0 {
		return o.deps.States.Set(ctx, loc.ID, domain.ConditionState{
			Level:        cls.Level,
			TemperatureF: reading.TemperatureF,
			SentAt:       now,
		})
	}
	return nil
}

func (o *Orchestrator) processForecastLocation(ctx context.Context, client provider.Client, relay Deliverer, _ store.Settings, loc domain.Location, sum *Summary) error {
	periods, err := client.FetchForecast(ctx, loc)
	if err != nil {
		return err
	}
	if len(periods) == 0 {
		return nil
	}
	sum.Fetched++
	o.deps.Metrics.RecordsFetched.WithLabelValues(KindForecast).Inc()

	rec := domain.NewForecastRecord(loc.ID, client.Name(), periods)

	fresh, err := o.deps.Ledger.FilterNewIDs(ctx, loc.ID, []string{rec.ForecastID})
	if err != nil {
		return err
	}
	if len(fresh) == 0 {
		sum.DuplicatesSkipped++
		o.deps.Metrics.DuplicatesSkipped.Inc()
		return nil
	}
	sum.New++

	result := relay.DeliverBatch(ctx, []webhook.Record{{ID: rec.ForecastID, Payload: rec}})
	o.accountDelivery(KindForecast, result, sum)

	if sent := result.SentIDs(); len(sent) > 0 {
		return o.deps.Ledger.MarkSent(ctx, loc.ID, sent)
	}
	return nil
}

func (o *Orchestrator) accountDelivery(kind string, result webhook.BatchResult, sum *Summary) {
	sum.Sent += result.Sent
	sum.Failed += result.Failed
	o.deps.Metrics.RecordsSent.WithLabelValues(kind).Add(float64(result.Sent))
	o.deps.Metrics.DeliveryFailures.Add(float64(result.Failed))
	for _, out := range result.Outcomes {
		if !out.Success {
			sum.Errors = append(sum.Errors, fmt.Sprintf("deliver %s: %s", out.ID, out.Error))
		}
	}
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
