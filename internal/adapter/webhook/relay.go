// Package webhook posts canonical records to the single configured outbound
// webhook. Delivery is sequential with a small inter-item delay, continues
// past individual failures, and is never retried — a failed record is picked
// up again on the next cycle if the ledger was not committed for it.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/weather-alert-relay/internal/domain"
)

// interItemDelay spaces sequential deliveries so a burst of new alerts does
// not hammer the receiving endpoint.
const interItemDelay = 100 * time.Millisecond

// Record is one deliverable payload with the identifier used for per-item
// accounting and ledger commits.
type Record struct {
	ID      string
	Payload any
}

// Outcome is the per-item delivery result.
type Outcome struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	Status  int    `json:"status,omitempty"`
	Error   string `json:"error,omitempty"`
}

// BatchResult aggregates a sequential batch delivery.
type BatchResult struct {
	Sent     int       `json:"sent"`
	Failed   int       `json:"failed"`
	Outcomes []Outcome `json:"outcomes"`
}

// SentIDs returns the ids that were delivered successfully — the set to
// commit to the dedup ledger.
func (r BatchResult) SentIDs() []string {
	ids := make([]string, 0, r.Sent)
	for _, o := range r.Outcomes {
		if o.Success {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

// Relay delivers records to one webhook URL.
type Relay struct {
	url        string
	httpClient *http.Client
	logger     *slog.Logger
	delay      time.Duration
}

// New validates the webhook URL and builds a relay. An unset or malformed
// URL, or a non-http(s) scheme, is a configuration error.
func New(webhookURL string, timeout time.Duration, logger *slog.Logger) (*Relay, error) {
	if webhookURL == "" {
		return nil, domain.NewConfigurationError("webhook", "webhook URL is not set")
	}
	u, err := url.Parse(webhookURL)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, domain.NewConfigurationError("webhook",
			fmt.Sprintf("invalid webhook URL %q: must be an absolute http(s) URL", webhookURL))
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Relay{
		url:        webhookURL,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		delay:      interItemDelay,
	}, nil
}

// Deliver posts one record as a JSON body. Non-2xx responses are delivery
// errors carrying the upstream status and body; transport failures are
// network errors.
func (r *Relay) Deliver(ctx context.Context, rec Record) error {
	body, err := json.Marshal(rec.Payload)
	if err != nil {
		return fmt.Errorf("encode record %s: %w", rec.ID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return domain.NewNetworkError("deliver "+rec.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return domain.NewDeliveryError("deliver "+rec.ID, resp.StatusCode, string(detail))
	}
	return nil
}

// DeliverBatch posts records one at a time with the inter-item delay,
// recording a per-item outcome and continuing past failures.
func (r *Relay) DeliverBatch(ctx context.Context, records []Record) BatchResult {
	result := BatchResult{Outcomes: make([]Outcome, 0, len(records))}

	for i, rec := range records {
		if i > 0 {
			if !sleepWithContext(ctx, r.delay) {
				break
			}
		}

		outcome := Outcome{ID: rec.ID}
		if err := r.Deliver(ctx, rec); err != nil {
			outcome.Error = err.Error()
			var de *domain.Error
			if errors.As(err, &de) {
				outcome.Status = de.Status
			}
			result.Failed++
			r.logger.Warn("delivery failed", "record_id", rec.ID, "error", err)
		} else {
			outcome.Success = true
			outcome.Status = http.StatusOK
			result.Sent++
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}
	return result
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
