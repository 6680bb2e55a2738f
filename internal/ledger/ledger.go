// Package ledger implements the duplicate-suppression ledger: a bounded
// per-location history of delivered record identifiers.
//
// The calling order is the contract: FilterNew before delivery, MarkSent only
// after confirmed successful delivery. A crash between the webhook POST and
// the MarkSent commit redelivers those records on the next cycle — the relay
// is deliberately at-least-once, not exactly-once.
package ledger

import (
	"context"
	"fmt"

	"github.com/couchcryptid/weather-alert-relay/internal/domain"
)

// DefaultMaxEntries bounds each location's history. Oldest ids are evicted
// first once the bound is reached.
const DefaultMaxEntries = 100

// Store is the persistence contract: whole-list read and whole-list replace
// per location. There is no incremental merge; the ledger does the
// read-modify-write.
type Store interface {
	DeliveredIDs(ctx context.Context, locationID string) ([]string, error)
	ReplaceDeliveredIDs(ctx context.Context, locationID string, ids []string) error
}

// Ledger filters batches against, and commits batches to, the per-location
// delivered-id history.
type Ledger struct {
	store      Store
	maxEntries int
}

// New creates a ledger with the default history bound.
func New(store Store) *Ledger {
	return &Ledger{store: store, maxEntries: DefaultMaxEntries}
}

// FilterNew returns exactly the subset of alerts whose AlertID is absent from
// the stored history for the location. Pure read: no mutation.
func (l *Ledger) FilterNew(ctx context.Context, locationID string, alerts []domain.CanonicalAlert) ([]domain.CanonicalAlert, error) {
	seen, err := l.deliveredSet(ctx, locationID)
	if err != nil {
		return nil, err
	}
	fresh := make([]domain.CanonicalAlert, 0, len(alerts))
	for _, a := range alerts {
		if _, dup := seen[a.AlertID]; !dup {
			fresh = append(fresh, a)
		}
	}
	return fresh, nil
}

// FilterNewIDs is FilterNew over bare identifiers, used by the forecast cycle.
func (l *Ledger) FilterNewIDs(ctx context.Context, locationID string, ids []string) ([]string, error) {
	seen, err := l.deliveredSet(ctx, locationID)
	if err != nil {
		return nil, err
	}
	fresh := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; !dup {
			fresh = append(fresh, id)
		}
	}
	return fresh, nil
}

// MarkSent commits delivered ids to the history. Call only after confirmed
// successful delivery. Ids already present are not duplicated; the history is
// trimmed from the front to the most recent maxEntries and written back as a
// full replacement list.
func (l *Ledger) MarkSent(ctx context.Context, locationID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	current, err := l.store.DeliveredIDs(ctx, locationID)
	if err != nil {
		return fmt.Errorf("ledger read %s: %w", locationID, err)
	}

	present := make(map[string]struct{}, len(current))
	for _, id := range current {
		present[id] = struct{}{}
	}
	for _, id := range ids {
		if _, ok := present[id]; ok {
			continue
		}
		current = append(current, id)
		present[id] = struct{}{}
	}

	if excess := len(current) - l.maxEntries; excess > 0 {
		current = current[excess:]
	}
	if err := l.store.ReplaceDeliveredIDs(ctx, locationID, current); err != nil {
		return fmt.Errorf("ledger write %s: %w", locationID, err)
	}
	return nil
}

// ClearForLocation resets a location's history to empty. Used on location
// deletion and manual reset; the next cycle treats all active alerts as new.
func (l *Ledger) ClearForLocation(ctx context.Context, locationID string) error {
	if err := l.store.ReplaceDeliveredIDs(ctx, locationID, nil); err != nil {
		return fmt.Errorf("ledger clear %s: %w", locationID, err)
	}
	return nil
}

func (l *Ledger) deliveredSet(ctx context.Context, locationID string) (map[string]struct{}, error) {
	ids, err := l.store.DeliveredIDs(ctx, locationID)
	if err != nil {
		return nil, fmt.Errorf("ledger read %s: %w", locationID, err)
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		seen[id] = struct{}{}
	}
	return seen, nil
}
