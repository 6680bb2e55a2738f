package store

import (
	"context"
	"fmt"

	"github.com/couchcryptid/weather-alert-relay/internal/domain"
)

// LedgerStore persists per-location delivered-id lists as a single map blob.
// The whole list for a location is replaced on each update; callers do the
// read-modify-write (see internal/ledger).
type LedgerStore struct {
	kv KeyValueStore
}

func NewLedgerStore(kv KeyValueStore) *LedgerStore {
	return &LedgerStore{kv: kv}
}

func (s *LedgerStore) DeliveredIDs(ctx context.Context, locationID string) ([]string, error) {
	var ledger map[string][]string
	if _, err := s.kv.Get(ctx, KeyLedger, &ledger); err != nil {
		return nil, fmt.Errorf("ledger: %w", err)
	}
	return ledger[locationID], nil
}

func (s *LedgerStore) ReplaceDeliveredIDs(ctx context.Context, locationID string, ids []string) error {
	ledger := map[string][]string{}
	if _, err := s.kv.Get(ctx, KeyLedger, &ledger); err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	if len(ids) == 0 {
		delete(ledger, locationID)
	} else {
		ledger[locationID] = ids
	}
	if err := s.kv.Set(ctx, KeyLedger, ledger); err != nil {
		return fmt.Errorf("ledger: %w", err)
	}
	return nil
}

// ConditionStateStore persists the last-delivered conditions snapshot per
// location, for the conditions decision gate.
type ConditionStateStore struct {
	kv KeyValueStore
}

func NewConditionStateStore(kv KeyValueStore) *ConditionStateStore {
	return &ConditionStateStore{kv: kv}
}

func (s *ConditionStateStore) Get(ctx context.Context, locationID string) (*domain.ConditionState, error) {
	var states map[string]domain.ConditionState
	if _, err := s.kv.Get(ctx, KeyConditionState, &states); err != nil {
		return nil, fmt.Errorf("condition state: %w", err)
	}
	st, ok := states[locationID]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (s *ConditionStateStore) Set(ctx context.Context, locationID string, st domain.ConditionState) error {
	states := map[string]domain.ConditionState{}
	if _, err := s.kv.Get(ctx, KeyConditionState, &states); err != nil {
		return fmt.Errorf("condition state: %w", err)
	}
	states[locationID] = st
	if err := s.kv.Set(ctx, KeyConditionState, states); err != nil {
		return fmt.Errorf("condition state: %w", err)
	}
	return nil
}

// Clear removes the stored snapshot for a location, if one exists.
func (s *ConditionStateStore) Clear(ctx context.Context, locationID string) error {
	states := map[string]domain.ConditionState{}
	if _, err := s.kv.Get(ctx, KeyConditionState, &states); err != nil {
		return fmt.Errorf("condition state: %w", err)
	}
	if _, ok := states[locationID]; !ok {
		return nil
	}
	delete(states, locationID)
	if err := s.kv.Set(ctx, KeyConditionState, states); err != nil {
		return fmt.Errorf("condition state: %w", err)
	}
	return nil
}
