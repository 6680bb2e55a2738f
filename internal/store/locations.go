package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/couchcryptid/weather-alert-relay/internal/domain"
)

// ErrNotFound is returned when an identifier does not exist in a collection.
var ErrNotFound = fmt.Errorf("not found")

// LocationStore manages the monitored-locations collection.
type LocationStore struct {
	kv KeyValueStore
}

func NewLocationStore(kv KeyValueStore) *LocationStore {
	return &LocationStore{kv: kv}
}

func (s *LocationStore) List(ctx context.Context) ([]domain.Location, error) {
	var locs []domain.Location
	if _, err := s.kv.Get(ctx, KeyLocations, &locs); err != nil {
		return nil, fmt.Errorf("locations: %w", err)
	}
	return locs, nil
}

// Enabled returns only locations with the enabled flag set.
func (s *LocationStore) Enabled(ctx context.Context) ([]domain.Location, error) {
	locs, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	enabled := locs[:0]
	for _, l := range locs {
		if l.Enabled {
			enabled = append(enabled, l)
		}
	}
	return enabled, nil
}

func (s *LocationStore) Add(ctx context.Context, loc domain.Location) (domain.Location, error) {
	if loc.ID == "" {
		loc.ID = uuid.NewString()
	}
	locs, err := s.List(ctx)
	if err != nil {
		return domain.Location{}, err
	}
	locs = append(locs, loc)
	if err := s.kv.Set(ctx, KeyLocations, locs); err != nil {
		return domain.Location{}, fmt.Errorf("locations: %w", err)
	}
	return loc, nil
}

func (s *LocationStore) Update(ctx context.Context, loc domain.Location) error {
	locs, err := s.List(ctx)
	if err != nil {
		return err
	}
	for i := range locs {
		if locs[i].ID == loc.ID {
			locs[i] = loc
			if err := s.kv.Set(ctx, KeyLocations, locs); err != nil {
				return fmt.Errorf("locations: %w", err)
			}
			return nil
		}
	}
	return fmt.Errorf("location %s: %w", loc.ID, ErrNotFound)
}

func (s *LocationStore) Delete(ctx context.Context, id string) error {
	locs, err := s.List(ctx)
	if err != nil {
		return err
	}
	kept := locs[:0]
	found := false
	for _, l := range locs {
		if l.ID == id {
			found = true
			continue
		}
		kept = append(kept, l)
	}
	if !found {
		return fmt.Errorf("location %s: %w", id, ErrNotFound)
	}
	if err := s.kv.Set(ctx, KeyLocations, kept); err != nil {
		return fmt.Errorf("locations: %w", err)
	}
	return nil
}

// AlertTypeStore manages the alert-type filter collection.
type AlertTypeStore struct {
	kv KeyValueStore
}

func NewAlertTypeStore(kv KeyValueStore) *AlertTypeStore {
	return &AlertTypeStore{kv: kv}
}

func (s *AlertTypeStore) List(ctx context.Context) ([]domain.AlertType, error) {
	var types []domain.AlertType
	if _, err := s.kv.Get(ctx, KeyAlertTypes, &types); err != nil {
		return nil, fmt.Errorf("alert types: %w", err)
	}
	return types, nil
}

// EnabledCodes returns the codes to request from providers that support
// server-side filtering. An empty result means "no filter".
func (s *AlertTypeStore) EnabledCodes(ctx context.Context) ([]string, error) {
	types, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	var codes []string
	for _, t := range types {
		if t.Enabled {
			codes = append(codes, t.Code)
		}
	}
	return codes, nil
}

func (s *AlertTypeStore) Add(ctx context.Context, t domain.AlertType) (domain.AlertType, error) {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	types, err := s.List(ctx)
	if err != nil {
		return domain.AlertType{}, err
	}
	types = append(types, t)
	if err := s.kv.Set(ctx, KeyAlertTypes, types); err != nil {
		return domain.AlertType{}, fmt.Errorf("alert types: %w", err)
	}
	return t, nil
}

func (s *AlertTypeStore) Update(ctx context.Context, t domain.AlertType) error {
	types, err := s.List(ctx)
	if err != nil {
		return err
	}
	for i := range types {
		if types[i].ID == t.ID {
			types[i] = t
			if err := s.kv.Set(ctx, KeyAlertTypes, types); err != nil {
				return fmt.Errorf("alert types: %w", err)
			}
			return nil
		}
	}
	return fmt.Errorf("alert type %s: %w", t.ID, ErrNotFound)
}

func (s *AlertTypeStore) Delete(ctx context.Context, id string) error {
	types, err := s.List(ctx)
	if err != nil {
		return err
	}
	kept := types[:0]
	found := false
	for _, t := range types {
		if t.ID == id {
			found = true
			continue
		}
		kept = append(kept, t)
	}
	if !found {
		return fmt.Errorf("alert type %s: %w", id, ErrNotFound)
	}
	if err := s.kv.Set(ctx, KeyAlertTypes, kept); err != nil {
		return fmt.Errorf("alert types: %w", err)
	}
	return nil
}
