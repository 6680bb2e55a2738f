// Package store persists the relay's collections as one JSON blob per
// logical collection behind a small key-value interface. Semantics are
// last-write-wins: callers read, modify, and write whole values. The pipeline
// depends only on the interfaces here, so tests run on the in-memory fake.
package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
)

// Collection keys. One blob per key.
const (
	KeySettings       = "settings"
	KeyLocations      = "locations"
	KeyAlertTypes     = "alert_types"
	KeyLedger         = "ledger"
	KeyLogs           = "logs"
	KeyConditionState = "condition_state"
)

// KeyValueStore is atomic get/set of one JSON value per collection key.
type KeyValueStore interface {
	// Get unmarshals the stored value for key into out. The boolean reports
	// whether the key existed.
	Get(ctx context.Context, key string, out any) (bool, error)
	// Set replaces the stored value for key.
	Set(ctx context.Context, key string, v any) error
}

// MemoryStore is the in-memory KeyValueStore used by tests.
type MemoryStore struct {
	mu   sync.Mutex
	data map[string][]byte
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: make(map[string][]byte)}
}

func (m *MemoryStore) Get(_ context.Context, key string, out any) (bool, error) {
	m.mu.Lock()
	raw, ok := m.data[key]
	m.mu.Unlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return true, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (m *MemoryStore) Set(_ context.Context, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	m.mu.Lock()
	m.data[key] = raw
	m.mu.Unlock()
	return nil
}
