package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// LogType is the entry classification shown to the operator.
type LogType string

const (
	LogInfo    LogType = "info"
	LogSuccess LogType = "success"
	LogWarning LogType = "warning"
	LogError   LogType = "error"
)

// LogEntry is one structured operator-visible event.
type LogEntry struct {
	ID      string    `json:"id"`
	Type    LogType   `json:"type"`
	Action  string    `json:"action"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	At      time.Time `json:"at"`
}

// LogStore is the append-only log sink with bounded retention: when the
// collection exceeds maxEntries the oldest entries are trimmed.
type LogStore struct {
	kv KeyValueStore

	mu         sync.Mutex // guards maxEntries; Append runs concurrently with SetRetention
	maxEntries int
}

// NewLogStore creates a log sink keeping at most maxEntries entries
// (defaults to 200 if non-positive).
func NewLogStore(kv KeyValueStore, maxEntries int) *LogStore {
	if maxEntries <= 0 {
		maxEntries = 200
	}
	return &LogStore{kv: kv, maxEntries: maxEntries}
}

// SetRetention adjusts the retention bound (takes effect on the next append).
func (s *LogStore) SetRetention(maxEntries int) {
	if maxEntries <= 0 {
		return
	}
	s.mu.Lock()
	s.maxEntries = maxEntries
	s.mu.Unlock()
}

// Append records an entry, trimming the oldest past the retention bound.
func (s *LogStore) Append(ctx context.Context, typ LogType, action, message string, details any) error {
	entries, err := s.List(ctx)
	if err != nil {
		return err
	}
	entries = append(entries, LogEntry{
		ID:      uuid.NewString(),
		Type:    typ,
		Action:  action,
		Message: message,
		Details: details,
		At:      time.Now().UTC(),
	})
	s.mu.Lock()
	bound := s.maxEntries
	s.mu.Unlock()
	if excess := len(entries) - bound; excess > 0 {
		entries = entries[excess:]
	}
	if err := s.kv.Set(ctx, KeyLogs, entries); err != nil {
		return fmt.Errorf("logs: %w", err)
	}
	return nil
}

// List returns entries oldest first.
func (s *LogStore) List(ctx context.Context) ([]LogEntry, error) {
	var entries []LogEntry
	if _, err := s.kv.Get(ctx, KeyLogs, &entries); err != nil {
		return nil, fmt.Errorf("logs: %w", err)
	}
	return entries, nil
}
