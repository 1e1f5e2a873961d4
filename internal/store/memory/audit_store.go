package memory

import (
	"context"
	"maps"
	"sync"
	"time"
)

// AuditEntry is one recorded event.
type AuditEntry struct {
	Event  string
	Detail map[string]any
	At     time.Time
}

// AuditStore implements domain.AuditStore as an append-only slice.
type AuditStore struct {
	mu      sync.Mutex
	entries []AuditEntry
}

// NewAuditStore returns an empty store.
func NewAuditStore() *AuditStore {
	return &AuditStore{}
}

// Log appends an entry.
func (s *AuditStore) Log(_ context.Context, event string, detail map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, AuditEntry{Event: event, Detail: maps.Clone(detail), At: time.Now().UTC()})
	return nil
}

// Entries returns a snapshot of everything logged so far.
func (s *AuditStore) Entries() []AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]AuditEntry, len(s.entries))
	copy(out, s.entries)
	return out
}
