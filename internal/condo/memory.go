package condo

import (
	"context"
	"strings"
	"sync"

	"github.com/rotisserie/eris"

	"github.com/sells-group/audit-flash/internal/textnorm"
)

// MemoryRegistry is an in-process Registry and Sink.
type MemoryRegistry struct {
	mu      sync.RWMutex
	records map[string]Record
}

// NewMemory creates a registry holding records.
func NewMemory(records ...Record) *MemoryRegistry {
	m := &MemoryRegistry{records: make(map[string]Record, len(records))}
	for _, r := range records {
		m.records[r.ID] = r
	}
	return m
}

// Load implements Sink. Records replace existing ones with the same id.
func (m *MemoryRegistry) Load(_ context.Context, records []Record) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range records {
		m.records[r.ID] = r
	}
	return int64(len(records)), nil
}

// Find implements Registry.
func (m *MemoryRegistry) Find(_ context.Context, street, postalCode string) (*Record, error) {
	key := textnorm.Fold(street)
	if key == "" {
		return nil, eris.Wrap(ErrNotFound, "condo: empty street")
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best *Record
	for _, r := range m.records {
		if r.PostalCode != postalCode || !strings.Contains(r.AddressKey(), key) {
			continue
		}
		if best == nil || better(r, *best) {
			rc := r
			best = &rc
		}
	}
	if best == nil {
		return nil, eris.Wrapf(ErrNotFound, "condo: %s %s", street, postalCode)
	}
	return best, nil
}
