package store

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/audit-flash/internal/model"
)

// MemoryStore is an in-process Store. Values are stored as JSON so callers
// never share memory with the store.
type MemoryStore struct {
	mu          sync.Mutex
	sessions    map[string][]byte
	versions    map[string]int64
	expiries    map[string]time.Time
	diagnostics map[string][]byte
}

// NewMemory creates an empty MemoryStore.
func NewMemory() *MemoryStore {
	return &MemoryStore{
		sessions:    make(map[string][]byte),
		versions:    make(map[string]int64),
		expiries:    make(map[string]time.Time),
		diagnostics: make(map[string][]byte),
	}
}

// Migrate is a no-op.
func (m *MemoryStore) Migrate(context.Context) error { return nil }

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

// CreateSession implements SessionStore.
func (m *MemoryStore) CreateSession(_ context.Context, s *model.AuditSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return eris.Wrap(err, "memory: marshal session")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[s.ID]; ok {
		return eris.Wrapf(ErrExists, "session %s", s.ID)
	}
	m.sessions[s.ID] = data
	m.versions[s.ID] = s.Version
	m.expiries[s.ID] = s.ExpiresAt
	return nil
}

// GetSession implements SessionStore.
func (m *MemoryStore) GetSession(_ context.Context, id string) (*model.AuditSession, error) {
	m.mu.Lock()
	data, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "session %s", id)
	}
	var s model.AuditSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, eris.Wrap(err, "memory: unmarshal session")
	}
	return &s, nil
}

// UpdateSession implements SessionStore.
func (m *MemoryStore) UpdateSession(_ context.Context, s *model.AuditSession, expected int64) error {
	next := *s
	next.Version = expected + 1
	data, err := json.Marshal(&next)
	if err != nil {
		return eris.Wrap(err, "memory: marshal session")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.versions[s.ID]
	if !ok {
		return eris.Wrapf(ErrNotFound, "session %s", s.ID)
	}
	if current != expected {
		return eris.Wrapf(ErrVersionConflict, "session %s at version %d, expected %d", s.ID, current, expected)
	}
	m.sessions[s.ID] = data
	m.versions[s.ID] = next.Version
	m.expiries[s.ID] = s.ExpiresAt
	s.Version = next.Version
	return nil
}

// DeleteSession implements SessionStore.
func (m *MemoryStore) DeleteSession(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	delete(m.versions, id)
	delete(m.expiries, id)
	return nil
}

// DeleteExpiredSessions implements SessionStore.
func (m *MemoryStore) DeleteExpiredSessions(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, exp := range m.expiries {
		if !exp.IsZero() && !now.Before(exp) {
			delete(m.sessions, id)
			delete(m.versions, id)
			delete(m.expiries, id)
			n++
		}
	}
	return n, nil
}

// SaveDiagnostic implements DiagnosticStore.
func (m *MemoryStore) SaveDiagnostic(_ context.Context, rec *model.DiagnosticRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return eris.Wrap(err, "memory: marshal diagnostic")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.diagnostics[rec.ID]; ok {
		return eris.Wrapf(ErrExists, "diagnostic %s", rec.ID)
	}
	m.diagnostics[rec.ID] = data
	return nil
}

// GetDiagnostic implements DiagnosticStore.
func (m *MemoryStore) GetDiagnostic(_ context.Context, id string) (*model.DiagnosticRecord, error) {
	m.mu.Lock()
	data, ok := m.diagnostics[id]
	m.mu.Unlock()
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "diagnostic %s", id)
	}
	var rec model.DiagnosticRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, eris.Wrap(err, "memory: unmarshal diagnostic")
	}
	return &rec, nil
}
