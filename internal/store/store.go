// Package store persists audit sessions and completed diagnostics.
package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/audit-flash/internal/model"
)

// Sentinel errors shared by every backend.
var (
	ErrNotFound        = eris.New("store: not found")
	ErrVersionConflict = eris.New("store: version conflict")
	ErrExists          = eris.New("store: already exists")
)

// SessionStore holds audit sessions. UpdateSession is a compare-and-swap on
// Version: it succeeds only when the stored version equals expected, and
// bumps s.Version on success.
type SessionStore interface {
	CreateSession(ctx context.Context, s *model.AuditSession) error
	GetSession(ctx context.Context, id string) (*model.AuditSession, error)
	UpdateSession(ctx context.Context, s *model.AuditSession, expected int64) error
	DeleteSession(ctx context.Context, id string) error
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error)
}

// DiagnosticStore holds completed diagnostics.
type DiagnosticStore interface {
	SaveDiagnostic(ctx context.Context, rec *model.DiagnosticRecord) error
	GetDiagnostic(ctx context.Context, id string) (*model.DiagnosticRecord, error)
}

// Store is a full persistence backend.
type Store interface {
	SessionStore
	DiagnosticStore

	Migrate(ctx context.Context) error
	Close() error
}

// Split serves sessions from one backend and diagnostics from another, e.g.
// sessions in Redis shared by every instance and diagnostics in Postgres.
type Split struct {
	SessionStore
	Diagnostics Store
	closeFn     func() error
}

// NewSplit combines sessions and diagnostics. closeFn releases the session
// backend and may be nil.
func NewSplit(sessions SessionStore, diagnostics Store, closeFn func() error) *Split {
	return &Split{SessionStore: sessions, Diagnostics: diagnostics, closeFn: closeFn}
}

// SaveDiagnostic implements DiagnosticStore.
func (s *Split) SaveDiagnostic(ctx context.Context, rec *model.DiagnosticRecord) error {
	return s.Diagnostics.SaveDiagnostic(ctx, rec)
}

// GetDiagnostic implements DiagnosticStore.
func (s *Split) GetDiagnostic(ctx context.Context, id string) (*model.DiagnosticRecord, error) {
	return s.Diagnostics.GetDiagnostic(ctx, id)
}

// Migrate migrates the diagnostics backend.
func (s *Split) Migrate(ctx context.Context) error {
	return s.Diagnostics.Migrate(ctx)
}

// Close closes both backends.
func (s *Split) Close() error {
	var first error
	if s.closeFn != nil {
		first = s.closeFn()
	}
	if err := s.Diagnostics.Close(); err != nil && first == nil {
		first = err
	}
	return first
}
