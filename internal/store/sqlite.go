package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/audit-flash/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// DB exposes the handle for packages sharing the database file.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS audit_sessions (
	id         TEXT PRIMARY KEY,
	state      TEXT NOT NULL,
	version    INTEGER NOT NULL DEFAULT 0,
	data       TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS diagnostics (
	id         TEXT PRIMARY KEY,
	session_id TEXT,
	input      TEXT NOT NULL,
	result     TEXT NOT NULL,
	created_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_audit_sessions_expires_at ON audit_sessions(expires_at);
CREATE INDEX IF NOT EXISTS idx_diagnostics_session_id ON diagnostics(session_id);
`

// Migrate creates the tables.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateSession implements SessionStore.
func (s *SQLiteStore) CreateSession(ctx context.Context, sess *model.AuditSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal session")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_sessions (id, state, version, data, created_at, updated_at, expires_at) VALUES (?, ?, ?, ?, ?, ?, ?) ON CONFLICT(id) DO NOTHING`,
		sess.ID, string(sess.State), sess.Version, string(data), sess.CreatedAt.UTC(), sess.UpdatedAt.UTC(), sess.ExpiresAt.UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: insert session %s", sess.ID)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return eris.Wrapf(ErrExists, "session %s", sess.ID)
	}
	return nil
}

// GetSession implements SessionStore.
func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*model.AuditSession, error) {
	var data string
	var version int64
	err := s.db.QueryRowContext(ctx, `SELECT data, version FROM audit_sessions WHERE id = ?`, id).Scan(&data, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "session %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get session %s", id)
	}
	var sess model.AuditSession
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal session")
	}
	sess.Version = version
	return &sess, nil
}

// UpdateSession implements SessionStore.
func (s *SQLiteStore) UpdateSession(ctx context.Context, sess *model.AuditSession, expected int64) error {
	next := *sess
	next.Version = expected + 1
	data, err := json.Marshal(&next)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal session")
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE audit_sessions SET state = ?, version = ?, data = ?, updated_at = ?, expires_at = ? WHERE id = ? AND version = ?`,
		string(next.State), next.Version, string(data), next.UpdatedAt.UTC(), next.ExpiresAt.UTC(), sess.ID, expected,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update session %s", sess.ID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return s.missOrConflict(ctx, sess.ID, expected)
	}
	sess.Version = next.Version
	return nil
}

func (s *SQLiteStore) missOrConflict(ctx context.Context, id string, expected int64) error {
	var version int64
	err := s.db.QueryRowContext(ctx, `SELECT version FROM audit_sessions WHERE id = ?`, id).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return eris.Wrapf(ErrNotFound, "session %s", id)
	}
	if err != nil {
		return eris.Wrapf(err, "sqlite: get session version %s", id)
	}
	return eris.Wrapf(ErrVersionConflict, "session %s at version %d, expected %d", id, version, expected)
}

// DeleteSession implements SessionStore.
func (s *SQLiteStore) DeleteSession(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM audit_sessions WHERE id = ?`, id)
	return eris.Wrapf(err, "sqlite: delete session %s", id)
}

// DeleteExpiredSessions implements SessionStore.
func (s *SQLiteStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM audit_sessions WHERE expires_at <= ?`, now.UTC())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired sessions")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: rows affected")
	}
	return int(n), nil
}

// SaveDiagnostic implements DiagnosticStore.
func (s *SQLiteStore) SaveDiagnostic(ctx context.Context, rec *model.DiagnosticRecord) error {
	input, err := json.Marshal(rec.Input)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal diagnostic input")
	}
	result, err := json.Marshal(rec.Result)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal diagnostic result")
	}
	var sessionID any
	if rec.SessionID != "" {
		sessionID = rec.SessionID
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO diagnostics (id, session_id, input, result, created_at) VALUES (?, ?, ?, ?, ?)`,
		rec.ID, sessionID, string(input), string(result), rec.CreatedAt.UTC(),
	)
	return eris.Wrapf(err, "sqlite: insert diagnostic %s", rec.ID)
}

// GetDiagnostic implements DiagnosticStore.
func (s *SQLiteStore) GetDiagnostic(ctx context.Context, id string) (*model.DiagnosticRecord, error) {
	var (
		rec           model.DiagnosticRecord
		sessionID     sql.NullString
		input, result string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, session_id, input, result, created_at FROM diagnostics WHERE id = ?`, id,
	).Scan(&rec.ID, &sessionID, &input, &result, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "diagnostic %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get diagnostic %s", id)
	}
	rec.SessionID = sessionID.String
	if err := json.Unmarshal([]byte(input), &rec.Input); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal diagnostic input")
	}
	if err := json.Unmarshal([]byte(result), &rec.Result); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal diagnostic result")
	}
	return &rec, nil
}
