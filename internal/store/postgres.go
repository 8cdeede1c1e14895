package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/audit-flash/internal/db"
	"github.com/sells-group/audit-flash/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// preparedStatements lists queries prepared on each new connection.
var preparedStatements = map[string]string{
	"insert_session":      `INSERT INTO audit_sessions (id, state, version, data, created_at, updated_at, expires_at) VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (id) DO NOTHING`,
	"get_session":         `SELECT data, version FROM audit_sessions WHERE id = $1`,
	"cas_session":         `UPDATE audit_sessions SET state = $1, version = $2, data = $3, updated_at = $4, expires_at = $5 WHERE id = $6 AND version = $7`,
	"delete_session":      `DELETE FROM audit_sessions WHERE id = $1`,
	"delete_expired":      `DELETE FROM audit_sessions WHERE expires_at <= $1`,
	"insert_diagnostic":   `INSERT INTO diagnostics (id, session_id, input, result, created_at) VALUES ($1, $2, $3, $4, $5)`,
	"get_diagnostic":      `SELECT id, COALESCE(session_id, ''), input, result, created_at FROM diagnostics WHERE id = $1`,
	"get_session_version": `SELECT version FROM audit_sessions WHERE id = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *db.PoolConfig) (*PostgresStore, error) {
	pool, err := db.Connect(ctx, connString, poolCfg, preparedStatements)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: connect")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Close does not release it.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying pool for subsystems sharing the database
// (geocode cache, condominium registry).
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

// PostgresMigration creates the session and diagnostic tables.
const PostgresMigration = `
CREATE TABLE IF NOT EXISTS audit_sessions (
	id         TEXT PRIMARY KEY,
	state      TEXT NOT NULL,
	version    BIGINT NOT NULL DEFAULT 0,
	data       JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS diagnostics (
	id         TEXT PRIMARY KEY,
	session_id TEXT,
	input      JSONB NOT NULL,
	result     JSONB NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_audit_sessions_expires_at ON audit_sessions(expires_at);
CREATE INDEX IF NOT EXISTS idx_diagnostics_session_id ON diagnostics(session_id);
`

// Migrate creates the tables.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, PostgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

// Close releases the pool when the store owns it.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// CreateSession implements SessionStore.
func (s *PostgresStore) CreateSession(ctx context.Context, sess *model.AuditSession) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal session")
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO audit_sessions (id, state, version, data, created_at, updated_at, expires_at) VALUES ($1, $2, $3, $4, $5, $6, $7) ON CONFLICT (id) DO NOTHING`,
		sess.ID, string(sess.State), sess.Version, data, sess.CreatedAt, sess.UpdatedAt, sess.ExpiresAt,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: insert session %s", sess.ID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Wrapf(ErrExists, "session %s", sess.ID)
	}
	return nil
}

// GetSession implements SessionStore.
func (s *PostgresStore) GetSession(ctx context.Context, id string) (*model.AuditSession, error) {
	var data []byte
	var version int64
	err := s.pool.QueryRow(ctx, `SELECT data, version FROM audit_sessions WHERE id = $1`, id).Scan(&data, &version)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "session %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get session %s", id)
	}
	var sess model.AuditSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal session")
	}
	sess.Version = version
	return &sess, nil
}

// UpdateSession implements SessionStore.
func (s *PostgresStore) UpdateSession(ctx context.Context, sess *model.AuditSession, expected int64) error {
	next := *sess
	next.Version = expected + 1
	data, err := json.Marshal(&next)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal session")
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE audit_sessions SET state = $1, version = $2, data = $3, updated_at = $4, expires_at = $5 WHERE id = $6 AND version = $7`,
		string(next.State), next.Version, data, next.UpdatedAt, next.ExpiresAt, sess.ID, expected,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update session %s", sess.ID)
	}
	if tag.RowsAffected() == 0 {
		var version int64
		err := s.pool.QueryRow(ctx, `SELECT version FROM audit_sessions WHERE id = $1`, sess.ID).Scan(&version)
		if errors.Is(err, pgx.ErrNoRows) {
			return eris.Wrapf(ErrNotFound, "session %s", sess.ID)
		}
		if err != nil {
			return eris.Wrapf(err, "postgres: get session version %s", sess.ID)
		}
		return eris.Wrapf(ErrVersionConflict, "session %s at version %d, expected %d", sess.ID, version, expected)
	}
	sess.Version = next.Version
	return nil
}

// DeleteSession implements SessionStore.
func (s *PostgresStore) DeleteSession(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM audit_sessions WHERE id = $1`, id)
	return eris.Wrapf(err, "postgres: delete session %s", id)
}

// DeleteExpiredSessions implements SessionStore.
func (s *PostgresStore) DeleteExpiredSessions(ctx context.Context, now time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM audit_sessions WHERE expires_at <= $1`, now)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired sessions")
	}
	return int(tag.RowsAffected()), nil
}

// SaveDiagnostic implements DiagnosticStore.
func (s *PostgresStore) SaveDiagnostic(ctx context.Context, rec *model.DiagnosticRecord) error {
	input, err := json.Marshal(rec.Input)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal diagnostic input")
	}
	result, err := json.Marshal(rec.Result)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal diagnostic result")
	}
	var sessionID *string
	if rec.SessionID != "" {
		sessionID = &rec.SessionID
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO diagnostics (id, session_id, input, result, created_at) VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, sessionID, input, result, rec.CreatedAt,
	)
	return eris.Wrapf(err, "postgres: insert diagnostic %s", rec.ID)
}

// GetDiagnostic implements DiagnosticStore.
func (s *PostgresStore) GetDiagnostic(ctx context.Context, id string) (*model.DiagnosticRecord, error) {
	var (
		rec           model.DiagnosticRecord
		input, result []byte
	)
	err := s.pool.QueryRow(ctx,
		`SELECT id, COALESCE(session_id, ''), input, result, created_at FROM diagnostics WHERE id = $1`, id,
	).Scan(&rec.ID, &rec.SessionID, &input, &result, &rec.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "diagnostic %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get diagnostic %s", id)
	}
	if err := json.Unmarshal(input, &rec.Input); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal diagnostic input")
	}
	if err := json.Unmarshal(result, &rec.Result); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal diagnostic result")
	}
	return &rec, nil
}
