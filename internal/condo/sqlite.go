package condo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/rotisserie/eris"
)

// SQLiteRegistry stores the registry in a SQLite database.
type SQLiteRegistry struct {
	db *sql.DB
}

// NewSQLite wraps an open database handle.
func NewSQLite(db *sql.DB) *SQLiteRegistry {
	return &SQLiteRegistry{db: db}
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS condo_registry (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL DEFAULT '',
	address      TEXT NOT NULL,
	address_key  TEXT NOT NULL,
	postal_code  TEXT NOT NULL,
	city         TEXT NOT NULL DEFAULT '',
	city_code    TEXT NOT NULL DEFAULT '',
	total_lots   INTEGER NOT NULL DEFAULT 0,
	units        INTEGER NOT NULL DEFAULT 0,
	manager_name TEXT NOT NULL DEFAULT '',
	period       TEXT NOT NULL DEFAULT '',
	lat          REAL,
	lon          REAL
);
CREATE INDEX IF NOT EXISTS idx_condo_registry_postal_code ON condo_registry(postal_code);
`

// Migrate creates the registry table.
func (s *SQLiteRegistry) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "condo: sqlite migrate")
}

// Load implements Sink.
func (s *SQLiteRegistry) Load(ctx context.Context, records []Record) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "condo: sqlite begin")
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `INSERT OR REPLACE INTO condo_registry
		(id, name, address, address_key, postal_code, city, city_code, total_lots, units, manager_name, period, lat, lon)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return 0, eris.Wrap(err, "condo: sqlite prepare")
	}
	defer stmt.Close() //nolint:errcheck

	for _, r := range records {
		var lat, lon any
		if r.HasLocation() {
			lat, lon = r.Lat, r.Lon
		}
		if _, err := stmt.ExecContext(ctx, r.ID, r.Name, r.Address, r.AddressKey(), r.PostalCode,
			r.City, r.CityCode, r.TotalLots, r.Units, r.ManagerName, r.Period, lat, lon); err != nil {
			return 0, eris.Wrapf(err, "condo: sqlite insert %s", r.ID)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "condo: sqlite commit")
	}
	return int64(len(records)), nil
}

// Find implements Registry.
func (s *SQLiteRegistry) Find(ctx context.Context, street, postalCode string) (*Record, error) {
	pattern, err := likePattern(street)
	if err != nil {
		return nil, err
	}
	var (
		r        Record
		lat, lon sql.NullFloat64
	)
	err = s.db.QueryRowContext(ctx, `SELECT id, name, address, postal_code, city, city_code, total_lots, units, manager_name, period, lat, lon
		FROM condo_registry WHERE postal_code = ? AND address_key LIKE ?
		ORDER BY length(address_key), id LIMIT 1`, postalCode, pattern,
	).Scan(&r.ID, &r.Name, &r.Address, &r.PostalCode, &r.City, &r.CityCode, &r.TotalLots, &r.Units, &r.ManagerName, &r.Period, &lat, &lon)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "condo: %s %s", street, postalCode)
	}
	if err != nil {
		return nil, eris.Wrap(err, "condo: sqlite find")
	}
	r.Lat, r.Lon = lat.Float64, lon.Float64
	return &r, nil
}
