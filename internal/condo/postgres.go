package condo

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/sells-group/audit-flash/internal/db"
)

// PostgresRegistry stores the registry in Postgres. Locations are kept as
// EWKB points (SRID 4326) so the column can be cast to PostGIS geometry.
type PostgresRegistry struct {
	pool db.Pool
}

// NewPostgres wraps a pool.
func NewPostgres(pool db.Pool) *PostgresRegistry {
	return &PostgresRegistry{pool: pool}
}

// PostgresMigration creates the registry table.
const PostgresMigration = `
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
	location     BYTEA
);
CREATE INDEX IF NOT EXISTS idx_condo_registry_postal_key ON condo_registry(postal_code, address_key);
`

var upsertColumns = []string{
	"id", "name", "address", "address_key", "postal_code", "city", "city_code",
	"total_lots", "units", "manager_name", "period", "location",
}

// Migrate creates the registry table.
func (p *PostgresRegistry) Migrate(ctx context.Context) error {
	_, err := p.pool.Exec(ctx, PostgresMigration)
	return eris.Wrap(err, "condo: postgres migrate")
}

// EncodeLocation returns the EWKB point for r, or nil without coordinates.
func EncodeLocation(r Record) ([]byte, error) {
	if !r.HasLocation() {
		return nil, nil
	}
	pt := geom.NewPointFlat(geom.XY, []float64{r.Lon, r.Lat}).SetSRID(4326)
	data, err := ewkb.Marshal(pt, ewkb.NDR)
	if err != nil {
		return nil, eris.Wrap(err, "condo: encode location")
	}
	return data, nil
}

// DecodeLocation parses an EWKB point into lat, lon.
func DecodeLocation(data []byte) (lat, lon float64, err error) {
	if len(data) == 0 {
		return 0, 0, nil
	}
	g, err := ewkb.Unmarshal(data)
	if err != nil {
		return 0, 0, eris.Wrap(err, "condo: decode location")
	}
	pt, ok := g.(*geom.Point)
	if !ok {
		return 0, 0, eris.Errorf("condo: location is %T, want point", g)
	}
	return pt.Y(), pt.X(), nil
}

// Load implements Sink via a bulk upsert keyed on id.
func (p *PostgresRegistry) Load(ctx context.Context, records []Record) (int64, error) {
	rows := make([][]any, 0, len(records))
	for _, r := range records {
		loc, err := EncodeLocation(r)
		if err != nil {
			return 0, err
		}
		rows = append(rows, []any{
			r.ID, r.Name, r.Address, r.AddressKey(), r.PostalCode, r.City, r.CityCode,
			r.TotalLots, r.Units, r.ManagerName, r.Period, loc,
		})
	}
	n, err := db.BulkUpsert(ctx, p.pool, db.UpsertConfig{
		Table:        "condo_registry",
		Columns:      upsertColumns,
		ConflictKeys: []string{"id"},
	}, rows)
	if err != nil {
		return 0, eris.Wrap(err, "condo: postgres load")
	}
	return n, nil
}

// Find implements Registry.
func (p *PostgresRegistry) Find(ctx context.Context, street, postalCode string) (*Record, error) {
	pattern, err := likePattern(street)
	if err != nil {
		return nil, err
	}
	var (
		r   Record
		loc []byte
	)
	err = p.pool.QueryRow(ctx, `SELECT id, name, address, postal_code, city, city_code, total_lots, units, manager_name, period, location
		FROM condo_registry WHERE postal_code = $1 AND address_key LIKE $2
		ORDER BY length(address_key), id LIMIT 1`, postalCode, pattern,
	).Scan(&r.ID, &r.Name, &r.Address, &r.PostalCode, &r.City, &r.CityCode, &r.TotalLots, &r.Units, &r.ManagerName, &r.Period, &loc)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "condo: %s %s", street, postalCode)
	}
	if err != nil {
		return nil, eris.Wrap(err, "condo: postgres find")
	}
	if r.Lat, r.Lon, err = DecodeLocation(loc); err != nil {
		return nil, err
	}
	return &r, nil
}
