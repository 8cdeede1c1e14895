package condo

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

var fixtures = []Record{
	{ID: "AA1234567", Name: "Résidence Rivoli", Address: "12 Rue de Rivoli", PostalCode: "75004", City: "Paris", Units: 20, TotalLots: 34, ManagerName: "Foncia Paris", Lat: 48.8556, Lon: 2.3581},
	{ID: "AA7654321", Address: "12 Rue de Rivoli Bâtiment B", PostalCode: "75004", City: "Paris", Units: 8},
	{ID: "AB0000001", Address: "12 Rue de Rivoli", PostalCode: "59800", City: "Lille", Units: 40},
	{ID: "AC0000002", Address: "4 Bd Saint-Michel", PostalCode: "75005", City: "Paris", Units: 15},
}

func newSQLiteRegistry(t *testing.T) *SQLiteRegistry {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "condo.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() }) //nolint:errcheck
	r := NewSQLite(db)
	require.NoError(t, r.Migrate(context.Background()))
	return r
}

type registry interface {
	Registry
	Sink
}

func registries(t *testing.T) map[string]registry {
	return map[string]registry{
		"memory": NewMemory(),
		"sqlite": newSQLiteRegistry(t),
	}
}

func TestRegistry_Find(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			n, err := reg.Load(ctx, fixtures)
			require.NoError(t, err)
			assert.Equal(t, int64(len(fixtures)), n)

			r, err := reg.Find(ctx, "12 rue de rivoli", "75004")
			require.NoError(t, err)
			assert.Equal(t, "AA1234567", r.ID)
			assert.Equal(t, 20, r.Units)
			assert.Equal(t, "Foncia Paris", r.ManagerName)
			assert.InDelta(t, 48.8556, r.Lat, 1e-9)

			r, err = reg.Find(ctx, "4 boulevard saint michel", "75005")
			require.NoError(t, err)
			assert.Equal(t, "AC0000002", r.ID)

			r, err = reg.Find(ctx, "12 Rue de Rivoli", "59800")
			require.NoError(t, err)
			assert.Equal(t, 40, r.Units)

			_, err = reg.Find(ctx, "99 rue inconnue", "75004")
			assert.True(t, errors.Is(err, ErrNotFound))

			_, err = reg.Find(ctx, " , ", "75004")
			assert.True(t, errors.Is(err, ErrNotFound))
		})
	}
}

func TestRegistry_LoadReplaces(t *testing.T) {
	for name, reg := range registries(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			_, err := reg.Load(ctx, fixtures[:1])
			require.NoError(t, err)

			updated := fixtures[0]
			updated.Units = 22
			_, err = reg.Load(ctx, []Record{updated})
			require.NoError(t, err)

			r, err := reg.Find(ctx, "12 rue de rivoli", "75004")
			require.NoError(t, err)
			assert.Equal(t, 22, r.Units)
		})
	}
}

func TestLocation_RoundTrip(t *testing.T) {
	data, err := EncodeLocation(fixtures[0])
	require.NoError(t, err)
	require.NotEmpty(t, data)

	lat, lon, err := DecodeLocation(data)
	require.NoError(t, err)
	assert.InDelta(t, 48.8556, lat, 1e-12)
	assert.InDelta(t, 2.3581, lon, 1e-12)

	none, err := EncodeLocation(Record{ID: "x"})
	require.NoError(t, err)
	assert.Nil(t, none)
	lat, lon, err = DecodeLocation(nil)
	require.NoError(t, err)
	assert.Zero(t, lat)
	assert.Zero(t, lon)
}

func TestPostgresRegistry_Find(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	loc, err := EncodeLocation(fixtures[0])
	require.NoError(t, err)

	mock.ExpectQuery(`FROM condo_registry WHERE postal_code = \$1 AND address_key LIKE \$2`).
		WithArgs("75004", "%12 rue de rivoli%").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "address", "postal_code", "city", "city_code", "total_lots", "units", "manager_name", "period", "location"}).
			AddRow("AA1234567", "Résidence Rivoli", "12 Rue de Rivoli", "75004", "Paris", "75104", 34, 20, "Foncia Paris", "1949-1960", loc))

	reg := NewPostgres(mock)
	r, err := reg.Find(context.Background(), "12, r. de Rivoli", "75004")
	require.NoError(t, err)
	assert.Equal(t, 20, r.Units)
	assert.Equal(t, "1949-1960", r.Period)
	assert.InDelta(t, 2.3581, r.Lon, 1e-12)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRegistry_FindMiss(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectQuery(`FROM condo_registry`).
		WithArgs("75001", pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	_, err = NewPostgres(mock).Find(context.Background(), "1 rue x", "75001")
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresRegistry_Load(t *testing.T) {
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`CREATE TEMP TABLE "_tmp_upsert_condo_registry"`).WillReturnResult(pgxmock.NewResult("CREATE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"_tmp_upsert_condo_registry"}, upsertColumns).WillReturnResult(2)
	mock.ExpectExec(`INSERT INTO "condo_registry"`).WillReturnResult(pgxmock.NewResult("INSERT", 2))
	mock.ExpectCommit()

	n, err := NewPostgres(mock).Load(context.Background(), fixtures[:2])
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
