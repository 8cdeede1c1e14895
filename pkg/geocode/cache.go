package geocode

import (
	"context"
	"crypto/sha256"
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/audit-flash/internal/textnorm"
)

// CacheMigration creates the geocode cache table.
const CacheMigration = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	query_hash TEXT PRIMARY KEY,
	label      TEXT NOT NULL,
	postcode   TEXT NOT NULL,
	city       TEXT NOT NULL,
	citycode   TEXT NOT NULL,
	latitude   DOUBLE PRECISION NOT NULL,
	longitude  DOUBLE PRECISION NOT NULL,
	score      DOUBLE PRECISION NOT NULL,
	match_type TEXT NOT NULL DEFAULT '',
	cached_at  TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_geocode_cache_cached_at ON geocode_cache(cached_at);
`

// cacheKey returns the SHA-256 hex of the folded query, so spelling variants
// of the same address share an entry.
func cacheKey(query string) string {
	h := sha256.Sum256([]byte(textnorm.Fold(query)))
	return fmt.Sprintf("%x", h)
}

func (g *geocoder) checkCache(ctx context.Context, key string) (*Result, error) {
	query := `SELECT label, postcode, city, citycode, latitude, longitude, score, match_type FROM geocode_cache WHERE query_hash = $1`
	args := []any{key}
	if g.cacheTTL > 0 {
		query += ` AND cached_at > now() - make_interval(secs => $2)`
		args = append(args, g.cacheTTL.Seconds())
	}

	var r Result
	err := g.pool.QueryRow(ctx, query, args...).Scan(
		&r.Label, &r.PostCode, &r.City, &r.CityCode, &r.Latitude, &r.Longitude, &r.Score, &r.Type,
	)
	if err != nil {
		return nil, err
	}
	r.Cached = true
	zap.L().Debug("geocode cache hit", zap.String("key", key[:12]), zap.String("label", r.Label))
	return &r, nil
}

func (g *geocoder) storeCache(ctx context.Context, key string, r *Result) error {
	_, err := g.pool.Exec(ctx, `
		INSERT INTO geocode_cache (query_hash, label, postcode, city, citycode, latitude, longitude, score, match_type, cached_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, now())
		ON CONFLICT (query_hash) DO UPDATE SET
			label = EXCLUDED.label,
			postcode = EXCLUDED.postcode,
			city = EXCLUDED.city,
			citycode = EXCLUDED.citycode,
			latitude = EXCLUDED.latitude,
			longitude = EXCLUDED.longitude,
			score = EXCLUDED.score,
			match_type = EXCLUDED.match_type,
			cached_at = now()`,
		key, r.Label, r.PostCode, r.City, r.CityCode, r.Latitude, r.Longitude, r.Score, r.Type,
	)
	if err != nil {
		return eris.Wrap(err, "geocode: store cache")
	}
	return nil
}
