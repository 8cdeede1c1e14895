package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/audit-flash/internal/db"
)

// Options selects and configures a backend.
type Options struct {
	// Driver is memory, sqlite or postgres.
	Driver string
	DSN    string
	Pool   *db.PoolConfig
	// RedisURL, when set, moves sessions to Redis. Diagnostics stay on Driver.
	RedisURL string
}

// Open builds the backend described by opts and runs its migration.
func Open(ctx context.Context, opts Options) (Store, error) {
	var base Store
	switch opts.Driver {
	case "", "memory":
		base = NewMemory()
	case "sqlite":
		s, err := NewSQLite(opts.DSN)
		if err != nil {
			return nil, err
		}
		base = s
	case "postgres":
		s, err := NewPostgres(ctx, opts.DSN, opts.Pool)
		if err != nil {
			return nil, err
		}
		base = s
	default:
		return nil, eris.Errorf("store: unknown driver %q", opts.Driver)
	}

	if err := base.Migrate(ctx); err != nil {
		base.Close() //nolint:errcheck
		return nil, err
	}
	if opts.RedisURL == "" {
		return base, nil
	}

	client, err := OpenRedis(ctx, opts.RedisURL)
	if err != nil {
		base.Close() //nolint:errcheck
		return nil, err
	}
	return NewSplit(NewRedisSessions(client), base, client.Close), nil
}
