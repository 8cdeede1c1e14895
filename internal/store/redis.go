package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rotisserie/eris"

	"github.com/sells-group/audit-flash/internal/model"
)

const sessionKeyPrefix = "audit:session:"

// RedisSessions implements SessionStore on Redis so every API instance sees
// the same sessions. Keys expire with the session, so DeleteExpiredSessions
// has nothing to do.
type RedisSessions struct {
	client *redis.Client
	now    func() time.Time
}

// NewRedisSessions wraps a connected client.
func NewRedisSessions(client *redis.Client) *RedisSessions {
	return &RedisSessions{client: client, now: time.Now}
}

// OpenRedis parses url, connects and pings.
func OpenRedis(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, eris.Wrap(err, "redis: parse url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close() //nolint:errcheck
		return nil, eris.Wrap(err, "redis: ping")
	}
	return client, nil
}

func sessionKey(id string) string { return sessionKeyPrefix + id }

func (r *RedisSessions) ttl(s *model.AuditSession) time.Duration {
	if s.ExpiresAt.IsZero() {
		return 0
	}
	d := s.ExpiresAt.Sub(r.now())
	if d <= 0 {
		return time.Millisecond
	}
	return d
}

// CreateSession implements SessionStore.
func (r *RedisSessions) CreateSession(ctx context.Context, s *model.AuditSession) error {
	data, err := json.Marshal(s)
	if err != nil {
		return eris.Wrap(err, "redis: marshal session")
	}
	ok, err := r.client.SetNX(ctx, sessionKey(s.ID), data, r.ttl(s)).Result()
	if err != nil {
		return eris.Wrapf(err, "redis: create session %s", s.ID)
	}
	if !ok {
		return eris.Wrapf(ErrExists, "session %s", s.ID)
	}
	return nil
}

// GetSession implements SessionStore.
func (r *RedisSessions) GetSession(ctx context.Context, id string) (*model.AuditSession, error) {
	data, err := r.client.Get(ctx, sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, eris.Wrapf(ErrNotFound, "session %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "redis: get session %s", id)
	}
	var s model.AuditSession
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, eris.Wrap(err, "redis: unmarshal session")
	}
	return &s, nil
}

// UpdateSession implements SessionStore with WATCH/MULTI. A concurrent write
// between the read and the commit surfaces as ErrVersionConflict.
func (r *RedisSessions) UpdateSession(ctx context.Context, s *model.AuditSession, expected int64) error {
	key := sessionKey(s.ID)
	next := *s
	next.Version = expected + 1
	data, err := json.Marshal(&next)
	if err != nil {
		return eris.Wrap(err, "redis: marshal session")
	}

	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return eris.Wrapf(ErrNotFound, "session %s", s.ID)
		}
		if err != nil {
			return err
		}
		var current struct {
			Version int64 `json:"version"`
		}
		if err := json.Unmarshal(raw, &current); err != nil {
			return eris.Wrap(err, "redis: unmarshal session version")
		}
		if current.Version != expected {
			return eris.Wrapf(ErrVersionConflict, "session %s at version %d, expected %d", s.ID, current.Version, expected)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.ttl(&next))
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return eris.Wrapf(ErrVersionConflict, "session %s modified concurrently", s.ID)
	}
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrVersionConflict) {
			return err
		}
		return eris.Wrapf(err, "redis: update session %s", s.ID)
	}
	s.Version = next.Version
	return nil
}

// DeleteSession implements SessionStore.
func (r *RedisSessions) DeleteSession(ctx context.Context, id string) error {
	return eris.Wrapf(r.client.Del(ctx, sessionKey(id)).Err(), "redis: delete session %s", id)
}

// DeleteExpiredSessions implements SessionStore. Redis expires keys itself.
func (r *RedisSessions) DeleteExpiredSessions(context.Context, time.Time) (int, error) {
	return 0, nil
}
