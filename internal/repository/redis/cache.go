package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	redisx "github.com/kirinyoku/venuebook/internal/redis"
	"github.com/kirinyoku/venuebook/internal/repository"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

// missMarker is stored in place of a value the loader reported as missing.
const missMarker = "\x00missing"

// Cache is a JSON read-through cache. Concurrent loads of one key are
// collapsed into a single loader call.
type Cache struct {
	rdb     *redis.Client
	sf      singleflight.Group
	missTTL time.Duration
}

type Option func(*Cache)

// WithMissTTL remembers repository.ErrNotFound from a loader for ttl, so
// lookups of unknown ids stay off the backing store for a while.
func WithMissTTL(ttl time.Duration) Option {
	return func(c *Cache) { c.missTTL = ttl }
}

func New(client *redis.Client, opts ...Option) *Cache {
	c := &Cache{rdb: client}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache) GetString(ctx context.Context, key string) (string, bool, error) {
	s, err := c.rdb.Get(ctx, key).Result()
	switch {
	case errors.Is(err, redis.Nil):
		return "", false, nil
	case err != nil:
		return "", false, err
	}
	return s, true, nil
}

func (c *Cache) SetString(ctx context.Context, key, val string, ttl time.Duration) error {
	return c.rdb.Set(ctx, key, val, ttl).Err()
}

func (c *Cache) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.rdb.Del(ctx, keys...).Err()
}

// GetJSON decodes the value at key. A remembered miss is returned as
// repository.ErrNotFound.
func GetJSON[T any](ctx context.Context, c *Cache, key string) (T, bool, error) {
	var zero T

	s, ok, err := c.GetString(ctx, key)
	if err != nil || !ok {
		return zero, false, err
	}

	if s == missMarker {
		return zero, false, fmt.Errorf("cache %s:%w", key, repository.ErrNotFound)
	}

	var out T
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return zero, false, err
	}

	return out, true, nil
}

func SetJSON(ctx context.Context, c *Cache, key string, val any, ttl time.Duration) error {
	b, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return c.SetString(ctx, key, string(b), ttl)
}

// GetOrSetJSON returns the cached value at key, calling loader on a miss and
// storing what it returns for ttl. Redis failures and undecodable entries
// fall through to the loader; only the loader's own errors are returned.
func GetOrSetJSON[T any](
	ctx context.Context,
	c *Cache,
	key string,
	ttl time.Duration,
	loader func(ctx context.Context) (T, error),
) (T, error) {
	var zero T

	v, ok, err := GetJSON[T](ctx, c, key)
	if ok {
		return v, nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return zero, err
	}

	vAny, err, _ := c.sf.Do(key, func() (any, error) {
		loaded, err := loader(ctx)
		if err != nil {
			if c.missTTL > 0 && errors.Is(err, repository.ErrNotFound) {
				_ = c.SetString(ctx, key, missMarker, c.missTTL)
			}
			return nil, err
		}
		// a failed write only costs the next reader a reload
		_ = SetJSON(ctx, c, key, loaded, ttl)
		return loaded, nil
	})
	if err != nil {
		return zero, err
	}

	out, ok := vAny.(T)
	if !ok {
		return zero, fmt.Errorf("cache %s: unexpected value type %T", key, vAny)
	}

	return out, nil
}

// InvalidateVenueDay drops the cached busy windows of one venue day.
func (c *Cache) InvalidateVenueDay(ctx context.Context, venueID string, day time.Time) error {
	return c.Del(ctx, redisx.KeyVenueDayBusy(venueID, day))
}
