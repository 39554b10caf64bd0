package redis

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kirinyoku/venuebook/internal/repository"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *goredis.Client) {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = rdb.Close() })

	return mr, rdb
}

type venue struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func TestGetOrSetJSONLoadsOnce(t *testing.T) {
	_, rdb := newClient(t)
	c := New(rdb)
	ctx := context.Background()

	var loads atomic.Int32
	load := func(context.Context) (venue, error) {
		loads.Add(1)
		return venue{ID: "v1", Name: "Lotus Hall"}, nil
	}

	for range 3 {
		v, err := GetOrSetJSON(ctx, c, "k", time.Minute, load)
		require.NoError(t, err)
		assert.Equal(t, "Lotus Hall", v.Name)
	}
	assert.Equal(t, int32(1), loads.Load())

	require.NoError(t, c.Del(ctx, "k"))
	_, err := GetOrSetJSON(ctx, c, "k", time.Minute, load)
	require.NoError(t, err)
	assert.Equal(t, int32(2), loads.Load())
}

func TestGetOrSetJSONRemembersMisses(t *testing.T) {
	mr, rdb := newClient(t)
	c := New(rdb, WithMissTTL(10*time.Second))
	ctx := context.Background()

	var loads atomic.Int32
	load := func(context.Context) (venue, error) {
		loads.Add(1)
		return venue{}, fmt.Errorf("venue v9:%w", repository.ErrNotFound)
	}

	for range 3 {
		_, err := GetOrSetJSON(ctx, c, "miss", time.Minute, load)
		assert.ErrorIs(t, err, repository.ErrNotFound)
	}
	assert.Equal(t, int32(1), loads.Load())

	mr.FastForward(11 * time.Second)

	_, err := GetOrSetJSON(ctx, c, "miss", time.Minute, load)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.Equal(t, int32(2), loads.Load())
}

func TestGetOrSetJSONDoesNotRememberOtherErrors(t *testing.T) {
	mr, rdb := newClient(t)
	c := New(rdb, WithMissTTL(10*time.Second))
	ctx := context.Background()

	_, err := GetOrSetJSON(ctx, c, "k", time.Minute, func(context.Context) (venue, error) {
		return venue{}, errors.New("mongo timeout")
	})
	require.Error(t, err)
	assert.False(t, mr.Exists("k"))
}

func TestGetOrSetJSONFallsBackWhenRedisIsDown(t *testing.T) {
	mr, rdb := newClient(t)
	c := New(rdb)
	mr.Close()

	v, err := GetOrSetJSON(context.Background(), c, "k", time.Minute, func(context.Context) (venue, error) {
		return venue{ID: "v1"}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "v1", v.ID)
}

func TestIdempotencyStoreLifecycle(t *testing.T) {
	_, rdb := newClient(t)
	s := NewIdempotencyStore(rdb, time.Hour)
	ctx := context.Background()

	_, found, locked, err := s.GetResult(ctx, "idem")
	require.NoError(t, err)
	assert.False(t, found)
	assert.False(t, locked)

	ok, err := s.AcquireLock(ctx, "idem", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.AcquireLock(ctx, "idem", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok, "second claim must lose")

	_, found, locked, err = s.GetResult(ctx, "idem")
	require.NoError(t, err)
	assert.False(t, found)
	assert.True(t, locked)

	require.NoError(t, s.SaveResult(ctx, "idem", `{"ok":true}`))
	payload, found, _, err := s.GetResult(ctx, "idem")
	require.NoError(t, err)
	assert.True(t, found)
	assert.JSONEq(t, `{"ok":true}`, payload)

	require.NoError(t, s.Release(ctx, "idem"))
	_, found, locked, err = s.GetResult(ctx, "idem")
	require.NoError(t, err)
	assert.False(t, found)
	assert.False(t, locked)
}

func TestSlidingWindowLimiter(t *testing.T) {
	_, rdb := newClient(t)
	l := NewSlidingWindowLimiter(rdb, 2, time.Minute)
	ctx := context.Background()

	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return start }

	for i := range 2 {
		d, err := l.Allow(ctx, "bookings.create", "cust")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "hit %d", i+1)
	}

	l.now = func() time.Time { return start.Add(20 * time.Second) }
	d, err := l.Allow(ctx, "bookings.create", "cust")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 40*time.Second, d.RetryAfter)

	other, err := l.Allow(ctx, "bookings.create", "someone-else")
	require.NoError(t, err)
	assert.True(t, other.Allowed, "windows are per caller")

	l.now = func() time.Time { return start.Add(61 * time.Second) }
	d, err = l.Allow(ctx, "bookings.create", "cust")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
}
