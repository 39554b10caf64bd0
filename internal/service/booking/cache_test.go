package booking

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kirinyoku/venuebook/internal/domain"
	redisx "github.com/kirinyoku/venuebook/internal/redis"
	redisrepo "github.com/kirinyoku/venuebook/internal/repository/redis"
	"github.com/kirinyoku/venuebook/internal/service/availability"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateAndCancelRefreshCachedAvailability(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	avail := availability.New(f.store, f.dir, redisrepo.New(rdb), redisx.NewVenueDayPubSub(rdb), logger,
		availability.Config{BusyTTL: time.Hour})
	svc := New(f.store, f.dir, avail, logger)

	q := availability.Query{VenueID: "v1", Date: "2026-03-01", StartTime: "14:00", EndTime: "16:00"}
	key := redisx.KeyVenueDayBusy("v1", time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))

	res, err := avail.Check(ctx, q)
	require.NoError(t, err)
	require.True(t, res.Available)
	require.True(t, mr.Exists(key))

	b, err := svc.Create(ctx, input("14:00", "16:00"))
	require.NoError(t, err)
	assert.False(t, mr.Exists(key), "create drops the cached day")

	res, err = avail.Check(ctx, q)
	require.NoError(t, err)
	assert.False(t, res.Available)
	require.True(t, mr.Exists(key))

	_, err = svc.Cancel(ctx, b.ID, "cust")
	require.NoError(t, err)
	assert.False(t, mr.Exists(key), "cancel drops the cached day")

	res, err = avail.Check(ctx, q)
	require.NoError(t, err)
	assert.True(t, res.Available)

	got, err := svc.Get(ctx, b.ID, "cust")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, got.Status)
}
