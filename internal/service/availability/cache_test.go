package availability

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/kirinyoku/venuebook/internal/catalog"
	"github.com/kirinyoku/venuebook/internal/domain"
	redisx "github.com/kirinyoku/venuebook/internal/redis"
	"github.com/kirinyoku/venuebook/internal/repository/memory"
	redisrepo "github.com/kirinyoku/venuebook/internal/repository/redis"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedSetup struct {
	svc   *Service
	peer  *Service
	store *memory.Store
	mr    *miniredis.Miniredis
}

// setupCached builds two checkers sharing one store and one redis, as two
// instances of the service would.
func setupCached(t *testing.T) cachedSetup {
	t.Helper()

	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	store := memory.NewStore()
	dir := catalog.NewStatic()
	dir.PutVenue(domain.Venue{ID: "v1", OwnerID: "owner", Capacity: 100, PricePerDayCents: 10000})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	cache := redisrepo.New(rdb)
	pubsub := redisx.NewVenueDayPubSub(rdb)

	return cachedSetup{
		svc:   New(store, dir, cache, pubsub, logger, Config{BusyTTL: time.Minute}),
		peer:  New(store, dir, cache, pubsub, logger, Config{BusyTTL: time.Minute}),
		store: store,
		mr:    mr,
	}
}

var afternoon = Query{VenueID: "v1", Date: "2026-03-01", StartTime: "15:00", EndTime: "17:00"}

func TestCheckServesBusyWindowsFromCache(t *testing.T) {
	s := setupCached(t)
	ctx := context.Background()

	res, err := s.svc.Check(ctx, afternoon)
	require.NoError(t, err)
	assert.True(t, res.Available)
	assert.True(t, s.mr.Exists(redisx.KeyVenueDayBusy("v1", march1)))

	// written behind the cache's back, so the cached empty day still answers
	seed(t, s.store, "v1", march1, "14:00", "16:00", domain.BookingPending)

	res, err = s.svc.Check(ctx, afternoon)
	require.NoError(t, err)
	assert.True(t, res.Available)

	s.svc.Invalidate(ctx, "v1", march1)
	assert.False(t, s.mr.Exists(redisx.KeyVenueDayBusy("v1", march1)))

	res, err = s.svc.Check(ctx, afternoon)
	require.NoError(t, err)
	assert.False(t, res.Available)
	assert.Equal(t, 1, res.ConflictingCount)
}

func TestCheckCacheExpires(t *testing.T) {
	s := setupCached(t)
	ctx := context.Background()

	_, err := s.svc.Check(ctx, afternoon)
	require.NoError(t, err)

	seed(t, s.store, "v1", march1, "14:00", "16:00", domain.BookingConfirmed)
	s.mr.FastForward(2 * time.Minute)

	res, err := s.svc.Check(ctx, afternoon)
	require.NoError(t, err)
	assert.False(t, res.Available)
}

func TestInvalidateReachesOtherInstances(t *testing.T) {
	s := setupCached(t)
	key := redisx.KeyVenueDayBusy("v1", march1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rdb := goredis.NewClient(&goredis.Options{Addr: s.mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	pubsub := redisx.NewVenueDayPubSub(rdb)
	forgotten := make(chan string, 1)
	go func() {
		_ = pubsub.Subscribe(ctx, func(ctx context.Context, venueID string, day time.Time) {
			s.peer.Forget(ctx, venueID, day)
			forgotten <- venueID
		})
	}()

	// the subscription is live once miniredis reports a subscriber
	require.Eventually(t, func() bool {
		return s.mr.PubSubNumSub(redisx.ChannelVenueDayChanged())[redisx.ChannelVenueDayChanged()] > 0
	}, time.Second, 5*time.Millisecond)

	_, err := s.peer.Check(ctx, afternoon)
	require.NoError(t, err)
	require.True(t, s.mr.Exists(key))

	s.svc.Invalidate(ctx, "v1", march1)

	select {
	case venueID := <-forgotten:
		assert.Equal(t, "v1", venueID)
	case <-time.After(time.Second):
		t.Fatal("peer never heard about the change")
	}
	assert.False(t, s.mr.Exists(key))
}
