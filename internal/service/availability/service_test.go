package availability

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/venuebook/internal/catalog"
	"github.com/kirinyoku/venuebook/internal/domain"
	"github.com/kirinyoku/venuebook/internal/repository/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var march1 = time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Service, *memory.Store) {
	t.Helper()

	store := memory.NewStore()
	dir := catalog.NewStatic()
	dir.PutVenue(domain.Venue{ID: "v1", OwnerID: "owner", Capacity: 100, PricePerDayCents: 10000})
	dir.PutVenue(domain.Venue{ID: "v2", OwnerID: "owner", Capacity: 100, PricePerDayCents: 10000})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, dir, nil, nil, logger, Config{}), store
}

func seed(t *testing.T, store *memory.Store, venue string, day time.Time, start, end string, status domain.BookingStatus) {
	t.Helper()

	err := store.Repos().Bookings().Create(context.Background(), &domain.Booking{
		ID:        uuid.New(),
		VenueID:   venue,
		EventDate: day,
		StartTime: start,
		EndTime:   end,
		Status:    status,
	})
	require.NoError(t, err)
}

func TestCheckReportsOverlap(t *testing.T) {
	svc, store := setup(t)
	seed(t, store, "v1", march1, "14:00", "16:00", domain.BookingPending)

	res, err := svc.Check(context.Background(), Query{VenueID: "v1", Date: "2026-03-01", StartTime: "15:00", EndTime: "17:00"})
	require.NoError(t, err)
	assert.Equal(t, Result{Available: false, ConflictingCount: 1}, res)
}

func TestCheckTouchingIntervalsAreFree(t *testing.T) {
	svc, store := setup(t)
	seed(t, store, "v1", march1, "14:00", "16:00", domain.BookingConfirmed)

	for _, q := range []Query{
		{VenueID: "v1", Date: "2026-03-01", StartTime: "16:00", EndTime: "18:00"},
		{VenueID: "v1", Date: "2026-03-01", StartTime: "12:00", EndTime: "14:00"},
	} {
		res, err := svc.Check(context.Background(), q)
		require.NoError(t, err)
		assert.True(t, res.Available, "%s-%s", q.StartTime, q.EndTime)
		assert.Zero(t, res.ConflictingCount)
	}
}

func TestCheckIgnoresInactiveOtherVenuesAndDays(t *testing.T) {
	svc, store := setup(t)
	seed(t, store, "v1", march1, "10:00", "20:00", domain.BookingCancelled)
	seed(t, store, "v1", march1, "10:00", "20:00", domain.BookingCompleted)
	seed(t, store, "v2", march1, "10:00", "20:00", domain.BookingPending)
	seed(t, store, "v1", march1.AddDate(0, 0, 1), "10:00", "20:00", domain.BookingPending)

	res, err := svc.Check(context.Background(), Query{VenueID: "v1", Date: "2026-03-01", StartTime: "12:00", EndTime: "13:00"})
	require.NoError(t, err)
	assert.True(t, res.Available)
}

func TestCheckCountsEveryOverlap(t *testing.T) {
	svc, store := setup(t)
	seed(t, store, "v1", march1, "09:00", "11:00", domain.BookingPending)
	seed(t, store, "v1", march1, "12:00", "13:00", domain.BookingConfirmed)
	seed(t, store, "v1", march1, "18:00", "19:00", domain.BookingConfirmed)

	res, err := svc.Check(context.Background(), Query{VenueID: "v1", Date: "2026-03-01", StartTime: "10:00", EndTime: "14:00"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.ConflictingCount)
	assert.False(t, res.Available)
}

func TestCheckValidation(t *testing.T) {
	svc, _ := setup(t)
	ctx := context.Background()

	_, err := svc.Check(ctx, Query{VenueID: "v1", Date: "01/03/2026", StartTime: "10:00", EndTime: "11:00"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Check(ctx, Query{VenueID: "v1", Date: "2026-03-01", StartTime: "1000", EndTime: "11:00"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Check(ctx, Query{VenueID: "v1", Date: "2026-03-01", StartTime: "12:00", EndTime: "11:00"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.Check(ctx, Query{VenueID: "missing", Date: "2026-03-01", StartTime: "10:00", EndTime: "11:00"})
	assert.ErrorIs(t, err, ErrVenueNotFound)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCountConflictsReadsLiveRows(t *testing.T) {
	_, store := setup(t)
	seed(t, store, "v1", march1, "14:00", "16:00", domain.BookingPending)

	n, err := CountConflicts(context.Background(), store.Repos().Bookings(), "v1", march1, domain.Window{Start: 15 * 60, End: 17 * 60})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
