package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/venuebook/internal/domain"
	"github.com/kirinyoku/venuebook/internal/repository"
	"github.com/kirinyoku/venuebook/internal/uow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBooking(venue string, day time.Time, start, end string) *domain.Booking {
	return &domain.Booking{
		ID:            uuid.New(),
		CustomerID:    "cust",
		VenueID:       venue,
		EventDate:     day,
		StartTime:     start,
		EndTime:       end,
		Status:        domain.BookingPending,
		PaymentStatus: domain.BookingPaymentPending,
	}
}

func TestDoRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	boom := errors.New("boom")

	hookRan := false
	err := s.Do(ctx, func(ctx context.Context, tx repository.Tx, after func(uow.AfterCommit)) error {
		require.NoError(t, tx.Bookings().Create(ctx, newBooking("v1", time.Now(), "10:00", "11:00")))
		after(func(context.Context) { hookRan = true })
		return boom
	})
	require.ErrorIs(t, err, boom)
	assert.False(t, hookRan)

	b, _, _ := s.Counts()
	assert.Zero(t, b)
}

func TestDoRunsHooksAfterCommit(t *testing.T) {
	ctx := context.Background()
	s := NewStore()

	hookRan := false
	err := s.Do(ctx, func(ctx context.Context, tx repository.Tx, after func(uow.AfterCommit)) error {
		after(func(context.Context) { hookRan = true })
		return tx.Bookings().Create(ctx, newBooking("v1", time.Now(), "10:00", "11:00"))
	})
	require.NoError(t, err)
	assert.True(t, hookRan)
}

func TestBookingUpdateChecksVersion(t *testing.T) {
	ctx := context.Background()
	bookings := NewStore().Repos().Bookings()

	b := newBooking("v1", time.Now(), "10:00", "11:00")
	require.NoError(t, bookings.Create(ctx, b))

	first, err := bookings.Get(ctx, b.ID)
	require.NoError(t, err)
	second, err := bookings.Get(ctx, b.ID)
	require.NoError(t, err)

	first.Status = domain.BookingConfirmed
	require.NoError(t, bookings.Update(ctx, first))
	assert.Equal(t, int64(2), first.Version)

	second.Status = domain.BookingCancelled
	assert.ErrorIs(t, bookings.Update(ctx, second), repository.ErrStaleVersion)
}

func TestActiveForVenueDay(t *testing.T) {
	ctx := context.Background()
	bookings := NewStore().Repos().Bookings()
	day := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	keep := newBooking("v1", day, "14:00", "16:00")
	cancelled := newBooking("v1", day, "10:00", "12:00")
	cancelled.Status = domain.BookingCancelled
	otherDay := newBooking("v1", day.AddDate(0, 0, 1), "14:00", "16:00")
	otherVenue := newBooking("v2", day, "14:00", "16:00")

	for _, b := range []*domain.Booking{keep, cancelled, otherDay, otherVenue} {
		require.NoError(t, bookings.Create(ctx, b))
	}

	got, err := bookings.ActiveForVenueDay(ctx, "v1", day.Add(15*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, keep.ID, got[0].ID)
}

func TestPaymentUniqueness(t *testing.T) {
	ctx := context.Background()
	payments := NewStore().Repos().Payments()
	bookingID := uuid.New()

	p1 := &domain.Payment{ID: uuid.New(), BookingID: bookingID, GatewayOrderID: "order_1", Status: domain.PaymentCompleted}
	require.NoError(t, payments.Create(ctx, p1))

	dupOrder := &domain.Payment{ID: uuid.New(), BookingID: uuid.New(), GatewayOrderID: "order_1", Status: domain.PaymentInitiated}
	assert.ErrorIs(t, payments.Create(ctx, dupOrder), repository.ErrConflict)

	p2 := &domain.Payment{ID: uuid.New(), BookingID: bookingID, GatewayOrderID: "order_2", Status: domain.PaymentInitiated}
	require.NoError(t, payments.Create(ctx, p2))

	p2.Status = domain.PaymentCompleted
	assert.ErrorIs(t, payments.Update(ctx, p2, domain.PaymentInitiated), repository.ErrConflict)

	p2.Status = domain.PaymentFailed
	require.NoError(t, payments.Update(ctx, p2, domain.PaymentInitiated))
	assert.ErrorIs(t, payments.Update(ctx, p2, domain.PaymentInitiated), repository.ErrStaleVersion)
}

func TestNextSequencePerYear(t *testing.T) {
	ctx := context.Background()
	invoices := NewStore().Repos().Invoices()

	for want := 1; want <= 3; want++ {
		got, err := invoices.NextSequence(ctx, 2026)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	got, err := invoices.NextSequence(ctx, 2027)
	require.NoError(t, err)
	assert.Equal(t, 1, got)
}

func TestFailInjectsOnce(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	boom := errors.New("boom")
	s.Fail("invoices.sequence", boom)

	_, err := s.Repos().Invoices().NextSequence(ctx, 2026)
	assert.ErrorIs(t, err, boom)

	_, err = s.Repos().Invoices().NextSequence(ctx, 2026)
	assert.NoError(t, err)
}
