package invoice

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/venuebook/internal/domain"
	"github.com/kirinyoku/venuebook/internal/notify"
	"github.com/kirinyoku/venuebook/internal/repository"
	"github.com/kirinyoku/venuebook/internal/repository/memory"
	"github.com/kirinyoku/venuebook/internal/uow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu   sync.Mutex
	msgs []notify.InvoiceIssued
	err  error
}

func (r *recorder) PublishInvoiceIssued(_ context.Context, msg notify.InvoiceIssued) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.msgs = append(r.msgs, msg)
	return nil
}

var issuedAt = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Service, *memory.Store, *recorder) {
	t.Helper()

	store := memory.NewStore()
	pub := &recorder{}
	svc := New(store, pub, slog.New(slog.NewTextHandler(io.Discard, nil)), Config{TaxRateBps: 1800, Currency: "INR"})
	svc.now = func() time.Time { return issuedAt }

	return svc, store, pub
}

func source() Source {
	venue := &domain.Venue{ID: "v1", OwnerID: "owner", Name: "Lotus Hall", Location: "Pune", PricePerDayCents: 10000}
	services := []domain.Service{{ID: "s1", Name: "Catering", Pricing: domain.ServicePricing{FullEventCents: 2000}}}

	b := &domain.Booking{
		ID:            uuid.New(),
		CustomerID:    "cust",
		VenueID:       venue.ID,
		EventDate:     time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		StartTime:     "14:00",
		EndTime:       "16:00",
		EventType:     domain.EventMarriage,
		GuestCount:    80,
		TotalCents:    domain.TotalCost(*venue, services),
		CustomerName:  "Asha",
		CustomerEmail: "asha@example.com",
	}

	p := &domain.Payment{ID: uuid.New(), BookingID: b.ID, AmountCents: 14160, Currency: "INR"}

	return Source{Booking: b, Payment: p, Venue: venue, Services: services}
}

func derive(t *testing.T, svc *Service, store *memory.Store, src Source) (*domain.Invoice, bool) {
	t.Helper()

	var (
		inv     *domain.Invoice
		created bool
	)
	err := store.Do(context.Background(), func(ctx context.Context, tx repository.Tx, _ func(uow.AfterCommit)) error {
		var err error
		inv, created, err = svc.Derive(ctx, tx, src)
		return err
	})
	require.NoError(t, err)

	return inv, created
}

func TestDeriveComputesAmounts(t *testing.T) {
	svc, store, _ := setup(t)

	inv, created := derive(t, svc, store, source())
	require.True(t, created)

	assert.Equal(t, "INV-2026-0001", inv.Number)
	assert.Equal(t, int64(12000), inv.SubtotalCents)
	assert.Equal(t, int64(2160), inv.TaxCents)
	assert.Equal(t, int64(14160), inv.TotalCents)
	assert.Equal(t, inv.SubtotalCents+inv.TaxCents-inv.DiscountCents, inv.TotalCents)
	assert.Equal(t, int64(14160), inv.AmountPaidCents)
	assert.Zero(t, inv.AmountDueCents)
	assert.Equal(t, domain.InvoiceSettled, inv.PaymentStatus)
	assert.Equal(t, domain.InvoiceSent, inv.Status)
	assert.Equal(t, "owner", inv.VendorID)
	assert.Equal(t, "Lotus Hall", inv.Event.VenueName)
	assert.Equal(t, "asha@example.com", inv.Customer.Email)

	require.Len(t, inv.LineItems, 2)
	assert.Equal(t, domain.LineVenue, inv.LineItems[0].Type)
	assert.Equal(t, "Venue: Lotus Hall", inv.LineItems[0].Description)
	assert.Equal(t, domain.LineService, inv.LineItems[1].Type)
}

func TestDeriveIsIdempotentPerBooking(t *testing.T) {
	svc, store, _ := setup(t)
	src := source()

	first, created := derive(t, svc, store, src)
	require.True(t, created)

	second, created := derive(t, svc, store, src)
	assert.False(t, created)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.Number, second.Number)

	_, _, invoices := store.Counts()
	assert.Equal(t, 1, invoices)
}

func TestDeriveNumbersAreSequentialPerYear(t *testing.T) {
	svc, store, _ := setup(t)

	var numbers []string
	for i := 0; i < 3; i++ {
		inv, _ := derive(t, svc, store, source())
		numbers = append(numbers, inv.Number)
	}
	assert.Equal(t, []string{"INV-2026-0001", "INV-2026-0002", "INV-2026-0003"}, numbers)

	svc.now = func() time.Time { return time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC) }
	inv, _ := derive(t, svc, store, source())
	assert.Equal(t, "INV-2027-0001", inv.Number)
}

func TestDeriveConcurrentNumbersAreUnique(t *testing.T) {
	svc, store, _ := setup(t)

	const n = 10
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = map[string]bool{}
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			src := source()
			_ = store.Do(context.Background(), func(ctx context.Context, tx repository.Tx, _ func(uow.AfterCommit)) error {
				inv, _, err := svc.Derive(ctx, tx, src)
				if err != nil {
					return err
				}
				mu.Lock()
				seen[inv.Number] = true
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Len(t, seen, n)
}

func TestDerivePartialPayment(t *testing.T) {
	svc, store, _ := setup(t)
	src := source()
	src.Payment.AmountCents = 5000

	inv, _ := derive(t, svc, store, src)
	assert.Equal(t, domain.InvoicePartial, inv.PaymentStatus)
	assert.Equal(t, int64(9160), inv.AmountDueCents)
}

func TestAnnounceSwallowsPublishFailure(t *testing.T) {
	svc, store, pub := setup(t)
	inv, _ := derive(t, svc, store, source())

	svc.Announce(context.Background(), inv)
	require.Len(t, pub.msgs, 1)
	assert.Equal(t, "asha@example.com", pub.msgs[0].Recipient)

	pub.err = errors.New("broker down")
	assert.NotPanics(t, func() { svc.Announce(context.Background(), inv) })
}

func TestGetIsCustomerOnly(t *testing.T) {
	svc, store, _ := setup(t)
	inv, _ := derive(t, svc, store, source())
	ctx := context.Background()

	got, err := svc.Get(ctx, inv.ID, "cust")
	require.NoError(t, err)
	assert.Equal(t, inv.Number, got.Number)

	_, err = svc.Get(ctx, inv.ID, "owner")
	assert.ErrorIs(t, err, ErrNotAllowed)

	_, err = svc.Get(ctx, uuid.New(), "cust")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	byBooking, err := svc.ByBooking(ctx, inv.BookingID, "cust")
	require.NoError(t, err)
	assert.Equal(t, inv.ID, byBooking.ID)

	mine, err := svc.ListMine(ctx, "cust")
	require.NoError(t, err)
	assert.Len(t, mine, 1)
}

func TestSend(t *testing.T) {
	svc, store, pub := setup(t)
	inv, _ := derive(t, svc, store, source())
	ctx := context.Background()

	later := issuedAt.Add(time.Hour)
	svc.now = func() time.Time { return later }

	_, err := svc.Send(ctx, inv.ID, "stranger")
	assert.ErrorIs(t, err, ErrNotAllowed)

	sent, err := svc.Send(ctx, inv.ID, "owner")
	require.NoError(t, err)
	require.NotNil(t, sent.SentAt)
	assert.Equal(t, later, *sent.SentAt)
	assert.Len(t, pub.msgs, 1)

	pub.err = errors.New("broker down")
	_, err = svc.Send(ctx, inv.ID, "cust")
	assert.Error(t, err)
}

func TestUpdateStatus(t *testing.T) {
	svc, store, _ := setup(t)
	inv, _ := derive(t, svc, store, source())
	ctx := context.Background()

	_, err := svc.UpdateStatus(ctx, inv.ID, domain.InvoiceViewed, "", "cust")
	assert.ErrorIs(t, err, ErrNotAllowed)

	_, err = svc.UpdateStatus(ctx, inv.ID, "lost", "", "owner")
	assert.ErrorIs(t, err, domain.ErrValidation)

	got, err := svc.UpdateStatus(ctx, inv.ID, domain.InvoiceCancelled, "customer withdrew", "owner")
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceCancelled, got.Status)
	assert.Equal(t, "customer withdrew", got.Notes)
	assert.Equal(t, inv.TotalCents, got.TotalCents)
	assert.Equal(t, inv.Number, got.Number)

	_, err = svc.UpdateStatus(ctx, inv.ID, domain.InvoicePaid, "", "owner")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = svc.Send(ctx, inv.ID, "cust")
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestMarkRefunded(t *testing.T) {
	svc, store, _ := setup(t)
	inv, _ := derive(t, svc, store, source())
	ctx := context.Background()

	err := store.Do(ctx, func(ctx context.Context, tx repository.Tx, _ func(uow.AfterCommit)) error {
		return svc.MarkRefunded(ctx, tx, inv.BookingID)
	})
	require.NoError(t, err)

	got, err := svc.Get(ctx, inv.ID, "cust")
	require.NoError(t, err)
	assert.Equal(t, domain.InvoiceRefunded, got.PaymentStatus)
}
