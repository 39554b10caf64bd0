package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/kirinyoku/venuebook/internal/catalog"
	"github.com/kirinyoku/venuebook/internal/domain"
	"github.com/kirinyoku/venuebook/internal/repository/memory"
	"github.com/kirinyoku/venuebook/internal/service/availability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc   *Service
	avail *availability.Service
	store *memory.Store
	dir   *catalog.Static
}

func setup(t *testing.T) fixture {
	t.Helper()

	store := memory.NewStore()
	dir := catalog.NewStatic()
	dir.PutVenue(domain.Venue{ID: "v1", OwnerID: "owner", Name: "Lotus Hall", Capacity: 100, PricePerDayCents: 10000})
	dir.PutService(domain.Service{ID: "s-cater", Name: "Catering", Pricing: domain.ServicePricing{FullEventCents: 2000}})
	dir.PutService(domain.Service{ID: "s-photo", ProviderID: "lens", Name: "Photography", Pricing: domain.ServicePricing{HourlyCents: 500}})
	dir.PutUser(domain.User{ID: "cust", Name: "Asha", Email: "asha@example.com", Phone: "9800000000"})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	avail := availability.New(store, dir, nil, nil, logger, availability.Config{})

	return fixture{
		svc:   New(store, dir, avail, logger),
		avail: avail,
		store: store,
		dir:   dir,
	}
}

func input(start, end string) CreateInput {
	return CreateInput{
		CustomerID: "cust",
		VenueID:    "v1",
		EventDate:  "2026-03-01",
		StartTime:  start,
		EndTime:    end,
		EventType:  domain.EventBirthday,
		GuestCount: 50,
	}
}

func TestCreatePricesAndFillsContact(t *testing.T) {
	f := setup(t)

	in := input("14:00", "16:00")
	in.ServiceIDs = []string{"s-cater", "s-photo"}

	b, err := f.svc.Create(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, int64(12000), b.TotalCents, "hourly-only services are not priced into the total")
	assert.Equal(t, domain.BookingPending, b.Status)
	assert.Equal(t, domain.BookingPaymentPending, b.PaymentStatus)
	assert.Equal(t, "Asha", b.CustomerName)
	assert.Equal(t, "asha@example.com", b.CustomerEmail)
	assert.Equal(t, int64(1), b.Version)
}

func TestCreateRejectsOverCapacity(t *testing.T) {
	f := setup(t)

	in := input("14:00", "16:00")
	in.GuestCount = 150

	_, err := f.svc.Create(context.Background(), in)
	require.ErrorIs(t, err, domain.ErrValidation)
	assert.Contains(t, err.Error(), "capacity 100")
}

func TestCreateRejectsOverlapButAllowsTouching(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, input("14:00", "16:00"))
	require.NoError(t, err)

	_, err = f.svc.Create(ctx, input("15:00", "17:00"))
	assert.ErrorIs(t, err, ErrSlotTaken)
	assert.ErrorIs(t, err, domain.ErrSlotTaken)

	_, err = f.svc.Create(ctx, input("16:00", "18:00"))
	assert.NoError(t, err)

	res, err := f.avail.Check(ctx, availability.Query{VenueID: "v1", Date: "2026-03-01", StartTime: "15:00", EndTime: "17:00"})
	require.NoError(t, err)
	assert.Equal(t, 2, res.ConflictingCount)
}

func TestCreateRaceHasOneWinner(t *testing.T) {
	f := setup(t)

	const racers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
		lost int
	)

	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Create(context.Background(), input("14:00", "16:00"))

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins++
			case errors.Is(err, ErrSlotTaken):
				lost++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, wins)
	assert.Equal(t, racers-1, lost)
}

func TestCreateValidation(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	cases := map[string]func(*CreateInput){
		"bad start":       func(in *CreateInput) { in.StartTime = "2pm" },
		"start after end": func(in *CreateInput) { in.StartTime, in.EndTime = "16:00", "14:00" },
		"bad date":        func(in *CreateInput) { in.EventDate = "2026-13-01" },
		"bad event type":  func(in *CreateInput) { in.EventType = "party" },
		"no guests":       func(in *CreateInput) { in.GuestCount = 0 },
		"unknown service": func(in *CreateInput) { in.ServiceIDs = []string{"nope"} },
		"duplicate svc":   func(in *CreateInput) { in.ServiceIDs = []string{"s-cater", "s-cater"} },
		"nothing booked":  func(in *CreateInput) { in.VenueID = "" },
	}

	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := input("14:00", "16:00")
			mutate(&in)
			_, err := f.svc.Create(ctx, in)
			assert.ErrorIs(t, err, domain.ErrValidation)
		})
	}

	in := input("14:00", "16:00")
	in.VenueID = "missing"
	_, err := f.svc.Create(ctx, in)
	assert.ErrorIs(t, err, ErrVenueNotFound)
}

func TestUpdateStatusTransitionsAndAuthorization(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, input("14:00", "16:00"))
	require.NoError(t, err)

	_, err = f.svc.UpdateStatus(ctx, b.ID, domain.BookingConfirmed, "stranger")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	_, err = f.svc.UpdateStatus(ctx, b.ID, domain.BookingConfirmed, "cust")
	assert.ErrorIs(t, err, ErrNotAllowed, "customers may only cancel")

	_, err = f.svc.UpdateStatus(ctx, b.ID, domain.BookingCompleted, "owner")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	got, err := f.svc.UpdateStatus(ctx, b.ID, domain.BookingConfirmed, "owner")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingConfirmed, got.Status)
	assert.Equal(t, int64(2), got.Version)

	got, err = f.svc.UpdateStatus(ctx, b.ID, domain.BookingCompleted, "owner")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCompleted, got.Status)

	_, err = f.svc.UpdateStatus(ctx, b.ID, domain.BookingCancelled, "owner")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = f.svc.UpdateStatus(ctx, b.ID, "archived", "owner")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCancelFreesTheSlot(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, input("14:00", "16:00"))
	require.NoError(t, err)

	_, err = f.svc.Cancel(ctx, b.ID, "owner")
	assert.ErrorIs(t, err, ErrNotAllowed, "cancel is the customer's action")

	got, err := f.svc.Cancel(ctx, b.ID, "cust")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, got.Status)

	stored, err := f.svc.Get(ctx, b.ID, "cust")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingCancelled, stored.Status, "cancel keeps the record")

	_, err = f.svc.Cancel(ctx, b.ID, "cust")
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	_, err = f.svc.Create(ctx, input("14:00", "16:00"))
	assert.NoError(t, err)
}

func TestGetAndListVisibility(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	b, err := f.svc.Create(ctx, input("14:00", "16:00"))
	require.NoError(t, err)

	_, err = f.svc.Get(ctx, b.ID, "owner")
	assert.NoError(t, err)

	_, err = f.svc.Get(ctx, b.ID, "stranger")
	assert.ErrorIs(t, err, ErrNotAllowed)

	mine, err := f.svc.ListMine(ctx, "cust")
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	venue, err := f.svc.ListForVenue(ctx, "v1", "owner")
	require.NoError(t, err)
	assert.Len(t, venue, 1)

	_, err = f.svc.ListForVenue(ctx, "v1", "cust")
	assert.ErrorIs(t, err, ErrNotAllowed)
}

func TestListForProviderMatchesAnyService(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	withPhoto := input("10:00", "12:00")
	withPhoto.ServiceIDs = []string{"s-cater", "s-photo"}
	photo, err := f.svc.Create(ctx, withPhoto)
	require.NoError(t, err)

	plain := input("14:00", "16:00")
	plain.ServiceIDs = []string{"s-cater"}
	_, err = f.svc.Create(ctx, plain)
	require.NoError(t, err)

	got, err := f.svc.ListForProvider(ctx, "lens")
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, photo.ID, got[0].ID)

	got, err = f.svc.ListForProvider(ctx, "nobody")
	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
