package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/venuebook/internal/catalog"
	"github.com/kirinyoku/venuebook/internal/domain"
	"github.com/kirinyoku/venuebook/internal/repository"
	"github.com/kirinyoku/venuebook/internal/service/availability"
	"github.com/kirinyoku/venuebook/internal/uow"
)

type Service struct {
	runner uow.Runner
	dir    catalog.Directory
	avail  *availability.Service
	logger *slog.Logger
	now    func() time.Time
}

func New(runner uow.Runner, dir catalog.Directory, avail *availability.Service, logger *slog.Logger) *Service {
	return &Service{
		runner: runner,
		dir:    dir,
		avail:  avail,
		logger: logger,
		now:    time.Now,
	}
}

type CreateInput struct {
	CustomerID      string
	VenueID         string
	ServiceIDs      []string
	EventDate       string
	StartTime       string
	EndTime         string
	EventType       domain.EventType
	GuestCount      int
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	SpecialRequests string
}

func (in CreateInput) validate() error {
	switch {
	case in.CustomerID == "":
		return domain.Invalid("customer is required")
	case in.VenueID == "" && len(in.ServiceIDs) == 0:
		return domain.Invalid("a venue or at least one service is required")
	case !in.EventType.Valid():
		return domain.Invalid("event type %q is not supported", in.EventType)
	case in.GuestCount <= 0:
		return domain.Invalid("guest count must be positive")
	}

	seen := make(map[string]struct{}, len(in.ServiceIDs))
	for _, id := range in.ServiceIDs {
		if _, dup := seen[id]; dup {
			return domain.Invalid("service %s selected twice", id)
		}
		seen[id] = struct{}{}
	}

	return nil
}

// Create books a venue window for a customer. The overlap test is repeated
// under a venue-day lock in the same transaction as the insert, so exactly
// one of two racing requests for the same window succeeds.
//
// Returns:
//   - error: domain.ErrValidation for missing or malformed input, or a guest
//     count above the venue capacity.
//   - error: booking.ErrVenueNotFound if the venue does not exist.
//   - error: booking.ErrSlotTaken if an active booking overlaps the window.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Booking, error) {
	const op = "service.booking.Create"

	if err := in.validate(); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	day, err := domain.ParseDate(in.EventDate)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	window, err := domain.ParseWindow(in.StartTime, in.EndTime)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	var venue *domain.Venue
	if in.VenueID != "" {
		venue, err = s.dir.Venue(ctx, in.VenueID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, fmt.Errorf("%s:%w", op, ErrVenueNotFound)
			}
			return nil, fmt.Errorf("%s:%w", op, err)
		}

		if in.GuestCount > venue.Capacity {
			return nil, fmt.Errorf("%s:%w", op,
				domain.Invalid("guest count %d exceeds venue capacity %d", in.GuestCount, venue.Capacity))
		}
	}

	services, err := s.dir.Services(ctx, in.ServiceIDs)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrUnknownService)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.fillContact(ctx, &in)

	var priced domain.Venue
	if venue != nil {
		priced = *venue
	}

	now := s.now().UTC()
	b := &domain.Booking{
		ID:              uuid.New(),
		CustomerID:      in.CustomerID,
		VenueID:         in.VenueID,
		ServiceIDs:      slices.Clone(in.ServiceIDs),
		EventDate:       day,
		StartTime:       in.StartTime,
		EndTime:         in.EndTime,
		EventType:       in.EventType,
		GuestCount:      in.GuestCount,
		TotalCents:      domain.TotalCost(priced, services),
		Status:          domain.BookingPending,
		PaymentStatus:   domain.BookingPaymentPending,
		PaymentRequests: []domain.PaymentRequest{},
		CustomerName:    in.CustomerName,
		CustomerEmail:   in.CustomerEmail,
		CustomerPhone:   in.CustomerPhone,
		SpecialRequests: in.SpecialRequests,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	err = s.runner.Do(ctx, func(ctx context.Context, tx repository.Tx, after func(uow.AfterCommit)) error {
		if b.VenueID != "" {
			if err := tx.Bookings().LockVenueDay(ctx, b.VenueID, day); err != nil {
				return err
			}

			n, err := availability.CountConflicts(ctx, tx.Bookings(), b.VenueID, day, window)
			if err != nil {
				return err
			}
			if n > 0 {
				return ErrSlotTaken
			}
		}

		if err := tx.Bookings().Create(ctx, b); err != nil {
			return err
		}

		if b.VenueID != "" && s.avail != nil {
			after(func(ctx context.Context) {
				s.avail.Invalidate(ctx, b.VenueID, day)
			})
		}

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.logger.Info("booking created",
		"booking_id", b.ID,
		"venue_id", b.VenueID,
		"date", in.EventDate,
		"total_cents", b.TotalCents,
	)

	return b, nil
}

// fillContact completes missing contact fields from the customer's profile.
func (s *Service) fillContact(ctx context.Context, in *CreateInput) {
	if in.CustomerName != "" && in.CustomerEmail != "" && in.CustomerPhone != "" {
		return
	}

	u, err := s.dir.User(ctx, in.CustomerID)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.logger.Warn("customer lookup failed", "customer_id", in.CustomerID, "error", err)
		}
		return
	}

	if in.CustomerName == "" {
		in.CustomerName = u.Name
	}
	if in.CustomerEmail == "" {
		in.CustomerEmail = u.Email
	}
	if in.CustomerPhone == "" {
		in.CustomerPhone = u.Phone
	}
}

// Get returns a booking visible to its customer or the venue owner.
func (s *Service) Get(ctx context.Context, id uuid.UUID, actorID string) (*domain.Booking, error) {
	const op = "service.booking.Get"

	b, err := s.load(ctx, s.runner.Repos(), id)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if b.CustomerID == actorID {
		return b, nil
	}

	owner, err := s.VenueOwner(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}
	if owner == "" || owner != actorID {
		return nil, fmt.Errorf("%s:%w", op, ErrNotAllowed)
	}

	return b, nil
}

// ListMine returns the actor's bookings, latest event first.
func (s *Service) ListMine(ctx context.Context, actorID string) ([]domain.Booking, error) {
	const op = "service.booking.ListMine"

	out, err := s.runner.Repos().Bookings().ListByCustomer(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// ListForVenue returns a venue's bookings to its owner.
func (s *Service) ListForVenue(ctx context.Context, venueID, actorID string) ([]domain.Booking, error) {
	const op = "service.booking.ListForVenue"

	venue, err := s.dir.Venue(ctx, venueID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("%s:%w", op, ErrVenueNotFound)
		}
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if venue.OwnerID == "" || venue.OwnerID != actorID {
		return nil, fmt.Errorf("%s:%w", op, ErrNotAllowed)
	}

	out, err := s.runner.Repos().Bookings().ListByVenues(ctx, []string{venueID})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// ListForProvider returns the bookings that include any service the actor
// provides.
func (s *Service) ListForProvider(ctx context.Context, actorID string) ([]domain.Booking, error) {
	const op = "service.booking.ListForProvider"

	services, err := s.dir.ServicesByProvider(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if len(services) == 0 {
		return []domain.Booking{}, nil
	}

	ids := make([]string, 0, len(services))
	for _, svc := range services {
		ids = append(ids, svc.ID)
	}

	out, err := s.runner.Repos().Bookings().ListByServices(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// UpdateStatus moves a booking along its lifecycle. The venue owner may make
// any allowed transition; the booking's customer may only cancel.
//
// Returns:
//   - error: domain.ErrValidation for an unknown status.
//   - error: booking.ErrBookingNotFound if the booking does not exist.
//   - error: booking.ErrNotAllowed if the actor may not make this change.
//   - error: booking.ErrInvalidTransition if the lifecycle forbids it.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, next domain.BookingStatus, actorID string) (*domain.Booking, error) {
	const op = "service.booking.UpdateStatus"

	if !next.Valid() {
		return nil, fmt.Errorf("%s:%w", op, domain.Invalid("status %q is not supported", next))
	}

	b, err := s.transition(ctx, id, next, func(b *domain.Booking, owner string) bool {
		return (owner != "" && actorID == owner) || (actorID == b.CustomerID && next == domain.BookingCancelled)
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return b, nil
}

// Cancel lets the booking's customer withdraw it. The record is kept with
// status cancelled.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID, actorID string) (*domain.Booking, error) {
	const op = "service.booking.Cancel"

	b, err := s.transition(ctx, id, domain.BookingCancelled, func(b *domain.Booking, _ string) bool {
		return actorID == b.CustomerID
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return b, nil
}

func (s *Service) transition(
	ctx context.Context,
	id uuid.UUID,
	next domain.BookingStatus,
	allowed func(b *domain.Booking, owner string) bool,
) (*domain.Booking, error) {
	current, err := s.load(ctx, s.runner.Repos(), id)
	if err != nil {
		return nil, err
	}

	owner, err := s.VenueOwner(ctx, current)
	if err != nil {
		return nil, err
	}

	var out *domain.Booking
	err = s.runner.Do(ctx, func(ctx context.Context, tx repository.Tx, after func(uow.AfterCommit)) error {
		b, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}

		if !allowed(b, owner) {
			return ErrNotAllowed
		}

		if !b.Status.CanTransitionTo(next) {
			return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, b.Status, next)
		}

		wasBlocking := b.Blocks()
		from := b.Status

		b.Status = next
		b.UpdatedAt = s.now().UTC()

		if err := tx.Bookings().Update(ctx, b); err != nil {
			return err
		}

		after(func(ctx context.Context) {
			s.logger.Info("booking status changed", "booking_id", b.ID, "from", from, "to", next)
			if wasBlocking && !b.Blocks() && b.VenueID != "" && s.avail != nil {
				s.avail.Invalidate(ctx, b.VenueID, b.EventDate)
			}
		})

		out = b
		return nil
	})
	if err != nil {
		return nil, err
	}

	return out, nil
}

// VenueOwner returns the owner of the booking's venue, or "" for bookings
// without a venue.
func (s *Service) VenueOwner(ctx context.Context, b *domain.Booking) (string, error) {
	if b.VenueID == "" {
		return "", nil
	}

	venue, err := s.dir.Venue(ctx, b.VenueID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrVenueNotFound
		}
		return "", err
	}

	return venue.OwnerID, nil
}

func (s *Service) load(ctx context.Context, repos repository.Tx, id uuid.UUID) (*domain.Booking, error) {
	b, err := repos.Bookings().Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return b, nil
}
