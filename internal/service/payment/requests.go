package payment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/venuebook/internal/domain"
	"github.com/kirinyoku/venuebook/internal/gateway"
	"github.com/kirinyoku/venuebook/internal/repository"
	"github.com/kirinyoku/venuebook/internal/uow"
)

type CreateRequestInput struct {
	BookingID   uuid.UUID
	ActorID     string
	AmountCents int64
	Description string
	// DaysUntilExpiry falls back to the configured lifetime when zero.
	DaysUntilExpiry int
}

// CreateRequest raises a partial billing demand against a booking. The
// gateway order is opened first; the request is then appended to the
// booking through its versioned update.
//
// Returns:
//   - error: payment.ErrInvalidAmount for a non-positive amount.
//   - error: payment.ErrNotAllowed unless the actor owns the booked venue.
//   - error: domain.ErrGateway if the order could not be created.
func (s *Service) CreateRequest(ctx context.Context, in CreateRequestInput) (*domain.PaymentRequest, error) {
	const op = "service.payment.CreateRequest"

	if in.AmountCents <= 0 {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidAmount)
	}

	if in.DaysUntilExpiry < 0 {
		return nil, fmt.Errorf("%s:%w", op, domain.Invalid("days until expiry must not be negative"))
	}

	b, err := s.loadBooking(ctx, s.runner.Repos(), in.BookingID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if err := s.requireOwner(ctx, b, in.ActorID); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if !b.Status.Open() {
		return nil, fmt.Errorf("%s:%w: booking is %s", op, ErrInvalidTransition, b.Status)
	}

	now := s.now().UTC()

	ttl := s.cfg.RequestTTL
	if in.DaysUntilExpiry > 0 {
		ttl = time.Duration(in.DaysUntilExpiry) * 24 * time.Hour
	}

	order, err := s.gw.CreateOrder(ctx, gateway.OrderRequest{
		AmountCents: in.AmountCents,
		Currency:    s.cfg.Currency,
		Receipt:     receipt("preq", b.ID, now),
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	pr := domain.PaymentRequest{
		ID:             uuid.New(),
		AmountCents:    in.AmountCents,
		Description:    in.Description,
		Status:         domain.RequestPending,
		GatewayOrderID: order.ID,
		CreatedAt:      now,
		ExpiresAt:      now.Add(ttl),
	}

	err = s.runner.Do(ctx, func(ctx context.Context, tx repository.Tx, _ func(uow.AfterCommit)) error {
		b, err := s.loadBooking(ctx, tx, in.BookingID)
		if err != nil {
			return err
		}

		if !b.Status.Open() {
			return fmt.Errorf("%w: booking is %s", ErrInvalidTransition, b.Status)
		}

		b.PaymentRequests = append(b.PaymentRequests, pr)
		b.SettlePaymentStatus()
		b.UpdatedAt = now

		return tx.Bookings().Update(ctx, b)
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.logger.Info("payment request created", "booking_id", in.BookingID, "request_id", pr.ID, "amount_cents", pr.AmountCents)

	return &pr, nil
}

type VerifyRequestInput struct {
	BookingID        uuid.UUID
	RequestID        uuid.UUID
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
}

type VerifyRequestResult struct {
	Request              domain.PaymentRequest       `json:"payment_request"`
	BookingPaymentStatus domain.BookingPaymentStatus `json:"booking_payment_status"`
	Duplicate            bool                        `json:"duplicate"`
}

// VerifyRequest applies a signed callback to one payment request. The
// booking's payment status completes once every request is paid.
//
// Returns:
//   - error: payment.ErrInvalidSignature if the signature does not match.
//   - error: payment.ErrPaymentRequestNotFound if the request is unknown.
//   - error: payment.ErrInvalidTransition if the request expired or was paid
//     by a different payment.
func (s *Service) VerifyRequest(ctx context.Context, in VerifyRequestInput) (*VerifyRequestResult, error) {
	const op = "service.payment.VerifyRequest"

	if in.GatewayOrderID == "" || in.GatewayPaymentID == "" || in.Signature == "" {
		return nil, fmt.Errorf("%s:%w", op, domain.Invalid("order id, payment id and signature are required"))
	}

	if !s.gw.VerifySignature(in.GatewayOrderID, in.GatewayPaymentID, in.Signature) {
		s.logger.Warn("payment request signature rejected", "booking_id", in.BookingID, "request_id", in.RequestID)
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidSignature)
	}

	var res *VerifyRequestResult

	err := s.runner.Do(ctx, func(ctx context.Context, tx repository.Tx, _ func(uow.AfterCommit)) error {
		res = nil

		b, err := s.loadBooking(ctx, tx, in.BookingID)
		if err != nil {
			return err
		}

		pr, ok := b.PaymentRequest(in.RequestID)
		if !ok {
			return ErrPaymentRequestNotFound
		}

		if pr.GatewayOrderID != in.GatewayOrderID {
			return ErrOrderMismatch
		}

		now := s.now().UTC()

		switch {
		case pr.Status == domain.RequestPaid && pr.GatewayPaymentID == in.GatewayPaymentID:
			res = &VerifyRequestResult{Request: *pr, BookingPaymentStatus: b.PaymentStatus}
			return domain.ErrDuplicateCallback
		case pr.Status == domain.RequestPaid:
			return fmt.Errorf("%w: request already paid", ErrInvalidTransition)
		case pr.Status == domain.RequestExpired || !now.Before(pr.ExpiresAt):
			return fmt.Errorf("%w: request expired", ErrInvalidTransition)
		}

		pr.Status = domain.RequestPaid
		pr.GatewayPaymentID = in.GatewayPaymentID
		pr.GatewaySignature = in.Signature
		pr.PaidAt = &now

		b.SettlePaymentStatus()
		b.UpdatedAt = now

		res = &VerifyRequestResult{Request: *pr, BookingPaymentStatus: b.PaymentStatus}

		return tx.Bookings().Update(ctx, b)
	})

	if errors.Is(err, domain.ErrDuplicateCallback) {
		res.Duplicate = true
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.logger.Info("payment request paid",
		"booking_id", in.BookingID,
		"request_id", in.RequestID,
		"booking_payment_status", res.BookingPaymentStatus,
	)

	return res, nil
}

// ListRequests returns a booking's payment requests to its customer or the
// venue owner.
func (s *Service) ListRequests(ctx context.Context, bookingID uuid.UUID, actorID string) ([]domain.PaymentRequest, error) {
	const op = "service.payment.ListRequests"

	b, err := s.loadBooking(ctx, s.runner.Repos(), bookingID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if b.CustomerID != actorID {
		if err := s.requireOwner(ctx, b, actorID); err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
	}

	return b.PaymentRequests, nil
}

type OwnerRequest struct {
	BookingID    uuid.UUID             `json:"booking_id"`
	VenueID      string                `json:"venue_id"`
	CustomerName string                `json:"customer_name"`
	EventDate    time.Time             `json:"event_date"`
	Request      domain.PaymentRequest `json:"payment_request"`
}

// ListOwnerPending returns the pending requests across the actor's venues.
func (s *Service) ListOwnerPending(ctx context.Context, actorID string) ([]OwnerRequest, error) {
	const op = "service.payment.ListOwnerPending"

	venues, err := s.dir.VenuesByOwner(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	ids := make([]string, 0, len(venues))
	for _, v := range venues {
		ids = append(ids, v.ID)
	}

	bookings, err := s.runner.Repos().Bookings().ListByVenues(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	out := []OwnerRequest{}
	for _, b := range bookings {
		for _, pr := range b.PaymentRequests {
			if pr.Status != domain.RequestPending {
				continue
			}
			out = append(out, OwnerRequest{
				BookingID:    b.ID,
				VenueID:      b.VenueID,
				CustomerName: b.CustomerName,
				EventDate:    b.EventDate,
				Request:      pr,
			})
		}
	}

	return out, nil
}

// ExpireRequests marks pending requests past their expiry as expired and
// returns how many changed. Each booking is updated in its own transaction.
func (s *Service) ExpireRequests(ctx context.Context) (int, error) {
	const op = "service.payment.ExpireRequests"

	candidates, err := s.runner.Repos().Bookings().ListWithPendingRequests(ctx)
	if err != nil {
		return 0, fmt.Errorf("%s:%w", op, err)
	}

	now := s.now().UTC()
	total := 0

	for _, c := range candidates {
		if !c.HasDueRequests(now) {
			continue
		}

		var n int
		err := s.runner.Do(ctx, func(ctx context.Context, tx repository.Tx, _ func(uow.AfterCommit)) error {
			b, err := s.loadBooking(ctx, tx, c.ID)
			if err != nil {
				return err
			}

			n = b.ExpireRequests(now)
			if n == 0 {
				return nil
			}

			b.UpdatedAt = now
			return tx.Bookings().Update(ctx, b)
		})
		if err != nil {
			return total, fmt.Errorf("%s: booking %s:%w", op, c.ID, err)
		}

		total += n
	}

	return total, nil
}
