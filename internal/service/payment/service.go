package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/venuebook/internal/catalog"
	"github.com/kirinyoku/venuebook/internal/domain"
	"github.com/kirinyoku/venuebook/internal/gateway"
	"github.com/kirinyoku/venuebook/internal/repository"
	"github.com/kirinyoku/venuebook/internal/service/invoice"
	"github.com/kirinyoku/venuebook/internal/uow"
)

type Config struct {
	Currency string
	// RequestTTL is the default lifetime of a payment request.
	RequestTTL time.Duration
}

// Service reconciles gateway payments with bookings. Gateway orders are
// opened before any local write; ledger state changes only after a callback
// signature has been verified.
type Service struct {
	runner   uow.Runner
	dir      catalog.Directory
	gw       gateway.Client
	invoices *invoice.Service
	logger   *slog.Logger
	now      func() time.Time
	cfg      Config
}

func New(
	runner uow.Runner,
	dir catalog.Directory,
	gw gateway.Client,
	invoices *invoice.Service,
	logger *slog.Logger,
	cfg Config,
) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}

	if cfg.RequestTTL <= 0 {
		cfg.RequestTTL = 7 * 24 * time.Hour
	}

	return &Service{
		runner:   runner,
		dir:      dir,
		gw:       gw,
		invoices: invoices,
		logger:   logger,
		now:      time.Now,
		cfg:      cfg,
	}
}

// MethodInput carries what the client knows about the payment method before
// checkout. Card numbers are reduced to their last four digits.
type MethodInput struct {
	CardNumber     string
	CardBrand      string
	ExpiryMonth    int
	ExpiryYear     int
	VPA            string
	BankName       string
	WalletProvider string
}

func (in MethodInput) details(method domain.PaymentMethod) domain.MethodDetails {
	switch method {
	case domain.MethodCreditCard, domain.MethodDebitCard:
		return domain.MethodDetails{Card: &domain.CardDetails{
			Last4:       domain.MaskCard(in.CardNumber),
			Brand:       in.CardBrand,
			ExpiryMonth: in.ExpiryMonth,
			ExpiryYear:  in.ExpiryYear,
		}}
	case domain.MethodUPI:
		return domain.MethodDetails{UPI: &domain.UPIDetails{VPA: in.VPA}}
	case domain.MethodNetBanking:
		return domain.MethodDetails{NetBanking: &domain.NetBankingDetails{BankName: in.BankName}}
	case domain.MethodWallet:
		return domain.MethodDetails{Wallet: &domain.WalletDetails{Provider: in.WalletProvider}}
	}
	return domain.MethodDetails{}
}

// MethodMeta is what the gateway reports about a completed payment.
type MethodMeta struct {
	TransactionID     string
	CardLast4         string
	CardBrand         string
	BankName          string
	BankTransactionID string
	VPA               string
}

func (m MethodMeta) apply(d *domain.MethodDetails) {
	if d.Card != nil {
		if m.CardLast4 != "" {
			d.Card.Last4 = domain.MaskCard(m.CardLast4)
		}
		if m.CardBrand != "" {
			d.Card.Brand = m.CardBrand
		}
	}
	if d.UPI != nil {
		if m.VPA != "" {
			d.UPI.VPA = m.VPA
		}
		if m.TransactionID != "" {
			d.UPI.TransactionID = m.TransactionID
		}
	}
	if d.NetBanking != nil {
		if m.BankName != "" {
			d.NetBanking.BankName = m.BankName
		}
		if m.BankTransactionID != "" {
			d.NetBanking.BankTransactionID = m.BankTransactionID
		}
	}
}

type InitiateInput struct {
	BookingID   uuid.UUID
	ActorID     string
	AmountCents int64
	Method      domain.PaymentMethod
	Details     MethodInput
	IPAddress   string
	UserAgent   string
}

type InitiateResult struct {
	PaymentID      uuid.UUID      `json:"payment_id"`
	GatewayOrderID string         `json:"gateway_order_id"`
	ClientKey      string         `json:"client_key"`
	Gateway        domain.Gateway `json:"gateway"`
	AmountCents    int64          `json:"amount_cents"`
	Currency       string         `json:"currency"`
}

// Initiate opens a gateway order for a whole-booking payment and records the
// attempt as initiated.
//
// Returns:
//   - error: payment.ErrInvalidAmount for a non-positive amount.
//   - error: payment.ErrBookingNotFound if the booking does not exist.
//   - error: payment.ErrNotAllowed unless the actor is the booking's customer.
//   - error: payment.ErrInvalidTransition if the booking is closed or already paid.
//   - error: domain.ErrGateway if the order could not be created.
func (s *Service) Initiate(ctx context.Context, in InitiateInput) (*InitiateResult, error) {
	const op = "service.payment.Initiate"

	if in.AmountCents <= 0 {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidAmount)
	}

	if !in.Method.Valid() {
		return nil, fmt.Errorf("%s:%w", op, domain.Invalid("payment method %q is not supported", in.Method))
	}

	b, err := s.loadBooking(ctx, s.runner.Repos(), in.BookingID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if b.CustomerID != in.ActorID {
		return nil, fmt.Errorf("%s:%w", op, ErrNotAllowed)
	}

	if !b.Status.Open() {
		return nil, fmt.Errorf("%s:%w: booking is %s", op, ErrInvalidTransition, b.Status)
	}

	// Either path settles the booking: a whole payment or all of its
	// payment requests.
	if b.GatewayPaymentID != "" || b.PaymentStatus == domain.BookingPaymentCompleted {
		return nil, fmt.Errorf("%s:%w: booking is already paid", op, ErrInvalidTransition)
	}

	now := s.now().UTC()

	order, err := s.gw.CreateOrder(ctx, gateway.OrderRequest{
		AmountCents: in.AmountCents,
		Currency:    s.cfg.Currency,
		Receipt:     receipt("booking", b.ID, now),
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	p := &domain.Payment{
		ID:             uuid.New(),
		BookingID:      b.ID,
		CustomerID:     b.CustomerID,
		AmountCents:    in.AmountCents,
		Currency:       s.cfg.Currency,
		Method:         in.Method,
		Gateway:        s.gw.Name(),
		GatewayOrderID: order.ID,
		Details:        in.Details.details(in.Method),
		Status:         domain.PaymentInitiated,
		IPAddress:      in.IPAddress,
		UserAgent:      in.UserAgent,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	err = s.runner.Do(ctx, func(ctx context.Context, tx repository.Tx, _ func(uow.AfterCommit)) error {
		return tx.Payments().Create(ctx, p)
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.logger.Info("payment initiated", "payment_id", p.ID, "booking_id", b.ID, "order_id", order.ID, "amount_cents", p.AmountCents)

	return &InitiateResult{
		PaymentID:      p.ID,
		GatewayOrderID: order.ID,
		ClientKey:      s.gw.KeyID(),
		Gateway:        p.Gateway,
		AmountCents:    p.AmountCents,
		Currency:       p.Currency,
	}, nil
}

type VerifyInput struct {
	BookingID        uuid.UUID
	GatewayOrderID   string
	GatewayPaymentID string
	Signature        string
	Meta             MethodMeta
}

type VerifyResult struct {
	Payment *domain.Payment `json:"payment"`
	Invoice *domain.Invoice `json:"invoice"`
	// Duplicate is set when the callback had already been applied and the
	// earlier outcome is returned unchanged.
	Duplicate bool `json:"duplicate"`
}

// Verify applies a signed gateway callback: the payment completes, the
// booking is confirmed and marked paid, and the invoice is derived, all in
// one transaction. Redelivered callbacks, and any second success for a
// booking that is already paid, return the first outcome.
//
// Returns:
//   - error: payment.ErrInvalidSignature if the signature does not match.
//   - error: payment.ErrBookingNotFound, payment.ErrPaymentNotFound.
//   - error: payment.ErrOrderMismatch if the order belongs to another booking.
//   - error: payment.ErrInvalidTransition if the payment failed earlier or the
//     booking no longer accepts payments.
func (s *Service) Verify(ctx context.Context, in VerifyInput) (*VerifyResult, error) {
	const op = "service.payment.Verify"

	if in.GatewayOrderID == "" || in.GatewayPaymentID == "" || in.Signature == "" {
		return nil, fmt.Errorf("%s:%w", op, domain.Invalid("order id, payment id and signature are required"))
	}

	if !s.gw.VerifySignature(in.GatewayOrderID, in.GatewayPaymentID, in.Signature) {
		s.logger.Warn("payment signature rejected", "booking_id", in.BookingID, "order_id", in.GatewayOrderID)
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidSignature)
	}

	b, err := s.loadBooking(ctx, s.runner.Repos(), in.BookingID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	venue, services, err := s.pricing(ctx, b)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	var res *VerifyResult

	// A concurrent verification of the same callback can lose on a unique
	// index instead of a serialization failure; the second pass then sees
	// the winner's rows and resolves to a duplicate.
	for attempt := 0; attempt < 2; attempt++ {
		res, err = s.verifyOnce(ctx, in, venue, services)
		if !errors.Is(err, repository.ErrConflict) {
			break
		}
	}

	if errors.Is(err, domain.ErrDuplicateCallback) {
		s.logger.Info("duplicate payment callback", "booking_id", in.BookingID, "gateway_payment_id", in.GatewayPaymentID)
		res.Duplicate = true
		return res, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return res, nil
}

func (s *Service) verifyOnce(
	ctx context.Context,
	in VerifyInput,
	venue *domain.Venue,
	services []domain.Service,
) (*VerifyResult, error) {
	var res *VerifyResult

	err := s.runner.Do(ctx, func(ctx context.Context, tx repository.Tx, after func(uow.AfterCommit)) error {
		res = nil

		if prior, err := s.priorOutcome(ctx, tx, in); prior != nil || err != nil {
			if err != nil {
				return err
			}
			res = prior
			return domain.ErrDuplicateCallback
		}

		p, err := tx.Payments().ByGatewayOrderID(ctx, in.GatewayOrderID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return ErrPaymentNotFound
			}
			return err
		}

		if p.BookingID != in.BookingID {
			return ErrOrderMismatch
		}

		if !p.Status.Open() {
			return fmt.Errorf("%w: payment is %s", ErrInvalidTransition, p.Status)
		}

		b, err := s.loadBooking(ctx, tx, in.BookingID)
		if err != nil {
			return err
		}

		if !b.Status.Open() {
			return fmt.Errorf("%w: booking is %s", ErrInvalidTransition, b.Status)
		}

		// A settled whole payment was caught by priorOutcome, so a completed
		// status here comes from paid payment requests.
		if b.PaymentStatus == domain.BookingPaymentCompleted {
			return fmt.Errorf("%w: booking is already paid through payment requests", ErrInvalidTransition)
		}

		now := s.now().UTC()

		from := p.Status
		p.Status = domain.PaymentCompleted
		p.GatewayPaymentID = in.GatewayPaymentID
		p.GatewaySignature = in.Signature
		p.CompletedAt = &now
		p.UpdatedAt = now
		in.Meta.apply(&p.Details)

		if err := tx.Payments().Update(ctx, p, from); err != nil {
			return err
		}

		b.GatewayOrderID = in.GatewayOrderID
		b.GatewayPaymentID = in.GatewayPaymentID
		b.SettlePaymentStatus()
		if b.Status == domain.BookingPending {
			b.Status = domain.BookingConfirmed
		}
		b.UpdatedAt = now

		if err := tx.Bookings().Update(ctx, b); err != nil {
			return err
		}

		inv, created, err := s.invoices.Derive(ctx, tx, invoice.Source{
			Booking:  b,
			Payment:  p,
			Venue:    venue,
			Services: services,
		})
		if err != nil {
			return err
		}

		after(func(ctx context.Context) {
			s.logger.Info("payment verified", "payment_id", p.ID, "booking_id", b.ID, "invoice", inv.Number)
			if created {
				s.invoices.Announce(ctx, inv)
			}
		})

		res = &VerifyResult{Payment: p, Invoice: inv}
		return nil
	})

	return res, err
}

// priorOutcome finds an earlier successful verification that makes this
// callback a no-op: the same gateway payment id, or any settled payment of
// the booking.
func (s *Service) priorOutcome(ctx context.Context, tx repository.Tx, in VerifyInput) (*VerifyResult, error) {
	p, err := tx.Payments().ByGatewayPaymentID(ctx, in.GatewayPaymentID)
	switch {
	case err == nil:
		if !p.Status.Settled() {
			return nil, fmt.Errorf("%w: payment is %s", ErrInvalidTransition, p.Status)
		}
		if p.BookingID != in.BookingID {
			return nil, ErrOrderMismatch
		}
	case errors.Is(err, repository.ErrNotFound):
		p, err = tx.Payments().SettledForBooking(ctx, in.BookingID)
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		if err != nil {
			return nil, err
		}
	default:
		return nil, err
	}

	inv, err := tx.Invoices().ByBooking(ctx, p.BookingID)
	if errors.Is(err, repository.ErrNotFound) {
		inv, err = nil, nil
	}
	if err != nil {
		return nil, err
	}

	return &VerifyResult{Payment: p, Invoice: inv}, nil
}

// pricing fetches the catalog entries the invoice is derived from.
func (s *Service) pricing(ctx context.Context, b *domain.Booking) (*domain.Venue, []domain.Service, error) {
	var venue *domain.Venue
	if b.VenueID != "" {
		v, err := s.dir.Venue(ctx, b.VenueID)
		if err != nil {
			return nil, nil, fmt.Errorf("venue %s: %w", b.VenueID, err)
		}
		venue = v
	}

	services, err := s.dir.Services(ctx, b.ServiceIDs)
	if err != nil {
		return nil, nil, fmt.Errorf("services: %w", err)
	}

	return venue, services, nil
}

// Get returns a payment to the paying customer or the venue owner.
func (s *Service) Get(ctx context.Context, id uuid.UUID, actorID string) (*domain.Payment, error) {
	const op = "service.payment.Get"

	p, err := s.loadPayment(ctx, s.runner.Repos(), id)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if p.CustomerID == actorID {
		return p, nil
	}

	b, err := s.loadBooking(ctx, s.runner.Repos(), p.BookingID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if err := s.requireOwner(ctx, b, actorID); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return p, nil
}

// Fail records a gateway failure reported by the client. Completed payments
// never fail afterwards.
func (s *Service) Fail(ctx context.Context, id uuid.UUID, reason, actorID string) (*domain.Payment, error) {
	const op = "service.payment.Fail"

	var out *domain.Payment
	err := s.runner.Do(ctx, func(ctx context.Context, tx repository.Tx, _ func(uow.AfterCommit)) error {
		p, err := s.loadPayment(ctx, tx, id)
		if err != nil {
			return err
		}

		if p.CustomerID != actorID {
			return ErrNotAllowed
		}

		if !p.Status.Open() {
			return fmt.Errorf("%w: payment is %s", ErrInvalidTransition, p.Status)
		}

		from := p.Status
		p.Status = domain.PaymentFailed
		p.FailureReason = reason
		p.UpdatedAt = s.now().UTC()

		if err := tx.Payments().Update(ctx, p, from); err != nil {
			return err
		}

		out = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.logger.Info("payment failed", "payment_id", out.ID, "booking_id", out.BookingID, "reason", reason)

	return out, nil
}

// Refund returns money on a completed payment. Only the venue owner may
// refund, and at most the amount paid.
func (s *Service) Refund(ctx context.Context, id uuid.UUID, amountCents int64, reason, actorID string) (*domain.Payment, error) {
	const op = "service.payment.Refund"

	p, err := s.loadPayment(ctx, s.runner.Repos(), id)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	b, err := s.loadBooking(ctx, s.runner.Repos(), p.BookingID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if err := s.requireOwner(ctx, b, actorID); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	if amountCents <= 0 {
		return nil, fmt.Errorf("%s:%w", op, ErrInvalidAmount)
	}

	var out *domain.Payment
	err = s.runner.Do(ctx, func(ctx context.Context, tx repository.Tx, _ func(uow.AfterCommit)) error {
		p, err := s.loadPayment(ctx, tx, id)
		if err != nil {
			return err
		}

		if p.Status != domain.PaymentCompleted {
			return fmt.Errorf("%w: payment is %s", ErrInvalidTransition, p.Status)
		}

		if amountCents > p.AmountCents {
			return domain.Invalid("refund %d exceeds payment %d", amountCents, p.AmountCents)
		}

		now := s.now().UTC()
		p.Status = domain.PaymentRefunded
		p.RefundCents = amountCents
		p.RefundReason = reason
		p.RefundedAt = &now
		p.UpdatedAt = now

		if err := tx.Payments().Update(ctx, p, domain.PaymentCompleted); err != nil {
			return err
		}

		if err := s.invoices.MarkRefunded(ctx, tx, p.BookingID); err != nil {
			return err
		}

		out = p
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	s.logger.Info("payment refunded", "payment_id", out.ID, "booking_id", out.BookingID, "refund_cents", amountCents)

	return out, nil
}

func (s *Service) requireOwner(ctx context.Context, b *domain.Booking, actorID string) error {
	if b.VenueID == "" {
		return ErrNotAllowed
	}

	venue, err := s.dir.Venue(ctx, b.VenueID)
	if err != nil {
		return err
	}

	if venue.OwnerID == "" || venue.OwnerID != actorID {
		return ErrNotAllowed
	}

	return nil
}

func (s *Service) loadBooking(ctx context.Context, repos repository.Tx, id uuid.UUID) (*domain.Booking, error) {
	b, err := repos.Bookings().Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return b, nil
}

func (s *Service) loadPayment(ctx context.Context, repos repository.Tx, id uuid.UUID) (*domain.Payment, error) {
	p, err := repos.Payments().Get(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrPaymentNotFound
		}
		return nil, err
	}
	return p, nil
}

// receipt tags a gateway order with the booking it pays for. Providers cap
// receipts at 40 characters.
func receipt(kind string, bookingID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("%s_%s_%d", kind, bookingID.String()[:8], at.Unix())
}
