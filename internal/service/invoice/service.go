package invoice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/venuebook/internal/domain"
	"github.com/kirinyoku/venuebook/internal/notify"
	"github.com/kirinyoku/venuebook/internal/repository"
	"github.com/kirinyoku/venuebook/internal/uow"
)

// Publisher delivers issued invoices to the mailer.
type Publisher interface {
	PublishInvoiceIssued(ctx context.Context, msg notify.InvoiceIssued) error
}

type Config struct {
	TaxRateBps int
	Currency   string
}

type Service struct {
	runner    uow.Runner
	publisher Publisher
	logger    *slog.Logger
	now       func() time.Time
	cfg       Config
}

func New(runner uow.Runner, publisher Publisher, logger *slog.Logger, cfg Config) *Service {
	if cfg.Currency == "" {
		cfg.Currency = "INR"
	}

	return &Service{
		runner:    runner,
		publisher: publisher,
		logger:    logger,
		now:       time.Now,
		cfg:       cfg,
	}
}

// Source is everything an invoice is derived from.
type Source struct {
	Booking  *domain.Booking
	Payment  *domain.Payment
	Venue    *domain.Venue
	Services []domain.Service
}

// Derive issues the booking's invoice inside tx. If the booking already has
// one it is returned as is, so a replayed derivation never allocates a second
// number. The bool reports whether a new invoice was created.
func (s *Service) Derive(ctx context.Context, tx repository.Tx, src Source) (*domain.Invoice, bool, error) {
	const op = "service.invoice.Derive"

	existing, err := tx.Invoices().ByBooking(ctx, src.Booking.ID)
	switch {
	case err == nil:
		return existing, false, nil
	case !errors.Is(err, repository.ErrNotFound):
		return nil, false, fmt.Errorf("%s:%w", op, err)
	}

	now := s.now().UTC()
	year := now.Year()

	seq, err := tx.Invoices().NextSequence(ctx, year)
	if err != nil {
		return nil, false, fmt.Errorf("%s:%w", op, err)
	}

	inv := s.build(src, now, year, seq)

	if err := tx.Invoices().Create(ctx, inv); err != nil {
		return nil, false, fmt.Errorf("%s:%w", op, err)
	}

	return inv, true, nil
}

func (s *Service) build(src Source, now time.Time, year, seq int) *domain.Invoice {
	b := src.Booking

	subtotal := b.TotalCents
	tax, total := domain.Tax(subtotal, s.cfg.TaxRateBps)

	var paid int64
	if src.Payment != nil {
		paid = src.Payment.AmountCents
	}

	event := domain.EventDetails{
		EventType:  b.EventType,
		EventDate:  b.EventDate,
		StartTime:  b.StartTime,
		EndTime:    b.EndTime,
		GuestCount: b.GuestCount,
	}

	var vendor string
	if src.Venue != nil {
		vendor = src.Venue.OwnerID
		event.VenueName = src.Venue.Name
		event.Location = src.Venue.Location
	}

	inv := &domain.Invoice{
		ID:              uuid.New(),
		Number:          domain.InvoiceNumber(year, seq),
		Year:            year,
		Sequence:        seq,
		BookingID:       b.ID,
		CustomerID:      b.CustomerID,
		VendorID:        vendor,
		InvoiceDate:     now,
		Event:           event,
		LineItems:       domain.LineItems(src.Venue, src.Services),
		SubtotalCents:   subtotal,
		TaxRateBps:      s.cfg.TaxRateBps,
		TaxCents:        tax,
		TotalCents:      total,
		PaymentStatus:   paymentStatus(paid, total),
		AmountPaidCents: paid,
		AmountDueCents:  max(total-paid, 0),
		Customer: domain.CustomerInfo{
			Name:  b.CustomerName,
			Email: b.CustomerEmail,
			Phone: b.CustomerPhone,
		},
		Status:    domain.InvoiceSent,
		SentAt:    &now,
		Currency:  s.cfg.Currency,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if src.Payment != nil {
		inv.PaymentID = src.Payment.ID
		if src.Payment.Currency != "" {
			inv.Currency = src.Payment.Currency
		}
	}

	return inv
}

func paymentStatus(paid, total int64) domain.InvoicePaymentStatus {
	switch {
	case paid <= 0:
		return domain.InvoiceUnpaid
	case paid < total:
		return domain.InvoicePartial
	default:
		return domain.InvoiceSettled
	}
}

// Announce publishes an issued invoice. It runs after commit and never fails
// the caller.
func (s *Service) Announce(ctx context.Context, inv *domain.Invoice) {
	if s.publisher == nil {
		return
	}

	msg := notify.NewInvoiceIssued(*inv, inv.Customer.Email, s.now())
	if err := s.publisher.PublishInvoiceIssued(ctx, msg); err != nil {
		s.logger.Warn("announce invoice failed", "invoice_id", inv.ID, "number", inv.Number, "error", err)
		return
	}

	s.logger.Info("invoice issued", "invoice_id", inv.ID, "number", inv.Number, "booking_id", inv.BookingID)
}

// MarkRefunded mirrors a refund of the booking's payment inside tx.
func (s *Service) MarkRefunded(ctx context.Context, tx repository.Tx, bookingID uuid.UUID) error {
	const op = "service.invoice.MarkRefunded"

	inv, err := tx.Invoices().ByBooking(ctx, bookingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("%s:%w", op, err)
	}

	inv.PaymentStatus = domain.InvoiceRefunded
	inv.UpdatedAt = s.now().UTC()

	if err := tx.Invoices().Update(ctx, inv); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	return nil
}

// Get returns an invoice to its customer.
func (s *Service) Get(ctx context.Context, id uuid.UUID, actorID string) (*domain.Invoice, error) {
	const op = "service.invoice.Get"

	inv, err := s.runner.Repos().Invoices().Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, notFound(err))
	}

	if inv.CustomerID != actorID {
		return nil, fmt.Errorf("%s:%w", op, ErrNotAllowed)
	}

	return inv, nil
}

// ByBooking returns the booking's invoice to its customer.
func (s *Service) ByBooking(ctx context.Context, bookingID uuid.UUID, actorID string) (*domain.Invoice, error) {
	const op = "service.invoice.ByBooking"

	inv, err := s.runner.Repos().Invoices().ByBooking(ctx, bookingID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, notFound(err))
	}

	if inv.CustomerID != actorID {
		return nil, fmt.Errorf("%s:%w", op, ErrNotAllowed)
	}

	return inv, nil
}

func (s *Service) ListMine(ctx context.Context, actorID string) ([]domain.Invoice, error) {
	const op = "service.invoice.ListMine"

	out, err := s.runner.Repos().Invoices().ListByCustomer(ctx, actorID)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// Send publishes the invoice to the customer's address and records it as
// sent. Unlike Announce, a publishing failure is returned.
//
// Returns:
//   - error: invoice.ErrNotAllowed unless the actor is the customer or vendor.
//   - error: invoice.ErrInvalidTransition for a cancelled invoice.
func (s *Service) Send(ctx context.Context, id uuid.UUID, actorID string) (*domain.Invoice, error) {
	const op = "service.invoice.Send"

	inv, err := s.runner.Repos().Invoices().Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, notFound(err))
	}

	if actorID != inv.CustomerID && (inv.VendorID == "" || actorID != inv.VendorID) {
		return nil, fmt.Errorf("%s:%w", op, ErrNotAllowed)
	}

	if inv.Status == domain.InvoiceCancelled {
		return nil, fmt.Errorf("%s:%w: invoice is cancelled", op, ErrInvalidTransition)
	}

	if s.publisher != nil {
		if err := s.publisher.PublishInvoiceIssued(ctx, notify.NewInvoiceIssued(*inv, inv.Customer.Email, s.now())); err != nil {
			return nil, fmt.Errorf("%s:%w", op, err)
		}
	}

	var out *domain.Invoice
	err = s.runner.Do(ctx, func(ctx context.Context, tx repository.Tx, _ func(uow.AfterCommit)) error {
		cur, err := tx.Invoices().Get(ctx, id)
		if err != nil {
			return notFound(err)
		}

		now := s.now().UTC()
		cur.SentAt = &now
		cur.UpdatedAt = now
		if cur.Status == domain.InvoiceDraft {
			cur.Status = domain.InvoiceSent
		}

		if err := tx.Invoices().Update(ctx, cur); err != nil {
			return err
		}

		out = cur
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

// UpdateStatus lets the vendor move the invoice through its workflow. Only
// status and notes change; cancelled is terminal.
func (s *Service) UpdateStatus(
	ctx context.Context,
	id uuid.UUID,
	status domain.InvoiceStatus,
	notes string,
	actorID string,
) (*domain.Invoice, error) {
	const op = "service.invoice.UpdateStatus"

	if !status.Valid() {
		return nil, fmt.Errorf("%s:%w", op, domain.Invalid("invoice status %q is not supported", status))
	}

	var out *domain.Invoice
	err := s.runner.Do(ctx, func(ctx context.Context, tx repository.Tx, _ func(uow.AfterCommit)) error {
		inv, err := tx.Invoices().Get(ctx, id)
		if err != nil {
			return notFound(err)
		}

		if inv.VendorID == "" || inv.VendorID != actorID {
			return ErrNotAllowed
		}

		if inv.Status == domain.InvoiceCancelled && status != domain.InvoiceCancelled {
			return fmt.Errorf("%w: invoice is cancelled", ErrInvalidTransition)
		}

		inv.Status = status
		if notes != "" {
			inv.Notes = notes
		}
		inv.UpdatedAt = s.now().UTC()

		if err := tx.Invoices().Update(ctx, inv); err != nil {
			return err
		}

		out = inv
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	return out, nil
}

func notFound(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrInvoiceNotFound
	}
	return err
}
