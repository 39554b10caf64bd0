package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/kirinyoku/venuebook/internal/domain"
)

// Bookings persists bookings together with their embedded payment requests.
type Bookings interface {
	Create(ctx context.Context, b *domain.Booking) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error)
	// Update writes b if its version still matches the stored one and bumps
	// b.Version. It fails with ErrStaleVersion otherwise.
	Update(ctx context.Context, b *domain.Booking) error
	// LockVenueDay serializes writers of one venue day until the surrounding
	// transaction ends.
	LockVenueDay(ctx context.Context, venueID string, day time.Time) error
	ActiveForVenueDay(ctx context.Context, venueID string, day time.Time) ([]domain.Booking, error)
	ListByCustomer(ctx context.Context, customerID string) ([]domain.Booking, error)
	ListByVenues(ctx context.Context, venueIDs []string) ([]domain.Booking, error)
	// ListByServices returns bookings that selected any of serviceIDs.
	ListByServices(ctx context.Context, serviceIDs []string) ([]domain.Booking, error)
	ListWithPendingRequests(ctx context.Context) ([]domain.Booking, error)
}

type Payments interface {
	Create(ctx context.Context, p *domain.Payment) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Payment, error)
	ByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*domain.Payment, error)
	ByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Payment, error)
	// SettledForBooking returns the booking's completed (or since refunded)
	// whole-booking payment.
	SettledForBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Payment, error)
	// Update writes p if the stored status still equals from.
	Update(ctx context.Context, p *domain.Payment, from domain.PaymentStatus) error
}

type Invoices interface {
	// NextSequence atomically reserves the next invoice number of a year.
	NextSequence(ctx context.Context, year int) (int, error)
	Create(ctx context.Context, inv *domain.Invoice) error
	Get(ctx context.Context, id uuid.UUID) (*domain.Invoice, error)
	ByBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Invoice, error)
	ListByCustomer(ctx context.Context, customerID string) ([]domain.Invoice, error)
	Update(ctx context.Context, inv *domain.Invoice) error
}

// SavedMethods stores customers' payment methods. Rows are never removed;
// deletion clears Active.
type SavedMethods interface {
	Create(ctx context.Context, m *domain.SavedMethod) error
	Get(ctx context.Context, id uuid.UUID) (*domain.SavedMethod, error)
	// ListActive returns the user's active methods, the default first and
	// then newest first.
	ListActive(ctx context.Context, userID string) ([]domain.SavedMethod, error)
	Update(ctx context.Context, m *domain.SavedMethod) error
}

// Tx is the set of repositories bound to one unit of work.
type Tx interface {
	Bookings() Bookings
	Payments() Payments
	Invoices() Invoices
	SavedMethods() SavedMethods
}
