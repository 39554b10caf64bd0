package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/venuebook/internal/domain"
	"github.com/kirinyoku/venuebook/internal/repository"
)

const bookingColumns = `
	id, customer_id, venue_id, service_ids, event_date, start_time, end_time,
	event_type, guest_count, total_cents, status, payment_status,
	COALESCE(gateway_order_id, ''), COALESCE(gateway_payment_id, ''),
	payment_requests, customer_name, customer_email, customer_phone,
	COALESCE(special_requests, ''), version, created_at, updated_at`

type BookingRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *BookingRepo) With(db DB) *BookingRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *BookingRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Create inserts a new booking at version 1.
//
// Returns:
//   - error: repository.ErrConflict if a booking with the same id exists.
func (r *BookingRepo) Create(ctx context.Context, b *domain.Booking) error {
	const op = "postgres.BookingRepo.Create"

	requests, err := json.Marshal(requestsOrEmpty(b.PaymentRequests))
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	window := b.Window()
	b.Version = 1

	_, err = r.handle().Exec(ctx, `
		INSERT INTO bookings (
			id, customer_id, venue_id, service_ids, event_date, start_time, end_time,
			start_minute, end_minute, event_type, guest_count, total_cents, status,
			payment_status, gateway_order_id, gateway_payment_id, payment_requests,
			customer_name, customer_email, customer_phone, special_requests,
			version, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14,
			NULLIF($15, ''), NULLIF($16, ''), $17, $18, $19, $20, NULLIF($21, ''),
			$22, $23, $24
		)`,
		b.ID, b.CustomerID, b.VenueID, servicesOrEmpty(b.ServiceIDs), domain.Day(b.EventDate),
		b.StartTime, b.EndTime, window.Start, window.End, b.EventType, b.GuestCount,
		b.TotalCents, b.Status, b.PaymentStatus, b.GatewayOrderID, b.GatewayPaymentID,
		requests, b.CustomerName, b.CustomerEmail, b.CustomerPhone, b.SpecialRequests,
		b.Version, b.CreatedAt, b.UpdatedAt,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

// Get returns a booking by id.
//
// Returns:
//   - error: repository.ErrNotFound if the booking does not exist.
func (r *BookingRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	const op = "postgres.BookingRepo.Get"

	row := r.handle().QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)

	b, err := scanBooking(row)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return b, nil
}

// Update rewrites the mutable booking fields guarded by the version read
// earlier. On success b.Version is advanced.
//
// Returns:
//   - error: repository.ErrStaleVersion if another writer updated the booking first.
func (r *BookingRepo) Update(ctx context.Context, b *domain.Booking) error {
	const op = "postgres.BookingRepo.Update"

	requests, err := json.Marshal(requestsOrEmpty(b.PaymentRequests))
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	tag, err := r.handle().Exec(ctx, `
		UPDATE bookings SET
			status = $3,
			payment_status = $4,
			gateway_order_id = NULLIF($5, ''),
			gateway_payment_id = NULLIF($6, ''),
			payment_requests = $7,
			updated_at = $8,
			version = version + 1
		WHERE id = $1 AND version = $2`,
		b.ID, b.Version, b.Status, b.PaymentStatus, b.GatewayOrderID,
		b.GatewayPaymentID, requests, b.UpdatedAt,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrStaleVersion)
	}

	b.Version++
	return nil
}

// LockVenueDay takes a transaction-scoped advisory lock on the venue's day.
// Outside a transaction the lock would be released immediately, so it must be
// called on a repository bound to one.
func (r *BookingRepo) LockVenueDay(ctx context.Context, venueID string, day time.Time) error {
	const op = "postgres.BookingRepo.LockVenueDay"

	key := venueID + "|" + domain.FormatDate(day)

	if _, err := r.handle().Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key); err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *BookingRepo) ActiveForVenueDay(ctx context.Context, venueID string, day time.Time) ([]domain.Booking, error) {
	const op = "postgres.BookingRepo.ActiveForVenueDay"

	rows, err := r.handle().Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE venue_id = $1
		  AND event_date = $2
		  AND status IN ('pending', 'confirmed')
		ORDER BY start_minute`,
		venueID, domain.Day(day),
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	out, err := collectBookings(rows)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *BookingRepo) ListByCustomer(ctx context.Context, customerID string) ([]domain.Booking, error) {
	const op = "postgres.BookingRepo.ListByCustomer"

	rows, err := r.handle().Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE customer_id = $1
		ORDER BY event_date DESC, start_minute DESC`,
		customerID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	out, err := collectBookings(rows)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *BookingRepo) ListByVenues(ctx context.Context, venueIDs []string) ([]domain.Booking, error) {
	const op = "postgres.BookingRepo.ListByVenues"

	if len(venueIDs) == 0 {
		return nil, nil
	}

	rows, err := r.handle().Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE venue_id = ANY($1)
		ORDER BY event_date DESC, start_minute DESC`,
		venueIDs,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	out, err := collectBookings(rows)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func (r *BookingRepo) ListByServices(ctx context.Context, serviceIDs []string) ([]domain.Booking, error) {
	const op = "postgres.BookingRepo.ListByServices"

	if len(serviceIDs) == 0 {
		return nil, nil
	}

	rows, err := r.handle().Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE service_ids && $1
		ORDER BY event_date DESC, start_minute DESC`,
		serviceIDs,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	out, err := collectBookings(rows)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

// ListWithPendingRequests returns bookings holding at least one pending
// payment request.
func (r *BookingRepo) ListWithPendingRequests(ctx context.Context) ([]domain.Booking, error) {
	const op = "postgres.BookingRepo.ListWithPendingRequests"

	rows, err := r.handle().Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE payment_requests @> '[{"status": "pending"}]'::jsonb
		ORDER BY created_at`,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	out, err := collectBookings(rows)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var (
		b        domain.Booking
		requests []byte
	)

	err := row.Scan(
		&b.ID, &b.CustomerID, &b.VenueID, &b.ServiceIDs, &b.EventDate, &b.StartTime,
		&b.EndTime, &b.EventType, &b.GuestCount, &b.TotalCents, &b.Status,
		&b.PaymentStatus, &b.GatewayOrderID, &b.GatewayPaymentID, &requests,
		&b.CustomerName, &b.CustomerEmail, &b.CustomerPhone, &b.SpecialRequests,
		&b.Version, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(requests) > 0 {
		if err := json.Unmarshal(requests, &b.PaymentRequests); err != nil {
			return nil, fmt.Errorf("decode payment requests: %w", err)
		}
	}

	return &b, nil
}

func collectBookings(rows pgx.Rows) ([]domain.Booking, error) {
	defer rows.Close()

	var out []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}

func requestsOrEmpty(in []domain.PaymentRequest) []domain.PaymentRequest {
	if in == nil {
		return []domain.PaymentRequest{}
	}
	return in
}

func servicesOrEmpty(in []string) []string {
	if in == nil {
		return []string{}
	}
	return in
}
