package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/venuebook/internal/domain"
	"github.com/kirinyoku/venuebook/internal/repository"
)

const paymentColumns = `
	id, booking_id, customer_id, amount_cents, currency, method, gateway,
	gateway_order_id, COALESCE(gateway_payment_id, ''), COALESCE(gateway_signature, ''),
	details, status, COALESCE(failure_reason, ''), refund_cents, refunded_at,
	COALESCE(refund_reason, ''), COALESCE(ip_address, ''), COALESCE(user_agent, ''),
	created_at, updated_at, completed_at`

type PaymentRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *PaymentRepo) With(db DB) *PaymentRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *PaymentRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Create inserts a payment attempt.
//
// Returns:
//   - error: repository.ErrConflict if the gateway order id is already recorded.
func (r *PaymentRepo) Create(ctx context.Context, p *domain.Payment) error {
	const op = "postgres.PaymentRepo.Create"

	details, err := json.Marshal(p.Details)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	_, err = r.handle().Exec(ctx, `
		INSERT INTO payments (
			id, booking_id, customer_id, amount_cents, currency, method, gateway,
			gateway_order_id, gateway_payment_id, gateway_signature, details, status,
			failure_reason, refund_cents, refunded_at, refund_reason, ip_address,
			user_agent, created_at, updated_at, completed_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), NULLIF($10, ''), $11, $12,
			NULLIF($13, ''), $14, $15, NULLIF($16, ''), NULLIF($17, ''), NULLIF($18, ''),
			$19, $20, $21
		)`,
		p.ID, p.BookingID, p.CustomerID, p.AmountCents, p.Currency, p.Method, p.Gateway,
		p.GatewayOrderID, p.GatewayPaymentID, p.GatewaySignature, details, p.Status,
		p.FailureReason, p.RefundCents, p.RefundedAt, p.RefundReason, p.IPAddress,
		p.UserAgent, p.CreatedAt, p.UpdatedAt, p.CompletedAt,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *PaymentRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Payment, error) {
	const op = "postgres.PaymentRepo.Get"

	p, err := scanPayment(r.handle().QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return p, nil
}

func (r *PaymentRepo) ByGatewayPaymentID(ctx context.Context, gatewayPaymentID string) (*domain.Payment, error) {
	const op = "postgres.PaymentRepo.ByGatewayPaymentID"

	p, err := scanPayment(r.handle().QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE gateway_payment_id = $1`, gatewayPaymentID))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return p, nil
}

func (r *PaymentRepo) ByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Payment, error) {
	const op = "postgres.PaymentRepo.ByGatewayOrderID"

	p, err := scanPayment(r.handle().QueryRow(ctx,
		`SELECT `+paymentColumns+` FROM payments WHERE gateway_order_id = $1`, gatewayOrderID))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return p, nil
}

func (r *PaymentRepo) SettledForBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Payment, error) {
	const op = "postgres.PaymentRepo.SettledForBooking"

	p, err := scanPayment(r.handle().QueryRow(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE booking_id = $1 AND status IN ('completed', 'refunded')`,
		bookingID,
	))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return p, nil
}

// Update writes the mutable payment fields if the stored status is still from.
//
// Returns:
//   - error: repository.ErrStaleVersion if the status moved in the meantime.
//   - error: repository.ErrConflict if the gateway payment id or settled slot is taken.
func (r *PaymentRepo) Update(ctx context.Context, p *domain.Payment, from domain.PaymentStatus) error {
	const op = "postgres.PaymentRepo.Update"

	details, err := json.Marshal(p.Details)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	tag, err := r.handle().Exec(ctx, `
		UPDATE payments SET
			status = $3,
			gateway_payment_id = NULLIF($4, ''),
			gateway_signature = NULLIF($5, ''),
			details = $6,
			failure_reason = NULLIF($7, ''),
			refund_cents = $8,
			refunded_at = $9,
			refund_reason = NULLIF($10, ''),
			completed_at = $11,
			updated_at = $12
		WHERE id = $1 AND status = $2`,
		p.ID, from, p.Status, p.GatewayPaymentID, p.GatewaySignature, details,
		p.FailureReason, p.RefundCents, p.RefundedAt, p.RefundReason, p.CompletedAt,
		p.UpdatedAt,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrStaleVersion)
	}

	return nil
}

func scanPayment(row pgx.Row) (*domain.Payment, error) {
	var (
		p       domain.Payment
		details []byte
	)

	err := row.Scan(
		&p.ID, &p.BookingID, &p.CustomerID, &p.AmountCents, &p.Currency, &p.Method,
		&p.Gateway, &p.GatewayOrderID, &p.GatewayPaymentID, &p.GatewaySignature,
		&details, &p.Status, &p.FailureReason, &p.RefundCents, &p.RefundedAt,
		&p.RefundReason, &p.IPAddress, &p.UserAgent, &p.CreatedAt, &p.UpdatedAt,
		&p.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(details) > 0 {
		if err := json.Unmarshal(details, &p.Details); err != nil {
			return nil, fmt.Errorf("decode payment details: %w", err)
		}
	}

	return &p, nil
}
