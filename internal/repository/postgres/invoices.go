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

const invoiceColumns = `
	id, number, year, sequence, booking_id, payment_id, customer_id,
	COALESCE(vendor_id, ''), invoice_date, event_details, line_items,
	subtotal_cents, tax_rate_bps, tax_cents, discount_cents, total_cents,
	payment_status, amount_paid_cents, amount_due_cents, customer_info,
	COALESCE(notes, ''), status, sent_at, currency, created_at, updated_at`

type InvoiceRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *InvoiceRepo) With(db DB) *InvoiceRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *InvoiceRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// NextSequence bumps the per-year counter and returns the new value. The row
// lock taken by the upsert serializes concurrent issuers until commit.
func (r *InvoiceRepo) NextSequence(ctx context.Context, year int) (int, error) {
	const op = "postgres.InvoiceRepo.NextSequence"

	var seq int
	err := r.handle().QueryRow(ctx, `
		INSERT INTO invoice_counters (year, last_seq)
		VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET last_seq = invoice_counters.last_seq + 1
		RETURNING last_seq`,
		year,
	).Scan(&seq)
	if err != nil {
		return 0, wrapDBErr(op, err)
	}

	return seq, nil
}

// Create inserts an invoice.
//
// Returns:
//   - error: repository.ErrConflict if the booking already has an invoice or
//     the number is taken.
func (r *InvoiceRepo) Create(ctx context.Context, inv *domain.Invoice) error {
	const op = "postgres.InvoiceRepo.Create"

	event, items, customer, err := encodeInvoiceDocs(inv)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	_, err = r.handle().Exec(ctx, `
		INSERT INTO invoices (
			id, number, year, sequence, booking_id, payment_id, customer_id, vendor_id,
			invoice_date, event_details, line_items, subtotal_cents, tax_rate_bps,
			tax_cents, discount_cents, total_cents, payment_status, amount_paid_cents,
			amount_due_cents, customer_info, notes, status, sent_at, currency,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, $11, $12, $13, $14,
			$15, $16, $17, $18, $19, $20, NULLIF($21, ''), $22, $23, $24, $25, $26
		)`,
		inv.ID, inv.Number, inv.Year, inv.Sequence, inv.BookingID, inv.PaymentID,
		inv.CustomerID, inv.VendorID, inv.InvoiceDate, event, items, inv.SubtotalCents,
		inv.TaxRateBps, inv.TaxCents, inv.DiscountCents, inv.TotalCents,
		inv.PaymentStatus, inv.AmountPaidCents, inv.AmountDueCents, customer,
		inv.Notes, inv.Status, inv.SentAt, inv.Currency, inv.CreatedAt, inv.UpdatedAt,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *InvoiceRepo) Get(ctx context.Context, id uuid.UUID) (*domain.Invoice, error) {
	const op = "postgres.InvoiceRepo.Get"

	inv, err := scanInvoice(r.handle().QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE id = $1`, id))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return inv, nil
}

func (r *InvoiceRepo) ByBooking(ctx context.Context, bookingID uuid.UUID) (*domain.Invoice, error) {
	const op = "postgres.InvoiceRepo.ByBooking"

	inv, err := scanInvoice(r.handle().QueryRow(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE booking_id = $1`, bookingID))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return inv, nil
}

func (r *InvoiceRepo) ListByCustomer(ctx context.Context, customerID string) ([]domain.Invoice, error) {
	const op = "postgres.InvoiceRepo.ListByCustomer"

	rows, err := r.handle().Query(ctx, `
		SELECT `+invoiceColumns+`
		FROM invoices
		WHERE customer_id = $1
		ORDER BY invoice_date DESC, sequence DESC`,
		customerID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	var out []domain.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, *inv)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

// Update writes the workflow fields of an invoice. Numbers, amounts and line
// items are fixed at issue time and are not touched here.
func (r *InvoiceRepo) Update(ctx context.Context, inv *domain.Invoice) error {
	const op = "postgres.InvoiceRepo.Update"

	tag, err := r.handle().Exec(ctx, `
		UPDATE invoices SET
			status = $2,
			payment_status = $3,
			notes = NULLIF($4, ''),
			sent_at = $5,
			updated_at = $6
		WHERE id = $1`,
		inv.ID, inv.Status, inv.PaymentStatus, inv.Notes, inv.SentAt, inv.UpdatedAt,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

func encodeInvoiceDocs(inv *domain.Invoice) (event, items, customer []byte, err error) {
	if event, err = json.Marshal(inv.Event); err != nil {
		return nil, nil, nil, err
	}

	lines := inv.LineItems
	if lines == nil {
		lines = []domain.LineItem{}
	}
	if items, err = json.Marshal(lines); err != nil {
		return nil, nil, nil, err
	}

	if customer, err = json.Marshal(inv.Customer); err != nil {
		return nil, nil, nil, err
	}

	return event, items, customer, nil
}

func scanInvoice(row pgx.Row) (*domain.Invoice, error) {
	var (
		inv                    domain.Invoice
		event, items, customer []byte
	)

	err := row.Scan(
		&inv.ID, &inv.Number, &inv.Year, &inv.Sequence, &inv.BookingID, &inv.PaymentID,
		&inv.CustomerID, &inv.VendorID, &inv.InvoiceDate, &event, &items,
		&inv.SubtotalCents, &inv.TaxRateBps, &inv.TaxCents, &inv.DiscountCents,
		&inv.TotalCents, &inv.PaymentStatus, &inv.AmountPaidCents, &inv.AmountDueCents,
		&customer, &inv.Notes, &inv.Status, &inv.SentAt, &inv.Currency,
		&inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(event, &inv.Event); err != nil {
		return nil, fmt.Errorf("decode event details: %w", err)
	}
	if err := json.Unmarshal(items, &inv.LineItems); err != nil {
		return nil, fmt.Errorf("decode line items: %w", err)
	}
	if err := json.Unmarshal(customer, &inv.Customer); err != nil {
		return nil, fmt.Errorf("decode customer info: %w", err)
	}

	return &inv, nil
}
