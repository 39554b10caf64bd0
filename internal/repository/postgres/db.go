package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kirinyoku/venuebook/internal/repository"
)

type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
	}
}

func (s *Store) RunTx(
	ctx context.Context,
	opts *pgx.TxOptions,
	fn func(ctx context.Context, tx DB) error,
) error {
	txOpts := pgx.TxOptions{
		IsoLevel:   pgx.Serializable,
		AccessMode: pgx.ReadWrite,
	}

	if opts != nil {
		txOpts.IsoLevel = opts.IsoLevel
		txOpts.AccessMode = opts.AccessMode
		txOpts.DeferrableMode = opts.DeferrableMode
	}

	tx, err := s.pool.BeginTx(ctx, txOpts)
	if err != nil {
		return err
	}

	defer tx.Rollback(ctx)

	if err := fn(ctx, tx); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

func (s *Store) Bookings() repository.Bookings         { return &BookingRepo{pool: s.pool} }
func (s *Store) Payments() repository.Payments         { return &PaymentRepo{pool: s.pool} }
func (s *Store) Invoices() repository.Invoices         { return &InvoiceRepo{pool: s.pool} }
func (s *Store) SavedMethods() repository.SavedMethods { return &SavedMethodRepo{pool: s.pool} }

// Bind returns the repositories bound to db, usually a transaction.
func (s *Store) Bind(db DB) repository.Tx {
	return boundTx{pool: s.pool, db: db}
}

type boundTx struct {
	pool *pgxpool.Pool
	db   DB
}

func (b boundTx) Bookings() repository.Bookings { return &BookingRepo{pool: b.pool, db: b.db} }
func (b boundTx) Payments() repository.Payments { return &PaymentRepo{pool: b.pool, db: b.db} }
func (b boundTx) Invoices() repository.Invoices { return &InvoiceRepo{pool: b.pool, db: b.db} }
func (b boundTx) SavedMethods() repository.SavedMethods {
	return &SavedMethodRepo{pool: b.pool, db: b.db}
}
