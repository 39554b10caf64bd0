package uow

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/kirinyoku/venuebook/internal/repository"
	postgres "github.com/kirinyoku/venuebook/internal/repository/postgres"
	"github.com/sethvargo/go-retry"
)

// AfterCommit is a function that runs after a successful transaction commit.
type AfterCommit func(ctx context.Context)

// TxFunc is the body of a unit of work. It may be invoked more than once when
// the transaction is retried, so it must not have side effects outside tx;
// those go into after-commit hooks.
type TxFunc func(ctx context.Context, tx repository.Tx, after func(AfterCommit)) error

// Runner executes units of work. Repos returns repositories for plain reads
// outside a transaction.
type Runner interface {
	Do(ctx context.Context, fn TxFunc) error
	Repos() repository.Tx
}

const (
	maxAttempts = 3
	retryBase   = 20 * time.Millisecond
)

// UoW represents a unit of work.
type UoW struct {
	store *postgres.Store
}

func NewUoW(store *postgres.Store) *UoW {
	return &UoW{store: store}
}

func (u *UoW) Repos() repository.Tx {
	return u.store
}

// Do runs fn inside the transaction. After a successful commit,
// it executes all after-commit hooks.
func (u *UoW) Do(ctx context.Context, fn TxFunc) error {
	return u.DoWithOpts(ctx, nil, fn)
}

// DoWithOpts runs fn inside the transaction with the given options. Lost
// optimistic updates and serialization failures restart the whole unit of
// work with a short exponential backoff. After a successful commit, it
// executes the hooks registered by the winning attempt.
func (u *UoW) DoWithOpts(ctx context.Context, opts *pgx.TxOptions, fn TxFunc) error {
	var hooks []AfterCommit

	backoff := retry.WithMaxRetries(maxAttempts-1, retry.NewExponential(retryBase))

	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		hooks = hooks[:0]

		err := u.store.RunTx(ctx, opts, func(ctx context.Context, tx postgres.DB) error {
			return fn(ctx, u.store.Bind(tx), func(h AfterCommit) {
				hooks = append(hooks, h)
			})
		})
		if Retryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		return err
	}

	for _, h := range hooks {
		h(ctx)
	}

	return nil
}

// Retryable reports errors that a fresh attempt of the same unit of work
// may resolve.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, repository.ErrStaleVersion) || postgres.IsRetryable(err)
}
