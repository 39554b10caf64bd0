package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/kirinyoku/venuebook/migrations"
	"github.com/pressly/goose/v3"
)

// Migrator applies the embedded schema with goose.
type Migrator struct {
	db     *sql.DB
	logger *slog.Logger
}

func NewMigrator(pool *pgxpool.Pool, logger *slog.Logger) (*Migrator, error) {
	const op = "app.NewMigrator"

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect("postgres"); err != nil {
		return nil, fmt.Errorf("%s:%w", op, err)
	}

	// goose works on database/sql; the pool stays owned by the app.
	return &Migrator{db: stdlib.OpenDBFromPool(pool), logger: logger}, nil
}

// Run applies every pending migration.
func (m *Migrator) Run(ctx context.Context) error {
	const op = "app.Migrator.Run"

	if err := goose.UpContext(ctx, m.db, "."); err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	version, err := goose.GetDBVersionContext(ctx, m.db)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	m.logger.Info("migrations applied", "version", version)
	return nil
}

func (m *Migrator) Close() error {
	return m.db.Close()
}
