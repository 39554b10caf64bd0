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

const savedMethodColumns = `
	id, user_id, type, COALESCE(nickname, ''), details, gateway, is_default,
	active, created_at, updated_at`

type SavedMethodRepo struct {
	pool *pgxpool.Pool
	db   DB
}

func (r *SavedMethodRepo) With(db DB) *SavedMethodRepo {
	cp := *r
	cp.db = db
	return &cp
}

func (r *SavedMethodRepo) handle() DB {
	if r.db != nil {
		return r.db
	}
	return r.pool
}

// Create stores a saved method.
//
// Returns:
//   - error: repository.ErrConflict if the user already has another default
//     method.
func (r *SavedMethodRepo) Create(ctx context.Context, m *domain.SavedMethod) error {
	const op = "postgres.SavedMethodRepo.Create"

	details, err := json.Marshal(m.Details)
	if err != nil {
		return fmt.Errorf("%s:%w", op, err)
	}

	_, err = r.handle().Exec(ctx, `
		INSERT INTO payment_methods (
			id, user_id, type, nickname, details, gateway, is_default, active,
			created_at, updated_at
		) VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10)`,
		m.ID, m.UserID, m.Type, m.Nickname, details, m.Gateway, m.IsDefault, m.Active,
		m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	return nil
}

func (r *SavedMethodRepo) Get(ctx context.Context, id uuid.UUID) (*domain.SavedMethod, error) {
	const op = "postgres.SavedMethodRepo.Get"

	m, err := scanSavedMethod(r.handle().QueryRow(ctx,
		`SELECT `+savedMethodColumns+` FROM payment_methods WHERE id = $1`, id))
	if err != nil {
		return nil, wrapDBErr(op, err)
	}

	return m, nil
}

func (r *SavedMethodRepo) ListActive(ctx context.Context, userID string) ([]domain.SavedMethod, error) {
	const op = "postgres.SavedMethodRepo.ListActive"

	rows, err := r.handle().Query(ctx, `
		SELECT `+savedMethodColumns+`
		FROM payment_methods
		WHERE user_id = $1 AND active
		ORDER BY is_default DESC, created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, wrapDBErr(op, err)
	}
	defer rows.Close()

	var out []domain.SavedMethod
	for rows.Next() {
		m, err := scanSavedMethod(rows)
		if err != nil {
			return nil, wrapDBErr(op, err)
		}
		out = append(out, *m)
	}

	if err := rows.Err(); err != nil {
		return nil, wrapDBErr(op, err)
	}

	return out, nil
}

// Update writes the mutable fields: nickname, default flag and active flag.
//
// Returns:
//   - error: repository.ErrNotFound if the method does not exist.
func (r *SavedMethodRepo) Update(ctx context.Context, m *domain.SavedMethod) error {
	const op = "postgres.SavedMethodRepo.Update"

	tag, err := r.handle().Exec(ctx, `
		UPDATE payment_methods SET
			nickname = NULLIF($2, ''),
			is_default = $3,
			active = $4,
			updated_at = $5
		WHERE id = $1`,
		m.ID, m.Nickname, m.IsDefault, m.Active, m.UpdatedAt,
	)
	if err != nil {
		return wrapDBErr(op, err)
	}

	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s:%w", op, repository.ErrNotFound)
	}

	return nil
}

func scanSavedMethod(row pgx.Row) (*domain.SavedMethod, error) {
	var (
		m       domain.SavedMethod
		details []byte
	)

	err := row.Scan(
		&m.ID, &m.UserID, &m.Type, &m.Nickname, &details, &m.Gateway, &m.IsDefault,
		&m.Active, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(details, &m.Details); err != nil {
		return nil, fmt.Errorf("decode method details: %w", err)
	}

	return &m, nil
}
