package uow

import (
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/kirinyoku/venuebook/internal/repository"
	"github.com/stretchr/testify/assert"
)

func TestRetryable(t *testing.T) {
	assert.False(t, Retryable(nil))
	assert.True(t, Retryable(fmt.Errorf("op:%w", repository.ErrStaleVersion)))
	assert.True(t, Retryable(fmt.Errorf("commit: %w", &pgconn.PgError{Code: "40001"})))
	assert.True(t, Retryable(&pgconn.PgError{Code: "40P01"}))
	assert.False(t, Retryable(&pgconn.PgError{Code: "23505"}))
	assert.False(t, Retryable(repository.ErrNotFound))
}
