package persistence

import (
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"github.com/lexledger/backend/internal/domain/shared"
)

func TestTranslateError(t *testing.T) {
	id := uuid.New()

	t.Run("nil stays nil", func(t *testing.T) {
		assert.NoError(t, translateError(nil, "account", id))
	})

	t.Run("duplicate key becomes already exists", func(t *testing.T) {
		err := translateError(fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey), "account", id)
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
		assert.Contains(t, err.Error(), id.String())
	})

	t.Run("unique violation from pgx", func(t *testing.T) {
		err := translateError(&pgconn.PgError{Code: "23505"}, "invoice", id)
		assert.ErrorIs(t, err, shared.ErrAlreadyExists)
	})

	lockCodes := []string{"40001", "40P01", "55P03"}
	for _, code := range lockCodes {
		t.Run("pgx "+code+" becomes concurrency conflict", func(t *testing.T) {
			err := translateError(fmt.Errorf("exec: %w", &pgconn.PgError{Code: code}), "account", id)
			assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		})
		t.Run("pq "+code+" becomes concurrency conflict", func(t *testing.T) {
			err := translateError(&pq.Error{Code: pq.ErrorCode(code)}, "account", id)
			assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
		})
	}

	t.Run("value too long becomes invalid input", func(t *testing.T) {
		err := translateError(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "22001"}), "journal entry", id)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
		assert.Contains(t, err.Error(), id.String())

		err = translateError(&pq.Error{Code: "22001"}, "journal entry", id)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("other errors pass through", func(t *testing.T) {
		cause := errors.New("disk full")
		assert.Same(t, cause, translateError(cause, "account", id))

		fk := &pgconn.PgError{Code: "23503"}
		assert.Equal(t, error(fk), translateError(fk, "account", id))
	})
}

func TestConflict(t *testing.T) {
	id := uuid.New()
	err := conflict("payment", id)
	assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)
	assert.Contains(t, err.Error(), "payment")
}
