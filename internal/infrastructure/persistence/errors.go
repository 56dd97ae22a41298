package persistence

import (
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"

	"github.com/lexledger/backend/internal/domain/ledger"
	"github.com/lexledger/backend/internal/domain/shared"
)

// SQLSTATE codes that mean the caller lost a race and may retry
const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgLockNotAvailable     = "55P03"
	pgUniqueViolation      = "23505"
	pgStringTooLong        = "22001"
)

// translateError maps driver failures onto domain errors.
// Lock contention becomes a concurrency conflict, unique violations become already-exists
// and values wider than their column become invalid input.
func translateError(err error, resource string, id uuid.UUID) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return alreadyExists(resource, id)
	}
	switch sqlState(err) {
	case pgSerializationFailure, pgDeadlockDetected, pgLockNotAvailable:
		return ledger.NewConcurrencyConflictError(resource, id)
	case pgUniqueViolation:
		return alreadyExists(resource, id)
	case pgStringTooLong:
		return ledger.NewValidationError("A value of %s %s is too long to store", resource, id).
			WithDetail("resource", resource)
	}
	return err
}

func sqlState(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func alreadyExists(resource string, id uuid.UUID) error {
	return shared.NewDomainErrorf(shared.ErrAlreadyExists.Code, "%s %s already exists", resource, id)
}

// conflict reports an optimistic update that matched no row
func conflict(resource string, id uuid.UUID) error {
	return ledger.NewConcurrencyConflictError(resource, id)
}
