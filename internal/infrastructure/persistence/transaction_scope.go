package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	appledger "github.com/lexledger/backend/internal/application/ledger"
	"github.com/lexledger/backend/internal/domain/ledger"
)

// GormTransactionScope implements TransactionScope using GORM transactions.
// Every repository handed to the callback shares the transaction.
type GormTransactionScope struct {
	db          *gorm.DB
	lockTimeout time.Duration
}

// TransactionScopeOption configures a GormTransactionScope
type TransactionScopeOption func(*GormTransactionScope)

// WithLockTimeout bounds how long a statement in the transaction waits for a
// row lock on PostgreSQL. A lock wait that times out surfaces as a
// concurrency conflict.
func WithLockTimeout(d time.Duration) TransactionScopeOption {
	return func(s *GormTransactionScope) {
		s.lockTimeout = d
	}
}

// NewGormTransactionScope creates a new GormTransactionScope.
func NewGormTransactionScope(db *gorm.DB, opts ...TransactionScopeOption) *GormTransactionScope {
	s := &GormTransactionScope{db: db}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute runs fn within a database transaction.
// The transaction is rolled back when fn returns an error and committed otherwise.
func (s *GormTransactionScope) Execute(ctx context.Context, fn func(repos appledger.TransactionalRepositories) error) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if s.lockTimeout > 0 && tx.Dialector.Name() == "postgres" {
			if err := tx.Exec("SELECT set_config('lock_timeout', ?, true)",
				fmt.Sprintf("%dms", s.lockTimeout.Milliseconds())).Error; err != nil {
				return err
			}
		}
		return fn(&gormTransactionalRepositories{tx: tx})
	})
	if err != nil {
		return translateError(err, "transaction", uuid.Nil)
	}
	return nil
}

// gormTransactionalRepositories provides access to all repositories within a transaction.
type gormTransactionalRepositories struct {
	tx *gorm.DB
}

func (r *gormTransactionalRepositories) Accounts() ledger.AccountRepository {
	return NewGormAccountRepository(r.tx)
}

func (r *gormTransactionalRepositories) JournalEntries() ledger.JournalEntryRepository {
	return NewGormJournalEntryRepository(r.tx)
}

func (r *gormTransactionalRepositories) Invoices() ledger.InvoiceRepository {
	return NewGormInvoiceRepository(r.tx)
}

func (r *gormTransactionalRepositories) Payments() ledger.PaymentRepository {
	return NewGormPaymentRepository(r.tx)
}

func (r *gormTransactionalRepositories) Expenses() ledger.ExpenseRepository {
	return NewGormExpenseRepository(r.tx)
}

func (r *gormTransactionalRepositories) Settings() ledger.SettingsRepository {
	return NewGormSettingsRepository(r.tx)
}

// Ensure GormTransactionScope implements TransactionScope
var _ appledger.TransactionScope = (*GormTransactionScope)(nil)

// Ensure gormTransactionalRepositories implements TransactionalRepositories
var _ appledger.TransactionalRepositories = (*gormTransactionalRepositories)(nil)
