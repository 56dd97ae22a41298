package ledger

import (
	"context"

	"github.com/lexledger/backend/internal/domain/ledger"
)

// TransactionScope provides transactional access to ledger repositories.
// Every repository handed to fn shares one database transaction, committed when
// fn returns nil and rolled back otherwise.
type TransactionScope interface {
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories provides access to all ledger repositories within a transaction.
//
// Account balances are only written through Accounts().UpdateBalances after the
// accounts were locked with Accounts().LockByIDs in the same transaction.
type TransactionalRepositories interface {
	Accounts() ledger.AccountRepository
	JournalEntries() ledger.JournalEntryRepository
	Invoices() ledger.InvoiceRepository
	Payments() ledger.PaymentRepository
	Expenses() ledger.ExpenseRepository
	Settings() ledger.SettingsRepository
}

// NoOpTransactionScope runs fn against fixed repositories without a transaction.
// Useful for tests with mocked repositories.
type NoOpTransactionScope struct {
	accounts ledger.AccountRepository
	entries  ledger.JournalEntryRepository
	invoices ledger.InvoiceRepository
	payments ledger.PaymentRepository
	expenses ledger.ExpenseRepository
	settings ledger.SettingsRepository
}

// NoOpRepositories groups the repositories of a NoOpTransactionScope
type NoOpRepositories struct {
	Accounts       ledger.AccountRepository
	JournalEntries ledger.JournalEntryRepository
	Invoices       ledger.InvoiceRepository
	Payments       ledger.PaymentRepository
	Expenses       ledger.ExpenseRepository
	Settings       ledger.SettingsRepository
}

// NewNoOpTransactionScope creates a NoOpTransactionScope with the given repositories.
func NewNoOpTransactionScope(repos NoOpRepositories) *NoOpTransactionScope {
	return &NoOpTransactionScope{
		accounts: repos.Accounts,
		entries:  repos.JournalEntries,
		invoices: repos.Invoices,
		payments: repos.Payments,
		expenses: repos.Expenses,
		settings: repos.Settings,
	}
}

// Execute runs the function without a real transaction.
func (s *NoOpTransactionScope) Execute(_ context.Context, fn func(repos TransactionalRepositories) error) error {
	return fn(s)
}

func (s *NoOpTransactionScope) Accounts() ledger.AccountRepository            { return s.accounts }
func (s *NoOpTransactionScope) JournalEntries() ledger.JournalEntryRepository { return s.entries }
func (s *NoOpTransactionScope) Invoices() ledger.InvoiceRepository            { return s.invoices }
func (s *NoOpTransactionScope) Payments() ledger.PaymentRepository            { return s.payments }
func (s *NoOpTransactionScope) Expenses() ledger.ExpenseRepository            { return s.expenses }
func (s *NoOpTransactionScope) Settings() ledger.SettingsRepository           { return s.settings }

var _ TransactionScope = (*NoOpTransactionScope)(nil)
var _ TransactionalRepositories = (*NoOpTransactionScope)(nil)
