package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Find methods return (nil, nil) when no record matches in the tenant.
// ForUpdate variants take a row lock held until the surrounding transaction ends.

// AccountRepository persists the chart of accounts
type AccountRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Account, error)
	FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*Account, error)
	FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*Account, error)
	FindAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]*Account, error)
	// LockByIDs locks the accounts in ascending id order
	LockByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*Account, error)
	ExistsByCode(ctx context.Context, tenantID uuid.UUID, code string) (bool, error)
	Create(ctx context.Context, account *Account) error
	SaveWithLock(ctx context.Context, account *Account) error
	// UpdateBalances writes current_balance for accounts locked in the same transaction
	UpdateBalances(ctx context.Context, accounts []*Account) error
	Delete(ctx context.Context, tenantID, id uuid.UUID) error
}

// JournalEntryFilter narrows journal entry listings
type JournalEntryFilter struct {
	Status     *JournalEntryStatus
	SourceKind *SourceKind
	SourceID   *uuid.UUID
	AccountID  *uuid.UUID
	FromDate   *time.Time
	ToDate     *time.Time
	Page       int
	PageSize   int
}

// AccountLine is a posted line joined with its entry header
type AccountLine struct {
	EntryID      uuid.UUID
	EntryNumber  string
	EntryDate    time.Time
	Status       JournalEntryStatus
	LineNo       int
	Debit        decimal.Decimal
	Credit       decimal.Decimal
	AppliedDelta decimal.Decimal
	Description  string
}

// JournalEntryRepository persists journal entries with their lines
type JournalEntryRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*JournalEntry, error)
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*JournalEntry, error)
	FindAll(ctx context.Context, tenantID uuid.UUID, filter JournalEntryFilter) ([]*JournalEntry, int64, error)
	Create(ctx context.Context, entry *JournalEntry) error
	// SaveWithLock updates the header and lines, checking the version
	SaveWithLock(ctx context.Context, entry *JournalEntry) error
	CountLinesForAccount(ctx context.Context, tenantID, accountID uuid.UUID) (int64, error)
	// FindLinesForAccount lists lines of posted and voided entries touching the account
	FindLinesForAccount(ctx context.Context, tenantID, accountID uuid.UUID) ([]AccountLine, error)
	// NetAppliedByAccount sums applied deltas of currently posted entries per account
	NetAppliedByAccount(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error)
}

// InvoiceFilter narrows invoice listings.
// Statuses match the status effective at AsOf, so a stored sent invoice past
// its due date matches overdue.
type InvoiceFilter struct {
	ClientID *uuid.UUID
	Statuses []InvoiceStatus
	AsOf     time.Time
	DueAfter *time.Time
	// DueBefore selects invoices due strictly before the date
	DueBefore *time.Time
	Page      int
	PageSize  int
}

// InvoiceRepository persists invoices with their line items
type InvoiceRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*Invoice, error)
	// FindByIDsForUpdate locks the invoices in ascending id order
	FindByIDsForUpdate(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*Invoice, error)
	FindAll(ctx context.Context, tenantID uuid.UUID, filter InvoiceFilter) ([]*Invoice, int64, error)
	Create(ctx context.Context, invoice *Invoice) error
	SaveWithLock(ctx context.Context, invoice *Invoice) error
}

// PaymentRepository persists payments with their applications
type PaymentRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Payment, error)
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*Payment, error)
	FindApplicationsByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]PaymentApplication, error)
	Create(ctx context.Context, payment *Payment) error
	// SaveWithLock updates the payment and upserts its applications
	SaveWithLock(ctx context.Context, payment *Payment) error
}

// ExpenseFilter narrows expense listings
type ExpenseFilter struct {
	ApprovalStatus *ExpenseApprovalStatus
	PaymentStatus  *ExpensePaymentStatus
	CategoryID     *uuid.UUID
	ClientID       *uuid.UUID
	Page           int
	PageSize       int
}

// ExpenseRepository persists expenses
type ExpenseRepository interface {
	FindByID(ctx context.Context, tenantID, id uuid.UUID) (*Expense, error)
	FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*Expense, error)
	FindAll(ctx context.Context, tenantID uuid.UUID, filter ExpenseFilter) ([]*Expense, int64, error)
	Create(ctx context.Context, expense *Expense) error
	SaveWithLock(ctx context.Context, expense *Expense) error
}

// SettingsRepository persists per-tenant ledger settings
type SettingsRepository interface {
	FindByTenant(ctx context.Context, tenantID uuid.UUID) (*TenantSettings, error)
	// Save inserts or replaces the settings, checking the version on update
	Save(ctx context.Context, settings *TenantSettings) error
}
