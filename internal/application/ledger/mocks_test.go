package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lexledger/backend/internal/domain/ledger"
	"github.com/lexledger/backend/internal/domain/shared"
)

// =============================================================================
// Mock repositories
// =============================================================================

type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*ledger.Account, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Account), args.Error(1)
}

func (m *MockAccountRepository) FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*ledger.Account, error) {
	args := m.Called(ctx, tenantID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Account), args.Error(1)
}

func (m *MockAccountRepository) FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*ledger.Account, error) {
	args := m.Called(ctx, tenantID, ids)
	if fn, ok := args.Get(0).(func(context.Context, uuid.UUID, []uuid.UUID) []*ledger.Account); ok {
		return fn(ctx, tenantID, ids), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Account), args.Error(1)
}

func (m *MockAccountRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]*ledger.Account, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Account), args.Error(1)
}

func (m *MockAccountRepository) LockByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*ledger.Account, error) {
	args := m.Called(ctx, tenantID, ids)
	if fn, ok := args.Get(0).(func(context.Context, uuid.UUID, []uuid.UUID) []*ledger.Account); ok {
		return fn(ctx, tenantID, ids), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Account), args.Error(1)
}

func (m *MockAccountRepository) ExistsByCode(ctx context.Context, tenantID uuid.UUID, code string) (bool, error) {
	args := m.Called(ctx, tenantID, code)
	return args.Bool(0), args.Error(1)
}

func (m *MockAccountRepository) Create(ctx context.Context, account *ledger.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountRepository) SaveWithLock(ctx context.Context, account *ledger.Account) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

func (m *MockAccountRepository) UpdateBalances(ctx context.Context, accounts []*ledger.Account) error {
	args := m.Called(ctx, accounts)
	return args.Error(0)
}

func (m *MockAccountRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	args := m.Called(ctx, tenantID, id)
	return args.Error(0)
}

type MockJournalEntryRepository struct {
	mock.Mock
}

func (m *MockJournalEntryRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*ledger.JournalEntry, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.JournalEntry), args.Error(1)
}

func (m *MockJournalEntryRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*ledger.JournalEntry, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.JournalEntry), args.Error(1)
}

func (m *MockJournalEntryRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter ledger.JournalEntryFilter) ([]*ledger.JournalEntry, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*ledger.JournalEntry), args.Get(1).(int64), args.Error(2)
}

func (m *MockJournalEntryRepository) Create(ctx context.Context, entry *ledger.JournalEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockJournalEntryRepository) SaveWithLock(ctx context.Context, entry *ledger.JournalEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockJournalEntryRepository) CountLinesForAccount(ctx context.Context, tenantID, accountID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID, accountID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockJournalEntryRepository) FindLinesForAccount(ctx context.Context, tenantID, accountID uuid.UUID) ([]ledger.AccountLine, error) {
	args := m.Called(ctx, tenantID, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.AccountLine), args.Error(1)
}

func (m *MockJournalEntryRepository) NetAppliedByAccount(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[uuid.UUID]decimal.Decimal), args.Error(1)
}

type MockInvoiceRepository struct {
	mock.Mock
}

func (m *MockInvoiceRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*ledger.Invoice, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*ledger.Invoice, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindByIDsForUpdate(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*ledger.Invoice, error) {
	args := m.Called(ctx, tenantID, ids)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*ledger.Invoice), args.Error(1)
}

func (m *MockInvoiceRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter ledger.InvoiceFilter) ([]*ledger.Invoice, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*ledger.Invoice), args.Get(1).(int64), args.Error(2)
}

func (m *MockInvoiceRepository) Create(ctx context.Context, invoice *ledger.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

func (m *MockInvoiceRepository) SaveWithLock(ctx context.Context, invoice *ledger.Invoice) error {
	args := m.Called(ctx, invoice)
	return args.Error(0)
}

type MockPaymentRepository struct {
	mock.Mock
}

func (m *MockPaymentRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*ledger.Payment, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*ledger.Payment, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Payment), args.Error(1)
}

func (m *MockPaymentRepository) FindApplicationsByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]ledger.PaymentApplication, error) {
	args := m.Called(ctx, tenantID, invoiceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]ledger.PaymentApplication), args.Error(1)
}

func (m *MockPaymentRepository) Create(ctx context.Context, payment *ledger.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

func (m *MockPaymentRepository) SaveWithLock(ctx context.Context, payment *ledger.Payment) error {
	args := m.Called(ctx, payment)
	return args.Error(0)
}

type MockExpenseRepository struct {
	mock.Mock
}

func (m *MockExpenseRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*ledger.Expense, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Expense), args.Error(1)
}

func (m *MockExpenseRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*ledger.Expense, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.Expense), args.Error(1)
}

func (m *MockExpenseRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter ledger.ExpenseFilter) ([]*ledger.Expense, int64, error) {
	args := m.Called(ctx, tenantID, filter)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*ledger.Expense), args.Get(1).(int64), args.Error(2)
}

func (m *MockExpenseRepository) Create(ctx context.Context, expense *ledger.Expense) error {
	args := m.Called(ctx, expense)
	return args.Error(0)
}

func (m *MockExpenseRepository) SaveWithLock(ctx context.Context, expense *ledger.Expense) error {
	args := m.Called(ctx, expense)
	return args.Error(0)
}

type MockSettingsRepository struct {
	mock.Mock
}

func (m *MockSettingsRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*ledger.TenantSettings, error) {
	args := m.Called(ctx, tenantID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*ledger.TenantSettings), args.Error(1)
}

func (m *MockSettingsRepository) Save(ctx context.Context, settings *ledger.TenantSettings) error {
	args := m.Called(ctx, settings)
	return args.Error(0)
}

type MockNumberSource struct {
	mock.Mock
}

func (m *MockNumberSource) NextDocumentNumber(ctx context.Context, tenantID uuid.UUID, kind ledger.CounterKind) (string, error) {
	args := m.Called(ctx, tenantID, kind)
	return args.String(0), args.Error(1)
}

type MockCounterStore struct {
	mock.Mock
}

func (m *MockCounterStore) Increment(ctx context.Context, tenantID uuid.UUID, kind ledger.CounterKind) (int64, error) {
	args := m.Called(ctx, tenantID, kind)
	return args.Get(0).(int64), args.Error(1)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) Publish(ctx context.Context, events ...shared.DomainEvent) error {
	args := m.Called(ctx, events)
	return args.Error(0)
}

// =============================================================================
// Fixtures
// =============================================================================

var fixedNow = time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedNow }

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertAmount(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(expected).Equal(actual), "expected %s, got %s", expected, actual.String())
}

// ledgerFixture is a configured tenant with one account per role
type ledgerFixture struct {
	tenantID     uuid.UUID
	cash         *ledger.Account
	receivable   *ledger.Account
	payable      *ledger.Account
	revenue      *ledger.Account
	taxPayable   *ledger.Account
	taxExpense   *ledger.Account
	expense      *ledger.Account
	travel       *ledger.Account
	travelCatID  uuid.UUID
	settings     *ledger.TenantSettings
	accounts     *MockAccountRepository
	entries      *MockJournalEntryRepository
	invoices     *MockInvoiceRepository
	payments     *MockPaymentRepository
	expenses     *MockExpenseRepository
	settingsRepo *MockSettingsRepository
	numbers      *MockNumberSource
	publisher    *MockEventPublisher
	scope        *NoOpTransactionScope
	journal      *JournalService
}

func newLedgerFixture(t *testing.T) *ledgerFixture {
	t.Helper()
	tenantID := uuid.New()
	newAccount := func(code string, accountType ledger.AccountType) *ledger.Account {
		account, err := ledger.NewAccount(tenantID, code, "Account "+code, accountType, "USD")
		require.NoError(t, err)
		account.ClearDomainEvents()
		account.MarkPersisted()
		return account
	}

	f := &ledgerFixture{
		tenantID:     tenantID,
		cash:         newAccount("1000", ledger.AccountTypeAsset),
		receivable:   newAccount("1200", ledger.AccountTypeAsset),
		payable:      newAccount("2000", ledger.AccountTypeLiability),
		taxPayable:   newAccount("2100", ledger.AccountTypeLiability),
		revenue:      newAccount("4000", ledger.AccountTypeRevenue),
		expense:      newAccount("5000", ledger.AccountTypeExpense),
		taxExpense:   newAccount("5100", ledger.AccountTypeExpense),
		travel:       newAccount("5200", ledger.AccountTypeExpense),
		travelCatID:  uuid.New(),
		accounts:     new(MockAccountRepository),
		entries:      new(MockJournalEntryRepository),
		invoices:     new(MockInvoiceRepository),
		payments:     new(MockPaymentRepository),
		expenses:     new(MockExpenseRepository),
		settingsRepo: new(MockSettingsRepository),
		numbers:      new(MockNumberSource),
		publisher:    new(MockEventPublisher),
	}

	settings, err := ledger.NewTenantSettings(tenantID, "USD")
	require.NoError(t, err)
	require.NoError(t, settings.MapRole(ledger.RoleCash, f.cash))
	require.NoError(t, settings.MapRole(ledger.RoleAccountsReceivable, f.receivable))
	require.NoError(t, settings.MapRole(ledger.RoleAccountsPayable, f.payable))
	require.NoError(t, settings.MapRole(ledger.RoleRevenue, f.revenue))
	require.NoError(t, settings.MapRole(ledger.RoleTaxPayable, f.taxPayable))
	require.NoError(t, settings.MapRole(ledger.RoleTaxExpense, f.taxExpense))
	require.NoError(t, settings.MapRole(ledger.RoleExpense, f.expense))
	require.NoError(t, settings.MapExpenseCategory(f.travelCatID, f.travel))
	f.settings = settings

	f.scope = NewNoOpTransactionScope(NoOpRepositories{
		Accounts:       f.accounts,
		JournalEntries: f.entries,
		Invoices:       f.invoices,
		Payments:       f.payments,
		Expenses:       f.expenses,
		Settings:       f.settingsRepo,
	})
	f.journal = NewJournalService(f.scope, f.accounts, f.entries, f.numbers, nil)
	f.journal.SetClock(fixedClock)
	return f
}

func (f *ledgerFixture) allAccounts() []*ledger.Account {
	return []*ledger.Account{f.cash, f.receivable, f.payable, f.taxPayable, f.revenue, f.expense, f.taxExpense, f.travel}
}

// expectSettings makes FindByTenant return the fixture's settings
func (f *ledgerFixture) expectSettings() {
	f.settingsRepo.On("FindByTenant", mock.Anything, f.tenantID).Return(f.settings, nil)
}

// expectLock makes LockByIDs return the accounts whose ids are requested
func (f *ledgerFixture) expectLock() {
	f.accounts.On("LockByIDs", mock.Anything, f.tenantID, mock.Anything).
		Return(func(_ context.Context, _ uuid.UUID, ids []uuid.UUID) []*ledger.Account {
			return f.pick(ids)
		}, nil)
}

// expectFindByIDs makes FindByIDs return the accounts whose ids are requested
func (f *ledgerFixture) expectFindByIDs() {
	f.accounts.On("FindByIDs", mock.Anything, f.tenantID, mock.Anything).
		Return(func(_ context.Context, _ uuid.UUID, ids []uuid.UUID) []*ledger.Account {
			return f.pick(ids)
		}, nil)
}

func (f *ledgerFixture) pick(ids []uuid.UUID) []*ledger.Account {
	byID := make(map[uuid.UUID]*ledger.Account)
	for _, a := range f.allAccounts() {
		byID[a.ID] = a
	}
	result := make([]*ledger.Account, 0, len(ids))
	for _, id := range ids {
		if a, ok := byID[id]; ok {
			result = append(result, a)
		}
	}
	return result
}

// expectPostedEntry records the entry passed to JournalEntries().Create
func (f *ledgerFixture) expectPostedEntry(captured **ledger.JournalEntry) {
	f.accounts.On("UpdateBalances", mock.Anything, mock.Anything).Return(nil)
	f.entries.On("Create", mock.Anything, mock.AnythingOfType("*ledger.JournalEntry")).
		Run(func(args mock.Arguments) {
			if captured != nil {
				*captured = args.Get(1).(*ledger.JournalEntry)
			}
		}).Return(nil)
}

func newDraftEntry(t *testing.T, tenantID uuid.UUID, lines ...ledger.JournalLine) *ledger.JournalEntry {
	t.Helper()
	entry, err := ledger.NewJournalEntry(tenantID, "JE-00001", fixedNow, "Test entry", ledger.ManualSource(), lines)
	require.NoError(t, err)
	entry.MarkPersisted()
	return entry
}

func newSentInvoice(t *testing.T, f *ledgerFixture, clientID uuid.UUID, total string, due time.Time) *ledger.Invoice {
	t.Helper()
	item, err := ledger.NewInvoiceLineItem("Legal services", dec("1"), dec(total))
	require.NoError(t, err)
	invoice, err := ledger.NewInvoice(f.tenantID, clientID, "INV-"+total, due.AddDate(0, 0, -30), due,
		[]ledger.InvoiceLineItem{item}, ledger.NoDiscount(), decimal.Zero, "USD")
	require.NoError(t, err)
	require.NoError(t, invoice.Send(uuid.New(), uuid.Nil, due.AddDate(0, 0, -30)))
	invoice.ClearDomainEvents()
	invoice.MarkPersisted()
	return invoice
}
