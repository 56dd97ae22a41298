//go:build integration

package persistence

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	appledger "github.com/lexledger/backend/internal/application/ledger"
	"github.com/lexledger/backend/internal/domain/ledger"
	"github.com/lexledger/backend/internal/domain/shared"
	"github.com/lexledger/backend/internal/infrastructure/migration"
)

// newPostgresDB starts a throwaway PostgreSQL, applies the embedded
// migrations and returns a gorm connection to it
func newPostgresDB(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("ledger_test"),
		tcpostgres.WithUsername("postgres"),
		tcpostgres.WithPassword("postgres"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err, "failed to start PostgreSQL container")
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, err := Open(postgres.Open(dsn), zap.NewNop(), "silent", 0)
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(20)
	t.Cleanup(func() { _ = sqlDB.Close() })

	// the migrator closes the handle it is given, so it gets its own pool
	migrateDB, err := Open(postgres.Open(dsn), zap.NewNop(), "silent", 0)
	require.NoError(t, err)
	migrateSQL, err := migrateDB.DB()
	require.NoError(t, err)
	m, err := migration.New(migrateSQL, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up())

	status, err := m.Status()
	require.NoError(t, err)
	require.True(t, status.UpToDate())
	require.NoError(t, m.Close())

	return db
}

func TestPostgres_MigrationsRoundTrip(t *testing.T) {
	db := newPostgresDB(t)

	var tables []string
	require.NoError(t, db.Raw(`SELECT tablename FROM pg_tables WHERE schemaname = 'public' AND tablename LIKE 'ledger_%'`).
		Scan(&tables).Error)
	assert.Contains(t, tables, "ledger_journal_entries")
	assert.Contains(t, tables, "ledger_payment_applications")
	assert.Contains(t, tables, migration.MigrationsTable)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	// a second Up against a migrated schema is a no-op
	m, err := migration.New(sqlDB, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, m.Up())
	version, dirty, err := m.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)
	assert.False(t, dirty)
}

func TestPostgres_CounterStoreConcurrentCallers(t *testing.T) {
	db := newPostgresDB(t)
	store := NewGormCounterStore(db)
	tenantID := uuid.New()

	const callers = 25
	values := make([]int64, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			v, err := store.Increment(context.Background(), tenantID, ledger.CounterKindInvoice)
			assert.NoError(t, err)
			values[i] = v
		}(i)
	}
	wg.Wait()

	sort.Slice(values, func(i, j int) bool { return values[i] < values[j] })
	for i, v := range values {
		assert.Equal(t, int64(i+1), v, "each caller receives a distinct value")
	}

	other, err := store.Increment(context.Background(), tenantID, ledger.CounterKindPayment)
	require.NoError(t, err)
	assert.Equal(t, int64(1), other, "kinds count independently")
}

func TestPostgres_ConcurrentApplicationsNeverOverpay(t *testing.T) {
	db := newPostgresDB(t)
	svc := appledger.NewServices(appledger.Dependencies{
		Scope:    NewGormTransactionScope(db, WithLockTimeout(5*time.Second)),
		Accounts: NewGormAccountRepository(db),
		Entries:  NewGormJournalEntryRepository(db),
		Invoices: NewGormInvoiceRepository(db),
		Payments: NewGormPaymentRepository(db),
		Expenses: NewGormExpenseRepository(db),
		Settings: NewGormSettingsRepository(db),
		Counters: NewGormCounterStore(db),
		Defaults: appledger.DefaultDefaults(),
		Logger:   zap.NewNop(),
	})
	ctx := context.Background()
	tenantID := uuid.New()
	clientID := uuid.New()

	roles := make(map[string]uuid.UUID)
	for _, a := range []struct{ code, kind, role string }{
		{"1000", "asset", "cash"},
		{"1100", "asset", "accounts_receivable"},
		{"4000", "revenue", "revenue"},
	} {
		created, err := svc.Accounts.CreateAccount(ctx, appledger.CreateAccountInput{
			TenantID: tenantID, Code: a.code, Name: "Account " + a.code, Type: a.kind,
		})
		require.NoError(t, err)
		roles[a.role] = created.ID
	}
	_, err := svc.Settings.Configure(ctx, appledger.ConfigureSettingsInput{TenantID: tenantID, RoleAccounts: roles})
	require.NoError(t, err)

	invoice, err := svc.Invoices.Create(ctx, appledger.CreateInvoiceInput{
		TenantID: tenantID,
		ClientID: clientID,
		Items: []appledger.InvoiceItemInput{
			{Description: "Retainer", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(500)},
		},
	})
	require.NoError(t, err)
	_, err = svc.Invoices.Send(ctx, appledger.SendInvoiceInput{TenantID: tenantID, InvoiceID: invoice.ID})
	require.NoError(t, err)

	const payers = 8
	payments := make([]uuid.UUID, payers)
	for i := range payments {
		p, err := svc.Payments.RecordPayment(ctx, appledger.RecordPaymentInput{
			TenantID: tenantID, ClientID: clientID, Amount: decimal.NewFromInt(100), Method: "check",
		})
		require.NoError(t, err)
		payments[i] = p.ID
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for _, paymentID := range payments {
		wg.Add(1)
		go func(paymentID uuid.UUID) {
			defer wg.Done()
			_, err := svc.Payments.ApplyToInvoices(ctx, appledger.ApplyPaymentInput{
				TenantID:     tenantID,
				PaymentID:    paymentID,
				Applications: []appledger.ApplicationInput{{InvoiceID: invoice.ID, Amount: decimal.NewFromInt(100)}},
			})
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.True(t,
				errors.Is(err, ledger.ErrExceedsBalance) || errors.Is(err, shared.ErrConcurrencyConflict),
				"unexpected error: %v", err)
		}(paymentID)
	}
	wg.Wait()

	assert.LessOrEqual(t, succeeded, 5)
	final, err := svc.Invoices.Get(ctx, tenantID, invoice.ID)
	require.NoError(t, err)
	assert.True(t, final.AmountPaid.Equal(decimal.NewFromInt(int64(100*succeeded))), final.AmountPaid.String())
	assert.False(t, final.BalanceDue.IsNegative())

	report, err := svc.Journal.VerifyAccountBalances(ctx, tenantID)
	require.NoError(t, err)
	assert.True(t, report.Consistent, "drifts: %+v", report.Drifts)

	trial, err := svc.Journal.TrialBalance(ctx, tenantID)
	require.NoError(t, err)
	assert.True(t, trial.Balanced)
}

func TestPostgres_JournalTextAtColumnLimit(t *testing.T) {
	db := newPostgresDB(t)
	svc := appledger.NewServices(appledger.Dependencies{
		Scope:    NewGormTransactionScope(db),
		Accounts: NewGormAccountRepository(db),
		Entries:  NewGormJournalEntryRepository(db),
		Invoices: NewGormInvoiceRepository(db),
		Payments: NewGormPaymentRepository(db),
		Expenses: NewGormExpenseRepository(db),
		Settings: NewGormSettingsRepository(db),
		Counters: NewGormCounterStore(db),
		Defaults: appledger.DefaultDefaults(),
		Logger:   zap.NewNop(),
	})
	ctx := context.Background()
	tenantID := uuid.New()

	roles := make(map[string]uuid.UUID)
	for _, a := range []struct{ code, kind, role string }{
		{"1000", "asset", "cash"},
		{"1100", "asset", "accounts_receivable"},
		{"2000", "liability", "accounts_payable"},
		{"2100", "liability", "tax_payable"},
		{"4000", "revenue", "revenue"},
		{"5000", "expense", "expense"},
		{"5100", "expense", "tax_expense"},
	} {
		created, err := svc.Accounts.CreateAccount(ctx, appledger.CreateAccountInput{
			TenantID: tenantID, Code: a.code, Name: "Account " + a.code, Type: a.kind,
		})
		require.NoError(t, err)
		roles[a.role] = created.ID
	}
	_, err := svc.Settings.Configure(ctx, appledger.ConfigureSettingsInput{TenantID: tenantID, RoleAccounts: roles})
	require.NoError(t, err)

	t.Run("draft description of exactly the limit is stored", func(t *testing.T) {
		description := strings.Repeat("é", ledger.MaxJournalTextLength)
		draft, err := svc.Journal.CreateDraft(ctx, appledger.CreateJournalEntryInput{
			TenantID:    tenantID,
			EntryDate:   time.Now().UTC(),
			Description: description,
			Lines: []appledger.JournalLineInput{
				{AccountID: roles["cash"], Debit: decimal.NewFromInt(10), Description: description},
				{AccountID: roles["revenue"], Credit: decimal.NewFromInt(10)},
			},
		})
		require.NoError(t, err)

		stored, err := svc.Journal.GetEntry(ctx, tenantID, draft.ID)
		require.NoError(t, err)
		assert.Equal(t, description, stored.Description)
	})

	t.Run("over-long description is rejected before the database", func(t *testing.T) {
		_, err := svc.Journal.CreateDraft(ctx, appledger.CreateJournalEntryInput{
			TenantID:    tenantID,
			EntryDate:   time.Now().UTC(),
			Description: strings.Repeat("a", ledger.MaxJournalTextLength+1),
			Lines: []appledger.JournalLineInput{
				{AccountID: roles["cash"], Debit: decimal.NewFromInt(10)},
				{AccountID: roles["revenue"], Credit: decimal.NewFromInt(10)},
			},
		})
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("column overflow from the driver becomes invalid input", func(t *testing.T) {
		entry, err := ledger.NewJournalEntry(tenantID, "JE-99999", time.Now().UTC(), "", ledger.ManualSource(), []ledger.JournalLine{
			ledger.DebitLine(roles["cash"], decimal.NewFromInt(1), ""),
			ledger.CreditLine(roles["revenue"], decimal.NewFromInt(1), ""),
		})
		require.NoError(t, err)
		entry.Description = strings.Repeat("z", ledger.MaxJournalTextLength+1)

		err = NewGormJournalEntryRepository(db).Create(ctx, entry)
		assert.ErrorIs(t, err, shared.ErrInvalidInput)
	})

	t.Run("composed expense and cancellation text fits", func(t *testing.T) {
		expense, err := svc.Expenses.Create(ctx, appledger.CreateExpenseInput{
			TenantID:    tenantID,
			CategoryID:  uuid.New(),
			Description: strings.Repeat("d", 495),
			Amount:      decimal.NewFromInt(100),
			TaxRate:     decimal.NewFromInt(10),
		})
		require.NoError(t, err)
		_, err = svc.Expenses.Approve(ctx, appledger.ApproveExpenseInput{TenantID: tenantID, ExpenseID: expense.ID})
		require.NoError(t, err)

		invoice, err := svc.Invoices.Create(ctx, appledger.CreateInvoiceInput{
			TenantID: tenantID,
			ClientID: uuid.New(),
			Items:    []appledger.InvoiceItemInput{{Description: "Retainer", Quantity: decimal.NewFromInt(1), UnitPrice: decimal.NewFromInt(300)}},
		})
		require.NoError(t, err)
		_, err = svc.Invoices.Send(ctx, appledger.SendInvoiceInput{TenantID: tenantID, InvoiceID: invoice.ID})
		require.NoError(t, err)
		cancelled, err := svc.Invoices.Cancel(ctx, appledger.CancelInvoiceInput{
			TenantID: tenantID, InvoiceID: invoice.ID, Reason: strings.Repeat("r", 490),
		})
		require.NoError(t, err)
		assert.Equal(t, "cancelled", cancelled.Status)

		report, err := svc.Journal.VerifyAccountBalances(ctx, tenantID)
		require.NoError(t, err)
		assert.True(t, report.Consistent, "drifts: %+v", report.Drifts)
	})
}
