package ledger

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lexledger/backend/internal/domain/ledger"
	"github.com/lexledger/backend/internal/domain/shared"
)

func newInvoiceService(f *ledgerFixture) *InvoiceService {
	svc := NewInvoiceService(f.scope, f.invoices, f.journal, f.numbers, DefaultDefaults(), nil)
	svc.SetClock(fixedClock)
	return svc
}

func newDraftInvoice(t *testing.T, f *ledgerFixture, discount ledger.Discount, taxRate string) *ledger.Invoice {
	t.Helper()
	item1, err := ledger.NewInvoiceLineItem("Consultation", dec("2"), dec("100"))
	require.NoError(t, err)
	item2, err := ledger.NewInvoiceLineItem("Filing", dec("1"), dec("50"))
	require.NoError(t, err)
	invoice, err := ledger.NewInvoice(f.tenantID, uuid.New(), "INV-00001", fixedNow, fixedNow.AddDate(0, 0, 30),
		[]ledger.InvoiceLineItem{item1, item2}, discount, dec(taxRate), "USD")
	require.NoError(t, err)
	invoice.ClearDomainEvents()
	invoice.MarkPersisted()
	return invoice
}

func TestInvoiceService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("computes totals and defaults the due date from payment terms", func(t *testing.T) {
		f := newLedgerFixture(t)
		svc := newInvoiceService(f)
		f.expectSettings()
		f.numbers.On("NextDocumentNumber", mock.Anything, f.tenantID, ledger.CounterKindInvoice).Return("INV-00042", nil)
		var stored *ledger.Invoice
		f.invoices.On("Create", mock.Anything, mock.AnythingOfType("*ledger.Invoice")).
			Run(func(args mock.Arguments) { stored = args.Get(1).(*ledger.Invoice) }).
			Return(nil)

		resp, err := svc.Create(ctx, CreateInvoiceInput{
			TenantID: f.tenantID,
			ClientID: uuid.New(),
			Items: []InvoiceItemInput{
				{Description: "Consultation", Quantity: dec("2"), UnitPrice: dec("100")},
				{Description: "Filing", Quantity: dec("1"), UnitPrice: dec("50")},
			},
			TaxRate: dec("15"),
		})

		require.NoError(t, err)
		require.NotNil(t, stored)
		assert.Equal(t, "INV-00042", resp.InvoiceNumber)
		assert.Equal(t, "draft", resp.Status)
		assertAmount(t, "250", resp.Subtotal)
		assertAmount(t, "37.5", resp.TaxAmount)
		assertAmount(t, "287.5", resp.TotalAmount)
		assertAmount(t, "287.5", resp.BalanceDue)
		assert.Equal(t, fixedNow.AddDate(0, 0, 30), resp.DueDate)
		assert.Equal(t, "USD", resp.Currency)
	})

	t.Run("percent discount applies before tax", func(t *testing.T) {
		f := newLedgerFixture(t)
		svc := newInvoiceService(f)
		f.expectSettings()
		f.numbers.On("NextDocumentNumber", mock.Anything, f.tenantID, ledger.CounterKindInvoice).Return("INV-00043", nil)
		f.invoices.On("Create", mock.Anything, mock.Anything).Return(nil)

		resp, err := svc.Create(ctx, CreateInvoiceInput{
			TenantID: f.tenantID,
			ClientID: uuid.New(),
			Items: []InvoiceItemInput{
				{Description: "Consultation", Quantity: dec("2"), UnitPrice: dec("100")},
				{Description: "Filing", Quantity: dec("1"), UnitPrice: dec("50")},
			},
			Discount: DiscountInput{Kind: "percent", Value: dec("10")},
			TaxRate:  dec("15"),
		})

		require.NoError(t, err)
		assertAmount(t, "25", resp.DiscountAmount)
		assertAmount(t, "33.75", resp.TaxAmount)
		assertAmount(t, "258.75", resp.TotalAmount)
	})

	t.Run("unconfigured tenant is rejected", func(t *testing.T) {
		f := newLedgerFixture(t)
		svc := newInvoiceService(f)
		f.settingsRepo.On("FindByTenant", mock.Anything, f.tenantID).Return(nil, nil)
		f.numbers.On("NextDocumentNumber", mock.Anything, f.tenantID, ledger.CounterKindInvoice).Return("INV-00044", nil)

		_, err := svc.Create(ctx, CreateInvoiceInput{
			TenantID: f.tenantID,
			ClientID: uuid.New(),
			Items:    []InvoiceItemInput{{Description: "Work", Quantity: dec("1"), UnitPrice: dec("10")}},
		})

		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
		f.invoices.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("revenue override must be a revenue account", func(t *testing.T) {
		f := newLedgerFixture(t)
		svc := newInvoiceService(f)
		f.numbers.On("NextDocumentNumber", mock.Anything, f.tenantID, ledger.CounterKindInvoice).Return("INV-00045", nil)
		f.expectSettings()
		f.accounts.On("FindByID", mock.Anything, f.tenantID, f.expense.ID).Return(f.expense, nil)

		_, err := svc.Create(ctx, CreateInvoiceInput{
			TenantID:         f.tenantID,
			ClientID:         uuid.New(),
			Items:            []InvoiceItemInput{{Description: "Work", Quantity: dec("1"), UnitPrice: dec("10")}},
			RevenueAccountID: &f.expense.ID,
		})

		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
		f.invoices.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("zero quantity is an invalid amount", func(t *testing.T) {
		f := newLedgerFixture(t)
		svc := newInvoiceService(f)

		_, err := svc.Create(ctx, CreateInvoiceInput{
			TenantID: f.tenantID,
			ClientID: uuid.New(),
			Items:    []InvoiceItemInput{{Description: "Work", Quantity: decimal.Zero, UnitPrice: dec("10")}},
		})

		require.Error(t, err)
		assert.True(t, errors.Is(err, ledger.ErrInvalidAmount))
		f.numbers.AssertNotCalled(t, "NextDocumentNumber", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("tax rate above 100 is rejected", func(t *testing.T) {
		f := newLedgerFixture(t)
		svc := newInvoiceService(f)

		_, err := svc.Create(ctx, CreateInvoiceInput{
			TenantID: f.tenantID,
			ClientID: uuid.New(),
			Items:    []InvoiceItemInput{{Description: "Work", Quantity: dec("1"), UnitPrice: dec("10")}},
			TaxRate:  dec("101"),
		})

		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	})
}

func TestInvoiceService_Send(t *testing.T) {
	ctx := context.Background()

	t.Run("posts receivable, revenue and tax", func(t *testing.T) {
		f := newLedgerFixture(t)
		svc := newInvoiceService(f)
		svc.SetEventPublisher(f.publisher)
		invoice := newDraftInvoice(t, f, ledger.NoDiscount(), "15")

		f.numbers.On("NextDocumentNumber", mock.Anything, f.tenantID, ledger.CounterKindJournalEntry).Return("JE-00010", nil)
		f.invoices.On("FindByIDForUpdate", mock.Anything, f.tenantID, invoice.ID).Return(invoice, nil)
		f.expectSettings()
		f.expectLock()
		var entry *ledger.JournalEntry
		f.expectPostedEntry(&entry)
		f.invoices.On("SaveWithLock", mock.Anything, invoice).Return(nil)
		var published []shared.DomainEvent
		f.publisher.On("Publish", mock.Anything, mock.Anything).
			Run(func(args mock.Arguments) { published = args.Get(1).([]shared.DomainEvent) }).
			Return(nil)

		resp, err := svc.Send(ctx, SendInvoiceInput{TenantID: f.tenantID, InvoiceID: invoice.ID})

		require.NoError(t, err)
		assert.Equal(t, "sent", resp.Status)
		require.NotNil(t, entry)
		assert.True(t, entry.IsPosted())
		assert.Equal(t, ledger.SourceKindInvoice, entry.Source.Kind())
		assert.Equal(t, "JE-00010", entry.EntryNumber)
		require.Len(t, entry.Lines, 3)
		assert.Equal(t, invoice.ClientID, *entry.Lines[0].Dimensions.ClientID)
		assert.Equal(t, entry.ID, *resp.JournalEntryID)

		assertAmount(t, "287.5", f.receivable.CurrentBalance)
		assertAmount(t, "250", f.revenue.CurrentBalance)
		assertAmount(t, "37.5", f.taxPayable.CurrentBalance)

		types := make([]string, 0, len(published))
		for _, e := range published {
			types = append(types, e.EventType())
		}
		assert.Contains(t, types, ledger.EventTypeJournalEntryPosted)
		assert.Contains(t, types, ledger.EventTypeInvoiceSent)
	})

	t.Run("no tax line without tax", func(t *testing.T) {
		f := newLedgerFixture(t)
		svc := newInvoiceService(f)
		invoice := newDraftInvoice(t, f, ledger.Discount{Kind: ledger.DiscountFixed, Value: dec("50")}, "0")

		f.numbers.On("NextDocumentNumber", mock.Anything, f.tenantID, ledger.CounterKindJournalEntry).Return("JE-00011", nil)
		f.invoices.On("FindByIDForUpdate", mock.Anything, f.tenantID, invoice.ID).Return(invoice, nil)
		f.expectSettings()
		f.expectLock()
		var entry *ledger.JournalEntry
		f.expectPostedEntry(&entry)
		f.invoices.On("SaveWithLock", mock.Anything, invoice).Return(nil)

		_, err := svc.Send(ctx, SendInvoiceInput{TenantID: f.tenantID, InvoiceID: invoice.ID})

		require.NoError(t, err)
		require.Len(t, entry.Lines, 2)
		assertAmount(t, "200", f.receivable.CurrentBalance)
		assertAmount(t, "200", f.revenue.CurrentBalance)
		assert.True(t, f.taxPayable.CurrentBalance.IsZero())
	})

	t.Run("already sent invoice is rejected", func(t *testing.T) {
		f := newLedgerFixture(t)
		svc := newInvoiceService(f)
		invoice := newSentInvoice(t, f, uuid.New(), "100", fixedNow.AddDate(0, 0, 10))

		f.numbers.On("NextDocumentNumber", mock.Anything, f.tenantID, ledger.CounterKindJournalEntry).Return("JE-00012", nil)
		f.invoices.On("FindByIDForUpdate", mock.Anything, f.tenantID, invoice.ID).Return(invoice, nil)

		_, err := svc.Send(ctx, SendInvoiceInput{TenantID: f.tenantID, InvoiceID: invoice.ID})

		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrInvalidState))
		f.entries.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("missing role mapping rolls back", func(t *testing.T) {
		f := newLedgerFixture(t)
		svc := newInvoiceService(f)
		invoice := newDraftInvoice(t, f, ledger.NoDiscount(), "15")
		delete(f.settings.RoleAccounts, ledger.RoleTaxPayable)

		f.numbers.On("NextDocumentNumber", mock.Anything, f.tenantID, ledger.CounterKindJournalEntry).Return("JE-00013", nil)
		f.invoices.On("FindByIDForUpdate", mock.Anything, f.tenantID, invoice.ID).Return(invoice, nil)
		f.expectSettings()

		_, err := svc.Send(ctx, SendInvoiceInput{TenantID: f.tenantID, InvoiceID: invoice.ID})

		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
		assert.Equal(t, ledger.InvoiceStatusDraft, invoice.Status)
		f.invoices.AssertNotCalled(t, "SaveWithLock", mock.Anything, mock.Anything)
	})

	t.Run("unknown invoice", func(t *testing.T) {
		f := newLedgerFixture(t)
		svc := newInvoiceService(f)
		id := uuid.New()
		f.numbers.On("NextDocumentNumber", mock.Anything, f.tenantID, ledger.CounterKindJournalEntry).Return("JE-00014", nil)
		f.invoices.On("FindByIDForUpdate", mock.Anything, f.tenantID, id).Return(nil, nil)

		_, err := svc.Send(ctx, SendInvoiceInput{TenantID: f.tenantID, InvoiceID: id})

		require.Error(t, err)
		assert.True(t, errors.Is(err, ledger.ErrInvoiceNotFound))
		assert.True(t, errors.Is(err, shared.ErrNotFound))
	})
}

// sendWithEntry posts the invoice's revenue entry, marks the invoice sent and
// stubs the repositories a cancellation touches
func sendWithEntry(t *testing.T, f *ledgerFixture, invoice *ledger.Invoice) *ledger.JournalEntry {
	t.Helper()
	entry, err := ledger.NewJournalEntry(f.tenantID, "JE-00001", fixedNow, "Invoice", ledger.InvoiceSource(invoice.ID), []ledger.JournalLine{
		ledger.DebitLine(f.receivable.ID, invoice.TotalAmount, ""),
		ledger.CreditLine(f.revenue.ID, invoice.NetRevenue(), ""),
		ledger.CreditLine(f.taxPayable.ID, invoice.TaxAmount, ""),
	})
	require.NoError(t, err)
	require.NoError(t, entry.Post(accountMapOf(f.allAccounts()...), uuid.Nil, fixedNow))
	entry.MarkPersisted()
	require.NoError(t, invoice.Send(entry.ID, uuid.Nil, fixedNow))
	invoice.MarkPersisted()

	f.invoices.On("FindByIDForUpdate", mock.Anything, f.tenantID, invoice.ID).Return(invoice, nil)
	f.entries.On("FindByIDForUpdate", mock.Anything, f.tenantID, entry.ID).Return(entry, nil)
	f.expectLock()
	f.accounts.On("UpdateBalances", mock.Anything, mock.Anything).Return(nil)
	f.entries.On("SaveWithLock", mock.Anything, entry).Return(nil)
	f.invoices.On("SaveWithLock", mock.Anything, invoice).Return(nil)
	return entry
}

func TestInvoiceService_Cancel(t *testing.T) {
	ctx := context.Background()

	t.Run("voids the revenue entry of a sent invoice", func(t *testing.T) {
		f := newLedgerFixture(t)
		svc := newInvoiceService(f)
		invoice := newDraftInvoice(t, f, ledger.NoDiscount(), "15")
		entry := sendWithEntry(t, f, invoice)

		resp, err := svc.Cancel(ctx, CancelInvoiceInput{TenantID: f.tenantID, InvoiceID: invoice.ID, Reason: "Issued in error"})

		require.NoError(t, err)
		assert.Equal(t, "cancelled", resp.Status)
		assert.True(t, entry.IsVoided())
		assert.True(t, f.receivable.CurrentBalance.IsZero())
		assert.True(t, f.revenue.CurrentBalance.IsZero())
		assert.True(t, f.taxPayable.CurrentBalance.IsZero())
	})

	t.Run("longest reason still voids the entry", func(t *testing.T) {
		f := newLedgerFixture(t)
		svc := newInvoiceService(f)
		invoice := newDraftInvoice(t, f, ledger.NoDiscount(), "15")
		entry := sendWithEntry(t, f, invoice)
		reason := strings.Repeat("r", 490)

		resp, err := svc.Cancel(ctx, CancelInvoiceInput{TenantID: f.tenantID, InvoiceID: invoice.ID, Reason: reason})

		require.NoError(t, err)
		assert.Equal(t, "cancelled", resp.Status)
		assert.Equal(t, reason, resp.CancelReason)
		assert.True(t, entry.IsVoided())
		assert.Equal(t, ledger.MaxJournalTextLength, utf8.RuneCountInString(entry.VoidReason))
		assert.True(t, strings.HasPrefix(entry.VoidReason, "Invoice INV-00001 cancelled: rrr"))
		assert.True(t, f.receivable.CurrentBalance.IsZero())
	})

	t.Run("draft invoice cancels without journal activity", func(t *testing.T) {
		f := newLedgerFixture(t)
		svc := newInvoiceService(f)
		invoice := newDraftInvoice(t, f, ledger.NoDiscount(), "0")
		f.invoices.On("FindByIDForUpdate", mock.Anything, f.tenantID, invoice.ID).Return(invoice, nil)
		f.invoices.On("SaveWithLock", mock.Anything, invoice).Return(nil)

		resp, err := svc.Cancel(ctx, CancelInvoiceInput{TenantID: f.tenantID, InvoiceID: invoice.ID, Reason: "Duplicate"})

		require.NoError(t, err)
		assert.Equal(t, "cancelled", resp.Status)
		f.entries.AssertNotCalled(t, "FindByIDForUpdate", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("partially paid invoice cannot be cancelled", func(t *testing.T) {
		f := newLedgerFixture(t)
		svc := newInvoiceService(f)
		invoice := newSentInvoice(t, f, uuid.New(), "100", fixedNow.AddDate(0, 0, 10))
		require.NoError(t, invoice.RecordPayment(dec("10"), fixedNow))
		f.invoices.On("FindByIDForUpdate", mock.Anything, f.tenantID, invoice.ID).Return(invoice, nil)

		_, err := svc.Cancel(ctx, CancelInvoiceInput{TenantID: f.tenantID, InvoiceID: invoice.ID, Reason: "Changed mind"})

		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrInvalidState))
	})
}

func TestInvoiceService_RecordPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("partial then full payment", func(t *testing.T) {
		f := newLedgerFixture(t)
		svc := newInvoiceService(f)
		invoice := newSentInvoice(t, f, uuid.New(), "100", fixedNow.AddDate(0, 0, 10))
		f.invoices.On("FindByIDForUpdate", mock.Anything, f.tenantID, invoice.ID).Return(invoice, nil)
		f.invoices.On("SaveWithLock", mock.Anything, invoice).Return(nil)

		resp, err := svc.RecordPayment(ctx, RecordInvoicePaymentInput{TenantID: f.tenantID, InvoiceID: invoice.ID, Amount: dec("40")})
		require.NoError(t, err)
		assert.Equal(t, "partially_paid", resp.Status)
		assertAmount(t, "60", resp.BalanceDue)

		resp, err = svc.RecordPayment(ctx, RecordInvoicePaymentInput{TenantID: f.tenantID, InvoiceID: invoice.ID, Amount: dec("60")})
		require.NoError(t, err)
		assert.Equal(t, "paid", resp.Status)
		assertAmount(t, "0", resp.BalanceDue)
		f.entries.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
	})

	t.Run("overpayment is rejected", func(t *testing.T) {
		f := newLedgerFixture(t)
		svc := newInvoiceService(f)
		invoice := newSentInvoice(t, f, uuid.New(), "100", fixedNow.AddDate(0, 0, 10))
		f.invoices.On("FindByIDForUpdate", mock.Anything, f.tenantID, invoice.ID).Return(invoice, nil)

		_, err := svc.RecordPayment(ctx, RecordInvoicePaymentInput{TenantID: f.tenantID, InvoiceID: invoice.ID, Amount: dec("100.01")})

		require.Error(t, err)
		assert.True(t, errors.Is(err, ledger.ErrOverpayment))
		assert.True(t, invoice.AmountPaid.IsZero())
	})
}

func TestInvoiceService_List(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	svc := newInvoiceService(f)
	overdue := newSentInvoice(t, f, uuid.New(), "100", fixedNow.AddDate(0, 0, -5))

	f.invoices.On("FindAll", mock.Anything, f.tenantID, mock.MatchedBy(func(filter ledger.InvoiceFilter) bool {
		return filter.AsOf.Equal(fixedNow) &&
			len(filter.Statuses) == 1 && filter.Statuses[0] == ledger.InvoiceStatusOverdue
	})).Return([]*ledger.Invoice{overdue}, int64(1), nil)

	page, err := svc.ListOverdue(ctx, f.tenantID, 0, 0)

	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "overdue", page.Items[0].Status)
	assert.Equal(t, ledger.InvoiceStatusSent, overdue.Status)
}

func TestInvoiceService_Get(t *testing.T) {
	ctx := context.Background()
	f := newLedgerFixture(t)
	svc := newInvoiceService(f)
	id := uuid.New()
	f.invoices.On("FindByID", mock.Anything, f.tenantID, id).Return(nil, nil)

	_, err := svc.Get(ctx, f.tenantID, id)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ledger.ErrInvoiceNotFound))
}
