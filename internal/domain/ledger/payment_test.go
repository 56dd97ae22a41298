package ledger

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexledger/backend/internal/domain/shared"
)

func createTestPayment(t *testing.T, tenantID, clientID uuid.UUID, amount string) *Payment {
	t.Helper()
	payment, err := NewPayment(tenantID, clientID, "PAY-00001", time.Now(), dec(amount), PaymentMethodBankTransfer, "USD")
	require.NoError(t, err)
	return payment
}

func TestNewPayment(t *testing.T) {
	tenantID, clientID := uuid.New(), uuid.New()

	payment := createTestPayment(t, tenantID, clientID, "287.5")
	assert.Equal(t, PaymentStatusUnapplied, payment.Status)
	assertAmount(t, "287.5", payment.UnappliedAmount())

	_, err := NewPayment(tenantID, clientID, "PAY-1", time.Now(), dec("0"), PaymentMethodCash, "USD")
	assert.True(t, errors.Is(err, ErrInvalidAmount))

	_, err = NewPayment(tenantID, clientID, "PAY-1", time.Now(), dec("10"), PaymentMethod("barter"), "USD")
	assert.True(t, errors.Is(err, shared.ErrInvalidInput))
}

func TestPayment_ApplyBatch(t *testing.T) {
	tenantID, clientID := uuid.New(), uuid.New()
	due := time.Now().AddDate(0, 0, 30)
	now := time.Now()

	t.Run("full application pays invoice", func(t *testing.T) {
		invoice := createSentInvoice(t, tenantID, clientID, due)
		payment := createTestPayment(t, tenantID, clientID, "287.5")
		entryID := uuid.New()

		total, err := payment.ApplyBatch(
			[]ApplicationLine{{InvoiceID: invoice.ID, Amount: dec("287.5")}},
			map[uuid.UUID]*Invoice{invoice.ID: invoice}, entryID, uuid.New(), now)
		require.NoError(t, err)

		assertAmount(t, "287.5", total)
		assert.Equal(t, PaymentStatusApplied, payment.Status)
		assert.Equal(t, InvoiceStatusPaid, invoice.Status)
		assertAmount(t, "0", invoice.BalanceDue)
		require.Len(t, payment.Applications, 1)
		assert.Equal(t, entryID, *payment.Applications[0].JournalEntryID)
		assertAmount(t, "287.5", payment.ApplicationTotal())
	})

	t.Run("split across invoices and merged on repeat", func(t *testing.T) {
		inv1 := createSentInvoice(t, tenantID, clientID, due)
		inv2 := createSentInvoice(t, tenantID, clientID, due)
		invoices := map[uuid.UUID]*Invoice{inv1.ID: inv1, inv2.ID: inv2}
		payment := createTestPayment(t, tenantID, clientID, "500")

		firstEntry, secondEntry := uuid.New(), uuid.New()
		_, err := payment.ApplyBatch([]ApplicationLine{
			{InvoiceID: inv1.ID, Amount: dec("200")},
			{InvoiceID: inv2.ID, Amount: dec("100")},
		}, invoices, firstEntry, uuid.New(), now)
		require.NoError(t, err)
		assert.Equal(t, PaymentStatusPartiallyApplied, payment.Status)

		_, err = payment.ApplyBatch([]ApplicationLine{{InvoiceID: inv1.ID, Amount: dec("50")}}, invoices, secondEntry, uuid.New(), now)
		require.NoError(t, err)

		require.Len(t, payment.Applications, 2)
		assertAmount(t, "250", payment.Applications[0].Amount)
		require.NotNil(t, payment.JournalEntryID)
		assert.Equal(t, firstEntry, *payment.JournalEntryID, "payment keeps its first cash entry")
		assert.Equal(t, secondEntry, *payment.Applications[0].JournalEntryID)
		assert.Equal(t, firstEntry, *payment.Applications[1].JournalEntryID)
		assertAmount(t, "150", payment.UnappliedAmount())
		assert.True(t, payment.ApplicationTotal().LessThanOrEqual(payment.Amount))
	})

	t.Run("exceeding invoice balance changes nothing", func(t *testing.T) {
		invoice := createSentInvoice(t, tenantID, clientID, due)
		payment := createTestPayment(t, tenantID, clientID, "300")

		_, err := payment.ApplyBatch([]ApplicationLine{{InvoiceID: invoice.ID, Amount: dec("300")}},
			map[uuid.UUID]*Invoice{invoice.ID: invoice}, uuid.New(), uuid.New(), now)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrExceedsBalance))
		assert.Empty(t, payment.Applications)
		assertAmount(t, "0", invoice.AmountPaid)
		assert.Equal(t, InvoiceStatusSent, invoice.Status)
	})

	t.Run("running total beyond payment", func(t *testing.T) {
		inv1 := createSentInvoice(t, tenantID, clientID, due)
		inv2 := createSentInvoice(t, tenantID, clientID, due)
		payment := createTestPayment(t, tenantID, clientID, "300")

		_, err := payment.ApplyBatch([]ApplicationLine{
			{InvoiceID: inv1.ID, Amount: dec("200")},
			{InvoiceID: inv2.ID, Amount: dec("150")},
		}, map[uuid.UUID]*Invoice{inv1.ID: inv1, inv2.ID: inv2}, uuid.New(), uuid.New(), now)
		assert.True(t, errors.Is(err, ErrExceedsPayment))
		assertAmount(t, "0", inv1.AmountPaid)
		assertAmount(t, "0", payment.AppliedAmount)
	})

	t.Run("unknown or foreign invoice", func(t *testing.T) {
		other := createSentInvoice(t, tenantID, uuid.New(), due)
		payment := createTestPayment(t, tenantID, clientID, "100")

		_, err := payment.ApplyBatch([]ApplicationLine{{InvoiceID: uuid.New(), Amount: dec("10")}},
			map[uuid.UUID]*Invoice{}, uuid.New(), uuid.New(), now)
		assert.True(t, errors.Is(err, ErrInvoiceNotFound))
		assert.True(t, errors.Is(err, shared.ErrNotFound))

		_, err = payment.ApplyBatch([]ApplicationLine{{InvoiceID: other.ID, Amount: dec("10")}},
			map[uuid.UUID]*Invoice{other.ID: other}, uuid.New(), uuid.New(), now)
		assert.True(t, errors.Is(err, ErrInvoiceNotFound))
	})

	t.Run("duplicate invoice in batch", func(t *testing.T) {
		invoice := createSentInvoice(t, tenantID, clientID, due)
		payment := createTestPayment(t, tenantID, clientID, "100")

		_, err := payment.ApplyBatch([]ApplicationLine{
			{InvoiceID: invoice.ID, Amount: dec("10")},
			{InvoiceID: invoice.ID, Amount: dec("10")},
		}, map[uuid.UUID]*Invoice{invoice.ID: invoice}, uuid.New(), uuid.New(), now)
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	})

	t.Run("draft invoice is not payable", func(t *testing.T) {
		invoice := createTestInvoice(t, tenantID, clientID, due)
		payment := createTestPayment(t, tenantID, clientID, "100")

		_, err := payment.ApplyBatch([]ApplicationLine{{InvoiceID: invoice.ID, Amount: dec("10")}},
			map[uuid.UUID]*Invoice{invoice.ID: invoice}, uuid.New(), uuid.New(), now)
		assert.True(t, errors.Is(err, shared.ErrInvalidState))
	})

	t.Run("fully applied payment rejects more", func(t *testing.T) {
		invoice := createSentInvoice(t, tenantID, clientID, due)
		payment := createTestPayment(t, tenantID, clientID, "100")
		invoices := map[uuid.UUID]*Invoice{invoice.ID: invoice}
		_, err := payment.ApplyBatch([]ApplicationLine{{InvoiceID: invoice.ID, Amount: dec("100")}}, invoices, uuid.New(), uuid.New(), now)
		require.NoError(t, err)

		_, err = payment.ApplyBatch([]ApplicationLine{{InvoiceID: invoice.ID, Amount: dec("1")}}, invoices, uuid.New(), uuid.New(), now)
		assert.True(t, errors.Is(err, shared.ErrInvalidState))
	})
}
