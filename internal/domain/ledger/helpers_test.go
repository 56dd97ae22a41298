package ledger

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertAmount(t *testing.T, expected string, actual decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(expected).Equal(actual), "expected %s, got %s", expected, actual.String())
}

func createTestAccount(t *testing.T, tenantID uuid.UUID, code string, accountType AccountType) *Account {
	t.Helper()
	account, err := NewAccount(tenantID, code, "Account "+code, accountType, "USD")
	require.NoError(t, err)
	return account
}

func accountMap(accounts ...*Account) map[uuid.UUID]*Account {
	m := make(map[uuid.UUID]*Account, len(accounts))
	for _, a := range accounts {
		m[a.ID] = a
	}
	return m
}

func createTestInvoice(t *testing.T, tenantID, clientID uuid.UUID, due time.Time) *Invoice {
	t.Helper()
	item1, err := NewInvoiceLineItem("Consultation", dec("2"), dec("100"))
	require.NoError(t, err)
	item2, err := NewInvoiceLineItem("Filing", dec("1"), dec("50"))
	require.NoError(t, err)

	invoice, err := NewInvoice(tenantID, clientID, "INV-00001", due.AddDate(0, 0, -30), due,
		[]InvoiceLineItem{item1, item2}, NoDiscount(), dec("15"), "USD")
	require.NoError(t, err)
	return invoice
}

func createSentInvoice(t *testing.T, tenantID, clientID uuid.UUID, due time.Time) *Invoice {
	t.Helper()
	invoice := createTestInvoice(t, tenantID, clientID, due)
	require.NoError(t, invoice.Send(uuid.New(), uuid.New(), due.AddDate(0, 0, -29)))
	return invoice
}
