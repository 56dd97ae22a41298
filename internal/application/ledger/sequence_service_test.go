package ledger

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lexledger/backend/internal/domain/ledger"
	"github.com/lexledger/backend/internal/domain/shared"
)

func TestSequenceService_NextDocumentNumber(t *testing.T) {
	ctx := context.Background()

	t.Run("default prefix", func(t *testing.T) {
		counters := new(MockCounterStore)
		settings := new(MockSettingsRepository)
		tenantID := uuid.New()
		settings.On("FindByTenant", mock.Anything, tenantID).Return(nil, nil)
		counters.On("Increment", mock.Anything, tenantID, ledger.CounterKindInvoice).Return(int64(42), nil)
		svc := NewSequenceService(counters, settings, DefaultDefaults(), nil)

		number, err := svc.NextDocumentNumber(ctx, tenantID, ledger.CounterKindInvoice)

		require.NoError(t, err)
		assert.Equal(t, "INV-00042", number)
	})

	t.Run("tenant prefix wins over configuration", func(t *testing.T) {
		counters := new(MockCounterStore)
		settings := new(MockSettingsRepository)
		tenantID := uuid.New()
		tenantSettings, err := ledger.NewTenantSettings(tenantID, "USD")
		require.NoError(t, err)
		require.NoError(t, tenantSettings.SetPrefix(ledger.CounterKindPayment, "RCPT"))
		settings.On("FindByTenant", mock.Anything, tenantID).Return(tenantSettings, nil)
		counters.On("Increment", mock.Anything, tenantID, ledger.CounterKindPayment).Return(int64(7), nil)
		defaults := DefaultDefaults()
		defaults.Prefixes[ledger.CounterKindPayment] = "PMT"
		svc := NewSequenceService(counters, settings, defaults, nil)

		number, err := svc.NextDocumentNumber(ctx, tenantID, ledger.CounterKindPayment)

		require.NoError(t, err)
		assert.Equal(t, "RCPT-00007", number)
	})

	t.Run("configured prefix without settings repository", func(t *testing.T) {
		counters := new(MockCounterStore)
		tenantID := uuid.New()
		counters.On("Increment", mock.Anything, tenantID, ledger.CounterKindExpense).Return(int64(123456), nil)
		defaults := DefaultDefaults()
		defaults.Prefixes[ledger.CounterKindExpense] = "X"
		svc := NewSequenceService(counters, nil, defaults, nil)

		number, err := svc.NextDocumentNumber(ctx, tenantID, ledger.CounterKindExpense)

		require.NoError(t, err)
		assert.Equal(t, "X-123456", number)
	})

	t.Run("counters are independent per kind", func(t *testing.T) {
		counters := new(MockCounterStore)
		tenantID := uuid.New()
		counters.On("Increment", mock.Anything, tenantID, ledger.CounterKindInvoice).Return(int64(3), nil)
		counters.On("Increment", mock.Anything, tenantID, ledger.CounterKindJournalEntry).Return(int64(1), nil)
		svc := NewSequenceService(counters, nil, DefaultDefaults(), nil)

		inv, err := svc.NextDocumentNumber(ctx, tenantID, ledger.CounterKindInvoice)
		require.NoError(t, err)
		je, err := svc.NextDocumentNumber(ctx, tenantID, ledger.CounterKindJournalEntry)
		require.NoError(t, err)

		assert.Equal(t, "INV-00003", inv)
		assert.Equal(t, "JE-00001", je)
	})

	t.Run("unknown kind", func(t *testing.T) {
		svc := NewSequenceService(new(MockCounterStore), nil, DefaultDefaults(), nil)

		_, err := svc.NextDocumentNumber(ctx, uuid.New(), ledger.CounterKind("receipt"))

		require.Error(t, err)
		assert.True(t, errors.Is(err, shared.ErrInvalidInput))
	})

	t.Run("store failure", func(t *testing.T) {
		counters := new(MockCounterStore)
		tenantID := uuid.New()
		counters.On("Increment", mock.Anything, tenantID, ledger.CounterKindInvoice).Return(int64(0), errors.New("connection refused"))
		svc := NewSequenceService(counters, nil, DefaultDefaults(), nil)

		_, err := svc.NextDocumentNumber(ctx, tenantID, ledger.CounterKindInvoice)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "connection refused")
	})
}
