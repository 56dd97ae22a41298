package cache

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lexledger/backend/internal/domain/ledger"
)

func TestInMemoryCounterStore_Increment(t *testing.T) {
	ctx := context.Background()
	store := NewInMemoryCounterStore()
	tenantA, tenantB := uuid.New(), uuid.New()

	for want := int64(1); want <= 3; want++ {
		n, err := store.Increment(ctx, tenantA, ledger.CounterKindInvoice)
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	n, err := store.Increment(ctx, tenantA, ledger.CounterKindPayment)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "kinds are independent")

	n, err = store.Increment(ctx, tenantB, ledger.CounterKindInvoice)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "tenants are independent")
}

func TestInMemoryCounterStore_ConcurrentCallersGetDistinctValues(t *testing.T) {
	store := NewInMemoryCounterStore()
	tenantID := uuid.New()

	const callers = 50
	values := make(chan int64, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			n, err := store.Increment(context.Background(), tenantID, ledger.CounterKindExpense)
			if err == nil {
				values <- n
			}
		}()
	}
	wg.Wait()
	close(values)

	seen := make(map[int64]bool, callers)
	for n := range values {
		assert.False(t, seen[n], "value %d issued twice", n)
		seen[n] = true
	}
	assert.Len(t, seen, callers)
	for n := int64(1); n <= callers; n++ {
		assert.True(t, seen[n], "value %d missing", n)
	}
}

func TestRedisCounterStore_Key(t *testing.T) {
	tenantID := uuid.MustParse("7f1c2a44-2a9e-4c1f-9b1e-3d2f0a6c8e11")

	store := NewRedisCounterStore(nil, "")
	assert.Equal(t, "ledger:seq:7f1c2a44-2a9e-4c1f-9b1e-3d2f0a6c8e11:invoice",
		store.Key(tenantID, ledger.CounterKindInvoice))

	custom := NewRedisCounterStore(nil, "books:")
	assert.Equal(t, "books:7f1c2a44-2a9e-4c1f-9b1e-3d2f0a6c8e11:journal_entry",
		custom.Key(tenantID, ledger.CounterKindJournalEntry))
}
