package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lexledger/backend/internal/domain/ledger"
	"github.com/lexledger/backend/internal/infrastructure/persistence/models"
)

// GormCounterStore implements ledger.CounterStore on the ledger_counters table.
// Each increment is one upsert statement, so concurrent callers serialize on the
// counter row and never read the same value.
type GormCounterStore struct {
	db *gorm.DB
}

// NewGormCounterStore creates a new GormCounterStore
func NewGormCounterStore(db *gorm.DB) *GormCounterStore {
	return &GormCounterStore{db: db}
}

// Increment returns the next value for the tenant and kind, starting at 1.
// It runs outside any caller transaction so the row lock is released at once.
func (s *GormCounterStore) Increment(ctx context.Context, tenantID uuid.UUID, kind ledger.CounterKind) (int64, error) {
	counter := models.CounterModel{TenantID: tenantID, Kind: kind, Value: 1}
	err := s.db.WithContext(ctx).
		Clauses(
			clause.OnConflict{
				Columns: []clause.Column{{Name: "tenant_id"}, {Name: "kind"}},
				DoUpdates: clause.Assignments(map[string]interface{}{
					"value": gorm.Expr("ledger_counters.value + 1"),
				}),
			},
			clause.Returning{Columns: []clause.Column{{Name: "value"}}},
		).
		Create(&counter).Error
	if err != nil {
		return 0, fmt.Errorf("failed to increment %s counter: %w", kind, err)
	}
	if counter.Value <= 0 {
		return 0, fmt.Errorf("counter %s returned no value", kind)
	}
	return counter.Value, nil
}

// Ensure GormCounterStore implements CounterStore
var _ ledger.CounterStore = (*GormCounterStore)(nil)
