package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lexledger/backend/internal/domain/ledger"
	"github.com/lexledger/backend/internal/domain/shared"
	"github.com/lexledger/backend/internal/infrastructure/persistence/models"
)

// GormAccountRepository implements AccountRepository using GORM
type GormAccountRepository struct {
	db *gorm.DB
}

// NewGormAccountRepository creates a new GormAccountRepository
func NewGormAccountRepository(db *gorm.DB) *GormAccountRepository {
	return &GormAccountRepository{db: db}
}

// FindByID finds an account by ID within a tenant
func (r *GormAccountRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*ledger.Account, error) {
	var model models.AccountModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByCode finds an account by its code within a tenant
func (r *GormAccountRepository) FindByCode(ctx context.Context, tenantID uuid.UUID, code string) (*ledger.Account, error) {
	var model models.AccountModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND code = ?", tenantID, code).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDs returns the accounts of the tenant among ids. Unknown ids are skipped.
func (r *GormAccountRepository) FindByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*ledger.Account, error) {
	if len(ids) == 0 {
		return []*ledger.Account{}, nil
	}
	var accountModels []models.AccountModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Order("id ASC").
		Find(&accountModels).Error; err != nil {
		return nil, err
	}
	return toDomainAccounts(accountModels), nil
}

// FindAllForTenant returns the whole chart of accounts ordered by code
func (r *GormAccountRepository) FindAllForTenant(ctx context.Context, tenantID uuid.UUID) ([]*ledger.Account, error) {
	var accountModels []models.AccountModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Order("code ASC").
		Find(&accountModels).Error; err != nil {
		return nil, err
	}
	return toDomainAccounts(accountModels), nil
}

// LockByIDs takes row locks on the accounts in ascending id order.
// The locks are held until the surrounding transaction ends.
func (r *GormAccountRepository) LockByIDs(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*ledger.Account, error) {
	if len(ids) == 0 {
		return []*ledger.Account{}, nil
	}
	var accountModels []models.AccountModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Order("id ASC").
		Find(&accountModels).Error; err != nil {
		return nil, translateError(err, "account", ids[0])
	}
	return toDomainAccounts(accountModels), nil
}

// ExistsByCode checks if an account code is already used in the tenant
func (r *GormAccountRepository) ExistsByCode(ctx context.Context, tenantID uuid.UUID, code string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.AccountModel{}).
		Where("tenant_id = ? AND code = ?", tenantID, code).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// Create inserts a new account
func (r *GormAccountRepository) Create(ctx context.Context, account *ledger.Account) error {
	model := models.AccountModelFromDomain(account)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return translateError(err, "account", account.ID)
	}
	account.MarkPersisted()
	return nil
}

// SaveWithLock updates the account if nobody changed it since it was loaded
func (r *GormAccountRepository) SaveWithLock(ctx context.Context, account *ledger.Account) error {
	expected := account.PersistedVersion()
	if account.Version == expected {
		account.IncrementVersion()
	}
	result := r.db.WithContext(ctx).
		Model(&models.AccountModel{}).
		Where("id = ? AND tenant_id = ? AND version = ?", account.ID, account.TenantID, expected).
		Updates(map[string]interface{}{
			"name":           account.Name,
			"description":    account.Description,
			"parent_id":      account.ParentID,
			"is_active":      account.IsActive,
			"is_system":      account.IsSystem,
			"deactivated_at": account.DeactivatedAt,
			"version":        account.Version,
			"updated_at":     account.UpdatedAt,
		})
	if result.Error != nil {
		return translateError(result.Error, "account", account.ID)
	}
	if result.RowsAffected == 0 {
		return conflict("account", account.ID)
	}
	account.MarkPersisted()
	return nil
}

// UpdateBalances writes current_balance of accounts locked by LockByIDs
func (r *GormAccountRepository) UpdateBalances(ctx context.Context, accounts []*ledger.Account) error {
	for _, account := range accounts {
		result := r.db.WithContext(ctx).
			Model(&models.AccountModel{}).
			Where("id = ? AND tenant_id = ?", account.ID, account.TenantID).
			Updates(map[string]interface{}{
				"current_balance": account.CurrentBalance,
				"updated_at":      account.UpdatedAt,
			})
		if result.Error != nil {
			return translateError(result.Error, "account", account.ID)
		}
		if result.RowsAffected == 0 {
			return ledger.NewNotFoundError("account", account.ID)
		}
	}
	return nil
}

// Delete removes an account. Callers check it is unreferenced first.
func (r *GormAccountRepository) Delete(ctx context.Context, tenantID, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Delete(&models.AccountModel{}, "tenant_id = ? AND id = ?", tenantID, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

func toDomainAccounts(accountModels []models.AccountModel) []*ledger.Account {
	accounts := make([]*ledger.Account, len(accountModels))
	for i := range accountModels {
		accounts[i] = accountModels[i].ToDomain()
	}
	return accounts
}

// Ensure GormAccountRepository implements AccountRepository
var _ ledger.AccountRepository = (*GormAccountRepository)(nil)
