package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/lexledger/backend/internal/domain/ledger"
	"github.com/lexledger/backend/internal/domain/shared"
	"github.com/lexledger/backend/internal/infrastructure/persistence/models"
)

// GormSettingsRepository implements SettingsRepository using GORM
type GormSettingsRepository struct {
	db *gorm.DB
}

// NewGormSettingsRepository creates a new GormSettingsRepository
func NewGormSettingsRepository(db *gorm.DB) *GormSettingsRepository {
	return &GormSettingsRepository{db: db}
}

// FindByTenant returns the tenant's settings, nil when none were configured
func (r *GormSettingsRepository) FindByTenant(ctx context.Context, tenantID uuid.UUID) (*ledger.TenantSettings, error) {
	var model models.TenantSettingsModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// Save replaces stored settings whose version matches settings.Version and
// bumps the version. Settings of an unconfigured tenant are inserted.
func (r *GormSettingsRepository) Save(ctx context.Context, settings *ledger.TenantSettings) error {
	model := models.TenantSettingsModelFromDomain(settings)
	model.Version = settings.Version + 1

	result := r.db.WithContext(ctx).
		Model(&models.TenantSettingsModel{}).
		Where("tenant_id = ? AND version = ?", settings.TenantID, settings.Version).
		Select("role_accounts", "expense_category_accounts", "prefixes", "currency", "payment_term_days", "version", "updated_at").
		Updates(model)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 1 {
		settings.Version = model.Version
		return nil
	}

	var count int64
	if err := r.db.WithContext(ctx).Model(&models.TenantSettingsModel{}).
		Where("tenant_id = ?", settings.TenantID).
		Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return conflict("ledger settings", settings.TenantID)
	}

	model.Version = settings.Version
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		err = translateError(err, "ledger settings", settings.TenantID)
		if errors.Is(err, shared.ErrAlreadyExists) {
			return conflict("ledger settings", settings.TenantID)
		}
		return err
	}
	return nil
}

// Ensure GormSettingsRepository implements SettingsRepository
var _ ledger.SettingsRepository = (*GormSettingsRepository)(nil)

// TenantIDs lists every tenant that has configured its ledger, ordered by id
func (r *GormSettingsRepository) TenantIDs(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	if err := r.db.WithContext(ctx).
		Model(&models.TenantSettingsModel{}).
		Order("tenant_id").
		Pluck("tenant_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
