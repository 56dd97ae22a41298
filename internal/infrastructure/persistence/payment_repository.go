package persistence

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lexledger/backend/internal/domain/ledger"
	"github.com/lexledger/backend/internal/infrastructure/persistence/models"
)

// GormPaymentRepository implements PaymentRepository using GORM
type GormPaymentRepository struct {
	db *gorm.DB
}

// NewGormPaymentRepository creates a new GormPaymentRepository
func NewGormPaymentRepository(db *gorm.DB) *GormPaymentRepository {
	return &GormPaymentRepository{db: db}
}

func preloadApplications(tx *gorm.DB) *gorm.DB {
	return tx.Order("created_at ASC")
}

// FindByID finds a payment with its applications
func (r *GormPaymentRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*ledger.Payment, error) {
	return r.findOne(r.db.WithContext(ctx), tenantID, id)
}

// FindByIDForUpdate finds a payment and locks its row
func (r *GormPaymentRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*ledger.Payment, error) {
	payment, err := r.findOne(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), tenantID, id)
	if err != nil {
		return nil, translateError(err, "payment", id)
	}
	return payment, nil
}

func (r *GormPaymentRepository) findOne(db *gorm.DB, tenantID, id uuid.UUID) (*ledger.Payment, error) {
	var model models.PaymentModel
	if err := db.
		Preload("Applications", preloadApplications).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindApplicationsByInvoice lists every application made against an invoice
func (r *GormPaymentRepository) FindApplicationsByInvoice(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]ledger.PaymentApplication, error) {
	var appModels []models.PaymentApplicationModel
	if err := r.db.WithContext(ctx).
		Where("tenant_id = ? AND invoice_id = ?", tenantID, invoiceID).
		Order("applied_at ASC").
		Find(&appModels).Error; err != nil {
		return nil, err
	}
	apps := make([]ledger.PaymentApplication, len(appModels))
	for i := range appModels {
		apps[i] = appModels[i].ToDomain()
	}
	return apps, nil
}

// Create inserts a new payment. A new payment carries no applications.
func (r *GormPaymentRepository) Create(ctx context.Context, payment *ledger.Payment) error {
	model := models.PaymentModelFromDomain(payment)
	apps := model.Applications
	model.Applications = nil
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(model).Error; err != nil {
			return err
		}
		return upsertApplications(tx, apps)
	})
	if err != nil {
		return translateError(err, "payment", payment.ID)
	}
	payment.MarkPersisted()
	return nil
}

// SaveWithLock updates the payment when the stored version still matches
// and upserts its applications on (payment_id, invoice_id)
func (r *GormPaymentRepository) SaveWithLock(ctx context.Context, payment *ledger.Payment) error {
	expected := payment.PersistedVersion()
	if payment.Version == expected {
		payment.IncrementVersion()
	}
	model := models.PaymentModelFromDomain(payment)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.PaymentModel{}).
			Where("id = ? AND tenant_id = ? AND version = ?", payment.ID, payment.TenantID, expected).
			Updates(map[string]interface{}{
				"applied_amount":   model.AppliedAmount,
				"status":           model.Status,
				"reference":        model.Reference,
				"notes":            model.Notes,
				"journal_entry_id": model.JournalEntryID,
				"version":          model.Version,
				"updated_at":       model.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return conflict("payment", payment.ID)
		}
		return upsertApplications(tx, model.Applications)
	})
	if err != nil {
		return translateError(err, "payment", payment.ID)
	}
	payment.MarkPersisted()
	return nil
}

func upsertApplications(tx *gorm.DB, apps []models.PaymentApplicationModel) error {
	if len(apps) == 0 {
		return nil
	}
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "payment_id"}, {Name: "invoice_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"amount", "journal_entry_id", "applied_at", "applied_by", "updated_at"}),
	}).Create(&apps).Error
}

// Ensure GormPaymentRepository implements PaymentRepository
var _ ledger.PaymentRepository = (*GormPaymentRepository)(nil)
