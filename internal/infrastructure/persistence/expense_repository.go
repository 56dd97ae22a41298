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

// GormExpenseRepository implements ExpenseRepository using GORM
type GormExpenseRepository struct {
	db *gorm.DB
}

// NewGormExpenseRepository creates a new GormExpenseRepository
func NewGormExpenseRepository(db *gorm.DB) *GormExpenseRepository {
	return &GormExpenseRepository{db: db}
}

// FindByID finds an expense by ID within a tenant
func (r *GormExpenseRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*ledger.Expense, error) {
	return r.findOne(r.db.WithContext(ctx), tenantID, id)
}

// FindByIDForUpdate finds an expense and locks its row
func (r *GormExpenseRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*ledger.Expense, error) {
	expense, err := r.findOne(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), tenantID, id)
	if err != nil {
		return nil, translateError(err, "expense", id)
	}
	return expense, nil
}

func (r *GormExpenseRepository) findOne(db *gorm.DB, tenantID, id uuid.UUID) (*ledger.Expense, error) {
	var model models.ExpenseModel
	if err := db.
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll lists expenses newest first with the total count before paging
func (r *GormExpenseRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter ledger.ExpenseFilter) ([]*ledger.Expense, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.ExpenseModel{}).Where("tenant_id = ?", tenantID)
	if filter.ApprovalStatus != nil {
		query = query.Where("approval_status = ?", *filter.ApprovalStatus)
	}
	if filter.PaymentStatus != nil {
		query = query.Where("payment_status = ?", *filter.PaymentStatus)
	}
	if filter.CategoryID != nil {
		query = query.Where("category_id = ?", *filter.CategoryID)
	}
	if filter.ClientID != nil {
		query = query.Where("client_id = ?", *filter.ClientID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var expenseModels []models.ExpenseModel
	if err := paginate(query, filter.Page, filter.PageSize).
		Order("expense_date DESC, expense_number DESC").
		Find(&expenseModels).Error; err != nil {
		return nil, 0, err
	}

	expenses := make([]*ledger.Expense, len(expenseModels))
	for i := range expenseModels {
		expenses[i] = expenseModels[i].ToDomain()
	}
	return expenses, total, nil
}

// Create inserts a new expense
func (r *GormExpenseRepository) Create(ctx context.Context, expense *ledger.Expense) error {
	model := models.ExpenseModelFromDomain(expense)
	if err := r.db.WithContext(ctx).Create(model).Error; err != nil {
		return translateError(err, "expense", expense.ID)
	}
	expense.MarkPersisted()
	return nil
}

// SaveWithLock updates the expense when the stored version still matches
func (r *GormExpenseRepository) SaveWithLock(ctx context.Context, expense *ledger.Expense) error {
	expected := expense.PersistedVersion()
	if expense.Version == expected {
		expense.IncrementVersion()
	}
	result := r.db.WithContext(ctx).
		Model(&models.ExpenseModel{}).
		Where("id = ? AND tenant_id = ? AND version = ?", expense.ID, expense.TenantID, expected).
		Updates(map[string]interface{}{
			"expense_account_id": expense.ExpenseAccountID,
			"billable":           expense.Billable,
			"client_id":          expense.ClientID,
			"case_id":            expense.CaseID,
			"approval_status":    expense.ApprovalStatus,
			"payment_status":     expense.PaymentStatus,
			"journal_entry_id":   expense.JournalEntryID,
			"approved_at":        expense.ApprovedAt,
			"approved_by":        expense.ApprovedBy,
			"rejected_at":        expense.RejectedAt,
			"rejected_by":        expense.RejectedBy,
			"rejection_reason":   expense.RejectionReason,
			"paid_at":            expense.PaidAt,
			"payment_method":     expense.PaymentMethod,
			"payment_reference":  expense.PaymentReference,
			"version":            expense.Version,
			"updated_at":         expense.UpdatedAt,
		})
	if result.Error != nil {
		return translateError(result.Error, "expense", expense.ID)
	}
	if result.RowsAffected == 0 {
		return conflict("expense", expense.ID)
	}
	expense.MarkPersisted()
	return nil
}

// Ensure GormExpenseRepository implements ExpenseRepository
var _ ledger.ExpenseRepository = (*GormExpenseRepository)(nil)
