package persistence

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lexledger/backend/internal/domain/ledger"
	"github.com/lexledger/backend/internal/infrastructure/persistence/models"
)

// GormInvoiceRepository implements InvoiceRepository using GORM
type GormInvoiceRepository struct {
	db *gorm.DB
}

// NewGormInvoiceRepository creates a new GormInvoiceRepository
func NewGormInvoiceRepository(db *gorm.DB) *GormInvoiceRepository {
	return &GormInvoiceRepository{db: db}
}

func preloadItems(tx *gorm.DB) *gorm.DB {
	return tx.Order("line_no ASC")
}

// FindByID finds an invoice with its line items
func (r *GormInvoiceRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*ledger.Invoice, error) {
	return r.findOne(r.db.WithContext(ctx), tenantID, id)
}

// FindByIDForUpdate finds an invoice and locks its row
func (r *GormInvoiceRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*ledger.Invoice, error) {
	invoice, err := r.findOne(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), tenantID, id)
	if err != nil {
		return nil, translateError(err, "invoice", id)
	}
	return invoice, nil
}

func (r *GormInvoiceRepository) findOne(db *gorm.DB, tenantID, id uuid.UUID) (*ledger.Invoice, error) {
	var model models.InvoiceModel
	if err := db.
		Preload("Items", preloadItems).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByIDsForUpdate locks the tenant's invoices among ids in ascending id order
func (r *GormInvoiceRepository) FindByIDsForUpdate(ctx context.Context, tenantID uuid.UUID, ids []uuid.UUID) ([]*ledger.Invoice, error) {
	if len(ids) == 0 {
		return []*ledger.Invoice{}, nil
	}
	var invoiceModels []models.InvoiceModel
	if err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Preload("Items", preloadItems).
		Where("tenant_id = ? AND id IN ?", tenantID, ids).
		Order("id ASC").
		Find(&invoiceModels).Error; err != nil {
		return nil, translateError(err, "invoice", ids[0])
	}
	return toDomainInvoices(invoiceModels), nil
}

// FindAll lists invoices by due date with the total count before paging
func (r *GormInvoiceRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter ledger.InvoiceFilter) ([]*ledger.Invoice, int64, error) {
	query := applyInvoiceFilter(
		r.db.WithContext(ctx).Model(&models.InvoiceModel{}).Where("tenant_id = ?", tenantID),
		filter,
	)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var invoiceModels []models.InvoiceModel
	if err := paginate(query, filter.Page, filter.PageSize).
		Preload("Items", preloadItems).
		Order("due_date ASC, invoice_number ASC").
		Find(&invoiceModels).Error; err != nil {
		return nil, 0, err
	}
	return toDomainInvoices(invoiceModels), total, nil
}

// applyInvoiceFilter matches statuses as they are effective at filter.AsOf.
// A stored sent invoice whose due date has passed counts as overdue.
func applyInvoiceFilter(query *gorm.DB, filter ledger.InvoiceFilter) *gorm.DB {
	if filter.ClientID != nil {
		query = query.Where("client_id = ?", *filter.ClientID)
	}
	if len(filter.Statuses) > 0 {
		asOf := filter.AsOf
		if asOf.IsZero() {
			asOf = time.Now().UTC()
		}
		asOf = time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)

		parts := make([]string, 0, len(filter.Statuses))
		args := make([]interface{}, 0, 2*len(filter.Statuses))
		for _, status := range filter.Statuses {
			switch status {
			case ledger.InvoiceStatusOverdue:
				parts = append(parts, "status = ? OR (status = ? AND due_date < ?)")
				args = append(args, ledger.InvoiceStatusOverdue, ledger.InvoiceStatusSent, asOf)
			case ledger.InvoiceStatusSent:
				parts = append(parts, "(status = ? AND due_date >= ?)")
				args = append(args, ledger.InvoiceStatusSent, asOf)
			default:
				parts = append(parts, "status = ?")
				args = append(args, status)
			}
		}
		query = query.Where("("+strings.Join(parts, " OR ")+")", args...)
	}
	if filter.DueAfter != nil {
		query = query.Where("due_date >= ?", *filter.DueAfter)
	}
	if filter.DueBefore != nil {
		query = query.Where("due_date < ?", *filter.DueBefore)
	}
	return query
}

// Create inserts the invoice and its line items
func (r *GormInvoiceRepository) Create(ctx context.Context, invoice *ledger.Invoice) error {
	model := models.InvoiceModelFromDomain(invoice)
	items := model.Items
	model.Items = nil
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(model).Error; err != nil {
			return err
		}
		if len(items) > 0 {
			if err := tx.Create(&items).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return translateError(err, "invoice", invoice.ID)
	}
	invoice.MarkPersisted()
	return nil
}

// SaveWithLock updates the invoice header when the stored version still matches.
// Line items are fixed once the invoice exists.
func (r *GormInvoiceRepository) SaveWithLock(ctx context.Context, invoice *ledger.Invoice) error {
	expected := invoice.PersistedVersion()
	if invoice.Version == expected {
		invoice.IncrementVersion()
	}
	result := r.db.WithContext(ctx).
		Model(&models.InvoiceModel{}).
		Where("id = ? AND tenant_id = ? AND version = ?", invoice.ID, invoice.TenantID, expected).
		Updates(map[string]interface{}{
			"case_id":            invoice.CaseID,
			"due_date":           invoice.DueDate,
			"status":             invoice.Status,
			"amount_paid":        invoice.AmountPaid,
			"balance_due":        invoice.BalanceDue,
			"revenue_account_id": invoice.RevenueAccountID,
			"journal_entry_id":   invoice.JournalEntryID,
			"notes":              invoice.Notes,
			"sent_at":            invoice.SentAt,
			"sent_by":            invoice.SentBy,
			"cancelled_at":       invoice.CancelledAt,
			"cancelled_by":       invoice.CancelledBy,
			"cancel_reason":      invoice.CancelReason,
			"version":            invoice.Version,
			"updated_at":         invoice.UpdatedAt,
		})
	if result.Error != nil {
		return translateError(result.Error, "invoice", invoice.ID)
	}
	if result.RowsAffected == 0 {
		return conflict("invoice", invoice.ID)
	}
	invoice.MarkPersisted()
	return nil
}

func toDomainInvoices(invoiceModels []models.InvoiceModel) []*ledger.Invoice {
	invoices := make([]*ledger.Invoice, len(invoiceModels))
	for i := range invoiceModels {
		invoices[i] = invoiceModels[i].ToDomain()
	}
	return invoices
}

// Ensure GormInvoiceRepository implements InvoiceRepository
var _ ledger.InvoiceRepository = (*GormInvoiceRepository)(nil)
