package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/lexledger/backend/internal/domain/ledger"
	"github.com/lexledger/backend/internal/infrastructure/persistence/models"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// GormJournalEntryRepository implements JournalEntryRepository using GORM
type GormJournalEntryRepository struct {
	db *gorm.DB
}

// NewGormJournalEntryRepository creates a new GormJournalEntryRepository
func NewGormJournalEntryRepository(db *gorm.DB) *GormJournalEntryRepository {
	return &GormJournalEntryRepository{db: db}
}

// FindByID finds an entry with its lines
func (r *GormJournalEntryRepository) FindByID(ctx context.Context, tenantID, id uuid.UUID) (*ledger.JournalEntry, error) {
	return r.findOne(r.db.WithContext(ctx), tenantID, id)
}

// FindByIDForUpdate finds an entry and locks its header row
func (r *GormJournalEntryRepository) FindByIDForUpdate(ctx context.Context, tenantID, id uuid.UUID) (*ledger.JournalEntry, error) {
	entry, err := r.findOne(r.db.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), tenantID, id)
	if err != nil {
		return nil, translateError(err, "journal entry", id)
	}
	return entry, nil
}

func (r *GormJournalEntryRepository) findOne(db *gorm.DB, tenantID, id uuid.UUID) (*ledger.JournalEntry, error) {
	var model models.JournalEntryModel
	if err := db.
		Preload("Lines", func(tx *gorm.DB) *gorm.DB { return tx.Order("line_no ASC") }).
		Where("tenant_id = ? AND id = ?", tenantID, id).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return model.ToDomain()
}

// FindAll lists entries newest first with the total count before paging
func (r *GormJournalEntryRepository) FindAll(ctx context.Context, tenantID uuid.UUID, filter ledger.JournalEntryFilter) ([]*ledger.JournalEntry, int64, error) {
	query := r.applyFilter(
		r.db.WithContext(ctx).Model(&models.JournalEntryModel{}).Where("tenant_id = ?", tenantID),
		tenantID, filter,
	)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entryModels []models.JournalEntryModel
	if err := paginate(query, filter.Page, filter.PageSize).
		Preload("Lines", func(tx *gorm.DB) *gorm.DB { return tx.Order("line_no ASC") }).
		Order("entry_date DESC, entry_number DESC").
		Find(&entryModels).Error; err != nil {
		return nil, 0, err
	}

	entries := make([]*ledger.JournalEntry, 0, len(entryModels))
	for i := range entryModels {
		entry, err := entryModels[i].ToDomain()
		if err != nil {
			return nil, 0, err
		}
		entries = append(entries, entry)
	}
	return entries, total, nil
}

func (r *GormJournalEntryRepository) applyFilter(query *gorm.DB, tenantID uuid.UUID, filter ledger.JournalEntryFilter) *gorm.DB {
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.SourceKind != nil {
		query = query.Where("source_kind = ?", *filter.SourceKind)
	}
	if filter.SourceID != nil {
		query = query.Where("source_id = ?", *filter.SourceID)
	}
	if filter.AccountID != nil {
		query = query.Where("id IN (?)", r.db.Model(&models.JournalEntryDetailModel{}).
			Select("journal_entry_id").
			Where("tenant_id = ? AND account_id = ?", tenantID, *filter.AccountID))
	}
	if filter.FromDate != nil {
		query = query.Where("entry_date >= ?", *filter.FromDate)
	}
	if filter.ToDate != nil {
		query = query.Where("entry_date <= ?", *filter.ToDate)
	}
	return query
}

// Create inserts the entry header and its lines
func (r *GormJournalEntryRepository) Create(ctx context.Context, entry *ledger.JournalEntry) error {
	model := models.JournalEntryModelFromDomain(entry)
	lines := model.Lines
	model.Lines = nil
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Create(model).Error; err != nil {
			return err
		}
		if len(lines) > 0 {
			if err := tx.Create(&lines).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return translateError(err, "journal entry", entry.ID)
	}
	entry.MarkPersisted()
	return nil
}

// SaveWithLock updates the header when the stored version still matches and
// replaces the lines with the entry's current lines
func (r *GormJournalEntryRepository) SaveWithLock(ctx context.Context, entry *ledger.JournalEntry) error {
	expected := entry.PersistedVersion()
	if entry.Version == expected {
		entry.IncrementVersion()
	}
	model := models.JournalEntryModelFromDomain(entry)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.JournalEntryModel{}).
			Where("id = ? AND tenant_id = ? AND version = ?", entry.ID, entry.TenantID, expected).
			Updates(map[string]interface{}{
				"entry_date":  model.EntryDate,
				"description": model.Description,
				"status":      model.Status,
				"posted_at":   model.PostedAt,
				"posted_by":   model.PostedBy,
				"voided_at":   model.VoidedAt,
				"voided_by":   model.VoidedBy,
				"void_reason": model.VoidReason,
				"version":     model.Version,
				"updated_at":  model.UpdatedAt,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return conflict("journal entry", entry.ID)
		}

		lineIDs := make([]uuid.UUID, len(model.Lines))
		for i := range model.Lines {
			lineIDs[i] = model.Lines[i].ID
		}
		stale := tx.Where("journal_entry_id = ?", entry.ID)
		if len(lineIDs) > 0 {
			stale = stale.Where("id NOT IN ?", lineIDs)
		}
		if err := stale.Delete(&models.JournalEntryDetailModel{}).Error; err != nil {
			return err
		}
		if len(model.Lines) == 0 {
			return nil
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"line_no", "account_id", "debit", "credit", "applied_delta", "description", "client_id", "case_id", "contract_id"}),
		}).Create(&model.Lines).Error
	})
	if err != nil {
		return translateError(err, "journal entry", entry.ID)
	}
	entry.MarkPersisted()
	return nil
}

// CountLinesForAccount counts lines of any status that reference the account
func (r *GormJournalEntryRepository) CountLinesForAccount(ctx context.Context, tenantID, accountID uuid.UUID) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&models.JournalEntryDetailModel{}).
		Where("tenant_id = ? AND account_id = ?", tenantID, accountID).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

type accountLineRow struct {
	EntryID      uuid.UUID
	EntryNumber  string
	EntryDate    time.Time
	Status       ledger.JournalEntryStatus
	LineNo       int
	Debit        decimal.Decimal
	Credit       decimal.Decimal
	AppliedDelta decimal.Decimal
	Description  string
}

// FindLinesForAccount lists lines of posted and voided entries in ledger order
func (r *GormJournalEntryRepository) FindLinesForAccount(ctx context.Context, tenantID, accountID uuid.UUID) ([]ledger.AccountLine, error) {
	var rows []accountLineRow
	if err := r.db.WithContext(ctx).
		Table("ledger_journal_entry_details AS d").
		Select("e.id AS entry_id, e.entry_number, e.entry_date, e.status, d.line_no, d.debit, d.credit, d.applied_delta, "+
			"COALESCE(NULLIF(d.description, ''), e.description) AS description").
		Joins("JOIN ledger_journal_entries AS e ON e.id = d.journal_entry_id").
		Where("d.tenant_id = ? AND d.account_id = ? AND e.status IN ?", tenantID, accountID,
			[]ledger.JournalEntryStatus{ledger.JournalEntryStatusPosted, ledger.JournalEntryStatusVoided}).
		Order("e.entry_date ASC, e.posted_at ASC, e.entry_number ASC, d.line_no ASC").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	lines := make([]ledger.AccountLine, len(rows))
	for i, row := range rows {
		lines[i] = ledger.AccountLine(row)
	}
	return lines, nil
}

type appliedRow struct {
	AccountID uuid.UUID
	Net       decimal.Decimal
}

// NetAppliedByAccount sums the applied deltas of posted entries per account
func (r *GormJournalEntryRepository) NetAppliedByAccount(ctx context.Context, tenantID uuid.UUID) (map[uuid.UUID]decimal.Decimal, error) {
	var rows []appliedRow
	if err := r.db.WithContext(ctx).
		Table("ledger_journal_entry_details AS d").
		Select("d.account_id, SUM(d.applied_delta) AS net").
		Joins("JOIN ledger_journal_entries AS e ON e.id = d.journal_entry_id").
		Where("d.tenant_id = ? AND e.status = ?", tenantID, ledger.JournalEntryStatusPosted).
		Group("d.account_id").
		Scan(&rows).Error; err != nil {
		return nil, err
	}

	net := make(map[uuid.UUID]decimal.Decimal, len(rows))
	for _, row := range rows {
		net[row.AccountID] = row.Net
	}
	return net, nil
}

// paginate applies 1-based paging with the default and maximum page size
func paginate(query *gorm.DB, page, pageSize int) *gorm.DB {
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}
	if page <= 0 {
		page = 1
	}
	return query.Offset((page - 1) * pageSize).Limit(pageSize)
}

// Ensure GormJournalEntryRepository implements JournalEntryRepository
var _ ledger.JournalEntryRepository = (*GormJournalEntryRepository)(nil)
