package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lexledger/backend/internal/domain/ledger"
)

// AccountModel is the persistence model for the Account aggregate root.
type AccountModel struct {
	TenantAggregateModel
	Code           string             `gorm:"type:varchar(32);not null;index:,unique,composite:tenant_key,priority:2"`
	Name           string             `gorm:"type:varchar(200);not null"`
	Description    string             `gorm:"type:text"`
	Type           ledger.AccountType `gorm:"type:varchar(20);not null;index"`
	ParentID       *uuid.UUID         `gorm:"type:uuid;index"`
	Currency       string             `gorm:"type:varchar(3);not null"`
	CurrentBalance decimal.Decimal    `gorm:"type:decimal(18,4);not null;default:0"`
	IsActive       bool               `gorm:"not null;default:true"`
	IsSystem       bool               `gorm:"not null;default:false"`
	DeactivatedAt  *time.Time
}

// TableName returns the table name for GORM
func (AccountModel) TableName() string {
	return "ledger_accounts"
}

// ToDomain converts the persistence model to a domain Account
func (m *AccountModel) ToDomain() *ledger.Account {
	return &ledger.Account{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		Code:                m.Code,
		Name:                m.Name,
		Description:         m.Description,
		Type:                m.Type,
		ParentID:            m.ParentID,
		Currency:            m.Currency,
		CurrentBalance:      m.CurrentBalance,
		IsActive:            m.IsActive,
		IsSystem:            m.IsSystem,
		DeactivatedAt:       m.DeactivatedAt,
	}
}

// FromDomain populates the persistence model from a domain Account
func (m *AccountModel) FromDomain(a *ledger.Account) {
	m.FromDomainTenantAggregateRoot(a.TenantAggregateRoot)
	m.Code = a.Code
	m.Name = a.Name
	m.Description = a.Description
	m.Type = a.Type
	m.ParentID = a.ParentID
	m.Currency = a.Currency
	m.CurrentBalance = a.CurrentBalance
	m.IsActive = a.IsActive
	m.IsSystem = a.IsSystem
	m.DeactivatedAt = a.DeactivatedAt
}

// AccountModelFromDomain creates a new persistence model from a domain Account
func AccountModelFromDomain(a *ledger.Account) *AccountModel {
	m := &AccountModel{}
	m.FromDomain(a)
	return m
}

// JournalEntryModel is the persistence model for the JournalEntry aggregate root.
type JournalEntryModel struct {
	TenantAggregateModel
	EntryNumber string                    `gorm:"type:varchar(50);not null;index:,unique,composite:tenant_key,priority:2"`
	EntryDate   time.Time                 `gorm:"type:date;not null;index"`
	Description string                    `gorm:"type:varchar(500)"`
	SourceKind  string                    `gorm:"type:varchar(20);not null;default:'manual';index:idx_ledger_entries_source,priority:1"`
	SourceID    *uuid.UUID                `gorm:"type:uuid;index:idx_ledger_entries_source,priority:2"`
	Status      ledger.JournalEntryStatus `gorm:"type:varchar(20);not null;default:'draft';index"`
	Lines       []JournalEntryDetailModel `gorm:"foreignKey:JournalEntryID;references:ID"`
	PostedAt    *time.Time
	PostedBy    *uuid.UUID `gorm:"type:uuid"`
	VoidedAt    *time.Time
	VoidedBy    *uuid.UUID `gorm:"type:uuid"`
	VoidReason  string     `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (JournalEntryModel) TableName() string {
	return "ledger_journal_entries"
}

// ToDomain converts the persistence model to a domain JournalEntry
func (m *JournalEntryModel) ToDomain() (*ledger.JournalEntry, error) {
	source, err := ledger.RestoreSourceDocument(m.SourceKind, m.SourceID)
	if err != nil {
		return nil, fmt.Errorf("journal entry %s: %w", m.ID, err)
	}
	lines := make([]ledger.JournalEntryDetail, len(m.Lines))
	for i := range m.Lines {
		lines[i] = m.Lines[i].ToDomain()
	}
	return &ledger.JournalEntry{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		EntryNumber:         m.EntryNumber,
		EntryDate:           m.EntryDate,
		Description:         m.Description,
		Source:              source,
		Status:              m.Status,
		Lines:               lines,
		PostedAt:            m.PostedAt,
		PostedBy:            m.PostedBy,
		VoidedAt:            m.VoidedAt,
		VoidedBy:            m.VoidedBy,
		VoidReason:          m.VoidReason,
	}, nil
}

// FromDomain populates the persistence model from a domain JournalEntry
func (m *JournalEntryModel) FromDomain(e *ledger.JournalEntry) {
	m.FromDomainTenantAggregateRoot(e.TenantAggregateRoot)
	m.EntryNumber = e.EntryNumber
	m.EntryDate = e.EntryDate
	m.Description = e.Description
	m.SourceKind = e.Source.Kind().String()
	m.SourceID = nil
	if id, ok := e.Source.DocumentID(); ok {
		m.SourceID = &id
	}
	m.Status = e.Status
	m.PostedAt = e.PostedAt
	m.PostedBy = e.PostedBy
	m.VoidedAt = e.VoidedAt
	m.VoidedBy = e.VoidedBy
	m.VoidReason = e.VoidReason
	m.Lines = make([]JournalEntryDetailModel, len(e.Lines))
	for i := range e.Lines {
		m.Lines[i].FromDomain(e.TenantID, e.ID, &e.Lines[i])
	}
}

// JournalEntryModelFromDomain creates a new persistence model from a domain JournalEntry
func JournalEntryModelFromDomain(e *ledger.JournalEntry) *JournalEntryModel {
	m := &JournalEntryModel{}
	m.FromDomain(e)
	return m
}

// JournalEntryDetailModel is one debit or credit line of a journal entry
type JournalEntryDetailModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key"`
	TenantID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	JournalEntryID uuid.UUID       `gorm:"type:uuid;not null;index"`
	LineNo         int             `gorm:"not null"`
	AccountID      uuid.UUID       `gorm:"type:uuid;not null;index"`
	Debit          decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Credit         decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	AppliedDelta   decimal.Decimal `gorm:"type:decimal(18,4);not null;default:0"`
	Description    string          `gorm:"type:varchar(500)"`
	ClientID       *uuid.UUID      `gorm:"type:uuid;index"`
	CaseID         *uuid.UUID      `gorm:"type:uuid"`
	ContractID     *uuid.UUID      `gorm:"type:uuid"`
}

// TableName returns the table name for GORM
func (JournalEntryDetailModel) TableName() string {
	return "ledger_journal_entry_details"
}

// ToDomain converts the persistence model to a domain JournalEntryDetail
func (m *JournalEntryDetailModel) ToDomain() ledger.JournalEntryDetail {
	return ledger.JournalEntryDetail{
		ID:             m.ID,
		JournalEntryID: m.JournalEntryID,
		LineNo:         m.LineNo,
		AccountID:      m.AccountID,
		Debit:          m.Debit,
		Credit:         m.Credit,
		Description:    m.Description,
		Dimensions: ledger.Dimensions{
			ClientID:   m.ClientID,
			CaseID:     m.CaseID,
			ContractID: m.ContractID,
		},
		AppliedDelta: m.AppliedDelta,
	}
}

// FromDomain populates the persistence model from a domain JournalEntryDetail
func (m *JournalEntryDetailModel) FromDomain(tenantID, entryID uuid.UUID, d *ledger.JournalEntryDetail) {
	m.ID = d.ID
	m.TenantID = tenantID
	m.JournalEntryID = entryID
	m.LineNo = d.LineNo
	m.AccountID = d.AccountID
	m.Debit = d.Debit
	m.Credit = d.Credit
	m.AppliedDelta = d.AppliedDelta
	m.Description = d.Description
	m.ClientID = d.Dimensions.ClientID
	m.CaseID = d.Dimensions.CaseID
	m.ContractID = d.Dimensions.ContractID
}

// TenantSettingsModel stores a tenant's role mapping, prefixes and defaults.
// The maps are kept as JSON documents.
type TenantSettingsModel struct {
	TenantID                uuid.UUID                        `gorm:"type:uuid;primary_key"`
	RoleAccounts            map[ledger.AccountRole]uuid.UUID `gorm:"type:jsonb;serializer:json;not null"`
	ExpenseCategoryAccounts map[uuid.UUID]uuid.UUID          `gorm:"type:jsonb;serializer:json;not null"`
	Prefixes                map[ledger.CounterKind]string    `gorm:"type:jsonb;serializer:json;not null"`
	Currency                string                           `gorm:"type:varchar(3);not null"`
	PaymentTermDays         int                              `gorm:"not null;default:30"`
	Version                 int                              `gorm:"not null;default:1"`
	CreatedAt               time.Time                        `gorm:"not null"`
	UpdatedAt               time.Time                        `gorm:"not null"`
}

// TableName returns the table name for GORM
func (TenantSettingsModel) TableName() string {
	return "ledger_settings"
}

// ToDomain converts the persistence model to domain TenantSettings
func (m *TenantSettingsModel) ToDomain() *ledger.TenantSettings {
	s := &ledger.TenantSettings{
		TenantID:                m.TenantID,
		RoleAccounts:            m.RoleAccounts,
		ExpenseCategoryAccounts: m.ExpenseCategoryAccounts,
		Prefixes:                m.Prefixes,
		Currency:                m.Currency,
		PaymentTermDays:         m.PaymentTermDays,
		Version:                 m.Version,
		CreatedAt:               m.CreatedAt,
		UpdatedAt:               m.UpdatedAt,
	}
	if s.RoleAccounts == nil {
		s.RoleAccounts = make(map[ledger.AccountRole]uuid.UUID)
	}
	if s.ExpenseCategoryAccounts == nil {
		s.ExpenseCategoryAccounts = make(map[uuid.UUID]uuid.UUID)
	}
	if s.Prefixes == nil {
		s.Prefixes = make(map[ledger.CounterKind]string)
	}
	return s
}

// TenantSettingsModelFromDomain creates a new persistence model from domain TenantSettings
func TenantSettingsModelFromDomain(s *ledger.TenantSettings) *TenantSettingsModel {
	return &TenantSettingsModel{
		TenantID:                s.TenantID,
		RoleAccounts:            s.RoleAccounts,
		ExpenseCategoryAccounts: s.ExpenseCategoryAccounts,
		Prefixes:                s.Prefixes,
		Currency:                s.Currency,
		PaymentTermDays:         s.PaymentTermDays,
		Version:                 s.Version,
		CreatedAt:               s.CreatedAt,
		UpdatedAt:               s.UpdatedAt,
	}
}

// CounterModel is the last issued document number per tenant and kind
type CounterModel struct {
	TenantID uuid.UUID          `gorm:"type:uuid;primaryKey"`
	Kind     ledger.CounterKind `gorm:"type:varchar(30);primaryKey"`
	Value    int64              `gorm:"not null;default:0"`
}

// TableName returns the table name for GORM
func (CounterModel) TableName() string {
	return "ledger_counters"
}

// LedgerModels lists every ledger table model. The SQL migrations own the
// production schema; this list serves AutoMigrate on throwaway databases.
func LedgerModels() []any {
	return []any{
		&AccountModel{},
		&JournalEntryModel{},
		&JournalEntryDetailModel{},
		&InvoiceModel{},
		&InvoiceItemModel{},
		&PaymentModel{},
		&PaymentApplicationModel{},
		&ExpenseModel{},
		&TenantSettingsModel{},
		&CounterModel{},
	}
}
