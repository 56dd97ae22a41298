package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lexledger/backend/internal/domain/ledger"
)

// InvoiceModel is the persistence model for the Invoice aggregate root.
// The stored status is the last transition; overdue is derived at read time.
type InvoiceModel struct {
	TenantAggregateModel
	InvoiceNumber    string               `gorm:"type:varchar(50);not null;index:,unique,composite:tenant_key,priority:2"`
	ClientID         uuid.UUID            `gorm:"type:uuid;not null;index"`
	CaseID           *uuid.UUID           `gorm:"type:uuid;index"`
	InvoiceDate      time.Time            `gorm:"type:date;not null"`
	DueDate          time.Time            `gorm:"type:date;not null;index"`
	Status           ledger.InvoiceStatus `gorm:"type:varchar(20);not null;default:'draft';index"`
	Items            []InvoiceItemModel   `gorm:"foreignKey:InvoiceID;references:ID"`
	DiscountKind     ledger.DiscountKind  `gorm:"type:varchar(10)"`
	DiscountValue    decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	TaxRate          decimal.Decimal      `gorm:"type:decimal(7,4);not null;default:0"`
	Subtotal         decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	DiscountAmount   decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	TaxAmount        decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	TotalAmount      decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	AmountPaid       decimal.Decimal      `gorm:"type:decimal(18,4);not null;default:0"`
	BalanceDue       decimal.Decimal      `gorm:"type:decimal(18,4);not null"`
	Currency         string               `gorm:"type:varchar(3);not null"`
	RevenueAccountID *uuid.UUID           `gorm:"type:uuid"`
	JournalEntryID   *uuid.UUID           `gorm:"type:uuid"`
	Notes            string               `gorm:"type:text"`
	SentAt           *time.Time
	SentBy           *uuid.UUID `gorm:"type:uuid"`
	CancelledAt      *time.Time
	CancelledBy      *uuid.UUID `gorm:"type:uuid"`
	CancelReason     string     `gorm:"type:varchar(500)"`
}

// TableName returns the table name for GORM
func (InvoiceModel) TableName() string {
	return "ledger_invoices"
}

// ToDomain converts the persistence model to a domain Invoice
func (m *InvoiceModel) ToDomain() *ledger.Invoice {
	items := make([]ledger.InvoiceLineItem, len(m.Items))
	for i := range m.Items {
		items[i] = m.Items[i].ToDomain()
	}
	return &ledger.Invoice{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		InvoiceNumber:       m.InvoiceNumber,
		ClientID:            m.ClientID,
		CaseID:              m.CaseID,
		InvoiceDate:         m.InvoiceDate,
		DueDate:             m.DueDate,
		Status:              m.Status,
		Items:               items,
		Discount:            ledger.Discount{Kind: m.DiscountKind, Value: m.DiscountValue},
		TaxRate:             m.TaxRate,
		Subtotal:            m.Subtotal,
		DiscountAmount:      m.DiscountAmount,
		TaxAmount:           m.TaxAmount,
		TotalAmount:         m.TotalAmount,
		AmountPaid:          m.AmountPaid,
		BalanceDue:          m.BalanceDue,
		Currency:            m.Currency,
		RevenueAccountID:    m.RevenueAccountID,
		JournalEntryID:      m.JournalEntryID,
		Notes:               m.Notes,
		SentAt:              m.SentAt,
		SentBy:              m.SentBy,
		CancelledAt:         m.CancelledAt,
		CancelledBy:         m.CancelledBy,
		CancelReason:        m.CancelReason,
	}
}

// FromDomain populates the persistence model from a domain Invoice
func (m *InvoiceModel) FromDomain(inv *ledger.Invoice) {
	m.FromDomainTenantAggregateRoot(inv.TenantAggregateRoot)
	m.InvoiceNumber = inv.InvoiceNumber
	m.ClientID = inv.ClientID
	m.CaseID = inv.CaseID
	m.InvoiceDate = inv.InvoiceDate
	m.DueDate = inv.DueDate
	m.Status = inv.Status
	m.DiscountKind = inv.Discount.Kind
	m.DiscountValue = inv.Discount.Value
	m.TaxRate = inv.TaxRate
	m.Subtotal = inv.Subtotal
	m.DiscountAmount = inv.DiscountAmount
	m.TaxAmount = inv.TaxAmount
	m.TotalAmount = inv.TotalAmount
	m.AmountPaid = inv.AmountPaid
	m.BalanceDue = inv.BalanceDue
	m.Currency = inv.Currency
	m.RevenueAccountID = inv.RevenueAccountID
	m.JournalEntryID = inv.JournalEntryID
	m.Notes = inv.Notes
	m.SentAt = inv.SentAt
	m.SentBy = inv.SentBy
	m.CancelledAt = inv.CancelledAt
	m.CancelledBy = inv.CancelledBy
	m.CancelReason = inv.CancelReason
	m.Items = make([]InvoiceItemModel, len(inv.Items))
	for i := range inv.Items {
		m.Items[i].FromDomain(inv.ID, &inv.Items[i])
	}
}

// InvoiceModelFromDomain creates a new persistence model from a domain Invoice
func InvoiceModelFromDomain(inv *ledger.Invoice) *InvoiceModel {
	m := &InvoiceModel{}
	m.FromDomain(inv)
	return m
}

// InvoiceItemModel is one billed line of an invoice
type InvoiceItemModel struct {
	ID          uuid.UUID       `gorm:"type:uuid;primary_key"`
	InvoiceID   uuid.UUID       `gorm:"type:uuid;not null;index"`
	LineNo      int             `gorm:"not null"`
	Description string          `gorm:"type:varchar(500);not null"`
	Quantity    decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	UnitPrice   decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	Amount      decimal.Decimal `gorm:"type:decimal(18,4);not null"`
}

// TableName returns the table name for GORM
func (InvoiceItemModel) TableName() string {
	return "ledger_invoice_items"
}

// ToDomain converts the persistence model to a domain InvoiceLineItem
func (m *InvoiceItemModel) ToDomain() ledger.InvoiceLineItem {
	return ledger.InvoiceLineItem{
		ID:          m.ID,
		InvoiceID:   m.InvoiceID,
		LineNo:      m.LineNo,
		Description: m.Description,
		Quantity:    m.Quantity,
		UnitPrice:   m.UnitPrice,
		Amount:      m.Amount,
	}
}

// FromDomain populates the persistence model from a domain InvoiceLineItem
func (m *InvoiceItemModel) FromDomain(invoiceID uuid.UUID, item *ledger.InvoiceLineItem) {
	m.ID = item.ID
	m.InvoiceID = invoiceID
	m.LineNo = item.LineNo
	m.Description = item.Description
	m.Quantity = item.Quantity
	m.UnitPrice = item.UnitPrice
	m.Amount = item.Amount
}

// PaymentModel is the persistence model for the Payment aggregate root.
type PaymentModel struct {
	TenantAggregateModel
	PaymentNumber  string                    `gorm:"type:varchar(50);not null;index:,unique,composite:tenant_key,priority:2"`
	ClientID       uuid.UUID                 `gorm:"type:uuid;not null;index"`
	PaymentDate    time.Time                 `gorm:"type:date;not null"`
	Amount         decimal.Decimal           `gorm:"type:decimal(18,4);not null"`
	AppliedAmount  decimal.Decimal           `gorm:"type:decimal(18,4);not null;default:0"`
	Method         ledger.PaymentMethod      `gorm:"type:varchar(20);not null"`
	Reference      string                    `gorm:"type:varchar(100)"`
	Notes          string                    `gorm:"type:text"`
	Currency       string                    `gorm:"type:varchar(3);not null"`
	Status         ledger.PaymentStatus      `gorm:"type:varchar(20);not null;default:'unapplied';index"`
	JournalEntryID *uuid.UUID                `gorm:"type:uuid"`
	Applications   []PaymentApplicationModel `gorm:"foreignKey:PaymentID;references:ID"`
}

// TableName returns the table name for GORM
func (PaymentModel) TableName() string {
	return "ledger_payments"
}

// ToDomain converts the persistence model to a domain Payment
func (m *PaymentModel) ToDomain() *ledger.Payment {
	apps := make([]ledger.PaymentApplication, len(m.Applications))
	for i := range m.Applications {
		apps[i] = m.Applications[i].ToDomain()
	}
	return &ledger.Payment{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		PaymentNumber:       m.PaymentNumber,
		ClientID:            m.ClientID,
		PaymentDate:         m.PaymentDate,
		Amount:              m.Amount,
		AppliedAmount:       m.AppliedAmount,
		Method:              m.Method,
		Reference:           m.Reference,
		Notes:               m.Notes,
		Currency:            m.Currency,
		Status:              m.Status,
		JournalEntryID:      m.JournalEntryID,
		Applications:        apps,
	}
}

// FromDomain populates the persistence model from a domain Payment
func (m *PaymentModel) FromDomain(p *ledger.Payment) {
	m.FromDomainTenantAggregateRoot(p.TenantAggregateRoot)
	m.PaymentNumber = p.PaymentNumber
	m.ClientID = p.ClientID
	m.PaymentDate = p.PaymentDate
	m.Amount = p.Amount
	m.AppliedAmount = p.AppliedAmount
	m.Method = p.Method
	m.Reference = p.Reference
	m.Notes = p.Notes
	m.Currency = p.Currency
	m.Status = p.Status
	m.JournalEntryID = p.JournalEntryID
	m.Applications = make([]PaymentApplicationModel, len(p.Applications))
	for i := range p.Applications {
		m.Applications[i].FromDomain(&p.Applications[i])
	}
}

// PaymentModelFromDomain creates a new persistence model from a domain Payment
func PaymentModelFromDomain(p *ledger.Payment) *PaymentModel {
	m := &PaymentModel{}
	m.FromDomain(p)
	return m
}

// PaymentApplicationModel is the part of a payment applied to one invoice
type PaymentApplicationModel struct {
	ID             uuid.UUID       `gorm:"type:uuid;primary_key"`
	TenantID       uuid.UUID       `gorm:"type:uuid;not null;index"`
	PaymentID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_ledger_applications_payment_invoice,priority:1"`
	InvoiceID      uuid.UUID       `gorm:"type:uuid;not null;uniqueIndex:idx_ledger_applications_payment_invoice,priority:2;index"`
	Amount         decimal.Decimal `gorm:"type:decimal(18,4);not null"`
	JournalEntryID *uuid.UUID      `gorm:"type:uuid"`
	AppliedAt      time.Time       `gorm:"not null"`
	AppliedBy      *uuid.UUID      `gorm:"type:uuid"`
	CreatedAt      time.Time       `gorm:"not null"`
	UpdatedAt      time.Time       `gorm:"not null"`
}

// TableName returns the table name for GORM
func (PaymentApplicationModel) TableName() string {
	return "ledger_payment_applications"
}

// ToDomain converts the persistence model to a domain PaymentApplication
func (m *PaymentApplicationModel) ToDomain() ledger.PaymentApplication {
	return ledger.PaymentApplication{
		ID:             m.ID,
		TenantID:       m.TenantID,
		PaymentID:      m.PaymentID,
		InvoiceID:      m.InvoiceID,
		Amount:         m.Amount,
		JournalEntryID: m.JournalEntryID,
		AppliedAt:      m.AppliedAt,
		AppliedBy:      m.AppliedBy,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// FromDomain populates the persistence model from a domain PaymentApplication
func (m *PaymentApplicationModel) FromDomain(a *ledger.PaymentApplication) {
	m.ID = a.ID
	m.TenantID = a.TenantID
	m.PaymentID = a.PaymentID
	m.InvoiceID = a.InvoiceID
	m.Amount = a.Amount
	m.JournalEntryID = a.JournalEntryID
	m.AppliedAt = a.AppliedAt
	m.AppliedBy = a.AppliedBy
	m.CreatedAt = a.CreatedAt
	m.UpdatedAt = a.UpdatedAt
}

// ExpenseModel is the persistence model for the Expense aggregate root.
type ExpenseModel struct {
	TenantAggregateModel
	ExpenseNumber    string                       `gorm:"type:varchar(50);not null;index:,unique,composite:tenant_key,priority:2"`
	CategoryID       uuid.UUID                    `gorm:"type:uuid;not null;index"`
	ExpenseAccountID *uuid.UUID                   `gorm:"type:uuid"`
	Description      string                       `gorm:"type:varchar(500);not null"`
	ExpenseDate      time.Time                    `gorm:"type:date;not null"`
	Amount           decimal.Decimal              `gorm:"type:decimal(18,4);not null"`
	TaxRate          decimal.Decimal              `gorm:"type:decimal(7,4);not null;default:0"`
	TaxAmount        decimal.Decimal              `gorm:"type:decimal(18,4);not null;default:0"`
	TotalAmount      decimal.Decimal              `gorm:"type:decimal(18,4);not null"`
	Currency         string                       `gorm:"type:varchar(3);not null"`
	Billable         bool                         `gorm:"not null;default:false"`
	ClientID         *uuid.UUID                   `gorm:"type:uuid;index"`
	CaseID           *uuid.UUID                   `gorm:"type:uuid"`
	ApprovalStatus   ledger.ExpenseApprovalStatus `gorm:"type:varchar(20);not null;default:'pending';index"`
	PaymentStatus    ledger.ExpensePaymentStatus  `gorm:"type:varchar(20);not null;default:'unpaid';index"`
	JournalEntryID   *uuid.UUID                   `gorm:"type:uuid"`
	ApprovedAt       *time.Time
	ApprovedBy       *uuid.UUID `gorm:"type:uuid"`
	RejectedAt       *time.Time
	RejectedBy       *uuid.UUID           `gorm:"type:uuid"`
	RejectionReason  string               `gorm:"type:varchar(500)"`
	PaidAt           *time.Time           `gorm:"type:date"`
	PaymentMethod    ledger.PaymentMethod `gorm:"type:varchar(20)"`
	PaymentReference string               `gorm:"type:varchar(100)"`
}

// TableName returns the table name for GORM
func (ExpenseModel) TableName() string {
	return "ledger_expenses"
}

// ToDomain converts the persistence model to a domain Expense
func (m *ExpenseModel) ToDomain() *ledger.Expense {
	return &ledger.Expense{
		TenantAggregateRoot: m.ToTenantAggregateRoot(),
		ExpenseNumber:       m.ExpenseNumber,
		CategoryID:          m.CategoryID,
		ExpenseAccountID:    m.ExpenseAccountID,
		Description:         m.Description,
		ExpenseDate:         m.ExpenseDate,
		Amount:              m.Amount,
		TaxRate:             m.TaxRate,
		TaxAmount:           m.TaxAmount,
		TotalAmount:         m.TotalAmount,
		Currency:            m.Currency,
		Billable:            m.Billable,
		ClientID:            m.ClientID,
		CaseID:              m.CaseID,
		ApprovalStatus:      m.ApprovalStatus,
		PaymentStatus:       m.PaymentStatus,
		JournalEntryID:      m.JournalEntryID,
		ApprovedAt:          m.ApprovedAt,
		ApprovedBy:          m.ApprovedBy,
		RejectedAt:          m.RejectedAt,
		RejectedBy:          m.RejectedBy,
		RejectionReason:     m.RejectionReason,
		PaidAt:              m.PaidAt,
		PaymentMethod:       m.PaymentMethod,
		PaymentReference:    m.PaymentReference,
	}
}

// FromDomain populates the persistence model from a domain Expense
func (m *ExpenseModel) FromDomain(e *ledger.Expense) {
	m.FromDomainTenantAggregateRoot(e.TenantAggregateRoot)
	m.ExpenseNumber = e.ExpenseNumber
	m.CategoryID = e.CategoryID
	m.ExpenseAccountID = e.ExpenseAccountID
	m.Description = e.Description
	m.ExpenseDate = e.ExpenseDate
	m.Amount = e.Amount
	m.TaxRate = e.TaxRate
	m.TaxAmount = e.TaxAmount
	m.TotalAmount = e.TotalAmount
	m.Currency = e.Currency
	m.Billable = e.Billable
	m.ClientID = e.ClientID
	m.CaseID = e.CaseID
	m.ApprovalStatus = e.ApprovalStatus
	m.PaymentStatus = e.PaymentStatus
	m.JournalEntryID = e.JournalEntryID
	m.ApprovedAt = e.ApprovedAt
	m.ApprovedBy = e.ApprovedBy
	m.RejectedAt = e.RejectedAt
	m.RejectedBy = e.RejectedBy
	m.RejectionReason = e.RejectionReason
	m.PaidAt = e.PaidAt
	m.PaymentMethod = e.PaymentMethod
	m.PaymentReference = e.PaymentReference
}

// ExpenseModelFromDomain creates a new persistence model from a domain Expense
func ExpenseModelFromDomain(e *ledger.Expense) *ExpenseModel {
	m := &ExpenseModel{}
	m.FromDomain(e)
	return m
}
