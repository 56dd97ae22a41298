package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lexledger/backend/internal/domain/ledger"
)

// PageResult is one page of a listing
type PageResult[T any] struct {
	Items    []T   `json:"items"`
	Total    int64 `json:"total"`
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
}

func normalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = 20
	}
	if pageSize > 200 {
		pageSize = 200
	}
	return page, pageSize
}

// ===================== Settings =====================

// ConfigureSettingsInput replaces a tenant's ledger settings
type ConfigureSettingsInput struct {
	TenantID                uuid.UUID               `json:"tenant_id" validate:"required"`
	Currency                string                  `json:"currency" validate:"omitempty,len=3,uppercase"`
	PaymentTermDays         int                     `json:"payment_term_days" validate:"gte=0,lte=365"`
	RoleAccounts            map[string]uuid.UUID    `json:"role_accounts" validate:"dive,keys,oneof=cash accounts_receivable accounts_payable revenue tax_payable tax_expense expense,endkeys,required"`
	ExpenseCategoryAccounts map[uuid.UUID]uuid.UUID `json:"expense_category_accounts"`
	Prefixes                map[string]string       `json:"prefixes" validate:"dive,keys,oneof=invoice payment expense journal_entry,endkeys,required,max=10"`
}

// SettingsResponse represents tenant ledger settings
type SettingsResponse struct {
	TenantID                uuid.UUID               `json:"tenant_id"`
	Currency                string                  `json:"currency"`
	PaymentTermDays         int                     `json:"payment_term_days"`
	RoleAccounts            map[string]uuid.UUID    `json:"role_accounts"`
	ExpenseCategoryAccounts map[uuid.UUID]uuid.UUID `json:"expense_category_accounts"`
	Prefixes                map[string]string       `json:"prefixes"`
	Version                 int                     `json:"version"`
	UpdatedAt               time.Time               `json:"updated_at"`
}

func toSettingsResponse(s *ledger.TenantSettings) *SettingsResponse {
	roles := make(map[string]uuid.UUID, len(s.RoleAccounts))
	for role, id := range s.RoleAccounts {
		roles[role.String()] = id
	}
	categories := make(map[uuid.UUID]uuid.UUID, len(s.ExpenseCategoryAccounts))
	for category, id := range s.ExpenseCategoryAccounts {
		categories[category] = id
	}
	prefixes := make(map[string]string, len(s.Prefixes))
	for kind, prefix := range s.Prefixes {
		prefixes[kind.String()] = prefix
	}
	return &SettingsResponse{
		TenantID:                s.TenantID,
		Currency:                s.Currency,
		PaymentTermDays:         s.PaymentTermDays,
		RoleAccounts:            roles,
		ExpenseCategoryAccounts: categories,
		Prefixes:                prefixes,
		Version:                 s.Version,
		UpdatedAt:               s.UpdatedAt,
	}
}

// ===================== Accounts =====================

// CreateAccountInput represents a request to add an account to the chart
type CreateAccountInput struct {
	TenantID    uuid.UUID  `json:"tenant_id" validate:"required"`
	Code        string     `json:"code" validate:"required,max=32"`
	Name        string     `json:"name" validate:"required,max=200"`
	Description string     `json:"description" validate:"max=1000"`
	Type        string     `json:"type" validate:"required,oneof=asset liability equity revenue expense"`
	ParentID    *uuid.UUID `json:"parent_id"`
	Currency    string     `json:"currency" validate:"omitempty,len=3,uppercase"`
	IsSystem    bool       `json:"is_system"`
	ActorID     uuid.UUID  `json:"actor_id"`
}

// AccountResponse represents an account
type AccountResponse struct {
	ID             uuid.UUID       `json:"id"`
	TenantID       uuid.UUID       `json:"tenant_id"`
	Code           string          `json:"code"`
	Name           string          `json:"name"`
	Description    string          `json:"description,omitempty"`
	Type           string          `json:"type"`
	ParentID       *uuid.UUID      `json:"parent_id,omitempty"`
	Currency       string          `json:"currency"`
	CurrentBalance decimal.Decimal `json:"current_balance"`
	IsActive       bool            `json:"is_active"`
	IsSystem       bool            `json:"is_system"`
	Status         string          `json:"status"`
	DeactivatedAt  *time.Time      `json:"deactivated_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Version        int             `json:"version"`
}

// AccountNodeResponse is an account with its children, ordered by code
type AccountNodeResponse struct {
	AccountResponse
	Children []*AccountNodeResponse `json:"children"`
}

func toAccountResponse(a *ledger.Account) *AccountResponse {
	return &AccountResponse{
		ID:             a.ID,
		TenantID:       a.TenantID,
		Code:           a.Code,
		Name:           a.Name,
		Description:    a.Description,
		Type:           a.Type.String(),
		ParentID:       a.ParentID,
		Currency:       a.Currency,
		CurrentBalance: a.CurrentBalance,
		IsActive:       a.IsActive,
		IsSystem:       a.IsSystem,
		Status:         a.StatusLabel(),
		DeactivatedAt:  a.DeactivatedAt,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
		Version:        a.Version,
	}
}

func toAccountNodeResponse(n *ledger.AccountNode) *AccountNodeResponse {
	resp := &AccountNodeResponse{
		AccountResponse: *toAccountResponse(n.Account),
		Children:        make([]*AccountNodeResponse, 0, len(n.Children)),
	}
	for _, child := range n.Children {
		resp.Children = append(resp.Children, toAccountNodeResponse(child))
	}
	return resp
}

// ===================== Journal entries =====================

// JournalLineInput is one debit or credit line
type JournalLineInput struct {
	AccountID   uuid.UUID       `json:"account_id" validate:"required"`
	Debit       decimal.Decimal `json:"debit" validate:"gte=0"`
	Credit      decimal.Decimal `json:"credit" validate:"gte=0"`
	Description string          `json:"description" validate:"max=500"`
	ClientID    *uuid.UUID      `json:"client_id"`
	CaseID      *uuid.UUID      `json:"case_id"`
	ContractID  *uuid.UUID      `json:"contract_id"`
}

func (l JournalLineInput) toDomain() ledger.JournalLine {
	return ledger.JournalLine{
		AccountID:   l.AccountID,
		Debit:       l.Debit,
		Credit:      l.Credit,
		Description: l.Description,
		Dimensions: ledger.Dimensions{
			ClientID:   l.ClientID,
			CaseID:     l.CaseID,
			ContractID: l.ContractID,
		},
	}
}

func toJournalLines(inputs []JournalLineInput) []ledger.JournalLine {
	lines := make([]ledger.JournalLine, len(inputs))
	for i, in := range inputs {
		lines[i] = in.toDomain()
	}
	return lines
}

// CreateJournalEntryInput represents a request to create a manual draft entry
type CreateJournalEntryInput struct {
	TenantID    uuid.UUID          `json:"tenant_id" validate:"required"`
	EntryDate   time.Time          `json:"entry_date" validate:"required"`
	Description string             `json:"description" validate:"max=500"`
	Lines       []JournalLineInput `json:"lines" validate:"required,min=1,dive"`
	ActorID     uuid.UUID          `json:"actor_id"`
}

// UpdateJournalEntryInput replaces the content of a draft entry
type UpdateJournalEntryInput struct {
	TenantID    uuid.UUID          `json:"tenant_id" validate:"required"`
	EntryID     uuid.UUID          `json:"entry_id" validate:"required"`
	Description string             `json:"description" validate:"max=500"`
	Lines       []JournalLineInput `json:"lines" validate:"required,min=1,dive"`
	ActorID     uuid.UUID          `json:"actor_id"`
}

// VoidJournalEntryInput represents a request to void a posted entry
type VoidJournalEntryInput struct {
	TenantID uuid.UUID `json:"tenant_id" validate:"required"`
	EntryID  uuid.UUID `json:"entry_id" validate:"required"`
	Reason   string    `json:"reason" validate:"required,max=500"`
	ActorID  uuid.UUID `json:"actor_id"`
}

// ListJournalEntriesInput filters journal entry listings
type ListJournalEntriesInput struct {
	TenantID   uuid.UUID  `json:"tenant_id" validate:"required"`
	Status     string     `json:"status" validate:"omitempty,oneof=draft posted voided"`
	SourceKind string     `json:"source_kind" validate:"omitempty,oneof=manual invoice payment expense"`
	SourceID   *uuid.UUID `json:"source_id"`
	AccountID  *uuid.UUID `json:"account_id"`
	FromDate   *time.Time `json:"from_date"`
	ToDate     *time.Time `json:"to_date"`
	Page       int        `json:"page"`
	PageSize   int        `json:"page_size"`
}

// JournalLineResponse represents one stored line
type JournalLineResponse struct {
	ID           uuid.UUID       `json:"id"`
	LineNo       int             `json:"line_no"`
	AccountID    uuid.UUID       `json:"account_id"`
	Debit        decimal.Decimal `json:"debit"`
	Credit       decimal.Decimal `json:"credit"`
	Description  string          `json:"description,omitempty"`
	ClientID     *uuid.UUID      `json:"client_id,omitempty"`
	CaseID       *uuid.UUID      `json:"case_id,omitempty"`
	ContractID   *uuid.UUID      `json:"contract_id,omitempty"`
	AppliedDelta decimal.Decimal `json:"applied_delta"`
}

// JournalEntryResponse represents a journal entry with its lines
type JournalEntryResponse struct {
	ID          uuid.UUID             `json:"id"`
	TenantID    uuid.UUID             `json:"tenant_id"`
	EntryNumber string                `json:"entry_number"`
	EntryDate   time.Time             `json:"entry_date"`
	Description string                `json:"description,omitempty"`
	SourceKind  string                `json:"source_kind"`
	SourceID    *uuid.UUID            `json:"source_id,omitempty"`
	Status      string                `json:"status"`
	TotalDebit  decimal.Decimal       `json:"total_debit"`
	TotalCredit decimal.Decimal       `json:"total_credit"`
	Lines       []JournalLineResponse `json:"lines"`
	PostedAt    *time.Time            `json:"posted_at,omitempty"`
	PostedBy    *uuid.UUID            `json:"posted_by,omitempty"`
	VoidedAt    *time.Time            `json:"voided_at,omitempty"`
	VoidedBy    *uuid.UUID            `json:"voided_by,omitempty"`
	VoidReason  string                `json:"void_reason,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
	UpdatedAt   time.Time             `json:"updated_at"`
	Version     int                   `json:"version"`
}

func toJournalEntryResponse(e *ledger.JournalEntry) *JournalEntryResponse {
	debits, credits := e.Totals()
	resp := &JournalEntryResponse{
		ID:          e.ID,
		TenantID:    e.TenantID,
		EntryNumber: e.EntryNumber,
		EntryDate:   e.EntryDate,
		Description: e.Description,
		SourceKind:  e.Source.Kind().String(),
		Status:      e.Status.String(),
		TotalDebit:  debits,
		TotalCredit: credits,
		Lines:       make([]JournalLineResponse, 0, len(e.Lines)),
		PostedAt:    e.PostedAt,
		PostedBy:    e.PostedBy,
		VoidedAt:    e.VoidedAt,
		VoidedBy:    e.VoidedBy,
		VoidReason:  e.VoidReason,
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
		Version:     e.Version,
	}
	if id, ok := e.Source.DocumentID(); ok {
		resp.SourceID = &id
	}
	for _, line := range e.Lines {
		resp.Lines = append(resp.Lines, JournalLineResponse{
			ID:           line.ID,
			LineNo:       line.LineNo,
			AccountID:    line.AccountID,
			Debit:        line.Debit,
			Credit:       line.Credit,
			Description:  line.Description,
			ClientID:     line.Dimensions.ClientID,
			CaseID:       line.Dimensions.CaseID,
			ContractID:   line.Dimensions.ContractID,
			AppliedDelta: line.AppliedDelta,
		})
	}
	return resp
}

// TrialBalanceLine is one account row of the trial balance
type TrialBalanceLine struct {
	AccountID uuid.UUID       `json:"account_id"`
	Code      string          `json:"code"`
	Name      string          `json:"name"`
	Type      string          `json:"type"`
	Balance   decimal.Decimal `json:"balance"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
}

// TrialBalanceResponse lists every account balance in debit/credit columns
type TrialBalanceResponse struct {
	TenantID    uuid.UUID          `json:"tenant_id"`
	GeneratedAt time.Time          `json:"generated_at"`
	Lines       []TrialBalanceLine `json:"lines"`
	TotalDebit  decimal.Decimal    `json:"total_debit"`
	TotalCredit decimal.Decimal    `json:"total_credit"`
	Balanced    bool               `json:"balanced"`
}

// AccountLedgerLine is one line of the account ledger with its running balance
type AccountLedgerLine struct {
	EntryID        uuid.UUID       `json:"entry_id"`
	EntryNumber    string          `json:"entry_number"`
	EntryDate      time.Time       `json:"entry_date"`
	Status         string          `json:"status"`
	Debit          decimal.Decimal `json:"debit"`
	Credit         decimal.Decimal `json:"credit"`
	Effect         decimal.Decimal `json:"effect"`
	RunningBalance decimal.Decimal `json:"running_balance"`
	Description    string          `json:"description,omitempty"`
}

// AccountLedgerResponse lists the journal lines affecting one account
type AccountLedgerResponse struct {
	Account *AccountResponse    `json:"account"`
	Lines   []AccountLedgerLine `json:"lines"`
	Balance decimal.Decimal     `json:"balance"`
}

// BalanceDrift reports an account whose stored balance differs from its journal
type BalanceDrift struct {
	AccountID  uuid.UUID       `json:"account_id"`
	Code       string          `json:"code"`
	Stored     decimal.Decimal `json:"stored"`
	Computed   decimal.Decimal `json:"computed"`
	Difference decimal.Decimal `json:"difference"`
}

// BalanceVerificationReport is the result of recomputing balances from the journal
type BalanceVerificationReport struct {
	TenantID   uuid.UUID      `json:"tenant_id"`
	CheckedAt  time.Time      `json:"checked_at"`
	Accounts   int            `json:"accounts"`
	Drifts     []BalanceDrift `json:"drifts"`
	Consistent bool           `json:"consistent"`
}

// ===================== Invoices =====================

// InvoiceItemInput is one billed line
type InvoiceItemInput struct {
	Description string          `json:"description" validate:"required,max=500"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price" validate:"gte=0"`
}

// DiscountInput is a percent or fixed discount applied before tax
type DiscountInput struct {
	Kind  string          `json:"kind" validate:"omitempty,oneof=percent fixed"`
	Value decimal.Decimal `json:"value" validate:"gte=0"`
}

func (d DiscountInput) toDomain() ledger.Discount {
	if d.Kind == "" || d.Value.IsZero() {
		return ledger.NoDiscount()
	}
	return ledger.Discount{Kind: ledger.DiscountKind(d.Kind), Value: d.Value}
}

// CreateInvoiceInput represents a request to create a draft invoice
type CreateInvoiceInput struct {
	TenantID         uuid.UUID          `json:"tenant_id" validate:"required"`
	ClientID         uuid.UUID          `json:"client_id" validate:"required"`
	CaseID           *uuid.UUID         `json:"case_id"`
	InvoiceDate      *time.Time         `json:"invoice_date"`
	DueDate          *time.Time         `json:"due_date"`
	Items            []InvoiceItemInput `json:"items" validate:"required,min=1,dive"`
	Discount         DiscountInput      `json:"discount"`
	TaxRate          decimal.Decimal    `json:"tax_rate" validate:"gte=0,lte=100"`
	Currency         string             `json:"currency" validate:"omitempty,len=3,uppercase"`
	RevenueAccountID *uuid.UUID         `json:"revenue_account_id"`
	Notes            string             `json:"notes" validate:"max=2000"`
	ActorID          uuid.UUID          `json:"actor_id"`
}

// SendInvoiceInput represents a request to send a draft invoice
type SendInvoiceInput struct {
	TenantID  uuid.UUID `json:"tenant_id" validate:"required"`
	InvoiceID uuid.UUID `json:"invoice_id" validate:"required"`
	ActorID   uuid.UUID `json:"actor_id"`
}

// CancelInvoiceInput represents a request to cancel an invoice
type CancelInvoiceInput struct {
	TenantID  uuid.UUID `json:"tenant_id" validate:"required"`
	InvoiceID uuid.UUID `json:"invoice_id" validate:"required"`
	Reason    string    `json:"reason" validate:"required,max=500"`
	ActorID   uuid.UUID `json:"actor_id"`
}

// RecordInvoicePaymentInput records a paid amount against an invoice without posting cash
type RecordInvoicePaymentInput struct {
	TenantID  uuid.UUID       `json:"tenant_id" validate:"required"`
	InvoiceID uuid.UUID       `json:"invoice_id" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
	ActorID   uuid.UUID       `json:"actor_id"`
}

// ListInvoicesInput filters invoice listings by effective status
type ListInvoicesInput struct {
	TenantID uuid.UUID  `json:"tenant_id" validate:"required"`
	ClientID *uuid.UUID `json:"client_id"`
	Statuses []string   `json:"statuses" validate:"dive,oneof=draft sent partially_paid paid overdue cancelled"`
	Page     int        `json:"page"`
	PageSize int        `json:"page_size"`
}

// InvoiceItemResponse represents a billed line
type InvoiceItemResponse struct {
	ID          uuid.UUID       `json:"id"`
	LineNo      int             `json:"line_no"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Amount      decimal.Decimal `json:"amount"`
}

// InvoiceResponse represents an invoice; Status is the status effective now
type InvoiceResponse struct {
	ID               uuid.UUID             `json:"id"`
	TenantID         uuid.UUID             `json:"tenant_id"`
	InvoiceNumber    string                `json:"invoice_number"`
	ClientID         uuid.UUID             `json:"client_id"`
	CaseID           *uuid.UUID            `json:"case_id,omitempty"`
	InvoiceDate      time.Time             `json:"invoice_date"`
	DueDate          time.Time             `json:"due_date"`
	Status           string                `json:"status"`
	Items            []InvoiceItemResponse `json:"items"`
	DiscountKind     string                `json:"discount_kind,omitempty"`
	DiscountValue    decimal.Decimal       `json:"discount_value"`
	TaxRate          decimal.Decimal       `json:"tax_rate"`
	Subtotal         decimal.Decimal       `json:"subtotal"`
	DiscountAmount   decimal.Decimal       `json:"discount_amount"`
	TaxAmount        decimal.Decimal       `json:"tax_amount"`
	TotalAmount      decimal.Decimal       `json:"total_amount"`
	AmountPaid       decimal.Decimal       `json:"amount_paid"`
	BalanceDue       decimal.Decimal       `json:"balance_due"`
	Currency         string                `json:"currency"`
	RevenueAccountID *uuid.UUID            `json:"revenue_account_id,omitempty"`
	JournalEntryID   *uuid.UUID            `json:"journal_entry_id,omitempty"`
	Notes            string                `json:"notes,omitempty"`
	SentAt           *time.Time            `json:"sent_at,omitempty"`
	CancelledAt      *time.Time            `json:"cancelled_at,omitempty"`
	CancelReason     string                `json:"cancel_reason,omitempty"`
	CreatedAt        time.Time             `json:"created_at"`
	UpdatedAt        time.Time             `json:"updated_at"`
	Version          int                   `json:"version"`
}

func toInvoiceResponse(i *ledger.Invoice, now time.Time) *InvoiceResponse {
	resp := &InvoiceResponse{
		ID:               i.ID,
		TenantID:         i.TenantID,
		InvoiceNumber:    i.InvoiceNumber,
		ClientID:         i.ClientID,
		CaseID:           i.CaseID,
		InvoiceDate:      i.InvoiceDate,
		DueDate:          i.DueDate,
		Status:           i.StatusAt(now).String(),
		Items:            make([]InvoiceItemResponse, 0, len(i.Items)),
		DiscountKind:     string(i.Discount.Kind),
		DiscountValue:    i.Discount.Value,
		TaxRate:          i.TaxRate,
		Subtotal:         i.Subtotal,
		DiscountAmount:   i.DiscountAmount,
		TaxAmount:        i.TaxAmount,
		TotalAmount:      i.TotalAmount,
		AmountPaid:       i.AmountPaid,
		BalanceDue:       i.BalanceDue,
		Currency:         i.Currency,
		RevenueAccountID: i.RevenueAccountID,
		JournalEntryID:   i.JournalEntryID,
		Notes:            i.Notes,
		SentAt:           i.SentAt,
		CancelledAt:      i.CancelledAt,
		CancelReason:     i.CancelReason,
		CreatedAt:        i.CreatedAt,
		UpdatedAt:        i.UpdatedAt,
		Version:          i.Version,
	}
	for _, item := range i.Items {
		resp.Items = append(resp.Items, InvoiceItemResponse{
			ID:          item.ID,
			LineNo:      item.LineNo,
			Description: item.Description,
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
			Amount:      item.Amount,
		})
	}
	return resp
}

// ===================== Payments =====================

// RecordPaymentInput represents money received from a client
type RecordPaymentInput struct {
	TenantID    uuid.UUID       `json:"tenant_id" validate:"required"`
	ClientID    uuid.UUID       `json:"client_id" validate:"required"`
	PaymentDate *time.Time      `json:"payment_date"`
	Amount      decimal.Decimal `json:"amount"`
	Method      string          `json:"method" validate:"required,oneof=cash check bank_transfer card other"`
	Reference   string          `json:"reference" validate:"max=100"`
	Notes       string          `json:"notes" validate:"max=2000"`
	Currency    string          `json:"currency" validate:"omitempty,len=3,uppercase"`
	ActorID     uuid.UUID       `json:"actor_id"`
}

// ApplicationInput applies part of a payment to one invoice
type ApplicationInput struct {
	InvoiceID uuid.UUID       `json:"invoice_id" validate:"required"`
	Amount    decimal.Decimal `json:"amount"`
}

// ApplyPaymentInput applies a payment to a batch of invoices atomically
type ApplyPaymentInput struct {
	TenantID     uuid.UUID          `json:"tenant_id" validate:"required"`
	PaymentID    uuid.UUID          `json:"payment_id" validate:"required"`
	Applications []ApplicationInput `json:"applications" validate:"required,min=1,dive"`
	ActorID      uuid.UUID          `json:"actor_id"`
}

// PaymentApplicationResponse represents the part of a payment applied to an invoice
type PaymentApplicationResponse struct {
	ID             uuid.UUID       `json:"id"`
	PaymentID      uuid.UUID       `json:"payment_id"`
	InvoiceID      uuid.UUID       `json:"invoice_id"`
	Amount         decimal.Decimal `json:"amount"`
	JournalEntryID *uuid.UUID      `json:"journal_entry_id,omitempty"`
	AppliedAt      time.Time       `json:"applied_at"`
	AppliedBy      *uuid.UUID      `json:"applied_by,omitempty"`
}

// PaymentResponse represents a payment with its applications
type PaymentResponse struct {
	ID              uuid.UUID                    `json:"id"`
	TenantID        uuid.UUID                    `json:"tenant_id"`
	PaymentNumber   string                       `json:"payment_number"`
	ClientID        uuid.UUID                    `json:"client_id"`
	PaymentDate     time.Time                    `json:"payment_date"`
	Amount          decimal.Decimal              `json:"amount"`
	AppliedAmount   decimal.Decimal              `json:"applied_amount"`
	UnappliedAmount decimal.Decimal              `json:"unapplied_amount"`
	Method          string                       `json:"method"`
	Reference       string                       `json:"reference,omitempty"`
	Notes           string                       `json:"notes,omitempty"`
	Currency        string                       `json:"currency"`
	Status          string                       `json:"status"`
	JournalEntryID  *uuid.UUID                   `json:"journal_entry_id,omitempty"`
	Applications    []PaymentApplicationResponse `json:"applications"`
	CreatedAt       time.Time                    `json:"created_at"`
	UpdatedAt       time.Time                    `json:"updated_at"`
	Version         int                          `json:"version"`
}

// ApplyPaymentResult is the outcome of one application batch
type ApplyPaymentResult struct {
	Payment        *PaymentResponse   `json:"payment"`
	Invoices       []*InvoiceResponse `json:"invoices"`
	AppliedTotal   decimal.Decimal    `json:"applied_total"`
	JournalEntryID uuid.UUID          `json:"journal_entry_id"`
}

func toPaymentApplicationResponse(app ledger.PaymentApplication) PaymentApplicationResponse {
	return PaymentApplicationResponse{
		ID:             app.ID,
		PaymentID:      app.PaymentID,
		InvoiceID:      app.InvoiceID,
		Amount:         app.Amount,
		JournalEntryID: app.JournalEntryID,
		AppliedAt:      app.AppliedAt,
		AppliedBy:      app.AppliedBy,
	}
}

func toPaymentResponse(p *ledger.Payment) *PaymentResponse {
	resp := &PaymentResponse{
		ID:              p.ID,
		TenantID:        p.TenantID,
		PaymentNumber:   p.PaymentNumber,
		ClientID:        p.ClientID,
		PaymentDate:     p.PaymentDate,
		Amount:          p.Amount,
		AppliedAmount:   p.AppliedAmount,
		UnappliedAmount: p.UnappliedAmount(),
		Method:          p.Method.String(),
		Reference:       p.Reference,
		Notes:           p.Notes,
		Currency:        p.Currency,
		Status:          p.Status.String(),
		JournalEntryID:  p.JournalEntryID,
		Applications:    make([]PaymentApplicationResponse, 0, len(p.Applications)),
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
		Version:         p.Version,
	}
	for _, app := range p.Applications {
		resp.Applications = append(resp.Applications, toPaymentApplicationResponse(app))
	}
	return resp
}

// ===================== Expenses =====================

// CreateExpenseInput represents a request to record a firm expense
type CreateExpenseInput struct {
	TenantID         uuid.UUID       `json:"tenant_id" validate:"required"`
	CategoryID       uuid.UUID       `json:"category_id" validate:"required"`
	Description      string          `json:"description" validate:"required,max=500"`
	ExpenseDate      *time.Time      `json:"expense_date"`
	Amount           decimal.Decimal `json:"amount"`
	TaxRate          decimal.Decimal `json:"tax_rate" validate:"gte=0,lte=100"`
	Currency         string          `json:"currency" validate:"omitempty,len=3,uppercase"`
	Billable         bool            `json:"billable"`
	ClientID         *uuid.UUID      `json:"client_id" validate:"required_if=Billable true"`
	CaseID           *uuid.UUID      `json:"case_id"`
	ExpenseAccountID *uuid.UUID      `json:"expense_account_id"`
	ActorID          uuid.UUID       `json:"actor_id"`
}

// ApproveExpenseInput represents a request to approve and recognize an expense
type ApproveExpenseInput struct {
	TenantID  uuid.UUID `json:"tenant_id" validate:"required"`
	ExpenseID uuid.UUID `json:"expense_id" validate:"required"`
	ActorID   uuid.UUID `json:"actor_id"`
}

// RejectExpenseInput represents a request to reject an expense
type RejectExpenseInput struct {
	TenantID  uuid.UUID `json:"tenant_id" validate:"required"`
	ExpenseID uuid.UUID `json:"expense_id" validate:"required"`
	Reason    string    `json:"reason" validate:"required,max=500"`
	ActorID   uuid.UUID `json:"actor_id"`
}

// MarkExpensePaidInput records settlement of an expense
type MarkExpensePaidInput struct {
	TenantID  uuid.UUID  `json:"tenant_id" validate:"required"`
	ExpenseID uuid.UUID  `json:"expense_id" validate:"required"`
	Method    string     `json:"method" validate:"required,oneof=cash check bank_transfer card other"`
	PaidAt    *time.Time `json:"paid_at"`
	Reference string     `json:"reference" validate:"max=100"`
	ActorID   uuid.UUID  `json:"actor_id"`
}

// ListExpensesInput filters expense listings
type ListExpensesInput struct {
	TenantID       uuid.UUID  `json:"tenant_id" validate:"required"`
	ApprovalStatus string     `json:"approval_status" validate:"omitempty,oneof=pending approved rejected"`
	PaymentStatus  string     `json:"payment_status" validate:"omitempty,oneof=unpaid partially_paid paid"`
	CategoryID     *uuid.UUID `json:"category_id"`
	ClientID       *uuid.UUID `json:"client_id"`
	Page           int        `json:"page"`
	PageSize       int        `json:"page_size"`
}

// ExpenseResponse represents an expense
type ExpenseResponse struct {
	ID               uuid.UUID       `json:"id"`
	TenantID         uuid.UUID       `json:"tenant_id"`
	ExpenseNumber    string          `json:"expense_number"`
	CategoryID       uuid.UUID       `json:"category_id"`
	ExpenseAccountID *uuid.UUID      `json:"expense_account_id,omitempty"`
	Description      string          `json:"description"`
	ExpenseDate      time.Time       `json:"expense_date"`
	Amount           decimal.Decimal `json:"amount"`
	TaxRate          decimal.Decimal `json:"tax_rate"`
	TaxAmount        decimal.Decimal `json:"tax_amount"`
	TotalAmount      decimal.Decimal `json:"total_amount"`
	Currency         string          `json:"currency"`
	Billable         bool            `json:"billable"`
	ClientID         *uuid.UUID      `json:"client_id,omitempty"`
	CaseID           *uuid.UUID      `json:"case_id,omitempty"`
	ApprovalStatus   string          `json:"approval_status"`
	PaymentStatus    string          `json:"payment_status"`
	JournalEntryID   *uuid.UUID      `json:"journal_entry_id,omitempty"`
	ApprovedAt       *time.Time      `json:"approved_at,omitempty"`
	ApprovedBy       *uuid.UUID      `json:"approved_by,omitempty"`
	RejectedAt       *time.Time      `json:"rejected_at,omitempty"`
	RejectionReason  string          `json:"rejection_reason,omitempty"`
	PaidAt           *time.Time      `json:"paid_at,omitempty"`
	PaymentMethod    string          `json:"payment_method,omitempty"`
	PaymentReference string          `json:"payment_reference,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
	Version          int             `json:"version"`
}

func toExpenseResponse(e *ledger.Expense) *ExpenseResponse {
	return &ExpenseResponse{
		ID:               e.ID,
		TenantID:         e.TenantID,
		ExpenseNumber:    e.ExpenseNumber,
		CategoryID:       e.CategoryID,
		ExpenseAccountID: e.ExpenseAccountID,
		Description:      e.Description,
		ExpenseDate:      e.ExpenseDate,
		Amount:           e.Amount,
		TaxRate:          e.TaxRate,
		TaxAmount:        e.TaxAmount,
		TotalAmount:      e.TotalAmount,
		Currency:         e.Currency,
		Billable:         e.Billable,
		ClientID:         e.ClientID,
		CaseID:           e.CaseID,
		ApprovalStatus:   e.ApprovalStatus.String(),
		PaymentStatus:    e.PaymentStatus.String(),
		JournalEntryID:   e.JournalEntryID,
		ApprovedAt:       e.ApprovedAt,
		ApprovedBy:       e.ApprovedBy,
		RejectedAt:       e.RejectedAt,
		RejectionReason:  e.RejectionReason,
		PaidAt:           e.PaidAt,
		PaymentMethod:    string(e.PaymentMethod),
		PaymentReference: e.PaymentReference,
		CreatedAt:        e.CreatedAt,
		UpdatedAt:        e.UpdatedAt,
		Version:          e.Version,
	}
}
