package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lexledger/backend/internal/domain/shared"
)

// ExpenseApprovalStatus is the approval state of an expense
type ExpenseApprovalStatus string

const (
	ExpenseApprovalPending  ExpenseApprovalStatus = "pending"
	ExpenseApprovalApproved ExpenseApprovalStatus = "approved"
	ExpenseApprovalRejected ExpenseApprovalStatus = "rejected"
)

// IsValid checks if the status is a valid ExpenseApprovalStatus
func (s ExpenseApprovalStatus) IsValid() bool {
	switch s {
	case ExpenseApprovalPending, ExpenseApprovalApproved, ExpenseApprovalRejected:
		return true
	}
	return false
}

// String returns the string representation of ExpenseApprovalStatus
func (s ExpenseApprovalStatus) String() string {
	return string(s)
}

// IsTerminal returns true once a decision was made
func (s ExpenseApprovalStatus) IsTerminal() bool {
	return s == ExpenseApprovalApproved || s == ExpenseApprovalRejected
}

// ExpensePaymentStatus tracks settlement independently of approval
type ExpensePaymentStatus string

const (
	ExpensePaymentUnpaid        ExpensePaymentStatus = "unpaid"
	ExpensePaymentPartiallyPaid ExpensePaymentStatus = "partially_paid"
	ExpensePaymentPaid          ExpensePaymentStatus = "paid"
)

// IsValid checks if the status is a valid ExpensePaymentStatus
func (s ExpensePaymentStatus) IsValid() bool {
	switch s {
	case ExpensePaymentUnpaid, ExpensePaymentPartiallyPaid, ExpensePaymentPaid:
		return true
	}
	return false
}

// String returns the string representation of ExpensePaymentStatus
func (s ExpensePaymentStatus) String() string {
	return string(s)
}

// Expense is a firm cost routed through approval
type Expense struct {
	shared.TenantAggregateRoot
	ExpenseNumber    string
	CategoryID       uuid.UUID
	ExpenseAccountID *uuid.UUID
	Description      string
	ExpenseDate      time.Time
	Amount           decimal.Decimal
	TaxRate          decimal.Decimal
	TaxAmount        decimal.Decimal
	TotalAmount      decimal.Decimal
	Currency         string
	Billable         bool
	ClientID         *uuid.UUID
	CaseID           *uuid.UUID
	ApprovalStatus   ExpenseApprovalStatus
	PaymentStatus    ExpensePaymentStatus
	JournalEntryID   *uuid.UUID
	ApprovedAt       *time.Time
	ApprovedBy       *uuid.UUID
	RejectedAt       *time.Time
	RejectedBy       *uuid.UUID
	RejectionReason  string
	PaidAt           *time.Time
	PaymentMethod    PaymentMethod
	PaymentReference string
}

// NewExpense creates a pending, unpaid expense with tax and total computed
func NewExpense(
	tenantID uuid.UUID,
	expenseNumber string,
	categoryID uuid.UUID,
	description string,
	expenseDate time.Time,
	amount decimal.Decimal,
	taxRate decimal.Decimal,
	currency string,
) (*Expense, error) {
	if tenantID == uuid.Nil {
		return nil, NewValidationError("Tenant ID cannot be empty")
	}
	if strings.TrimSpace(expenseNumber) == "" {
		return nil, NewValidationError("Expense number cannot be empty")
	}
	if categoryID == uuid.Nil {
		return nil, NewValidationError("Expense category is required")
	}
	description = strings.TrimSpace(description)
	if description == "" {
		return nil, NewValidationError("Expense description cannot be empty")
	}
	if expenseDate.IsZero() {
		return nil, NewValidationError("Expense date is required")
	}
	if !amount.IsPositive() {
		return nil, NewInvalidAmountError("amount", amount)
	}
	if !fitsScale(amount) {
		return nil, NewValidationError("Amount supports at most %d decimal places", AmountPlaces)
	}
	if !validRatePercent(taxRate) {
		return nil, NewValidationError("Tax rate must be between 0 and 100")
	}
	if !currencyPattern.MatchString(currency) {
		return nil, NewValidationError("Invalid currency code %q", currency)
	}

	taxAmount := PercentOf(amount, taxRate)
	expense := &Expense{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		ExpenseNumber:       expenseNumber,
		CategoryID:          categoryID,
		Description:         description,
		ExpenseDate:         expenseDate,
		Amount:              amount,
		TaxRate:             taxRate,
		TaxAmount:           taxAmount,
		TotalAmount:         amount.Add(taxAmount),
		Currency:            currency,
		ApprovalStatus:      ExpenseApprovalPending,
		PaymentStatus:       ExpensePaymentUnpaid,
	}

	expense.AddDomainEvent(NewExpenseCreatedEvent(expense))

	return expense, nil
}

// SetBillable marks the expense as rebillable to a client and optional case
func (e *Expense) SetBillable(clientID, caseID *uuid.UUID) error {
	if clientID == nil || *clientID == uuid.Nil {
		return NewValidationError("Billable expenses require a client")
	}
	e.Billable = true
	e.ClientID = clientID
	e.CaseID = caseID
	return nil
}

// SetExpenseAccount overrides the category's mapped expense account
func (e *Expense) SetExpenseAccount(accountID *uuid.UUID) {
	e.ExpenseAccountID = accountID
}

// CanRecognize reports whether an approval entry may be created now.
// Recognition happens once: only pending expenses without an entry qualify.
func (e *Expense) CanRecognize() error {
	if e.ApprovalStatus != ExpenseApprovalPending {
		return NewInvalidStateError("expense", e.ID, e.ApprovalStatus.String(), "approve")
	}
	if e.JournalEntryID != nil {
		return NewInvalidStateError("expense", e.ID, "recognized", "approve")
	}
	return nil
}

// Approve links the recognition entry and moves the expense to approved
func (e *Expense) Approve(entryID uuid.UUID, actor uuid.UUID, at time.Time) error {
	if err := e.CanRecognize(); err != nil {
		return err
	}
	if entryID == uuid.Nil {
		return NewValidationError("Journal entry ID cannot be empty")
	}

	e.ApprovalStatus = ExpenseApprovalApproved
	e.JournalEntryID = &entryID
	e.ApprovedAt = &at
	if actor != uuid.Nil {
		e.ApprovedBy = &actor
	}
	e.Touch(at)
	e.IncrementVersion()

	e.AddDomainEvent(NewExpenseApprovedEvent(e))

	return nil
}

// Reject closes a pending expense without recognition
func (e *Expense) Reject(reason string, actor uuid.UUID, at time.Time) error {
	if e.ApprovalStatus != ExpenseApprovalPending {
		return NewInvalidStateError("expense", e.ID, e.ApprovalStatus.String(), "reject")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return NewValidationError("Rejection reason is required")
	}

	e.ApprovalStatus = ExpenseApprovalRejected
	e.RejectedAt = &at
	if actor != uuid.Nil {
		e.RejectedBy = &actor
	}
	e.RejectionReason = reason
	e.Touch(at)
	e.IncrementVersion()

	e.AddDomainEvent(NewExpenseRejectedEvent(e))

	return nil
}

// MarkPaid records settlement. It does not touch the recognition entry.
func (e *Expense) MarkPaid(method PaymentMethod, paidAt time.Time, reference string, at time.Time) error {
	if e.PaymentStatus == ExpensePaymentPaid {
		return NewInvalidStateError("expense", e.ID, e.PaymentStatus.String(), "mark paid")
	}
	if e.ApprovalStatus == ExpenseApprovalRejected {
		return NewInvalidStateError("expense", e.ID, e.ApprovalStatus.String(), "mark paid")
	}
	if !method.IsValid() {
		return NewValidationError("Invalid payment method %q", method)
	}
	if paidAt.IsZero() {
		paidAt = at
	}

	e.PaymentStatus = ExpensePaymentPaid
	e.PaymentMethod = method
	e.PaidAt = &paidAt
	e.PaymentReference = strings.TrimSpace(reference)
	e.Touch(at)
	e.IncrementVersion()

	e.AddDomainEvent(NewExpensePaidEvent(e))

	return nil
}

// IsPaid returns true once settlement was recorded
func (e *Expense) IsPaid() bool {
	return e.PaymentStatus == ExpensePaymentPaid
}

// IsPending returns true while awaiting approval
func (e *Expense) IsPending() bool {
	return e.ApprovalStatus == ExpenseApprovalPending
}
