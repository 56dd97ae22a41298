package ledger

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lexledger/backend/internal/domain/shared"
)

// Event type names for expenses
const (
	EventTypeExpenseCreated  = "ExpenseCreated"
	EventTypeExpenseApproved = "ExpenseApproved"
	EventTypeExpenseRejected = "ExpenseRejected"
	EventTypeExpensePaid     = "ExpensePaid"
)

// ExpenseCreatedEvent is raised when an expense is recorded
type ExpenseCreatedEvent struct {
	shared.BaseDomainEvent
	ExpenseID     uuid.UUID       `json:"expense_id"`
	ExpenseNumber string          `json:"expense_number"`
	CategoryID    uuid.UUID       `json:"category_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

// EventType returns the event type name
func (e *ExpenseCreatedEvent) EventType() string {
	return EventTypeExpenseCreated
}

// NewExpenseCreatedEvent creates a new ExpenseCreatedEvent
func NewExpenseCreatedEvent(e *Expense) *ExpenseCreatedEvent {
	return &ExpenseCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeExpenseCreated, "Expense", e.ID, e.TenantID),
		ExpenseID:       e.ID,
		ExpenseNumber:   e.ExpenseNumber,
		CategoryID:      e.CategoryID,
		TotalAmount:     e.TotalAmount,
	}
}

// ExpenseApprovedEvent is raised when an expense is approved and recognized
type ExpenseApprovedEvent struct {
	shared.BaseDomainEvent
	ExpenseID      uuid.UUID       `json:"expense_id"`
	ExpenseNumber  string          `json:"expense_number"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	JournalEntryID uuid.UUID       `json:"journal_entry_id"`
}

// EventType returns the event type name
func (e *ExpenseApprovedEvent) EventType() string {
	return EventTypeExpenseApproved
}

// NewExpenseApprovedEvent creates a new ExpenseApprovedEvent
func NewExpenseApprovedEvent(e *Expense) *ExpenseApprovedEvent {
	event := &ExpenseApprovedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeExpenseApproved, "Expense", e.ID, e.TenantID),
		ExpenseID:       e.ID,
		ExpenseNumber:   e.ExpenseNumber,
		TotalAmount:     e.TotalAmount,
	}
	if e.JournalEntryID != nil {
		event.JournalEntryID = *e.JournalEntryID
	}
	return event
}

// ExpenseRejectedEvent is raised when an expense is rejected
type ExpenseRejectedEvent struct {
	shared.BaseDomainEvent
	ExpenseID uuid.UUID `json:"expense_id"`
	Reason    string    `json:"reason"`
}

// EventType returns the event type name
func (e *ExpenseRejectedEvent) EventType() string {
	return EventTypeExpenseRejected
}

// NewExpenseRejectedEvent creates a new ExpenseRejectedEvent
func NewExpenseRejectedEvent(e *Expense) *ExpenseRejectedEvent {
	return &ExpenseRejectedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeExpenseRejected, "Expense", e.ID, e.TenantID),
		ExpenseID:       e.ID,
		Reason:          e.RejectionReason,
	}
}

// ExpensePaidEvent is raised when settlement of an expense is recorded
type ExpensePaidEvent struct {
	shared.BaseDomainEvent
	ExpenseID   uuid.UUID       `json:"expense_id"`
	TotalAmount decimal.Decimal `json:"total_amount"`
	Method      PaymentMethod   `json:"method"`
}

// EventType returns the event type name
func (e *ExpensePaidEvent) EventType() string {
	return EventTypeExpensePaid
}

// NewExpensePaidEvent creates a new ExpensePaidEvent
func NewExpensePaidEvent(e *Expense) *ExpensePaidEvent {
	return &ExpensePaidEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeExpensePaid, "Expense", e.ID, e.TenantID),
		ExpenseID:       e.ID,
		TotalAmount:     e.TotalAmount,
		Method:          e.PaymentMethod,
	}
}
