package ledger

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lexledger/backend/internal/domain/shared"
)

// Event type names for invoices
const (
	EventTypeInvoiceCreated         = "InvoiceCreated"
	EventTypeInvoiceSent            = "InvoiceSent"
	EventTypeInvoicePaymentRecorded = "InvoicePaymentRecorded"
	EventTypeInvoiceCancelled       = "InvoiceCancelled"
)

// InvoiceCreatedEvent is raised when a draft invoice is created
type InvoiceCreatedEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID       `json:"invoice_id"`
	InvoiceNumber string          `json:"invoice_number"`
	ClientID      uuid.UUID       `json:"client_id"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
}

// EventType returns the event type name
func (e *InvoiceCreatedEvent) EventType() string {
	return EventTypeInvoiceCreated
}

// NewInvoiceCreatedEvent creates a new InvoiceCreatedEvent
func NewInvoiceCreatedEvent(i *Invoice) *InvoiceCreatedEvent {
	return &InvoiceCreatedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceCreated, "Invoice", i.ID, i.TenantID),
		InvoiceID:       i.ID,
		InvoiceNumber:   i.InvoiceNumber,
		ClientID:        i.ClientID,
		TotalAmount:     i.TotalAmount,
	}
}

// InvoiceSentEvent is raised when revenue for an invoice is recognized
type InvoiceSentEvent struct {
	shared.BaseDomainEvent
	InvoiceID      uuid.UUID       `json:"invoice_id"`
	InvoiceNumber  string          `json:"invoice_number"`
	ClientID       uuid.UUID       `json:"client_id"`
	TotalAmount    decimal.Decimal `json:"total_amount"`
	JournalEntryID uuid.UUID       `json:"journal_entry_id"`
}

// EventType returns the event type name
func (e *InvoiceSentEvent) EventType() string {
	return EventTypeInvoiceSent
}

// NewInvoiceSentEvent creates a new InvoiceSentEvent
func NewInvoiceSentEvent(i *Invoice) *InvoiceSentEvent {
	event := &InvoiceSentEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceSent, "Invoice", i.ID, i.TenantID),
		InvoiceID:       i.ID,
		InvoiceNumber:   i.InvoiceNumber,
		ClientID:        i.ClientID,
		TotalAmount:     i.TotalAmount,
	}
	if i.JournalEntryID != nil {
		event.JournalEntryID = *i.JournalEntryID
	}
	return event
}

// InvoicePaymentRecordedEvent is raised when an invoice's balance due drops
type InvoicePaymentRecordedEvent struct {
	shared.BaseDomainEvent
	InvoiceID  uuid.UUID       `json:"invoice_id"`
	Amount     decimal.Decimal `json:"amount"`
	AmountPaid decimal.Decimal `json:"amount_paid"`
	BalanceDue decimal.Decimal `json:"balance_due"`
	Status     InvoiceStatus   `json:"status"`
}

// EventType returns the event type name
func (e *InvoicePaymentRecordedEvent) EventType() string {
	return EventTypeInvoicePaymentRecorded
}

// NewInvoicePaymentRecordedEvent creates a new InvoicePaymentRecordedEvent
func NewInvoicePaymentRecordedEvent(i *Invoice, amount decimal.Decimal) *InvoicePaymentRecordedEvent {
	return &InvoicePaymentRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoicePaymentRecorded, "Invoice", i.ID, i.TenantID),
		InvoiceID:       i.ID,
		Amount:          amount,
		AmountPaid:      i.AmountPaid,
		BalanceDue:      i.BalanceDue,
		Status:          i.Status,
	}
}

// InvoiceCancelledEvent is raised when an invoice is cancelled
type InvoiceCancelledEvent struct {
	shared.BaseDomainEvent
	InvoiceID     uuid.UUID `json:"invoice_id"`
	InvoiceNumber string    `json:"invoice_number"`
	Reason        string    `json:"reason"`
}

// EventType returns the event type name
func (e *InvoiceCancelledEvent) EventType() string {
	return EventTypeInvoiceCancelled
}

// NewInvoiceCancelledEvent creates a new InvoiceCancelledEvent
func NewInvoiceCancelledEvent(i *Invoice) *InvoiceCancelledEvent {
	return &InvoiceCancelledEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeInvoiceCancelled, "Invoice", i.ID, i.TenantID),
		InvoiceID:       i.ID,
		InvoiceNumber:   i.InvoiceNumber,
		Reason:          i.CancelReason,
	}
}
