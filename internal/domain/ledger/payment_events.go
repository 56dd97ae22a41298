package ledger

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lexledger/backend/internal/domain/shared"
)

// Event type names for payments
const (
	EventTypePaymentRecorded = "PaymentRecorded"
	EventTypePaymentApplied  = "PaymentApplied"
)

// PaymentRecordedEvent is raised when funds are received
type PaymentRecordedEvent struct {
	shared.BaseDomainEvent
	PaymentID     uuid.UUID       `json:"payment_id"`
	PaymentNumber string          `json:"payment_number"`
	ClientID      uuid.UUID       `json:"client_id"`
	Amount        decimal.Decimal `json:"amount"`
	Method        PaymentMethod   `json:"method"`
}

// EventType returns the event type name
func (e *PaymentRecordedEvent) EventType() string {
	return EventTypePaymentRecorded
}

// NewPaymentRecordedEvent creates a new PaymentRecordedEvent
func NewPaymentRecordedEvent(p *Payment) *PaymentRecordedEvent {
	return &PaymentRecordedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentRecorded, "Payment", p.ID, p.TenantID),
		PaymentID:       p.ID,
		PaymentNumber:   p.PaymentNumber,
		ClientID:        p.ClientID,
		Amount:          p.Amount,
		Method:          p.Method,
	}
}

// PaymentAppliedEvent is raised when a batch of applications commits
type PaymentAppliedEvent struct {
	shared.BaseDomainEvent
	PaymentID      uuid.UUID         `json:"payment_id"`
	Lines          []ApplicationLine `json:"lines"`
	Total          decimal.Decimal   `json:"total"`
	Unapplied      decimal.Decimal   `json:"unapplied"`
	JournalEntryID uuid.UUID         `json:"journal_entry_id"`
}

// EventType returns the event type name
func (e *PaymentAppliedEvent) EventType() string {
	return EventTypePaymentApplied
}

// NewPaymentAppliedEvent creates a new PaymentAppliedEvent
func NewPaymentAppliedEvent(p *Payment, lines []ApplicationLine, total decimal.Decimal, entryID uuid.UUID) *PaymentAppliedEvent {
	copied := make([]ApplicationLine, len(lines))
	copy(copied, lines)
	return &PaymentAppliedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypePaymentApplied, "Payment", p.ID, p.TenantID),
		PaymentID:       p.ID,
		Lines:           copied,
		Total:           total,
		Unapplied:       p.UnappliedAmount(),
		JournalEntryID:  entryID,
	}
}
