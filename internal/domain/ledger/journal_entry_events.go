package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lexledger/backend/internal/domain/shared"
)

// Event type names for journal entries
const (
	EventTypeJournalEntryPosted = "JournalEntryPosted"
	EventTypeJournalEntryVoided = "JournalEntryVoided"
)

// JournalEntryPostedEvent is raised when an entry's lines reach account balances
type JournalEntryPostedEvent struct {
	shared.BaseDomainEvent
	EntryID     uuid.UUID       `json:"entry_id"`
	EntryNumber string          `json:"entry_number"`
	SourceKind  SourceKind      `json:"source_kind"`
	Amount      decimal.Decimal `json:"amount"`
	LineCount   int             `json:"line_count"`
	PostedAt    time.Time       `json:"posted_at"`
}

// EventType returns the event type name
func (e *JournalEntryPostedEvent) EventType() string {
	return EventTypeJournalEntryPosted
}

// NewJournalEntryPostedEvent creates a new JournalEntryPostedEvent
func NewJournalEntryPostedEvent(entry *JournalEntry, amount decimal.Decimal) *JournalEntryPostedEvent {
	var postedAt time.Time
	if entry.PostedAt != nil {
		postedAt = *entry.PostedAt
	}
	return &JournalEntryPostedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeJournalEntryPosted, "JournalEntry", entry.ID, entry.TenantID),
		EntryID:         entry.ID,
		EntryNumber:     entry.EntryNumber,
		SourceKind:      entry.Source.Kind(),
		Amount:          amount,
		LineCount:       len(entry.Lines),
		PostedAt:        postedAt,
	}
}

// JournalEntryVoidedEvent is raised when a posted entry is reversed
type JournalEntryVoidedEvent struct {
	shared.BaseDomainEvent
	EntryID     uuid.UUID       `json:"entry_id"`
	EntryNumber string          `json:"entry_number"`
	SourceKind  SourceKind      `json:"source_kind"`
	Amount      decimal.Decimal `json:"amount"`
	Reason      string          `json:"reason"`
}

// EventType returns the event type name
func (e *JournalEntryVoidedEvent) EventType() string {
	return EventTypeJournalEntryVoided
}

// NewJournalEntryVoidedEvent creates a new JournalEntryVoidedEvent
func NewJournalEntryVoidedEvent(entry *JournalEntry, amount decimal.Decimal) *JournalEntryVoidedEvent {
	return &JournalEntryVoidedEvent{
		BaseDomainEvent: shared.NewBaseDomainEvent(EventTypeJournalEntryVoided, "JournalEntry", entry.ID, entry.TenantID),
		EntryID:         entry.ID,
		EntryNumber:     entry.EntryNumber,
		SourceKind:      entry.Source.Kind(),
		Amount:          amount,
		Reason:          entry.VoidReason,
	}
}
