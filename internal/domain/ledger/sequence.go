package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// CounterKind names an independent per-tenant numbering sequence
type CounterKind string

const (
	CounterKindInvoice      CounterKind = "invoice"
	CounterKindPayment      CounterKind = "payment"
	CounterKindExpense      CounterKind = "expense"
	CounterKindJournalEntry CounterKind = "journal_entry"
)

// DocumentNumberWidth is the zero-padded width of the numeric part
const DocumentNumberWidth = 5

// AllCounterKinds lists every counter kind
func AllCounterKinds() []CounterKind {
	return []CounterKind{CounterKindInvoice, CounterKindPayment, CounterKindExpense, CounterKindJournalEntry}
}

// IsValid checks if the kind is known
func (k CounterKind) IsValid() bool {
	switch k {
	case CounterKindInvoice, CounterKindPayment, CounterKindExpense, CounterKindJournalEntry:
		return true
	}
	return false
}

// String returns the string representation of CounterKind
func (k CounterKind) String() string {
	return string(k)
}

// DefaultPrefix is used when neither tenant settings nor configuration name one
func (k CounterKind) DefaultPrefix() string {
	switch k {
	case CounterKindInvoice:
		return "INV"
	case CounterKindPayment:
		return "PAY"
	case CounterKindExpense:
		return "EXP"
	case CounterKindJournalEntry:
		return "JE"
	}
	return "DOC"
}

// FormatDocumentNumber renders {prefix}-{n zero-padded to 5 digits}
func FormatDocumentNumber(prefix string, n int64) string {
	return fmt.Sprintf("%s-%0*d", prefix, DocumentNumberWidth, n)
}

// CounterStore is an atomic increment-and-fetch primitive keyed by tenant and kind.
// Increment returns a strictly increasing value per key starting at 1; two callers
// never observe the same value. Values lost to failed callers are not reissued.
type CounterStore interface {
	Increment(ctx context.Context, tenantID uuid.UUID, kind CounterKind) (int64, error)
}
