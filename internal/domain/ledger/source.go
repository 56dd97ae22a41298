package ledger

import (
	"fmt"

	"github.com/google/uuid"
)

// SourceKind discriminates the business document a journal entry originates from
type SourceKind string

const (
	SourceKindManual  SourceKind = "manual"
	SourceKindInvoice SourceKind = "invoice"
	SourceKindPayment SourceKind = "payment"
	SourceKindExpense SourceKind = "expense"
)

// IsValid checks if the kind is known
func (k SourceKind) IsValid() bool {
	switch k {
	case SourceKindManual, SourceKindInvoice, SourceKindPayment, SourceKindExpense:
		return true
	}
	return false
}

// String returns the string representation of SourceKind
func (k SourceKind) String() string {
	return string(k)
}

// SourceDocument points a journal entry back at the document that caused it.
// A manual source carries no document ID; every other kind does.
type SourceDocument struct {
	kind SourceKind
	id   uuid.UUID
}

// ManualSource is the origin of entries keyed in directly
func ManualSource() SourceDocument {
	return SourceDocument{kind: SourceKindManual}
}

// InvoiceSource is the origin of revenue recognition entries
func InvoiceSource(invoiceID uuid.UUID) SourceDocument {
	return SourceDocument{kind: SourceKindInvoice, id: invoiceID}
}

// PaymentSource is the origin of cash receipt entries
func PaymentSource(paymentID uuid.UUID) SourceDocument {
	return SourceDocument{kind: SourceKindPayment, id: paymentID}
}

// ExpenseSource is the origin of expense recognition entries
func ExpenseSource(expenseID uuid.UUID) SourceDocument {
	return SourceDocument{kind: SourceKindExpense, id: expenseID}
}

// RestoreSourceDocument rebuilds a source from its stored columns
func RestoreSourceDocument(kind string, id *uuid.UUID) (SourceDocument, error) {
	k := SourceKind(kind)
	if k == "" || k == SourceKindManual {
		return ManualSource(), nil
	}
	if !k.IsValid() {
		return SourceDocument{}, fmt.Errorf("unknown source kind %q", kind)
	}
	if id == nil || *id == uuid.Nil {
		return SourceDocument{}, fmt.Errorf("source kind %q requires a document id", kind)
	}
	return SourceDocument{kind: k, id: *id}, nil
}

// Kind returns the discriminator
func (s SourceDocument) Kind() SourceKind {
	if s.kind == "" {
		return SourceKindManual
	}
	return s.kind
}

// DocumentID returns the referenced document, false for manual entries
func (s SourceDocument) DocumentID() (uuid.UUID, bool) {
	if s.Kind() == SourceKindManual {
		return uuid.Nil, false
	}
	return s.id, true
}

// SourceVisitor handles every source kind. Implementations must cover all four cases.
type SourceVisitor interface {
	VisitManual()
	VisitInvoice(invoiceID uuid.UUID)
	VisitPayment(paymentID uuid.UUID)
	VisitExpense(expenseID uuid.UUID)
}

// Accept dispatches to the visitor method for the source kind
func (s SourceDocument) Accept(v SourceVisitor) {
	switch s.Kind() {
	case SourceKindInvoice:
		v.VisitInvoice(s.id)
	case SourceKindPayment:
		v.VisitPayment(s.id)
	case SourceKindExpense:
		v.VisitExpense(s.id)
	default:
		v.VisitManual()
	}
}

// String renders the source as "kind" or "kind:id"
func (s SourceDocument) String() string {
	d := &sourceDescriber{}
	s.Accept(d)
	return d.out
}

type sourceDescriber struct {
	out string
}

func (d *sourceDescriber) VisitManual() { d.out = string(SourceKindManual) }

func (d *sourceDescriber) VisitInvoice(id uuid.UUID) { d.out = fmt.Sprintf("%s:%s", SourceKindInvoice, id) }

func (d *sourceDescriber) VisitPayment(id uuid.UUID) { d.out = fmt.Sprintf("%s:%s", SourceKindPayment, id) }

func (d *sourceDescriber) VisitExpense(id uuid.UUID) { d.out = fmt.Sprintf("%s:%s", SourceKindExpense, id) }
