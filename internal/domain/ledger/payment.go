package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lexledger/backend/internal/domain/shared"
)

// PaymentMethod is how funds were received or paid out
type PaymentMethod string

const (
	PaymentMethodCash         PaymentMethod = "cash"
	PaymentMethodCheck        PaymentMethod = "check"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodOther        PaymentMethod = "other"
)

// IsValid checks if the method is a valid PaymentMethod
func (m PaymentMethod) IsValid() bool {
	switch m {
	case PaymentMethodCash, PaymentMethodCheck, PaymentMethodBankTransfer, PaymentMethodCard, PaymentMethodOther:
		return true
	}
	return false
}

// String returns the string representation of PaymentMethod
func (m PaymentMethod) String() string {
	return string(m)
}

// PaymentStatus tracks how much of a payment has been applied
type PaymentStatus string

const (
	PaymentStatusUnapplied        PaymentStatus = "unapplied"
	PaymentStatusPartiallyApplied PaymentStatus = "partially_applied"
	PaymentStatusApplied          PaymentStatus = "applied"
)

// IsValid checks if the status is a valid PaymentStatus
func (s PaymentStatus) IsValid() bool {
	switch s {
	case PaymentStatusUnapplied, PaymentStatusPartiallyApplied, PaymentStatusApplied:
		return true
	}
	return false
}

// String returns the string representation of PaymentStatus
func (s PaymentStatus) String() string {
	return string(s)
}

// CanApply returns true if some of the payment is still unapplied
func (s PaymentStatus) CanApply() bool {
	return s != PaymentStatusApplied
}

// PaymentApplication is the part of a payment applied to one invoice.
// There is at most one per payment and invoice pair; JournalEntryID points at
// the cash entry of the latest batch that touched it.
type PaymentApplication struct {
	ID             uuid.UUID
	TenantID       uuid.UUID
	PaymentID      uuid.UUID
	InvoiceID      uuid.UUID
	Amount         decimal.Decimal
	JournalEntryID *uuid.UUID
	AppliedAt      time.Time
	AppliedBy      *uuid.UUID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ApplicationLine requests part of a payment to be applied to an invoice
type ApplicationLine struct {
	InvoiceID uuid.UUID
	Amount    decimal.Decimal
}

// Payment is money received from a client
type Payment struct {
	shared.TenantAggregateRoot
	PaymentNumber  string
	ClientID       uuid.UUID
	PaymentDate    time.Time
	Amount         decimal.Decimal
	AppliedAmount  decimal.Decimal
	Method         PaymentMethod
	Reference      string
	Notes          string
	Currency       string
	Status         PaymentStatus
	// first cash receipt entry; later batches are found by the entries' payment source
	JournalEntryID *uuid.UUID
	Applications   []PaymentApplication
}

// NewPayment creates an unapplied payment
func NewPayment(
	tenantID uuid.UUID,
	clientID uuid.UUID,
	paymentNumber string,
	paymentDate time.Time,
	amount decimal.Decimal,
	method PaymentMethod,
	currency string,
) (*Payment, error) {
	if tenantID == uuid.Nil {
		return nil, NewValidationError("Tenant ID cannot be empty")
	}
	if clientID == uuid.Nil {
		return nil, NewValidationError("Client ID cannot be empty")
	}
	if strings.TrimSpace(paymentNumber) == "" {
		return nil, NewValidationError("Payment number cannot be empty")
	}
	if paymentDate.IsZero() {
		return nil, NewValidationError("Payment date is required")
	}
	if !amount.IsPositive() {
		return nil, NewInvalidAmountError("amount", amount)
	}
	if !fitsScale(amount) {
		return nil, NewValidationError("Amount supports at most %d decimal places", AmountPlaces)
	}
	if !method.IsValid() {
		return nil, NewValidationError("Invalid payment method %q", method)
	}
	if !currencyPattern.MatchString(currency) {
		return nil, NewValidationError("Invalid currency code %q", currency)
	}

	payment := &Payment{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		PaymentNumber:       paymentNumber,
		ClientID:            clientID,
		PaymentDate:         paymentDate,
		Amount:              amount,
		AppliedAmount:       decimal.Zero,
		Method:              method,
		Currency:            currency,
		Status:              PaymentStatusUnapplied,
		Applications:        make([]PaymentApplication, 0),
	}

	payment.AddDomainEvent(NewPaymentRecordedEvent(payment))

	return payment, nil
}

// SetReference sets the external reference (check number, transfer id)
func (p *Payment) SetReference(reference, notes string) {
	p.Reference = strings.TrimSpace(reference)
	p.Notes = strings.TrimSpace(notes)
}

// UnappliedAmount is the part of the payment not yet applied to invoices
func (p *Payment) UnappliedAmount() decimal.Decimal {
	return p.Amount.Sub(p.AppliedAmount)
}

// PlanApplications validates a batch against the payment and the target invoices
// without changing anything, and returns the batch total.
//
// Per line, in order: the invoice must exist for the tenant and client, be open,
// the amount must be positive and within its balance due, and the running total
// must stay within the unapplied amount.
func (p *Payment) PlanApplications(lines []ApplicationLine, invoices map[uuid.UUID]*Invoice, now time.Time) (decimal.Decimal, error) {
	if !p.Status.CanApply() {
		return decimal.Zero, NewInvalidStateError("payment", p.ID, p.Status.String(), "apply")
	}
	if len(lines) == 0 {
		return decimal.Zero, NewValidationError("At least one application is required")
	}

	unapplied := p.UnappliedAmount()
	seen := make(map[uuid.UUID]struct{}, len(lines))
	total := decimal.Zero
	for _, line := range lines {
		if _, dup := seen[line.InvoiceID]; dup {
			return decimal.Zero, NewValidationError("Invoice %s appears more than once in the batch", line.InvoiceID)
		}
		seen[line.InvoiceID] = struct{}{}

		invoice, ok := invoices[line.InvoiceID]
		if !ok || invoice == nil || invoice.TenantID != p.TenantID || invoice.ClientID != p.ClientID {
			return decimal.Zero, NewInvoiceNotFoundError(line.InvoiceID)
		}
		if status := invoice.StatusAt(now); !status.IsOpen() {
			return decimal.Zero, NewInvalidStateError("invoice", invoice.ID, status.String(), "apply payment to")
		}
		if !line.Amount.IsPositive() {
			return decimal.Zero, NewInvalidAmountError("amount", line.Amount).WithDetail("invoice_id", line.InvoiceID.String())
		}
		if !fitsScale(line.Amount) {
			return decimal.Zero, NewValidationError("Amount supports at most %d decimal places", AmountPlaces)
		}
		if line.Amount.GreaterThan(invoice.BalanceDue) {
			return decimal.Zero, NewExceedsBalanceError(invoice.ID, line.Amount, invoice.BalanceDue)
		}
		total = total.Add(line.Amount)
		if total.GreaterThan(unapplied) {
			return decimal.Zero, NewExceedsPaymentError(p.ID, total, unapplied)
		}
	}
	return total, nil
}

// ApplyBatch records the applications, updates each invoice's payment progress and
// links the cash receipt entry. The batch is validated in full before any change.
func (p *Payment) ApplyBatch(
	lines []ApplicationLine,
	invoices map[uuid.UUID]*Invoice,
	entryID uuid.UUID,
	actor uuid.UUID,
	at time.Time,
) (decimal.Decimal, error) {
	total, err := p.PlanApplications(lines, invoices, at)
	if err != nil {
		return decimal.Zero, err
	}

	for _, line := range lines {
		if err := invoices[line.InvoiceID].RecordPayment(line.Amount, at); err != nil {
			return decimal.Zero, err
		}
		p.addApplication(line, entryID, actor, at)
	}

	p.AppliedAmount = p.AppliedAmount.Add(total)
	if p.JournalEntryID == nil {
		p.JournalEntryID = &entryID
	}
	p.refreshStatus()
	p.Touch(at)
	p.IncrementVersion()

	p.AddDomainEvent(NewPaymentAppliedEvent(p, lines, total, entryID))

	return total, nil
}

func (p *Payment) addApplication(line ApplicationLine, entryID, actor uuid.UUID, at time.Time) {
	var appliedBy *uuid.UUID
	if actor != uuid.Nil {
		appliedBy = &actor
	}
	for i := range p.Applications {
		app := &p.Applications[i]
		if app.InvoiceID == line.InvoiceID {
			app.Amount = app.Amount.Add(line.Amount)
			app.JournalEntryID = &entryID
			app.AppliedAt = at
			app.AppliedBy = appliedBy
			app.UpdatedAt = at
			return
		}
	}
	p.Applications = append(p.Applications, PaymentApplication{
		ID:             uuid.New(),
		TenantID:       p.TenantID,
		PaymentID:      p.ID,
		InvoiceID:      line.InvoiceID,
		Amount:         line.Amount,
		JournalEntryID: &entryID,
		AppliedAt:      at,
		AppliedBy:      appliedBy,
		CreatedAt:      at,
		UpdatedAt:      at,
	})
}

func (p *Payment) refreshStatus() {
	switch {
	case !p.AppliedAmount.IsPositive():
		p.Status = PaymentStatusUnapplied
	case p.AppliedAmount.GreaterThanOrEqual(p.Amount):
		p.Status = PaymentStatusApplied
	default:
		p.Status = PaymentStatusPartiallyApplied
	}
}

// ApplicationTotal sums the stored applications
func (p *Payment) ApplicationTotal() decimal.Decimal {
	total := decimal.Zero
	for _, app := range p.Applications {
		total = total.Add(app.Amount)
	}
	return total
}
