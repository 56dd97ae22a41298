package ledger

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lexledger/backend/internal/domain/shared"
)

// InvoiceStatus is the lifecycle state of an invoice
type InvoiceStatus string

const (
	InvoiceStatusDraft         InvoiceStatus = "draft"
	InvoiceStatusSent          InvoiceStatus = "sent"
	InvoiceStatusPartiallyPaid InvoiceStatus = "partially_paid"
	InvoiceStatusPaid          InvoiceStatus = "paid"
	InvoiceStatusOverdue       InvoiceStatus = "overdue"
	InvoiceStatusCancelled     InvoiceStatus = "cancelled"
)

// IsValid checks if the status is a valid InvoiceStatus
func (s InvoiceStatus) IsValid() bool {
	switch s {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusPartiallyPaid,
		InvoiceStatusPaid, InvoiceStatusOverdue, InvoiceStatusCancelled:
		return true
	}
	return false
}

// String returns the string representation of InvoiceStatus
func (s InvoiceStatus) String() string {
	return string(s)
}

// IsTerminal returns true for paid and cancelled invoices
func (s InvoiceStatus) IsTerminal() bool {
	return s == InvoiceStatusPaid || s == InvoiceStatusCancelled
}

// IsOpen returns true if the invoice has been sent and can still receive payments
func (s InvoiceStatus) IsOpen() bool {
	return s == InvoiceStatusSent || s == InvoiceStatusPartiallyPaid || s == InvoiceStatusOverdue
}

// DiscountKind selects how a discount value is interpreted
type DiscountKind string

const (
	DiscountNone    DiscountKind = ""
	DiscountPercent DiscountKind = "percent"
	DiscountFixed   DiscountKind = "fixed"
)

// Discount is applied to the subtotal before tax
type Discount struct {
	Kind  DiscountKind
	Value decimal.Decimal
}

// NoDiscount is the zero discount
func NoDiscount() Discount {
	return Discount{Kind: DiscountNone, Value: decimal.Zero}
}

func (d Discount) validate() error {
	switch d.Kind {
	case DiscountNone:
		return nil
	case DiscountPercent:
		if !validRatePercent(d.Value) {
			return NewValidationError("Discount percent must be between 0 and 100")
		}
	case DiscountFixed:
		if d.Value.IsNegative() {
			return NewValidationError("Discount amount cannot be negative")
		}
	default:
		return NewValidationError("Unknown discount kind %q", d.Kind)
	}
	return nil
}

// AmountOn returns the discount for a subtotal
func (d Discount) AmountOn(subtotal decimal.Decimal) decimal.Decimal {
	switch d.Kind {
	case DiscountPercent:
		return PercentOf(subtotal, d.Value)
	case DiscountFixed:
		return RoundMoney(d.Value)
	}
	return decimal.Zero
}

// InvoiceLineItem is one billed line
type InvoiceLineItem struct {
	ID          uuid.UUID
	InvoiceID   uuid.UUID
	LineNo      int
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal
	Amount      decimal.Decimal
}

// NewInvoiceLineItem creates a line item; Amount is quantity × unit price
func NewInvoiceLineItem(description string, quantity, unitPrice decimal.Decimal) (InvoiceLineItem, error) {
	description = strings.TrimSpace(description)
	if description == "" {
		return InvoiceLineItem{}, NewValidationError("Line item description cannot be empty")
	}
	if !quantity.IsPositive() {
		return InvoiceLineItem{}, NewInvalidAmountError("quantity", quantity)
	}
	if unitPrice.IsNegative() {
		return InvoiceLineItem{}, NewValidationError("Unit price cannot be negative")
	}
	if !fitsScale(quantity) || !fitsScale(unitPrice) {
		return InvoiceLineItem{}, NewValidationError("Quantity and unit price support at most %d decimal places", AmountPlaces)
	}
	return InvoiceLineItem{
		ID:          uuid.New(),
		Description: description,
		Quantity:    quantity,
		UnitPrice:   unitPrice,
		Amount:      RoundMoney(quantity.Mul(unitPrice)),
	}, nil
}

// Invoice is a client-facing billing document
type Invoice struct {
	shared.TenantAggregateRoot
	InvoiceNumber    string
	ClientID         uuid.UUID
	CaseID           *uuid.UUID
	InvoiceDate      time.Time
	DueDate          time.Time
	Status           InvoiceStatus
	Items            []InvoiceLineItem
	Discount         Discount
	TaxRate          decimal.Decimal
	Subtotal         decimal.Decimal
	DiscountAmount   decimal.Decimal
	TaxAmount        decimal.Decimal
	TotalAmount      decimal.Decimal
	AmountPaid       decimal.Decimal
	BalanceDue       decimal.Decimal
	Currency         string
	RevenueAccountID *uuid.UUID
	JournalEntryID   *uuid.UUID
	Notes            string
	SentAt           *time.Time
	SentBy           *uuid.UUID
	CancelledAt      *time.Time
	CancelledBy      *uuid.UUID
	CancelReason     string
}

// NewInvoice creates a draft invoice and computes its totals
func NewInvoice(
	tenantID uuid.UUID,
	clientID uuid.UUID,
	invoiceNumber string,
	invoiceDate time.Time,
	dueDate time.Time,
	items []InvoiceLineItem,
	discount Discount,
	taxRate decimal.Decimal,
	currency string,
) (*Invoice, error) {
	if tenantID == uuid.Nil {
		return nil, NewValidationError("Tenant ID cannot be empty")
	}
	if clientID == uuid.Nil {
		return nil, NewValidationError("Client ID cannot be empty")
	}
	if strings.TrimSpace(invoiceNumber) == "" {
		return nil, NewValidationError("Invoice number cannot be empty")
	}
	if invoiceDate.IsZero() || dueDate.IsZero() {
		return nil, NewValidationError("Invoice date and due date are required")
	}
	if dateOnly(dueDate).Before(dateOnly(invoiceDate)) {
		return nil, NewValidationError("Due date cannot be before invoice date")
	}
	if len(items) == 0 {
		return nil, NewValidationError("Invoice must have at least one line item")
	}
	if err := discount.validate(); err != nil {
		return nil, err
	}
	if !validRatePercent(taxRate) {
		return nil, NewValidationError("Tax rate must be between 0 and 100")
	}
	if !currencyPattern.MatchString(currency) {
		return nil, NewValidationError("Invalid currency code %q", currency)
	}

	invoice := &Invoice{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		InvoiceNumber:       invoiceNumber,
		ClientID:            clientID,
		InvoiceDate:         invoiceDate,
		DueDate:             dueDate,
		Status:              InvoiceStatusDraft,
		Discount:            discount,
		TaxRate:             taxRate,
		Currency:            currency,
		AmountPaid:          decimal.Zero,
	}
	invoice.Items = make([]InvoiceLineItem, len(items))
	for i, item := range items {
		item.InvoiceID = invoice.ID
		item.LineNo = i + 1
		invoice.Items[i] = item
	}
	if err := invoice.calculateTotals(); err != nil {
		return nil, err
	}

	invoice.AddDomainEvent(NewInvoiceCreatedEvent(invoice))

	return invoice, nil
}

// calculateTotals applies quantity × price, then discount, then tax, in that order
func (i *Invoice) calculateTotals() error {
	subtotal := decimal.Zero
	for _, item := range i.Items {
		subtotal = subtotal.Add(item.Amount)
	}
	discountAmount := i.Discount.AmountOn(subtotal)
	if discountAmount.GreaterThan(subtotal) {
		return NewValidationError("Discount %s exceeds subtotal %s",
			discountAmount.StringFixed(MoneyPlaces), subtotal.StringFixed(MoneyPlaces))
	}
	taxable := subtotal.Sub(discountAmount)
	taxAmount := PercentOf(taxable, i.TaxRate)

	i.Subtotal = subtotal
	i.DiscountAmount = discountAmount
	i.TaxAmount = taxAmount
	i.TotalAmount = taxable.Add(taxAmount)
	i.BalanceDue = i.TotalAmount.Sub(i.AmountPaid)
	return nil
}

// SetCase links the invoice to a case
func (i *Invoice) SetCase(caseID *uuid.UUID) {
	i.CaseID = caseID
}

// SetRevenueAccount overrides the tenant's default revenue account
func (i *Invoice) SetRevenueAccount(accountID *uuid.UUID) {
	i.RevenueAccountID = accountID
}

// SetNotes sets free-text notes
func (i *Invoice) SetNotes(notes string) {
	i.Notes = strings.TrimSpace(notes)
}

// NetRevenue is the amount recognized as revenue: subtotal less discount
func (i *Invoice) NetRevenue() decimal.Decimal {
	return i.Subtotal.Sub(i.DiscountAmount)
}

// Send records the revenue recognition entry and moves the invoice to sent
func (i *Invoice) Send(entryID uuid.UUID, actor uuid.UUID, at time.Time) error {
	if i.Status != InvoiceStatusDraft {
		return NewInvalidStateError("invoice", i.ID, i.Status.String(), "send")
	}
	if !i.TotalAmount.IsPositive() {
		return NewValidationError("Invoice %s has no amount to recognize", i.InvoiceNumber)
	}
	if entryID == uuid.Nil {
		return NewValidationError("Journal entry ID cannot be empty")
	}

	i.JournalEntryID = &entryID
	i.Status = InvoiceStatusSent
	i.SentAt = &at
	if actor != uuid.Nil {
		i.SentBy = &actor
	}
	i.Touch(at)
	i.IncrementVersion()
	i.Status = i.StatusAt(at)

	i.AddDomainEvent(NewInvoiceSentEvent(i))

	return nil
}

// RecordPayment reduces the balance due and recomputes the status
func (i *Invoice) RecordPayment(amount decimal.Decimal, at time.Time) error {
	if !amount.IsPositive() {
		return NewInvalidAmountError("amount", amount)
	}
	status := i.StatusAt(at)
	if !status.IsOpen() {
		return NewInvalidStateError("invoice", i.ID, status.String(), "record payment on")
	}
	if amount.GreaterThan(i.BalanceDue) {
		return NewOverpaymentError(i.ID, amount, i.BalanceDue)
	}

	i.AmountPaid = i.AmountPaid.Add(amount)
	i.BalanceDue = i.TotalAmount.Sub(i.AmountPaid)
	i.Status = i.StatusAt(at)
	i.Touch(at)
	i.IncrementVersion()

	i.AddDomainEvent(NewInvoicePaymentRecordedEvent(i, amount))

	return nil
}

// StatusAt derives the status at a point in time. Once an invoice has left draft:
// paid when nothing is due, partially_paid when something was paid, overdue when
// the due date has passed, otherwise the stored status.
func (i *Invoice) StatusAt(now time.Time) InvoiceStatus {
	if i.Status == InvoiceStatusDraft || i.Status == InvoiceStatusCancelled {
		return i.Status
	}
	if !i.BalanceDue.IsPositive() {
		return InvoiceStatusPaid
	}
	if i.AmountPaid.IsPositive() {
		return InvoiceStatusPartiallyPaid
	}
	if dateOnly(now).After(dateOnly(i.DueDate)) {
		return InvoiceStatusOverdue
	}
	return i.Status
}

// IsOverdue reports whether the due date has passed with money still owed
func (i *Invoice) IsOverdue(now time.Time) bool {
	return i.StatusAt(now) == InvoiceStatusOverdue
}

// RefreshStatus stores the derived status, returning true if it changed
func (i *Invoice) RefreshStatus(now time.Time) bool {
	status := i.StatusAt(now)
	if status == i.Status {
		return false
	}
	i.Status = status
	return true
}

// CanCancel reports whether the invoice may still be cancelled
func (i *Invoice) CanCancel(now time.Time) bool {
	if i.AmountPaid.IsPositive() {
		return false
	}
	switch i.StatusAt(now) {
	case InvoiceStatusDraft, InvoiceStatusSent, InvoiceStatusOverdue:
		return true
	}
	return false
}

// Cancel moves the invoice to cancelled. The caller voids the revenue entry.
func (i *Invoice) Cancel(reason string, actor uuid.UUID, at time.Time) error {
	if !i.CanCancel(at) {
		return NewInvalidStateError("invoice", i.ID, i.StatusAt(at).String(), "cancel")
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return NewValidationError("Cancel reason is required")
	}

	i.Status = InvoiceStatusCancelled
	i.CancelledAt = &at
	if actor != uuid.Nil {
		i.CancelledBy = &actor
	}
	i.CancelReason = reason
	i.Touch(at)
	i.IncrementVersion()

	i.AddDomainEvent(NewInvoiceCancelledEvent(i))

	return nil
}

func dateOnly(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
