package ledger

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/lexledger/backend/internal/domain/shared"
)

// Ledger specific error codes. Generic failures reuse the shared sentinels:
// shared.ErrInvalidInput, shared.ErrInvalidState, shared.ErrNotFound,
// shared.ErrAlreadyExists and shared.ErrConcurrencyConflict.
const (
	CodeUnbalancedEntry = "UNBALANCED_ENTRY"
	CodeExceedsBalance  = "EXCEEDS_BALANCE"
	CodeExceedsPayment  = "EXCEEDS_PAYMENT"
	CodeOverpayment     = "OVERPAYMENT"
	CodeInvalidAmount   = "INVALID_AMOUNT"
	CodeInvoiceNotFound = "INVOICE_NOT_FOUND"
)

var (
	ErrUnbalancedEntry = shared.NewDomainError(CodeUnbalancedEntry, "Journal entry debits do not equal credits")
	ErrExceedsBalance  = shared.NewDomainError(CodeExceedsBalance, "Amount exceeds the invoice balance due")
	ErrExceedsPayment  = shared.NewDomainError(CodeExceedsPayment, "Applied amount exceeds the unapplied payment amount")
	ErrOverpayment     = shared.NewDomainError(CodeOverpayment, "Payment exceeds the invoice balance due")
	ErrInvalidAmount   = shared.NewSubDomainError(CodeInvalidAmount, shared.ErrInvalidInput.Code, "Amount must be greater than zero")
	ErrInvoiceNotFound = shared.NewSubDomainError(CodeInvoiceNotFound, shared.ErrNotFound.Code, "Invoice not found")
)

func withDetails(err *shared.DomainError, details map[string]any) *shared.DomainError {
	err.Details = details
	return err
}

// NewValidationError builds an INVALID_INPUT error
func NewValidationError(format string, args ...any) *shared.DomainError {
	return shared.NewDomainErrorf(shared.ErrInvalidInput.Code, format, args...)
}

// NewInvalidAmountError reports a zero or negative amount
func NewInvalidAmountError(field string, amount decimal.Decimal) *shared.DomainError {
	return withDetails(
		shared.NewSubDomainError(CodeInvalidAmount, shared.ErrInvalidInput.Code,
			fmt.Sprintf("%s must be greater than zero, got %s", field, amount.String())),
		map[string]any{"field": field, "amount": amount.String()},
	)
}

// NewInvalidStateError reports an operation attempted from a forbidding state
func NewInvalidStateError(resource string, id uuid.UUID, status, operation string) *shared.DomainError {
	return withDetails(
		shared.NewDomainErrorf(shared.ErrInvalidState.Code, "Cannot %s %s %s in %s status", operation, resource, id, status),
		map[string]any{"resource": resource, "id": id.String(), "status": status, "operation": operation},
	)
}

// NewNotFoundError reports a missing tenant-scoped record
func NewNotFoundError(resource string, id uuid.UUID) *shared.DomainError {
	return withDetails(
		shared.NewDomainErrorf(shared.ErrNotFound.Code, "%s %s not found", resource, id),
		map[string]any{"resource": resource, "id": id.String()},
	)
}

// NewInvoiceNotFoundError reports an invoice missing from the tenant
func NewInvoiceNotFoundError(invoiceID uuid.UUID) *shared.DomainError {
	return withDetails(
		shared.NewSubDomainError(CodeInvoiceNotFound, shared.ErrNotFound.Code, fmt.Sprintf("Invoice %s not found", invoiceID)),
		map[string]any{"invoice_id": invoiceID.String()},
	)
}

// NewUnbalancedEntryError reports a journal entry whose totals differ
func NewUnbalancedEntryError(entryID uuid.UUID, debits, credits decimal.Decimal) *shared.DomainError {
	return withDetails(
		shared.NewDomainErrorf(CodeUnbalancedEntry, "Journal entry %s is unbalanced: debits %s, credits %s",
			entryID, debits.StringFixed(MoneyPlaces), credits.StringFixed(MoneyPlaces)),
		map[string]any{"entry_id": entryID.String(), "debits": debits.String(), "credits": credits.String()},
	)
}

// NewExceedsBalanceError reports an application larger than the invoice balance due
func NewExceedsBalanceError(invoiceID uuid.UUID, amount, balanceDue decimal.Decimal) *shared.DomainError {
	return withDetails(
		shared.NewDomainErrorf(CodeExceedsBalance, "Amount %s exceeds balance due %s on invoice %s",
			amount.StringFixed(MoneyPlaces), balanceDue.StringFixed(MoneyPlaces), invoiceID),
		map[string]any{"invoice_id": invoiceID.String(), "amount": amount.String(), "balance_due": balanceDue.String()},
	)
}

// NewExceedsPaymentError reports applications totalling more than the payment has left
func NewExceedsPaymentError(paymentID uuid.UUID, requested, unapplied decimal.Decimal) *shared.DomainError {
	return withDetails(
		shared.NewDomainErrorf(CodeExceedsPayment, "Applications totalling %s exceed unapplied amount %s of payment %s",
			requested.StringFixed(MoneyPlaces), unapplied.StringFixed(MoneyPlaces), paymentID),
		map[string]any{"payment_id": paymentID.String(), "requested": requested.String(), "unapplied": unapplied.String()},
	)
}

// NewOverpaymentError reports a payment larger than the invoice balance due
func NewOverpaymentError(invoiceID uuid.UUID, amount, balanceDue decimal.Decimal) *shared.DomainError {
	return withDetails(
		shared.NewDomainErrorf(CodeOverpayment, "Payment %s exceeds balance due %s on invoice %s",
			amount.StringFixed(MoneyPlaces), balanceDue.StringFixed(MoneyPlaces), invoiceID),
		map[string]any{"invoice_id": invoiceID.String(), "amount": amount.String(), "balance_due": balanceDue.String()},
	)
}

// NewConcurrencyConflictError reports a lost race that the caller may retry
func NewConcurrencyConflictError(resource string, id uuid.UUID) *shared.DomainError {
	return withDetails(
		shared.NewDomainErrorf(shared.ErrConcurrencyConflict.Code, "%s %s was modified by another process", resource, id),
		map[string]any{"resource": resource, "id": id.String()},
	)
}
