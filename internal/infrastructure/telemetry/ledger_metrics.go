package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"

	"github.com/lexledger/backend/internal/domain/ledger"
	"github.com/lexledger/backend/internal/domain/shared"
)

// LedgerMetrics turns ledger domain events into business counters. It is
// subscribed to the event bus, so it only sees committed changes.
type LedgerMetrics struct {
	logger *zap.Logger

	entriesPosted    *Counter
	entriesVoided    *Counter
	postedAmount     *FloatCounter
	voidedAmount     *FloatCounter
	invoicesSent     *Counter
	invoicedAmount   *FloatCounter
	invoicesCanceled *Counter
	paymentsRecorded *Counter
	paymentApplied   *FloatCounter
	expensesApproved *Counter
	expensedAmount   *FloatCounter
}

// NewLedgerMetrics creates the ledger instruments on meter
func NewLedgerMetrics(meter metric.Meter, logger *zap.Logger) (*LedgerMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &LedgerMetrics{logger: logger}

	counters := []struct {
		dst   **Counter
		name  string
		desc  string
		units string
	}{
		{&m.entriesPosted, "ledger_journal_entries_posted_total", "Journal entries posted", "{entry}"},
		{&m.entriesVoided, "ledger_journal_entries_voided_total", "Journal entries voided", "{entry}"},
		{&m.invoicesSent, "ledger_invoices_sent_total", "Invoices sent to clients", "{invoice}"},
		{&m.invoicesCanceled, "ledger_invoices_cancelled_total", "Invoices cancelled", "{invoice}"},
		{&m.paymentsRecorded, "ledger_payments_recorded_total", "Client payments recorded", "{payment}"},
		{&m.expensesApproved, "ledger_expenses_approved_total", "Expenses approved and recognized", "{expense}"},
	}
	for _, c := range counters {
		counter, err := NewCounter(meter, c.name, c.desc, c.units)
		if err != nil {
			return nil, err
		}
		*c.dst = counter
	}

	amounts := []struct {
		dst  **FloatCounter
		name string
		desc string
	}{
		{&m.postedAmount, "ledger_posted_amount_total", "Debit total of posted journal entries"},
		{&m.voidedAmount, "ledger_voided_amount_total", "Debit total of voided journal entries"},
		{&m.invoicedAmount, "ledger_invoiced_amount_total", "Total of sent invoices"},
		{&m.paymentApplied, "ledger_payment_applied_amount_total", "Payment amounts applied to invoices"},
		{&m.expensedAmount, "ledger_expensed_amount_total", "Total of approved expenses"},
	}
	for _, a := range amounts {
		counter, err := NewFloatCounter(meter, a.name, a.desc, "{currency_unit}")
		if err != nil {
			return nil, err
		}
		*a.dst = counter
	}
	return m, nil
}

// EventTypes implements shared.EventHandler
func (m *LedgerMetrics) EventTypes() []string {
	return []string{
		ledger.EventTypeJournalEntryPosted,
		ledger.EventTypeJournalEntryVoided,
		ledger.EventTypeInvoiceSent,
		ledger.EventTypeInvoiceCancelled,
		ledger.EventTypePaymentRecorded,
		ledger.EventTypePaymentApplied,
		ledger.EventTypeExpenseApproved,
	}
}

// Handle implements shared.EventHandler. Unknown events are ignored.
func (m *LedgerMetrics) Handle(ctx context.Context, event shared.DomainEvent) error {
	tenant := AttrTenantID.String(event.TenantID().String())

	switch e := event.(type) {
	case *ledger.JournalEntryPostedEvent:
		source := AttrSourceKind.String(string(e.SourceKind))
		m.entriesPosted.Inc(ctx, tenant, source)
		m.postedAmount.Add(ctx, e.Amount.InexactFloat64(), tenant, source)
	case *ledger.JournalEntryVoidedEvent:
		source := AttrSourceKind.String(string(e.SourceKind))
		m.entriesVoided.Inc(ctx, tenant, source)
		m.voidedAmount.Add(ctx, e.Amount.InexactFloat64(), tenant, source)
	case *ledger.InvoiceSentEvent:
		m.invoicesSent.Inc(ctx, tenant)
		m.invoicedAmount.Add(ctx, e.TotalAmount.InexactFloat64(), tenant)
	case *ledger.InvoiceCancelledEvent:
		m.invoicesCanceled.Inc(ctx, tenant)
	case *ledger.PaymentRecordedEvent:
		m.paymentsRecorded.Inc(ctx, tenant, AttrPaymentMethod.String(string(e.Method)))
	case *ledger.PaymentAppliedEvent:
		m.paymentApplied.Add(ctx, e.Total.InexactFloat64(), tenant)
	case *ledger.ExpenseApprovedEvent:
		m.expensesApproved.Inc(ctx, tenant)
		m.expensedAmount.Add(ctx, e.TotalAmount.InexactFloat64(), tenant)
	default:
		m.logger.Debug("ledger metrics ignoring event", zap.String("event_type", event.EventType()))
	}
	return nil
}

var _ shared.EventHandler = (*LedgerMetrics)(nil)
