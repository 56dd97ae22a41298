package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/lexledger/backend/internal/domain/ledger"
	"github.com/lexledger/backend/internal/domain/shared"
	"github.com/lexledger/backend/internal/infrastructure/logger"
	"github.com/lexledger/backend/internal/infrastructure/telemetry"
)

// PaymentService records client payments and applies them to invoices
type PaymentService struct {
	scope          TransactionScope
	payments       ledger.PaymentRepository
	journal        *JournalService
	numbers        NumberSource
	defaults       Defaults
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
	now            func() time.Time
}

// NewPaymentService creates a new PaymentService
func NewPaymentService(
	scope TransactionScope,
	payments ledger.PaymentRepository,
	journal *JournalService,
	numbers NumberSource,
	defaults Defaults,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		scope:    scope,
		payments: payments,
		journal:  journal,
		numbers:  numbers,
		defaults: defaults,
		logger:   nonNilLogger(logger),
		now:      utcNow,
	}
}

// SetEventPublisher sets the event publisher
func (s *PaymentService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetClock replaces the time source
func (s *PaymentService) SetClock(now func() time.Time) {
	s.now = now
}

// RecordPayment stores money received from a client. Nothing reaches the journal
// until the payment is applied to invoices.
func (s *PaymentService) RecordPayment(ctx context.Context, input RecordPaymentInput) (*PaymentResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "record")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, input.TenantID.String(),
		telemetry.SpanAttrAmount, input.Amount.String(),
	)

	if err := validateInput(input); err != nil {
		return nil, err
	}
	if !input.Amount.IsPositive() {
		return nil, ledger.NewInvalidAmountError("amount", input.Amount)
	}

	number, err := s.numbers.NextDocumentNumber(ctx, input.TenantID, ledger.CounterKindPayment)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	payment, err := ledger.NewPayment(
		input.TenantID, input.ClientID, number,
		dateOr(input.PaymentDate, s.now()), input.Amount,
		ledger.PaymentMethod(input.Method), s.defaults.currencyOr(input.Currency),
	)
	if err != nil {
		return nil, err
	}
	payment.SetReference(input.Reference, input.Notes)
	payment.SetCreatedBy(input.ActorID)

	if err := s.payments.Create(ctx, payment); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	events := payment.GetDomainEvents()
	payment.ClearDomainEvents()
	publishEvents(ctx, s.eventPublisher, s.logger, events)

	telemetry.SetAttributes(span, telemetry.SpanAttrPaymentID, payment.ID.String())
	logger.WithLogger(ctx, s.logger).Info("Payment recorded",
		zap.String("tenant_id", payment.TenantID.String()),
		zap.String("payment_id", payment.ID.String()),
		zap.String("payment_number", payment.PaymentNumber),
		zap.String("amount", payment.Amount.String()),
		zap.String("method", payment.Method.String()))

	return toPaymentResponse(payment), nil
}

// GetPayment returns one payment with its applications
func (s *PaymentService) GetPayment(ctx context.Context, tenantID, paymentID uuid.UUID) (*PaymentResponse, error) {
	payment, err := s.payments.FindByID(ctx, tenantID, paymentID)
	if err != nil {
		return nil, err
	}
	if payment == nil {
		return nil, ledger.NewNotFoundError("payment", paymentID)
	}
	return toPaymentResponse(payment), nil
}

// ListApplications returns the payment applications made to one invoice
func (s *PaymentService) ListApplications(ctx context.Context, tenantID, invoiceID uuid.UUID) ([]PaymentApplicationResponse, error) {
	apps, err := s.payments.FindApplicationsByInvoice(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	result := make([]PaymentApplicationResponse, 0, len(apps))
	for _, app := range apps {
		result = append(result, toPaymentApplicationResponse(app))
	}
	return result, nil
}

// ApplyToInvoices applies a payment to a batch of invoices as one unit.
//
// The payment row and then the invoice rows in ascending id order are locked before
// anything is validated. The whole batch is checked, then one entry is posted
// (DR cash, CR receivable for the batch total), every invoice's progress is updated
// and the applications are stored. Any failure leaves everything unchanged.
func (s *PaymentService) ApplyToInvoices(ctx context.Context, input ApplyPaymentInput) (*ApplyPaymentResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment", "apply")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, input.TenantID.String(),
		telemetry.SpanAttrPaymentID, input.PaymentID.String(),
		telemetry.SpanAttrLineCount, len(input.Applications),
	)

	if err := validateInput(input); err != nil {
		return nil, err
	}
	lines := make([]ledger.ApplicationLine, len(input.Applications))
	invoiceIDs := make([]uuid.UUID, 0, len(input.Applications))
	for i, app := range input.Applications {
		lines[i] = ledger.ApplicationLine{InvoiceID: app.InvoiceID, Amount: app.Amount}
		invoiceIDs = append(invoiceIDs, app.InvoiceID)
	}
	ledger.SortIDs(invoiceIDs)

	number, err := s.numbers.NextDocumentNumber(ctx, input.TenantID, ledger.CounterKindJournalEntry)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	now := s.now()
	var (
		payment  *ledger.Payment
		invoices map[uuid.UUID]*ledger.Invoice
		entry    *ledger.JournalEntry
		total    = decimal.Zero
		batch    eventBatch
	)
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		batch.reset()
		var err error
		payment, err = repos.Payments().FindByIDForUpdate(ctx, input.TenantID, input.PaymentID)
		if err != nil {
			return err
		}
		if payment == nil {
			return ledger.NewNotFoundError("payment", input.PaymentID)
		}

		locked, err := repos.Invoices().FindByIDsForUpdate(ctx, input.TenantID, uniqueIDs(invoiceIDs))
		if err != nil {
			return fmt.Errorf("failed to lock invoices: %w", err)
		}
		invoices = make(map[uuid.UUID]*ledger.Invoice, len(locked))
		for _, invoice := range locked {
			invoices[invoice.ID] = invoice
		}

		total, err = payment.PlanApplications(lines, invoices, now)
		if err != nil {
			return err
		}

		settings, err := loadSettings(ctx, repos.Settings(), input.TenantID)
		if err != nil {
			return err
		}
		entry, err = s.cashReceiptEntry(payment, settings, number, total)
		if err != nil {
			return err
		}
		if err := s.journal.RecordWithin(ctx, repos, entry, input.ActorID); err != nil {
			return err
		}

		if _, err := payment.ApplyBatch(lines, invoices, entry.ID, input.ActorID, now); err != nil {
			return err
		}
		for _, id := range uniqueIDs(invoiceIDs) {
			if err := repos.Invoices().SaveWithLock(ctx, invoices[id]); err != nil {
				return err
			}
			batch.collect(invoices[id])
		}
		if err := repos.Payments().SaveWithLock(ctx, payment); err != nil {
			return err
		}
		batch.collect(entry, payment)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		logger.WithLogger(ctx, s.logger).Warn("Payment application rejected",
			zap.String("tenant_id", input.TenantID.String()),
			zap.String("payment_id", input.PaymentID.String()),
			zap.Error(err))
		return nil, err
	}

	publishEvents(ctx, s.eventPublisher, s.logger, batch.events)

	telemetry.SetAttributes(span,
		telemetry.SpanAttrAmount, total.String(),
		telemetry.SpanAttrEntryID, entry.ID.String(),
	)
	logger.WithLogger(ctx, s.logger).Info("Payment applied",
		zap.String("tenant_id", input.TenantID.String()),
		zap.String("payment_id", payment.ID.String()),
		zap.String("payment_number", payment.PaymentNumber),
		zap.Int("invoices", len(lines)),
		zap.String("total", total.String()),
		zap.String("unapplied", payment.UnappliedAmount().String()))

	result := &ApplyPaymentResult{
		Payment:        toPaymentResponse(payment),
		Invoices:       make([]*InvoiceResponse, 0, len(lines)),
		AppliedTotal:   total,
		JournalEntryID: entry.ID,
	}
	for _, line := range lines {
		result.Invoices = append(result.Invoices, toInvoiceResponse(invoices[line.InvoiceID], now))
	}
	return result, nil
}

func (s *PaymentService) cashReceiptEntry(
	payment *ledger.Payment,
	settings *ledger.TenantSettings,
	number string,
	total decimal.Decimal,
) (*ledger.JournalEntry, error) {
	cash, err := settings.AccountFor(ledger.RoleCash)
	if err != nil {
		return nil, err
	}
	receivable, err := settings.AccountFor(ledger.RoleAccountsReceivable)
	if err != nil {
		return nil, err
	}

	description := fmt.Sprintf("Payment %s", payment.PaymentNumber)
	dims := ledger.Dimensions{ClientID: &payment.ClientID}
	lines := []ledger.JournalLine{
		withDimensions(ledger.DebitLine(cash, total, description), dims),
		withDimensions(ledger.CreditLine(receivable, total, description), dims),
	}
	return ledger.NewJournalEntry(
		payment.TenantID, number, payment.PaymentDate, description,
		ledger.PaymentSource(payment.ID), lines,
	)
}

// uniqueIDs drops repeated ids from a sorted slice
func uniqueIDs(sorted []uuid.UUID) []uuid.UUID {
	result := make([]uuid.UUID, 0, len(sorted))
	for i, id := range sorted {
		if i > 0 && sorted[i-1] == id {
			continue
		}
		result = append(result, id)
	}
	return result
}
