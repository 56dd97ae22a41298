package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lexledger/backend/internal/domain/ledger"
	"github.com/lexledger/backend/internal/domain/shared"
	"github.com/lexledger/backend/internal/infrastructure/logger"
	"github.com/lexledger/backend/internal/infrastructure/telemetry"
)

// InvoiceService manages client invoices and their revenue recognition
type InvoiceService struct {
	scope          TransactionScope
	invoices       ledger.InvoiceRepository
	journal        *JournalService
	numbers        NumberSource
	defaults       Defaults
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
	now            func() time.Time
}

// NewInvoiceService creates a new InvoiceService
func NewInvoiceService(
	scope TransactionScope,
	invoices ledger.InvoiceRepository,
	journal *JournalService,
	numbers NumberSource,
	defaults Defaults,
	logger *zap.Logger,
) *InvoiceService {
	return &InvoiceService{
		scope:    scope,
		invoices: invoices,
		journal:  journal,
		numbers:  numbers,
		defaults: defaults,
		logger:   nonNilLogger(logger),
		now:      utcNow,
	}
}

// SetEventPublisher sets the event publisher
func (s *InvoiceService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetClock replaces the time source
func (s *InvoiceService) SetClock(now func() time.Time) {
	s.now = now
}

// Create stores a draft invoice. Totals are computed from the items; the due date
// defaults to the tenant's payment terms.
func (s *InvoiceService) Create(ctx context.Context, input CreateInvoiceInput) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "create")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrTenantID, input.TenantID.String())

	if err := validateInput(input); err != nil {
		return nil, err
	}

	items := make([]ledger.InvoiceLineItem, 0, len(input.Items))
	for _, in := range input.Items {
		item, err := ledger.NewInvoiceLineItem(in.Description, in.Quantity, in.UnitPrice)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}

	number, err := s.numbers.NextDocumentNumber(ctx, input.TenantID, ledger.CounterKindInvoice)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	now := s.now()
	invoiceDate := dateOr(input.InvoiceDate, now)

	var invoice *ledger.Invoice
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		settings, err := loadSettings(ctx, repos.Settings(), input.TenantID)
		if err != nil {
			return err
		}
		dueDate := dateOr(input.DueDate, settings.DueDateFor(invoiceDate))
		currency := input.Currency
		if currency == "" {
			currency = settings.Currency
		}

		if input.RevenueAccountID != nil {
			if err := checkOverrideAccount(ctx, repos.Accounts(), input.TenantID, *input.RevenueAccountID, ledger.AccountTypeRevenue); err != nil {
				return err
			}
		}

		invoice, err = ledger.NewInvoice(
			input.TenantID, input.ClientID, number, invoiceDate, dueDate,
			items, input.Discount.toDomain(), input.TaxRate, s.defaults.currencyOr(currency),
		)
		if err != nil {
			return err
		}
		invoice.SetCase(input.CaseID)
		invoice.SetRevenueAccount(input.RevenueAccountID)
		invoice.SetNotes(input.Notes)
		invoice.SetCreatedBy(input.ActorID)

		return repos.Invoices().Create(ctx, invoice)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	events := invoice.GetDomainEvents()
	invoice.ClearDomainEvents()
	publishEvents(ctx, s.eventPublisher, s.logger, events)

	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceID, invoice.ID.String(),
		telemetry.SpanAttrInvoiceNumber, invoice.InvoiceNumber,
	)
	logger.WithLogger(ctx, s.logger).Info("Invoice created",
		zap.String("tenant_id", invoice.TenantID.String()),
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("total", invoice.TotalAmount.String()))

	return toInvoiceResponse(invoice, now), nil
}

// Get returns one invoice with its status as of now
func (s *InvoiceService) Get(ctx context.Context, tenantID, invoiceID uuid.UUID) (*InvoiceResponse, error) {
	invoice, err := s.invoices.FindByID(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, ledger.NewInvoiceNotFoundError(invoiceID)
	}
	return toInvoiceResponse(invoice, s.now()), nil
}

// List returns a page of invoices filtered by effective status
func (s *InvoiceService) List(ctx context.Context, input ListInvoicesInput) (*PageResult[*InvoiceResponse], error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	now := s.now()
	page, pageSize := normalizePage(input.Page, input.PageSize)
	filter := ledger.InvoiceFilter{
		ClientID: input.ClientID,
		AsOf:     now,
		Page:     page,
		PageSize: pageSize,
	}
	for _, status := range input.Statuses {
		filter.Statuses = append(filter.Statuses, ledger.InvoiceStatus(status))
	}

	invoices, total, err := s.invoices.FindAll(ctx, input.TenantID, filter)
	if err != nil {
		return nil, err
	}
	items := make([]*InvoiceResponse, 0, len(invoices))
	for _, invoice := range invoices {
		items = append(items, toInvoiceResponse(invoice, now))
	}
	return &PageResult[*InvoiceResponse]{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// ListOverdue returns open invoices whose due date has passed
func (s *InvoiceService) ListOverdue(ctx context.Context, tenantID uuid.UUID, page, pageSize int) (*PageResult[*InvoiceResponse], error) {
	return s.List(ctx, ListInvoicesInput{
		TenantID: tenantID,
		Statuses: []string{ledger.InvoiceStatusOverdue.String()},
		Page:     page,
		PageSize: pageSize,
	})
}

// Send recognizes the invoice: DR receivable for the total, CR revenue for the
// discounted subtotal and CR tax payable for the tax. The entry is posted and the
// invoice moves to sent in one transaction.
func (s *InvoiceService) Send(ctx context.Context, input SendInvoiceInput) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "send")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, input.TenantID.String(),
		telemetry.SpanAttrInvoiceID, input.InvoiceID.String(),
	)

	if err := validateInput(input); err != nil {
		return nil, err
	}

	number, err := s.numbers.NextDocumentNumber(ctx, input.TenantID, ledger.CounterKindJournalEntry)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	now := s.now()
	var invoice *ledger.Invoice
	var batch eventBatch
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		batch.reset()
		var err error
		invoice, err = s.lockInvoice(ctx, repos, input.TenantID, input.InvoiceID)
		if err != nil {
			return err
		}
		if invoice.Status != ledger.InvoiceStatusDraft {
			return ledger.NewInvalidStateError("invoice", invoice.ID, invoice.StatusAt(now).String(), "send")
		}
		if !invoice.TotalAmount.IsPositive() {
			return ledger.NewValidationError("Invoice %s has no amount to recognize", invoice.InvoiceNumber)
		}

		settings, err := loadSettings(ctx, repos.Settings(), input.TenantID)
		if err != nil {
			return err
		}
		entry, err := s.revenueEntry(invoice, settings, number)
		if err != nil {
			return err
		}
		if err := s.journal.RecordWithin(ctx, repos, entry, input.ActorID); err != nil {
			return err
		}
		if err := invoice.Send(entry.ID, input.ActorID, now); err != nil {
			return err
		}
		if err := repos.Invoices().SaveWithLock(ctx, invoice); err != nil {
			return err
		}
		batch.collect(entry, invoice)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	publishEvents(ctx, s.eventPublisher, s.logger, batch.events)

	telemetry.SetAttributes(span,
		telemetry.SpanAttrInvoiceNumber, invoice.InvoiceNumber,
		telemetry.SpanAttrAmount, invoice.TotalAmount.String(),
	)
	logger.WithLogger(ctx, s.logger).Info("Invoice sent",
		zap.String("tenant_id", invoice.TenantID.String()),
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("journal_entry_id", invoice.JournalEntryID.String()),
		zap.String("total", invoice.TotalAmount.String()))

	return toInvoiceResponse(invoice, now), nil
}

// revenueEntry builds the recognition entry for an invoice
func (s *InvoiceService) revenueEntry(invoice *ledger.Invoice, settings *ledger.TenantSettings, number string) (*ledger.JournalEntry, error) {
	receivable, err := settings.AccountFor(ledger.RoleAccountsReceivable)
	if err != nil {
		return nil, err
	}
	revenue := uuid.Nil
	if invoice.RevenueAccountID != nil {
		revenue = *invoice.RevenueAccountID
	} else if revenue, err = settings.AccountFor(ledger.RoleRevenue); err != nil {
		return nil, err
	}

	dims := ledger.Dimensions{ClientID: &invoice.ClientID, CaseID: invoice.CaseID}
	description := fmt.Sprintf("Invoice %s", invoice.InvoiceNumber)

	lines := make([]ledger.JournalLine, 0, 3)
	lines = append(lines, withDimensions(ledger.DebitLine(receivable, invoice.TotalAmount, description), dims))
	if net := invoice.NetRevenue(); net.IsPositive() {
		lines = append(lines, withDimensions(ledger.CreditLine(revenue, net, description), dims))
	}
	if invoice.TaxAmount.IsPositive() {
		taxPayable, err := settings.AccountFor(ledger.RoleTaxPayable)
		if err != nil {
			return nil, err
		}
		lines = append(lines, withDimensions(ledger.CreditLine(taxPayable, invoice.TaxAmount, "Tax on "+description), dims))
	}

	return ledger.NewJournalEntry(
		invoice.TenantID, number, invoice.InvoiceDate, description,
		ledger.InvoiceSource(invoice.ID), lines,
	)
}

// RecordPayment applies a paid amount to the invoice balance without posting cash.
// Cash receipts that must reach the journal go through PaymentService.
func (s *InvoiceService) RecordPayment(ctx context.Context, input RecordInvoicePaymentInput) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "record_payment")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, input.TenantID.String(),
		telemetry.SpanAttrInvoiceID, input.InvoiceID.String(),
		telemetry.SpanAttrAmount, input.Amount.String(),
	)

	if err := validateInput(input); err != nil {
		return nil, err
	}

	now := s.now()
	var invoice *ledger.Invoice
	var batch eventBatch
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		batch.reset()
		var err error
		invoice, err = s.lockInvoice(ctx, repos, input.TenantID, input.InvoiceID)
		if err != nil {
			return err
		}
		if err := invoice.RecordPayment(input.Amount, now); err != nil {
			return err
		}
		if err := repos.Invoices().SaveWithLock(ctx, invoice); err != nil {
			return err
		}
		batch.collect(invoice)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	publishEvents(ctx, s.eventPublisher, s.logger, batch.events)

	logger.WithLogger(ctx, s.logger).Info("Invoice payment recorded",
		zap.String("tenant_id", invoice.TenantID.String()),
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("amount", input.Amount.String()),
		zap.String("balance_due", invoice.BalanceDue.String()),
		zap.String("status", invoice.Status.String()))

	return toInvoiceResponse(invoice, now), nil
}

// Cancel cancels an unpaid invoice and voids its revenue entry in the same transaction
func (s *InvoiceService) Cancel(ctx context.Context, input CancelInvoiceInput) (*InvoiceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "invoice", "cancel")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, input.TenantID.String(),
		telemetry.SpanAttrInvoiceID, input.InvoiceID.String(),
	)

	if err := validateInput(input); err != nil {
		return nil, err
	}

	now := s.now()
	var invoice *ledger.Invoice
	var batch eventBatch
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		batch.reset()
		var err error
		invoice, err = s.lockInvoice(ctx, repos, input.TenantID, input.InvoiceID)
		if err != nil {
			return err
		}
		entryID := invoice.JournalEntryID
		if err := invoice.Cancel(input.Reason, input.ActorID, now); err != nil {
			return err
		}
		if entryID != nil {
			reason := ledger.ClipJournalText(fmt.Sprintf("Invoice %s cancelled: %s", invoice.InvoiceNumber, invoice.CancelReason))
			entry, err := s.journal.VoidWithin(ctx, repos, input.TenantID, *entryID, reason, input.ActorID)
			if err != nil {
				return err
			}
			batch.collect(entry)
		}
		if err := repos.Invoices().SaveWithLock(ctx, invoice); err != nil {
			return err
		}
		batch.collect(invoice)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	publishEvents(ctx, s.eventPublisher, s.logger, batch.events)

	logger.WithLogger(ctx, s.logger).Info("Invoice cancelled",
		zap.String("tenant_id", invoice.TenantID.String()),
		zap.String("invoice_id", invoice.ID.String()),
		zap.String("invoice_number", invoice.InvoiceNumber),
		zap.String("reason", invoice.CancelReason))

	return toInvoiceResponse(invoice, now), nil
}

func (s *InvoiceService) lockInvoice(ctx context.Context, repos TransactionalRepositories, tenantID, invoiceID uuid.UUID) (*ledger.Invoice, error) {
	invoice, err := repos.Invoices().FindByIDForUpdate(ctx, tenantID, invoiceID)
	if err != nil {
		return nil, err
	}
	if invoice == nil {
		return nil, ledger.NewInvoiceNotFoundError(invoiceID)
	}
	return invoice, nil
}

func withDimensions(line ledger.JournalLine, dims ledger.Dimensions) ledger.JournalLine {
	line.Dimensions = dims
	return line
}
