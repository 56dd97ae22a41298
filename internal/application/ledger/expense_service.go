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

// ExpenseService routes firm expenses through approval and recognizes them
type ExpenseService struct {
	scope          TransactionScope
	expenses       ledger.ExpenseRepository
	accounts       ledger.AccountRepository
	journal        *JournalService
	numbers        NumberSource
	defaults       Defaults
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
	now            func() time.Time
}

// NewExpenseService creates a new ExpenseService
func NewExpenseService(
	scope TransactionScope,
	expenses ledger.ExpenseRepository,
	accounts ledger.AccountRepository,
	journal *JournalService,
	numbers NumberSource,
	defaults Defaults,
	logger *zap.Logger,
) *ExpenseService {
	return &ExpenseService{
		scope:    scope,
		expenses: expenses,
		accounts: accounts,
		journal:  journal,
		numbers:  numbers,
		defaults: defaults,
		logger:   nonNilLogger(logger),
		now:      utcNow,
	}
}

// SetEventPublisher sets the event publisher
func (s *ExpenseService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetClock replaces the time source
func (s *ExpenseService) SetClock(now func() time.Time) {
	s.now = now
}

// Create records a pending expense
func (s *ExpenseService) Create(ctx context.Context, input CreateExpenseInput) (*ExpenseResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "expense", "create")
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
	if input.ExpenseAccountID != nil {
		if err := checkOverrideAccount(ctx, s.accounts, input.TenantID, *input.ExpenseAccountID, ledger.AccountTypeExpense); err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
	}

	number, err := s.numbers.NextDocumentNumber(ctx, input.TenantID, ledger.CounterKindExpense)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	expense, err := ledger.NewExpense(
		input.TenantID, number, input.CategoryID, input.Description,
		dateOr(input.ExpenseDate, s.now()), input.Amount, input.TaxRate,
		s.defaults.currencyOr(input.Currency),
	)
	if err != nil {
		return nil, err
	}
	if input.Billable {
		if err := expense.SetBillable(input.ClientID, input.CaseID); err != nil {
			return nil, err
		}
	} else {
		expense.CaseID = input.CaseID
	}
	expense.SetExpenseAccount(input.ExpenseAccountID)
	expense.SetCreatedBy(input.ActorID)

	if err := s.expenses.Create(ctx, expense); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	events := expense.GetDomainEvents()
	expense.ClearDomainEvents()
	publishEvents(ctx, s.eventPublisher, s.logger, events)

	telemetry.SetAttributes(span, telemetry.SpanAttrExpenseID, expense.ID.String())
	logger.WithLogger(ctx, s.logger).Info("Expense created",
		zap.String("tenant_id", expense.TenantID.String()),
		zap.String("expense_id", expense.ID.String()),
		zap.String("expense_number", expense.ExpenseNumber),
		zap.String("total", expense.TotalAmount.String()),
		zap.Bool("billable", expense.Billable))

	return toExpenseResponse(expense), nil
}

// Get returns one expense
func (s *ExpenseService) Get(ctx context.Context, tenantID, expenseID uuid.UUID) (*ExpenseResponse, error) {
	expense, err := s.expenses.FindByID(ctx, tenantID, expenseID)
	if err != nil {
		return nil, err
	}
	if expense == nil {
		return nil, ledger.NewNotFoundError("expense", expenseID)
	}
	return toExpenseResponse(expense), nil
}

// List returns a page of expenses
func (s *ExpenseService) List(ctx context.Context, input ListExpensesInput) (*PageResult[*ExpenseResponse], error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	page, pageSize := normalizePage(input.Page, input.PageSize)
	filter := ledger.ExpenseFilter{
		CategoryID: input.CategoryID,
		ClientID:   input.ClientID,
		Page:       page,
		PageSize:   pageSize,
	}
	if input.ApprovalStatus != "" {
		status := ledger.ExpenseApprovalStatus(input.ApprovalStatus)
		filter.ApprovalStatus = &status
	}
	if input.PaymentStatus != "" {
		status := ledger.ExpensePaymentStatus(input.PaymentStatus)
		filter.PaymentStatus = &status
	}

	expenses, total, err := s.expenses.FindAll(ctx, input.TenantID, filter)
	if err != nil {
		return nil, err
	}
	items := make([]*ExpenseResponse, 0, len(expenses))
	for _, expense := range expenses {
		items = append(items, toExpenseResponse(expense))
	}
	return &PageResult[*ExpenseResponse]{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// Approve recognizes the expense: DR the expense account for the amount, DR tax
// expense for the tax, CR cash when already paid or accounts payable otherwise.
// The expense row lock makes recognition happen at most once.
func (s *ExpenseService) Approve(ctx context.Context, input ApproveExpenseInput) (*ExpenseResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "expense", "approve")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, input.TenantID.String(),
		telemetry.SpanAttrExpenseID, input.ExpenseID.String(),
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
	var expense *ledger.Expense
	var batch eventBatch
	err = s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		batch.reset()
		var err error
		expense, err = s.lockExpense(ctx, repos, input.TenantID, input.ExpenseID)
		if err != nil {
			return err
		}
		if err := expense.CanRecognize(); err != nil {
			return err
		}
		if expense.ExpenseAccountID != nil {
			if err := checkOverrideAccount(ctx, repos.Accounts(), input.TenantID, *expense.ExpenseAccountID, ledger.AccountTypeExpense); err != nil {
				return err
			}
		}

		settings, err := loadSettings(ctx, repos.Settings(), input.TenantID)
		if err != nil {
			return err
		}
		entry, err := s.recognitionEntry(expense, settings, number)
		if err != nil {
			return err
		}
		if err := s.journal.RecordWithin(ctx, repos, entry, input.ActorID); err != nil {
			return err
		}
		if err := expense.Approve(entry.ID, input.ActorID, now); err != nil {
			return err
		}
		if err := repos.Expenses().SaveWithLock(ctx, expense); err != nil {
			return err
		}
		batch.collect(entry, expense)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	publishEvents(ctx, s.eventPublisher, s.logger, batch.events)

	logger.WithLogger(ctx, s.logger).Info("Expense approved",
		zap.String("tenant_id", expense.TenantID.String()),
		zap.String("expense_id", expense.ID.String()),
		zap.String("expense_number", expense.ExpenseNumber),
		zap.String("journal_entry_id", expense.JournalEntryID.String()),
		zap.String("total", expense.TotalAmount.String()))

	return toExpenseResponse(expense), nil
}

func (s *ExpenseService) recognitionEntry(expense *ledger.Expense, settings *ledger.TenantSettings, number string) (*ledger.JournalEntry, error) {
	var expenseAccount uuid.UUID
	if expense.ExpenseAccountID != nil {
		expenseAccount = *expense.ExpenseAccountID
	} else {
		var err error
		if expenseAccount, err = settings.ExpenseAccountFor(expense.CategoryID); err != nil {
			return nil, err
		}
	}

	creditRole := ledger.RoleAccountsPayable
	if expense.IsPaid() {
		creditRole = ledger.RoleCash
	}
	creditAccount, err := settings.AccountFor(creditRole)
	if err != nil {
		return nil, err
	}

	description := ledger.ClipJournalText(fmt.Sprintf("Expense %s: %s", expense.ExpenseNumber, expense.Description))
	dims := ledger.Dimensions{ClientID: expense.ClientID, CaseID: expense.CaseID}

	lines := make([]ledger.JournalLine, 0, 3)
	lines = append(lines, withDimensions(ledger.DebitLine(expenseAccount, expense.Amount, description), dims))
	if expense.TaxAmount.IsPositive() {
		taxExpense, err := settings.AccountFor(ledger.RoleTaxExpense)
		if err != nil {
			return nil, err
		}
		lines = append(lines, withDimensions(ledger.DebitLine(taxExpense, expense.TaxAmount, ledger.ClipJournalText("Tax on "+description)), dims))
	}
	lines = append(lines, withDimensions(ledger.CreditLine(creditAccount, expense.TotalAmount, description), dims))

	return ledger.NewJournalEntry(
		expense.TenantID, number, expense.ExpenseDate, description,
		ledger.ExpenseSource(expense.ID), lines,
	)
}

// Reject closes a pending expense without recognition
func (s *ExpenseService) Reject(ctx context.Context, input RejectExpenseInput) (*ExpenseResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "expense", "reject")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, input.TenantID.String(),
		telemetry.SpanAttrExpenseID, input.ExpenseID.String(),
	)

	if err := validateInput(input); err != nil {
		return nil, err
	}

	expense, err := s.mutate(ctx, input.TenantID, input.ExpenseID, func(e *ledger.Expense) error {
		return e.Reject(input.Reason, input.ActorID, s.now())
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	logger.WithLogger(ctx, s.logger).Info("Expense rejected",
		zap.String("tenant_id", expense.TenantID.String()),
		zap.String("expense_id", expense.ID.String()),
		zap.String("reason", expense.RejectionReason))

	return toExpenseResponse(expense), nil
}

// MarkPaid records settlement. A recognized expense keeps its entry; the AP
// settlement posting is left to a manual entry.
func (s *ExpenseService) MarkPaid(ctx context.Context, input MarkExpensePaidInput) (*ExpenseResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "expense", "mark_paid")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, input.TenantID.String(),
		telemetry.SpanAttrExpenseID, input.ExpenseID.String(),
	)

	if err := validateInput(input); err != nil {
		return nil, err
	}

	expense, err := s.mutate(ctx, input.TenantID, input.ExpenseID, func(e *ledger.Expense) error {
		now := s.now()
		return e.MarkPaid(ledger.PaymentMethod(input.Method), dateOr(input.PaidAt, now), input.Reference, now)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	logger.WithLogger(ctx, s.logger).Info("Expense marked paid",
		zap.String("tenant_id", expense.TenantID.String()),
		zap.String("expense_id", expense.ID.String()),
		zap.String("method", expense.PaymentMethod.String()))

	return toExpenseResponse(expense), nil
}

// mutate locks the expense, applies fn and saves it in one transaction
func (s *ExpenseService) mutate(ctx context.Context, tenantID, expenseID uuid.UUID, fn func(*ledger.Expense) error) (*ledger.Expense, error) {
	var expense *ledger.Expense
	var batch eventBatch
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		batch.reset()
		var err error
		expense, err = s.lockExpense(ctx, repos, tenantID, expenseID)
		if err != nil {
			return err
		}
		if err := fn(expense); err != nil {
			return err
		}
		if err := repos.Expenses().SaveWithLock(ctx, expense); err != nil {
			return err
		}
		batch.collect(expense)
		return nil
	})
	if err != nil {
		return nil, err
	}
	publishEvents(ctx, s.eventPublisher, s.logger, batch.events)
	return expense, nil
}

func (s *ExpenseService) lockExpense(ctx context.Context, repos TransactionalRepositories, tenantID, expenseID uuid.UUID) (*ledger.Expense, error) {
	expense, err := repos.Expenses().FindByIDForUpdate(ctx, tenantID, expenseID)
	if err != nil {
		return nil, err
	}
	if expense == nil {
		return nil, ledger.NewNotFoundError("expense", expenseID)
	}
	return expense, nil
}
