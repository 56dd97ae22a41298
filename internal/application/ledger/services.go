package ledger

import (
	"go.uber.org/zap"

	"github.com/lexledger/backend/internal/domain/ledger"
	"github.com/lexledger/backend/internal/domain/shared"
)

// Dependencies are the ports the ledger services are built on
type Dependencies struct {
	Scope     TransactionScope
	Accounts  ledger.AccountRepository
	Entries   ledger.JournalEntryRepository
	Invoices  ledger.InvoiceRepository
	Payments  ledger.PaymentRepository
	Expenses  ledger.ExpenseRepository
	Settings  ledger.SettingsRepository
	Counters  ledger.CounterStore
	Publisher shared.EventPublisher
	Defaults  Defaults
	Logger    *zap.Logger
}

// Services groups every ledger application service built over one set of
// dependencies
type Services struct {
	Accounts *AccountService
	Settings *SettingsService
	Sequence *SequenceService
	Journal  *JournalService
	Invoices *InvoiceService
	Payments *PaymentService
	Expenses *ExpenseService
}

// NewServices wires the services together. The journal service is shared by
// the document services so every posting goes through one engine.
func NewServices(deps Dependencies) *Services {
	log := nonNilLogger(deps.Logger)

	sequence := NewSequenceService(deps.Counters, deps.Settings, deps.Defaults, log.Named("sequence"))
	journal := NewJournalService(deps.Scope, deps.Accounts, deps.Entries, sequence, log.Named("journal"))

	svc := &Services{
		Accounts: NewAccountService(deps.Accounts, deps.Entries, deps.Settings, deps.Defaults, log.Named("accounts")),
		Settings: NewSettingsService(deps.Scope, deps.Settings, deps.Defaults, log.Named("settings")),
		Sequence: sequence,
		Journal:  journal,
		Invoices: NewInvoiceService(deps.Scope, deps.Invoices, journal, sequence, deps.Defaults, log.Named("invoices")),
		Payments: NewPaymentService(deps.Scope, deps.Payments, journal, sequence, deps.Defaults, log.Named("payments")),
		Expenses: NewExpenseService(deps.Scope, deps.Expenses, deps.Accounts, journal, sequence, deps.Defaults, log.Named("expenses")),
	}

	if deps.Publisher != nil {
		svc.Accounts.SetEventPublisher(deps.Publisher)
		svc.Journal.SetEventPublisher(deps.Publisher)
		svc.Invoices.SetEventPublisher(deps.Publisher)
		svc.Payments.SetEventPublisher(deps.Publisher)
		svc.Expenses.SetEventPublisher(deps.Publisher)
	}
	return svc
}
