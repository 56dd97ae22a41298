package ledger

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/lexledger/backend/internal/domain/ledger"
	"github.com/lexledger/backend/internal/domain/shared"
	"github.com/lexledger/backend/internal/infrastructure/logger"
	"github.com/lexledger/backend/internal/infrastructure/telemetry"
)

// JournalService creates, posts and voids journal entries.
//
// Posting and voiding lock the entry row and then every referenced account row in
// ascending id order inside one transaction. Entries sharing an account serialize on
// its row lock; entries on disjoint accounts proceed concurrently.
type JournalService struct {
	scope          TransactionScope
	accounts       ledger.AccountRepository
	entries        ledger.JournalEntryRepository
	numbers        NumberSource
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
	now            func() time.Time
}

// NewJournalService creates a new JournalService
func NewJournalService(
	scope TransactionScope,
	accounts ledger.AccountRepository,
	entries ledger.JournalEntryRepository,
	numbers NumberSource,
	logger *zap.Logger,
) *JournalService {
	return &JournalService{
		scope:    scope,
		accounts: accounts,
		entries:  entries,
		numbers:  numbers,
		logger:   nonNilLogger(logger),
		now:      utcNow,
	}
}

// SetEventPublisher sets the event publisher
func (s *JournalService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// SetClock replaces the time source
func (s *JournalService) SetClock(now func() time.Time) {
	s.now = now
}

// CreateDraft stores a manual entry without touching any balance.
// Only structural checks run: line shape and active accounts of the tenant.
func (s *JournalService) CreateDraft(ctx context.Context, input CreateJournalEntryInput) (*JournalEntryResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "journal_entry", "create_draft")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, input.TenantID.String(),
		telemetry.SpanAttrLineCount, len(input.Lines),
	)

	if err := validateInput(input); err != nil {
		return nil, err
	}
	lines := toJournalLines(input.Lines)
	if err := s.checkLineAccounts(ctx, s.accounts, input.TenantID, lines); err != nil {
		return nil, err
	}

	number, err := s.numbers.NextDocumentNumber(ctx, input.TenantID, ledger.CounterKindJournalEntry)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	entry, err := ledger.NewJournalEntry(input.TenantID, number, input.EntryDate, input.Description, ledger.ManualSource(), lines)
	if err != nil {
		return nil, err
	}
	entry.SetCreatedBy(input.ActorID)

	if err := s.entries.Create(ctx, entry); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	logger.WithLogger(ctx, s.logger).Info("Journal entry drafted",
		zap.String("tenant_id", entry.TenantID.String()),
		zap.String("entry_id", entry.ID.String()),
		zap.String("entry_number", entry.EntryNumber),
		zap.Int("lines", len(entry.Lines)))

	return toJournalEntryResponse(entry), nil
}

// UpdateDraft replaces the description and lines of a draft entry
func (s *JournalService) UpdateDraft(ctx context.Context, input UpdateJournalEntryInput) (*JournalEntryResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "journal_entry", "update_draft")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, input.TenantID.String(),
		telemetry.SpanAttrEntryID, input.EntryID.String(),
	)

	if err := validateInput(input); err != nil {
		return nil, err
	}
	lines := toJournalLines(input.Lines)

	var entry *ledger.JournalEntry
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		var err error
		entry, err = repos.JournalEntries().FindByIDForUpdate(ctx, input.TenantID, input.EntryID)
		if err != nil {
			return err
		}
		if entry == nil {
			return ledger.NewNotFoundError("journal entry", input.EntryID)
		}
		if !entry.IsDraft() {
			return ledger.NewInvalidStateError("journal entry", entry.ID, entry.Status.String(), "edit")
		}
		if err := s.checkLineAccounts(ctx, repos.Accounts(), input.TenantID, lines); err != nil {
			return err
		}
		if err := entry.ReplaceLines(input.Description, lines); err != nil {
			return err
		}
		return repos.JournalEntries().SaveWithLock(ctx, entry)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return toJournalEntryResponse(entry), nil
}

// Post checks the balance invariant and applies every line to its account in one
// atomic unit. On any failure the entry stays draft and no balance moves.
func (s *JournalService) Post(ctx context.Context, tenantID, entryID, actorID uuid.UUID) (*JournalEntryResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "journal_entry", "post")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrEntryID, entryID.String(),
		telemetry.SpanAttrActorID, actorID.String(),
	)

	var entry *ledger.JournalEntry
	var batch eventBatch
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		batch.reset()
		var err error
		entry, err = s.PostWithin(ctx, repos, tenantID, entryID, actorID)
		if err != nil {
			return err
		}
		batch.collect(entry)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	publishEvents(ctx, s.eventPublisher, s.logger, batch.events)

	debits, _ := entry.Totals()
	telemetry.SetAttribute(span, telemetry.SpanAttrAmount, debits.String())
	logger.WithLogger(ctx, s.logger).Info("Journal entry posted",
		zap.String("tenant_id", tenantID.String()),
		zap.String("entry_id", entry.ID.String()),
		zap.String("entry_number", entry.EntryNumber),
		zap.String("amount", debits.String()))

	return toJournalEntryResponse(entry), nil
}

// PostWithin posts a stored draft inside the caller's transaction
func (s *JournalService) PostWithin(ctx context.Context, repos TransactionalRepositories, tenantID, entryID, actorID uuid.UUID) (*ledger.JournalEntry, error) {
	entry, err := repos.JournalEntries().FindByIDForUpdate(ctx, tenantID, entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ledger.NewNotFoundError("journal entry", entryID)
	}
	if !entry.Status.CanPost() {
		return nil, ledger.NewInvalidStateError("journal entry", entry.ID, entry.Status.String(), "post")
	}
	if !entry.IsBalanced() {
		debits, credits := entry.Totals()
		return nil, ledger.NewUnbalancedEntryError(entry.ID, debits, credits)
	}

	accounts, err := s.lockAccounts(ctx, repos, tenantID, entry.AccountIDs())
	if err != nil {
		return nil, err
	}
	if err := entry.Post(accounts, actorID, s.now()); err != nil {
		return nil, err
	}
	if err := repos.Accounts().UpdateBalances(ctx, accountSlice(accounts)); err != nil {
		return nil, err
	}
	if err := repos.JournalEntries().SaveWithLock(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// RecordWithin stores and posts a system-generated entry inside the caller's
// transaction. Every line must reference an active account of the tenant.
func (s *JournalService) RecordWithin(ctx context.Context, repos TransactionalRepositories, entry *ledger.JournalEntry, actorID uuid.UUID) error {
	if !entry.IsBalanced() {
		debits, credits := entry.Totals()
		return ledger.NewUnbalancedEntryError(entry.ID, debits, credits)
	}

	accounts, err := s.lockAccounts(ctx, repos, entry.TenantID, entry.AccountIDs())
	if err != nil {
		return err
	}
	for _, line := range entry.Lines {
		if account := accounts[line.AccountID]; !account.IsActive {
			return ledger.NewValidationError("Line %d: account %s (%s) is inactive", line.LineNo, account.Code, account.ID).
				WithDetail("account_id", account.ID.String())
		}
	}

	entry.SetCreatedBy(actorID)
	if err := entry.Post(accounts, actorID, s.now()); err != nil {
		return err
	}
	if err := repos.Accounts().UpdateBalances(ctx, accountSlice(accounts)); err != nil {
		return err
	}
	return repos.JournalEntries().Create(ctx, entry)
}

// Void reverses exactly the balance deltas stored at posting. The entry and its
// lines are kept; a voided entry can never be posted again. Only manual entries
// can be voided here; document entries are voided by their owning workflow.
func (s *JournalService) Void(ctx context.Context, input VoidJournalEntryInput) (*JournalEntryResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "journal_entry", "void")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, input.TenantID.String(),
		telemetry.SpanAttrEntryID, input.EntryID.String(),
		telemetry.SpanAttrActorID, input.ActorID.String(),
	)

	if err := validateInput(input); err != nil {
		return nil, err
	}

	var entry *ledger.JournalEntry
	var batch eventBatch
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		batch.reset()
		var err error
		entry, err = s.voidLocked(ctx, repos, input.TenantID, input.EntryID, input.Reason, input.ActorID, true)
		if err != nil {
			return err
		}
		batch.collect(entry)
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	publishEvents(ctx, s.eventPublisher, s.logger, batch.events)

	logger.WithLogger(ctx, s.logger).Info("Journal entry voided",
		zap.String("tenant_id", input.TenantID.String()),
		zap.String("entry_id", entry.ID.String()),
		zap.String("entry_number", entry.EntryNumber),
		zap.String("reason", entry.VoidReason))

	return toJournalEntryResponse(entry), nil
}

// VoidWithin voids a posted entry inside the caller's transaction
func (s *JournalService) VoidWithin(ctx context.Context, repos TransactionalRepositories, tenantID, entryID uuid.UUID, reason string, actorID uuid.UUID) (*ledger.JournalEntry, error) {
	return s.voidLocked(ctx, repos, tenantID, entryID, reason, actorID, false)
}

func (s *JournalService) voidLocked(ctx context.Context, repos TransactionalRepositories, tenantID, entryID uuid.UUID, reason string, actorID uuid.UUID, manualOnly bool) (*ledger.JournalEntry, error) {
	entry, err := repos.JournalEntries().FindByIDForUpdate(ctx, tenantID, entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ledger.NewNotFoundError("journal entry", entryID)
	}
	if manualOnly && entry.Source.Kind() != ledger.SourceKindManual {
		return nil, shared.NewDomainErrorf(shared.ErrInvalidState.Code,
			"Journal entry %s belongs to %s and is voided through that document", entry.EntryNumber, entry.Source).
			WithDetail("source", entry.Source.String())
	}
	if !entry.Status.CanVoid() {
		return nil, ledger.NewInvalidStateError("journal entry", entry.ID, entry.Status.String(), "void")
	}

	accounts, err := s.lockAccounts(ctx, repos, tenantID, entry.AccountIDs())
	if err != nil {
		return nil, err
	}
	if err := entry.Void(accounts, reason, actorID, s.now()); err != nil {
		return nil, err
	}
	if err := repos.Accounts().UpdateBalances(ctx, accountSlice(accounts)); err != nil {
		return nil, err
	}
	if err := repos.JournalEntries().SaveWithLock(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

// GetEntry returns one entry with its lines
func (s *JournalService) GetEntry(ctx context.Context, tenantID, entryID uuid.UUID) (*JournalEntryResponse, error) {
	entry, err := s.entries.FindByID(ctx, tenantID, entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, ledger.NewNotFoundError("journal entry", entryID)
	}
	return toJournalEntryResponse(entry), nil
}

// ListEntries returns a page of entries, newest first
func (s *JournalService) ListEntries(ctx context.Context, input ListJournalEntriesInput) (*PageResult[*JournalEntryResponse], error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}
	page, pageSize := normalizePage(input.Page, input.PageSize)
	filter := ledger.JournalEntryFilter{
		SourceID:  input.SourceID,
		AccountID: input.AccountID,
		FromDate:  input.FromDate,
		ToDate:    input.ToDate,
		Page:      page,
		PageSize:  pageSize,
	}
	if input.Status != "" {
		status := ledger.JournalEntryStatus(input.Status)
		filter.Status = &status
	}
	if input.SourceKind != "" {
		kind := ledger.SourceKind(input.SourceKind)
		filter.SourceKind = &kind
	}

	entries, total, err := s.entries.FindAll(ctx, input.TenantID, filter)
	if err != nil {
		return nil, err
	}
	items := make([]*JournalEntryResponse, 0, len(entries))
	for _, entry := range entries {
		items = append(items, toJournalEntryResponse(entry))
	}
	return &PageResult[*JournalEntryResponse]{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// TrialBalance lists every account balance in its debit or credit column and
// checks that both columns add up to the same total
func (s *JournalService) TrialBalance(ctx context.Context, tenantID uuid.UUID) (*TrialBalanceResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "journal_entry", "trial_balance")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrTenantID, tenantID.String())

	accounts, err := s.accounts.FindAllForTenant(ctx, tenantID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	sort.Slice(accounts, func(i, j int) bool { return accounts[i].Code < accounts[j].Code })

	resp := &TrialBalanceResponse{
		TenantID:    tenantID,
		GeneratedAt: s.now(),
		Lines:       make([]TrialBalanceLine, 0, len(accounts)),
		TotalDebit:  decimal.Zero,
		TotalCredit: decimal.Zero,
	}
	for _, account := range accounts {
		debit, credit := account.DebitCreditColumns()
		resp.Lines = append(resp.Lines, TrialBalanceLine{
			AccountID: account.ID,
			Code:      account.Code,
			Name:      account.Name,
			Type:      account.Type.String(),
			Balance:   account.CurrentBalance,
			Debit:     debit,
			Credit:    credit,
		})
		resp.TotalDebit = resp.TotalDebit.Add(debit)
		resp.TotalCredit = resp.TotalCredit.Add(credit)
	}
	resp.Balanced = resp.TotalDebit.Equal(resp.TotalCredit)
	if !resp.Balanced {
		logger.WithLogger(ctx, s.logger).Warn("Trial balance does not balance",
			zap.String("tenant_id", tenantID.String()),
			zap.String("total_debit", resp.TotalDebit.String()),
			zap.String("total_credit", resp.TotalCredit.String()))
	}
	return resp, nil
}

// AccountLedger lists the journal lines that affected an account, oldest first,
// with the running balance. Lines of voided entries are listed with no effect.
func (s *JournalService) AccountLedger(ctx context.Context, tenantID, accountID uuid.UUID) (*AccountLedgerResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "journal_entry", "account_ledger")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrAccountID, accountID.String(),
	)

	account, err := s.accounts.FindByID(ctx, tenantID, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ledger.NewNotFoundError("account", accountID)
	}

	lines, err := s.entries.FindLinesForAccount(ctx, tenantID, accountID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	running := decimal.Zero
	resp := &AccountLedgerResponse{
		Account: toAccountResponse(account),
		Lines:   make([]AccountLedgerLine, 0, len(lines)),
	}
	for _, line := range lines {
		effect := decimal.Zero
		if line.Status == ledger.JournalEntryStatusPosted {
			effect = line.AppliedDelta
		}
		running = running.Add(effect)
		resp.Lines = append(resp.Lines, AccountLedgerLine{
			EntryID:        line.EntryID,
			EntryNumber:    line.EntryNumber,
			EntryDate:      line.EntryDate,
			Status:         line.Status.String(),
			Debit:          line.Debit,
			Credit:         line.Credit,
			Effect:         effect,
			RunningBalance: running,
			Description:    line.Description,
		})
	}
	resp.Balance = running
	return resp, nil
}

// VerifyAccountBalances recomputes every balance from the applied deltas of posted
// entries and reports accounts whose stored balance drifted. It changes nothing.
func (s *JournalService) VerifyAccountBalances(ctx context.Context, tenantID uuid.UUID) (*BalanceVerificationReport, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "journal_entry", "verify_balances")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrTenantID, tenantID.String())

	accounts, err := s.accounts.FindAllForTenant(ctx, tenantID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	computed, err := s.entries.NetAppliedByAccount(ctx, tenantID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	report := &BalanceVerificationReport{
		TenantID:  tenantID,
		CheckedAt: s.now(),
		Accounts:  len(accounts),
		Drifts:    make([]BalanceDrift, 0),
	}
	for _, account := range accounts {
		expected, ok := computed[account.ID]
		if !ok {
			expected = decimal.Zero
		}
		if !account.CurrentBalance.Equal(expected) {
			report.Drifts = append(report.Drifts, BalanceDrift{
				AccountID:  account.ID,
				Code:       account.Code,
				Stored:     account.CurrentBalance,
				Computed:   expected,
				Difference: account.CurrentBalance.Sub(expected),
			})
		}
	}
	sort.Slice(report.Drifts, func(i, j int) bool { return report.Drifts[i].Code < report.Drifts[j].Code })
	report.Consistent = len(report.Drifts) == 0

	if !report.Consistent {
		logger.WithLogger(ctx, s.logger).Warn("Account balances drifted from the journal",
			zap.String("tenant_id", tenantID.String()),
			zap.Int("drifted_accounts", len(report.Drifts)))
	}
	return report, nil
}

// lockAccounts locks the accounts in ascending id order and checks that all exist
func (s *JournalService) lockAccounts(ctx context.Context, repos TransactionalRepositories, tenantID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]*ledger.Account, error) {
	ledger.SortIDs(ids)
	locked, err := repos.Accounts().LockByIDs(ctx, tenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to lock accounts: %w", err)
	}
	accounts := make(map[uuid.UUID]*ledger.Account, len(locked))
	for _, account := range locked {
		accounts[account.ID] = account
	}
	for _, id := range ids {
		if _, ok := accounts[id]; !ok {
			return nil, ledger.NewNotFoundError("account", id)
		}
	}
	return accounts, nil
}

func (s *JournalService) checkLineAccounts(ctx context.Context, repo ledger.AccountRepository, tenantID uuid.UUID, lines []ledger.JournalLine) error {
	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.AccountID)
	}
	found, err := repo.FindByIDs(ctx, tenantID, ids)
	if err != nil {
		return fmt.Errorf("failed to load accounts: %w", err)
	}
	accounts := make(map[uuid.UUID]*ledger.Account, len(found))
	for _, account := range found {
		accounts[account.ID] = account
	}
	return ledger.CheckLineAccounts(tenantID, lines, accounts)
}

// accountSlice returns the accounts in ascending id order so writes follow lock order
func accountSlice(accounts map[uuid.UUID]*ledger.Account) []*ledger.Account {
	ids := make([]uuid.UUID, 0, len(accounts))
	for id := range accounts {
		ids = append(ids, id)
	}
	ledger.SortIDs(ids)
	result := make([]*ledger.Account, 0, len(ids))
	for _, id := range ids {
		result = append(result, accounts[id])
	}
	return result
}
