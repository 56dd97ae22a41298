package ledger

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lexledger/backend/internal/domain/ledger"
	"github.com/lexledger/backend/internal/domain/shared"
	"github.com/lexledger/backend/internal/infrastructure/logger"
	"github.com/lexledger/backend/internal/infrastructure/telemetry"
)

// AccountService manages a tenant's chart of accounts
type AccountService struct {
	accounts       ledger.AccountRepository
	entries        ledger.JournalEntryRepository
	settings       ledger.SettingsRepository
	defaults       Defaults
	eventPublisher shared.EventPublisher
	logger         *zap.Logger
}

// NewAccountService creates a new AccountService
func NewAccountService(
	accounts ledger.AccountRepository,
	entries ledger.JournalEntryRepository,
	settings ledger.SettingsRepository,
	defaults Defaults,
	logger *zap.Logger,
) *AccountService {
	return &AccountService{
		accounts: accounts,
		entries:  entries,
		settings: settings,
		defaults: defaults,
		logger:   nonNilLogger(logger),
	}
}

// SetEventPublisher sets the event publisher
func (s *AccountService) SetEventPublisher(publisher shared.EventPublisher) {
	s.eventPublisher = publisher
}

// CreateAccount adds an account to the tenant's chart. Codes are unique per tenant.
func (s *AccountService) CreateAccount(ctx context.Context, input CreateAccountInput) (*AccountResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "account", "create")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, input.TenantID.String(),
		telemetry.SpanAttrAccountCode, input.Code,
	)

	if err := validateInput(input); err != nil {
		return nil, err
	}

	code := strings.TrimSpace(input.Code)
	exists, err := s.accounts.ExistsByCode(ctx, input.TenantID, code)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to check account code: %w", err)
	}
	if exists {
		return nil, shared.NewDomainErrorf(shared.ErrAlreadyExists.Code, "Account code %s already exists", code).
			WithDetail("code", code)
	}

	account, err := ledger.NewAccount(input.TenantID, code, input.Name, ledger.AccountType(input.Type), s.defaults.currencyOr(input.Currency))
	if err != nil {
		return nil, err
	}
	account.Description = strings.TrimSpace(input.Description)
	account.SetCreatedBy(input.ActorID)
	if input.IsSystem {
		account.MarkSystem()
	}

	if input.ParentID != nil {
		parent, err := s.accounts.FindByID(ctx, input.TenantID, *input.ParentID)
		if err != nil {
			return nil, fmt.Errorf("failed to load parent account: %w", err)
		}
		if parent == nil {
			return nil, ledger.NewNotFoundError("account", *input.ParentID)
		}
		if err := account.SetParent(parent); err != nil {
			return nil, err
		}
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	events := account.GetDomainEvents()
	account.ClearDomainEvents()
	publishEvents(ctx, s.eventPublisher, s.logger, events)

	logger.WithLogger(ctx, s.logger).Info("Account created",
		zap.String("tenant_id", account.TenantID.String()),
		zap.String("account_id", account.ID.String()),
		zap.String("code", account.Code),
		zap.String("type", account.Type.String()))

	return toAccountResponse(account), nil
}

// GetAccount returns one account
func (s *AccountService) GetAccount(ctx context.Context, tenantID, accountID uuid.UUID) (*AccountResponse, error) {
	account, err := s.findAccount(ctx, tenantID, accountID)
	if err != nil {
		return nil, err
	}
	return toAccountResponse(account), nil
}

// ListAccounts returns every account of the tenant ordered by code
func (s *AccountService) ListAccounts(ctx context.Context, tenantID uuid.UUID) ([]*AccountResponse, error) {
	accounts, err := s.accounts.FindAllForTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	result := make([]*AccountResponse, 0, len(accounts))
	for _, account := range accounts {
		result = append(result, toAccountResponse(account))
	}
	return result, nil
}

// GetChartOfAccounts returns the parent/children tree ordered by code at every level
func (s *AccountService) GetChartOfAccounts(ctx context.Context, tenantID uuid.UUID) ([]*AccountNodeResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "account", "chart_of_accounts")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrTenantID, tenantID.String())

	accounts, err := s.accounts.FindAllForTenant(ctx, tenantID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	roots := ledger.BuildChartOfAccounts(accounts)
	result := make([]*AccountNodeResponse, 0, len(roots))
	for _, root := range roots {
		result = append(result, toAccountNodeResponse(root))
	}
	return result, nil
}

// DeactivateAccount blocks new journal lines against the account.
// System accounts and accounts mapped to a ledger role stay active.
func (s *AccountService) DeactivateAccount(ctx context.Context, tenantID, accountID, actorID uuid.UUID) (*AccountResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "account", "deactivate")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrAccountID, accountID.String(),
	)

	account, err := s.findAccount(ctx, tenantID, accountID)
	if err != nil {
		return nil, err
	}
	if err := s.ensureNotMapped(ctx, account, "deactivate"); err != nil {
		return nil, err
	}
	if err := account.Deactivate(); err != nil {
		return nil, err
	}
	if err := s.accounts.SaveWithLock(ctx, account); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	events := account.GetDomainEvents()
	account.ClearDomainEvents()
	publishEvents(ctx, s.eventPublisher, s.logger, events)

	logger.WithLogger(ctx, s.logger).Info("Account deactivated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("account_id", accountID.String()),
		zap.String("code", account.Code),
		zap.String("actor_id", actorID.String()))

	return toAccountResponse(account), nil
}

// ActivateAccount re-enables a deactivated account
func (s *AccountService) ActivateAccount(ctx context.Context, tenantID, accountID, actorID uuid.UUID) (*AccountResponse, error) {
	account, err := s.findAccount(ctx, tenantID, accountID)
	if err != nil {
		return nil, err
	}
	if err := account.Activate(); err != nil {
		return nil, err
	}
	if err := s.accounts.SaveWithLock(ctx, account); err != nil {
		return nil, err
	}

	logger.WithLogger(ctx, s.logger).Info("Account activated",
		zap.String("tenant_id", tenantID.String()),
		zap.String("account_id", accountID.String()),
		zap.String("actor_id", actorID.String()))

	return toAccountResponse(account), nil
}

// DeleteAccount removes an account that no journal line has ever referenced.
// Referenced accounts can only be deactivated.
func (s *AccountService) DeleteAccount(ctx context.Context, tenantID, accountID uuid.UUID) error {
	ctx, span := telemetry.StartServiceSpan(ctx, "account", "delete")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrAccountID, accountID.String(),
	)

	account, err := s.findAccount(ctx, tenantID, accountID)
	if err != nil {
		return err
	}
	if account.IsSystem {
		return ledger.NewInvalidStateError("account", account.ID, "system", "delete")
	}
	if err := s.ensureNotMapped(ctx, account, "delete"); err != nil {
		return err
	}

	lines, err := s.entries.CountLinesForAccount(ctx, tenantID, accountID)
	if err != nil {
		return fmt.Errorf("failed to count journal lines: %w", err)
	}
	if lines > 0 {
		return ledger.NewInvalidStateError("account", account.ID, "referenced", "delete").
			WithDetail("journal_lines", lines)
	}

	all, err := s.accounts.FindAllForTenant(ctx, tenantID)
	if err != nil {
		return err
	}
	for _, other := range all {
		if other.ParentID != nil && *other.ParentID == accountID {
			return ledger.NewInvalidStateError("account", account.ID, "parent", "delete").
				WithDetail("child_account_id", other.ID.String())
		}
	}

	if err := s.accounts.Delete(ctx, tenantID, accountID); err != nil {
		telemetry.RecordError(span, err)
		return err
	}

	logger.WithLogger(ctx, s.logger).Info("Account deleted",
		zap.String("tenant_id", tenantID.String()),
		zap.String("account_id", accountID.String()),
		zap.String("code", account.Code))
	return nil
}

func (s *AccountService) findAccount(ctx context.Context, tenantID, accountID uuid.UUID) (*ledger.Account, error) {
	account, err := s.accounts.FindByID(ctx, tenantID, accountID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ledger.NewNotFoundError("account", accountID)
	}
	return account, nil
}

func (s *AccountService) ensureNotMapped(ctx context.Context, account *ledger.Account, operation string) error {
	if s.settings == nil {
		return nil
	}
	settings, err := s.settings.FindByTenant(ctx, account.TenantID)
	if err != nil {
		return fmt.Errorf("failed to load ledger settings: %w", err)
	}
	if settings == nil {
		return nil
	}
	if role, mapped := settings.RoleOf(account.ID); mapped {
		return ledger.NewInvalidStateError("account", account.ID, "mapped", operation).
			WithDetail("role", role.String())
	}
	return nil
}
