package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lexledger/backend/internal/domain/ledger"
	"github.com/lexledger/backend/internal/infrastructure/logger"
	"github.com/lexledger/backend/internal/infrastructure/telemetry"
)

// SettingsService manages the per-tenant role mapping and numbering prefixes
type SettingsService struct {
	scope    TransactionScope
	settings ledger.SettingsRepository
	defaults Defaults
	logger   *zap.Logger
	now      func() time.Time
}

// NewSettingsService creates a new SettingsService
func NewSettingsService(
	scope TransactionScope,
	settings ledger.SettingsRepository,
	defaults Defaults,
	logger *zap.Logger,
) *SettingsService {
	return &SettingsService{
		scope:    scope,
		settings: settings,
		defaults: defaults,
		logger:   nonNilLogger(logger),
		now:      utcNow,
	}
}

// SetClock replaces the time source
func (s *SettingsService) SetClock(now func() time.Time) {
	s.now = now
}

// Configure validates every mapped account and replaces the tenant's settings
func (s *SettingsService) Configure(ctx context.Context, input ConfigureSettingsInput) (*SettingsResponse, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "ledger_settings", "configure")
	defer span.End()
	telemetry.SetAttributes(span, telemetry.SpanAttrTenantID, input.TenantID.String())

	if err := validateInput(input); err != nil {
		return nil, err
	}

	var result *ledger.TenantSettings
	err := s.scope.Execute(ctx, func(repos TransactionalRepositories) error {
		existing, err := repos.Settings().FindByTenant(ctx, input.TenantID)
		if err != nil {
			return fmt.Errorf("failed to load ledger settings: %w", err)
		}

		currency := input.Currency
		if currency == "" && existing != nil {
			currency = existing.Currency
		}
		settings, err := ledger.NewTenantSettings(input.TenantID, s.defaults.currencyOr(currency))
		if err != nil {
			return err
		}
		if existing != nil {
			settings.Version = existing.Version
			settings.CreatedAt = existing.CreatedAt
		}
		if input.PaymentTermDays > 0 {
			settings.PaymentTermDays = input.PaymentTermDays
		} else if s.defaults.PaymentTermDays > 0 {
			settings.PaymentTermDays = s.defaults.PaymentTermDays
		}

		accounts, err := s.loadMappedAccounts(ctx, repos.Accounts(), input)
		if err != nil {
			return err
		}
		for role, accountID := range input.RoleAccounts {
			if err := settings.MapRole(ledger.AccountRole(role), accounts[accountID]); err != nil {
				return err
			}
		}
		for categoryID, accountID := range input.ExpenseCategoryAccounts {
			if err := settings.MapExpenseCategory(categoryID, accounts[accountID]); err != nil {
				return err
			}
		}
		for kind, prefix := range input.Prefixes {
			if err := settings.SetPrefix(ledger.CounterKind(kind), prefix); err != nil {
				return err
			}
		}
		settings.UpdatedAt = s.now()

		if err := repos.Settings().Save(ctx, settings); err != nil {
			return err
		}
		result = settings
		return nil
	})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	logger.WithLogger(ctx, s.logger).Info("Ledger settings configured",
		zap.String("tenant_id", input.TenantID.String()),
		zap.Int("roles", len(result.RoleAccounts)),
		zap.Int("expense_categories", len(result.ExpenseCategoryAccounts)),
		zap.Int("version", result.Version))

	return toSettingsResponse(result), nil
}

func (s *SettingsService) loadMappedAccounts(
	ctx context.Context,
	repo ledger.AccountRepository,
	input ConfigureSettingsInput,
) (map[uuid.UUID]*ledger.Account, error) {
	ids := make([]uuid.UUID, 0, len(input.RoleAccounts)+len(input.ExpenseCategoryAccounts))
	for _, id := range input.RoleAccounts {
		ids = append(ids, id)
	}
	for _, id := range input.ExpenseCategoryAccounts {
		ids = append(ids, id)
	}
	byID := make(map[uuid.UUID]*ledger.Account, len(ids))
	if len(ids) == 0 {
		return byID, nil
	}

	accounts, err := repo.FindByIDs(ctx, input.TenantID, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", err)
	}
	for _, account := range accounts {
		byID[account.ID] = account
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, ledger.NewNotFoundError("account", id)
		}
	}
	return byID, nil
}

// Get returns the tenant's settings
func (s *SettingsService) Get(ctx context.Context, tenantID uuid.UUID) (*SettingsResponse, error) {
	settings, err := s.settings.FindByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return nil, ledger.NewNotFoundError("ledger settings", tenantID)
	}
	return toSettingsResponse(settings), nil
}
