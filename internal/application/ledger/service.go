package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lexledger/backend/internal/domain/ledger"
	"github.com/lexledger/backend/internal/domain/shared"
	"github.com/lexledger/backend/internal/infrastructure/logger"
)

// Defaults are tenant-independent fallbacks taken from configuration
type Defaults struct {
	Currency        string
	Prefixes        map[ledger.CounterKind]string
	PaymentTermDays int
}

// DefaultDefaults returns USD, the built-in prefixes and 30 day terms
func DefaultDefaults() Defaults {
	prefixes := make(map[ledger.CounterKind]string)
	for _, kind := range ledger.AllCounterKinds() {
		prefixes[kind] = kind.DefaultPrefix()
	}
	return Defaults{
		Currency:        "USD",
		Prefixes:        prefixes,
		PaymentTermDays: ledger.DefaultPaymentTermDays,
	}
}

func (d Defaults) currencyOr(currency string) string {
	if currency != "" {
		return currency
	}
	if d.Currency != "" {
		return d.Currency
	}
	return "USD"
}

// NumberSource hands out formatted document numbers
type NumberSource interface {
	NextDocumentNumber(ctx context.Context, tenantID uuid.UUID, kind ledger.CounterKind) (string, error)
}

// eventSource is any aggregate that records domain events
type eventSource interface {
	GetDomainEvents() []shared.DomainEvent
	ClearDomainEvents()
}

// eventBatch gathers events raised inside a transaction for publishing after commit
type eventBatch struct {
	events []shared.DomainEvent
}

func (b *eventBatch) collect(sources ...eventSource) {
	for _, src := range sources {
		if src == nil {
			continue
		}
		b.events = append(b.events, src.GetDomainEvents()...)
		src.ClearDomainEvents()
	}
}

// reset drops events gathered by a transaction attempt that did not commit
func (b *eventBatch) reset() {
	b.events = nil
}

// publishEvents hands committed events to the publisher. Failures are logged and
// never returned: the state change has already been committed.
func publishEvents(ctx context.Context, publisher shared.EventPublisher, log *zap.Logger, events []shared.DomainEvent) {
	if publisher == nil || len(events) == 0 {
		return
	}
	if err := publisher.Publish(ctx, events...); err != nil {
		logger.WithLogger(ctx, log).Error("Failed to publish domain events",
			zap.Int("count", len(events)),
			zap.Error(err))
	}
}

// loadSettings returns the tenant's settings or a validation error when the tenant
// has not been configured yet
func loadSettings(ctx context.Context, repo ledger.SettingsRepository, tenantID uuid.UUID) (*ledger.TenantSettings, error) {
	settings, err := repo.FindByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if settings == nil {
		return nil, ledger.NewValidationError("Ledger settings are not configured for tenant %s", tenantID).
			WithDetail("tenant_id", tenantID.String())
	}
	return settings, nil
}

// checkOverrideAccount verifies that an account picked in place of a mapped role
// belongs to the tenant, is active and has the expected type
func checkOverrideAccount(ctx context.Context, repo ledger.AccountRepository, tenantID, accountID uuid.UUID, want ledger.AccountType) error {
	account, err := repo.FindByID(ctx, tenantID, accountID)
	if err != nil {
		return err
	}
	if account == nil {
		return ledger.NewNotFoundError("account", accountID)
	}
	if account.Type != want {
		return ledger.NewValidationError("Account %s has type %s, expected %s", account.Code, account.Type, want).
			WithDetail("account_id", accountID.String())
	}
	if !account.IsActive {
		return ledger.NewValidationError("Account %s is inactive", account.Code).
			WithDetail("account_id", accountID.String())
	}
	return nil
}

func nonNilLogger(log *zap.Logger) *zap.Logger {
	if log == nil {
		return zap.NewNop()
	}
	return log
}

func utcNow() time.Time {
	return time.Now().UTC()
}

func dateOr(t *time.Time, fallback time.Time) time.Time {
	if t == nil || t.IsZero() {
		return fallback
	}
	return *t
}
