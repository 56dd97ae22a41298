package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	appledger "github.com/lexledger/backend/internal/application/ledger"
	"github.com/lexledger/backend/internal/domain/ledger"
	"github.com/lexledger/backend/internal/domain/shared"
	"github.com/lexledger/backend/internal/infrastructure/cache"
	"github.com/lexledger/backend/internal/infrastructure/config"
	"github.com/lexledger/backend/internal/infrastructure/event"
	"github.com/lexledger/backend/internal/infrastructure/logger"
	"github.com/lexledger/backend/internal/infrastructure/persistence"
	"github.com/lexledger/backend/internal/infrastructure/scheduler"
	"github.com/lexledger/backend/internal/infrastructure/telemetry"
)

// Runtime is what a command needs to do its work
type Runtime struct {
	Config   *config.Config
	Logger   *zap.Logger
	Services *appledger.Services
	Tenants  scheduler.TenantProvider

	closers []func(context.Context) error
}

// Close releases everything the runtime opened, last opened first
func (r *Runtime) Close(ctx context.Context) error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		errs = append(errs, r.closers[i](ctx))
	}
	r.closers = nil
	return errors.Join(errs...)
}

func (r *Runtime) onClose(fn func(context.Context) error) {
	r.closers = append(r.closers, fn)
}

// RuntimeFactory builds a Runtime from loaded configuration
type RuntimeFactory func(ctx context.Context, cfg *config.Config) (*Runtime, error)

// NewRuntime connects to PostgreSQL (and Redis when enabled), installs the
// telemetry providers and wires the ledger services with their event subscribers.
func NewRuntime(ctx context.Context, cfg *config.Config) (rt *Runtime, err error) {
	rt = &Runtime{Config: cfg}
	defer func() {
		if err != nil {
			_ = rt.Close(context.Background())
		}
	}()

	providers, err := telemetry.Setup(ctx, cfg.Telemetry, zap.NewNop())
	if err != nil {
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}
	rt.onClose(providers.Shutdown)

	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	}, providers.Logs.ZapCore())
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	rt.Logger = log
	rt.onClose(func(context.Context) error {
		_ = log.Sync()
		return nil
	})

	database, err := persistence.NewDatabase(ctx, &cfg.Database, log.Named("gorm"), cfg.Log.Level)
	if err != nil {
		return nil, err
	}
	rt.onClose(func(context.Context) error { return database.Close() })

	db := database.DB
	if err := db.Use(telemetry.NewDBTracingPlugin(telemetry.DBTracing(cfg.Telemetry), log)); err != nil {
		return nil, fmt.Errorf("failed to install database tracing: %w", err)
	}
	dbMetricsCfg := telemetry.DefaultDBMetricsConfig()
	dbMetricsCfg.SlowQueryThreshold = cfg.Database.SlowThreshold
	dbMetrics, err := telemetry.RegisterDBMetrics(db, providers.Meter, dbMetricsCfg, log)
	if err != nil {
		return nil, fmt.Errorf("failed to register database metrics: %w", err)
	}
	if dbMetrics != nil {
		dbMetrics.StartPoolStatsCollection(ctx)
		rt.onClose(func(context.Context) error {
			dbMetrics.Stop()
			return nil
		})
	}

	stores := cache.NewStoreFactory(cfg.Redis, cache.WithLogger(log.Named("cache")))
	rt.onClose(func(context.Context) error { return stores.Close() })

	counters, err := counterStore(ctx, cfg.Ledger, stores, database)
	if err != nil {
		return nil, err
	}

	bus := event.NewInMemoryEventBus(log.Named("events"))
	if err := bus.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start event bus: %w", err)
	}
	rt.onClose(bus.Stop)

	if err := subscribeLedgerMetrics(ctx, bus, providers.Meter, stores, cfg.Ledger, log); err != nil {
		return nil, err
	}

	settings := persistence.NewGormSettingsRepository(db)
	rt.Tenants = settings
	rt.Services = appledger.NewServices(appledger.Dependencies{
		Scope:     persistence.NewGormTransactionScope(db, persistence.WithLockTimeout(cfg.Ledger.LockTimeout)),
		Accounts:  persistence.NewGormAccountRepository(db),
		Entries:   persistence.NewGormJournalEntryRepository(db),
		Invoices:  persistence.NewGormInvoiceRepository(db),
		Payments:  persistence.NewGormPaymentRepository(db),
		Expenses:  persistence.NewGormExpenseRepository(db),
		Settings:  settings,
		Counters:  counters,
		Publisher: bus,
		Defaults:  ledgerDefaults(cfg.Ledger),
		Logger:    log,
	})
	return rt, nil
}

func counterStore(ctx context.Context, cfg config.LedgerConfig, stores *cache.StoreFactory, database *persistence.Database) (ledger.CounterStore, error) {
	switch cfg.SequenceBackend {
	case config.SequenceBackendRedis:
		return stores.CounterStore(ctx)
	default:
		return persistence.NewGormCounterStore(database.DB), nil
	}
}

// subscribeLedgerMetrics puts the business counters on the bus behind an
// idempotency guard so redelivered events are counted once
func subscribeLedgerMetrics(
	ctx context.Context,
	bus shared.EventSubscriber,
	meter *telemetry.MeterProvider,
	stores *cache.StoreFactory,
	cfg config.LedgerConfig,
	log *zap.Logger,
) error {
	metrics, err := telemetry.NewLedgerMetrics(meter.Meter("lexledger.ledger"), log)
	if err != nil {
		return fmt.Errorf("failed to create ledger metrics: %w", err)
	}
	store, err := stores.IdempotencyStore(ctx)
	if err != nil {
		return err
	}
	handler := event.NewIdempotentHandler("ledger_metrics", metrics, store, log,
		event.WithIdempotencyConfig(shared.IdempotencyConfig{TTL: cfg.IdempotencyTTL, Enabled: true}))
	bus.Subscribe(handler, handler.EventTypes()...)
	return nil
}

func ledgerDefaults(cfg config.LedgerConfig) appledger.Defaults {
	return appledger.Defaults{
		Currency:        cfg.DefaultCurrency,
		PaymentTermDays: cfg.PaymentTermDays,
		Prefixes: map[ledger.CounterKind]string{
			ledger.CounterKindInvoice:      cfg.Prefixes.Invoice,
			ledger.CounterKindPayment:      cfg.Prefixes.Payment,
			ledger.CounterKindExpense:      cfg.Prefixes.Expense,
			ledger.CounterKindJournalEntry: cfg.Prefixes.JournalEntry,
		},
	}
}

// shutdownTimeout bounds the flush of telemetry, the bus and the audit workers on exit
const shutdownTimeout = 10 * time.Second
