// Package cli holds the operator commands of ledgerctl and migrate.
package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lexledger/backend/internal/infrastructure/config"
	"github.com/lexledger/backend/internal/infrastructure/logger"
)

// Option customizes the root command
type Option func(*options)

type options struct {
	runtime RuntimeFactory
	load    func(path string) (*config.Config, error)
}

// WithRuntimeFactory replaces how commands obtain their services
func WithRuntimeFactory(factory RuntimeFactory) Option {
	return func(o *options) {
		o.runtime = factory
	}
}

// WithConfigLoader replaces how the configuration is loaded
func WithConfigLoader(load func(path string) (*config.Config, error)) Option {
	return func(o *options) {
		o.load = load
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.Load()
	}
	return config.LoadFile(path)
}

// NewRootCommand creates ledgerctl with all subcommands registered
func NewRootCommand(opts ...Option) *cobra.Command {
	o := &options{runtime: NewRuntime, load: loadConfig}
	for _, opt := range opts {
		opt(o)
	}

	var configPath string
	root := &cobra.Command{
		Use:   "ledgerctl",
		Short: "Operate the tenant ledger: seed accounts, configure roles, audit balances",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "configuration file (default: config.toml search path)")

	// openRuntime loads configuration and builds the runtime for one command
	openRuntime := func(cmd *cobra.Command, run func(ctx context.Context, rt *Runtime) error) error {
		cfg, err := o.load(configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		ctx := cmd.Context()
		if ctx == nil {
			ctx = context.Background()
		}
		rt, err := o.runtime(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = rt.Close(closeCtx)
		}()
		if rt.Config == nil {
			rt.Config = cfg
		}
		if rt.Logger != nil {
			ctx = logger.WithContext(ctx, rt.Logger)
		}
		return run(ctx, rt)
	}

	var withRuntime runtimeWrapper = func(run commandFunc) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, _ []string) error {
			tenantID, err := tenantFlag(cmd)
			if err != nil {
				return err
			}
			return openRuntime(cmd, func(ctx context.Context, rt *Runtime) error {
				return run(logger.WithTenantID(ctx, tenantID.String()), cmd, rt, tenantID)
			})
		}
	}

	root.AddCommand(
		newSeedAccountsCommand(withRuntime),
		newConfigureCommand(withRuntime),
		newTrialBalanceCommand(withRuntime),
		newVerifyCommand(withRuntime),
		newAuditCommand(openRuntime),
	)
	return root
}

type commandFunc func(ctx context.Context, cmd *cobra.Command, rt *Runtime, tenantID uuid.UUID) error

type runtimeWrapper func(run commandFunc) func(*cobra.Command, []string) error

func addTenantFlag(cmd *cobra.Command) {
	cmd.Flags().String("tenant", "", "tenant id (required)")
	_ = cmd.MarkFlagRequired("tenant")
}

func tenantFlag(cmd *cobra.Command) (uuid.UUID, error) {
	raw, err := cmd.Flags().GetString("tenant")
	if err != nil {
		return uuid.Nil, err
	}
	id, err := uuid.Parse(raw)
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("invalid --tenant %q: expected a UUID", raw)
	}
	return id, nil
}
