package cli

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	appledger "github.com/lexledger/backend/internal/application/ledger"
	"github.com/lexledger/backend/internal/infrastructure/logger"
)

func newSeedAccountsCommand(withRuntime runtimeWrapper) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed-accounts",
		Short: "Create the accounts of a chart file that the tenant does not have yet",
		Args:  cobra.NoArgs,
		RunE: withRuntime(func(ctx context.Context, cmd *cobra.Command, rt *Runtime, tenantID uuid.UUID) error {
			chart, err := LoadChartFile(file)
			if err != nil {
				return err
			}
			created, skipped, err := seedAccounts(ctx, rt.Services.Accounts, tenantID, chart.Accounts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %d accounts, %d already present\n", created, skipped)
			return nil
		}),
	}
	addTenantFlag(cmd)
	cmd.Flags().StringVarP(&file, "file", "f", "", "chart of accounts file (toml, yaml or json)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// seedAccounts creates accounts parents first. Codes the tenant already has
// are left untouched so seeding can be repeated.
func seedAccounts(ctx context.Context, accounts *appledger.AccountService, tenantID uuid.UUID, chart []ChartAccount) (created, skipped int, err error) {
	ordered, err := orderByParent(chart)
	if err != nil {
		return 0, 0, err
	}

	existing, err := accounts.ListAccounts(ctx, tenantID)
	if err != nil {
		return 0, 0, err
	}
	ids := make(map[string]uuid.UUID, len(existing)+len(ordered))
	for _, a := range existing {
		ids[a.Code] = a.ID
	}

	log := logger.L(ctx)
	for _, a := range ordered {
		if _, ok := ids[a.Code]; ok {
			skipped++
			continue
		}
		var parentID *uuid.UUID
		if a.Parent != "" {
			id, ok := ids[a.Parent]
			if !ok {
				return created, skipped, fmt.Errorf("account %s: parent %s does not exist", a.Code, a.Parent)
			}
			parentID = &id
		}

		account, err := accounts.CreateAccount(ctx, appledger.CreateAccountInput{
			TenantID:    tenantID,
			Code:        a.Code,
			Name:        a.Name,
			Description: a.Description,
			Type:        a.Type,
			ParentID:    parentID,
			Currency:    a.Currency,
			IsSystem:    a.System,
		})
		if err != nil {
			return created, skipped, fmt.Errorf("account %s: %w", a.Code, err)
		}
		ids[a.Code] = account.ID
		created++
		log.Debug("Account seeded", zap.String("code", a.Code), zap.String("account_id", account.ID.String()))
	}
	return created, skipped, nil
}
