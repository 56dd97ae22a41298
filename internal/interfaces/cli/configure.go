package cli

import (
	"context"
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	appledger "github.com/lexledger/backend/internal/application/ledger"
)

func newConfigureCommand(withRuntime runtimeWrapper) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Map ledger roles and expense categories to accounts",
		Args:  cobra.NoArgs,
		RunE: withRuntime(func(ctx context.Context, cmd *cobra.Command, rt *Runtime, tenantID uuid.UUID) error {
			settings, err := LoadSettingsFile(file)
			if err != nil {
				return err
			}
			accounts, err := rt.Services.Accounts.ListAccounts(ctx, tenantID)
			if err != nil {
				return err
			}
			input, err := settingsInput(tenantID, settings, accounts)
			if err != nil {
				return err
			}
			result, err := rt.Services.Settings.Configure(ctx, input)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "settings saved (version %d)\n", result.Version)
			roles := make([]string, 0, len(result.RoleAccounts))
			for role := range result.RoleAccounts {
				roles = append(roles, role)
			}
			sort.Strings(roles)
			for _, role := range roles {
				fmt.Fprintf(out, "  %-20s %s\n", role, settings.Roles[role])
			}
			return nil
		}),
	}
	addTenantFlag(cmd)
	cmd.Flags().StringVarP(&file, "file", "f", "", "settings file (toml, yaml or json)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// settingsInput resolves the account codes of a settings file to account ids
func settingsInput(tenantID uuid.UUID, file *SettingsFile, accounts []*appledger.AccountResponse) (appledger.ConfigureSettingsInput, error) {
	byCode := make(map[string]uuid.UUID, len(accounts))
	for _, a := range accounts {
		byCode[a.Code] = a.ID
	}
	resolve := func(code string) (uuid.UUID, error) {
		id, ok := byCode[code]
		if !ok {
			return uuid.Nil, fmt.Errorf("account code %s does not exist", code)
		}
		return id, nil
	}

	input := appledger.ConfigureSettingsInput{
		TenantID:                tenantID,
		Currency:                file.Currency,
		PaymentTermDays:         file.PaymentTermDays,
		RoleAccounts:            make(map[string]uuid.UUID, len(file.Roles)),
		ExpenseCategoryAccounts: make(map[uuid.UUID]uuid.UUID, len(file.ExpenseCategories)),
		Prefixes:                file.Prefixes,
	}
	for role, code := range file.Roles {
		id, err := resolve(code)
		if err != nil {
			return input, fmt.Errorf("role %s: %w", role, err)
		}
		input.RoleAccounts[role] = id
	}
	for category, code := range file.ExpenseCategories {
		categoryID, err := uuid.Parse(category)
		if err != nil {
			return input, fmt.Errorf("expense category %q is not a UUID", category)
		}
		id, err := resolve(code)
		if err != nil {
			return input, fmt.Errorf("expense category %s: %w", category, err)
		}
		input.ExpenseCategoryAccounts[categoryID] = id
	}
	return input, nil
}
