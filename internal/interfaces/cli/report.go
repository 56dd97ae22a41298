package cli

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	appledger "github.com/lexledger/backend/internal/application/ledger"
	"github.com/lexledger/backend/internal/infrastructure/scheduler"
)

func newTrialBalanceCommand(withRuntime runtimeWrapper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trial-balance",
		Short: "Print every account balance in debit and credit columns",
		Args:  cobra.NoArgs,
		RunE: withRuntime(func(ctx context.Context, cmd *cobra.Command, rt *Runtime, tenantID uuid.UUID) error {
			report, err := rt.Services.Journal.TrialBalance(ctx, tenantID)
			if err != nil {
				return err
			}
			return writeTrialBalance(cmd.OutOrStdout(), report)
		}),
	}
	addTenantFlag(cmd)
	return cmd
}

func newVerifyCommand(withRuntime runtimeWrapper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Recompute account balances from posted entries and report drift",
		Args:  cobra.NoArgs,
		RunE: withRuntime(func(ctx context.Context, cmd *cobra.Command, rt *Runtime, tenantID uuid.UUID) error {
			report, err := rt.Services.Journal.VerifyAccountBalances(ctx, tenantID)
			if err != nil {
				return err
			}
			if err := writeVerification(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			if !report.Consistent {
				return fmt.Errorf("%w: %d of %d accounts", scheduler.ErrBalanceDrift, len(report.Drifts), report.Accounts)
			}
			return nil
		}),
	}
	addTenantFlag(cmd)
	return cmd
}

func writeTrialBalance(w io.Writer, report *appledger.TrialBalanceResponse) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "CODE\tNAME\tTYPE\tDEBIT\tCREDIT\t")
	for _, line := range report.Lines {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t\n",
			line.Code, line.Name, line.Type, amount(line.Debit.StringFixed(2)), amount(line.Credit.StringFixed(2)))
	}
	fmt.Fprintf(tw, "\t\tTOTAL\t%s\t%s\t\n", report.TotalDebit.StringFixed(2), report.TotalCredit.StringFixed(2))
	if err := tw.Flush(); err != nil {
		return err
	}
	if !report.Balanced {
		fmt.Fprintln(w, "WARNING: debits and credits do not agree")
	}
	return nil
}

func writeVerification(w io.Writer, report *appledger.BalanceVerificationReport) error {
	if report.Consistent {
		fmt.Fprintf(w, "%d accounts checked, all balances match the journal\n", report.Accounts)
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "CODE\tSTORED\tCOMPUTED\tDIFFERENCE\t")
	for _, d := range report.Drifts {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t\n",
			d.Code, d.Stored.StringFixed(2), d.Computed.StringFixed(2), d.Difference.StringFixed(2))
	}
	return tw.Flush()
}

// amount blanks out zero columns
func amount(s string) string {
	if s == "0.00" {
		return ""
	}
	return s
}
