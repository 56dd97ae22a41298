package scheduler

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appledger "github.com/lexledger/backend/internal/application/ledger"
	"github.com/lexledger/backend/internal/infrastructure/logger"
)

// BalanceVerifier recomputes a tenant's balances from the journal
type BalanceVerifier interface {
	VerifyAccountBalances(ctx context.Context, tenantID uuid.UUID) (*appledger.BalanceVerificationReport, error)
}

// BalanceAuditExecutor runs VerifyAccountBalances for the job's tenant and
// logs every drifting account
type BalanceAuditExecutor struct {
	verifier BalanceVerifier
	logger   *zap.Logger
}

// NewBalanceAuditExecutor creates an executor over verifier
func NewBalanceAuditExecutor(verifier BalanceVerifier, logger *zap.Logger) *BalanceAuditExecutor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BalanceAuditExecutor{verifier: verifier, logger: logger}
}

// Execute implements JobExecutor
func (e *BalanceAuditExecutor) Execute(ctx context.Context, job *Job) error {
	ctx = logger.WithTenantID(ctx, job.TenantID.String())

	report, err := e.verifier.VerifyAccountBalances(ctx, job.TenantID)
	if err != nil {
		return fmt.Errorf("failed to verify balances: %w", err)
	}
	job.Accounts = report.Accounts
	job.Drifts = len(report.Drifts)
	if report.Consistent {
		return nil
	}

	log := logger.WithLogger(ctx, e.logger)
	for _, d := range report.Drifts {
		log.Warn("Account balance drift",
			zap.String("account_id", d.AccountID.String()),
			zap.String("code", d.Code),
			zap.String("stored", d.Stored.String()),
			zap.String("computed", d.Computed.String()),
			zap.String("difference", d.Difference.String()),
		)
	}
	return fmt.Errorf("%w: %d of %d accounts", ErrBalanceDrift, len(report.Drifts), report.Accounts)
}
