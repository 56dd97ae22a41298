package cli

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/lexledger/backend/internal/infrastructure/logger"
	"github.com/lexledger/backend/internal/infrastructure/scheduler"
)

func newAuditCommand(openRuntime func(*cobra.Command, func(context.Context, *Runtime) error) error) *cobra.Command {
	var (
		tenants []string
		once    bool
	)
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Verify account balances of every configured tenant on a schedule",
		Long: "audit recomputes stored balances from posted journal lines for each tenant.\n" +
			"Without --once it keeps running and repeats every audit.interval until interrupted.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ids := make([]uuid.UUID, 0, len(tenants))
			for _, raw := range tenants {
				id, err := uuid.Parse(raw)
				if err != nil {
					return fmt.Errorf("invalid --tenant %q: expected a UUID", raw)
				}
				ids = append(ids, id)
			}

			return openRuntime(cmd, func(ctx context.Context, rt *Runtime) error {
				var provider scheduler.TenantProvider = rt.Tenants
				if len(ids) > 0 {
					provider = scheduler.StaticTenants(ids)
				}
				if provider == nil {
					return fmt.Errorf("no tenants to audit: pass --tenant")
				}
				if once {
					return auditOnce(ctx, cmd, rt, provider)
				}
				return auditForever(ctx, rt, provider)
			})
		},
	}
	cmd.Flags().StringSliceVar(&tenants, "tenant", nil, "tenant ids to audit (default: every configured tenant)")
	cmd.Flags().BoolVar(&once, "once", false, "audit each tenant once, print a summary and exit")
	return cmd
}

func newAuditScheduler(rt *Runtime, opts ...scheduler.Option) *scheduler.Scheduler {
	cfg := rt.Config.Audit
	schedCfg := scheduler.DefaultSchedulerConfig()
	if cfg.Workers > 0 {
		schedCfg.MaxConcurrentJobs = cfg.Workers
	}
	if cfg.JobTimeout > 0 {
		schedCfg.JobTimeout = cfg.JobTimeout
	}
	if cfg.RetryAttempts > 0 {
		schedCfg.RetryAttempts = cfg.RetryAttempts
	}
	if cfg.RetryDelay > 0 {
		schedCfg.RetryDelay = cfg.RetryDelay
	}
	log := rt.Logger.Named("audit")
	executor := scheduler.NewBalanceAuditExecutor(rt.Services.Journal, log)
	return scheduler.NewScheduler(schedCfg, executor, log, opts...)
}

func auditOnce(ctx context.Context, cmd *cobra.Command, rt *Runtime, tenants scheduler.TenantProvider) error {
	ids, err := tenants.TenantIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list tenants: %w", err)
	}
	if len(ids) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no tenants to audit")
		return nil
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		finished []*scheduler.Job
	)
	sched := newAuditScheduler(rt, scheduler.WithJobObserver(func(job *scheduler.Job) {
		mu.Lock()
		finished = append(finished, job)
		mu.Unlock()
		wg.Done()
	}))
	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = sched.Stop(stopCtx)
	}()

	for _, id := range ids {
		wg.Add(1)
		if _, err := sched.ScheduleAudit(id); err != nil {
			wg.Done()
			return fmt.Errorf("failed to schedule audit of tenant %s: %w", id, err)
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	mu.Lock()
	defer mu.Unlock()
	sort.Slice(finished, func(i, j int) bool {
		return finished[i].TenantID.String() < finished[j].TenantID.String()
	})

	out := cmd.OutOrStdout()
	failed := 0
	for _, job := range finished {
		switch job.Status {
		case scheduler.JobStatusSuccess:
			fmt.Fprintf(out, "%s  ok     %d accounts\n", job.TenantID, job.Accounts)
		default:
			failed++
			fmt.Fprintf(out, "%s  FAILED %s\n", job.TenantID, job.Error)
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d tenant audits failed", failed, len(finished))
	}
	return nil
}

func auditForever(ctx context.Context, rt *Runtime, tenants scheduler.TenantProvider) error {
	sched := newAuditScheduler(rt)
	if err := sched.Start(ctx); err != nil {
		return err
	}
	trigger := scheduler.NewAuditTrigger(rt.Config.Audit.Interval, sched, tenants, rt.Logger.Named("audit"))
	if err := trigger.Start(ctx); err != nil {
		return err
	}

	<-ctx.Done()
	logger.L(ctx).Info("Stopping balance audits")

	stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return errors.Join(trigger.Stop(stopCtx), sched.Stop(stopCtx))
}
