package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// TenantProvider lists the tenants to audit
type TenantProvider interface {
	TenantIDs(ctx context.Context) ([]uuid.UUID, error)
}

// StaticTenants is a TenantProvider over a fixed list
type StaticTenants []uuid.UUID

// TenantIDs implements TenantProvider
func (s StaticTenants) TenantIDs(context.Context) ([]uuid.UUID, error) {
	return s, nil
}

// AuditTrigger submits an audit of every tenant on a fixed interval
type AuditTrigger struct {
	interval  time.Duration
	scheduler *Scheduler
	tenants   TenantProvider
	logger    *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewAuditTrigger creates a trigger that fires every interval
func NewAuditTrigger(interval time.Duration, scheduler *Scheduler, tenants TenantProvider, logger *zap.Logger) *AuditTrigger {
	if logger == nil {
		logger = zap.NewNop()
	}
	if interval <= 0 {
		interval = time.Hour
	}
	return &AuditTrigger{
		interval:  interval,
		scheduler: scheduler,
		tenants:   tenants,
		logger:    logger,
	}
}

// Start fires once immediately, then on every tick
func (c *AuditTrigger) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = true
	c.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	c.wg.Add(1)
	go c.runLoop(ctx)

	c.logger.Info("Balance audit trigger started", zap.Duration("interval", c.interval))
	return nil
}

// Stop stops the trigger loop
func (c *AuditTrigger) Stop(ctx context.Context) error {
	c.mu.Lock()
	if !c.isRunning {
		c.mu.Unlock()
		return nil
	}
	c.isRunning = false
	c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *AuditTrigger) runLoop(ctx context.Context) {
	defer c.wg.Done()

	c.TriggerNow(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.TriggerNow(ctx)
		}
	}
}

// TriggerNow submits one audit per tenant and returns the submitted jobs
func (c *AuditTrigger) TriggerNow(ctx context.Context) []*Job {
	tenantIDs, err := c.tenants.TenantIDs(ctx)
	if err != nil {
		c.logger.Error("Failed to list tenants for balance audit", zap.Error(err))
		return nil
	}

	jobs := make([]*Job, 0, len(tenantIDs))
	for _, tenantID := range tenantIDs {
		job, err := c.scheduler.ScheduleAudit(tenantID)
		if err != nil {
			c.logger.Error("Failed to schedule balance audit",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err),
			)
			continue
		}
		jobs = append(jobs, job)
	}
	c.logger.Debug("Balance audits scheduled", zap.Int("tenants", len(jobs)))
	return jobs
}
