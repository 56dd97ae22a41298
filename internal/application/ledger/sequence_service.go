package ledger

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lexledger/backend/internal/domain/ledger"
	"github.com/lexledger/backend/internal/infrastructure/logger"
	"github.com/lexledger/backend/internal/infrastructure/telemetry"
)

// SequenceService allocates per-tenant document numbers.
//
// Numbers come from an atomic CounterStore and are consumed before the business
// transaction starts, so a failed operation leaves a gap but never a duplicate.
type SequenceService struct {
	counters ledger.CounterStore
	settings ledger.SettingsRepository
	defaults Defaults
	logger   *zap.Logger
}

// NewSequenceService creates a new SequenceService
func NewSequenceService(
	counters ledger.CounterStore,
	settings ledger.SettingsRepository,
	defaults Defaults,
	logger *zap.Logger,
) *SequenceService {
	return &SequenceService{
		counters: counters,
		settings: settings,
		defaults: defaults,
		logger:   nonNilLogger(logger),
	}
}

// NextNumber returns the prefix and the next counter value for (tenant, kind).
// Formatting is left to the caller.
func (s *SequenceService) NextNumber(ctx context.Context, tenantID uuid.UUID, kind ledger.CounterKind) (string, int64, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "sequence", "next_number")
	defer span.End()
	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrCounterKind, kind.String(),
	)

	if tenantID == uuid.Nil {
		return "", 0, ledger.NewValidationError("Tenant ID cannot be empty")
	}
	if !kind.IsValid() {
		return "", 0, ledger.NewValidationError("Unknown counter kind %q", kind)
	}

	prefix, err := s.prefixFor(ctx, tenantID, kind)
	if err != nil {
		telemetry.RecordError(span, err)
		return "", 0, err
	}

	n, err := s.counters.Increment(ctx, tenantID, kind)
	if err != nil {
		telemetry.RecordError(span, err)
		logger.WithLogger(ctx, s.logger).Error("Failed to allocate document number",
			zap.String("tenant_id", tenantID.String()),
			zap.String("kind", kind.String()),
			zap.Error(err))
		return "", 0, fmt.Errorf("failed to allocate %s number: %w", kind, err)
	}

	telemetry.SetAttribute(span, "sequence_value", n)
	return prefix, n, nil
}

// NextDocumentNumber returns the next formatted number, e.g. INV-00042
func (s *SequenceService) NextDocumentNumber(ctx context.Context, tenantID uuid.UUID, kind ledger.CounterKind) (string, error) {
	prefix, n, err := s.NextNumber(ctx, tenantID, kind)
	if err != nil {
		return "", err
	}
	return ledger.FormatDocumentNumber(prefix, n), nil
}

func (s *SequenceService) prefixFor(ctx context.Context, tenantID uuid.UUID, kind ledger.CounterKind) (string, error) {
	if s.settings != nil {
		settings, err := s.settings.FindByTenant(ctx, tenantID)
		if err != nil {
			return "", fmt.Errorf("failed to load ledger settings: %w", err)
		}
		if settings != nil {
			if prefix, ok := settings.PrefixFor(kind); ok {
				return prefix, nil
			}
		}
	}
	if prefix, ok := s.defaults.Prefixes[kind]; ok && prefix != "" {
		return prefix, nil
	}
	return kind.DefaultPrefix(), nil
}

var _ NumberSource = (*SequenceService)(nil)
