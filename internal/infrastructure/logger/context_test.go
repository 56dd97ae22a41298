package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func withSpan(ctx context.Context) context.Context {
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08, 0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10},
		SpanID:     trace.SpanID{0x01, 0x02, 0x03, 0x04, 0x05, 0x06, 0x07, 0x08},
		TraceFlags: trace.FlagsSampled,
	})
	return trace.ContextWithSpanContext(ctx, sc)
}

func fieldMap(entry observer.LoggedEntry) map[string]interface{} {
	return entry.ContextMap()
}

func TestFromContext(t *testing.T) {
	t.Run("returns stored logger", func(t *testing.T) {
		l := zap.NewExample()
		ctx := WithContext(context.Background(), l)
		assert.Same(t, l, FromContext(ctx))
	})

	t.Run("returns no-op logger when missing", func(t *testing.T) {
		l := FromContext(context.Background())
		require.NotNil(t, l)
		assert.False(t, l.Core().Enabled(zapcore.ErrorLevel))
	})
}

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, RequestID(ctx))
	assert.Empty(t, TenantID(ctx))
	assert.Empty(t, ActorID(ctx))
	assert.Empty(t, TraceID(ctx))

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithTenantID(ctx, "tenant-1")
	ctx = WithActorID(ctx, "actor-1")
	ctx = withSpan(ctx)

	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, "tenant-1", TenantID(ctx))
	assert.Equal(t, "actor-1", ActorID(ctx))
	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", TraceID(ctx))
}

func TestContextFields(t *testing.T) {
	t.Run("empty context yields no fields", func(t *testing.T) {
		assert.Empty(t, ContextFields(context.Background()))
	})

	t.Run("collects trace and identity fields", func(t *testing.T) {
		ctx := withSpan(WithActorID(WithTenantID(context.Background(), "tenant-1"), "actor-1"))

		fields := ContextFields(ctx)
		keys := make([]string, len(fields))
		for i, f := range fields {
			keys[i] = f.Key
		}
		assert.Equal(t, []string{"trace_id", "span_id", "tenant_id", "actor_id"}, keys)
	})
}

func TestContextLogger(t *testing.T) {
	t.Run("L enriches entries from context", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		ctx := WithContext(context.Background(), zap.New(core))
		ctx = WithTenantID(WithRequestID(ctx, "req-9"), "tenant-9")

		L(ctx).Info("Journal entry posted", zap.String("entry_id", "e-1"))

		entries := recorded.All()
		require.Len(t, entries, 1)
		fields := fieldMap(entries[0])
		assert.Equal(t, "req-9", fields["request_id"])
		assert.Equal(t, "tenant-9", fields["tenant_id"])
		assert.Equal(t, "e-1", fields["entry_id"])
	})

	t.Run("WithLogger falls back to injected logger", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		ctx := WithActorID(context.Background(), "actor-3")

		WithLogger(ctx, zap.New(core)).Warn("Trial balance does not balance")

		entries := recorded.All()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
		assert.Equal(t, "actor-3", fieldMap(entries[0])["actor_id"])
	})

	t.Run("WithLogger prefers logger stored in context", func(t *testing.T) {
		injectedCore, injected := observer.New(zapcore.DebugLevel)
		storedCore, stored := observer.New(zapcore.DebugLevel)
		ctx := WithContext(context.Background(), zap.New(storedCore))

		WithLogger(ctx, zap.New(injectedCore)).Info("Invoice sent")

		assert.Empty(t, injected.All())
		assert.Len(t, stored.All(), 1)
	})

	t.Run("nil logger does not panic", func(t *testing.T) {
		cl := WithLogger(context.Background(), nil)
		assert.NotPanics(t, func() {
			cl.Info("ignored")
			cl.With(zap.String("k", "v")).Error("ignored")
		})
	})

	t.Run("With adds fields to child only", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		parent := WithLogger(context.Background(), zap.New(core))
		child := parent.With(zap.String("invoice_id", "inv-1"))

		child.Debug("child")
		parent.Debug("parent")

		entries := recorded.All()
		require.Len(t, entries, 2)
		assert.Equal(t, "inv-1", fieldMap(entries[0])["invoice_id"])
		assert.NotContains(t, fieldMap(entries[1]), "invoice_id")
	})

	t.Run("Zap returns enriched logger", func(t *testing.T) {
		core, recorded := observer.New(zapcore.DebugLevel)
		ctx := withSpan(context.Background())

		WithLogger(ctx, zap.New(core)).Zap().Info("raw")

		entries := recorded.All()
		require.Len(t, entries, 1)
		assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", fieldMap(entries[0])["trace_id"])
	})
}
