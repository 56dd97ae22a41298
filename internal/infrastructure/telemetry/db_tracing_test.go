package telemetry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/lexledger/backend/internal/infrastructure/logger"
)

type tracedAccount struct {
	ID   uint   `gorm:"primaryKey"`
	Code string `gorm:"size:20;uniqueIndex"`
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&tracedAccount{}))
	return db
}

func tracedContext(t *testing.T) (context.Context, *tracetest.SpanRecorder, func()) {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	ctx, span := tp.Tracer("test").Start(context.Background(), "parent")
	return ctx, recorder, func() {
		span.End()
		_ = tp.Shutdown(context.Background())
	}
}

func spanAttr(span sdktrace.ReadOnlySpan, key string) (attribute.Value, bool) {
	for _, kv := range span.Attributes() {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func TestDefaultDBTracingConfig(t *testing.T) {
	cfg := DefaultDBTracingConfig()
	assert.False(t, cfg.Enabled)
	assert.False(t, cfg.LogFullSQL)
	assert.Equal(t, 200*time.Millisecond, cfg.SlowQueryThresh)
	assert.Equal(t, "postgresql", cfg.DBSystem)
}

func TestDBTracingPlugin_Disabled(t *testing.T) {
	db := setupTestDB(t)
	require.NoError(t, db.Use(NewDBTracingPlugin(DefaultDBTracingConfig(), nil)))

	assert.Nil(t, db.Callback().Query().Get("otel_timing:after_query"))
}

func TestDBTracingPlugin_DecoratesSpans(t *testing.T) {
	db := setupTestDB(t)
	cfg := DefaultDBTracingConfig()
	cfg.Enabled = true
	cfg.DBSystem = "sqlite"
	require.NoError(t, db.Use(NewDBTracingPlugin(cfg, zap.NewNop())))

	ctx, recorder, done := tracedContext(t)
	defer done()
	ctx = logger.WithTenantID(ctx, "tenant-1")

	require.NoError(t, db.WithContext(ctx).Create(&tracedAccount{Code: "1000"}).Error)

	var dbSpan sdktrace.ReadOnlySpan
	for _, s := range recorder.Ended() {
		if _, ok := spanAttr(s, "db.rows_affected"); ok {
			dbSpan = s
		}
	}
	require.NotNil(t, dbSpan, "expected a decorated database span")

	rows, _ := spanAttr(dbSpan, "db.rows_affected")
	assert.Equal(t, int64(1), rows.AsInt64())
	table, _ := spanAttr(dbSpan, "db.sql.table")
	assert.Equal(t, "traced_accounts", table.AsString())
	tenant, _ := spanAttr(dbSpan, "tenant_id")
	assert.Equal(t, "tenant-1", tenant.AsString())
}

func TestDBTracingPlugin_MarksErrors(t *testing.T) {
	db := setupTestDB(t)
	cfg := DefaultDBTracingConfig()
	cfg.Enabled = true
	require.NoError(t, db.Use(NewDBTracingPlugin(cfg, zap.NewNop())))

	ctx, recorder, done := tracedContext(t)
	defer done()

	require.NoError(t, db.WithContext(ctx).Create(&tracedAccount{Code: "1000"}).Error)
	require.Error(t, db.WithContext(ctx).Create(&tracedAccount{Code: "1000"}).Error)

	var sawError bool
	for _, s := range recorder.Ended() {
		if s.Status().Code == codes.Error {
			sawError = true
		}
	}
	assert.True(t, sawError)
}

func TestDBTracingPlugin_SlowQuery(t *testing.T) {
	db := setupTestDB(t)
	cfg := DefaultDBTracingConfig()
	cfg.Enabled = true
	cfg.SlowQueryThresh = time.Nanosecond
	require.NoError(t, db.Use(NewDBTracingPlugin(cfg, zap.NewNop())))

	ctx, recorder, done := tracedContext(t)
	defer done()

	var accounts []tracedAccount
	require.NoError(t, db.WithContext(ctx).Find(&accounts).Error)

	var slow bool
	for _, s := range recorder.Ended() {
		if v, ok := spanAttr(s, "db.slow_query"); ok && v.AsBool() {
			slow = true
			require.NotEmpty(t, s.Events())
			assert.Equal(t, "slow_query_warning", s.Events()[0].Name)
		}
	}
	assert.True(t, slow)
}

func TestWithQueryStartTime(t *testing.T) {
	ctx := WithQueryStartTime(context.Background())
	elapsed, ok := queryElapsed(ctx)
	assert.True(t, ok)
	assert.GreaterOrEqual(t, elapsed, time.Duration(0))

	_, ok = queryElapsed(context.Background())
	assert.False(t, ok)
}
