package persistence

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/lexledger/backend/internal/infrastructure/config"
	"github.com/lexledger/backend/internal/infrastructure/logger"
)

// Database holds the ledger's database connection
type Database struct {
	DB *gorm.DB
}

// NewDatabase connects to PostgreSQL, sizes the connection pool and verifies
// the connection. SQL is logged through zap at the level mapped from logLevel.
func NewDatabase(ctx context.Context, cfg *config.DatabaseConfig, log *zap.Logger, logLevel string) (*Database, error) {
	db, err := Open(postgres.Open(cfg.DSN()), log, logLevel, cfg.SlowThreshold)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Minute)
	sqlDB.SetConnMaxIdleTime(time.Duration(cfg.ConnMaxIdleTime) * time.Minute)

	database := &Database{DB: db}
	if err := database.Ping(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return database, nil
}

// Open opens a gorm connection on any dialector with the ledger's settings:
// zap query logging, UTC timestamps, driver error translation and no implicit
// transaction around single writes.
func Open(dialector gorm.Dialector, log *zap.Logger, logLevel string, slowThreshold time.Duration) (*gorm.DB, error) {
	return gorm.Open(dialector, &gorm.Config{
		Logger: logger.NewGormLogger(log, logger.GormLevel(logLevel),
			logger.WithSlowThreshold(slowThreshold)),
		SkipDefaultTransaction: true,
		TranslateError:         true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
}

// Close closes the database connection
func (d *Database) Close() error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// Ping checks if the database connection is alive
func (d *Database) Ping(ctx context.Context) error {
	sqlDB, err := d.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}
