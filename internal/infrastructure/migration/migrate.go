package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"

	"github.com/lexledger/backend/migrations"
)

// MigrationsTable is where golang-migrate records the applied ledger schema version
const MigrationsTable = "ledger_schema_migrations"

// Migrator applies the ledger schema with golang-migrate
type Migrator struct {
	migrate *migrate.Migrate
	source  source.Driver
	logger  *zap.Logger
}

// Status describes where a database stands relative to the available migrations
type Status struct {
	Version uint
	Dirty   bool
	Latest  uint
	Pending int
}

// UpToDate reports whether every available migration has been applied cleanly
func (s Status) UpToDate() bool {
	return !s.Dirty && s.Pending == 0
}

// New creates a Migrator over the migrations embedded in the binary
func New(db *sql.DB, logger *zap.Logger) (*Migrator, error) {
	return NewWithFS(db, migrations.FS, ".", logger)
}

// NewFromDir creates a Migrator reading migrations from a directory on disk
func NewFromDir(db *sql.DB, dir string, logger *zap.Logger) (*Migrator, error) {
	return NewWithFS(db, os.DirFS(dir), ".", logger)
}

// NewWithFS creates a Migrator reading migrations from path inside fsys
func NewWithFS(db *sql.DB, fsys fs.FS, path string, logger *zap.Logger) (*Migrator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	src, err := iofs.New(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to open migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{MigrationsTable: MigrationsTable})
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("failed to create postgres driver: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		_ = src.Close()
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &zapLogger{logger: logger.Named("migrate")}

	return &Migrator{
		migrate: m,
		source:  src,
		logger:  logger,
	}, nil
}

// Up applies every pending migration
func (m *Migrator) Up() error {
	before, err := m.Status()
	if err != nil {
		return err
	}
	if before.UpToDate() {
		m.logger.Info("Ledger schema is up to date", zap.Uint("version", before.Version))
		return nil
	}

	if err := m.migrate.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return m.logApplied("Ledger schema migrated", before)
}

// Down rolls back every applied migration
func (m *Migrator) Down() error {
	if err := m.migrate.Down(); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			m.logger.Info("No migrations to roll back")
			return nil
		}
		return fmt.Errorf("migration down failed: %w", err)
	}
	m.logger.Info("Ledger schema rolled back")
	return nil
}

// Steps applies n migrations, rolling back when n is negative
func (m *Migrator) Steps(n int) error {
	if n == 0 {
		return nil
	}
	before, err := m.Status()
	if err != nil {
		return err
	}
	if err := m.migrate.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration steps %d failed: %w", n, err)
	}
	return m.logApplied("Migration steps completed", before)
}

// Force records version as applied without running anything. It clears the
// dirty flag left behind by a failed migration.
func (m *Migrator) Force(version int) error {
	m.logger.Warn("Forcing migration version", zap.Int("version", version))
	if err := m.migrate.Force(version); err != nil {
		return fmt.Errorf("failed to force version %d: %w", version, err)
	}
	return nil
}

// Version returns the applied version, zero when nothing has been applied
func (m *Migrator) Version() (uint, bool, error) {
	version, dirty, err := m.migrate.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get migration version: %w", err)
	}
	return version, dirty, nil
}

// Status compares the applied version with the migrations in the source
func (m *Migrator) Status() (Status, error) {
	version, dirty, err := m.Version()
	if err != nil {
		return Status{}, err
	}
	latest, pending, err := pendingAfter(m.source, version)
	if err != nil {
		return Status{}, err
	}
	return Status{Version: version, Dirty: dirty, Latest: latest, Pending: pending}, nil
}

// Close releases the source and database handles
func (m *Migrator) Close() error {
	sourceErr, dbErr := m.migrate.Close()
	if sourceErr != nil {
		return fmt.Errorf("failed to close migration source: %w", sourceErr)
	}
	if dbErr != nil {
		return fmt.Errorf("failed to close migration database: %w", dbErr)
	}
	return nil
}

func (m *Migrator) logApplied(msg string, before Status) error {
	after, err := m.Status()
	if err != nil {
		return err
	}
	m.logger.Info(msg,
		zap.Uint("from_version", before.Version),
		zap.Uint("version", after.Version),
		zap.Bool("dirty", after.Dirty),
		zap.Int("pending", after.Pending),
	)
	return nil
}

// pendingAfter walks the source versions and counts those above applied
func pendingAfter(src source.Driver, applied uint) (latest uint, pending int, err error) {
	v, err := src.First()
	if errors.Is(err, fs.ErrNotExist) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, fmt.Errorf("failed to read first migration: %w", err)
	}
	for {
		latest = v
		if v > applied {
			pending++
		}
		next, err := src.Next(v)
		if errors.Is(err, fs.ErrNotExist) {
			return latest, pending, nil
		}
		if err != nil {
			return 0, 0, fmt.Errorf("failed to read migration after %d: %w", v, err)
		}
		v = next
	}
}

// zapLogger routes golang-migrate progress lines into zap
type zapLogger struct {
	logger *zap.Logger
}

func (l *zapLogger) Printf(format string, v ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, v...))
}

func (l *zapLogger) Verbose() bool {
	return l.logger.Core().Enabled(zap.DebugLevel)
}
