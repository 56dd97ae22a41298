package cli

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lexledger/backend/internal/infrastructure/config"
	"github.com/lexledger/backend/internal/infrastructure/logger"
	"github.com/lexledger/backend/internal/infrastructure/migration"
	"github.com/lexledger/backend/migrations"
)

type migrateOptions struct {
	configPath string
	dir        string
	logLevel   string
	load       func(path string) (*config.Config, error)
}

// NewMigrateCommand creates the schema migration tool. Migrations are read
// from the binary unless --dir points at a directory on disk.
func NewMigrateCommand(opts ...Option) *cobra.Command {
	o := &options{load: loadConfig}
	for _, opt := range opts {
		opt(o)
	}
	mo := &migrateOptions{load: o.load}

	root := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the ledger database schema",
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&mo.configPath, "config", "", "configuration file (default: config.toml search path)")
	root.PersistentFlags().StringVar(&mo.dir, "dir", "", "read migrations from this directory instead of the embedded set")
	root.PersistentFlags().StringVar(&mo.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	root.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply all pending migrations",
			Args:  cobra.NoArgs,
			RunE: mo.withMigrator(func(cmd *cobra.Command, _ []string, m *migration.Migrator) error {
				return m.Up()
			}),
		},
		newMigrateDownCommand(mo),
		&cobra.Command{
			Use:     "steps <n>",
			Short:   "Apply n migrations, or roll back n when negative",
			Example: "  migrate steps 1\n  migrate steps -- -1",
			Args:    cobra.ExactArgs(1),
			RunE: mo.withMigrator(func(cmd *cobra.Command, args []string, m *migration.Migrator) error {
				n, err := strconv.Atoi(args[0])
				if err != nil || n == 0 {
					return fmt.Errorf("invalid step count %q", args[0])
				}
				return m.Steps(n)
			}),
		},
		&cobra.Command{
			Use:   "force <version>",
			Short: "Record a version as applied and clear the dirty flag",
			Args:  cobra.ExactArgs(1),
			RunE: mo.withMigrator(func(cmd *cobra.Command, args []string, m *migration.Migrator) error {
				version, err := strconv.Atoi(args[0])
				if err != nil || version < -1 {
					return fmt.Errorf("invalid version %q", args[0])
				}
				return m.Force(version)
			}),
		},
		&cobra.Command{
			Use:     "status",
			Aliases: []string{"version"},
			Short:   "Show the applied version and how many migrations are pending",
			Args:    cobra.NoArgs,
			RunE: mo.withMigrator(func(cmd *cobra.Command, _ []string, m *migration.Migrator) error {
				status, err := m.Status()
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "version: %d\n", status.Version)
				fmt.Fprintf(out, "latest:  %d\n", status.Latest)
				fmt.Fprintf(out, "pending: %d\n", status.Pending)
				if status.Dirty {
					fmt.Fprintln(out, "dirty:   yes (fix the schema, then run force)")
				}
				return nil
			}),
		},
		newMigrateCreateCommand(mo),
		newMigrateListCommand(mo),
	)
	return root
}

func newMigrateDownCommand(mo *migrateOptions) *cobra.Command {
	var confirm bool
	cmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back every applied migration",
		Args:  cobra.NoArgs,
		PreRunE: func(*cobra.Command, []string) error {
			if !confirm {
				return fmt.Errorf("down drops every ledger table; rerun with --confirm")
			}
			return nil
		},
		RunE: mo.withMigrator(func(cmd *cobra.Command, _ []string, m *migration.Migrator) error {
			return m.Down()
		}),
	}
	cmd.Flags().BoolVar(&confirm, "confirm", false, "confirm rolling back the whole schema")
	return cmd
}

func newMigrateCreateCommand(mo *migrateOptions) *cobra.Command {
	var description string
	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Scaffold the next up/down migration pair",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := mo.dir
			if dir == "" {
				dir = "migrations"
			}
			mf, err := migration.CreateMigration(dir, args[0], description, time.Now())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "created %s\n", mf.UpPath)
			fmt.Fprintf(out, "created %s\n", mf.DownPath)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "comment written at the top of the up file")
	return cmd
}

func newMigrateListCommand(mo *migrateOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var fsys fs.FS = migrations.FS
			if mo.dir != "" {
				fsys = os.DirFS(mo.dir)
			}
			files, err := migration.ListMigrations(fsys)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(files) == 0 {
				fmt.Fprintln(out, "no migrations found")
				return nil
			}
			for _, f := range files {
				fmt.Fprintln(out, f.BaseName())
			}
			return nil
		},
	}
}

// withMigrator opens the configured database and a Migrator over it for the
// duration of one command
func (mo *migrateOptions) withMigrator(run func(*cobra.Command, []string, *migration.Migrator) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		log, err := logger.New(&logger.Config{Level: mo.logLevel, Format: "console", Output: "stderr"})
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		defer func() { _ = log.Sync() }()

		cfg, err := mo.load(mo.configPath)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}

		db, err := sql.Open("postgres", cfg.Database.DSN())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		if err := db.PingContext(cmd.Context()); err != nil {
			return fmt.Errorf("failed to reach database: %w", err)
		}

		var m *migration.Migrator
		if mo.dir != "" {
			m, err = migration.NewFromDir(db, mo.dir, log)
		} else {
			m, err = migration.New(db, log)
		}
		if err != nil {
			return err
		}
		defer func() {
			if cerr := m.Close(); cerr != nil {
				log.Warn("Failed to close migrator", zap.Error(cerr))
			}
		}()
		return run(cmd, args, m)
	}
}
