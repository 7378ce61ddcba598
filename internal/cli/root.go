// Package cli wires configuration, logging, telemetry and the store into the
// studentbatch commands.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"go-student-batch/internal/config"
	"go-student-batch/internal/logger"
	"go-student-batch/internal/store"
	"go-student-batch/internal/telemetry"
)

const serviceName = "studentbatch"

// NewRootCmd creates the root command with run, serve and migrate.
func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "studentbatch",
		Short:         "Chunked CSV student import",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		Example: `  # Import data/students.csv into the default SQLite database
  studentbatch run

  # Import another file with smaller chunks and unlimited workers
  studentbatch run --input /tmp/students.csv --chunk-size 200 --concurrency 0

  # Serve the HTTP launcher
  studentbatch serve --addr :9090`,
	}

	cmd.PersistentFlags().String("config", "", "config file (default ./config.yml or ./config/config.yml)")
	cmd.PersistentFlags().String("env-file", "", "dotenv file (default ./.env when present)")
	cmd.PersistentFlags().String("log-level", "", "log level: trace, debug, info, warn, error")
	cmd.PersistentFlags().String("db-driver", "", "database driver: sqlite3 or pgx")
	cmd.PersistentFlags().String("dsn", "", "database DSN")

	cmd.AddCommand(newRunCmd(), newServeCmd(), newMigrateCmd())
	return cmd
}

// app holds what every command needs once configuration is loaded.
type app struct {
	cfg      *config.Config
	log      *logger.Logger
	db       *store.DB
	shutdown telemetry.ShutdownFunc
}

// bootstrap loads configuration with cmd's flags on top, then opens and
// migrates the database. extra maps config keys to command-local flags.
func bootstrap(cmd *cobra.Command, extra map[string]string) (*app, error) {
	opts := []config.Option{
		config.WithFlag("logging.level", cmd.Flag("log-level")),
		config.WithFlag("database.driver", cmd.Flag("db-driver")),
		config.WithFlag("database.dsn", cmd.Flag("dsn")),
	}
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		opts = append(opts, config.WithConfigFile(path))
	}
	if path, _ := cmd.Flags().GetString("env-file"); path != "" {
		opts = append(opts, config.WithEnvFile(path))
	}
	for key, name := range extra {
		opts = append(opts, config.WithFlag(key, cmd.Flag(name)))
	}

	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, err
	}

	log := logger.NewWithWriter(cfg.Logging, serviceName, cmd.ErrOrStderr())
	ctx := cmd.Context()

	shutdown, err := telemetry.Setup(ctx, cfg.Telemetry, log)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}

	db, err := store.Open(ctx, cfg.Database, log)
	if err != nil {
		_ = shutdown(ctx)
		return nil, err
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		_ = shutdown(ctx)
		return nil, err
	}

	return &app{cfg: cfg, log: log, db: db, shutdown: shutdown}, nil
}

func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.shutdown(ctx); err != nil {
		a.log.Warn("telemetry shutdown failed", map[string]interface{}{"error": err.Error()})
	}
	if err := a.db.Close(); err != nil {
		a.log.Warn("database close failed", map[string]interface{}{"error": err.Error()})
	}
}
