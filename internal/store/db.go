package store

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"go-student-batch/internal/logger"
	"go-student-batch/internal/store/migrations"
)

const (
	DriverSQLite   = "sqlite3"
	DriverPostgres = "pgx"

	DefaultDSN = "file:studentbatch.db?_busy_timeout=5000&_foreign_keys=on"
)

// Config contains database configuration.
type Config struct {
	Driver             string        `yaml:"driver" mapstructure:"driver" validate:"required,oneof=sqlite3 pgx"`
	DSN                string        `yaml:"dsn" mapstructure:"dsn" validate:"required"`
	MaxOpenConns       int           `yaml:"max_open_conns" mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns       int           `yaml:"max_idle_conns" mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime    time.Duration `yaml:"conn_max_lifetime" mapstructure:"conn_max_lifetime"`
	LogLevel           string        `yaml:"log_level" mapstructure:"log_level" validate:"omitempty,oneof=silent error warn info"`
	SlowQueryThreshold time.Duration `yaml:"slow_query_threshold" mapstructure:"slow_query_threshold"`
}

// ApplyDefaults fills empty fields.
func (c *Config) ApplyDefaults() {
	if c.Driver == "" {
		c.Driver = DriverSQLite
	}
	if c.DSN == "" && c.Driver == DriverSQLite {
		c.DSN = DefaultDSN
	}
	if c.MaxOpenConns == 0 {
		c.MaxOpenConns = 10
	}
	if c.MaxIdleConns == 0 {
		c.MaxIdleConns = 5
	}
	if c.LogLevel == "" {
		c.LogLevel = "warn"
	}
	if c.SlowQueryThreshold == 0 {
		c.SlowQueryThreshold = 200 * time.Millisecond
	}
}

// Validate checks the driver and DSN.
func (c *Config) Validate() error {
	if c.Driver != DriverSQLite && c.Driver != DriverPostgres {
		return fmt.Errorf("database.driver must be %s or %s (got: %s)", DriverSQLite, DriverPostgres, c.Driver)
	}
	if c.DSN == "" {
		return fmt.Errorf("database.dsn is required")
	}
	return nil
}

// DB holds the shared connection pool. Gorm runs on top of SQL, so both
// see the same connections and transactions.
type DB struct {
	SQL    *sql.DB
	Gorm   *gorm.DB
	driver string
	log    *logger.Logger
}

// Open connects, pings and prepares the ORM. It does not migrate.
func Open(ctx context.Context, cfg Config, log *logger.Logger) (*DB, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log = log.WithComponent("store")

	sqlDB, err := sql.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}

	if cfg.Driver == DriverSQLite {
		// One writer at a time; concurrent chunk transactions queue for it.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
	} else {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}

	var dialector gorm.Dialector
	if cfg.Driver == DriverSQLite {
		dialector = sqlite.Dialector{DriverName: DriverSQLite, Conn: sqlDB}
	} else {
		dialector = postgres.New(postgres.Config{Conn: sqlDB})
	}
	gdb, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 newGormLogger(log, cfg.SlowQueryThreshold, parseLogLevel(cfg.LogLevel)),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("gorm open error: %w", err)
	}

	log.Info("database connected", map[string]interface{}{"driver": cfg.Driver})
	return &DB{SQL: sqlDB, Gorm: gdb, driver: cfg.Driver, log: log}, nil
}

// Driver returns the database/sql driver name.
func (d *DB) Driver() string { return d.driver }

// goose keeps its dialect and filesystem in package state.
var migrateMu sync.Mutex

// Migrate applies every pending embedded migration.
func (d *DB) Migrate(ctx context.Context) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	var (
		fsys    fs.FS
		dialect string
		dir     string
	)
	switch d.driver {
	case DriverPostgres:
		fsys, dialect, dir = migrations.Postgres, "postgres", "postgres"
	default:
		fsys, dialect, dir = migrations.SQLite, "sqlite3", "sqlite3"
	}

	goose.SetBaseFS(fsys)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(gooseLogger{log: d.log})
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("migration dialect: %w", err)
	}
	if err := goose.UpContext(ctx, d.SQL, dir); err != nil {
		return fmt.Errorf("migration error: %w", err)
	}
	return nil
}

// Ping checks the connection.
func (d *DB) Ping(ctx context.Context) error {
	return d.SQL.PingContext(ctx)
}

// Close releases the pool.
func (d *DB) Close() error {
	return d.SQL.Close()
}

type txKey struct{}

// WithinTx runs fn in one transaction bound to the context it receives.
// Repositories called with that context join the transaction. It commits
// when fn returns nil and rolls back on error or panic.
func (d *DB) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return d.Gorm.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// conn returns the transaction bound to ctx, or the pool.
func (d *DB) conn(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return d.Gorm.WithContext(ctx)
}

type gooseLogger struct {
	log *logger.Logger
}

func (g gooseLogger) Printf(format string, v ...interface{}) {
	g.log.Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (g gooseLogger) Fatalf(format string, v ...interface{}) {
	g.log.Error(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
