// Package config loads layered configuration: defaults, config.yml, .env,
// BATCH_* environment variables and command-line flags, in rising priority.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"go-student-batch/internal/logger"
	"go-student-batch/internal/model"
	"go-student-batch/internal/store"
	"go-student-batch/internal/telemetry"
)

const EnvPrefix = "BATCH"

// Config is the full application configuration.
type Config struct {
	Job       model.JobSpec    `yaml:"job" mapstructure:"job"`
	Database  store.Config     `yaml:"database" mapstructure:"database"`
	Logging   logger.Config    `yaml:"logging" mapstructure:"logging"`
	Server    ServerConfig     `yaml:"server" mapstructure:"server"`
	Telemetry telemetry.Config `yaml:"telemetry" mapstructure:"telemetry"`
}

// ServerConfig configures the HTTP launcher.
type ServerConfig struct {
	Addr string `yaml:"addr" mapstructure:"addr" validate:"required"`
}

// ApplyDefaults applies default values to every section.
func (c *Config) ApplyDefaults() {
	c.Job.ApplyDefaults()
	c.Database.ApplyDefaults()
	c.Logging.ApplyDefaults()
	c.Telemetry.ApplyDefaults()
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
}

// Validate checks struct tags, then each section's own rules.
func (c *Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if err := c.Database.Validate(); err != nil {
		return err
	}
	return c.Logging.Validate()
}

type loaderConfig struct {
	configFile string
	envFile    string
	flags      map[string]*pflag.Flag
}

// Option configures Load.
type Option func(*loaderConfig)

// WithConfigFile reads path instead of searching for config.yml.
func WithConfigFile(path string) Option {
	return func(lc *loaderConfig) { lc.configFile = path }
}

// WithEnvFile loads path instead of ./.env.
func WithEnvFile(path string) Option {
	return func(lc *loaderConfig) { lc.envFile = path }
}

// WithFlag lets a command-line flag override key when it is set.
func WithFlag(key string, f *pflag.Flag) Option {
	return func(lc *loaderConfig) {
		if f != nil {
			lc.flags[key] = f
		}
	}
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("job.name", model.DefaultJobName)
	v.SetDefault("job.step_name", model.DefaultStepName)
	v.SetDefault("job.input_path", model.DefaultInputPath)
	v.SetDefault("job.chunk_size", model.DefaultChunkSize)
	v.SetDefault("job.concurrency", model.DefaultConcurrency)

	v.SetDefault("database.driver", store.DriverSQLite)
	v.SetDefault("database.dsn", store.DefaultDSN)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 30*time.Minute)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.slow_query_threshold", 200*time.Millisecond)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.no_color", false)

	v.SetDefault("server.addr", ":8080")

	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "studentbatch")
	v.SetDefault("telemetry.endpoint", "localhost:4318")
	v.SetDefault("telemetry.insecure", true)
	v.SetDefault("telemetry.sample_rate", 1.0)
	v.SetDefault("telemetry.metric_interval", 15*time.Second)
}

// Load builds the configuration.
func Load(opts ...Option) (*Config, error) {
	lc := loaderConfig{flags: map[string]*pflag.Flag{}}
	for _, opt := range opts {
		opt(&lc)
	}

	v := viper.New()
	setDefaults(v)

	// 1. YAML config (base configuration)
	if lc.configFile != "" {
		v.SetConfigFile(lc.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", lc.configFile, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to load config file: %w", err)
			}
		}
	}

	// 2. .env file; variables already in the environment win
	envFile := lc.envFile
	if envFile == "" {
		if _, err := os.Stat(".env"); err == nil {
			envFile = ".env"
		}
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load .env file %s: %w", envFile, err)
		}
	}

	// 3. Environment variables: BATCH_JOB_CHUNK_SIZE -> job.chunk_size
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 4. Flags
	for key, f := range lc.flags {
		if err := v.BindPFlag(key, f); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", f.Name, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
