// internal/config/config.go
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/xkilldash9x/checkride/api/schemas"
)

// Config holds the entire harness configuration.
type Config struct {
	Logger  LoggerConfig  `mapstructure:"logger" yaml:"logger"`
	Harness HarnessConfig `mapstructure:"harness" yaml:"harness"`
	Facade  FacadeConfig  `mapstructure:"facade" yaml:"facade"`
	Runner  RunnerConfig  `mapstructure:"runner" yaml:"runner"`
	Remote  RemoteConfig  `mapstructure:"remote" yaml:"remote"`
	History HistoryConfig `mapstructure:"history" yaml:"history"`
}

// LoggerConfig configures the global zap logger.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// HarnessConfig selects the execution mode and the browser identity every
// session is opened with.
type HarnessConfig struct {
	// Mode is the raw LOCAL/REMOTE selector; validated by Validate.
	Mode         string               `mapstructure:"mode" yaml:"mode"`
	Capabilities schemas.Capabilities `mapstructure:"capabilities" yaml:"capabilities"`
	Visibility   string               `mapstructure:"visibility" yaml:"visibility"`
}

// FacadeConfig fixes the explicit-wait policy for every action facade call.
// The facade is the single place retry policy lives; page objects never
// embed their own sleeps.
type FacadeConfig struct {
	WaitBudget   time.Duration `mapstructure:"wait_budget" yaml:"wait_budget"`
	PollInterval time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
}

// RunnerConfig bounds the coordinator's worker pool.
type RunnerConfig struct {
	Concurrency int `mapstructure:"concurrency" yaml:"concurrency"`
}

// RemoteConfig configures the remote execution provider client.
type RemoteConfig struct {
	Endpoint  string        `mapstructure:"endpoint" yaml:"endpoint"`
	Username  string        `mapstructure:"username" yaml:"username"`
	AccessKey string        `mapstructure:"access_key" yaml:"access_key"`
	Timeout   time.Duration `mapstructure:"timeout" yaml:"timeout"`
	// RequestsPerSecond throttles job-API calls client side. The provider's
	// concurrency quota itself is not enforced here; exceeding it surfaces
	// as a provider-side rejection.
	RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
}

// HistoryConfig configures optional run-history persistence.
type HistoryConfig struct {
	Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	DSN     string `mapstructure:"dsn" yaml:"dsn"`
}

// Mode parses the configured execution mode.
func (h HarnessConfig) ParsedMode() (schemas.Mode, error) {
	return schemas.ParseMode(h.Mode)
}

// NewDefaultConfig creates a configuration populated with default values.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// SetDefaults initializes default values for all configuration parameters.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "checkride")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Harness --
	v.SetDefault("harness.mode", "")
	v.SetDefault("harness.capabilities.browser_name", "chrome")
	v.SetDefault("harness.capabilities.browser_version", "")
	v.SetDefault("harness.capabilities.headless", true)
	v.SetDefault("harness.capabilities.window_width", 1280)
	v.SetDefault("harness.capabilities.window_height", 800)
	v.SetDefault("harness.visibility", string(schemas.VisibilityTeam))

	// -- Facade --
	v.SetDefault("facade.wait_budget", "10s")
	v.SetDefault("facade.poll_interval", "250ms")

	// -- Runner --
	v.SetDefault("runner.concurrency", 4)

	// -- Remote --
	v.SetDefault("remote.endpoint", "")
	v.SetDefault("remote.timeout", "30s")
	v.SetDefault("remote.requests_per_second", 5.0)

	// -- History --
	v.SetDefault("history.enabled", false)
	v.SetDefault("history.dsn", "")
}

// NewConfigFromViper creates a validated configuration from a viper object.
func NewConfigFromViper(v *viper.Viper) (*Config, error) {
	// Credentials come from the environment, never the config file.
	v.BindEnv("remote.username", "CHECKRIDE_REMOTE_USERNAME")
	v.BindEnv("remote.access_key", "CHECKRIDE_REMOTE_ACCESS_KEY")
	v.BindEnv("history.dsn", "CHECKRIDE_HISTORY_DSN")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// Validate checks the configuration for required fields and sane values.
// The execution mode itself is validated later, by the session manager's
// Describe, so that a missing mode only becomes fatal when a test unit is
// about to start - and always before any session exists.
func (c *Config) Validate() error {
	if mode, err := c.Harness.ParsedMode(); err == nil && mode == schemas.ModeRemote && c.Remote.Endpoint == "" {
		return &schemas.Failure{
			Kind: schemas.FailConfiguration,
			Op:   "validate config",
			Err:  fmt.Errorf("remote.endpoint is required when harness.mode is REMOTE"),
		}
	}
	if c.Runner.Concurrency <= 0 {
		return fmt.Errorf("runner.concurrency must be a positive integer")
	}
	if c.Facade.WaitBudget <= 0 {
		return fmt.Errorf("facade.wait_budget must be a positive duration")
	}
	if c.Facade.PollInterval <= 0 {
		return fmt.Errorf("facade.poll_interval must be a positive duration")
	}
	if c.History.Enabled && c.History.DSN == "" {
		return fmt.Errorf("history.dsn is required when history.enabled is true")
	}
	return nil
}
