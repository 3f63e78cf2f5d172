// Package config provides configuration loading and management for kvk-sync.
//
// Values are resolved in increasing priority: built-in defaults, an optional
// YAML file, a .env file and finally KVK_* environment variables.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/kvk-connect/kvk-sync/internal/telemetry"
)

const (
	// EnvironmentProduction selects the production KvK API
	EnvironmentProduction = "prod"

	// EnvironmentTest selects the KvK test environment
	EnvironmentTest = "test"

	// EnvPrefix is the prefix of every environment variable read by kvk-sync
	EnvPrefix = "KVK"

	// DefaultEnvFile is the dotenv file loaded when present
	DefaultEnvFile = ".env"
)

// Defaults for the sync settings
const (
	DefaultBatchSize  = 1
	DefaultFetchLimit = 100
	DefaultInterval   = 60 * time.Minute
	DefaultTimeout    = 10 * time.Second
)

// Option configures how the configuration is loaded
type Option func(*loaderConfig) error

type loaderConfig struct {
	path    string
	envFile string
}

// WithConfigPath reads the YAML file at path on top of the defaults
func WithConfigPath(path string) Option {
	return func(cfg *loaderConfig) error {
		if path == "" {
			return fmt.Errorf("path is required")
		}

		// Resolve symlinks to prevent path traversal via symlink
		realPath, err := filepath.EvalSymlinks(path)
		if err != nil {
			return fmt.Errorf("failed to evaluate symlinks: %w", err)
		}

		if !filepath.IsAbs(realPath) {
			if !filepath.IsLocal(realPath) {
				return fmt.Errorf("path is not local or contains invalid traversal: %s", path)
			}
		}

		cfg.path = realPath
		return nil
	}
}

// WithEnvFile loads the given dotenv file instead of ./.env. An empty path disables dotenv loading.
func WithEnvFile(path string) Option {
	return func(cfg *loaderConfig) error {
		cfg.envFile = path
		return nil
	}
}

// Config is the root configuration of kvk-sync
type Config struct {
	// API configures access to the KvK registry API
	API APIConfig `yaml:"api"`

	// Database configures the relational store
	Database *DatabaseConfig `yaml:"database,omitempty"`

	// Sync holds the defaults of the sync commands
	Sync SyncConfig `yaml:"sync"`

	// LogLevel is one of debug, info, warn or error
	LogLevel string `yaml:"logLevel,omitempty"`

	// Telemetry configures tracing, metrics and the Prometheus endpoint
	Telemetry *telemetry.Config `yaml:"telemetry,omitempty"`
}

// APIConfig defines the KvK API connection.
// The API keys are read from the environment only.
type APIConfig struct {
	// Environment is either "prod" or "test"
	Environment string `yaml:"environment,omitempty"`

	// BaseURL overrides the base URL implied by Environment
	BaseURL string `yaml:"baseURL,omitempty"`

	// Timeout bounds every API request, e.g. "10s"
	Timeout string `yaml:"timeout,omitempty"`

	// MutatieAbonnementID is the mutation service subscription to read signals from
	MutatieAbonnementID string `yaml:"mutatieAbonnementId,omitempty"`

	Key     string `yaml:"-"`
	TestKey string `yaml:"-"`
}

// SyncConfig holds the defaults of the sync commands. Flags override them.
type SyncConfig struct {
	// BatchSize is the number of records committed per transaction
	BatchSize int `yaml:"batchSize,omitempty"`

	// FetchLimit is the number of keys sampled per gap query
	FetchLimit int `yaml:"fetchLimit,omitempty"`

	// Interval is the pause between daemon cycles, e.g. "60m"
	Interval string `yaml:"interval,omitempty"`
}

// DatabaseConfig defines the database connection.
// Either URL or the Postgres host fields must be set; URL wins when both are.
type DatabaseConfig struct {
	// URL is a postgres:// URL or a SQLite path
	URL string `yaml:"url,omitempty"`

	// Host is the database server hostname
	Host string `yaml:"host,omitempty"`

	// Port is the database server port
	Port int `yaml:"port,omitempty"`

	// User is the database username
	User string `yaml:"user,omitempty"`

	// PasswordFile is the path to a file containing the database password
	PasswordFile string `yaml:"passwordFile,omitempty"`

	// Database is the database name
	Database string `yaml:"database,omitempty"`

	// SSLMode is the SSL mode for the connection (disable, require, verify-ca, verify-full)
	SSLMode string `yaml:"sslMode,omitempty"`

	// MaxOpenConns is the maximum number of open connections to the database
	MaxOpenConns int `yaml:"maxOpenConns,omitempty"`

	// MaxIdleConns is the maximum number of idle connections in the pool
	MaxIdleConns int `yaml:"maxIdleConns,omitempty"`

	// ConnMaxLifetime is the maximum amount of time a connection may be reused (e.g., "1h", "30m")
	ConnMaxLifetime string `yaml:"connMaxLifetime,omitempty"`
}

// GetPassword returns the database password.
// The password file takes precedence over the KVK_DATABASE_PASSWORD environment variable.
func (d *DatabaseConfig) GetPassword() (string, error) {
	if d.PasswordFile != "" {
		cleanPath := filepath.Clean(d.PasswordFile)

		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return "", fmt.Errorf("failed to read password from file %s: %w", d.PasswordFile, err)
		}

		return strings.TrimSpace(string(data)), nil
	}

	if envPassword := os.Getenv(EnvPrefix + "_DATABASE_PASSWORD"); envPassword != "" {
		return envPassword, nil
	}

	return "", fmt.Errorf(
		"no database password configured: set passwordFile or %s_DATABASE_PASSWORD environment variable", EnvPrefix,
	)
}

// GetConnectionString returns the database URL
func (d *DatabaseConfig) GetConnectionString() (string, error) {
	if d.URL != "" {
		return d.URL, nil
	}
	if d.Host == "" {
		return "", fmt.Errorf("no database configured: set %s_DATABASE_URL or database.host", EnvPrefix)
	}

	password, err := d.GetPassword()
	if err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = "require"
	}

	port := d.Port
	if port == 0 {
		port = 5432
	}

	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		url.QueryEscape(d.User),
		url.QueryEscape(password),
		d.Host,
		port,
		d.Database,
		sslMode,
	), nil
}

// GetConnMaxLifetime returns the parsed connection lifetime, zero when unset
func (d *DatabaseConfig) GetConnMaxLifetime() (time.Duration, error) {
	if d.ConnMaxLifetime == "" {
		return 0, nil
	}
	return time.ParseDuration(d.ConnMaxLifetime)
}

// Default returns the configuration used when nothing else is set
func Default() *Config {
	return &Config{
		API: APIConfig{
			Environment: EnvironmentProduction,
			Timeout:     DefaultTimeout.String(),
		},
		Sync: SyncConfig{
			BatchSize:  DefaultBatchSize,
			FetchLimit: DefaultFetchLimit,
			Interval:   DefaultInterval.String(),
		},
		LogLevel: "info",
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML file,
// the dotenv file and the environment, then validates it.
func LoadConfig(opts ...Option) (*Config, error) {
	loaderCfg := &loaderConfig{envFile: DefaultEnvFile}
	for _, opt := range opts {
		if err := opt(loaderCfg); err != nil {
			return nil, err
		}
	}

	config := Default()

	if loaderCfg.path != "" {
		data, err := os.ReadFile(loaderCfg.path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	if loaderCfg.envFile != "" {
		// Existing environment variables are never overridden by the dotenv file
		if err := godotenv.Load(loaderCfg.envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", loaderCfg.envFile, err)
		}
	}

	if err := config.applyEnv(); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyEnv overlays the KVK_* environment variables and their legacy aliases.
func (c *Config) applyEnv() error {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)

	bindings := map[string][]string{
		"api_key":                {"KVK_API_KEY", "KVK_API_KEY_PROD"},
		"api_key_test":           {"KVK_API_KEY_TEST"},
		"api_environment":        {"KVK_API_ENVIRONMENT"},
		"api_base_url":           {"KVK_API_BASE_URL"},
		"api_timeout":            {"KVK_API_TIMEOUT"},
		"mutatie_abonnement_id":  {"KVK_MUTATIE_ABONNEMENT_ID"},
		"database_url":           {"KVK_DATABASE_URL", "SQLALCHEMY_DATABASE_URI"},
		"log_level":              {"KVK_LOG_LEVEL", "LOG_LEVEL"},
		"batch_size":             {"KVK_BATCH_SIZE"},
		"fetch_limit":            {"KVK_FETCH_LIMIT"},
		"interval":               {"KVK_INTERVAL"},
		"prometheus_listen_addr": {"KVK_PROMETHEUS_LISTEN_ADDRESS"},
	}
	for key, envs := range bindings {
		if err := v.BindEnv(append([]string{key}, envs...)...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	setString := func(key string, dst *string) {
		if v.IsSet(key) {
			*dst = v.GetString(key)
		}
	}

	setString("api_key", &c.API.Key)
	setString("api_key_test", &c.API.TestKey)
	setString("api_environment", &c.API.Environment)
	setString("api_base_url", &c.API.BaseURL)
	setString("api_timeout", &c.API.Timeout)
	setString("mutatie_abonnement_id", &c.API.MutatieAbonnementID)
	setString("log_level", &c.LogLevel)
	setString("interval", &c.Sync.Interval)

	if v.IsSet("database_url") {
		if c.Database == nil {
			c.Database = &DatabaseConfig{}
		}
		c.Database.URL = v.GetString("database_url")
	}
	if v.IsSet("batch_size") {
		c.Sync.BatchSize = v.GetInt("batch_size")
	}
	if v.IsSet("fetch_limit") {
		c.Sync.FetchLimit = v.GetInt("fetch_limit")
	}
	if v.IsSet("prometheus_listen_addr") {
		if c.Telemetry == nil {
			c.Telemetry = &telemetry.Config{}
		}
		if c.Telemetry.Prometheus == nil {
			c.Telemetry.Prometheus = &telemetry.PrometheusConfig{}
		}
		c.Telemetry.Prometheus.ListenAddress = v.GetString("prometheus_listen_addr")
	}
	return nil
}

// APIKey returns the key matching the configured environment
func (c *Config) APIKey() string {
	if c.API.Environment == EnvironmentTest {
		return c.API.TestKey
	}
	return c.API.Key
}

// GetInterval returns the daemon interval
func (c *Config) GetInterval() time.Duration {
	d, err := time.ParseDuration(c.Sync.Interval)
	if err != nil || d <= 0 {
		return DefaultInterval
	}
	return d
}

// GetTimeout returns the API request timeout
func (c *Config) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.API.Timeout)
	if err != nil || d <= 0 {
		return DefaultTimeout
	}
	return d
}

// RequireAPIKey reports an error when no key is set for the configured environment
func (c *Config) RequireAPIKey() error {
	if c.APIKey() != "" {
		return nil
	}
	if c.API.Environment == EnvironmentTest {
		return fmt.Errorf("%s_API_KEY_TEST is required for the test environment", EnvPrefix)
	}
	return fmt.Errorf("%s_API_KEY is required", EnvPrefix)
}

// RequireDatabase reports an error when no database is configured
func (c *Config) RequireDatabase() error {
	if c.Database == nil || (c.Database.URL == "" && c.Database.Host == "") {
		return fmt.Errorf("no database configured: set %s_DATABASE_URL or database.url", EnvPrefix)
	}
	return nil
}

// Validate checks the configuration and reports every problem found
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config cannot be nil")
	}

	var errs []error

	switch c.API.Environment {
	case EnvironmentProduction, EnvironmentTest:
	default:
		errs = append(errs, fmt.Errorf("api.environment must be %q or %q, got %q",
			EnvironmentProduction, EnvironmentTest, c.API.Environment))
	}

	if c.API.BaseURL != "" {
		if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("api.baseURL must be an absolute URL, got %q", c.API.BaseURL))
		}
	}

	if c.API.Timeout != "" {
		if _, err := time.ParseDuration(c.API.Timeout); err != nil {
			errs = append(errs, fmt.Errorf("api.timeout must be a valid duration: %w", err))
		}
	}

	if c.Sync.BatchSize < 1 {
		errs = append(errs, fmt.Errorf("sync.batchSize must be at least 1, got %d", c.Sync.BatchSize))
	}
	if c.Sync.FetchLimit < 1 {
		errs = append(errs, fmt.Errorf("sync.fetchLimit must be at least 1, got %d", c.Sync.FetchLimit))
	}
	if c.Sync.Interval != "" {
		if d, err := time.ParseDuration(c.Sync.Interval); err != nil || d <= 0 {
			errs = append(errs, fmt.Errorf("sync.interval must be a positive duration (e.g., '30m', '1h'), got %q",
				c.Sync.Interval))
		}
	}

	if c.Database != nil && c.Database.ConnMaxLifetime != "" {
		if _, err := c.Database.GetConnMaxLifetime(); err != nil {
			errs = append(errs, fmt.Errorf("database.connMaxLifetime must be a valid duration: %w", err))
		}
	}

	if err := c.Telemetry.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("telemetry: %w", err))
	}

	return errors.Join(errs...)
}
