package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvk-connect/kvk-sync/internal/telemetry"
)

// clearEnv blanks every variable read by the loader so the host environment cannot leak in
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"KVK_API_KEY", "KVK_API_KEY_PROD", "KVK_API_KEY_TEST", "KVK_API_ENVIRONMENT", "KVK_API_BASE_URL",
		"KVK_API_TIMEOUT", "KVK_MUTATIE_ABONNEMENT_ID", "KVK_DATABASE_URL", "SQLALCHEMY_DATABASE_URI",
		"KVK_LOG_LEVEL", "LOG_LEVEL", "KVK_BATCH_SIZE", "KVK_FETCH_LIMIT", "KVK_INTERVAL",
		"KVK_PROMETHEUS_LISTEN_ADDRESS", "KVK_DATABASE_PASSWORD",
	} {
		t.Setenv(key, "")
		require.NoError(t, os.Unsetenv(key))
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig(WithEnvFile(""))
	require.NoError(t, err)

	assert.Equal(t, Default(), cfg)
	assert.Equal(t, DefaultInterval, cfg.GetInterval())
	assert.Equal(t, DefaultTimeout, cfg.GetTimeout())
	assert.Nil(t, cfg.Database)
}

func TestLoadConfig_YAML(t *testing.T) {
	clearEnv(t)

	path := writeFile(t, "config.yaml", `api:
  environment: test
  timeout: 30s
  mutatieAbonnementId: abo-1
database:
  url: postgres://kvk@db:5432/kvk
  maxOpenConns: 4
sync:
  batchSize: 50
  fetchLimit: 500
  interval: 15m
logLevel: debug
telemetry:
  prometheus:
    listenAddress: ":9090"
`)

	cfg, err := LoadConfig(WithConfigPath(path), WithEnvFile(""))
	require.NoError(t, err)

	assert.Equal(t, EnvironmentTest, cfg.API.Environment)
	assert.Equal(t, 30*time.Second, cfg.GetTimeout())
	assert.Equal(t, "abo-1", cfg.API.MutatieAbonnementID)
	require.NotNil(t, cfg.Database)
	assert.Equal(t, "postgres://kvk@db:5432/kvk", cfg.Database.URL)
	assert.Equal(t, 4, cfg.Database.MaxOpenConns)
	assert.Equal(t, 50, cfg.Sync.BatchSize)
	assert.Equal(t, 500, cfg.Sync.FetchLimit)
	assert.Equal(t, 15*time.Minute, cfg.GetInterval())
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.True(t, cfg.Telemetry.PrometheusEnabled())
}

func TestLoadConfig_EnvOverridesYAML(t *testing.T) {
	clearEnv(t)

	path := writeFile(t, "config.yaml", "sync:\n  batchSize: 50\nlogLevel: warn\n")
	t.Setenv("KVK_BATCH_SIZE", "7")
	t.Setenv("KVK_FETCH_LIMIT", "20")
	t.Setenv("KVK_INTERVAL", "5m")
	t.Setenv("KVK_LOG_LEVEL", "error")
	t.Setenv("KVK_API_KEY", "prod-key")
	t.Setenv("KVK_API_BASE_URL", "http://localhost:8080/api")
	t.Setenv("KVK_MUTATIE_ABONNEMENT_ID", "abo-2")
	t.Setenv("KVK_PROMETHEUS_LISTEN_ADDRESS", "127.0.0.1:9100")

	cfg, err := LoadConfig(WithConfigPath(path), WithEnvFile(""))
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Sync.BatchSize)
	assert.Equal(t, 20, cfg.Sync.FetchLimit)
	assert.Equal(t, 5*time.Minute, cfg.GetInterval())
	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, "prod-key", cfg.APIKey())
	assert.Equal(t, "http://localhost:8080/api", cfg.API.BaseURL)
	assert.Equal(t, "abo-2", cfg.API.MutatieAbonnementID)
	assert.Equal(t, "127.0.0.1:9100", cfg.Telemetry.Prometheus.ListenAddress)
}

func TestLoadConfig_LegacyAliases(t *testing.T) {
	clearEnv(t)

	t.Setenv("KVK_API_KEY_PROD", "legacy-key")
	t.Setenv("SQLALCHEMY_DATABASE_URI", "sqlite:///kvk.db")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig(WithEnvFile(""))
	require.NoError(t, err)

	assert.Equal(t, "legacy-key", cfg.APIKey())
	require.NotNil(t, cfg.Database)
	assert.Equal(t, "sqlite:///kvk.db", cfg.Database.URL)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfig_PrimaryEnvWinsOverAlias(t *testing.T) {
	clearEnv(t)

	t.Setenv("KVK_DATABASE_URL", "postgres://primary/kvk")
	t.Setenv("SQLALCHEMY_DATABASE_URI", "postgres://alias/kvk")

	cfg, err := LoadConfig(WithEnvFile(""))
	require.NoError(t, err)
	assert.Equal(t, "postgres://primary/kvk", cfg.Database.URL)
}

func TestLoadConfig_EnvFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("KVK_API_KEY", "from-environment")

	envFile := writeFile(t, ".env", "KVK_API_KEY=from-file\nKVK_MUTATIE_ABONNEMENT_ID=abo-from-file\n")
	t.Cleanup(func() { _ = os.Unsetenv("KVK_MUTATIE_ABONNEMENT_ID") })

	cfg, err := LoadConfig(WithEnvFile(envFile))
	require.NoError(t, err)

	assert.Equal(t, "from-environment", cfg.APIKey(), "the environment wins over the dotenv file")
	assert.Equal(t, "abo-from-file", cfg.API.MutatieAbonnementID)
}

func TestLoadConfig_MissingEnvFileIsIgnored(t *testing.T) {
	clearEnv(t)

	_, err := LoadConfig(WithEnvFile(filepath.Join(t.TempDir(), "absent.env")))
	require.NoError(t, err)
}

func TestLoadConfig_Errors(t *testing.T) {
	clearEnv(t)

	t.Run("missing file", func(t *testing.T) {
		_, err := LoadConfig(WithConfigPath(filepath.Join(t.TempDir(), "absent.yaml")), WithEnvFile(""))
		require.Error(t, err)
	})

	t.Run("invalid yaml", func(t *testing.T) {
		path := writeFile(t, "config.yaml", "api: [unclosed")
		_, err := LoadConfig(WithConfigPath(path), WithEnvFile(""))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to parse YAML config")
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := LoadConfig(WithConfigPath(""))
		require.Error(t, err)
	})

	t.Run("invalid env value", func(t *testing.T) {
		t.Setenv("KVK_BATCH_SIZE", "0")
		_, err := LoadConfig(WithEnvFile(""))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "sync.batchSize must be at least 1")
	})
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr []string
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{
			name:    "unknown environment",
			mutate:  func(c *Config) { c.API.Environment = "staging" },
			wantErr: []string{"api.environment"},
		},
		{
			name:    "relative base url",
			mutate:  func(c *Config) { c.API.BaseURL = "/api" },
			wantErr: []string{"api.baseURL"},
		},
		{
			name:    "invalid timeout",
			mutate:  func(c *Config) { c.API.Timeout = "soon" },
			wantErr: []string{"api.timeout"},
		},
		{
			name:    "non-positive interval",
			mutate:  func(c *Config) { c.Sync.Interval = "-5m" },
			wantErr: []string{"sync.interval"},
		},
		{
			name: "every problem is reported",
			mutate: func(c *Config) {
				c.Sync.BatchSize = 0
				c.Sync.FetchLimit = 0
				c.Database = &DatabaseConfig{ConnMaxLifetime: "forever"}
			},
			wantErr: []string{"sync.batchSize", "sync.fetchLimit", "database.connMaxLifetime"},
		},
		{
			name: "invalid prometheus address",
			mutate: func(c *Config) {
				c.Telemetry = &telemetry.Config{Prometheus: &telemetry.PrometheusConfig{ListenAddress: "9090"}}
			},
			wantErr: []string{"telemetry"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)

			err := cfg.Validate()
			if len(tt.wantErr) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, want := range tt.wantErr {
				assert.Contains(t, err.Error(), want)
			}
		})
	}

	var nilCfg *Config
	assert.Error(t, nilCfg.Validate())
}

func TestConfig_APIKey(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.API.Key = "prod"
	cfg.API.TestKey = "test"
	assert.Equal(t, "prod", cfg.APIKey())
	assert.NoError(t, cfg.RequireAPIKey())

	cfg.API.Environment = EnvironmentTest
	assert.Equal(t, "test", cfg.APIKey())

	cfg.API.TestKey = ""
	err := cfg.RequireAPIKey()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KVK_API_KEY_TEST")
}

func TestConfig_RequireDatabase(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.Error(t, cfg.RequireDatabase())

	cfg.Database = &DatabaseConfig{}
	assert.Error(t, cfg.RequireDatabase())

	cfg.Database.URL = "kvk.db"
	assert.NoError(t, cfg.RequireDatabase())
}

func TestDatabaseConfig_GetConnectionString(t *testing.T) {
	t.Setenv("KVK_DATABASE_PASSWORD", "p@ss word")

	tests := []struct {
		name    string
		cfg     DatabaseConfig
		want    string
		wantErr bool
	}{
		{
			name: "url wins",
			cfg:  DatabaseConfig{URL: "sqlite:///kvk.db", Host: "db"},
			want: "sqlite:///kvk.db",
		},
		{
			name: "host fields with defaults",
			cfg:  DatabaseConfig{Host: "db", User: "kvk", Database: "kvk"},
			want: "postgres://kvk:p%40ss+word@db:5432/kvk?sslmode=require",
		},
		{
			name: "explicit port and ssl mode",
			cfg:  DatabaseConfig{Host: "db", Port: 6543, User: "kvk", Database: "kvk", SSLMode: "disable"},
			want: "postgres://kvk:p%40ss+word@db:6543/kvk?sslmode=disable",
		},
		{
			name:    "nothing configured",
			cfg:     DatabaseConfig{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.cfg.GetConnectionString()
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDatabaseConfig_GetPassword(t *testing.T) {
	t.Setenv("KVK_DATABASE_PASSWORD", "from-env")

	file := writeFile(t, "password", "from-file\n")
	got, err := (&DatabaseConfig{PasswordFile: file}).GetPassword()
	require.NoError(t, err)
	assert.Equal(t, "from-file", got, "the password file wins and is trimmed")

	got, err = (&DatabaseConfig{}).GetPassword()
	require.NoError(t, err)
	assert.Equal(t, "from-env", got)

	_, err = (&DatabaseConfig{PasswordFile: filepath.Join(t.TempDir(), "absent")}).GetPassword()
	assert.Error(t, err)

	t.Setenv("KVK_DATABASE_PASSWORD", "")
	_, err = (&DatabaseConfig{}).GetPassword()
	assert.Error(t, err)
}
