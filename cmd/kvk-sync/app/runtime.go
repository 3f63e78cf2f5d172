package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/kvk-connect/kvk-sync/internal/config"
	"github.com/kvk-connect/kvk-sync/internal/db"
	"github.com/kvk-connect/kvk-sync/internal/kvk/api"
	"github.com/kvk-connect/kvk-sync/internal/service"
	"github.com/kvk-connect/kvk-sync/internal/store"
	"github.com/kvk-connect/kvk-sync/internal/sync"
	"github.com/kvk-connect/kvk-sync/internal/telemetry"
	"github.com/kvk-connect/kvk-sync/internal/versions"
)

const (
	tracerName      = "github.com/kvk-connect/kvk-sync"
	shutdownTimeout = 10 * time.Second
)

// needs lists the dependencies a command has to set up
type needs struct {
	api      bool
	database bool
}

// runtime holds the dependencies shared by the sync commands
type runtime struct {
	cfg     *config.Config
	conn    *db.Connection
	tel     *telemetry.Telemetry
	client  api.Client
	metrics *telemetry.SyncMetrics
}

// signalContext returns a context cancelled on SIGINT or SIGTERM
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// loadConfig reads the configuration named by --config and applies its log level
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	var loadOpts []config.Option
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		loadOpts = append(loadOpts, config.WithConfigPath(path))
	}

	cfg, err := config.LoadConfig(loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if opts.level != nil && !opts.debug() {
		level, ok := ParseLogLevel(cfg.LogLevel)
		if !ok {
			slog.Warn("Invalid log level, using INFO", "value", cfg.LogLevel)
		}
		opts.level.Set(level)
	}
	return cfg, nil
}

func newRuntime(ctx context.Context, cmd *cobra.Command, opts *rootOptions, n needs) (*runtime, error) {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return nil, err
	}

	rt := &runtime{cfg: cfg}
	if n.api {
		if err := cfg.RequireAPIKey(); err != nil {
			return nil, err
		}
	}
	if n.database {
		if err := cfg.RequireDatabase(); err != nil {
			return nil, err
		}
	}

	telCfg := cfg.Telemetry
	if telCfg != nil && telCfg.ServiceVersion == "" {
		telCfg.ServiceVersion = versions.GetVersionInfo().Version
	}
	rt.tel, err = telemetry.New(ctx,
		telemetry.WithTelemetryConfig(telCfg),
		telemetry.WithEnvironment(cfg.API.Environment),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	rt.metrics, err = telemetry.NewSyncMetrics(rt.tel.MeterProvider())
	if err != nil {
		rt.Close()
		return nil, fmt.Errorf("failed to create sync metrics: %w", err)
	}

	if n.database {
		rt.conn, err = db.NewConnection(ctx, cfg.Database)
		if err != nil {
			rt.Close()
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
	}

	if n.api {
		baseURL := cfg.API.BaseURL
		if baseURL == "" {
			baseURL = api.ProductionBaseURL
			if cfg.API.Environment == config.EnvironmentTest {
				baseURL = api.TestBaseURL
			}
		}
		rt.client = api.New(cfg.APIKey(),
			api.WithBaseURL(baseURL),
			api.WithTimeout(cfg.GetTimeout()),
			api.WithTracer(rt.tel.Tracer(tracerName)),
		)
		slog.Debug("KvK API client configured", "base_url", baseURL, "environment", cfg.API.Environment)
	}

	return rt, nil
}

// Close releases the database connection and flushes telemetry
func (rt *runtime) Close() {
	if rt.conn != nil {
		if err := rt.conn.Close(); err != nil {
			slog.Error("Error closing database connection", "error", err)
		}
	}
	if rt.tel != nil {
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := rt.tel.Shutdown(ctx); err != nil {
			slog.Error("Error shutting down telemetry", "error", err)
		}
	}
}

func (rt *runtime) records() *service.RecordService {
	return service.NewRecordService(rt.client)
}

func (rt *runtime) jobOptions() []sync.JobOption {
	return []sync.JobOption{
		sync.WithJobMetrics(rt.metrics),
		sync.WithJobTracer(rt.tel.Tracer(tracerName)),
	}
}

// writerOptions applies --batch-size, falling back to the configured batch size
func (rt *runtime) writerOptions(cmd *cobra.Command) []store.Option {
	batchSize := rt.cfg.Sync.BatchSize
	if cmd.Flags().Changed("batch-size") {
		batchSize, _ = cmd.Flags().GetInt("batch-size")
	}
	return []store.Option{store.WithBatchSize(batchSize)}
}

// limit applies --limit, falling back to the configured fetch limit
func (rt *runtime) limit(cmd *cobra.Command) int {
	if cmd.Flags().Changed("limit") {
		limit, _ := cmd.Flags().GetInt("limit")
		return limit
	}
	return rt.cfg.Sync.FetchLimit
}

// interval applies --interval in minutes, falling back to the configured interval
func (rt *runtime) interval(cmd *cobra.Command) time.Duration {
	if cmd.Flags().Changed("interval") {
		minutes, _ := cmd.Flags().GetInt("interval")
		if minutes > 0 {
			return time.Duration(minutes) * time.Minute
		}
	}
	return rt.cfg.GetInterval()
}

func (rt *runtime) runner(job sync.Job) *sync.Runner {
	return sync.NewRunner(job,
		sync.WithSyncMetrics(rt.metrics),
		sync.WithTracer(rt.tel.Tracer(tracerName)),
	)
}

// daemon runs job until ctx is cancelled, next to the Prometheus endpoint when one is configured
func (rt *runtime) daemon(ctx context.Context, job sync.Job, interval time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)

	if rt.cfg.Telemetry.PrometheusEnabled() {
		addr := rt.cfg.Telemetry.Prometheus.ListenAddress
		var health telemetry.HealthFunc
		if rt.conn != nil {
			health = rt.conn.Ping
		}
		srv, err := telemetry.NewMetricsServer(addr, rt.tel, health)
		if err != nil {
			return err
		}
		g.Go(func() error {
			return telemetry.Serve(gctx, srv)
		})
	}

	g.Go(func() error {
		return rt.runner(job).RunDaemon(gctx, interval)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// addSyncFlags registers the flags shared by the profile commands
func addSyncFlags(cmd *cobra.Command) {
	cmd.Flags().Int("batch-size", config.DefaultBatchSize, "Number of records committed per transaction")
	cmd.Flags().Int("interval", int(config.DefaultInterval/time.Minute), "Minutes between daemon cycles")
	cmd.Flags().Int("limit", config.DefaultFetchLimit, "Number of keys handled per gap and cycle")
	cmd.Flags().Bool("daemon", false, "Keep syncing missing and outdated records every interval")
	cmd.Flags().Bool("update-missing", false, "Fetch records that are not stored yet")
	cmd.Flags().Bool("update-known", false, "Refresh stored records that changed upstream")
}

// logResult reports the outcome of a one-shot sync
func logResult(job string, res sync.Result) {
	slog.Info("Sync finished", "job", job,
		"stored", res.Stored, "not_found", res.NotFound, "failed", res.Failed)
}
