// Package app assembles a runnable hireline runtime from the workspace
// config and releases it again.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"

	"hireline/internal/config"
	"hireline/internal/db"
	"hireline/internal/engine"
	"hireline/internal/lock"
	"hireline/internal/migrate"
	"hireline/internal/notify"
	"hireline/internal/observability"
)

// Overrides carry flag and environment values that win over hireline.yml.
// Empty fields leave the file value alone.
type Overrides struct {
	DBDriver   string
	DBDSN      string
	WebhookURL string
	RedisURL   string
	JWTSecret  string
	LogLevel   string
}

func (o Overrides) apply(cfg *config.Config) {
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&cfg.Database.Driver, o.DBDriver)
	set(&cfg.Database.DSN, o.DBDSN)
	set(&cfg.Notifications.WebhookURL, o.WebhookURL)
	set(&cfg.Redis.URL, o.RedisURL)
	set(&cfg.Auth.JWTSecret, o.JWTSecret)
	set(&cfg.Log.Level, o.LogLevel)
}

type Options struct {
	Workspace string
	Overrides Overrides
	// LogWriter defaults to stderr.
	LogWriter io.Writer
	// SkipMigrate leaves the schema alone; used by hl migrate to report
	// versions before and after.
	SkipMigrate bool
}

// Runtime is a wired engine plus everything that must be released with it.
type Runtime struct {
	Config  *config.Config
	Logger  *slog.Logger
	DB      *sql.DB
	Dialect db.Dialect
	Engine  engine.Engine

	dispatcher *notify.Dispatcher
	redis      *redis.Client
	shutdown   func(context.Context) error
}

// Bootstrap loads config, opens and migrates the store and wires the
// engine. On failure everything acquired so far is released.
func Bootstrap(ctx context.Context, opts Options) (rt *Runtime, err error) {
	cfg, err := config.LoadOptional(opts.Workspace)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	opts.Overrides.apply(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	w := opts.LogWriter
	if w == nil {
		w = os.Stderr
	}
	logger := observability.NewLogger(w, cfg.Log.Level, cfg.Log.Format)

	rt = &Runtime{Config: cfg, Logger: logger}
	defer func() {
		if err != nil {
			rt.Close(context.WithoutCancel(ctx))
			rt = nil
		}
	}()

	rt.shutdown, err = observability.InitTracing(ctx, "hireline", observability.TracingConfig{
		Exporter:    cfg.Tracing.Exporter,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
		Writer:      w,
	})
	if err != nil {
		return rt, fmt.Errorf("init tracing: %w", err)
	}
	rt.DB, rt.Dialect, err = db.Open(ctx, db.Config{
		Workspace:    opts.Workspace,
		Driver:       cfg.Database.Driver,
		DSN:          cfg.Database.DSN,
		MaxOpenConns: cfg.Database.MaxOpenConns,
		Logger:       logger,
	})
	if err != nil {
		return rt, fmt.Errorf("open database: %w", err)
	}
	if !opts.SkipMigrate {
		if err := migrate.Migrate(ctx, rt.DB, rt.Dialect); err != nil {
			return rt, fmt.Errorf("migrate: %w", err)
		}
	}

	eng := engine.New(rt.DB, rt.Dialect, cfg, logger)
	if cfg.Notifications.WebhookURL != "" {
		rt.dispatcher = notify.NewDispatcher(notify.Webhook{
			URL:     cfg.Notifications.WebhookURL,
			Secret:  cfg.Notifications.Secret,
			Timeout: cfg.Notifications.Timeout(),
		}, cfg.Notifications.QueueSize, cfg.Notifications.Workers, logger)
		eng.Notifier = rt.dispatcher
	}
	if cfg.Redis.URL != "" {
		guard, client, err := lock.Dial(ctx, cfg.Redis.URL)
		if err != nil {
			return rt, err
		}
		rt.redis = client
		eng.Locker = guard
	}
	rt.Engine = eng
	logger.Debug("runtime ready",
		slog.String("dialect", string(rt.Dialect)),
		slog.Bool("webhook", rt.dispatcher != nil),
		slog.Bool("redis_guard", rt.redis != nil))
	return rt, nil
}

// Close waits for background cascades, drains queued notifications and
// releases connections. Safe to call on a partially built runtime.
func (rt *Runtime) Close(ctx context.Context) error {
	if rt == nil {
		return nil
	}
	var errs []error
	if rt.Engine.Tasks != nil {
		rt.Engine.WaitBackground()
	}
	if rt.dispatcher != nil {
		if err := rt.dispatcher.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("drain notifications: %w", err))
		}
	}
	if rt.redis != nil {
		if err := rt.redis.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}
	if rt.DB != nil {
		if err := rt.DB.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close database: %w", err))
		}
	}
	if rt.shutdown != nil {
		if err := rt.shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown tracing: %w", err))
		}
	}
	return errors.Join(errs...)
}
