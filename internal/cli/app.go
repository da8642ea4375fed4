package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/aretw0/arbor"
	"github.com/aretw0/arbor/internal/config"
	"github.com/aretw0/arbor/internal/metrics"
	"github.com/aretw0/arbor/pkg/adapters/auth"
	"github.com/aretw0/arbor/pkg/adapters/badger"
	"github.com/aretw0/arbor/pkg/adapters/file"
	"github.com/aretw0/arbor/pkg/adapters/loam"
	"github.com/aretw0/arbor/pkg/adapters/memory"
	"github.com/aretw0/arbor/pkg/adapters/postgres"
	"github.com/aretw0/arbor/pkg/adapters/redis"
	"github.com/aretw0/arbor/pkg/adapters/simpro"
	"github.com/aretw0/arbor/pkg/autosave"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
	backend "github.com/redis/go-redis/v9"
)

// App is an arbor.Service wired from configuration, with the resources it owns.
type App struct {
	Config  config.Config
	Service *arbor.Service
	Metrics *metrics.Metrics
	// Auth is nil when no token secret is configured.
	Auth   *auth.Authenticator
	Logger *slog.Logger

	closers []func() error
}

// directory is a store that also keeps employees and organisations.
type directory interface {
	ports.EmployeeStore
	ports.OrganizationStore
}

// NewApp opens the configured backends and builds the service.
// The App must be closed to flush drafts and release connections.
func NewApp(ctx context.Context, cfg config.Config, logger *slog.Logger) (_ *App, err error) {
	app := &App{Config: cfg, Metrics: metrics.New(), Logger: logger}
	defer func() {
		if err != nil {
			_ = app.Close(context.Background())
		}
	}()

	store, dir, err := app.openStore(ctx)
	if err != nil {
		return nil, err
	}

	opts := []arbor.Option{
		arbor.WithLogger(logger),
		arbor.WithRestoreWindow(cfg.Forms.RestoreWindow.Std()),
		arbor.WithAvailabilityConcurrency(cfg.Availability.Concurrency),
		arbor.WithAutosave(
			autosave.WithDebounce(cfg.Autosave.Debounce.Std()),
			autosave.WithMaxRetries(cfg.Autosave.MaxRetries),
		),
		arbor.WithStoreObserver(app.Metrics),
		arbor.WithAvailabilityObserver(app.Metrics),
		arbor.WithSyncObserver(app.Metrics),
		arbor.WithSaveHooks(app.Metrics.SaveHooks(domain.SaveHooks{})),
	}
	if dir != nil {
		opts = append(opts, arbor.WithEmployeeStore(dir), arbor.WithOrganizationStore(dir))
	}

	locker, err := app.openLocker(store)
	if err != nil {
		return nil, err
	}
	if locker != nil {
		opts = append(opts, arbor.WithLocker(locker, cfg.Store.Redis.LockTTL.Std()))
	}

	catalog, err := openCatalog(cfg.Forms.TemplatesDir, logger)
	if err != nil {
		return nil, err
	}
	opts = append(opts, arbor.WithCatalog(catalog))

	if cfg.Provider.Enabled() {
		client, err := simpro.New(simpro.Config{
			BaseURL:           cfg.Provider.BaseURL,
			TokenURL:          cfg.Provider.TokenURL,
			ClientID:          cfg.Provider.ClientID,
			ClientSecret:      cfg.Provider.ClientSecret,
			RequestsPerSecond: cfg.Provider.RequestsPerSecond,
			MaxAttempts:       uint64(cfg.Provider.MaxAttempts),
			Timeout:           cfg.Provider.Timeout.Std(),
		}, simpro.WithObserver(app.Metrics), simpro.WithLogger(logger))
		if err != nil {
			return nil, fmt.Errorf("failed to create provider client: %w", err)
		}
		opts = append(opts, arbor.WithProvider(client))
	}

	if cfg.Auth.Secret != "" {
		var authOpts []auth.Option
		if cfg.Auth.Issuer != "" {
			authOpts = append(authOpts, auth.WithIssuer(cfg.Auth.Issuer))
		}
		if app.Auth, err = auth.New([]byte(cfg.Auth.Secret), authOpts...); err != nil {
			return nil, err
		}
	}

	if app.Service, err = arbor.New(store, opts...); err != nil {
		return nil, fmt.Errorf("error initializing service: %w", err)
	}
	for _, o := range cfg.Organizations {
		if err := app.Service.Organizations().SaveOrganization(ctx, o.Organization()); err != nil {
			return nil, fmt.Errorf("failed to save organization %s: %w", o.ID, err)
		}
	}
	return app, nil
}

// SyncedOrganizations lists the organisations whose employees the scheduler
// keeps in sync: the configured list, or every configured organisation.
func (a *App) SyncedOrganizations() []string {
	if len(a.Config.Schedule.Organizations) > 0 {
		return a.Config.Schedule.Organizations
	}
	ids := make([]string, 0, len(a.Config.Organizations))
	for _, o := range a.Config.Organizations {
		ids = append(ids, o.ID)
	}
	return ids
}

func (a *App) openStore(ctx context.Context) (ports.FormStore, directory, error) {
	cfg := a.Config.Store
	switch cfg.Backend {
	case config.BackendMemory:
		return memory.NewStore(), nil, nil
	case config.BackendFile:
		return file.New(cfg.File.Dir, file.WithLogger(a.Logger)), nil, nil
	case config.BackendRedis:
		s := redis.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, redis.WithPrefix(cfg.Redis.Prefix))
		a.closers = append(a.closers, s.Close)
		if err := s.Client().Ping(ctx).Err(); err != nil {
			return nil, nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
		}
		return s, nil, nil
	case config.BackendPostgres:
		s, err := postgres.Open(ctx, cfg.Postgres.DSN)
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, s, nil
	case config.BackendBadger:
		s, err := badger.Open(badger.Config{Path: cfg.Badger.Path, SyncWrites: cfg.Badger.SyncWrites, Logger: a.Logger})
		if err != nil {
			return nil, nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

// openLocker returns the Redis form lock when enabled, reusing the store's
// client when forms live in Redis too.
func (a *App) openLocker(store ports.FormStore) (ports.DistributedLocker, error) {
	cfg := a.Config.Store.Redis
	if !cfg.Lock {
		return nil, nil
	}
	if s, ok := store.(*redis.Store); ok {
		return redis.NewLocker(s.Client(), cfg.Prefix), nil
	}
	client := backend.NewClient(&backend.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	a.closers = append(a.closers, client.Close)
	return redis.NewLocker(client, cfg.Prefix), nil
}

// openCatalog reads templates from dir. A missing directory yields an empty catalogue.
func openCatalog(dir string, logger *slog.Logger) (ports.TemplateCatalog, error) {
	if dir != "" {
		if _, err := os.Stat(dir); err == nil {
			c, err := loam.Open(dir)
			if err != nil {
				return nil, fmt.Errorf("failed to open templates: %w", err)
			}
			return c, nil
		}
		logger.Warn("templates directory not found, catalogue is empty", "dir", dir)
	}
	return memory.NewCatalog()
}

// Close flushes open drafts and releases the backends.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	if a.Service != nil {
		errs = append(errs, a.Service.Close(ctx))
	}
	errs = append(errs, a.closeResources())
	return errors.Join(errs...)
}

func (a *App) closeResources() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}
