package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"net/http"

	"github.com/redis/go-redis/v9"

	_ "github.com/graylogic/admin-console/migrations"

	"github.com/graylogic/admin-console/internal/backend"
	"github.com/graylogic/admin-console/internal/guard"
	"github.com/graylogic/admin-console/internal/infrastructure/config"
	"github.com/graylogic/admin-console/internal/infrastructure/database"
	"github.com/graylogic/admin-console/internal/infrastructure/logging"
	"github.com/graylogic/admin-console/internal/session"
	"github.com/graylogic/admin-console/internal/transport"
)

// app holds the collaborators every command shares.
type app struct {
	cfg         *config.Config
	log         *logging.Logger
	store       *session.Store
	interceptor *transport.Interceptor
	api         *backend.Client
	guard       *guard.Guard
	stderr      io.Writer

	// db is set for the sqlite driver.
	db *database.DB

	closers []func() error
}

// setup loads configuration and wires storage, the session store, the
// refresh-aware HTTP client and the backend client. The session is hydrated
// from storage before returning.
func setup(ctx context.Context, configPath string, stderr io.Writer) (*app, error) {
	path := config.ResolvePath(configPath)
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	log := logging.New(cfg.Logging, version)
	log.Debug("configuration loaded", "path", path)

	a := &app{cfg: cfg, log: log, stderr: stderr}

	storage, err := a.openStorage(ctx)
	if err != nil {
		a.close()
		return nil, err
	}

	a.store = session.NewStore(storage)
	a.store.SetLogger(log)
	a.store.InitializeAuth()

	timeout := cfg.GetBackendTimeout()

	// The refresher bypasses the interceptor.
	refresher, err := backend.New(backend.Config{
		BaseURL:     cfg.Backend.BaseURL,
		HTTPClient:  &http.Client{Timeout: timeout},
		RefreshPath: cfg.Backend.RefreshPath,
	})
	if err != nil {
		a.close()
		return nil, err
	}

	a.interceptor, err = transport.New(transport.Config{
		Store:     a.store,
		Refresher: refresher,
		Navigator: transport.NavigatorFunc(a.redirectToLogin),
		Coalesce:  cfg.Session.CoalesceRefresh,
		Logger:    log,
	})
	if err != nil {
		a.close()
		return nil, err
	}

	a.api, err = backend.New(backend.Config{
		BaseURL:      cfg.Backend.BaseURL,
		HTTPClient:   a.interceptor.Client(timeout),
		Store:        a.store,
		LoginPath:    cfg.Backend.LoginPath,
		RegisterPath: cfg.Backend.RegisterPath,
		RefreshPath:  cfg.Backend.RefreshPath,
		MePath:       cfg.Backend.MePath,
	})
	if err != nil {
		a.close()
		return nil, err
	}

	a.guard = guard.New(a.store, a.api)
	a.guard.SetLogger(log)
	return a, nil
}

// openStorage builds the configured durable storage, sealed when an
// encryption key is set.
func (a *app) openStorage(ctx context.Context) (session.Storage, error) {
	cfg := a.cfg.Storage

	var storage session.Storage
	switch cfg.Driver {
	case config.DriverMemory:
		storage = session.NewMemoryStorage()

	case config.DriverSQLite:
		db, err := database.Open(database.Config{
			Path:        cfg.Path,
			WALMode:     cfg.WALMode,
			BusyTimeout: cfg.BusyTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("opening session database: %w", err)
		}
		a.closers = append(a.closers, db.Close)
		a.db = db
		if err := db.Migrate(ctx); err != nil {
			return nil, fmt.Errorf("running migrations: %w", err)
		}
		storage = session.NewSQLiteStorage(db.DB)

	case config.DriverRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		a.closers = append(a.closers, client.Close)
		storage = session.NewRedisStorage(client, cfg.Redis.Prefix)

	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
	}

	if cfg.EncryptionKey != "" {
		sealed, err := session.NewSealedStorage(storage, cfg.EncryptionKey)
		if err != nil {
			return nil, err
		}
		storage = sealed
	}

	a.log.Debug("session storage ready", "driver", cfg.Driver, "sealed", cfg.EncryptionKey != "")
	return storage, nil
}

// redirectToLogin is the CLI's navigation to the login entry point.
func (a *app) redirectToLogin() {
	fmt.Fprintf(a.stderr, "Session expired. Sign in again with `console login` or `console oauth` (%s).\n", a.cfg.Session.LoginURL)
}

// close releases resources in reverse order of acquisition.
func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("closing resource", "error", err)
		}
	}
	a.closers = nil
}

// schemaVersion returns the newest applied migration, or "" without a
// database.
func (a *app) schemaVersion(ctx context.Context) (string, error) {
	if a.db == nil {
		return "", nil
	}
	versions, err := a.db.AppliedMigrations(ctx)
	if err != nil {
		return "", err
	}
	if len(versions) == 0 {
		return "", nil
	}
	return versions[len(versions)-1], nil
}

func newFlagSet(name string, output io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(output)
	return fs
}
