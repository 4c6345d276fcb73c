package runtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/hashicorp/go-multierror"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	app "github.com/domu-platform/domu/internal/app"
	"github.com/domu-platform/domu/internal/app/httpapi"
	"github.com/domu-platform/domu/internal/app/storage/postgres"
	"github.com/domu-platform/domu/internal/config"
	"github.com/domu-platform/domu/internal/platform/filestore"
	"github.com/domu-platform/domu/internal/platform/mailer"
	"github.com/domu-platform/domu/internal/platform/migrations"
	"github.com/domu-platform/domu/pkg/logger"
)

// Version is stamped at build time.
var Version = "dev"

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg    *config.Config
	log    *logger.Logger
	app    *app.Application
	server *http.Server
	db     *sqlx.DB
	redis  *redis.Client
	files  filestore.Store
	cancel context.CancelFunc
}

// NewApplication loads configuration from the environment and builds the
// application.
func NewApplication(ctx context.Context) (*Application, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return New(ctx, cfg, NewLogger(cfg.Logging))
}

// NewLogger builds the process logger from configuration.
func NewLogger(cfg config.LoggingConfig) *logger.Logger {
	return logger.New(logger.LoggingConfig{
		Level:      cfg.Level,
		Format:     cfg.Format,
		Output:     cfg.Output,
		FilePrefix: cfg.FilePrefix,
	})
}

// New builds the application from an explicit configuration. An empty
// database DSN runs on the in-memory store.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("runtime")
	}
	a := &Application{cfg: cfg, log: log}

	stores := app.Stores{}
	if cfg.Database.DSN != "" {
		db, err := OpenDatabase(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		a.db = db
		if cfg.Database.AutoMigrate {
			if err := migrations.Apply(ctx, db.DB); err != nil {
				a.closeResources()
				return nil, fmt.Errorf("migrate: %w", err)
			}
			log.Info("database migrations applied")
		}
		pg := postgres.New(db)
		stores = app.Stores{
			Users: pg, Tokens: pg, Buildings: pg, Units: pg,
			Finance: pg, Visits: pg, Incidents: pg, Parcels: pg,
			Polls: pg, Amenities: pg, Chat: pg, Forum: pg,
			Staff: pg, Tasks: pg, Library: pg,
		}
	} else {
		log.Warn("no database configured, using the in-memory store")
	}

	files, err := filestore.New(ctx, cfg)
	if err != nil {
		a.closeResources()
		return nil, fmt.Errorf("file store: %w", err)
	}
	a.files = files

	if cfg.Redis.Addr != "" {
		a.redis = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := a.redis.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			a.closeResources()
			return nil, fmt.Errorf("redis ping: %w", err)
		}
	}

	application, err := app.New(stores, app.Dependencies{
		Config: cfg,
		Files:  files,
		Mailer: mailer.New(cfg.Mail, log),
		Redis:  a.redis,
	}, log)
	if err != nil {
		a.closeResources()
		return nil, err
	}
	a.app = application

	handlerCtx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	opts := httpapi.Options{Context: handlerCtx, Log: log, Version: Version}
	if a.db != nil {
		opts.DB = a.db
	}
	handler, err := httpapi.NewHandler(application, opts)
	if err != nil {
		a.closeResources()
		return nil, err
	}

	a.server = &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       time.Duration(cfg.Server.ReadTimeoutSec) * time.Second,
	}
	return a, nil
}

// Services exposes the domain services, mainly for tests and tooling.
func (a *Application) Services() *app.Application {
	return a.app
}

// Handler returns the HTTP handler.
func (a *Application) Handler() http.Handler {
	return a.server.Handler
}

// Run starts background services and the HTTP server and blocks until the
// context is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.server.Addr, err)
	}
	return a.Serve(ctx, ln)
}

// Serve runs the HTTP server on ln until ctx is done.
func (a *Application) Serve(ctx context.Context, ln net.Listener) error {
	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("addr", ln.Addr().String()).Info("HTTP server listening")
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully shuts down the HTTP server, background services and
// connections.
func (a *Application) Shutdown(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var result *multierror.Error
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, fmt.Errorf("http shutdown: %w", err))
	}
	if err := a.app.Stop(shutdownCtx); err != nil {
		result = multierror.Append(result, err)
	}
	if err := a.closeResources(); err != nil {
		result = multierror.Append(result, err)
	}
	a.log.Info("shutdown complete")
	return result.ErrorOrNil()
}

func (a *Application) closeResources() error {
	var result *multierror.Error
	if a.cancel != nil {
		a.cancel()
	}
	if a.files != nil {
		if err := a.files.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close file store: %w", err))
		}
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("close redis: %w", err))
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// OpenDatabase opens and pings a pooled connection.
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig) (*sqlx.DB, error) {
	if cfg.Driver == "" {
		return nil, fmt.Errorf("database driver not configured")
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn not configured")
	}

	db, err := sqlx.Open(cfg.Driver, cfg.DSN)
	if err != nil {
		return nil, err
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(time.Duration(cfg.ConnMaxLifetime) * time.Second)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}
