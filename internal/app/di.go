// Package app wires the application components together.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/allisson/directory/internal/config"
	"github.com/allisson/directory/internal/database"
	appHTTP "github.com/allisson/directory/internal/http"
	"github.com/allisson/directory/internal/metrics"
	"github.com/allisson/directory/internal/user/repository"
	"github.com/allisson/directory/internal/user/usecase"

	userHTTP "github.com/allisson/directory/internal/user/http"
)

// Container holds every application dependency and builds each one lazily,
// exactly once.
type Container struct {
	cfg *config.Config

	logger     *slog.Logger
	loggerOnce sync.Once

	db     *sql.DB
	dbOnce sync.Once
	dbErr  error

	txManager     database.TxManager
	txManagerOnce sync.Once

	userRepo     usecase.UserRepository
	userRepoOnce sync.Once
	userRepoErr  error

	metricsProvider     *metrics.Provider
	metricsProviderOnce sync.Once
	metricsProviderErr  error

	businessMetrics     metrics.BusinessMetrics
	businessMetricsOnce sync.Once
	businessMetricsErr  error

	userUseCase     usecase.UseCase
	userUseCaseOnce sync.Once
	userUseCaseErr  error

	userHandler     *userHTTP.UserHandler
	userHandlerOnce sync.Once
	userHandlerErr  error

	httpServer     *appHTTP.Server
	httpServerOnce sync.Once
	httpServerErr  error

	metricsServer     *appHTTP.MetricsServer
	metricsServerOnce sync.Once
	metricsServerErr  error
}

// NewContainer creates a new dependency injection container.
func NewContainer(cfg *config.Config) *Container {
	return &Container{cfg: cfg}
}

// Config returns the application configuration.
func (c *Container) Config() *config.Config {
	return c.cfg
}

// Logger returns a JSON slog logger configured with the application log level.
func (c *Container) Logger() *slog.Logger {
	c.loggerOnce.Do(func() {
		var level slog.Level
		switch c.cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		default:
			level = slog.LevelInfo
		}

		c.logger = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	})
	return c.logger
}

// DB returns the database connection pool.
func (c *Container) DB() (*sql.DB, error) {
	c.dbOnce.Do(func() {
		c.db, c.dbErr = database.Connect(database.Config{
			Driver:             c.cfg.DBDriver,
			ConnectionString:   c.cfg.DBConnectionString,
			MaxOpenConnections: c.cfg.DBMaxOpenConnections,
			MaxIdleConnections: c.cfg.DBMaxIdleConnections,
			ConnMaxLifetime:    c.cfg.DBConnMaxLifetime,
		})
	})
	return c.db, c.dbErr
}

// TxManager returns the transaction manager.
func (c *Container) TxManager() (database.TxManager, error) {
	db, err := c.DB()
	if err != nil {
		return nil, err
	}
	c.txManagerOnce.Do(func() {
		c.txManager = database.NewTxManager(db)
	})
	return c.txManager, nil
}

// UserRepository returns the user repository for the configured driver.
func (c *Container) UserRepository() (usecase.UserRepository, error) {
	c.userRepoOnce.Do(func() {
		db, err := c.DB()
		if err != nil {
			c.userRepoErr = err
			return
		}

		switch c.cfg.DBDriver {
		case "postgres":
			c.userRepo = repository.NewPostgreSQLUserRepository(db)
		case "mysql":
			c.userRepo = repository.NewMySQLUserRepository(db)
		default:
			c.userRepoErr = fmt.Errorf("unsupported database driver: %s", c.cfg.DBDriver)
		}
	})
	return c.userRepo, c.userRepoErr
}

// MetricsProvider returns the metrics provider, or nil when metrics are disabled.
func (c *Container) MetricsProvider() (*metrics.Provider, error) {
	c.metricsProviderOnce.Do(func() {
		if !c.cfg.MetricsEnabled {
			return
		}
		c.metricsProvider, c.metricsProviderErr = metrics.NewProvider(c.cfg.MetricsNamespace)
	})
	return c.metricsProvider, c.metricsProviderErr
}

// BusinessMetrics returns the business metrics recorder. A no-op recorder is
// used when metrics are disabled.
func (c *Container) BusinessMetrics() (metrics.BusinessMetrics, error) {
	c.businessMetricsOnce.Do(func() {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.businessMetricsErr = err
			return
		}
		if provider == nil {
			c.businessMetrics = metrics.NewNoOpBusinessMetrics()
			return
		}
		c.businessMetrics, c.businessMetricsErr = metrics.NewBusinessMetrics(
			provider.MeterProvider(),
			c.cfg.MetricsNamespace,
		)
	})
	return c.businessMetrics, c.businessMetricsErr
}

// UserUseCase returns the user use case decorated with business metrics.
func (c *Container) UserUseCase() (usecase.UseCase, error) {
	c.userUseCaseOnce.Do(func() {
		txManager, err := c.TxManager()
		if err != nil {
			c.userUseCaseErr = err
			return
		}
		userRepo, err := c.UserRepository()
		if err != nil {
			c.userUseCaseErr = err
			return
		}
		businessMetrics, err := c.BusinessMetrics()
		if err != nil {
			c.userUseCaseErr = err
			return
		}

		c.userUseCase = usecase.NewUserUseCaseWithMetrics(
			usecase.NewUserUseCase(txManager, userRepo),
			businessMetrics,
		)
	})
	return c.userUseCase, c.userUseCaseErr
}

// UserHandler returns the user HTTP handler.
func (c *Container) UserHandler() (*userHTTP.UserHandler, error) {
	c.userHandlerOnce.Do(func() {
		userUseCase, err := c.UserUseCase()
		if err != nil {
			c.userHandlerErr = err
			return
		}
		c.userHandler = userHTTP.NewUserHandler(userUseCase, c.Logger())
	})
	return c.userHandler, c.userHandlerErr
}

// HTTPServer returns the API HTTP server.
func (c *Container) HTTPServer() (*appHTTP.Server, error) {
	c.httpServerOnce.Do(func() {
		userHandler, err := c.UserHandler()
		if err != nil {
			c.httpServerErr = err
			return
		}
		db, err := c.DB()
		if err != nil {
			c.httpServerErr = err
			return
		}

		routerCfg := appHTTP.RouterConfig{
			Logger:                  c.Logger(),
			UserHandler:             userHandler,
			DBPing:                  db.Ping,
			CORSEnabled:             c.cfg.CORSEnabled,
			CORSAllowOrigins:        c.cfg.CORSAllowOrigins,
			RateLimitEnabled:        c.cfg.RateLimitEnabled,
			RateLimitRequestsPerSec: c.cfg.RateLimitRequestsPerSec,
			RateLimitBurst:          c.cfg.RateLimitBurst,
			MetricsNamespace:        c.cfg.MetricsNamespace,
		}

		provider, err := c.MetricsProvider()
		if err != nil {
			c.httpServerErr = err
			return
		}
		if provider != nil {
			routerCfg.MeterProvider = provider.MeterProvider()
		}

		router := appHTTP.NewRouter(routerCfg)
		c.httpServer = appHTTP.NewServer(c.cfg.ServerHost, c.cfg.ServerPort, c.Logger(), router)
	})
	return c.httpServer, c.httpServerErr
}

// MetricsServer returns the metrics HTTP server, or nil when metrics are disabled.
func (c *Container) MetricsServer() (*appHTTP.MetricsServer, error) {
	c.metricsServerOnce.Do(func() {
		provider, err := c.MetricsProvider()
		if err != nil {
			c.metricsServerErr = err
			return
		}
		if provider == nil {
			return
		}
		c.metricsServer = appHTTP.NewMetricsServer(
			c.cfg.ServerHost,
			c.cfg.MetricsPort,
			c.Logger(),
			provider,
		)
	})
	return c.metricsServer, c.metricsServerErr
}

// Shutdown releases every resource held by the container.
func (c *Container) Shutdown(ctx context.Context) error {
	var errs []error

	if c.metricsProvider != nil {
		if err := c.metricsProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("failed to shutdown metrics provider: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("container shutdown errors: %v", errs)
	}
	return nil
}
