// Package bootstrap assembles the record store, the backup archive and the
// application services from configuration. The HTTP server and the fsctl
// command share it.
package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fieldservice/backend/internal/application/backup"
	financeapp "github.com/fieldservice/backend/internal/application/finance"
	inventoryapp "github.com/fieldservice/backend/internal/application/inventory"
	"github.com/fieldservice/backend/internal/domain/shared"
	"github.com/fieldservice/backend/internal/infrastructure/cache"
	"github.com/fieldservice/backend/internal/infrastructure/config"
	"github.com/fieldservice/backend/internal/infrastructure/logger"
	"github.com/fieldservice/backend/internal/infrastructure/migration"
	"github.com/fieldservice/backend/internal/infrastructure/notification"
	"github.com/fieldservice/backend/internal/infrastructure/persistence"
	"github.com/fieldservice/backend/internal/infrastructure/storage"
	"github.com/fieldservice/backend/internal/infrastructure/telemetry"
	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

// Container holds the wired application services
type Container struct {
	Store shared.RecordStore
	Scope shared.TransactionScope

	Installments *financeapp.InstallmentService
	Summary      *financeapp.FinancialSummaryService
	CashFlow     *financeapp.CashFlowService
	Expenses     *financeapp.ExpenseService
	Stock        *inventoryapp.StockLedgerService
	Backups      *backup.Service

	// Metrics is nil when metrics are disabled
	Metrics *telemetry.Registry
	// Tracer hands out no-op tracers unless tracing is enabled
	Tracer *telemetry.TracerProvider
	// Idempotency is nil unless http.idempotency_enabled is set
	Idempotency shared.IdempotencyStore
	Checks      map[string]func(ctx context.Context) error

	logger  *zap.Logger
	closers []func() error
}

// New wires every service on the backends selected by cfg. confirmer
// answers confirmations for requests that carry none of their own.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger, confirmer shared.Confirmer) (*Container, error) {
	c := &Container{
		Checks: make(map[string]func(ctx context.Context) error),
		logger: log,
	}
	if cfg.Metrics.Enabled {
		c.Metrics = telemetry.NewRegistry(cfg.Metrics.Namespace)
	}

	tracer, err := telemetry.NewTracerProvider(ctx, cfg.Tracing, cfg.App.Name, cfg.App.Version, log)
	if err != nil {
		return nil, err
	}
	c.Tracer = tracer
	c.closers = append(c.closers, func() error { return tracer.Shutdown(context.Background()) })

	if err := c.openStore(cfg); err != nil {
		_ = c.Close()
		return nil, err
	}
	if cfg.HTTP.IdempotencyEnabled && c.Idempotency == nil {
		store := cache.NewInMemoryIdempotencyStore(0)
		c.Idempotency = store
		c.closers = append(c.closers, store.Close)
	}
	archive, err := openArchive(ctx, cfg, log)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	notifier := notification.NewNotifier(log)
	c.Installments = financeapp.NewInstallmentService(c.Store, c.Scope, notifier, confirmer, log)
	c.Summary = financeapp.NewFinancialSummaryService(c.Store, c.Scope, notifier, log)
	c.CashFlow = financeapp.NewCashFlowService(c.Store, cfg.Finance.MaxForecastMonths, log)
	c.Expenses = financeapp.NewExpenseService(c.Store, c.Scope, notifier, log)
	c.Stock = inventoryapp.NewStockLedgerService(c.Store, c.Scope, notifier, log)
	c.Backups = backup.NewService(c.Store, c.Scope, archive, notifier, log)

	formatter, err := notification.NewCurrencyFormatter(cfg.Finance.Locale, cfg.Finance.Currency)
	if err != nil {
		log.Warn("Falling back to plain amounts in notifications", zap.Error(err))
	} else {
		c.Installments.SetFormatter(formatter)
		c.Summary.SetFormatter(formatter)
		c.Expenses.SetFormatter(formatter)
	}
	if c.Metrics != nil {
		observer := telemetry.NewFinanceMetrics(c.Metrics)
		c.Installments.SetObserver(observer)
		c.Summary.SetObserver(observer)
		c.Expenses.SetObserver(observer)
	}
	return c, nil
}

func (c *Container) openStore(cfg *config.Config) error {
	switch cfg.Store.Backend {
	case "memory":
		store := persistence.NewMemoryRecordStore()
		c.Store, c.Scope = store, persistence.NewMemoryTransactionScope(store)
		c.logger.Warn("Using the in-memory record store; data is lost on restart")

	case "redis":
		client, err := cache.NewRedisClient(cfg.Redis)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, client.Close)
		store := cache.NewRedisRecordStore(client, cfg.Redis.KeyPrefix)
		c.Store, c.Scope = store, cache.NewRedisTransactionScope(store)
		c.Checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
		if cfg.HTTP.IdempotencyEnabled {
			c.Idempotency = cache.NewRedisIdempotencyStore(client, cfg.Redis.KeyPrefix)
		}
		c.logger.Info("Record store on Redis", zap.String("addr", cfg.Redis.Addr()))

	default:
		gormLog := logger.NewGormLogger(c.logger, cfg.Log.Level, logger.DefaultSlowQuery)
		db, err := persistence.NewDatabase(&cfg.Database, gormLog)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, db.Close)
		if err := migrate(db, &cfg.Database, c.logger); err != nil {
			return err
		}
		if c.Tracer.Enabled() {
			if err := telemetry.InstrumentGorm(db.DB, c.Tracer.Provider()); err != nil {
				return err
			}
		}
		c.Store, c.Scope = persistence.NewGormRecordStore(db.DB), persistence.NewGormTransactionScope(db.DB)
		c.Checks["database"] = db.Ping
		if c.Metrics != nil {
			sqlDB, err := db.SQL()
			if err != nil {
				return err
			}
			if err := c.Metrics.RegisterDB(sqlDB, cfg.Database.DBName); err != nil {
				return fmt.Errorf("register database metrics: %w", err)
			}
		}
		c.logger.Info("Record store on database", zap.String("driver", cfg.Database.Driver))
	}
	return nil
}

// migrate brings the record table up to date. Postgres runs the embedded
// SQL migrations on a dedicated connection; SQLite is created by GORM.
func migrate(db *persistence.Database, cfg *config.DatabaseConfig, log *zap.Logger) error {
	if cfg.Driver == persistence.DriverSQLite {
		return db.AutoMigrate()
	}
	sqlDB, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	m, err := migration.New(sqlDB, log)
	if err != nil {
		_ = sqlDB.Close()
		return err
	}
	defer func() {
		if err := m.Close(); err != nil {
			log.Warn("Failed to close migrator", zap.Error(err))
		}
	}()
	return m.Up()
}

func openArchive(ctx context.Context, cfg *config.Config, log *zap.Logger) (backup.ArchiveStore, error) {
	switch cfg.Storage.Backend {
	case "s3":
		return storage.NewS3ArchiveStore(ctx, &cfg.Storage, log)
	case "local":
		return storage.NewLocalArchiveStore(cfg.Storage.LocalDir)
	default:
		return nil, nil
	}
}

// Close releases the store connections
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i]())
	}
	c.closers = nil
	return errors.Join(errs...)
}
