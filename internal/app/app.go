// Package app wires configuration into the running services shared by the binaries.
package app

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/timmy/dropcart/internal/api/handler"
	"github.com/timmy/dropcart/internal/catalog"
	"github.com/timmy/dropcart/internal/catalog/filecatalog"
	"github.com/timmy/dropcart/internal/catalog/httpcatalog"
	"github.com/timmy/dropcart/internal/config"
	"github.com/timmy/dropcart/internal/events"
	"github.com/timmy/dropcart/internal/lock"
	"github.com/timmy/dropcart/internal/logger"
	"github.com/timmy/dropcart/internal/pricing"
	"github.com/timmy/dropcart/internal/repository"
	"github.com/timmy/dropcart/internal/service"
	"github.com/timmy/dropcart/internal/storage"
)

const lockPrefix = "dropcart:lock:"

// App holds the wired services. Close releases every connection it opened.
type App struct {
	DB       *gorm.DB
	Jobs     *repository.JobRepository
	Rules    *repository.PricingRuleRepository
	Catalog  catalog.Catalog
	Pricing  *pricing.Engine
	Engine   *service.JobEngine
	Resolver *service.FulfillmentResolver
	Checks   map[string]handler.Pinger

	closers []func() error
}

// New builds the application from cfg.
// Parameters:
//   - ctx: used for startup checks such as ensuring the export bucket.
//   - cfg: loaded configuration.
//   - log: base logger handed to every service.
// Returns:
//   - *App: wired services.
//   - error: non-nil if a required backend cannot be reached.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	db, err := repository.InitDB(&cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a := &App{
		DB:     db,
		Jobs:   repository.NewJobRepository(db),
		Rules:  repository.NewPricingRuleRepository(db),
		Checks: map[string]handler.Pinger{},
	}
	a.closers = append(a.closers, func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	a.Checks["database"] = func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}

	a.Catalog = newCatalog(cfg.Catalog)
	a.Pricing = NewPricingEngine(cfg.Pricing)

	var locker lock.Locker = lock.NewLocalLocker()
	if cfg.Redis.Enabled {
		client := lock.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		redisLocker := lock.NewRedisLocker(client, lockPrefix)
		if err := redisLocker.Ping(ctx); err != nil {
			_ = redisLocker.Close()
			_ = a.Close()
			return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.Redis.Addr, err)
		}
		locker = redisLocker
		a.Checks["redis"] = redisLocker.Ping
		a.closers = append(a.closers, redisLocker.Close)
	}

	var publisher events.Publisher = events.NopPublisher{}
	if cfg.Kafka.Enabled {
		publisher = events.NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		log.WithFields(logger.Fields{
			"brokers": cfg.Kafka.Brokers,
			"topic":   cfg.Kafka.Topic,
		}).Info("Publishing job events to Kafka")
	}
	a.closers = append(a.closers, publisher.Close)

	var exporter *service.Exporter
	if cfg.Jobs.ExportResults {
		objectStorage, err := newObjectStorage(ctx, cfg.Storage)
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		exporter = service.NewExporter(a.Jobs, objectStorage)
	}

	a.Engine = service.NewJobEngine(a.Jobs, a.Rules, a.Catalog, a.Pricing, locker, publisher, exporter, log, &service.EngineConfig{
		PageSize:          cfg.Jobs.PageSize,
		MaxPagesPerUnit:   cfg.Jobs.MaxPagesPerUnit,
		MaxSteps:          cfg.Jobs.MaxSteps,
		DetailConcurrency: cfg.Catalog.DetailConcurrency,
		LockTTL:           cfg.Jobs.LockTTL,
	})
	a.Resolver = service.NewFulfillmentResolver(a.Catalog, log)
	return a, nil
}

// NewPricingEngine builds a pricing engine from configuration; zero values keep the built-ins.
func NewPricingEngine(cfg config.PricingConfig) *pricing.Engine {
	e := pricing.DefaultEngine()
	if cfg.ExchangeRate > 0 {
		e.ExchangeRate = cfg.ExchangeRate
	}
	if cfg.DefaultShipping > 0 {
		e.DefaultShipping = cfg.DefaultShipping
	}
	if cfg.ShippingBaseFee > 0 {
		e.Shipping.BaseFee = cfg.ShippingBaseFee
	}
	if cfg.ShippingPerKg > 0 {
		e.Shipping.PerKg = cfg.ShippingPerKg
	}
	if cfg.VolumetricDivisor > 0 {
		e.Shipping.VolumetricDivisor = cfg.VolumetricDivisor
	}
	return e
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func newCatalog(cfg config.CatalogConfig) catalog.Catalog {
	if cfg.Driver == "http" {
		return httpcatalog.New(httpcatalog.Options{
			BaseURL:  cfg.BaseURL,
			APIKey:   cfg.APIKey,
			Currency: cfg.Currency,
			Timeout:  cfg.Timeout,
			Limiter:  httpcatalog.NewLimiter(cfg.RequestsPerMinute, cfg.Burst),
		})
	}
	return filecatalog.New(cfg.ManifestPath)
}

// newObjectStorage returns the S3 backend when enabled, otherwise an in-memory store
// whose exports live only as long as the process.
func newObjectStorage(ctx context.Context, cfg config.StorageConfig) (storage.ObjectStorage, error) {
	if !cfg.Enabled {
		logger.Warn("Storage disabled; job exports are kept in memory only")
		return storage.NewMemoryStorage(), nil
	}
	s3, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := s3.EnsureBucket(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure bucket %s: %w", cfg.Bucket, err)
	}
	return s3, nil
}
