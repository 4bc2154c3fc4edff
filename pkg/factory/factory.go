package factory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"

	"pointflow/internal/api"
	"pointflow/internal/concurrent"
	"pointflow/internal/config"
	"pointflow/internal/database"
	"pointflow/internal/domain"
	"pointflow/internal/repository"
	"pointflow/internal/service"
	"pointflow/pkg/cache"
	"pointflow/pkg/circuitbreaker"
	"pointflow/pkg/logger"
)

type Factory interface {
	GetLogger() logger.Logger
	GetConfig() *config.Config
	GetDB() *sql.DB
	GetRedisClient() *redis.Client
	GetCacheManager() *cache.Manager
	GetLockManager() *concurrent.LockManager

	GetUserPointRepository() domain.UserPointRepository
	GetPointHistoryRepository() domain.PointHistoryRepository

	GetPointService() domain.PointService
	GetBatchService() domain.BatchService

	HealthChecks() []api.HealthCheck
	Close() error
}

type AppFactory struct {
	config       *config.Config
	logger       logger.Logger
	db           *sql.DB
	redisClient  *redis.Client
	cacheManager *cache.Manager
	lockManager  *concurrent.LockManager

	userPointRepository    domain.UserPointRepository
	pointHistoryRepository domain.PointHistoryRepository

	pointService domain.PointService
	batchService domain.BatchService
}

// NewFactory wires every component from cfg. The returned factory owns the
// database connection, the Redis client and the batch worker pool; Close
// releases them.
func NewFactory(ctx context.Context, cfg *config.Config, log logger.Logger) (Factory, error) {
	f := &AppFactory{
		config:      cfg,
		logger:      log,
		lockManager: concurrent.NewLockManager(),
	}

	if err := f.initRepositories(ctx); err != nil {
		return nil, err
	}

	if err := f.initCache(ctx); err != nil {
		f.Close()
		return nil, err
	}

	f.initServices()

	return f, nil
}

func (f *AppFactory) initRepositories(ctx context.Context) error {
	requireExisting := f.config.Point.RequireExistingUser

	if f.config.Database.Driver == config.StorageMemory {
		f.userPointRepository = repository.NewMemoryUserPointRepository(requireExisting)
		f.pointHistoryRepository = repository.NewMemoryPointHistoryRepository()
		f.logger.Info("Using in-memory point stores", map[string]interface{}{})
		return nil
	}

	db, dialect, err := database.Open(ctx, f.config.Database, f.logger)
	if err != nil {
		return err
	}

	if err := database.NewMigrationService(db, dialect, f.logger).RunMigrations(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	f.db = db
	f.userPointRepository = repository.NewUserPointRepository(db, f.logger, requireExisting)
	f.pointHistoryRepository = repository.NewPointHistoryRepository(db, f.logger)

	return nil
}

func (f *AppFactory) initCache(ctx context.Context) error {
	if !f.config.Redis.Enabled {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     f.config.Redis.Addr(),
		Password: f.config.Redis.Password,
		DB:       f.config.Redis.DB,
	})

	policy := backoff.NewExponentialBackOff()
	policy.MaxElapsedTime = 10 * time.Second

	ping := func() error {
		return client.Ping(ctx).Err()
	}
	notify := func(err error, wait time.Duration) {
		f.logger.Warn("Redis not reachable, retrying", map[string]interface{}{
			"addr":  f.config.Redis.Addr(),
			"error": err.Error(),
			"wait":  wait.String(),
		})
	}

	if err := backoff.RetryNotify(ping, backoff.WithContext(policy, ctx), notify); err != nil {
		client.Close()
		return fmt.Errorf("failed to connect to redis: %w", err)
	}

	breaker := circuitbreaker.New(circuitbreaker.Settings{
		Name:        "redis",
		MaxFailures: 5,
		OpenTimeout: 30 * time.Second,
		OnStateChange: func(name string, from, to circuitbreaker.State) {
			f.logger.Warn("Circuit breaker state changed", map[string]interface{}{
				"name": name,
				"from": from.String(),
				"to":   to.String(),
			})
		},
	})

	f.redisClient = client
	f.cacheManager = cache.NewManager(cache.NewRedisCache(client, f.logger, "pointflow"), breaker, f.logger)

	f.logger.Info("Redis cache enabled", map[string]interface{}{
		"addr": f.config.Redis.Addr(),
		"ttl":  f.config.Redis.CacheTTL.String(),
	})

	return nil
}

func (f *AppFactory) initServices() {
	var points domain.PointService = service.NewPointService(
		f.userPointRepository,
		f.pointHistoryRepository,
		f.lockManager,
		f.config.Point.LockTimeout,
		f.logger,
	)

	if f.cacheManager != nil {
		points = service.NewCachedPointService(points, f.cacheManager, f.config.Redis.CacheTTL)
	}
	f.pointService = points

	f.batchService = service.NewBatchService(points, f.config.Worker.Count, f.config.Worker.QueueSize, f.logger)
}

// HealthChecks lists the dependencies reported by the health endpoint. The
// cache is optional: losing it only degrades the service.
func (f *AppFactory) HealthChecks() []api.HealthCheck {
	checks := []api.HealthCheck{
		{Name: "point_store", Pinger: f.userPointRepository, Critical: true},
		{Name: "history_store", Pinger: f.pointHistoryRepository, Critical: true},
	}

	if f.cacheManager != nil {
		checks = append(checks, api.HealthCheck{Name: "cache", Pinger: f.cacheManager})
	}

	return checks
}

// Close stops the batch workers and then releases connections.
func (f *AppFactory) Close() error {
	if f.batchService != nil {
		f.batchService.Shutdown()
	}

	var errs []error
	if f.redisClient != nil {
		if err := f.redisClient.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close redis client: %w", err))
		}
	}
	if f.db != nil {
		if err := f.db.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close database: %w", err))
		}
	}

	return errors.Join(errs...)
}

func (f *AppFactory) GetLogger() logger.Logger {
	return f.logger
}

func (f *AppFactory) GetConfig() *config.Config {
	return f.config
}

func (f *AppFactory) GetDB() *sql.DB {
	return f.db
}

func (f *AppFactory) GetRedisClient() *redis.Client {
	return f.redisClient
}

func (f *AppFactory) GetCacheManager() *cache.Manager {
	return f.cacheManager
}

func (f *AppFactory) GetLockManager() *concurrent.LockManager {
	return f.lockManager
}

func (f *AppFactory) GetUserPointRepository() domain.UserPointRepository {
	return f.userPointRepository
}

func (f *AppFactory) GetPointHistoryRepository() domain.PointHistoryRepository {
	return f.pointHistoryRepository
}

func (f *AppFactory) GetPointService() domain.PointService {
	return f.pointService
}

func (f *AppFactory) GetBatchService() domain.BatchService {
	return f.batchService
}
