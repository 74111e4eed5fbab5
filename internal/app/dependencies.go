package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/Leonardofps/gomarketplace/internal/domain"
	healthcheck "github.com/Leonardofps/gomarketplace/internal/health"
	"github.com/Leonardofps/gomarketplace/internal/metrics"
	"github.com/Leonardofps/gomarketplace/internal/storage/instrumented"
	"github.com/Leonardofps/gomarketplace/internal/storage/memory"
	"github.com/Leonardofps/gomarketplace/internal/storage/postgres"
	"github.com/Leonardofps/gomarketplace/internal/storage/redis"
	"github.com/Leonardofps/gomarketplace/internal/storage/sqlite"
)

// runtimeDependencies — хранилище снимка, выбранное конфигурацией, и его обвязка.
type runtimeDependencies struct {
	kv             *instrumented.KV
	backend        StorageDriver
	storageChecker healthcheck.Checker
	closeFn        func() error
}

// initRuntimeDependencies открывает backend, заданный cfg.StorageDriver, и оборачивает его метриками и трассировкой.
func initRuntimeDependencies(ctx context.Context, cfg Config, logger *log.Entry) (*runtimeDependencies, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	raw, closeFn, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	kv := instrumented.Wrap(raw, string(cfg.StorageDriver),
		instrumented.WithMetrics(metrics.NewStorageMetrics()),
	)
	logger.WithField("storage_driver", cfg.StorageDriver).Info("key-value storage initialized")

	return &runtimeDependencies{
		kv:             kv,
		backend:        cfg.StorageDriver,
		storageChecker: healthcheck.NewPingChecker("storage", kv),
		closeFn:        closeFn,
	}, nil
}

func openStorage(ctx context.Context, cfg Config, logger *log.Entry) (domain.KeyValueStore, func() error, error) {
	noopClose := func() error { return nil }

	switch cfg.StorageDriver {
	case "", StorageDriverMemory:
		return memory.NewKVStore(), noopClose, nil

	case StorageDriverRedis:
		addr := strings.TrimSpace(cfg.RedisAddr)
		if addr == "" {
			return nil, nil, errors.New("redis storage driver requires CART_REDIS_ADDR")
		}
		store, err := redis.Open(ctx, addr, logger.WithField("storage", "redis"))
		if err != nil {
			return nil, nil, fmt.Errorf("init redis storage: %w", err)
		}
		return store, store.Close, nil

	case StorageDriverPostgres:
		dsn := strings.TrimSpace(cfg.PostgresDSN)
		if dsn == "" {
			return nil, nil, errors.New("postgres storage driver requires CART_POSTGRES_DSN")
		}
		store, err := postgres.Open(ctx, dsn)
		if err != nil {
			return nil, nil, fmt.Errorf("init postgres storage: %w", err)
		}
		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				_ = store.Close()
				return nil, nil, fmt.Errorf("apply postgres migrations: %w", err)
			}
			logger.Info("postgres migrations applied")
		}
		return store, store.Close, nil

	case StorageDriverSQLite:
		path := strings.TrimSpace(cfg.SQLitePath)
		if path == "" {
			return nil, nil, errors.New("sqlite storage driver requires CART_SQLITE_PATH")
		}
		store, err := sqlite.Open(ctx, path)
		if err != nil {
			return nil, nil, fmt.Errorf("init sqlite storage: %w", err)
		}
		return store, store.Close, nil

	default:
		return nil, nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}
}
