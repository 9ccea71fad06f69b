package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/kubeshop-orders/internal/domain"
	"github.com/vladislavdragonenkov/kubeshop-orders/internal/service/idempotency"
	"github.com/vladislavdragonenkov/kubeshop-orders/internal/storage/memory"
	"github.com/vladislavdragonenkov/kubeshop-orders/internal/storage/postgres"
	redisstore "github.com/vladislavdragonenkov/kubeshop-orders/internal/storage/redis"
	"github.com/vladislavdragonenkov/kubeshop-orders/internal/version"
)

// storageDeps — хранилища, выбранные конфигурацией.
type storageDeps struct {
	orders          domain.OrderRepository
	idempotencyRepo domain.IdempotencyRepository
	// expired не nil только для хранилищ без собственного TTL.
	expired idempotency.ExpiredDeleter

	store *postgres.Store
	redis *goredis.Client
}

func (d *storageDeps) close(logger *log.Entry) {
	if d == nil {
		return
	}
	if d.redis != nil {
		if err := d.redis.Close(); err != nil {
			logger.WithError(err).Warn("failed to close redis client")
		}
	}
	if d.store != nil {
		if err := d.store.Close(); err != nil {
			logger.WithError(err).Warn("failed to close postgres store")
		}
	}
}

// initStorage открывает хранилище заказов и хранилище idempotency-ключей.
func initStorage(ctx context.Context, cfg Config, logger *log.Entry) (*storageDeps, error) {
	deps := &storageDeps{}

	switch strings.ToLower(strings.TrimSpace(cfg.StorageDriver)) {
	case "", StorageDriverMemory:
		deps.orders = memory.NewOrderRepository()
		logger.Info("order store: memory")
	case StorageDriverPostgres:
		if strings.TrimSpace(cfg.PostgresDSN) == "" {
			return nil, errors.New("postgres storage requires ORDERS_POSTGRES_DSN or DATABASE_URL")
		}
		store, err := postgres.Open(ctx, cfg.PostgresDSN, postgres.DefaultPoolConfig(),
			logger.WithField("component", "postgres"))
		if err != nil {
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		deps.store = store
		if cfg.PostgresAutoMigrate {
			if err := store.MigrateUp(ctx, 0); err != nil {
				deps.close(logger)
				return nil, fmt.Errorf("auto-migrate postgres: %w", err)
			}
			logger.Info("postgres migrations applied")
		}
		deps.orders = postgres.NewOrderRepository(store)
		logger.Info("order store: postgres")
	default:
		return nil, fmt.Errorf("unsupported storage driver %q", cfg.StorageDriver)
	}

	if err := initIdempotencyStore(cfg, deps, logger); err != nil {
		deps.close(logger)
		return nil, err
	}
	return deps, nil
}

func initIdempotencyStore(cfg Config, deps *storageDeps, logger *log.Entry) error {
	backend := cfg.ResolvedIdempotencyBackend()
	switch backend {
	case IdempotencyBackendMemory:
		repo := memory.NewIdempotencyRepository()
		deps.idempotencyRepo = repo
		deps.expired = repo
	case IdempotencyBackendRedis:
		if cfg.RedisAddr == "" {
			return errors.New("redis idempotency backend requires REDIS_ADDR")
		}
		deps.redis = redisstore.NewClient(cfg.RedisAddr)
		deps.idempotencyRepo = redisstore.NewIdempotencyRepository(deps.redis, version.Service)
	case IdempotencyBackendPostgres:
		if deps.store == nil {
			return errors.New("postgres idempotency backend requires postgres storage driver")
		}
		repo := postgres.NewIdempotencyRepository(deps.store)
		deps.idempotencyRepo = repo
		deps.expired = repo
	default:
		return fmt.Errorf("unsupported idempotency backend %q", backend)
	}
	logger.WithField("backend", backend).Info("idempotency store initialized")
	return nil
}
