package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	log "github.com/sirupsen/logrus"
)

const (
	defaultConnTimeout = 5 * time.Second
	// opTimeout ограничивает одну операцию репозитория, если у ctx нет дедлайна.
	opTimeout = 5 * time.Second
)

var errStoreNotInitialized = errors.New("postgres store is not initialized")

// PoolConfig задаёт параметры пула соединений.
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultPoolConfig — параметры пула для одного экземпляра сервиса заказов.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		MaxOpenConns:    20,
		MaxIdleConns:    10,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
	}
}

// Store владеет пулом соединений с PostgreSQL, на котором работают репозитории
// заказов и idempotency-ключей.
type Store struct {
	db     *sql.DB
	logger *log.Entry
}

// Open открывает пул через pgx и проверяет, что база отвечает.
func Open(ctx context.Context, dsn string, pool PoolConfig, logger *log.Entry) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres connection: %w", err)
	}
	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)
	db.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	store := NewStore(db, logger)
	if err := store.Ping(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	store.logger.WithField("max_open_conns", pool.MaxOpenConns).Info("postgres store opened")

	return store, nil
}

// NewStore оборачивает готовый *sql.DB (например, sqlmock в тестах).
func NewStore(db *sql.DB, logger *log.Entry) *Store {
	if logger == nil {
		logger = log.New().WithField("component", "postgres-store")
	}
	return &Store{db: db, logger: logger}
}

// DB возвращает пул соединений.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Ping проверяет доступность базы. Используется как preflight перед списанием денег.
func (s *Store) Ping(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errStoreNotInitialized
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultConnTimeout)
	defer cancel()
	return s.db.PingContext(pingCtx)
}

// Close закрывает пул соединений.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// withOpTimeout добавляет дедлайн, только если вызывающий его не задал.
func withOpTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, ok := ctx.Deadline(); ok {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, opTimeout)
}
