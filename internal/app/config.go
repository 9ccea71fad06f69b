package app

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"

	IdempotencyBackendMemory   = "memory"
	IdempotencyBackendRedis    = "redis"
	IdempotencyBackendPostgres = "postgres"

	NotifyTransportHTTP  = "http"
	NotifyTransportKafka = "kafka"
)

// Переменные окружения сервиса.
const (
	EnvHTTPAddr                    = "ORDERS_HTTP_ADDR"
	EnvGRPCAddr                    = "ORDERS_GRPC_ADDR"
	EnvMetricsAddr                 = "ORDERS_METRICS_ADDR"
	EnvStorageDriver               = "ORDERS_STORAGE_DRIVER"
	EnvPostgresDSN                 = "ORDERS_POSTGRES_DSN"
	EnvDatabaseURL                 = "DATABASE_URL"
	EnvPostgresAutoMigrate         = "ORDERS_POSTGRES_AUTO_MIGRATE"
	EnvCartURL                     = "CART_SERVICE_URL"
	EnvCatalogURL                  = "CATALOG_SERVICE_URL"
	EnvPaymentURL                  = "PAYMENT_SERVICE_URL"
	EnvNotificationURL             = "NOTIFICATION_SERVICE_URL"
	EnvClientTimeout               = "ORDERS_CLIENT_TIMEOUT"
	EnvStepTimeout                 = "ORDERS_STEP_TIMEOUT"
	EnvReadRetries                 = "ORDERS_READ_RETRIES"
	EnvBreakerFailures             = "ORDERS_BREAKER_FAILURES"
	EnvBreakerReset                = "ORDERS_BREAKER_RESET"
	EnvKafkaBrokers                = "KAFKA_BROKERS"
	EnvNotifyTransport             = "ORDERS_NOTIFY_TRANSPORT"
	EnvRedisAddr                   = "REDIS_ADDR"
	EnvIdempotencyTTL              = "ORDERS_IDEMPOTENCY_TTL"
	EnvIdempotencyBackend          = "ORDERS_IDEMPOTENCY_BACKEND"
	EnvIdempotencyCleanupInterval  = "ORDERS_IDEMPOTENCY_CLEANUP_INTERVAL"
	EnvIdempotencyCleanupBatchSize = "ORDERS_IDEMPOTENCY_CLEANUP_BATCH_SIZE"
)

// Config описывает настройки запуска сервиса заказов.
type Config struct {
	HTTPAddr    string
	GRPCAddr    string
	MetricsAddr string

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool

	CartURL         string
	CatalogURL      string
	PaymentURL      string
	NotificationURL string

	ClientTimeout   time.Duration
	StepTimeout     time.Duration
	ReadRetries     int
	BreakerFailures int
	BreakerReset    time.Duration

	// KafkaBrokers — список брокеров через запятую; пусто отключает Kafka.
	KafkaBrokers    string
	NotifyTransport string
	RedisAddr       string

	IdempotencyTTL              time.Duration
	IdempotencyBackend          string
	IdempotencyCleanupInterval  time.Duration
	IdempotencyCleanupBatchSize int
}

// DefaultConfig возвращает настройки для локального запуска рядом с остальными сервисами магазина.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:                    ":8003",
		GRPCAddr:                    ":50051",
		MetricsAddr:                 ":9090",
		StorageDriver:               StorageDriverMemory,
		PostgresAutoMigrate:         true,
		CartURL:                     "http://localhost:8002",
		CatalogURL:                  "http://localhost:8001",
		PaymentURL:                  "http://localhost:8004",
		NotificationURL:             "http://localhost:8005",
		ClientTimeout:               5 * time.Second,
		StepTimeout:                 10 * time.Second,
		ReadRetries:                 2,
		BreakerFailures:             5,
		BreakerReset:                30 * time.Second,
		NotifyTransport:             NotifyTransportHTTP,
		IdempotencyTTL:              24 * time.Hour,
		IdempotencyCleanupInterval:  10 * time.Minute,
		IdempotencyCleanupBatchSize: 500,
	}
}

// EnvLookup совместим с os.LookupEnv.
type EnvLookup func(key string) (string, bool)

// LoadConfigFromEnv накладывает переменные окружения на DefaultConfig.
// Некорректные значения не применяются и возвращаются как предупреждения.
func LoadConfigFromEnv(lookup EnvLookup) (Config, []string) {
	cfg := DefaultConfig()
	var warnings []string
	warn := func(key, value string, err error) {
		warnings = append(warnings, fmt.Sprintf("invalid %s=%q: %v; using default", key, value, err))
	}

	setString := func(key string, dst *string) {
		if v, ok := lookupTrimmed(lookup, key); ok {
			*dst = v
		}
	}
	setDuration := func(key string, dst *time.Duration, valid func(time.Duration) bool, rule string) {
		v, ok := lookupTrimmed(lookup, key)
		if !ok {
			return
		}
		d, err := parseDuration(v, valid, rule)
		if err != nil {
			warn(key, v, err)
			return
		}
		*dst = d
	}
	setInt := func(key string, dst *int, valid func(int) bool, rule string) {
		v, ok := lookupTrimmed(lookup, key)
		if !ok {
			return
		}
		n, err := parseInt(v, valid, rule)
		if err != nil {
			warn(key, v, err)
			return
		}
		*dst = n
	}
	setChoice := func(key string, dst *string, allowed ...string) {
		v, ok := lookupTrimmed(lookup, key)
		if !ok {
			return
		}
		v = strings.ToLower(v)
		for _, a := range allowed {
			if v == a {
				*dst = v
				return
			}
		}
		warn(key, v, fmt.Errorf("must be one of %s", strings.Join(allowed, "|")))
	}

	positive := func(d time.Duration) bool { return d > 0 }

	setString(EnvHTTPAddr, &cfg.HTTPAddr)
	setString(EnvGRPCAddr, &cfg.GRPCAddr)
	setString(EnvMetricsAddr, &cfg.MetricsAddr)

	setChoice(EnvStorageDriver, &cfg.StorageDriver, StorageDriverMemory, StorageDriverPostgres)
	setString(EnvDatabaseURL, &cfg.PostgresDSN)
	setString(EnvPostgresDSN, &cfg.PostgresDSN)
	if v, ok := lookupTrimmed(lookup, EnvPostgresAutoMigrate); ok {
		b, err := parseBool(v)
		if err != nil {
			warn(EnvPostgresAutoMigrate, v, err)
		} else {
			cfg.PostgresAutoMigrate = b
		}
	}

	setString(EnvCartURL, &cfg.CartURL)
	setString(EnvCatalogURL, &cfg.CatalogURL)
	setString(EnvPaymentURL, &cfg.PaymentURL)
	setString(EnvNotificationURL, &cfg.NotificationURL)

	setDuration(EnvClientTimeout, &cfg.ClientTimeout, positive, "must be > 0")
	setDuration(EnvStepTimeout, &cfg.StepTimeout, positive, "must be > 0")
	setInt(EnvReadRetries, &cfg.ReadRetries, func(v int) bool { return v >= 0 }, "must be >= 0")
	setInt(EnvBreakerFailures, &cfg.BreakerFailures, func(v int) bool { return v > 0 }, "must be > 0")
	setDuration(EnvBreakerReset, &cfg.BreakerReset, positive, "must be > 0")

	setString(EnvKafkaBrokers, &cfg.KafkaBrokers)
	setChoice(EnvNotifyTransport, &cfg.NotifyTransport, NotifyTransportHTTP, NotifyTransportKafka)
	setString(EnvRedisAddr, &cfg.RedisAddr)

	setDuration(EnvIdempotencyTTL, &cfg.IdempotencyTTL, positive, "must be > 0")
	setChoice(EnvIdempotencyBackend, &cfg.IdempotencyBackend,
		IdempotencyBackendMemory, IdempotencyBackendRedis, IdempotencyBackendPostgres)
	setDuration(EnvIdempotencyCleanupInterval, &cfg.IdempotencyCleanupInterval, positive, "must be > 0")
	setInt(EnvIdempotencyCleanupBatchSize, &cfg.IdempotencyCleanupBatchSize, func(v int) bool { return v > 0 }, "must be > 0")

	return cfg, warnings
}

// KafkaBrokerList разбирает KafkaBrokers, отбрасывая пустые элементы.
func (c Config) KafkaBrokerList() []string {
	var brokers []string
	for _, b := range strings.Split(c.KafkaBrokers, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return brokers
}

// ResolvedIdempotencyBackend выбирает хранилище ключей, если оно не задано явно.
func (c Config) ResolvedIdempotencyBackend() string {
	switch {
	case c.IdempotencyBackend != "":
		return c.IdempotencyBackend
	case c.RedisAddr != "":
		return IdempotencyBackendRedis
	case c.StorageDriver == StorageDriverPostgres:
		return IdempotencyBackendPostgres
	default:
		return IdempotencyBackendMemory
	}
}

func lookupTrimmed(lookup EnvLookup, key string) (string, bool) {
	if lookup == nil {
		return "", false
	}
	v, ok := lookup(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("expected bool value")
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if valid != nil && !valid(v) {
		return 0, fmt.Errorf("%s", rule)
	}
	return v, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	v, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if valid != nil && !valid(v) {
		return 0, fmt.Errorf("%s", rule)
	}
	return v, nil
}
