package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/kubeshop-orders/internal/app"
	"github.com/vladislavdragonenkov/kubeshop-orders/internal/version"
)

const (
	envLogFormat = "ORDERS_LOG_FORMAT"
	envLogLevel  = "ORDERS_LOG_LEVEL"
)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(lookup app.EnvLookup) []string {
	var warnings []string

	format, _ := lookup(envLogFormat)
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		log.SetFormatter(&log.JSONFormatter{})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	}

	log.SetLevel(log.InfoLevel)
	if raw, ok := lookup(envLogLevel); ok && strings.TrimSpace(raw) != "" {
		level, err := log.ParseLevel(strings.TrimSpace(raw))
		if err != nil {
			warnings = append(warnings, "invalid "+envLogLevel+"="+raw+": using info")
		} else {
			log.SetLevel(level)
		}
	}
	return warnings
}

// loadDotEnv подхватывает .env, если он есть. Уже заданные переменные не перезаписываются.
func loadDotEnv(path string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return godotenv.Load(path)
}

func main() {
	dotEnvErr := loadDotEnv(".env")
	warnings := setupLogger(os.LookupEnv)
	if dotEnvErr != nil {
		log.WithError(dotEnvErr).Warn("failed to load .env")
	}

	cfg, cfgWarnings := app.LoadConfigFromEnv(os.LookupEnv)
	for _, w := range append(warnings, cfgWarnings...) {
		log.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"http_addr":     cfg.HTTPAddr,
		"grpc_addr":     cfg.GRPCAddr,
		"metrics_addr":  cfg.MetricsAddr,
		"storage":       cfg.StorageDriver,
		"idempotency":   cfg.ResolvedIdempotencyBackend(),
		"notify":        cfg.NotifyTransport,
		"kafka_enabled": cfg.KafkaBrokers != "",
		"build":         version.String(),
	}).Info("запускаем OrderService")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("OrderService остановлен")
}
