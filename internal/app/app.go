package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"

	healthcheck "github.com/vladislavdragonenkov/kubeshop-orders/internal/health"
	"github.com/vladislavdragonenkov/kubeshop-orders/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/kubeshop-orders/internal/metrics"
	grpcsvc "github.com/vladislavdragonenkov/kubeshop-orders/internal/service/grpc"
	"github.com/vladislavdragonenkov/kubeshop-orders/internal/service/httpapi"
	"github.com/vladislavdragonenkov/kubeshop-orders/internal/service/idempotency"
	"github.com/vladislavdragonenkov/kubeshop-orders/internal/service/saga"
	"github.com/vladislavdragonenkov/kubeshop-orders/internal/version"
)

// application — собранный граф зависимостей без открытых сокетов.
type application struct {
	cfg    Config
	logger *log.Entry

	storage  *storageDeps
	producer *kafka.Producer
	clients  *collaborators

	orders  saga.Orchestrator
	guard   *idempotency.Guard
	cleanup *idempotency.CleanupWorker

	httpHandler   http.Handler
	healthHandler *healthcheck.Handler
	grpcServer    *grpc.Server
	grpcHealth    *health.Server
}

// newApplication открывает хранилища и собирает оркестратор, HTTP и gRPC слои.
func newApplication(ctx context.Context, cfg Config, logger *log.Entry) (*application, error) {
	if logger == nil {
		logger = log.WithField("component", "app")
	}

	storage, err := initStorage(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	a := &application{cfg: cfg, logger: logger, storage: storage}
	a.producer = initKafkaProducer(cfg.KafkaBrokerList(), logger)
	a.clients = newCollaborators(cfg, a.producer, logger)

	opts := []saga.Option{
		saga.WithStepTimeout(cfg.StepTimeout),
		saga.WithMetrics(metrics.NewSagaMetrics()),
		saga.WithLogger(logger.WithField("component", "saga")),
	}
	if a.producer != nil {
		opts = append(opts,
			saga.WithEventPublisher(kafka.NewSagaEventPublisher(a.producer)),
			saga.WithAlerter(kafka.NewReconciliationAlerter(a.producer)),
		)
	} else {
		logger.Warn("kafka is not configured: reconciliation alerts go to the log only")
	}

	a.orders, err = saga.NewOrchestrator(saga.Deps{
		Cart:     a.clients.cart,
		Catalog:  a.clients.catalog,
		Payment:  a.clients.payment,
		Notifier: a.clients.notifier,
		Orders:   storage.orders,
	}, opts...)
	if err != nil {
		a.close()
		return nil, err
	}

	a.guard = idempotency.NewGuard(storage.idempotencyRepo, cfg.IdempotencyTTL, logger.WithField("component", "idempotency"))
	if storage.expired != nil {
		a.cleanup = idempotency.NewCleanupWorker(storage.expired,
			idempotency.WithInterval(cfg.IdempotencyCleanupInterval),
			idempotency.WithBatchSize(cfg.IdempotencyCleanupBatchSize),
			idempotency.WithLogger(logger.WithField("component", "idempotency-cleanup-worker")),
		)
	}

	a.httpHandler = httpapi.NewRouter(httpapi.NewHandler(a.orders, a.guard, logger.WithField("layer", "http")))
	a.grpcServer, a.grpcHealth = newGRPCServer(
		grpcsvc.NewOrderService(a.orders, a.guard, logger.WithField("layer", "grpc")), logger)
	a.healthHandler = a.newHealthHandler()

	return a, nil
}

func (a *application) newHealthHandler() *healthcheck.Handler {
	h := healthcheck.NewHandler(version.Service, version.GetVersion())
	h.RegisterChecker("order_store", healthcheck.NewPingChecker("order_store", 0, true, a.storage.orders.Ping))
	if a.storage.redis != nil {
		redis := a.storage.redis
		h.RegisterChecker("redis", healthcheck.NewPingChecker("redis", 0, true, func(ctx context.Context) error {
			return redis.Ping(ctx).Err()
		}))
	}
	// Разомкнутый breaker не делает сервис неготовым: заказы падают быстро, чтения остаются.
	for service, breaker := range a.clients.breakers {
		name := service + "_breaker"
		h.RegisterChecker(name, healthcheck.NewPingChecker(name, 0, false, breakerPing(breaker)))
	}
	return h
}

func (a *application) close() {
	closeKafka(a.producer, a.logger)
	a.storage.close(a.logger)
}

// Run поднимает HTTP API, gRPC и сервер метрик и блокируется до отмены ctx
// или падения одного из серверов.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	a, err := newApplication(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	lis, err := net.Listen("tcp", cfg.GRPCAddr)
	if err != nil {
		return err
	}

	workerCtx, stopWorkers := context.WithCancel(ctx)
	defer stopWorkers()
	if a.cleanup != nil {
		go a.cleanup.Run(workerCtx)
	}

	errCh := make(chan error, 3)

	httpSrv := &http.Server{Addr: cfg.HTTPAddr, Handler: a.httpHandler, ReadHeaderTimeout: 5 * time.Second}
	metricsSrv := &http.Server{Addr: cfg.MetricsAddr, Handler: newMetricsMux(a.healthHandler), ReadHeaderTimeout: 5 * time.Second}
	serveHTTP(httpSrv, "http api", logger, errCh)
	serveHTTP(metricsSrv, "metrics", logger, errCh)

	go func() {
		logger.Infof("gRPC сервер слушает %s", cfg.GRPCAddr)
		if err := a.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			errCh <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем серверы")
		runErr = ctx.Err()
	case runErr = <-errCh:
		logger.WithError(runErr).Error("server failed, shutting down")
	}

	shutdownHTTP(httpSrv, logger)
	stopGRPC(a.grpcServer, a.grpcHealth, logger)
	shutdownHTTP(metricsSrv, logger)
	return runErr
}
