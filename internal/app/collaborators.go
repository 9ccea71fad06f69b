package app

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/kubeshop-orders/internal/domain"
	"github.com/vladislavdragonenkov/kubeshop-orders/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/kubeshop-orders/internal/service/cart"
	"github.com/vladislavdragonenkov/kubeshop-orders/internal/service/catalog"
	"github.com/vladislavdragonenkov/kubeshop-orders/internal/service/notification"
	"github.com/vladislavdragonenkov/kubeshop-orders/internal/service/payment"
	"github.com/vladislavdragonenkov/kubeshop-orders/internal/service/remote"
	"github.com/vladislavdragonenkov/kubeshop-orders/internal/version"
)

// collaborators — клиенты внешних сервисов магазина и их предохранители.
type collaborators struct {
	cart     domain.CartClient
	catalog  domain.CatalogClient
	payment  domain.PaymentClient
	notifier domain.NotificationClient

	breakers map[string]*remote.CircuitBreaker
}

// newCollaborators собирает HTTP-клиенты с отдельным breaker на каждый сервис.
// При ORDERS_NOTIFY_TRANSPORT=kafka уведомления уходят в Kafka, если producer поднят.
func newCollaborators(cfg Config, producer *kafka.Producer, logger *log.Entry) *collaborators {
	c := &collaborators{breakers: make(map[string]*remote.CircuitBreaker)}

	retry := remote.DefaultRetryConfig()
	retry.MaxAttempts = cfg.ReadRetries + 1

	client := func(service, baseURL string) *remote.Client {
		clientLogger := logger.WithField("component", service+"-client")
		breaker := remote.NewCircuitBreaker(cfg.BreakerFailures, cfg.BreakerReset, clientLogger)
		c.breakers[service] = breaker
		return remote.NewClient(service, baseURL, cfg.ClientTimeout,
			remote.WithBreaker(breaker),
			remote.WithUserAgent(version.UserAgent()),
			remote.WithLogger(clientLogger),
		)
	}

	c.cart = cart.NewClient(client(domain.ServiceCart, cfg.CartURL), retry, logger.WithField("component", "cart-client"))
	c.catalog = catalog.NewClient(client(domain.ServiceCatalog, cfg.CatalogURL), retry, logger.WithField("component", "catalog-client"))
	c.payment = payment.NewClient(client(domain.ServicePayment, cfg.PaymentURL), logger.WithField("component", "payment-client"))

	switch {
	case strings.EqualFold(cfg.NotifyTransport, NotifyTransportKafka) && producer != nil:
		c.notifier = kafka.NewNotificationPublisher(producer)
		logger.Info("notifications are published to kafka")
	default:
		if strings.EqualFold(cfg.NotifyTransport, NotifyTransportKafka) {
			logger.Warn("kafka notify transport requested without kafka producer, falling back to http")
		}
		c.notifier = notification.NewClient(client(domain.ServiceNotification, cfg.NotificationURL))
	}
	return c
}

// breakerPing сообщает о разомкнутом breaker, не обращаясь к сервису.
func breakerPing(b *remote.CircuitBreaker) func(context.Context) error {
	return func(context.Context) error {
		if b.State() == remote.CircuitOpen {
			return remote.ErrCircuitOpen
		}
		return nil
	}
}
