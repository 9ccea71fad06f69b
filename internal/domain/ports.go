package domain

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// CartClient описывает взаимодействие с сервисом корзины.
type CartClient interface {
	// GetCart возвращает позиции корзины в исходном порядке.
	// Отсутствующая корзина возвращается пустым срезом без ошибки.
	GetCart(ctx context.Context, userID string) ([]CartItem, error)
	// ClearCart очищает корзину после оформления заказа.
	ClearCart(ctx context.Context, userID string) error
}

// CatalogClient описывает чтение товаров из каталога.
type CatalogClient interface {
	// GetProduct возвращает товар или ErrProductNotFound.
	GetProduct(ctx context.Context, productID int64) (Product, error)
}

// PaymentClient описывает взаимодействие с платёжным сервисом.
type PaymentClient interface {
	// Charge списывает amount с пользователя. Отказ провайдера приходит как
	// PaymentResult{Success: false}, ошибка означает отсутствие ответа.
	Charge(ctx context.Context, userID string, amount decimal.Decimal) (PaymentResult, error)
}

// NotificationClient отправляет пользователю уведомление.
type NotificationClient interface {
	Notify(ctx context.Context, userID, message string) error
}

// ReconciliationAlerter эскалирует ситуации, требующие ручной сверки платежей.
type ReconciliationAlerter interface {
	Alert(ctx context.Context, alert ReconciliationAlert) error
}

// SagaEventPublisher публикует события жизненного цикла саги. Должен быть идемпотентным.
type SagaEventPublisher interface {
	PublishSagaEvent(ctx context.Context, event SagaEvent) error
}

// IdempotencyRepository хранит состояние обработки запросов по idempotency-key.
type IdempotencyRepository interface {
	CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (IdempotencyRecord, error)
	Get(ctx context.Context, key string) (IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error
	MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error
}

// SagaStep задаёт константы шагов для метрик/логов.
type SagaStep string

const (
	SagaStepStart     SagaStep = "start"
	SagaStepValidate  SagaStep = "validating"
	SagaStepPrice     SagaStep = "pricing"
	SagaStepPay       SagaStep = "paying"
	SagaStepPersist   SagaStep = "persisting"
	SagaStepClearCart SagaStep = "clearing_cart"
	SagaStepNotify    SagaStep = "notifying"
	SagaStepCompleted SagaStep = "completed"
	SagaStepFailed    SagaStep = "failed"
)

// AlertKind различает причины эскалации.
type AlertKind string

const (
	// AlertOrderNotPersisted — деньги списаны, заказ не записан.
	AlertOrderNotPersisted AlertKind = "order_not_persisted"
	// AlertPaymentIndeterminate — ответа от платёжного сервиса не было, исход списания неизвестен.
	AlertPaymentIndeterminate AlertKind = "payment_indeterminate"
)

// ReconciliationAlert — данные для ручной сверки.
type ReconciliationAlert struct {
	Kind       AlertKind
	OrderID    string
	UserID     string
	Amount     decimal.Decimal
	Reason     string
	OccurredAt time.Time
}

// Типы событий саги.
const (
	SagaEventStarted                = "saga.started"
	SagaEventCompleted              = "saga.completed"
	SagaEventFailed                 = "saga.failed"
	SagaEventReconciliationRequired = "saga.reconciliation_required"
)

// SagaEvent — событие жизненного цикла саги создания заказа.
type SagaEvent struct {
	Type       string
	OrderID    string
	UserID     string
	Step       SagaStep
	Metadata   map[string]interface{}
	OccurredAt time.Time
}
