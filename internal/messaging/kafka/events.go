package kafka

import "time"

// EventType определяет тип события.
type EventType string

const (
	// События саги создания заказа.
	EventTypeSagaStarted                EventType = "saga.started"
	EventTypeSagaCompleted              EventType = "saga.completed"
	EventTypeSagaFailed                 EventType = "saga.failed"
	EventTypeSagaReconciliationRequired EventType = "saga.reconciliation_required"

	// EventTypeReconciliationRequired — алерт для ручной сверки платежа.
	EventTypeReconciliationRequired EventType = "reconciliation.required"
	// EventTypeNotificationRequested — запрос на уведомление пользователя.
	EventTypeNotificationRequested EventType = "notification.requested"
)

// Topics для Kafka.
const (
	TopicSagaEvents     = "kubeshop.orders.saga"
	TopicReconciliation = "kubeshop.orders.reconciliation"
	TopicNotifications  = "kubeshop.notifications"
)

// SagaEventMessage — событие саги в топике.
type SagaEventMessage struct {
	EventType EventType              `json:"event_type"`
	OrderID   string                 `json:"order_id,omitempty"`
	UserID    string                 `json:"user_id"`
	Step      string                 `json:"step"`
	Timestamp time.Time              `json:"timestamp"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// ReconciliationAlertMessage — данные для ручной сверки. Сумма передаётся строкой без округления.
type ReconciliationAlertMessage struct {
	EventType EventType `json:"event_type"`
	Kind      string    `json:"kind"`
	OrderID   string    `json:"order_id,omitempty"`
	UserID    string    `json:"user_id"`
	Amount    string    `json:"amount"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
}

// NotificationMessage — запрос уведомления для сервиса уведомлений.
type NotificationMessage struct {
	EventType EventType `json:"event_type"`
	UserID    string    `json:"userId"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}
