package kafka

import (
	"context"

	"github.com/vladislavdragonenkov/kubeshop-orders/internal/domain"
)

var sagaEventTypes = map[string]EventType{
	domain.SagaEventStarted:                EventTypeSagaStarted,
	domain.SagaEventCompleted:              EventTypeSagaCompleted,
	domain.SagaEventFailed:                 EventTypeSagaFailed,
	domain.SagaEventReconciliationRequired: EventTypeSagaReconciliationRequired,
}

// SagaEventPublisher публикует события саги. Ключ orderId, а до его появления userId,
// чтобы события одного заказа попадали в одну партицию.
type SagaEventPublisher struct {
	producer *Producer
}

// NewSagaEventPublisher создаёт publisher событий саги.
func NewSagaEventPublisher(p *Producer) *SagaEventPublisher {
	return &SagaEventPublisher{producer: p}
}

// PublishSagaEvent отправляет событие в TopicSagaEvents.
func (s *SagaEventPublisher) PublishSagaEvent(ctx context.Context, event domain.SagaEvent) error {
	eventType, ok := sagaEventTypes[event.Type]
	if !ok {
		eventType = EventType(event.Type)
	}
	key := event.OrderID
	if key == "" {
		key = event.UserID
	}
	return s.producer.PublishEvent(ctx, TopicSagaEvents, key, eventType, SagaEventMessage{
		EventType: eventType,
		OrderID:   event.OrderID,
		UserID:    event.UserID,
		Step:      string(event.Step),
		Timestamp: event.OccurredAt,
		Metadata:  event.Metadata,
	})
}

// ReconciliationAlerter отправляет алерты сверки в TopicReconciliation.
type ReconciliationAlerter struct {
	producer *Producer
}

// NewReconciliationAlerter создаёт alerter поверх producer.
func NewReconciliationAlerter(p *Producer) *ReconciliationAlerter {
	return &ReconciliationAlerter{producer: p}
}

// Alert публикует алерт; ключ orderId или userId.
func (a *ReconciliationAlerter) Alert(ctx context.Context, alert domain.ReconciliationAlert) error {
	key := alert.OrderID
	if key == "" {
		key = alert.UserID
	}
	return a.producer.PublishEvent(ctx, TopicReconciliation, key, EventTypeReconciliationRequired, ReconciliationAlertMessage{
		EventType: EventTypeReconciliationRequired,
		Kind:      string(alert.Kind),
		OrderID:   alert.OrderID,
		UserID:    alert.UserID,
		Amount:    alert.Amount.String(),
		Reason:    alert.Reason,
		Timestamp: alert.OccurredAt,
	})
}

// NotificationPublisher — NotificationClient, который ставит уведомление в очередь
// вместо синхронного HTTP-вызова.
type NotificationPublisher struct {
	producer *Producer
}

// NewNotificationPublisher создаёт publisher уведомлений.
func NewNotificationPublisher(p *Producer) *NotificationPublisher {
	return &NotificationPublisher{producer: p}
}

// Notify публикует notification.requested с ключом userId.
func (n *NotificationPublisher) Notify(ctx context.Context, userID, message string) error {
	return n.producer.PublishEvent(ctx, TopicNotifications, userID, EventTypeNotificationRequested, NotificationMessage{
		EventType: EventTypeNotificationRequested,
		UserID:    userID,
		Message:   message,
		Timestamp: n.producer.now().UTC(),
	})
}

var (
	_ domain.SagaEventPublisher    = (*SagaEventPublisher)(nil)
	_ domain.ReconciliationAlerter = (*ReconciliationAlerter)(nil)
	_ domain.NotificationClient    = (*NotificationPublisher)(nil)
)
