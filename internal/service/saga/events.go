package saga

import (
	"context"
	"errors"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/kubeshop-orders/internal/domain"
)

// fail завершает сагу ошибкой шага до списания денег (или при отказе платежа).
func (o *orchestrator) fail(ctx context.Context, r *run, err error) error {
	failedAt := r.step
	kind := domain.KindOf(err)
	o.enter(r, domain.SagaStepFailed)

	if o.metrics != nil {
		o.metrics.RecordSagaFailed(string(kind), o.now().Sub(r.started))
	}
	r.logger.WithError(err).WithFields(log.Fields{
		"step": failedAt,
		"kind": kind,
	}).Warn("order saga failed")

	o.publish(ctx, r, domain.SagaEventFailed, map[string]interface{}{
		"failed_step": string(failedAt),
		"kind":        string(kind),
		"reason":      err.Error(),
	})
	return err
}

// hazard обрабатывает сбой записи после успешного списания: деньги взяты, заказа нет.
func (o *orchestrator) hazard(ctx context.Context, r *run, order domain.Order, cause error) error {
	err := &domain.ReconciliationHazardError{
		OrderID: order.ID,
		UserID:  order.UserID,
		Amount:  order.TotalAmount,
		Err:     cause,
	}
	o.enter(r, domain.SagaStepFailed)

	if o.metrics != nil {
		o.metrics.RecordSagaFailed(string(domain.KindReconciliationHazard), o.now().Sub(r.started))
	}
	r.logger.WithError(cause).WithField("amount", order.TotalAmount.String()).
		Error("payment captured but order was not persisted, manual reconciliation required")

	o.escalate(ctx, r, domain.ReconciliationAlert{
		Kind:    domain.AlertOrderNotPersisted,
		OrderID: order.ID,
		UserID:  order.UserID,
		Amount:  order.TotalAmount,
		Reason:  cause.Error(),
	})
	o.publish(ctx, r, domain.SagaEventReconciliationRequired, map[string]interface{}{
		"total_amount": order.TotalAmount.String(),
		"reason":       cause.Error(),
	})
	return err
}

// escalate считает опасную ситуацию и отправляет алерт. Ошибка отправки только логируется.
func (o *orchestrator) escalate(ctx context.Context, r *run, alert domain.ReconciliationAlert) {
	if o.metrics != nil {
		o.metrics.RecordReconciliationHazard()
	}
	if o.alerter == nil {
		return
	}
	alert.OccurredAt = o.now().UTC()

	alertCtx, cancel := o.stepContext(context.WithoutCancel(ctx))
	defer cancel()
	if err := o.alerter.Alert(alertCtx, alert); err != nil {
		r.logger.WithError(err).WithField("alert_kind", alert.Kind).Error("reconciliation alert failed")
	}
}

func (o *orchestrator) publish(ctx context.Context, r *run, eventType string, metadata map[string]interface{}) {
	if o.events == nil {
		return
	}
	event := domain.SagaEvent{
		Type:       eventType,
		OrderID:    r.orderID,
		UserID:     r.userID,
		Step:       r.step,
		Metadata:   metadata,
		OccurredAt: o.now().UTC(),
	}

	pubCtx, cancel := o.stepContext(context.WithoutCancel(ctx))
	defer cancel()
	if err := o.events.PublishSagaEvent(pubCtx, event); err != nil {
		entry := r.logger.WithError(err).WithField("event", eventType)
		if errors.Is(err, context.DeadlineExceeded) {
			entry.Warn("saga event publish timed out")
			return
		}
		entry.Warn("saga event publish failed")
	}
}
