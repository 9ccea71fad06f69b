// Package saga содержит оркестратор создания заказа:
// Validating → Pricing → Paying → Persisting → ClearingCart → Notifying.
package saga

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/kubeshop-orders/internal/domain"
	"github.com/vladislavdragonenkov/kubeshop-orders/internal/metrics"
)

// Orchestrator описывает операции над заказами, доступные границе сервиса.
type Orchestrator interface {
	CreateOrder(ctx context.Context, userID string) (domain.Order, error)
	GetOrder(ctx context.Context, orderID string) (domain.Order, error)
}

// Deps — обязательные зависимости оркестратора.
type Deps struct {
	Cart     domain.CartClient
	Catalog  domain.CatalogClient
	Payment  domain.PaymentClient
	Notifier domain.NotificationClient
	Orders   domain.OrderRepository
}

func (d Deps) validate() error {
	var missing []string
	if d.Cart == nil {
		missing = append(missing, "cart")
	}
	if d.Catalog == nil {
		missing = append(missing, "catalog")
	}
	if d.Payment == nil {
		missing = append(missing, "payment")
	}
	if d.Notifier == nil {
		missing = append(missing, "notifier")
	}
	if d.Orders == nil {
		missing = append(missing, "orders")
	}
	if len(missing) > 0 {
		return fmt.Errorf("saga: missing dependencies: %s", strings.Join(missing, ", "))
	}
	return nil
}

// DefaultStepTimeout ограничивает каждый вызов внешнего сервиса или хранилища.
const DefaultStepTimeout = 10 * time.Second

// Option настраивает оркестратор.
type Option func(*orchestrator)

// WithStepTimeout задаёт таймаут одного шага. d <= 0 отключает таймаут.
func WithStepTimeout(d time.Duration) Option {
	return func(o *orchestrator) { o.stepTimeout = d }
}

// WithClock подменяет источник времени.
func WithClock(now func() time.Time) Option {
	return func(o *orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// WithIDGenerator подменяет генератор идентификаторов заказов.
func WithIDGenerator(newID func() string) Option {
	return func(o *orchestrator) {
		if newID != nil {
			o.newID = newID
		}
	}
}

// WithMetrics включает метрики саги.
func WithMetrics(m *metrics.SagaMetrics) Option {
	return func(o *orchestrator) { o.metrics = m }
}

// WithEventPublisher включает публикацию событий саги.
func WithEventPublisher(p domain.SagaEventPublisher) Option {
	return func(o *orchestrator) { o.events = p }
}

// WithAlerter задаёт канал эскалации для ручной сверки платежей.
func WithAlerter(a domain.ReconciliationAlerter) Option {
	return func(o *orchestrator) { o.alerter = a }
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(o *orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

type orchestrator struct {
	cart     domain.CartClient
	catalog  domain.CatalogClient
	payment  domain.PaymentClient
	notifier domain.NotificationClient
	orders   domain.OrderRepository

	events  domain.SagaEventPublisher
	alerter domain.ReconciliationAlerter
	metrics *metrics.SagaMetrics
	logger  *log.Entry

	stepTimeout time.Duration
	now         func() time.Time
	newID       func() string
}

// NewOrchestrator создаёт оркестратор. Все зависимости из Deps обязательны.
func NewOrchestrator(deps Deps, opts ...Option) (Orchestrator, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	o := &orchestrator{
		cart:        deps.Cart,
		catalog:     deps.Catalog,
		payment:     deps.Payment,
		notifier:    deps.Notifier,
		orders:      deps.Orders,
		logger:      log.New().WithField("component", "saga"),
		stepTimeout: DefaultStepTimeout,
		now:         time.Now,
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// run — состояние одного вызова CreateOrder. Между вызовами ничего не разделяется.
type run struct {
	orderID string
	userID  string
	step    domain.SagaStep
	started time.Time
	logger  *log.Entry
}

// CreateOrder проводит заказ через все шаги. После успешного списания результатом
// может быть только сохранённый заказ или ReconciliationHazardError.
func (o *orchestrator) CreateOrder(ctx context.Context, userID string) (domain.Order, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.Order{}, domain.ErrUserRequired
	}

	r := &run{
		orderID: o.newID(),
		userID:  userID,
		step:    domain.SagaStepStart,
		started: o.now(),
	}
	r.logger = o.logger.WithFields(log.Fields{
		"order_id": r.orderID,
		"user_id":  userID,
	})

	if o.metrics != nil {
		o.metrics.RecordSagaStarted()
	}
	o.publish(ctx, r, domain.SagaEventStarted, nil)

	// Validating
	o.enter(r, domain.SagaStepValidate)
	cartItems, err := o.fetchCart(ctx, r)
	if err != nil {
		return domain.Order{}, o.fail(ctx, r, err)
	}

	// Pricing
	o.enter(r, domain.SagaStepPrice)
	priced, err := o.price(ctx, r, cartItems)
	if err != nil {
		return domain.Order{}, o.fail(ctx, r, err)
	}

	order := domain.Order{
		ID:          r.orderID,
		UserID:      userID,
		TotalAmount: domain.SumPricedItems(priced),
		Status:      domain.OrderStatusPending,
		Items:       domain.NewOrderItems(r.orderID, priced),
	}
	if errs := order.ValidateInvariants(); len(errs) > 0 {
		return domain.Order{}, o.fail(ctx, r, fmt.Errorf("order invariants violated: %w", errors.Join(errs...)))
	}

	// Paying
	o.enter(r, domain.SagaStepPay)
	if err := o.preflight(ctx, r); err != nil {
		return domain.Order{}, o.fail(ctx, r, err)
	}
	if err := o.charge(ctx, r, order); err != nil {
		return domain.Order{}, o.fail(ctx, r, err)
	}

	// Деньги списаны: отмена вызывающей стороны больше не должна прерывать запись.
	ctx = context.WithoutCancel(ctx)

	// Persisting
	o.enter(r, domain.SagaStepPersist)
	order.Status = domain.OrderStatusPaid
	order.CreatedAt = o.now().UTC()
	stored, err := o.persist(ctx, r, order)
	if err != nil {
		return domain.Order{}, o.hazard(ctx, r, order, err)
	}

	// ClearingCart
	o.enter(r, domain.SagaStepClearCart)
	o.bestEffort(ctx, r, func(stepCtx context.Context) error {
		return o.cart.ClearCart(stepCtx, userID)
	})

	// Notifying
	o.enter(r, domain.SagaStepNotify)
	o.bestEffort(ctx, r, func(stepCtx context.Context) error {
		return o.notifier.Notify(stepCtx, userID, NotificationMessage(stored.ID))
	})

	o.enter(r, domain.SagaStepCompleted)
	duration := o.now().Sub(r.started)
	if o.metrics != nil {
		o.metrics.RecordSagaCompleted(duration)
	}
	r.logger.WithFields(log.Fields{
		"amount":   stored.TotalAmount.String(),
		"items":    len(stored.Items),
		"duration": duration,
	}).Info("order created")
	o.publish(ctx, r, domain.SagaEventCompleted, map[string]interface{}{
		"total_amount": stored.TotalAmount.String(),
		"items_count":  len(stored.Items),
	})

	return stored, nil
}

// GetOrder читает заказ с позициями. Для неизвестного ID возвращает ErrOrderNotFound.
func (o *orchestrator) GetOrder(ctx context.Context, orderID string) (domain.Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return domain.Order{}, domain.ErrOrderIDRequired
	}

	stepCtx, cancel := o.stepContext(ctx)
	defer cancel()

	order, err := o.orders.Get(stepCtx, orderID)
	switch {
	case err == nil:
		return order, nil
	case errors.Is(err, domain.ErrOrderNotFound):
		return domain.Order{}, err
	default:
		o.logger.WithError(err).WithField("order_id", orderID).Warn("read order failed")
		return domain.Order{}, &domain.PersistenceError{OrderID: orderID, Err: err}
	}
}

// NotificationMessage — текст уведомления об успешном заказе.
func NotificationMessage(orderID string) string {
	return fmt.Sprintf("Order %s created successfully", orderID)
}

func (o *orchestrator) fetchCart(ctx context.Context, r *run) ([]domain.CartItem, error) {
	var items []domain.CartItem
	err := o.step(ctx, r, func(stepCtx context.Context) error {
		var err error
		items, err = o.cart.GetCart(stepCtx, r.userID)
		return err
	})
	if err != nil {
		return nil, downstream(domain.ServiceCart, err)
	}
	if len(items) == 0 {
		return nil, domain.ErrEmptyCart
	}
	for _, item := range items {
		if item.ProductID <= 0 || item.Quantity <= 0 {
			return nil, &domain.DownstreamError{
				Service: domain.ServiceCart,
				Err:     fmt.Errorf("malformed cart item: product_id=%d quantity=%d", item.ProductID, item.Quantity),
			}
		}
	}
	return items, nil
}

// price проверяет остатки и фиксирует цену каждой позиции в порядке корзины.
func (o *orchestrator) price(ctx context.Context, r *run, items []domain.CartItem) ([]domain.PricedItem, error) {
	priced := make([]domain.PricedItem, 0, len(items))
	for _, item := range items {
		var product domain.Product
		err := o.step(ctx, r, func(stepCtx context.Context) error {
			var err error
			product, err = o.catalog.GetProduct(stepCtx, item.ProductID)
			return err
		})
		switch {
		case errors.Is(err, domain.ErrProductNotFound):
			return nil, &domain.InsufficientStockError{ProductID: item.ProductID, Requested: item.Quantity}
		case err != nil:
			return nil, downstream(domain.ServiceCatalog, err)
		}
		if product.Price.IsNegative() || product.Stock < 0 {
			return nil, &domain.DownstreamError{
				Service: domain.ServiceCatalog,
				Err:     fmt.Errorf("malformed product %d", item.ProductID),
			}
		}
		if product.Stock < item.Quantity {
			return nil, &domain.InsufficientStockError{
				ProductID: item.ProductID,
				Requested: item.Quantity,
				Available: product.Stock,
			}
		}
		priced = append(priced, domain.PricedItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: product.Price,
		})
	}
	return priced, nil
}

// preflight проверяет хранилище до списания, чтобы недоступная БД не превращалась
// в списанные деньги без заказа.
func (o *orchestrator) preflight(ctx context.Context, r *run) error {
	err := o.step(ctx, r, o.orders.Ping)
	if err != nil {
		return &domain.PersistenceError{OrderID: r.orderID, Err: err}
	}
	return nil
}

func (o *orchestrator) charge(ctx context.Context, r *run, order domain.Order) error {
	var result domain.PaymentResult
	err := o.step(ctx, r, func(stepCtx context.Context) error {
		var err error
		result, err = o.payment.Charge(stepCtx, r.userID, order.TotalAmount)
		return err
	})
	if err != nil {
		var pe *domain.PaymentError
		if !errors.As(err, &pe) {
			pe = &domain.PaymentError{
				Message:       "no response from payment service",
				Indeterminate: true,
				Err:           downstream(domain.ServicePayment, err),
			}
		}
		if pe.Indeterminate {
			o.escalate(ctx, r, domain.ReconciliationAlert{
				Kind:    domain.AlertPaymentIndeterminate,
				OrderID: r.orderID,
				UserID:  r.userID,
				Amount:  order.TotalAmount,
				Reason:  pe.Error(),
			})
		}
		return pe
	}
	if !result.Success {
		return &domain.PaymentError{StatusCode: result.StatusCode, Message: result.Message}
	}
	r.logger.WithFields(log.Fields{
		"amount": order.TotalAmount.String(),
		"status": result.StatusCode,
	}).Debug("payment captured")
	return nil
}

func (o *orchestrator) persist(ctx context.Context, r *run, order domain.Order) (domain.Order, error) {
	var stored domain.Order
	err := o.step(ctx, r, func(stepCtx context.Context) error {
		var err error
		stored, err = o.orders.Create(stepCtx, order)
		return err
	})
	return stored, err
}

// bestEffort выполняет шаг после фиксации заказа: ошибка логируется и считается,
// но не меняет результат.
func (o *orchestrator) bestEffort(ctx context.Context, r *run, fn func(context.Context) error) {
	if err := o.step(ctx, r, fn); err != nil {
		r.logger.WithError(err).WithField("step", r.step).Warn("post-commit step failed")
		if o.metrics != nil {
			o.metrics.RecordBestEffortFailure(string(r.step))
		}
	}
}

// step выполняет один вызов с таймаутом шага и пишет его длительность.
func (o *orchestrator) step(ctx context.Context, r *run, fn func(context.Context) error) error {
	stepCtx, cancel := o.stepContext(ctx)
	defer cancel()

	started := o.now()
	err := fn(stepCtx)
	if o.metrics != nil {
		o.metrics.RecordStepDuration(string(r.step), o.now().Sub(started))
	}
	return err
}

func (o *orchestrator) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if o.stepTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, o.stepTimeout)
}

func (o *orchestrator) enter(r *run, step domain.SagaStep) {
	r.logger.WithFields(log.Fields{
		"from": r.step,
		"step": step,
	}).Debug("saga transition")
	r.step = step
}

// downstream оборачивает ошибку клиента в DownstreamError, если клиент этого не сделал.
func downstream(service string, err error) error {
	var de *domain.DownstreamError
	if errors.As(err, &de) {
		return err
	}
	return &domain.DownstreamError{Service: service, Err: err}
}
