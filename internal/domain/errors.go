package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// ErrInvalidRequest — запрос не прошёл базовую валидацию.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrUserRequired — не передан идентификатор пользователя.
	ErrUserRequired = fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	// ErrOrderIDRequired — не передан идентификатор заказа.
	ErrOrderIDRequired = fmt.Errorf("%w: order_id is required", ErrInvalidRequest)

	// Ошибки инвариантов заказа.
	ErrStatusInvalid     = errors.New("order status is invalid")
	ErrItemsRequired     = errors.New("order must contain at least one item")
	ErrAmountNegative    = errors.New("total_amount must be non-negative")
	ErrItemQtyInvalid    = errors.New("item quantity must be greater than zero")
	ErrItemPriceInvalid  = errors.New("item unit price must be non-negative")
	ErrAmountMismatch    = errors.New("order total does not match items sum")
	ErrItemOrderMismatch = errors.New("order item belongs to another order")

	// ErrEmptyCart — корзина пользователя пуста или отсутствует.
	ErrEmptyCart = errors.New("cart is empty")
	// ErrInsufficientStock — на складе меньше товара, чем в корзине.
	ErrInsufficientStock = errors.New("insufficient stock")
	// ErrProductNotFound — каталог не знает такого товара.
	ErrProductNotFound = errors.New("product not found")
	// ErrPaymentFailed — платёж отклонён или платёжный сервис недоступен.
	ErrPaymentFailed = errors.New("payment failed")
	// ErrPersistenceFailed — хранилище недоступно до списания денег; ничего не зафиксировано.
	ErrPersistenceFailed = errors.New("persistence failed")
	// ErrReconciliationHazard — деньги списаны, а заказ не сохранён. Требует ручной сверки.
	ErrReconciliationHazard = errors.New("reconciliation hazard")
	// ErrDownstreamUnavailable — внешний сервис недоступен или ответил мусором.
	ErrDownstreamUnavailable = errors.New("downstream unavailable")
	// ErrOrderNotFound возвращается, если заказ не найден в репозитории.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderAlreadyExists — заказ с таким ID уже сохранён.
	ErrOrderAlreadyExists = errors.New("order already exists")

	// ErrIdempotencyKeyAlreadyExists — ключ уже занят другим запросом в обработке.
	ErrIdempotencyKeyAlreadyExists = errors.New("idempotency key already exists")
	// ErrIdempotencyHashMismatch — ключ переиспользован с другим телом запроса.
	ErrIdempotencyHashMismatch = errors.New("idempotency key reused with different request")
	// ErrIdempotencyKeyNotFound — записи по ключу нет.
	ErrIdempotencyKeyNotFound = errors.New("idempotency key not found")
	// ErrIdempotencyKeyRequired — пустой idempotency-key.
	ErrIdempotencyKeyRequired = errors.New("idempotency key is required")
	// ErrIdempotencyRequestHashRequired — пустой хеш запроса.
	ErrIdempotencyRequestHashRequired = errors.New("idempotency request hash is required")
)

// Имена внешних сервисов для DownstreamError.
const (
	ServiceCart         = "cart"
	ServiceCatalog      = "catalog"
	ServicePayment      = "payment"
	ServiceNotification = "notification"
	ServiceStore        = "store"
)

// InsufficientStockError сообщает, какого товара не хватило.
type InsufficientStockError struct {
	ProductID int64
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %d: requested %d, available %d",
		e.ProductID, e.Requested, e.Available)
}

func (e *InsufficientStockError) Is(target error) bool { return target == ErrInsufficientStock }

// PaymentError описывает отказ платёжного сервиса.
// StatusCode == 0 означает, что ответа не было (таймаут, обрыв соединения).
type PaymentError struct {
	StatusCode int
	Message    string
	// Indeterminate выставляется, когда неизвестно, списаны ли деньги.
	Indeterminate bool
	Err           error
}

func (e *PaymentError) Error() string {
	if e.StatusCode == 0 {
		if e.Err != nil {
			return fmt.Sprintf("payment failed: no response: %v", e.Err)
		}
		return "payment failed: no response"
	}
	if e.Message == "" {
		return fmt.Sprintf("payment failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("payment failed with status %d: %s", e.StatusCode, e.Message)
}

func (e *PaymentError) Is(target error) bool { return target == ErrPaymentFailed }

func (e *PaymentError) Unwrap() error { return e.Err }

// PersistenceError — отказ хранилища до списания денег.
type PersistenceError struct {
	OrderID string
	Err     error
}

func (e *PersistenceError) Error() string {
	if e.OrderID == "" {
		return fmt.Sprintf("persistence failed: %v", e.Err)
	}
	return fmt.Sprintf("persistence failed for order %s: %v", e.OrderID, e.Err)
}

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistenceFailed }

func (e *PersistenceError) Unwrap() error { return e.Err }

// ReconciliationHazardError — платёж прошёл, но заказ не записан.
type ReconciliationHazardError struct {
	OrderID string
	UserID  string
	Amount  decimal.Decimal
	Err     error
}

func (e *ReconciliationHazardError) Error() string {
	return fmt.Sprintf("reconciliation required: order %s for user %s charged %s but not persisted: %v",
		e.OrderID, e.UserID, e.Amount.String(), e.Err)
}

func (e *ReconciliationHazardError) Is(target error) bool { return target == ErrReconciliationHazard }

func (e *ReconciliationHazardError) Unwrap() error { return e.Err }

// DownstreamError — внешний сервис недоступен или вернул некорректный ответ.
type DownstreamError struct {
	Service string
	Err     error
}

func (e *DownstreamError) Error() string {
	return fmt.Sprintf("%s service unavailable: %v", e.Service, e.Err)
}

func (e *DownstreamError) Is(target error) bool { return target == ErrDownstreamUnavailable }

func (e *DownstreamError) Unwrap() error { return e.Err }

// ErrorKind — код ошибки, который видит вызывающая сторона.
type ErrorKind string

const (
	KindInvalidRequest        ErrorKind = "invalid_request"
	KindEmptyCart             ErrorKind = "empty_cart"
	KindInsufficientStock     ErrorKind = "insufficient_stock"
	KindPaymentFailed         ErrorKind = "payment_failed"
	KindPersistenceFailed     ErrorKind = "persistence_failed"
	KindReconciliationHazard  ErrorKind = "reconciliation_hazard"
	KindDownstreamUnavailable ErrorKind = "downstream_unavailable"
	KindNotFound              ErrorKind = "not_found"
	KindConflict              ErrorKind = "conflict"
	KindInternal              ErrorKind = "internal"
)

// KindOf классифицирует ошибку. Порядок проверок важен: ReconciliationHazard
// и PaymentError могут оборачивать DownstreamError.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrReconciliationHazard):
		return KindReconciliationHazard
	case errors.Is(err, ErrPersistenceFailed):
		return KindPersistenceFailed
	case errors.Is(err, ErrPaymentFailed):
		return KindPaymentFailed
	case errors.Is(err, ErrInsufficientStock):
		return KindInsufficientStock
	case errors.Is(err, ErrEmptyCart):
		return KindEmptyCart
	case errors.Is(err, ErrDownstreamUnavailable):
		return KindDownstreamUnavailable
	case errors.Is(err, ErrOrderNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidRequest):
		return KindInvalidRequest
	case IsIdempotencyConflict(err):
		return KindConflict
	default:
		return KindInternal
	}
}

// IsIdempotencyConflict проверяет, является ли ошибка конфликтом idempotency-key.
func IsIdempotencyConflict(err error) bool {
	return errors.Is(err, ErrIdempotencyKeyAlreadyExists) || errors.Is(err, ErrIdempotencyHashMismatch)
}
