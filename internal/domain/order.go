package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus описывает жизненный цикл заказа.
type OrderStatus string

const (
	// OrderStatusPending — заказ собран, но ещё не зафиксирован в хранилище.
	OrderStatusPending OrderStatus = "PENDING"
	// OrderStatusPaid — оплата подтверждена и заказ сохранён.
	OrderStatusPaid OrderStatus = "PAID"
	// OrderStatusFailed — обработка заказа завершилась ошибкой.
	OrderStatusFailed OrderStatus = "FAILED"
)

// Valid проверяет, что статус относится к поддерживаемым значениям.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusFailed:
		return true
	default:
		return false
	}
}

// CartItem — позиция корзины, как её отдаёт сервис корзины.
type CartItem struct {
	ProductID int64
	Quantity  int
}

// Product — снимок товара из каталога. Может устареть между чтением и оплатой.
type Product struct {
	ProductID int64
	Name      string
	Price     decimal.Decimal
	Stock     int
}

// PricedItem — позиция корзины с зафиксированной ценой за единицу.
type PricedItem struct {
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
}

// LineTotal возвращает стоимость позиции: quantity * unitPrice.
func (p PricedItem) LineTotal() decimal.Decimal {
	return p.UnitPrice.Mul(decimal.NewFromInt(int64(p.Quantity)))
}

// OrderItem представляет одну сохранённую позицию заказа.
type OrderItem struct {
	OrderID   string
	ProductID int64
	Quantity  int
	UnitPrice decimal.Decimal
}

// Order агрегирует заказ и его позиции.
type Order struct {
	ID          string
	UserID      string
	TotalAmount decimal.Decimal
	Status      OrderStatus
	CreatedAt   time.Time
	Items       []OrderItem
}

// SumPricedItems считает итог заказа без округлений.
func SumPricedItems(items []PricedItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total
}

// NewOrderItems превращает оценённые позиции в строки заказа, сохраняя порядок корзины.
func NewOrderItems(orderID string, priced []PricedItem) []OrderItem {
	items := make([]OrderItem, 0, len(priced))
	for _, p := range priced {
		items = append(items, OrderItem{
			OrderID:   orderID,
			ProductID: p.ProductID,
			Quantity:  p.Quantity,
			UnitPrice: p.UnitPrice,
		})
	}
	return items
}

// ValidateInvariants проверяет базовые инварианты заказа и возвращает список замечаний.
func (o *Order) ValidateInvariants() []error {
	var errs []error

	if o.ID == "" {
		errs = append(errs, ErrOrderIDRequired)
	}
	if o.UserID == "" {
		errs = append(errs, ErrUserRequired)
	}
	if !o.Status.Valid() {
		errs = append(errs, ErrStatusInvalid)
	}
	if len(o.Items) == 0 {
		errs = append(errs, ErrItemsRequired)
	}
	if o.TotalAmount.IsNegative() {
		errs = append(errs, ErrAmountNegative)
	}

	// Сверяем сумму заказа с суммой позиций: quantity * unitPrice.
	calc := decimal.Zero
	for _, item := range o.Items {
		if item.OrderID != o.ID {
			errs = append(errs, ErrItemOrderMismatch)
		}
		if item.Quantity <= 0 {
			errs = append(errs, ErrItemQtyInvalid)
		}
		if item.UnitPrice.IsNegative() {
			errs = append(errs, ErrItemPriceInvalid)
		}
		calc = calc.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
	}
	if !calc.Equal(o.TotalAmount) {
		errs = append(errs, ErrAmountMismatch)
	}

	return errs
}

// FormatAmount печатает сумму без потери точности: минимум два знака после
// запятой, больше только если они значимы.
func FormatAmount(d decimal.Decimal) string {
	if d.Exponent() >= -2 {
		return d.StringFixed(2)
	}
	return d.String()
}
