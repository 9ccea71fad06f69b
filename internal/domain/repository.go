package domain

import "context"

// OrderRepository описывает требования к хранилищу заказов.
type OrderRepository interface {
	// Create атомарно сохраняет заказ вместе со всеми позициями: либо всё, либо ничего.
	// Возвращает ErrOrderAlreadyExists, если ID уже занят.
	Create(ctx context.Context, order Order) (Order, error)
	// Get возвращает заказ с позициями или ErrOrderNotFound, если его нет.
	Get(ctx context.Context, id string) (Order, error)
	// Ping проверяет, что хранилище готово принимать записи.
	Ping(ctx context.Context) error
}
