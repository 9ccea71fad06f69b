package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/kubeshop-orders/internal/domain"
)

const pgUniqueViolation = "23505"

// OrderRepository хранит заказы в таблицах orders и order_items.
type OrderRepository struct {
	store *Store
}

// NewOrderRepository создаёт PostgreSQL-реализацию domain.OrderRepository.
func NewOrderRepository(store *Store) *OrderRepository {
	return &OrderRepository{store: store}
}

// Create пишет заголовок заказа и все позиции одной транзакцией.
// Любая ошибка откатывает транзакцию целиком: позиций без заказа не бывает.
func (r *OrderRepository) Create(ctx context.Context, order domain.Order) (_ domain.Order, err error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin create order tx: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
		INSERT INTO orders (order_id, user_id, total_amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, order.ID, order.UserID, order.TotalAmount.String(), string(order.Status), order.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			err = domain.ErrOrderAlreadyExists
			return domain.Order{}, err
		}
		return domain.Order{}, fmt.Errorf("insert order %s: %w", order.ID, err)
	}

	for i, item := range order.Items {
		if _, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, position, product_id, quantity, unit_price)
			VALUES ($1, $2, $3, $4, $5)
		`, order.ID, i, item.ProductID, item.Quantity, item.UnitPrice.String()); err != nil {
			return domain.Order{}, fmt.Errorf("insert order item %d of %s: %w", item.ProductID, order.ID, err)
		}
	}

	if err = tx.Commit(); err != nil {
		return domain.Order{}, fmt.Errorf("commit create order %s: %w", order.ID, err)
	}

	stored := order
	stored.Items = append([]domain.OrderItem(nil), order.Items...)
	return stored, nil
}

// Get читает заголовок и позиции в одной read-only транзакции с repeatable read,
// поэтому оба запроса видят один снимок.
func (r *OrderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	ctx, cancel := withOpTimeout(ctx)
	defer cancel()

	tx, err := r.store.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return domain.Order{}, fmt.Errorf("begin get order tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var (
		order  domain.Order
		total  decimal.Decimal
		status string
	)
	err = tx.QueryRowContext(ctx, `
		SELECT order_id, user_id, total_amount, status, created_at
		FROM orders
		WHERE order_id = $1
	`, id).Scan(&order.ID, &order.UserID, &total, &status, &order.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Order{}, domain.ErrOrderNotFound
		}
		return domain.Order{}, fmt.Errorf("select order %s: %w", id, err)
	}
	order.TotalAmount = total
	order.Status = domain.OrderStatus(status)
	order.CreatedAt = order.CreatedAt.UTC()

	rows, err := tx.QueryContext(ctx, `
		SELECT product_id, quantity, unit_price
		FROM order_items
		WHERE order_id = $1
		ORDER BY position ASC
	`, id)
	if err != nil {
		return domain.Order{}, fmt.Errorf("select order items %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		item := domain.OrderItem{OrderID: order.ID}
		if err := rows.Scan(&item.ProductID, &item.Quantity, &item.UnitPrice); err != nil {
			return domain.Order{}, fmt.Errorf("scan order item: %w", err)
		}
		order.Items = append(order.Items, item)
	}
	if err := rows.Err(); err != nil {
		return domain.Order{}, fmt.Errorf("iterate order items: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return domain.Order{}, fmt.Errorf("commit get order %s: %w", id, err)
	}
	return order, nil
}

// Ping проверяет доступность базы перед списанием денег.
func (r *OrderRepository) Ping(ctx context.Context) error {
	return r.store.Ping(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

var _ domain.OrderRepository = (*OrderRepository)(nil)
