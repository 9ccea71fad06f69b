package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/kubeshop-orders/internal/domain"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewStore(db, nil), mock
}

func TestOrderRepository_CreateWritesHeaderAndItemsInOneTx(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewOrderRepository(store)
	order := sampleOrder("order-1", time.Now().UTC())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").
		WithArgs(order.ID, order.UserID, order.TotalAmount.String(), "PAID", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	for i, item := range order.Items {
		mock.ExpectExec("INSERT INTO order_items").
			WithArgs(order.ID, i, item.ProductID, item.Quantity, item.UnitPrice.String()).
			WillReturnResult(sqlmock.NewResult(int64(i+1), 1))
	}
	mock.ExpectCommit()

	stored, err := repo.Create(context.Background(), order)
	require.NoError(t, err)
	require.Equal(t, order.ID, stored.ID)
	require.Len(t, stored.Items, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_CreateRollsBackOnItemFailure(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewOrderRepository(store)
	order := sampleOrder("order-1", time.Now().UTC())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO order_items").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO order_items").WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), order)
	require.Error(t, err)
	require.Contains(t, err.Error(), "insert order item")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_CreateDuplicateID(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewOrderRepository(store)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").WillReturnError(&pgconn.PgError{Code: pgUniqueViolation})
	mock.ExpectRollback()

	_, err := repo.Create(context.Background(), sampleOrder("order-1", time.Now().UTC()))
	require.ErrorIs(t, err, domain.ErrOrderAlreadyExists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_CreateCommitFailure(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewOrderRepository(store)
	order := sampleOrder("order-1", time.Now().UTC())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO orders").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO order_items").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO order_items").WillReturnResult(sqlmock.NewResult(2, 1))
	mock.ExpectCommit().WillReturnError(errors.New("server closed the connection"))

	_, err := repo.Create(context.Background(), order)
	require.Error(t, err)
	require.Contains(t, err.Error(), "commit create order")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_GetReadsSnapshot(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewOrderRepository(store)
	createdAt := time.Date(2026, 4, 17, 10, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT order_id, user_id, total_amount, status, created_at").
		WithArgs("order-1").
		WillReturnRows(sqlmock.NewRows([]string{"order_id", "user_id", "total_amount", "status", "created_at"}).
			AddRow("order-1", "user-1", "20.30", "PAID", createdAt))
	mock.ExpectQuery("FROM order_items").
		WithArgs("order-1").
		WillReturnRows(sqlmock.NewRows([]string{"product_id", "quantity", "unit_price"}).
			AddRow(int64(1), int64(2), "10.00").
			AddRow(int64(7), int64(3), "0.10"))
	mock.ExpectCommit()

	order, err := repo.Get(context.Background(), "order-1")
	require.NoError(t, err)
	require.Equal(t, "user-1", order.UserID)
	require.Equal(t, domain.OrderStatusPaid, order.Status)
	require.True(t, order.TotalAmount.Equal(decimal.RequireFromString("20.3")))
	require.Len(t, order.Items, 2)
	require.Equal(t, "order-1", order.Items[1].OrderID)
	require.True(t, order.Items[1].UnitPrice.Equal(decimal.RequireFromString("0.1")))
	require.Empty(t, order.ValidateInvariants())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOrderRepository_GetNotFound(t *testing.T) {
	store, mock := newMockStore(t)
	repo := NewOrderRepository(store)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM orders").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"order_id", "user_id", "total_amount", "status", "created_at"}))
	mock.ExpectRollback()

	_, err := repo.Get(context.Background(), "missing")
	require.ErrorIs(t, err, domain.ErrOrderNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIsUniqueViolation(t *testing.T) {
	require.True(t, isUniqueViolation(&pgconn.PgError{Code: "23505"}))
	require.False(t, isUniqueViolation(&pgconn.PgError{Code: "22001"}))
	require.False(t, isUniqueViolation(errors.New("plain error")))
}
