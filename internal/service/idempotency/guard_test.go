package idempotency

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/kubeshop-orders/internal/domain"
	"github.com/vladislavdragonenkov/kubeshop-orders/internal/storage/memory"
)

func TestGuard_FirstRequestClaimsKey(t *testing.T) {
	guard := NewGuard(memory.NewIdempotencyRepository(), 0, nil)

	record, replay, err := guard.Begin(context.Background(), "key-1", "hash-1")
	require.NoError(t, err)
	require.False(t, replay)
	require.Equal(t, domain.IdempotencyStatusProcessing, record.Status)
}

func TestGuard_ConcurrentDuplicateIsInProgress(t *testing.T) {
	guard := NewGuard(memory.NewIdempotencyRepository(), 0, nil)
	ctx := context.Background()

	_, _, err := guard.Begin(ctx, "key-1", "hash-1")
	require.NoError(t, err)

	_, replay, err := guard.Begin(ctx, "key-1", "hash-1")
	require.ErrorIs(t, err, ErrRequestInProgress)
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyAlreadyExists)
	require.False(t, replay)
	require.Equal(t, domain.KindConflict, domain.KindOf(err))
}

func TestGuard_ReplaysFinishedResponse(t *testing.T) {
	guard := NewGuard(memory.NewIdempotencyRepository(), 0, nil)
	ctx := context.Background()

	_, _, err := guard.Begin(ctx, "key-1", "hash-1")
	require.NoError(t, err)
	guard.Complete(ctx, "key-1", true, []byte(`{"orderId":"o-1"}`), http.StatusCreated)

	record, replay, err := guard.Begin(ctx, "key-1", "hash-1")
	require.NoError(t, err)
	require.True(t, replay)
	require.Equal(t, http.StatusCreated, record.HTTPStatus)
	require.JSONEq(t, `{"orderId":"o-1"}`, string(record.ResponseBody))
}

func TestGuard_ReplaysFailedResponse(t *testing.T) {
	guard := NewGuard(memory.NewIdempotencyRepository(), 0, nil)
	ctx := context.Background()

	_, _, err := guard.Begin(ctx, "key-1", "hash-1")
	require.NoError(t, err)
	guard.Complete(ctx, "key-1", false, []byte(`{"error":"payment_failed"}`), http.StatusPaymentRequired)

	record, replay, err := guard.Begin(ctx, "key-1", "hash-1")
	require.NoError(t, err)
	require.True(t, replay)
	require.Equal(t, domain.IdempotencyStatusFailed, record.Status)
	require.Equal(t, http.StatusPaymentRequired, record.HTTPStatus)
}

func TestGuard_HashMismatch(t *testing.T) {
	guard := NewGuard(memory.NewIdempotencyRepository(), 0, nil)
	ctx := context.Background()

	_, _, err := guard.Begin(ctx, "key-1", "hash-1")
	require.NoError(t, err)

	_, _, err = guard.Begin(ctx, "key-1", "hash-2")
	require.True(t, errors.Is(err, domain.ErrIdempotencyHashMismatch))
}

func TestGuard_CompleteAfterCancelStillStores(t *testing.T) {
	guard := NewGuard(memory.NewIdempotencyRepository(), 0, nil)
	ctx, cancel := context.WithCancel(context.Background())

	_, _, err := guard.Begin(ctx, "key-1", "hash-1")
	require.NoError(t, err)
	cancel()
	guard.Complete(ctx, "key-1", true, []byte(`{}`), http.StatusCreated)

	_, replay, err := guard.Begin(context.Background(), "key-1", "hash-1")
	require.NoError(t, err)
	require.True(t, replay)
}

func TestRequestHash(t *testing.T) {
	a := RequestHash("POST /orders/create", []byte(`{"userId":"u-1"}`))
	b := RequestHash("POST /orders/create", []byte(`{"userId":"u-1"}`))
	c := RequestHash("POST /orders/create", []byte(`{"userId":"u-2"}`))
	d := RequestHash("/kubeshop.orders.v1.OrderService/CreateOrder", []byte(`{"userId":"u-1"}`))

	require.Equal(t, a, b)
	require.NotEqual(t, a, c)
	require.NotEqual(t, a, d)
	require.Len(t, a, 64)
}
