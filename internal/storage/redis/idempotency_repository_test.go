package redis

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/kubeshop-orders/internal/domain"
)

func TestGenerateKey(t *testing.T) {
	repo := NewIdempotencyRepository(nil, "")
	require.Equal(t, "orders:idempotency:abc", repo.GenerateKey("abc"))

	repo = NewIdempotencyRepository(nil, "checkout")
	require.Equal(t, "checkout:idempotency:abc", repo.GenerateKey("abc"))
}

func TestKeyTTL(t *testing.T) {
	now := time.Now()
	require.Equal(t, time.Hour, keyTTL(now.Add(time.Hour), now))
	require.Equal(t, minKeyTTL, keyTTL(now.Add(-time.Minute), now))
}

func TestValidationWithoutRedis(t *testing.T) {
	repo := NewIdempotencyRepository(nil, "")

	_, err := repo.CreateProcessing(context.Background(), " ", "hash", time.Time{})
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyRequired)
	_, err = repo.CreateProcessing(context.Background(), "key", "", time.Time{})
	require.ErrorIs(t, err, domain.ErrIdempotencyRequestHashRequired)
	_, err = repo.Get(context.Background(), "")
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyRequired)
}

func TestIdempotencyRepository_RedisLifecycle(t *testing.T) {
	repo := openRedisRepositoryForIntegrationTest(t)
	ctx := context.Background()
	key := uuid.NewString()

	created, err := repo.CreateProcessing(ctx, key, "hash-a", time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, domain.IdempotencyStatusProcessing, created.Status)

	_, err = repo.CreateProcessing(ctx, key, "hash-a", time.Time{})
	require.ErrorIs(t, err, domain.ErrIdempotencyKeyAlreadyExists)
	_, err = repo.CreateProcessing(ctx, key, "hash-b", time.Time{})
	require.ErrorIs(t, err, domain.ErrIdempotencyHashMismatch)

	require.NoError(t, repo.MarkDone(ctx, key, []byte(`{"orderId":"o-1"}`), 201))

	got, err := repo.Get(ctx, key)
	require.NoError(t, err)
	require.Equal(t, domain.IdempotencyStatusDone, got.Status)
	require.Equal(t, 201, got.HTTPStatus)
	require.JSONEq(t, `{"orderId":"o-1"}`, string(got.ResponseBody))

	ttl, err := repo.client.TTL(ctx, repo.GenerateKey(key)).Result()
	require.NoError(t, err)
	require.Greater(t, ttl, time.Duration(0), "MarkDone must keep the key TTL")

	require.ErrorIs(t, repo.MarkFailed(ctx, uuid.NewString(), nil, 500), domain.ErrIdempotencyKeyNotFound)
}

func openRedisRepositoryForIntegrationTest(t *testing.T) *IdempotencyRepository {
	t.Helper()

	addr := strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	if addr == "" {
		addr = "localhost:6379"
	}
	client := NewClient(addr)
	t.Cleanup(func() { _ = client.Close() })

	repo := NewIdempotencyRepository(client, fmt.Sprintf("orders-test-%d", time.Now().UnixNano()))
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := repo.Ping(ctx); err != nil {
		t.Skipf("redis is not available for integration tests at %s: %v", addr, err)
	}
	return repo
}
