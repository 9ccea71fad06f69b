package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/vladislavdragonenkov/kubeshop-orders/internal/domain"
)

const (
	defaultIdempotencyTTL = 24 * time.Hour
	// Минимальный TTL ключа в Redis: ttlAt в прошлом не должен давать вечный ключ.
	minKeyTTL = time.Second
)

// IdempotencyRepository хранит Idempotency-Key в Redis. TTL записи совпадает с TTLAt,
// поэтому просроченные ключи удаляет сам Redis.
type IdempotencyRepository struct {
	client      goredis.UniversalClient
	serviceName string
	now         func() time.Time
}

// NewClient создаёт клиент Redis по адресу host:port.
func NewClient(addr string) *goredis.Client {
	return goredis.NewClient(&goredis.Options{Addr: addr})
}

// NewIdempotencyRepository создаёт репозиторий поверх готового клиента.
func NewIdempotencyRepository(client goredis.UniversalClient, serviceName string) *IdempotencyRepository {
	if serviceName == "" {
		serviceName = "orders"
	}
	return &IdempotencyRepository{
		client:      client,
		serviceName: serviceName,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

type storedRecord struct {
	RequestHash  string                   `json:"request_hash"`
	ResponseBody []byte                   `json:"response_body,omitempty"`
	HTTPStatus   int                      `json:"http_status,omitempty"`
	Status       domain.IdempotencyStatus `json:"status"`
	TTLAt        time.Time                `json:"ttl_at"`
	CreatedAt    time.Time                `json:"created_at"`
	UpdatedAt    time.Time                `json:"updated_at"`
}

func (s storedRecord) toDomain(key string) domain.IdempotencyRecord {
	return domain.IdempotencyRecord{
		Key:          key,
		RequestHash:  s.RequestHash,
		ResponseBody: append([]byte(nil), s.ResponseBody...),
		HTTPStatus:   s.HTTPStatus,
		Status:       s.Status,
		TTLAt:        s.TTLAt,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
	}
}

// GenerateKey возвращает ключ Redis для idempotency-key запроса.
func (r *IdempotencyRepository) GenerateKey(key string) string {
	return fmt.Sprintf("%s:idempotency:%s", r.serviceName, key)
}

// CreateProcessing занимает ключ через SET NX.
func (r *IdempotencyRepository) CreateProcessing(ctx context.Context, key, requestHash string, ttlAt time.Time) (domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	requestHash = strings.TrimSpace(requestHash)
	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}
	if requestHash == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyRequestHashRequired
	}

	now := r.now()
	if ttlAt.IsZero() {
		ttlAt = now.Add(defaultIdempotencyTTL)
	}
	record := storedRecord{
		RequestHash: requestHash,
		Status:      domain.IdempotencyStatusProcessing,
		TTLAt:       ttlAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("encode idempotency record: %w", err)
	}

	ok, err := r.client.SetNX(ctx, r.GenerateKey(key), payload, keyTTL(ttlAt, now)).Result()
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("redis setnx idempotency key: %w", err)
	}
	if ok {
		return record.toDomain(key), nil
	}

	existing, err := r.Get(ctx, key)
	if err != nil {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyAlreadyExists
	}
	if existing.RequestHash != requestHash {
		return existing, domain.ErrIdempotencyHashMismatch
	}
	return existing, domain.ErrIdempotencyKeyAlreadyExists
}

// Get возвращает запись по ключу или ErrIdempotencyKeyNotFound.
func (r *IdempotencyRepository) Get(ctx context.Context, key string) (domain.IdempotencyRecord, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyRequired
	}

	raw, err := r.client.Get(ctx, r.GenerateKey(key)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return domain.IdempotencyRecord{}, domain.ErrIdempotencyKeyNotFound
	}
	if err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("redis get idempotency key: %w", err)
	}

	var stored storedRecord
	if err := json.Unmarshal(raw, &stored); err != nil {
		return domain.IdempotencyRecord{}, fmt.Errorf("decode idempotency record %s: %w", key, err)
	}
	if !stored.Status.Valid() {
		return domain.IdempotencyRecord{}, fmt.Errorf("invalid idempotency status %q for key %s", stored.Status, key)
	}
	return stored.toDomain(key), nil
}

// MarkDone сохраняет ответ успешного запроса, не продлевая TTL.
func (r *IdempotencyRepository) MarkDone(ctx context.Context, key string, responseBody []byte, httpStatus int) error {
	return r.finish(ctx, key, domain.IdempotencyStatusDone, responseBody, httpStatus)
}

// MarkFailed сохраняет ответ запроса, завершившегося ошибкой.
func (r *IdempotencyRepository) MarkFailed(ctx context.Context, key string, responseBody []byte, httpStatus int) error {
	return r.finish(ctx, key, domain.IdempotencyStatusFailed, responseBody, httpStatus)
}

func (r *IdempotencyRepository) finish(ctx context.Context, key string, status domain.IdempotencyStatus, responseBody []byte, httpStatus int) error {
	current, err := r.Get(ctx, key)
	if err != nil {
		return err
	}

	stored := storedRecord{
		RequestHash:  current.RequestHash,
		ResponseBody: responseBody,
		HTTPStatus:   httpStatus,
		Status:       status,
		TTLAt:        current.TTLAt,
		CreatedAt:    current.CreatedAt,
		UpdatedAt:    r.now(),
	}
	payload, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode idempotency record: %w", err)
	}

	// XX + KEEPTTL: обновляем только существующий ключ и не трогаем его срок жизни.
	err = r.client.SetArgs(ctx, r.GenerateKey(current.Key), payload, goredis.SetArgs{Mode: "XX", KeepTTL: true}).Err()
	if errors.Is(err, goredis.Nil) {
		return domain.ErrIdempotencyKeyNotFound
	}
	if err != nil {
		return fmt.Errorf("redis mark idempotency key %s: %w", status, err)
	}
	return nil
}

// Ping проверяет доступность Redis для health-check.
func (r *IdempotencyRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func keyTTL(ttlAt, now time.Time) time.Duration {
	ttl := ttlAt.Sub(now)
	if ttl < minKeyTTL {
		return minKeyTTL
	}
	return ttl
}

var _ domain.IdempotencyRepository = (*IdempotencyRepository)(nil)
