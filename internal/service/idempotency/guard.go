// Package idempotency содержит общую для HTTP и gRPC логику Idempotency-Key
// и воркер очистки просроченных ключей.
package idempotency

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/kubeshop-orders/internal/domain"
)

// DefaultTTL — сколько живёт сохранённый ответ.
const DefaultTTL = 24 * time.Hour

// ErrRequestInProgress — запрос с тем же ключом ещё выполняется.
var ErrRequestInProgress = fmt.Errorf("%w: request with the same key is still processing", domain.ErrIdempotencyKeyAlreadyExists)

// Guard занимает ключ перед выполнением запроса и сохраняет его результат.
type Guard struct {
	repo   domain.IdempotencyRepository
	ttl    time.Duration
	now    func() time.Time
	logger *log.Entry
}

// NewGuard создаёт Guard. ttl <= 0 заменяется на DefaultTTL.
func NewGuard(repo domain.IdempotencyRepository, ttl time.Duration, logger *log.Entry) *Guard {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if logger == nil {
		logger = log.New().WithField("component", "idempotency")
	}
	return &Guard{
		repo:   repo,
		ttl:    ttl,
		now:    func() time.Time { return time.Now().UTC() },
		logger: logger,
	}
}

// Begin занимает ключ. Если запрос с этим ключом уже завершён, возвращает его
// запись и replay=true: вызывающий должен отдать сохранённый ответ без выполнения.
// Для занятого ключа возвращается ErrRequestInProgress, для чужого тела
// ErrIdempotencyHashMismatch.
func (g *Guard) Begin(ctx context.Context, key, requestHash string) (record domain.IdempotencyRecord, replay bool, err error) {
	record, err = g.repo.CreateProcessing(ctx, key, requestHash, g.now().Add(g.ttl))
	switch {
	case err == nil:
		return record, false, nil
	case errors.Is(err, domain.ErrIdempotencyHashMismatch):
		return domain.IdempotencyRecord{}, false, err
	case errors.Is(err, domain.ErrIdempotencyKeyAlreadyExists):
		if record.Finished() {
			return record, true, nil
		}
		return domain.IdempotencyRecord{}, false, ErrRequestInProgress
	default:
		g.logger.WithError(err).WithField("idempotency_key", key).Warn("failed to create idempotency record")
		return domain.IdempotencyRecord{}, false, err
	}
}

// Complete сохраняет ответ. done=false помечает запись как завершённую ошибкой.
// Ошибка хранилища только логируется: ответ клиенту уже определён.
func (g *Guard) Complete(ctx context.Context, key string, done bool, body []byte, status int) {
	ctx = context.WithoutCancel(ctx)

	var err error
	if done {
		err = g.repo.MarkDone(ctx, key, body, status)
	} else {
		err = g.repo.MarkFailed(ctx, key, body, status)
	}
	if err != nil {
		g.logger.WithError(err).WithFields(log.Fields{
			"idempotency_key": key,
			"done":            done,
		}).Warn("failed to store idempotent response")
	}
}

// RequestHash строит отпечаток запроса: метод плюс каноничное тело.
func RequestHash(method string, payload []byte) string {
	data := make([]byte, 0, len(method)+1+len(payload))
	data = append(data, method...)
	data = append(data, ':')
	data = append(data, payload...)
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// NormalizeKey обрезает пробелы; пустой ключ означает, что идемпотентность не запрошена.
func NormalizeKey(key string) string {
	return strings.TrimSpace(key)
}
