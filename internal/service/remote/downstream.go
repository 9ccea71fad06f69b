package remote

import (
	"errors"
	"fmt"

	"github.com/vladislavdragonenkov/kubeshop-orders/internal/domain"
)

// ErrMalformedResponse — ответ разобран, но нарушает контракт сервиса.
var ErrMalformedResponse = errors.New("malformed response")

// Downstream оборачивает ошибку вызова в domain.DownstreamError для сервиса service.
func Downstream(service string, err error) error {
	if err == nil {
		return nil
	}
	var de *domain.DownstreamError
	if errors.As(err, &de) {
		return err
	}
	return &domain.DownstreamError{Service: service, Err: err}
}

// Malformed сообщает о нарушении контракта ответа как о недоступности сервиса.
func Malformed(service, format string, args ...interface{}) error {
	return &domain.DownstreamError{
		Service: service,
		Err:     fmt.Errorf("%w: %s", ErrMalformedResponse, fmt.Sprintf(format, args...)),
	}
}
