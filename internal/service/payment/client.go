// Package payment — клиент платёжного сервиса.
package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/kubeshop-orders/internal/domain"
	"github.com/vladislavdragonenkov/kubeshop-orders/internal/service/remote"
)

// Client списывает деньги через платёжный сервис. Списание никогда не повторяется.
type Client struct {
	remote *remote.Client
	logger *log.Entry
}

// NewClient создаёт платёжный клиент.
func NewClient(rc *remote.Client, logger *log.Entry) *Client {
	if logger == nil {
		logger = log.New().WithField("component", "payment-client")
	}
	return &Client{remote: rc, logger: logger}
}

type chargeRequest struct {
	UserID string      `json:"userId"`
	Amount json.Number `json:"amount"`
}

type chargeResponse struct {
	Status string `json:"status"`
}

// Charge отправляет POST /process. Отказ провайдера (не-2xx) возвращается как
// PaymentResult{Success: false}; ошибка означает, что ответа не было.
func (c *Client) Charge(ctx context.Context, userID string, amount decimal.Decimal) (domain.PaymentResult, error) {
	req := chargeRequest{UserID: userID, Amount: json.Number(amount.String())}

	var resp chargeResponse
	status, err := c.remote.Do(ctx, http.MethodPost, "/process", req, &resp)

	var se *remote.StatusError
	var de *remote.DecodeError
	switch {
	case err == nil:
		return domain.PaymentResult{Success: true, StatusCode: status, Message: resp.Status}, nil
	case errors.As(err, &se):
		return domain.PaymentResult{Success: false, StatusCode: se.StatusCode, Message: se.Body}, nil
	case errors.As(err, &de):
		// 2xx уже получен: деньги списаны, непонятен только текст ответа.
		c.logger.WithError(err).WithField("user_id", userID).Warn("payment succeeded with unreadable body")
		return domain.PaymentResult{Success: true, StatusCode: status}, nil
	case errors.Is(err, remote.ErrCircuitOpen):
		// Запрос не отправлялся, списания точно не было.
		return domain.PaymentResult{}, &domain.PaymentError{
			Message: "payment service circuit is open",
			Err:     remote.Downstream(domain.ServicePayment, err),
		}
	default:
		return domain.PaymentResult{}, &domain.PaymentError{
			Message:       "no response from payment service",
			Indeterminate: true,
			Err:           remote.Downstream(domain.ServicePayment, err),
		}
	}
}

var _ domain.PaymentClient = (*Client)(nil)
