// Package notification — клиент сервиса уведомлений.
package notification

import (
	"context"
	"net/http"

	"github.com/vladislavdragonenkov/kubeshop-orders/internal/domain"
	"github.com/vladislavdragonenkov/kubeshop-orders/internal/service/remote"
)

// Client отправляет уведомления через POST /notify.
type Client struct {
	remote *remote.Client
}

// NewClient создаёт HTTP-клиент уведомлений.
func NewClient(rc *remote.Client) *Client {
	return &Client{remote: rc}
}

type notifyRequest struct {
	UserID  string `json:"userId"`
	Message string `json:"message"`
}

// Notify отправляет уведомление. Не повторяется.
func (c *Client) Notify(ctx context.Context, userID, message string) error {
	_, err := c.remote.Do(ctx, http.MethodPost, "/notify", notifyRequest{UserID: userID, Message: message}, nil)
	return remote.Downstream(domain.ServiceNotification, err)
}

var _ domain.NotificationClient = (*Client)(nil)
