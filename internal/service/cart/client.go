// Package cart — клиент сервиса корзины.
package cart

import (
	"context"
	"net/http"
	"net/url"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/kubeshop-orders/internal/domain"
	"github.com/vladislavdragonenkov/kubeshop-orders/internal/service/remote"
)

// Client ходит в сервис корзины по HTTP.
type Client struct {
	remote *remote.Client
	retry  remote.RetryConfig
	logger *log.Entry
}

// NewClient создаёт клиент. retry применяется только к GetCart.
func NewClient(rc *remote.Client, retry remote.RetryConfig, logger *log.Entry) *Client {
	if logger == nil {
		logger = log.New().WithField("component", "cart-client")
	}
	return &Client{remote: rc, retry: retry, logger: logger}
}

type cartRow struct {
	ProductID *int64 `json:"product_id"`
	Quantity  *int   `json:"quantity"`
}

// GetCart возвращает позиции корзины. 404 означает, что корзины нет: это пустой срез.
func (c *Client) GetCart(ctx context.Context, userID string) ([]domain.CartItem, error) {
	var rows []cartRow
	err := remote.Retry(ctx, c.retry, c.logger, "get_cart", func(ctx context.Context) error {
		rows = nil
		_, err := c.remote.Do(ctx, http.MethodGet, "/cart/"+url.PathEscape(userID), nil, &rows)
		return err
	})
	if remote.StatusCodeOf(err) == http.StatusNotFound {
		return []domain.CartItem{}, nil
	}
	if err != nil {
		return nil, remote.Downstream(domain.ServiceCart, err)
	}

	items := make([]domain.CartItem, 0, len(rows))
	for i, row := range rows {
		if row.ProductID == nil || *row.ProductID <= 0 {
			return nil, remote.Malformed(domain.ServiceCart, "row %d: product_id must be positive", i)
		}
		if row.Quantity == nil || *row.Quantity <= 0 {
			return nil, remote.Malformed(domain.ServiceCart, "row %d: quantity must be positive for product %d", i, *row.ProductID)
		}
		items = append(items, domain.CartItem{ProductID: *row.ProductID, Quantity: *row.Quantity})
	}
	return items, nil
}

// ClearCart очищает корзину. Не повторяется.
func (c *Client) ClearCart(ctx context.Context, userID string) error {
	_, err := c.remote.Do(ctx, http.MethodDelete, "/cart/"+url.PathEscape(userID)+"/clear", nil, nil)
	return remote.Downstream(domain.ServiceCart, err)
}

var _ domain.CartClient = (*Client)(nil)
