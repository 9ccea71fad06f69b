// Package catalog — клиент сервиса каталога товаров.
package catalog

import (
	"context"
	"net/http"
	"strconv"

	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/kubeshop-orders/internal/domain"
	"github.com/vladislavdragonenkov/kubeshop-orders/internal/service/remote"
)

// Client читает товары из каталога по HTTP.
type Client struct {
	remote *remote.Client
	retry  remote.RetryConfig
	logger *log.Entry
}

// NewClient создаёт клиент каталога.
func NewClient(rc *remote.Client, retry remote.RetryConfig, logger *log.Entry) *Client {
	if logger == nil {
		logger = log.New().WithField("component", "catalog-client")
	}
	return &Client{remote: rc, retry: retry, logger: logger}
}

// productDTO — товар в формате каталога. Цена приходит числом или строкой.
type productDTO struct {
	ID          *int64           `json:"id"`
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"`
}

// GetProduct возвращает товар или domain.ErrProductNotFound.
func (c *Client) GetProduct(ctx context.Context, productID int64) (domain.Product, error) {
	var dto productDTO
	err := remote.Retry(ctx, c.retry, c.logger, "get_product", func(ctx context.Context) error {
		dto = productDTO{}
		_, err := c.remote.Do(ctx, http.MethodGet, "/products/"+strconv.FormatInt(productID, 10), nil, &dto)
		return err
	})
	if remote.StatusCodeOf(err) == http.StatusNotFound {
		return domain.Product{}, domain.ErrProductNotFound
	}
	if err != nil {
		return domain.Product{}, remote.Downstream(domain.ServiceCatalog, err)
	}

	switch {
	case dto.ID != nil && *dto.ID != productID:
		return domain.Product{}, remote.Malformed(domain.ServiceCatalog, "requested product %d, got %d", productID, *dto.ID)
	case dto.Price == nil:
		return domain.Product{}, remote.Malformed(domain.ServiceCatalog, "product %d has no price", productID)
	case dto.Price.IsNegative():
		return domain.Product{}, remote.Malformed(domain.ServiceCatalog, "product %d has negative price %s", productID, dto.Price)
	case dto.Stock == nil:
		return domain.Product{}, remote.Malformed(domain.ServiceCatalog, "product %d has no stock", productID)
	case *dto.Stock < 0:
		return domain.Product{}, remote.Malformed(domain.ServiceCatalog, "product %d has negative stock %d", productID, *dto.Stock)
	}

	return domain.Product{
		ProductID: productID,
		Name:      dto.Name,
		Price:     *dto.Price,
		Stock:     *dto.Stock,
	}, nil
}

var _ domain.CatalogClient = (*Client)(nil)
