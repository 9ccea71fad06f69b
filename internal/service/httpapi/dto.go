package httpapi

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/kubeshop-orders/internal/domain"
)

// CreateOrderRequest — тело POST /orders/create.
type CreateOrderRequest struct {
	UserID string `json:"userId"`
}

// CreateOrderResponse — ответ на успешное создание заказа.
type CreateOrderResponse struct {
	OrderID     string      `json:"orderId"`
	TotalAmount json.Number `json:"totalAmount"`
	Status      string      `json:"status"`
}

// OrderResponse — заказ с позициями для GET /orders/{orderId}.
type OrderResponse struct {
	OrderID     string              `json:"orderId"`
	UserID      string              `json:"userId"`
	TotalAmount json.Number         `json:"totalAmount"`
	Status      string              `json:"status"`
	CreatedAt   string              `json:"createdAt"`
	Items       []OrderItemResponse `json:"items"`
}

// OrderItemResponse — позиция заказа.
type OrderItemResponse struct {
	ProductID int64       `json:"productId"`
	Quantity  int         `json:"quantity"`
	UnitPrice json.Number `json:"unitPrice"`
}

// ErrorResponse — тело любой ошибки.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

func mapCreated(order domain.Order) CreateOrderResponse {
	return CreateOrderResponse{
		OrderID:     order.ID,
		TotalAmount: money(order.TotalAmount),
		Status:      string(order.Status),
	}
}

func mapOrder(order domain.Order) OrderResponse {
	items := make([]OrderItemResponse, len(order.Items))
	for i, it := range order.Items {
		items[i] = OrderItemResponse{
			ProductID: it.ProductID,
			Quantity:  it.Quantity,
			UnitPrice: money(it.UnitPrice),
		}
	}
	return OrderResponse{
		OrderID:     order.ID,
		UserID:      order.UserID,
		TotalAmount: money(order.TotalAmount),
		Status:      string(order.Status),
		CreatedAt:   order.CreatedAt.UTC().Format(time.RFC3339Nano),
		Items:       items,
	}
}

func money(d decimal.Decimal) json.Number {
	return json.Number(domain.FormatAmount(d))
}
