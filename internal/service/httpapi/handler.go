// Package httpapi — HTTP-граница сервиса заказов.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/kubeshop-orders/internal/domain"
	"github.com/vladislavdragonenkov/kubeshop-orders/internal/service/idempotency"
	"github.com/vladislavdragonenkov/kubeshop-orders/internal/service/saga"
)

const (
	// HeaderIdempotencyKey — необязательный ключ идемпотентности создания заказа.
	HeaderIdempotencyKey = "Idempotency-Key"
	// HeaderIdempotentReplay выставляется, если ответ взят из кэша.
	HeaderIdempotentReplay = "Idempotent-Replayed"

	createOrderMethod = "POST /orders/create"
	maxBodyBytes      = 1 << 20
)

// Handler переводит HTTP-запросы в вызовы оркестратора.
type Handler struct {
	orders saga.Orchestrator
	guard  *idempotency.Guard
	logger *log.Entry
}

// NewHandler создаёт обработчик. guard может быть nil: тогда Idempotency-Key игнорируется.
func NewHandler(orders saga.Orchestrator, guard *idempotency.Guard, logger *log.Entry) *Handler {
	if logger == nil {
		logger = log.New().WithField("component", "http")
	}
	return &Handler{orders: orders, guard: guard, logger: logger}
}

// CreateOrder обрабатывает POST /orders/create.
func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req CreateOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   string(domain.KindInvalidRequest),
			Message: err.Error(),
		})
		return
	}
	req.UserID = strings.TrimSpace(req.UserID)

	key := idempotency.NormalizeKey(r.Header.Get(HeaderIdempotencyKey))
	if key == "" || h.guard == nil {
		status, body := h.createOrder(r, req)
		writeJSON(w, status, body)
		return
	}

	canonical, err := json.Marshal(req)
	if err != nil {
		writeError(w, err)
		return
	}
	record, replay, err := h.guard.Begin(r.Context(), key, idempotency.RequestHash(createOrderMethod, canonical))
	if err != nil {
		writeError(w, err)
		return
	}
	if replay {
		w.Header().Set(HeaderIdempotentReplay, "true")
		writeRaw(w, record.HTTPStatus, record.ResponseBody)
		return
	}

	status, body := h.createOrder(r, req)
	data, err := json.Marshal(body)
	if err != nil {
		writeError(w, err)
		return
	}
	h.guard.Complete(r.Context(), key, status < http.StatusBadRequest, data, status)
	writeRaw(w, status, data)
}

func (h *Handler) createOrder(r *http.Request, req CreateOrderRequest) (int, interface{}) {
	order, err := h.orders.CreateOrder(r.Context(), req.UserID)
	if err != nil {
		if errors.Is(err, domain.ErrReconciliationHazard) {
			h.logger.WithError(err).WithField("user_id", req.UserID).Error("create order left a reconciliation hazard")
		}
		return errorBody(err)
	}
	return http.StatusCreated, mapCreated(order)
}

// GetOrder обрабатывает GET /orders/{orderId}.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "orderId"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, mapOrder(order))
}

func decodeJSON(r *http.Request, out interface{}) error {
	if r.Body == nil {
		return errors.New("request body is required")
	}
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return fmt.Errorf("invalid json: %w", err)
	}
	return nil
}

func writeError(w http.ResponseWriter, err error) {
	status, body := errorBody(err)
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, status int, body []byte) {
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
