package httpapi

import (
	"net/http"

	"github.com/vladislavdragonenkov/kubeshop-orders/internal/domain"
)

// StatusForKind возвращает HTTP-статус для вида ошибки.
func StatusForKind(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindInvalidRequest, domain.KindEmptyCart:
		return http.StatusBadRequest
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInsufficientStock, domain.KindConflict:
		return http.StatusConflict
	case domain.KindPaymentFailed:
		return http.StatusPaymentRequired
	case domain.KindDownstreamUnavailable:
		return http.StatusBadGateway
	case domain.KindPersistenceFailed:
		return http.StatusServiceUnavailable
	default:
		// reconciliation_hazard тоже 500, но с собственным кодом в теле.
		return http.StatusInternalServerError
	}
}

// errorBody строит тело ответа. Внутренние ошибки не раскрываются клиенту.
func errorBody(err error) (int, ErrorResponse) {
	kind := domain.KindOf(err)
	status := StatusForKind(kind)
	if kind == domain.KindInternal {
		return status, ErrorResponse{Error: string(kind), Message: "internal error"}
	}
	return status, ErrorResponse{Error: string(kind), Message: err.Error()}
}
