package payment

import (
	"context"
	"net/http"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/kubeshop-orders/internal/domain"
)

// Charge — зафиксированный вызов списания.
type Charge struct {
	UserID string
	Amount decimal.Decimal
}

// MockService — конфигурируемая заглушка PaymentClient для тестов.
type MockService struct {
	mu sync.Mutex

	Result    domain.PaymentResult
	ChargeErr error

	Charges []Charge
}

// NewMockService возвращает mock с успешным сценарием по умолчанию.
func NewMockService() *MockService {
	return &MockService{
		Result: domain.PaymentResult{Success: true, StatusCode: http.StatusOK, Message: "payment successful"},
	}
}

// Decline настраивает отказ провайдера с указанным статусом.
func (m *MockService) Decline(statusCode int, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Result = domain.PaymentResult{Success: false, StatusCode: statusCode, Message: message}
}

// Charge запоминает вызов и возвращает настроенный результат.
func (m *MockService) Charge(_ context.Context, userID string, amount decimal.Decimal) (domain.PaymentResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Charges = append(m.Charges, Charge{UserID: userID, Amount: amount})
	if m.ChargeErr != nil {
		return domain.PaymentResult{}, m.ChargeErr
	}
	return m.Result, nil
}

// ChargeCalls возвращает число вызовов Charge.
func (m *MockService) ChargeCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Charges)
}

var _ domain.PaymentClient = (*MockService)(nil)
