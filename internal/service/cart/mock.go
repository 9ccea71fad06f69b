package cart

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/kubeshop-orders/internal/domain"
)

// MockService — конфигурируемая заглушка CartClient для тестов и локального запуска.
type MockService struct {
	mu sync.Mutex

	Carts    map[string][]domain.CartItem
	GetErr   error
	ClearErr error

	GetCalls   int
	ClearCalls int
}

// NewMockService возвращает mock с пустыми корзинами.
func NewMockService() *MockService {
	return &MockService{Carts: make(map[string][]domain.CartItem)}
}

// SetCart задаёт корзину пользователя.
func (m *MockService) SetCart(userID string, items ...domain.CartItem) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Carts[userID] = append([]domain.CartItem(nil), items...)
}

// GetCart возвращает копию корзины и считает вызовы.
func (m *MockService) GetCart(_ context.Context, userID string) ([]domain.CartItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls++
	if m.GetErr != nil {
		return nil, m.GetErr
	}
	return append([]domain.CartItem(nil), m.Carts[userID]...), nil
}

// ClearCart очищает корзину, если не настроена ошибка.
func (m *MockService) ClearCart(_ context.Context, userID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ClearCalls++
	if m.ClearErr != nil {
		return m.ClearErr
	}
	delete(m.Carts, userID)
	return nil
}

// Calls возвращает счётчики вызовов без гонок.
func (m *MockService) Calls() (gets, clears int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.GetCalls, m.ClearCalls
}

var _ domain.CartClient = (*MockService)(nil)
