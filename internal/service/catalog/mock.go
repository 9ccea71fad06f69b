package catalog

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/kubeshop-orders/internal/domain"
)

// MockService — конфигурируемая заглушка CatalogClient.
type MockService struct {
	mu sync.Mutex

	Products map[int64]domain.Product
	// Errs задаёт ошибку для конкретного товара.
	Errs map[int64]error

	GetCalls int
}

// NewMockService возвращает mock с пустым каталогом.
func NewMockService() *MockService {
	return &MockService{
		Products: make(map[int64]domain.Product),
		Errs:     make(map[int64]error),
	}
}

// SetProduct добавляет или заменяет товар.
func (m *MockService) SetProduct(p domain.Product) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Products[p.ProductID] = p
}

// FailProduct заставляет GetProduct(productID) вернуть err.
func (m *MockService) FailProduct(productID int64, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errs[productID] = err
}

// GetProduct возвращает товар, ErrProductNotFound или настроенную ошибку.
func (m *MockService) GetProduct(_ context.Context, productID int64) (domain.Product, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetCalls++
	if err := m.Errs[productID]; err != nil {
		return domain.Product{}, err
	}
	p, ok := m.Products[productID]
	if !ok {
		return domain.Product{}, domain.ErrProductNotFound
	}
	return p, nil
}

// Calls возвращает число вызовов GetProduct.
func (m *MockService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.GetCalls
}

var _ domain.CatalogClient = (*MockService)(nil)
