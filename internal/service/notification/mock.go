package notification

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/kubeshop-orders/internal/domain"
)

// Sent — отправленное уведомление.
type Sent struct {
	UserID  string
	Message string
}

// MockService — заглушка NotificationClient, запоминающая уведомления.
type MockService struct {
	mu sync.Mutex

	NotifyErr error
	Sent      []Sent
	calls     int
}

// NewMockService возвращает mock с успешным сценарием.
func NewMockService() *MockService {
	return &MockService{}
}

// Notify запоминает уведомление или возвращает настроенную ошибку.
func (m *MockService) Notify(_ context.Context, userID, message string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.NotifyErr != nil {
		return m.NotifyErr
	}
	m.Sent = append(m.Sent, Sent{UserID: userID, Message: message})
	return nil
}

// Calls возвращает число вызовов Notify, включая неуспешные.
func (m *MockService) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

var _ domain.NotificationClient = (*MockService)(nil)
