package memory

import (
	"context"
	"sync"

	"github.com/vladislavdragonenkov/kubeshop-orders/internal/domain"
)

// OrderRepository — in-memory реализация domain.OrderRepository.
// Заказ и его позиции публикуются под одной блокировкой, поэтому Get никогда не
// увидит заказ без позиций.
type OrderRepository struct {
	mu     sync.RWMutex
	orders map[string]domain.Order

	// Внедрение отказов для тестов: следующая операция вернёт ошибку.
	failMu     sync.Mutex
	createErrs []error
	pingErr    error
}

// NewOrderRepository возвращает in-memory репозиторий для локальной разработки и тестов.
func NewOrderRepository() *OrderRepository {
	return &OrderRepository{
		orders: make(map[string]domain.Order),
	}
}

// Create сохраняет заказ вместе с позициями, если ID ещё не занят.
func (r *OrderRepository) Create(ctx context.Context, order domain.Order) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}
	if err := r.takeCreateErr(); err != nil {
		return domain.Order{}, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.orders[order.ID]; exists {
		return domain.Order{}, domain.ErrOrderAlreadyExists
	}
	// Храним копию, чтобы вызывающий код не мог мутировать сохранённые позиции.
	stored := cloneOrder(order)
	r.orders[order.ID] = stored
	return cloneOrder(stored), nil
}

// Get возвращает заказ или ErrOrderNotFound, если его нет.
func (r *OrderRepository) Get(ctx context.Context, id string) (domain.Order, error) {
	if err := ctx.Err(); err != nil {
		return domain.Order{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	order, ok := r.orders[id]
	if !ok {
		return domain.Order{}, domain.ErrOrderNotFound
	}
	return cloneOrder(order), nil
}

// Ping возвращает ошибку, выставленную через FailPing, иначе nil.
func (r *OrderRepository) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.failMu.Lock()
	defer r.failMu.Unlock()
	return r.pingErr
}

// Len возвращает количество сохранённых заказов.
func (r *OrderRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.orders)
}

// FailNextCreate заставляет следующий Create вернуть err, ничего не записав.
func (r *OrderRepository) FailNextCreate(err error) {
	r.failMu.Lock()
	defer r.failMu.Unlock()
	r.createErrs = append(r.createErrs, err)
}

// FailPing заставляет Ping возвращать err, пока не будет вызван FailPing(nil).
func (r *OrderRepository) FailPing(err error) {
	r.failMu.Lock()
	defer r.failMu.Unlock()
	r.pingErr = err
}

func (r *OrderRepository) takeCreateErr() error {
	r.failMu.Lock()
	defer r.failMu.Unlock()
	if len(r.createErrs) == 0 {
		return nil
	}
	err := r.createErrs[0]
	r.createErrs = r.createErrs[1:]
	return err
}

func cloneOrder(src domain.Order) domain.Order {
	dst := src
	dst.Items = append([]domain.OrderItem(nil), src.Items...)
	return dst
}

var _ domain.OrderRepository = (*OrderRepository)(nil)
