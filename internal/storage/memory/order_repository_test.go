package memory_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vladislavdragonenkov/kubeshop-orders/internal/domain"
	"github.com/vladislavdragonenkov/kubeshop-orders/internal/storage/memory"
)

func newOrder(id string) domain.Order {
	return domain.Order{
		ID:          id,
		UserID:      "user-1",
		TotalAmount: decimal.RequireFromString("25.00"),
		Status:      domain.OrderStatusPaid,
		CreatedAt:   time.Now().UTC(),
		Items: []domain.OrderItem{
			{OrderID: id, ProductID: 1, Quantity: 2, UnitPrice: decimal.RequireFromString("10.00")},
			{OrderID: id, ProductID: 2, Quantity: 1, UnitPrice: decimal.RequireFromString("5.00")},
		},
	}
}

func TestOrderRepository_CreateGet(t *testing.T) {
	repo := memory.NewOrderRepository()
	order := newOrder("order-1")

	if _, err := repo.Create(context.Background(), order); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	stored, err := repo.Get(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.ID != order.ID {
		t.Fatalf("expected id %s, got %s", order.ID, stored.ID)
	}
	if len(stored.Items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(stored.Items))
	}
	if !stored.TotalAmount.Equal(order.TotalAmount) {
		t.Fatalf("expected total %s, got %s", order.TotalAmount, stored.TotalAmount)
	}
}

func TestOrderRepository_GetUnknown(t *testing.T) {
	repo := memory.NewOrderRepository()

	if _, err := repo.Get(context.Background(), "missing"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestOrderRepository_DuplicateID(t *testing.T) {
	repo := memory.NewOrderRepository()
	order := newOrder("order-1")

	if _, err := repo.Create(context.Background(), order); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if _, err := repo.Create(context.Background(), order); !errors.Is(err, domain.ErrOrderAlreadyExists) {
		t.Fatalf("expected ErrOrderAlreadyExists, got %v", err)
	}
}

func TestOrderRepository_StoredCopyIsIsolated(t *testing.T) {
	repo := memory.NewOrderRepository()
	order := newOrder("order-1")

	if _, err := repo.Create(context.Background(), order); err != nil {
		t.Fatalf("create failed: %v", err)
	}
	order.Items[0].Quantity = 99

	stored, err := repo.Get(context.Background(), order.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if stored.Items[0].Quantity != 2 {
		t.Fatalf("stored item mutated from outside: %+v", stored.Items[0])
	}
}

func TestOrderRepository_FailNextCreateLeavesNothing(t *testing.T) {
	repo := memory.NewOrderRepository()
	repo.FailNextCreate(errors.New("disk full"))

	if _, err := repo.Create(context.Background(), newOrder("order-1")); err == nil {
		t.Fatal("expected injected error")
	}
	if repo.Len() != 0 {
		t.Fatalf("expected no orders after failed create, got %d", repo.Len())
	}
	if _, err := repo.Get(context.Background(), "order-1"); !errors.Is(err, domain.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}

	// Внедрённая ошибка одноразовая.
	if _, err := repo.Create(context.Background(), newOrder("order-1")); err != nil {
		t.Fatalf("second create failed: %v", err)
	}
}

func TestOrderRepository_Ping(t *testing.T) {
	repo := memory.NewOrderRepository()
	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}

	repo.FailPing(errors.New("down"))
	if err := repo.Ping(context.Background()); err == nil {
		t.Fatal("expected ping error")
	}
}

func TestOrderRepository_ConcurrentReadersSeeWholeOrders(t *testing.T) {
	repo := memory.NewOrderRepository()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		id := fmt.Sprintf("order-%d", i)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = repo.Create(ctx, newOrder(id))
		}()
		go func() {
			defer wg.Done()
			order, err := repo.Get(ctx, id)
			if err == nil && len(order.Items) != 2 {
				t.Errorf("observed partial order %s with %d items", id, len(order.Items))
			}
		}()
	}
	wg.Wait()
}
