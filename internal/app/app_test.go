package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"

	healthcheck "github.com/vladislavdragonenkov/kubeshop-orders/internal/health"
)

// fakeShop изображает сервисы корзины, каталога, платежей и уведомлений.
type fakeShop struct {
	charges  atomic.Int32
	clears   atomic.Int32
	notifies atomic.Int32
	lastPay  atomic.Value
}

func newFakeShop(t *testing.T) (*fakeShop, *httptest.Server) {
	t.Helper()
	shop := &fakeShop{}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /cart/{userId}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("userId") != "u-1" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = io.WriteString(w, `[{"product_id": 7, "quantity": 2}]`)
	})
	mux.HandleFunc("DELETE /cart/{userId}/clear", func(w http.ResponseWriter, _ *http.Request) {
		shop.clears.Add(1)
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("GET /products/{id}", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"id": 7, "name": "Mug", "description": "", "price": 10.00, "stock": 5}`)
	})
	mux.HandleFunc("POST /process", func(w http.ResponseWriter, r *http.Request) {
		shop.charges.Add(1)
		body, _ := io.ReadAll(r.Body)
		shop.lastPay.Store(string(body))
		_, _ = io.WriteString(w, `{"status": "paid"}`)
	})
	mux.HandleFunc("POST /notify", func(w http.ResponseWriter, _ *http.Request) {
		shop.notifies.Add(1)
		w.WriteHeader(http.StatusOK)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return shop, srv
}

func testConfig(shopURL string) Config {
	cfg := DefaultConfig()
	cfg.CartURL = shopURL
	cfg.CatalogURL = shopURL
	cfg.PaymentURL = shopURL
	cfg.NotificationURL = shopURL
	cfg.ClientTimeout = 2 * time.Second
	cfg.StepTimeout = 2 * time.Second
	return cfg
}

func newTestApplication(t *testing.T, cfg Config) *application {
	t.Helper()
	a, err := newApplication(context.Background(), cfg, log.WithField("test", t.Name()))
	if err != nil {
		t.Fatalf("newApplication failed: %v", err)
	}
	t.Cleanup(a.close)
	return a
}

func TestApplication_CreateAndGetOrderOverHTTP(t *testing.T) {
	shop, srv := newFakeShop(t)
	a := newTestApplication(t, testConfig(srv.URL))

	req := httptest.NewRequest(http.MethodPost, "/orders/create", bytes.NewBufferString(`{"userId":"u-1"}`))
	w := httptest.NewRecorder()
	a.httpHandler.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		OrderID     string      `json:"orderId"`
		TotalAmount json.Number `json:"totalAmount"`
		Status      string      `json:"status"`
	}
	if err := json.NewDecoder(w.Body).Decode(&created); err != nil {
		t.Fatalf("decode create response: %v", err)
	}
	if created.TotalAmount.String() != "20.00" {
		t.Fatalf("expected total 20.00, got %s", created.TotalAmount)
	}
	if shop.charges.Load() != 1 || shop.clears.Load() != 1 || shop.notifies.Load() != 1 {
		t.Fatalf("unexpected collaborator calls: charge=%d clear=%d notify=%d",
			shop.charges.Load(), shop.clears.Load(), shop.notifies.Load())
	}
	if got, _ := shop.lastPay.Load().(string); !bytes.Contains([]byte(got), []byte(`"amount":20`)) {
		t.Fatalf("payment must receive exact amount, got %s", got)
	}

	w = httptest.NewRecorder()
	a.httpHandler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/orders/"+created.OrderID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 on get, got %d: %s", w.Code, w.Body.String())
	}
}

func TestApplication_EmptyCartDoesNotCharge(t *testing.T) {
	shop, srv := newFakeShop(t)
	a := newTestApplication(t, testConfig(srv.URL))

	w := httptest.NewRecorder()
	a.httpHandler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/orders/create", bytes.NewBufferString(`{"userId":"u-404"}`)))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for empty cart, got %d: %s", w.Code, w.Body.String())
	}
	if shop.charges.Load() != 0 {
		t.Fatal("empty cart must not reach payment")
	}
}

func TestApplication_HealthChecks(t *testing.T) {
	_, srv := newFakeShop(t)
	a := newTestApplication(t, testConfig(srv.URL))

	mux := newMetricsMux(a.healthHandler)

	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 from /healthz, got %d", w.Code)
	}
	var resp healthcheck.Response
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode health response: %v", err)
	}
	if resp.Status != healthcheck.StatusHealthy {
		t.Fatalf("expected healthy, got %s", resp.Status)
	}
	for _, name := range []string{"order_store", "cart_breaker", "catalog_breaker", "payment_breaker", "notification_breaker"} {
		if _, ok := resp.Checks[name]; !ok {
			t.Errorf("missing check %s in %v", name, resp.Checks)
		}
	}

	for _, path := range []string{"/livez", "/readyz", "/metrics"} {
		w = httptest.NewRecorder()
		mux.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		if w.Code != http.StatusOK {
			t.Errorf("expected 200 from %s, got %d", path, w.Code)
		}
	}
}

func TestApplication_KafkaNotifyWithoutBrokersFallsBackToHTTP(t *testing.T) {
	shop, srv := newFakeShop(t)
	cfg := testConfig(srv.URL)
	cfg.NotifyTransport = NotifyTransportKafka
	a := newTestApplication(t, cfg)

	if _, ok := a.clients.breakers["notification"]; !ok {
		t.Fatal("http notification client expected when kafka is unavailable")
	}

	w := httptest.NewRecorder()
	a.httpHandler.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/orders/create", bytes.NewBufferString(`{"userId":"u-1"}`)))
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", w.Code)
	}
	if shop.notifies.Load() != 1 {
		t.Fatalf("expected http notification, got %d", shop.notifies.Load())
	}
}

func TestApplication_CleanupWorkerForMemoryKeys(t *testing.T) {
	_, srv := newFakeShop(t)
	a := newTestApplication(t, testConfig(srv.URL))

	if a.cleanup == nil {
		t.Fatal("cleanup worker expected for memory idempotency store")
	}
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	_, srv := newFakeShop(t)
	cfg := testConfig(srv.URL)
	cfg.HTTPAddr = "127.0.0.1:0"
	cfg.GRPCAddr = "127.0.0.1:0"
	cfg.MetricsAddr = "127.0.0.1:0"

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != context.Canceled {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not stop after cancel")
	}
}
