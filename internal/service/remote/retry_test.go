package remote

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	log "github.com/sirupsen/logrus"
)

func TestDefaultRetryConfig(t *testing.T) {
	cfg := DefaultRetryConfig()
	if cfg.MaxAttempts != 3 {
		t.Fatalf("unexpected MaxAttempts: %d", cfg.MaxAttempts)
	}
	if cfg.InitialDelay <= 0 || cfg.MaxDelay <= 0 {
		t.Fatalf("delays must be positive: %+v", cfg)
	}
	if cfg.BackoffFactor <= 1 {
		t.Fatalf("backoff factor should be > 1: %f", cfg.BackoffFactor)
	}
}

func TestRetry(t *testing.T) {
	cfg := RetryConfig{MaxAttempts: 3, InitialDelay: time.Millisecond, MaxDelay: time.Millisecond, BackoffFactor: 2}
	logger := log.New().WithField("test", "retry")

	t.Run("retry then success", func(t *testing.T) {
		attempts := 0
		err := Retry(context.Background(), cfg, logger, "op", func(context.Context) error {
			attempts++
			if attempts < 3 {
				return &StatusError{Service: "cart", StatusCode: http.StatusServiceUnavailable}
			}
			return nil
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if attempts != 3 {
			t.Fatalf("expected 3 attempts, got %d", attempts)
		}
	})

	t.Run("non-retryable status", func(t *testing.T) {
		attempts := 0
		err := Retry(context.Background(), cfg, logger, "op", func(context.Context) error {
			attempts++
			return &StatusError{Service: "catalog", StatusCode: http.StatusNotFound}
		})
		if StatusCodeOf(err) != http.StatusNotFound {
			t.Fatalf("expected 404 status error, got %v", err)
		}
		if attempts != 1 {
			t.Fatalf("expected single attempt, got %d", attempts)
		}
	})

	t.Run("timeout is not retried", func(t *testing.T) {
		attempts := 0
		_ = Retry(context.Background(), cfg, logger, "op", func(context.Context) error {
			attempts++
			return &TransportError{Service: "cart", Timeout: true, Err: context.DeadlineExceeded}
		})
		if attempts != 1 {
			t.Fatalf("expected single attempt on timeout, got %d", attempts)
		}
	})

	t.Run("exhausted", func(t *testing.T) {
		attempts := 0
		err := Retry(context.Background(), cfg, nil, "op", func(context.Context) error {
			attempts++
			return &TransportError{Service: "cart", Err: errors.New("connection refused")}
		})
		if err == nil {
			t.Fatal("expected error after exhausting attempts")
		}
		if attempts != cfg.MaxAttempts {
			t.Fatalf("expected %d attempts, got %d", cfg.MaxAttempts, attempts)
		}
	})

	t.Run("cancelled context stops waiting", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		slow := RetryConfig{MaxAttempts: 5, InitialDelay: time.Hour, BackoffFactor: 2}
		attempts := 0
		err := Retry(ctx, slow, logger, "op", func(context.Context) error {
			attempts++
			cancel()
			return &StatusError{Service: "cart", StatusCode: http.StatusBadGateway}
		})
		if err == nil || attempts != 1 {
			t.Fatalf("expected one attempt and an error, got attempts=%d err=%v", attempts, err)
		}
	})
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "connection refused", err: &TransportError{Err: errors.New("refused")}, want: true},
		{name: "timeout", err: &TransportError{Timeout: true, Err: errors.New("timeout")}, want: false},
		{name: "5xx", err: &StatusError{StatusCode: 502}, want: true},
		{name: "429", err: &StatusError{StatusCode: 429}, want: true},
		{name: "4xx", err: &StatusError{StatusCode: 400}, want: false},
		{name: "circuit open", err: ErrCircuitOpen, want: false},
		{name: "decode", err: &DecodeError{Err: errors.New("bad json")}, want: false},
		{name: "cancelled", err: context.Canceled, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRetryable(tt.err); got != tt.want {
				t.Fatalf("IsRetryable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
