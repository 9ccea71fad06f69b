// Package remote содержит общий транспорт для вызовов соседних сервисов
// по JSON поверх HTTP: таймауты, circuit breaker и повторы для чтений.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	// DefaultTimeout — таймаут одного HTTP-вызова, если не задан явно.
	DefaultTimeout = 5 * time.Second
	maxErrorBody   = 4 << 10
)

// StatusError — сервис ответил не-2xx кодом.
type StatusError struct {
	Service    string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s responded with status %d", e.Service, e.StatusCode)
	}
	return fmt.Sprintf("%s responded with status %d: %s", e.Service, e.StatusCode, e.Body)
}

// TransportError — ответа не было: соединение, DNS, таймаут.
type TransportError struct {
	Service string
	Timeout bool
	Err     error
}

func (e *TransportError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s call timed out: %v", e.Service, e.Err)
	}
	return fmt.Sprintf("%s call failed: %v", e.Service, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError — тело ответа не удалось разобрать.
type DecodeError struct {
	Service string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s response: %v", e.Service, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// StatusCodeOf возвращает HTTP-код из StatusError или 0.
func StatusCodeOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode
	}
	return 0
}

// Client вызывает один сервис. Все запросы проходят через его circuit breaker.
type Client struct {
	service string
	baseURL string
	http    *http.Client
	breaker   *CircuitBreaker
	userAgent string
	logger    *log.Entry
}

// Option настраивает Client.
type Option func(*Client)

// WithHTTPClient подменяет http.Client (например, в тестах).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithBreaker задаёт circuit breaker. nil отключает его.
func WithBreaker(b *CircuitBreaker) Option {
	return func(c *Client) { c.breaker = b }
}

// WithUserAgent задаёт заголовок User-Agent исходящих запросов.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// WithLogger задаёт логгер.
func WithLogger(logger *log.Entry) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient создаёт клиент сервиса service с базовым адресом baseURL.
func NewClient(service, baseURL string, timeout time.Duration, opts ...Option) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	c := &Client{
		service: service,
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  log.New().WithField("component", service+"-client"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Service возвращает имя сервиса для логов и ошибок.
func (c *Client) Service() string { return c.service }

// Do отправляет JSON-запрос и декодирует 2xx-ответ в out (если out != nil).
// Возвращает HTTP-код ответа, либо 0, если ответа не было.
func (c *Client) Do(ctx context.Context, method, path string, in, out interface{}) (int, error) {
	var status int
	call := func() error {
		var err error
		status, err = c.do(ctx, method, path, in, out)
		return err
	}

	if c.breaker == nil {
		err := call()
		return status, err
	}
	err := c.breaker.Execute(method+" "+path, call)
	return status, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) (int, error) {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("encode %s request: %w", c.service, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("build %s request: %w", c.service, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, &TransportError{Service: c.service, Timeout: isTimeout(ctx, err), Err: err}
	}
	defer resp.Body.Close()

	c.logger.WithFields(log.Fields{
		"method":   method,
		"path":     path,
		"status":   resp.StatusCode,
		"duration": time.Since(started).String(),
	}).Debug("remote call finished")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, &StatusError{
			Service:    c.service,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(raw)),
		}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return resp.StatusCode, nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return resp.StatusCode, &DecodeError{Service: c.service, Err: err}
	}
	return resp.StatusCode, nil
}

func isTimeout(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
