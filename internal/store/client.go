// Package store is the REST client for the remote resource store that holds
// users (with their embedded cart) and orders.
package store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/pkg/circuitbreaker"
	"github.com/fjod/go_cart/storefront/pkg/logger"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

var ErrNotFound = errors.New("resource not found")

// StatusError is a non-2xx answer from the store.
type StatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return nil
}

type Client struct {
	baseURL *url.URL
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[*http.Response]
	retries int
	backoff time.Duration
	log     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithReadRetries enables bounded retry with exponential backoff for GETs.
func WithReadRetries(retries int, backoff time.Duration) Option {
	return func(c *Client) {
		c.retries = retries
		c.backoff = backoff
	}
}

func WithBreaker(cfg circuitbreaker.Config) Option {
	return func(c *Client) {
		c.breaker = circuitbreaker.New[*http.Response]("resource-store", cfg, c.log, isAnswer)
	}
}

func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid store base url %q: %w", baseURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid store base url %q: scheme and host required", baseURL)
	}

	c := &Client{
		baseURL: u,
		http: &http.Client{
			Timeout:   15 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		backoff: 200 * time.Millisecond,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.breaker == nil {
		c.breaker = circuitbreaker.New[*http.Response]("resource-store", circuitbreaker.DefaultConfig(), c.log, isAnswer)
	}
	return c, nil
}

// GetUser fetches GET /users/{id} including the embedded cart.
func (c *Client) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	var user domain.User
	if err := c.read(ctx, "/users/"+url.PathEscape(userID), nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// PatchCart replaces the whole cart field: PATCH /users/{id} {"cart": [...]}.
func (c *Client) PatchCart(ctx context.Context, userID string, cart domain.Cart) (*domain.User, error) {
	body := struct {
		Cart domain.Cart `json:"cart"`
	}{Cart: cart.Clone()}

	var user domain.User
	if err := c.do(ctx, http.MethodPatch, "/users/"+url.PathEscape(userID), nil, body, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) CreateOrder(ctx context.Context, order *domain.OrderRecord) (*domain.OrderRecord, error) {
	var created domain.OrderRecord
	if err := c.do(ctx, http.MethodPost, "/orders", nil, order, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) GetOrder(ctx context.Context, orderID string) (*domain.OrderRecord, error) {
	var order domain.OrderRecord
	if err := c.read(ctx, "/orders/"+url.PathEscape(orderID), nil, &order); err != nil {
		return nil, err
	}
	return &order, nil
}

// ListOrders fetches GET /orders?userId={id} in store order.
func (c *Client) ListOrders(ctx context.Context, userID string) ([]domain.OrderRecord, error) {
	orders := make([]domain.OrderRecord, 0)
	if err := c.read(ctx, "/orders", url.Values{"userId": {userID}}, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (c *Client) read(ctx context.Context, path string, query url.Values, out any) error {
	var err error
	for attempt := 0; ; attempt++ {
		err = c.do(ctx, http.MethodGet, path, query, nil, out)
		if err == nil || attempt >= c.retries || !retryable(err) {
			return err
		}

		wait := c.backoff << attempt
		logger.For(ctx, c.log).Debug("retrying store read",
			zap.String("path", path),
			zap.Int("attempt", attempt+1),
			zap.Duration("wait", wait),
			zap.Error(err))

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal %s %s body: %w", method, path, err)
		}
		reader = bytes.NewReader(payload)
	}

	u := *c.baseURL
	u.Path = c.baseURL.Path + path
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if id := logger.RequestID(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	resp, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := c.http.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return nil, statusError(method, path, resp)
		}
		return resp, nil
	})
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return statusError(method, path, resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func statusError(method, path string, resp *http.Response) *StatusError {
	defer resp.Body.Close()
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	return &StatusError{
		Method:     method,
		Path:       path,
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(b)),
	}
}

// isAnswer reports errors that must not trip the breaker.
func isAnswer(err error) bool {
	return errors.Is(err, context.Canceled)
}

func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if circuitbreaker.IsOpen(err) {
		return false
	}
	var se *StatusError
	if errors.As(err, &se) {
		return se.StatusCode >= http.StatusInternalServerError || se.StatusCode == http.StatusTooManyRequests
	}
	return true
}
