package catalog

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

	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"goflare.io/storefront/models"
)

var _ Repository = (*Client)(nil)

const (
	DefaultBaseURL = "https://fakestoreapi.com"
	DefaultTimeout = 10 * time.Second

	breakerFailureThreshold = 5
	breakerOpenTimeout      = 30 * time.Second
	maxResponseBytes        = 4 << 20
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout bounds every request, including reading the body.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		hc := *c.httpClient
		hc.Timeout = d
		c.httpClient = &hc
	}
}

func WithBreaker(settings gobreaker.Settings) Option {
	return func(c *Client) {
		if settings.IsSuccessful == nil {
			settings.IsSuccessful = isBreakerSuccess
		}
		c.breaker = gobreaker.NewCircuitBreaker(settings)
	}
}

func NewClient(baseURL string, logger *zap.Logger, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: DefaultTimeout},
		logger:     logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:         "catalog",
		Timeout:      breakerOpenTimeout,
		ReadyToTrip:  func(counts gobreaker.Counts) bool { return counts.ConsecutiveFailures >= breakerFailureThreshold },
		IsSuccessful: isBreakerSuccess,
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("name", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// isBreakerSuccess keeps a missing product from tripping the breaker.
func isBreakerSuccess(err error) bool {
	return err == nil || errors.Is(err, ErrNotFound)
}

func (c *Client) GetProduct(ctx context.Context, id models.ProductID) (*models.Product, error) {
	if id == "" {
		return nil, ErrNotFound
	}
	var product models.Product
	if err := c.get(ctx, "/products/"+url.PathEscape(id.String()), &product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *Client) ListProducts(ctx context.Context) ([]*models.Product, error) {
	var products []*models.Product
	if err := c.get(ctx, "/products", &products); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return products, nil
}

func (c *Client) ListCategories(ctx context.Context) ([]string, error) {
	var categories []string
	if err := c.get(ctx, "/products/categories", &categories); err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return categories, nil
}

func (c *Client) ListProductsByCategory(ctx context.Context, category string) ([]*models.Product, error) {
	var products []*models.Product
	err := c.get(ctx, "/products/category/"+url.PathEscape(category), &products)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return nil, err
	}
	return products, nil
}

func (c *Client) get(ctx context.Context, path string, dest any) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.do(ctx, path, dest)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}

func (c *Client) do(ctx context.Context, path string, dest any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: failed to build request: %w", ErrUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("Catalog request failed", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("Catalog returned unexpected status",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode))
		return fmt.Errorf("%w: unexpected status %d", ErrUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %w", ErrUnavailable, err)
	}
	// 目錄對不存在的 id 會回傳 200 與空 body
	body = bytes.TrimSpace(body)
	if len(body) == 0 || bytes.Equal(body, []byte("null")) {
		return ErrNotFound
	}
	if err = json.Unmarshal(body, dest); err != nil {
		c.logger.Warn("Failed to decode catalog response", zap.String("path", path), zap.Error(err))
		return fmt.Errorf("%w: failed to decode response: %w", ErrUnavailable, err)
	}
	return nil
}
