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
	"strconv"
	"strings"
	"time"

	"github.com/fjod/storefront/internal/domain"
	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/sync/singleflight"
)

const maxBodyBytes = 4 << 20

type ClientConfig struct {
	BaseURL string
	Timeout time.Duration
	// ConsecutiveFailures opens the breaker; zero means 5.
	ConsecutiveFailures uint32
	// OpenTimeout is how long the breaker stays open; zero means 30s.
	OpenTimeout time.Duration
}

// HTTPClient talks to the remote catalog. Identical concurrent requests are
// collapsed into one and repeated transport failures open a circuit breaker.
type HTTPClient struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker[[]byte]
	sfg     singleflight.Group
}

func NewHTTPClient(cfg ClientConfig) *HTTPClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 30 * time.Second
	}
	failures := cfg.ConsecutiveFailures

	return &HTTPClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: gobreaker.NewCircuitBreaker[[]byte](gobreaker.Settings{
			Name:    "catalog",
			Timeout: cfg.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= failures
			},
			IsSuccessful: func(err error) bool {
				// a missing product is an answer, not a failure of the catalog
				return err == nil || errors.Is(err, ErrProductNotFound)
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				log.WithFields(log.Fields{
					"breaker": name,
					"from":    from.String(),
					"to":      to.String(),
				}).Warn("circuit breaker state changed")
			},
		}),
	}
}

func (c *HTTPClient) ListProducts(ctx context.Context) ([]domain.Product, error) {
	return c.products(ctx, "/products")
}

func (c *HTTPClient) ListProductsByCategory(ctx context.Context, category string) ([]domain.Product, error) {
	return c.products(ctx, "/products/category/"+url.PathEscape(category))
}

func (c *HTTPClient) GetProduct(ctx context.Context, id int64) (*domain.Product, error) {
	body, err := c.get(ctx, "/products/"+strconv.FormatInt(id, 10))
	if err != nil {
		return nil, err
	}
	// fakestoreapi answers an unknown id with 200 and an empty body
	if trimmed := bytes.TrimSpace(body); len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, fmt.Errorf("%w: %d", ErrProductNotFound, id)
	}

	var product domain.Product
	if err := json.Unmarshal(body, &product); err != nil {
		return nil, fmt.Errorf("%w: decode product %d: %w", ErrCatalogUnavailable, id, err)
	}
	if err := checkProduct(product); err != nil {
		return nil, err
	}
	return &product, nil
}

func (c *HTTPClient) ListCategories(ctx context.Context) ([]string, error) {
	body, err := c.get(ctx, "/products/categories")
	if err != nil {
		return nil, err
	}
	var categories []string
	if err := json.Unmarshal(body, &categories); err != nil {
		return nil, fmt.Errorf("%w: decode categories: %w", ErrCatalogUnavailable, err)
	}
	return categories, nil
}

func (c *HTTPClient) products(ctx context.Context, path string) ([]domain.Product, error) {
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, err
	}
	var products []domain.Product
	if err := json.Unmarshal(body, &products); err != nil {
		return nil, fmt.Errorf("%w: decode %s: %w", ErrCatalogUnavailable, path, err)
	}
	for _, p := range products {
		if err := checkProduct(p); err != nil {
			return nil, err
		}
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}

func checkProduct(p domain.Product) error {
	if p.Price.IsNegative() {
		return fmt.Errorf("%w: product %d has negative price %s", ErrCatalogUnavailable, p.ID, p.Price)
	}
	return nil
}

// get fetches path once for all concurrent callers. The shared request is
// bounded by the client timeout only; each caller stops waiting when its own
// ctx ends, without failing the others or counting against the breaker.
func (c *HTTPClient) get(ctx context.Context, path string) ([]byte, error) {
	shared := context.WithoutCancel(ctx)
	ch := c.sfg.DoChan(path, func() (interface{}, error) {
		return c.breaker.Execute(func() ([]byte, error) {
			return c.fetch(shared, path)
		})
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			if errors.Is(res.Err, gobreaker.ErrOpenState) || errors.Is(res.Err, gobreaker.ErrTooManyRequests) {
				return nil, fmt.Errorf("%w: %w", ErrCatalogUnavailable, res.Err)
			}
			return nil, res.Err
		}
		return res.Val.([]byte), nil
	}
}

func (c *HTTPClient) fetch(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrCatalogUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %w", ErrCatalogUnavailable, path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", ErrCatalogUnavailable, path, err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, path)
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: GET %s: status %d", ErrCatalogUnavailable, path, resp.StatusCode)
	}
	return body, nil
}
