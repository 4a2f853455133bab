package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/fjod/storefront/internal/catalog"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/payment"
	"github.com/fjod/storefront/internal/repository"
	"github.com/fjod/storefront/internal/shop"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// CatalogMock serves a fixed product list
type CatalogMock struct {
	products []domain.Product
	err      error
}

func (c CatalogMock) ListProducts(context.Context) ([]domain.Product, error) {
	return c.products, c.err
}

func (c CatalogMock) GetProduct(_ context.Context, id int64) (*domain.Product, error) {
	if c.err != nil {
		return nil, c.err
	}
	for _, p := range c.products {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, catalog.ErrProductNotFound
}

func (c CatalogMock) ListCategories(context.Context) ([]string, error) {
	if c.err != nil {
		return nil, c.err
	}
	seen := map[string]bool{}
	var out []string
	for _, p := range c.products {
		if !seen[p.Category] {
			seen[p.Category] = true
			out = append(out, p.Category)
		}
	}
	return out, nil
}

func (c CatalogMock) ListProductsByCategory(_ context.Context, category string) ([]domain.Product, error) {
	if c.err != nil {
		return nil, c.err
	}
	out := []domain.Product{}
	for _, p := range c.products {
		if p.Category == category {
			out = append(out, p)
		}
	}
	return out, nil
}

var testProducts = []domain.Product{
	{ID: 1, Title: "Backpack", Price: decimal.RequireFromString("109.95"), Category: "men's clothing"},
	{ID: 2, Title: "T-Shirt", Price: decimal.RequireFromString("22.30"), Category: "men's clothing"},
	{ID: 5, Title: "Bracelet", Price: decimal.RequireFromString("9.99"), Category: "jewelery"},
}

type testServer struct {
	handler  http.Handler
	registry *shop.Registry
	gateway  *payment.Simulator
}

func newTestServer(t *testing.T, cat catalog.Catalog) *testServer {
	t.Helper()
	return newTestServerWithGateway(t, cat, payment.NewSimulator(0, nil))
}

func newTestServerWithGateway(t *testing.T, cat catalog.Catalog, gateway *payment.Simulator) *testServer {
	t.Helper()
	if cat == nil {
		cat = CatalogMock{products: testProducts}
	}
	registry := shop.NewRegistry(shop.Config{
		Repository:     repository.NewMemoryRepository(),
		Gateway:        gateway,
		PaymentTimeout: time.Second,
	})
	return &testServer{
		handler: NewRouter(RouterConfig{
			Registry:           registry,
			Catalog:            cat,
			RequestTimeout:     5 * time.Second,
			MaxRequestBodySize: 1 << 20,
		}),
		registry: registry,
		gateway:  gateway,
	}
}

func (s *testServer) do(t *testing.T, method, path, clientID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if clientID != "" {
		req.Header.Set(ClientIDHeader, clientID)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v), rec.Body.String())
	return v
}

func validFormBody() map[string]string {
	return map[string]string{
		"email":       "jane@example.com",
		"full_name":   "Jane Doe",
		"address":     "1 Main Street",
		"city":        "Springfield",
		"postal_code": "12345",
		"country":     "US",
		"card_number": "4242 4242 4242 4242",
		"expiry_date": "12/29",
		"cvv":         "123",
		"card_name":   "Jane Doe",
	}
}
