package catalog

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const productJSON = `{"id":1,"title":"Fjallraven - Foldsack No. 1 Backpack","price":109.95,
"description":"Your perfect pack","category":"men's clothing","image":"https://fakestoreapi.com/img/81fPKd-2AYL._AC_SL1500_.jpg",
"rating":{"rate":3.9,"count":120}}`

func newTestServer(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(ClientConfig{BaseURL: srv.URL + "/", Timeout: time.Second})
}

func TestGetProduct(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products/1", r.URL.Path)
		_, _ = w.Write([]byte(productJSON))
	})

	p, err := client.GetProduct(context.Background(), 1)

	require.NoError(t, err)
	assert.Equal(t, int64(1), p.ID)
	assert.Equal(t, "men's clothing", p.Category)
	assert.True(t, decimal.RequireFromString("109.95").Equal(p.Price))
	assert.Equal(t, 120, p.Rating.Count)
}

func TestGetProduct_EmptyBodyIsNotFound(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	_, err := client.GetProduct(context.Background(), 999)

	assert.ErrorIs(t, err, ErrProductNotFound)
}

func TestGetProduct_404IsNotFound(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	_, err := client.GetProduct(context.Background(), 7)

	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.NotErrorIs(t, err, ErrCatalogUnavailable)
}

func TestListProducts(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products", r.URL.Path)
		_, _ = w.Write([]byte("[" + productJSON + "," + productJSON + "]"))
	})

	products, err := client.ListProducts(context.Background())

	require.NoError(t, err)
	assert.Len(t, products, 2)
}

func TestListProductsByCategory_EscapesPath(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products/category/men's clothing", r.URL.Path)
		_, _ = w.Write([]byte("[]"))
	})

	products, err := client.ListProductsByCategory(context.Background(), "men's clothing")

	require.NoError(t, err)
	assert.NotNil(t, products)
	assert.Empty(t, products)
}

func TestListCategories(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/products/categories", r.URL.Path)
		_, _ = w.Write([]byte(`["electronics","jewelery"]`))
	})

	categories, err := client.ListCategories(context.Background())

	require.NoError(t, err)
	assert.Equal(t, []string{"electronics", "jewelery"}, categories)
}

func TestServerErrorIsUnavailable(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.ListProducts(context.Background())

	assert.ErrorIs(t, err, ErrCatalogUnavailable)
}

func TestMalformedBodyIsUnavailable(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"products":`))
	})

	_, err := client.ListProducts(context.Background())

	assert.ErrorIs(t, err, ErrCatalogUnavailable)
}

func TestNegativePriceRejected(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":3,"title":"x","price":-1}`))
	})

	_, err := client.GetProduct(context.Background(), 3)

	assert.ErrorIs(t, err, ErrCatalogUnavailable)
}

func TestUnreachableCatalog(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	client := NewHTTPClient(ClientConfig{BaseURL: srv.URL, Timeout: time.Second})

	_, err := client.ListCategories(context.Background())

	assert.ErrorIs(t, err, ErrCatalogUnavailable)
}

func TestBreakerOpensAfterFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	client := NewHTTPClient(ClientConfig{BaseURL: srv.URL, ConsecutiveFailures: 2, OpenTimeout: time.Minute})
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		_, err := client.ListProducts(ctx)
		require.ErrorIs(t, err, ErrCatalogUnavailable)
	}
	_, err := client.ListProducts(ctx)

	assert.ErrorIs(t, err, ErrCatalogUnavailable)
	assert.Equal(t, int32(2), calls.Load(), "open breaker must not reach the server")
}

func TestCallerDeadlineDoesNotTripBreaker(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(50 * time.Millisecond)
		_, _ = w.Write([]byte(productJSON))
	}))
	t.Cleanup(srv.Close)
	client := NewHTTPClient(ClientConfig{BaseURL: srv.URL, ConsecutiveFailures: 2, OpenTimeout: time.Minute})

	for i := 0; i < 5; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
		_, err := client.GetProduct(ctx, 1)
		cancel()
		require.ErrorIs(t, err, context.DeadlineExceeded)
		assert.NotErrorIs(t, err, ErrCatalogUnavailable)
	}

	product, err := client.GetProduct(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, int64(1), product.ID)
}

func TestCancelledCallerDoesNotFailCollapsedCaller(t *testing.T) {
	var calls atomic.Int32
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		started <- struct{}{}
		<-release
		_, _ = w.Write([]byte(productJSON))
	})

	ctxA, cancelA := context.WithCancel(context.Background())
	errA := make(chan error, 1)
	go func() {
		_, err := client.GetProduct(ctxA, 1)
		errA <- err
	}()
	<-started

	type result struct {
		product *domain.Product
		err     error
	}
	resB := make(chan result, 1)
	go func() {
		p, err := client.GetProduct(context.Background(), 1)
		resB <- result{p, err}
	}()
	time.Sleep(50 * time.Millisecond)

	cancelA()
	assert.ErrorIs(t, <-errA, context.Canceled)

	close(release)
	b := <-resB
	require.NoError(t, b.err)
	assert.Equal(t, int64(1), b.product.ID)
	assert.Equal(t, int32(1), calls.Load())
}

func TestNotFoundDoesNotTripBreaker(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)
	client := NewHTTPClient(ClientConfig{BaseURL: srv.URL, ConsecutiveFailures: 1})

	for i := 0; i < 3; i++ {
		_, err := client.GetProduct(context.Background(), 1)
		require.ErrorIs(t, err, ErrProductNotFound)
	}
	assert.Equal(t, int32(3), calls.Load())
}

func TestConcurrentRequestsCollapse(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		<-release
		_, _ = w.Write([]byte(`["electronics"]`))
	})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.ListCategories(context.Background())
			assert.NoError(t, err)
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Less(t, calls.Load(), int32(10))
}
