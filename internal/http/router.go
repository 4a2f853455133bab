package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/catalog"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/fjod/storefront/internal/shop"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type RouterConfig struct {
	Registry           *shop.Registry
	Catalog            catalog.Catalog
	RequestTimeout     time.Duration
	MaxRequestBodySize int64
	// Ready reports whether storage is reachable; nil means always ready.
	Ready func(ctx context.Context) error
}

func NewRouter(cfg RouterConfig) http.Handler {
	products := NewProductHandler(cfg.Catalog, cfg.RequestTimeout)
	cart := NewCartHandler(cfg.Catalog, cfg.RequestTimeout)
	session := NewSessionHandler(cfg.RequestTimeout)
	orders := NewOrdersHandler(cfg.RequestTimeout)
	checkoutHandler := NewCheckoutHandler(cfg.RequestTimeout)

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)
	r.Use(metrics.InstrumentHandler)
	if cfg.MaxRequestBodySize > 0 {
		r.Use(middleware.RequestSize(cfg.MaxRequestBodySize))
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if cfg.Ready != nil {
			if err := cfg.Ready(r.Context()); err != nil {
				respondError(w, http.StatusServiceUnavailable, "not_ready", err.Error())
				return
			}
		}
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", metrics.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/products", func(r chi.Router) {
			r.Get("/", products.List)
			r.Get("/categories", products.Categories)
			r.Get("/category/{category}", products.ByCategory)
			r.Get("/{id}", products.Get)
		})

		r.Group(func(r chi.Router) {
			r.Use(ClientMiddleware(cfg.Registry))

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", cart.GetCart)
				r.Delete("/", cart.ClearCart)
				r.Post("/items", cart.AddItem)
				r.Put("/items/{product_id}", cart.UpdateQuantity)
				r.Delete("/items/{product_id}", cart.RemoveItem)
			})
			r.Route("/session", func(r chi.Router) {
				r.Get("/", session.Get)
				r.Post("/login", session.Login)
				r.Post("/logout", session.Logout)
			})
			r.Route("/orders", func(r chi.Router) {
				r.Get("/", orders.List)
				r.Get("/{id}", orders.Get)
				r.Put("/{id}/status", orders.UpdateStatus)
			})
			r.Route("/checkout", func(r chi.Router) {
				r.Post("/", checkoutHandler.PlaceOrder)
				r.Get("/status", checkoutHandler.Status)
				r.Get("/defaults", checkoutHandler.Defaults)
			})
		})
	})

	return otelhttp.NewHandler(r, "storefront")
}
