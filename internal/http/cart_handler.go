package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/catalog"
	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/store"
	"github.com/shopspring/decimal"
)

type CartHandler struct {
	catalog catalog.Catalog
	timeout time.Duration
}

func NewCartHandler(c catalog.Catalog, timeout time.Duration) *CartHandler {
	return &CartHandler{
		catalog: c,
		timeout: timeout,
	}
}

type AddItemRequestDTO struct {
	ProductID int64 `json:"product_id"`
}

type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantity"`
}

type CartItemDTO struct {
	domain.Product
	Quantity int             `json:"quantity"`
	Subtotal decimal.Decimal `json:"subtotal"`
}

type CartResponseDTO struct {
	Items     []CartItemDTO   `json:"items"`
	ItemCount int             `json:"item_count"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Shipping  decimal.Decimal `json:"shipping"`
	Tax       decimal.Decimal `json:"tax"`
	Total     decimal.Decimal `json:"total"`
	Currency  string          `json:"currency"`
	Revision  uint64          `json:"revision"`
}

func newCartResponse(snapshot domain.CartSnapshot) CartResponseDTO {
	items := make([]CartItemDTO, 0, len(snapshot.Lines))
	count := 0
	for _, l := range snapshot.Lines {
		items = append(items, CartItemDTO{Product: l.Product, Quantity: l.Quantity, Subtotal: l.Subtotal()})
		count += l.Quantity
	}
	pricing := domain.PriceFor(snapshot.Subtotal())
	return CartResponseDTO{
		Items:     items,
		ItemCount: count,
		Subtotal:  pricing.Subtotal,
		Shipping:  pricing.Shipping,
		Tax:       pricing.Tax,
		Total:     pricing.Total,
		Currency:  domain.Currency,
		Revision:  snapshot.Revision,
	}
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart := shopFromContext(r.Context()).Cart
	respondJSON(w, http.StatusOK, newCartResponse(cart.Snapshot()))
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req AddItemRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.ProductID <= 0 {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id must be positive")
		return
	}

	product, err := h.catalog.GetProduct(ctx, req.ProductID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	cart := shopFromContext(ctx).Cart
	if err := cart.AddItem(ctx, *product); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusCreated, newCartResponse(cart.Snapshot()))
}

// PUT /api/v1/cart/items/{product_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := productIDParam(w, r, "product_id")
	if !ok {
		return
	}
	var req UpdateQuantityRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Quantity == nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "body must be {\"quantity\": <int>}")
		return
	}

	h.mutate(ctx, w, r, func(ctx context.Context, cart *store.Cart) error {
		return cart.UpdateQuantity(ctx, productID, *req.Quantity)
	})
}

// DELETE /api/v1/cart/items/{product_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	productID, ok := productIDParam(w, r, "product_id")
	if !ok {
		return
	}
	h.mutate(ctx, w, r, func(ctx context.Context, cart *store.Cart) error {
		return cart.RemoveItem(ctx, productID)
	})
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	h.mutate(ctx, w, r, func(ctx context.Context, cart *store.Cart) error {
		return cart.ClearCart(ctx)
	})
}

func (h *CartHandler) mutate(ctx context.Context, w http.ResponseWriter, r *http.Request, fn func(context.Context, *store.Cart) error) {
	cart := shopFromContext(ctx).Cart
	if err := fn(ctx, cart); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, newCartResponse(cart.Snapshot()))
}
