package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/domain"
	"github.com/fjod/storefront/internal/store"
	"github.com/go-chi/chi/v5"
)

type OrdersHandler struct {
	timeout time.Duration
}

func NewOrdersHandler(timeout time.Duration) *OrdersHandler {
	return &OrdersHandler{timeout: timeout}
}

type OrdersResponseDTO struct {
	Orders []domain.Order `json:"orders"`
}

type UpdateStatusRequestDTO struct {
	Status domain.OrderStatus `json:"status"`
}

// GET /api/v1/orders
//
// Lists the orders of whoever is logged in, or the guest orders.
func (h *OrdersHandler) List(w http.ResponseWriter, r *http.Request) {
	s := shopFromContext(r.Context())
	respondJSON(w, http.StatusOK, OrdersResponseDTO{
		Orders: s.Orders.GetOrdersByUserID(s.Session.OwnerID()),
	})
}

// GET /api/v1/orders/{id}
func (h *OrdersHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, err := ownedOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// PUT /api/v1/orders/{id}/status
func (h *OrdersHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req UpdateStatusRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || !req.Status.IsValid() {
		respondError(w, http.StatusBadRequest, "invalid_status", "status must be one of pending, processing, shipped, delivered, cancelled")
		return
	}

	id := chi.URLParam(r, "id")
	if _, err := ownedOrder(ctx, id); err != nil {
		handleError(w, r, err)
		return
	}
	order, err := shopFromContext(ctx).Orders.UpdateStatus(ctx, id, req.Status)
	if err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, order)
}

// ownedOrder hides orders that belong to a different user of the same client.
func ownedOrder(ctx context.Context, id string) (domain.Order, error) {
	s := shopFromContext(ctx)
	order, err := s.Orders.GetOrder(id)
	if err != nil {
		return domain.Order{}, err
	}
	if order.UserID != s.Session.OwnerID() {
		return domain.Order{}, store.ErrOrderNotFound
	}
	return order, nil
}
