package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/checkout"
	"github.com/fjod/storefront/internal/domain"
)

const IdempotencyKeyHeader = "Idempotency-Key"

type CheckoutHandler struct {
	timeout time.Duration
}

func NewCheckoutHandler(timeout time.Duration) *CheckoutHandler {
	return &CheckoutHandler{timeout: timeout}
}

type PlaceOrderRequestDTO struct {
	IdempotencyKey string        `json:"idempotency_key"`
	Form           checkout.Form `json:"form"`
}

type CheckoutStateDTO struct {
	Status    domain.CheckoutStatus `json:"status"`
	LastError string                `json:"last_error,omitempty"`
}

// POST /api/v1/checkout
func (h *CheckoutHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req PlaceOrderRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get(IdempotencyKeyHeader)
	}

	res, err := shopFromContext(ctx).Checkout.PlaceOrder(ctx, checkout.Request{
		IdempotencyKey: req.IdempotencyKey,
		Form:           req.Form,
	})
	if err != nil {
		handleError(w, r, err)
		return
	}

	status := http.StatusCreated
	if res.Replayed {
		status = http.StatusOK
	}
	respondJSON(w, status, res.Order)
}

// GET /api/v1/checkout/status
func (h *CheckoutHandler) Status(w http.ResponseWriter, r *http.Request) {
	state := shopFromContext(r.Context()).Checkout.State()
	resp := CheckoutStateDTO{Status: state.Status}
	if state.LastError != nil {
		resp.LastError = state.LastError.Error()
	}
	respondJSON(w, http.StatusOK, resp)
}

// GET /api/v1/checkout/defaults
func (h *CheckoutHandler) Defaults(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, shopFromContext(r.Context()).Checkout.Defaults())
}
