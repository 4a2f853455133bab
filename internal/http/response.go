package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/fjod/storefront/internal/catalog"
	"github.com/fjod/storefront/internal/checkout"
	"github.com/fjod/storefront/internal/shop"
	"github.com/fjod/storefront/internal/store"
	log "github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error   string            `json:"error"`
	Code    string            `json:"code,omitempty"`
	Details string            `json:"details,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.WithError(err).Error("failed to encode response")
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{
		Error: message,
		Code:  code,
	})
}

// handleError converts a service error to an HTTP status and error body.
func handleError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *checkout.ValidationError
	if errors.As(err, &validation) {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:  "checkout form is invalid",
			Code:   "validation_failed",
			Fields: validation.Fields,
		})
		return
	}
	var declined *checkout.DeclinedError
	if errors.As(err, &declined) {
		respondJSON(w, http.StatusPaymentRequired, ErrorResponse{
			Error:   "payment declined",
			Code:    "payment_declined",
			Details: declined.Reason,
		})
		return
	}

	var httpStatus int
	var code string

	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		httpStatus, code = http.StatusConflict, "empty_cart"
	case errors.Is(err, checkout.ErrCartChanged):
		httpStatus, code = http.StatusConflict, "cart_changed"
	case errors.Is(err, checkout.ErrCheckoutInProgress):
		httpStatus, code = http.StatusConflict, "checkout_in_progress"
	case errors.Is(err, store.ErrIllegalTransition):
		httpStatus, code = http.StatusConflict, "illegal_transition"
	case errors.Is(err, catalog.ErrProductNotFound):
		httpStatus, code = http.StatusNotFound, "product_not_found"
	case errors.Is(err, store.ErrOrderNotFound):
		httpStatus, code = http.StatusNotFound, "order_not_found"
	case errors.Is(err, store.ErrQuantityLimit):
		httpStatus, code = http.StatusBadRequest, "quantity_limit"
	case errors.Is(err, shop.ErrInvalidClientID):
		httpStatus, code = http.StatusBadRequest, "invalid_client_id"
	case errors.Is(err, catalog.ErrCatalogUnavailable):
		httpStatus, code = http.StatusServiceUnavailable, "catalog_unavailable"
	case errors.Is(err, store.ErrPersistence), errors.Is(err, store.ErrUnsupportedVersion):
		httpStatus, code = http.StatusServiceUnavailable, "storage_unavailable"
	case errors.Is(err, context.DeadlineExceeded):
		httpStatus, code = http.StatusGatewayTimeout, "timeout"
	case errors.Is(err, context.Canceled):
		httpStatus, code = http.StatusRequestTimeout, "cancelled"
	default:
		httpStatus, code = http.StatusInternalServerError, "internal_error"
	}

	entry := log.WithContext(r.Context()).WithError(err).WithField("code", code)
	if httpStatus >= http.StatusInternalServerError {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}
	respondError(w, httpStatus, code, err.Error())
}
