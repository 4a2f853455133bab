package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/logger"
	"github.com/fjod/storefront/internal/shop"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	ClientIDHeader  = "X-Client-ID"
	RequestIDHeader = "X-Request-ID"
)

type ctxKey int

const shopKey ctxKey = iota

// RequestIDMiddleware adds a unique request ID to each request
func RequestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(RequestIDHeader)
		if requestID == "" {
			requestID = uuid.NewString()
		}

		w.Header().Set(RequestIDHeader, requestID)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), requestID)))
	})
}

// LoggingMiddleware writes one log entry per request.
func LoggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		log.WithContext(r.Context()).WithFields(log.Fields{
			"method":      r.Method,
			"path":        r.URL.Path,
			"status":      ww.Status(),
			"bytes":       ww.BytesWritten(),
			"duration_ms": time.Since(start).Milliseconds(),
		}).Info("request handled")
	})
}

// ClientMiddleware resolves the X-Client-ID header to the client's shop.
func ClientMiddleware(registry *shop.Registry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := r.Header.Get(ClientIDHeader)
			if clientID == "" {
				respondError(w, http.StatusBadRequest, "missing_client_id", ClientIDHeader+" header is required")
				return
			}

			ctx := logger.WithClientID(r.Context(), clientID)
			s, err := registry.Get(ctx, clientID)
			if err != nil {
				handleError(w, r.WithContext(ctx), err)
				return
			}
			ctx = context.WithValue(ctx, shopKey, s)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func shopFromContext(ctx context.Context) *shop.Shop {
	s, _ := ctx.Value(shopKey).(*shop.Shop)
	return s
}
