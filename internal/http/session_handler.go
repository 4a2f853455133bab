package http

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fjod/storefront/internal/domain"
)

type SessionHandler struct {
	timeout time.Duration
}

func NewSessionHandler(timeout time.Duration) *SessionHandler {
	return &SessionHandler{timeout: timeout}
}

type LoginRequestDTO struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type SessionResponseDTO struct {
	User            *domain.UserIdentity `json:"user"`
	IsAuthenticated bool                 `json:"is_authenticated"`
	OwnerID         string               `json:"owner_id"`
}

func sessionResponse(ctx context.Context) SessionResponseDTO {
	session := shopFromContext(ctx).Session
	resp := SessionResponseDTO{
		IsAuthenticated: session.IsAuthenticated(),
		OwnerID:         session.OwnerID(),
	}
	if user, ok := session.Current(); ok {
		resp.User = &user
	}
	return resp
}

// GET /api/v1/session
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, sessionResponse(r.Context()))
}

// POST /api/v1/session/login
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req LoginRequestDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	// the guest id is reserved for orders placed without a login
	if req.ID == "" || req.ID == domain.GuestUserID {
		respondError(w, http.StatusBadRequest, "invalid_user_id", "id is required and must not be \"guest\"")
		return
	}

	session := shopFromContext(ctx).Session
	if err := session.Login(ctx, domain.UserIdentity{ID: req.ID, Name: req.Name, Email: req.Email}); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sessionResponse(ctx))
}

// POST /api/v1/session/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := shopFromContext(ctx).Session.Logout(ctx); err != nil {
		handleError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, sessionResponse(ctx))
}
