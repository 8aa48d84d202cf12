package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/bookery-social/bookery/internal/service"
	"github.com/bookery-social/bookery/internal/store"
	"github.com/bookery-social/bookery/pkg/httpx"
	"github.com/bookery-social/bookery/pkg/slogx"
)

// RegisterHandler serves POST /v1/auth/register.
type RegisterHandler struct {
	TokenService *service.TokenService
}

type registerRequest struct {
	Handle      string `json:"handle"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type registerResponse struct {
	User   any `json:"user"`
	Tokens any `json:"tokens"`
}

func (h *RegisterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req registerRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	req.Handle = strings.TrimSpace(req.Handle)
	req.Email = strings.TrimSpace(req.Email)
	if req.Handle == "" || req.Email == "" || len(req.Password) < 8 {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "handle, email and a password of at least 8 characters are required")
		return
	}

	user, pair, err := h.TokenService.Register(ctx, req.Handle, req.Email, req.DisplayName, req.Password)
	if err != nil {
		if errors.Is(err, store.ErrAlreadyExists) {
			httpx.WriteError(w, http.StatusConflict,
				"already_exists", "handle or email is already taken")
			return
		}
		log.Error("register failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "registration failed")
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, registerResponse{User: user, Tokens: pair})
}
