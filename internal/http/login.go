package http

import (
	"errors"
	"net/http"

	"github.com/bookery-social/bookery/internal/service"
	"github.com/bookery-social/bookery/pkg/slogx"
)

// LoginHandler serves POST /v1/auth/login.
type LoginHandler struct {
	TokenService *service.TokenService
}

type loginRequest struct {
	// Login accepts either the handle or the email address.
	Login    string `json:"login"`
	Password string `json:"password"`
}

func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req loginRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	pair, err := h.TokenService.Login(ctx, req.Login, req.Password)
	if err != nil {
		if !errors.Is(err, service.ErrInvalidCredentials) {
			log.Error("login failed", "err", err)
		}
		writeAuthFailure(w)
		return
	}

	writeTokenPair(w, http.StatusOK, pair)
}
