package http

import (
	"errors"
	"net/http"

	"github.com/bookery-social/bookery/internal/service"
	"github.com/bookery-social/bookery/pkg/httpx"
	"github.com/bookery-social/bookery/pkg/slogx"
)

// LogoutHandler serves POST /v1/auth/logout: revokes the presented refresh
// token. Idempotent; succeeding twice is fine.
type LogoutHandler struct {
	TokenService *service.TokenService
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *LogoutHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req logoutRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.TokenService.Revoke(ctx, req.RefreshToken); err != nil {
		if errors.Is(err, service.ErrMalformed) {
			writeAuthFailure(w)
			return
		}
		log.Error("logout failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "logout failed")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
