package http

import (
	"errors"
	"net/http"

	"github.com/bookery-social/bookery/internal/service"
	"github.com/bookery-social/bookery/pkg/slogx"
)

// RefreshHandler serves POST /v1/auth/refresh: single-use rotation of the
// refresh token for a fresh pair.
type RefreshHandler struct {
	TokenService *service.TokenService
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *RefreshHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req refreshRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	pair, err := h.TokenService.Rotate(ctx, req.RefreshToken)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMalformed),
			errors.Is(err, service.ErrExpired),
			errors.Is(err, service.ErrStale):
			// Uniform rejection: a replayed token and a forged token look
			// identical to the caller.
			writeAuthFailure(w)
		default:
			log.Error("refresh failed", "err", err)
			writeAuthFailure(w)
		}
		return
	}

	writeTokenPair(w, http.StatusOK, pair)
}
