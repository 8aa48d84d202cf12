package http

import (
	"errors"
	"net/http"

	"github.com/bookery-social/bookery/internal/store"
	"github.com/bookery-social/bookery/pkg/httpx"
	"github.com/bookery-social/bookery/pkg/slogx"
)

// MeHandler serves GET /v1/me for the authenticated user.
type MeHandler struct {
	Store store.Store
}

func (h *MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	userID := httpx.UserIDFromCtx(ctx)
	u, err := h.Store.Users().GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Valid token for a deleted account.
			writeAuthFailure(w)
			return
		}
		log.Error("me lookup failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "lookup failed")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, u.Safe())
}
