package http

import (
	"errors"
	"net/http"
	"time"

	"github.com/bookery-social/bookery/internal/service"
	"github.com/bookery-social/bookery/pkg/cryptox"
	"github.com/bookery-social/bookery/pkg/httpx"
	"github.com/bookery-social/bookery/pkg/slogx"
)

const stateCookie = "oauth_state"

// FederatedHandler serves the federated login flow: HandleStart redirects to
// the provider's consent page, HandleCallback exchanges the returned code for
// a local session.
type FederatedHandler struct {
	IdentityService *service.IdentityService
}

func (h *FederatedHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	state, err := cryptox.GenerateToken(cryptox.TokenSize128)
	if err != nil {
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "could not start federated login")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/v1/auth/google",
		MaxAge:   int((10 * time.Minute).Seconds()),
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.IdentityService.AuthCodeURL(state), http.StatusFound)
}

func (h *FederatedHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	// The state must round-trip through the cookie, otherwise the code may
	// belong to someone else's flow.
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || cookie.Value != r.URL.Query().Get("state") {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_state", "state mismatch, restart the login flow")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "missing authorization code")
		return
	}

	user, pair, err := h.IdentityService.ExchangeFederated(ctx, code)
	if err != nil {
		if errors.Is(err, service.ErrNoEmail) {
			httpx.WriteError(w, http.StatusUnprocessableEntity,
				"no_email", "the identity provider attested no usable email")
			return
		}
		log.Error("federated exchange failed", "err", err)
		writeAuthFailure(w)
		return
	}

	httpx.WriteJSON(w, http.StatusOK, registerResponse{User: user, Tokens: pair})
}
