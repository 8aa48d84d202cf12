package http

import (
	"encoding/json"
	"net/http"

	"github.com/bookery-social/bookery/internal/domain"
	"github.com/bookery-social/bookery/pkg/httpx"
)

const maxBodyBytes = 1 << 20

// decodeJSON parses a bounded JSON request body into v. Writes the error
// response itself and reports whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "request body is not valid JSON")
		return false
	}
	return true
}

// writeTokenPair writes a freshly minted pair with caching disabled.
func writeTokenPair(w http.ResponseWriter, status int, pair domain.TokenPair) {
	httpx.WriteJSON(w, status, pair)
}

// writeAuthFailure is the uniform rejection for every credential failure.
// Deliberately detail-free so callers cannot probe accounts or token state.
func writeAuthFailure(w http.ResponseWriter) {
	httpx.WriteError(w, http.StatusUnauthorized,
		"invalid_credentials", "authentication failed")
}
