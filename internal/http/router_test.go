package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bookery-social/bookery/internal/domain"
	"github.com/bookery-social/bookery/internal/rate"
	"github.com/bookery-social/bookery/internal/service"
	"github.com/bookery-social/bookery/internal/store/drivers/sqlite"
	"github.com/bookery-social/bookery/pkg/jwtx"
	"github.com/bookery-social/bookery/pkg/slogx"

	"github.com/stretchr/testify/require"
)

type fakeCompleter struct {
	response string
	err      error
}

func (c *fakeCompleter) Complete(_ context.Context, _ string) (string, error) {
	return c.response, c.err
}

type fixture struct {
	server    *httptest.Server
	completer *fakeCompleter
}

func newFixture(t *testing.T, searchLimit int) *fixture {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	require.NoError(t, st.ApplyMigrations())
	t.Cleanup(func() { _ = st.Close() })

	signer, err := jwtx.NewEphemeralSigner()
	require.NoError(t, err)
	keys := jwtx.NewKeySet()
	keys.AddSigner(signer)
	verifier := jwtx.NewVerifierEdDSA(keys, "bookery-test")

	tokens := service.NewTokenService(st, signer, verifier, service.TokenConfig{Issuer: "bookery-test"})
	completer := &fakeCompleter{response: "[]"}
	search := service.NewSearchService(st.Books(),
		rate.NewMemoryLimiter(searchLimit, time.Minute), completer)

	logger := slogx.New(slogx.Config{Service: "bookery", Level: "error", Format: "text"})
	router := NewRouter(verifier, "test", st, logger)
	router.TokenService = tokens
	router.SearchService = search
	router.BookService = service.NewBookService(st.Books())
	router.ApplyRoutes()

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &fixture{server: srv, completer: completer}
}

func (f *fixture) do(t *testing.T, method, path, token string, body any) (*http.Response, []byte) {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}

	req, err := http.NewRequest(method, f.server.URL+path, rdr)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := f.server.Client().Do(req)
	require.NoError(t, err)
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()
	return resp, raw
}

func (f *fixture) register(t *testing.T, handle, email string) domain.TokenPair {
	t.Helper()

	resp, raw := f.do(t, http.MethodPost, "/v1/auth/register", "", map[string]string{
		"handle":   handle,
		"email":    email,
		"password": "correct horse battery",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

	var body struct {
		Tokens domain.TokenPair `json:"tokens"`
	}
	require.NoError(t, json.Unmarshal(raw, &body))
	return body.Tokens
}

func TestAuthFlow(t *testing.T) {
	t.Run("register login me", func(t *testing.T) {
		f := newFixture(t, 10)
		f.register(t, "ada", "ada@example.com")

		resp, raw := f.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
			"login":    "ada",
			"password": "correct horse battery",
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

		var pair domain.TokenPair
		require.NoError(t, json.Unmarshal(raw, &pair))
		require.Equal(t, "Bearer", pair.TokenType)

		resp, raw = f.do(t, http.MethodGet, "/v1/me", pair.AccessToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

		var me domain.SafeUser
		require.NoError(t, json.Unmarshal(raw, &me))
		require.Equal(t, "ada", me.Handle)
		require.False(t, me.Federated)
	})

	t.Run("bad password is a uniform 401", func(t *testing.T) {
		f := newFixture(t, 10)
		f.register(t, "ada", "ada@example.com")

		resp, _ := f.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
			"login":    "ada",
			"password": "wrong",
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		resp2, _ := f.do(t, http.MethodPost, "/v1/auth/login", "", map[string]string{
			"login":    "ghost",
			"password": "wrong",
		})
		require.Equal(t, resp.StatusCode, resp2.StatusCode)
	})

	t.Run("refresh rotates and replay fails", func(t *testing.T) {
		f := newFixture(t, 10)
		pair := f.register(t, "ada", "ada@example.com")

		resp, raw := f.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]string{
			"refresh_token": pair.RefreshToken,
		})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

		resp, _ = f.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]string{
			"refresh_token": pair.RefreshToken,
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("logout revokes the refresh token", func(t *testing.T) {
		f := newFixture(t, 10)
		pair := f.register(t, "ada", "ada@example.com")

		resp, _ := f.do(t, http.MethodPost, "/v1/auth/logout", "", map[string]string{
			"refresh_token": pair.RefreshToken,
		})
		require.Equal(t, http.StatusNoContent, resp.StatusCode)

		resp, _ = f.do(t, http.MethodPost, "/v1/auth/refresh", "", map[string]string{
			"refresh_token": pair.RefreshToken,
		})
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("refresh token does not authenticate requests", func(t *testing.T) {
		f := newFixture(t, 10)
		pair := f.register(t, "ada", "ada@example.com")

		resp, _ := f.do(t, http.MethodGet, "/v1/me", pair.RefreshToken, nil)
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestBooksAndSearch(t *testing.T) {
	t.Run("post books then search", func(t *testing.T) {
		f := newFixture(t, 10)
		pair := f.register(t, "ada", "ada@example.com")

		resp, raw := f.do(t, http.MethodPost, "/v1/books", pair.AccessToken, map[string]string{
			"title":   "Dune",
			"summary": "desert politics",
		})
		require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))

		var book domain.Book
		require.NoError(t, json.Unmarshal(raw, &book))
		require.NotEmpty(t, book.ID)

		f.completer.response = `[{"id":"` + book.ID + `","reason":"classic"}]`

		resp, raw = f.do(t, http.MethodGet, "/v1/search?q=sand", pair.AccessToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

		var result struct {
			Query   string              `json:"query"`
			Results []domain.RankedBook `json:"results"`
		}
		require.NoError(t, json.Unmarshal(raw, &result))
		require.Equal(t, "sand", result.Query)
		require.Len(t, result.Results, 1)
		require.Equal(t, book.ID, result.Results[0].ID)
		require.Equal(t, "classic", result.Results[0].Reason)
	})

	t.Run("search quota rejection is distinguishable from auth failure", func(t *testing.T) {
		f := newFixture(t, 1)
		pair := f.register(t, "ada", "ada@example.com")

		_, _ = f.do(t, http.MethodPost, "/v1/books", pair.AccessToken, map[string]string{
			"title": "Dune",
		})

		resp, _ := f.do(t, http.MethodGet, "/v1/search?q=sand", pair.AccessToken, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, raw := f.do(t, http.MethodGet, "/v1/search?q=sand", pair.AccessToken, nil)
		require.Equal(t, http.StatusTooManyRequests, resp.StatusCode, string(raw))
		require.NotEmpty(t, resp.Header.Get("Retry-After"))
	})

	t.Run("missing query is a 400", func(t *testing.T) {
		f := newFixture(t, 10)
		pair := f.register(t, "ada", "ada@example.com")

		resp, _ := f.do(t, http.MethodGet, "/v1/search", pair.AccessToken, nil)
		require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestHealthEndpoints(t *testing.T) {
	f := newFixture(t, 10)

	resp, raw := f.do(t, http.MethodGet, "/livez", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var health healthResponse
	require.NoError(t, json.Unmarshal(raw, &health))
	require.Equal(t, "ok", health.Status)

	resp, _ = f.do(t, http.MethodGet, "/readyz", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
