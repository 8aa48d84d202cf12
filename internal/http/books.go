package http

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bookery-social/bookery/internal/service"
	"github.com/bookery-social/bookery/pkg/httpx"
	"github.com/bookery-social/bookery/pkg/slogx"
)

// BooksHandler serves the book posting endpoints.
type BooksHandler struct {
	BookService *service.BookService
}

type createBookRequest struct {
	Title   string `json:"title"`
	Summary string `json:"summary"`
}

func (h *BooksHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	var req createBookRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Title) == "" {
		httpx.WriteError(w, http.StatusBadRequest,
			"invalid_request", "title is required")
		return
	}

	book, err := h.BookService.Create(ctx, httpx.UserIDFromCtx(ctx), req.Title, req.Summary)
	if err != nil {
		log.Error("create book failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "could not create book")
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, book)
}

func (h *BooksHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := slogx.FromContext(ctx)

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	books, err := h.BookService.Recent(ctx, limit)
	if err != nil {
		log.Error("list books failed", "err", err)
		httpx.WriteError(w, http.StatusInternalServerError,
			"server_error", "could not list books")
		return
	}

	httpx.WriteJSON(w, http.StatusOK, books)
}
