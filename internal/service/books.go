package service

import (
	"context"
	"strings"

	"github.com/bookery-social/bookery/internal/domain"
	"github.com/bookery-social/bookery/internal/store"
	"github.com/bookery-social/bookery/pkg/idx"
)

// BookService manages book postings: the candidate source the search proxy
// ranks over.
type BookService struct {
	books store.Books
}

func NewBookService(books store.Books) *BookService {
	return &BookService{books: books}
}

// Create posts a new book for ownerID.
func (s *BookService) Create(ctx context.Context, ownerID, title, summary string) (domain.Book, error) {
	b := domain.Book{
		ID:      idx.New().String(),
		OwnerID: ownerID,
		Title:   strings.TrimSpace(title),
		Summary: strings.TrimSpace(summary),
	}
	if err := s.books.CreateBook(ctx, b); err != nil {
		return domain.Book{}, err
	}
	return b, nil
}

// Recent returns the newest postings, most recent first.
func (s *BookService) Recent(ctx context.Context, limit int) ([]domain.Book, error) {
	if limit <= 0 || limit > defaultCandidateLimit {
		limit = defaultCandidateLimit
	}
	return s.books.ListRecent(ctx, limit)
}
