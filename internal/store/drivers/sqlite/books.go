package sqlite

import (
	"context"

	"github.com/bookery-social/bookery/internal/domain"
)

type booksRepo struct {
	q querier
}

func (r *booksRepo) CreateBook(ctx context.Context, b domain.Book) error {
	_, err := r.q.ExecContext(ctx,
		`INSERT INTO books (id, owner_id, title, summary, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		b.ID, b.OwnerID, b.Title, b.Summary, nowUTC())
	return mapWriteError(err)
}

func (r *booksRepo) ListRecent(ctx context.Context, limit int) ([]domain.Book, error) {
	rows, err := r.q.QueryContext(ctx,
		`SELECT id, owner_id, title, summary, created_at
		 FROM books ORDER BY created_at DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Book
	for rows.Next() {
		var b domain.Book
		if err := rows.Scan(&b.ID, &b.OwnerID, &b.Title, &b.Summary, &b.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}
