package app

import (
	"context"
	"slices"

	"github.com/pscheid92/hellopulse/internal/domain"
)

// DefaultBooks is the catalog served when no database is configured.
var DefaultBooks = []domain.Book{
	{Title: "The Awakening", Author: "Kate Chopin"},
	{Title: "City of Glass", Author: "Paul Auster"},
}

// StaticCatalog serves a fixed list of books from memory.
type StaticCatalog struct {
	books []domain.Book
}

var _ domain.BookCatalog = (*StaticCatalog)(nil)

func NewStaticCatalog(books []domain.Book) *StaticCatalog {
	return &StaticCatalog{books: slices.Clone(books)}
}

func (c *StaticCatalog) ListBooks(ctx context.Context) ([]domain.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return slices.Clone(c.books), nil
}
