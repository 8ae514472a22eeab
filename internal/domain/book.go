package domain

import "context"

type Book struct {
	Title  string `db:"title"`
	Author string `db:"author"`
}

// BookCatalog lists the books served by Query.books.
type BookCatalog interface {
	ListBooks(ctx context.Context) ([]Book, error)
}
