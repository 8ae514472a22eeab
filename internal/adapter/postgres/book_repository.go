package postgres

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pscheid92/hellopulse/internal/domain"
	"golang.org/x/sync/singleflight"
)

// BookRepo serves the book catalog from the books table.
// Concurrent ListBooks calls share one query. The shared query is not bound to
// any single caller's cancellation; each caller only stops waiting for it.
type BookRepo struct {
	pool  *pgxpool.Pool
	group singleflight.Group
}

var _ domain.BookCatalog = (*BookRepo)(nil)

func NewBookRepo(pool *pgxpool.Pool) *BookRepo {
	return &BookRepo{pool: pool}
}

const (
	listBooksSQL     = `SELECT title, author FROM books ORDER BY id`
	listBooksTimeout = 5 * time.Second
)

func (r *BookRepo) ListBooks(ctx context.Context) ([]domain.Book, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ch := r.group.DoChan("books", func() (any, error) {
		queryCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), listBooksTimeout)
		defer cancel()
		return r.queryBooks(queryCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]domain.Book)), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (r *BookRepo) queryBooks(ctx context.Context) ([]domain.Book, error) {
	rows, err := r.pool.Query(ctx, listBooksSQL)
	if err != nil {
		return nil, fmt.Errorf("failed to query books: %w", err)
	}

	books, err := pgx.CollectRows(rows, pgx.RowToStructByName[domain.Book])
	if err != nil {
		return nil, fmt.Errorf("failed to scan books: %w", err)
	}
	return books, nil
}
