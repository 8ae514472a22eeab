package graphql

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/pscheid92/hellopulse/internal/domain"
)

const schemaSDL = `
schema {
	query: Query
	subscription: Subscription
}

type Book {
	title: String
	author: String
}

type Query {
	books: [Book]
}

type Subscription {
	hello: String
}
`

const maxQueryDepth = 8

var errBooksUnavailable = errors.New("books unavailable")

// Request is a GraphQL operation as posted by clients.
type Request struct {
	Query         string         `json:"query"`
	OperationName string         `json:"operationName,omitempty"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// Executor runs GraphQL operations. Subscribe streams one response per event
// until ctx is cancelled.
type Executor interface {
	Exec(ctx context.Context, req Request) *graphql.Response
	Subscribe(ctx context.Context, req Request) (<-chan *graphql.Response, error)
}

type Schema struct {
	schema *graphql.Schema
}

var _ Executor = (*Schema)(nil)

func NewSchema(catalog domain.BookCatalog, source domain.GreetingSource) (*Schema, error) {
	resolver := &rootResolver{catalog: catalog, source: source}

	schema, err := graphql.ParseSchema(schemaSDL, resolver,
		graphql.MaxDepth(maxQueryDepth),
		graphql.Logger(panicLogger{}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}
	return &Schema{schema: schema}, nil
}

func (s *Schema) Exec(ctx context.Context, req Request) *graphql.Response {
	return s.schema.Exec(ctx, req.Query, req.OperationName, req.Variables)
}

func (s *Schema) Subscribe(ctx context.Context, req Request) (<-chan *graphql.Response, error) {
	raw, err := s.schema.Subscribe(ctx, req.Query, req.OperationName, req.Variables)
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan *graphql.Response)
	go func() {
		defer close(out)
		for v := range raw {
			resp, ok := v.(*graphql.Response)
			if !ok {
				continue
			}
			select {
			case out <- resp:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

type rootResolver struct {
	catalog domain.BookCatalog
	source  domain.GreetingSource
}

func (r *rootResolver) Books(ctx context.Context) (*[]*bookResolver, error) {
	books, err := r.catalog.ListBooks(ctx)
	if err != nil {
		slog.WarnContext(ctx, "Failed to list books", "error", err)
		return nil, errBooksUnavailable
	}

	out := make([]*bookResolver, 0, len(books))
	for _, b := range books {
		out = append(out, &bookResolver{book: b})
	}
	return &out, nil
}

func (r *rootResolver) Hello(ctx context.Context) (<-chan *string, error) {
	greetings, err := r.source.Subscribe(ctx)
	if err != nil {
		return nil, err
	}

	out := make(chan *string)
	go func() {
		defer close(out)
		for g := range greetings {
			hello := g.Hello
			select {
			case out <- &hello:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}

type bookResolver struct {
	book domain.Book
}

func (b *bookResolver) Title() *string  { return &b.book.Title }
func (b *bookResolver) Author() *string { return &b.book.Author }

type panicLogger struct{}

func (panicLogger) LogPanic(ctx context.Context, value any) {
	slog.ErrorContext(ctx, "GraphQL resolver panic recovered", "panic", value)
}
