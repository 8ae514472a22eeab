package graphql

import (
	"context"
	"errors"

	"github.com/pscheid92/hellopulse/internal/domain"
)

type fakeCatalog struct {
	books []domain.Book
	err   error
}

func (f *fakeCatalog) ListBooks(context.Context) ([]domain.Book, error) {
	return f.books, f.err
}

// fakeSource hands each subscriber a stream fed from greetings. subscribed
// receives one value per successful Subscribe; cancelled one per stream
// torn down by its context.
type fakeSource struct {
	greetings  chan domain.Greeting
	subscribed chan struct{}
	cancelled  chan struct{}
	err        error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		greetings:  make(chan domain.Greeting, 16),
		subscribed: make(chan struct{}, 16),
		cancelled:  make(chan struct{}, 16),
	}
}

func (f *fakeSource) Subscribe(ctx context.Context) (<-chan domain.Greeting, error) {
	if f.err != nil {
		return nil, f.err
	}

	out := make(chan domain.Greeting)
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				f.cancelled <- struct{}{}
				return
			case g := <-f.greetings:
				select {
				case out <- g:
				case <-ctx.Done():
					f.cancelled <- struct{}{}
					return
				}
			}
		}
	}()
	f.subscribed <- struct{}{}
	return out, nil
}

var testBooks = []domain.Book{
	{Title: "The Awakening", Author: "Kate Chopin"},
	{Title: "City of Glass", Author: "Paul Auster"},
}

var errCatalogDown = errors.New("catalog down")
