package graphql

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/pscheid92/hellopulse/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSchema(t *testing.T, catalog domain.BookCatalog, source domain.GreetingSource) *Schema {
	t.Helper()
	schema, err := NewSchema(catalog, source)
	require.NoError(t, err)
	return schema
}

func TestSchema_Books(t *testing.T) {
	schema := newTestSchema(t, &fakeCatalog{books: testBooks}, newFakeSource())

	resp := schema.Exec(context.Background(), Request{Query: `{ books { title author } }`})

	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"books":[
		{"title":"The Awakening","author":"Kate Chopin"},
		{"title":"City of Glass","author":"Paul Auster"}
	]}`, string(resp.Data))
}

func TestSchema_BooksNamedOperation(t *testing.T) {
	schema := newTestSchema(t, &fakeCatalog{books: testBooks}, newFakeSource())

	resp := schema.Exec(context.Background(), Request{
		Query:         `query A { books { title } } query B { books { author } }`,
		OperationName: "B",
	})

	require.Empty(t, resp.Errors)
	assert.JSONEq(t, `{"books":[{"author":"Kate Chopin"},{"author":"Paul Auster"}]}`, string(resp.Data))
}

func TestSchema_BooksCatalogError(t *testing.T) {
	schema := newTestSchema(t, &fakeCatalog{err: errCatalogDown}, newFakeSource())

	resp := schema.Exec(context.Background(), Request{Query: `{ books { title } }`})

	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "books unavailable", resp.Errors[0].Message)
	assert.JSONEq(t, `{"books":null}`, string(resp.Data))
}

func TestSchema_UnknownField(t *testing.T) {
	schema := newTestSchema(t, &fakeCatalog{books: testBooks}, newFakeSource())

	resp := schema.Exec(context.Background(), Request{Query: `{ nope }`})

	assert.NotEmpty(t, resp.Errors)
	assert.True(t, IsRequestError(resp))
}

func TestSchema_SubscribeHello(t *testing.T) {
	source := newFakeSource()
	schema := newTestSchema(t, &fakeCatalog{}, source)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream, err := schema.Subscribe(ctx, Request{Query: `subscription { hello }`})
	require.NoError(t, err)

	select {
	case <-source.subscribed:
	case <-time.After(2 * time.Second):
		t.Fatal("resolver never subscribed to the source")
	}

	for i := uint64(1); i <= 2; i++ {
		source.greetings <- domain.NewCountGreeting(i)

		select {
		case resp := <-stream:
			require.Empty(t, resp.Errors)
			var data struct{ Hello string }
			require.NoError(t, json.Unmarshal(resp.Data, &data))
			assert.Equal(t, domain.NewCountGreeting(i).Hello, data.Hello)
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for subscription event")
		}
	}

	cancel()
	select {
	case <-source.cancelled:
	case <-time.After(2 * time.Second):
		t.Fatal("source stream not released after cancel")
	}
}

func TestSchema_SubscribeSourceError(t *testing.T) {
	source := newFakeSource()
	source.err = domain.ErrTooManySubscriptions
	schema := newTestSchema(t, &fakeCatalog{}, source)

	stream, err := schema.Subscribe(context.Background(), Request{Query: `subscription { hello }`})
	require.NoError(t, err)

	select {
	case resp, ok := <-stream:
		require.True(t, ok)
		require.NotEmpty(t, resp.Errors)
		assert.Contains(t, resp.Errors[0].Message, domain.ErrTooManySubscriptions.Error())
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for error response")
	}
}
