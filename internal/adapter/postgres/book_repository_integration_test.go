package postgres

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pscheid92/hellopulse/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListBooks_SeededCatalog(t *testing.T) {
	pool := setupTestDB(t)

	books, err := NewBookRepo(pool).ListBooks(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []domain.Book{
		{Title: "The Awakening", Author: "Kate Chopin"},
		{Title: "City of Glass", Author: "Paul Auster"},
	}, books)
}

func TestRunMigrations_Idempotent(t *testing.T) {
	pool := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, RunMigrations(ctx, pool))

	var count int
	require.NoError(t, pool.QueryRow(ctx, "SELECT count(*) FROM books").Scan(&count))
	assert.Equal(t, 2, count)
}

func TestListBooks_CancelledContext(t *testing.T) {
	pool := setupTestDB(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewBookRepo(pool).ListBooks(ctx)
	require.Error(t, err)
}

func TestListBooks_ConcurrentCallersGetOwnCopies(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewBookRepo(pool)

	const callers = 8
	results := make([][]domain.Book, callers)
	var wg sync.WaitGroup
	for i := range callers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			books, err := repo.ListBooks(context.Background())
			assert.NoError(t, err)
			results[i] = books
		}()
	}
	wg.Wait()

	results[0][0].Title = "changed"
	for i := 1; i < callers; i++ {
		require.Len(t, results[i], 2)
		assert.Equal(t, "The Awakening", results[i][0].Title)
	}
}

func TestListBooks_CancelledCallerDoesNotFailSharedQuery(t *testing.T) {
	pool := setupTestDB(t)
	repo := NewBookRepo(pool)
	ctx := context.Background()

	// Hold the table so the shared query stays in flight.
	lockTx, err := pool.Begin(ctx)
	require.NoError(t, err)
	defer func() { _ = lockTx.Rollback(ctx) }()
	_, err = lockTx.Exec(ctx, "LOCK TABLE books IN ACCESS EXCLUSIVE MODE")
	require.NoError(t, err)

	leavingCtx, leave := context.WithCancel(ctx)
	leavingErr := make(chan error, 1)
	go func() {
		_, err := repo.ListBooks(leavingCtx)
		leavingErr <- err
	}()

	require.Eventually(t, func() bool {
		var waiting int
		err := pool.QueryRow(ctx,
			"SELECT count(*) FROM pg_stat_activity WHERE wait_event_type = 'Lock' AND query = $1", listBooksSQL,
		).Scan(&waiting)
		return err == nil && waiting == 1
	}, 5*time.Second, 20*time.Millisecond)

	type result struct {
		books []domain.Book
		err   error
	}
	staying := make(chan result, 1)
	go func() {
		books, err := repo.ListBooks(ctx)
		staying <- result{books, err}
	}()

	leave()
	select {
	case err := <-leavingErr:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	require.NoError(t, lockTx.Commit(ctx))

	select {
	case res := <-staying:
		require.NoError(t, res.err)
		assert.Equal(t, []domain.Book{
			{Title: "The Awakening", Author: "Kate Chopin"},
			{Title: "City of Glass", Author: "Paul Auster"},
		}, res.books)
	case <-time.After(5 * time.Second):
		t.Fatal("live caller did not return")
	}
}
