package memory

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/celim/oraculo/internal/log"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "memory.db"), log.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})
	return store
}

func TestAppendValidation(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	assert.Error(t, store.Append(ctx, "", RoleUser, "oi"))
	assert.Error(t, store.Append(ctx, "u1", "assistant", "oi"))
	assert.NoError(t, store.Append(ctx, "u1", RoleUser, "oi"))
}

func TestHistoryPreservesPerUserOrder(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	// Interleave a second user between every append for the first.
	turns := []string{"t1", "t2", "t3"}
	for i, content := range turns {
		require.NoError(t, store.Append(ctx, "alice", RoleUser, content))
		require.NoError(t, store.Append(ctx, "bob", RoleUser, fmt.Sprintf("b%d", i)))
	}

	history, err := store.History(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, history, 3)
	for i, turn := range history {
		assert.Equal(t, turns[i], turn.Content)
		assert.Equal(t, "alice", turn.UserID)
	}
}

func TestHistoryLimitReturnsMostRecent(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	for i := range 10 {
		require.NoError(t, store.Append(ctx, "u1", RoleUser, fmt.Sprintf("t%d", i)))
	}

	history, err := store.History(ctx, "u1", 3)
	require.NoError(t, err)
	require.Len(t, history, 3)
	// Most recent three, still chronological.
	assert.Equal(t, "t7", history[0].Content)
	assert.Equal(t, "t9", history[2].Content)
}

func TestHistoryUnknownUserIsEmpty(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)

	history, err := store.History(context.Background(), "nobody", 0)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestFactsAreIsolatedPerUser(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.SetFact(ctx, "alice", "pedido_favorito", "picanha"))
	require.NoError(t, store.SetFact(ctx, "alice", "pedido_favorito", "frango"))
	require.NoError(t, store.SetFact(ctx, "bob", "pedido_favorito", "queijo"))

	aliceFacts, err := store.Facts(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"pedido_favorito": "frango"}, aliceFacts,
		"SetFact upserts in place")

	bobFacts, err := store.Facts(ctx, "bob")
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"pedido_favorito": "queijo"}, bobFacts)

	noFacts, err := store.Facts(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, noFacts)
}

func TestConcurrentAppendsAcrossUsers(t *testing.T) {
	t.Cleanup(func() { goleak.VerifyNone(t) })
	store := newTestStore(t)
	ctx := context.Background()

	const perUser = 20
	users := []string{"u1", "u2", "u3", "u4"}

	var wg sync.WaitGroup
	for _, user := range users {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range perUser {
				assert.NoError(t, store.Append(ctx, user, RoleUser, fmt.Sprintf("%s-%d", user, i)))
			}
		}()
	}
	wg.Wait()

	for _, user := range users {
		history, err := store.History(ctx, user, 0)
		require.NoError(t, err)
		require.Len(t, history, perUser)
		// Sequential appends from one goroutine must read back in order.
		for i, turn := range history {
			assert.Equal(t, fmt.Sprintf("%s-%d", user, i), turn.Content)
		}
	}
}

func TestPing(t *testing.T) {
	t.Parallel()
	store := newTestStore(t)
	assert.NoError(t, store.Ping(context.Background()))
}
