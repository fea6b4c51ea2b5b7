package session

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// Set PODX_TEST_POSTGRES_DSN to run these against a disposable database.
func TestPostgresStore(t *testing.T) {
	dsn := os.Getenv("PODX_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("PODX_TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	pool, err := NewPostgresPool(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	store, err := NewPostgresStore(ctx, pool, newTestCodec(t))
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM podx_sessions`)
	})

	now := time.Now()
	storeContract(t, store, now)

	t.Run("prune", func(t *testing.T) {
		expired := sampleSession(now.Add(-2 * time.Hour))
		expired.ID = "sid-expired"
		require.NoError(t, store.Save(ctx, expired))

		n, err := store.Prune(ctx, now)
		require.NoError(t, err)
		require.GreaterOrEqual(t, n, int64(1))
	})
}
