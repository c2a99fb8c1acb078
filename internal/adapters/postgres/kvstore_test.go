package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecoach/internal/adapters/postgres"
	"tradecoach/internal/domain/kvstore"
	"tradecoach/internal/testsupport"
	"tradecoach/pkg/errors"
	"tradecoach/pkg/logger"
)

func TestNewKVStore_RejectsBadIdentifiers(t *testing.T) {
	_, err := postgres.NewKVStore(nil, "kv; DROP TABLE users", "changes", logger.NewNop())
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	_, err = postgres.NewKVStore(nil, postgres.DefaultTable, "Bad-Channel", logger.NewNop())
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestKVStore_RoundTripAndNotify(t *testing.T) {
	helper := testsupport.NewPostgresTestHelper(t)

	table := testsupport.UniqueName("kv_store_test")
	helper.DropTableOnCleanup(t, table)

	store, err := postgres.NewKVStore(helper.Client(), table, testsupport.UniqueName("kv_changes"), logger.NewNop())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	require.NoError(t, store.Migrate(ctx))

	changes, err := store.Subscribe(ctx)
	require.NoError(t, err)

	_, err = store.Get(ctx, kvstore.KeyScenario)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	require.NoError(t, store.Set(ctx, kvstore.KeyScenario, []byte(`"volatile"`)))
	require.NoError(t, store.Set(ctx, kvstore.KeyScenario, []byte(`"extreme"`)))

	got, err := store.Get(ctx, kvstore.KeyScenario)
	require.NoError(t, err)
	assert.Equal(t, `"extreme"`, string(got), "upsert keeps the last write")

	select {
	case c := <-changes:
		assert.Equal(t, kvstore.KeyScenario, c.Key)
		assert.Equal(t, postgres.Source, c.Source)
	case <-ctx.Done():
		t.Fatal("notification not received")
	}

	require.NoError(t, store.Delete(ctx, kvstore.KeyScenario))
	_, err = store.Get(ctx, kvstore.KeyScenario)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}
