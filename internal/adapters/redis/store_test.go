package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	redisadapter "tradecoach/internal/adapters/redis"
	"tradecoach/internal/domain/kvstore"
	"tradecoach/internal/testsupport"
	"tradecoach/pkg/errors"
	"tradecoach/pkg/logger"
)

func TestRedisStore_RoundTripAndNotify(t *testing.T) {
	client := testsupport.NewRedisClient(t)
	store := redisadapter.NewStore(client, "test:", testsupport.UniqueName("changes"), logger.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	changes, err := store.Subscribe(ctx)
	require.NoError(t, err)

	_, err = store.Get(ctx, kvstore.KeyCapital)
	assert.ErrorIs(t, err, errors.ErrNotFound)

	require.NoError(t, store.Set(ctx, kvstore.KeyCapital, []byte("25000")))

	got, err := store.Get(ctx, kvstore.KeyCapital)
	require.NoError(t, err)
	assert.Equal(t, "25000", string(got))

	raw, err := client.Client().Get(ctx, "test:"+kvstore.KeyCapital).Result()
	require.NoError(t, err)
	assert.Equal(t, "25000", raw, "keys live under the prefix")

	select {
	case c := <-changes:
		assert.Equal(t, kvstore.KeyCapital, c.Key)
		assert.Equal(t, redisadapter.Source, c.Source)
	case <-ctx.Done():
		t.Fatal("change not received")
	}

	require.NoError(t, store.Delete(ctx, kvstore.KeyCapital))
	_, err = store.Get(ctx, kvstore.KeyCapital)
	assert.ErrorIs(t, err, errors.ErrNotFound)
}
