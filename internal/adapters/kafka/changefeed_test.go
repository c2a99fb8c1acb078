package kafka

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecoach/internal/adapters/config"
	"tradecoach/internal/domain/kvstore"
	"tradecoach/pkg/errors"
	"tradecoach/pkg/logger"
)

type stubSource struct {
	messages []kafka.Message
	closed   bool
}

func (s *stubSource) Consume(ctx context.Context, handler MessageHandler) error {
	for _, m := range s.messages {
		_ = handler(ctx, m)
	}
	<-ctx.Done()
	return ctx.Err()
}

func (s *stubSource) Close() error {
	s.closed = true
	return nil
}

func changeMessage(t *testing.T, c kvstore.Change) kafka.Message {
	data, err := json.Marshal(c)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(c.Key), Value: data}
}

func TestChangeFeed_FiltersOwnAndMalformed(t *testing.T) {
	src := &stubSource{messages: []kafka.Message{
		changeMessage(t, kvstore.Change{Key: kvstore.KeyCapital, Source: "server"}),
		{Value: []byte("garbage")},
		changeMessage(t, kvstore.Change{Key: kvstore.KeyScenario, Source: "riskctl"}),
	}}
	feed := NewChangeFeed(src, "server", logger.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes, err := feed.Subscribe(ctx)
	require.NoError(t, err)

	select {
	case c := <-changes:
		assert.Equal(t, kvstore.KeyScenario, c.Key)
		assert.Equal(t, "riskctl", c.Source)
	case <-time.After(time.Second):
		t.Fatal("no change delivered")
	}

	_, err = feed.Subscribe(ctx)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	cancel()
	select {
	case _, open := <-changes:
		assert.False(t, open)
	case <-time.After(time.Second):
		t.Fatal("feed did not close")
	}
}

func TestTopicsFromConfig(t *testing.T) {
	topics := Topics(config.KafkaConfig{SnapshotTopic: "custom.snapshots"})

	assert.Equal(t, "custom.snapshots", topics.Snapshots)
	assert.Equal(t, "riskstate.events", topics.RiskEvents)
	assert.Equal(t, "riskstate.store_changes", topics.StoreChanges)
}
