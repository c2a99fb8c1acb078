package kafka

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/segmentio/kafka-go"

	"tradecoach/internal/domain/kvstore"
	"tradecoach/pkg/errors"
	"tradecoach/pkg/logger"
)

// MessageSource yields Kafka messages; *Consumer satisfies it
type MessageSource interface {
	Consume(ctx context.Context, handler MessageHandler) error
	Close() error
}

// ChangeFeed turns store changes announced on Kafka into a kvstore.Notifier.
// Changes stamped with the feed's own source are skipped, since the local store already reported them.
type ChangeFeed struct {
	source    MessageSource
	ownSource string
	log       *logger.Logger

	once sync.Once
}

var _ kvstore.Notifier = (*ChangeFeed)(nil)

// NewChangeFeed creates a feed over source
func NewChangeFeed(source MessageSource, ownSource string, log *logger.Logger) *ChangeFeed {
	return &ChangeFeed{
		source:    source,
		ownSource: ownSource,
		log:       log.With("component", "kafka_change_feed"),
	}
}

// Subscribe starts consuming. A feed supports a single subscriber because the
// underlying reader belongs to one consumer group member.
func (f *ChangeFeed) Subscribe(ctx context.Context) (<-chan kvstore.Change, error) {
	started := false
	f.once.Do(func() { started = true })
	if !started {
		return nil, errors.Wrap(errors.ErrInvalidInput, "change feed already subscribed")
	}

	out := make(chan kvstore.Change)
	go func() {
		defer close(out)
		defer f.source.Close()

		err := f.source.Consume(ctx, func(ctx context.Context, msg kafka.Message) error {
			var change kvstore.Change
			if err := json.Unmarshal(msg.Value, &change); err != nil {
				return errors.Wrapf(errors.ErrMalformedValue, "change message: %v", err)
			}
			if change.Key == "" || change.Source == f.ownSource {
				return nil
			}

			select {
			case out <- change:
			case <-ctx.Done():
			}
			return nil
		})
		if err != nil && ctx.Err() == nil {
			f.log.Errorw("Change feed stopped", "error", err)
		}
	}()

	return out, nil
}
