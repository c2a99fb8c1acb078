package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"tradecoach/internal/domain/kvstore"
	"tradecoach/pkg/errors"
	"tradecoach/pkg/logger"
)

// Source identifies changes made through a Redis store
const Source = "redis"

// Store keeps raw values under a key prefix and announces every write on a Pub/Sub channel
type Store struct {
	client  *Client
	prefix  string
	channel string
	log     *logger.Logger
}

var _ kvstore.Backend = (*Store)(nil)

// NewStore creates a Redis-backed store
func NewStore(client *Client, prefix, channel string, log *logger.Logger) *Store {
	return &Store{
		client:  client,
		prefix:  prefix,
		channel: channel,
		log:     log.With("component", "redis_store"),
	}
}

// Get returns the value under key
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.client.rdb.Get(ctx, s.prefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, errors.Wrapf(errors.ErrNotFound, "key %s", key)
		}
		return nil, errors.Wrapf(err, "redis get %s", key)
	}
	return data, nil
}

// Set writes the value and publishes the change in one round trip
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	msg, err := s.changeMessage(key)
	if err != nil {
		return err
	}

	_, err = s.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.prefix+key, value, 0)
		pipe.Publish(ctx, s.channel, msg)
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "redis set %s", key)
	}
	return nil
}

// Delete removes the key and publishes the change
func (s *Store) Delete(ctx context.Context, key string) error {
	msg, err := s.changeMessage(key)
	if err != nil {
		return err
	}

	_, err = s.client.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.prefix+key)
		pipe.Publish(ctx, s.channel, msg)
		return nil
	})
	if err != nil {
		return errors.Wrapf(err, "redis delete %s", key)
	}
	return nil
}

// Subscribe listens on the change channel until ctx is done
func (s *Store) Subscribe(ctx context.Context) (<-chan kvstore.Change, error) {
	sub := s.client.rdb.Subscribe(ctx, s.channel)

	// wait for the subscription confirmation so no change published after return is missed
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, errors.Wrapf(err, "subscribe %s", s.channel)
	}

	out := make(chan kvstore.Change)
	go func() {
		defer close(out)
		defer sub.Close()

		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					s.log.Warnw("Redis change channel closed", "channel", s.channel)
					return
				}

				var change kvstore.Change
				if err := json.Unmarshal([]byte(msg.Payload), &change); err != nil {
					s.log.Debugw("Ignoring undecodable change", "payload", msg.Payload, "error", err)
					continue
				}

				select {
				case out <- change:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return out, nil
}

// Ping checks connectivity
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Health(ctx)
}

// Close closes the client
func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) changeMessage(key string) (string, error) {
	data, err := json.Marshal(kvstore.Change{Key: key, Source: Source, At: time.Now().UTC()})
	if err != nil {
		return "", errors.Wrap(err, "encode change")
	}
	return string(data), nil
}
