package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"regexp"
	"time"

	"github.com/lib/pq"

	"tradecoach/internal/domain/kvstore"
	"tradecoach/pkg/errors"
	"tradecoach/pkg/logger"
)

// Source identifies changes made through a Postgres store
const Source = "postgres"

// DefaultTable holds the key-value rows
const DefaultTable = "kv_store"

const (
	listenerMinReconnect = 2 * time.Second
	listenerMaxReconnect = time.Minute
	listenerPingInterval = 90 * time.Second
)

var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// Compile-time check
var _ kvstore.Backend = (*KVStore)(nil)

// KVStore implements kvstore.Backend on a single table.
// Every write runs pg_notify in the same transaction, so listeners only see committed changes.
type KVStore struct {
	client  *Client
	table   string
	channel string
	log     *logger.Logger
}

// NewKVStore creates a store over table, announcing changes on channel
func NewKVStore(client *Client, table, channel string, log *logger.Logger) (*KVStore, error) {
	if !identPattern.MatchString(table) {
		return nil, errors.NewValidationError("table", "must be a lowercase SQL identifier", table)
	}
	if !identPattern.MatchString(channel) {
		return nil, errors.NewValidationError("channel", "must be a lowercase SQL identifier", channel)
	}

	return &KVStore{
		client:  client,
		table:   table,
		channel: channel,
		log:     log.With("component", "postgres_kvstore", "table", table),
	}, nil
}

// Migrate creates the table when missing
func (s *KVStore) Migrate(ctx context.Context) error {
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`, s.table)

	if _, err := s.client.DB().ExecContext(ctx, query); err != nil {
		return errors.Wrapf(err, "migrate %s", s.table)
	}
	return nil
}

// Get returns the value under key
func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value string

	query := fmt.Sprintf(`SELECT value FROM %s WHERE key = $1`, s.table)

	err := s.client.DB().GetContext(ctx, &value, query, key)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.Wrapf(errors.ErrNotFound, "key %s", key)
		}
		return nil, errors.Wrapf(err, "select %s", key)
	}

	return []byte(value), nil
}

// Set upserts the value and notifies listeners
func (s *KVStore) Set(ctx context.Context, key string, value []byte) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (key, value, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (key) DO UPDATE SET
			value = EXCLUDED.value,
			updated_at = NOW()`, s.table)

	return s.inTxWithNotify(ctx, key, query, key, string(value))
}

// Delete removes the key and notifies listeners
func (s *KVStore) Delete(ctx context.Context, key string) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE key = $1`, s.table)
	return s.inTxWithNotify(ctx, key, query, key)
}

func (s *KVStore) inTxWithNotify(ctx context.Context, key, query string, args ...interface{}) (err error) {
	payload, err := json.Marshal(kvstore.Change{Key: key, Source: Source, At: time.Now().UTC()})
	if err != nil {
		return errors.Wrap(err, "encode change")
	}

	tx, err := s.client.DB().BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin tx")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, query, args...); err != nil {
		return errors.Wrapf(err, "write %s", key)
	}
	if _, err = tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, s.channel, string(payload)); err != nil {
		return errors.Wrapf(err, "notify %s", key)
	}
	if err = tx.Commit(); err != nil {
		return errors.Wrapf(err, "commit %s", key)
	}
	return nil
}

// Subscribe opens a dedicated LISTEN connection.
// After a reconnect, notifications may have been missed, so a KeyAll change is emitted.
func (s *KVStore) Subscribe(ctx context.Context) (<-chan kvstore.Change, error) {
	listener := pq.NewListener(s.client.DSN(), listenerMinReconnect, listenerMaxReconnect,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				s.log.Warnw("Listener connection event", "event", ev, "error", err)
			}
		})

	if err := listener.Listen(s.channel); err != nil {
		_ = listener.Close()
		return nil, errors.Wrapf(err, "listen %s", s.channel)
	}

	out := make(chan kvstore.Change)
	go func() {
		defer close(out)
		defer listener.Close()

		ping := time.NewTicker(listenerPingInterval)
		defer ping.Stop()

		for {
			var change kvstore.Change

			select {
			case <-ctx.Done():
				return
			case <-ping.C:
				go func() { _ = listener.Ping() }()
				continue
			case n, ok := <-listener.Notify:
				if !ok {
					return
				}
				if n == nil {
					change = kvstore.Change{Key: kvstore.KeyAll, Source: Source, At: time.Now().UTC()}
				} else if err := json.Unmarshal([]byte(n.Extra), &change); err != nil {
					s.log.Debugw("Ignoring undecodable notification", "payload", n.Extra, "error", err)
					continue
				}
			}

			select {
			case out <- change:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

// Ping checks connectivity
func (s *KVStore) Ping(ctx context.Context) error {
	return s.client.Health(ctx)
}

// Close closes the client
func (s *KVStore) Close() error {
	return s.client.Close()
}
