package memstore

import (
	"context"
	"sync"
	"time"

	"tradecoach/internal/domain/kvstore"
	"tradecoach/internal/events"
	"tradecoach/pkg/errors"
)

// Source identifies changes made through the in-memory store
const Source = "memory"

// Store is an in-process kvstore.Backend. Every write is broadcast to subscribers.
type Store struct {
	mu      sync.RWMutex
	data    map[string][]byte
	changes *events.Broadcaster[kvstore.Change]
	now     func() time.Time
}

var _ kvstore.Backend = (*Store)(nil)

// New creates an empty store
func New() *Store {
	return &Store{
		data:    make(map[string][]byte),
		changes: events.NewBroadcaster[kvstore.Change](64),
		now:     time.Now,
	}
}

// Get returns a copy of the value under key
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.data[key]
	if !ok {
		return nil, errors.Wrapf(errors.ErrNotFound, "key %s", key)
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

// Set stores a copy of value and notifies subscribers
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	v := make([]byte, len(value))
	copy(v, value)

	s.mu.Lock()
	s.data[key] = v
	s.mu.Unlock()

	s.notify(key)
	return nil
}

// Delete removes key. Deleting a missing key is not an error and still notifies.
func (s *Store) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()

	s.notify(key)
	return nil
}

// Subscribe returns a channel of changes that closes when ctx is done
func (s *Store) Subscribe(ctx context.Context) (<-chan kvstore.Change, error) {
	return s.changes.Subscribe(ctx), nil
}

// Ping always succeeds
func (s *Store) Ping(ctx context.Context) error {
	return nil
}

// Close closes all subscriptions
func (s *Store) Close() error {
	s.changes.Close()
	return nil
}

func (s *Store) notify(key string) {
	s.changes.Publish(kvstore.Change{Key: key, Source: Source, At: s.now().UTC()})
}
