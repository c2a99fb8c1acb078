package kvstore

import (
	"context"
	"encoding/json"
	"time"

	"tradecoach/pkg/errors"
)

// Store is a flat string-keyed store of JSON-encoded values.
// There is no schema and no transactions.
type Store interface {
	// Get returns errors.ErrNotFound when the key is absent
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// Change is broadcast for every mutation of the store
type Change struct {
	Key    string    `json:"key"`
	Source string    `json:"source"`
	At     time.Time `json:"at"`
}

// Notifier delivers store changes. The channel is closed when ctx is done.
type Notifier interface {
	Subscribe(ctx context.Context) (<-chan Change, error)
}

// Backend is a store that also notifies about its own changes
type Backend interface {
	Store
	Notifier
	Ping(ctx context.Context) error
	Close() error
}

// GetJSON decodes the value under key into dest. Missing keys return errors.ErrNotFound;
// undecodable values wrap errors.ErrMalformedValue.
func GetJSON(ctx context.Context, s Store, key string, dest interface{}) error {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, dest); err != nil {
		return errors.Wrapf(errors.ErrMalformedValue, "key %s: %v", key, err)
	}
	return nil
}

// SetJSON encodes value and stores it under key
func SetJSON(ctx context.Context, s Store, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "encode %s", key)
	}
	return s.Set(ctx, key, data)
}
