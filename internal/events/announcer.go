package events

import (
	"context"
	"time"

	"tradecoach/internal/domain/kvstore"
	"tradecoach/pkg/logger"
)

// ChangeAnnouncer broadcasts store changes outside the process
type ChangeAnnouncer interface {
	PublishStoreChange(ctx context.Context, change kvstore.Change) error
}

// AnnouncingStore decorates a store so every successful write is announced.
// A failed announcement is logged and does not fail the write.
type AnnouncingStore struct {
	kvstore.Store
	announcer ChangeAnnouncer
	source    string
	log       *logger.Logger
}

// NewAnnouncingStore wraps store
func NewAnnouncingStore(store kvstore.Store, announcer ChangeAnnouncer, source string, log *logger.Logger) *AnnouncingStore {
	return &AnnouncingStore{
		Store:     store,
		announcer: announcer,
		source:    source,
		log:       log.With("component", "announcing_store"),
	}
}

// Set stores the value and announces the change
func (s *AnnouncingStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.Store.Set(ctx, key, value); err != nil {
		return err
	}
	s.announce(ctx, key)
	return nil
}

// Delete removes the key and announces the change
func (s *AnnouncingStore) Delete(ctx context.Context, key string) error {
	if err := s.Store.Delete(ctx, key); err != nil {
		return err
	}
	s.announce(ctx, key)
	return nil
}

func (s *AnnouncingStore) announce(ctx context.Context, key string) {
	change := kvstore.Change{Key: key, Source: s.source, At: time.Now().UTC()}
	if err := s.announcer.PublishStoreChange(ctx, change); err != nil {
		s.log.Warnw("Store change not announced", "key", key, "error", err)
	}
}
