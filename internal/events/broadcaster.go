package events

import (
	"context"
	"sync"
)

// Broadcaster fans values out to any number of subscribers.
// Sends never block: when a subscriber's buffer is full its oldest value is
// discarded, so the newest value is always delivered.
type Broadcaster[T any] struct {
	mu     sync.RWMutex
	subs   map[int]chan T
	nextID int
	buffer int
	closed bool
	done   chan struct{}
}

// NewBroadcaster creates a broadcaster with the given per-subscriber buffer
func NewBroadcaster[T any](buffer int) *Broadcaster[T] {
	if buffer <= 0 {
		buffer = 16
	}
	return &Broadcaster[T]{
		subs:   make(map[int]chan T),
		buffer: buffer,
		done:   make(chan struct{}),
	}
}

// Subscribe registers a subscriber. The channel is closed when ctx is done or the broadcaster closes.
func (b *Broadcaster[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, b.buffer)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		close(ch)
		return ch
	}
	id := b.nextID
	b.nextID++
	b.subs[id] = ch
	b.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			b.remove(id)
		case <-b.done:
		}
	}()

	return ch
}

// Publish delivers v to every subscriber and returns how many older values were discarded to make room
func (b *Broadcaster[T]) Publish(v T) (dropped int) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, ch := range b.subs {
		dropped += deliverLatest(ch, v)
	}
	return dropped
}

// deliverLatest sends v without blocking, evicting queued values until it fits
func deliverLatest[T any](ch chan T, v T) (evicted int) {
	for {
		select {
		case ch <- v:
			return evicted
		default:
		}
		select {
		case <-ch:
			evicted++
		default:
		}
	}
}

// Subscribers returns the number of active subscribers
func (b *Broadcaster[T]) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

// Close closes all subscriber channels
func (b *Broadcaster[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	close(b.done)
	for id, ch := range b.subs {
		close(ch)
		delete(b.subs, id)
	}
}

func (b *Broadcaster[T]) remove(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if ch, ok := b.subs[id]; ok {
		close(ch)
		delete(b.subs, id)
	}
}
